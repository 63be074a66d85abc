package interp

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kodflow/gosh/expand"
	"github.com/kodflow/gosh/syntax"
)

func TestBuiltinCdAndPwd(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	_, out, errOut := runScript(t, "cd "+sub+"\npwd\n")
	if errOut != "" {
		t.Fatalf("unexpected stderr: %q", errOut)
	}
	got := strings.TrimSuffix(out, "\n")
	resolved, _ := filepath.EvalSymlinks(sub)
	gotResolved, _ := filepath.EvalSymlinks(got)
	if gotResolved != resolved {
		t.Errorf("pwd = %q, want %q", got, sub)
	}
}

func TestBuiltinExportVisibleToChild(t *testing.T) {
	r, out, errOut := runScript(t, "export FOO=bar\necho $FOO\n")
	if errOut != "" {
		t.Fatalf("unexpected stderr: %q", errOut)
	}
	if out != "bar\n" {
		t.Errorf("out = %q, want bar", out)
	}
	v := r.Env.Get("FOO")
	if v.Attrs&expand.AttrExported == 0 {
		t.Errorf("FOO not marked exported")
	}
}

func TestBuiltinUnset(t *testing.T) {
	_, out, _ := runScript(t, "x=hi\nunset x\necho [$x]\n")
	if out != "[]\n" {
		t.Errorf("out = %q, want \"[]\\n\"", out)
	}
}

func TestBuiltinReadonlyBlocksReassign(t *testing.T) {
	_, _, errOut := runScript(t, "readonly x=1\nx=2\n")
	if errOut == "" {
		t.Errorf("expected an error assigning to a readonly variable")
	}
}

func TestBuiltinShiftAdvancesPositional(t *testing.T) {
	r := New()
	r.Env.Positional = []string{"a", "b", "c"}
	var out strings.Builder
	r.Stdout = &out
	p := parseForTest(t, "shift\necho $1 $2\n")
	r.Run(p)
	if out.String() != "b c\n" {
		t.Errorf("out = %q, want \"b c\\n\"", out.String())
	}
}

func TestBuiltinReadSplitsOnIFS(t *testing.T) {
	r := New()
	r.Stdin = strings.NewReader("alpha beta gamma\n")
	var out strings.Builder
	r.Stdout = &out
	p := parseForTest(t, "read a b c\necho $a/$b/$c\n")
	r.Run(p)
	if out.String() != "alpha/beta/gamma\n" {
		t.Errorf("out = %q, want \"alpha/beta/gamma\\n\"", out.String())
	}
}

func parseForTest(t *testing.T, src string) *syntax.File {
	t.Helper()
	p := syntax.NewParser(nil)
	f, err := p.Parse([]byte(src), "test")
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return f
}

func TestBuiltinGetopts(t *testing.T) {
	_, out, _ := runScript(t, `
set -- -a -b foo
while getopts "ab" opt; do
  echo "opt=$opt"
done
shift $((OPTIND - 1))
echo "rest=$1"
`)
	want := "opt=a\nopt=b\nrest=foo\n"
	if out != want {
		t.Errorf("out = %q, want %q", out, want)
	}
}

func TestBuiltinTestCommandBracket(t *testing.T) {
	_, out, _ := runScript(t, `
if [ 1 -lt 2 ]; then echo yes; fi
if [ -z "" ]; then echo empty; fi
`)
	if out != "yes\nempty\n" {
		t.Errorf("out = %q, want \"yes\\nempty\\n\"", out)
	}
}

func TestBuiltinDoubleBracketTest(t *testing.T) {
	_, out, _ := runScript(t, `
x=hello
if [[ $x == hel* ]]; then echo match; fi
if [[ $x != world ]]; then echo nomatch; fi
`)
	if out != "match\nnomatch\n" {
		t.Errorf("out = %q, want \"match\\nnomatch\\n\"", out)
	}
}

