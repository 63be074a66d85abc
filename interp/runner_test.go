package interp

import (
	"strings"
	"testing"

	"github.com/kodflow/gosh/syntax"
)

func runScript(t *testing.T, src string) (*Runner, string, string) {
	t.Helper()
	p := syntax.NewParser(nil)
	prog, err := p.Parse([]byte(src), "test")
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	r := New()
	var out, errOut strings.Builder
	r.Stdout = &out
	r.Stderr = &errOut
	r.Run(prog)
	return r, out.String(), errOut.String()
}

func TestEchoAndVariables(t *testing.T) {
	_, out, _ := runScript(t, "x=hello\necho $x world\n")
	if out != "hello world\n" {
		t.Errorf("out = %q, want %q", out, "hello world\n")
	}
}

func TestIfElse(t *testing.T) {
	_, out, _ := runScript(t, "if true; then echo yes; else echo no; fi\n")
	if out != "yes\n" {
		t.Errorf("out = %q, want yes", out)
	}
	_, out2, _ := runScript(t, "if false; then echo yes; else echo no; fi\n")
	if out2 != "no\n" {
		t.Errorf("out = %q, want no", out2)
	}
}

func TestForLoop(t *testing.T) {
	_, out, _ := runScript(t, "for i in a b c; do echo $i; done\n")
	if out != "a\nb\nc\n" {
		t.Errorf("out = %q, want a/b/c lines", out)
	}
}

func TestWhileLoopWithBreak(t *testing.T) {
	_, out, _ := runScript(t, `
i=0
while true; do
  i=$((i+1))
  if [ "$i" -gt 3 ]; then
    break
  fi
  echo $i
done
`)
	if out != "1\n2\n3\n" {
		t.Errorf("out = %q, want 1/2/3", out)
	}
}

func TestContinueSkipsRest(t *testing.T) {
	_, out, _ := runScript(t, `
for i in 1 2 3 4; do
  if [ "$i" = "2" ]; then
    continue
  fi
  echo $i
done
`)
	if out != "1\n3\n4\n" {
		t.Errorf("out = %q, want 1/3/4", out)
	}
}

func TestFunctionCallAndReturn(t *testing.T) {
	_, out, _ := runScript(t, `
greet() {
  echo "hi $1"
  return 7
}
greet world
echo $?
`)
	if out != "hi world\n7\n" {
		t.Errorf("out = %q, want \"hi world\\n7\\n\"", out)
	}
}

func TestLocalShadowsGlobal(t *testing.T) {
	_, out, _ := runScript(t, `
x=outer
f() {
  local x=inner
  echo $x
}
f
echo $x
`)
	if out != "inner\nouter\n" {
		t.Errorf("out = %q, want \"inner\\nouter\\n\"", out)
	}
}

func TestCaseMatching(t *testing.T) {
	_, out, _ := runScript(t, `
for x in cat dog fish; do
  case $x in
    cat|dog) echo pet ;;
    *) echo other ;;
  esac
done
`)
	if out != "pet\npet\nother\n" {
		t.Errorf("out = %q, want pet/pet/other", out)
	}
}

func TestArithmeticCommand(t *testing.T) {
	_, out, _ := runScript(t, "x=5\n(( x += 3 ))\necho $x\n")
	if out != "8\n" {
		t.Errorf("out = %q, want 8", out)
	}
}

func TestPipeline(t *testing.T) {
	_, out, _ := runScript(t, "echo hi | cat\n")
	if out != "hi\n" {
		t.Errorf("out = %q, want hi", out)
	}
}

func TestExitStatusOfFailedCommand(t *testing.T) {
	_, out, _ := runScript(t, "false\necho $?\ntrue\necho $?\n")
	if out != "1\n0\n" {
		t.Errorf("out = %q, want 1/0", out)
	}
}

func TestAndOrShortCircuit(t *testing.T) {
	_, out, _ := runScript(t, "false && echo unreachable\ntrue || echo unreachable\necho done\n")
	if out != "done\n" {
		t.Errorf("out = %q, want done only", out)
	}
}

func TestPositionalParams(t *testing.T) {
	r, out, _ := runScript(t, "echo $# $1 $2\n")
	r.Env.Positional = []string{"a", "b"}
	_, out2, _ := runScriptWithRunner(t, r, "echo $# $1 $2\n")
	_ = out
	if out2 != "2 a b\n" {
		t.Errorf("out = %q, want \"2 a b\\n\"", out2)
	}
}

func runScriptWithRunner(t *testing.T, r *Runner, src string) (*Runner, string, string) {
	t.Helper()
	p := syntax.NewParser(nil)
	prog, err := p.Parse([]byte(src), "test")
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	var out, errOut strings.Builder
	r.Stdout = &out
	r.Stderr = &errOut
	r.Run(prog)
	return r, out.String(), errOut.String()
}
