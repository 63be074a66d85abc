package interp

import "testing"

// These mirror the end-to-end walkthroughs used to validate the shell's
// language core as a whole, rather than one feature at a time.

func TestE2EPipefailPropagatesFailure(t *testing.T) {
	_, out, _ := runScript(t, `
set -o pipefail
false | true
echo $?
`)
	if out != "1\n" {
		t.Errorf("out = %q, want \"1\\n\"", out)
	}
}

func TestE2EParameterExpansionCaseAndSubstring(t *testing.T) {
	_, out, _ := runScript(t, `
s="Hello, World"
echo "${s^^}"
echo "${s:7:5}"
echo "${s//l/L}"
`)
	want := "HELLO, WORLD\nWorld\nHeLLo, WorLd\n"
	if out != want {
		t.Errorf("out = %q, want %q", out, want)
	}
}

func TestE2EArrayQuotedSplat(t *testing.T) {
	_, out, _ := runScript(t, `
arr=("a b" c)
for x in "${arr[@]}"; do echo "[$x]"; done
echo "count=${#arr[@]}"
`)
	want := "[a b]\n[c]\ncount=2\n"
	if out != want {
		t.Errorf("out = %q, want %q", out, want)
	}
}

func TestE2EForOverCommandSubstThenArith(t *testing.T) {
	_, out, _ := runScript(t, `
set -e
total=0
for n in $(printf '%s\n' 1 2 3); do total=$((total + n)); done
echo $total
`)
	if out != "6\n" {
		t.Errorf("out = %q, want \"6\\n\"", out)
	}
}

func TestE2EFunctionLocalScopeAndReturn(t *testing.T) {
	_, out, _ := runScript(t, `
f() { local x=inner; echo "f:$x"; return 7; }
x=outer
f
echo "outer:$x exit:$?"
`)
	want := "f:inner\nouter:outer exit:7\n"
	if out != want {
		t.Errorf("out = %q, want %q", out, want)
	}
}

func TestE2EHeredocWithAndWithoutExpansion(t *testing.T) {
	_, out, _ := runScript(t, `
name=world
cat <<EOF
hello $name
EOF
cat <<'EOF'
hello $name
EOF
`)
	want := "hello world\nhello $name\n"
	if out != want {
		t.Errorf("out = %q, want %q", out, want)
	}
}

func TestBoundaryEmptyInputStatusZero(t *testing.T) {
	r, out, _ := runScript(t, "# just a comment\n\n\n")
	if out != "" {
		t.Errorf("out = %q, want empty", out)
	}
	if r.lastStatus != 0 {
		t.Errorf("lastStatus = %d, want 0", r.lastStatus)
	}
}

func TestBoundaryErrExitStopsBeforeNextCommand(t *testing.T) {
	_, out, _ := runScript(t, "set -e\nfalse\necho ok\n")
	if out != "" {
		t.Errorf("out = %q, want empty (errexit should stop before echo)", out)
	}
}

func TestBoundaryErrExitGuardedByIf(t *testing.T) {
	_, out, _ := runScript(t, "set -e\nif false; then :; fi\necho ok\n")
	if out != "ok\n" {
		t.Errorf("out = %q, want \"ok\\n\" (guarded false shouldn't trip errexit)", out)
	}
}

func TestBoundaryForOverEmptyWordsZeroIterations(t *testing.T) {
	_, out, _ := runScript(t, "for x in; do echo $x; done\necho after\n")
	if out != "after\n" {
		t.Errorf("out = %q, want \"after\\n\" only", out)
	}
}

func TestBoundaryUnsetVsEmptyDefaultOperators(t *testing.T) {
	_, out, _ := runScript(t, `
empty=""
echo "${unset:-default}"
echo "${unset-default}"
echo "${empty:-default}"
echo "[${empty-default}]"
`)
	want := "default\ndefault\ndefault\n[]\n"
	if out != want {
		t.Errorf("out = %q, want %q", out, want)
	}
}
