package expand

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kodflow/gosh/syntax"
)

// testEnviron is a minimal Environ for expansion tests, grounded on the
// teacher's mapEnviron test doubles.
type testEnviron struct {
	vars map[string]Variable
}

func newTestEnviron(kv map[string]string) *testEnviron {
	vars := map[string]Variable{}
	for k, v := range kv {
		vars[k] = Variable{Str: v}
	}
	return &testEnviron{vars: vars}
}

func (e *testEnviron) Get(name string) Variable {
	if v, ok := e.vars[name]; ok {
		return v
	}
	return Variable{Unset: true}
}

func (e *testEnviron) Set(name string, v Variable) error {
	e.vars[name] = v
	return nil
}

func (e *testEnviron) Each(f func(string, Variable) bool) {
	names := make([]string, 0, len(e.vars))
	for n := range e.vars {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if !f(n, e.vars[n]) {
			return
		}
	}
}

func parseWords(t *testing.T, src string) []syntax.Word {
	t.Helper()
	p := syntax.NewParser(nil)
	f, err := p.Parse([]byte(src+"\n"), "test")
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	sc, ok := f.Stmts[0].Cmd.(*syntax.SimpleCommand)
	if !ok {
		t.Fatalf("want *SimpleCommand, got %T", f.Stmts[0].Cmd)
	}
	return sc.Words
}

func TestFieldsScalarAndSplitting(t *testing.T) {
	cfg := &Config{Env: newTestEnviron(map[string]string{"x": "a  b"})}
	words := parseWords(t, `echo $x`)
	got, err := Fields(cfg, words[1:]...)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Fields mismatch (-want +got):\n%s", diff)
	}
}

func TestFieldsQuotedNoSplitting(t *testing.T) {
	cfg := &Config{Env: newTestEnviron(map[string]string{"x": "a  b"})}
	words := parseWords(t, `echo "$x"`)
	got, err := Fields(cfg, words[1:]...)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "a  b" {
		t.Errorf("Fields = %v, want [\"a  b\"]", got)
	}
}

func TestFieldsEmptyUnquotedVanishes(t *testing.T) {
	cfg := &Config{Env: newTestEnviron(map[string]string{"x": ""})}
	words := parseWords(t, `echo $x`)
	got, err := Fields(cfg, words[1:]...)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("Fields = %v, want no fields for an empty unquoted expansion", got)
	}
}

func TestFieldsExplicitEmptyStringStays(t *testing.T) {
	cfg := &Config{Env: newTestEnviron(nil)}
	words := parseWords(t, `echo ""`)
	got, err := Fields(cfg, words[1:]...)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{""}, got); diff != "" {
		t.Errorf("Fields mismatch (-want +got):\n%s", diff)
	}
}

func TestLiteralUnboundWithNoUnset(t *testing.T) {
	cfg := &Config{Env: newTestEnviron(nil), NoUnset: true}
	words := parseWords(t, `echo $missing`)
	if _, err := Literal(cfg, words[1]); err == nil {
		t.Errorf("Literal with nounset on an unset var: want error, got nil")
	}
}

func TestParamOpDefault(t *testing.T) {
	cfg := &Config{Env: newTestEnviron(nil)}
	words := parseWords(t, `echo ${missing:-fallback}`)
	got, err := Literal(cfg, words[1])
	if err != nil {
		t.Fatal(err)
	}
	if got != "fallback" {
		t.Errorf("Literal = %q, want fallback", got)
	}
}

func TestParamOpLength(t *testing.T) {
	cfg := &Config{Env: newTestEnviron(map[string]string{"x": "hello"})}
	words := parseWords(t, `echo ${#x}`)
	got, err := Literal(cfg, words[1])
	if err != nil {
		t.Fatal(err)
	}
	if got != "5" {
		t.Errorf("Literal = %q, want 5", got)
	}
}

func TestEvalArithPrecedence(t *testing.T) {
	cfg := &Config{Env: newTestEnviron(nil)}
	cases := map[string]int64{
		"2+3*4":   14,
		"(2+3)*4": 20,
		"-2**2":   -4,
		"2**3**2": 512, // right-associative: 2**(3**2)
		"10 % 3":  1,
		"1 << 4":  16,
	}
	for expr, want := range cases {
		got, err := EvalArith(cfg, expr)
		if err != nil {
			t.Errorf("EvalArith(%q): %v", expr, err)
			continue
		}
		if got != want {
			t.Errorf("EvalArith(%q) = %d, want %d", expr, got, want)
		}
	}
}

func TestExpandBracesSimple(t *testing.T) {
	w := parseWords(t, `echo pre{a,b,c}post`)[1]
	words := ExpandBraces(w)
	if len(words) != 3 {
		t.Fatalf("ExpandBraces = %d words, want 3", len(words))
	}
	cfg := &Config{Env: newTestEnviron(nil)}
	for i, alt := range words {
		got, err := Literal(cfg, alt)
		if err != nil {
			t.Fatalf("Literal(alt %d): %v", i, err)
		}
		if got == "" || got == "pre{a,b,c}post" {
			t.Errorf("alternative %d rendered as %q, want an expanded variant", i, got)
		}
	}
}

func TestExpandBracesRange(t *testing.T) {
	w := parseWords(t, `echo {1..3}`)[1]
	words := ExpandBraces(w)
	if len(words) != 3 {
		t.Fatalf("ExpandBraces({1..3}) = %d words, want 3", len(words))
	}
}
