package syntax

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kodflow/gosh/token"
)

func parseOK(t *testing.T, src string) *File {
	t.Helper()
	p := NewParser(nil)
	f, err := p.Parse([]byte(src), "test")
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return f
}

func TestParseSimpleCommand(t *testing.T) {
	f := parseOK(t, "echo hello world\n")
	if len(f.Stmts) != 1 {
		t.Fatalf("want 1 stmt, got %d", len(f.Stmts))
	}
	sc, ok := f.Stmts[0].Cmd.(*SimpleCommand)
	if !ok {
		t.Fatalf("want *SimpleCommand, got %T", f.Stmts[0].Cmd)
	}
	if len(sc.Words) != 3 {
		t.Fatalf("want 3 words, got %d", len(sc.Words))
	}
	if lit, ok := sc.Words[0].Lit(); !ok || lit != "echo" {
		t.Errorf("Words[0] = %q, ok=%v, want \"echo\"", lit, ok)
	}
}

func TestParsePipeline(t *testing.T) {
	f := parseOK(t, "a | b | c\n")
	p, ok := f.Stmts[0].Cmd.(*Pipeline)
	if !ok {
		t.Fatalf("want *Pipeline, got %T", f.Stmts[0].Cmd)
	}
	if len(p.Commands) != 3 {
		t.Fatalf("want 3 pipeline stages, got %d", len(p.Commands))
	}
}

func TestParseAndOr(t *testing.T) {
	f := parseOK(t, "a && b || c\n")
	l, ok := f.Stmts[0].Cmd.(*AndOrList)
	if !ok {
		t.Fatalf("want *AndOrList, got %T", f.Stmts[0].Cmd)
	}
	if len(l.Items) != 3 {
		t.Fatalf("want 3 items, got %d", len(l.Items))
	}
	if l.Items[1].Conn != ConnAnd {
		t.Errorf("Items[1].Conn = %v, want ConnAnd", l.Items[1].Conn)
	}
	if l.Items[2].Conn != ConnOr {
		t.Errorf("Items[2].Conn = %v, want ConnOr", l.Items[2].Conn)
	}
}

func TestParseIfElif(t *testing.T) {
	f := parseOK(t, "if a; then b; elif c; then d; else e; fi\n")
	ifc, ok := f.Stmts[0].Cmd.(*If)
	if !ok {
		t.Fatalf("want *If, got %T", f.Stmts[0].Cmd)
	}
	if len(ifc.Elifs) != 1 {
		t.Fatalf("want 1 elif, got %d", len(ifc.Elifs))
	}
	if !ifc.HasElse {
		t.Errorf("HasElse = false, want true")
	}
}

func TestParseForInWords(t *testing.T) {
	f := parseOK(t, "for x in a b c; do echo $x; done\n")
	fo, ok := f.Stmts[0].Cmd.(*For)
	if !ok {
		t.Fatalf("want *For, got %T", f.Stmts[0].Cmd)
	}
	if !fo.InClauseGiven {
		t.Errorf("InClauseGiven = false, want true")
	}
	if len(fo.Words) != 3 {
		t.Fatalf("want 3 words, got %d", len(fo.Words))
	}
}

func TestParseCFor(t *testing.T) {
	f := parseOK(t, "for ((i=0; i<10; i++)); do echo $i; done\n")
	if _, ok := f.Stmts[0].Cmd.(*CFor); !ok {
		t.Fatalf("want *CFor, got %T", f.Stmts[0].Cmd)
	}
}

func TestParseCaseArms(t *testing.T) {
	f := parseOK(t, "case $x in a) echo a ;; b|c) echo bc ;; *) echo z ;; esac\n")
	c, ok := f.Stmts[0].Cmd.(*Case)
	if !ok {
		t.Fatalf("want *Case, got %T", f.Stmts[0].Cmd)
	}
	if len(c.Arms) != 3 {
		t.Fatalf("want 3 arms, got %d", len(c.Arms))
	}
	gotPats := make([]string, len(c.Arms[1].Patterns))
	for i, p := range c.Arms[1].Patterns {
		gotPats[i], _ = p.Lit()
	}
	if diff := cmp.Diff([]string{"b", "c"}, gotPats); diff != "" {
		t.Errorf("second arm patterns mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFunctionDef(t *testing.T) {
	f := parseOK(t, "foo() { echo bar; }\n")
	fn, ok := f.Stmts[0].Cmd.(*FunctionDef)
	if !ok {
		t.Fatalf("want *FunctionDef, got %T", f.Stmts[0].Cmd)
	}
	if fn.Name != "foo" {
		t.Errorf("Name = %q, want foo", fn.Name)
	}
	if fn.BashStyle {
		t.Errorf("BashStyle = true, want false for NAME() syntax")
	}
}

func TestParseFunctionKeyword(t *testing.T) {
	f := parseOK(t, "function foo { echo bar; }\n")
	fn, ok := f.Stmts[0].Cmd.(*FunctionDef)
	if !ok {
		t.Fatalf("want *FunctionDef, got %T", f.Stmts[0].Cmd)
	}
	if !fn.BashStyle {
		t.Errorf("BashStyle = false, want true for `function NAME` syntax")
	}
}

func TestParseRedirects(t *testing.T) {
	f := parseOK(t, "cmd > out.txt 2>> err.txt < in.txt\n")
	sc, ok := f.Stmts[0].Cmd.(*SimpleCommand)
	if !ok {
		t.Fatalf("want *SimpleCommand, got %T", f.Stmts[0].Cmd)
	}
	if len(sc.Redirs) != 3 {
		t.Fatalf("want 3 redirects, got %d", len(sc.Redirs))
	}
	if sc.Redirs[0].Op != RedirGreat {
		t.Errorf("Redirs[0].Op = %v, want RedirGreat", sc.Redirs[0].Op)
	}
	if sc.Redirs[1].Op != RedirAppend || sc.Redirs[1].FD == nil || *sc.Redirs[1].FD != 2 {
		t.Errorf("Redirs[1] = %+v, want fd 2 RedirAppend", sc.Redirs[1])
	}
	if sc.Redirs[2].Op != RedirLess {
		t.Errorf("Redirs[2].Op = %v, want RedirLess", sc.Redirs[2].Op)
	}
}

func TestParseSubshellVsBraceGroup(t *testing.T) {
	f := parseOK(t, "(echo a)\n")
	if _, ok := f.Stmts[0].Cmd.(*Subshell); !ok {
		t.Fatalf("want *Subshell, got %T", f.Stmts[0].Cmd)
	}
	f2 := parseOK(t, "{ echo a; }\n")
	if _, ok := f2.Stmts[0].Cmd.(*BraceGroup); !ok {
		t.Fatalf("want *BraceGroup, got %T", f2.Stmts[0].Cmd)
	}
}

func TestParseBackground(t *testing.T) {
	f := parseOK(t, "sleep 1 &\n")
	if !f.Stmts[0].Background {
		t.Errorf("Background = false, want true")
	}
}

func TestParseAssignmentWord(t *testing.T) {
	f := parseOK(t, "x=1\n")
	sc, ok := f.Stmts[0].Cmd.(*SimpleCommand)
	if !ok {
		t.Fatalf("want *SimpleCommand, got %T", f.Stmts[0].Cmd)
	}
	if len(sc.Assigns) != 1 || sc.Assigns[0].Name != "x" {
		t.Fatalf("Assigns = %+v, want [x=1]", sc.Assigns)
	}
	if len(sc.Words) != 0 {
		t.Errorf("Words = %v, want none for a bare assignment", sc.Words)
	}
}

func TestParseTestCommand(t *testing.T) {
	f := parseOK(t, "[[ -f file.txt && $x == foo ]]\n")
	tc, ok := f.Stmts[0].Cmd.(*TestCommand)
	if !ok {
		t.Fatalf("want *TestCommand, got %T", f.Stmts[0].Cmd)
	}
	if _, ok := tc.Expr.(*TestBinary); !ok {
		t.Fatalf("want top-level *TestBinary (&&), got %T", tc.Expr)
	}
}

func TestKeywordKindLookup(t *testing.T) {
	k, ok := KeywordKind("while")
	if !ok || k != token.WHILE {
		t.Errorf("KeywordKind(\"while\") = %v, %v, want WHILE, true", k, ok)
	}
	if _, ok := KeywordKind("notakeyword"); ok {
		t.Errorf("KeywordKind(\"notakeyword\") unexpectedly found")
	}
}
