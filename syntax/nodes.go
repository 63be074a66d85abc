// Package syntax implements the word and AST model (spec §3.2-§3.3), the
// lexer (spec §4.1) and the recursive-descent parser (spec §4.2) for the
// shell language core.
package syntax

import "github.com/kodflow/gosh/token"

// Pos is a 1-based byte offset into the source, 0 meaning "unknown".
type Pos int

// Node is implemented by every AST node.
type Node interface {
	Pos() Pos
}

// Quote records which quoting context produced a word part, per spec
// §3.2's invariant (b): the quote flag propagates transitively so that
// expansions produced inside double quotes are not subject to
// word-splitting or pathname expansion on their own result.
type Quote int

const (
	NoQuote Quote = iota
	SingleQuote
	DoubleQuote
	ANSICQuote // $'...'
)

// Word is a sequence of parts that expands to zero or more argument
// strings (spec §3.2).
type Word struct {
	Parts []WordPart
}

func (w *Word) Pos() Pos {
	if len(w.Parts) == 0 {
		return 0
	}
	return w.Parts[0].Pos()
}

// Lit reports the word's value when it is made up purely of unquoted,
// expansion-free Literal parts - used for contexts that need a plain
// identifier (e.g. a heredoc delimiter, a case keyword check).
func (w *Word) Lit() (string, bool) {
	if len(w.Parts) != 1 {
		return "", false
	}
	l, ok := w.Parts[0].(*Literal)
	if !ok || l.QuoteKind != NoQuote {
		return "", false
	}
	return l.Text, true
}

// WordPart is implemented by every part that can make up a Word.
type WordPart interface {
	Node
	wordPart()
}

// Literal is unquoted or quoted plain text (spec §3.2).
type Literal struct {
	ValuePos  Pos
	Text      string
	QuoteKind Quote
}

func (l *Literal) Pos() Pos { return l.ValuePos }
func (*Literal) wordPart()  {}

// VariableRef is `$NAME`, `$1`, `$#`, `$?`, `$@`, `$*`, etc.
type VariableRef struct {
	DollarPos Pos
	Name      string
	QuoteKind Quote
}

func (v *VariableRef) Pos() Pos { return v.DollarPos }
func (*VariableRef) wordPart()  {}

// ParamAnchor records where a pattern-substitution's anchor applies,
// resolving spec §9's open question about `/#`/`/%` precedence by giving
// the anchor its own field instead of folding it into Param or Op.
type ParamAnchor int

const (
	AnchorNone ParamAnchor = iota
	AnchorFront
	AnchorBack
)

// ParamOp identifies a parameter-expansion operator.
type ParamOp int

const (
	ParamPlain   ParamOp = iota // ${var}
	ParamDefault                // ${var:-word}  (Colon=false -> ${var-word})
	ParamAssign                 // ${var:=word}
	ParamError                  // ${var:?word}
	ParamAlt                    // ${var:+word}
	ParamLength                 // ${#var}
	ParamRemoveShortestPrefix // ${var#pat}
	ParamRemoveLongestPrefix  // ${var##pat}
	ParamRemoveShortestSuffix // ${var%pat}
	ParamRemoveLongestSuffix  // ${var%%pat}
	ParamReplace              // ${var/pat/repl}  (All=false) or ${var//pat/repl} (All=true)
	ParamSlice                // ${var:off:len}
	ParamCaseFirstUpper       // ${var^}
	ParamCaseAllUpper         // ${var^^}
	ParamCaseFirstLower       // ${var,}
	ParamCaseAllLower         // ${var,,}
	ParamPrefixNames          // ${!prefix*} / ${!prefix@}
	ParamIndirect             // ${!ref}
	ParamKeys                 // ${!arr[@]} / ${!arr[@]}
)

// ParameterExpansion is `${...}` in all its operator forms (spec §3.2,
// §4.3's operator table).
type ParameterExpansion struct {
	DollarPos  Pos
	RBracePos  Pos
	Param      string // variable/array name; for the `${!...}` forms, the name after the "!" (the "!" is not kept)
	Index      *Word  // arr[Index], nil for scalar; Index may be literal "@" or "*"
	Op         ParamOp
	Colon      bool // the ':' in :-, :=, :?, :+ (empty-or-unset vs unset-only)
	Anchor     ParamAnchor
	All        bool  // ${var//pat/repl} global replace
	Arg        *Word // default/assign/error/alt word, or pattern for #/##/%/%%, or replacement pattern
	Repl       *Word // replacement word for ParamReplace
	Offset     *Word // ParamSlice offset
	Length     *Word // ParamSlice length (optional)
	QuoteKind  Quote
}

func (p *ParameterExpansion) Pos() Pos { return p.DollarPos }
func (*ParameterExpansion) wordPart()  {}

// CommandSubstitution is `$(...)` or `` `...` `` (spec §3.2).
type CommandSubstitution struct {
	LeftPos, RightPos Pos
	Backtick          bool
	Stmts             []*Stmt
	QuoteKind         Quote
}

func (c *CommandSubstitution) Pos() Pos { return c.LeftPos }
func (*CommandSubstitution) wordPart()  {}

// ArithmeticExpansion is `$((...))` (spec §3.2).
type ArithmeticExpansion struct {
	LeftPos, RightPos Pos
	Expr              Word
	QuoteKind         Quote
}

func (a *ArithmeticExpansion) Pos() Pos { return a.LeftPos }
func (*ArithmeticExpansion) wordPart()  {}

// TildePrefix is an unquoted `~` or `~user` at word start, or after `:`
// in an assignment RHS (spec §3.2).
type TildePrefix struct {
	TildePos Pos
	User     string
}

func (t *TildePrefix) Pos() Pos { return t.TildePos }
func (*TildePrefix) wordPart()  {}

// ProcDirection is the direction of a ProcessSubstitution.
type ProcDirection int

const (
	ProcIn  ProcDirection = iota // <(...)
	ProcOut                      // >(...)
)

// ProcessSubstitution is `<(...)` / `>(...)` (spec §3.2).
type ProcessSubstitution struct {
	OpPos     Pos
	RightPos  Pos
	Direction ProcDirection
	Stmts     []*Stmt
}

func (p *ProcessSubstitution) Pos() Pos { return p.OpPos }
func (*ProcessSubstitution) wordPart()  {}

// Glob is an unquoted pathname-expansion fragment (spec §3.2).
type Glob struct {
	ValuePos Pos
	Pattern  string
}

func (g *Glob) Pos() Pos { return g.ValuePos }
func (*Glob) wordPart()  {}

// ArrayExpr is a bash array literal `(a b c)` used as an assignment RHS.
type ArrayExpr struct {
	LparenPos, RparenPos Pos
	Elems                []ArrayElem
}

func (a *ArrayExpr) Pos() Pos { return a.LparenPos }
func (*ArrayExpr) wordPart()  {}

// ArrayElem is one element of an ArrayExpr; Key is non-nil for
// `arr[key]=value` associative/indexed assignments.
type ArrayElem struct {
	Key   *Word
	Value Word
}

// Redirection is spec §3.3's Redirect.
type RedirOp int

const (
	RedirLess        RedirOp = iota // <
	RedirGreat                      // >
	RedirAppend                     // >>
	RedirReadWrite                  // <>
	RedirHeredoc                    // <<
	RedirHeredocTabs                // <<-
	RedirHereString                 // <<<
	RedirDupIn                      // <&
	RedirDupOut                     // >&
	RedirClobber                    // >|
	RedirCloseIn                    // <&-
	RedirCloseOut                   // >&-
	RedirBoth                       // &>
	RedirBothAppend                 // &>>
)

// Redirect is one input/output redirection (spec §3.3).
type Redirect struct {
	OpPos    Pos
	FD       *int // explicit leading file descriptor, nil if unspecified
	Op       RedirOp
	Target   Word // target word; for heredocs, the delimiter word
	Heredoc  Word // collected heredoc body (only Op == RedirHeredoc[Tabs])
	HdocQuoted bool // heredoc delimiter was quoted -> no expansion of body
}

func (r *Redirect) Pos() Pos { return r.OpPos }

// Assign is an assignment to a variable or array element, appearing
// before a simple command or standalone.
type Assign struct {
	NamePos Pos
	Name    string
	Index   *Word // arr[idx]=..., nil for scalar/whole-array
	Append  bool  // NAME+=value
	Array   *ArrayExpr
	Value   *Word // nil when Array != nil
}

func (a *Assign) Pos() Pos { return a.NamePos }

// Command is implemented by every node that can be the command of a
// Stmt (spec §3.3).
type Command interface {
	Node
	command()
}

// SimpleCommand is `assignments... words... redirs...` (spec §3.3).
type SimpleCommand struct {
	Assigns []*Assign
	Words   []Word
	Redirs  []*Redirect
}

func (s *SimpleCommand) Pos() Pos {
	if len(s.Assigns) > 0 {
		return s.Assigns[0].Pos()
	}
	if len(s.Words) > 0 {
		return s.Words[0].Pos()
	}
	return 0
}
func (*SimpleCommand) command() {}

// Connector joins two pipelines in an AndOrList.
type Connector int

const (
	ConnNone Connector = iota
	ConnAnd
	ConnOr
)

// Pipeline is `c1 | c2 | ... | cN`, optionally negated with `!`.
type Pipeline struct {
	Bang     Pos // position of leading `!`, 0 if not negated
	Negated  bool
	Commands []*Stmt
	PipeAll  []bool // per-join: true if joined with |& (stderr+stdout)
}

func (p *Pipeline) Pos() Pos {
	if p.Negated {
		return p.Bang
	}
	return p.Commands[0].Pos()
}
func (*Pipeline) command() {}

// AndOrItem is one pipeline of an AndOrList with the connector that
// precedes it (ConnNone for the first item).
type AndOrItem struct {
	Pipeline *Pipeline
	Conn     Connector
}

// AndOrList is a `&&`/`||` chain of pipelines.
type AndOrList struct {
	Items []AndOrItem
}

func (l *AndOrList) Pos() Pos { return l.Items[0].Pipeline.Pos() }
func (*AndOrList) command()   {}

// Stmt is a statement: one command with its source position and its
// Background (`&`) and Coprocess flags (spec §3.3). Assignments and
// redirections belong to the SimpleCommand, and `!` to the Pipeline.
type Stmt struct {
	Position   Pos
	Cmd        Command
	Background bool
	Coprocess  bool
}

func (s *Stmt) Pos() Pos { return s.Position }

// If is spec §3.3's If control structure.
type ElifArm struct {
	Cond, Then []*Stmt
}

type If struct {
	IfPos     Pos
	Cond      []*Stmt
	Then      []*Stmt
	Elifs     []ElifArm
	Else      []*Stmt
	HasElse   bool
}

func (i *If) Pos() Pos { return i.IfPos }
func (*If) command()   {}

// While is spec §3.3's While control structure; Until is modeled by
// setting UntilFlag.
type While struct {
	WhilePos  Pos
	UntilFlag bool
	Cond      []*Stmt
	Body      []*Stmt
}

func (w *While) Pos() Pos { return w.WhilePos }
func (*While) command()   {}

// For iterates Var over Words (spec §3.3); a missing `in` clause is
// represented by InClauseGiven == false, meaning iterate over "$@".
type For struct {
	ForPos       Pos
	Var          string
	Words        []Word
	InClauseGiven bool
	Body         []*Stmt
}

func (f *For) Pos() Pos { return f.ForPos }
func (*For) command()   {}

// CFor is the C-style `for (( init; cond; update ))` loop.
type CFor struct {
	ForPos             Pos
	Init, Cond, Update *Word // arithmetic expression words; nil if omitted
	Body               []*Stmt
}

func (c *CFor) Pos() Pos { return c.ForPos }
func (*CFor) command()   {}

// Select is bash's `select NAME in WORDS; do BODY; done`.
type Select struct {
	SelectPos Pos
	Var       string
	Words     []Word
	Body      []*Stmt
}

func (s *Select) Pos() Pos { return s.SelectPos }
func (*Select) command()   {}

// CaseTerminator is the terminator token following a case arm's body.
type CaseTerminator int

const (
	CaseBreak    CaseTerminator = iota // ;;
	CaseFallthrough                    // ;&
	CaseContinueMatch                  // ;;&
)

type CaseArm struct {
	Patterns []Word
	Body     []*Stmt
	Term     CaseTerminator
}

// Case is spec §3.3's Case control structure.
type Case struct {
	CasePos Pos
	Subject Word
	Arms    []CaseArm
}

func (c *Case) Pos() Pos { return c.CasePos }
func (*Case) command()   {}

// Subshell is `( ... )`: side effects do not persist (spec §4.4).
type Subshell struct {
	LparenPos, RparenPos Pos
	Body                 []*Stmt
}

func (s *Subshell) Pos() Pos { return s.LparenPos }
func (*Subshell) command()   {}

// BraceGroup is `{ ...; }`: runs in the current shell (spec §4.4).
type BraceGroup struct {
	LbracePos, RbracePos Pos
	Body                 []*Stmt
}

func (b *BraceGroup) Pos() Pos { return b.LbracePos }
func (*BraceGroup) command()   {}

// FunctionDef declares a shell function.
type FunctionDef struct {
	NamePos   Pos
	Name      string
	BashStyle bool // declared with `function NAME` rather than `NAME()`
	Body      *Stmt
}

func (f *FunctionDef) Pos() Pos { return f.NamePos }
func (*FunctionDef) command()   {}

// ArithCommand is `(( expr ))` used as a command (spec §3.3).
type ArithCommand struct {
	LeftPos, RightPos Pos
	Expr              Word
}

func (a *ArithCommand) Pos() Pos { return a.LeftPos }
func (*ArithCommand) command()   {}

// TestCommand is `[[ expr ]]` (spec §3.3).
type TestExpr interface {
	Node
	testExpr()
}

type TestCommand struct {
	LeftPos, RightPos Pos
	Expr              TestExpr
}

func (t *TestCommand) Pos() Pos { return t.LeftPos }
func (*TestCommand) command()   {}

type TestUnaryOp int

const (
	TestStrEmpty TestUnaryOp = iota // -z
	TestStrNonEmpty                 // -n
	TestFileExists                  // -e
	TestRegularFile                  // -f
	TestDirectory                    // -d
	TestReadable                     // -r
	TestWritable                     // -w
	TestExecutable                   // -x
	TestNonEmptyFile                 // -s
	TestNot                          // !
)

type TestUnary struct {
	OpPos Pos
	Op    TestUnaryOp
	X     TestExpr
}

func (u *TestUnary) Pos() Pos { return u.OpPos }
func (*TestUnary) testExpr()  {}

type TestBinaryOp int

const (
	TestEq TestBinaryOp = iota
	TestNe
	TestLt
	TestGt
	TestRegex
	TestAnd
	TestOr
	TestArithEq
	TestArithNe
	TestArithLt
	TestArithLe
	TestArithGt
	TestArithGe
)

type TestBinary struct {
	OpPos Pos
	Op    TestBinaryOp
	X, Y  TestExpr
}

func (b *TestBinary) Pos() Pos { return b.X.Pos() }
func (*TestBinary) testExpr()  {}

type TestWord struct {
	W Word
}

func (t *TestWord) Pos() Pos { return t.W.Pos() }
func (*TestWord) testExpr()  {}

type TestParen struct {
	LparenPos Pos
	X         TestExpr
}

func (p *TestParen) Pos() Pos { return p.LparenPos }
func (*TestParen) testExpr()  {}

// File is a parsed shell program (top-level compound list).
type File struct {
	Name  string
	Stmts []*Stmt
}

func (f *File) Pos() Pos {
	if len(f.Stmts) == 0 {
		return 0
	}
	return f.Stmts[0].Pos()
}

// keywordKind exposes token.Keywords for parser use without importing
// token in client packages that only need syntax.
func KeywordKind(s string) (token.Kind, bool) {
	k, ok := token.Keywords[s]
	return k, ok
}
