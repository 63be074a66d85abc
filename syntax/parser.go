package syntax

import (
	"fmt"

	"github.com/kodflow/gosh/token"
)

// AliasTable maps an alias name to its expansion text. A Parser stores
// the table it is given and passes it to nested parsers, but never
// consults it: no alias expansion takes place.
type AliasTable map[string]string

// Parser implements the recursive-descent grammar of spec §4.2. It
// shares its cursor with the lexer machinery in lexer.go: keywords are
// only recognized in "command position" and several word-part grammars
// (parameter expansion, arithmetic, `[[ ]]`) need context-sensitive
// tokenizing that is easiest to drive from the same struct (see
// lexer.go's doc comment).
type Parser struct {
	c        *cursor
	filename string

	tok      token.Kind
	lit      string
	tokPos   token.Position
	adjacent bool
	ctx      token.Context

	aliases   AliasTable
	expanding map[string]bool // alias recursion guard

	recover  bool // collect mode: synchronize past errors instead of aborting
	firstErr *SyntaxError

	pendingHeredocs []*pendingHeredoc

	// wordParts holds the structured parts of the current WORD token,
	// built by lexWord/scanWordParts in lex_core.go.
	wordParts []WordPart
	// pendingAssign holds the *Assign built while scanning the current
	// ASSIGNMENT_WORD token.
	pendingAssign *Assign

	// commandPosition is true when the next word would name a command
	// (spec glossary: "Command position").
	commandPosition bool

	extGlob bool
}

// NewParser creates a Parser for the given source. aliases may be nil.
func NewParser(aliases AliasTable) *Parser {
	return &Parser{aliases: aliases, extGlob: true}
}

// Parse parses a complete program (spec grammar rule `program`).
func (p *Parser) Parse(src []byte, name string) (*File, error) {
	p.c = newCursor([]byte(skipLineContinuations(string(src))))
	p.filename = name
	p.commandPosition = true
	p.next()

	f := &File{Name: name}
	stmts, err := p.parseStmtList()
	f.Stmts = stmts
	if err != nil {
		return f, err
	}
	if p.tok != token.EOF {
		return f, p.errorf("unexpected token %q", p.lit)
	}
	return f, p.firstErrOrNil()
}

// ParseRecover behaves like Parse but synchronizes to the next
// statement boundary on error instead of stopping, per spec §4.2's
// "collect" mode. The returned error, if non-nil, is the first error
// encountered; the File is the partial AST.
func (p *Parser) ParseRecover(src []byte, name string) (*File, error) {
	p.recover = true
	return p.Parse(src, name)
}

func (p *Parser) firstErrOrNil() error {
	if p.firstErr == nil {
		return nil
	}
	return p.firstErr
}

func (p *Parser) errorf(format string, a ...any) error {
	e := &SyntaxError{Pos: p.tokPos, Message: fmt.Sprintf(format, a...)}
	if p.firstErr == nil {
		p.firstErr = e
	}
	return e
}

// ---- statement-list grammar ----

var blockTerminators = map[string]bool{
	"fi": true, "then": true, "elif": true, "else": true,
	"done": true, "esac": true,
}

func (p *Parser) atBlockEnd() bool {
	if p.tok == token.EOF || p.tok == token.RBRACE || p.tok == token.RPAREN {
		return true
	}
	if p.tok == token.WORD && blockTerminators[p.lit] {
		return true
	}
	if p.tok == token.DSEMI || p.tok == token.SEMIFALL || p.tok == token.DSEMIFALL {
		return true
	}
	return false
}

// parseStmtList implements `list := and_or (separator and_or)* separator?`
// stopping at EOF or a block terminator.
func (p *Parser) parseStmtList() ([]*Stmt, error) {
	var stmts []*Stmt
	for {
		p.skipSeparators()
		if p.atBlockEnd() {
			return stmts, nil
		}
		st, err := p.parseStmt()
		if err != nil {
			if !p.recover {
				return stmts, err
			}
			p.synchronize()
			continue
		}
		if st != nil {
			stmts = append(stmts, st)
		}
		if p.tok != token.SEMI && p.tok != token.NEWLINE && p.tok != token.AMP && !p.atBlockEnd() {
			return stmts, p.errorf("unexpected token after command: %q", p.lit)
		}
	}
}

func (p *Parser) skipSeparators() {
	for p.tok == token.SEMI || p.tok == token.NEWLINE {
		p.next()
	}
}

// synchronize advances past tokens until a statement boundary, used by
// recover mode.
func (p *Parser) synchronize() {
	for p.tok != token.EOF && p.tok != token.SEMI && p.tok != token.NEWLINE && !p.atBlockEnd() {
		p.next()
	}
}

// parseStmt implements `and_or` wrapped with trailing `;`/`&`/newline
// consumption into *Stmt.Background.
func (p *Parser) parseStmt() (*Stmt, error) {
	pos := p.tokPos
	list, err := p.parseAndOr()
	if err != nil {
		return nil, err
	}
	st := &Stmt{Position: Pos(pos.Offset + 1), Cmd: list}
	if p.tok == token.AMP {
		st.Background = true
		p.next()
	}
	return st, nil
}

func wrapCommand(cmd Command) Command {
	if p, ok := cmd.(*Pipeline); ok && !p.Negated && len(p.Commands) == 1 {
		return p.Commands[0].Cmd
	}
	return cmd
}

// parseAndOr implements `and_or := pipeline (('&&'|'||') pipeline)*`.
func (p *Parser) parseAndOr() (Command, error) {
	first, err := p.parsePipeline()
	if err != nil {
		return nil, err
	}
	list := &AndOrList{Items: []AndOrItem{{Pipeline: first}}}
	for p.tok == token.LAND || p.tok == token.LOR {
		conn := ConnAnd
		if p.tok == token.LOR {
			conn = ConnOr
		}
		p.next()
		p.skipNewlines()
		pl, err := p.parsePipeline()
		if err != nil {
			return nil, err
		}
		list.Items = append(list.Items, AndOrItem{Pipeline: pl, Conn: conn})
	}
	if len(list.Items) == 1 {
		return wrapCommand(list.Items[0].Pipeline), nil
	}
	return list, nil
}

func (p *Parser) skipNewlines() {
	for p.tok == token.NEWLINE {
		p.next()
	}
}

// parsePipeline implements `pipeline := ['!'] command ('|' command)*`.
func (p *Parser) parsePipeline() (*Pipeline, error) {
	pl := &Pipeline{}
	if p.tok == token.BANG {
		pl.Negated = true
		pl.Bang = Pos(p.tokPos.Offset + 1)
		p.next()
	}
	first, err := p.parseCompoundStmt()
	if err != nil {
		return nil, err
	}
	pl.Commands = append(pl.Commands, first)
	for p.tok == token.PIPE || p.tok == token.PIPEALL {
		pl.PipeAll = append(pl.PipeAll, p.tok == token.PIPEALL)
		p.next()
		p.skipNewlines()
		st, err := p.parseCompoundStmt()
		if err != nil {
			return nil, err
		}
		pl.Commands = append(pl.Commands, st)
	}
	return pl, nil
}

// parseCompoundStmt parses one command (simple or compound) together
// with its leading/trailing redirections, producing a *Stmt so it can
// sit directly in a Pipeline.
func (p *Parser) parseCompoundStmt() (*Stmt, error) {
	pos := p.tokPos
	cmd, err := p.parseCommand()
	if err != nil {
		return nil, err
	}
	return &Stmt{Position: Pos(pos.Offset + 1), Cmd: cmd}, nil
}

// parseCommand dispatches on the current token to the right compound-
// command parser, or falls through to a simple command.
func (p *Parser) parseCommand() (Command, error) {
	if p.tok == token.WORD {
		switch p.lit {
		case "if":
			return p.parseIf()
		case "while":
			return p.parseWhile(false)
		case "until":
			return p.parseWhile(true)
		case "for":
			return p.parseFor()
		case "case":
			return p.parseCase()
		case "select":
			return p.parseSelect()
		case "function":
			return p.parseFunctionDef(true)
		}
	}
	switch p.tok {
	case token.LBRACE:
		return p.parseBraceGroup()
	case token.LPAREN:
		return p.parseSubshell()
	case token.DLPAREN:
		return p.parseArithCommand()
	case token.DLBRACK:
		return p.parseTestCommand()
	}
	return p.parseSimpleOrFuncDecl()
}

// parseSimpleOrFuncDecl handles `NAME '(' ')' compound` function
// declarations (the non-`function`-keyword form) as well as ordinary
// simple commands, since both start with a WORD in command position.
func (p *Parser) parseSimpleOrFuncDecl() (Command, error) {
	if p.tok == token.WORD && isValidName(p.lit) && !p.adjacentAssignAhead() {
		name := p.lit
		save := *p.c
		saveTok, saveLit, saveTokPos, saveAdj := p.tok, p.lit, p.tokPos, p.adjacent
		saveParts := p.wordParts
		p.next()
		if p.tok == token.LPAREN {
			p.next()
			if p.tok == token.RPAREN {
				p.next()
				return p.finishFunctionDef(name, false)
			}
		}
		*p.c = save
		p.tok, p.lit, p.tokPos, p.adjacent = saveTok, saveLit, saveTokPos, saveAdj
		p.wordParts = saveParts
	}
	return p.parseSimpleCommand()
}

func (p *Parser) adjacentAssignAhead() bool { return false }

func isValidName(s string) bool {
	if s == "" || !isNameStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isNameCont(s[i]) {
			return false
		}
	}
	return true
}

func (p *Parser) finishFunctionDef(name string, bashStyle bool) (Command, error) {
	p.skipNewlines()
	body, err := p.parseCompoundStmt()
	if err != nil {
		return nil, err
	}
	return &FunctionDef{Name: name, BashStyle: bashStyle, Body: body}, nil
}

func (p *Parser) parseFunctionDef(bashStyle bool) (Command, error) {
	p.next() // consume "function"
	if p.tok != token.WORD {
		return nil, p.errorf("expected function name")
	}
	name := p.lit
	p.commandPosition = true // so a `{` right after the name opens the body
	p.next()
	if p.tok == token.LPAREN {
		p.next()
		if p.tok != token.RPAREN {
			return nil, p.errorf("expected ')' in function declaration")
		}
		p.next()
	}
	return p.finishFunctionDef(name, bashStyle)
}

// ---- simple commands ----

func (p *Parser) parseSimpleCommand() (Command, error) {
	sc := &SimpleCommand{}
	for {
		switch {
		case p.tok == token.ASSIGNMENT_WORD:
			sc.Assigns = append(sc.Assigns, p.pendingAssign)
			p.next()
		case p.isRedirStart():
			r, err := p.parseRedirect()
			if err != nil {
				return nil, err
			}
			sc.Redirs = append(sc.Redirs, r)
		case p.tok == token.WORD || p.tok == token.STRING:
			w, err := p.parseWordTokens()
			if err != nil {
				return nil, err
			}
			sc.Words = append(sc.Words, w)
		default:
			if len(sc.Words) == 0 && len(sc.Assigns) == 0 && len(sc.Redirs) == 0 {
				return nil, p.errorf("expected command, found %q", p.lit)
			}
			return sc, nil
		}
	}
}

func (p *Parser) isRedirStart() bool {
	switch p.tok {
	case token.LSS, token.GTR, token.SHL, token.SHR, token.DHEREDOC, token.WHEREDOC,
		token.RDRINOUT, token.DPLIN, token.DPLOUT, token.CLBOUT, token.RDRALL, token.APPALL,
		token.IO_NUMBER:
		return true
	}
	return false
}

// parseWordTokens consumes the current WORD (or ASSIGNMENT_WORD, whose
// own pendingAssign.Value/Array already hold its scanned parts) token
// and returns it as a Word, advancing to the following token. The
// actual character-level scanning already happened in next() (see
// lex_core.go); this just hands off p.wordParts.
func (p *Parser) parseWordTokens() (Word, error) {
	if p.tok != token.WORD {
		return Word{}, p.errorf("expected a word, found %q", p.lit)
	}
	parts := p.wordParts
	p.next()
	return Word{Parts: parts}, nil
}

// ---- redirections ----

func (p *Parser) parseRedirect() (*Redirect, error) {
	var fd *int
	if p.tok == token.IO_NUMBER {
		n := atoiSafe(p.lit)
		fd = &n
		p.next()
	}
	opTok := p.tok
	r := &Redirect{FD: fd}
	var op RedirOp
	switch opTok {
	case token.LSS:
		op = RedirLess
	case token.GTR:
		op = RedirGreat
	case token.SHR:
		op = RedirAppend
	case token.RDRINOUT:
		op = RedirReadWrite
	case token.SHL:
		op = RedirHeredoc
	case token.DHEREDOC:
		op = RedirHeredocTabs
	case token.WHEREDOC:
		op = RedirHereString
	case token.DPLIN:
		op = RedirDupIn
	case token.DPLOUT:
		op = RedirDupOut
	case token.CLBOUT:
		op = RedirClobber
	case token.RDRALL:
		op = RedirBoth
	case token.APPALL:
		op = RedirBothAppend
	default:
		return nil, p.errorf("unexpected redirection operator")
	}
	r.Op = op
	p.next()
	if op == RedirDupIn || op == RedirDupOut {
		if p.tok == token.WORD && p.lit == "-" {
			r.Target = Word{Parts: []WordPart{&Literal{Text: "-"}}}
			p.next()
			return r, nil
		}
	}
	w, err := p.parseWordTokens()
	if err != nil {
		return nil, p.errorf("expected word after redirection operator")
	}
	r.Target = w
	if op == RedirHeredoc || op == RedirHeredocTabs {
		delim, quoted := wordLiteralAndQuote(&w)
		r.HdocQuoted = quoted
		p.pendingHeredocs = append(p.pendingHeredocs, &pendingHeredoc{
			redir: r, delim: delim, stripTabs: op == RedirHeredocTabs, quoted: quoted,
		})
	}
	return r, nil
}

func wordLiteralAndQuote(w *Word) (string, bool) {
	s := ""
	quoted := false
	for _, part := range w.Parts {
		if l, ok := part.(*Literal); ok {
			s += l.Text
			if l.QuoteKind != NoQuote {
				quoted = true
			}
		}
	}
	return s, quoted
}

func atoiSafe(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return n
		}
		n = n*10 + int(s[i]-'0')
	}
	return n
}

// ---- if / while / until / for / case / select / subshell / brace / arith / test ----

func (p *Parser) expectKeyword(kw string) error {
	if p.tok != token.WORD || p.lit != kw {
		return p.errorf("expected %q, found %q", kw, p.lit)
	}
	p.next()
	return nil
}

func (p *Parser) parseIf() (Command, error) {
	ifPos := p.tokPos
	p.next()
	cond, err := p.parseStmtList()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("then"); err != nil {
		return nil, err
	}
	then, err := p.parseStmtList()
	if err != nil {
		return nil, err
	}
	n := &If{IfPos: Pos(ifPos.Offset + 1), Cond: cond, Then: then}
	for p.tok == token.WORD && p.lit == "elif" {
		p.next()
		ec, err := p.parseStmtList()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("then"); err != nil {
			return nil, err
		}
		et, err := p.parseStmtList()
		if err != nil {
			return nil, err
		}
		n.Elifs = append(n.Elifs, ElifArm{Cond: ec, Then: et})
	}
	if p.tok == token.WORD && p.lit == "else" {
		p.next()
		es, err := p.parseStmtList()
		if err != nil {
			return nil, err
		}
		n.Else = es
		n.HasElse = true
	}
	if err := p.expectKeyword("fi"); err != nil {
		return nil, err
	}
	if len(n.Then) == 0 {
		return nil, p.errorf("if statement must not have an empty body")
	}
	return n, nil
}

func (p *Parser) parseWhile(until bool) (Command, error) {
	pos := p.tokPos
	p.next()
	cond, err := p.parseStmtList()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("do"); err != nil {
		return nil, err
	}
	body, err := p.parseStmtList()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("done"); err != nil {
		return nil, err
	}
	return &While{WhilePos: Pos(pos.Offset + 1), UntilFlag: until, Cond: cond, Body: body}, nil
}

func (p *Parser) parseFor() (Command, error) {
	pos := p.tokPos
	p.next()
	if p.tok == token.DLPAREN {
		return p.parseCFor(pos)
	}
	if p.tok != token.WORD || !isValidName(p.lit) {
		return nil, p.errorf("expected name after 'for'")
	}
	name := p.lit
	p.next()
	p.skipSeparators()
	f := &For{ForPos: Pos(pos.Offset + 1), Var: name}
	if p.tok == token.WORD && p.lit == "in" {
		p.next()
		f.InClauseGiven = true
		for p.tok == token.WORD || p.tok == token.STRING {
			w, err := p.parseWordTokens()
			if err != nil {
				return nil, err
			}
			f.Words = append(f.Words, w)
		}
	}
	p.skipSeparators()
	if err := p.expectKeyword("do"); err != nil {
		return nil, err
	}
	body, err := p.parseStmtList()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("done"); err != nil {
		return nil, err
	}
	f.Body = body
	return f, nil
}

func (p *Parser) parseCFor(pos token.Position) (Command, error) {
	// p.tok == DLPAREN already consumed both '(' characters; the cursor
	// sits right at the start of the init clause.
	raw, err := p.scanBalancedDouble(token.DRPAREN)
	if err != nil {
		return nil, err
	}
	parts := splitArithClauses(raw)
	cf := &CFor{ForPos: Pos(pos.Offset + 1)}
	if parts[0] != "" {
		cf.Init = &Word{Parts: []WordPart{&Literal{Text: parts[0]}}}
	}
	if parts[1] != "" {
		cf.Cond = &Word{Parts: []WordPart{&Literal{Text: parts[1]}}}
	}
	if parts[2] != "" {
		cf.Update = &Word{Parts: []WordPart{&Literal{Text: parts[2]}}}
	}
	p.next()
	p.skipSeparators()
	if err := p.expectKeyword("do"); err != nil {
		return nil, err
	}
	body, err := p.parseStmtList()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("done"); err != nil {
		return nil, err
	}
	cf.Body = body
	return cf, nil
}

func splitArithClauses(s string) [3]string {
	var out [3]string
	idx := 0
	depth := 0
	start := 0
	for i := 0; i < len(s) && idx < 2; i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ';':
			if depth == 0 {
				out[idx] = s[start:i]
				idx++
				start = i + 1
			}
		}
	}
	out[2] = s[start:]
	return out
}

func (p *Parser) parseSelect() (Command, error) {
	pos := p.tokPos
	p.next()
	if p.tok != token.WORD || !isValidName(p.lit) {
		return nil, p.errorf("expected name after 'select'")
	}
	name := p.lit
	p.next()
	s := &Select{SelectPos: Pos(pos.Offset + 1), Var: name}
	if p.tok == token.WORD && p.lit == "in" {
		p.next()
		for p.tok == token.WORD || p.tok == token.STRING {
			w, err := p.parseWordTokens()
			if err != nil {
				return nil, err
			}
			s.Words = append(s.Words, w)
		}
	}
	p.skipSeparators()
	if err := p.expectKeyword("do"); err != nil {
		return nil, err
	}
	body, err := p.parseStmtList()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("done"); err != nil {
		return nil, err
	}
	s.Body = body
	return s, nil
}

func (p *Parser) parseCase() (Command, error) {
	pos := p.tokPos
	p.next()
	subj, err := p.parseWordTokens()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("in"); err != nil {
		return nil, err
	}
	c := &Case{CasePos: Pos(pos.Offset + 1), Subject: subj}
	p.skipSeparators()
	for !(p.tok == token.WORD && p.lit == "esac") && p.tok != token.EOF {
		if p.tok == token.LPAREN {
			p.next()
		}
		var arm CaseArm
		for {
			w, err := p.parseCasePatternWord()
			if err != nil {
				return nil, err
			}
			arm.Patterns = append(arm.Patterns, w)
			if p.tok == token.PIPE {
				p.next()
				continue
			}
			break
		}
		if p.tok != token.RPAREN {
			return nil, p.errorf("expected ')' after case pattern")
		}
		p.next()
		p.skipSeparators()
		stmts, err := p.parseStmtList()
		if err != nil {
			return nil, err
		}
		arm.Body = stmts
		switch p.tok {
		case token.DSEMI:
			arm.Term = CaseBreak
			p.next()
		case token.SEMIFALL:
			arm.Term = CaseFallthrough
			p.next()
		case token.DSEMIFALL:
			arm.Term = CaseContinueMatch
			p.next()
		default:
			arm.Term = CaseBreak
		}
		c.Arms = append(c.Arms, arm)
		p.skipSeparators()
	}
	if err := p.expectKeyword("esac"); err != nil {
		return nil, err
	}
	return c, nil
}

// parseCasePatternWord parses a pattern word, where `)` and `|` and
// whitespace terminate the word (spec §4.1: "case pattern list ...
// `)` is an arm terminator and `*` is a literal glob character").
func (p *Parser) parseCasePatternWord() (Word, error) {
	return p.parseWordTokens()
}

func (p *Parser) parseSubshell() (Command, error) {
	pos := p.tokPos
	p.next()
	stmts, err := p.parseStmtList()
	if err != nil {
		return nil, err
	}
	if p.tok != token.RPAREN {
		return nil, p.errorf("expected ')' to close subshell")
	}
	p.next()
	return &Subshell{LparenPos: Pos(pos.Offset + 1), Body: stmts}, nil
}

func (p *Parser) parseBraceGroup() (Command, error) {
	pos := p.tokPos
	p.next()
	stmts, err := p.parseStmtList()
	if err != nil {
		return nil, err
	}
	if !(p.tok == token.RBRACE) {
		return nil, p.errorf("expected '}' to close brace group")
	}
	p.next()
	return &BraceGroup{LbracePos: Pos(pos.Offset + 1), Body: stmts}, nil
}

func (p *Parser) parseArithCommand() (Command, error) {
	pos := p.tokPos
	// p.tok == DLPAREN already consumed both '(' characters.
	raw, err := p.scanBalancedDouble(token.DRPAREN)
	if err != nil {
		return nil, err
	}
	p.next()
	w := Word{Parts: []WordPart{&Literal{Text: raw}}}
	return &ArithCommand{LeftPos: Pos(pos.Offset + 1), Expr: w}, nil
}

// scanBalancedDouble scans raw characters (re-entering the cursor
// directly, bypassing token-based lexing) until the matching `))` is
// found, tracking paren depth so nested parens in the arithmetic
// expression do not confuse the scan. The caller is responsible for
// calling next() afterward to fetch the token that follows.
func (p *Parser) scanBalancedDouble(closeTok token.Kind) (string, error) {
	var buf []byte
	depth := 1
	for {
		if p.c.eof() {
			return "", p.errorf("unexpected EOF, wanted '))'")
		}
		b := p.c.peekByte()
		if b == '(' {
			depth++
		} else if b == ')' {
			if depth == 1 && p.c.peekAt(1) == ')' {
				p.c.advance()
				p.c.advance()
				return string(buf), nil
			}
			depth--
		}
		buf = append(buf, p.c.advance())
	}
}
