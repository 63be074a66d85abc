package syntax

import (
	"fmt"
	"strings"

	"github.com/kodflow/gosh/token"
)

// next fetches the next token into p.tok/p.lit/p.tokPos, driving both
// the simple operator/keyword recognition and (via lexWord) the
// composite-word assembly described in spec §4.2. Word assembly glues
// adjacent lexical fragments into one Word in a single pass instead of
// emitting a flat token stream and merging afterwards; the net result
// (one Word per maximal adjacent run, spec §4.2's "Composite word
// assembly") is identical, and avoids re-deriving a separate merge
// step. See lexer.go's doc comment for why lexer and parser share a
// cursor here, as in the teacher implementation.
func (p *Parser) next() {
	p.adjacent = !p.skipBlanks()
	if p.c.eof() {
		p.tok = token.EOF
		p.tokPos = p.c.position()
		p.setCommandPositionAfter(token.EOF, "")
		return
	}
	p.tokPos = p.c.position()
	b := p.c.peekByte()
	if b == '\n' {
		p.c.advance()
		p.tok = token.NEWLINE
		p.lit = "\n"
		p.collectHeredocsIfPending()
		p.commandPosition = true
		return
	}
	if b == '#' {
		for !p.c.eof() && p.c.peekByte() != '\n' {
			p.c.advance()
		}
		p.next()
		return
	}
	if kind, ok := p.tryOperator(); ok {
		p.tok = kind
		if p.lit == "" {
			p.lit = kind.String()
		}
		p.setCommandPositionAfter(kind, p.lit)
		return
	}
	p.lexWord()
	p.setCommandPositionAfter(p.tok, p.lit)
}

// setCommandPositionAfter implements spec's "command position": true
// after any operator/keyword/separator, false after an ordinary word
// or a redirection operator (whose target is never a command).
func (p *Parser) setCommandPositionAfter(kind token.Kind, lit string) {
	switch kind {
	case token.WORD:
		if _, isKeyword := token.Keywords[lit]; !isKeyword {
			p.commandPosition = false
			return
		}
	case token.LSS, token.GTR, token.SHL, token.SHR, token.DHEREDOC, token.WHEREDOC,
		token.RDRINOUT, token.DPLIN, token.DPLOUT, token.CLBOUT, token.RDRALL, token.APPALL,
		token.IO_NUMBER, token.CMDIN, token.CMDOUT:
		p.commandPosition = false
		return
	}
	p.commandPosition = true
}

// skipBlanks consumes inter-token whitespace and reports whether any
// was skipped, used to derive Token.AdjacentToPrev.
func (p *Parser) skipBlanks() bool {
	skipped := false
	for !p.c.eof() && isBlank(p.c.peekByte()) {
		p.c.advance()
		skipped = true
	}
	return skipped
}

func isWordBreakOrEOF(b byte) bool { return b == 0 || isWordBreak(b) }

// tryOperator recognizes the fixed shell operator set (spec §3.1).
func (p *Parser) tryOperator() (token.Kind, bool) {
	b := p.c.peekByte()
	switch b {
	case ';':
		if p.c.peekAt(1) == ';' {
			if p.c.peekAt(2) == '&' {
				p.c.advance()
				p.c.advance()
				p.c.advance()
				return token.DSEMIFALL, true
			}
			p.c.advance()
			p.c.advance()
			return token.DSEMI, true
		}
		if p.c.peekAt(1) == '&' {
			p.c.advance()
			p.c.advance()
			return token.SEMIFALL, true
		}
		p.c.advance()
		return token.SEMI, true
	case '&':
		if p.c.peekAt(1) == '&' {
			p.c.advance()
			p.c.advance()
			return token.LAND, true
		}
		if p.c.peekAt(1) == '>' {
			p.c.advance()
			p.c.advance()
			if p.c.peekByte() == '>' {
				p.c.advance()
				return token.APPALL, true
			}
			return token.RDRALL, true
		}
		p.c.advance()
		return token.AMP, true
	case '|':
		if p.c.peekAt(1) == '|' {
			p.c.advance()
			p.c.advance()
			return token.LOR, true
		}
		if p.c.peekAt(1) == '&' {
			p.c.advance()
			p.c.advance()
			return token.PIPEALL, true
		}
		p.c.advance()
		return token.PIPE, true
	case '(':
		if p.c.peekAt(1) == '(' && p.commandPosition {
			p.c.advance()
			p.c.advance()
			return token.DLPAREN, true
		}
		p.c.advance()
		return token.LPAREN, true
	case ')':
		p.c.advance()
		return token.RPAREN, true
	case '{':
		if p.commandPosition && isWordBreakOrEOF(p.c.peekAt(1)) {
			p.c.advance()
			return token.LBRACE, true
		}
	case '}':
		if isWordBreakOrEOF(p.c.peekAt(1)) {
			p.c.advance()
			return token.RBRACE, true
		}
	case '!':
		if isWordBreakOrEOF(p.c.peekAt(1)) {
			p.c.advance()
			return token.BANG, true
		}
	case '[':
		if p.c.peekAt(1) == '[' && p.commandPosition && isWordBreakOrEOF(p.c.peekAt(2)) {
			p.c.advance()
			p.c.advance()
			return token.DLBRACK, true
		}
	case ']':
		if p.c.peekAt(1) == ']' {
			p.c.advance()
			p.c.advance()
			return token.DRBRACK, true
		}
	case '<':
		return p.lexLessOps(), true
	case '>':
		return p.lexGreaterOps(), true
	default:
		if isDigit(b) {
			if k, ok := p.tryIONumber(); ok {
				return k, true
			}
		}
	}
	return token.ILLEGAL, false
}

func (p *Parser) lexLessOps() token.Kind {
	p.c.advance() // '<'
	switch p.c.peekByte() {
	case '<':
		p.c.advance()
		if p.c.peekByte() == '-' {
			p.c.advance()
			return token.DHEREDOC
		}
		if p.c.peekByte() == '<' {
			p.c.advance()
			return token.WHEREDOC
		}
		return token.SHL
	case '>':
		p.c.advance()
		return token.RDRINOUT
	case '&':
		p.c.advance()
		return token.DPLIN
	case '(':
		p.c.advance()
		return token.CMDIN
	}
	return token.LSS
}

func (p *Parser) lexGreaterOps() token.Kind {
	p.c.advance() // '>'
	switch p.c.peekByte() {
	case '>':
		p.c.advance()
		return token.SHR
	case '&':
		p.c.advance()
		return token.DPLOUT
	case '|':
		p.c.advance()
		return token.CLBOUT
	case '(':
		p.c.advance()
		return token.CMDOUT
	}
	return token.GTR
}

func (p *Parser) tryIONumber() (token.Kind, bool) {
	save := *p.c
	start := p.c.off
	for isDigit(p.c.peekByte()) {
		p.c.advance()
	}
	if p.c.peekByte() == '<' || p.c.peekByte() == '>' {
		p.lit = string(p.c.src[start:p.c.off])
		return token.IO_NUMBER, true
	}
	*p.c = save
	return token.ILLEGAL, false
}

// ---- word lexing ----

func containsGlobMeta(s string) bool {
	esc := false
	for i := 0; i < len(s); i++ {
		b := s[i]
		if esc {
			esc = false
			continue
		}
		if b == '\\' {
			esc = true
			continue
		}
		if b == '*' || b == '?' || b == '[' {
			return true
		}
	}
	return false
}

// lexWord scans a full composite word starting at the cursor, or, in
// command position, an ASSIGNMENT_WORD.
func (p *Parser) lexWord() {
	if p.commandPosition && p.tryConsumeAssignment() {
		return
	}
	startOff := p.c.off
	parts := p.scanWordParts()
	if len(parts) == 0 {
		parts = []WordPart{&Literal{ValuePos: Pos(startOff + 1)}}
	}
	p.wordParts = parts
	p.tok = token.WORD
	if len(parts) == 1 {
		if l, ok := parts[0].(*Literal); ok && l.QuoteKind == NoQuote {
			p.lit = l.Text
			return
		}
	}
	p.lit = ""
}

// scanWordParts implements the shared word-part scanning loop used for
// plain words, assignment values, array elements and heredoc
// delimiters.
func (p *Parser) scanWordParts() []WordPart {
	var parts []WordPart
	var lit []byte
	wordStartOff := p.c.off
	atWordStart := true
	flush := func() {
		if len(lit) == 0 {
			return
		}
		text := string(lit)
		if containsGlobMeta(text) {
			parts = append(parts, &Glob{ValuePos: Pos(wordStartOff + 1), Pattern: text})
		} else {
			parts = append(parts, &Literal{ValuePos: Pos(wordStartOff + 1), Text: text})
		}
		lit = nil
	}
	for {
		b := p.c.peekByte()
		if b == 0 || isWordBreak(b) {
			break
		}
		switch b {
		case '\'':
			flush()
			parts = append(parts, p.lexSingleQuoted())
			atWordStart = false
		case '"':
			flush()
			parts = append(parts, p.lexDoubleQuoted()...)
			atWordStart = false
		case '`':
			flush()
			parts = append(parts, p.lexBacktick())
			atWordStart = false
		case '$':
			flush()
			if wp := p.lexDollar(); wp != nil {
				parts = append(parts, wp)
			}
			atWordStart = false
		case '~':
			if atWordStart {
				flush()
				parts = append(parts, p.lexTilde())
				atWordStart = false
				continue
			}
			lit = append(lit, p.c.advance())
			atWordStart = false
		case '\\':
			p.c.advance()
			if p.c.eof() {
				lit = append(lit, '\\')
				break
			}
			lit = append(lit, '\\', p.c.advance())
			atWordStart = false
		case ':':
			lit = append(lit, p.c.advance())
			atWordStart = true
		default:
			lit = append(lit, p.c.advance())
			atWordStart = false
		}
	}
	flush()
	return parts
}

func (p *Parser) lexSingleQuoted() WordPart {
	pos := p.c.off
	p.c.advance() // opening '
	start := p.c.off
	for !p.c.eof() && p.c.peekByte() != '\'' {
		p.c.advance()
	}
	text := string(p.c.src[start:p.c.off])
	if !p.c.eof() {
		p.c.advance()
	}
	return &Literal{ValuePos: Pos(pos + 1), Text: text, QuoteKind: SingleQuote}
}

func (p *Parser) lexDoubleQuoted() []WordPart {
	var parts []WordPart
	var lit []byte
	pos := p.c.off
	p.c.advance() // opening "
	flush := func() {
		if len(lit) == 0 {
			return
		}
		parts = append(parts, &Literal{ValuePos: Pos(pos + 1), Text: string(lit), QuoteKind: DoubleQuote})
		lit = nil
	}
	for !p.c.eof() {
		b := p.c.peekByte()
		if b == '"' {
			p.c.advance()
			break
		}
		switch b {
		case '\\':
			nb := p.c.peekAt(1)
			switch nb {
			case '$', '`', '"', '\\':
				p.c.advance()
				p.c.advance()
				lit = append(lit, nb)
			default:
				lit = append(lit, p.c.advance())
			}
		case '$':
			flush()
			if wp := p.lexDollar(); wp != nil {
				markQuoted(wp, DoubleQuote)
				parts = append(parts, wp)
			}
		case '`':
			flush()
			bp := p.lexBacktick()
			markQuoted(bp, DoubleQuote)
			parts = append(parts, bp)
		default:
			lit = append(lit, p.c.advance())
		}
	}
	flush()
	if len(parts) == 0 {
		parts = []WordPart{&Literal{ValuePos: Pos(pos + 1), QuoteKind: DoubleQuote}}
	}
	return parts
}

func markQuoted(wp WordPart, q Quote) {
	switch v := wp.(type) {
	case *VariableRef:
		v.QuoteKind = q
	case *ParameterExpansion:
		v.QuoteKind = q
	case *CommandSubstitution:
		v.QuoteKind = q
	case *ArithmeticExpansion:
		v.QuoteKind = q
	}
}

func (p *Parser) lexBacktick() WordPart {
	pos := p.c.off
	p.c.advance() // opening `
	var buf []byte
	for !p.c.eof() {
		b := p.c.peekByte()
		if b == '`' {
			p.c.advance()
			break
		}
		if b == '\\' {
			nb := p.c.peekAt(1)
			if nb == '`' || nb == '\\' || nb == '$' {
				p.c.advance()
				buf = append(buf, p.c.advance())
				continue
			}
		}
		buf = append(buf, p.c.advance())
	}
	stmts := p.parseSubProgram(string(buf))
	return &CommandSubstitution{LeftPos: Pos(pos + 1), Backtick: true, Stmts: stmts}
}

func (p *Parser) parseSubProgram(text string) []*Stmt {
	sub := NewParser(p.aliases)
	f, _ := sub.Parse([]byte(text), p.filename)
	return f.Stmts
}

func (p *Parser) lexDollar() WordPart {
	pos := p.c.off
	p.c.advance() // '$'
	if p.c.eof() {
		return &Literal{ValuePos: Pos(pos + 1), Text: "$"}
	}
	b := p.c.peekByte()
	switch {
	case b == '(' && p.c.peekAt(1) == '(':
		p.c.advance()
		p.c.advance()
		raw := p.scanBalancedArith()
		return &ArithmeticExpansion{LeftPos: Pos(pos + 1), Expr: Word{Parts: []WordPart{&Literal{Text: raw}}}}
	case b == '(':
		p.c.advance()
		raw := p.scanBalancedParens()
		return &CommandSubstitution{LeftPos: Pos(pos + 1), Stmts: p.parseSubProgram(raw)}
	case b == '{':
		p.c.advance()
		return p.lexParamExpansion(pos)
	case b == '\'':
		p.c.advance()
		return p.lexAnsiCQuoted(pos)
	case isNameStart(b):
		start := p.c.off
		p.c.advance()
		for isNameCont(p.c.peekByte()) {
			p.c.advance()
		}
		return &VariableRef{DollarPos: Pos(pos + 1), Name: string(p.c.src[start:p.c.off])}
	case isDigit(b):
		p.c.advance()
		return &VariableRef{DollarPos: Pos(pos + 1), Name: string(b)}
	case b == '@' || b == '*' || b == '#' || b == '?' || b == '$' || b == '!' || b == '-' || b == '_':
		p.c.advance()
		return &VariableRef{DollarPos: Pos(pos + 1), Name: string(b)}
	default:
		return &Literal{ValuePos: Pos(pos + 1), Text: "$"}
	}
}

func (p *Parser) lexTilde() WordPart {
	pos := p.c.off
	p.c.advance() // '~'
	start := p.c.off
	for isNameCont(p.c.peekByte()) {
		p.c.advance()
	}
	return &TildePrefix{TildePos: Pos(pos + 1), User: string(p.c.src[start:p.c.off])}
}

func (p *Parser) lexAnsiCQuoted(pos int) WordPart {
	start := p.c.off
	for !p.c.eof() && p.c.peekByte() != '\'' {
		if p.c.peekByte() == '\\' {
			p.c.advance()
			if !p.c.eof() {
				p.c.advance()
			}
			continue
		}
		p.c.advance()
	}
	text := string(p.c.src[start:p.c.off])
	if !p.c.eof() {
		p.c.advance()
	}
	return &Literal{ValuePos: Pos(pos + 1), Text: text, QuoteKind: ANSICQuote}
}

// scanBalancedArith scans $(( ... )) content up to (not including) the
// matching "))", tracking nested parens.
func (p *Parser) scanBalancedArith() string {
	var buf []byte
	depth := 1
	for !p.c.eof() {
		b := p.c.peekByte()
		if b == '(' {
			depth++
		}
		if b == ')' {
			if depth == 1 && p.c.peekAt(1) == ')' {
				p.c.advance()
				p.c.advance()
				return string(buf)
			}
			depth--
		}
		buf = append(buf, p.c.advance())
	}
	return string(buf)
}

// scanBalancedParens scans $( ... ) content, skipping quoted regions so
// embedded parens in strings do not confuse the depth count.
func (p *Parser) scanBalancedParens() string {
	var buf []byte
	depth := 1
	for !p.c.eof() {
		b := p.c.peekByte()
		switch b {
		case '\\':
			buf = append(buf, p.c.advance())
			if !p.c.eof() {
				buf = append(buf, p.c.advance())
			}
		case '\'':
			buf = append(buf, p.c.advance())
			for !p.c.eof() && p.c.peekByte() != '\'' {
				buf = append(buf, p.c.advance())
			}
			if !p.c.eof() {
				buf = append(buf, p.c.advance())
			}
		case '"':
			buf = append(buf, p.c.advance())
			for !p.c.eof() && p.c.peekByte() != '"' {
				if p.c.peekByte() == '\\' {
					buf = append(buf, p.c.advance())
					if !p.c.eof() {
						buf = append(buf, p.c.advance())
					}
					continue
				}
				buf = append(buf, p.c.advance())
			}
			if !p.c.eof() {
				buf = append(buf, p.c.advance())
			}
		case '(':
			depth++
			buf = append(buf, p.c.advance())
		case ')':
			depth--
			if depth == 0 {
				p.c.advance()
				return string(buf)
			}
			buf = append(buf, p.c.advance())
		default:
			buf = append(buf, p.c.advance())
		}
	}
	return string(buf)
}

// scanBalancedBraces scans ${ ... } content analogously to
// scanBalancedParens, for brace nesting instead of parens.
func (p *Parser) scanBalancedBraces() string {
	var buf []byte
	depth := 1
	for !p.c.eof() {
		b := p.c.peekByte()
		switch b {
		case '\\':
			buf = append(buf, p.c.advance())
			if !p.c.eof() {
				buf = append(buf, p.c.advance())
			}
		case '\'':
			buf = append(buf, p.c.advance())
			for !p.c.eof() && p.c.peekByte() != '\'' {
				buf = append(buf, p.c.advance())
			}
			if !p.c.eof() {
				buf = append(buf, p.c.advance())
			}
		case '"':
			buf = append(buf, p.c.advance())
			for !p.c.eof() && p.c.peekByte() != '"' {
				if p.c.peekByte() == '\\' {
					buf = append(buf, p.c.advance())
					if !p.c.eof() {
						buf = append(buf, p.c.advance())
					}
					continue
				}
				buf = append(buf, p.c.advance())
			}
			if !p.c.eof() {
				buf = append(buf, p.c.advance())
			}
		case '{':
			depth++
			buf = append(buf, p.c.advance())
		case '}':
			depth--
			if depth == 0 {
				p.c.advance()
				return string(buf)
			}
			buf = append(buf, p.c.advance())
		default:
			buf = append(buf, p.c.advance())
		}
	}
	return string(buf)
}

func (p *Parser) lexParamExpansion(startOff int) WordPart {
	raw := p.scanBalancedBraces()
	pe, err := parseParamExpBody(raw)
	if err != nil {
		pe = &ParameterExpansion{Param: raw}
	}
	pe.DollarPos = Pos(startOff + 1)
	return pe
}

// ---- assignment-word scanning ----

// tryConsumeAssignment attempts to scan NAME[+]=value (or NAME[idx]=..)
// at the cursor. On success it sets p.tok = ASSIGNMENT_WORD and stores
// the parsed *Assign in p.pendingAssign; on failure it rewinds the
// cursor so the caller can fall back to plain word scanning.
func (p *Parser) tryConsumeAssignment() bool {
	save := *p.c
	if !isNameStart(p.c.peekByte()) {
		return false
	}
	nameStart := p.c.off
	p.c.advance()
	for isNameCont(p.c.peekByte()) {
		p.c.advance()
	}
	name := string(p.c.src[nameStart:p.c.off])

	var idx *Word
	if p.c.peekByte() == '[' {
		p.c.advance()
		istart := p.c.off
		depth := 1
		for depth > 0 {
			if p.c.eof() {
				*p.c = save
				return false
			}
			switch p.c.peekByte() {
			case '[':
				depth++
			case ']':
				depth--
				if depth == 0 {
					goto doneIdx
				}
			}
			p.c.advance()
		}
	doneIdx:
		idxText := string(p.c.src[istart:p.c.off])
		p.c.advance() // ']'
		if idxText != "" {
			w, _ := p.reparseWordText(idxText)
			idx = &w
		}
	}

	appnd := false
	if p.c.peekByte() == '+' && p.c.peekAt(1) == '=' {
		appnd = true
		p.c.advance()
	}
	if p.c.peekByte() != '=' {
		*p.c = save
		return false
	}
	p.c.advance() // '='

	a := &Assign{NamePos: Pos(save.off + 1), Name: name, Index: idx, Append: appnd}
	if p.c.peekByte() == '(' {
		p.c.advance()
		arr, err := p.lexArrayLiteralRaw()
		if err != nil {
			arr = &ArrayExpr{}
		}
		a.Array = arr
	} else {
		parts := p.scanWordParts()
		a.Value = &Word{Parts: parts}
	}
	p.pendingAssign = a
	p.tok = token.ASSIGNMENT_WORD
	p.lit = name
	return true
}

func (p *Parser) lexArrayLiteralRaw() (*ArrayExpr, error) {
	arr := &ArrayExpr{}
	for {
		p.skipArrayBlanks()
		if p.c.eof() {
			return arr, fmt.Errorf("unexpected EOF in array literal")
		}
		if p.c.peekByte() == ')' {
			p.c.advance()
			return arr, nil
		}
		var key *Word
		if p.c.peekByte() == '[' {
			save := *p.c
			p.c.advance()
			istart := p.c.off
			depth := 1
			ok := true
			for depth > 0 {
				if p.c.eof() {
					ok = false
					break
				}
				switch p.c.peekByte() {
				case '[':
					depth++
				case ']':
					depth--
				}
				if depth == 0 {
					break
				}
				p.c.advance()
			}
			if ok && p.c.peekByte() == ']' {
				idxText := string(p.c.src[istart:p.c.off])
				p.c.advance()
				if p.c.peekByte() == '=' {
					p.c.advance()
					w, _ := p.reparseWordText(idxText)
					key = &w
				} else {
					*p.c = save
				}
			} else {
				*p.c = save
			}
		}
		parts := p.scanWordParts()
		arr.Elems = append(arr.Elems, ArrayElem{Key: key, Value: Word{Parts: parts}})
	}
}

func (p *Parser) skipArrayBlanks() {
	for !p.c.eof() {
		switch p.c.peekByte() {
		case ' ', '\t', '\n':
			p.c.advance()
		default:
			return
		}
	}
}

// reparseWordText re-lexes a text fragment already carved out by raw
// cursor scanning (array indices, assignment RHS values handed to it
// from the token grammar) as a Word.
func (p *Parser) reparseWordText(text string) (Word, error) {
	if text == "" {
		return Word{}, nil
	}
	sub := NewParser(p.aliases)
	sub.c = newCursor([]byte(text))
	sub.filename = p.filename
	sub.commandPosition = false
	sub.next()
	if sub.tok != token.WORD {
		return Word{}, nil
	}
	return sub.parseWordTokens()
}

// ---- heredoc body collection ----

func (p *Parser) collectHeredocsIfPending() {
	if len(p.pendingHeredocs) == 0 {
		return
	}
	docs := p.pendingHeredocs
	p.pendingHeredocs = nil
	for _, h := range docs {
		var lines []string
		for {
			lineStart := p.c.off
			for !p.c.eof() && p.c.peekByte() != '\n' {
				p.c.advance()
			}
			line := string(p.c.src[lineStart:p.c.off])
			atEOF := p.c.eof()
			if !atEOF {
				p.c.advance() // consume '\n'
			}
			cmpLine := line
			if h.stripTabs {
				cmpLine = stripLeadingTabs(line)
			}
			if cmpLine == h.delim {
				break
			}
			if h.stripTabs {
				line = stripLeadingTabs(line)
			}
			lines = append(lines, line)
			if atEOF {
				break
			}
		}
		body := strings.Join(lines, "\n")
		if len(lines) > 0 {
			body += "\n"
		}
		if h.quoted {
			h.redir.Heredoc = Word{Parts: []WordPart{&Literal{Text: body, QuoteKind: SingleQuote}}}
		} else {
			sub := NewParser(p.aliases)
			h.redir.Heredoc = Word{Parts: sub.lexHeredocBodyParts(body)}
		}
	}
}

func stripLeadingTabs(s string) string {
	i := 0
	for i < len(s) && s[i] == '\t' {
		i++
	}
	return s[i:]
}

// lexHeredocBodyParts expands a heredoc body the way double-quoted
// text would (spec §4.2's heredoc handling: `$`, `` ` ``, `$(( ))` are
// expanded unless the delimiter was quoted).
func (p *Parser) lexHeredocBodyParts(body string) []WordPart {
	p.c = newCursor([]byte(body))
	var parts []WordPart
	var lit []byte
	flush := func() {
		if len(lit) == 0 {
			return
		}
		parts = append(parts, &Literal{Text: string(lit)})
		lit = nil
	}
	for !p.c.eof() {
		b := p.c.peekByte()
		switch b {
		case '\\':
			nb := p.c.peekAt(1)
			if nb == '$' || nb == '`' || nb == '\\' {
				p.c.advance()
				p.c.advance()
				lit = append(lit, nb)
			} else {
				lit = append(lit, p.c.advance())
			}
		case '$':
			flush()
			if wp := p.lexDollar(); wp != nil {
				parts = append(parts, wp)
			}
		case '`':
			flush()
			parts = append(parts, p.lexBacktick())
		default:
			lit = append(lit, p.c.advance())
		}
	}
	flush()
	return parts
}
