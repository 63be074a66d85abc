package syntax

import (
	"fmt"
	"strings"

	"github.com/kodflow/gosh/token"
)

// lexState names the lexer's states (spec §4.1); the constants are not
// referenced anywhere. The "lexer" is a set of Parser methods driven
// character-by-character by the Parser itself: word assembly needs to
// recurse into statement parsing for `$( )`/`` ` ``, so the "lexer" and
// "parser" share one cursor, exactly as the teacher's implementation
// does. The current token lives in Parser.tok/lit/tokPos/adjacent; no
// token.Token values are built and Parser.ctx is never set.
type lexState int

const (
	lexNormal lexState = iota
	lexSingleQuote
	lexDoubleQuote
	lexParamExp
	lexArith
	lexBacktick
	lexHeredocBody
)

// SyntaxError is a lexer/parser error carrying a source position, per
// spec §4.1/§4.2's error contract.
type SyntaxError struct {
	Pos     token.Position
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}

// pendingHeredoc is a heredoc descriptor registered by the parser when
// it sees `<<`/`<<-`, to be filled in once the enclosing statement's
// terminating newline is reached (spec §4.2 "Heredoc handling").
type pendingHeredoc struct {
	redir      *Redirect
	delim      string
	stripTabs  bool
	quoted     bool
}

// cursor tracks the raw byte position plus derived line/column, so
// error messages and Token.Pos can report both.
type cursor struct {
	src  []byte
	off  int // next unread byte
	line int
	col  int
}

func newCursor(src []byte) *cursor {
	return &cursor{src: src, off: 0, line: 1, col: 1}
}

func (c *cursor) eof() bool { return c.off >= len(c.src) }

func (c *cursor) peekByte() byte {
	if c.eof() {
		return 0
	}
	return c.src[c.off]
}

func (c *cursor) peekAt(n int) byte {
	if c.off+n >= len(c.src) {
		return 0
	}
	return c.src[c.off+n]
}

func (c *cursor) advance() byte {
	b := c.src[c.off]
	c.off++
	if b == '\n' {
		c.line++
		c.col = 1
	} else {
		c.col++
	}
	return b
}

func (c *cursor) position() token.Position {
	return token.Position{Offset: c.off, Line: c.line, Column: c.col}
}

// isBlank reports whether b is inter-token whitespace (not newline).
func isBlank(b byte) bool { return b == ' ' || b == '\t' }

// isWordBreak reports whether b always ends an unquoted word.
func isWordBreak(b byte) bool {
	switch b {
	case 0, ' ', '\t', '\n', '\r', ';', '&', '|', '<', '>', '(', ')':
		return true
	}
	return false
}

// isNameStart/isNameCont implement POSIX shell identifier syntax, used
// both for assignment-word detection and parameter names.
func isNameStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isNameCont(b byte) bool {
	return isNameStart(b) || (b >= '0' && b <= '9')
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// skipLineContinuations removes `\<newline>` sequences from raw source
// before lexing proper begins (spec §2's preprocessing stage). There is
// no alias-expansion stage, and brace expansion runs later, during word
// expansion (expand/braces.go).
func skipLineContinuations(src string) string {
	if !strings.Contains(src, "\\\n") {
		return src
	}
	return strings.ReplaceAll(src, "\\\n", "")
}
