package interp

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kodflow/gosh/syntax"
)

// applyRedirects performs each redirection against r in order, returning a
// function that restores the Runner's streams to what they were before.
// Grounded on the teacher's `Runner.redir`/fd table, simplified to three
// named streams (0/1/2) since this implementation does not expose
// arbitrary numbered fds beyond those three (spec's Non-goals scope out
// fd juggling beyond 0/1/2 plus dup/close forms).
func (r *Runner) applyRedirects(redirs []*syntax.Redirect) (func(), error) {
	savedIn, savedOut, savedErr := r.Stdin, r.Stdout, r.Stderr
	restore := func() {
		r.Stdin, r.Stdout, r.Stderr = savedIn, savedOut, savedErr
	}
	var opened []io.Closer
	closeAll := func() {
		for _, c := range opened {
			c.Close()
		}
	}
	for _, rd := range redirs {
		if err := r.applyOneRedirect(rd, &opened); err != nil {
			closeAll()
			restore()
			return func() {}, err
		}
	}
	return func() {
		closeAll()
		restore()
	}, nil
}

func fdOf(rd *syntax.Redirect, def int) int {
	if rd.FD != nil {
		return *rd.FD
	}
	return def
}

func (r *Runner) applyOneRedirect(rd *syntax.Redirect, opened *[]io.Closer) error {
	switch rd.Op {
	case syntax.RedirLess:
		f, err := os.Open(r.literal(rd.Target))
		if err != nil {
			return err
		}
		*opened = append(*opened, f)
		r.assignFD(fdOf(rd, 0), f)
	case syntax.RedirGreat, syntax.RedirClobber:
		f, err := os.Create(r.literal(rd.Target))
		if err != nil {
			return err
		}
		*opened = append(*opened, f)
		r.assignFD(fdOf(rd, 1), f)
	case syntax.RedirAppend:
		f, err := os.OpenFile(r.literal(rd.Target), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		*opened = append(*opened, f)
		r.assignFD(fdOf(rd, 1), f)
	case syntax.RedirReadWrite:
		f, err := os.OpenFile(r.literal(rd.Target), os.O_RDWR|os.O_CREATE, 0644)
		if err != nil {
			return err
		}
		*opened = append(*opened, f)
		r.assignFD(fdOf(rd, 0), f)
	case syntax.RedirHeredoc, syntax.RedirHeredocTabs:
		// rd.HdocQuoted means the delimiter was quoted, so the parser
		// already built rd.Heredoc from Literal-only parts: Literal still
		// performs quote removal but no parameter/command/arithmetic
		// expansion happens on text that was never turned into an
		// expansion WordPart to begin with.
		body := r.literal(rd.Heredoc)
		if rd.Op == syntax.RedirHeredocTabs {
			body = stripLeadingTabs(body)
		}
		r.Stdin = strings.NewReader(body)
	case syntax.RedirHereString:
		r.Stdin = strings.NewReader(r.literal(rd.Target) + "\n")
	case syntax.RedirDupIn, syntax.RedirDupOut:
		target := r.literal(rd.Target)
		if target == "-" {
			return r.applyOneRedirect(&syntax.Redirect{FD: rd.FD, Op: closeOpFor(rd.Op)}, opened)
		}
		n, err := strconv.Atoi(target)
		if err != nil {
			return fmt.Errorf("%s: invalid fd", target)
		}
		r.assignFD(fdOf(rd, defaultFD(rd.Op)), r.streamFor(n))
	case syntax.RedirCloseIn:
		r.assignFD(fdOf(rd, 0), io.NopCloser(strings.NewReader("")))
	case syntax.RedirCloseOut:
		r.assignFD(fdOf(rd, 1), io.Discard)
	case syntax.RedirBoth, syntax.RedirBothAppend:
		flag := os.O_WRONLY | os.O_CREATE
		if rd.Op == syntax.RedirBothAppend {
			flag |= os.O_APPEND
		} else {
			flag |= os.O_TRUNC
		}
		f, err := os.OpenFile(r.literal(rd.Target), flag, 0644)
		if err != nil {
			return err
		}
		*opened = append(*opened, f)
		r.Stdout, r.Stderr = f, f
	}
	return nil
}

func closeOpFor(op syntax.RedirOp) syntax.RedirOp {
	if op == syntax.RedirDupIn {
		return syntax.RedirCloseIn
	}
	return syntax.RedirCloseOut
}

func defaultFD(op syntax.RedirOp) int {
	if op == syntax.RedirDupIn {
		return 0
	}
	return 1
}

func (r *Runner) streamFor(n int) any {
	switch n {
	case 0:
		return r.Stdin
	case 1:
		return r.Stdout
	case 2:
		return r.Stderr
	}
	return io.Discard
}

// assignFD wires an opened file/stream into the Runner's 0/1/2 slots.
func (r *Runner) assignFD(fd int, v any) {
	switch fd {
	case 0:
		if rd, ok := v.(io.Reader); ok {
			r.Stdin = rd
		}
	case 1:
		if w, ok := v.(io.Writer); ok {
			r.Stdout = w
		}
	case 2:
		if w, ok := v.(io.Writer); ok {
			r.Stderr = w
		}
	}
}

func stripLeadingTabs(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimLeft(l, "\t")
	}
	return strings.Join(lines, "\n")
}
