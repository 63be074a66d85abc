package interp

import (
	"os"
	"regexp"

	"github.com/kodflow/gosh/expand"
	"github.com/kodflow/gosh/syntax"
)

// evalTest evaluates a `[[ ]]` test expression (spec §3.3), recursing
// through TestExpr the way the parser built it (unary/binary file and
// string tests, `&&`/`||`, `!`, and parenthesized grouping).
func (r *Runner) evalTest(e syntax.TestExpr) bool {
	switch e := e.(type) {
	case *syntax.TestWord:
		return r.literal(e.W) != ""
	case *syntax.TestParen:
		return r.evalTest(e.X)
	case *syntax.TestUnary:
		if e.Op == syntax.TestNot {
			return !r.evalTest(e.X)
		}
		return r.evalUnaryTest(e.Op, e.X)
	case *syntax.TestBinary:
		return r.evalBinaryTest(e)
	}
	return false
}

func (r *Runner) operand(e syntax.TestExpr) string {
	if tw, ok := e.(*syntax.TestWord); ok {
		return r.literal(tw.W)
	}
	// A file-test unary op's operand is itself wrapped as a TestExpr by
	// the parser (uniform grammar); unwrap parens defensively.
	if tp, ok := e.(*syntax.TestParen); ok {
		return r.operand(tp.X)
	}
	return ""
}

func (r *Runner) evalUnaryTest(op syntax.TestUnaryOp, x syntax.TestExpr) bool {
	s := r.operand(x)
	switch op {
	case syntax.TestStrEmpty:
		return s == ""
	case syntax.TestStrNonEmpty:
		return s != ""
	case syntax.TestFileExists:
		_, err := os.Stat(s)
		return err == nil
	case syntax.TestRegularFile:
		info, err := os.Stat(s)
		return err == nil && info.Mode().IsRegular()
	case syntax.TestDirectory:
		info, err := os.Stat(s)
		return err == nil && info.IsDir()
	case syntax.TestReadable:
		f, err := os.Open(s)
		if err == nil {
			f.Close()
		}
		return err == nil
	case syntax.TestWritable:
		return isWritable(s)
	case syntax.TestExecutable:
		info, err := os.Stat(s)
		return err == nil && info.Mode()&0111 != 0
	case syntax.TestNonEmptyFile:
		info, err := os.Stat(s)
		return err == nil && info.Size() > 0
	}
	return false
}

func isWritable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().Perm()&0200 != 0
}

func (r *Runner) evalBinaryTest(b *syntax.TestBinary) bool {
	switch b.Op {
	case syntax.TestAnd:
		return r.evalTest(b.X) && r.evalTest(b.Y)
	case syntax.TestOr:
		return r.evalTest(b.X) || r.evalTest(b.Y)
	}
	x, y := r.operand(b.X), r.operand(b.Y)
	switch b.Op {
	case syntax.TestEq:
		return expand.MatchPattern(y, x)
	case syntax.TestNe:
		return !expand.MatchPattern(y, x)
	case syntax.TestLt:
		return x < y
	case syntax.TestGt:
		return x > y
	case syntax.TestRegex:
		re, err := regexp.Compile(y)
		if err != nil {
			return false
		}
		return re.MatchString(x)
	case syntax.TestArithEq, syntax.TestArithNe, syntax.TestArithLt,
		syntax.TestArithLe, syntax.TestArithGt, syntax.TestArithGe:
		xn := r.arithLiteral(x)
		yn := r.arithLiteral(y)
		switch b.Op {
		case syntax.TestArithEq:
			return xn == yn
		case syntax.TestArithNe:
			return xn != yn
		case syntax.TestArithLt:
			return xn < yn
		case syntax.TestArithLe:
			return xn <= yn
		case syntax.TestArithGt:
			return xn > yn
		case syntax.TestArithGe:
			return xn >= yn
		}
	}
	return false
}

func (r *Runner) arithLiteral(s string) int64 {
	n, err := expand.EvalArith(r.cfg(), s)
	if err != nil {
		return 0
	}
	return n
}
