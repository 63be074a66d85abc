package syntax

import "github.com/kodflow/gosh/token"

// parseTestCommand parses `[[ expr ]]` (spec §3.3/§4.4's extended test
// command). p.tok == DLBRACK on entry; both '[' characters are already
// consumed.
func (p *Parser) parseTestCommand() (Command, error) {
	pos := p.tokPos
	p.next() // fetch first token of the test expression
	expr, err := p.parseTestOr()
	if err != nil {
		return nil, err
	}
	if p.tok != token.DRBRACK {
		return nil, p.errorf("expected ']]', found %q", p.lit)
	}
	p.next()
	return &TestCommand{LeftPos: Pos(pos.Offset + 1), Expr: expr}, nil
}

func (p *Parser) parseTestOr() (TestExpr, error) {
	left, err := p.parseTestAnd()
	if err != nil {
		return nil, err
	}
	for p.tok == token.LOR {
		p.next()
		right, err := p.parseTestAnd()
		if err != nil {
			return nil, err
		}
		left = &TestBinary{Op: TestOr, X: left, Y: right}
	}
	return left, nil
}

func (p *Parser) parseTestAnd() (TestExpr, error) {
	left, err := p.parseTestNot()
	if err != nil {
		return nil, err
	}
	for p.tok == token.LAND {
		p.next()
		right, err := p.parseTestNot()
		if err != nil {
			return nil, err
		}
		left = &TestBinary{Op: TestAnd, X: left, Y: right}
	}
	return left, nil
}

func (p *Parser) parseTestNot() (TestExpr, error) {
	if p.tok == token.BANG || (p.tok == token.WORD && p.lit == "!") {
		opPos := p.tokPos
		p.next()
		x, err := p.parseTestNot()
		if err != nil {
			return nil, err
		}
		return &TestUnary{OpPos: Pos(opPos.Offset + 1), Op: TestNot, X: x}, nil
	}
	return p.parseTestPrimary()
}

var testUnaryOps = map[string]TestUnaryOp{
	"-z": TestStrEmpty, "-n": TestStrNonEmpty,
	"-e": TestFileExists, "-f": TestRegularFile, "-d": TestDirectory,
	"-r": TestReadable, "-w": TestWritable, "-x": TestExecutable,
	"-s": TestNonEmptyFile,
}

var testArithBinOps = map[string]TestBinaryOp{
	"-eq": TestArithEq, "-ne": TestArithNe, "-lt": TestArithLt,
	"-le": TestArithLe, "-gt": TestArithGt, "-ge": TestArithGe,
}

func (p *Parser) parseTestPrimary() (TestExpr, error) {
	if p.tok == token.LPAREN {
		lp := p.tokPos
		p.next()
		x, err := p.parseTestOr()
		if err != nil {
			return nil, err
		}
		if p.tok != token.RPAREN {
			return nil, p.errorf("expected ')' in test expression, found %q", p.lit)
		}
		p.next()
		return &TestParen{LparenPos: Pos(lp.Offset + 1), X: x}, nil
	}
	if p.tok == token.WORD {
		if op, ok := testUnaryOps[p.lit]; ok {
			opPos := p.tokPos
			p.next()
			operand, err := p.parseWordTokens()
			if err != nil {
				return nil, err
			}
			return &TestUnary{OpPos: Pos(opPos.Offset + 1), Op: op, X: &TestWord{W: operand}}, nil
		}
	}
	left, err := p.parseWordTokens()
	if err != nil {
		return nil, err
	}
	if p.tok == token.WORD {
		switch p.lit {
		case "=", "==":
			p.next()
			right, err := p.parseWordTokens()
			if err != nil {
				return nil, err
			}
			return &TestBinary{Op: TestEq, X: &TestWord{W: left}, Y: &TestWord{W: right}}, nil
		case "!=":
			p.next()
			right, err := p.parseWordTokens()
			if err != nil {
				return nil, err
			}
			return &TestBinary{Op: TestNe, X: &TestWord{W: left}, Y: &TestWord{W: right}}, nil
		case "=~":
			p.next()
			right, err := p.parseWordTokens()
			if err != nil {
				return nil, err
			}
			return &TestBinary{Op: TestRegex, X: &TestWord{W: left}, Y: &TestWord{W: right}}, nil
		}
		if bop, ok := testArithBinOps[p.lit]; ok {
			p.next()
			right, err := p.parseWordTokens()
			if err != nil {
				return nil, err
			}
			return &TestBinary{Op: bop, X: &TestWord{W: left}, Y: &TestWord{W: right}}, nil
		}
	}
	switch p.tok {
	case token.LSS:
		p.next()
		right, err := p.parseWordTokens()
		if err != nil {
			return nil, err
		}
		return &TestBinary{Op: TestLt, X: &TestWord{W: left}, Y: &TestWord{W: right}}, nil
	case token.GTR:
		p.next()
		right, err := p.parseWordTokens()
		if err != nil {
			return nil, err
		}
		return &TestBinary{Op: TestGt, X: &TestWord{W: left}, Y: &TestWord{W: right}}, nil
	}
	return &TestWord{W: left}, nil
}
