// Copyright 2024 The EDB Authors
// This file is part of EDB.
//
// EDB is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// EDB is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with EDB. If not, see <http://www.gnu.org/licenses/>.

package eval

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"text/scanner"
)

// parser is a recursive-descent, precedence-climbing parser over a Solidity
// expression string, built on the standard library's text/scanner
// tokenizer. No ecosystem Solidity-grammar parser in this module's
// dependency graph exposes a walkable expression AST without code
// generation (see the eval package note in the design ledger), so this
// narrow, self-contained concern is hand-rolled on stdlib tokenization —
// the same stance `compiler/diagnostics.go` takes for solc's own
// free-form diagnostic text.
type parser struct {
	sc   scanner.Scanner
	tok  rune
	text string
}

// Parse parses expr (a single Solidity expression, not a statement or
// function body) into an AST.
func Parse(expr string) (Expr, error) {
	p := &parser{}
	p.sc.Init(strings.NewReader(expr))
	p.sc.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats | scanner.ScanStrings | scanner.ScanChars
	p.sc.Error = func(*scanner.Scanner, string) {} // surfaced via malformed tokens instead
	p.next()

	e, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if p.tok != scanner.EOF {
		return nil, fmt.Errorf("unexpected trailing input %q", p.text)
	}
	return e, nil
}

func (p *parser) next() {
	p.tok = p.sc.Scan()
	p.text = p.sc.TokenText()
	// text/scanner yields operator characters one at a time; join the
	// two-character operators the grammar uses.
	switch two := p.text + string(p.sc.Peek()); two {
	case "&&", "||", "==", "!=", "<=", ">=":
		p.sc.Next()
		p.text = two
	}
}

func (p *parser) expect(text string) error {
	if p.text != text {
		return fmt.Errorf("expected %q, got %q", text, p.text)
	}
	p.next()
	return nil
}

// parseTernary handles `cond ? then : else`, the lowest-precedence operator.
func (p *parser) parseTernary() (Expr, error) {
	cond, err := p.parseBinary(0)
	if err != nil {
		return nil, err
	}
	if p.text != "?" {
		return cond, nil
	}
	p.next()
	thenE, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if err := p.expect(":"); err != nil {
		return nil, err
	}
	elseE, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	return TernaryExpr{Cond: cond, Then: thenE, Else: elseE}, nil
}

// precedence climbing, lowest to highest.
var binaryPrecedence = map[string]int{
	"||": 1,
	"&&": 2,
	"==": 3, "!=": 3,
	"<": 4, "<=": 4, ">": 4, ">=": 4,
	"+": 5, "-": 5,
	"*": 6, "/": 6, "%": 6,
}

func (p *parser) parseBinary(minPrec int) (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.text
		prec, ok := binaryPrecedence[op]
		if !ok || prec < minPrec {
			return left, nil
		}
		p.next()
		right, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (Expr, error) {
	if p.text == "-" || p.text == "!" {
		op := p.text
		p.next()
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return UnaryExpr{Op: op, Expr: e}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.text {
		case ".":
			p.next()
			if p.tok != scanner.Ident {
				return nil, fmt.Errorf("expected identifier after '.', got %q", p.text)
			}
			name := p.text
			p.next()
			e = MemberExpr{Base: e, Name: name}
		case "[":
			p.next()
			idx, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			e = IndexExpr{Base: e, Index: idx}
		case "(":
			p.next()
			var args []Expr
			if p.text != ")" {
				for {
					arg, err := p.parseTernary()
					if err != nil {
						return nil, err
					}
					args = append(args, arg)
					if p.text != "," {
						break
					}
					p.next()
				}
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			e = CallExpr{Callee: e, Args: args}
		default:
			return e, nil
		}
	}
}

func (p *parser) parsePrimary() (Expr, error) {
	switch {
	case p.text == "(":
		p.next()
		e, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return e, nil
	case p.text == "true" || p.text == "false":
		v := p.text == "true"
		p.next()
		return BoolLit{Value: v}, nil
	case p.tok == scanner.String || p.tok == scanner.Char:
		s, err := strconv.Unquote(p.text)
		if err != nil {
			s = strings.Trim(p.text, "\"'")
		}
		p.next()
		return StringLit{Value: s}, nil
	case p.tok == scanner.Int:
		text := p.text
		p.next()
		if strings.HasPrefix(text, "0x") && len(text) == 42 {
			return AddressLit{Hex: text}, nil
		}
		n, ok := new(big.Int).SetString(text, 0)
		if !ok {
			return nil, fmt.Errorf("malformed integer literal %q", text)
		}
		return IntLit{Value: n}, nil
	case p.tok == scanner.Ident:
		name := p.text
		p.next()
		return IdentExpr{Name: name}, nil
	default:
		return nil, fmt.Errorf("unexpected token %q", p.text)
	}
}
