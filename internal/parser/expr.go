package parser

import (
	"strconv"

	"vvm/internal/ast"
	"vvm/internal/lexer"
)

// precedence levels, lowest to highest.
var binPrec = map[lexer.TokenType]int{
	lexer.TokOr:    1,
	lexer.TokAnd:   2,
	lexer.TokEq:    3,
	lexer.TokNeq:   3,
	lexer.TokLt:    4,
	lexer.TokLe:    4,
	lexer.TokGt:    4,
	lexer.TokGe:    4,
	lexer.TokPlus:  5,
	lexer.TokMinus: 5,
	lexer.TokStar:  6,
	lexer.TokSlash: 6,
	lexer.TokPercent: 6,
}

func (p *Parser) parseExpr() (ast.Expr, error) {
	return p.parseBinary(0)
}

func (p *Parser) parseBinary(minPrec int) (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tt := p.cur().Type
		prec, ok := binPrec[tt]
		if !ok || prec < minPrec {
			return left, nil
		}
		opTok := p.advance()
		right, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		if tt == lexer.TokAnd || tt == lexer.TokOr {
			lb := &ast.LogicalBinary{Op: string(tt), Left: left, Right: right}
			lb.Pos = pos(opTok)
			left = lb
		} else {
			b := &ast.Binary{Op: string(tt), Left: left, Right: right}
			b.Pos = pos(opTok)
			left = b
		}
	}
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	if p.at(lexer.TokMinus) || p.at(lexer.TokBang) {
		tok := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		u := &ast.Unary{Op: string(tok.Type), Operand: operand}
		u.Pos = pos(tok)
		return u, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().Type {
		case lexer.TokDot:
			dot := p.advance()
			name, err := p.expect(lexer.TokIdent)
			if err != nil {
				return nil, err
			}
			m := &ast.Member{Target: e, Name: name.Lit}
			m.Pos = pos(dot)
			e = m
		case lexer.TokLBracket:
			lb := p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.TokRBracket); err != nil {
				return nil, err
			}
			ix := &ast.Index{Target: e, Index: idx}
			ix.Pos = pos(lb)
			e = ix
		case lexer.TokLParen:
			call, err := p.finishCall(e, nil)
			if err != nil {
				return nil, err
			}
			e = call
		case lexer.TokLBrace:
			// Explicit template-instantiation call: `Name{T}(...)`. Only
			// consume as a call if a `(` follows the brace group, so a
			// bare `Name{...}` used as a type (e.g. inside a `data`
			// field) is left alone for the caller to interpret.
			save := p.pos
			p.advance()
			var targs []ast.Expr
			for !p.at(lexer.TokRBrace) {
				a, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				targs = append(targs, a)
				if p.at(lexer.TokComma) {
					p.advance()
					continue
				}
				break
			}
			if !p.at(lexer.TokRBrace) {
				p.pos = save
				return e, nil
			}
			p.advance() // }
			if !p.at(lexer.TokLParen) {
				p.pos = save
				return e, nil
			}
			call, err := p.finishCall(e, targs)
			if err != nil {
				return nil, err
			}
			e = call
		default:
			return e, nil
		}
	}
}

func (p *Parser) finishCall(callee ast.Expr, targs []ast.Expr) (ast.Expr, error) {
	start := p.advance() // (
	c := &ast.Call{Callee: callee, TemplateArgs: targs}
	c.Pos = pos(start)
	for !p.at(lexer.TokRParen) {
		a, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		c.Args = append(c.Args, a)
		if p.at(lexer.TokComma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.TokRParen); err != nil {
		return nil, err
	}
	return c, nil
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok := p.cur()
	switch tok.Type {
	case lexer.TokInt:
		p.advance()
		lit := &ast.Literal{Kind: ast.LitInt, Suffix: tok.Suffix}
		lit.Pos = pos(tok)
		v, err := strconv.ParseInt(tok.Lit, 10, 64)
		if err != nil {
			return nil, p.errf("invalid integer literal %q: %v", tok.Lit, err)
		}
		lit.Int = v
		lit.Str = tok.Lit
		return lit, nil
	case lexer.TokFloat:
		p.advance()
		lit := &ast.Literal{Kind: ast.LitFloat, Suffix: tok.Suffix}
		lit.Pos = pos(tok)
		f, err := strconv.ParseFloat(tok.Lit, 64)
		if err != nil {
			return nil, p.errf("invalid float literal %q: %v", tok.Lit, err)
		}
		lit.Float = f
		lit.Str = tok.Lit
		return lit, nil
	case lexer.TokString:
		p.advance()
		lit := &ast.Literal{Kind: ast.LitString, Str: tok.Lit}
		lit.Pos = pos(tok)
		return lit, nil
	case lexer.TokTrue, lexer.TokFalse:
		p.advance()
		lit := &ast.Literal{Kind: ast.LitBool, Bool: tok.Type == lexer.TokTrue}
		lit.Pos = pos(tok)
		return lit, nil
	case lexer.TokNil:
		p.advance()
		lit := &ast.Literal{Kind: ast.LitNil}
		lit.Pos = pos(tok)
		return lit, nil
	case lexer.TokLBracket:
		return p.parseArrayLit()
	case lexer.TokLParen:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokRParen); err != nil {
			return nil, err
		}
		return e, nil
	case lexer.TokIf:
		return p.parseIf()
	case lexer.TokFrom:
		return p.parseQuery()
	case lexer.TokSort:
		return p.parseSort()
	case lexer.TokJoin:
		return p.parseJoin()
	case lexer.TokLBrace:
		p.advance()
		b, err := p.parseBlockUntil(lexer.TokRBrace)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokRBrace); err != nil {
			return nil, err
		}
		return b, nil
	case lexer.TokIdent:
		p.advance()
		id := &ast.Ident{Name: tok.Lit}
		id.Pos = pos(tok)
		return id, nil
	}
	return nil, p.errf("unexpected token %s %q", tok.Type, tok.Lit)
}

func (p *Parser) parseArrayLit() (ast.Expr, error) {
	start := p.advance() // [
	lit := &ast.ArrayLit{}
	lit.Pos = pos(start)
	for !p.at(lexer.TokRBracket) {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		lit.Elements = append(lit.Elements, e)
		if p.at(lexer.TokComma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.TokRBracket); err != nil {
		return nil, err
	}
	return lit, nil
}

func (p *Parser) parseIf() (ast.Expr, error) {
	kw := p.advance()
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokColon); err != nil {
		return nil, err
	}
	then, err := p.parseBlockUntil(lexer.TokElif, lexer.TokElse, lexer.TokEnd)
	if err != nil {
		return nil, err
	}
	node := &ast.If{Cond: cond, Then: then}
	node.Pos = pos(kw)
	if p.at(lexer.TokElif) {
		elif, err := p.parseIf()
		if err != nil {
			return nil, err
		}
		node.ElseIf = elif.(*ast.If)
		return node, nil
	}
	if p.at(lexer.TokElse) {
		p.advance()
		if _, err := p.expect(lexer.TokColon); err != nil {
			return nil, err
		}
		els, err := p.parseBlockUntil(lexer.TokEnd)
		if err != nil {
			return nil, err
		}
		node.Else = els
	}
	if _, err := p.expect(lexer.TokEnd); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *Parser) parseColList() ([]ast.ColExpr, error) {
	var cols []ast.ColExpr
	for {
		var name string
		save := p.pos
		if p.at(lexer.TokIdent) {
			id := p.advance()
			if p.at(lexer.TokColon) {
				p.advance()
				name = id.Lit
			} else {
				p.pos = save
			}
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		cols = append(cols, ast.ColExpr{Name: name, Expr: e})
		if p.at(lexer.TokComma) {
			p.advance()
			continue
		}
		break
	}
	return cols, nil
}

func (p *Parser) parseExprList() ([]ast.Expr, error) {
	var es []ast.Expr
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		es = append(es, e)
		if p.at(lexer.TokComma) {
			p.advance()
			continue
		}
		break
	}
	return es, nil
}

func (p *Parser) parseQuery() (ast.Expr, error) {
	kw := p.advance() // from
	table, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	q := &ast.Query{Table: table}
	q.Pos = pos(kw)
	if p.at(lexer.TokSelect) {
		p.advance()
		cols, err := p.parseColList()
		if err != nil {
			return nil, err
		}
		q.Cols = cols
	}
	if p.at(lexer.TokBy) {
		p.advance()
		by, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		q.By = by
	}
	if p.at(lexer.TokWhere) {
		p.advance()
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		q.Where = w
	}
	return q, nil
}

func (p *Parser) parseSort() (ast.Expr, error) {
	kw := p.advance()
	table, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	s := &ast.Sort{Table: table}
	s.Pos = pos(kw)
	if _, err := p.expect(lexer.TokBy); err != nil {
		return nil, err
	}
	by, err := p.parseExprList()
	if err != nil {
		return nil, err
	}
	s.By = by
	return s, nil
}

func (p *Parser) parseJoin() (ast.Expr, error) {
	kw := p.advance()
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokComma); err != nil {
		return nil, err
	}
	right, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	j := &ast.Join{Left: left, Right: right}
	j.Pos = pos(kw)
	if p.at(lexer.TokOn) {
		p.advance()
		on, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		j.On = on
	}
	if p.at(lexer.TokAsof) {
		p.advance()
		l, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokEq); err == nil {
			// tolerate `asof l == r` phrasing; fall through to `,` form otherwise
		} else if _, err := p.expect(lexer.TokComma); err != nil {
			return nil, err
		}
		r, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		j.AsofLeft, j.AsofRight = l, r
	}
	if p.at(lexer.TokStrict) {
		p.advance()
		j.Strict = true
	}
	switch p.cur().Type {
	case lexer.TokBackward:
		p.advance()
		j.Direction = ast.DirBackward
	case lexer.TokForward:
		p.advance()
		j.Direction = ast.DirForward
	case lexer.TokNearest:
		p.advance()
		j.Direction = ast.DirNearest
	}
	if p.at(lexer.TokWithin) {
		p.advance()
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		j.Within = w
	}
	return j, nil
}
