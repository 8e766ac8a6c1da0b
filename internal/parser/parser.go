// Package parser implements the one concrete producer of the untyped syntax
// tree (internal/ast) that spec §1 treats as an external collaborator.
// Structured as sentra/internal/parser/parser.go's recursive-descent,
// precedence-climbing design (see also stmt.go there for statement
// parsing), extended with this language's let/var/data/fn/generic/
// template/macro declarations and table-expression (query/sort/join)
// grammar, which Sentra's own grammar has no equivalent for.
package parser

import (
	"fmt"

	"vvm/internal/ast"
	"vvm/internal/lexer"
)

// ParseError is a single-line parse failure (spec §7).
type ParseError struct {
	Line, Col int
	Msg       string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg)
}

type Parser struct {
	toks []lexer.Token
	pos  int
}

// Parse lexes and parses a full module.
func Parse(src string) (*ast.Module, error) {
	sc := lexer.New(src)
	toks, err := sc.Tokenize()
	if err != nil {
		if se, ok := err.(*lexer.ScanError); ok {
			return nil, &ParseError{Line: se.Line, Col: se.Col, Msg: se.Msg}
		}
		return nil, err
	}
	p := &Parser{toks: toks}
	return p.parseModule()
}

func (p *Parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *Parser) at(t lexer.TokenType) bool { return p.cur().Type == t }
func (p *Parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) errf(format string, args ...interface{}) error {
	c := p.cur()
	return &ParseError{Line: c.Line, Col: c.Col, Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) expect(t lexer.TokenType) (lexer.Token, error) {
	if !p.at(t) {
		return lexer.Token{}, p.errf("expected %s, got %s %q", t, p.cur().Type, p.cur().Lit)
	}
	return p.advance(), nil
}

func pos(t lexer.Token) ast.Pos { return ast.Pos{Line: t.Line, Col: t.Col} }

func (p *Parser) parseModule() (*ast.Module, error) {
	mod := &ast.Module{}
	for !p.at(lexer.TokEOF) {
		st, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		mod.Stmts = append(mod.Stmts, st)
	}
	return mod, nil
}

func (p *Parser) parseBlockUntil(terms ...lexer.TokenType) (*ast.Block, error) {
	start := p.cur()
	b := &ast.Block{}
	b.Pos = pos(start)
	for {
		for _, t := range terms {
			if p.at(t) {
				return b, nil
			}
		}
		if p.at(lexer.TokEOF) {
			return nil, p.errf("unexpected end of input in block")
		}
		st, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		b.Stmts = append(b.Stmts, st)
	}
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	switch p.cur().Type {
	case lexer.TokLet, lexer.TokVar:
		return p.parseLetDecl()
	case lexer.TokData:
		return p.parseDataDecl()
	case lexer.TokFn, lexer.TokInline, lexer.TokMacro:
		return p.parseFnDecl()
	case lexer.TokWhile:
		return p.parseWhile()
	case lexer.TokReturn:
		return p.parseReturn()
	default:
		return p.parseExprOrAssignStmt()
	}
}

func (p *Parser) parseLetDecl() (ast.Stmt, error) {
	kw := p.advance()
	mutable := kw.Type == lexer.TokVar
	name, err := p.expect(lexer.TokIdent)
	if err != nil {
		return nil, err
	}
	decl := &ast.LetDecl{Name: name.Lit, Mutable: mutable}
	decl.Pos = pos(kw)
	if p.at(lexer.TokColon) {
		p.advance()
		te, err := p.parseTypeExpr()
		if err != nil {
			return nil, err
		}
		decl.Type = te
	}
	if _, err := p.expect(lexer.TokAssign); err != nil {
		return nil, err
	}
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	decl.Value = val
	return decl, nil
}

func (p *Parser) parseTemplateParams() ([]ast.TemplateParam, error) {
	// `<T, N: Int64>` generic/template parameter list.
	if _, err := p.expect(lexer.TokLt); err != nil {
		return nil, err
	}
	var params []ast.TemplateParam
	for !p.at(lexer.TokGt) {
		name, err := p.expect(lexer.TokIdent)
		if err != nil {
			return nil, err
		}
		tp := ast.TemplateParam{Name: name.Lit}
		if p.at(lexer.TokColon) {
			p.advance()
			te, err := p.parseTypeExpr()
			if err != nil {
				return nil, err
			}
			tp.Type = te
		}
		params = append(params, tp)
		if p.at(lexer.TokComma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.TokGt); err != nil {
		return nil, err
	}
	return params, nil
}

func (p *Parser) parseDataDecl() (ast.Stmt, error) {
	kw := p.advance()
	name, err := p.expect(lexer.TokIdent)
	if err != nil {
		return nil, err
	}
	decl := &ast.DataDecl{Name: name.Lit}
	decl.Pos = pos(kw)
	if p.at(lexer.TokLBrace) {
		// `data Name{T, N}: ...` — reuse `{...}` template-parameter shape
		// (distinct token from `<...>` so data templates read like their
		// call-site instantiation `Name{Float64}(...)`).
		p.advance()
		for !p.at(lexer.TokRBrace) {
			tn, err := p.expect(lexer.TokIdent)
			if err != nil {
				return nil, err
			}
			tp := ast.TemplateParam{Name: tn.Lit}
			if p.at(lexer.TokColon) {
				p.advance()
				te, err := p.parseTypeExpr()
				if err != nil {
					return nil, err
				}
				tp.Type = te
			}
			decl.TemplateParams = append(decl.TemplateParams, tp)
			if p.at(lexer.TokComma) {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(lexer.TokRBrace); err != nil {
			return nil, err
		}
	}
	if p.at(lexer.TokAssign) {
		p.advance()
		te, err := p.parseTypeExpr()
		if err != nil {
			return nil, err
		}
		decl.Alias = te
		return decl, nil
	}
	if _, err := p.expect(lexer.TokColon); err != nil {
		return nil, err
	}
	for !p.at(lexer.TokEnd) {
		fname, err := p.expect(lexer.TokIdent)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokColon); err != nil {
			return nil, err
		}
		fty, err := p.parseTypeExpr()
		if err != nil {
			return nil, err
		}
		decl.Fields = append(decl.Fields, ast.FieldDecl{Name: fname.Lit, Type: fty})
		if p.at(lexer.TokComma) {
			p.advance()
		}
	}
	if _, err := p.expect(lexer.TokEnd); err != nil {
		return nil, err
	}
	return decl, nil
}

func (p *Parser) parseTypeExpr() (*ast.TypeExpr, error) {
	if p.at(lexer.TokLBracket) {
		start := p.advance()
		inner, err := p.parseTypeExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokRBracket); err != nil {
			return nil, err
		}
		te := &ast.TypeExpr{ArrayOf: inner}
		te.Pos = pos(start)
		return te, nil
	}
	name, err := p.expect(lexer.TokIdent)
	if err != nil {
		return nil, err
	}
	te := &ast.TypeExpr{Name: name.Lit}
	te.Pos = pos(name)
	if p.at(lexer.TokLBrace) {
		p.advance()
		for !p.at(lexer.TokRBrace) {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			te.TemplateArgs = append(te.TemplateArgs, arg)
			if p.at(lexer.TokComma) {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(lexer.TokRBrace); err != nil {
			return nil, err
		}
	}
	return te, nil
}

func (p *Parser) parseFnDecl() (ast.Stmt, error) {
	forceInline := false
	isMacro := false
	start := p.cur()
	if p.at(lexer.TokInline) {
		forceInline = true
		p.advance()
	}
	if p.at(lexer.TokMacro) {
		isMacro = true
		p.advance()
	}
	if _, err := p.expect(lexer.TokFn); err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.TokIdent)
	if err != nil {
		return nil, err
	}
	decl := &ast.FnDecl{Name: name.Lit, ForceInline: forceInline}
	decl.Pos = pos(start)
	if p.at(lexer.TokLt) {
		tps, err := p.parseTemplateParams()
		if err != nil {
			return nil, err
		}
		decl.TemplateParams = tps
	}
	if _, err := p.expect(lexer.TokLParen); err != nil {
		return nil, err
	}
	for !p.at(lexer.TokRParen) {
		pname, err := p.expect(lexer.TokIdent)
		if err != nil {
			return nil, err
		}
		param := ast.Param{Name: pname.Lit}
		if isMacro {
			param.MacroParameter = true
		}
		if p.at(lexer.TokColon) {
			p.advance()
			te, err := p.parseTypeExpr()
			if err != nil {
				return nil, err
			}
			param.Type = te
		}
		decl.Params = append(decl.Params, param)
		if p.at(lexer.TokComma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.TokRParen); err != nil {
		return nil, err
	}
	if !p.at(lexer.TokAssign) && !p.at(lexer.TokColon) && !p.at(lexer.TokEnd) {
		te, err := p.parseTypeExpr()
		if err != nil {
			return nil, err
		}
		decl.ReturnType = te
	}
	if p.at(lexer.TokAssign) {
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		decl.BodyExpr = e
		return decl, nil
	}
	if _, err := p.expect(lexer.TokColon); err != nil {
		return nil, err
	}
	body, err := p.parseBlockUntil(lexer.TokEnd)
	if err != nil {
		return nil, err
	}
	decl.Body = body
	if _, err := p.expect(lexer.TokEnd); err != nil {
		return nil, err
	}
	return decl, nil
}

func (p *Parser) parseWhile() (ast.Stmt, error) {
	kw := p.advance()
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokColon); err != nil {
		return nil, err
	}
	body, err := p.parseBlockUntil(lexer.TokEnd)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokEnd); err != nil {
		return nil, err
	}
	w := &ast.While{Cond: cond, Body: body}
	w.Pos = pos(kw)
	return w, nil
}

func (p *Parser) parseReturn() (ast.Stmt, error) {
	kw := p.advance()
	r := &ast.Return{}
	r.Pos = pos(kw)
	if p.at(lexer.TokEOF) || p.at(lexer.TokEnd) {
		return r, nil
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	r.Value = e
	return r, nil
}

var assignOps = map[lexer.TokenType]string{
	lexer.TokAssign:  "",
	lexer.TokPlusEq:  "+=",
	lexer.TokMinusEq: "-=",
	lexer.TokStarEq:  "*=",
	lexer.TokSlashEq: "/=",
}

func (p *Parser) parseExprOrAssignStmt() (ast.Stmt, error) {
	start := p.cur()
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if op, ok := assignOps[p.cur().Type]; ok {
		p.advance()
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		a := &ast.Assign{Target: e, Op: op, Value: val}
		a.Pos = pos(start)
		return a, nil
	}
	es := &ast.ExprStmt{X: e}
	es.Pos = pos(start)
	return es, nil
}
