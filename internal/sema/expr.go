package sema

import (
	"fmt"

	"vvm/internal/ast"
	"vvm/internal/hir"
	"vvm/internal/langtypes"
)

func (a *Analyzer) analyzeExpr(e ast.Expr, scope *Scope) (hir.Expr, error) {
	switch n := e.(type) {
	case *ast.Literal:
		return a.analyzeLiteral(n)
	case *ast.Ident:
		return a.analyzeIdent(n, scope)
	case *ast.ArrayLit:
		return a.analyzeArrayLit(n, scope)
	case *ast.Unary:
		return a.analyzeUnary(n, scope)
	case *ast.Binary:
		return a.analyzeBinary(n, scope)
	case *ast.LogicalBinary:
		return a.analyzeLogical(n, scope)
	case *ast.Call:
		return a.analyzeCall(n, scope)
	case *ast.Member:
		return a.analyzeMember(n, scope)
	case *ast.Index:
		return a.analyzeIndex(n, scope)
	case *ast.If:
		return a.analyzeIf(n, scope)
	case *ast.Block:
		inner := a.pushScope()
		b, err := a.analyzeBlock(n, inner)
		a.popScope(scope)
		if err != nil {
			return nil, err
		}
		return b, nil
	case *ast.Query:
		return a.analyzeQuery(n, scope)
	case *ast.Sort:
		return a.analyzeSort(n, scope)
	case *ast.Join:
		return a.analyzeJoin(n, scope)
	default:
		a.errorf(e, "unsupported expression")
		return nil, fmt.Errorf("unsupported expression")
	}
}

func (a *Analyzer) analyzeLiteral(n *ast.Literal) (hir.Expr, error) {
	lit := &hir.Lit{Bool: n.Bool, Int: n.Int, Float: n.Float, Str: n.Str}
	switch n.Kind {
	case ast.LitBool:
		lit.Type = langtypes.Builtin(langtypes.Bool, langtypes.Scalar)
		lit.Literal = &hir.ComptimeLiteral{Type: lit.Type, Bool: n.Bool}
	case ast.LitInt:
		lit.Type = langtypes.Builtin(langtypes.Int64, langtypes.Scalar)
		lit.Literal = &hir.ComptimeLiteral{Type: lit.Type, Int: n.Int}
	case ast.LitFloat:
		lit.Type = langtypes.Builtin(langtypes.Float64, langtypes.Scalar)
		// Floating-point is deliberately not CTFE-evaluated (spec §4.1): no
		// ComptimeLiteral attached even though the mode below is Comptime.
	case ast.LitString:
		lit.Type = langtypes.Builtin(langtypes.String, langtypes.Scalar)
		lit.Literal = &hir.ComptimeLiteral{Type: lit.Type, Str: n.Str}
	case ast.LitNil:
		lit.Type = langtypes.Builtin(langtypes.Int64, langtypes.Scalar)
	}
	if n.Suffix != "" {
		t, ok := a.resolveLiteralSuffix(n.Suffix, lit.Type)
		if !ok {
			a.errorf(n, "unknown literal suffix %q", n.Suffix)
			return nil, fmt.Errorf("unknown suffix")
		}
		lit.Type = t
		if unit, ok := map[string]int64{"d": 86400e9, "h": 3600e9, "m": 60e9, "s": 1e9, "ms": 1e6, "us": 1e3, "ns": 1}[n.Suffix]; ok && n.Kind == ast.LitInt {
			lit.Int *= unit
			lit.Literal = &hir.ComptimeLiteral{Type: t, Int: lit.Int}
		}
	}
	lit.Mode = hir.Comptime
	lit.Traits = hir.Traits(hir.Pure)
	lit.DisplayName = n.Str
	return lit, nil
}

// resolveLiteralSuffix resolves a user-defined literal suffix (spec §1) by
// looking up a data-type constructor registered under that suffix name;
// builtin suffixes ("d" for Timedelta-days-as-nanoseconds) are recognised
// directly.
func (a *Analyzer) resolveLiteralSuffix(suffix string, base langtypes.TypeCode) (langtypes.TypeCode, bool) {
	switch suffix {
	case "d", "h", "m", "s", "ms", "us", "ns":
		return langtypes.Builtin(langtypes.Timedelta, langtypes.Scalar), true
	}
	refs, _, _ := a.current.lookup(suffix)
	for _, r := range refs {
		if r.Kind == RefData && r.Data != nil {
			return r.Data.Type, true
		}
	}
	return base, false
}

func (a *Analyzer) analyzeIdent(n *ast.Ident, scope *Scope) (hir.Expr, error) {
	refs, foundScope, implied := scope.lookup(n.Name)
	if len(refs) == 0 {
		a.errorf(n, "undefined name %q", n.Name)
		return nil, fmt.Errorf("undefined name")
	}
	for _, r := range refs {
		if r.Kind == RefVar {
			ref := &hir.IdentRef{Name: n.Name, Decl: r.Decl}
			ref.Type = r.Decl.Type
			ref.Traits = r.Decl.Traits
			ref.Mode = r.Decl.Mode
			ref.Literal = r.Decl.Literal
			ref.DisplayName = n.Name
			if implied {
				_ = foundScope // reserved: implied-member bookkeeping lives in codegen's map
			}
			return ref, nil
		}
	}
	a.errorf(n, "%q does not name a value", n.Name)
	return nil, fmt.Errorf("not a value")
}

func (a *Analyzer) analyzeArrayLit(n *ast.ArrayLit, scope *Scope) (hir.Expr, error) {
	v := &hir.VectorLit{}
	var elemType langtypes.TypeCode
	for i, el := range n.Elements {
		te, err := a.analyzeExpr(el, scope)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			elemType = te.Info().Type
		} else if te.Info().Type != elemType {
			a.errorf(el, "array element %d has type %s, expected %s", i, a.types.DisplayName(te.Info().Type), a.types.DisplayName(elemType))
			return nil, fmt.Errorf("heterogeneous array")
		}
		v.Elements = append(v.Elements, te)
	}
	vecType, err := a.types.VectorOf(elemType)
	if err != nil {
		a.errorf(n, "%v", err)
		return nil, err
	}
	v.Type = vecType
	v.Traits = hir.Traits(hir.Pure | hir.Transform)
	v.Mode = hir.Normal
	for _, el := range v.Elements {
		if el.Info().Mode != hir.Comptime {
			v.Mode = hir.Normal
			return v, nil
		}
	}
	v.Mode = hir.Comptime
	return v, nil
}

func (a *Analyzer) analyzeUnary(n *ast.Unary, scope *Scope) (hir.Expr, error) {
	operand, err := a.analyzeExpr(n.Operand, scope)
	if err != nil {
		return nil, err
	}
	ov, ok := lookupBuiltinUnary(n.Op, operand.Info().Type)
	if !ok {
		a.errorf(n, "no unary operator %q for %s", n.Op, a.types.DisplayName(operand.Info().Type))
		return nil, fmt.Errorf("no operator")
	}
	u := &hir.UnaryOp{Op: n.Op, Operand: operand}
	u.Type = ov.result
	u.Traits = hir.Intersect(ov.traits, operand.Info().Traits)
	u.Mode = hir.DeriveMode(ov.traits, operand.Info().Mode)
	return u, nil
}

func (a *Analyzer) analyzeBinary(n *ast.Binary, scope *Scope) (hir.Expr, error) {
	l, err := a.analyzeExpr(n.Left, scope)
	if err != nil {
		return nil, err
	}
	r, err := a.analyzeExpr(n.Right, scope)
	if err != nil {
		return nil, err
	}
	ov, ok := lookupBuiltinBinary(n.Op, l.Info().Type, r.Info().Type)
	if !ok {
		a.errorf(n, "no operator %q for %s %s %s", n.Op, a.types.DisplayName(l.Info().Type), n.Op, a.types.DisplayName(r.Info().Type))
		return nil, fmt.Errorf("no operator")
	}
	b := &hir.BinaryOp{Op: n.Op, Left: l, Right: r}
	b.Type = ov.result
	b.Traits = hir.Intersect(ov.traits, l.Info().Traits, r.Info().Traits)
	b.Mode = hir.DeriveMode(ov.traits, l.Info().Mode, r.Info().Mode)
	if b.Mode == hir.Comptime && a.ctfe != nil {
		a.tryCTFE(b)
	}
	return b, nil
}

func (a *Analyzer) analyzeLogical(n *ast.LogicalBinary, scope *Scope) (hir.Expr, error) {
	l, err := a.analyzeExpr(n.Left, scope)
	if err != nil {
		return nil, err
	}
	r, err := a.analyzeExpr(n.Right, scope)
	if err != nil {
		return nil, err
	}
	boolS := langtypes.Builtin(langtypes.Bool, langtypes.Scalar)
	if l.Info().Type != boolS || r.Info().Type != boolS {
		a.errorf(n, "logical operator %q requires Bool operands", n.Op)
		return nil, fmt.Errorf("type mismatch")
	}
	lb := &hir.LogicalOp{Op: n.Op, Left: l, Right: r}
	lb.Type = boolS
	lb.Traits = hir.Intersect(hir.Traits(hir.Pure), l.Info().Traits, r.Info().Traits)
	lb.Mode = hir.DeriveMode(hir.Traits(hir.Pure), l.Info().Mode, r.Info().Mode)
	return lb, nil
}

func (a *Analyzer) analyzeMember(n *ast.Member, scope *Scope) (hir.Expr, error) {
	target, err := a.analyzeExpr(n.Target, scope)
	if err != nil {
		return nil, err
	}
	ud, ok := a.types.Lookup(target.Info().Type)
	if !ok {
		a.errorf(n, "%s has no members", a.types.DisplayName(target.Info().Type))
		return nil, fmt.Errorf("not a record")
	}
	idx := ud.FieldIndex(n.Name)
	if idx < 0 {
		a.errorf(n, "%s has no field %q", ud.Name, n.Name)
		return nil, fmt.Errorf("unknown field")
	}
	m := &hir.MemberAccess{Target: target, FieldName: n.Name, FieldOffset: idx}
	m.Type = ud.Fields[idx].Type
	m.Traits = target.Info().Traits
	m.Mode = target.Info().Mode
	return m, nil
}

func (a *Analyzer) analyzeIndex(n *ast.Index, scope *Scope) (hir.Expr, error) {
	target, err := a.analyzeExpr(n.Target, scope)
	if err != nil {
		return nil, err
	}
	idx, err := a.analyzeExpr(n.Index, scope)
	if err != nil {
		return nil, err
	}
	int64S := langtypes.Builtin(langtypes.Int64, langtypes.Scalar)
	if idx.Info().Type != int64S {
		a.errorf(n, "index must be Int64, got %s", a.types.DisplayName(idx.Info().Type))
		return nil, fmt.Errorf("index type")
	}
	k, shape, ok := target.Info().Type.Decode()
	if !ok || shape != langtypes.Vector {
		a.errorf(n, "%s is not indexable", a.types.DisplayName(target.Info().Type))
		return nil, fmt.Errorf("not indexable")
	}
	ix := &hir.IndexAccess{Target: target, Index: idx}
	ix.Type = langtypes.Builtin(k, langtypes.Scalar)
	ix.Traits = target.Info().Traits
	ix.Mode = hir.Normal
	return ix, nil
}

func (a *Analyzer) analyzeIf(n *ast.If, scope *Scope) (hir.Expr, error) {
	cond, err := a.analyzeExpr(n.Cond, scope)
	if err != nil {
		return nil, err
	}
	boolS := langtypes.Builtin(langtypes.Bool, langtypes.Scalar)
	if cond.Info().Type != boolS {
		a.errorf(n, "if condition must be Bool, got %s", a.types.DisplayName(cond.Info().Type))
		return nil, fmt.Errorf("condition type")
	}
	thenScope := a.pushScope()
	then, err := a.analyzeBlock(n.Then, thenScope)
	a.popScope(scope)
	if err != nil {
		return nil, err
	}
	out := &hir.IfExpr{Cond: cond, Then: then}
	out.Type = then.Type
	out.Traits = hir.Intersect(hir.Traits(hir.Pure|hir.Transform|hir.Linear|hir.Autostream), cond.Info().Traits, then.ExprInfo.Traits)
	out.Mode = hir.Normal
	if n.ElseIf != nil {
		elifExpr, err := a.analyzeIf(n.ElseIf, scope)
		if err != nil {
			return nil, err
		}
		out.Elif = elifExpr.(*hir.IfExpr)
	} else if n.Else != nil {
		elseScope := a.pushScope()
		els, err := a.analyzeBlock(n.Else, elseScope)
		a.popScope(scope)
		if err != nil {
			return nil, err
		}
		out.Else = els
	}
	return out, nil
}
