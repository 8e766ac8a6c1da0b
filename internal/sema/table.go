package sema

import (
	"fmt"

	"vvm/internal/ast"
	"vvm/internal/hir"
	"vvm/internal/langtypes"
)

// scalarFieldName derives a default column name from an expression when no
// explicit `name:` is given (spec §4.1 Query: "cols produce ... "), using
// the member name for bare member/ident access and a positional fallback
// otherwise.
func scalarFieldName(e ast.Expr, idx int) string {
	switch n := e.(type) {
	case *ast.Ident:
		return n.Name
	case *ast.Member:
		return n.Name
	default:
		return fmt.Sprintf("col%d", idx)
	}
}

// synthByType builds the "by-type" Dataframe/record for a set of `by`
// expressions (spec §4.1: "`by` expressions form a freshly synthesised
// Dataframe type").
func (a *Analyzer) synthByType(byExprs []ast.Expr, scope *Scope) ([]hir.ByColumn, langtypes.TypeCode, error) {
	var cols []hir.ByColumn
	var fields []langtypes.Field
	seen := make(map[string]bool)
	for i, be := range byExprs {
		te, err := a.analyzeExpr(be, scope)
		if err != nil {
			return nil, 0, err
		}
		name := scalarFieldName(be, i)
		if seen[name] {
			return nil, 0, fmt.Errorf("duplicate by-column name %q", name)
		}
		seen[name] = true
		cols = append(cols, hir.ByColumn{Name: name, Expr: te})
		fields = append(fields, langtypes.Field{Name: name, Type: te.Info().Type})
	}
	if len(fields) == 0 {
		return cols, 0, nil
	}
	a.byTypeSeq++
	code := a.types.Intern(fmt.Sprintf("!by%d", a.byTypeSeq), fields)
	return cols, code, nil
}

func (a *Analyzer) preferredLookup(table hir.Expr, scope *Scope) *Scope {
	ud, ok := a.types.Lookup(table.Info().Type)
	if !ok {
		return scope
	}
	inner := a.pushScope()
	for _, f := range ud.Fields {
		// Implied members name whole columns (vectors), not per-row
		// scalars: `where amount > 10` compares the amount column
		// (vector) against a broadcast scalar, producing a Bool vector.
		decl := &hir.Decl{Name: f.Name, Type: f.Type, Traits: hir.Traits(hir.Pure | hir.Transform), ImpliedMember: true}
		_ = inner.storeSymbol(f.Name, Resolved{Kind: RefVar, Decl: decl}, true)
	}
	scope.preferred = inner
	return inner
}

func (a *Analyzer) analyzeQuery(n *ast.Query, scope *Scope) (hir.Expr, error) {
	table, err := a.analyzeExpr(n.Table, scope)
	if err != nil {
		return nil, err
	}
	if !a.types.IsDataframe(table.Info().Type) {
		a.errorf(n, "from: %s is not a Dataframe", a.types.DisplayName(table.Info().Type))
		return nil, fmt.Errorf("not a dataframe")
	}
	preferred := a.preferredLookup(table, scope)
	defer func() { scope.preferred = nil }()

	var where hir.Expr
	if n.Where != nil {
		w, err := a.analyzeExpr(n.Where, preferred)
		if err != nil {
			return nil, err
		}
		boolV := langtypes.Builtin(langtypes.Bool, langtypes.Vector)
		if w.Info().Type != boolV {
			a.errorf(n, "where must be a Bool vector, got %s", a.types.DisplayName(w.Info().Type))
			return nil, fmt.Errorf("where type")
		}
		where = w
	}

	byCols, byType, err := a.synthByType(n.By, preferred)
	if err != nil {
		a.errorf(n, "%v", err)
		return nil, err
	}
	if len(byCols) > 0 && len(n.Cols) == 0 {
		a.errorf(n, "query: by without select columns is invalid")
		return nil, fmt.Errorf("by without select")
	}

	var selCols []hir.SelectColumn
	var fields []langtypes.Field
	for _, bc := range byCols {
		fields = append(fields, langtypes.Field{Name: bc.Name, Type: bc.Expr.Info().Type})
	}
	for i, c := range n.Cols {
		ce, err := a.analyzeExpr(c.Expr, preferred)
		if err != nil {
			return nil, err
		}
		name := c.Name
		if name == "" {
			name = scalarFieldName(c.Expr, i)
		}
		for _, f := range fields {
			if f.Name == name {
				a.errorf(n, "query: duplicate output column %q", name)
				return nil, fmt.Errorf("duplicate column")
			}
		}
		colType := ce.Info().Type
		if len(byCols) == 0 {
			v, err := a.types.VectorOf(colType)
			if err == nil {
				colType = v
			}
		}
		selCols = append(selCols, hir.SelectColumn{Name: name, Expr: ce})
		fields = append(fields, langtypes.Field{Name: name, Type: colType})
	}

	resultType := table.Info().Type
	if len(n.Cols) > 0 || len(byCols) > 0 {
		ud, _ := a.types.Lookup(table.Info().Type)
		baseName := "!query"
		if ud != nil {
			baseName = ud.Name
		}
		resultType = a.types.Intern(baseName, fields)
	}

	q := &hir.Query{Table: table, Select: selCols, By: byCols, Where: where, ByType: byType}
	q.Type = resultType
	q.Traits = hir.Traits(hir.Transform)
	q.Mode = hir.Normal
	return q, nil
}

func (a *Analyzer) analyzeSort(n *ast.Sort, scope *Scope) (hir.Expr, error) {
	table, err := a.analyzeExpr(n.Table, scope)
	if err != nil {
		return nil, err
	}
	if !a.types.IsDataframe(table.Info().Type) {
		a.errorf(n, "sort: %s is not a Dataframe", a.types.DisplayName(table.Info().Type))
		return nil, fmt.Errorf("not a dataframe")
	}
	preferred := a.preferredLookup(table, scope)
	defer func() { scope.preferred = nil }()
	byCols, byType, err := a.synthByType(n.By, preferred)
	if err != nil {
		a.errorf(n, "%v", err)
		return nil, err
	}
	s := &hir.Sort{Table: table, By: byCols, ByType: byType}
	s.Type = table.Info().Type
	s.Traits = hir.Traits(hir.Transform)
	s.Mode = hir.Normal
	return s, nil
}

func (a *Analyzer) analyzeJoin(n *ast.Join, scope *Scope) (hir.Expr, error) {
	left, err := a.analyzeExpr(n.Left, scope)
	if err != nil {
		return nil, err
	}
	right, err := a.analyzeExpr(n.Right, scope)
	if err != nil {
		return nil, err
	}
	if !a.types.IsDataframe(left.Info().Type) || !a.types.IsDataframe(right.Info().Type) {
		a.errorf(n, "join: both sides must be Dataframes")
		return nil, fmt.Errorf("not a dataframe")
	}
	if len(n.On) == 0 && n.AsofLeft == nil {
		a.errorf(n, "join: at least one of on/asof must be present")
		return nil, fmt.Errorf("missing on/asof")
	}
	if n.Direction != ast.DirNone && n.AsofLeft == nil {
		a.errorf(n, "join: backward/forward/nearest modifiers require asof")
		return nil, fmt.Errorf("modifier without asof")
	}
	if n.Strict && n.Direction == ast.DirNearest {
		a.errorf(n, "join: strict is invalid with nearest")
		return nil, fmt.Errorf("strict with nearest")
	}

	preferredLeft := a.preferredLookup(left, scope)
	preferredRight := a.preferredLookup(right, scope)

	j := &hir.Join{Left: left, Right: right, Strict: n.Strict, Direction: n.Direction}

	if len(n.On) > 0 {
		leftOn, leftByType, err := a.synthByType(n.On, preferredLeft)
		if err != nil {
			a.errorf(n, "%v", err)
			return nil, err
		}
		rightOn, rightByType, err := a.synthByType(n.On, preferredRight)
		if err != nil {
			a.errorf(n, "%v", err)
			return nil, err
		}
		if leftByType != rightByType {
			a.errorf(n, "join: on-columns must have structurally equal types on both sides")
			return nil, fmt.Errorf("on-type mismatch")
		}
		j.On = leftOn
		j.OnByType = leftByType
		_ = rightOn
	}

	if n.AsofLeft != nil {
		al, err := a.analyzeExpr(n.AsofLeft, preferredLeft)
		if err != nil {
			return nil, err
		}
		ar, err := a.analyzeExpr(n.AsofRight, preferredRight)
		if err != nil {
			return nil, err
		}
		if al.Info().Type != ar.Info().Type {
			a.errorf(n, "join: asof expressions must have equal element types")
			return nil, fmt.Errorf("asof type mismatch")
		}
		j.AsofLeft, j.AsofRight = al, ar
		if n.Within != nil {
			w, err := a.analyzeExpr(n.Within, scope)
			if err != nil {
				return nil, err
			}
			diffOv, ok := lookupBuiltinBinary("-", al.Info().Type, al.Info().Type)
			if !ok || diffOv.result != w.Info().Type {
				a.errorf(n, "join: asof type does not support subtraction into within's type")
				return nil, fmt.Errorf("within type mismatch")
			}
			j.Within = w
		}
	}

	leftUD, _ := a.types.Lookup(left.Info().Type)
	rightUD, _ := a.types.Lookup(right.Info().Type)
	dropped := make(map[string]bool)
	for _, c := range j.On {
		dropped[c.Name] = true
	}
	var fields []langtypes.Field
	if leftUD != nil {
		fields = append(fields, leftUD.Fields...)
	}
	if rightUD != nil {
		for _, f := range rightUD.Fields {
			if dropped[f.Name] {
				continue
			}
			fields = append(fields, f)
		}
	}
	name := "!join"
	if leftUD != nil {
		name = leftUD.Name
	}
	j.Type = a.types.Intern(name, fields)
	j.Traits = hir.Traits(hir.Transform)
	j.Mode = hir.Normal
	return j, nil
}
