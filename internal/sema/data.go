package sema

import (
	"vvm/internal/ast"
	"vvm/internal/hir"
	"vvm/internal/langtypes"
)

// analyzeDataDecl handles `data Name: field* end`, its template form
// `data Name{params}: field* end`, and the alias/provider form
// `data Name = TypeExpr` (spec §3 "Data definition").
func (a *Analyzer) analyzeDataDecl(n *ast.DataDecl, scope *Scope) (hir.Stmt, error) {
	if len(n.TemplateParams) > 0 {
		t := &hir.TemplateDef{Name: n.Name, Params: n.TemplateParams, Origin: n, InstantiatedData: make(map[string]langtypes.TypeCode)}
		a.templates[n.Name] = t
		if err := scope.storeSymbol(n.Name, Resolved{Kind: RefTemplate, Template: t}, a.interactive); err != nil {
			a.errorf(n, "%v", err)
			return nil, err
		}
		return nil, nil
	}
	if n.Alias != nil {
		t, err := a.resolveTypeExpr(n.Alias, scope, nil)
		if err != nil {
			a.errorf(n, "%v", err)
			return nil, err
		}
		dd := &hir.DataDef{Name: n.Name, Alias: t, Origin: n}
		if err := scope.storeSymbol(n.Name, Resolved{Kind: RefData, Data: dd}, a.interactive); err != nil {
			a.errorf(n, "%v", err)
			return nil, err
		}
		return nil, nil
	}
	var fields []langtypes.Field
	for _, f := range n.Fields {
		ft, err := a.resolveTypeExpr(f.Type, scope, nil)
		if err != nil {
			a.errorf(n, "field %q: %v", f.Name, err)
			return nil, err
		}
		fields = append(fields, langtypes.Field{Name: f.Name, Type: ft})
	}
	code := a.types.Intern(n.Name, fields)
	dd := &hir.DataDef{Name: n.Name, Type: code, Origin: n}
	if err := scope.storeSymbol(n.Name, Resolved{Kind: RefData, Data: dd}, a.interactive); err != nil {
		a.errorf(n, "%v", err)
		return nil, err
	}
	return nil, nil
}
