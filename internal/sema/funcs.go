package sema

import (
	"fmt"
	"strings"

	"vvm/internal/ast"
	"vvm/internal/hir"
	"vvm/internal/langtypes"
)

// analyzeFnDecl handles every syntactic shape spec §3 groups under one
// grammar: a plain function, a generic (some parameter types are
// placeholders), a template (explicit `<...>` comptime/type parameters), or
// a macro (`macro` keyword: parameters become template parameters on call,
// spec §4.1 "Macro expansion").
func (a *Analyzer) analyzeFnDecl(n *ast.FnDecl, scope *Scope) (hir.Stmt, error) {
	isMacro := len(n.Params) > 0 && n.Params[0].MacroParameter
	if isMacro {
		return a.registerMacro(n, scope)
	}
	if len(n.TemplateParams) > 0 {
		return a.registerTemplate(n, scope)
	}
	if a.hasPlaceholderParam(n) {
		return a.registerGeneric(n, scope)
	}
	fn, err := a.defineFunction(n, scope, nil)
	if err != nil {
		return nil, err
	}
	if err := scope.storeSymbol(n.Name, Resolved{Kind: RefFunc, Func: fn}, a.interactive); err != nil {
		a.errorf(n, "%v", err)
		return nil, err
	}
	a.functions = append(a.functions, fn)
	return nil, nil
}

// hasPlaceholderParam reports whether any parameter's type names an
// identifier not resolvable as a builtin or already-defined type — the
// signal that this function is generic rather than concrete (spec §3
// "Generic function definition: ... argument types may reference
// placeholders").
func (a *Analyzer) hasPlaceholderParam(n *ast.FnDecl) bool {
	for _, p := range n.Params {
		if p.Type == nil {
			return true
		}
		if p.Type.ArrayOf != nil {
			if _, ok := builtinKindByName(p.Type.ArrayOf.Name); !ok && p.Type.ArrayOf.Name != "" {
				if _, _, found := a.current.lookup(p.Type.ArrayOf.Name); !found {
					return true
				}
			}
			continue
		}
		if _, ok := builtinKindByName(p.Type.Name); ok {
			continue
		}
		if _, _, found := a.current.lookup(p.Type.Name); !found {
			return true
		}
	}
	return false
}

func (a *Analyzer) registerGeneric(n *ast.FnDecl, scope *Scope) (hir.Stmt, error) {
	var placeholders []string
	for _, p := range n.Params {
		if p.Type == nil || (p.Type.ArrayOf == nil && p.Type.Name != "") {
			name := ""
			if p.Type != nil {
				name = p.Type.Name
			}
			if name != "" {
				if _, ok := builtinKindByName(name); !ok {
					if _, _, found := a.current.lookup(name); !found {
						placeholders = append(placeholders, name)
					}
				}
			}
		}
	}
	g := &hir.GenericFuncDef{Name: n.Name, Placeholders: placeholders, Origin: n, Instantiated: make(map[string]*hir.FuncDef)}
	a.generics[n.Name] = g
	if err := scope.storeSymbol(n.Name, Resolved{Kind: RefGeneric, Generic: g}, a.interactive); err != nil {
		a.errorf(n, "%v", err)
		return nil, err
	}
	return nil, nil
}

func (a *Analyzer) registerTemplate(n *ast.FnDecl, scope *Scope) (hir.Stmt, error) {
	t := &hir.TemplateDef{Name: n.Name, Params: n.TemplateParams, Origin: n, Instantiated: make(map[string]*hir.FuncDef)}
	a.templates[n.Name] = t
	if err := scope.storeSymbol(n.Name, Resolved{Kind: RefTemplate, Template: t}, a.interactive); err != nil {
		a.errorf(n, "%v", err)
		return nil, err
	}
	return nil, nil
}

func (a *Analyzer) registerMacro(n *ast.FnDecl, scope *Scope) (hir.Stmt, error) {
	implied := &ast.FnDecl{
		Name: n.Name, ReturnType: n.ReturnType, Body: n.Body, BodyExpr: n.BodyExpr, ForceInline: n.ForceInline,
	}
	var tparams []ast.TemplateParam
	var runtimeParams []ast.Param
	for _, p := range n.Params {
		if p.MacroParameter {
			tparams = append(tparams, ast.TemplateParam{Name: p.Name, Type: p.Type})
		} else {
			runtimeParams = append(runtimeParams, p)
		}
	}
	implied.TemplateParams = tparams
	implied.Params = runtimeParams
	tmpl := &hir.TemplateDef{Name: n.Name, Params: tparams, Origin: implied, Instantiated: make(map[string]*hir.FuncDef)}
	m := &hir.MacroDef{Name: n.Name, Origin: n, ImpliedTemplate: tmpl}
	a.macros[n.Name] = m
	a.templates[n.Name] = tmpl
	if err := scope.storeSymbol(n.Name, Resolved{Kind: RefMacro, Macro: m}, a.interactive); err != nil {
		a.errorf(n, "%v", err)
		return nil, err
	}
	return nil, nil
}

// defineFunction runs the "function-definition path" (spec §4.1 Generic
// instantiation): resolve parameter/return types in a fresh function scope,
// analyze the body, and derive the function's own traits from its body's.
func (a *Analyzer) defineFunction(n *ast.FnDecl, scope *Scope, placeholders map[string]bool) (*hir.FuncDef, error) {
	fnScope := a.pushScope()
	defer a.popScope(scope)

	fn := &hir.FuncDef{Name: n.Name, ForceInline: n.ForceInline, Origin: n, ScopeID: fnScope.id, GlobalOperand: -1}
	for _, p := range n.Params {
		var pt langtypes.TypeCode
		var err error
		if p.Type != nil {
			pt, err = a.resolveTypeExpr(p.Type, fnScope, placeholders)
			if err != nil {
				a.errorf(n, "parameter %q: %v", p.Name, err)
				return nil, err
			}
		}
		decl := &hir.Decl{Name: p.Name, Type: pt, Traits: hir.Traits(hir.Pure)}
		fn.Args = append(fn.Args, hir.Param{Name: p.Name, Type: pt, MacroParameter: p.MacroParameter, Decl: decl})
		if err := fnScope.storeSymbol(p.Name, Resolved{Kind: RefVar, Decl: decl}, a.interactive); err != nil {
			a.errorf(n, "%v", err)
			return nil, err
		}
	}
	if n.ReturnType != nil {
		rt, err := a.resolveTypeExpr(n.ReturnType, fnScope, placeholders)
		if err != nil {
			a.errorf(n, "return type: %v", err)
			return nil, err
		}
		fn.ReturnType = rt
	}
	if n.BodyExpr != nil {
		be, err := a.analyzeExpr(n.BodyExpr, fnScope)
		if err != nil {
			return nil, err
		}
		fn.BodyExpr = be
		if n.ReturnType == nil {
			fn.ReturnType = be.Info().Type
		}
		fn.Traits = be.Info().Traits
		return fn, nil
	}
	body, err := a.analyzeBlock(n.Body, fnScope)
	if err != nil {
		return nil, err
	}
	fn.Body = body
	if n.ReturnType == nil {
		fn.ReturnType = body.Type
	}
	fn.Traits = body.ExprInfo.Traits
	return fn, nil
}

// mangleGeneric builds "<generic-name>(T1, T2, …)" (spec §4.1 Generic
// instantiation).
func mangleGeneric(name string, types *langtypes.Registry, argTypes []langtypes.TypeCode) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('(')
	for i, t := range argTypes {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(types.DisplayName(t))
	}
	b.WriteByte(')')
	return b.String()
}

// instantiateGeneric implements spec §4.1 Generic instantiation.
func (a *Analyzer) instantiateGeneric(g *hir.GenericFuncDef, argTypes []langtypes.TypeCode, scope *Scope) (*hir.FuncDef, error) {
	mangled := mangleGeneric(g.Name, a.types, argTypes)
	if fn, ok := g.Instantiated[mangled]; ok {
		return fn, nil
	}
	if len(g.Placeholders) != 0 && len(g.Placeholders) > len(argTypes) {
		return nil, fmt.Errorf("generic %q: too few arguments to bind placeholders", g.Name)
	}
	placeholders := make(map[string]bool)
	for _, p := range g.Placeholders {
		placeholders[p] = true
	}
	a.placeholders.reset()
	bound := 0
	for i, p := range g.Origin.Params {
		if p.Type != nil && placeholders[p.Type.Name] {
			if bound < len(argTypes) {
				a.placeholders.bound[p.Type.Name] = argTypes[i]
				bound++
			}
		}
	}
	fn, err := a.defineFunction(g.Origin, scope, placeholders)
	if err != nil {
		return nil, err
	}
	fn.MangledName = mangled
	g.Instantiated[mangled] = fn
	return fn, nil
}

// instantiateDataTemplate is the data-type half of spec §4.1 Template
// instantiation: `Name{args}` type-expression form.
func (a *Analyzer) instantiateDataTemplate(te *ast.TypeExpr, scope *Scope) (langtypes.TypeCode, error) {
	refs, _, _ := scope.lookup(te.Name)
	var tmpl *hir.TemplateDef
	for _, r := range refs {
		if r.Kind == RefTemplate {
			tmpl = r.Template
			break
		}
	}
	if tmpl == nil {
		return 0, fmt.Errorf("unknown template %q", te.Name)
	}
	dd, ok := tmpl.Origin.(*ast.DataDecl)
	if !ok {
		return 0, fmt.Errorf("%q is not a data template", te.Name)
	}
	var mangled strings.Builder
	mangled.WriteString(te.Name)
	mangled.WriteByte('{')
	for i, argExpr := range te.TemplateArgs {
		if i > 0 {
			mangled.WriteByte(',')
		}
		lit, err := a.templateArgLiteral(argExpr, scope)
		if err != nil {
			return 0, err
		}
		mangled.WriteString(lit)
	}
	mangled.WriteByte('}')
	key := mangled.String()
	if t, ok := tmpl.InstantiatedData[key]; ok {
		return t, nil
	}
	if tmpl.InstantiatedData == nil {
		tmpl.InstantiatedData = make(map[string]langtypes.TypeCode)
	}
	placeholders := make(map[string]bool)
	for i, tp := range dd.TemplateParams {
		placeholders[tp.Name] = true
		if i < len(te.TemplateArgs) {
			t, err := a.templateArgType(te.TemplateArgs[i], scope)
			if err == nil {
				a.placeholders.bound[tp.Name] = t
			}
		}
	}
	var fields []langtypes.Field
	for _, f := range dd.Fields {
		ft, err := a.resolveTypeExpr(f.Type, scope, placeholders)
		if err != nil {
			return 0, err
		}
		fields = append(fields, langtypes.Field{Name: f.Name, Type: ft})
	}
	name := key
	if langtypes.IsDataframeName(te.Name) {
		name = "!" + strings.TrimPrefix(key, "!")
	}
	code := a.types.Intern(name, fields)
	tmpl.InstantiatedData[key] = code
	return code, nil
}

// templateArgType resolves a template argument that names a type (used when
// the argument slot expects a Kind, per spec §4.1 Template instantiation:
// "if its type is a Kind, use the inner type").
func (a *Analyzer) templateArgType(e ast.Expr, scope *Scope) (langtypes.TypeCode, error) {
	if id, ok := e.(*ast.Ident); ok {
		if k, ok := builtinKindByName(id.Name); ok {
			return langtypes.Builtin(k, langtypes.Scalar), nil
		}
		refs, _, _ := scope.lookup(id.Name)
		for _, r := range refs {
			if r.Kind == RefData {
				return r.Data.Type, nil
			}
		}
	}
	return 0, fmt.Errorf("not a type argument")
}

// templateArgLiteral renders a template argument for the mangled-name key:
// either a type's display name or a comptime literal's display form.
func (a *Analyzer) templateArgLiteral(e ast.Expr, scope *Scope) (string, error) {
	if t, err := a.templateArgType(e, scope); err == nil {
		return a.types.DisplayName(t), nil
	}
	typed, err := a.analyzeExpr(e, scope)
	if err != nil {
		return "", err
	}
	lit := typed.Info().Literal
	if lit == nil {
		return "", fmt.Errorf("template argument must be a type or comptime literal")
	}
	switch {
	case lit.Str != "":
		return lit.Str, nil
	default:
		return fmt.Sprintf("%d", lit.Int), nil
	}
}
