package sema

import (
	"fmt"

	"vvm/internal/ast"
	"vvm/internal/hir"
	"vvm/internal/langtypes"
)

func (a *Analyzer) analyzeCall(n *ast.Call, scope *Scope) (hir.Expr, error) {
	id, ok := n.Callee.(*ast.Ident)
	if !ok {
		a.errorf(n, "call target must be a name")
		return nil, fmt.Errorf("unsupported callee")
	}
	if sb, ok := semanticBuiltins[id.Name]; ok {
		return sb(a, n, scope)
	}
	refs, _, _ := scope.lookup(id.Name)
	if len(refs) == 0 {
		a.errorf(n, "undefined function %q", id.Name)
		return nil, fmt.Errorf("undefined function")
	}
	for _, r := range refs {
		if r.Kind == RefBuiltinFunc {
			return a.analyzeBuiltinCall(id.Name, n, scope)
		}
	}

	args := make([]hir.Expr, len(n.Args))
	for i, ae := range n.Args {
		te, err := a.analyzeExpr(ae, scope)
		if err != nil {
			return nil, err
		}
		args[i] = te
	}

	for _, r := range refs {
		switch r.Kind {
		case RefMacro:
			return a.expandMacroCall(r.Macro, n, scope)
		case RefTemplate:
			return a.callTemplate(r.Template, n, scope)
		case RefGeneric:
			argTypes := make([]langtypes.TypeCode, len(args))
			for i, ar := range args {
				argTypes[i] = ar.Info().Type
			}
			fn, err := a.instantiateGeneric(r.Generic, argTypes, scope)
			if err != nil {
				a.errorf(n, "%v", err)
				return nil, err
			}
			return a.buildCallNode(fn, args, n)
		}
	}

	fn, candidates, err := a.resolveOverload(refs, args)
	if err != nil {
		a.errorf(n, "no matching overload for %q\n  candidates:\n    %s", id.Name, joinCandidates(candidates))
		return nil, err
	}
	return a.buildCallNode(fn, args, n)
}

// resolveOverload implements spec §4.1 Overload resolution: try candidates
// in order, first full match wins.
func (a *Analyzer) resolveOverload(refs []Resolved, args []hir.Expr) (*hir.FuncDef, []string, error) {
	var candidates []string
	for _, r := range refs {
		if r.Kind != RefFunc {
			continue
		}
		fn := r.Func
		candidates = append(candidates, funcSignature(fn))
		if len(fn.Args) != len(args) {
			continue
		}
		match := true
		for i, p := range fn.Args {
			if p.Type != args[i].Info().Type {
				match = false
				break
			}
		}
		if match {
			return fn, candidates, nil
		}
	}
	return nil, candidates, fmt.Errorf("no match")
}

func joinCandidates(cands []string) string {
	if len(cands) > 3 {
		more := len(cands) - 3
		s := ""
		for i, c := range cands[:3] {
			if i > 0 {
				s += "\n    "
			}
			s += c
		}
		return fmt.Sprintf("%s\n    <%d others>", s, more)
	}
	s := ""
	for i, c := range cands {
		if i > 0 {
			s += "\n    "
		}
		s += c
	}
	return s
}

// buildCallNode finishes a resolved call: derives traits/mode, and, if the
// callee is force-inline, substitutes its body as inline_expr (spec §4.1
// "Inline expansion") instead of a real call.
func (a *Analyzer) buildCallNode(fn *hir.FuncDef, args []hir.Expr, origin ast.Node) (hir.Expr, error) {
	c := &hir.Call{Callee: fn, Args: args}
	c.Type = fn.ReturnType
	argTraits := make([]hir.Traits, len(args))
	argModes := make([]hir.Mode, len(args))
	for i, ar := range args {
		argTraits[i] = ar.Info().Traits
		argModes[i] = ar.Info().Mode
	}
	c.Traits = hir.Intersect(fn.Traits, argTraits...)
	c.Mode = hir.DeriveMode(fn.Traits, argModes...)
	if fn.ForceInline {
		c.InlineExpr = substituteInline(fn, args)
	}
	if c.Mode == hir.Comptime && a.ctfe != nil {
		a.tryCTFE(c)
	}
	return c, nil
}

// substituteInline produces a fresh expression binding each formal argument
// to the caller's argument expression directly, per spec §4.1 Inline
// expansion ("bound ... not register").
func substituteInline(fn *hir.FuncDef, args []hir.Expr) hir.Expr {
	if fn.BodyExpr == nil {
		return nil
	}
	bindings := make(map[string]hir.Expr, len(fn.Args))
	for i, p := range fn.Args {
		if i < len(args) {
			bindings[p.Name] = args[i]
		}
	}
	return substituteExpr(fn.BodyExpr, bindings)
}

// substituteExpr walks a typed expression replacing IdentRef nodes whose
// name is bound, without mutating the original (shared sub-expressions are
// fine: typed IR nodes are immutable once built).
func substituteExpr(e hir.Expr, bindings map[string]hir.Expr) hir.Expr {
	switch n := e.(type) {
	case *hir.IdentRef:
		if b, ok := bindings[n.Name]; ok {
			return b
		}
		return n
	case *hir.BinaryOp:
		cp := *n
		cp.Left = substituteExpr(n.Left, bindings)
		cp.Right = substituteExpr(n.Right, bindings)
		return &cp
	case *hir.UnaryOp:
		cp := *n
		cp.Operand = substituteExpr(n.Operand, bindings)
		return &cp
	case *hir.LogicalOp:
		cp := *n
		cp.Left = substituteExpr(n.Left, bindings)
		cp.Right = substituteExpr(n.Right, bindings)
		return &cp
	case *hir.MemberAccess:
		cp := *n
		cp.Target = substituteExpr(n.Target, bindings)
		return &cp
	case *hir.IndexAccess:
		cp := *n
		cp.Target = substituteExpr(n.Target, bindings)
		cp.Index = substituteExpr(n.Index, bindings)
		return &cp
	default:
		return e
	}
}

// expandMacroCall implements spec §4.1 Macro expansion: arguments bound to
// macro_parameter formals must be comptime literals; they are downgraded to
// literal AST values and routed through template instantiation.
func (a *Analyzer) expandMacroCall(m *hir.MacroDef, call *ast.Call, scope *Scope) (hir.Expr, error) {
	tmpl := m.ImpliedTemplate
	if _, ok := tmpl.Origin.(*ast.FnDecl); !ok {
		return nil, fmt.Errorf("macro %q: malformed implied template", m.Name)
	}
	nMacroParams := len(tmpl.Params)
	if len(call.Args) < nMacroParams {
		a.errorf(call, "macro %q: expected at least %d arguments", m.Name, nMacroParams)
		return nil, fmt.Errorf("arity mismatch")
	}
	synthetic := &ast.TypeExpr{Name: m.Name, TemplateArgs: call.Args[:nMacroParams]}
	a.registerSyntheticTemplateIfMissing(m.Name, tmpl)
	fn, err := a.instantiateFuncTemplateByArgs(tmpl, synthetic.TemplateArgs, scope)
	if err != nil {
		a.errorf(call, "%v", err)
		return nil, err
	}
	var runtimeArgs []hir.Expr
	for _, ae := range call.Args[nMacroParams:] {
		te, err := a.analyzeExpr(ae, scope)
		if err != nil {
			return nil, err
		}
		runtimeArgs = append(runtimeArgs, te)
	}
	return a.buildCallNode(fn, runtimeArgs, call)
}

func (a *Analyzer) registerSyntheticTemplateIfMissing(name string, t *hir.TemplateDef) {
	if _, ok := a.templates[name]; !ok {
		a.templates[name] = t
	}
}

// callTemplate implements the function-template half of spec §4.1 Template
// instantiation.
func (a *Analyzer) callTemplate(t *hir.TemplateDef, call *ast.Call, scope *Scope) (hir.Expr, error) {
	targs := call.TemplateArgs
	if len(targs) == 0 && len(call.Args) >= len(t.Params) {
		// Macro-call sugar: template args implicitly come from the first
		// N call arguments (spec §4.1 macro call site has no explicit
		// `{...}` syntax).
		targs = call.Args[:len(t.Params)]
	}
	fn, err := a.instantiateFuncTemplateByArgs(t, targs, scope)
	if err != nil {
		a.errorf(call, "%v", err)
		return nil, err
	}
	startArg := 0
	if len(call.TemplateArgs) == 0 {
		startArg = len(t.Params)
	}
	var args []hir.Expr
	for _, ae := range call.Args[startArg:] {
		te, err := a.analyzeExpr(ae, scope)
		if err != nil {
			return nil, err
		}
		args = append(args, te)
	}
	return a.buildCallNode(fn, args, call)
}

// instantiateFuncTemplateByArgs duplicates a template's untyped origin,
// binds each template parameter to its argument's type-or-literal, and runs
// the function-definition path (spec §4.1 Template instantiation).
func (a *Analyzer) instantiateFuncTemplateByArgs(t *hir.TemplateDef, targs []ast.Expr, scope *Scope) (*hir.FuncDef, error) {
	origin, ok := t.Origin.(*ast.FnDecl)
	if !ok {
		return nil, fmt.Errorf("%q is not a function template", t.Name)
	}
	var mangled string
	mangled = t.Name + "{"
	placeholders := make(map[string]bool)
	a.placeholders.reset()
	for i, tp := range t.Params {
		placeholders[tp.Name] = true
		if i >= len(targs) {
			continue
		}
		lit, err := a.templateArgLiteral(targs[i], scope)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			mangled += ","
		}
		mangled += lit
		if typ, err := a.templateArgType(targs[i], scope); err == nil {
			a.placeholders.bound[tp.Name] = typ
		}
	}
	mangled += "}"
	if fn, ok := t.Instantiated[mangled]; ok {
		return fn, nil
	}
	fn, err := a.defineFunction(origin, scope, placeholders)
	if err != nil {
		return nil, err
	}
	fn.MangledName = mangled
	t.Instantiated[mangled] = fn
	return fn, nil
}
