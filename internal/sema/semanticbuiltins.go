package sema

import (
	"fmt"
	"strings"

	"vvm/internal/ast"
	"vvm/internal/hir"
	"vvm/internal/langtypes"
	"vvm/internal/parser"
)

// semanticBuiltin is a call intercepted entirely by the analyzer (spec
// §4.1 "Semantic builtins"): it returns a display-friendly comptime value
// derived purely from the IR, never reaching code generation.
type semanticBuiltin func(a *Analyzer, call *ast.Call, scope *Scope) (hir.Expr, error)

var semanticBuiltins = map[string]semanticBuiltin{
	"type_of":    builtinTypeOf,
	"traits_of":  builtinTraitsOf,
	"mode_of":    builtinModeOf,
	"columns":    builtinColumns,
	"members_of": builtinMembersOf,
	"compile":    builtinCompile,
}

// registerSemanticBuiltins seeds the root scope so these names resolve to a
// placeholder reference (their actual behaviour is intercepted in
// analyzeCall before normal overload resolution runs).
func (a *Analyzer) registerSemanticBuiltins() {
	for name := range semanticBuiltins {
		_ = a.current.storeSymbol(name, Resolved{Kind: RefSemanticBuiltin}, false)
	}
}

func stringLit(s string) *hir.Lit {
	t := langtypes.Builtin(langtypes.String, langtypes.Scalar)
	return &hir.Lit{
		ExprInfo: hir.ExprInfo{Type: t, Traits: hir.Traits(hir.Pure), Mode: hir.Comptime, Literal: &hir.ComptimeLiteral{Type: t, Str: s}, DisplayName: s},
		Str:      s,
	}
}

func requireOneArg(a *Analyzer, call *ast.Call, name string, scope *Scope) (hir.Expr, error) {
	if len(call.Args) != 1 {
		a.errorf(call, "%s expects exactly one argument", name)
		return nil, fmt.Errorf("arity")
	}
	return a.analyzeExpr(call.Args[0], scope)
}

func builtinTypeOf(a *Analyzer, call *ast.Call, scope *Scope) (hir.Expr, error) {
	arg, err := requireOneArg(a, call, "type_of", scope)
	if err != nil {
		return nil, err
	}
	return stringLit(a.types.DisplayName(arg.Info().Type)), nil
}

func traitsString(t hir.Traits) string {
	var parts []string
	if t.Has(hir.Pure) {
		parts = append(parts, "Pure")
	}
	if t.Has(hir.Transform) {
		parts = append(parts, "Transform")
	}
	if t.Has(hir.Linear) {
		parts = append(parts, "Linear")
	}
	if t.Has(hir.Autostream) {
		parts = append(parts, "Autostream")
	}
	if len(parts) == 0 {
		return "{}"
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func builtinTraitsOf(a *Analyzer, call *ast.Call, scope *Scope) (hir.Expr, error) {
	arg, err := requireOneArg(a, call, "traits_of", scope)
	if err != nil {
		return nil, err
	}
	return stringLit(traitsString(arg.Info().Traits)), nil
}

func builtinModeOf(a *Analyzer, call *ast.Call, scope *Scope) (hir.Expr, error) {
	arg, err := requireOneArg(a, call, "mode_of", scope)
	if err != nil {
		return nil, err
	}
	return stringLit(arg.Info().Mode.String()), nil
}

func builtinColumns(a *Analyzer, call *ast.Call, scope *Scope) (hir.Expr, error) {
	arg, err := requireOneArg(a, call, "columns", scope)
	if err != nil {
		return nil, err
	}
	ud, ok := a.types.Lookup(arg.Info().Type)
	if !ok {
		a.errorf(call, "columns: %s is not a Dataframe", a.types.DisplayName(arg.Info().Type))
		return nil, fmt.Errorf("not a dataframe")
	}
	names := make([]string, len(ud.Fields))
	for i, f := range ud.Fields {
		names[i] = f.Name
	}
	return stringLit(strings.Join(names, ",")), nil
}

func builtinMembersOf(a *Analyzer, call *ast.Call, scope *Scope) (hir.Expr, error) {
	arg, err := requireOneArg(a, call, "members_of", scope)
	if err != nil {
		return nil, err
	}
	ud, ok := a.types.Lookup(arg.Info().Type)
	if !ok {
		a.errorf(call, "members_of: %s has no members", a.types.DisplayName(arg.Info().Type))
		return nil, fmt.Errorf("not a record")
	}
	var parts []string
	for _, f := range ud.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", f.Name, a.types.DisplayName(f.Type)))
	}
	return stringLit(strings.Join(parts, ",")), nil
}

// builtinCompile parses and semantically analyses its string argument as a
// new module, lifting the result (spec §4.1: the one semantic builtin that
// is not purely IR-derived). The sub-analysis shares this analyzer's type
// registry so any data types it defines intern consistently.
func builtinCompile(a *Analyzer, call *ast.Call, scope *Scope) (hir.Expr, error) {
	arg, err := requireOneArg(a, call, "compile", scope)
	if err != nil {
		return nil, err
	}
	lit := arg.Info().Literal
	if lit == nil || lit.Str == "" {
		a.errorf(call, "compile requires a comptime String argument")
		return nil, fmt.Errorf("compile: non-literal argument")
	}
	mod, err := parser.Parse(lit.Str)
	if err != nil {
		a.errorf(call, "compile: %v", err)
		return nil, err
	}
	sub := New()
	sub.types = a.types
	sub.ctfe = a.ctfe
	subMod, err := sub.Analyze(mod)
	if err != nil {
		a.errorf(call, "compile: %v", err)
		return nil, err
	}
	if len(subMod.Stmts) == 0 {
		return stringLit(""), nil
	}
	if es, ok := subMod.Stmts[len(subMod.Stmts)-1].(*hir.ExprStmt); ok {
		return es.X, nil
	}
	return stringLit(""), nil
}
