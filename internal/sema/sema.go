// Package sema implements the semantic analyzer (spec §4.1): it transforms
// internal/ast into internal/hir, maintaining a scope stack, resolving
// overloads, instantiating generics/templates/macros, expanding inline
// calls, deriving traits and compute modes, and synthesising anonymous
// record types for table operations.
//
// Grounded on sentra/internal/compiler's analyzer pass structure
// (scope-stack walk producing typed nodes from untyped ones), generalised
// from Sentra's dynamically-typed resolution to this language's structural
// TypeCode equality, traits/compute-mode inference, and CTFE round-trip.
package sema

import (
	"fmt"

	"github.com/pkg/errors"

	"vvm/internal/ast"
	"vvm/internal/hir"
	"vvm/internal/langerrors"
	"vvm/internal/langtypes"
)

// Analyzer holds all state for one module analysis (or one REPL turn, which
// reuses accumulated state — spec §3 Lifecycles: "Typed IR from a REPL turn
// is retained as history").
type Analyzer struct {
	types       *langtypes.Registry
	scopes      *scopeTree
	current     *Scope
	placeholders *placeholderMap
	diags       langerrors.Buffer
	interactive bool

	generics  map[string]*hir.GenericFuncDef
	templates map[string]*hir.TemplateDef
	macros    map[string]*hir.MacroDef
	functions []*hir.FuncDef
	byTypeSeq int

	// ctfe is invoked for the CTFE round-trip (spec §4.1 "Compile-time
	// function evaluation"); nil disables CTFE (e.g. inside the CTFE
	// sub-evaluation itself, to bound recursion). Wired to a real
	// codegen+VVM round-trip by internal/vvm.NewCTFE.
	ctfe CTFEFunc
}

// CTFEFunc assembles a minimal wrapper program for expr, runs it through
// code generation and the VM's comptime instance, and returns the resulting
// display string (spec §4.1). Implemented by internal/vvm to avoid a sema→
// codegen→vvm→sema import cycle; sema only depends on the function type.
type CTFEFunc func(expr hir.Expr, types *langtypes.Registry) (string, error)

// New creates an analyzer with an empty type registry and global scope.
func New() *Analyzer {
	a := &Analyzer{
		types:        langtypes.NewRegistry(),
		scopes:       newScopeTree(),
		placeholders: newPlaceholderMap(),
		generics:     make(map[string]*hir.GenericFuncDef),
		templates:    make(map[string]*hir.TemplateDef),
		macros:       make(map[string]*hir.MacroDef),
	}
	a.current = a.scopes.root
	a.registerSemanticBuiltins()
	a.registerBuiltinFuncs()
	return a
}

// SetInteractive toggles REPL-mode redefinition semantics (spec §4.1 store_symbol).
func (a *Analyzer) SetInteractive(v bool) { a.interactive = v }

// SetCTFE wires the CTFE round-trip function (internal/vvm.NewCTFE(a)).
func (a *Analyzer) SetCTFE(f CTFEFunc) { a.ctfe = f }

// Types exposes the shared type registry (internal/codegen needs it to emit
// `alloc`/`Type` operands).
func (a *Analyzer) Types() *langtypes.Registry { return a.types }

func (a *Analyzer) errorf(n ast.Node, format string, args ...interface{}) {
	loc := langerrors.SourceLocation{}
	if n != nil {
		p := n.Position()
		loc = langerrors.SourceLocation{Line: p.Line, Column: p.Col}
	}
	a.diags.Add(langerrors.New(langerrors.KindSema, loc, format, args...))
}

// Diagnostics returns every accumulated diagnostic.
func (a *Analyzer) Diagnostics() []*langerrors.Diagnostic { return a.diags.Diagnostics() }

// Analyze transforms a parsed module into typed IR. On any diagnostic, the
// module is rejected (spec §4.1 "on non-empty buffer at module end, the
// analyzer rejects the module") and Analyze returns the accumulated buffer
// as an error.
func (a *Analyzer) Analyze(mod *ast.Module) (*hir.Module, error) {
	out := &hir.Module{}
	for _, st := range mod.Stmts {
		ts, err := a.analyzeStmt(st, a.current)
		if err != nil {
			// analyzeStmt already recorded a diagnostic; keep going so
			// downstream diagnostics remain meaningful (spec §4.1).
			continue
		}
		if ts != nil {
			out.Stmts = append(out.Stmts, ts)
		}
	}
	out.Functions = a.functions
	for _, g := range a.generics {
		out.Generics = append(out.Generics, g)
	}
	for _, t := range a.templates {
		out.Templates = append(out.Templates, t)
	}
	for _, m := range a.macros {
		out.Macros = append(out.Macros, m)
	}
	if !a.diags.Empty() {
		return nil, errors.WithStack(&a.diags)
	}
	return out, nil
}

func (a *Analyzer) pushScope() *Scope {
	s := a.scopes.push(a.current)
	a.current = s
	return s
}

func (a *Analyzer) popScope(prev *Scope) { a.current = prev }

// ---- Statements ----

func (a *Analyzer) analyzeStmt(st ast.Stmt, scope *Scope) (hir.Stmt, error) {
	switch n := st.(type) {
	case *ast.LetDecl:
		return a.analyzeLetDecl(n, scope)
	case *ast.Assign:
		return a.analyzeAssign(n, scope)
	case *ast.While:
		return a.analyzeWhile(n, scope)
	case *ast.Return:
		return a.analyzeReturn(n, scope)
	case *ast.ExprStmt:
		e, err := a.analyzeExpr(n.X, scope)
		if err != nil {
			return nil, err
		}
		return &hir.ExprStmt{X: e}, nil
	case *ast.FnDecl:
		return a.analyzeFnDecl(n, scope)
	case *ast.DataDecl:
		return a.analyzeDataDecl(n, scope)
	default:
		a.errorf(st, "unsupported statement")
		return nil, fmt.Errorf("unsupported statement")
	}
}

func (a *Analyzer) analyzeLetDecl(n *ast.LetDecl, scope *Scope) (hir.Stmt, error) {
	val, err := a.analyzeExpr(n.Value, scope)
	if err != nil {
		return nil, err
	}
	declType := val.Info().Type
	if n.Type != nil {
		t, err := a.resolveTypeExpr(n.Type, scope, nil)
		if err != nil {
			a.errorf(n, "unknown type in declaration of %q: %v", n.Name, err)
			return nil, err
		}
		if t != declType {
			a.errorf(n, "cannot assign %s to %q of declared type %s", a.types.DisplayName(declType), n.Name, a.types.DisplayName(t))
			return nil, fmt.Errorf("type mismatch")
		}
		declType = t
	}
	traits := val.Info().Traits
	mode := val.Info().Mode
	if n.Mutable {
		traits = 0
		mode = hir.Normal
	}
	decl := &hir.Decl{
		Name:     n.Name,
		Type:     declType,
		Value:    val,
		Mutable:  n.Mutable,
		Traits:   traits,
		Mode:     mode,
		Literal:  val.Info().Literal,
		IsGlobal: scope == a.scopes.root,
	}
	if err := scope.storeSymbol(n.Name, Resolved{Kind: RefVar, Decl: decl}, a.interactive); err != nil {
		a.errorf(n, "%v", err)
		return nil, err
	}
	return decl, nil
}

func (a *Analyzer) analyzeAssign(n *ast.Assign, scope *Scope) (hir.Stmt, error) {
	target, err := a.analyzeExpr(n.Target, scope)
	if err != nil {
		return nil, err
	}
	val, err := a.analyzeExpr(n.Value, scope)
	if err != nil {
		return nil, err
	}
	if n.Op != "" {
		op := n.Op[:len(n.Op)-1] // "+=" -> "+"
		ov, ok := lookupBuiltinBinary(op, target.Info().Type, val.Info().Type)
		if !ok {
			a.errorf(n, "no operator %q for %s %s %s", n.Op, a.types.DisplayName(target.Info().Type), op, a.types.DisplayName(val.Info().Type))
			return nil, fmt.Errorf("no operator")
		}
		bin := &hir.BinaryOp{Op: op, Left: target, Right: val}
		bin.Type = ov.result
		val = bin
	}
	if target.Info().Type != val.Info().Type {
		a.errorf(n, "cannot assign %s to target of type %s", a.types.DisplayName(val.Info().Type), a.types.DisplayName(target.Info().Type))
		return nil, fmt.Errorf("type mismatch")
	}
	return &hir.Assign{Target: target, Value: val}, nil
}

func (a *Analyzer) analyzeWhile(n *ast.While, scope *Scope) (hir.Stmt, error) {
	cond, err := a.analyzeExpr(n.Cond, scope)
	if err != nil {
		return nil, err
	}
	boolS := langtypes.Builtin(langtypes.Bool, langtypes.Scalar)
	if cond.Info().Type != boolS {
		a.errorf(n, "while condition must be Bool, got %s", a.types.DisplayName(cond.Info().Type))
		return nil, fmt.Errorf("condition type")
	}
	inner := a.pushScope()
	body, err := a.analyzeBlock(n.Body, inner)
	a.popScope(scope)
	if err != nil {
		return nil, err
	}
	return &hir.While{Cond: cond, Body: body}, nil
}

func (a *Analyzer) analyzeReturn(n *ast.Return, scope *Scope) (hir.Stmt, error) {
	if n.Value == nil {
		return &hir.Return{}, nil
	}
	v, err := a.analyzeExpr(n.Value, scope)
	if err != nil {
		return nil, err
	}
	return &hir.Return{Value: v}, nil
}

func (a *Analyzer) analyzeBlock(b *ast.Block, scope *Scope) (*hir.BlockExpr, error) {
	out := &hir.BlockExpr{}
	var lastExpr hir.Expr
	for _, st := range b.Stmts {
		ts, err := a.analyzeStmt(st, scope)
		if err != nil {
			continue
		}
		out.Stmts = append(out.Stmts, ts)
		if es, ok := ts.(*hir.ExprStmt); ok {
			lastExpr = es.X
		} else {
			lastExpr = nil
		}
	}
	if lastExpr != nil {
		out.ExprInfo = *lastExpr.Info()
	} else {
		out.ExprInfo.Type = langtypes.Void
	}
	return out, nil
}
