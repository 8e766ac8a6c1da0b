package sema

import (
	"fmt"

	"vvm/internal/ast"
	"vvm/internal/hir"
	"vvm/internal/langtypes"
)

// builtinFuncNames lists every VM-intrinsic function (spec §4.2 "Builtin
// function refs expand to a single opcode"), seeded into the root scope so
// ordinary call resolution finds them before falling back to "undefined
// function".
var builtinFuncNames = []string{
	"print", "repr", "sum", "prod", "min", "max", "count",
	"load", "store", "load_sql", "stream_table", "exit",
}

func (a *Analyzer) registerBuiltinFuncs() {
	for _, name := range builtinFuncNames {
		_ = a.current.storeSymbol(name, Resolved{Kind: RefBuiltinFunc}, false)
	}
}

func voidType() langtypes.TypeCode { return langtypes.Void }

func stringScalar() langtypes.TypeCode { return langtypes.Builtin(langtypes.String, langtypes.Scalar) }

// analyzeBuiltinCall handles a call whose callee name resolved to
// RefBuiltinFunc.
func (a *Analyzer) analyzeBuiltinCall(name string, n *ast.Call, scope *Scope) (hir.Expr, error) {
	switch name {
	case "print":
		return a.builtinPrint(n, scope)
	case "repr":
		return a.builtinRepr(n, scope)
	case "sum", "prod", "min", "max", "count":
		return a.builtinReduce(name, n, scope)
	case "load":
		return a.builtinLoad(n, scope)
	case "store":
		return a.builtinStore(n, scope)
	case "load_sql":
		return a.builtinLoadSQL(n, scope)
	case "stream_table":
		return a.builtinStreamTable(n, scope)
	case "exit":
		return a.builtinExit(n, scope)
	default:
		return nil, fmt.Errorf("sema: unregistered builtin %q", name)
	}
}

func (a *Analyzer) analyzeArgs(n *ast.Call, scope *Scope) ([]hir.Expr, error) {
	args := make([]hir.Expr, len(n.Args))
	for i, ae := range n.Args {
		te, err := a.analyzeExpr(ae, scope)
		if err != nil {
			return nil, err
		}
		args[i] = te
	}
	return args, nil
}

func builtinCall(name string, args []hir.Expr, t langtypes.TypeCode, traits hir.Traits, mode hir.Mode) *hir.Call {
	c := &hir.Call{Args: args, Builtin: name}
	c.Type = t
	c.Traits = traits
	c.Mode = mode
	return c
}

// builtinPrint renders any value to the terminal (spec §4.3 Display); it
// produces no value (Void).
func (a *Analyzer) builtinPrint(n *ast.Call, scope *Scope) (hir.Expr, error) {
	args, err := a.analyzeArgs(n, scope)
	if err != nil {
		return nil, err
	}
	if len(args) != 1 {
		a.errorf(n, "print expects exactly one argument")
		return nil, fmt.Errorf("print: arity")
	}
	return builtinCall("print", args, voidType(), hir.Traits(0), hir.Normal), nil
}

// builtinRepr renders a value as its display String without printing it
// (used by the REPL's interactive top-level and by CTFE's round-trip).
func (a *Analyzer) builtinRepr(n *ast.Call, scope *Scope) (hir.Expr, error) {
	args, err := a.analyzeArgs(n, scope)
	if err != nil {
		return nil, err
	}
	if len(args) != 1 {
		a.errorf(n, "repr expects exactly one argument")
		return nil, fmt.Errorf("repr: arity")
	}
	return builtinCall("repr", args, stringScalar(), hir.Traits(hir.Pure), hir.Normal), nil
}

// builtinReduce handles sum/prod/min/max/count, each folding a vector to a
// scalar (spec §4.3 "Reductions"; "Reduction identity: sum([]) == 0;
// prod([]) == 1"). count always returns Int64; the others return the
// vector's own element kind.
func (a *Analyzer) builtinReduce(name string, n *ast.Call, scope *Scope) (hir.Expr, error) {
	args, err := a.analyzeArgs(n, scope)
	if err != nil {
		return nil, err
	}
	if len(args) != 1 {
		a.errorf(n, "%s expects exactly one argument", name)
		return nil, fmt.Errorf("%s: arity", name)
	}
	argType := args[0].Info().Type
	k, shape, ok := argType.Decode()
	if !ok || shape != langtypes.Vector {
		a.errorf(n, "%s expects a vector, got %s", name, a.types.DisplayName(argType))
		return nil, fmt.Errorf("%s: not a vector", name)
	}
	result := langtypes.Builtin(k, langtypes.Scalar)
	if name == "count" {
		result = langtypes.Builtin(langtypes.Int64, langtypes.Scalar)
	} else if !k.Numeric() {
		a.errorf(n, "%s requires a numeric vector, got %s", name, a.types.DisplayName(argType))
		return nil, fmt.Errorf("%s: non-numeric", name)
	}
	return builtinCall(name, args, result, hir.Traits(hir.Pure|hir.Transform|hir.Linear), args[0].Info().Mode), nil
}

// typeTemplateArg resolves a builtin's single `{Type}` template argument to
// the Dataframe form of a user-defined scalar type (spec §3 "Dataframe
// types are array-of-field forms"): `load{Trade}("t.csv")` loads into
// `!Trade`.
func (a *Analyzer) typeTemplateArg(n *ast.Call, name string, scope *Scope) (langtypes.TypeCode, error) {
	if len(n.TemplateArgs) != 1 {
		a.errorf(n, "%s expects a type argument: %s{Type}(...)", name, name)
		return 0, fmt.Errorf("%s: missing type argument", name)
	}
	scalarType, err := a.templateArgType(n.TemplateArgs[0], scope)
	if err != nil {
		a.errorf(n, "%s: %v", name, err)
		return 0, err
	}
	dfType, err := a.types.DataframeOf(scalarType)
	if err != nil {
		a.errorf(n, "%s: %v", name, err)
		return 0, err
	}
	return dfType, nil
}

func (a *Analyzer) requireString(n *ast.Call, who string, e hir.Expr) error {
	if e.Info().Type != stringScalar() {
		a.errorf(n, "%s: expected String, got %s", who, a.types.DisplayName(e.Info().Type))
		return fmt.Errorf("%s: type", who)
	}
	return nil
}

// builtinLoad lowers `load{Type}(path)` (spec §4.3 "CSV load/store").
func (a *Analyzer) builtinLoad(n *ast.Call, scope *Scope) (hir.Expr, error) {
	dfType, err := a.typeTemplateArg(n, "load", scope)
	if err != nil {
		return nil, err
	}
	args, err := a.analyzeArgs(n, scope)
	if err != nil {
		return nil, err
	}
	if len(args) != 1 {
		a.errorf(n, "load expects exactly one argument (path)")
		return nil, fmt.Errorf("load: arity")
	}
	if err := a.requireString(n, "load", args[0]); err != nil {
		return nil, err
	}
	c := builtinCall("load", args, dfType, hir.Traits(0), hir.Normal)
	c.BuiltinType = dfType
	return c, nil
}

// builtinStore lowers `store(table, path)`.
func (a *Analyzer) builtinStore(n *ast.Call, scope *Scope) (hir.Expr, error) {
	args, err := a.analyzeArgs(n, scope)
	if err != nil {
		return nil, err
	}
	if len(args) != 2 {
		a.errorf(n, "store expects exactly two arguments (table, path)")
		return nil, fmt.Errorf("store: arity")
	}
	if !a.types.IsDataframe(args[0].Info().Type) {
		a.errorf(n, "store: first argument must be a Dataframe")
		return nil, fmt.Errorf("store: not a dataframe")
	}
	if err := a.requireString(n, "store", args[1]); err != nil {
		return nil, err
	}
	return builtinCall("store", args, voidType(), hir.Traits(0), hir.Normal), nil
}

// builtinLoadSQL lowers `load_sql{Type}(driver, dsn, query)`, generalising
// CSV load to a second external table source (SPEC_FULL.md's
// internal/sqlsource domain-stack addition): the driver/dsn/query strings
// route to a real `database/sql` connection at runtime, and rows are parsed
// into the target Dataframe type the same way a CSV row is.
func (a *Analyzer) builtinLoadSQL(n *ast.Call, scope *Scope) (hir.Expr, error) {
	dfType, err := a.typeTemplateArg(n, "load_sql", scope)
	if err != nil {
		return nil, err
	}
	args, err := a.analyzeArgs(n, scope)
	if err != nil {
		return nil, err
	}
	if len(args) != 3 {
		a.errorf(n, "load_sql expects exactly three arguments (driver, dsn, query)")
		return nil, fmt.Errorf("load_sql: arity")
	}
	for i, who := range []string{"driver", "dsn", "query"} {
		if err := a.requireString(n, "load_sql "+who, args[i]); err != nil {
			return nil, err
		}
	}
	c := builtinCall("load_sql", args, dfType, hir.Traits(0), hir.Normal)
	c.BuiltinType = dfType
	return c, nil
}

// builtinStreamTable lowers `stream_table{Type}(url)` (SPEC_FULL.md's
// internal/stream domain-stack addition backing the Autostream trait and
// Stream compute mode): each inbound websocket frame appends one row.
func (a *Analyzer) builtinStreamTable(n *ast.Call, scope *Scope) (hir.Expr, error) {
	dfType, err := a.typeTemplateArg(n, "stream_table", scope)
	if err != nil {
		return nil, err
	}
	args, err := a.analyzeArgs(n, scope)
	if err != nil {
		return nil, err
	}
	if len(args) != 1 {
		a.errorf(n, "stream_table expects exactly one argument (url)")
		return nil, fmt.Errorf("stream_table: arity")
	}
	if err := a.requireString(n, "stream_table", args[0]); err != nil {
		return nil, err
	}
	c := builtinCall("stream_table", args, dfType, hir.Traits(hir.Autostream), hir.Stream)
	c.BuiltinType = dfType
	return c, nil
}

// builtinExit lowers `exit(n)` (spec §5: "a top-level exit(n) raises a
// control condition that unwinds the dispatch loop with exit code n").
func (a *Analyzer) builtinExit(n *ast.Call, scope *Scope) (hir.Expr, error) {
	args, err := a.analyzeArgs(n, scope)
	if err != nil {
		return nil, err
	}
	if len(args) != 1 {
		a.errorf(n, "exit expects exactly one argument")
		return nil, fmt.Errorf("exit: arity")
	}
	int64S := langtypes.Builtin(langtypes.Int64, langtypes.Scalar)
	if args[0].Info().Type != int64S {
		a.errorf(n, "exit expects an Int64 exit code")
		return nil, fmt.Errorf("exit: type")
	}
	return builtinCall("exit", args, voidType(), hir.Traits(0), hir.Normal), nil
}
