// Package hir defines the typed intermediate representation the semantic
// analyzer (internal/sema) produces from internal/ast and internal/codegen
// lowers into internal/bytecode. Grounded on sentra/internal/compiler's
// typed-node shapes, generalised from Sentra's dynamic-Value IR to the
// tagged-type, traits/compute-mode IR spec §3/§4.1 describes.
package hir

import (
	"vvm/internal/ast"
	"vvm/internal/langtypes"
)

// Trait is one bit of the {Pure, Transform, Linear, Autostream} bitset
// (spec §4.1 "Traits and compute modes").
type Trait uint8

const (
	Pure Trait = 1 << iota
	Transform
	Linear
	Autostream
)

// Traits is a bitset of Trait values.
type Traits uint8

func (t Traits) Has(tr Trait) bool { return t&Traits(tr) != 0 }

// Intersect computes func_traits & ⋂(arg_traits): traits present in every
// operand and also in the function's own declared set.
func Intersect(funcTraits Traits, argTraits ...Traits) Traits {
	if len(argTraits) == 0 {
		return funcTraits
	}
	result := argTraits[0]
	for _, a := range argTraits[1:] {
		result &= a
	}
	return result & funcTraits
}

// Mode is a compute mode: Comptime, Normal, or Stream.
type Mode uint8

const (
	Normal Mode = iota
	Comptime
	Stream
)

func (m Mode) String() string {
	switch m {
	case Comptime:
		return "Comptime"
	case Stream:
		return "Stream"
	default:
		return "Normal"
	}
}

// DeriveMode applies spec §4.1's compute-mode rule for a compound expression
// given the called function's declared traits and its arguments' modes.
func DeriveMode(funcTraits Traits, argModes ...Mode) Mode {
	for _, m := range argModes {
		if m == Stream {
			return Stream
		}
	}
	if funcTraits.Has(Autostream) {
		return Stream
	}
	if funcTraits.Has(Linear) {
		for _, m := range argModes {
			if m == Stream {
				return Stream
			}
		}
	}
	if funcTraits.Has(Pure) {
		allComptime := true
		for _, m := range argModes {
			if m != Comptime {
				allComptime = false
				break
			}
		}
		if allComptime {
			return Comptime
		}
	}
	return Normal
}

// ComptimeLiteral is a precomputed value attached to a Comptime-mode
// expression, either taken directly from a literal sub-form or produced by
// the CTFE round-trip (spec §4.1 "Compile-time function evaluation").
type ComptimeLiteral struct {
	Type  langtypes.TypeCode
	Bool  bool
	Int   int64
	Str   string
}

// Expr is a typed expression node: every concrete node embeds ExprInfo.
type Expr interface {
	Info() *ExprInfo
}

// ExprInfo carries the fields every typed expression node has (spec §3
// "Typed IR entities"): type, traits, mode, optional comptime literal,
// display name for diagnostics.
type ExprInfo struct {
	Type        langtypes.TypeCode
	Traits      Traits
	Mode        Mode
	Literal     *ComptimeLiteral
	DisplayName string
	Origin      ast.Expr // untyped origin, for diagnostics
}

func (e *ExprInfo) Info() *ExprInfo { return e }

// IdentRef is a resolved reference to a Decl (variable, function operand,
// or similar).
type IdentRef struct {
	ExprInfo
	Name string
	Decl *Decl
}

// Lit is a literal value baked directly into the typed IR.
type Lit struct {
	ExprInfo
	Bool  bool
	Int   int64
	Float float64
	Str   string
}

// VectorLit is an array literal; its element type is ExprInfo.Type's scalar
// form.
type VectorLit struct {
	ExprInfo
	Elements []Expr
}

// UnaryOp is a resolved unary operator application.
type UnaryOp struct {
	ExprInfo
	Op       string
	Operand  Expr
	FuncSpec *FuncDef // the resolved operator overload, nil if builtin-primitive
}

// BinaryOp is a resolved binary operator application, arithmetic or
// relational.
type BinaryOp struct {
	ExprInfo
	Op          string
	Left, Right Expr
	FuncSpec    *FuncDef
}

// LogicalOp is `&&`/`||`, kept distinct because its lowering is
// short-circuiting branch code rather than a specialised opcode.
type LogicalOp struct {
	ExprInfo
	Op          string
	Left, Right Expr
}

// Call is a resolved call to a function, generic instantiation, template
// instantiation, or inlined body.
type Call struct {
	ExprInfo
	Callee     *FuncDef
	Args       []Expr
	InlineExpr Expr // non-nil when Callee.ForceInline: substituted body

	// Builtin names a VM-intrinsic function (print, repr, sum, load, store,
	// load_sql, stream_table, exit, ...) this call invokes instead of
	// Callee; codegen maps it to a single opcode rather than an OpCall
	// (spec §4.2 "Builtin function refs expand to a single opcode").
	Builtin string
	// BuiltinType is the type argument a builtin call was instantiated
	// with, already in Dataframe form (e.g. `!Trade` for
	// `load{Trade}("file.csv")`), for builtins whose result
	// shape is not derivable from value arguments alone.
	BuiltinType langtypes.TypeCode
}

// MemberAccess is `.field` access on a record or implied-member access
// inside a table clause.
type MemberAccess struct {
	ExprInfo
	Target      Expr
	FieldName   string
	FieldOffset int
}

// IndexAccess is `[idx]` subscript access on a vector.
type IndexAccess struct {
	ExprInfo
	Target, Index Expr
}

// IfExpr is a typed if/elif/else expression.
type IfExpr struct {
	ExprInfo
	Cond       Expr
	Then       *BlockExpr
	Elif       *IfExpr
	Else       *BlockExpr
}

// BlockExpr is a typed statement sequence; its type is its final
// expression-statement's type, or the Dataframe/void sentinel otherwise.
type BlockExpr struct {
	ExprInfo
	Stmts []Stmt
}

// ByColumn is one column of a query/sort/join "by-type" (spec §4.1 Table
// expressions).
type ByColumn struct {
	Name string
	Expr Expr
}

// SelectColumn is one `select` column of a Query.
type SelectColumn struct {
	Name string
	Expr Expr
}

// Query is a typed `from T select C* by B* where W` table expression.
type Query struct {
	ExprInfo
	Table  Expr
	Select []SelectColumn
	By     []ByColumn
	Where  Expr
	ByType langtypes.TypeCode // 0 if By is empty
}

// Sort is a typed `sort T by E*` table expression.
type Sort struct {
	ExprInfo
	Table  Expr
	By     []ByColumn
	ByType langtypes.TypeCode
}

// JoinDirection mirrors ast.JoinDirection in typed form.
type JoinDirection = ast.JoinDirection

// Join is a typed `join L, R [on] [asof] [strict] [dir] [within]` table
// expression.
type Join struct {
	ExprInfo
	Left, Right       Expr
	On                []ByColumn
	OnByType          langtypes.TypeCode
	AsofLeft, AsofRight Expr
	Strict            bool
	Direction         JoinDirection
	Within            Expr
}

// ---- Statements ----

type Stmt interface {
	stmtNode()
}

// ExprStmt wraps an expression used as a statement.
type ExprStmt struct {
	X Expr
}

func (*ExprStmt) stmtNode() {}

// Decl is a typed `let`/`var` declaration, or a function parameter slot
// (spec §3 "Declarations carry…").
type Decl struct {
	Name           string
	Type           langtypes.TypeCode
	Value          Expr // nil for a parameter with no default
	Mutable        bool
	Traits         Traits
	Mode           Mode
	Literal        *ComptimeLiteral
	FieldOffset    int // record field offset; codegen keeps declaration operands in its own map and does not set this
	IsGlobal       bool
	MacroParameter bool
	ImpliedMember  bool // bound by a table clause's preferred scope; resolves against the codegen implied-table stack, not a real operand
}

func (*Decl) stmtNode() {}

// Assign is a typed assignment, `target = value` or compound (`+=` etc,
// already desugared to `target = target op value` by sema).
type Assign struct {
	Target Expr
	Value  Expr
}

func (*Assign) stmtNode() {}

// While is a typed while loop.
type While struct {
	Cond Expr
	Body *BlockExpr
}

func (*While) stmtNode() {}

// Return is a typed return statement.
type Return struct {
	Value Expr // nil for bare `return`
}

func (*Return) stmtNode() {}

// ---- Function/generic/template/macro/data definitions ----

// Param is one argument declaration of a function definition.
type Param struct {
	Name           string
	Type           langtypes.TypeCode
	MacroParameter bool
	Decl           *Decl // the Decl bound in the function's body scope, for codegen operand lookup
}

// FuncDef is a fully typed function definition (spec §3 "Function
// definition").
type FuncDef struct {
	Name           string
	Args           []Param
	ReturnType     langtypes.TypeCode
	Body           *BlockExpr
	BodyExpr       Expr
	ForceInline    bool
	TemplateParams []ast.TemplateParam
	Traits         Traits
	ScopeID        int
	Origin         *ast.FnDecl // pointer back to untyped origin, for re-instantiation
	MangledName    string      // "" for a non-generic, non-template definition
	GlobalOperand  int         // set to -1 by sema; codegen tracks function operands in its own map and leaves this unchanged
}

// GenericFuncDef is an uninstantiated generic: placeholders plus the list of
// already-instantiated specialisations (spec §3 "Generic function
// definition").
type GenericFuncDef struct {
	Name          string
	Placeholders  []string
	Origin        *ast.FnDecl
	Instantiated  map[string]*FuncDef // keyed by mangled name
}

// TemplateDef is an uninstantiated template (spec §3 "Template
// definition"): a function or data definition whose template parameters are
// types or typed comptime values.
type TemplateDef struct {
	Name          string
	Params        []ast.TemplateParam
	Origin        ast.Stmt // *ast.FnDecl or *ast.DataDecl
	Instantiated  map[string]*FuncDef // non-nil for function templates
	InstantiatedData map[string]langtypes.TypeCode // non-nil for data templates
}

// MacroDef is a macro definition: like FuncDef, but desugars into an
// "implied template" whose template parameters are the macro parameters
// (spec §4.1 "Macro expansion").
type MacroDef struct {
	Name         string
	Origin       *ast.FnDecl
	ImpliedTemplate *TemplateDef
}

// DataDef is a typed record or alias/provider data definition.
type DataDef struct {
	Name           string
	Type           langtypes.TypeCode // 0 for an uninstantiated template
	TemplateParams []ast.TemplateParam
	Alias          langtypes.TypeCode // non-zero for the single-expression alias form
	Origin         *ast.DataDecl
}

// Module is a fully analyzed compilation unit: ordered top-level statements
// plus every definition reachable from them, ready for internal/codegen.
type Module struct {
	Stmts     []Stmt
	Functions []*FuncDef
	Generics  []*GenericFuncDef
	Templates []*TemplateDef
	Macros    []*MacroDef
	Datas     []*DataDef
}
