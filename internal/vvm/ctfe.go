package vvm

import (
	"vvm/internal/bytecode"
	"vvm/internal/codegen"
	"vvm/internal/hir"
	"vvm/internal/langtypes"
	"vvm/internal/sema"
)

// NewCTFE wires sema's CTFE round-trip (spec §4.1 "Compile-time function
// evaluation") to a real codegen+VM run: the already-typed expression is
// wrapped as a minimal one-statement module, lowered, executed, and its
// display string handed back to the analyzer to parse into a literal. specs
// is shared with the enclosing program's generator so specialised opcodes
// interned during CTFE reuse the same table as the rest of the module (spec
// §6: "One SpecTable is shared by a Program's code generator and its VM
// instance").
func NewCTFE(specs *bytecode.SpecTable) sema.CTFEFunc {
	return func(expr hir.Expr, types *langtypes.Registry) (string, error) {
		mod := &hir.Module{Stmts: []hir.Stmt{&hir.ExprStmt{X: expr}}}
		g := codegen.New(types, specs)
		g.SetComptime(true)
		prog, err := g.Gen(mod)
		if err != nil {
			return "", err
		}
		return New(prog).Run()
	}
}
