package main

import (
	"fmt"

	"vvm/internal/bytecode"
	"vvm/internal/codegen"
	"vvm/internal/langerrors"
	"vvm/internal/parser"
	"vvm/internal/sema"
)

// dumpMode selects which intermediate representation --dump-ast/--dump-hir/
// --dump-vvm prints instead of running the program (spec §6 flags).
type dumpMode struct {
	ast, hir, vvm bool
}

func runDump(src string, dump dumpMode) error {
	mod, err := parser.Parse(src)
	if err != nil {
		return fmt.Errorf("vvm: %w", err)
	}
	if dump.ast {
		for _, st := range mod.Stmts {
			fmt.Printf("%#v\n", st)
		}
	}
	if !dump.hir && !dump.vvm {
		return nil
	}

	a := sema.New()
	hirMod, err := a.Analyze(mod)
	if err != nil {
		if buf, ok := asBuffer(err); ok {
			return fmt.Errorf("%s", buf.Error())
		}
		return err
	}
	if dump.hir {
		for _, st := range hirMod.Stmts {
			fmt.Printf("%#v\n", st)
		}
		for _, fn := range hirMod.Functions {
			fmt.Printf("func %#v\n", fn)
		}
	}
	if !dump.vvm {
		return nil
	}

	specs := bytecode.NewSpecTable()
	g := codegen.New(a.Types(), specs)
	prog, err := g.Gen(hirMod)
	if err != nil {
		return err
	}
	fmt.Printf("; MainEntry=%d\n", prog.MainEntry)
	for i, instr := range prog.Instrs {
		fmt.Printf("%4d: %s", i, instr.Op)
		for _, op := range instr.Operands {
			fmt.Printf(" %s", op)
		}
		fmt.Println()
	}
	return nil
}

func asBuffer(err error) (*langerrors.Buffer, bool) {
	for err != nil {
		if b, ok := err.(*langerrors.Buffer); ok {
			return b, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
