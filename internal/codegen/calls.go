package codegen

import (
	"fmt"

	"vvm/internal/bytecode"
	"vvm/internal/hir"
	"vvm/internal/operand"
)

// genCall lowers a resolved call (spec §4.2 "Function calls": `call
// <func-operand> <n> arg0..argN-1 resultReg`; the count operand is the
// argument count N itself, with no +1 offset, which is how the VM's execCall
// reads it). A force-inline callee is
// substituted at its call site instead of emitting a CALL; a builtin call
// expands to a single opcode instead.
func (g *Generator) genCall(n *hir.Call) (operand.Operand, error) {
	if n.Builtin != "" {
		return g.genBuiltinCall(n)
	}
	if n.Callee != nil && n.Callee.ForceInline && n.InlineExpr != nil {
		return g.genExpr(n.InlineExpr)
	}
	args := make([]operand.Operand, len(n.Args))
	for i, a := range n.Args {
		v, err := g.genExpr(a)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	return g.genOverloadCall(n.Callee, args)
}

// genBuiltinCall lowers a VM-intrinsic call to its single opcode (spec §4.2
// "Builtin function refs expand to a single opcode").
func (g *Generator) genBuiltinCall(n *hir.Call) (operand.Operand, error) {
	args := make([]operand.Operand, len(n.Args))
	for i, a := range n.Args {
		v, err := g.genExpr(a)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	switch n.Builtin {
	case "print":
		g.prog.Emit(bytecode.OpPrint, args[0])
		return args[0], nil
	case "repr":
		dst := g.reserveLocal()
		g.prog.Emit(bytecode.OpRepr, dst, args[0])
		return dst, nil
	case "sum":
		dst := g.reserveLocal()
		g.prog.Emit(bytecode.OpReduceSum, dst, args[0])
		return dst, nil
	case "prod":
		dst := g.reserveLocal()
		g.prog.Emit(bytecode.OpReduceProd, dst, args[0])
		return dst, nil
	case "min":
		dst := g.reserveLocal()
		g.prog.Emit(bytecode.OpReduceMin, dst, args[0])
		return dst, nil
	case "max":
		dst := g.reserveLocal()
		g.prog.Emit(bytecode.OpReduceMax, dst, args[0])
		return dst, nil
	case "count":
		dst := g.reserveLocal()
		g.prog.Emit(bytecode.OpReduceCount, dst, args[0])
		return dst, nil
	case "load":
		dst := g.reserveLocal()
		g.prog.Emit(bytecode.OpLoadCSV, dst, typeOperand(n.BuiltinType), args[0])
		return dst, nil
	case "store":
		g.prog.Emit(bytecode.OpStoreCSV, args[0], args[1])
		return args[0], nil
	case "load_sql":
		dst := g.reserveLocal()
		g.prog.Emit(bytecode.OpLoadSQL, dst, typeOperand(n.BuiltinType), args[0], args[1], args[2])
		return dst, nil
	case "stream_table":
		dst := g.reserveLocal()
		g.prog.Emit(bytecode.OpStreamOpen, dst, typeOperand(n.BuiltinType), args[0])
		return dst, nil
	case "exit":
		g.prog.Emit(bytecode.OpExit, args[0])
		return args[0], nil
	default:
		return 0, fmt.Errorf("codegen: unknown builtin %q", n.Builtin)
	}
}

// genOverloadCall emits the CALL sequence for fn given already-evaluated
// argument operands, used both by genCall and by operator-overload
// dispatch (UnaryOp/BinaryOp.FuncSpec).
func (g *Generator) genOverloadCall(fn *hir.FuncDef, args []operand.Operand) (operand.Operand, error) {
	funcOp, err := g.funcGlobalOperand(fn)
	if err != nil {
		return 0, err
	}
	dst := g.reserveLocal()
	ops := make([]operand.Operand, 0, len(args)+3)
	ops = append(ops, funcOp, operand.MakeImmediate(uint32(len(args))))
	ops = append(ops, args...)
	ops = append(ops, dst)
	g.prog.Emit(bytecode.OpCall, ops...)
	return dst, nil
}
