package vvm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vvm/internal/bytecode"
	"vvm/internal/langtypes"
	"vvm/internal/operand"
)

// buildAddProgram assembles `repr(3 + 4); save` by hand, the way a codegen
// unit test would, bypassing the lexer/parser/sema pipeline entirely.
func buildAddProgram(t *testing.T) *bytecode.Program {
	t.Helper()
	types := langtypes.NewRegistry()
	specs := bytecode.NewSpecTable()
	prog := bytecode.NewProgram(types, specs)

	int64Scalar := bytecode.ElemSpec{Kind: langtypes.Int64}
	addOp := specs.Binary(bytecode.FAdd, int64Scalar, int64Scalar)

	a := operand.Make(operand.Local, 0)
	b := operand.Make(operand.Local, 1)
	sum := operand.Make(operand.Local, 2)
	repr := operand.Make(operand.Local, 3)

	prog.MainEntry = len(prog.Instrs)
	prog.Emit(bytecode.OpLoadImm, a, operand.MakeImmediate(3))
	prog.Emit(bytecode.OpLoadImm, b, operand.MakeImmediate(4))
	prog.Emit(addOp, sum, a, b)
	prog.Emit(bytecode.OpRepr, repr, sum)
	prog.Emit(bytecode.OpSave, repr)
	prog.Emit(bytecode.OpHalt)
	return prog
}

func TestRunSpecialisedArithmetic(t *testing.T) {
	vm := New(buildAddProgram(t))
	out, err := vm.Run()
	require.NoError(t, err)
	require.Equal(t, "7", out)
}

func TestRunExitUnwindsWithCode(t *testing.T) {
	types := langtypes.NewRegistry()
	prog := bytecode.NewProgram(types, bytecode.NewSpecTable())
	code := operand.Make(operand.Local, 0)
	prog.MainEntry = len(prog.Instrs)
	prog.Emit(bytecode.OpLoadImm, code, operand.MakeImmediate(2))
	prog.Emit(bytecode.OpExit, code)

	_, err := New(prog).Run()
	require.Error(t, err)
	require.Equal(t, "exit(2)", err.Error())
}

// buildCallProgram builds a two-function program: `fn double(x) = x + x`
// called as `double(5)`, exercising CALL/RET and the function global
// operand sharing the FunctionDef constant-pool index.
func buildCallProgram(t *testing.T) *bytecode.Program {
	t.Helper()
	types := langtypes.NewRegistry()
	specs := bytecode.NewSpecTable()
	prog := bytecode.NewProgram(types, specs)

	int64Scalar := bytecode.ElemSpec{Kind: langtypes.Int64}
	addOp := specs.Binary(bytecode.FAdd, int64Scalar, int64Scalar)

	fd := &bytecode.FunctionDef{Name: "double", NumLocals: 2}
	fnIdx := prog.AddConst(bytecode.Const{Kind: bytecode.ConstFunctionDef, Fn: fd})
	fnOp := operand.Make(operand.Global, uint32(fnIdx))

	fd.Entry = len(prog.Instrs)
	x := operand.Make(operand.Local, 0)
	doubled := operand.Make(operand.Local, 1)
	prog.Emit(addOp, doubled, x, x)
	prog.Emit(bytecode.OpRet, doubled)

	prog.MainEntry = len(prog.Instrs)
	arg := operand.Make(operand.Local, 0)
	result := operand.Make(operand.Local, 1)
	repr := operand.Make(operand.Local, 2)
	prog.Emit(bytecode.OpLoadImm, arg, operand.MakeImmediate(5))
	prog.Emit(bytecode.OpCall, fnOp, operand.MakeImmediate(1), arg, result)
	prog.Emit(bytecode.OpRepr, repr, result)
	prog.Emit(bytecode.OpSave, repr)
	prog.Emit(bytecode.OpHalt)
	return prog
}

func TestRunFunctionCall(t *testing.T) {
	out, err := New(buildCallProgram(t)).Run()
	require.NoError(t, err)
	require.Equal(t, "10", out)
}

func TestSyncConstsGrowsWithoutResettingExisting(t *testing.T) {
	types := langtypes.NewRegistry()
	specs := bytecode.NewSpecTable()
	prog := bytecode.NewProgram(types, specs)
	vm := New(prog)

	g0 := operand.Make(operand.Global, uint32(prog.AddConst(bytecode.Const{Kind: bytecode.ConstInt64, I: 41})))
	vm.SyncConsts()
	vm.globals[g0.Payload()] = Value{Type: langtypes.Builtin(langtypes.Int64, langtypes.Scalar), I: 99}

	prog.AddConst(bytecode.Const{Kind: bytecode.ConstInt64, I: 7})
	vm.SyncConsts()

	require.Equal(t, int64(99), vm.globals[g0.Payload()].I, "a later SyncConsts must not clobber a slot a prior turn wrote to")
	require.Len(t, vm.globals, len(prog.Consts))
}
