package vvm

import (
	"fmt"
	"io"
	"os"

	"vvm/internal/bytecode"
	"vvm/internal/langerrors"
	"vvm/internal/langtypes"
	"vvm/internal/operand"
)

// SQLLoader is implemented by internal/sqlsource; injected so this package
// never imports a SQL driver directly (spec §4.3 external table sources).
type SQLLoader interface {
	Load(driver, dsn, query string, rowType langtypes.TypeCode, types *langtypes.Registry) (Value, error)
}

// StreamLoader is implemented by internal/stream.
type StreamLoader interface {
	Load(url string, rowType langtypes.TypeCode, types *langtypes.Registry) (Value, error)
}

// VM executes one Program (spec §4.3 "Vector VM"). One VM instance is
// created per Evaluate call; REPL turns share a VM across turns so globals
// and function definitions persist (spec §3 Lifecycles).
type VM struct {
	prog  *bytecode.Program
	types *langtypes.Registry

	globals []Value
	states  []Value

	Stdout io.Writer
	SQL    SQLLoader
	Stream StreamLoader

	history []Value // REPL save history, most recent last
}

// New creates a VM bound to prog, pre-populating the global bank from the
// program's constant pool (spec §3 "the Global bank and the constant pool
// share one index space").
func New(prog *bytecode.Program) *VM {
	vm := &VM{
		prog:    prog,
		types:   prog.Types,
		globals: make([]Value, len(prog.Consts)),
		Stdout:  os.Stdout,
	}
	for i, c := range prog.Consts {
		switch c.Kind {
		case bytecode.ConstInt64:
			vm.globals[i] = Value{Type: langtypes.Builtin(langtypes.Int64, langtypes.Scalar), I: c.I}
		case bytecode.ConstFloat64:
			vm.globals[i] = Value{Type: langtypes.Builtin(langtypes.Float64, langtypes.Scalar), F: c.F}
		case bytecode.ConstString:
			vm.globals[i] = Value{Type: langtypes.Builtin(langtypes.String, langtypes.Scalar), S: c.S}
		}
	}
	return vm
}

// SyncConsts grows the global bank after prog gained new constant-pool
// entries without disturbing already-populated slots. A Session reuses one
// VM and one underlying Program across REPL turns so bindings and function
// definitions persist (spec §3 Lifecycles: "Typed IR from a REPL turn is
// retained as history"); each turn's codegen pass appends to the same
// Program, so the VM's global bank must grow to match without resetting
// state a prior turn's `var` assignment already wrote.
func (vm *VM) SyncConsts() {
	for i := len(vm.globals); i < len(vm.prog.Consts); i++ {
		c := vm.prog.Consts[i]
		switch c.Kind {
		case bytecode.ConstInt64:
			vm.globals = append(vm.globals, Value{Type: langtypes.Builtin(langtypes.Int64, langtypes.Scalar), I: c.I})
		case bytecode.ConstFloat64:
			vm.globals = append(vm.globals, Value{Type: langtypes.Builtin(langtypes.Float64, langtypes.Scalar), F: c.F})
		case bytecode.ConstString:
			vm.globals = append(vm.globals, Value{Type: langtypes.Builtin(langtypes.String, langtypes.Scalar), S: c.S})
		default:
			vm.globals = append(vm.globals, Value{})
		}
	}
}

// ExitSignal unwinds the dispatch loop for a top-level exit(n) (spec §5).
type ExitSignal struct{ Code int }

func (e *ExitSignal) Error() string { return fmt.Sprintf("exit(%d)", e.Code) }

type frame struct {
	locals []Value
}

// Run executes the module's top-level code (Program.MainEntry) and returns
// the last REPL-saved value's display string, or "" if nothing was saved
// (spec §4.2 "Interactive top-level").
func (vm *VM) Run() (string, error) {
	f := &frame{locals: make([]Value, vm.countMainLocals())}
	_, exit, err := vm.runFrom(f, vm.prog.MainEntry)
	if exit != nil {
		// Returned as the concrete *langerrors.ExitCode type, not just its
		// rendered message, so the driver boundary (spec §7 "exit(n) is
		// caught only at the driver boundary") can recover the exit code
		// with errors.As instead of parsing a string.
		return "", &langerrors.ExitCode{Code: exit.Code}
	}
	if err != nil {
		return "", err
	}
	if len(vm.history) == 0 {
		return "", nil
	}
	return Repr(vm.history[len(vm.history)-1], vm.types), nil
}

// countMainLocals scans main's instruction range for the highest Local
// operand referenced, since genModule never separately records a local
// count for the module's own (non-function) code the way it does for
// FunctionDef.NumLocals.
func (vm *VM) countMainLocals() int {
	max := -1
	for i := vm.prog.MainEntry; i < len(vm.prog.Instrs); i++ {
		for _, op := range vm.prog.Instrs[i].Operands {
			if op.IsLocal() && int(op.Payload()) > max {
				max = int(op.Payload())
			}
		}
	}
	return max + 1
}

func (vm *VM) read(f *frame, op operand.Operand) Value {
	switch op.Tag() {
	case operand.Immediate:
		return Value{Type: langtypes.Builtin(langtypes.Int64, langtypes.Scalar), I: int64(op.Payload())}
	case operand.Local:
		return f.locals[op.Payload()]
	case operand.Global:
		return vm.globals[op.Payload()]
	case operand.State:
		idx := int(op.Payload())
		if idx >= len(vm.states) {
			return Value{}
		}
		return vm.states[idx]
	default:
		return Value{}
	}
}

func (vm *VM) write(f *frame, op operand.Operand, v Value) {
	switch op.Tag() {
	case operand.Local:
		idx := int(op.Payload())
		if idx >= len(f.locals) {
			grown := make([]Value, idx+1)
			copy(grown, f.locals)
			f.locals = grown
		}
		f.locals[idx] = v
	case operand.Global:
		vm.globals[op.Payload()] = v
	case operand.State:
		idx := int(op.Payload())
		if idx >= len(vm.states) {
			grown := make([]Value, idx+1)
			copy(grown, vm.states)
			vm.states = grown
		}
		vm.states[idx] = v
	}
}

func (vm *VM) ptr(f *frame, op operand.Operand) *Value {
	switch op.Tag() {
	case operand.Local:
		return &f.locals[op.Payload()]
	case operand.Global:
		return &vm.globals[op.Payload()]
	case operand.State:
		return &vm.states[op.Payload()]
	default:
		panic("vvm: cannot take pointer to an immediate operand")
	}
}

func typeOf(op operand.Operand) langtypes.TypeCode { return langtypes.TypeCode(op.Payload()) }

// runFrom runs instructions starting at pc within f until RET, HALT, or
// EXIT, returning the RET value (zero Value for HALT).
func (vm *VM) runFrom(f *frame, pc int) (Value, *ExitSignal, error) {
	for {
		if pc >= len(vm.prog.Instrs) {
			return Value{}, nil, nil
		}
		instr := vm.prog.Instrs[pc]
		next := pc + 1
		switch instr.Op {
		case bytecode.OpJump:
			next = int(instr.Operands[0].Payload())
		case bytecode.OpBFalse:
			if !vm.read(f, instr.Operands[0]).Truthy() {
				next = int(instr.Operands[1].Payload())
			}
		case bytecode.OpRet:
			return vm.read(f, instr.Operands[0]), nil, nil
		case bytecode.OpHalt:
			return Value{}, nil, nil
		case bytecode.OpExit:
			code := vm.read(f, instr.Operands[0])
			return Value{}, &ExitSignal{Code: int(code.I)}, nil
		default:
			exit, err := vm.execOne(f, instr)
			if err != nil {
				return Value{}, nil, err
			}
			if exit != nil {
				return Value{}, exit, nil
			}
		}
		pc = next
	}
}

// execOne executes every opcode other than the control-flow/terminal ones
// runFrom handles directly.
func (vm *VM) execOne(f *frame, instr bytecode.Instr) (*ExitSignal, error) {
	ops := instr.Operands
	if instr.Op.IsSpecialised() {
		info, ok := vm.prog.Specs.Info(instr.Op)
		if !ok {
			return nil, fmt.Errorf("vvm: unknown specialised opcode %d", instr.Op)
		}
		var l, r Value
		l = vm.read(f, ops[1])
		if info.Binary {
			r = vm.read(f, ops[2])
		}
		out, err := execSpecialised(info, l, r)
		if err != nil {
			return nil, err
		}
		vm.write(f, ops[0], out)
		return nil, nil
	}

	switch instr.Op {
	case bytecode.OpNop, bytecode.OpLabel:
	case bytecode.OpMove, bytecode.OpLoadImm, bytecode.OpLoadConst:
		vm.write(f, ops[0], vm.read(f, ops[1]))
	case bytecode.OpLoadType:
		vm.write(f, ops[0], Value{Type: langtypes.Builtin(langtypes.String, langtypes.Scalar), S: vm.types.DisplayName(typeOf(ops[1]))})
	case bytecode.OpLoadNil:
		vm.write(f, ops[0], zeroOf(typeOf(ops[1]), vm.types))
	case bytecode.OpAlloc:
		vm.write(f, ops[0], NewRecord(typeOf(ops[1]), vm.types))
	case bytecode.OpAssignMember:
		obj := vm.ptr(f, ops[0])
		obj.Cols[ops[1].Payload()] = vm.read(f, ops[2])
	case bytecode.OpMember:
		return nil, vm.execMember(f, ops)
	case bytecode.OpAppendMember:
		obj := vm.ptr(f, ops[0])
		val := vm.read(f, ops[2])
		if obj.Vec != nil {
			obj.Vec.Append(val)
		} else {
			obj.Cols[ops[1].Payload()].Vec.Append(val)
		}
	case bytecode.OpDel:
		if ops[0].IsLocal() {
			f.locals[ops[0].Payload()] = Value{}
		}
	case bytecode.OpCall:
		return vm.execCall(f, ops)
	case bytecode.OpWhere:
		vm.write(f, ops[0], kernelWhere(vm.read(f, ops[1]), vm.read(f, ops[2])))
	case bytecode.OpGroup:
		uc := kernelGroup(vm.ptr(f, ops[0]), vm.read(f, ops[2]), vm.read(f, ops[3]))
		vm.write(f, ops[1], Value{Type: langtypes.Builtin(langtypes.Int64, langtypes.Scalar), I: int64(uc)})
	case bytecode.OpIsort:
		vm.write(f, ops[0], kernelIsort(vm.read(f, ops[1])))
	case bytecode.OpMultidx:
		out, err := kernelMultidx(vm.read(f, ops[1]), vm.read(f, ops[2]))
		if err != nil {
			return nil, err
		}
		vm.write(f, ops[0], out)
	case bytecode.OpEqMatch:
		li, ri := kernelEqMatch(vm.read(f, ops[2]), vm.read(f, ops[3]))
		vm.write(f, ops[0], li)
		vm.write(f, ops[1], ri)
	case bytecode.OpAsofMatch:
		vm.write(f, ops[0], kernelAsofMatch(vm.read(f, ops[1]), vm.read(f, ops[2]), int(ops[3].Payload()), ops[4].Payload() != 0))
	case bytecode.OpAsofNear:
		vm.write(f, ops[0], kernelAsofNear(vm.read(f, ops[1]), vm.read(f, ops[2])))
	case bytecode.OpAsofWithin:
		vm.write(f, ops[0], kernelAsofWithin(vm.read(f, ops[1]), vm.read(f, ops[2]), int(ops[3].Payload()), ops[4].Payload() != 0, vm.read(f, ops[5])))
	case bytecode.OpEqAsofMatch:
		li, ri := kernelEqAsofMatch(vm.read(f, ops[2]), vm.read(f, ops[3]), vm.read(f, ops[4]), vm.read(f, ops[5]), int(ops[6].Payload()), ops[7].Payload() != 0, nil)
		vm.write(f, ops[0], li)
		vm.write(f, ops[1], ri)
	case bytecode.OpEqAsofNear:
		li, ri := kernelEqAsofNear(vm.read(f, ops[2]), vm.read(f, ops[3]), vm.read(f, ops[4]), vm.read(f, ops[5]))
		vm.write(f, ops[0], li)
		vm.write(f, ops[1], ri)
	case bytecode.OpEqAsofWithin:
		within := vm.read(f, ops[8])
		li, ri := kernelEqAsofMatch(vm.read(f, ops[2]), vm.read(f, ops[3]), vm.read(f, ops[4]), vm.read(f, ops[5]), int(ops[6].Payload()), ops[7].Payload() != 0, &within)
		vm.write(f, ops[0], li)
		vm.write(f, ops[1], ri)
	case bytecode.OpTake:
		out, err := kernelTake(vm.types, typeOf(ops[1]), vm.read(f, ops[2]))
		if err != nil {
			return nil, err
		}
		vm.write(f, ops[0], out)
	case bytecode.OpConcat:
		out, err := kernelConcat(vm.types, vm.read(f, ops[1]), vm.read(f, ops[2]))
		if err != nil {
			return nil, err
		}
		vm.write(f, ops[0], out)
	case bytecode.OpReduceSum, bytecode.OpReduceProd, bytecode.OpReduceMin, bytecode.OpReduceMax, bytecode.OpReduceCount:
		out, err := kernelReduce(instr.Op, vm.read(f, ops[1]))
		if err != nil {
			return nil, err
		}
		vm.write(f, ops[0], out)
	case bytecode.OpLoadCSV:
		out, err := loadCSV(vm.types, typeOf(ops[1]), vm.read(f, ops[2]).S)
		if err != nil {
			return nil, err
		}
		vm.write(f, ops[0], out)
	case bytecode.OpStoreCSV:
		return nil, storeCSV(vm.types, vm.read(f, ops[0]), vm.read(f, ops[1]).S)
	case bytecode.OpLoadSQL:
		if vm.SQL == nil {
			return nil, fmt.Errorf("vvm: load_sql: no SQL source configured")
		}
		out, err := vm.SQL.Load(vm.read(f, ops[2]).S, vm.read(f, ops[3]).S, vm.read(f, ops[4]).S, typeOf(ops[1]), vm.types)
		if err != nil {
			return nil, err
		}
		vm.write(f, ops[0], out)
	case bytecode.OpStreamOpen:
		if vm.Stream == nil {
			return nil, fmt.Errorf("vvm: stream_table: no stream source configured")
		}
		out, err := vm.Stream.Load(vm.read(f, ops[2]).S, typeOf(ops[1]), vm.types)
		if err != nil {
			return nil, err
		}
		vm.write(f, ops[0], out)
	case bytecode.OpRepr:
		vm.write(f, ops[0], Value{Type: langtypes.Builtin(langtypes.String, langtypes.Scalar), S: Repr(vm.read(f, ops[1]), vm.types)})
	case bytecode.OpSave:
		vm.history = append(vm.history, vm.read(f, ops[0]))
	case bytecode.OpPrint:
		fmt.Fprintln(vm.Stdout, Repr(vm.read(f, ops[0]), vm.types))
	default:
		return nil, fmt.Errorf("vvm: unimplemented opcode %s", instr.Op)
	}
	return nil, nil
}

// execMember implements MEMBER's dual role: a static field index (Immediate
// fieldImm) or a dynamic group index (a register) against a GROUP result
// (spec §4.2 table.go: "the same register then also answers member(result,
// i) as the i-th sub-table").
func (vm *VM) execMember(f *frame, ops []operand.Operand) error {
	obj := vm.read(f, ops[1])
	if ops[2].IsImmediate() {
		idx := int(ops[2].Payload())
		if idx < 0 || idx >= len(obj.Cols) {
			return fmt.Errorf("vvm: member index %d out of range", idx)
		}
		vm.write(f, ops[0], obj.Cols[idx])
		return nil
	}
	if obj.Groups == nil {
		return fmt.Errorf("vvm: dynamic member access on a non-grouped value")
	}
	i := int(vm.read(f, ops[2]).I)
	if i < 0 || i >= len(obj.Groups) {
		return fmt.Errorf("vvm: group index %d out of range", i)
	}
	vm.write(f, ops[0], materializeGroup(*obj.GroupSource, obj.Groups[i]))
	return nil
}

func materializeGroup(source Value, rows []int) Value {
	idx := make([]int64, len(rows))
	for i, r := range rows {
		idx[i] = int64(r)
	}
	cols := make([]Value, len(source.Cols))
	for i, c := range source.Cols {
		cols[i] = Value{Type: c.Type, Vec: c.Vec.Take(idx)}
	}
	return Value{Type: source.Type, Cols: cols}
}

// execCall implements CALL funcOperand, argc, arg0..argN-1, result (spec
// §4.2 "Function calls"). An exit() reached inside the callee unwinds past
// this call too, so it is returned as an ExitSignal rather than folded into
// the error return.
func (vm *VM) execCall(caller *frame, ops []operand.Operand) (*ExitSignal, error) {
	funcIdx := int(ops[0].Payload())
	if funcIdx < 0 || funcIdx >= len(vm.prog.Consts) || vm.prog.Consts[funcIdx].Fn == nil {
		return nil, fmt.Errorf("vvm: call: operand %d is not a function", funcIdx)
	}
	fd := vm.prog.Consts[funcIdx].Fn
	argc := int(ops[1].Payload())
	args := make([]Value, argc)
	for i := 0; i < argc; i++ {
		args[i] = vm.read(caller, ops[2+i])
	}
	dst := ops[2+argc]

	callee := &frame{locals: make([]Value, fd.NumLocals)}
	copy(callee.locals, args)
	ret, exit, err := vm.runFrom(callee, fd.Entry)
	if err != nil {
		return nil, fmt.Errorf("vvm: in %s: %w", fd.Name, err)
	}
	if exit != nil {
		return exit, nil
	}
	vm.write(caller, dst, ret)
	return nil, nil
}
