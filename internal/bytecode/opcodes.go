// Package bytecode implements the VVM program model described in spec §3
// and §6: tagged operands grouped into flat `[opcode, operand...]`
// instructions, a constant pool, and a type-specialised opcode table.
//
// Grounded on sentra/internal/vmregister/bytecode.go's register-instruction
// shape (an opcode enum plus fixed-arity decode helpers) and
// sentra/internal/bytecode/opcodes.go's stack-opcode naming, adapted from a
// fixed 8/16/24-bit packed instruction (Lua-style) to the spec's flat
// `[]operand.Operand` instruction shape since this VM's operand count per
// opcode varies (table kernels take many more operands than a `MOVE`).
package bytecode

import "fmt"

// Opcode identifies an instruction's operation. Values below opFixedCount
// name the fixed, non-type-specialised opcodes; values at or above it are
// dynamically assigned specialisations registered in a SpecTable.
type Opcode uint16

const (
	OpNop Opcode = iota

	// Memory
	OpMove     // MOVE dst, src
	OpLoadImm  // LOADIMM dst, imm
	OpLoadConst // LOADCONST dst, constIdx
	OpLoadType // LOADTYPE dst, typeOperand
	OpLoadNil  // LOADNIL dst, typeOperand

	// Control flow
	OpJump   // JUMP block
	OpBFalse // BFALSE cond, block
	OpLabel  // LABEL block (marker only; resolved away by the labeler)

	// Functions
	OpCall // CALL funcOperand, argc, arg0.. argN-1, result
	OpRet  // RET value
	OpHalt // HALT
	OpExit // EXIT code -- unwinds the dispatch loop with the given exit code (spec §5 exit(n))

	// Records / Dataframes
	OpAlloc        // ALLOC dst, typeOperand
	OpAssignMember // ASSIGNMEMBER obj, fieldImm, value
	OpMember       // MEMBER dst, obj, fieldImm
	OpAppendMember // APPENDMEMBER obj, fieldImm, value

	// Resource lifetime
	OpDel // DEL reg

	// Table kernels (spec §4.3)
	OpWhere        // WHERE dst, table, boolVector
	OpGroup        // GROUP dst, uniqueCountDst, table, byTable
	OpIsort        // ISORT dst, byTable
	OpMultidx      // MULTIDX dst, table, indexVector
	OpEqMatch      // EQMATCH leftIdx, rightIdx, leftKey, rightKey
	OpAsofMatch    // ASOFMATCH leftIdx, leftKey, rightKey, directionImm, strictImm
	OpAsofNear     // ASOFNEAR leftIdx, leftKey, rightKey
	OpAsofWithin   // ASOFWITHIN leftIdx, leftKey, rightKey, directionImm, strictImm, within
	OpEqAsofMatch  // EQASOFMATCH leftIdx, rightIdx, leftKey, rightKey, leftAsof, rightAsof, directionImm, strictImm
	OpEqAsofNear   // EQASOFNEAR leftIdx, rightIdx, leftKey, rightKey, leftAsof, rightAsof
	OpEqAsofWithin // EQASOFWITHIN leftIdx, rightIdx, leftKey, rightKey, leftAsof, rightAsof, directionImm, strictImm, within
	OpTake         // TAKE dst, typeOperand, src
	OpConcat       // CONCAT dst, left, right

	// Reductions
	OpReduceSum   // RSUM dst, vector
	OpReduceProd  // RPROD dst, vector
	OpReduceMin   // RMIN dst, vector
	OpReduceMax   // RMAX dst, vector
	OpReduceCount // RCOUNT dst, vector

	// External table sources
	OpLoadCSV    // LOADCSV dst, typeOperand, pathReg
	OpStoreCSV   // STORECSV table, pathReg
	OpLoadSQL    // LOADSQL dst, typeOperand, driverReg, dsnReg, queryReg
	OpStreamOpen // STREAMOPEN dst, typeOperand, urlReg

	// Display / REPL
	OpRepr  // REPR dst, value
	OpSave  // SAVE reg (REPL top-level save)
	OpPrint // PRINT reg

	opFixedCount
)

var opNames = map[Opcode]string{
	OpNop:          "NOP",
	OpMove:         "MOVE",
	OpLoadImm:      "LOADIMM",
	OpLoadConst:    "LOADCONST",
	OpLoadType:     "LOADTYPE",
	OpLoadNil:      "LOADNIL",
	OpJump:         "JUMP",
	OpBFalse:       "BFALSE",
	OpLabel:        "LABEL",
	OpCall:         "CALL",
	OpRet:          "RET",
	OpHalt:         "HALT",
	OpExit:         "EXIT",
	OpAlloc:        "ALLOC",
	OpAssignMember: "ASSIGNMEMBER",
	OpMember:       "MEMBER",
	OpAppendMember: "APPENDMEMBER",
	OpDel:          "DEL",
	OpWhere:        "WHERE",
	OpGroup:        "GROUP",
	OpIsort:        "ISORT",
	OpMultidx:      "MULTIDX",
	OpEqMatch:      "EQMATCH",
	OpAsofMatch:    "ASOFMATCH",
	OpAsofNear:     "ASOFNEAR",
	OpAsofWithin:   "ASOFWITHIN",
	OpEqAsofMatch:  "EQASOFMATCH",
	OpEqAsofNear:   "EQASOFNEAR",
	OpEqAsofWithin: "EQASOFWITHIN",
	OpTake:         "TAKE",
	OpConcat:       "CONCAT",
	OpReduceSum:    "RSUM",
	OpReduceProd:   "RPROD",
	OpReduceMin:    "RMIN",
	OpReduceMax:    "RMAX",
	OpReduceCount:  "RCOUNT",
	OpLoadCSV:      "LOADCSV",
	OpStoreCSV:     "STORECSV",
	OpLoadSQL:      "LOADSQL",
	OpStreamOpen:   "STREAMOPEN",
	OpRepr:         "REPR",
	OpSave:         "SAVE",
	OpPrint:        "PRINT",
}

// fixedArity gives the number of operands each fixed opcode carries, for
// opcodes whose arity does not depend on the instruction's arguments.
// CALL is variadic (argc + N args + result) and is handled separately.
var fixedArity = map[Opcode]int{
	OpNop:          0,
	OpMove:         2,
	OpLoadImm:      2,
	OpLoadConst:    2,
	OpLoadType:     2,
	OpLoadNil:      2,
	OpJump:         1,
	OpBFalse:       2,
	OpLabel:        1,
	OpRet:          1,
	OpHalt:         0,
	OpExit:         1,
	OpAlloc:        2,
	OpAssignMember: 3,
	OpMember:       3,
	OpAppendMember: 3,
	OpDel:          1,
	OpWhere:        3,
	OpGroup:        4,
	OpIsort:        2,
	OpMultidx:      3,
	OpEqMatch:      4,
	OpAsofMatch:    5,
	OpAsofNear:     3,
	OpAsofWithin:   6,
	OpEqAsofMatch:  8,
	OpEqAsofNear:   6,
	OpEqAsofWithin: 9,
	OpTake:         3,
	OpConcat:       3,
	OpReduceSum:    2,
	OpReduceProd:   2,
	OpReduceMin:    2,
	OpReduceMax:    2,
	OpReduceCount:  2,
	OpLoadCSV:      3,
	OpStoreCSV:     2,
	OpLoadSQL:      5,
	OpStreamOpen:   3,
	OpRepr:         2,
	OpSave:         1,
	OpPrint:        1,
}

// Arity returns the operand count for op, given spec (nil for non-specialised
// opcodes). For OpCall, argc is the number of call arguments (excluding the
// callee and result operands).
func Arity(op Opcode, argc int) int {
	if op == OpCall {
		return 3 + argc // funcOperand, argc-imm, args..., result
	}
	if n, ok := fixedArity[op]; ok {
		return n
	}
	// Specialised opcodes: unary ops take (dst, src); binary ops take
	// (dst, left, right). SpecTable.Info disambiguates; codegen always
	// knows which it emitted.
	return -1
}

func (op Opcode) String() string {
	if op < opFixedCount {
		if n, ok := opNames[op]; ok {
			return n
		}
		return fmt.Sprintf("OP(%d)", op)
	}
	return fmt.Sprintf("SPEC(%d)", op)
}

// IsSpecialised reports whether op was dynamically assigned by a SpecTable
// rather than being one of the fixed control/memory/table opcodes above.
func (op Opcode) IsSpecialised() bool { return op >= opFixedCount }
