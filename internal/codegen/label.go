package codegen

import (
	"vvm/internal/bytecode"
	"vvm/internal/operand"
)

// labeler resolves forward branches (spec §4.2 "a labeler for forward
// branches"). Blocks are opened with newBlock before any jump to them is
// emitted, and bound with bind once the generator reaches the instruction
// the jump should land on; every recorded patch then has its placeholder
// operand rewritten to the real instruction index.
type labeler struct {
	nextBlock int
	bound     map[int]int // block id -> resolved instruction index
	patches   map[int][]patch
}

type patch struct {
	instrIdx   int
	operandIdx int
}

func newLabeler() *labeler {
	return &labeler{bound: make(map[int]int), patches: make(map[int][]patch)}
}

// newBlock allocates a fresh block id for a not-yet-placed jump target.
func (l *labeler) newBlock() int {
	id := l.nextBlock
	l.nextBlock++
	return id
}

// jumpPlaceholder returns the operand to embed in a JUMP/BFALSE instruction
// for block, recording the instruction+operand slot to patch later.
func (l *labeler) jumpPlaceholder(block, instrIdx, operandIdx int) operand.Operand {
	l.patches[block] = append(l.patches[block], patch{instrIdx: instrIdx, operandIdx: operandIdx})
	return operand.MakeImmediate(0)
}

// bind marks block as resolving to the next instruction the generator will
// emit (its current length).
func (l *labeler) bind(block int, instrIdx int) {
	l.bound[block] = instrIdx
}

// resolve rewrites every recorded patch now that all blocks are bound.
func (l *labeler) resolve(p *bytecode.Program) {
	for block, ps := range l.patches {
		target, ok := l.bound[block]
		if !ok {
			continue // unreachable block, e.g. an elif chain with no else
		}
		for _, pt := range ps {
			p.Instrs[pt.instrIdx].Operands[pt.operandIdx] = operand.MakeImmediate(uint32(target))
		}
	}
}
