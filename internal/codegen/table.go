package codegen

import (
	"vvm/internal/ast"
	"vvm/internal/bytecode"
	"vvm/internal/hir"
	"vvm/internal/langtypes"
	"vvm/internal/operand"
)

var int64Spec = bytecode.ElemSpec{Kind: langtypes.Int64}

func boolImm(b bool) operand.Operand {
	if b {
		return operand.MakeImmediate(1)
	}
	return operand.MakeImmediate(0)
}

// genQuery lowers `from T select C* by B* where W` (spec §4.2 "Table
// lowering: Query").
func (g *Generator) genQuery(n *hir.Query) (operand.Operand, error) {
	tableOp, err := g.genExpr(n.Table)
	if err != nil {
		return 0, err
	}
	sourceType := n.Table.Info().Type
	source := tableOp

	if n.Where != nil {
		g.pushImplied(tableOp, sourceType)
		whereVec, err := g.genExpr(n.Where)
		g.popImplied()
		if err != nil {
			return 0, err
		}
		filtered := g.reserveLocal()
		g.prog.Emit(bytecode.OpWhere, filtered, tableOp, whereVec)
		source = filtered
	}

	if len(n.Select) == 0 && len(n.By) == 0 {
		return source, nil
	}

	var byTable operand.Operand
	if n.ByType != 0 {
		byTable = g.reserveLocal()
		g.prog.Emit(bytecode.OpAlloc, byTable, typeOperand(n.ByType))
		g.pushImplied(source, sourceType)
		for i, bc := range n.By {
			v, err := g.genExpr(bc.Expr)
			if err != nil {
				g.popImplied()
				return 0, err
			}
			g.prog.Emit(bytecode.OpAssignMember, byTable, operand.MakeImmediate(uint32(i)), v)
		}
		g.popImplied()
	}

	result := g.reserveLocal()
	g.prog.Emit(bytecode.OpAlloc, result, typeOperand(n.Type))

	if n.ByType == 0 {
		g.pushImplied(source, sourceType)
		for i, c := range n.Select {
			v, err := g.genExpr(c.Expr)
			if err != nil {
				g.popImplied()
				return 0, err
			}
			g.prog.Emit(bytecode.OpAssignMember, result, operand.MakeImmediate(uint32(i)), v)
		}
		g.popImplied()
		return result, nil
	}

	// Grouped aggregation: GROUP writes result's leading by-columns in
	// place and hands back the unique-label count; the same `result`
	// register then also answers `member(result, i)` as the i-th
	// sub-table for the aggregate loop below (spec §4.2: "Leading columns
	// of the output (the by-columns) are pre-populated by group").
	uniqueCount := g.reserveLocal()
	g.prog.Emit(bytecode.OpGroup, result, uniqueCount, source, byTable)

	counter := g.reserveLocal()
	g.emitLoadInt(counter, 0)
	top := g.labeler.newBlock()
	end := g.labeler.newBlock()
	g.labeler.bind(top, len(g.prog.Instrs))

	cmp := g.reserveLocal()
	ltOp := g.prog.Specs.Binary(bytecode.FLt, int64Spec, int64Spec)
	g.prog.Emit(ltOp, cmp, counter, uniqueCount)
	bidx := g.prog.Emit(bytecode.OpBFalse, cmp, operand.MakeImmediate(0))
	g.prog.Instrs[bidx].Operands[1] = g.labeler.jumpPlaceholder(end, bidx, 1)

	sub := g.reserveLocal()
	g.prog.Emit(bytecode.OpMember, sub, result, counter)
	g.pushImplied(sub, sourceType)
	baseIdx := len(n.By)
	for i, c := range n.Select {
		v, err := g.genExpr(c.Expr)
		if err != nil {
			g.popImplied()
			return 0, err
		}
		g.prog.Emit(bytecode.OpAppendMember, result, operand.MakeImmediate(uint32(baseIdx+i)), v)
	}
	g.popImplied()

	one := g.constInt(1)
	addOp := g.prog.Specs.Binary(bytecode.FAdd, int64Spec, int64Spec)
	g.prog.Emit(addOp, counter, counter, one)
	jidx := g.prog.Emit(bytecode.OpJump, operand.MakeImmediate(0))
	g.prog.Instrs[jidx].Operands[0] = g.labeler.jumpPlaceholder(top, jidx, 0)
	g.labeler.bind(end, len(g.prog.Instrs))
	return result, nil
}

// genSort lowers `sort T by E*` (spec §4.2 "Table lowering: Sort").
func (g *Generator) genSort(n *hir.Sort) (operand.Operand, error) {
	tableOp, err := g.genExpr(n.Table)
	if err != nil {
		return 0, err
	}
	if n.ByType == 0 {
		return tableOp, nil
	}
	sourceType := n.Table.Info().Type
	byTable := g.reserveLocal()
	g.prog.Emit(bytecode.OpAlloc, byTable, typeOperand(n.ByType))
	g.pushImplied(tableOp, sourceType)
	for i, bc := range n.By {
		v, err := g.genExpr(bc.Expr)
		if err != nil {
			g.popImplied()
			return 0, err
		}
		g.prog.Emit(bytecode.OpAssignMember, byTable, operand.MakeImmediate(uint32(i)), v)
	}
	g.popImplied()

	perm := g.reserveLocal()
	g.prog.Emit(bytecode.OpIsort, perm, byTable)
	result := g.reserveLocal()
	g.prog.Emit(bytecode.OpMultidx, result, tableOp, perm)
	return result, nil
}

// genJoin lowers `join L, R [on] [asof] [strict] [dir] [within]` (spec
// §4.2 "Table lowering: Join").
func (g *Generator) genJoin(n *hir.Join) (operand.Operand, error) {
	left, err := g.genExpr(n.Left)
	if err != nil {
		return 0, err
	}
	right, err := g.genExpr(n.Right)
	if err != nil {
		return 0, err
	}
	leftType := n.Left.Info().Type
	rightType := n.Right.Info().Type

	hasOn := n.OnByType != 0
	hasAsof := n.AsofLeft != nil
	hasWithin := n.Within != nil

	var leftOnTable, rightOnTable operand.Operand
	if hasOn {
		leftOnTable = g.reserveLocal()
		g.prog.Emit(bytecode.OpAlloc, leftOnTable, typeOperand(n.OnByType))
		g.pushImplied(left, leftType)
		for i, c := range n.On {
			v, err := g.genExpr(c.Expr)
			if err != nil {
				g.popImplied()
				return 0, err
			}
			g.prog.Emit(bytecode.OpAssignMember, leftOnTable, operand.MakeImmediate(uint32(i)), v)
		}
		g.popImplied()

		rightOnTable = g.reserveLocal()
		g.prog.Emit(bytecode.OpAlloc, rightOnTable, typeOperand(n.OnByType))
		g.pushImplied(right, rightType)
		// n.On's expressions reference implied members by name only; rebinding
		// the same typed expressions against the right-side frame reuses them
		// instead of re-analyzing the on-clause twice.
		for i, c := range n.On {
			v, err := g.genExpr(c.Expr)
			if err != nil {
				g.popImplied()
				return 0, err
			}
			g.prog.Emit(bytecode.OpAssignMember, rightOnTable, operand.MakeImmediate(uint32(i)), v)
		}
		g.popImplied()
	}

	var leftAsof, rightAsof operand.Operand
	if hasAsof {
		g.pushImplied(left, leftType)
		leftAsof, err = g.genExpr(n.AsofLeft)
		g.popImplied()
		if err != nil {
			return 0, err
		}
		g.pushImplied(right, rightType)
		rightAsof, err = g.genExpr(n.AsofRight)
		g.popImplied()
		if err != nil {
			return 0, err
		}
	}

	var within operand.Operand
	if hasWithin {
		within, err = g.genExpr(n.Within)
		if err != nil {
			return 0, err
		}
	}

	directionImm := operand.MakeImmediate(uint32(n.Direction))
	strictImm := boolImm(n.Strict)

	var leftIdx, rightIdx operand.Operand
	twoSided := false
	switch {
	case hasOn && !hasAsof:
		leftIdx, rightIdx = g.reserveLocal(), g.reserveLocal()
		g.prog.Emit(bytecode.OpEqMatch, leftIdx, rightIdx, leftOnTable, rightOnTable)
		twoSided = true
	case hasOn && hasAsof && hasWithin:
		leftIdx, rightIdx = g.reserveLocal(), g.reserveLocal()
		g.prog.Emit(bytecode.OpEqAsofWithin, leftIdx, rightIdx, leftOnTable, rightOnTable, leftAsof, rightAsof, directionImm, strictImm, within)
		twoSided = true
	case hasOn && hasAsof && n.Direction == ast.DirNearest:
		leftIdx, rightIdx = g.reserveLocal(), g.reserveLocal()
		g.prog.Emit(bytecode.OpEqAsofNear, leftIdx, rightIdx, leftOnTable, rightOnTable, leftAsof, rightAsof)
		twoSided = true
	case hasOn && hasAsof:
		leftIdx, rightIdx = g.reserveLocal(), g.reserveLocal()
		g.prog.Emit(bytecode.OpEqAsofMatch, leftIdx, rightIdx, leftOnTable, rightOnTable, leftAsof, rightAsof, directionImm, strictImm)
		twoSided = true
	case !hasOn && hasAsof && hasWithin:
		leftIdx = g.reserveLocal()
		g.prog.Emit(bytecode.OpAsofWithin, leftIdx, leftAsof, rightAsof, directionImm, strictImm, within)
	case !hasOn && hasAsof && n.Direction == ast.DirNearest:
		leftIdx = g.reserveLocal()
		g.prog.Emit(bytecode.OpAsofNear, leftIdx, leftAsof, rightAsof)
	case !hasOn && hasAsof:
		leftIdx = g.reserveLocal()
		g.prog.Emit(bytecode.OpAsofMatch, leftIdx, leftAsof, rightAsof, directionImm, strictImm)
	}

	var leftSel, rightSel operand.Operand
	if twoSided {
		leftSel = g.reserveLocal()
		g.prog.Emit(bytecode.OpMultidx, leftSel, left, leftIdx)
		rightSel = g.reserveLocal()
		g.prog.Emit(bytecode.OpMultidx, rightSel, right, rightIdx)
	} else {
		leftSel = left
		rightSel = g.reserveLocal()
		g.prog.Emit(bytecode.OpMultidx, rightSel, right, leftIdx)
	}

	rightUD, _ := g.prog.Types.Lookup(rightType)
	dropped := make(map[string]bool)
	for _, c := range n.On {
		dropped[c.Name] = true
	}
	var remaining []langtypes.Field
	if rightUD != nil {
		for _, f := range rightUD.Fields {
			if dropped[f.Name] {
				continue
			}
			remaining = append(remaining, f)
		}
	}
	remainingType := g.prog.Types.Intern("!joinRight", remaining)
	takenRight := g.reserveLocal()
	g.prog.Emit(bytecode.OpTake, takenRight, typeOperand(remainingType), rightSel)

	result := g.reserveLocal()
	g.prog.Emit(bytecode.OpConcat, result, leftSel, takenRight)
	return result, nil
}
