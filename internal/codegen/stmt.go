package codegen

import (
	"fmt"

	"vvm/internal/bytecode"
	"vvm/internal/hir"
	"vvm/internal/operand"
)

func (g *Generator) genStmt(st hir.Stmt) error {
	_, _, err := g.genStmtValue(st)
	return err
}

// genStmtValue lowers one statement, reporting whether it was an
// expression statement (and if so, the operand holding its value) so
// genBlock can track the block's final value.
func (g *Generator) genStmtValue(st hir.Stmt) (operand.Operand, bool, error) {
	switch n := st.(type) {
	case *hir.ExprStmt:
		v, err := g.genExpr(n.X)
		return v, true, err
	case *hir.Decl:
		return 0, false, g.genDecl(n)
	case *hir.Assign:
		return 0, false, g.genAssign(n)
	case *hir.While:
		return 0, false, g.genWhile(n)
	case *hir.Return:
		return 0, false, g.genReturn(n)
	default:
		return 0, false, unsupported(fmt.Sprintf("statement %T", st))
	}
}

func (g *Generator) genDecl(n *hir.Decl) error {
	if n.Value == nil {
		op := g.declOperand(n)
		g.prog.Emit(bytecode.OpLoadNil, op, typeOperand(n.Type))
		return nil
	}
	v, err := g.genExpr(n.Value)
	if err != nil {
		return err
	}
	dst := g.declOperand(n)
	g.prog.Emit(bytecode.OpMove, dst, v)
	return nil
}

func (g *Generator) genAssign(n *hir.Assign) error {
	v, err := g.genExpr(n.Value)
	if err != nil {
		return err
	}
	switch t := n.Target.(type) {
	case *hir.IdentRef:
		dst := g.declOperand(t.Decl)
		g.prog.Emit(bytecode.OpMove, dst, v)
	case *hir.MemberAccess:
		obj, err := g.genExpr(t.Target)
		if err != nil {
			return err
		}
		g.prog.Emit(bytecode.OpAssignMember, obj, operand.MakeImmediate(uint32(t.FieldOffset)), v)
	default:
		return unsupported(fmt.Sprintf("assignment target %T", n.Target))
	}
	return nil
}

func (g *Generator) genWhile(n *hir.While) error {
	top := g.labeler.newBlock()
	end := g.labeler.newBlock()
	g.labeler.bind(top, len(g.prog.Instrs))
	cond, err := g.genExpr(n.Cond)
	if err != nil {
		return err
	}
	idx := g.prog.Emit(bytecode.OpBFalse, cond, operand.MakeImmediate(0))
	g.prog.Instrs[idx].Operands[1] = g.labeler.jumpPlaceholder(end, idx, 1)
	if _, err := g.genBlock(n.Body); err != nil {
		return err
	}
	jidx := g.prog.Emit(bytecode.OpJump, operand.MakeImmediate(0))
	g.prog.Instrs[jidx].Operands[0] = g.labeler.jumpPlaceholder(top, jidx, 0)
	g.labeler.bind(end, len(g.prog.Instrs))
	return nil
}

func (g *Generator) genReturn(n *hir.Return) error {
	if n.Value == nil {
		g.prog.Emit(bytecode.OpRet, operand.MakeImmediate(0))
		return nil
	}
	v, err := g.genExpr(n.Value)
	if err != nil {
		return err
	}
	g.prog.Emit(bytecode.OpRet, v)
	return nil
}
