package codegen

import (
	"fmt"

	"vvm/internal/bytecode"
	"vvm/internal/hir"
	"vvm/internal/langtypes"
	"vvm/internal/operand"
)

func elemSpec(t langtypes.TypeCode) bytecode.ElemSpec {
	k, shape, _ := t.Decode()
	return bytecode.ElemSpec{Kind: k, Vector: shape == langtypes.Vector}
}

// genExpr lowers one typed expression, returning the operand holding its
// result (usually a freshly reserved local register; some forms, such as
// bare identifier references, blocks, and pass-through builtins, return an
// operand that already exists).
func (g *Generator) genExpr(e hir.Expr) (operand.Operand, error) {
	switch n := e.(type) {
	case *hir.Lit:
		return g.genLit(n)
	case *hir.IdentRef:
		return g.genIdent(n)
	case *hir.VectorLit:
		return g.genVectorLit(n)
	case *hir.UnaryOp:
		return g.genUnary(n)
	case *hir.BinaryOp:
		return g.genBinary(n)
	case *hir.LogicalOp:
		return g.genLogical(n)
	case *hir.Call:
		return g.genCall(n)
	case *hir.MemberAccess:
		return g.genMember(n)
	case *hir.IndexAccess:
		return g.genIndex(n)
	case *hir.IfExpr:
		return g.genIf(n)
	case *hir.BlockExpr:
		return g.genBlock(n)
	case *hir.Query:
		return g.genQuery(n)
	case *hir.Sort:
		return g.genSort(n)
	case *hir.Join:
		return g.genJoin(n)
	default:
		return 0, unsupported(fmt.Sprintf("expression %T", e))
	}
}

func (g *Generator) emitLoadInt(dst operand.Operand, v int64) {
	src := g.constInt(v)
	if src.IsImmediate() {
		g.prog.Emit(bytecode.OpLoadImm, dst, src)
	} else {
		g.prog.Emit(bytecode.OpLoadConst, dst, src)
	}
}

func (g *Generator) genLit(n *hir.Lit) (operand.Operand, error) {
	dst := g.reserveLocal()
	k, _, ok := n.Type.Decode()
	if !ok {
		g.prog.Emit(bytecode.OpLoadNil, dst, typeOperand(n.Type))
		return dst, nil
	}
	switch k {
	case langtypes.Bool:
		v := uint32(0)
		if n.Bool {
			v = 1
		}
		g.prog.Emit(bytecode.OpLoadImm, dst, operand.MakeImmediate(v))
	case langtypes.Int64, langtypes.Char, langtypes.Date, langtypes.Time, langtypes.Timestamp, langtypes.Timedelta:
		g.emitLoadInt(dst, n.Int)
	case langtypes.Float64:
		g.prog.Emit(bytecode.OpLoadConst, dst, g.constFloat(n.Float))
	case langtypes.String:
		g.prog.Emit(bytecode.OpLoadConst, dst, g.constString(n.Str))
	default:
		g.prog.Emit(bytecode.OpLoadNil, dst, typeOperand(n.Type))
	}
	return dst, nil
}

func (g *Generator) genIdent(n *hir.IdentRef) (operand.Operand, error) {
	if n.Decl == nil {
		return 0, fmt.Errorf("codegen: unresolved identifier %q", n.Name)
	}
	if n.Decl.ImpliedMember {
		return g.genImpliedMember(n.Decl.Name, n.Type)
	}
	return g.declOperand(n.Decl), nil
}

// genImpliedMember resolves a bare column reference inside a table clause
// against the innermost table on the implied-member stack (spec §4.1
// "Inside table clauses the table expression's scope is the preferred
// scope so bare column names resolve as implied members").
func (g *Generator) genImpliedMember(name string, fieldType langtypes.TypeCode) (operand.Operand, error) {
	if len(g.impliedStack) == 0 {
		return 0, fmt.Errorf("codegen: implied member %q referenced outside a table clause", name)
	}
	frame := g.impliedStack[len(g.impliedStack)-1]
	ud, ok := g.prog.Types.Lookup(frame.tableType)
	if !ok {
		return 0, fmt.Errorf("codegen: implied member %q: %s is not a record", name, g.prog.Types.DisplayName(frame.tableType))
	}
	idx := ud.FieldIndex(name)
	if idx < 0 {
		return 0, fmt.Errorf("codegen: implied member %q not found on %s", name, ud.Name)
	}
	dst := g.reserveLocal()
	g.prog.Emit(bytecode.OpMember, dst, frame.tableOp, operand.MakeImmediate(uint32(idx)))
	return dst, nil
}

// genVectorLit lowers a bare vector literal as a single-field APPENDMEMBER
// loop (fieldImm 0: a vector literal has exactly one column, itself).
func (g *Generator) genVectorLit(n *hir.VectorLit) (operand.Operand, error) {
	dst := g.reserveLocal()
	g.prog.Emit(bytecode.OpAlloc, dst, typeOperand(n.Type))
	for _, elem := range n.Elements {
		v, err := g.genExpr(elem)
		if err != nil {
			return 0, err
		}
		g.prog.Emit(bytecode.OpAppendMember, dst, operand.MakeImmediate(0), v)
	}
	return dst, nil
}

func (g *Generator) genUnary(n *hir.UnaryOp) (operand.Operand, error) {
	v, err := g.genExpr(n.Operand)
	if err != nil {
		return 0, err
	}
	if n.FuncSpec != nil {
		return g.genOverloadCall(n.FuncSpec, []operand.Operand{v})
	}
	fam, err := familyForOp(n.Op, true)
	if err != nil {
		return 0, err
	}
	op := g.prog.Specs.Unary(fam, elemSpec(n.Operand.Info().Type))
	dst := g.reserveLocal()
	g.prog.Emit(op, dst, v)
	return dst, nil
}

func (g *Generator) genBinary(n *hir.BinaryOp) (operand.Operand, error) {
	l, err := g.genExpr(n.Left)
	if err != nil {
		return 0, err
	}
	r, err := g.genExpr(n.Right)
	if err != nil {
		return 0, err
	}
	if n.FuncSpec != nil {
		return g.genOverloadCall(n.FuncSpec, []operand.Operand{l, r})
	}
	fam, err := familyForOp(n.Op, false)
	if err != nil {
		return 0, err
	}
	op := g.prog.Specs.Binary(fam, elemSpec(n.Left.Info().Type), elemSpec(n.Right.Info().Type))
	dst := g.reserveLocal()
	g.prog.Emit(op, dst, l, r)
	return dst, nil
}

// genLogical lowers `&&`/`||` as short-circuiting branch code rather than a
// specialised opcode, since both operands are scalar Bool and the right
// side must not execute when the left side already decides the result.
func (g *Generator) genLogical(n *hir.LogicalOp) (operand.Operand, error) {
	dst := g.reserveLocal()
	l, err := g.genExpr(n.Left)
	if err != nil {
		return 0, err
	}
	g.prog.Emit(bytecode.OpMove, dst, l)

	skip := g.labeler.newBlock()
	if n.Op == "&&" {
		idx := g.prog.Emit(bytecode.OpBFalse, l, operand.MakeImmediate(0))
		g.prog.Instrs[idx].Operands[1] = g.labeler.jumpPlaceholder(skip, idx, 1)
	} else {
		notL := g.reserveLocal()
		notOp := g.prog.Specs.Unary(bytecode.FNot, elemSpec(n.Left.Info().Type))
		g.prog.Emit(notOp, notL, l)
		idx := g.prog.Emit(bytecode.OpBFalse, notL, operand.MakeImmediate(0))
		g.prog.Instrs[idx].Operands[1] = g.labeler.jumpPlaceholder(skip, idx, 1)
	}

	r, err := g.genExpr(n.Right)
	if err != nil {
		return 0, err
	}
	g.prog.Emit(bytecode.OpMove, dst, r)
	g.labeler.bind(skip, len(g.prog.Instrs))
	return dst, nil
}

func (g *Generator) genMember(n *hir.MemberAccess) (operand.Operand, error) {
	target, err := g.genExpr(n.Target)
	if err != nil {
		return 0, err
	}
	dst := g.reserveLocal()
	g.prog.Emit(bytecode.OpMember, dst, target, operand.MakeImmediate(uint32(n.FieldOffset)))
	return dst, nil
}

func (g *Generator) genIndex(n *hir.IndexAccess) (operand.Operand, error) {
	target, err := g.genExpr(n.Target)
	if err != nil {
		return 0, err
	}
	idx, err := g.genExpr(n.Index)
	if err != nil {
		return 0, err
	}
	dst := g.reserveLocal()
	return g.genIndexImpl(dst, target, idx)
}

// genIndexImpl lowers `vector[idx]` via the MULTIDX table kernel applied to
// a single-column selection, matching how Query/Sort/Join reuse the same
// kernel for row selection (spec §4.3 "multidx").
func (g *Generator) genIndexImpl(dst, target, idx operand.Operand) (operand.Operand, error) {
	ivec := g.reserveLocal()
	g.prog.Emit(bytecode.OpAlloc, ivec, operand.Make(operand.Type, uint32(langtypes.Builtin(langtypes.Int64, langtypes.Vector))))
	g.prog.Emit(bytecode.OpAppendMember, ivec, operand.MakeImmediate(0), idx)
	g.prog.Emit(bytecode.OpMultidx, dst, target, ivec)
	return dst, nil
}

func (g *Generator) genIf(n *hir.IfExpr) (operand.Operand, error) {
	dst := g.reserveLocal()
	cond, err := g.genExpr(n.Cond)
	if err != nil {
		return 0, err
	}
	elseBlock := g.labeler.newBlock()
	end := g.labeler.newBlock()

	idx := g.prog.Emit(bytecode.OpBFalse, cond, operand.MakeImmediate(0))
	g.prog.Instrs[idx].Operands[1] = g.labeler.jumpPlaceholder(elseBlock, idx, 1)

	thenVal, err := g.genBlock(n.Then)
	if err != nil {
		return 0, err
	}
	g.prog.Emit(bytecode.OpMove, dst, thenVal)
	jidx := g.prog.Emit(bytecode.OpJump, operand.MakeImmediate(0))
	g.prog.Instrs[jidx].Operands[0] = g.labeler.jumpPlaceholder(end, jidx, 0)

	g.labeler.bind(elseBlock, len(g.prog.Instrs))
	switch {
	case n.Elif != nil:
		elifVal, err := g.genIf(n.Elif)
		if err != nil {
			return 0, err
		}
		g.prog.Emit(bytecode.OpMove, dst, elifVal)
	case n.Else != nil:
		elseVal, err := g.genBlock(n.Else)
		if err != nil {
			return 0, err
		}
		g.prog.Emit(bytecode.OpMove, dst, elseVal)
	default:
		g.prog.Emit(bytecode.OpLoadNil, dst, typeOperand(n.Type))
	}
	g.labeler.bind(end, len(g.prog.Instrs))
	return dst, nil
}

func (g *Generator) genBlock(b *hir.BlockExpr) (operand.Operand, error) {
	var last operand.Operand
	hasLast := false
	for _, st := range b.Stmts {
		v, isExpr, err := g.genStmtValue(st)
		if err != nil {
			return 0, err
		}
		if isExpr {
			last, hasLast = v, true
		} else {
			hasLast = false
		}
	}
	if hasLast {
		return last, nil
	}
	dst := g.reserveLocal()
	g.prog.Emit(bytecode.OpLoadNil, dst, typeOperand(b.Type))
	return dst, nil
}
