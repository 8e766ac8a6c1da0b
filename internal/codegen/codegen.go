// Package codegen lowers internal/hir typed IR into an internal/bytecode
// Program (spec §4.2): operand allocation across local/global/state banks,
// opcode specialisation by element type, label resolution for control flow,
// and constant pooling.
//
// Grounded on sentra/internal/vmregister's register-allocating compiler
// pass (reserve/release-style operand counters per function scope),
// generalised from Sentra's single flat register file to this spec's
// three-bank (local/global/state) allocation and forward-branch labeler.
package codegen

import (
	"fmt"

	"vvm/internal/bytecode"
	"vvm/internal/hir"
	"vvm/internal/langtypes"
	"vvm/internal/operand"
)

// funcScope is the per-function operand-allocation state (spec §4.2
// "Operand allocation": "When entering a function body, the local counter
// is reset and restored on exit").
type funcScope struct {
	localNext int
	declOperand map[*hir.Decl]operand.Operand
}

// Generator holds all state for lowering one module (spec §4.2
// "Maintains: constant pool ..., three per-scope operand counters
// (local/global/state), a map from declaration nodes to their assigned
// operand, a map from function definitions to their global operand ..., a
// map from 'implied member' source expressions to the already-generated
// table operand, and a labeler for forward branches").
type Generator struct {
	prog *bytecode.Program

	stateNext int

	funcs   []*funcScope
	funcOperand map[*hir.FuncDef]operand.Operand

	intConstCache    map[int64]int
	floatConstCache  map[float64]int
	stringConstCache map[string]int

	impliedMember map[hir.Expr]operand.Operand
	globalDeclOperand map[*hir.Decl]operand.Operand
	impliedStack      []impliedFrame

	labeler *labeler

	comptime bool // true while generating a CTFE wrapper program (spec §2)
}

// New creates a generator sharing the analyzer's type registry and opcode
// specialisation table.
func New(types *langtypes.Registry, specs *bytecode.SpecTable) *Generator {
	return &Generator{
		prog:             bytecode.NewProgram(types, specs),
		funcOperand:      make(map[*hir.FuncDef]operand.Operand),
		intConstCache:    make(map[int64]int),
		floatConstCache:  make(map[float64]int),
		stringConstCache: make(map[string]int),
		impliedMember:    make(map[hir.Expr]operand.Operand),
		globalDeclOperand: make(map[*hir.Decl]operand.Operand),
		labeler:          newLabeler(),
	}
}

// impliedFrame is one entry of the implied-member resolution stack (see
// genIdent / table.go): while lowering a query/sort/join clause's
// where/by/select expressions, a bare column identifier resolves against
// the innermost pushed table, matching sema's "preferred scope" lookup.
type impliedFrame struct {
	tableOp   operand.Operand
	tableType langtypes.TypeCode
}

func (g *Generator) pushImplied(tableOp operand.Operand, t langtypes.TypeCode) {
	g.impliedStack = append(g.impliedStack, impliedFrame{tableOp: tableOp, tableType: t})
}

func (g *Generator) popImplied() {
	g.impliedStack = g.impliedStack[:len(g.impliedStack)-1]
}

// SetComptime marks this generator as producing a CTFE wrapper program
// (spec §4.1/§2: "run code generation in comptime mode").
func (g *Generator) SetComptime(v bool) { g.comptime = v }

// Program returns the program built so far (valid once Gen has run).
func (g *Generator) Program() *bytecode.Program { return g.prog }

func (g *Generator) pushFunc() *funcScope {
	fs := &funcScope{declOperand: make(map[*hir.Decl]operand.Operand)}
	g.funcs = append(g.funcs, fs)
	return fs
}

func (g *Generator) popFunc() { g.funcs = g.funcs[:len(g.funcs)-1] }

func (g *Generator) curFunc() *funcScope {
	if len(g.funcs) == 0 {
		return nil
	}
	return g.funcs[len(g.funcs)-1]
}

// reserveLocal implements reserve_space(local) (spec §4.2).
func (g *Generator) reserveLocal() operand.Operand {
	fs := g.curFunc()
	if fs == nil {
		return g.reserveGlobal()
	}
	op := operand.Make(operand.Local, uint32(fs.localNext))
	fs.localNext++
	return op
}

// reserveGlobal implements reserve_space(global). Every Global operand --
// whether it addresses a plain global variable, an interned literal, or a
// FunctionDef -- draws its index from the same counter (the constant pool's
// length), so two unrelated globals can never land on the same operand.
func (g *Generator) reserveGlobal() operand.Operand {
	idx := g.prog.AddConst(bytecode.Const{Kind: bytecode.ConstReserved})
	return operand.Make(operand.Global, uint32(idx))
}

// reserveState implements reserve_space(state).
func (g *Generator) reserveState() operand.Operand {
	op := operand.Make(operand.State, uint32(g.stateNext))
	g.stateNext++
	return op
}

// declOperand resolves (lazily allocating on first use) the operand a
// declaration lives in. Global declarations share one operand across every
// function scope; locals are scoped to the current function (spec §4.2:
// "the local counter is reset and restored on exit").
func (g *Generator) declOperand(d *hir.Decl) operand.Operand {
	if d.IsGlobal {
		if op, ok := g.globalDeclOperand[d]; ok {
			return op
		}
		op := g.reserveGlobal()
		g.globalDeclOperand[d] = op
		return op
	}
	fs := g.curFunc()
	if fs == nil {
		if op, ok := g.globalDeclOperand[d]; ok {
			return op
		}
		op := g.reserveGlobal()
		g.globalDeclOperand[d] = op
		return op
	}
	if op, ok := fs.declOperand[d]; ok {
		return op
	}
	op := g.reserveLocal()
	fs.declOperand[d] = op
	return op
}

func typeOperand(t langtypes.TypeCode) operand.Operand {
	return operand.Make(operand.Type, uint32(t))
}

// constInt interns an Int64 constant, using an Immediate operand directly
// when the value fits the immediate payload domain (spec §3 "Constants":
// "immediates are used when the value fits the tag's payload").
func (g *Generator) constInt(v int64) operand.Operand {
	if v >= 0 && v <= operand.MaxImmediate {
		return operand.MakeImmediate(uint32(v))
	}
	if idx, ok := g.intConstCache[v]; ok {
		return operand.Make(operand.Global, uint32(idx))
	}
	idx := g.prog.AddConst(bytecode.Const{Kind: bytecode.ConstInt64, I: v})
	g.intConstCache[v] = idx
	return operand.Make(operand.Global, uint32(idx))
}

func (g *Generator) constFloat(v float64) operand.Operand {
	if idx, ok := g.floatConstCache[v]; ok {
		return operand.Make(operand.Global, uint32(idx))
	}
	idx := g.prog.AddConst(bytecode.Const{Kind: bytecode.ConstFloat64, F: v})
	g.floatConstCache[v] = idx
	return operand.Make(operand.Global, uint32(idx))
}

func (g *Generator) constString(v string) operand.Operand {
	if idx, ok := g.stringConstCache[v]; ok {
		return operand.Make(operand.Global, uint32(idx))
	}
	idx := g.prog.AddConst(bytecode.Const{Kind: bytecode.ConstString, S: v})
	g.stringConstCache[v] = idx
	return operand.Make(operand.Global, uint32(idx))
}

// Gen lowers a fully analyzed module into a fresh Program (spec §4.2
// "Interactive top-level": the last bare-expression statement gets a
// repr+save pair).
func Gen(mod *hir.Module, types *langtypes.Registry, specs *bytecode.SpecTable) (*bytecode.Program, error) {
	return New(types, specs).Gen(mod)
}

// Gen lowers mod using g's existing state, so a caller that needs a
// generator flag set first (SetComptime, for a CTFE wrapper program) can
// still drive the standard lowering path.
func (g *Generator) Gen(mod *hir.Module) (*bytecode.Program, error) {
	if err := g.genModule(mod); err != nil {
		return nil, err
	}
	g.labeler.resolve(g.prog)
	return g.prog, nil
}

func (g *Generator) genModule(mod *hir.Module) error {
	for _, fn := range mod.Functions {
		if _, err := g.funcGlobalOperand(fn); err != nil {
			return err
		}
	}
	// Function bodies are emitted above, ahead of the module's own
	// statements, so forward and recursive calls resolve; the VM must start
	// execution here, not at Instrs[0].
	g.prog.MainEntry = len(g.prog.Instrs)
	for i, st := range mod.Stmts {
		isLast := i == len(mod.Stmts)-1
		if es, ok := st.(*hir.ExprStmt); ok && isLast {
			v, err := g.genExpr(es.X)
			if err != nil {
				return err
			}
			if es.X.Info().Type != langtypes.Void {
				reprDst := g.reserveLocal()
				g.prog.Emit(bytecode.OpRepr, reprDst, v)
				g.prog.Emit(bytecode.OpSave, reprDst)
			}
			continue
		}
		if err := g.genStmt(st); err != nil {
			return err
		}
	}
	g.prog.Emit(bytecode.OpHalt)
	return nil
}

// funcGlobalOperand lazily assigns and emits a function's body, registering
// its global operand first so recursive calls can resolve it (spec §4.2
// "a map from function definitions to their global operand (so recursion is
// possible)").
func (g *Generator) funcGlobalOperand(fn *hir.FuncDef) (operand.Operand, error) {
	if op, ok := g.funcOperand[fn]; ok {
		return op, nil
	}
	fd := &bytecode.FunctionDef{
		Name:        fn.Name,
		ReturnType:  fn.ReturnType,
		ForceInline: fn.ForceInline,
	}
	for _, p := range fn.Args {
		fd.ArgTypes = append(fd.ArgTypes, p.Type)
	}
	// The function's global operand IS its constant-pool index: the VM
	// resolves a CALL's funcOperand straight to this Const's *FunctionDef,
	// so the two must never drift apart.
	constIdx := g.prog.AddConst(bytecode.Const{Kind: bytecode.ConstFunctionDef, Fn: fd})
	globalOp := operand.Make(operand.Global, uint32(constIdx))
	g.funcOperand[fn] = globalOp

	fs := g.pushFunc()
	fd.Entry = len(g.prog.Instrs)
	for _, p := range fn.Args {
		// Parameters occupy the first N local slots in declaration order;
		// the call convention copies caller argument values into them.
		op := g.reserveLocal()
		if p.Decl != nil {
			fs.declOperand[p.Decl] = op
		}
	}
	if fn.BodyExpr != nil {
		v, err := g.genExpr(fn.BodyExpr)
		if err != nil {
			g.popFunc()
			return 0, err
		}
		g.prog.Emit(bytecode.OpRet, v)
	} else if fn.Body != nil {
		for _, st := range fn.Body.Stmts {
			if err := g.genStmt(st); err != nil {
				g.popFunc()
				return 0, err
			}
		}
		g.prog.Emit(bytecode.OpRet, operand.MakeImmediate(0))
	}
	fd.NumLocals = fs.localNext
	g.popFunc()
	return globalOp, nil
}

func unsupported(what string) error { return fmt.Errorf("codegen: unsupported %s", what) }
