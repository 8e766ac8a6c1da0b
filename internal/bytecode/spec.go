package bytecode

import (
	"fmt"
	"sync"

	"vvm/internal/langtypes"
)

// Family names an arithmetic/relational/logical/function opcode family
// before element-kind specialisation (spec §4.2: "the generator constructs
// the specialised opcode name `<op>_<left-vvm-type>_<right-vvm-type>`").
type Family uint8

const (
	FAdd Family = iota
	FSub
	FMul
	FDiv
	FMod
	FNeg
	FEq
	FNeq
	FLt
	FLe
	FGt
	FGe
	FAnd
	FOr
	FNot
)

var familyNames = [...]string{"add", "sub", "mul", "div", "mod", "neg", "eq", "neq", "lt", "le", "gt", "ge", "and", "or", "not"}

func (f Family) String() string {
	if int(f) < len(familyNames) {
		return familyNames[f]
	}
	return "?"
}

// ElemSpec names one operand's element kind and scalar/vector shape for the
// purpose of opcode specialisation.
type ElemSpec struct {
	Kind   langtypes.Kind
	Vector bool
}

func (e ElemSpec) String() string {
	shape := "s"
	if e.Vector {
		shape = "v"
	}
	return e.Kind.String() + shape
}

// SpecInfo is what a specialised Opcode resolves to: the operator family
// plus the element-kind/shape of each operand (Right is unused for unary
// families).
type SpecInfo struct {
	Family      Family
	Left, Right ElemSpec
	Binary      bool
}

func (s SpecInfo) Name() string {
	if s.Binary {
		return fmt.Sprintf("%s_%s_%s", s.Family, s.Left, s.Right)
	}
	return fmt.Sprintf("%s_%s", s.Family, s.Left)
}

// SpecTable interns specialised opcode variants by their constructed name,
// exactly as spec §4.2 describes: "resolves it through a string→opcode map.
// The VM implements every specialisation via a dispatch table." One
// SpecTable is shared by a Program's code generator and its VM instance.
type SpecTable struct {
	mu     sync.Mutex
	byName map[string]Opcode
	infos  []SpecInfo
}

// NewSpecTable creates an empty specialisation table.
func NewSpecTable() *SpecTable {
	return &SpecTable{byName: make(map[string]Opcode)}
}

func (t *SpecTable) intern(info SpecInfo) Opcode {
	t.mu.Lock()
	defer t.mu.Unlock()
	name := info.Name()
	if op, ok := t.byName[name]; ok {
		return op
	}
	op := opFixedCount + Opcode(len(t.infos))
	t.infos = append(t.infos, info)
	t.byName[name] = op
	return op
}

// Unary interns (or looks up) the specialised opcode for a unary family
// applied to operand kind/shape a.
func (t *SpecTable) Unary(f Family, a ElemSpec) Opcode {
	return t.intern(SpecInfo{Family: f, Left: a})
}

// Binary interns (or looks up) the specialised opcode for a binary family
// applied to operand kinds/shapes a (left) and b (right).
func (t *SpecTable) Binary(f Family, a, b ElemSpec) Opcode {
	return t.intern(SpecInfo{Family: f, Left: a, Right: b, Binary: true})
}

// Info resolves a specialised Opcode back to its SpecInfo.
func (t *SpecTable) Info(op Opcode) (SpecInfo, bool) {
	if !op.IsSpecialised() {
		return SpecInfo{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := int(op - opFixedCount)
	if idx < 0 || idx >= len(t.infos) {
		return SpecInfo{}, false
	}
	return t.infos[idx], true
}
