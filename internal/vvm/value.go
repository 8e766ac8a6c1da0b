// Package vvm implements the Vector VM (spec §4.3): a register-based
// dispatch loop executing an internal/bytecode.Program over a closed-sum
// Value model, the table kernels that back `from`/`sort`/`join`, CSV/SQL/
// websocket external table sources, and display formatting.
//
// Grounded on sentra/internal/vmregister.RegisterVM's dispatch-loop shape
// (program counter, flat instruction slice, register file, call frames,
// array-indexed globals) -- but NOT on its NaN-boxed Value: this VM's values
// are columnar vectors and structurally-typed records, not single scalars
// boxed behind an interface{}, so DESIGN.md documents the redesign to a
// tagged Value struct instead of carrying over NaN-boxing.
package vvm

import (
	"math"

	"vvm/internal/langtypes"
)

// Value is a closed-sum runtime value: exactly one of a scalar payload, a
// vector payload, or an ordered column list (a record or Dataframe row
// group) is meaningful, selected by Type.
type Value struct {
	Type langtypes.TypeCode
	Null bool // scalar nil (spec §4.3 "Nil propagation")

	B bool
	I int64 // also backs Char/Date/Time/Timestamp/Timedelta, all nanosecond/codepoint ints
	F float64
	S string

	Vec  *Vector // non-nil for a vector-typed Value
	Cols []Value // non-nil for a record/Dataframe-typed Value, one vector-typed Value per field

	// Groups and GroupSource are set only on the result of the GROUP kernel:
	// Groups[i] lists the source-table row indices belonging to unique group
	// i, and GroupSource is the table those indices index into. A dynamic
	// MEMBER(result, i) reads these to materialise the i-th sub-table for a
	// grouped aggregation's per-group select loop.
	Groups      [][]int
	GroupSource *Value
}

// Vector is a columnar run of scalars of one builtin Kind plus a parallel
// null mask.
type Vector struct {
	Kind langtypes.Kind
	Null []bool
	B    []bool
	I    []int64
	F    []float64
	S    []string
}

// Len reports the vector's row count.
func (v *Vector) Len() int {
	switch v.Kind {
	case langtypes.Bool:
		return len(v.B)
	case langtypes.Float64:
		return len(v.F)
	case langtypes.String, langtypes.Char:
		return len(v.S)
	default:
		return len(v.I)
	}
}

func newVector(k langtypes.Kind) *Vector { return &Vector{Kind: k} }

// Get reads the i-th element as a scalar Value.
func (v *Vector) Get(i int) Value {
	s := Value{Type: langtypes.Builtin(v.Kind, langtypes.Scalar), Null: v.Null[i]}
	switch v.Kind {
	case langtypes.Bool:
		s.B = v.B[i]
	case langtypes.Float64:
		s.F = v.F[i]
	case langtypes.String, langtypes.Char:
		s.S = v.S[i]
		if v.Kind == langtypes.Char && len(v.S[i]) > 0 {
			s.I = int64(v.S[i][0])
		}
	default:
		s.I = v.I[i]
	}
	return s
}

// Append pushes one scalar Value onto the vector.
func (v *Vector) Append(s Value) {
	v.Null = append(v.Null, s.Null)
	switch v.Kind {
	case langtypes.Bool:
		v.B = append(v.B, s.B)
	case langtypes.Float64:
		v.F = append(v.F, s.F)
	case langtypes.String:
		v.S = append(v.S, s.S)
	case langtypes.Char:
		v.S = append(v.S, s.S)
		v.I = append(v.I, s.I)
	default:
		v.I = append(v.I, s.I)
	}
}

// Take returns a new vector gathering elements at the given source indices,
// an Int64 nil sentinel (math.MinInt64 by convention, see NullScalar)
// producing a null row (spec §4.3 multidx / take).
func (v *Vector) Take(idx []int64) *Vector {
	out := newVector(v.Kind)
	for _, i := range idx {
		if i < 0 || int(i) >= v.Len() {
			out.Append(NullScalar(v.Kind))
			continue
		}
		out.Append(v.Get(int(i)))
	}
	return out
}

// NewVector builds a zero-length vector of kind k, typed for use as a
// Dataframe field or bare vector value.
func NewVector(k langtypes.Kind) Value {
	return Value{Type: langtypes.Builtin(k, langtypes.Vector), Vec: newVector(k)}
}

// NullScalar produces kind k's nil sentinel (spec §4.3 "Nil propagation":
// Int64, Date, Time, Timestamp and Timedelta nil is math.MinInt64, Float64
// nil is NaN; every other kind's nil is its zero value with Null set, per
// Kind.NilRepr()'s display rule).
func NullScalar(k langtypes.Kind) Value {
	s := Value{Type: langtypes.Builtin(k, langtypes.Scalar), Null: true}
	switch k {
	case langtypes.Int64, langtypes.Date, langtypes.Time, langtypes.Timestamp, langtypes.Timedelta:
		s.I = math.MinInt64
	case langtypes.Float64:
		s.F = math.NaN()
	}
	return s
}

// IsNull reports whether a scalar Value is nil, honouring both the explicit
// flag and the Int64/Float64 sentinel values (a value built outside
// NullScalar, e.g. by arithmetic overflow, still displays as nil).
func (s Value) IsNull() bool {
	if s.Null {
		return true
	}
	k, shape, ok := s.Type.Decode()
	if !ok || shape != langtypes.Scalar {
		return false
	}
	switch k {
	case langtypes.Int64, langtypes.Date, langtypes.Time, langtypes.Timestamp, langtypes.Timedelta:
		return s.I == math.MinInt64
	case langtypes.Float64:
		return math.IsNaN(s.F)
	}
	return false
}

// Truthy reads a Bool scalar's value; nil and non-Bool values read as false
// (only Bool scalars reach BFALSE per sema's type checking).
func (s Value) Truthy() bool { return s.Type.IsBuiltin() && !s.IsNull() && s.B }

// NewRecord builds a zero-value record/Dataframe Value for t: a vector
// Value (empty) for each field, matching what ALLOC needs (spec §4.3
// "Records / Dataframes").
func NewRecord(t langtypes.TypeCode, types *langtypes.Registry) Value {
	ud, ok := types.Lookup(t)
	if !ok {
		return Value{Type: t}
	}
	cols := make([]Value, len(ud.Fields))
	for i, f := range ud.Fields {
		k, shape, ok := f.Type.Decode()
		if ok && shape == langtypes.Vector {
			cols[i] = NewVector(k)
		} else {
			// Scalar-valued field on a plain (non-Dataframe) record: zero
			// value of its own type.
			cols[i] = zeroOf(f.Type, types)
		}
	}
	return Value{Type: t, Cols: cols}
}

func zeroOf(t langtypes.TypeCode, types *langtypes.Registry) Value {
	if k, shape, ok := t.Decode(); ok {
		if shape == langtypes.Vector {
			return NewVector(k)
		}
		return NullScalar(k)
	}
	return NewRecord(t, types)
}

// RowCount reports a Dataframe Value's row count (every field vector has
// equal length by construction).
func (s Value) RowCount() int {
	if len(s.Cols) == 0 {
		return 0
	}
	if s.Cols[0].Vec != nil {
		return s.Cols[0].Vec.Len()
	}
	return 0
}

// FieldIndex resolves a field name against t's definition.
func FieldIndex(types *langtypes.Registry, t langtypes.TypeCode, name string) int {
	ud, ok := types.Lookup(t)
	if !ok {
		return -1
	}
	return ud.FieldIndex(name)
}
