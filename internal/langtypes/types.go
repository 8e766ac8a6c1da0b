// Package langtypes implements the tagged type system described in spec §3:
// builtin element kinds in scalar and vector form, and structurally-interned
// user-defined (record and Dataframe) types.
package langtypes

import (
	"fmt"
	"strings"
	"sync"
)

// Kind is a builtin element kind.
type Kind uint8

const (
	Bool Kind = iota
	Char
	String
	Int64
	Float64
	Date
	Time
	Timestamp
	Timedelta
	numKinds
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "Bool"
	case Char:
		return "Char"
	case String:
		return "String"
	case Int64:
		return "Int64"
	case Float64:
		return "Float64"
	case Date:
		return "Date"
	case Time:
		return "Time"
	case Timestamp:
		return "Timestamp"
	case Timedelta:
		return "Timedelta"
	default:
		return "?"
	}
}

// NilRepr is the display form of this kind's nil sentinel.
func (k Kind) NilRepr() string {
	switch k {
	case Float64:
		return "nan"
	case Timestamp, Timedelta, Date, Time:
		return fmt.Sprintf("%s(nil)", k.String())
	default:
		return "nil"
	}
}

// Numeric reports whether this kind supports arithmetic.
func (k Kind) Numeric() bool {
	switch k {
	case Int64, Float64, Timedelta:
		return true
	default:
		return false
	}
}

// Shape distinguishes a scalar from a vector form of a Kind.
type Shape uint8

const (
	Scalar Shape = iota
	Vector
)

func (s Shape) String() string {
	if s == Vector {
		return "v"
	}
	return "s"
}

// TypeCode is a tagged non-negative integer. The low bit distinguishes
// BuiltIn (0) from UserDefined (1); the remaining bits index into either the
// fixed builtin table or the process-local definition map.
type TypeCode uint32

const tagBit = TypeCode(1)

// Void is the sentinel type for an expression that produces no value (a
// block whose last statement is a declaration/assignment/loop rather than
// an expression). It is distinct from every builtin and user-defined code,
// neither of which can reach TypeCode's maximum value in practice.
const Void TypeCode = ^TypeCode(0)

// IsBuiltin reports whether this code names a builtin scalar/vector type.
func (c TypeCode) IsBuiltin() bool { return c&tagBit == 0 }

// IsUserDefined reports whether this code names a user-defined type.
func (c TypeCode) IsUserDefined() bool { return c&tagBit == 1 }

func (c TypeCode) index() int { return int(c >> 1) }

type builtinEntry struct {
	kind  Kind
	shape Shape
}

// builtinTable enumerates every (Kind, Shape) pair in declaration order; the
// slice index, shifted and tagged, is the type's TypeCode.
var builtinTable []builtinEntry
var builtinLookup map[builtinEntry]TypeCode

func init() {
	builtinLookup = make(map[builtinEntry]TypeCode)
	for k := Kind(0); k < numKinds; k++ {
		for _, s := range []Shape{Scalar, Vector} {
			e := builtinEntry{k, s}
			code := TypeCode(len(builtinTable)) << 1
			builtinTable = append(builtinTable, e)
			builtinLookup[e] = code
		}
	}
}

// Builtin returns the TypeCode for a builtin (Kind, Shape) pair.
func Builtin(k Kind, s Shape) TypeCode {
	code, ok := builtinLookup[builtinEntry{k, s}]
	if !ok {
		panic(fmt.Sprintf("langtypes: no builtin code for %s/%s", k, s))
	}
	return code
}

// Decode returns the (Kind, Shape) pair a builtin TypeCode names.
func (c TypeCode) Decode() (Kind, Shape, bool) {
	if !c.IsBuiltin() {
		return 0, 0, false
	}
	idx := c.index()
	if idx < 0 || idx >= len(builtinTable) {
		return 0, 0, false
	}
	e := builtinTable[idx]
	return e.kind, e.shape, true
}

// ScalarOf returns the scalar form of a builtin type; ok is false for
// user-defined scalar types (a record's "scalar form" is itself) and for
// vector-of-vector, which does not exist.
func (c TypeCode) ScalarOf() (TypeCode, bool) {
	k, _, ok := c.Decode()
	if !ok {
		return c, false
	}
	return Builtin(k, Scalar), true
}

// VectorOf returns the vector form of a builtin scalar type.
func (c TypeCode) VectorOf() (TypeCode, bool) {
	k, s, ok := c.Decode()
	if !ok || s == Vector {
		return c, false
	}
	return Builtin(k, Vector), true
}

// IsVector reports whether a builtin code names a vector type.
func (c TypeCode) IsVector() bool {
	_, s, ok := c.Decode()
	return ok && s == Vector
}

// Field is a named, typed member of a user-defined type.
type Field struct {
	Name string
	Type TypeCode
}

// UserDefinedType is an ordered list of named fields. Two UserDefinedTypes
// with identical ordered field lists intern to the same TypeCode (spec §3:
// "Uniqueness is structural").
type UserDefinedType struct {
	Name   string
	Fields []Field
}

// FieldIndex returns the position of a field by name, or -1.
func (u *UserDefinedType) FieldIndex(name string) int {
	for i, f := range u.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// IsDataframeName reports whether a type name is a Dataframe's ('!'-prefixed).
func IsDataframeName(name string) bool {
	return strings.HasPrefix(name, "!")
}

// Registry interns user-defined types for the lifetime of a process (or, in
// tests, a single evaluation): "Types live for the process; interning never
// retracts entries" (spec §3 Lifecycles).
type Registry struct {
	mu          sync.Mutex
	defs        []*UserDefinedType
	bySignature map[string]TypeCode
}

// NewRegistry creates an empty type registry.
func NewRegistry() *Registry {
	return &Registry{bySignature: make(map[string]TypeCode)}
}

func signatureKey(fields []Field) string {
	var b strings.Builder
	for _, f := range fields {
		b.WriteString(f.Name)
		b.WriteByte(0)
		fmt.Fprintf(&b, "%d", f.Type)
		b.WriteByte(0x1)
	}
	return b.String()
}

// Intern returns the TypeCode for the given field list, creating a new
// definition only if no existing one has an identical ordered signature. The
// supplied name is used only for freshly-created entries; a structural match
// on a previously-registered signature keeps that entry's original name.
func (r *Registry) Intern(name string, fields []Field) TypeCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := signatureKey(fields)
	if code, ok := r.bySignature[key]; ok {
		return code
	}
	idx := len(r.defs)
	code := TypeCode(idx)<<1 | tagBit
	cp := make([]Field, len(fields))
	copy(cp, fields)
	r.defs = append(r.defs, &UserDefinedType{Name: name, Fields: cp})
	r.bySignature[key] = code
	return code
}

// Lookup resolves a user-defined TypeCode to its definition.
func (r *Registry) Lookup(c TypeCode) (*UserDefinedType, bool) {
	if !c.IsUserDefined() {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := c.index()
	if idx < 0 || idx >= len(r.defs) {
		return nil, false
	}
	return r.defs[idx], true
}

// VectorOf returns the vector-form TypeCode for any element type: builtin
// scalars vectorise directly; user-defined (record) scalar types do not
// vectorise to a single code (they vectorise field-by-field via DataframeOf).
func (r *Registry) VectorOf(t TypeCode) (TypeCode, error) {
	if t.IsBuiltin() {
		v, ok := t.VectorOf()
		if !ok {
			return 0, fmt.Errorf("langtypes: %s is already a vector type", r.DisplayName(t))
		}
		return v, nil
	}
	return 0, fmt.Errorf("langtypes: cannot vectorise user-defined type %s directly; use DataframeOf", r.DisplayName(t))
}

// DataframeOf derives (and interns) the Dataframe type for a scalar
// user-defined type: every field is array-ised, and the name is the
// original name prefixed with '!' (spec §3).
func (r *Registry) DataframeOf(scalar TypeCode) (TypeCode, error) {
	ud, ok := r.Lookup(scalar)
	if !ok {
		return 0, fmt.Errorf("langtypes: %d is not a user-defined type", scalar)
	}
	fields := make([]Field, len(ud.Fields))
	for i, f := range ud.Fields {
		vt, err := r.VectorOf(f.Type)
		if err != nil {
			return 0, fmt.Errorf("langtypes: field %q of %s: %w", f.Name, ud.Name, err)
		}
		fields[i] = Field{Name: f.Name, Type: vt}
	}
	return r.Intern("!"+ud.Name, fields), nil
}

// ValidateDataframe rechecks a Dataframe type's validity against its
// claimed scalar parent (spec §3: "must be rechecked"): same field names,
// same arity, each Dataframe field type equal to the array-of-parent-field
// type.
func (r *Registry) ValidateDataframe(df, scalar TypeCode) error {
	dfT, ok := r.Lookup(df)
	if !ok {
		return fmt.Errorf("langtypes: %d is not a user-defined type", df)
	}
	scT, ok := r.Lookup(scalar)
	if !ok {
		return fmt.Errorf("langtypes: %d is not a user-defined type", scalar)
	}
	if len(dfT.Fields) != len(scT.Fields) {
		return fmt.Errorf("langtypes: %s has %d fields, parent %s has %d", dfT.Name, len(dfT.Fields), scT.Name, len(scT.Fields))
	}
	for i := range dfT.Fields {
		if dfT.Fields[i].Name != scT.Fields[i].Name {
			return fmt.Errorf("langtypes: field %d name mismatch: %q vs %q", i, dfT.Fields[i].Name, scT.Fields[i].Name)
		}
		want, err := r.VectorOf(scT.Fields[i].Type)
		if err != nil {
			return err
		}
		if dfT.Fields[i].Type != want {
			return fmt.Errorf("langtypes: field %q type mismatch", dfT.Fields[i].Name)
		}
	}
	return nil
}

// IsDataframe reports whether t is a user-defined type whose name is
// '!'-prefixed.
func (r *Registry) IsDataframe(t TypeCode) bool {
	ud, ok := r.Lookup(t)
	return ok && IsDataframeName(ud.Name)
}

// DisplayName renders a type's source-level name.
func (r *Registry) DisplayName(t TypeCode) string {
	if t.IsBuiltin() {
		k, s, ok := t.Decode()
		if !ok {
			return "<invalid>"
		}
		if s == Vector {
			return "[" + k.String() + "]"
		}
		return k.String()
	}
	ud, ok := r.Lookup(t)
	if !ok {
		return "<invalid>"
	}
	return ud.Name
}
