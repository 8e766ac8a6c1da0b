package vvm

import (
	"fmt"
	"math"
	"strings"

	"vvm/internal/bytecode"
	"vvm/internal/langtypes"
)

// execSpecialised runs one type-specialised opcode (spec §4.2 "the VM
// implements every specialisation via a dispatch table"), broadcasting a
// scalar operand against a vector one when the two operands' shapes differ
// (spec §4.3: a scalar binds to every row of its vector sibling).
func execSpecialised(info bytecode.SpecInfo, left, right Value) (Value, error) {
	if !info.Binary {
		return scalarOrVectorUnary(info, left)
	}
	leftVec := info.Left.Vector
	rightVec := info.Right.Vector
	switch {
	case !leftVec && !rightVec:
		return applyBinaryScalar(info.Family, left, right)
	case leftVec && !rightVec:
		return mapVector(left, func(e Value) (Value, error) { return applyBinaryScalar(info.Family, e, right) })
	case !leftVec && rightVec:
		return mapVector(right, func(e Value) (Value, error) { return applyBinaryScalar(info.Family, left, e) })
	default:
		return zipVector(left, right, info.Family)
	}
}

func scalarOrVectorUnary(info bytecode.SpecInfo, v Value) (Value, error) {
	if !info.Left.Vector {
		return applyUnaryScalar(info.Family, v)
	}
	return mapVector(v, func(e Value) (Value, error) { return applyUnaryScalar(info.Family, e) })
}

func mapVector(v Value, f func(Value) (Value, error)) (Value, error) {
	if v.Vec == nil {
		return Value{}, fmt.Errorf("vvm: expected vector operand")
	}
	var outKind langtypes.Kind
	n := v.Vec.Len()
	results := make([]Value, n)
	for i := 0; i < n; i++ {
		r, err := f(v.Vec.Get(i))
		if err != nil {
			return Value{}, err
		}
		results[i] = r
		if k, shape, ok := r.Type.Decode(); ok && shape == langtypes.Scalar {
			outKind = k
		}
	}
	out := newVector(outKind)
	for _, r := range results {
		out.Append(r)
	}
	return Value{Type: langtypes.Builtin(outKind, langtypes.Vector), Vec: out}, nil
}

func zipVector(left, right Value, fam bytecode.Family) (Value, error) {
	if left.Vec == nil || right.Vec == nil {
		return Value{}, fmt.Errorf("vvm: expected vector operands")
	}
	n := left.Vec.Len()
	if right.Vec.Len() != n {
		return Value{}, fmt.Errorf("vvm: vector length mismatch: %d vs %d", n, right.Vec.Len())
	}
	var outKind langtypes.Kind
	results := make([]Value, n)
	for i := 0; i < n; i++ {
		r, err := applyBinaryScalar(fam, left.Vec.Get(i), right.Vec.Get(i))
		if err != nil {
			return Value{}, err
		}
		results[i] = r
		if k, shape, ok := r.Type.Decode(); ok && shape == langtypes.Scalar {
			outKind = k
		}
	}
	out := newVector(outKind)
	for _, r := range results {
		out.Append(r)
	}
	return Value{Type: langtypes.Builtin(outKind, langtypes.Vector), Vec: out}, nil
}

func boolScalar(b bool) Value {
	return Value{Type: langtypes.Builtin(langtypes.Bool, langtypes.Scalar), B: b}
}

// applyBinaryScalar implements one family over two scalar operands. Nil
// propagates: any arithmetic or comparison touching a nil operand yields a
// nil result of the appropriate kind (spec §4.3 "Nil propagation").
func applyBinaryScalar(fam bytecode.Family, l, r Value) (Value, error) {
	k, _, ok := l.Type.Decode()
	if !ok {
		k, _, _ = r.Type.Decode()
	}
	switch fam {
	case bytecode.FEq, bytecode.FNeq, bytecode.FLt, bytecode.FLe, bytecode.FGt, bytecode.FGe:
		return compareScalar(fam, l, r)
	case bytecode.FAnd:
		return boolScalar(l.Truthy() && r.Truthy()), nil
	case bytecode.FOr:
		return boolScalar(l.Truthy() || r.Truthy()), nil
	}
	if l.IsNull() || r.IsNull() {
		return NullScalar(k), nil
	}
	switch k {
	case langtypes.String:
		if fam == bytecode.FAdd {
			return Value{Type: l.Type, S: l.S + r.S}, nil
		}
		return Value{}, fmt.Errorf("vvm: operator %s not defined on String", fam)
	case langtypes.Float64:
		lf, rf := operandFloat(l), operandFloat(r)
		var out float64
		switch fam {
		case bytecode.FAdd:
			out = lf + rf
		case bytecode.FSub:
			out = lf - rf
		case bytecode.FMul:
			out = lf * rf
		case bytecode.FDiv:
			out = lf / rf
		case bytecode.FMod:
			out = math.Mod(lf, rf)
		default:
			return Value{}, fmt.Errorf("vvm: operator %s not defined on Float64", fam)
		}
		return Value{Type: langtypes.Builtin(langtypes.Float64, langtypes.Scalar), F: out}, nil
	default:
		li, ri := operandInt(l), operandInt(r)
		var out int64
		switch fam {
		case bytecode.FAdd:
			out = li + ri
		case bytecode.FSub:
			out = li - ri
		case bytecode.FMul:
			out = li * ri
		case bytecode.FDiv:
			if ri == 0 {
				return NullScalar(k), nil
			}
			out = li / ri
		case bytecode.FMod:
			if ri == 0 {
				return NullScalar(k), nil
			}
			out = li % ri
		default:
			return Value{}, fmt.Errorf("vvm: operator %s not defined on %s", fam, k)
		}
		return Value{Type: langtypes.Builtin(k, langtypes.Scalar), I: out}, nil
	}
}

func operandFloat(v Value) float64 {
	if k, _, ok := v.Type.Decode(); ok && k == langtypes.Int64 {
		return float64(v.I)
	}
	return v.F
}

func operandInt(v Value) int64 { return v.I }

func compareScalar(fam bytecode.Family, l, r Value) (Value, error) {
	if l.IsNull() || r.IsNull() {
		return NullScalar(langtypes.Bool), nil
	}
	k, _, ok := l.Type.Decode()
	if !ok {
		k, _, _ = r.Type.Decode()
	}
	var cmp int
	switch k {
	case langtypes.String, langtypes.Char:
		cmp = strings.Compare(l.S, r.S)
	case langtypes.Float64:
		lf, rf := operandFloat(l), operandFloat(r)
		switch {
		case lf < rf:
			cmp = -1
		case lf > rf:
			cmp = 1
		}
	case langtypes.Bool:
		switch {
		case l.B == r.B:
			cmp = 0
		case !l.B:
			cmp = -1
		default:
			cmp = 1
		}
	default:
		li, ri := operandInt(l), operandInt(r)
		switch {
		case li < ri:
			cmp = -1
		case li > ri:
			cmp = 1
		}
	}
	switch fam {
	case bytecode.FEq:
		return boolScalar(cmp == 0), nil
	case bytecode.FNeq:
		return boolScalar(cmp != 0), nil
	case bytecode.FLt:
		return boolScalar(cmp < 0), nil
	case bytecode.FLe:
		return boolScalar(cmp <= 0), nil
	case bytecode.FGt:
		return boolScalar(cmp > 0), nil
	case bytecode.FGe:
		return boolScalar(cmp >= 0), nil
	}
	return Value{}, fmt.Errorf("vvm: unreachable comparison family %s", fam)
}

func applyUnaryScalar(fam bytecode.Family, v Value) (Value, error) {
	k, _, ok := v.Type.Decode()
	if !ok {
		return Value{}, fmt.Errorf("vvm: unary operator on non-scalar operand")
	}
	switch fam {
	case bytecode.FNot:
		return boolScalar(!v.Truthy()), nil
	case bytecode.FNeg:
		if v.IsNull() {
			return NullScalar(k), nil
		}
		if k == langtypes.Float64 {
			return Value{Type: v.Type, F: -v.F}, nil
		}
		return Value{Type: v.Type, I: -v.I}, nil
	}
	return Value{}, fmt.Errorf("vvm: unsupported unary family %s", fam)
}

func compareKey(k Value) string {
	switch {
	case k.IsNull():
		return "\x00nil"
	default:
		ki, _, _ := k.Type.Decode()
		switch ki {
		case langtypes.String, langtypes.Char:
			return "s:" + k.S
		case langtypes.Float64:
			return fmt.Sprintf("f:%v", k.F)
		case langtypes.Bool:
			return fmt.Sprintf("b:%v", k.B)
		default:
			return fmt.Sprintf("i:%d", k.I)
		}
	}
}
