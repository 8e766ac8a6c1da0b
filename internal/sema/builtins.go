package sema

import (
	"vvm/internal/hir"
	"vvm/internal/langtypes"
)

// opOverload is one builtin operator overload: concrete input types (both
// scalar and vector forms are registered separately) and declared traits.
type opOverload struct {
	op       string
	left     langtypes.TypeCode
	right    langtypes.TypeCode // 0 for unary
	result   langtypes.TypeCode
	traits   hir.Traits
}

// builtinOps indexes opOverload by operator symbol; populated in init from
// every numeric/relational/boolean builtin kind's scalar and vector forms.
// All arithmetic/relational/logical builtins are Pure (spec §4.1: the
// analyzer's CTFE path requires a Pure function for Comptime mode, and
// every primitive arithmetic/relational/logical op on literal operands must
// be foldable).
var builtinOps map[string][]opOverload

func registerArith(op string, k langtypes.Kind) {
	s := langtypes.Builtin(k, langtypes.Scalar)
	v := langtypes.Builtin(k, langtypes.Vector)
	builtinOps[op] = append(builtinOps[op],
		opOverload{op: op, left: s, right: s, result: s, traits: hir.Traits(hir.Pure)},
		opOverload{op: op, left: v, right: v, result: v, traits: hir.Traits(hir.Pure | hir.Transform)},
		opOverload{op: op, left: s, right: v, result: v, traits: hir.Traits(hir.Pure | hir.Transform)},
		opOverload{op: op, left: v, right: s, result: v, traits: hir.Traits(hir.Pure | hir.Transform)},
	)
}

func registerRelational(op string, k langtypes.Kind) {
	boolS := langtypes.Builtin(langtypes.Bool, langtypes.Scalar)
	boolV := langtypes.Builtin(langtypes.Bool, langtypes.Vector)
	s := langtypes.Builtin(k, langtypes.Scalar)
	v := langtypes.Builtin(k, langtypes.Vector)
	builtinOps[op] = append(builtinOps[op],
		opOverload{op: op, left: s, right: s, result: boolS, traits: hir.Traits(hir.Pure)},
		opOverload{op: op, left: v, right: v, result: boolV, traits: hir.Traits(hir.Pure | hir.Transform)},
		opOverload{op: op, left: s, right: v, result: boolV, traits: hir.Traits(hir.Pure | hir.Transform)},
		opOverload{op: op, left: v, right: s, result: boolV, traits: hir.Traits(hir.Pure | hir.Transform)},
	)
}

func registerUnary(op string, k langtypes.Kind) {
	s := langtypes.Builtin(k, langtypes.Scalar)
	v := langtypes.Builtin(k, langtypes.Vector)
	builtinOps[op] = append(builtinOps[op],
		opOverload{op: op, left: s, result: s, traits: hir.Traits(hir.Pure)},
		opOverload{op: op, left: v, result: v, traits: hir.Traits(hir.Pure | hir.Transform)},
	)
}

func init() {
	builtinOps = make(map[string][]opOverload)
	numeric := []langtypes.Kind{langtypes.Int64, langtypes.Float64, langtypes.Timedelta}
	for _, k := range numeric {
		registerArith("+", k)
		registerArith("-", k)
		registerArith("*", k)
		registerArith("/", k)
	}
	registerArith("%", langtypes.Int64)
	comparable := []langtypes.Kind{
		langtypes.Int64, langtypes.Float64, langtypes.Timedelta,
		langtypes.Date, langtypes.Time, langtypes.Timestamp, langtypes.String, langtypes.Char,
	}
	for _, k := range comparable {
		registerRelational("<", k)
		registerRelational("<=", k)
		registerRelational(">", k)
		registerRelational(">=", k)
		registerRelational("==", k)
		registerRelational("!=", k)
	}
	registerRelational("==", langtypes.Bool)
	registerRelational("!=", langtypes.Bool)
	for _, k := range []langtypes.Kind{langtypes.Int64, langtypes.Float64, langtypes.Timedelta} {
		registerUnary("-", k)
	}
	registerUnary("!", langtypes.Bool)

	// String concatenation overloads '+'.
	strS := langtypes.Builtin(langtypes.String, langtypes.Scalar)
	strV := langtypes.Builtin(langtypes.String, langtypes.Vector)
	builtinOps["+"] = append(builtinOps["+"],
		opOverload{op: "+", left: strS, right: strS, result: strS, traits: hir.Traits(hir.Pure)},
		opOverload{op: "+", left: strV, right: strV, result: strV, traits: hir.Traits(hir.Pure | hir.Transform)},
	)
}

// lookupBuiltinUnary finds a matching unary overload for op on operand type t.
func lookupBuiltinUnary(op string, t langtypes.TypeCode) (opOverload, bool) {
	for _, o := range builtinOps[op] {
		if o.right == 0 && o.left == t {
			return o, true
		}
	}
	return opOverload{}, false
}

// lookupBuiltinBinary finds a matching binary overload for op on (l, r).
func lookupBuiltinBinary(op string, l, r langtypes.TypeCode) (opOverload, bool) {
	for _, o := range builtinOps[op] {
		if o.right != 0 && o.left == l && o.right == r {
			return o, true
		}
	}
	return opOverload{}, false
}
