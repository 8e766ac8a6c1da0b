package sema

import (
	"strconv"

	"vvm/internal/hir"
	"vvm/internal/langtypes"
)

// tryCTFE implements spec §4.1 "Compile-time function evaluation": for a
// Comptime-mode expression of a representable builtin scalar type
// (Int64, Bool, String, Char — Float64 is deliberately excluded), round-trip
// through the wired CTFE function and parse the returned display string
// back into a literal. Failure is non-fatal: the expression keeps its
// already-derived type/traits/mode and simply has no comptime_literal,
// falling back to ordinary code generation.
func (a *Analyzer) tryCTFE(e hir.Expr) {
	info := e.Info()
	if info.Literal != nil {
		return // already has a literal sub-form
	}
	k, shape, ok := info.Type.Decode()
	if !ok || shape != langtypes.Scalar {
		return
	}
	switch k {
	case langtypes.Int64, langtypes.Bool, langtypes.String, langtypes.Char:
	default:
		return // Float64 and everything else: not CTFE-evaluated
	}
	display, err := a.ctfe(e, a.types)
	if err != nil {
		return
	}
	lit := parseCTFEResult(k, display, info.Type)
	if lit != nil {
		info.Literal = lit
	}
}

func parseCTFEResult(k langtypes.Kind, display string, t langtypes.TypeCode) *hir.ComptimeLiteral {
	switch k {
	case langtypes.Bool:
		return &hir.ComptimeLiteral{Type: t, Bool: display == "true"}
	case langtypes.Int64, langtypes.Char:
		v, err := strconv.ParseInt(display, 10, 64)
		if err != nil {
			return nil
		}
		return &hir.ComptimeLiteral{Type: t, Int: v}
	case langtypes.String:
		return &hir.ComptimeLiteral{Type: t, Str: display}
	}
	return nil
}
