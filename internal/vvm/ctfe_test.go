package vvm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vvm/internal/bytecode"
	"vvm/internal/hir"
	"vvm/internal/langtypes"
)

func TestNewCTFEEvaluatesLiteralExpression(t *testing.T) {
	specs := bytecode.NewSpecTable()
	ctfe := NewCTFE(specs)

	types := langtypes.NewRegistry()
	lit := &hir.Lit{
		ExprInfo: hir.ExprInfo{Type: langtypes.Builtin(langtypes.Int64, langtypes.Scalar)},
		Int:      42,
	}

	out, err := ctfe(lit, types)
	require.NoError(t, err)
	require.Equal(t, "42", out)
}

func TestNewCTFEPropagatesGenerationError(t *testing.T) {
	specs := bytecode.NewSpecTable()
	ctfe := NewCTFE(specs)
	types := langtypes.NewRegistry()

	// An expression node genExpr has no case for is a codegen error, not a
	// VM error, so NewCTFE must surface it rather than panic.
	_, err := ctfe(&unsupportedExpr{}, types)
	require.Error(t, err)
}

type unsupportedExpr struct {
	hir.ExprInfo
}
