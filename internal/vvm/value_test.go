package vvm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"vvm/internal/langtypes"
)

func TestNullScalarSentinels(t *testing.T) {
	require.True(t, NullScalar(langtypes.Int64).IsNull())
	require.Equal(t, int64(math.MinInt64), NullScalar(langtypes.Int64).I)

	require.True(t, NullScalar(langtypes.Float64).IsNull())
	require.True(t, math.IsNaN(NullScalar(langtypes.Float64).F))

	require.True(t, NullScalar(langtypes.Bool).IsNull())
	require.False(t, NullScalar(langtypes.Bool).B)
}

func TestIsNullHonoursSentinelWithoutFlag(t *testing.T) {
	v := Value{Type: langtypes.Builtin(langtypes.Int64, langtypes.Scalar), I: math.MinInt64}
	require.True(t, v.IsNull(), "an Int64 at the sentinel value is nil even if Null was never set")

	v = Value{Type: langtypes.Builtin(langtypes.Int64, langtypes.Scalar), I: 5}
	require.False(t, v.IsNull())
}

func TestVectorAppendGetRoundTrip(t *testing.T) {
	vec := NewVector(langtypes.Int64).Vec
	vec.Append(Value{Type: langtypes.Builtin(langtypes.Int64, langtypes.Scalar), I: 10})
	vec.Append(NullScalar(langtypes.Int64))
	vec.Append(Value{Type: langtypes.Builtin(langtypes.Int64, langtypes.Scalar), I: 20})

	require.Equal(t, 3, vec.Len())
	require.Equal(t, int64(10), vec.Get(0).I)
	require.True(t, vec.Get(1).IsNull())
	require.Equal(t, int64(20), vec.Get(2).I)
}

func TestVectorTakeOutOfRangeProducesNull(t *testing.T) {
	vec := NewVector(langtypes.Int64).Vec
	vec.Append(Value{Type: langtypes.Builtin(langtypes.Int64, langtypes.Scalar), I: 1})
	vec.Append(Value{Type: langtypes.Builtin(langtypes.Int64, langtypes.Scalar), I: 2})

	out := vec.Take([]int64{1, -1, 0, 99})
	require.Equal(t, 4, out.Len())
	require.Equal(t, int64(2), out.Get(0).I)
	require.True(t, out.Get(1).IsNull())
	require.Equal(t, int64(1), out.Get(2).I)
	require.True(t, out.Get(3).IsNull())
}

func TestNewRecordZeroesEveryField(t *testing.T) {
	types := langtypes.NewRegistry()
	rowType := types.Intern("Row", []langtypes.Field{
		{Name: "id", Type: langtypes.Builtin(langtypes.Int64, langtypes.Vector)},
		{Name: "name", Type: langtypes.Builtin(langtypes.String, langtypes.Vector)},
	})

	rec := NewRecord(rowType, types)
	require.Len(t, rec.Cols, 2)
	require.Equal(t, 0, rec.RowCount())
	require.Equal(t, 0, rec.Cols[0].Vec.Len())
	require.Equal(t, 1, FieldIndex(types, rowType, "name"))
	require.Equal(t, -1, FieldIndex(types, rowType, "missing"))
}
