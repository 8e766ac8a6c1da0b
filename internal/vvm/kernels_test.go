package vvm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vvm/internal/bytecode"
	"vvm/internal/langtypes"
)

// intTable builds a single-column Int64 Dataframe named field "k" holding
// vals, the way codegen's ALLOC + repeated column appends would.
func intTable(types *langtypes.Registry, vals ...int64) Value {
	t := types.Intern("!kernelTestRow", []langtypes.Field{
		{Name: "k", Type: langtypes.Builtin(langtypes.Int64, langtypes.Vector)},
	})
	row := NewRecord(t, types)
	for _, v := range vals {
		row.Cols[0].Vec.Append(intScalar(v))
	}
	return row
}

func intVec(vals ...int64) Value {
	v := newVector(langtypes.Int64)
	for _, x := range vals {
		v.Append(intScalar(x))
	}
	return vecVal(v)
}

func boolVec(vals ...bool) Value {
	v := newVector(langtypes.Bool)
	for _, b := range vals {
		v.Append(Value{Type: langtypes.Builtin(langtypes.Bool, langtypes.Scalar), B: b})
	}
	return vecVal(v)
}

func TestKernelWhereFiltersRows(t *testing.T) {
	types := langtypes.NewRegistry()
	table := intTable(types, 10, 20, 30)
	mask := boolVec(true, false, true)

	out := kernelWhere(table, mask)
	require.Equal(t, 2, out.RowCount())
	require.Equal(t, int64(10), out.Cols[0].Vec.Get(0).I)
	require.Equal(t, int64(30), out.Cols[0].Vec.Get(1).I)
}

func TestKernelIsortStableAscending(t *testing.T) {
	types := langtypes.NewRegistry()
	byTable := intTable(types, 3, 1, 2, 1)

	perm := kernelIsort(byTable)
	require.Equal(t, 4, perm.Vec.Len())
	got := []int64{perm.Vec.Get(0).I, perm.Vec.Get(1).I, perm.Vec.Get(2).I, perm.Vec.Get(3).I}
	// rows 1 and 3 both hold key 1; stability keeps row 1 before row 3.
	require.Equal(t, []int64{1, 3, 2, 0}, got)
}

func TestKernelMultidxOnVector(t *testing.T) {
	types := langtypes.NewRegistry()
	_ = types
	src := intVec(100, 200, 300)
	idx := intVec(2, 0, 99)

	out, err := kernelMultidx(src, idx)
	require.NoError(t, err)
	require.Equal(t, int64(300), out.Vec.Get(0).I)
	require.Equal(t, int64(100), out.Vec.Get(1).I)
	require.True(t, out.Vec.Get(2).IsNull())
}

func TestKernelMultidxOnTable(t *testing.T) {
	types := langtypes.NewRegistry()
	src := intTable(types, 5, 6, 7)
	idx := intVec(1, 0)

	out, err := kernelMultidx(src, idx)
	require.NoError(t, err)
	require.Equal(t, 2, out.RowCount())
	require.Equal(t, int64(6), out.Cols[0].Vec.Get(0).I)
	require.Equal(t, int64(5), out.Cols[0].Vec.Get(1).I)
}

func TestKernelMultidxRejectsNonVectorNonTable(t *testing.T) {
	_, err := kernelMultidx(Value{}, intVec(0))
	require.Error(t, err)
}

func TestKernelEqMatchInnerJoin(t *testing.T) {
	types := langtypes.NewRegistry()
	left := intTable(types, 1, 2, 2)
	right := intTable(types, 2, 3, 2)

	li, ri := kernelEqMatch(left, right)
	// row1(key2) matches right rows 0,2; row2(key2) matches right rows 0,2;
	// row0(key1) matches nothing.
	require.Equal(t, 4, li.Vec.Len())
	require.Equal(t, 4, ri.Vec.Len())
	for i := 0; i < li.Vec.Len(); i++ {
		require.Contains(t, []int64{1, 2}, li.Vec.Get(i).I)
	}
}

func TestKernelAsofMatchBackwardKeepsEveryLeftRow(t *testing.T) {
	left := intVec(0, 5, 15)
	right := intVec(1, 10, 20)

	out := kernelAsofMatch(left, right, dirBackward, false)
	require.Equal(t, 3, out.Vec.Len())
	require.True(t, out.Vec.Get(0).IsNull(), "left 0 has no right key <= it")
	require.Equal(t, int64(0), out.Vec.Get(1).I, "left 5 matches right[0]=1")
	require.Equal(t, int64(1), out.Vec.Get(2).I, "left 15 matches right[1]=10")
}

func TestKernelAsofMatchForward(t *testing.T) {
	left := intVec(0, 5, 25)
	right := intVec(1, 10, 20)

	out := kernelAsofMatch(left, right, dirForward, false)
	require.Equal(t, int64(0), out.Vec.Get(0).I, "left 0 forward-matches right[0]=1")
	require.Equal(t, int64(1), out.Vec.Get(1).I, "left 5 forward-matches right[1]=10")
	require.True(t, out.Vec.Get(2).IsNull(), "left 25 exceeds every right key")
}

func TestKernelAsofNearPicksClosestTiesBackward(t *testing.T) {
	left := intVec(9, 11, 100)
	right := intVec(0, 10, 20)

	out := kernelAsofNear(left, right)
	require.Equal(t, int64(1), out.Vec.Get(0).I, "9 is closer to right[1]=10 than right[0]=0")
	require.Equal(t, int64(1), out.Vec.Get(1).I, "11 is closer to right[1]=10 than right[2]=20")
	require.Equal(t, int64(2), out.Vec.Get(2).I, "100 is nearest to right[2]=20")
}

func TestKernelAsofWithinDropsOutOfTolerance(t *testing.T) {
	left := intVec(5, 5)
	right := intVec(4, 100)

	matched := kernelAsofWithin(left, right, dirBackward, false, intScalar(2))
	require.Equal(t, int64(0), matched.Vec.Get(0).I, "left 5 matches right[0]=4 within tolerance 2")

	farLeft := intVec(50)
	farRight := intVec(4, 100)
	farMatched := kernelAsofWithin(farLeft, farRight, dirBackward, false, intScalar(2))
	require.True(t, farMatched.Vec.Get(0).IsNull(), "left 50 is farther than tolerance from its backward match right[0]=4")
}

func TestKernelTakeProjectsNamedFields(t *testing.T) {
	types := langtypes.NewRegistry()
	src := types.Intern("!takeSrc", []langtypes.Field{
		{Name: "a", Type: langtypes.Builtin(langtypes.Int64, langtypes.Vector)},
		{Name: "b", Type: langtypes.Builtin(langtypes.Int64, langtypes.Vector)},
	})
	row := NewRecord(src, types)
	row.Cols[0].Vec.Append(intScalar(1))
	row.Cols[1].Vec.Append(intScalar(2))

	dst := types.Intern("!takeDst", []langtypes.Field{
		{Name: "b", Type: langtypes.Builtin(langtypes.Int64, langtypes.Vector)},
	})

	out, err := kernelTake(types, dst, row)
	require.NoError(t, err)
	require.Len(t, out.Cols, 1)
	require.Equal(t, int64(2), out.Cols[0].Vec.Get(0).I)
}

func TestKernelTakeRejectsUnknownField(t *testing.T) {
	types := langtypes.NewRegistry()
	src := types.Intern("!takeSrc2", []langtypes.Field{
		{Name: "a", Type: langtypes.Builtin(langtypes.Int64, langtypes.Vector)},
	})
	row := NewRecord(src, types)
	dst := types.Intern("!takeDst2", []langtypes.Field{
		{Name: "missing", Type: langtypes.Builtin(langtypes.Int64, langtypes.Vector)},
	})

	_, err := kernelTake(types, dst, row)
	require.Error(t, err)
}

func TestKernelConcatCombinesFields(t *testing.T) {
	types := langtypes.NewRegistry()
	leftT := types.Intern("!concatLeft", []langtypes.Field{
		{Name: "a", Type: langtypes.Builtin(langtypes.Int64, langtypes.Vector)},
	})
	rightT := types.Intern("!concatRight", []langtypes.Field{
		{Name: "b", Type: langtypes.Builtin(langtypes.Int64, langtypes.Vector)},
	})
	left := NewRecord(leftT, types)
	left.Cols[0].Vec.Append(intScalar(1))
	right := NewRecord(rightT, types)
	right.Cols[0].Vec.Append(intScalar(2))

	out, err := kernelConcat(types, left, right)
	require.NoError(t, err)
	require.Len(t, out.Cols, 2)
	require.Equal(t, int64(1), out.Cols[0].Vec.Get(0).I)
	require.Equal(t, int64(2), out.Cols[1].Vec.Get(0).I)
}

func TestKernelReduceSumEmptyIsZero(t *testing.T) {
	empty := intVec()
	out, err := kernelReduce(bytecode.OpReduceSum, empty)
	require.NoError(t, err)
	require.False(t, out.IsNull())
	require.Equal(t, int64(0), out.I)
}

func TestKernelReduceProdEmptyIsOne(t *testing.T) {
	empty := intVec()
	out, err := kernelReduce(bytecode.OpReduceProd, empty)
	require.NoError(t, err)
	require.Equal(t, int64(1), out.I)
}

func TestKernelReduceSumSkipsNulls(t *testing.T) {
	v := newVector(langtypes.Int64)
	v.Append(intScalar(1))
	v.Append(NullScalar(langtypes.Int64))
	v.Append(intScalar(2))

	out, err := kernelReduce(bytecode.OpReduceSum, vecVal(v))
	require.NoError(t, err)
	require.Equal(t, int64(3), out.I)
}

func TestKernelReduceMinMax(t *testing.T) {
	vals := intVec(5, -1, 9, 2)
	min, err := kernelReduce(bytecode.OpReduceMin, vals)
	require.NoError(t, err)
	require.Equal(t, int64(-1), min.I)

	max, err := kernelReduce(bytecode.OpReduceMax, vals)
	require.NoError(t, err)
	require.Equal(t, int64(9), max.I)
}

func TestKernelReduceMinOnAllNullIsNull(t *testing.T) {
	v := newVector(langtypes.Int64)
	v.Append(NullScalar(langtypes.Int64))
	v.Append(NullScalar(langtypes.Int64))

	out, err := kernelReduce(bytecode.OpReduceMin, vecVal(v))
	require.NoError(t, err)
	require.True(t, out.IsNull())
}

func TestKernelReduceCount(t *testing.T) {
	out, err := kernelReduce(bytecode.OpReduceCount, intVec(1, 2, 3))
	require.NoError(t, err)
	require.Equal(t, int64(3), out.I)
}

func TestKernelGroupPartitionsByKey(t *testing.T) {
	types := langtypes.NewRegistry()
	table := intTable(types, 1, 2, 3, 4)
	byTable := intTable(types, 10, 20, 10, 20)

	resultT := types.Intern("!groupResult", []langtypes.Field{
		{Name: "k", Type: langtypes.Builtin(langtypes.Int64, langtypes.Vector)},
	})
	result := NewRecord(resultT, types)

	n := kernelGroup(&result, table, byTable)
	require.Equal(t, 2, n)
	require.Equal(t, int64(10), result.Cols[0].Vec.Get(0).I)
	require.Equal(t, int64(20), result.Cols[0].Vec.Get(1).I)
	require.Equal(t, [][]int{{0, 2}, {1, 3}}, result.Groups)
	require.NotNil(t, result.GroupSource)
}
