package vvm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"vvm/internal/langtypes"
)

func TestReprScalar(t *testing.T) {
	types := langtypes.NewRegistry()
	require.Equal(t, "7", Repr(intScalar(7), types))
	require.Equal(t, "nil", Repr(NullScalar(langtypes.Int64), types))
	require.Equal(t, "nan", Repr(NullScalar(langtypes.Float64), types))
	require.Equal(t, "true", Repr(Value{Type: langtypes.Builtin(langtypes.Bool, langtypes.Scalar), B: true}, types))
	require.Equal(t, "hi", Repr(Value{Type: langtypes.Builtin(langtypes.String, langtypes.Scalar), S: "hi"}, types))
}

func TestReprVectorUnderCapPrintsEveryElement(t *testing.T) {
	types := langtypes.NewRegistry()
	v := intVec(1, 2, 3)
	require.Equal(t, "[1 2 3]", Repr(v, types))
}

func TestReprVectorOverCapTruncatesWithFooter(t *testing.T) {
	types := langtypes.NewRegistry()
	vals := make([]int64, vectorDisplayCap+5)
	for i := range vals {
		vals[i] = int64(i)
	}
	v := intVec(vals...)
	out := Repr(v, types)
	require.True(t, strings.HasPrefix(out, "[0 1 2"))
	require.Contains(t, out, "more)")
	require.Contains(t, out, "5 more")
}

func TestReprTableShowsHeaderAndRows(t *testing.T) {
	types := langtypes.NewRegistry()
	table := intTable(types, 1, 2)
	out := Repr(table, types)
	lines := strings.Split(out, "\n")
	require.Equal(t, "k", strings.TrimSpace(lines[0]))
	require.Equal(t, "1", strings.TrimSpace(lines[1]))
	require.Equal(t, "2", strings.TrimSpace(lines[2]))
}

func TestReprTableTruncatesPastConsoleHeight(t *testing.T) {
	types := langtypes.NewRegistry()
	maxRows := consoleHeight - 4
	vals := make([]int64, maxRows+3)
	for i := range vals {
		vals[i] = int64(i)
	}
	table := intTable(types, vals...)
	out := Repr(table, types)
	require.Contains(t, out, "more rows")
	require.Contains(t, out, "3 more rows")
}
