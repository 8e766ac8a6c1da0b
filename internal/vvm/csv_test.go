package vvm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"vvm/internal/langtypes"
)

func personRowType(types *langtypes.Registry) langtypes.TypeCode {
	return types.Intern("!csvTestRow", []langtypes.Field{
		{Name: "id", Type: langtypes.Builtin(langtypes.Int64, langtypes.Vector)},
		{Name: "name", Type: langtypes.Builtin(langtypes.String, langtypes.Vector)},
		{Name: "score", Type: langtypes.Builtin(langtypes.Float64, langtypes.Vector)},
	})
}

func TestStoreCSVThenLoadCSVRoundTrip(t *testing.T) {
	types := langtypes.NewRegistry()
	rowType := personRowType(types)

	table := NewRecord(rowType, types)
	table.Cols[0].Vec.Append(intScalar(1))
	table.Cols[1].Vec.Append(Value{Type: langtypes.Builtin(langtypes.String, langtypes.Scalar), S: "ada"})
	table.Cols[2].Vec.Append(Value{Type: langtypes.Builtin(langtypes.Float64, langtypes.Scalar), F: 9.5})

	table.Cols[0].Vec.Append(NullScalar(langtypes.Int64))
	table.Cols[1].Vec.Append(Value{Type: langtypes.Builtin(langtypes.String, langtypes.Scalar), S: "grace"})
	table.Cols[2].Vec.Append(NullScalar(langtypes.Float64))

	path := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, storeCSV(types, table, path))

	loaded, err := loadCSV(types, rowType, path)
	require.NoError(t, err)
	require.Equal(t, 2, loaded.RowCount())
	require.Equal(t, int64(1), loaded.Cols[0].Vec.Get(0).I)
	require.Equal(t, "ada", loaded.Cols[1].Vec.Get(0).S)
	require.Equal(t, 9.5, loaded.Cols[2].Vec.Get(0).F)

	require.True(t, loaded.Cols[0].Vec.Get(1).IsNull(), "empty cell round-trips as nil")
	require.Equal(t, "grace", loaded.Cols[1].Vec.Get(1).S)
	require.True(t, loaded.Cols[2].Vec.Get(1).IsNull())
}

func TestLoadCSVMissingColumnErrors(t *testing.T) {
	types := langtypes.NewRegistry()
	rowType := personRowType(types)

	path := filepath.Join(t.TempDir(), "incomplete.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name\n1,ada\n"), 0o644))

	_, err := loadCSV(types, rowType, path)
	require.Error(t, err)
}

func TestParseCellByKind(t *testing.T) {
	require.True(t, parseCell(langtypes.Int64, "").IsNull())
	require.Equal(t, int64(42), parseCell(langtypes.Int64, "42").I)
	require.True(t, parseCell(langtypes.Bool, "true").B)
	require.False(t, parseCell(langtypes.Bool, "0").B)
	require.Equal(t, "hi", parseCell(langtypes.String, "hi").S)
	require.Equal(t, "", parseCell(langtypes.String, "").S, "String's empty cell is the empty string, not nil")

	ts := parseCell(langtypes.Timestamp, "2024-01-02")
	require.False(t, ts.IsNull())

	bad := parseCell(langtypes.Float64, "not-a-number")
	require.True(t, bad.IsNull())
}

func TestCellStringRoundTripsNilAsEmpty(t *testing.T) {
	require.Equal(t, "", cellString(NullScalar(langtypes.Int64)))
	require.Equal(t, "3.5", cellString(Value{Type: langtypes.Builtin(langtypes.Float64, langtypes.Scalar), F: 3.5}))
	require.Equal(t, "true", cellString(Value{Type: langtypes.Builtin(langtypes.Bool, langtypes.Scalar), B: true}))
}
