package sqlsource

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"vvm/internal/langtypes"
)

func rowType(types *langtypes.Registry) langtypes.TypeCode {
	return types.Intern("!sqlTestRow", []langtypes.Field{
		{Name: "id", Type: langtypes.Builtin(langtypes.Int64, langtypes.Vector)},
		{Name: "name", Type: langtypes.Builtin(langtypes.String, langtypes.Vector)},
	})
}

func TestLoadMatchesColumnsByNameAndHandlesNull(t *testing.T) {
	dsn := "file::memory:?cache=shared"
	setup, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	defer setup.Close()

	_, err = setup.Exec(`CREATE TABLE people (name TEXT, id INTEGER)`)
	require.NoError(t, err)
	_, err = setup.Exec(`INSERT INTO people (name, id) VALUES ('ada', 1), (NULL, 2)`)
	require.NoError(t, err)

	types := langtypes.NewRegistry()
	rt := rowType(types)

	result, err := (Source{}).Load("sqlite3", dsn, "SELECT name, id FROM people ORDER BY id", rt, types)
	require.NoError(t, err)

	require.Equal(t, 2, result.RowCount())
	require.Equal(t, int64(1), result.Cols[0].Vec.Get(0).I)
	require.Equal(t, "ada", result.Cols[1].Vec.Get(0).S)
	require.Equal(t, int64(2), result.Cols[0].Vec.Get(1).I)
	require.True(t, result.Cols[1].Vec.Get(1).IsNull(), "a SQL NULL name maps to String's nil sentinel")
}

func TestLoadErrorsWhenRowTypeFieldMissingFromResultSet(t *testing.T) {
	dsn := "file::memory:?cache=shared&mode=memory2"
	setup, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	defer setup.Close()
	_, err = setup.Exec(`CREATE TABLE things (id INTEGER)`)
	require.NoError(t, err)

	types := langtypes.NewRegistry()
	rt := rowType(types)

	_, err = (Source{}).Load("sqlite3", dsn, "SELECT id FROM things", rt, types)
	require.Error(t, err)
}
