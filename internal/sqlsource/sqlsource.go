// Package sqlsource implements load_sql (spec §4.3 "External table
// sources"): it opens one of the four SQL drivers the domain stack carries,
// runs the given query, and assembles the rows into a vvm.Value Dataframe
// whose column order follows the declared row type, matching the way
// internal/vvm's CSV loader matches header names against field names.
//
// Grounded on database/sql's driver-registration convention; the four
// blank imports below are the domain stack's SQL drivers (spec §2 DOMAIN
// STACK "relational sources").
package sqlsource

import (
	"database/sql"
	"fmt"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"vvm/internal/langtypes"
	"vvm/internal/vvm"
)

// Source implements vvm.SQLLoader. It is stateless; callers share one
// Source across every load_sql call in a VM's lifetime.
type Source struct{}

// Load opens driver/dsn, runs query, and returns the result rows shaped as
// rowType (spec §4.3 load_sql(driver, dsn, query)). Columns are matched to
// rowType's fields by name, case-sensitively, the same convention
// internal/vvm's CSV loader uses for header matching.
func (Source) Load(driver, dsn, query string, rowType langtypes.TypeCode, types *langtypes.Registry) (vvm.Value, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return vvm.Value{}, fmt.Errorf("vvm: load_sql: open %s: %w", driver, err)
	}
	defer db.Close()

	rows, err := db.Query(query)
	if err != nil {
		return vvm.Value{}, fmt.Errorf("vvm: load_sql: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return vvm.Value{}, fmt.Errorf("vvm: load_sql: columns: %w", err)
	}

	ud, ok := types.Lookup(rowType)
	if !ok {
		return vvm.Value{}, fmt.Errorf("vvm: load_sql: %v is not a Dataframe type", rowType)
	}
	colIdx := make([]int, len(ud.Fields))
	kinds := make([]langtypes.Kind, len(ud.Fields))
	for i, field := range ud.Fields {
		k, _, _ := field.Type.Decode()
		kinds[i] = k
		colIdx[i] = -1
		for j, c := range cols {
			if c == field.Name {
				colIdx[i] = j
				break
			}
		}
		if colIdx[i] < 0 {
			return vvm.Value{}, fmt.Errorf("vvm: load_sql: column %q missing from result set", field.Name)
		}
	}

	result := vvm.NewRecord(rowType, types)
	scratch := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range scratch {
		ptrs[i] = &scratch[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return vvm.Value{}, fmt.Errorf("vvm: load_sql: scan: %w", err)
		}
		for i := range ud.Fields {
			result.Cols[i].Vec.Append(cellValue(kinds[i], scratch[colIdx[i]]))
		}
	}
	if err := rows.Err(); err != nil {
		return vvm.Value{}, fmt.Errorf("vvm: load_sql: %w", err)
	}
	return result, nil
}

// cellValue converts one driver-returned column value into a Value of kind
// k, treating a SQL NULL (raw == nil) as that kind's nil sentinel (spec §4.3
// "a SQL NULL maps to the column's nil representation", mirroring CSV's
// empty-string convention).
func cellValue(k langtypes.Kind, raw interface{}) vvm.Value {
	if raw == nil {
		return vvm.NullScalar(k)
	}
	switch k {
	case langtypes.Bool:
		switch v := raw.(type) {
		case bool:
			return vvm.Value{Type: langtypes.Builtin(k, langtypes.Scalar), B: v}
		case int64:
			return vvm.Value{Type: langtypes.Builtin(k, langtypes.Scalar), B: v != 0}
		default:
			return vvm.NullScalar(k)
		}
	case langtypes.String, langtypes.Char:
		switch v := raw.(type) {
		case string:
			return vvm.Value{Type: langtypes.Builtin(k, langtypes.Scalar), S: v}
		case []byte:
			return vvm.Value{Type: langtypes.Builtin(k, langtypes.Scalar), S: string(v)}
		default:
			return vvm.Value{Type: langtypes.Builtin(k, langtypes.Scalar), S: fmt.Sprint(v)}
		}
	case langtypes.Float64:
		switch v := raw.(type) {
		case float64:
			return vvm.Value{Type: langtypes.Builtin(k, langtypes.Scalar), F: v}
		case int64:
			return vvm.Value{Type: langtypes.Builtin(k, langtypes.Scalar), F: float64(v)}
		case []byte:
			var f float64
			fmt.Sscanf(string(v), "%g", &f)
			return vvm.Value{Type: langtypes.Builtin(k, langtypes.Scalar), F: f}
		default:
			return vvm.NullScalar(k)
		}
	case langtypes.Date, langtypes.Time, langtypes.Timestamp, langtypes.Timedelta:
		switch v := raw.(type) {
		case int64:
			return vvm.Value{Type: langtypes.Builtin(k, langtypes.Scalar), I: v}
		default:
			return vvm.NullScalar(k)
		}
	default:
		switch v := raw.(type) {
		case int64:
			return vvm.Value{Type: langtypes.Builtin(k, langtypes.Scalar), I: v}
		case []byte:
			var i int64
			fmt.Sscanf(string(v), "%d", &i)
			return vvm.Value{Type: langtypes.Builtin(k, langtypes.Scalar), I: i}
		default:
			return vvm.NullScalar(k)
		}
	}
}
