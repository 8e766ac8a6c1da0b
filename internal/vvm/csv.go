// CSV load/store (spec §4.3 "CSV load/store", spec §6 "CSV format"):
// per-column type parsing with a small timestamp-format inference pass,
// mirroring how the rest of the table kernels work on whole columns rather
// than row objects.
package vvm

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"vvm/internal/langtypes"
)

var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (int64, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixNano(), true
		}
	}
	return 0, false
}

// loadCSV reads path and parses every row into rowType's Dataframe shape
// (spec §4.3 "CSV load/store"): the header names select field order, and
// each column's declared Kind drives per-cell parsing. An empty cell parses
// to that column's nil sentinel (spec §6: "the empty string is CSV's nil
// representation"), except in a String column, where it stays the empty
// string.
func loadCSV(types *langtypes.Registry, rowType langtypes.TypeCode, path string) (Value, error) {
	f, err := os.Open(path)
	if err != nil {
		return Value{}, fmt.Errorf("vvm: load: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return Value{}, fmt.Errorf("vvm: load: reading header: %w", err)
	}

	ud, ok := types.Lookup(rowType)
	if !ok {
		return Value{}, fmt.Errorf("vvm: load: %v is not a Dataframe type", rowType)
	}
	colIdx := make([]int, len(ud.Fields))
	kinds := make([]langtypes.Kind, len(ud.Fields))
	for i, field := range ud.Fields {
		k, _, _ := field.Type.Decode()
		kinds[i] = k
		colIdx[i] = -1
		for j, h := range header {
			if h == field.Name {
				colIdx[i] = j
				break
			}
		}
		if colIdx[i] < 0 {
			return Value{}, fmt.Errorf("vvm: load: column %q missing from %s", field.Name, path)
		}
	}

	result := NewRecord(rowType, types)
	for {
		row, err := r.Read()
		if err != nil {
			break
		}
		for i := range ud.Fields {
			cell := row[colIdx[i]]
			result.Cols[i].Vec.Append(parseCell(kinds[i], cell))
		}
	}
	return result, nil
}

func parseCell(k langtypes.Kind, cell string) Value {
	if cell == "" && k != langtypes.String {
		return NullScalar(k)
	}
	switch k {
	case langtypes.Bool:
		return Value{Type: langtypes.Builtin(k, langtypes.Scalar), B: cell == "true" || cell == "1"}
	case langtypes.String:
		return Value{Type: langtypes.Builtin(k, langtypes.Scalar), S: cell}
	case langtypes.Char:
		v := Value{Type: langtypes.Builtin(k, langtypes.Scalar), S: cell}
		if len(cell) > 0 {
			v.I = int64(cell[0])
		}
		return v
	case langtypes.Float64:
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return NullScalar(k)
		}
		return Value{Type: langtypes.Builtin(k, langtypes.Scalar), F: v}
	case langtypes.Date, langtypes.Time, langtypes.Timestamp, langtypes.Timedelta:
		if ns, ok := parseTimestamp(cell); ok {
			return Value{Type: langtypes.Builtin(k, langtypes.Scalar), I: ns}
		}
		if v, err := strconv.ParseInt(cell, 10, 64); err == nil {
			return Value{Type: langtypes.Builtin(k, langtypes.Scalar), I: v}
		}
		return NullScalar(k)
	default:
		v, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return NullScalar(k)
		}
		return Value{Type: langtypes.Builtin(k, langtypes.Scalar), I: v}
	}
}

// storeCSV writes table to path, one column per field in declaration order.
func storeCSV(types *langtypes.Registry, table Value, path string) error {
	ud, ok := types.Lookup(table.Type)
	if !ok {
		return fmt.Errorf("vvm: store: value has no record type")
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("vvm: store: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := make([]string, len(ud.Fields))
	for i, field := range ud.Fields {
		header[i] = field.Name
	}
	if err := w.Write(header); err != nil {
		return err
	}
	n := table.RowCount()
	row := make([]string, len(ud.Fields))
	for i := 0; i < n; i++ {
		for c, col := range table.Cols {
			row[c] = cellString(col.Vec.Get(i))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func cellString(v Value) string {
	if v.IsNull() {
		return ""
	}
	k, _, _ := v.Type.Decode()
	switch k {
	case langtypes.Bool:
		return strconv.FormatBool(v.B)
	case langtypes.String, langtypes.Char:
		return v.S
	case langtypes.Float64:
		return strconv.FormatFloat(v.F, 'f', -1, 64)
	default:
		return strconv.FormatInt(v.I, 10)
	}
}
