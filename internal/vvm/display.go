// Display formatting (spec §4.3 "Display"): scalar nil/NaN/temporal
// rendering, a 25-element vector cap, and a padded Dataframe table with a
// console-height-bounded row cap. Truncation footers use
// github.com/dustin/go-humanize for the omitted-row/column counts, matching
// how the rest of the domain stack favours a pack library over a hand-rolled
// equivalent.
package vvm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"vvm/internal/langtypes"
)

const (
	vectorDisplayCap = 25
	consoleHeight    = 24 // spec §4.3: table row cap is console_height - 4
)

// Repr renders any Value the way print/repr/the REPL top-level does (spec
// §4.3 "Display").
func Repr(v Value, types *langtypes.Registry) string {
	switch {
	case v.Vec != nil:
		return reprVector(v)
	case v.Cols != nil:
		return reprTable(v, types)
	default:
		return reprScalar(v)
	}
}

func reprScalar(v Value) string {
	if v.IsNull() {
		k, _, ok := v.Type.Decode()
		if !ok {
			return "nil"
		}
		return k.NilRepr()
	}
	k, _, ok := v.Type.Decode()
	if !ok {
		return "<record>"
	}
	switch k {
	case langtypes.Bool:
		return strconv.FormatBool(v.B)
	case langtypes.String:
		return v.S
	case langtypes.Char:
		return v.S
	case langtypes.Float64:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case langtypes.Date, langtypes.Time, langtypes.Timestamp, langtypes.Timedelta:
		return fmt.Sprintf("%s(%d)", k.String(), v.I)
	default:
		return strconv.FormatInt(v.I, 10)
	}
}

func reprVector(v Value) string {
	n := v.Vec.Len()
	shown := n
	truncated := false
	if shown > vectorDisplayCap {
		shown = vectorDisplayCap
		truncated = true
	}
	parts := make([]string, shown)
	for i := 0; i < shown; i++ {
		parts[i] = reprScalar(v.Vec.Get(i))
	}
	body := "[" + strings.Join(parts, " ") + "]"
	if truncated {
		body += fmt.Sprintf(" ... (%s more)", humanize.Comma(int64(n-shown)))
	}
	return body
}

func reprTable(v Value, types *langtypes.Registry) string {
	ud, ok := types.Lookup(v.Type)
	if !ok {
		return "<table>"
	}
	names := make([]string, len(ud.Fields))
	for i, f := range ud.Fields {
		names[i] = f.Name
	}
	n := v.RowCount()
	maxRows := consoleHeight - 4
	shown := n
	truncated := false
	if shown > maxRows {
		shown = maxRows
		truncated = true
	}

	widths := make([]int, len(names))
	for i, name := range names {
		widths[i] = len(name)
	}
	cells := make([][]string, shown)
	for r := 0; r < shown; r++ {
		row := make([]string, len(v.Cols))
		for c, col := range v.Cols {
			row[c] = reprScalar(col.Vec.Get(r))
			if len(row[c]) > widths[c] {
				widths[c] = len(row[c])
			}
		}
		cells[r] = row
	}

	var b strings.Builder
	writeRow(&b, names, widths)
	for _, row := range cells {
		writeRow(&b, row, widths)
	}
	if truncated {
		fmt.Fprintf(&b, "... (%s more rows)\n", humanize.Comma(int64(n-shown)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeRow(b *strings.Builder, cells []string, widths []int) {
	for i, c := range cells {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(b, "%*s", widths[i], c)
	}
	b.WriteByte('\n')
}
