// Package diag pretty-prints langerrors.Diagnostic lists with source
// context, the way sentra/internal/reporting renders its error snippets.
package diag

import (
	"fmt"
	"strings"

	"vvm/internal/langerrors"
)

// Render formats a diagnostic buffer against the original source for
// display to a user (REPL or CLI driver).
func Render(source string, diags []*langerrors.Diagnostic) string {
	lines := strings.Split(source, "\n")
	var b strings.Builder
	for i, d := range diags {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(d.Error())
		if d.Location.Line >= 1 && d.Location.Line <= len(lines) {
			b.WriteByte('\n')
			fmt.Fprintf(&b, "  %4d | %s\n", d.Location.Line, lines[d.Location.Line-1])
			if d.Location.Column > 0 {
				fmt.Fprintf(&b, "       | %s^\n", strings.Repeat(" ", d.Location.Column-1))
			}
		}
	}
	return b.String()
}

// RenderOne formats a single diagnostic the same way.
func RenderOne(source string, d *langerrors.Diagnostic) string {
	return Render(source, []*langerrors.Diagnostic{d})
}
