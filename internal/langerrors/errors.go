// Package langerrors implements the error-kind taxonomy from spec §7:
// ParseError, SemaError, CodegenInvariantViolation, RuntimeError, and
// ExitCondition, each carrying a source location and (for runtime errors) a
// call stack.
//
// Grounded on sentra/internal/errors.go's ErrorType/SourceLocation/
// StackFrame shape; wraps underlying causes with github.com/pkg/errors
// rather than the teacher's plain fmt.Errorf, matching the pack's richer
// error-chain convention (errors.Wrap/errors.Cause) documented in
// SPEC_FULL.md's ambient stack.
package langerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the category of a language error (spec §7).
type Kind string

const (
	KindParse              Kind = "ParseError"
	KindSema               Kind = "SemaError"
	KindCodegenInvariant   Kind = "CodegenInvariantViolation"
	KindRuntime            Kind = "RuntimeError"
	KindExitCondition      Kind = "ExitCondition"
)

// SourceLocation is a position in source text.
type SourceLocation struct {
	Line   int
	Column int
}

func (l SourceLocation) String() string {
	if l.Line == 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// StackFrame is one call-stack entry attached to a RuntimeError.
type StackFrame struct {
	Function string
	Location SourceLocation
}

// Diagnostic is a single user-visible error (spec §7: "single-line
// diagnostics for parse/sema, one-line plus candidate list for overload
// failures, and `Error: <message>\n` for runtime faults").
type Diagnostic struct {
	Kind       Kind
	Message    string
	Location   SourceLocation
	Candidates []string // overload-resolution failure candidates, if any
	CallStack  []StackFrame
	cause      error
}

func New(kind Kind, loc SourceLocation, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...), Location: loc}
}

// Wrap attaches cause with a stack-aware chain (github.com/pkg/errors),
// preserving the original for `errors.Cause`.
func (d *Diagnostic) Wrap(cause error) *Diagnostic {
	d.cause = errors.Wrap(cause, d.Message)
	return d
}

func (d *Diagnostic) Unwrap() error { return d.cause }

func (d *Diagnostic) Error() string {
	switch d.Kind {
	case KindRuntime:
		return "Error: " + d.renderMessage()
	case KindExitCondition:
		return d.Message
	default:
		if loc := d.Location.String(); loc != "" {
			return fmt.Sprintf("%s: %s: %s", d.Kind, loc, d.renderMessage())
		}
		return fmt.Sprintf("%s: %s", d.Kind, d.renderMessage())
	}
}

func (d *Diagnostic) renderMessage() string {
	msg := d.Message
	if len(d.Candidates) > 0 {
		shown := d.Candidates
		more := 0
		if len(shown) > 3 {
			more = len(shown) - 3
			shown = shown[:3]
		}
		msg += "\n  candidates:"
		for _, c := range shown {
			msg += "\n    " + c
		}
		if more > 0 {
			msg += fmt.Sprintf("\n    <%d others>", more)
		}
	}
	return msg
}

// ExitCode carries a user `exit(n)` control condition (spec §5/§7).
type ExitCode struct {
	Code int
}

func (e *ExitCode) Error() string { return fmt.Sprintf("exit(%d)", e.Code) }

// AsDiagnostic lifts an ExitCode into a Diagnostic of kind ExitCondition.
func (e *ExitCode) AsDiagnostic() *Diagnostic {
	return &Diagnostic{Kind: KindExitCondition, Message: fmt.Sprintf("exit(%d)", e.Code)}
}

// Buffer accumulates diagnostics across a module, as the semantic analyzer
// does (spec §4.1/§7): "Errors accumulate into a buffer; on non-empty
// buffer at module end, the analyzer rejects the module."
type Buffer struct {
	diags []*Diagnostic
}

func (b *Buffer) Add(d *Diagnostic) { b.diags = append(b.diags, d) }

func (b *Buffer) Empty() bool { return len(b.diags) == 0 }

func (b *Buffer) Diagnostics() []*Diagnostic { return b.diags }

func (b *Buffer) Error() string {
	if b.Empty() {
		return ""
	}
	msg := b.diags[0].Error()
	if len(b.diags) > 1 {
		msg += fmt.Sprintf(" (+%d more)", len(b.diags)-1)
	}
	return msg
}
