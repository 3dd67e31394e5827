package compiler

import (
	"fmt"
	"io"
)

// DiagnosticKind separates syntax errors from semantic errors.
type DiagnosticKind int

const (
	KindSemantic DiagnosticKind = iota
	KindSyntax
)

// Diagnostic is one user-facing error. Pos is the zero Position when the
// error has no source location.
type Diagnostic struct {
	Kind    DiagnosticKind
	Message string
	Span    Span
}

// Pos returns the start of the diagnostic's span.
func (d Diagnostic) Pos() Position {
	return d.Span.Start
}

// String renders the message with an " at line:col" suffix when the
// position is known.
func (d Diagnostic) String() string {
	if d.Span.Start.IsValid() {
		return fmt.Sprintf("%s at %s", d.Message, d.Span.Start)
	}
	return d.Message
}

// Diagnostics is an append-only, insertion-ordered sink of errors.
// Each compilation creates its own instance.
type Diagnostics struct {
	items []Diagnostic
}

// NewDiagnostics returns an empty sink.
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{}
}

// Error appends a message with no position.
func (d *Diagnostics) Error(msg string) {
	d.items = append(d.items, Diagnostic{Message: msg})
}

// ErrorAt appends a semantic error located at span.
func (d *Diagnostics) ErrorAt(span Span, format string, args ...any) {
	d.items = append(d.items, Diagnostic{
		Kind:    KindSemantic,
		Message: fmt.Sprintf(format, args...),
		Span:    span,
	})
}

// SyntaxErrorAt appends a syntax error located at span.
func (d *Diagnostics) SyntaxErrorAt(span Span, format string, args ...any) {
	d.items = append(d.items, Diagnostic{
		Kind:    KindSyntax,
		Message: "syntax error: " + fmt.Sprintf(format, args...),
		Span:    span,
	})
}

// HasErrors reports whether any error was recorded.
func (d *Diagnostics) HasErrors() bool {
	return len(d.items) > 0
}

// Len returns the number of recorded errors.
func (d *Diagnostics) Len() int {
	return len(d.items)
}

// Errors returns the rendered messages in insertion order.
func (d *Diagnostics) Errors() []string {
	out := make([]string, len(d.items))
	for i, item := range d.items {
		out[i] = item.String()
	}
	return out
}

// Items returns a copy of the structured diagnostics.
func (d *Diagnostics) Items() []Diagnostic {
	return append([]Diagnostic(nil), d.items...)
}

// PrintAll writes one "[ERROR] " line per diagnostic.
func (d *Diagnostics) PrintAll(w io.Writer) error {
	for _, item := range d.items {
		if _, err := fmt.Fprintf(w, "[ERROR] %s\n", item); err != nil {
			return err
		}
	}
	return nil
}
