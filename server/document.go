package server

import (
	"strings"
	"unicode/utf16"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/lxg-lang/lxg/compiler"
)

// document is one open text document together with the result of checking
// it. It is rebuilt from scratch on every change.
type document struct {
	uri   protocol.DocumentUri
	text  string
	lines []string

	prog     *compiler.Program
	diags    *compiler.Diagnostics
	analysis *compiler.Analysis // nil when the document has syntax errors
	symbols  []compiler.Symbol
}

// analyze parses and type-checks text. Like the command-line compiler, the
// checker only runs when parsing succeeded.
func analyze(uri protocol.DocumentUri, text string) *document {
	d := &document{
		uri:   uri,
		text:  text,
		lines: strings.Split(text, "\n"),
		diags: compiler.NewDiagnostics(),
	}
	d.prog = compiler.Parse(text, d.diags)
	if d.diags.HasErrors() {
		return d
	}
	checker := compiler.NewTypeChecker(d.diags)
	checker.Check(d.prog)
	d.analysis = checker.Analysis()
	d.symbols = checker.Symbols().Symbols()
	return d
}

// ---------------------------------------------------------------------------
// Position conversion
// ---------------------------------------------------------------------------

// Compiler positions are 1-based with columns counted in runes. LSP
// positions are 0-based with characters counted in UTF-16 code units.

func (d *document) line(n int) string {
	if n < 0 || n >= len(d.lines) {
		return ""
	}
	return d.lines[n]
}

func (d *document) toProtocol(p compiler.Position) protocol.Position {
	if !p.IsValid() {
		return protocol.Position{}
	}
	line := d.line(p.Line - 1)
	units := 0
	runes := 0
	for _, r := range line {
		if runes == p.Column-1 {
			break
		}
		units += utf16.RuneLen(r)
		runes++
	}
	// Positions past the end of the line (EOF tokens) keep counting.
	units += p.Column - 1 - runes
	return protocol.Position{Line: protocol.UInteger(p.Line - 1), Character: protocol.UInteger(units)}
}

func (d *document) fromProtocol(p protocol.Position) compiler.Position {
	line := d.line(int(p.Line))
	units := 0
	col := 1
	for _, r := range line {
		if units >= int(p.Character) {
			break
		}
		units += utf16.RuneLen(r)
		col++
	}
	return compiler.Position{Line: int(p.Line) + 1, Column: col}
}

// toRange converts a span. Spans without a usable end cover one character.
func (d *document) toRange(s compiler.Span) protocol.Range {
	start := d.toProtocol(s.Start)
	end := d.toProtocol(s.End)
	if !s.End.IsValid() || before(s.End, s.Start) || s.End == s.Start {
		end = start
		end.Character++
	}
	return protocol.Range{Start: start, End: end}
}

func before(a, b compiler.Position) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Column < b.Column
}

func contains(s compiler.Span, p compiler.Position) bool {
	return !before(p, s.Start) && before(p, s.End)
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func (d *document) protocolDiagnostics() []protocol.Diagnostic {
	items := d.diags.Items()
	out := make([]protocol.Diagnostic, 0, len(items))
	severity := protocol.DiagnosticSeverityError
	source := lspName
	for _, item := range items {
		code := "type"
		if item.Kind == compiler.KindSyntax {
			code = "syntax"
		}
		out = append(out, protocol.Diagnostic{
			Range:    d.toRange(item.Span),
			Severity: &severity,
			Code:     &protocol.IntegerOrString{Value: code},
			Source:   &source,
			Message:  item.Message,
		})
	}
	return out
}

// ---------------------------------------------------------------------------
// Identifier lookup
// ---------------------------------------------------------------------------

// nameAt returns the declaration, assignment or reference whose name covers
// pos, along with the name's span.
func (d *document) nameAt(pos compiler.Position) (compiler.Node, compiler.Span, bool) {
	if d.prog == nil {
		return nil, compiler.Span{}, false
	}
	for _, stmt := range d.prog.Statements {
		if n, span, ok := nameInStmt(stmt, pos); ok {
			return n, span, true
		}
	}
	return nil, compiler.Span{}, false
}

func nameInStmt(stmt compiler.Stmt, pos compiler.Position) (compiler.Node, compiler.Span, bool) {
	switch s := stmt.(type) {
	case *compiler.LetStmt:
		if contains(s.NameSpan, pos) {
			return s, s.NameSpan, true
		}
		return nameInExpr(s.Value, pos)
	case *compiler.AssignStmt:
		if contains(s.NameSpan, pos) {
			return s, s.NameSpan, true
		}
		return nameInExpr(s.Value, pos)
	case *compiler.PrintStmt:
		return nameInExpr(s.Value, pos)
	case *compiler.BlockStmt:
		for _, inner := range s.Statements {
			if n, span, ok := nameInStmt(inner, pos); ok {
				return n, span, true
			}
		}
	case *compiler.IfStmt:
		if n, span, ok := nameInExpr(s.Cond, pos); ok {
			return n, span, true
		}
		if n, span, ok := nameInStmt(s.Then, pos); ok {
			return n, span, true
		}
		if s.Else != nil {
			return nameInStmt(s.Else, pos)
		}
	}
	return nil, compiler.Span{}, false
}

func nameInExpr(expr compiler.Expr, pos compiler.Position) (compiler.Node, compiler.Span, bool) {
	switch e := expr.(type) {
	case *compiler.VarRef:
		if contains(e.SpanVal, pos) {
			return e, e.SpanVal, true
		}
	case *compiler.UnaryExpr:
		return nameInExpr(e.Operand, pos)
	case *compiler.BinaryExpr:
		if n, span, ok := nameInExpr(e.Left, pos); ok {
			return n, span, true
		}
		return nameInExpr(e.Right, pos)
	}
	return nil, compiler.Span{}, false
}

// symbolAt resolves the name under pos through the checker's annotations.
func (d *document) symbolAt(pos compiler.Position) (compiler.Symbol, compiler.Span, bool) {
	if d.analysis == nil {
		return compiler.Symbol{}, compiler.Span{}, false
	}
	n, span, ok := d.nameAt(pos)
	if !ok {
		return compiler.Symbol{}, compiler.Span{}, false
	}
	sym, ok := d.analysis.Symbols[n]
	return sym, span, ok
}

// declaration finds the let statement that introduced sym.
func (d *document) declaration(sym compiler.Symbol) (*compiler.LetStmt, bool) {
	var found *compiler.LetStmt
	var walk func(stmts []compiler.Stmt)
	walk = func(stmts []compiler.Stmt) {
		for _, stmt := range stmts {
			if found != nil {
				return
			}
			switch s := stmt.(type) {
			case *compiler.LetStmt:
				if bound, ok := d.analysis.Symbols[s]; ok && bound.Slot == sym.Slot {
					found = s
				}
			case *compiler.BlockStmt:
				walk(s.Statements)
			case *compiler.IfStmt:
				walk(s.Then.Statements)
				if s.Else != nil {
					walk(s.Else.Statements)
				}
			}
		}
	}
	if d.analysis != nil {
		walk(d.prog.Statements)
	}
	return found, found != nil
}

// ---------------------------------------------------------------------------
// Text extraction helpers
// ---------------------------------------------------------------------------

func isIdentByte(ch byte) bool {
	return ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9'
}

// byteColumn converts an LSP character offset to a byte offset in line.
func byteColumn(line string, character protocol.UInteger) int {
	units := 0
	for i, r := range line {
		if units >= int(character) {
			return i
		}
		units += utf16.RuneLen(r)
	}
	return len(line)
}

// extractPrefix returns the identifier fragment before the cursor for
// completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := byteColumn(line, pos.Character)

	start := col
	for start > 0 && isIdentByte(line[start-1]) {
		start--
	}
	return line[start:col]
}
