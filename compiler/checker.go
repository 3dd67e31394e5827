package compiler

// ---------------------------------------------------------------------------
// TypeChecker: static type checking with batched diagnostics
// ---------------------------------------------------------------------------

// Analysis is what the checker learned about a program: the symbol each
// declaration and reference resolved to, and the type of every expression.
// The emitter uses it to cross-check its own, independently built table.
type Analysis struct {
	// Symbols is keyed by *LetStmt, *AssignStmt and *VarRef.
	Symbols map[Node]Symbol
	// Types holds the inferred type of every expression visited.
	Types map[Expr]Type
}

func newAnalysis() *Analysis {
	return &Analysis{
		Symbols: make(map[Node]Symbol),
		Types:   make(map[Expr]Type),
	}
}

// TypeChecker validates a program. User errors never stop it; each
// violation becomes a diagnostic and checking continues, so one run
// reports every error.
type TypeChecker struct {
	symbols  *SymbolTable
	diags    *Diagnostics
	analysis *Analysis
}

// NewTypeChecker creates a checker that appends to diags. A nil diags gets
// a fresh sink.
func NewTypeChecker(diags *Diagnostics) *TypeChecker {
	if diags == nil {
		diags = NewDiagnostics()
	}
	return &TypeChecker{
		symbols:  NewSymbolTable(),
		diags:    diags,
		analysis: newAnalysis(),
	}
}

// Check checks every statement of prog and returns the diagnostics sink.
func (c *TypeChecker) Check(prog *Program) *Diagnostics {
	for _, stmt := range prog.Statements {
		c.checkStmt(stmt)
	}
	return c.diags
}

// Analysis returns the annotations recorded so far.
func (c *TypeChecker) Analysis() *Analysis {
	return c.analysis
}

// Symbols returns the checker's symbol table.
func (c *TypeChecker) Symbols() *SymbolTable {
	return c.symbols
}

// Check type-checks prog with fresh component instances.
func Check(prog *Program) *Diagnostics {
	return NewTypeChecker(nil).Check(prog)
}

// Analyze type-checks prog and also returns its annotations.
func Analyze(prog *Program) (*Analysis, *Diagnostics) {
	c := NewTypeChecker(nil)
	diags := c.Check(prog)
	return c.analysis, diags
}

func (c *TypeChecker) checkStmt(stmt Stmt) {
	switch s := stmt.(type) {
	case *LetStmt:
		typ := c.infer(s.Value)
		sym, err := c.symbols.Declare(s.Name, typ)
		if err != nil {
			c.diags.ErrorAt(s.NameSpan, "%v", err)
			return
		}
		c.analysis.Symbols[s] = sym

	case *AssignStmt:
		sym, err := c.symbols.Resolve(s.Name)
		if err != nil {
			c.diags.ErrorAt(s.NameSpan, "%v", err)
			return
		}
		c.analysis.Symbols[s] = sym
		typ := c.infer(s.Value)
		if typ != sym.Type {
			c.diags.ErrorAt(s.Value.Span(), "type mismatch for variable '%s': expected %s, got %s",
				s.Name, sym.Type, typ)
		}

	case *PrintStmt:
		c.infer(s.Value)

	case *BlockStmt:
		for _, inner := range s.Statements {
			c.checkStmt(inner)
		}

	case *IfStmt:
		if typ := c.infer(s.Cond); typ != TypeBoolean {
			c.diags.ErrorAt(s.Cond.Span(), "if condition must be BOOLEAN, got %s", typ)
		}
		// Branches share the enclosing namespace.
		c.checkStmt(s.Then)
		if s.Else != nil {
			c.checkStmt(s.Else)
		}

	default:
		c.diags.ErrorAt(spanOf(stmt), "unsupported statement %T", stmt)
	}
}

// infer returns the static type of expr, recording diagnostics for any
// rule it breaks. Unresolvable expressions yield TypeVoid.
func (c *TypeChecker) infer(expr Expr) Type {
	typ := c.inferExpr(expr)
	if expr != nil {
		c.analysis.Types[expr] = typ
	}
	return typ
}

func (c *TypeChecker) inferExpr(expr Expr) Type {
	switch e := expr.(type) {
	case *IntLiteral:
		return TypeInt
	case *StringLiteral:
		return TypeString
	case *BoolLiteral:
		return TypeBoolean

	case *VarRef:
		sym, err := c.symbols.Resolve(e.Name)
		if err != nil {
			c.diags.ErrorAt(e.SpanVal, "%v", err)
			return TypeVoid
		}
		c.analysis.Symbols[e] = sym
		return sym.Type

	case *UnaryExpr:
		operand := c.infer(e.Operand)
		if e.Op == UnaryNot {
			if operand != TypeBoolean {
				c.diags.ErrorAt(e.SpanVal, "unary ! expects BOOLEAN, got %s", operand)
			}
			return TypeBoolean
		}
		if operand != TypeInt {
			c.diags.ErrorAt(e.SpanVal, "unary %s expects INT, got %s", e.Op, operand)
		}
		return TypeInt

	case *BinaryExpr:
		left := c.infer(e.Left)
		right := c.infer(e.Right)
		if e.Op.IsComparison() {
			if left != TypeInt || right != TypeInt {
				c.diags.ErrorAt(e.SpanVal, "comparison %s expects INT operands, got %s and %s", e.Op, left, right)
			}
			return TypeBoolean
		}
		if left != TypeInt || right != TypeInt {
			c.diags.ErrorAt(e.SpanVal, "arithmetic %s expects INT operands, got %s and %s", e.Op, left, right)
		}
		return TypeInt

	default:
		c.diags.ErrorAt(spanOf(expr), "unsupported expression %T", expr)
		return TypeVoid
	}
}

// spanOf tolerates nil nodes from hand-built trees.
func spanOf(n Node) Span {
	if n == nil {
		return Span{}
	}
	return n.Span()
}
