package compiler

import "fmt"

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for lxg
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// IsValid reports whether the position carries a line.
func (p Position) IsValid() bool {
	return p.Line > 0
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// Pos returns the start position of n.
func Pos(n Node) Position {
	return n.Span().Start
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// IntLiteral represents an integer literal. The lexer guarantees the
// value fits a signed 32-bit integer.
type IntLiteral struct {
	SpanVal Span
	Value   int32
}

func (n *IntLiteral) Span() Span { return n.SpanVal }
func (n *IntLiteral) node()      {}
func (n *IntLiteral) expr()      {}

// StringLiteral represents a string literal with escapes already decoded.
type StringLiteral struct {
	SpanVal Span
	Value   string
}

func (n *StringLiteral) Span() Span { return n.SpanVal }
func (n *StringLiteral) node()      {}
func (n *StringLiteral) expr()      {}

// BoolLiteral represents true or false.
type BoolLiteral struct {
	SpanVal Span
	Value   bool
}

func (n *BoolLiteral) Span() Span { return n.SpanVal }
func (n *BoolLiteral) node()      {}
func (n *BoolLiteral) expr()      {}

// VarRef represents a variable reference.
type VarRef struct {
	SpanVal Span
	Name    string
}

func (n *VarRef) Span() Span { return n.SpanVal }
func (n *VarRef) node()      {}
func (n *VarRef) expr()      {}

// UnaryOp is a prefix operator.
type UnaryOp int

const (
	UnaryPlus UnaryOp = iota // +x
	UnaryNeg                 // -x
	UnaryNot                 // !x
)

func (op UnaryOp) String() string {
	switch op {
	case UnaryPlus:
		return "+"
	case UnaryNeg:
		return "-"
	case UnaryNot:
		return "!"
	default:
		return fmt.Sprintf("UnaryOp(%d)", int(op))
	}
}

// UnaryExpr represents a prefix operation.
type UnaryExpr struct {
	SpanVal Span
	Op      UnaryOp
	Operand Expr
}

func (n *UnaryExpr) Span() Span { return n.SpanVal }
func (n *UnaryExpr) node()      {}
func (n *UnaryExpr) expr()      {}

// BinaryOp is an infix operator.
type BinaryOp int

const (
	BinaryAdd BinaryOp = iota
	BinarySub
	BinaryMul
	BinaryDiv
	BinaryEq
	BinaryNe
	BinaryLt
	BinaryGt
	BinaryLe
	BinaryGe
)

var binaryOpNames = [...]string{
	BinaryAdd: "+",
	BinarySub: "-",
	BinaryMul: "*",
	BinaryDiv: "/",
	BinaryEq:  "==",
	BinaryNe:  "!=",
	BinaryLt:  "<",
	BinaryGt:  ">",
	BinaryLe:  "<=",
	BinaryGe:  ">=",
}

func (op BinaryOp) String() string {
	if op >= 0 && int(op) < len(binaryOpNames) {
		return binaryOpNames[op]
	}
	return fmt.Sprintf("BinaryOp(%d)", int(op))
}

// IsArithmetic reports whether op is one of + - * /.
func (op BinaryOp) IsArithmetic() bool {
	return op >= BinaryAdd && op <= BinaryDiv
}

// IsComparison reports whether op is one of == != < > <= >=.
func (op BinaryOp) IsComparison() bool {
	return op >= BinaryEq && op <= BinaryGe
}

// BinaryExpr represents an infix operation. Its span starts at Left.
type BinaryExpr struct {
	SpanVal Span
	Op      BinaryOp
	Left    Expr
	Right   Expr
}

func (n *BinaryExpr) Span() Span { return n.SpanVal }
func (n *BinaryExpr) node()      {}
func (n *BinaryExpr) expr()      {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// LetStmt declares a new variable: let name = value;
type LetStmt struct {
	SpanVal  Span
	Name     string
	NameSpan Span
	Value    Expr
}

func (n *LetStmt) Span() Span { return n.SpanVal }
func (n *LetStmt) node()      {}
func (n *LetStmt) stmt()      {}

// AssignStmt stores into an existing variable: name = value;
type AssignStmt struct {
	SpanVal  Span
	Name     string
	NameSpan Span
	Value    Expr
}

func (n *AssignStmt) Span() Span { return n.SpanVal }
func (n *AssignStmt) node()      {}
func (n *AssignStmt) stmt()      {}

// PrintStmt writes a value followed by a newline.
type PrintStmt struct {
	SpanVal Span
	Value   Expr
}

func (n *PrintStmt) Span() Span { return n.SpanVal }
func (n *PrintStmt) node()      {}
func (n *PrintStmt) stmt()      {}

// BlockStmt groups statements. It does not introduce a scope.
type BlockStmt struct {
	SpanVal    Span
	Statements []Stmt
}

func (n *BlockStmt) Span() Span { return n.SpanVal }
func (n *BlockStmt) node()      {}
func (n *BlockStmt) stmt()      {}

// IfStmt is a conditional. Else is nil when absent.
type IfStmt struct {
	SpanVal Span
	Cond    Expr
	Then    *BlockStmt
	Else    *BlockStmt
}

func (n *IfStmt) Span() Span { return n.SpanVal }
func (n *IfStmt) node()      {}
func (n *IfStmt) stmt()      {}

// ---------------------------------------------------------------------------
// Top level
// ---------------------------------------------------------------------------

// Program is the root node: the statements of one compilation unit.
type Program struct {
	SpanVal    Span
	Statements []Stmt
}

func (n *Program) Span() Span { return n.SpanVal }
func (n *Program) node()      {}
