package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// Dump renders prog as indented text, one statement per line. Nested
// statements are indented by two spaces.
func Dump(prog *Program) string {
	var sb strings.Builder
	for _, stmt := range prog.Statements {
		dumpStmt(&sb, stmt, 0)
	}
	return sb.String()
}

func dumpStmt(sb *strings.Builder, stmt Stmt, indent int) {
	pad := strings.Repeat(" ", indent)
	switch s := stmt.(type) {
	case *LetStmt:
		fmt.Fprintf(sb, "%sLet %s = %s\n", pad, s.Name, DumpExpr(s.Value))
	case *AssignStmt:
		fmt.Fprintf(sb, "%sAssign %s = %s\n", pad, s.Name, DumpExpr(s.Value))
	case *PrintStmt:
		fmt.Fprintf(sb, "%sPrint %s\n", pad, DumpExpr(s.Value))
	case *BlockStmt:
		fmt.Fprintf(sb, "%sBlock\n", pad)
		for _, inner := range s.Statements {
			dumpStmt(sb, inner, indent+2)
		}
	case *IfStmt:
		fmt.Fprintf(sb, "%sIf cond=%s\n", pad, DumpExpr(s.Cond))
		fmt.Fprintf(sb, "%sThen:\n", pad)
		for _, inner := range s.Then.Statements {
			dumpStmt(sb, inner, indent+2)
		}
		if s.Else != nil {
			fmt.Fprintf(sb, "%sElse:\n", pad)
			for _, inner := range s.Else.Statements {
				dumpStmt(sb, inner, indent+2)
			}
		}
	default:
		fmt.Fprintf(sb, "%sUnknownStmt %T\n", pad, stmt)
	}
}

// DumpExpr renders an expression fully parenthesized.
func DumpExpr(expr Expr) string {
	switch e := expr.(type) {
	case *IntLiteral:
		return strconv.FormatInt(int64(e.Value), 10)
	case *StringLiteral:
		return strconv.Quote(e.Value)
	case *BoolLiteral:
		return strconv.FormatBool(e.Value)
	case *VarRef:
		return e.Name
	case *UnaryExpr:
		return fmt.Sprintf("(%s %s)", e.Op, DumpExpr(e.Operand))
	case *BinaryExpr:
		return fmt.Sprintf("(%s %s %s)", DumpExpr(e.Left), e.Op, DumpExpr(e.Right))
	default:
		return "<UnknownExpr>"
	}
}

// DumpTokens renders one token per line with its position.
func DumpTokens(tokens []Token) string {
	var sb strings.Builder
	for _, tok := range tokens {
		fmt.Fprintf(&sb, "%-6s %s\n", tok.Pos, tok)
	}
	return sb.String()
}
