package compiler

import (
	"math"

	"github.com/lxg-lang/lxg/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// CodeEmitter: lowers checked statements to stack-machine instructions
// ---------------------------------------------------------------------------

// CodeEmitter writes instructions for an already type-checked program into
// a chunk. It keeps its own SymbolTable, populated in the same order as the
// checker's. Anything the checker should have ruled out is an
// *InternalError, not a diagnostic.
type CodeEmitter struct {
	chunk    *bytecode.Chunk
	symbols  *SymbolTable
	analysis *Analysis
}

// NewCodeEmitter creates an emitter writing into chunk. When analysis is
// non-nil every slot and type the emitter derives is compared with it.
func NewCodeEmitter(chunk *bytecode.Chunk, analysis *Analysis) *CodeEmitter {
	return &CodeEmitter{
		chunk:    chunk,
		symbols:  NewSymbolTable(),
		analysis: analysis,
	}
}

// Symbols returns the emitter's own symbol table.
func (e *CodeEmitter) Symbols() *SymbolTable {
	return e.symbols
}

// EmitStatement lowers one statement.
func (e *CodeEmitter) EmitStatement(stmt Stmt) (err error) {
	defer recoverFault(&err)
	e.emitStmt(stmt)
	return nil
}

// EmitExpression lowers one expression, leaving exactly one value on the
// operand stack, and returns its static type.
func (e *CodeEmitter) EmitExpression(expr Expr) (typ Type, err error) {
	defer recoverFault(&err)
	return e.emitExpr(expr), nil
}

func (e *CodeEmitter) mark(n Node) {
	pos := Pos(n)
	if pos.IsValid() {
		e.chunk.AddSourceLocation(uint32(e.chunk.CurrentOffset()), uint32(pos.Line), uint16(min(pos.Column, math.MaxUint16)))
	}
}

func (e *CodeEmitter) emitStmt(stmt Stmt) {
	if stmt == nil {
		fault(nil, "nil statement")
	}
	e.mark(stmt)

	switch s := stmt.(type) {
	case *LetStmt:
		typ := e.emitExpr(s.Value)
		sym, err := e.symbols.Declare(s.Name, typ)
		if err != nil {
			fault(s, "%v", err)
		}
		e.crossCheck(s, sym)
		e.chunk.DeclareLocal(uint16(sym.Slot), sym.Name, slotKind(s, sym.Type))
		e.store(s, sym)

	case *AssignStmt:
		sym, err := e.symbols.Resolve(s.Name)
		if err != nil {
			fault(s, "%v", err)
		}
		e.crossCheck(s, sym)
		typ := e.emitExpr(s.Value)
		if typ != sym.Type {
			fault(s, "assignment of %s to %s variable '%s'", typ, sym.Type, s.Name)
		}
		e.store(s, sym)

	case *PrintStmt:
		e.chunk.Emit(bytecode.OpGetOut)
		typ := e.emitExpr(s.Value)
		var overload bytecode.PrintOverload
		switch typ {
		case TypeInt:
			overload = bytecode.PrintInt
		case TypeString:
			overload = bytecode.PrintString
		case TypeBoolean:
			overload = bytecode.PrintBool
		default:
			fault(s, "cannot print %s", typ)
		}
		e.chunk.EmitWithOperand(bytecode.OpPrint, byte(overload))

	case *BlockStmt:
		for _, inner := range s.Statements {
			e.emitStmt(inner)
		}

	case *IfStmt:
		if typ := e.emitExpr(s.Cond); typ != TypeBoolean {
			fault(s.Cond, "if condition of type %s", typ)
		}
		elseLabel := e.chunk.NewLabel()
		endLabel := e.chunk.NewLabel()
		e.chunk.EmitJump(bytecode.OpIfEq, elseLabel)
		e.emitStmt(s.Then)
		e.chunk.EmitJump(bytecode.OpGoto, endLabel)
		e.chunk.Bind(elseLabel)
		if s.Else != nil {
			e.emitStmt(s.Else)
		}
		e.chunk.Bind(endLabel)

	default:
		fault(stmt, "unsupported statement %T", stmt)
	}
}

func (e *CodeEmitter) emitExpr(expr Expr) Type {
	typ := e.emitExprType(expr)
	if e.analysis != nil {
		if want, ok := e.analysis.Types[expr]; ok && want != typ {
			fault(expr, "checker typed expression %s, emitter %s", want, typ)
		}
	}
	return typ
}

func (e *CodeEmitter) emitExprType(expr Expr) Type {
	switch x := expr.(type) {
	case *IntLiteral:
		e.pushInt(x.Value)
		return TypeInt

	case *StringLiteral:
		e.chunk.EmitLdcString(x.Value)
		return TypeString

	case *BoolLiteral:
		if x.Value {
			e.chunk.Emit(bytecode.OpIConst1)
		} else {
			e.chunk.Emit(bytecode.OpIConst0)
		}
		return TypeBoolean

	case *VarRef:
		sym, err := e.symbols.Resolve(x.Name)
		if err != nil {
			fault(x, "%v", err)
		}
		e.crossCheck(x, sym)
		e.load(x, sym)
		return sym.Type

	case *UnaryExpr:
		operand := e.emitExpr(x.Operand)
		switch x.Op {
		case UnaryPlus:
			if operand != TypeInt {
				fault(x, "unary + on %s", operand)
			}
			return TypeInt
		case UnaryNeg:
			if operand != TypeInt {
				fault(x, "unary - on %s", operand)
			}
			e.chunk.Emit(bytecode.OpINeg)
			return TypeInt
		case UnaryNot:
			if operand != TypeBoolean {
				fault(x, "unary ! on %s", operand)
			}
			// No negate instruction: materialize 1 when the operand is 0.
			e.emitBoolean(bytecode.OpIfEq)
			return TypeBoolean
		}
		fault(x, "unsupported unary operator %s", x.Op)

	case *BinaryExpr:
		e.emitExpr(x.Left)
		e.emitExpr(x.Right)
		switch x.Op {
		case BinaryAdd:
			e.chunk.Emit(bytecode.OpIAdd)
		case BinarySub:
			e.chunk.Emit(bytecode.OpISub)
		case BinaryMul:
			e.chunk.Emit(bytecode.OpIMul)
		case BinaryDiv:
			e.mark(x)
			e.chunk.Emit(bytecode.OpIDiv)
		default:
			op, ok := comparisonJumps[x.Op]
			if !ok {
				fault(x, "unsupported binary operator %s", x.Op)
			}
			e.emitBoolean(op)
			return TypeBoolean
		}
		return TypeInt
	}

	fault(expr, "unsupported expression %T", expr)
	return TypeVoid
}

var comparisonJumps = map[BinaryOp]bytecode.Opcode{
	BinaryEq: bytecode.OpIfICmpEq,
	BinaryNe: bytecode.OpIfICmpNe,
	BinaryLt: bytecode.OpIfICmpLt,
	BinaryGt: bytecode.OpIfICmpGt,
	BinaryLe: bytecode.OpIfICmpLe,
	BinaryGe: bytecode.OpIfICmpGe,
}

// emitBoolean turns the outcome of the conditional jump op into 0 or 1 on
// the stack:
//
//	op    L_true
//	ICONST_0
//	GOTO  L_end
//	L_true: ICONST_1
//	L_end:
func (e *CodeEmitter) emitBoolean(op bytecode.Opcode) {
	trueLabel := e.chunk.NewLabel()
	endLabel := e.chunk.NewLabel()
	e.chunk.EmitJump(op, trueLabel)
	e.chunk.Emit(bytecode.OpIConst0)
	e.chunk.EmitJump(bytecode.OpGoto, endLabel)
	e.chunk.Bind(trueLabel)
	e.chunk.Emit(bytecode.OpIConst1)
	e.chunk.Bind(endLabel)
}

// pushInt picks the shortest encoding for v.
func (e *CodeEmitter) pushInt(v int32) {
	switch {
	case v >= -1 && v <= 5:
		e.chunk.Emit(bytecode.Opcode(int32(bytecode.OpIConst0) + v))
	case v >= math.MinInt8 && v <= math.MaxInt8:
		e.chunk.EmitWithOperand(bytecode.OpBIPush, byte(int8(v)))
	case v >= math.MinInt16 && v <= math.MaxInt16:
		e.chunk.EmitUint16(bytecode.OpSIPush, uint16(int16(v)))
	default:
		e.chunk.EmitLdcInt(v)
	}
}

func (e *CodeEmitter) load(n Node, sym Symbol) {
	switch sym.Type {
	case TypeInt, TypeBoolean:
		e.chunk.EmitUint16(bytecode.OpILoad, uint16(sym.Slot))
	case TypeString:
		e.chunk.EmitUint16(bytecode.OpALoad, uint16(sym.Slot))
	default:
		fault(n, "load of %s variable '%s'", sym.Type, sym.Name)
	}
}

func (e *CodeEmitter) store(n Node, sym Symbol) {
	switch sym.Type {
	case TypeInt, TypeBoolean:
		e.chunk.EmitUint16(bytecode.OpIStore, uint16(sym.Slot))
	case TypeString:
		e.chunk.EmitUint16(bytecode.OpAStore, uint16(sym.Slot))
	default:
		fault(n, "store to %s variable '%s'", sym.Type, sym.Name)
	}
}

func slotKind(n Node, t Type) bytecode.SlotKind {
	switch t {
	case TypeInt:
		return bytecode.SlotInt
	case TypeBoolean:
		return bytecode.SlotBool
	case TypeString:
		return bytecode.SlotString
	}
	fault(n, "no slot kind for %s", t)
	return 0
}

// crossCheck compares the emitter's binding for n with the checker's.
func (e *CodeEmitter) crossCheck(n Node, sym Symbol) {
	if e.analysis == nil {
		return
	}
	want, ok := e.analysis.Symbols[n]
	if !ok {
		fault(n, "checker did not resolve '%s'", sym.Name)
	}
	if want.Slot != sym.Slot || want.Type != sym.Type {
		fault(n, "checker bound '%s' to slot %d %s, emitter to slot %d %s",
			sym.Name, want.Slot, want.Type, sym.Slot, sym.Type)
	}
}
