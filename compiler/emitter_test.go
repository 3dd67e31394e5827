package compiler

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/lxg-lang/lxg/pkg/bytecode"
)

func TestEmitPushInt(t *testing.T) {
	tests := []struct {
		value int32
		want  []byte
	}{
		{-1, []byte{byte(bytecode.OpIConstM1)}},
		{0, []byte{byte(bytecode.OpIConst0)}},
		{5, []byte{byte(bytecode.OpIConst5)}},
		{6, []byte{byte(bytecode.OpBIPush), 0x06}},
		{-2, []byte{byte(bytecode.OpBIPush), 0xFE}},
		{127, []byte{byte(bytecode.OpBIPush), 0x7F}},
		{-128, []byte{byte(bytecode.OpBIPush), 0x80}},
		{128, []byte{byte(bytecode.OpSIPush), 0x00, 0x80}},
		{-129, []byte{byte(bytecode.OpSIPush), 0xFF, 0x7F}},
		{32767, []byte{byte(bytecode.OpSIPush), 0x7F, 0xFF}},
		{-32768, []byte{byte(bytecode.OpSIPush), 0x80, 0x00}},
		{32768, []byte{byte(bytecode.OpLdc), 0x00, 0x00}},
		{-2147483648, []byte{byte(bytecode.OpLdc), 0x00, 0x00}},
	}

	for _, tc := range tests {
		chunk := bytecode.NewChunk()
		typ, err := NewCodeEmitter(chunk, nil).EmitExpression(&IntLiteral{Value: tc.value})
		if err != nil {
			t.Errorf("EmitExpression(%d): %v", tc.value, err)
			continue
		}
		if typ != TypeInt {
			t.Errorf("EmitExpression(%d) type = %s, want INT", tc.value, typ)
		}
		if !bytes.Equal(chunk.Code, tc.want) {
			t.Errorf("EmitExpression(%d) = % X, want % X", tc.value, chunk.Code, tc.want)
		}
		if tc.want[0] == byte(bytecode.OpLdc) {
			if len(chunk.Constants) != 1 || chunk.Constants[0].Int != tc.value {
				t.Errorf("constants for %d = %v", tc.value, chunk.Constants)
			}
		}
	}
}

func TestEmitStringAndBoolLiterals(t *testing.T) {
	chunk := bytecode.NewChunk()
	e := NewCodeEmitter(chunk, nil)

	for _, expr := range []Expr{&StringLiteral{Value: "a"}, &StringLiteral{Value: "a"}, &BoolLiteral{Value: true}, &BoolLiteral{}} {
		if _, err := e.EmitExpression(expr); err != nil {
			t.Fatalf("EmitExpression(%s): %v", DumpExpr(expr), err)
		}
	}
	want := []byte{
		byte(bytecode.OpLdc), 0x00, 0x00,
		byte(bytecode.OpLdc), 0x00, 0x00,
		byte(bytecode.OpIConst1),
		byte(bytecode.OpIConst0),
	}
	if !bytes.Equal(chunk.Code, want) {
		t.Errorf("code = % X, want % X", chunk.Code, want)
	}
	if len(chunk.Constants) != 1 {
		t.Errorf("len(Constants) = %d, want 1 after dedup", len(chunk.Constants))
	}
}

func opcodes(t *testing.T, code []byte) []bytecode.Opcode {
	t.Helper()
	insns, err := bytecode.Decode(code)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	ops := make([]bytecode.Opcode, len(insns))
	for i, in := range insns {
		ops[i] = in.Op
	}
	return ops
}

func TestEmitComparisonShape(t *testing.T) {
	chunk := bytecode.NewChunk()
	expr := mustParseExpr(t, "1 < 2")
	typ, err := NewCodeEmitter(chunk, nil).EmitExpression(expr)
	if err != nil {
		t.Fatal(err)
	}
	if typ != TypeBoolean {
		t.Errorf("type = %s, want BOOLEAN", typ)
	}

	want := []bytecode.Opcode{
		bytecode.OpIConst1, bytecode.OpIConst2,
		bytecode.OpIfICmpLt, bytecode.OpIConst0, bytecode.OpGoto, bytecode.OpIConst1,
	}
	if got := opcodes(t, chunk.Code); !slices.Equal(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}

	insns, _ := bytecode.Decode(chunk.Code)
	// The compare jumps to the ICONST_1; the GOTO jumps past it.
	if insns[2].Target() != insns[5].Offset {
		t.Errorf("compare target = %04X, want %04X", insns[2].Target(), insns[5].Offset)
	}
	if insns[4].Target() != len(chunk.Code) {
		t.Errorf("goto target = %04X, want %04X", insns[4].Target(), len(chunk.Code))
	}
}

func TestEmitNot(t *testing.T) {
	chunk := bytecode.NewChunk()
	if _, err := NewCodeEmitter(chunk, nil).EmitExpression(mustParseExpr(t, "!true")); err != nil {
		t.Fatal(err)
	}
	want := []bytecode.Opcode{
		bytecode.OpIConst1,
		bytecode.OpIfEq, bytecode.OpIConst0, bytecode.OpGoto, bytecode.OpIConst1,
	}
	if got := opcodes(t, chunk.Code); !slices.Equal(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}
}

func TestEmitIfLayout(t *testing.T) {
	tests := []struct {
		src  string
		want []byte
	}{
		{
			"if (true) { print 1; }",
			[]byte{
				0x12,             // ICONST_1
				0x81, 0x00, 0x07, // IFEQ -> 000B
				0x90,             // GETOUT
				0x12,             // ICONST_1
				0x91, 0x00,       // PRINT int
				0x80, 0x00, 0x00, // GOTO -> 000B
			},
		},
		{
			"if (false) { print 1; } else { print 2; }",
			[]byte{
				0x11,             // ICONST_0
				0x81, 0x00, 0x07, // IFEQ -> 000B
				0x90,
				0x12,
				0x91, 0x00,
				0x80, 0x00, 0x04, // GOTO -> 000F
				0x90,
				0x13,
				0x91, 0x00,
			},
		},
	}

	for _, tc := range tests {
		chunk := bytecode.NewChunk()
		e := NewCodeEmitter(chunk, nil)
		for _, stmt := range mustParse(t, tc.src).Statements {
			if err := e.EmitStatement(stmt); err != nil {
				t.Fatalf("EmitStatement: %v", err)
			}
		}
		if !bytes.Equal(chunk.Code, tc.want) {
			t.Errorf("%s:\n got % X\nwant % X", tc.src, chunk.Code, tc.want)
		}
		if chunk.UnboundLabels() != 0 || chunk.Err() != nil {
			t.Errorf("%s: unbound=%d err=%v", tc.src, chunk.UnboundLabels(), chunk.Err())
		}
	}
}

func TestEmitLocals(t *testing.T) {
	chunk := bytecode.NewChunk()
	e := NewCodeEmitter(chunk, nil)
	for _, stmt := range mustParse(t, `let n = 1; let s = "x"; let b = true; n = 2; s = "y";`).Statements {
		if err := e.EmitStatement(stmt); err != nil {
			t.Fatalf("EmitStatement: %v", err)
		}
	}

	want := []bytecode.LocalVar{
		{Slot: 1, Name: "n", Kind: bytecode.SlotInt},
		{Slot: 2, Name: "s", Kind: bytecode.SlotString},
		{Slot: 3, Name: "b", Kind: bytecode.SlotBool},
	}
	if len(chunk.Locals) != len(want) {
		t.Fatalf("Locals = %v, want %v", chunk.Locals, want)
	}
	for i := range want {
		if chunk.Locals[i] != want[i] {
			t.Errorf("Locals[%d] = %+v, want %+v", i, chunk.Locals[i], want[i])
		}
	}

	ops := opcodes(t, chunk.Code)
	wantOps := []bytecode.Opcode{
		bytecode.OpIConst1, bytecode.OpIStore,
		bytecode.OpLdc, bytecode.OpAStore,
		bytecode.OpIConst1, bytecode.OpIStore,
		bytecode.OpIConst2, bytecode.OpIStore,
		bytecode.OpLdc, bytecode.OpAStore,
	}
	if !slices.Equal(ops, wantOps) {
		t.Errorf("ops = %v, want %v", ops, wantOps)
	}
}

func TestEmitSourceMap(t *testing.T) {
	chunk := bytecode.NewChunk()
	e := NewCodeEmitter(chunk, nil)
	for _, stmt := range mustParse(t, "let a = 6;\nprint a / 2;").Statements {
		if err := e.EmitStatement(stmt); err != nil {
			t.Fatal(err)
		}
	}
	want := []bytecode.SourceLocation{
		{BytecodeOffset: 0, Line: 1, Column: 1},
		{BytecodeOffset: 5, Line: 2, Column: 1},
		{BytecodeOffset: 10, Line: 2, Column: 7}, // IDIV
	}
	if len(chunk.SourceMap) != len(want) {
		t.Fatalf("SourceMap = %v, want %v", chunk.SourceMap, want)
	}
	for i := range want {
		if chunk.SourceMap[i] != want[i] {
			t.Errorf("SourceMap[%d] = %+v, want %+v", i, chunk.SourceMap[i], want[i])
		}
	}
}

func TestEmitInternalErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown variable", "print y;", "internal compiler error: unknown variable: y at 1:7"},
		{"assign mismatch", `let x = 1; x = "s";`, "internal compiler error: assignment of STRING to INT variable 'x' at 1:12"},
		{"negate boolean", "let v = 1; print -true;", "internal compiler error: unary - on BOOLEAN at 1:18"},
		{"duplicate let", "let x = 1; let x = 2;", "internal compiler error: variable already declared: x at 1:12"},
	}

	for _, tc := range tests {
		e := NewCodeEmitter(bytecode.NewChunk(), nil)
		var err error
		for _, stmt := range mustParse(t, tc.src).Statements {
			if err = e.EmitStatement(stmt); err != nil {
				break
			}
		}
		var ie *InternalError
		if !errors.As(err, &ie) {
			t.Errorf("%s: err = %v, want *InternalError", tc.name, err)
			continue
		}
		if err.Error() != tc.want {
			t.Errorf("%s: err = %q, want %q", tc.name, err.Error(), tc.want)
		}
	}
}

func TestEmitExpressionUnknownVariable(t *testing.T) {
	_, err := NewCodeEmitter(bytecode.NewChunk(), nil).EmitExpression(&VarRef{Name: "ghost"})
	var ie *InternalError
	if !errors.As(err, &ie) {
		t.Fatalf("err = %v, want *InternalError", err)
	}
	if ie.Pos.IsValid() {
		t.Errorf("Pos = %v, want none for a hand-built node", ie.Pos)
	}
	if ie.Error() != "internal compiler error: unknown variable: ghost" {
		t.Errorf("Error() = %q", ie.Error())
	}
}

func TestEmitNilNodes(t *testing.T) {
	e := NewCodeEmitter(bytecode.NewChunk(), nil)
	if err := e.EmitStatement(nil); err == nil || !strings.Contains(err.Error(), "nil statement") {
		t.Errorf("EmitStatement(nil) = %v", err)
	}
	if _, err := e.EmitExpression(nil); err == nil || !strings.Contains(err.Error(), "unsupported expression") {
		t.Errorf("EmitExpression(nil) = %v", err)
	}
}

func TestEmitCrossCheck(t *testing.T) {
	prog := mustParse(t, "let a = 1; print a;")
	analysis, diags := Analyze(prog)
	if diags.HasErrors() {
		t.Fatal(diags.Errors())
	}

	// Agreeing analysis passes.
	e := NewCodeEmitter(bytecode.NewChunk(), analysis)
	for _, stmt := range prog.Statements {
		if err := e.EmitStatement(stmt); err != nil {
			t.Fatalf("EmitStatement with matching analysis: %v", err)
		}
	}

	t.Run("type divergence", func(t *testing.T) {
		lit := &IntLiteral{Value: 3}
		a := newAnalysis()
		a.Types[lit] = TypeString
		_, err := NewCodeEmitter(bytecode.NewChunk(), a).EmitExpression(lit)
		if err == nil || !strings.Contains(err.Error(), "checker typed expression STRING, emitter INT") {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("slot divergence", func(t *testing.T) {
		let := prog.Statements[0].(*LetStmt)
		a := newAnalysis()
		a.Symbols[let] = Symbol{Name: "a", Slot: 7, Type: TypeInt}
		err := NewCodeEmitter(bytecode.NewChunk(), a).EmitStatement(let)
		if err == nil || !strings.Contains(err.Error(), "checker bound 'a' to slot 7 INT, emitter to slot 1 INT") {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("unresolved", func(t *testing.T) {
		err := NewCodeEmitter(bytecode.NewChunk(), newAnalysis()).EmitStatement(prog.Statements[0])
		if err == nil || !strings.Contains(err.Error(), "checker did not resolve 'a'") {
			t.Errorf("err = %v", err)
		}
	})
}

func mustParseExpr(t *testing.T, src string) Expr {
	t.Helper()
	p := NewParser(src, nil)
	expr := p.ParseExpression()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	return expr
}
