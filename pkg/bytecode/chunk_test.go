package bytecode

import (
	"bytes"
	"errors"
	"testing"
)

func TestNewChunk(t *testing.T) {
	c := NewChunk()

	if c.Code == nil {
		t.Error("Code is nil")
	}
	if c.Constants == nil {
		t.Error("Constants is nil")
	}
	if c.Err() != nil {
		t.Errorf("Err() = %v, want nil", c.Err())
	}
}

func TestChunkAddConstant(t *testing.T) {
	c := NewChunk()

	if idx := c.AddStringConstant("hello"); idx != 0 {
		t.Errorf("First constant index = %d, want 0", idx)
	}
	if idx := c.AddIntConstant(100000); idx != 1 {
		t.Errorf("Second constant index = %d, want 1", idx)
	}
	// Duplicates return the existing index
	if idx := c.AddStringConstant("hello"); idx != 0 {
		t.Errorf("Duplicate string index = %d, want 0", idx)
	}
	if idx := c.AddIntConstant(100000); idx != 1 {
		t.Errorf("Duplicate int index = %d, want 1", idx)
	}
	// Same textual value, different kind
	if idx := c.AddStringConstant("100000"); idx != 2 {
		t.Errorf("String \"100000\" index = %d, want 2", idx)
	}

	if c.ConstantCount() != 3 {
		t.Errorf("ConstantCount() = %d, want 3", c.ConstantCount())
	}
	if c.Constants[1].Kind != ConstInt || c.Constants[1].Int != 100000 {
		t.Errorf("Constants[1] = %+v, want int 100000", c.Constants[1])
	}
}

func TestChunkEmit(t *testing.T) {
	c := NewChunk()

	c.Emit(OpIConst1)
	c.EmitWithOperand(OpBIPush, 0xF6) // -10
	off := c.EmitUint16(OpILoad, 0x0102)
	if off != 3 {
		t.Errorf("EmitUint16 offset = %d, want 3", off)
	}

	want := []byte{byte(OpIConst1), byte(OpBIPush), 0xF6, byte(OpILoad), 0x01, 0x02}
	if !bytes.Equal(c.Code, want) {
		t.Errorf("Code = % X, want % X", c.Code, want)
	}
	if c.CurrentOffset() != len(want) {
		t.Errorf("CurrentOffset() = %d, want %d", c.CurrentOffset(), len(want))
	}
}

func TestChunkForwardLabel(t *testing.T) {
	c := NewChunk()
	end := c.NewLabel()

	c.EmitJump(OpGoto, end) // 0000
	c.Emit(OpNop)           // 0003
	c.Emit(OpNop)           // 0004
	c.Bind(end)             // 0005
	c.Emit(OpReturn)

	// Offset is relative to the end of the jump (0003): 5 - 3 = 2
	if c.Code[1] != 0x00 || c.Code[2] != 0x02 {
		t.Errorf("jump operand = % X, want 00 02", c.Code[1:3])
	}
	if !end.Bound() || end.Offset() != 5 {
		t.Errorf("label offset = %d, want 5", end.Offset())
	}
	if c.UnboundLabels() != 0 {
		t.Errorf("UnboundLabels() = %d, want 0", c.UnboundLabels())
	}
}

func TestChunkBackwardLabel(t *testing.T) {
	c := NewChunk()
	top := c.NewLabel()
	c.Bind(top)
	c.Emit(OpNop)
	c.EmitJump(OpGoto, top) // at 0001, ends at 0004, target 0

	if got := int16(uint16(c.Code[2])<<8 | uint16(c.Code[3])); got != -4 {
		t.Errorf("backward offset = %d, want -4", got)
	}
}

func TestChunkLabelReboundRecordsError(t *testing.T) {
	c := NewChunk()
	l := c.NewLabel()
	c.Bind(l)
	c.Bind(l)
	if !errors.Is(c.Err(), ErrLabelRebound) {
		t.Errorf("Err() = %v, want ErrLabelRebound", c.Err())
	}
}

func TestChunkFarJump(t *testing.T) {
	c := NewChunk()
	near := c.NewLabel()
	far := c.NewLabel()
	c.EmitJump(OpGoto, near)
	c.EmitJump(OpGoto, far)
	c.Bind(near)
	c.Code = append(c.Code, make([]byte, 40000)...)
	c.Bind(far)
	if c.Err() != nil {
		t.Errorf("Err() = %v, want nil", c.Err())
	}
	if c.FarJumps() != 1 {
		t.Errorf("FarJumps() = %d, want 1", c.FarJumps())
	}
}

func TestChunkUnboundLabels(t *testing.T) {
	c := NewChunk()
	c.NewLabel() // never referenced
	used := c.NewLabel()
	c.EmitJump(OpIfEq, used)
	if c.UnboundLabels() != 1 {
		t.Errorf("UnboundLabels() = %d, want 1", c.UnboundLabels())
	}
}

func TestChunkSourceMap(t *testing.T) {
	c := NewChunk()
	c.AddSourceLocation(0, 1, 1)
	c.Emit(OpIConst1)
	c.AddSourceLocation(1, 2, 5)
	c.AddSourceLocation(1, 2, 7) // replaces the previous entry
	c.Emit(OpIConst2)
	c.Emit(OpReturn)

	if len(c.SourceMap) != 2 {
		t.Fatalf("len(SourceMap) = %d, want 2", len(c.SourceMap))
	}
	line, col := lookupSourceLocation(c.SourceMap, 2)
	if line != 2 || col != 7 {
		t.Errorf("location(2) = %d:%d, want 2:7", line, col)
	}
	line, col = lookupSourceLocation(nil, 2)
	if line != 0 || col != 0 {
		t.Errorf("location with empty map = %d:%d, want 0:0", line, col)
	}
}

func TestSlotKind(t *testing.T) {
	tests := []struct {
		k    SlotKind
		name string
		ref  bool
	}{
		{SlotArgs, "args", true},
		{SlotInt, "int", false},
		{SlotBool, "bool", false},
		{SlotString, "string", true},
	}
	for _, tt := range tests {
		if tt.k.String() != tt.name {
			t.Errorf("SlotKind(%d).String() = %q, want %q", tt.k, tt.k.String(), tt.name)
		}
		if tt.k.IsReference() != tt.ref {
			t.Errorf("%s.IsReference() = %v, want %v", tt.k, tt.k.IsReference(), tt.ref)
		}
	}
}
