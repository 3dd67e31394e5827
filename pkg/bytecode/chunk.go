package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ConstantKind tags an entry of the constant pool.
type ConstantKind uint8

const (
	ConstInt    ConstantKind = 1
	ConstString ConstantKind = 2
)

// Constant is a constant pool entry referenced by OpLdc.
type Constant struct {
	Kind ConstantKind `cbor:"kind"`
	Int  int32        `cbor:"int,omitempty"`
	Str  string       `cbor:"str,omitempty"`
}

func (k Constant) String() string {
	if k.Kind == ConstString {
		return fmt.Sprintf("%q", k.Str)
	}
	return fmt.Sprintf("%d", k.Int)
}

// SlotKind describes what a local slot holds, so the host can
// zero-initialise it and the disassembler can describe it.
type SlotKind uint8

const (
	SlotArgs   SlotKind = 0 // entry argument vector (slot 0)
	SlotInt    SlotKind = 1
	SlotBool   SlotKind = 2
	SlotString SlotKind = 3
)

func (k SlotKind) String() string {
	switch k {
	case SlotArgs:
		return "args"
	case SlotInt:
		return "int"
	case SlotBool:
		return "bool"
	case SlotString:
		return "string"
	default:
		return fmt.Sprintf("SlotKind(%d)", uint8(k))
	}
}

// IsReference reports whether the slot is accessed with ALOAD/ASTORE.
func (k SlotKind) IsReference() bool {
	return k == SlotArgs || k == SlotString
}

// LocalVar records one entry of the local variable table.
type LocalVar struct {
	Slot uint16   `cbor:"slot"`
	Name string   `cbor:"name"`
	Kind SlotKind `cbor:"kind"`
}

// SourceLocation maps bytecode position to source location for debugging.
type SourceLocation struct {
	BytecodeOffset uint32 `cbor:"off"`
	Line           uint32 `cbor:"line"` // 1-based
	Column         uint16 `cbor:"col"`  // 1-based
}

var (
	// ErrLabelRebound is recorded when a label is bound twice.
	ErrLabelRebound = errors.New("label already bound")
	// ErrConstantPoolFull is recorded when the pool exceeds 65536 entries.
	ErrConstantPoolFull = errors.New("constant pool full")
)

// Label is a branch target that may be referenced before it is bound.
type Label struct {
	offset int   // -1 until bound
	refs   []int // operand offsets waiting for the label
}

// Bound reports whether the label has been placed.
func (l *Label) Bound() bool {
	return l.offset >= 0
}

// Offset returns the bound offset, or -1.
func (l *Label) Offset() int {
	return l.offset
}

// Chunk is an instruction stream under construction: code, constant pool,
// labels, locals and the source map. A Chunk is owned by exactly one
// compilation; Assemble turns it into an immutable Method.
type Chunk struct {
	Code      []byte
	Constants []Constant
	Locals    []LocalVar
	SourceMap []SourceLocation

	intConsts map[int32]uint16
	strConsts map[string]uint16
	labels    []*Label
	far       map[int]int // jump offset -> target, for jumps beyond 16 bits
	err       error
}

// NewChunk creates a new empty chunk.
func NewChunk() *Chunk {
	return &Chunk{
		Code:      make([]byte, 0, 64),
		Constants: make([]Constant, 0, 8),
		intConsts: make(map[int32]uint16),
		strConsts: make(map[string]uint16),
	}
}

// Err returns the first encoding error recorded while emitting.
func (c *Chunk) Err() error {
	return c.err
}

func (c *Chunk) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *Chunk) addConstant(k Constant) uint16 {
	if len(c.Constants) > math.MaxUint16 {
		c.fail(ErrConstantPoolFull)
		return 0
	}
	idx := uint16(len(c.Constants))
	c.Constants = append(c.Constants, k)
	return idx
}

// AddIntConstant adds an int constant to the pool and returns its index.
// If the constant already exists, returns the existing index.
func (c *Chunk) AddIntConstant(v int32) uint16 {
	if idx, ok := c.intConsts[v]; ok {
		return idx
	}
	idx := c.addConstant(Constant{Kind: ConstInt, Int: v})
	c.intConsts[v] = idx
	return idx
}

// AddStringConstant adds a string constant to the pool and returns its index.
// If the constant already exists, returns the existing index.
func (c *Chunk) AddStringConstant(s string) uint16 {
	if idx, ok := c.strConsts[s]; ok {
		return idx
	}
	idx := c.addConstant(Constant{Kind: ConstString, Str: s})
	c.strConsts[s] = idx
	return idx
}

// Emit appends a single-byte opcode to the code section.
func (c *Chunk) Emit(op Opcode) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))
	return offset
}

// EmitWithOperand appends an opcode with operand bytes.
func (c *Chunk) EmitWithOperand(op Opcode, operands ...byte) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))
	c.Code = append(c.Code, operands...)
	return offset
}

// EmitUint16 appends an opcode with a big-endian 16-bit operand.
func (c *Chunk) EmitUint16(op Opcode, v uint16) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))
	c.Code = binary.BigEndian.AppendUint16(c.Code, v)
	return offset
}

// EmitLdcInt emits OpLdc for an int constant.
func (c *Chunk) EmitLdcInt(v int32) int {
	return c.EmitUint16(OpLdc, c.AddIntConstant(v))
}

// EmitLdcString emits OpLdc for a string constant.
func (c *Chunk) EmitLdcString(s string) int {
	return c.EmitUint16(OpLdc, c.AddStringConstant(s))
}

// NewLabel creates an unbound label owned by this chunk.
func (c *Chunk) NewLabel() *Label {
	l := &Label{offset: -1}
	c.labels = append(c.labels, l)
	return l
}

// EmitJump emits a jump to l. If l is not bound yet, the offset is left
// as a placeholder and patched by Bind.
func (c *Chunk) EmitJump(op Opcode, l *Label) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op), 0xFF, 0xFF) // Placeholder
	if l.Bound() {
		c.patchJumpTo(offset+1, l.offset)
	} else {
		l.refs = append(l.refs, offset+1)
	}
	return offset
}

// Bind places l at the current offset and patches all pending jumps to it.
func (c *Chunk) Bind(l *Label) {
	if l.Bound() {
		c.fail(fmt.Errorf("%w at %04X", ErrLabelRebound, l.offset))
		return
	}
	l.offset = len(c.Code)
	for _, ref := range l.refs {
		c.patchJumpTo(ref, l.offset)
	}
	l.refs = nil
}

// patchJumpTo patches a jump to go to a specific offset.
// Offsets are relative to the end of the 2-byte operand. A target out of
// 16-bit range is remembered and the jump is widened by Assemble.
func (c *Chunk) patchJumpTo(placeholderOffset int, target int) {
	jumpFrom := placeholderOffset + 2
	delta := target - jumpFrom
	if delta < math.MinInt16 || delta > math.MaxInt16 {
		if c.far == nil {
			c.far = make(map[int]int)
		}
		c.far[placeholderOffset-1] = target
		return
	}
	binary.BigEndian.PutUint16(c.Code[placeholderOffset:], uint16(int16(delta)))
}

// FarJumps returns the number of jumps that Assemble has to widen.
func (c *Chunk) FarJumps() int {
	return len(c.far)
}

// UnboundLabels returns the number of labels that were referenced but
// never bound.
func (c *Chunk) UnboundLabels() int {
	n := 0
	for _, l := range c.labels {
		if !l.Bound() && len(l.refs) > 0 {
			n++
		}
	}
	return n
}

// DeclareLocal records a local variable table entry.
func (c *Chunk) DeclareLocal(slot uint16, name string, kind SlotKind) {
	c.Locals = append(c.Locals, LocalVar{Slot: slot, Name: name, Kind: kind})
}

// AddSourceLocation adds a debug source location mapping. Consecutive
// mappings for the same offset collapse into the latest one.
func (c *Chunk) AddSourceLocation(bytecodeOffset uint32, line uint32, column uint16) {
	if n := len(c.SourceMap); n > 0 && c.SourceMap[n-1].BytecodeOffset == bytecodeOffset {
		c.SourceMap[n-1].Line = line
		c.SourceMap[n-1].Column = column
		return
	}
	c.SourceMap = append(c.SourceMap, SourceLocation{
		BytecodeOffset: bytecodeOffset,
		Line:           line,
		Column:         column,
	})
}

// CurrentOffset returns the current offset in the code section.
func (c *Chunk) CurrentOffset() int {
	return len(c.Code)
}

// ConstantCount returns the number of constants in the pool.
func (c *Chunk) ConstantCount() int {
	return len(c.Constants)
}

// lookupSourceLocation returns the source location for a bytecode offset.
// Returns line 0, column 0 if no mapping exists.
func lookupSourceLocation(sourceMap []SourceLocation, offset uint32) (line uint32, column uint16) {
	// Find the nearest mapping at or before the offset
	for i := len(sourceMap) - 1; i >= 0; i-- {
		if sourceMap[i].BytecodeOffset <= offset {
			return sourceMap[i].Line, sourceMap[i].Column
		}
	}
	return 0, 0
}
