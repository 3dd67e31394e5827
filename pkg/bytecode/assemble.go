package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrUnknownOpcode   = errors.New("unknown opcode")
	ErrTruncated       = errors.New("truncated instruction")
	ErrBadJumpTarget   = errors.New("jump target not on an instruction boundary")
	ErrStackUnderflow  = errors.New("operand stack underflow")
	ErrStackMismatch   = errors.New("inconsistent stack depth at merge point")
	ErrFallOffEnd      = errors.New("execution falls off the end of the code")
	ErrUnboundLabel    = errors.New("jump to unbound label")
	ErrEmptyCode       = errors.New("empty code")
	ErrStackTooDeep    = errors.New("operand stack deeper than 65535")
	ErrSlotOutOfRange  = errors.New("local slot out of range")
	ErrConstOutOfRange = errors.New("constant index out of range")
	ErrBadOverload     = errors.New("invalid print overload")
)

// Instruction is one decoded instruction.
type Instruction struct {
	Offset  int
	Op      Opcode
	Operand int32 // sign- or zero-extended per opcode; 0 if none
}

// Len returns the encoded length of the instruction.
func (in Instruction) Len() int {
	return in.Op.InstructionLen()
}

// Next returns the offset of the following instruction.
func (in Instruction) Next() int {
	return in.Offset + in.Len()
}

// Target returns the absolute jump target. Only meaningful for jumps.
func (in Instruction) Target() int {
	return in.Next() + int(in.Operand)
}

// DecodeAt decodes the instruction starting at offset.
func DecodeAt(code []byte, offset int) (Instruction, error) {
	if offset < 0 || offset >= len(code) {
		return Instruction{}, fmt.Errorf("%w at %04X", ErrTruncated, offset)
	}
	op := Opcode(code[offset])
	if !op.IsValid() {
		return Instruction{}, fmt.Errorf("%w 0x%02X at %04X", ErrUnknownOpcode, byte(op), offset)
	}
	in := Instruction{Offset: offset, Op: op}
	if offset+op.InstructionLen() > len(code) {
		return Instruction{}, fmt.Errorf("%w: %s at %04X", ErrTruncated, op, offset)
	}
	operand := code[offset+1 : offset+op.InstructionLen()]
	switch {
	case op == OpBIPush:
		in.Operand = int32(int8(operand[0]))
	case op == OpPrint:
		in.Operand = int32(operand[0])
	case op == OpGotoW:
		in.Operand = int32(binary.BigEndian.Uint32(operand))
	case op == OpSIPush || op.IsJump():
		in.Operand = int32(int16(binary.BigEndian.Uint16(operand)))
	case op.OperandLen() == 2:
		in.Operand = int32(binary.BigEndian.Uint16(operand))
	}
	return in, nil
}

// Decode decodes a whole code section in order.
func Decode(code []byte) ([]Instruction, error) {
	var out []Instruction
	for offset := 0; offset < len(code); {
		in, err := DecodeAt(code, offset)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
		offset = in.Next()
	}
	return out, nil
}

// Method is an assembled, immutable entry procedure.
type Method struct {
	Name      string           `cbor:"name"`
	MaxStack  uint16           `cbor:"max_stack"`
	MaxLocals uint16           `cbor:"max_locals"`
	Locals    []LocalVar       `cbor:"locals"`
	Constants []Constant       `cbor:"constants"`
	Code      []byte           `cbor:"code"`
	SourceMap []SourceLocation `cbor:"source_map,omitempty"`
}

// GetSourceLocation returns the source location for a bytecode offset.
func (m *Method) GetSourceLocation(offset uint32) (line uint32, column uint16) {
	return lookupSourceLocation(m.SourceMap, offset)
}

// LocalKind returns the kind recorded for slot, if any.
func (m *Method) LocalKind(slot uint16) (SlotKind, bool) {
	for _, lv := range m.Locals {
		if lv.Slot == slot {
			return lv.Kind, true
		}
	}
	return 0, false
}

// Assemble finalizes c into a Method, sizing the frame: MaxLocals from the
// local variable table and MaxStack by abstract interpretation of the code.
func Assemble(name string, c *Chunk) (*Method, error) {
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("assemble %s: %w", name, err)
	}
	if n := c.UnboundLabels(); n > 0 {
		return nil, fmt.Errorf("assemble %s: %w (%d)", name, ErrUnboundLabel, n)
	}

	maxLocals := 1 // slot 0 is the entry argument
	for _, lv := range c.Locals {
		if int(lv.Slot)+1 > maxLocals {
			maxLocals = int(lv.Slot) + 1
		}
	}
	if maxLocals > 0xFFFF {
		return nil, fmt.Errorf("assemble %s: %w", name, ErrSlotOutOfRange)
	}

	code, sourceMap, err := widenJumps(c.Code, c.far, c.SourceMap)
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", name, err)
	}

	m := &Method{
		Name:      name,
		MaxLocals: uint16(maxLocals),
		Locals:    append([]LocalVar(nil), c.Locals...),
		Constants: append([]Constant(nil), c.Constants...),
		Code:      append([]byte(nil), code...),
		SourceMap: append([]SourceLocation(nil), sourceMap...),
	}
	maxStack, err := ComputeMaxStack(m.Code)
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", name, err)
	}
	m.MaxStack = uint16(maxStack)
	return m, nil
}

// ComputeMaxStack walks every reachable path through code and returns the
// deepest operand stack reached. Each instruction must be entered with the
// same depth along every path.
func ComputeMaxStack(code []byte) (int, error) {
	if len(code) == 0 {
		return 0, ErrEmptyCode
	}
	instrs, err := Decode(code)
	if err != nil {
		return 0, err
	}
	index := make(map[int]int, len(instrs)) // offset -> instruction index
	for i, in := range instrs {
		index[in.Offset] = i
	}

	depth := make([]int, len(instrs))
	for i := range depth {
		depth[i] = -1
	}
	depth[0] = 0
	work := []int{0}
	maxDepth := 0

	enter := func(from Instruction, offset, d int) error {
		if offset == len(code) {
			return fmt.Errorf("%w after %s at %04X", ErrFallOffEnd, from.Op, from.Offset)
		}
		i, ok := index[offset]
		if !ok {
			return fmt.Errorf("%w: %s at %04X -> %04X", ErrBadJumpTarget, from.Op, from.Offset, offset)
		}
		switch depth[i] {
		case -1:
			depth[i] = d
			work = append(work, i)
		case d:
		default:
			return fmt.Errorf("%w %04X: %d vs %d", ErrStackMismatch, offset, depth[i], d)
		}
		return nil
	}

	for len(work) > 0 {
		i := work[len(work)-1]
		work = work[:len(work)-1]
		in := instrs[i]
		info := GetOpcodeInfo(in.Op)

		d := depth[i]
		if d < info.StackPop {
			return 0, fmt.Errorf("%w: %s at %04X", ErrStackUnderflow, in.Op, in.Offset)
		}
		d = d - info.StackPop + info.StackPush
		if d > maxDepth {
			maxDepth = d
		}

		switch {
		case in.Op.IsReturn():
		case in.Op.IsGoto():
			if err := enter(in, in.Target(), d); err != nil {
				return 0, err
			}
		case in.Op.IsConditional():
			if err := enter(in, in.Target(), d); err != nil {
				return 0, err
			}
			if err := enter(in, in.Next(), d); err != nil {
				return 0, err
			}
		default:
			if err := enter(in, in.Next(), d); err != nil {
				return 0, err
			}
		}
	}
	if maxDepth > 0xFFFF {
		return 0, ErrStackTooDeep
	}
	return maxDepth, nil
}
