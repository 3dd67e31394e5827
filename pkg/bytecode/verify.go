package bytecode

import (
	"errors"
	"fmt"
)

// VerifyError reports why a method was rejected by the loader.
type VerifyError struct {
	Method string
	Offset int // -1 when not tied to an instruction
	Err    error
}

func (e *VerifyError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("verify %s: %v", e.Method, e.Err)
	}
	return fmt.Sprintf("verify %s at %04X: %v", e.Method, e.Offset, e.Err)
}

func (e *VerifyError) Unwrap() error {
	return e.Err
}

// Load decodes and verifies a serialized module.
func Load(data []byte) (*Module, error) {
	m, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	if err := Verify(m.Entry); err != nil {
		return nil, err
	}
	return m, nil
}

// Verify checks that a method is safe to execute: every opcode is known,
// operands are in range, slots are used with the access family matching
// their kind, and the recorded MaxStack matches the code.
func Verify(m *Method) error {
	fail := func(offset int, err error) error {
		return &VerifyError{Method: m.Name, Offset: offset, Err: err}
	}

	kinds := make(map[uint16]SlotKind, len(m.Locals)+1)
	kinds[0] = SlotArgs
	for _, lv := range m.Locals {
		if lv.Slot >= m.MaxLocals {
			return fail(-1, fmt.Errorf("%w: local %q slot %d", ErrSlotOutOfRange, lv.Name, lv.Slot))
		}
		kinds[lv.Slot] = lv.Kind
	}

	instrs, err := Decode(m.Code)
	if err != nil {
		return fail(-1, err)
	}
	for _, in := range instrs {
		switch in.Op {
		case OpLdc:
			if int(in.Operand) >= len(m.Constants) {
				return fail(in.Offset, fmt.Errorf("%w: %d", ErrConstOutOfRange, in.Operand))
			}
		case OpILoad, OpIStore, OpALoad, OpAStore:
			slot := uint16(in.Operand)
			kind, ok := kinds[slot]
			if !ok {
				return fail(in.Offset, fmt.Errorf("%w: %d", ErrSlotOutOfRange, slot))
			}
			ref := in.Op == OpALoad || in.Op == OpAStore
			if ref != kind.IsReference() {
				return fail(in.Offset, fmt.Errorf("%s on %s slot %d", in.Op, kind, slot))
			}
		case OpPrint:
			if in.Operand > int32(PrintBool) {
				return fail(in.Offset, fmt.Errorf("%w: %d", ErrBadOverload, in.Operand))
			}
		}
	}

	maxStack, err := ComputeMaxStack(m.Code)
	if err != nil {
		return fail(-1, err)
	}
	if maxStack != int(m.MaxStack) {
		return fail(-1, fmt.Errorf("max stack %d, code needs %d", m.MaxStack, maxStack))
	}
	return nil
}

// IsVerifyError reports whether err came from the verifier.
func IsVerifyError(err error) bool {
	var ve *VerifyError
	return errors.As(err, &ve)
}
