package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category for easy identification.
type Opcode byte

const (
	// ========================================================================
	// No-op (0x00)
	// ========================================================================

	OpNop Opcode = 0x00 // No operation

	// ========================================================================
	// Constants (0x10-0x1F)
	// ========================================================================

	OpIConstM1 Opcode = 0x10 // Push int -1
	OpIConst0  Opcode = 0x11 // Push int 0
	OpIConst1  Opcode = 0x12 // Push int 1
	OpIConst2  Opcode = 0x13 // Push int 2
	OpIConst3  Opcode = 0x14 // Push int 3
	OpIConst4  Opcode = 0x15 // Push int 4
	OpIConst5  Opcode = 0x16 // Push int 5
	OpBIPush   Opcode = 0x17 // Push sign-extended byte: OpBIPush <value:i8>
	OpSIPush   Opcode = 0x18 // Push sign-extended short: OpSIPush <value:i16>
	OpLdc      Opcode = 0x19 // Push constant from pool: OpLdc <index:u16>

	// ========================================================================
	// Local variables (0x20-0x2F)
	// ========================================================================

	OpILoad  Opcode = 0x20 // Push int slot: OpILoad <slot:u16>
	OpALoad  Opcode = 0x21 // Push reference slot: OpALoad <slot:u16>
	OpIStore Opcode = 0x22 // Pop int into slot: OpIStore <slot:u16>
	OpAStore Opcode = 0x23 // Pop reference into slot: OpAStore <slot:u16>

	// ========================================================================
	// Arithmetic (0x50-0x5F)
	// ========================================================================

	OpIAdd Opcode = 0x50 // Pop two, push sum
	OpISub Opcode = 0x51 // Pop two, push difference (a - b where b is TOS)
	OpIMul Opcode = 0x52 // Pop two, push product
	OpIDiv Opcode = 0x53 // Pop two, push quotient truncated toward zero
	OpINeg Opcode = 0x54 // Negate top of stack

	// ========================================================================
	// Control flow (0x80-0x8F)
	// ========================================================================

	OpGoto     Opcode = 0x80 // Unconditional jump: OpGoto <offset:i16>
	OpIfEq     Opcode = 0x81 // Pop int, jump if zero
	OpIfNe     Opcode = 0x82 // Pop int, jump if non-zero
	OpIfICmpEq Opcode = 0x83 // Pop two ints, jump if a == b
	OpIfICmpNe Opcode = 0x84 // Pop two ints, jump if a != b
	OpIfICmpLt Opcode = 0x85 // Pop two ints, jump if a < b
	OpIfICmpGt Opcode = 0x86 // Pop two ints, jump if a > b
	OpIfICmpLe Opcode = 0x87 // Pop two ints, jump if a <= b
	OpIfICmpGe Opcode = 0x88 // Pop two ints, jump if a >= b
	OpGotoW    Opcode = 0x89 // Unconditional jump: OpGotoW <offset:i32>

	// ========================================================================
	// Host calls (0x90-0x9F)
	// ========================================================================

	OpGetOut Opcode = 0x90 // Push the host output sink
	OpPrint  Opcode = 0x91 // Pop value and sink, print: OpPrint <overload:u8>

	// ========================================================================
	// Return (0xF0-0xFF)
	// ========================================================================

	OpReturn Opcode = 0xF0 // Return from the entry procedure
)

// PrintOverload selects the host print routine for OpPrint.
type PrintOverload uint8

const (
	PrintInt    PrintOverload = 0
	PrintString PrintOverload = 1
	PrintBool   PrintOverload = 2
)

func (p PrintOverload) String() string {
	switch p {
	case PrintInt:
		return "(I)V"
	case PrintString:
		return "(S)V"
	case PrintBool:
		return "(Z)V"
	default:
		return fmt.Sprintf("PrintOverload(%d)", uint8(p))
	}
}

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name       string // Human-readable name
	StackPop   int    // How many values popped from stack
	StackPush  int    // How many values pushed to stack
	OperandLen int    // Number of operand bytes following the opcode
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpNop: {"NOP", 0, 0, 0},

	// Constants
	OpIConstM1: {"ICONST_M1", 0, 1, 0},
	OpIConst0:  {"ICONST_0", 0, 1, 0},
	OpIConst1:  {"ICONST_1", 0, 1, 0},
	OpIConst2:  {"ICONST_2", 0, 1, 0},
	OpIConst3:  {"ICONST_3", 0, 1, 0},
	OpIConst4:  {"ICONST_4", 0, 1, 0},
	OpIConst5:  {"ICONST_5", 0, 1, 0},
	OpBIPush:   {"BIPUSH", 0, 1, 1},
	OpSIPush:   {"SIPUSH", 0, 1, 2},
	OpLdc:      {"LDC", 0, 1, 2},

	// Locals
	OpILoad:  {"ILOAD", 0, 1, 2},
	OpALoad:  {"ALOAD", 0, 1, 2},
	OpIStore: {"ISTORE", 1, 0, 2},
	OpAStore: {"ASTORE", 1, 0, 2},

	// Arithmetic
	OpIAdd: {"IADD", 2, 1, 0},
	OpISub: {"ISUB", 2, 1, 0},
	OpIMul: {"IMUL", 2, 1, 0},
	OpIDiv: {"IDIV", 2, 1, 0},
	OpINeg: {"INEG", 1, 1, 0},

	// Control flow
	OpGoto:     {"GOTO", 0, 0, 2},
	OpIfEq:     {"IFEQ", 1, 0, 2},
	OpIfNe:     {"IFNE", 1, 0, 2},
	OpIfICmpEq: {"IF_ICMPEQ", 2, 0, 2},
	OpIfICmpNe: {"IF_ICMPNE", 2, 0, 2},
	OpIfICmpLt: {"IF_ICMPLT", 2, 0, 2},
	OpIfICmpGt: {"IF_ICMPGT", 2, 0, 2},
	OpIfICmpLe: {"IF_ICMPLE", 2, 0, 2},
	OpIfICmpGe: {"IF_ICMPGE", 2, 0, 2},
	OpGotoW:    {"GOTO_W", 0, 0, 4},

	// Host
	OpGetOut: {"GETOUT", 0, 1, 0},
	OpPrint:  {"PRINT", 2, 0, 1},

	OpReturn: {"RETURN", 0, 0, 0},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// IsValid reports whether op is a defined opcode.
func (op Opcode) IsValid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes for this opcode.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// InstructionLen returns the total length of an instruction (1 + operand bytes).
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// IsJump returns true if this opcode transfers control to a relative target.
func (op Opcode) IsJump() bool {
	return op >= OpGoto && op <= OpGotoW
}

// IsGoto returns true for the unconditional jumps.
func (op Opcode) IsGoto() bool {
	return op == OpGoto || op == OpGotoW
}

// IsConditional returns true for jumps that may fall through.
func (op Opcode) IsConditional() bool {
	return op > OpGoto && op <= OpIfICmpGe
}

// Negate returns the conditional jump taken exactly when op is not.
// Other opcodes are returned unchanged.
func (op Opcode) Negate() Opcode {
	switch op {
	case OpIfEq:
		return OpIfNe
	case OpIfNe:
		return OpIfEq
	case OpIfICmpEq:
		return OpIfICmpNe
	case OpIfICmpNe:
		return OpIfICmpEq
	case OpIfICmpLt:
		return OpIfICmpGe
	case OpIfICmpGe:
		return OpIfICmpLt
	case OpIfICmpGt:
		return OpIfICmpLe
	case OpIfICmpLe:
		return OpIfICmpGt
	}
	return op
}

// IsReturn returns true if this opcode terminates execution.
func (op Opcode) IsReturn() bool {
	return op == OpReturn
}

// IsIntConst returns true for the zero-operand ICONST family.
func (op Opcode) IsIntConst() bool {
	return op >= OpIConstM1 && op <= OpIConst5
}

// AllOpcodes returns a slice of all defined opcodes.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
