package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the method.
func (m *Method) Disassemble() string {
	return m.DisassembleWithName("")
}

// DisassembleWithName returns a human-readable listing with a name header.
func (m *Method) DisassembleWithName(name string) string {
	var sb strings.Builder

	// Header
	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; method %s\n", m.Name))
	sb.WriteString(fmt.Sprintf("; max_stack=%d max_locals=%d\n", m.MaxStack, m.MaxLocals))
	sb.WriteString("\n")

	// Constants
	if len(m.Constants) > 0 {
		sb.WriteString("; Constants:\n")
		for i, k := range m.Constants {
			display := k.String()
			if len(display) > 40 {
				display = display[:37] + "..."
			}
			sb.WriteString(fmt.Sprintf(";   [%3d] %s\n", i, display))
		}
		sb.WriteString("\n")
	}

	// Locals
	if len(m.Locals) > 0 {
		sb.WriteString("; Locals:\n")
		for _, lv := range m.Locals {
			sb.WriteString(fmt.Sprintf(";   [%3d] %s %s\n", lv.Slot, lv.Name, lv.Kind))
		}
		sb.WriteString("\n")
	}

	// Code section
	sb.WriteString("; Code:\n")
	offset := 0
	for offset < len(m.Code) {
		in, err := DecodeAt(m.Code, offset)
		if err != nil {
			sb.WriteString(fmt.Sprintf("%04X  <%v>\n", offset, err))
			break
		}
		line := m.formatInstruction(in)
		if srcLine, srcCol := m.GetSourceLocation(uint32(offset)); srcLine > 0 {
			sb.WriteString(fmt.Sprintf("%04X  %-30s ; line %d:%d\n", offset, line, srcLine, srcCol))
		} else {
			sb.WriteString(fmt.Sprintf("%04X  %s\n", offset, line))
		}
		offset = in.Next()
	}

	return sb.String()
}

// Disassemble lists the module's entry procedure under the module name.
func (m *Module) Disassemble() string {
	return m.Entry.DisassembleWithName(m.Name)
}

func (m *Method) formatInstruction(in Instruction) string {
	name := in.Op.String()
	switch {
	case in.Op == OpLdc:
		idx := int(in.Operand)
		if idx < len(m.Constants) {
			return fmt.Sprintf("%-10s %d ; %s", name, idx, m.Constants[idx])
		}
		return fmt.Sprintf("%-10s %d ; <invalid>", name, idx)
	case in.Op == OpBIPush || in.Op == OpSIPush:
		return fmt.Sprintf("%-10s %d", name, in.Operand)
	case in.Op == OpILoad || in.Op == OpALoad || in.Op == OpIStore || in.Op == OpAStore:
		slot := uint16(in.Operand)
		for _, lv := range m.Locals {
			if lv.Slot == slot {
				return fmt.Sprintf("%-10s %d ; %s", name, slot, lv.Name)
			}
		}
		return fmt.Sprintf("%-10s %d", name, slot)
	case in.Op.IsJump():
		return fmt.Sprintf("%-10s %+d ; -> %04X", name, in.Operand, in.Target())
	case in.Op == OpPrint:
		return fmt.Sprintf("%-10s %s", name, PrintOverload(in.Operand))
	default:
		return name
	}
}
