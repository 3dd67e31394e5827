package compiler

import (
	"errors"
	"fmt"
	"math"
)

// Type is the static type of an expression or variable.
type Type int

const (
	// TypeVoid marks an unresolvable expression. It never types a real
	// variable; the checker uses it to keep going after an error.
	TypeVoid Type = iota
	TypeInt
	TypeString
	TypeBoolean
)

func (t Type) String() string {
	switch t {
	case TypeVoid:
		return "VOID"
	case TypeInt:
		return "INT"
	case TypeString:
		return "STRING"
	case TypeBoolean:
		return "BOOLEAN"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

const (
	// EntryArgSlot holds the host's entry argument.
	EntryArgSlot = 0
	// FirstSlot is the slot given to the first declared variable.
	FirstSlot = 1
	// MaxSlot is the largest slot the 16-bit load/store operand can address.
	MaxSlot = math.MaxUint16
)

var (
	ErrAlreadyDeclared = errors.New("variable already declared")
	ErrUnknownVariable = errors.New("unknown variable")
	ErrTooManySlots    = errors.New("too many variables")
)

// Symbol is a declared variable.
type Symbol struct {
	Name string
	Slot int
	Type Type
}

// SymbolTable is a flat, insertion-ordered namespace mapping names to
// slots. Slots are allocated from FirstSlot upward, one per declaration.
type SymbolTable struct {
	symbols map[string]Symbol
	order   []string
	next    int
}

// NewSymbolTable returns an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		symbols: make(map[string]Symbol),
		next:    FirstSlot,
	}
}

// Declare binds name to the next free slot. It fails if name is already
// bound; the existing binding is left untouched.
func (st *SymbolTable) Declare(name string, typ Type) (Symbol, error) {
	if _, exists := st.symbols[name]; exists {
		return Symbol{}, fmt.Errorf("%w: %s", ErrAlreadyDeclared, name)
	}
	if st.next > MaxSlot {
		return Symbol{}, fmt.Errorf("%w: %s", ErrTooManySlots, name)
	}
	sym := Symbol{Name: name, Slot: st.next, Type: typ}
	st.symbols[name] = sym
	st.order = append(st.order, name)
	st.next++
	return sym, nil
}

// Resolve returns the symbol bound to name.
func (st *SymbolTable) Resolve(name string) (Symbol, error) {
	sym, ok := st.symbols[name]
	if !ok {
		return Symbol{}, fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	return sym, nil
}

// Lookup is Resolve without the error.
func (st *SymbolTable) Lookup(name string) (Symbol, bool) {
	sym, ok := st.symbols[name]
	return sym, ok
}

// Symbols returns every symbol in declaration order.
func (st *SymbolTable) Symbols() []Symbol {
	out := make([]Symbol, len(st.order))
	for i, name := range st.order {
		out[i] = st.symbols[name]
	}
	return out
}

// Len returns the number of declared names.
func (st *SymbolTable) Len() int {
	return len(st.order)
}

// SlotCount returns the frame size needed: declared slots plus the entry
// argument slot.
func (st *SymbolTable) SlotCount() int {
	return st.next
}
