package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("lxg.vm")

// ErrDivisionByZero is wrapped by the RuntimeError raised by IDIV.
var ErrDivisionByZero = errors.New("division by zero")

// ValueKind tags a value on the operand stack or in a slot.
type ValueKind uint8

const (
	ValInt  ValueKind = iota // int and boolean
	ValStr                   // string reference
	ValSink                  // output sink reference
	ValArgs                  // entry argument vector
)

// Value is a single-width stack or slot value.
type Value struct {
	Kind ValueKind
	Int  int32
	Str  string
}

func (v Value) String() string {
	switch v.Kind {
	case ValStr:
		return strconv.Quote(v.Str)
	case ValSink:
		return "<out>"
	case ValArgs:
		return "<args>"
	default:
		return strconv.FormatInt(int64(v.Int), 10)
	}
}

// RuntimeError is raised by the host while executing a module.
type RuntimeError struct {
	Op     Opcode
	Offset int
	Line   uint32 // 0 when the module carries no source map entry
	Column uint16
	Err    error
}

func (e *RuntimeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("runtime error: %v at %d:%d", e.Err, e.Line, e.Column)
	}
	return fmt.Sprintf("runtime error: %v (%s at %04X)", e.Err, e.Op, e.Offset)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// VM executes the entry procedure of a module.
type VM struct {
	out io.Writer

	method *Method
	ip     int
	stack  []Value
	sp     int
	locals []Value

	// Trace logs every instruction at debug level.
	Trace bool
}

// NewVM creates a VM whose print instructions write to out.
func NewVM(out io.Writer) *VM {
	return &VM{out: out}
}

// Run verifies the module's entry procedure and executes it.
func (vm *VM) Run(m *Module) error {
	if m.Entry == nil {
		return ErrNoEntry
	}
	if err := Verify(m.Entry); err != nil {
		return err
	}
	return vm.Execute(m.Entry)
}

// Execute runs an already verified method with an empty argument vector.
func (vm *VM) Execute(m *Method) error {
	vm.method = m
	vm.ip = 0
	vm.sp = 0
	vm.stack = make([]Value, int(m.MaxStack)+1)
	vm.locals = make([]Value, m.MaxLocals)
	vm.locals[0] = Value{Kind: ValArgs}
	for _, lv := range m.Locals {
		if lv.Kind == SlotString {
			vm.locals[lv.Slot] = Value{Kind: ValStr}
		}
	}
	return vm.run()
}

// run is the main execution loop.
func (vm *VM) run() error {
	code := vm.method.Code
	for vm.ip < len(code) {
		start := vm.ip
		op := Opcode(code[vm.ip])
		vm.ip++

		if vm.Trace {
			log.Debugf("[%04x] %-10s sp=%d", start, op, vm.sp)
		}

		switch op {
		case OpNop:

		// ============ Constants ============
		case OpIConstM1, OpIConst0, OpIConst1, OpIConst2, OpIConst3, OpIConst4, OpIConst5:
			vm.pushInt(int32(op) - int32(OpIConst0))

		case OpBIPush:
			vm.pushInt(int32(int8(code[vm.ip])))
			vm.ip++

		case OpSIPush:
			vm.pushInt(int32(vm.readInt16()))

		case OpLdc:
			k := vm.method.Constants[vm.readUint16()]
			if k.Kind == ConstString {
				vm.push(Value{Kind: ValStr, Str: k.Str})
			} else {
				vm.pushInt(k.Int)
			}

		// ============ Locals ============
		case OpILoad, OpALoad:
			vm.push(vm.locals[vm.readUint16()])

		case OpIStore, OpAStore:
			vm.locals[vm.readUint16()] = vm.pop()

		// ============ Arithmetic ============
		// int32 arithmetic wraps on overflow, including MinInt32 / -1.
		case OpIAdd:
			b, a := vm.popInt(), vm.popInt()
			vm.pushInt(a + b)

		case OpISub:
			b, a := vm.popInt(), vm.popInt()
			vm.pushInt(a - b)

		case OpIMul:
			b, a := vm.popInt(), vm.popInt()
			vm.pushInt(a * b)

		case OpIDiv:
			b, a := vm.popInt(), vm.popInt()
			if b == 0 {
				return vm.fault(op, start, ErrDivisionByZero)
			}
			vm.pushInt(a / b)

		case OpINeg:
			vm.pushInt(-vm.popInt())

		// ============ Control Flow ============
		case OpGoto:
			offset := vm.readInt16()
			vm.ip += int(offset)

		case OpGotoW:
			offset := vm.readInt32()
			vm.ip += int(offset)

		case OpIfEq, OpIfNe:
			offset := vm.readInt16()
			v := vm.popInt()
			if (v == 0) == (op == OpIfEq) {
				vm.ip += int(offset)
			}

		case OpIfICmpEq, OpIfICmpNe, OpIfICmpLt, OpIfICmpGt, OpIfICmpLe, OpIfICmpGe:
			offset := vm.readInt16()
			b, a := vm.popInt(), vm.popInt()
			if compareInts(op, a, b) {
				vm.ip += int(offset)
			}

		// ============ Host ============
		case OpGetOut:
			vm.push(Value{Kind: ValSink})

		case OpPrint:
			overload := PrintOverload(code[vm.ip])
			vm.ip++
			v := vm.pop()
			vm.pop() // sink
			if err := vm.print(overload, v); err != nil {
				return vm.fault(op, start, err)
			}

		case OpReturn:
			return nil

		default:
			return vm.fault(op, start, fmt.Errorf("%w 0x%02X", ErrUnknownOpcode, byte(op)))
		}
	}
	return vm.fault(OpNop, vm.ip, ErrFallOffEnd)
}

func compareInts(op Opcode, a, b int32) bool {
	switch op {
	case OpIfICmpEq:
		return a == b
	case OpIfICmpNe:
		return a != b
	case OpIfICmpLt:
		return a < b
	case OpIfICmpGt:
		return a > b
	case OpIfICmpLe:
		return a <= b
	default:
		return a >= b
	}
}

func (vm *VM) print(overload PrintOverload, v Value) error {
	var s string
	switch overload {
	case PrintInt:
		s = strconv.FormatInt(int64(v.Int), 10)
	case PrintString:
		s = v.Str
	case PrintBool:
		s = strconv.FormatBool(v.Int != 0)
	default:
		return fmt.Errorf("%w: %d", ErrBadOverload, overload)
	}
	if _, err := io.WriteString(vm.out, s+"\n"); err != nil {
		return fmt.Errorf("print: %w", err)
	}
	return nil
}

func (vm *VM) fault(op Opcode, offset int, err error) error {
	line, col := vm.method.GetSourceLocation(uint32(offset))
	return &RuntimeError{Op: op, Offset: offset, Line: line, Column: col, Err: err}
}

func (vm *VM) push(v Value) {
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() Value {
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) popInt() int32 {
	return vm.pop().Int
}

func (vm *VM) pushInt(n int32) {
	vm.push(Value{Kind: ValInt, Int: n})
}

func (vm *VM) readUint16() uint16 {
	v := binary.BigEndian.Uint16(vm.method.Code[vm.ip:])
	vm.ip += 2
	return v
}

func (vm *VM) readInt16() int16 {
	return int16(vm.readUint16())
}

func (vm *VM) readInt32() int32 {
	v := binary.BigEndian.Uint32(vm.method.Code[vm.ip:])
	vm.ip += 4
	return int32(v)
}
