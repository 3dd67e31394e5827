package compiler

import "fmt"

// InternalError is a compiler bug: the emitter met a program the checker
// should have rejected, or produced code the assembler refused. It is never
// reported as a diagnostic.
type InternalError struct {
	Pos Position // zero when no node is involved
	Msg string
	Err error // underlying cause, if any
}

func (e *InternalError) Error() string {
	msg := "internal compiler error: " + e.Msg
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Pos.IsValid() {
		msg += " at " + e.Pos.String()
	}
	return msg
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// fault aborts emission. Exported emitter entry points recover it.
func fault(n Node, format string, args ...any) {
	var pos Position
	if n != nil {
		pos = Pos(n)
	}
	panic(&InternalError{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

// recoverFault converts a fault panic into *err. Other panics propagate.
func recoverFault(err *error) {
	if r := recover(); r != nil {
		ie, ok := r.(*InternalError)
		if !ok {
			panic(r)
		}
		*err = ie
	}
}
