package compiler

import (
	"fmt"

	"github.com/lxg-lang/lxg/pkg/bytecode"
)

const (
	// ModuleName names every generated module.
	ModuleName = "lxg/gen/Program"
	// EntryName is the module's single no-argument entry procedure.
	EntryName = "main"
)

// ModuleBuilder wraps a whole program into one entry procedure. Frame
// sizing is left to bytecode.Assemble.
type ModuleBuilder struct {
	// Analysis, when set, is handed to the emitter for cross-checking.
	Analysis *Analysis
}

// Build lowers prog into a module. prog must have passed type checking.
func (b *ModuleBuilder) Build(prog *Program) (*bytecode.Module, error) {
	chunk := bytecode.NewChunk()
	chunk.DeclareLocal(EntryArgSlot, "args", bytecode.SlotArgs)

	emitter := NewCodeEmitter(chunk, b.Analysis)
	for _, stmt := range prog.Statements {
		if err := emitter.EmitStatement(stmt); err != nil {
			return nil, err
		}
	}
	chunk.Emit(bytecode.OpReturn)
	log.Debugf("emitted %d code bytes, %d far jumps", chunk.CurrentOffset(), chunk.FarJumps())

	method, err := bytecode.Assemble(EntryName, chunk)
	if err != nil {
		return nil, &InternalError{Msg: "assemble entry procedure", Err: err}
	}
	if got, want := int(method.MaxLocals), emitter.Symbols().SlotCount(); got != want {
		return nil, &InternalError{Msg: fmt.Sprintf("frame has %d locals, bindings need %d", got, want)}
	}
	return bytecode.NewModule(ModuleName, method), nil
}

// BuildBytes is Build followed by serialization.
func (b *ModuleBuilder) BuildBytes(prog *Program) ([]byte, error) {
	mod, err := b.Build(prog)
	if err != nil {
		return nil, err
	}
	return mod.Marshal()
}
