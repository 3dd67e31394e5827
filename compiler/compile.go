package compiler

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/lxg-lang/lxg/pkg/bytecode"
)

var log = commonlog.GetLogger("lxg.compiler")

// Result is the outcome of one compilation. Module and Bytes are nil
// whenever Diagnostics has errors.
type Result struct {
	Program     *Program
	Diagnostics *Diagnostics
	Analysis    *Analysis
	Module      *bytecode.Module
	Bytes       []byte
}

// OK reports whether a module was produced.
func (r *Result) OK() bool {
	return r.Module != nil
}

// Compile type-checks prog and, if it is clean, builds and serializes the
// module. The returned error is reserved for internal faults; user errors
// are in Result.Diagnostics.
func Compile(prog *Program) (*Result, error) {
	return compile(prog, NewDiagnostics())
}

// CompileSource parses src and compiles it. Syntax errors and type errors
// share one Diagnostics sink; if parsing failed the checker is not run.
func CompileSource(src string) (*Result, error) {
	diags := NewDiagnostics()
	prog := Parse(src, diags)
	log.Debugf("parsed %d statements", len(prog.Statements))
	if diags.HasErrors() {
		return &Result{Program: prog, Diagnostics: diags}, nil
	}
	return compile(prog, diags)
}

func compile(prog *Program, diags *Diagnostics) (*Result, error) {
	res := &Result{Program: prog, Diagnostics: diags}

	checker := NewTypeChecker(diags)
	checker.Check(prog)
	res.Analysis = checker.Analysis()
	if diags.HasErrors() {
		log.Debugf("type check: %d errors", diags.Len())
		return res, nil
	}
	symbols := checker.Symbols()
	log.Debugf("type check: %d symbols in %d slots", symbols.Len(), symbols.SlotCount())

	builder := &ModuleBuilder{Analysis: res.Analysis}
	mod, err := builder.Build(prog)
	if err != nil {
		return res, err
	}
	data, err := mod.Marshal()
	if err != nil {
		return res, fmt.Errorf("compile: %w", err)
	}
	res.Module = mod
	res.Bytes = data
	log.Debugf("built %s: %d code bytes, max stack %d, %d locals",
		mod.Name, len(mod.Entry.Code), mod.Entry.MaxStack, mod.Entry.MaxLocals)
	return res, nil
}
