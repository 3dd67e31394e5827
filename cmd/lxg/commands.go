package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lxg-lang/lxg/compiler"
	"github.com/lxg-lang/lxg/manifest"
	"github.com/lxg-lang/lxg/pkg/bytecode"
)

// newFlagSet creates a subcommand flag set that reports errors to stderr.
func (e *env) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

// parseFlags parses args and converts a failure into an exit code.
func parseFlags(fs *flag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK, false
		}
		return exitUsage, false
	}
	return exitOK, true
}

// handleRunCommand processes `lxg run`.
// Usage:
//
//	lxg run                      # the manifest's entry file
//	lxg run --dump-ast main.lxg  # print the tree, then run
//	lxg run --emit=main.lxgm main.lxg
func (e *env) cmdRun(args []string) int {
	fs := e.newFlagSet("run")
	trace := fs.Bool("trace", e.m.Run.Trace, "Log every executed instruction")
	dumpTokens := fs.Bool("dump-tokens", false, "Print the token stream")
	dumpAST := fs.Bool("dump-ast", false, "Print the syntax tree")
	emit := fs.String("emit", "", "Also write the compiled module to this path")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	path := fs.Arg(0)
	if path == "" {
		path = e.m.EntryPath()
	}
	if path == "" || fs.NArg() > 1 {
		fmt.Fprintln(e.stderr, "Usage: lxg run [flags] file.lxg")
		return exitUsage
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return e.failure(fmt.Errorf("cannot read %s: %w", path, err))
	}
	if *dumpTokens {
		fmt.Fprint(e.stdout, compiler.DumpTokens(compiler.Tokenize(string(src))))
	}
	res, err := compiler.CompileSource(string(src))
	if err != nil {
		return e.failure(err)
	}
	if *dumpAST {
		fmt.Fprint(e.stdout, compiler.Dump(res.Program))
	}
	if code := e.report(path, res, false); code != exitOK {
		return code
	}
	if *emit != "" {
		if err := writeFile(*emit, res.Bytes); err != nil {
			return e.failure(err)
		}
		log.Infof("wrote %s", *emit)
	}
	return e.execute(res.Module, *trace)
}

// handleCheckCommand processes `lxg check`: diagnostics only, no output
// files. Without arguments the project's sources are checked.
func (e *env) cmdCheck(args []string) int {
	fs := e.newFlagSet("check")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	files, err := e.inputFiles(fs.Args())
	if err != nil {
		return e.failure(err)
	}
	if len(files) == 0 {
		fmt.Fprintln(e.stderr, "Usage: lxg check files...")
		return exitUsage
	}

	status := exitOK
	for _, path := range files {
		res, err := compileFile(path)
		if err != nil {
			return e.failure(err)
		}
		if code := e.report(path, res, len(files) > 1); code != exitOK {
			status = code
		}
	}
	return status
}

// handleDisasmCommand processes `lxg disasm`. Source files are compiled
// first; anything else is loaded as a module.
func (e *env) cmdDisasm(args []string) int {
	fs := e.newFlagSet("disasm")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(e.stderr, "Usage: lxg disasm file.lxgm|file.lxg")
		return exitUsage
	}
	path := fs.Arg(0)

	var mod *bytecode.Module
	if filepath.Ext(path) == manifest.SourceExt {
		res, err := compileFile(path)
		if err != nil {
			return e.failure(err)
		}
		if code := e.report(path, res, false); code != exitOK {
			return code
		}
		mod = res.Module
	} else {
		var err error
		if mod, err = loadModule(path); err != nil {
			return e.failure(err)
		}
	}
	fmt.Fprint(e.stdout, mod.Disassemble())
	return exitOK
}

// handleExecCommand processes `lxg exec`: run a module built earlier.
func (e *env) cmdExec(args []string) int {
	fs := e.newFlagSet("exec")
	trace := fs.Bool("trace", e.m.Run.Trace, "Log every executed instruction")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(e.stderr, "Usage: lxg exec [--trace] file.lxgm")
		return exitUsage
	}
	mod, err := loadModule(fs.Arg(0))
	if err != nil {
		return e.failure(err)
	}
	return e.execute(mod, *trace)
}

// execute runs mod with print output going to stdout.
func (e *env) execute(mod *bytecode.Module, trace bool) int {
	if trace {
		e.enableTrace()
	}
	vm := bytecode.NewVM(e.stdout)
	vm.Trace = trace
	if err := vm.Run(mod); err != nil {
		return e.failure(err)
	}
	return exitOK
}

// inputFiles returns args, or the project's source files when args is empty.
func (e *env) inputFiles(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	return e.m.SourceFiles()
}

func loadModule(path string) (*bytecode.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	mod, err := bytecode.Load(data)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", errBadModule, path, err)
	}
	return mod, nil
}

// writeFile writes data, creating parent directories as needed.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}
