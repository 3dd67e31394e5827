// lxg CLI - compiles, runs and inspects lxg programs
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"

	"github.com/lxg-lang/lxg/compiler"
	"github.com/lxg-lang/lxg/manifest"
	"github.com/lxg-lang/lxg/pkg/bytecode"
	"github.com/lxg-lang/lxg/server"

	_ "github.com/tliron/commonlog/simple"
)

const version = "0.1.0"

// Exit codes.
const (
	exitOK          = 0
	exitDiagnostics = 1
	exitUsage       = 2
	exitInternal    = 3
	exitRuntime     = 4
)

var log = commonlog.GetLogger("lxg.cli")

// errBadModule wraps load and verify failures for module files.
var errBadModule = errors.New("invalid module")

// env carries what every subcommand needs: the manifest (defaults when
// --no-manifest is set or none is found) and the output streams.
type env struct {
	m      *manifest.Manifest
	stdout io.Writer
	stderr io.Writer

	verbosity int
	logFile   string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("lxg", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbosity := fs.Int("v", -1, "Log verbosity (0 errors only, 1 info, 2 debug)")
	logPath := fs.String("log", "", "Write logs to this file instead of stderr")
	noManifest := fs.Bool("no-manifest", false, "Ignore lxg.toml")
	fs.Usage = func() { usage(stderr) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() == 0 {
		usage(stderr)
		return exitUsage
	}

	m := manifest.Default()
	if !*noManifest {
		found, err := manifest.FindAndLoad(".")
		if err != nil {
			fmt.Fprintf(stderr, "Error loading manifest: %v\n", err)
			return exitUsage
		}
		if found != nil {
			m = found
		}
	}
	e := &env{m: m, stdout: stdout, stderr: stderr, verbosity: *verbosity, logFile: *logPath}
	e.configureLogging()
	log.Debugf("manifest dir %s", m.Dir)

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "run":
		return e.cmdRun(rest)
	case "build":
		return e.cmdBuild(rest)
	case "check":
		return e.cmdCheck(rest)
	case "disasm":
		return e.cmdDisasm(rest)
	case "exec":
		return e.cmdExec(rest)
	case "repl":
		return e.cmdRepl(rest)
	case "lsp":
		if err := server.NewLSP(version).Run(); err != nil {
			fmt.Fprintf(stderr, "Server error: %v\n", err)
			return exitInternal
		}
		return exitOK
	case "version":
		fmt.Fprintln(stdout, version)
		return exitOK
	case "help", "-h", "--help":
		usage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "lxg: unknown command %q\n", cmd)
		usage(stderr)
		return exitUsage
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `Usage: lxg [-v=N] [--log=path] [--no-manifest] <command> [args]

Commands:
  run [--trace] [--dump-tokens] [--dump-ast] [--emit=path] [file.lxg]
                                  Compile and run a program (default: project entry)
  build [-o dir] [--emit-asm] [files...]
                                  Compile to modules (default: project sources)
  check files...                  Report diagnostics without producing output
  disasm file.lxgm|file.lxg       Print the bytecode listing
  exec [--trace] file.lxgm        Load a built module and run it
  repl                            Start the interactive shell
  lsp                             Serve the language server protocol on stdio
  version                         Print the version

Exit status: 0 ok, 1 diagnostics, 2 usage, 3 internal error, 4 runtime error.
`)
}

// configureLogging applies the command line verbosity and log file, falling
// back to the manifest's [log] section.
func (e *env) configureLogging() {
	if e.verbosity < 0 {
		e.verbosity = e.m.Log.Verbosity
	}
	if e.logFile == "" {
		e.logFile = e.m.LogFile()
	}
	if e.logFile == "" {
		commonlog.Configure(e.verbosity, nil)
	} else {
		commonlog.Configure(e.verbosity, &e.logFile)
	}
}

// enableTrace raises verbosity to debug so VM trace lines are emitted.
func (e *env) enableTrace() {
	if e.verbosity < 2 {
		e.verbosity = 2
		e.configureLogging()
	}
}

// compileFile reads and compiles one source file. A nil error with a result
// that is not OK means the program has diagnostics.
func compileFile(path string) (*compiler.Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	res, err := compiler.CompileSource(string(src))
	if err != nil {
		return nil, err
	}
	log.Debugf("%s: %d diagnostics", path, res.Diagnostics.Len())
	return res, nil
}

// report prints diagnostics, prefixed with the file name when there is
// more than one file in play, and returns the matching exit code.
func (e *env) report(path string, res *compiler.Result, multi bool) int {
	if res.OK() {
		return exitOK
	}
	for _, item := range res.Diagnostics.Items() {
		if multi {
			fmt.Fprintf(e.stderr, "[ERROR] %s: %s\n", path, item)
		} else {
			fmt.Fprintf(e.stderr, "[ERROR] %s\n", item)
		}
	}
	return exitDiagnostics
}

// failure maps an error from compiling or running to an exit code.
func (e *env) failure(err error) int {
	var internal *compiler.InternalError
	var rerr *bytecode.RuntimeError
	switch {
	case errors.As(err, &internal):
		fmt.Fprintf(e.stderr, "[INTERNAL] %v\n", err)
		return exitInternal
	case errors.As(err, &rerr):
		fmt.Fprintf(e.stderr, "[RUNTIME] %v\n", err)
		return exitRuntime
	case errors.Is(err, errBadModule):
		fmt.Fprintf(e.stderr, "[ERROR] %v\n", err)
		return exitDiagnostics
	default:
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitUsage
	}
}
