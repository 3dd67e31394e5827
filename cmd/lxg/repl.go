package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/lxg-lang/lxg/compiler"
	"github.com/lxg-lang/lxg/pkg/bytecode"
)

const (
	historyFile = ".lxg_history"
	promptMain  = "lxg> "
	promptCont  = "...> "
)

const replHelp = `REPL commands:
  :help     Show this help
  :ast      Print the syntax tree of the session
  :asm      Print the bytecode of the session
  :reset    Forget every variable and start over
  :quit     Exit the REPL
`

// session is the program built up by a REPL. Variables live in one flat
// scope for the whole program, so every accepted input is appended to the
// source and the program is re-run from the start.
type session struct {
	src   string
	out   string
	lines int
	last  *compiler.Result
}

// submit compiles and runs the session with input appended. It returns the
// output produced by the new input. The input is kept only when it checks
// and runs cleanly; otherwise the returned result carries its diagnostics
// or err the runtime failure, with positions relative to input.
func (s *session) submit(input string) (string, *compiler.Result, error) {
	if !strings.HasSuffix(input, "\n") {
		input += "\n"
	}
	candidate := s.src + input

	res, err := compiler.CompileSource(candidate)
	if err != nil {
		return "", nil, err
	}
	if !res.OK() {
		return "", res, nil
	}

	var buf bytes.Buffer
	err = bytecode.NewVM(&buf).Run(res.Module)
	out := strings.TrimPrefix(buf.String(), s.out)
	if err != nil {
		return out, res, s.relocate(err)
	}

	s.src = candidate
	s.out = buf.String()
	s.lines += strings.Count(input, "\n")
	s.last = res
	return out, res, nil
}

// relocate shifts a runtime error's line into the coordinates of the input
// that caused it.
func (s *session) relocate(err error) error {
	var rerr *bytecode.RuntimeError
	if !errors.As(err, &rerr) || rerr.Line == 0 {
		return err
	}
	moved := *rerr
	moved.Line -= uint32(s.lines)
	return &moved
}

// diagnostics renders res's diagnostics relative to the last input.
func (s *session) diagnostics(res *compiler.Result) []string {
	var out []string
	for _, item := range res.Diagnostics.Items() {
		if item.Span.Start.IsValid() {
			item.Span.Start.Line -= s.lines
		}
		out = append(out, item.String())
	}
	return out
}

func (s *session) reset() {
	*s = session{}
}

// incomplete reports whether input stops in the middle of a statement, in
// which case the REPL keeps reading lines.
func incomplete(input string) bool {
	diags := compiler.NewDiagnostics()
	compiler.Parse(input, diags)
	for _, item := range diags.Items() {
		if item.Kind == compiler.KindSyntax && strings.HasSuffix(item.Message, "found end of input") {
			return true
		}
	}
	return false
}

// handleREPLCommand runs a ':' command. It reports false for :quit.
func (e *env) handleREPLCommand(s *session, cmd string) bool {
	switch cmd {
	case ":quit", ":q":
		return false
	case ":help", ":h", ":?":
		fmt.Fprint(e.stdout, replHelp)
	case ":reset":
		s.reset()
		fmt.Fprintln(e.stdout, "session cleared")
	case ":ast":
		if s.last != nil {
			fmt.Fprint(e.stdout, compiler.Dump(s.last.Program))
		}
	case ":asm":
		if s.last != nil {
			fmt.Fprint(e.stdout, s.last.Module.Disassemble())
		}
	default:
		fmt.Fprintf(e.stdout, "Unknown command: %s (type :help for commands)\n", cmd)
	}
	return true
}

// eval submits one input and prints its output and any errors.
func (e *env) eval(s *session, input string) {
	out, res, err := s.submit(input)
	fmt.Fprint(e.stdout, out)
	switch {
	case err != nil:
		e.failure(err)
	case !res.OK():
		for _, d := range s.diagnostics(res) {
			fmt.Fprintf(e.stderr, "[ERROR] %s\n", d)
		}
	}
}

// handleReplCommand processes `lxg repl`.
func (e *env) cmdRepl(args []string) int {
	fs := e.newFlagSet("repl")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	fmt.Fprintln(e.stdout, "lxg "+version+" REPL (Ctrl+D or :quit to exit, :help for commands)")

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	histPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
	}
	defer func() {
		if histPath == "" {
			return
		}
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	s := &session{}
	for {
		input, ok := readInput(ln)
		if !ok {
			fmt.Fprintln(e.stdout)
			return exitOK
		}
		trimmed := strings.TrimSpace(input)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(input, "\n", " "))

		if strings.HasPrefix(trimmed, ":") {
			if !e.handleREPLCommand(s, trimmed) {
				return exitOK
			}
			continue
		}
		e.eval(s, input)
	}
}

// readInput reads one input, continuing across lines while it is an
// unfinished statement. Ctrl+C discards the pending input.
func readInput(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if strings.HasPrefix(strings.TrimSpace(b.String()), ":") || !incomplete(b.String()) {
			return b.String(), true
		}
	}
}
