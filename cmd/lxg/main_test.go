package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lxg-lang/lxg/manifest"
	"github.com/lxg-lang/lxg/pkg/bytecode"
)

// lxg runs the CLI in-process and returns its exit code and output.
func lxg(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeSource(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "main.lxg", `let a = 6; let b = 7; print a * b; print "done";`)

	code, stdout, stderr := lxg(t, "--no-manifest", "run", path)
	if code != exitOK {
		t.Fatalf("exit = %d, stderr = %s", code, stderr)
	}
	if stdout != "42\ndone\n" {
		t.Errorf("stdout = %q, want %q", stdout, "42\ndone\n")
	}
}

func TestExitCodes(t *testing.T) {
	dir := t.TempDir()
	bad := writeSource(t, dir, "bad.lxg", `print x;`)
	syntax := writeSource(t, dir, "syntax.lxg", `print 1`)
	divide := writeSource(t, dir, "divide.lxg", "print 1;\nprint 1 / 0;")

	tests := []struct {
		name   string
		args   []string
		code   int
		stderr string
	}{
		{"type error", []string{"run", bad}, exitDiagnostics, "[ERROR] unknown variable: x at 1:7\n"},
		{"syntax error", []string{"run", syntax}, exitDiagnostics, "[ERROR] syntax error: expected ';' after print statement, found end of input at 1:8\n"},
		{"runtime error", []string{"run", divide}, exitRuntime, "[RUNTIME] runtime error: division by zero at 2:7\n"},
		{"unknown command", []string{"frobnicate"}, exitUsage, `lxg: unknown command "frobnicate"`},
		{"no command", nil, exitUsage, "Usage: lxg"},
		{"missing file", []string{"run", filepath.Join(dir, "nope.lxg")}, exitUsage, "cannot read"},
		{"bad flag", []string{"run", "--bogus", bad}, exitUsage, "flag provided but not defined"},
		{"too many args", []string{"disasm", bad, bad}, exitUsage, "Usage: lxg disasm"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, _, stderr := lxg(t, append([]string{"--no-manifest"}, tc.args...)...)
			if code != tc.code {
				t.Errorf("exit = %d, want %d (stderr %q)", code, tc.code, stderr)
			}
			if !strings.Contains(stderr, tc.stderr) {
				t.Errorf("stderr = %q, want it to contain %q", stderr, tc.stderr)
			}
		})
	}
}

func TestRunKeepsOutputBeforeRuntimeError(t *testing.T) {
	path := writeSource(t, t.TempDir(), "main.lxg", "print 1;\nlet z = 0;\nprint 10 / z;\nprint 2;")
	code, stdout, _ := lxg(t, "--no-manifest", "run", path)
	if code != exitRuntime {
		t.Errorf("exit = %d, want %d", code, exitRuntime)
	}
	if stdout != "1\n" {
		t.Errorf("stdout = %q, want %q", stdout, "1\n")
	}
}

func TestRunDumps(t *testing.T) {
	path := writeSource(t, t.TempDir(), "main.lxg", `let x = 1 + 2; print x;`)
	code, stdout, stderr := lxg(t, "--no-manifest", "run", "--dump-tokens", "--dump-ast", path)
	if code != exitOK {
		t.Fatalf("exit = %d, stderr = %s", code, stderr)
	}
	if !strings.HasPrefix(stdout, "1:1") {
		t.Errorf("token dump missing:\n%s", stdout)
	}
	if !strings.Contains(stdout, "Let x = (1 + 2)\nPrint x\n") {
		t.Errorf("AST dump missing:\n%s", stdout)
	}
	if !strings.HasSuffix(stdout, "\n3\n") {
		t.Errorf("program output missing:\n%s", stdout)
	}
}

func TestRunEmit(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "main.lxg", `print "emitted";`)
	mod := filepath.Join(dir, "nested", "main.lxgm")

	if code, _, stderr := lxg(t, "--no-manifest", "run", "--emit="+mod, path); code != exitOK {
		t.Fatalf("run exit = %d, stderr = %s", code, stderr)
	}
	code, stdout, stderr := lxg(t, "--no-manifest", "exec", mod)
	if code != exitOK {
		t.Fatalf("exec exit = %d, stderr = %s", code, stderr)
	}
	if stdout != "emitted\n" {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestCheckCommand(t *testing.T) {
	dir := t.TempDir()
	good := writeSource(t, dir, "good.lxg", `let a = 1; print a;`)
	bad := writeSource(t, dir, "bad.lxg", `let a = 1; a = true;`)

	code, stdout, stderr := lxg(t, "--no-manifest", "check", good)
	if code != exitOK || stdout != "" || stderr != "" {
		t.Errorf("check good = %d %q %q, want a silent success", code, stdout, stderr)
	}

	code, _, stderr = lxg(t, "--no-manifest", "check", good, bad)
	if code != exitDiagnostics {
		t.Errorf("exit = %d, want %d", code, exitDiagnostics)
	}
	want := "[ERROR] " + bad + ": type mismatch for variable 'a': expected INT, got BOOLEAN at 1:16\n"
	if stderr != want {
		t.Errorf("stderr = %q, want %q", stderr, want)
	}
}

func TestBuildAndExec(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.lxg", `print "a";`)
	b := writeSource(t, dir, "src/b.lxg", `let n = 40; print n + 2;`)
	out := filepath.Join(dir, "bin")

	code, _, stderr := lxg(t, "--no-manifest", "build", "-o", out, "--emit-asm", a, b)
	if code != exitOK {
		t.Fatalf("build exit = %d, stderr = %s", code, stderr)
	}

	for _, name := range []string{"a.lxgm", "a.lxgs", "b.lxgm", "b.lxgs"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	asm, err := os.ReadFile(filepath.Join(out, "b.lxgs"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(asm), "RETURN") {
		t.Errorf("listing has no RETURN:\n%s", asm)
	}

	code, stdout, stderr := lxg(t, "--no-manifest", "exec", filepath.Join(out, "b.lxgm"))
	if code != exitOK {
		t.Fatalf("exec exit = %d, stderr = %s", code, stderr)
	}
	if stdout != "42\n" {
		t.Errorf("stdout = %q, want %q", stdout, "42\n")
	}
}

func TestBuildContinuesPastDiagnostics(t *testing.T) {
	dir := t.TempDir()
	good := writeSource(t, dir, "good.lxg", `print 1;`)
	bad := writeSource(t, dir, "bad.lxg", `print missing;`)
	out := filepath.Join(dir, "out")

	code, _, stderr := lxg(t, "--no-manifest", "build", "-o", out, bad, good)
	if code != exitDiagnostics {
		t.Errorf("exit = %d, want %d", code, exitDiagnostics)
	}
	if !strings.Contains(stderr, bad+": unknown variable: missing at 1:7") {
		t.Errorf("stderr = %q", stderr)
	}
	if _, err := os.Stat(filepath.Join(out, "good.lxgm")); err != nil {
		t.Errorf("good module not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "bad.lxgm")); err == nil {
		t.Error("module written for a file with diagnostics")
	}
}

func TestBuildFilesKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	m := manifest.Default()
	m.Build.Output = filepath.Join(dir, "out")

	var files []string
	for _, name := range []string{"e", "d", "c", "b", "a"} {
		files = append(files, writeSource(t, dir, name+".lxg", `print "`+name+`";`))
	}

	results, err := buildFiles(context.Background(), m, files, buildOptions{Parallel: 2})
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range results {
		if r.Source != files[i] {
			t.Errorf("results[%d] = %s, want %s", i, r.Source, files[i])
		}
		if r.Module != m.ModulePath(files[i]) || r.Asm != "" {
			t.Errorf("results[%d] paths = %q %q", i, r.Module, r.Asm)
		}
	}
}

func TestBuildFilesOutputCollision(t *testing.T) {
	dir := t.TempDir()
	m := manifest.Default()
	m.Build.Output = filepath.Join(dir, "out")
	one := writeSource(t, dir, "one/main.lxg", `print 1;`)
	two := writeSource(t, dir, "two/main.lxg", `print 2;`)

	_, err := buildFiles(context.Background(), m, []string{one, two}, buildOptions{})
	if err == nil || !strings.Contains(err.Error(), "both build to") {
		t.Errorf("err = %v, want an output collision", err)
	}
}

func TestProjectManifest(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, manifest.FileName, `[project]
name = "demo"
entry = "src/main.lxg"
sources = ["src"]

[build]
output = "target"
emit-asm = true
`)
	writeSource(t, dir, "src/main.lxg", `print "from entry";`)
	writeSource(t, dir, "src/util.lxg", `print 2;`)
	t.Chdir(filepath.Join(dir, "src"))

	code, stdout, stderr := lxg(t, "run")
	if code != exitOK {
		t.Fatalf("run exit = %d, stderr = %s", code, stderr)
	}
	if stdout != "from entry\n" {
		t.Errorf("stdout = %q", stdout)
	}

	if code, _, stderr := lxg(t, "build"); code != exitOK {
		t.Fatalf("build exit = %d, stderr = %s", code, stderr)
	}
	for _, name := range []string{"main.lxgm", "main.lxgs", "util.lxgm", "util.lxgs"} {
		if _, err := os.Stat(filepath.Join(dir, "target", name)); err != nil {
			t.Errorf("missing target/%s: %v", name, err)
		}
	}

	// The manifest is ignored on request; no entry means a usage error.
	if code, _, _ := lxg(t, "--no-manifest", "run"); code != exitUsage {
		t.Errorf("run --no-manifest exit = %d, want %d", code, exitUsage)
	}
}

func TestProjectManifestInvalid(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, manifest.FileName, "[project]\nbogus = 1\n")
	t.Chdir(dir)

	code, _, stderr := lxg(t, "version")
	if code != exitUsage || !strings.Contains(stderr, "unknown keys") {
		t.Errorf("exit = %d stderr = %q, want a manifest error", code, stderr)
	}
}

func TestDisasmCommand(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "main.lxg", `let x = 5; if (x > 2) { print x; }`)
	mod := filepath.Join(dir, "main.lxgm")
	if code, _, stderr := lxg(t, "--no-manifest", "run", "--emit="+mod, src); code != exitOK {
		t.Fatalf("run exit = %d, stderr = %s", code, stderr)
	}

	code, fromSource, stderr := lxg(t, "--no-manifest", "disasm", src)
	if code != exitOK {
		t.Fatalf("disasm source exit = %d, stderr = %s", code, stderr)
	}
	code, fromModule, stderr := lxg(t, "--no-manifest", "disasm", mod)
	if code != exitOK {
		t.Fatalf("disasm module exit = %d, stderr = %s", code, stderr)
	}
	if fromSource != fromModule {
		t.Errorf("listings differ:\n%s\nvs\n%s", fromSource, fromModule)
	}
	if !strings.Contains(fromSource, "IF_ICMPGT") {
		t.Errorf("listing has no comparison jump:\n%s", fromSource)
	}
}

func TestExecRejectsInvalidModule(t *testing.T) {
	path := writeSource(t, t.TempDir(), "junk.lxgm", "not a module")
	code, _, stderr := lxg(t, "--no-manifest", "exec", path)
	if code != exitDiagnostics {
		t.Errorf("exit = %d, want %d", code, exitDiagnostics)
	}
	if !strings.Contains(stderr, "invalid module") {
		t.Errorf("stderr = %q", stderr)
	}
}

// ---------------------------------------------------------------------------
// REPL session
// ---------------------------------------------------------------------------

func TestSessionShowsOnlyNewOutput(t *testing.T) {
	s := &session{}
	steps := []struct {
		input string
		want  string
	}{
		{`let x = 1;`, ""},
		{`print x;`, "1\n"},
		{`x = x + 41;`, ""},
		{`print x; print "again";`, "42\nagain\n"},
	}
	for _, step := range steps {
		out, res, err := s.submit(step.input)
		if err != nil || !res.OK() {
			t.Fatalf("submit(%q): %v %v", step.input, err, res.Diagnostics.Errors())
		}
		if out != step.want {
			t.Errorf("submit(%q) = %q, want %q", step.input, out, step.want)
		}
	}
	if s.lines != len(steps) {
		t.Errorf("lines = %d, want %d", s.lines, len(steps))
	}
}

func TestSessionDiscardsRejectedInput(t *testing.T) {
	s := &session{}
	if _, _, err := s.submit("let x = 1;\nlet y = 2;"); err != nil {
		t.Fatal(err)
	}

	_, res, err := s.submit(`print nope;`)
	if err != nil {
		t.Fatal(err)
	}
	if res.OK() {
		t.Fatal("undeclared variable accepted")
	}
	if got := s.diagnostics(res); len(got) != 1 || got[0] != "unknown variable: nope at 1:7" {
		t.Errorf("diagnostics = %v, want position relative to the input", got)
	}

	out, _, err := s.submit(`print 1 / 0;`)
	var rerr *bytecode.RuntimeError
	if !errors.As(err, &rerr) {
		t.Fatalf("err = %v, want a runtime error", err)
	}
	if rerr.Line != 1 || rerr.Column != 7 {
		t.Errorf("runtime error at %d:%d, want 1:7", rerr.Line, rerr.Column)
	}
	if out != "" {
		t.Errorf("out = %q", out)
	}

	// Neither rejected input became part of the session.
	out, res, err = s.submit(`print x + y;`)
	if err != nil || !res.OK() {
		t.Fatalf("submit: %v", err)
	}
	if out != "3\n" {
		t.Errorf("out = %q, want %q", out, "3\n")
	}
}

func TestSessionReset(t *testing.T) {
	s := &session{}
	if _, _, err := s.submit(`let x = 1;`); err != nil {
		t.Fatal(err)
	}
	s.reset()
	if _, res, _ := s.submit(`print x;`); res.OK() {
		t.Error("variable survived reset")
	}
	if _, res, _ := s.submit(`let x = "fresh"; print x;`); !res.OK() {
		t.Errorf("redeclaring after reset: %v", res.Diagnostics.Errors())
	}
}

func TestREPLCommands(t *testing.T) {
	var stdout bytes.Buffer
	e := &env{m: manifest.Default(), stdout: &stdout, stderr: &stdout}
	s := &session{}
	e.eval(s, `let a = 2; print a;`)

	tests := []struct {
		cmd  string
		want string
	}{
		{":ast", "Let a = 2\nPrint a\n"},
		{":asm", "RETURN"},
		{":help", ":reset"},
		{":nope", "Unknown command: :nope"},
	}
	for _, tc := range tests {
		stdout.Reset()
		if !e.handleREPLCommand(s, tc.cmd) {
			t.Errorf("%s ended the REPL", tc.cmd)
		}
		if !strings.Contains(stdout.String(), tc.want) {
			t.Errorf("%s printed %q, want it to contain %q", tc.cmd, stdout.String(), tc.want)
		}
	}

	if e.handleREPLCommand(s, ":quit") {
		t.Error(":quit did not end the REPL")
	}
}

func TestIncomplete(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{`print 1;`, false},
		{`print 1`, true},
		{`if (true) {`, true},
		{"if (true) {\n print 1;\n}", false},
		{`let x =`, true},
		{`print );`, false},
		{``, false},
	}
	for _, tc := range tests {
		if got := incomplete(tc.input); got != tc.want {
			t.Errorf("incomplete(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}
