// Package conformance runs YAML-described lxg programs through the whole
// pipeline: compile, serialize, load, verify and execute.
package conformance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/lxg-lang/lxg/compiler"
	"github.com/lxg-lang/lxg/pkg/bytecode"
)

// TestResult represents the outcome of running a single test
type TestResult struct {
	Test       LoadedTest
	Passed     bool
	Skipped    bool
	SkipReason string
	Error      error
}

// Runner executes conformance tests. Each test compiles with fresh
// compiler components, so tests may run concurrently.
type Runner struct {
	// Parallel bounds concurrent tests; values below 1 mean one at a time.
	Parallel int
}

// NewRunner creates a runner executing up to parallel tests at once.
func NewRunner(parallel int) *Runner {
	return &Runner{Parallel: parallel}
}

// Run executes a single test case
func (r *Runner) Run(test LoadedTest) TestResult {
	if skipped, reason := test.Test.IsSkipped(); skipped {
		return TestResult{Test: test, Skipped: true, SkipReason: reason}
	}
	err := check(test.Test)
	return TestResult{Test: test, Passed: err == nil, Error: err}
}

// RunAll runs every test and returns the results in input order.
func (r *Runner) RunAll(ctx context.Context, tests []LoadedTest) ([]TestResult, error) {
	results := make([]TestResult, len(tests))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.Parallel, 1))
	for i, test := range tests {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = r.Run(test)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// SummaryStats computes statistics from test results
type SummaryStats struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// ComputeStats generates statistics from test results
func ComputeStats(results []TestResult) SummaryStats {
	stats := SummaryStats{Total: len(results)}
	for _, r := range results {
		if r.Skipped {
			stats.Skipped++
		} else if r.Passed {
			stats.Passed++
		} else {
			stats.Failed++
		}
	}
	return stats
}

// FormatStats returns a human-readable summary
func FormatStats(stats SummaryStats) string {
	return fmt.Sprintf("%d passed, %d failed, %d skipped (%d total)",
		stats.Passed, stats.Failed, stats.Skipped, stats.Total)
}

// check runs one program and compares it with its expectation.
func check(tc TestCase) error {
	expect := tc.Expect

	res, err := compiler.CompileSource(tc.Source)
	if err != nil {
		return fmt.Errorf("internal compiler error: %w", err)
	}

	if len(expect.Diagnostics) > 0 {
		if res.OK() {
			return fmt.Errorf("expected %d diagnostics, program compiled", len(expect.Diagnostics))
		}
		return matchDiagnostics(res.Diagnostics.Errors(), expect.Diagnostics)
	}
	if !res.OK() {
		return fmt.Errorf("unexpected diagnostics: %s", strings.Join(res.Diagnostics.Errors(), "; "))
	}

	mod, err := bytecode.Load(res.Bytes)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	var out bytes.Buffer
	runErr := bytecode.NewVM(&out).Run(mod)

	if expect.RuntimeError != "" {
		var rerr *bytecode.RuntimeError
		if !errors.As(runErr, &rerr) {
			return fmt.Errorf("expected runtime error %q, got %v", expect.RuntimeError, runErr)
		}
		if !strings.Contains(rerr.Error(), expect.RuntimeError) {
			return fmt.Errorf("expected runtime error %q, got %q", expect.RuntimeError, rerr.Error())
		}
	} else if runErr != nil {
		return fmt.Errorf("unexpected runtime error: %w", runErr)
	}

	if expect.Stdout != nil && out.String() != *expect.Stdout {
		return fmt.Errorf("stdout = %q, want %q", out.String(), *expect.Stdout)
	}
	return nil
}

func matchDiagnostics(got, want []string) error {
	if len(got) != len(want) {
		return fmt.Errorf("got %d diagnostics, want %d: %s", len(got), len(want), strings.Join(got, "; "))
	}
	for i := range want {
		if !strings.Contains(got[i], want[i]) {
			return fmt.Errorf("diagnostic %d = %q, want it to contain %q", i, got[i], want[i])
		}
	}
	return nil
}
