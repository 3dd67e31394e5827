package main

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/lxg-lang/lxg/compiler"
	"github.com/lxg-lang/lxg/manifest"
)

// buildResult is the outcome for one source file. Module and Asm are the
// written paths, empty when the file had diagnostics.
type buildResult struct {
	Source string
	Result *compiler.Result
	Module string
	Asm    string
}

// buildOptions controls a multi-file build.
type buildOptions struct {
	Parallel int
	EmitAsm  bool
}

// handleBuildCommand processes `lxg build`.
// Usage:
//
//	lxg build                    # every source file of the project
//	lxg build -o bin a.lxg b.lxg # modules in ./bin
//	lxg build --emit-asm a.lxg   # also write a.lxgs
func (e *env) cmdBuild(args []string) int {
	fs := e.newFlagSet("build")
	output := fs.String("o", "", "Output directory for modules")
	emitAsm := fs.Bool("emit-asm", e.m.Build.EmitAsm, "Also write a disassembly listing per module")
	parallel := fs.Int("parallel", e.m.Build.Parallel, "Maximum concurrent compilations")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if *output != "" {
		abs, err := filepath.Abs(*output)
		if err != nil {
			return e.failure(err)
		}
		e.m.Build.Output = abs
	}

	files, err := e.inputFiles(fs.Args())
	if err != nil {
		return e.failure(err)
	}
	if len(files) == 0 {
		fmt.Fprintln(e.stderr, "Error: nothing to build")
		return exitUsage
	}

	results, err := buildFiles(context.Background(), e.m, files, buildOptions{
		Parallel: *parallel,
		EmitAsm:  *emitAsm,
	})
	if err != nil {
		return e.failure(err)
	}

	status := exitOK
	for _, r := range results {
		if code := e.report(r.Source, r.Result, len(files) > 1); code != exitOK {
			status = code
			continue
		}
		log.Infof("%s -> %s", r.Source, r.Module)
	}
	return status
}

// buildFiles compiles files concurrently and writes a module for each one
// that compiles cleanly. Diagnostics do not stop other files; an internal
// error or an I/O failure cancels the build. Results keep the input order.
func buildFiles(ctx context.Context, m *manifest.Manifest, files []string, opts buildOptions) ([]buildResult, error) {
	outputs := make(map[string]string, len(files))
	for _, src := range files {
		out := m.ModulePath(src)
		if prev, ok := outputs[out]; ok {
			return nil, fmt.Errorf("%s and %s both build to %s", prev, src, out)
		}
		outputs[out] = src
	}

	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = manifest.DefaultParallel
	}

	results := make([]buildResult, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i, src := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := compileFile(src)
			if err != nil {
				return fmt.Errorf("%s: %w", src, err)
			}
			r := buildResult{Source: src, Result: res}
			if res.OK() {
				r.Module = m.ModulePath(src)
				if err := writeFile(r.Module, res.Bytes); err != nil {
					return err
				}
				if opts.EmitAsm {
					r.Asm = m.AsmPath(src)
					if err := writeFile(r.Asm, []byte(res.Module.Disassemble())); err != nil {
						return err
					}
				}
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
