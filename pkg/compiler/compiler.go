// Package compiler wires the frontend, semantic analyzer, code
// generator, peephole optimizer and assembler into the single Compile
// entry point every driver (cmd/glintc, tests, or an embedder) calls.
// It takes an explicit Options value rather than reading configuration
// itself; internal/config is what turns environment variables and CLI
// flags into that value.
package compiler

import (
	"time"

	"github.com/glint-lang/glintc/internal/analyzer"
	"github.com/glint-lang/glintc/internal/assembler"
	"github.com/glint-lang/glintc/internal/codegen"
	"github.com/glint-lang/glintc/internal/frontend"
	"github.com/glint-lang/glintc/internal/ir"
	"github.com/glint-lang/glintc/internal/optimize"
	"github.com/glint-lang/glintc/internal/wasmspec"
)

// Options is the subset of spec.md §6's configuration the compiler core
// itself acts on, plus the module name. internal/config.Options is the
// CLI-facing counterpart; cmd/glintc maps its fields onto this struct
// and takes ModuleName from the input path.
type Options struct {
	ValueType  wasmspec.ValType
	PageSize   uint32
	Closures   bool
	OptPasses  int
	TailCall   bool
	ModuleName string
}

// DefaultOptions mirrors internal/config.Default, expressed in the
// compiler core's own vocabulary.
func DefaultOptions() Options {
	return Options{
		ValueType: wasmspec.F64,
		PageSize:  1,
		Closures:  true,
		OptPasses: 2,
	}
}

// Timings is the per-stage wall-clock breakdown spec.md §7 promises.
// Lexing is fused into the recursive-descent parser as a single pass,
// so Tokenize is always zero; it is kept as its own field so a future
// frontend that does lex and parse as separate passes has somewhere to
// report it without changing this struct's shape.
type Timings struct {
	Tokenize time.Duration
	Parse    time.Duration
	Analyze  time.Duration
	Generate time.Duration
	Optimize time.Duration
	Assemble time.Duration
}

// Total sums every stage.
func (t Timings) Total() time.Duration {
	return t.Tokenize + t.Parse + t.Analyze + t.Generate + t.Optimize + t.Assemble
}

// Compile runs one source file through every stage and returns the
// encoded Wasm binary. It stops at the first diagnostic any stage
// raises, per spec.md §7's abort-on-first-error policy; Timings still
// reports the stages that ran before the failure.
func Compile(file, src string, opts Options) ([]byte, Timings, error) {
	var t Timings

	start := time.Now()
	prog, err := frontend.Parse(file, src)
	t.Parse = time.Since(start)
	if err != nil {
		return nil, t, err
	}

	start = time.Now()
	res, err := analyzer.Analyze(prog, analyzer.Options{EnableClosures: opts.Closures})
	t.Analyze = time.Since(start)
	if err != nil {
		return nil, t, err
	}

	bc := ir.NewBuildContext()
	start = time.Now()
	main, err := codegen.Generate(bc, prog, res, codegen.Options{ValueType: opts.ValueType})
	t.Generate = time.Since(start)
	if err != nil {
		return nil, t, err
	}
	bc.Module.MainIndex = main.Index

	sizePages(bc.Module, opts.PageSize)

	start = time.Now()
	optimize.Run(bc.Module, optimize.Options{
		Passes:          opts.OptPasses,
		EnableTailCalls: opts.TailCall,
	})
	t.Optimize = time.Since(start)

	start = time.Now()
	bin, err := assembler.Encode(bc.Module, assembler.Options{
		ValueType:  opts.ValueType,
		ModuleName: opts.ModuleName,
	})
	t.Assemble = time.Since(start)
	if err != nil {
		return nil, t, err
	}

	return bin, t, nil
}

// sizePages sets the module's minimum linear-memory size to the pages
// the generator and its built-ins registry reserved, plus growHint extra
// pages. The alloc built-in only bumps a pointer and never executes
// memory.grow, so memory does not grow past this minimum at run time;
// no maximum is declared (MemoryMaxPages stays 0).
func sizePages(mod *ir.Module, growHint uint32) {
	var total uint32
	for _, p := range mod.Pages {
		total += p.PageCount
	}
	mod.MemoryMinPages = total + growHint
}
