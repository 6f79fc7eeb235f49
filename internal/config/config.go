// Package config loads the compiler's process-wide configuration
// (spec.md §6) from CLI flags layered over environment variables. It is
// consumed only by cmd/glintc — the compiler core
// (pkg/compiler, internal/codegen, internal/optimize, internal/assembler,
// internal/analyzer) never imports this package, taking an explicit
// Options-shaped parameter instead, per the Design Note in spec.md §9
// preferring an explicitly passed context over ambient globals.
package config

import (
	"fmt"

	"github.com/mstoykov/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/guregu/null.v3"

	"github.com/glint-lang/glintc/internal/wasmspec"
)

// Options is the resolved, ready-to-use configuration for one compile.
type Options struct {
	// ValueType is the Wasm scalar type of the module's primary value
	// channel. "f64" (default) or "i32".
	ValueType string

	// PageSize is the number of extra 64KiB pages pkg/compiler adds to
	// the module's minimum memory size, on top of the pages the internal
	// allocators (the builtins heap, the string/literal data page) reserve.
	PageSize int

	// Closures enables the semantic analyzer's cross-function capture
	// support (heap-cell boxing for a variable a nested function reads
	// or writes). Default on.
	Closures bool

	// OptPasses is the peephole optimizer's sweep count.
	OptPasses int

	// TailCall gates the `call f; return` -> `return_call f` rewrite,
	// which requires a host runtime implementing the Wasm tail-call
	// proposal.
	TailCall bool
}

// Default returns spec.md §6's documented defaults.
func Default() Options {
	return Options{
		ValueType: "f64",
		PageSize:  1,
		Closures:  true,
		OptPasses: 2,
		TailCall:  false,
	}
}

// ValType maps Options.ValueType onto the wasmspec encoding, defaulting
// to F64 for any unrecognized string (the CLI flag/env value should
// already have been validated by Validate before this is called).
func (o Options) ValType() wasmspec.ValType {
	if o.ValueType == "i32" {
		return wasmspec.I32
	}
	return wasmspec.F64
}

// Validate rejects a configuration codegen cannot act on.
func (o Options) Validate() error {
	if o.ValueType != "f64" && o.ValueType != "i32" {
		return fmt.Errorf("config: value-type must be %q or %q, got %q", "f64", "i32", o.ValueType)
	}
	if o.PageSize < 1 {
		return fmt.Errorf("config: page-size must be >= 1, got %d", o.PageSize)
	}
	if o.OptPasses < 0 {
		return fmt.Errorf("config: opt-passes must be >= 0, got %d", o.OptPasses)
	}
	return nil
}

// envOptions mirrors Options with nullable fields, so envconfig.Process
// only overrides a default when the corresponding GLINTC_* variable is
// actually set — the same null.v3-backed pattern the k6 examples in the
// retrieval pack use for their own layered config (env under explicit
// flags).
type envOptions struct {
	ValueType null.String `envconfig:"GLINTC_VALUE_TYPE"`
	PageSize  null.Int    `envconfig:"GLINTC_PAGE_SIZE"`
	Closures  null.Bool   `envconfig:"GLINTC_CLOSURES"`
	OptPasses null.Int    `envconfig:"GLINTC_OPT_PASSES"`
	TailCall  null.Bool   `envconfig:"GLINTC_TAIL_CALL"`
}

// RegisterFlags adds the flag set cmd/glintc binds to Load's flags
// argument. Flags default to "unset" (pflag's own zero values), so
// Load can tell a flag the user actually passed from one left at its
// zero value: it only consults flags.Changed(name).
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("value-type", "", `primary Wasm scalar type: "f64" or "i32"`)
	flags.Int("page-size", 0, "extra linear-memory pages beyond those internal allocators reserve")
	flags.Bool("closures", true, "allow nested functions to capture enclosing-scope variables")
	flags.Int("opt-passes", -1, "peephole optimizer sweep count")
	flags.Bool("tail-call", false, "rewrite call+return into a Wasm tail call")
}

// Load resolves Options starting from Default, applying any GLINTC_*
// environment variables, then any flags the caller actually passed on
// flags — flags take precedence, matching spec.md §9's Design Note that
// treats configuration as explicit and layered rather than ambient.
func Load(flags *pflag.FlagSet) (Options, error) {
	opts := Default()

	var env envOptions
	if err := envconfig.Process("", &env); err != nil {
		return opts, fmt.Errorf("config: reading environment: %w", err)
	}
	if env.ValueType.Valid {
		opts.ValueType = env.ValueType.String
	}
	if env.PageSize.Valid {
		opts.PageSize = int(env.PageSize.Int64)
	}
	if env.Closures.Valid {
		opts.Closures = env.Closures.Bool
	}
	if env.OptPasses.Valid {
		opts.OptPasses = int(env.OptPasses.Int64)
	}
	if env.TailCall.Valid {
		opts.TailCall = env.TailCall.Bool
	}

	if flags != nil {
		if flags.Changed("value-type") {
			opts.ValueType, _ = flags.GetString("value-type")
		}
		if flags.Changed("page-size") {
			opts.PageSize, _ = flags.GetInt("page-size")
		}
		if flags.Changed("closures") {
			opts.Closures, _ = flags.GetBool("closures")
		}
		if flags.Changed("opt-passes") {
			opts.OptPasses, _ = flags.GetInt("opt-passes")
		}
		if flags.Changed("tail-call") {
			opts.TailCall, _ = flags.GetBool("tail-call")
		}
	}

	return opts, opts.Validate()
}
