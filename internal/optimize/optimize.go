// Package optimize applies local, provably-sound rewrites to a lowered
// IR module's function bodies before the assembler encodes them. Every
// rule preserves stack effect and observable semantics; none may change
// the set of trapping instructions or their relative order.
package optimize

import "github.com/glint-lang/glintc/internal/ir"

// Options configures the optimizer. Passes is the number of top-level
// sweeps over each function body; each sweep already chases every rule
// to a local fixed point at each position it visits, but a structural
// rewrite (stripping an empty block, say) can expose a new match at a
// position an earlier sweep already passed, so repeating the sweep a
// small fixed number of times catches those without the cost of a
// whole-module fixed-point loop.
type Options struct {
	Passes int

	// EnableTailCalls gates the call-then-return rewrite into the Wasm
	// tail-call proposal's return_call/return_call_indirect opcodes.
	// Off by default since not every Wasm host implements it.
	EnableTailCalls bool
}

func DefaultOptions() Options { return Options{Passes: 2} }

// Run rewrites every function body in mod in place.
func Run(mod *ir.Module, opts Options) {
	if opts.Passes <= 0 {
		opts.Passes = 1
	}
	for _, fn := range mod.Functions {
		if fn.Imported || fn.Body == nil {
			continue
		}
		for i := 0; i < opts.Passes; i++ {
			fn.Body = rewriteSeq(fn.Body, opts)
		}
	}
}
