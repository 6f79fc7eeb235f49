package assembler

import (
	"github.com/glint-lang/glintc/internal/diagnostics"
	"github.com/glint-lang/glintc/internal/ir"
)

// resolveDeferred walks every function body, recursing into nested
// blocks, and replaces each Deferred instruction with the concrete
// instruction its Resolve callback produces. Must run after shake, since
// a resolver like ir.DeferredFuncIndex reads the target function's final,
// post-renumbering index. Fails with UnresolvedReferenceError if a
// Deferred instruction has no resolver — spec.md §4.4 calls this a
// generator bug, not a recoverable condition.
func resolveDeferred(mod *ir.Module) error {
	for _, fn := range mod.Functions {
		resolved, err := resolveSeq(fn.Body, fn.Index)
		if err != nil {
			return err
		}
		fn.Body = resolved
	}
	return nil
}

func resolveSeq(seq []ir.Instruction, ownerIndex uint32) ([]ir.Instruction, error) {
	for i := range seq {
		if seq[i].Deferred {
			if seq[i].Resolve == nil {
				return nil, diagnostics.NewUnresolvedReferenceError(diagnostics.Position{}, "<deferred instruction>")
			}
			seq[i] = seq[i].Resolve(ownerIndex)
		}
		for j := range seq[i].Blocks {
			resolved, err := resolveSeq(seq[i].Blocks[j], ownerIndex)
			if err != nil {
				return nil, err
			}
			seq[i].Blocks[j] = resolved
		}
	}
	return seq, nil
}
