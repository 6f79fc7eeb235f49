package optimize

import (
	"math"

	"github.com/glint-lang/glintc/internal/ir"
	"github.com/glint-lang/glintc/internal/wasmspec"
)

// rewriteSeq rewrites one flat instruction list, recursing into every
// nested block first so inner simplifications are visible to outer ones
// (an inner rewrite can empty a block that an outer rule then strips).
func rewriteSeq(seq []ir.Instruction, opts Options) []ir.Instruction {
	var out []ir.Instruction
	for _, instr := range seq {
		instr = descend(instr, opts)
		if isEmptyVoidBlock(instr) {
			continue
		}
		out = appendCollapsing(out, instr, opts)
	}
	out = demoteDeadLocalStores(out)
	return compactPass(out, opts)
}

// descend recursively rewrites every nested instruction list a
// control-flow instruction carries (block/loop/if/try bodies).
func descend(instr ir.Instruction, opts Options) ir.Instruction {
	if len(instr.Blocks) == 0 {
		return instr
	}
	blocks := make([][]ir.Instruction, len(instr.Blocks))
	for i, b := range instr.Blocks {
		blocks[i] = rewriteSeq(b, opts)
	}
	instr.Blocks = blocks
	return instr
}

func isEmptyVoidBlock(instr ir.Instruction) bool {
	return instr.Op == wasmspec.OpBlock &&
		len(instr.Operands) > 0 && instr.Operands[0] == int64(wasmspec.BlockVoid) &&
		len(instr.Blocks) == 1 && len(instr.Blocks[0]) == 0
}

// appendCollapsing appends instr to out, then repeatedly tries every
// tail-pair rule at the new end of out until none apply — this is the
// "fixed point within the pass" at a single position: a rewrite can
// expose another rewrite at the same spot (e.g. a folded constant
// immediately followed by an existing drop).
func appendCollapsing(out []ir.Instruction, instr ir.Instruction, opts Options) []ir.Instruction {
	out = append(out, instr)
	for {
		collapsed, changed := tryCollapseTail(out, opts)
		if !changed {
			return out
		}
		out = collapsed
	}
}

// compactPass re-runs the tail-collapse rules over an already-built
// sequence, needed after demoteDeadLocalStores rewrites an interior
// instruction in place (turning a local.set into a drop can newly
// match the "<const>; drop" rule against whatever preceded it).
func compactPass(in []ir.Instruction, opts Options) []ir.Instruction {
	var out []ir.Instruction
	for _, instr := range in {
		out = appendCollapsing(out, instr, opts)
	}
	return out
}

func isConstOp(op wasmspec.Op) bool {
	switch op {
	case wasmspec.OpI32Const, wasmspec.OpI64Const, wasmspec.OpF32Const, wasmspec.OpF64Const:
		return true
	default:
		return false
	}
}

// tryCollapseTail inspects the last one or two instructions of out and
// replaces them with an equivalent shorter or more canonical form when a
// rule matches. Returns the unchanged slice and false when nothing
// matches.
func tryCollapseTail(out []ir.Instruction, opts Options) ([]ir.Instruction, bool) {
	n := len(out)
	if n < 2 {
		return out, false
	}
	a, b := out[n-2], out[n-1]
	head := out[:n-2]

	switch {
	// local.set k; local.get k -> local.tee k (redundant reload)
	case a.Op == wasmspec.OpLocalSet && b.Op == wasmspec.OpLocalGet && a.Operands[0] == b.Operands[0]:
		return append(head, ir.LocalTee(uint32(a.Operands[0]))), true

	// local.get k; drop -> nothing (dead load)
	case a.Op == wasmspec.OpLocalGet && b.Op == wasmspec.OpDrop:
		return head, true

	// local.tee k; drop -> local.set k (tee's repushed value is unused)
	case a.Op == wasmspec.OpLocalTee && b.Op == wasmspec.OpDrop:
		return append(head, ir.LocalSet(uint32(a.Operands[0]))), true

	// local.tee k; local.set k -> local.set k (the repushed value is
	// immediately stored back into the same local unchanged)
	case a.Op == wasmspec.OpLocalTee && b.Op == wasmspec.OpLocalSet && a.Operands[0] == b.Operands[0]:
		return append(head, ir.LocalSet(uint32(a.Operands[0]))), true

	// <const>; drop -> nothing (dead literal)
	case isConstOp(a.Op) && b.Op == wasmspec.OpDrop:
		return head, true

	// i32.const 0; i32.eq -> i32.eqz (idiom canonicalization)
	case a.Op == wasmspec.OpI32Const && a.Operands[0] == 0 && b.Op == wasmspec.OpI32Eq:
		return append(head, ir.Plain(wasmspec.OpI32Eqz)), true

	// i64.extend_i32_{s,u}; i32.wrap_i64 -> nothing (identity round trip)
	case (a.Op == wasmspec.OpI64ExtendI32S || a.Op == wasmspec.OpI64ExtendI32U) && b.Op == wasmspec.OpI32WrapI64:
		return head, true

	// f64.promote_f32; f32.demote_f64 -> nothing (identity round trip)
	case a.Op == wasmspec.OpF64PromoteF32 && b.Op == wasmspec.OpF32DemoteF64:
		return head, true

	// f64.const c; i32.trunc_f64_s -> i32.const trunc(c) (constant fold),
	// only for an in-range c: a NaN or out-of-range c traps and is kept
	case a.Op == wasmspec.OpF64Const && b.Op == wasmspec.OpI32TruncF64S && a.Float > -2147483649 && a.Float < 2147483648:
		return append(head, ir.I32Const(int32(math.Trunc(a.Float)))), true

	// f64.const c; i32.trunc_f64_u -> i32.const trunc(c), same range rule
	case a.Op == wasmspec.OpF64Const && b.Op == wasmspec.OpI32TruncF64U && a.Float > -1 && a.Float < 4294967296:
		return append(head, ir.I32Const(int32(uint32(math.Trunc(a.Float))))), true
	}

	if opts.EnableTailCalls {
		switch {
		case a.Op == wasmspec.OpCall && b.Op == wasmspec.OpReturn:
			return append(head, ir.ReturnCall(uint32(a.Operands[0]))), true
		case a.Op == wasmspec.OpCallIndirect && b.Op == wasmspec.OpReturn:
			return append(head, ir.ReturnCallIndirect(uint32(a.Operands[0]))), true
		}
	}

	return out, false
}

// demoteDeadLocalStores finds a local.set whose value is never read
// before the same local is set again, and turns the earlier set into a
// drop: the store's only other effect is popping its operand, which a
// drop does identically, so the rewrite is safe even though a plain
// "no later read" store can't simply be removed (its operand may still
// need to come off the stack). Crossing into any nested block, loop,
// if, or try, or past a branch, call or throw (whose target or handler
// may read the local), invalidates every pending candidate, since this
// pass never looks elsewhere to rule out a read — a conservative
// approximation, not a full liveness analysis.
func demoteDeadLocalStores(seq []ir.Instruction) []ir.Instruction {
	pending := make(map[int64]int)
	for i := range seq {
		instr := seq[i]
		switch {
		case instr.Op == wasmspec.OpLocalSet:
			idx := instr.Operands[0]
			if prior, ok := pending[idx]; ok {
				seq[prior] = ir.Plain(wasmspec.OpDrop)
			}
			pending[idx] = i
		case instr.Op == wasmspec.OpLocalGet || instr.Op == wasmspec.OpLocalTee:
			delete(pending, instr.Operands[0])
		case len(instr.Blocks) > 0,
			instr.Op == wasmspec.OpBr, instr.Op == wasmspec.OpBrIf, instr.Op == wasmspec.OpBrTable,
			instr.Op == wasmspec.OpCall, instr.Op == wasmspec.OpCallIndirect,
			instr.Op == wasmspec.OpThrow, instr.Op == wasmspec.OpRethrow:
			pending = make(map[int64]int)
		}
	}
	return seq
}
