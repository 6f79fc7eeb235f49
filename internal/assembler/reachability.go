package assembler

import (
	"github.com/glint-lang/glintc/internal/ir"
	"github.com/glint-lang/glintc/internal/wasmspec"
)

// shake drops every host import whose (pre-shake) function index is
// never the target of a Call/ReturnCall anywhere in the module, then
// renumbers the survivors so imports occupy the low indices ahead of
// every module-defined function, per spec.md §4.4. Module-defined
// functions (built-ins included) are never dropped, only renumbered.
func shake(mod *ir.Module) error {
	referenced := make(map[uint32]bool)
	for _, fn := range mod.Functions {
		walkCalls(fn.Body, func(idx uint32) { referenced[idx] = true })
	}

	var keptImports, keptDefined []*ir.Function
	remap := make(map[uint32]uint32)
	next := uint32(0)

	for _, fn := range mod.Functions {
		if fn.Imported && !referenced[fn.Index] {
			continue
		}
		if fn.Imported {
			keptImports = append(keptImports, fn)
		} else {
			keptDefined = append(keptDefined, fn)
		}
	}
	for _, fn := range keptImports {
		remap[fn.Index] = next
		next++
	}
	for _, fn := range keptDefined {
		remap[fn.Index] = next
		next++
	}

	final := append(keptImports, keptDefined...)
	for _, fn := range final {
		rewriteCallTargets(fn.Body, remap)
	}
	for _, fn := range final {
		fn.Index = remap[fn.Index]
	}
	mod.Functions = final
	mod.MainIndex = remap[mod.MainIndex]

	return nil
}

// walkCalls visits every Call/ReturnCall/RefFunc instruction in seq,
// recursing into nested blocks, invoking visit with the function index
// each one targets. CallIndirect/ReturnCallIndirect are skipped: their
// operand is a closure arity and table index, never a function index.
func walkCalls(seq []ir.Instruction, visit func(idx uint32)) {
	for _, instr := range seq {
		switch instr.Op {
		case wasmspec.OpCall, wasmspec.OpReturnCall, wasmspec.OpRefFunc:
			if len(instr.Operands) > 0 {
				visit(uint32(instr.Operands[0]))
			}
		}
		for _, b := range instr.Blocks {
			walkCalls(b, visit)
		}
	}
}

// rewriteCallTargets mutates every Call/ReturnCall/RefFunc operand in
// seq in place from its pre-shake index to its post-shake index.
func rewriteCallTargets(seq []ir.Instruction, remap map[uint32]uint32) {
	for i := range seq {
		switch seq[i].Op {
		case wasmspec.OpCall, wasmspec.OpReturnCall, wasmspec.OpRefFunc:
			if len(seq[i].Operands) > 0 {
				seq[i].Operands[0] = int64(remap[uint32(seq[i].Operands[0])])
			}
		}
		for j := range seq[i].Blocks {
			rewriteCallTargets(seq[i].Blocks[j], remap)
		}
	}
}
