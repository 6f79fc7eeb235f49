package codegen

import (
	"github.com/glint-lang/glintc/internal/ir"
	"github.com/glint-lang/glintc/internal/types"
	"github.com/glint-lang/glintc/internal/wasmspec"
)

// pushClosureValue builds a 2-word heap record [funcIndex, envPtr] for
// info and leaves it on the stack as a boxed (value, tag) pair with
// tag Function. When info captures nothing, envPtr is the sentinel 0.
// The heap page is the first page reserved, so 0 is also a valid heap
// address; this is harmless because a function with no free variables
// never reads its envPtr.
func (fg *funcGen) pushClosureValue(info *funcInfo) []ir.Instruction {
	recIdx := fg.newLocal(wasmspec.I32, "closure")
	out := append([]ir.Instruction{}, fg.callAlloc(closureSize)...)
	out = append(out, ir.LocalSet(recIdx))
	out = append(out,
		ir.LocalGet(recIdx), ir.DeferredFuncIndex(info.fn), ir.Mem(wasmspec.OpI32Store, 2, 0),
	)
	out = append(out, fg.buildEnvPtr(info.freeVars)...)
	envIdx := fg.newLocal(wasmspec.I32, "env")
	out = append(out, ir.LocalSet(envIdx))
	out = append(out, ir.LocalGet(recIdx), ir.LocalGet(envIdx), ir.Mem(wasmspec.OpI32Store, 2, 4))
	out = append(out,
		ir.LocalGet(recIdx), ir.Plain(wasmspec.OpF64ConvertI32U),
		ir.I32Const(int32(types.Function)),
	)
	return out
}

// buildEnvPtr allocates the flat cell-pointer array a closure's envPtr
// addresses, one i32 slot per free variable in sorted order (the same
// order freeVariables returns, which newFuncGen's callee side relies on
// when unpacking). Every name in freeVars must already have a captured
// slot in fg — guaranteed since a name only appears in a nested
// function's free-variable set when it crosses a function boundary,
// which is exactly the condition the analyzer uses to mark it captured.
func (fg *funcGen) buildEnvPtr(freeVars []string) []ir.Instruction {
	if len(freeVars) == 0 {
		return []ir.Instruction{ir.I32Const(0)}
	}
	arrIdx := fg.newLocal(wasmspec.I32, "envarr")
	out := append([]ir.Instruction{}, fg.callAlloc(int32(len(freeVars)*4))...)
	out = append(out, ir.LocalSet(arrIdx))
	for i, name := range freeVars {
		s := fg.slots[name]
		out = append(out,
			ir.LocalGet(arrIdx), ir.I32Const(int32(i*4)), ir.Plain(wasmspec.OpI32Add),
			ir.LocalGet(s.cellIdx), ir.Mem(wasmspec.OpI32Store, 2, 0),
		)
	}
	out = append(out, ir.LocalGet(arrIdx))
	return out
}

// loadClosureFields reads the funcIndex/envPtr pair out of a closure
// record whose pointer is already held in the local recIdx, into two
// freshly allocated locals.
func (fg *funcGen) loadClosureFields(recIdx uint32) (instrs []ir.Instruction, funcIdxLocal, envIdxLocal uint32) {
	funcIdxLocal = fg.newLocal(wasmspec.I32, "callee_fn")
	envIdxLocal = fg.newLocal(wasmspec.I32, "callee_env")
	instrs = []ir.Instruction{
		ir.LocalGet(recIdx), ir.Mem(wasmspec.OpI32Load, 2, 0), ir.LocalSet(funcIdxLocal),
		ir.LocalGet(recIdx), ir.Mem(wasmspec.OpI32Load, 2, 4), ir.LocalSet(envIdxLocal),
	}
	return
}
