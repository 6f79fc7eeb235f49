package assembler

import (
	"fmt"

	"github.com/glint-lang/glintc/internal/ir"
	"github.com/glint-lang/glintc/internal/wasmspec"
)

// funcSig is a function type, used as a map key to dedupe the type
// section: two functions with identical params/results share one entry.
type funcSig struct {
	key     string
	params  []wasmspec.ValType
	results []wasmspec.ValType
}

func sigKey(params, results []wasmspec.ValType) string {
	b := make([]byte, 0, len(params)+len(results)+1)
	for _, p := range params {
		b = append(b, byte(p))
	}
	b = append(b, '>')
	for _, r := range results {
		b = append(b, byte(r))
	}
	return string(b)
}

// encoder carries the module and options plus the type-section interning
// tables every other section builder needs: each function's own type
// index, and the type index synthesized for each distinct call_indirect
// arity the module's bodies use.
type encoder struct {
	mod  *ir.Module
	opts Options

	sigs       []funcSig
	sigIndex   map[string]uint32
	funcType   map[*ir.Function]uint32
	indirectTy map[uint32]uint32 // paramPairs -> type index

	err error // first instruction-encoding failure, checked once after all sections are built
}

func newEncoder(mod *ir.Module, opts Options) *encoder {
	return &encoder{
		mod:        mod,
		opts:       opts,
		sigIndex:   make(map[string]uint32),
		funcType:   make(map[*ir.Function]uint32),
		indirectTy: make(map[uint32]uint32),
	}
}

func (e *encoder) intern(params, results []wasmspec.ValType) uint32 {
	k := sigKey(params, results)
	if idx, ok := e.sigIndex[k]; ok {
		return idx
	}
	idx := uint32(len(e.sigs))
	e.sigs = append(e.sigs, funcSig{key: k, params: params, results: results})
	e.sigIndex[k] = idx
	return idx
}

// internTypes populates the type table: one entry per distinct function
// signature, plus one per distinct call_indirect/return_call_indirect
// arity found in any function body. Must run after shake/resolveDeferred
// so it only sees functions and bodies that survive into the binary.
func (e *encoder) internTypes() {
	for _, fn := range e.mod.Functions {
		e.funcType[fn] = e.intern(fn.Params, fn.Results)
	}
	for _, fn := range e.mod.Functions {
		e.internIndirectArities(fn.Body)
	}
}

func (e *encoder) internIndirectArities(seq []ir.Instruction) {
	for _, instr := range seq {
		if instr.Op == wasmspec.OpCallIndirect || instr.Op == wasmspec.OpReturnCallIndirect {
			paramPairs := uint32(instr.Operands[0])
			if _, ok := e.indirectTy[paramPairs]; !ok {
				e.indirectTy[paramPairs] = e.intern(e.closureParams(paramPairs), e.closureResults())
			}
		}
		for _, b := range instr.Blocks {
			e.internIndirectArities(b)
		}
	}
}

// closureParams builds the uniform non-main user function parameter
// list for a call_indirect of the given arity: paramPairs (value, tag)
// pairs followed by the trailing envPtr, matching ir.CallIndirect's doc.
func (e *encoder) closureParams(paramPairs uint32) []wasmspec.ValType {
	params := make([]wasmspec.ValType, 0, paramPairs*2+1)
	for i := uint32(0); i < paramPairs; i++ {
		params = append(params, e.opts.ValueType, wasmspec.I32)
	}
	return append(params, wasmspec.I32)
}

func (e *encoder) closureResults() []wasmspec.ValType {
	return []wasmspec.ValType{e.opts.ValueType, wasmspec.I32}
}

func (e *encoder) mustFuncType(fn *ir.Function) uint32 {
	idx, ok := e.funcType[fn]
	if !ok {
		panic(fmt.Sprintf("assembler: function %q has no interned type", fn.Name))
	}
	return idx
}
