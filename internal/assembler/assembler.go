// Package assembler encodes a lowered, optimized IR module as a binary
// Wasm module, and decodes one back for round-tripping and glintdump.
// It is the last stage of the pipeline: everything it touches must
// already be in LOWERED state (spec.md §4.5) — the optimizer and code
// generator have both finished mutating the module by the time Encode
// runs.
package assembler

import (
	"github.com/glint-lang/glintc/internal/diagnostics"
	"github.com/glint-lang/glintc/internal/ir"
	"github.com/glint-lang/glintc/internal/wasmspec"
)

// Options carries the handful of assembly-time choices that aren't
// recoverable by inspecting the module itself.
type Options struct {
	// ValueType is the Wasm scalar type every function's value channel
	// uses; needed to synthesize the call_indirect type-section entry for
	// each distinct closure arity, since that entry isn't any single
	// function's own declared signature.
	ValueType wasmspec.ValType

	// ModuleName, if non-empty, is emitted as the custom name section's
	// module-name subsection.
	ModuleName string
}

func DefaultOptions() Options { return Options{ValueType: wasmspec.F64} }

// Encode serializes mod into a complete Wasm binary module. mod is
// mutated in place: import tree-shaking drops unreferenced host imports,
// every surviving function is renumbered, and every deferred instruction
// is resolved to its concrete form. Callers that still need mod's
// pre-shake shape must copy it first.
func Encode(mod *ir.Module, opts Options) ([]byte, error) {
	if opts.ValueType == 0 {
		opts.ValueType = wasmspec.F64
	}

	if err := shake(mod); err != nil {
		return nil, err
	}
	if err := resolveDeferred(mod); err != nil {
		return nil, err
	}

	enc := newEncoder(mod, opts)
	enc.internTypes()

	out := wasmspec.NewBuffer()
	writeHeader(out)

	sections := []func() (wasmspec.SectionID, []byte){
		enc.typeSection,
		enc.importSection,
		enc.functionSection,
		enc.tableSection,
		enc.memorySection,
		enc.tagSection,
		enc.globalSection,
		enc.exportSection,
		enc.elementSection,
		enc.dataCountSection,
		enc.codeSection,
		enc.dataSection,
		enc.nameSection,
	}
	for _, build := range sections {
		id, body := build()
		if body == nil {
			continue
		}
		out.WriteByte(byte(id))
		if err := wasmspec.PutUvarint(out, uint64(len(body))); err != nil {
			return nil, diagnostics.NewEncodingError("writing section %d length: %v", id, err)
		}
		out.Write(body)
	}

	if enc.err != nil {
		return nil, enc.err
	}
	return out.Bytes(), nil
}

func writeHeader(w wasmspec.Writer) {
	w.Write([]byte{0x00, 0x61, 0x73, 0x6D}) // \0asm
	w.Write([]byte{0x01, 0x00, 0x00, 0x00}) // version 1
}
