package builtins

import (
	"github.com/glint-lang/glintc/internal/ir"
	"github.com/glint-lang/glintc/internal/types"
	"github.com/glint-lang/glintc/internal/wasmspec"
)

// heapPageCount is how many 64KiB pages are reserved for the
// bump-allocated string/object heap. alloc neither checks this bound nor
// grows memory, and pkg/compiler declares no memory maximum; the module's
// declared minimum page count is all the memory a program has.
const heapPageCount = 4

// installAllocator reserves the heap page and the bump-pointer global, and
// registers the "alloc" runtime function every variable-length built-in
// (string slicing, array growth, object construction) calls to carve out
// memory. There is no free: spec.md's Non-goals exclude garbage collection,
// so the allocator only ever moves the pointer forward.
func installAllocator(bc *ir.BuildContext) *ir.Function {
	page := &ir.Page{Name: "heap", PageCount: heapPageCount}
	bc.ReservePage(page)
	base := int32(page.Ordinal) * 65536

	heapPtr := &ir.Global{Name: "heapPtr", Type: wasmspec.I32, Mutable: true, Init: ir.I32Const(base)}
	bc.ReserveGlobal(heapPtr)

	f := &ir.Function{
		Name:    "alloc",
		Params:  []wasmspec.ValType{wasmspec.I32},
		Results: []wasmspec.ValType{wasmspec.I32},
		Flags:   types.FuncFlags{Internal: true},
		Lower: func() []ir.Instruction {
			return []ir.Instruction{
				ir.GlobalGet(heapPtr.Index),
				ir.GlobalGet(heapPtr.Index), ir.LocalGet(0), ir.Plain(wasmspec.OpI32Add),
				ir.GlobalSet(heapPtr.Index),
			}
		},
	}
	bc.ReserveFunction(f)
	return f
}
