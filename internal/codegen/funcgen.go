package codegen

import (
	"sort"

	"github.com/glint-lang/glintc/internal/ast"
	"github.com/glint-lang/glintc/internal/ir"
	"github.com/glint-lang/glintc/internal/types"
	"github.com/glint-lang/glintc/internal/wasmspec"
)

// cellSize is the heap layout of one captured-variable cell: an f64 value
// slot followed by an i32 type tag, padded to keep the tag's own alignment
// out of the next cell's value slot.
const cellSize = 16
const cellValueOffset = 0
const cellTagOffset = 8

// closureSize is the heap layout of one closure value: the callee's
// function index followed by its environment pointer (0 when the
// function captures nothing).
const closureSize = 8

// slot is where one local binding's (value, tag) pair lives during a
// function body: either a plain pair of Wasm locals, or a single i32
// local holding a pointer to a heap cell, when the binding is read by a
// closure constructed inside this function (or, for a parameter/free
// variable, was captured by some enclosing function already).
type slot struct {
	captured bool
	cellIdx  uint32
	valIdx   uint32
	tagIdx   uint32

	// hint is the last statically known type of the value stored here,
	// updated on declaration and on every assignment or ++/-- to the
	// binding; it is a best effort, forward-only approximation (no
	// control-flow join). It resolves which built-in a bare
	// `x.method(...)` dispatches to, whether `+`/`+=` take a typed fast
	// path, and whether `-=`/`*=`/`/=` reject a non-numeric operand.
	hint types.Hint
}

// ctrlKind distinguishes the two structured constructs funcGen pushes
// onto ctrlStack for branch-depth bookkeeping; OpIf's then/else bodies
// also push a plain entry so nested break/continue depth arithmetic
// counts every enclosing construct, matching real Wasm semantics.
type ctrlKind int

const (
	ctrlBlock ctrlKind = iota
	ctrlLoop
	ctrlIf
)

type ctrlEntry struct {
	kind ctrlKind
}

// loopFrame records the two ctrlStack positions a break/continue inside
// one loop body target: breakPos is the outer wrapping block (loop exit),
// continuePos is the loop construct itself for while, or the inner block
// ending just before the update for a for loop. Labeled
// break/continue are not distinguished from unlabeled; both always target
// the innermost enclosing loop, a documented simplification.
type loopFrame struct {
	breakPos    int
	continuePos int
}

// funcGen lowers one function body: it owns local-slot allocation, the
// branch-depth bookkeeping stack, and the per-function exception-handler
// plumbing shared with stmt/expr lowering.
type funcGen struct {
	gen *Generator
	fn  *ir.Function

	envPtrIdx uint32 // only valid when hasEnv is true
	hasEnv    bool

	slots map[string]*slot

	// prelude holds the envPtr-unpacking and parameter-boxing instructions
	// emitted before the lowered body; newFuncGen builds it, and
	// declareFunction's Lower thunk emits it ahead of the lowered body.
	prelude []ir.Instruction

	ctrlStack []ctrlEntry
	loops     []loopFrame
}

func newFuncGen(g *Generator, fn *ir.Function, params []*ast.Identifier, freeVars []string, hasEnv bool) *funcGen {
	fg := &funcGen{
		gen:   g,
		fn:    fn,
		slots: make(map[string]*slot),
	}

	paramLocalIdx := uint32(0)
	for _, p := range params {
		b := g.res.Declarations[p]
		s := &slot{valIdx: paramLocalIdx, tagIdx: paramLocalIdx + 1, hint: types.UnknownHint}
		paramLocalIdx += 2
		if b.Captured() {
			s = fg.boxParamIntoCell(s)
		}
		fg.slots[b.UniqueName()] = s
	}

	if hasEnv {
		fg.hasEnv = true
		fg.envPtrIdx = paramLocalIdx
	}

	for i, name := range freeVars {
		cellIdx := fg.newLocal(wasmspec.I32, "env_"+name)
		fg.prelude = append(fg.prelude,
			ir.LocalGet(fg.envPtrIdx),
			ir.I32Const(int32(i*4)),
			ir.Plain(wasmspec.OpI32Add),
			ir.Mem(wasmspec.OpI32Load, 2, 0),
			ir.LocalSet(cellIdx),
		)
		fg.slots[name] = &slot{captured: true, cellIdx: cellIdx, hint: types.UnknownHint}
	}

	return fg
}

func (fg *funcGen) newLocal(t wasmspec.ValType, name string) uint32 {
	idx := uint32(len(fg.fn.Params)) + uint32(len(fg.fn.Locals))
	fg.fn.Locals = append(fg.fn.Locals, ir.Local{Name: name, Type: t})
	return idx
}

// boxParamIntoCell allocates a heap cell for a captured parameter and
// copies the parameter's incoming (value, tag) pair into it; the returned
// slot addresses the cell, not the raw parameter locals, so every
// reference to this binding for the rest of the function (and any nested
// closure) sees the same mutable storage.
func (fg *funcGen) boxParamIntoCell(param *slot) *slot {
	cellIdx := fg.newLocal(wasmspec.I32, "cell")
	fg.prelude = append(fg.prelude,
		fg.callAlloc(cellSize)...,
	)
	fg.prelude = append(fg.prelude, ir.LocalSet(cellIdx))
	fg.prelude = append(fg.prelude,
		ir.LocalGet(cellIdx), ir.LocalGet(param.valIdx), ir.Mem(wasmspec.OpF64Store, 3, cellValueOffset),
		ir.LocalGet(cellIdx), ir.LocalGet(param.tagIdx), ir.Mem(wasmspec.OpI32Store, 2, cellTagOffset),
	)
	return &slot{captured: true, cellIdx: cellIdx, hint: types.UnknownHint}
}

// callAlloc emits a call to the bump allocator for size bytes, leaving
// the new pointer on the stack.
func (fg *funcGen) callAlloc(size int32) []ir.Instruction {
	return []ir.Instruction{ir.I32Const(size), ir.Call(fg.gen.imports["alloc"].Index)}
}

// declareLocal reserves storage for a newly declared binding (var/let/
// const/catch param), choosing a heap cell when the analyzer marked it
// captured. Returns the instructions (possibly empty) needed to set that
// storage up before the declaration's initializer runs.
func (fg *funcGen) declareLocal(uniqueName string, captured bool) []ir.Instruction {
	if captured {
		cellIdx := fg.newLocal(wasmspec.I32, uniqueName)
		fg.slots[uniqueName] = &slot{captured: true, cellIdx: cellIdx}
		instrs := fg.callAlloc(cellSize)
		return append(instrs, ir.LocalSet(cellIdx))
	}
	valIdx := fg.newLocal(fg.gen.opts.ValueType, uniqueName+"$v")
	tagIdx := fg.newLocal(wasmspec.I32, uniqueName+"$t")
	fg.slots[uniqueName] = &slot{valIdx: valIdx, tagIdx: tagIdx}
	return nil
}

// storeSlot emits the instructions to pop a (value, tag) pair already on
// the stack into the named binding's storage. The tag is popped first
// (it was pushed second) so the value ends up stored from a dedicated
// local rather than requiring stack juggling for cell writes.
func (fg *funcGen) storeSlot(name string) []ir.Instruction {
	s := fg.slots[name]
	if s == nil {
		return nil
	}
	if s.captured {
		tmpV := fg.newLocal(fg.gen.opts.ValueType, "tmp$v")
		tmpT := fg.newLocal(wasmspec.I32, "tmp$t")
		return []ir.Instruction{
			ir.LocalSet(tmpT), ir.LocalSet(tmpV),
			ir.LocalGet(s.cellIdx), ir.LocalGet(tmpV), ir.Mem(wasmspec.OpF64Store, 3, cellValueOffset),
			ir.LocalGet(s.cellIdx), ir.LocalGet(tmpT), ir.Mem(wasmspec.OpI32Store, 2, cellTagOffset),
		}
	}
	return []ir.Instruction{ir.LocalSet(s.tagIdx), ir.LocalSet(s.valIdx)}
}

// loadSlot emits the instructions to push the named binding's current
// (value, tag) pair onto the stack.
func (fg *funcGen) loadSlot(name string) []ir.Instruction {
	s := fg.slots[name]
	if s == nil {
		return nil
	}
	if s.captured {
		return []ir.Instruction{
			ir.LocalGet(s.cellIdx), ir.Mem(wasmspec.OpF64Load, 3, cellValueOffset),
			ir.LocalGet(s.cellIdx), ir.Mem(wasmspec.OpI32Load, 2, cellTagOffset),
		}
	}
	return []ir.Instruction{ir.LocalGet(s.valIdx), ir.LocalGet(s.tagIdx)}
}

func (fg *funcGen) setHint(name string, h types.Hint) {
	if s := fg.slots[name]; s != nil {
		s.hint = h
	}
}

func (fg *funcGen) hintOf(name string) types.Hint {
	if s := fg.slots[name]; s != nil {
		return s.hint
	}
	return types.UnknownHint
}

func (fg *funcGen) pushUndefined() []ir.Instruction {
	return []ir.Instruction{ir.F64Const(0), ir.I32Const(int32(types.Undefined))}
}

func (fg *funcGen) depthOf(pos int) uint32 {
	return uint32(len(fg.ctrlStack) - 1 - pos)
}

func (fg *funcGen) pushCtrl(k ctrlKind) int {
	fg.ctrlStack = append(fg.ctrlStack, ctrlEntry{kind: k})
	return len(fg.ctrlStack) - 1
}

func (fg *funcGen) popCtrl() {
	fg.ctrlStack = fg.ctrlStack[:len(fg.ctrlStack)-1]
}

func sortedCopy(names []string) []string {
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}
