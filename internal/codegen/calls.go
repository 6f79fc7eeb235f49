package codegen

import (
	"github.com/glint-lang/glintc/internal/ast"
	"github.com/glint-lang/glintc/internal/diagnostics"
	"github.com/glint-lang/glintc/internal/ir"
	"github.com/glint-lang/glintc/internal/types"
	"github.com/glint-lang/glintc/internal/wasmspec"
)

// unboxTo drops the tag half of a (value, tag) pair already on the
// stack and, when the receiver expects an i32 (every pointer-carrying
// receiver/argument — String/Array/Object), truncates the raw f64 value
// channel down to the pointer it has always actually held.
func (fg *funcGen) unboxTo(want wasmspec.ValType) []ir.Instruction {
	out := []ir.Instruction{ir.Plain(wasmspec.OpDrop)}
	if want == wasmspec.I32 {
		out = append(out, ir.Plain(wasmspec.OpI32TruncF64U))
	}
	return out
}

// boxResult re-pairs a built-in's raw Wasm-typed result with the runtime
// type tag it represents, converting a pointer result back into the
// value channel the rest of the generator expects every expression to
// leave on the stack.
func (fg *funcGen) boxResult(valType wasmspec.ValType, tag types.ID) []ir.Instruction {
	var out []ir.Instruction
	if valType == wasmspec.I32 {
		out = append(out, ir.Plain(wasmspec.OpF64ConvertI32U))
	}
	out = append(out, ir.I32Const(int32(tag)))
	return out
}

// buildBuiltinCall lowers a call to a registered built-in method:
// receiver (nil for a namespace call like Math.floor) followed by args,
// each unboxed per the method's raw Params, then reboxed per resultTag.
// Extra arguments beyond the method's arity are dropped after evaluation
// (their side effects still happen, matching eager argument evaluation);
// missing arguments are zero-filled — there is no arguments object and no
// per-call arity checking, a documented Non-goal.
func (fg *funcGen) buildBuiltinCall(recvID types.ID, methodName string, receiver ast.Expression, args []ast.Expression, pos ast.Position) ([]ir.Instruction, types.Hint) {
	method, ok := fg.gen.registry.Lookup(recvID, methodName)
	if !ok {
		fg.gen.fail(diagnostics.NewUnsupportedError(toDiagPos(pos), "no built-in %s.%s", recvID, methodName))
		return fg.pushUndefined(), types.UnknownHint
	}

	var out []ir.Instruction
	argIdx := 0
	if receiver != nil {
		rinstrs, _ := fg.lowerExpr(receiver)
		out = append(out, rinstrs...)
		out = append(out, fg.unboxTo(method.Params[0])...)
		argIdx = 1
	}
	for _, a := range args {
		if argIdx >= len(method.Params) {
			ainstrs, _ := fg.lowerExpr(a)
			out = append(out, ainstrs...)
			out = append(out, ir.Plain(wasmspec.OpDrop), ir.Plain(wasmspec.OpDrop))
			continue
		}
		ainstrs, _ := fg.lowerExpr(a)
		out = append(out, ainstrs...)
		out = append(out, fg.unboxTo(method.Params[argIdx])...)
		argIdx++
	}
	for argIdx < len(method.Params) {
		if method.Params[argIdx] == wasmspec.I32 {
			out = append(out, ir.I32Const(0))
		} else {
			out = append(out, ir.F64Const(0))
		}
		argIdx++
	}

	out = append(out, ir.Call(fg.gen.imports[method.QualifiedName].Index))
	if len(method.Results) == 0 {
		out = append(out, fg.pushUndefined()...)
		return out, types.UnknownHint
	}
	tag := resultTag[method.QualifiedName]
	out = append(out, fg.boxResult(method.Results[0], tag)...)
	return out, types.KnownHint(tag)
}

func (fg *funcGen) lowerCall(n *ast.CallExpression) ([]ir.Instruction, types.Hint) {
	if fg.gen.res.EvalCalls[n] {
		fg.gen.fail(diagnostics.NewUnsupportedError(toDiagPos(n.Pos()), "eval/Function construction is not supported"))
		return fg.pushUndefined(), types.UnknownHint
	}

	switch callee := n.Callee.(type) {
	case *ast.MemberExpression:
		if !callee.Computed {
			if objID, isID := callee.Object.(*ast.Identifier); isID {
				if r, isRef := fg.gen.res.Refs[objID]; isRef && r.Builtin {
					if objID.Name == "console" {
						return fg.lowerConsoleLog(n)
					}
					if objID.Name == "Math" {
						if prop, ok := callee.Property.(*ast.Identifier); ok {
							return fg.buildBuiltinCall(types.Number, prop.Name, nil, n.Arguments, n.Pos())
						}
					}
				}
			}
			if prop, ok := callee.Property.(*ast.Identifier); ok {
				owner := resolveMethodOwner(fg.peekHint(callee.Object), prop.Name)
				return fg.buildBuiltinCall(owner, prop.Name, callee.Object, n.Arguments, n.Pos())
			}
		}
		fg.gen.fail(diagnostics.NewUnsupportedError(toDiagPos(n.Pos()), "unsupported call target"))
		return fg.pushUndefined(), types.UnknownHint

	case *ast.Identifier:
		if r, ok := fg.gen.res.Refs[callee]; ok && r.Builtin && callee.Name == "print" {
			return fg.lowerConsoleLog(n)
		}
		if r, ok := fg.gen.res.Refs[callee]; ok && !r.Builtin {
			if info, ok2 := fg.gen.funcByName[r.UniqueName]; ok2 {
				return fg.lowerDirectCall(info, n.Arguments), types.UnknownHint
			}
		}
		// A plain identifier bound to a closure value that isn't a named
		// top-level/nested declaration (e.g. reassigned through a
		// variable) falls through to the general indirect path below.

	case *ast.FunctionExpression:
		info := fg.gen.declareFunction(callee, callee.ID, callee.Params, callee.Body, "")
		return fg.lowerDirectCall(info, n.Arguments), types.UnknownHint
	}

	return fg.lowerIndirectCall(n)
}

// lowerDirectCall lowers a call whose callee is statically known —
// either a named function declaration or an IIFE — skipping full closure
// record construction: the envPtr is built directly rather than read back
// out of an allocated closure record that would otherwise just be
// discarded.
func (fg *funcGen) lowerDirectCall(info *funcInfo, args []ast.Expression) []ir.Instruction {
	arity := (len(info.fn.Params) - 1) / 2
	var out []ir.Instruction
	for i := 0; i < arity; i++ {
		if i < len(args) {
			ainstrs, _ := fg.lowerExpr(args[i])
			out = append(out, ainstrs...)
		} else {
			out = append(out, fg.pushUndefined()...)
		}
	}
	for i := arity; i < len(args); i++ {
		ainstrs, _ := fg.lowerExpr(args[i])
		out = append(out, ainstrs...)
		out = append(out, ir.Plain(wasmspec.OpDrop), ir.Plain(wasmspec.OpDrop))
	}
	out = append(out, fg.buildEnvPtr(info.freeVars)...)
	out = append(out, ir.Call(info.fn.Index))
	return out
}

// lowerIndirectCall lowers a call whose callee is a runtime function
// value — anything other than a direct name/IIFE, including a closure
// passed through a variable or returned from another call — via
// call_indirect through the module's shared funcref table. Calling a
// closure with the wrong argument count traps at runtime rather than
// being caught at compile time, a documented Non-goal.
func (fg *funcGen) lowerIndirectCall(n *ast.CallExpression) ([]ir.Instruction, types.Hint) {
	callee, _ := fg.lowerExpr(n.Callee)
	recIdx := fg.newLocal(wasmspec.I32, "callee_rec")
	out := append(callee, fg.unboxTo(wasmspec.I32)...)
	out = append(out, ir.LocalSet(recIdx))

	loadInstrs, funcIdxLocal, envIdxLocal := fg.loadClosureFields(recIdx)
	out = append(out, loadInstrs...)

	for _, a := range n.Arguments {
		ainstrs, _ := fg.lowerExpr(a)
		out = append(out, ainstrs...)
	}
	out = append(out, ir.LocalGet(envIdxLocal))
	out = append(out, ir.LocalGet(funcIdxLocal))
	out = append(out, ir.CallIndirect(uint32(len(n.Arguments))))

	fg.gen.bc.Module.HasIndirectCalls = true
	return out, types.UnknownHint
}

// lowerConsoleLog aliases console.log(x) and a bare print(x) to the "print" host import,
// whose (F64, I32) signature already matches this generator's (value,
// tag) pair convention exactly — no unboxing needed. Only the first
// argument is printed; varargs console.log is a documented Non-goal.
func (fg *funcGen) lowerConsoleLog(n *ast.CallExpression) ([]ir.Instruction, types.Hint) {
	if len(n.Arguments) == 0 {
		return fg.pushUndefined(), types.KnownHint(types.Undefined)
	}
	vinstrs, _ := fg.lowerExpr(n.Arguments[0])
	out := append(vinstrs, ir.Call(fg.gen.imports["print"].Index))
	for _, extra := range n.Arguments[1:] {
		einstrs, _ := fg.lowerExpr(extra)
		out = append(out, einstrs...)
		out = append(out, ir.Plain(wasmspec.OpDrop), ir.Plain(wasmspec.OpDrop))
	}
	out = append(out, fg.pushUndefined()...)
	return out, types.KnownHint(types.Undefined)
}

func (fg *funcGen) lowerNew(n *ast.NewExpression) ([]ir.Instruction, types.Hint) {
	id, ok := n.Callee.(*ast.Identifier)
	if !ok {
		fg.gen.fail(diagnostics.NewUnsupportedError(toDiagPos(n.Pos()), "unsupported constructor"))
		return fg.pushUndefined(), types.UnknownHint
	}
	switch id.Name {
	case "Array":
		recIdx := fg.newLocal(wasmspec.I32, "newarr")
		out := append(fg.callAlloc(12), ir.LocalSet(recIdx))
		out = append(out,
			ir.LocalGet(recIdx), ir.I32Const(0), ir.Mem(wasmspec.OpI32Store, 2, 0), // capacity
			ir.LocalGet(recIdx), ir.I32Const(0), ir.Mem(wasmspec.OpI32Store, 2, 4), // length
			ir.LocalGet(recIdx), ir.I32Const(0), ir.Mem(wasmspec.OpI32Store, 2, 8), // dataPtr
			ir.LocalGet(recIdx), ir.Plain(wasmspec.OpF64ConvertI32U), ir.I32Const(int32(types.Array)),
		)
		return out, types.KnownHint(types.Array)
	case "Object":
		recIdx := fg.newLocal(wasmspec.I32, "newobj")
		out := append(fg.callAlloc(objectRecordSize), ir.LocalSet(recIdx))
		// Linear memory starts zero-filled and this bump allocator never
		// reuses freed space, so a freshly allocated object record's
		// slots already read back as 0 without an explicit clear loop.
		out = append(out, ir.LocalGet(recIdx), ir.Plain(wasmspec.OpF64ConvertI32U), ir.I32Const(int32(types.Object)))
		return out, types.KnownHint(types.Object)
	default:
		fg.gen.fail(diagnostics.NewUnsupportedError(toDiagPos(n.Pos()), "unsupported constructor %q", id.Name))
		return fg.pushUndefined(), types.UnknownHint
	}
}

func (fg *funcGen) lowerMember(n *ast.MemberExpression) ([]ir.Instruction, types.Hint) {
	if n.Computed {
		out := fg.lowerArrayGet(n.Object, n.Property)
		return out, types.KnownHint(types.Number)
	}
	prop, ok := n.Property.(*ast.Identifier)
	if !ok {
		fg.gen.fail(diagnostics.NewUnsupportedError(toDiagPos(n.Pos()), "non-identifier property"))
		return fg.pushUndefined(), types.UnknownHint
	}
	if prop.Name == "length" {
		owner := resolveMethodOwner(fg.peekHint(n.Object), "length")
		return fg.buildBuiltinCall(owner, "length", n.Object, nil, n.Pos())
	}
	return fg.lowerObjectGet(n.Object, prop.Name, n.Pos())
}

func (fg *funcGen) lowerArrayGet(object, indexExpr ast.Expression) []ir.Instruction {
	method, _ := fg.gen.registry.Lookup(types.Array, "get")
	robj, _ := fg.lowerExpr(object)
	out := append(robj, fg.unboxTo(wasmspec.I32)...)
	ridx, _ := fg.lowerExpr(indexExpr)
	out = append(out, ridx...)
	out = append(out, fg.unboxTo(wasmspec.I32)...)
	out = append(out, ir.Call(fg.gen.imports[method.QualifiedName].Index))
	out = append(out, fg.boxResult(wasmspec.F64, types.Number)...)
	return out
}

// lowerArraySet assumes valueInstrs leaves a bare f64 (no tag, already
// dropped by the caller) on the stack.
func (fg *funcGen) lowerArraySet(object, indexExpr ast.Expression, valueInstrs []ir.Instruction) []ir.Instruction {
	method, _ := fg.gen.registry.Lookup(types.Array, "set")
	robj, _ := fg.lowerExpr(object)
	out := append(robj, fg.unboxTo(wasmspec.I32)...)
	ridx, _ := fg.lowerExpr(indexExpr)
	out = append(out, ridx...)
	out = append(out, fg.unboxTo(wasmspec.I32)...)
	out = append(out, valueInstrs...)
	out = append(out, ir.Call(fg.gen.imports[method.QualifiedName].Index))
	return out
}

func (fg *funcGen) lowerObjectGet(object ast.Expression, propName string, pos ast.Position) ([]ir.Instruction, types.Hint) {
	idx, ok := fg.gen.propertySlot(propName)
	if !ok {
		fg.gen.fail(diagnostics.NewUnsupportedError(toDiagPos(pos), "program uses more than %d distinct object property names", objectSlotCount))
		return fg.pushUndefined(), types.UnknownHint
	}
	method, _ := fg.gen.registry.Lookup(types.Object, "get")
	robj, _ := fg.lowerExpr(object)
	out := append(robj, fg.unboxTo(wasmspec.I32)...)
	out = append(out, ir.I32Const(int32(idx)))
	out = append(out, ir.Call(fg.gen.imports[method.QualifiedName].Index))
	out = append(out, fg.boxResult(wasmspec.F64, types.Number)...)
	return out, types.KnownHint(types.Number)
}

// lowerObjectSet assumes valueInstrs leaves a bare f64 on the stack.
func (fg *funcGen) lowerObjectSet(object ast.Expression, propName string, valueInstrs []ir.Instruction) []ir.Instruction {
	idx, ok := fg.gen.propertySlot(propName)
	if !ok {
		fg.gen.fail(diagnostics.NewUnsupportedError(toDiagPos(object.Pos()), "program uses more than %d distinct object property names", objectSlotCount))
		return nil
	}
	method, _ := fg.gen.registry.Lookup(types.Object, "set")
	robj, _ := fg.lowerExpr(object)
	out := append(robj, fg.unboxTo(wasmspec.I32)...)
	out = append(out, ir.I32Const(int32(idx)))
	out = append(out, valueInstrs...)
	out = append(out, ir.Call(fg.gen.imports[method.QualifiedName].Index))
	return out
}
