package codegen

import (
	"github.com/glint-lang/glintc/internal/ast"
	"github.com/glint-lang/glintc/internal/diagnostics"
	"github.com/glint-lang/glintc/internal/ir"
	"github.com/glint-lang/glintc/internal/types"
	"github.com/glint-lang/glintc/internal/wasmspec"
)

// lowerBlock lowers a flat statement list in order; this is used both for
// an actual ast.BlockStatement's body and for a function's top-level
// statement list, which never needs its own Wasm-level block wrapper
// since the analyzer's unique-name scheme already makes every binding
// addressable without nested scoping at this level.
func (fg *funcGen) lowerBlock(body []ast.Statement) []ir.Instruction {
	var out []ir.Instruction
	for _, stmt := range body {
		out = append(out, fg.lowerStmt(stmt)...)
	}
	return out
}

func (fg *funcGen) lowerStmt(stmt ast.Statement) []ir.Instruction {
	switch n := stmt.(type) {
	case *ast.VariableDeclaration:
		return fg.lowerVarDecl(n)
	case *ast.FunctionDeclaration:
		// Already reserved and scheduled by the hoisting pre-pass; a
		// declaration is not itself an executable statement once hoisted.
		return nil
	case *ast.ExpressionStatement:
		instrs, _ := fg.lowerExpr(n.Expression)
		return append(instrs, ir.Plain(wasmspec.OpDrop), ir.Plain(wasmspec.OpDrop))
	case *ast.BlockStatement:
		return fg.lowerBlock(n.Body)
	case *ast.IfStatement:
		return fg.lowerIf(n)
	case *ast.WhileStatement:
		return fg.lowerWhile(n)
	case *ast.ForStatement:
		return fg.lowerFor(n)
	case *ast.ReturnStatement:
		return fg.lowerReturn(n)
	case *ast.ThrowStatement:
		return fg.lowerThrow(n)
	case *ast.TryStatement:
		return fg.lowerTry(n)
	case *ast.BreakStatement:
		return fg.lowerBreak()
	case *ast.ContinueStatement:
		return fg.lowerContinue()
	case *ast.EmptyStatement:
		return nil
	default:
		fg.gen.fail(diagnostics.NewUnsupportedError(toDiagPos(n.Pos()), "statement kind %s", n.Type()))
		return nil
	}
}

func (fg *funcGen) lowerVarDecl(n *ast.VariableDeclaration) []ir.Instruction {
	var out []ir.Instruction
	for _, d := range n.Declarations {
		b := fg.gen.res.Declarations[d.ID]
		out = append(out, fg.declareLocal(b.UniqueName(), b.Captured())...)
		hint := types.UnknownHint
		if d.Init != nil {
			instrs, h := fg.lowerExpr(d.Init)
			out = append(out, instrs...)
			hint = h
		} else {
			out = append(out, fg.pushUndefined()...)
		}
		out = append(out, fg.storeSlot(b.UniqueName())...)
		fg.setHint(b.UniqueName(), hint)
	}
	return out
}

// lowerIf lowers a single-armed or two-armed conditional. The test value
// is coerced to an i32 boolean via lowerTruthy before the br_if-equivalent
// OpIf test, matching every other truthiness check in this generator.
func (fg *funcGen) lowerIf(n *ast.IfStatement) []ir.Instruction {
	test := fg.lowerTruthy(n.Test)

	fg.pushCtrl(ctrlIf)
	then := fg.lowerStmt(n.Consequent)
	var els []ir.Instruction
	if n.Alternate != nil {
		els = fg.lowerStmt(n.Alternate)
	} else {
		els = []ir.Instruction{}
	}
	fg.popCtrl()

	return append(test, ir.If(wasmspec.BlockVoid, then, els))
}

// lowerWhile wraps the loop in an outer block (break target, depth 1 from
// inside the loop body) and an inner loop (continue target, depth 0): a
// loop with no wrapping block has no depth-1 target for a body that wants
// to exit early, so every loop gets both constructs regardless of whether
// this particular loop uses break.
func (fg *funcGen) lowerWhile(n *ast.WhileStatement) []ir.Instruction {
	blockPos := fg.pushCtrl(ctrlBlock)
	loopPos := fg.pushCtrl(ctrlLoop)
	fg.loops = append(fg.loops, loopFrame{breakPos: blockPos, continuePos: loopPos})

	test := fg.lowerTruthy(n.Test)
	// Inside the loop body the control stack is exactly [..., block, loop]:
	// depthOf(blockPos) is the branch depth that exits past the loop to
	// just inside the wrapping block (the break target); the loop's own
	// back-edge is always depth 0 from here.
	body := append(append([]ir.Instruction{}, test...), ir.Plain(wasmspec.OpI32Eqz), ir.BrIf(fg.depthOf(blockPos)))
	body = append(body, fg.lowerStmt(n.Body)...)
	body = append(body, ir.Br(0))

	fg.loops = fg.loops[:len(fg.loops)-1]
	fg.popCtrl()
	fg.popCtrl()

	return []ir.Instruction{ir.Block(wasmspec.BlockVoid, []ir.Instruction{ir.Loop(wasmspec.BlockVoid, body)})}
}

// lowerFor desugars the C-style for loop into the same block/loop shape as
// while, with the body wrapped in an inner block that continue targets
// and the update expression run after that block, before the back-edge
// branch (so continue still reaches the update rather than skipping it).
func (fg *funcGen) lowerFor(n *ast.ForStatement) []ir.Instruction {
	var out []ir.Instruction
	if decl, ok := n.Init.(*ast.VariableDeclaration); ok {
		out = append(out, fg.lowerVarDecl(decl)...)
	} else if expr, ok := n.Init.(ast.Expression); ok && expr != nil {
		instrs, _ := fg.lowerExpr(expr)
		out = append(out, instrs...)
		out = append(out, ir.Plain(wasmspec.OpDrop), ir.Plain(wasmspec.OpDrop))
	}

	blockPos := fg.pushCtrl(ctrlBlock)
	fg.pushCtrl(ctrlLoop)

	var body []ir.Instruction
	if n.Test != nil {
		body = append(body, fg.lowerTruthy(n.Test)...)
		body = append(body, ir.Plain(wasmspec.OpI32Eqz), ir.BrIf(fg.depthOf(blockPos)))
	}
	innerPos := fg.pushCtrl(ctrlBlock)
	fg.loops = append(fg.loops, loopFrame{breakPos: blockPos, continuePos: innerPos})
	inner := fg.lowerStmt(n.Body)
	fg.loops = fg.loops[:len(fg.loops)-1]
	fg.popCtrl()
	body = append(body, ir.Block(wasmspec.BlockVoid, inner))
	if n.Update != nil {
		instrs, _ := fg.lowerExpr(n.Update)
		body = append(body, instrs...)
		body = append(body, ir.Plain(wasmspec.OpDrop), ir.Plain(wasmspec.OpDrop))
	}
	body = append(body, ir.Br(0))

	fg.popCtrl()
	fg.popCtrl()

	out = append(out, ir.Block(wasmspec.BlockVoid, []ir.Instruction{ir.Loop(wasmspec.BlockVoid, body)}))
	return out
}

func (fg *funcGen) lowerBreak() []ir.Instruction {
	if len(fg.loops) == 0 {
		return nil
	}
	frame := fg.loops[len(fg.loops)-1]
	return []ir.Instruction{ir.Br(fg.depthOf(frame.breakPos))}
}

func (fg *funcGen) lowerContinue() []ir.Instruction {
	if len(fg.loops) == 0 {
		return nil
	}
	frame := fg.loops[len(fg.loops)-1]
	return []ir.Instruction{ir.Br(fg.depthOf(frame.continuePos))}
}

func (fg *funcGen) lowerReturn(n *ast.ReturnStatement) []ir.Instruction {
	var out []ir.Instruction
	if n.Argument != nil {
		instrs, _ := fg.lowerExpr(n.Argument)
		out = append(out, instrs...)
	} else {
		out = append(out, fg.pushUndefined()...)
	}
	return append(out, ir.Plain(wasmspec.OpReturn))
}

func (fg *funcGen) lowerThrow(n *ast.ThrowStatement) []ir.Instruction {
	instrs, _ := fg.lowerExpr(n.Argument)
	return append(instrs, ir.Throw(fg.gen.exceptTag.Index))
}

// lowerTry lowers try/catch/finally. The catch handler receives the
// thrown (value, tag) pair as the tag's two exception payload fields,
// bound to the catch parameter as an ordinary declared local. finally is
// appended after both the protected body and the handler body fall
// through to it, matching the common "finally always runs" semantics;
// this generator does not attempt to re-run finally on every possible
// exit path out of the try body (an early return inside a try skips the
// finalizer), a documented simplification.
func (fg *funcGen) lowerTry(n *ast.TryStatement) []ir.Instruction {
	body := fg.lowerBlock(n.Block.Body)

	var handler []ir.Instruction
	if n.Handler != nil {
		if n.Handler.Param != nil {
			b := fg.gen.res.Declarations[n.Handler.Param]
			handler = append(handler, fg.declareLocal(b.UniqueName(), b.Captured())...)
			// The tag's payload arrives on the stack as (value, tag) in
			// declaration order, matching storeSlot's expected order.
			handler = append(handler, fg.storeSlot(b.UniqueName())...)
		} else {
			handler = append(handler, ir.Plain(wasmspec.OpDrop), ir.Plain(wasmspec.OpDrop))
		}
		handler = append(handler, fg.lowerBlock(n.Handler.Body.Body)...)
	} else {
		handler = []ir.Instruction{ir.Plain(wasmspec.OpDrop), ir.Plain(wasmspec.OpDrop)}
	}

	out := []ir.Instruction{ir.Try(wasmspec.BlockVoid, fg.gen.exceptTag.Index, body, handler)}
	if n.Finalizer != nil {
		out = append(out, fg.lowerBlock(n.Finalizer.Body)...)
	}
	return out
}
