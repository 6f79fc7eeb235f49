package assembler

import (
	"github.com/glint-lang/glintc/internal/diagnostics"
	"github.com/glint-lang/glintc/internal/ir"
	"github.com/glint-lang/glintc/internal/wasmspec"
)

// encodeInstrs writes seq's instructions in order, with no trailing End —
// callers that open a structured construct (function body, block, loop,
// try) append the End themselves once they know which construct it
// closes.
func (e *encoder) encodeInstrs(buf wasmspec.Writer, seq []ir.Instruction) error {
	for _, instr := range seq {
		if err := e.encodeInstr(buf, instr); err != nil {
			if e.err == nil {
				e.err = err
			}
			return err
		}
	}
	return nil
}

func (e *encoder) encodeInstr(buf wasmspec.Writer, instr ir.Instruction) error {
	op := instr.Op
	switch {
	case op == wasmspec.OpBlock || op == wasmspec.OpLoop:
		buf.WriteByte(byte(op))
		wasmspec.PutVarint(buf, instr.Operands[0])
		if err := e.encodeInstrs(buf, instr.Blocks[0]); err != nil {
			return err
		}
		buf.WriteByte(byte(wasmspec.OpEnd))

	case op == wasmspec.OpIf:
		buf.WriteByte(byte(op))
		wasmspec.PutVarint(buf, instr.Operands[0])
		if err := e.encodeInstrs(buf, instr.Blocks[0]); err != nil {
			return err
		}
		if len(instr.Blocks) > 1 {
			buf.WriteByte(byte(wasmspec.OpElse))
			if err := e.encodeInstrs(buf, instr.Blocks[1]); err != nil {
				return err
			}
		}
		buf.WriteByte(byte(wasmspec.OpEnd))

	case op == wasmspec.OpTry:
		buf.WriteByte(byte(op))
		wasmspec.PutVarint(buf, instr.Operands[0])
		if err := e.encodeInstrs(buf, instr.Blocks[0]); err != nil {
			return err
		}
		buf.WriteByte(byte(wasmspec.OpCatch))
		wasmspec.PutUvarint(buf, uint64(instr.Operands[1]))
		if err := e.encodeInstrs(buf, instr.Blocks[1]); err != nil {
			return err
		}
		buf.WriteByte(byte(wasmspec.OpEnd))

	case op == wasmspec.OpBr || op == wasmspec.OpBrIf:
		buf.WriteByte(byte(op))
		wasmspec.PutUvarint(buf, uint64(instr.Operands[0]))

	case op == wasmspec.OpCall || op == wasmspec.OpReturnCall:
		buf.WriteByte(byte(op))
		wasmspec.PutUvarint(buf, uint64(instr.Operands[0]))

	case op == wasmspec.OpCallIndirect || op == wasmspec.OpReturnCallIndirect:
		buf.WriteByte(byte(op))
		paramPairs := uint32(instr.Operands[0])
		typeIdx, ok := e.indirectTy[paramPairs]
		if !ok {
			return diagnostics.NewEncodingError("call_indirect arity %d has no interned type", paramPairs)
		}
		wasmspec.PutUvarint(buf, uint64(typeIdx))
		wasmspec.PutUvarint(buf, uint64(instr.Operands[1]))

	case op == wasmspec.OpLocalGet || op == wasmspec.OpLocalSet || op == wasmspec.OpLocalTee ||
		op == wasmspec.OpGlobalGet || op == wasmspec.OpGlobalSet:
		buf.WriteByte(byte(op))
		wasmspec.PutUvarint(buf, uint64(instr.Operands[0]))

	case isMemOp(op):
		buf.WriteByte(byte(op))
		wasmspec.PutUvarint(buf, uint64(instr.Operands[0]))
		wasmspec.PutUvarint(buf, uint64(instr.Operands[1]))

	case op == wasmspec.OpMemorySize || op == wasmspec.OpMemoryGrow:
		buf.WriteByte(byte(op))
		wasmspec.PutUvarint(buf, 0) // single memory, reserved memidx byte

	case op == wasmspec.OpI32Const:
		buf.WriteByte(byte(op))
		wasmspec.PutVarint(buf, instr.Operands[0])

	case op == wasmspec.OpI64Const:
		buf.WriteByte(byte(op))
		wasmspec.PutVarint(buf, instr.Operands[0])

	case op == wasmspec.OpF32Const:
		buf.WriteByte(byte(op))
		wasmspec.PutF32(buf, float32(instr.Float))

	case op == wasmspec.OpF64Const:
		buf.WriteByte(byte(op))
		wasmspec.PutF64(buf, instr.Float)

	case op == wasmspec.OpThrow:
		buf.WriteByte(byte(op))
		wasmspec.PutUvarint(buf, uint64(instr.Operands[0]))

	case op == wasmspec.OpRefFunc:
		buf.WriteByte(byte(op))
		wasmspec.PutUvarint(buf, uint64(instr.Operands[0]))

	case op == wasmspec.OpRefNull:
		buf.WriteByte(byte(op))
		buf.WriteByte(byte(instr.Operands[0]))

	case op == wasmspec.PrefixMisc:
		buf.WriteByte(byte(op))
		wasmspec.PutUvarint(buf, uint64(instr.Operands[0]))
		for _, v := range instr.Operands[1:] {
			wasmspec.PutUvarint(buf, uint64(v))
		}

	default:
		// Plain opcodes carrying no immediate: drop, select, arithmetic,
		// comparisons, conversions, unreachable, nop.
		buf.WriteByte(byte(op))
	}
	return nil
}

// isMemOp reports whether op is one of the align/offset memory
// load/store instructions, which all share the same memarg encoding.
func isMemOp(op wasmspec.Op) bool {
	switch op {
	case wasmspec.OpI32Load, wasmspec.OpI64Load, wasmspec.OpF32Load, wasmspec.OpF64Load,
		wasmspec.OpI32Load8S, wasmspec.OpI32Load8U, wasmspec.OpI32Load16S, wasmspec.OpI32Load16U,
		wasmspec.OpI64Load8S, wasmspec.OpI64Load8U, wasmspec.OpI64Load16S, wasmspec.OpI64Load16U,
		wasmspec.OpI64Load32S, wasmspec.OpI64Load32U,
		wasmspec.OpI32Store, wasmspec.OpI64Store, wasmspec.OpF32Store, wasmspec.OpF64Store,
		wasmspec.OpI32Store8, wasmspec.OpI32Store16, wasmspec.OpI64Store8, wasmspec.OpI64Store16, wasmspec.OpI64Store32:
		return true
	default:
		return false
	}
}
