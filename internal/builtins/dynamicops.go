package builtins

import (
	"github.com/glint-lang/glintc/internal/ir"
	"github.com/glint-lang/glintc/internal/types"
	"github.com/glint-lang/glintc/internal/wasmspec"
)

// installDynamicAdd registers the runtime helper the generator calls for a
// `+` (or `+=`) whose operand types are not both known at compile time:
// spec.md's expression-lowering table requires the typed fast path only
// when both operands are statically numbers, and a call to a runtime
// built-in that dispatches on the type-id pair otherwise. String
// concatenation is the one other pairing this language surface gives a
// distinct meaning to; every other pair falls back to the same numeric add
// real ECMAScript reaches after coercion, per spec.md's dynamic-dispatch
// fallback-general-path language.
func installDynamicAdd(bc *ir.BuildContext, imports map[string]*ir.Function) *ir.Function {
	f := &ir.Function{
		Name:    "rtAdd",
		Params:  []wasmspec.ValType{wasmspec.F64, wasmspec.I32, wasmspec.F64, wasmspec.I32},
		Results: []wasmspec.ValType{wasmspec.F64, wasmspec.I32},
		Locals: []ir.Local{
			{Name: "resV", Type: wasmspec.F64},
			{Name: "resT", Type: wasmspec.I32},
		},
		Flags: types.FuncFlags{Internal: true},
		Lower: func() []ir.Instruction {
			const lv, lt, rv, rt = 0, 1, 2, 3
			const resV, resT = 4, 5

			bothStrings := []ir.Instruction{
				ir.LocalGet(lt), ir.I32Const(int32(types.String)), ir.Plain(wasmspec.OpI32Eq),
				ir.LocalGet(rt), ir.I32Const(int32(types.String)), ir.Plain(wasmspec.OpI32Eq),
				ir.Plain(wasmspec.OpI32And),
			}
			concatThen := []ir.Instruction{
				ir.LocalGet(lv), ir.Plain(wasmspec.OpI32TruncF64U),
				ir.LocalGet(rv), ir.Plain(wasmspec.OpI32TruncF64U),
				ir.Call(imports["String#concat"].Index),
				ir.Plain(wasmspec.OpF64ConvertI32U), ir.LocalSet(resV),
				ir.I32Const(int32(types.String)), ir.LocalSet(resT),
			}
			numericElse := []ir.Instruction{
				ir.LocalGet(lv), ir.LocalGet(rv), ir.Plain(wasmspec.OpF64Add), ir.LocalSet(resV),
				ir.I32Const(int32(types.Number)), ir.LocalSet(resT),
			}

			out := append([]ir.Instruction{}, bothStrings...)
			out = append(out, ir.If(wasmspec.BlockVoid, concatThen, numericElse))
			out = append(out, ir.LocalGet(resV), ir.LocalGet(resT))
			return out
		},
	}
	bc.ReserveFunction(f)
	return f
}
