package builtins

import (
	"github.com/glint-lang/glintc/internal/ir"
	"github.com/glint-lang/glintc/internal/types"
	"github.com/glint-lang/glintc/internal/wasmspec"
)

// Array layout in linear memory: a 3-word header (capacity, length,
// element base pointer); the elements live in the separately allocated
// backing store the base pointer addresses, reallocated on growth. Every
// slot is one bare f64 with no type tag stored beside it, and the
// generator tags every element it reads back as Number, so a non-number
// stored into an array reads back as a Number holding its raw value
// channel.
const (
	arrayCapOffset  = 0
	arrayLenOffset  = 4
	arrayDataOffset = 8
)

func registerArray(r *Registry) {
	r.add(types.Array, "length", Method{
		QualifiedName: "Array#length",
		Params:        []wasmspec.ValType{wasmspec.I32},
		Results:       []wasmspec.ValType{wasmspec.F64},
		Build: func(map[string]*ir.Function) []ir.Instruction {
			return []ir.Instruction{
				ir.LocalGet(0), ir.Mem(wasmspec.OpI32Load, 2, arrayLenOffset),
				ir.Plain(wasmspec.OpF64ConvertI32U),
			}
		},
	})

	r.add(types.Array, "get", Method{
		QualifiedName: "Array#get",
		Params:        []wasmspec.ValType{wasmspec.I32, wasmspec.I32},
		Results:       []wasmspec.ValType{wasmspec.F64},
		Build: func(map[string]*ir.Function) []ir.Instruction {
			return []ir.Instruction{
				ir.LocalGet(0), ir.Mem(wasmspec.OpI32Load, 2, arrayDataOffset),
				ir.LocalGet(1), ir.I32Const(8), ir.Plain(wasmspec.OpI32Mul),
				ir.Plain(wasmspec.OpI32Add),
				ir.Mem(wasmspec.OpF64Load, 3, 0),
			}
		},
	})

	r.add(types.Array, "set", Method{
		QualifiedName: "Array#set",
		Params:        []wasmspec.ValType{wasmspec.I32, wasmspec.I32, wasmspec.F64},
		Build: func(map[string]*ir.Function) []ir.Instruction {
			return []ir.Instruction{
				ir.LocalGet(0), ir.Mem(wasmspec.OpI32Load, 2, arrayDataOffset),
				ir.LocalGet(1), ir.I32Const(8), ir.Plain(wasmspec.OpI32Mul),
				ir.Plain(wasmspec.OpI32Add),
				ir.LocalGet(2), ir.Mem(wasmspec.OpF64Store, 3, 0),
			}
		},
	})

	r.add(types.Array, "push", Method{
		QualifiedName: "Array#push",
		Params:        []wasmspec.ValType{wasmspec.I32, wasmspec.F64},
		Results:       []wasmspec.ValType{wasmspec.F64},
		// 2: len, 3: cap, 4: data, 5: newData
		Locals: []wasmspec.ValType{wasmspec.I32, wasmspec.I32, wasmspec.I32, wasmspec.I32},
		Build: func(imports map[string]*ir.Function) []ir.Instruction {
			// locals: 0 arr, 1 value; scratch 2 len, 3 cap, 4 data, 5 newData
			grow := ir.If(wasmspec.BlockVoid, []ir.Instruction{
				// newCap = cap == 0 ? 1 : cap*2; reallocate and copy existing elements
				ir.LocalGet(3), ir.I32Const(0), ir.Plain(wasmspec.OpI32Eq),
				ir.If(wasmspec.BlockI32,
					[]ir.Instruction{ir.I32Const(1)},
					[]ir.Instruction{ir.LocalGet(3), ir.I32Const(2), ir.Plain(wasmspec.OpI32Mul)},
				),
				ir.LocalSet(3),

				ir.LocalGet(3), ir.I32Const(8), ir.Plain(wasmspec.OpI32Mul),
				ir.Call(imports["alloc"].Index), ir.LocalSet(5),

				ir.LocalGet(5), ir.LocalGet(4),
				ir.LocalGet(2), ir.I32Const(8), ir.Plain(wasmspec.OpI32Mul),
				ir.Instruction{Op: wasmspec.PrefixMisc, Operands: []int64{int64(wasmspec.MiscMemoryCopy), 0, 0}},

				ir.LocalGet(0), ir.LocalGet(5), ir.Mem(wasmspec.OpI32Store, 2, arrayDataOffset),
				ir.LocalGet(0), ir.LocalGet(3), ir.Mem(wasmspec.OpI32Store, 2, arrayCapOffset),
				ir.LocalGet(5), ir.LocalSet(4),
			}, nil)

			return []ir.Instruction{
				ir.LocalGet(0), ir.Mem(wasmspec.OpI32Load, 2, arrayLenOffset), ir.LocalSet(2),
				ir.LocalGet(0), ir.Mem(wasmspec.OpI32Load, 2, arrayCapOffset), ir.LocalSet(3),
				ir.LocalGet(0), ir.Mem(wasmspec.OpI32Load, 2, arrayDataOffset), ir.LocalSet(4),

				ir.LocalGet(2), ir.LocalGet(3), ir.Plain(wasmspec.OpI32GeU), grow,

				ir.LocalGet(4), ir.LocalGet(2), ir.I32Const(8), ir.Plain(wasmspec.OpI32Mul),
				ir.Plain(wasmspec.OpI32Add),
				ir.LocalGet(1), ir.Mem(wasmspec.OpF64Store, 3, 0),

				ir.LocalGet(0),
				ir.LocalGet(2), ir.I32Const(1), ir.Plain(wasmspec.OpI32Add),
				ir.LocalTee(2), ir.Mem(wasmspec.OpI32Store, 2, arrayLenOffset),

				ir.LocalGet(2), ir.Plain(wasmspec.OpF64ConvertI32U),
			}
		},
	})

	r.add(types.Array, "pop", Method{
		QualifiedName: "Array#pop",
		Params:        []wasmspec.ValType{wasmspec.I32},
		Results:       []wasmspec.ValType{wasmspec.F64},
		Locals:        []wasmspec.ValType{wasmspec.I32, wasmspec.I32}, // 1: len, 2: data
		Build: func(map[string]*ir.Function) []ir.Instruction {
			// locals: 0 arr; scratch 1 len, 2 data
			return []ir.Instruction{
				ir.LocalGet(0), ir.Mem(wasmspec.OpI32Load, 2, arrayLenOffset),
				ir.I32Const(1), ir.Plain(wasmspec.OpI32Sub), ir.LocalSet(1),

				ir.LocalGet(0), ir.LocalGet(1), ir.Mem(wasmspec.OpI32Store, 2, arrayLenOffset),

				ir.LocalGet(0), ir.Mem(wasmspec.OpI32Load, 2, arrayDataOffset), ir.LocalSet(2),
				ir.LocalGet(2), ir.LocalGet(1), ir.I32Const(8), ir.Plain(wasmspec.OpI32Mul),
				ir.Plain(wasmspec.OpI32Add),
				ir.Mem(wasmspec.OpF64Load, 3, 0),
			}
		},
	})
}
