package builtins

import (
	"golang.org/x/text/encoding/unicode"

	"github.com/glint-lang/glintc/internal/ir"
	"github.com/glint-lang/glintc/internal/types"
	"github.com/glint-lang/glintc/internal/wasmspec"
)

// String representation in linear memory: a string value is an i32
// pointer into the string page. At that pointer: a 4-byte UTF-16 code
// unit count, followed by that many 2-byte little-endian UTF-16 code
// units — matching how real ECMAScript strings are length- and
// index-addressed, even though the compiler's source text arrives as
// UTF-8.
const (
	stringLengthOffset = 0
	stringDataOffset   = 4
)

// utf16Encoder converts a compile-time UTF-8 string literal into the
// UTF-16LE bytes stored in its data segment. Reused by the generator
// whenever it lowers a StringLiteral; grounded on the same
// golang.org/x/text/encoding/unicode codec the teacher's Component Model
// string canonical ABI uses for the equivalent UTF-8/UTF-16 conversion.
var utf16Encoder = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()

// EncodeUTF16 converts a Go (UTF-8) string into the UTF-16LE byte
// sequence stored after a string value's length header.
func EncodeUTF16(s string) ([]byte, error) {
	return utf16Encoder.Bytes([]byte(s))
}

// CodeUnitCount returns the UTF-16 code unit count of s, the value
// stored in the length header.
func CodeUnitCount(s string) (uint32, error) {
	b, err := EncodeUTF16(s)
	if err != nil {
		return 0, err
	}
	return uint32(len(b) / 2), nil
}

func registerString(r *Registry) {
	r.add(types.String, "length", Method{
		QualifiedName: "String#length",
		Params:        []wasmspec.ValType{wasmspec.I32},
		Results:       []wasmspec.ValType{wasmspec.F64},
		Build: func(map[string]*ir.Function) []ir.Instruction {
			return []ir.Instruction{
				ir.LocalGet(0),
				ir.Mem(wasmspec.OpI32Load, 2, stringLengthOffset),
				ir.Plain(wasmspec.OpF64ConvertI32U),
			}
		},
	})

	r.add(types.String, "charCodeAt", Method{
		QualifiedName: "String#charCodeAt",
		Params:        []wasmspec.ValType{wasmspec.I32, wasmspec.I32},
		Results:       []wasmspec.ValType{wasmspec.F64},
		Build: func(map[string]*ir.Function) []ir.Instruction {
			return []ir.Instruction{
				// address = ptr + stringDataOffset + index*2
				ir.LocalGet(0),
				ir.LocalGet(1), ir.I32Const(2), ir.Plain(wasmspec.OpI32Mul),
				ir.Plain(wasmspec.OpI32Add),
				ir.Mem(wasmspec.OpI32Load16U, 1, stringDataOffset),
				ir.Plain(wasmspec.OpF64ConvertI32U),
			}
		},
	})

	r.add(types.String, "charAt", Method{
		QualifiedName: "String#charAt",
		Params:        []wasmspec.ValType{wasmspec.I32, wasmspec.I32},
		Results:       []wasmspec.ValType{wasmspec.I32},
		Locals:        []wasmspec.ValType{wasmspec.I32}, // 2: new string pointer
		Build: func(imports map[string]*ir.Function) []ir.Instruction {
			// Allocate a 1-code-unit string, copy the one code unit, return its pointer.
			return []ir.Instruction{
				ir.I32Const(stringDataOffset + 2), ir.Call(imports["alloc"].Index),
				ir.LocalSet(2), // new string pointer

				ir.LocalGet(2), ir.I32Const(1), ir.Mem(wasmspec.OpI32Store, 2, stringLengthOffset),

				ir.LocalGet(2),
				ir.LocalGet(0),
				ir.LocalGet(1), ir.I32Const(2), ir.Plain(wasmspec.OpI32Mul),
				ir.Plain(wasmspec.OpI32Add),
				ir.Mem(wasmspec.OpI32Load16U, 1, stringDataOffset),
				ir.Mem(wasmspec.OpI32Store16, 1, stringDataOffset),

				ir.LocalGet(2),
			}
		},
	})

	r.add(types.String, "slice", Method{
		QualifiedName: "String#slice",
		Params:        []wasmspec.ValType{wasmspec.I32, wasmspec.I32, wasmspec.I32},
		Results:       []wasmspec.ValType{wasmspec.I32},
		Locals:        []wasmspec.ValType{wasmspec.I32, wasmspec.I32, wasmspec.I32}, // 3: len, 4: dst, 5: i
		Build: func(imports map[string]*ir.Function) []ir.Instruction {
			// locals: 0 src, 1 start, 2 end; scratch 3 len, 4 dst, 5 i
			loopBody := []ir.Instruction{
				ir.LocalGet(5), ir.LocalGet(3), ir.Plain(wasmspec.OpI32GeU), ir.BrIf(1),

				ir.LocalGet(4),
				ir.LocalGet(5), ir.I32Const(2), ir.Plain(wasmspec.OpI32Mul),
				ir.Plain(wasmspec.OpI32Add),

				ir.LocalGet(0),
				ir.LocalGet(1), ir.LocalGet(5), ir.Plain(wasmspec.OpI32Add),
				ir.I32Const(2), ir.Plain(wasmspec.OpI32Mul),
				ir.Plain(wasmspec.OpI32Add),
				ir.Mem(wasmspec.OpI32Load16U, 1, stringDataOffset),
				ir.Mem(wasmspec.OpI32Store16, 1, stringDataOffset),

				ir.LocalGet(5), ir.I32Const(1), ir.Plain(wasmspec.OpI32Add), ir.LocalSet(5),
				ir.Br(0),
			}
			return []ir.Instruction{
				ir.LocalGet(2), ir.LocalGet(1), ir.Plain(wasmspec.OpI32Sub), ir.LocalSet(3),

				ir.LocalGet(3), ir.I32Const(2), ir.Plain(wasmspec.OpI32Mul),
				ir.I32Const(stringDataOffset), ir.Plain(wasmspec.OpI32Add),
				ir.Call(imports["alloc"].Index), ir.LocalSet(4),

				ir.LocalGet(4), ir.LocalGet(3), ir.Mem(wasmspec.OpI32Store, 2, stringLengthOffset),

				ir.I32Const(0), ir.LocalSet(5),
				ir.Block(wasmspec.BlockVoid, []ir.Instruction{ir.Loop(wasmspec.BlockVoid, loopBody)}),

				ir.LocalGet(4),
			}
		},
	})

	r.add(types.String, "concat", Method{
		QualifiedName: "String#concat",
		Params:        []wasmspec.ValType{wasmspec.I32, wasmspec.I32},
		Results:       []wasmspec.ValType{wasmspec.I32},
		Locals:        []wasmspec.ValType{wasmspec.I32, wasmspec.I32, wasmspec.I32}, // 2: aLen, 3: bLen, 4: dst
		Build: func(imports map[string]*ir.Function) []ir.Instruction {
			// locals: 0 a, 1 b; scratch 2 aLen, 3 bLen, 4 dst
			return []ir.Instruction{
				ir.LocalGet(0), ir.Mem(wasmspec.OpI32Load, 2, stringLengthOffset), ir.LocalSet(2),
				ir.LocalGet(1), ir.Mem(wasmspec.OpI32Load, 2, stringLengthOffset), ir.LocalSet(3),

				ir.LocalGet(2), ir.LocalGet(3), ir.Plain(wasmspec.OpI32Add),
				ir.I32Const(2), ir.Plain(wasmspec.OpI32Mul),
				ir.I32Const(stringDataOffset), ir.Plain(wasmspec.OpI32Add),
				ir.Call(imports["alloc"].Index), ir.LocalSet(4),

				ir.LocalGet(4),
				ir.LocalGet(2), ir.LocalGet(3), ir.Plain(wasmspec.OpI32Add),
				ir.Mem(wasmspec.OpI32Store, 2, stringLengthOffset),

				// copy a's code units
				ir.LocalGet(4), ir.I32Const(stringDataOffset), ir.Plain(wasmspec.OpI32Add),
				ir.LocalGet(0), ir.I32Const(stringDataOffset), ir.Plain(wasmspec.OpI32Add),
				ir.LocalGet(2), ir.I32Const(2), ir.Plain(wasmspec.OpI32Mul),
				ir.Instruction{Op: wasmspec.PrefixMisc, Operands: []int64{int64(wasmspec.MiscMemoryCopy), 0, 0}},

				// copy b's code units after a's
				ir.LocalGet(4), ir.I32Const(stringDataOffset), ir.Plain(wasmspec.OpI32Add),
				ir.LocalGet(2), ir.I32Const(2), ir.Plain(wasmspec.OpI32Mul), ir.Plain(wasmspec.OpI32Add),
				ir.LocalGet(1), ir.I32Const(stringDataOffset), ir.Plain(wasmspec.OpI32Add),
				ir.LocalGet(3), ir.I32Const(2), ir.Plain(wasmspec.OpI32Mul),
				ir.Instruction{Op: wasmspec.PrefixMisc, Operands: []int64{int64(wasmspec.MiscMemoryCopy), 0, 0}},

				ir.LocalGet(4),
			}
		},
	})

	r.add(types.String, "indexOf", Method{
		QualifiedName: "String#indexOf",
		Params:        []wasmspec.ValType{wasmspec.I32, wasmspec.I32},
		Results:       []wasmspec.ValType{wasmspec.F64},
		// 2: len, 3: target, 4: i, 5: foundAt
		Locals: []wasmspec.ValType{wasmspec.I32, wasmspec.I32, wasmspec.I32, wasmspec.I32},
		Build: func(map[string]*ir.Function) []ir.Instruction {
			// A single-code-unit needle search: only the needle's first
			// code unit is compared, so a multi-unit needle matches
			// wherever its first code unit occurs; its remaining code
			// units are not checked.
			// locals: 0 str, 1 needle; scratch 2 len, 3 target, 4 i, 5 foundAt
			matchCondition := []ir.Instruction{
				ir.LocalGet(0),
				ir.LocalGet(4), ir.I32Const(2), ir.Plain(wasmspec.OpI32Mul), ir.Plain(wasmspec.OpI32Add),
				ir.Mem(wasmspec.OpI32Load16U, 1, stringDataOffset),
				ir.LocalGet(3), ir.Plain(wasmspec.OpI32Eq),

				ir.LocalGet(5), ir.I32Const(-1), ir.Plain(wasmspec.OpI32Eq),
				ir.Plain(wasmspec.OpI32And),
			}
			markFound := ir.If(wasmspec.BlockVoid, []ir.Instruction{ir.LocalGet(4), ir.LocalSet(5)}, nil)
			loopBody := append(append([]ir.Instruction{
				ir.LocalGet(4), ir.LocalGet(2), ir.Plain(wasmspec.OpI32GeU), ir.BrIf(1),
			}, matchCondition...), markFound,
				ir.LocalGet(4), ir.I32Const(1), ir.Plain(wasmspec.OpI32Add), ir.LocalSet(4),
				ir.Br(0),
			)
			return []ir.Instruction{
				ir.LocalGet(0), ir.Mem(wasmspec.OpI32Load, 2, stringLengthOffset), ir.LocalSet(2),
				ir.LocalGet(1), ir.Mem(wasmspec.OpI32Load16U, 1, stringDataOffset), ir.LocalSet(3),
				ir.I32Const(0), ir.LocalSet(4),
				ir.I32Const(-1), ir.LocalSet(5),
				ir.Block(wasmspec.BlockVoid, []ir.Instruction{ir.Loop(wasmspec.BlockVoid, loopBody)}),
				ir.LocalGet(5), ir.Plain(wasmspec.OpF64ConvertI32S),
			}
		},
	})

	caseFold := func(name string, upper bool) {
		r.add(types.String, name, Method{
			QualifiedName: "String#" + name,
			Params:        []wasmspec.ValType{wasmspec.I32},
			Results:       []wasmspec.ValType{wasmspec.I32},
			// 1: len, 2: dst, 3: i, 4: char
			Locals: []wasmspec.ValType{wasmspec.I32, wasmspec.I32, wasmspec.I32, wasmspec.I32},
			Build: func(imports map[string]*ir.Function) []ir.Instruction {
				lo, hi := int32('A'), int32('Z')
				delta := int32(32)
				if upper {
					lo, hi = int32('a'), int32('z')
					delta = -32
				}
				// locals: 0 src; scratch 1 len, 2 dst, 3 i, 4 char
				loopBody := []ir.Instruction{
					ir.LocalGet(3), ir.LocalGet(1), ir.Plain(wasmspec.OpI32GeU), ir.BrIf(1),

					ir.LocalGet(0),
					ir.LocalGet(3), ir.I32Const(2), ir.Plain(wasmspec.OpI32Mul), ir.Plain(wasmspec.OpI32Add),
					ir.Mem(wasmspec.OpI32Load16U, 1, stringDataOffset),
					ir.LocalSet(4),

					ir.LocalGet(2),
					ir.LocalGet(3), ir.I32Const(2), ir.Plain(wasmspec.OpI32Mul), ir.Plain(wasmspec.OpI32Add),

					ir.LocalGet(4),
					ir.LocalGet(4), ir.I32Const(lo), ir.Plain(wasmspec.OpI32GeU),
					ir.LocalGet(4), ir.I32Const(hi), ir.Plain(wasmspec.OpI32LeU),
					ir.Plain(wasmspec.OpI32And),
					ir.I32Const(delta),
					ir.Plain(wasmspec.OpI32Mul),
					ir.Plain(wasmspec.OpI32Add),
					ir.Mem(wasmspec.OpI32Store16, 1, stringDataOffset),

					ir.LocalGet(3), ir.I32Const(1), ir.Plain(wasmspec.OpI32Add), ir.LocalSet(3),
					ir.Br(0),
				}
				return []ir.Instruction{
					ir.LocalGet(0), ir.Mem(wasmspec.OpI32Load, 2, stringLengthOffset), ir.LocalSet(1),
					ir.LocalGet(1), ir.I32Const(2), ir.Plain(wasmspec.OpI32Mul),
					ir.I32Const(stringDataOffset), ir.Plain(wasmspec.OpI32Add),
					ir.Call(imports["alloc"].Index), ir.LocalSet(2),
					ir.LocalGet(2), ir.LocalGet(1), ir.Mem(wasmspec.OpI32Store, 2, stringLengthOffset),

					ir.I32Const(0), ir.LocalSet(3),
					ir.Block(wasmspec.BlockVoid, []ir.Instruction{ir.Loop(wasmspec.BlockVoid, loopBody)}),

					ir.LocalGet(2),
				}
			},
		})
	}
	caseFold("toUpperCase", true)
	caseFold("toLowerCase", false)
}
