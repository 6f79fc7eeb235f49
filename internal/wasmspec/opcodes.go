// Package wasmspec tabulates the pieces of the WebAssembly binary format
// the assembler, optimizer, and code generator need: section ids, value
// and block type encodings, and the opcode set. Nothing here is specific
// to this compiler — it is the wire format, kept in one place so every
// other package refers to named constants instead of raw bytes.
package wasmspec

import "fmt"

// Magic and Version are the eight header bytes every module starts with.
const (
	Magic   uint32 = 0x6D736100
	Version uint32 = 0x01
)

// SectionID identifies one of the ordered top-level sections of a module.
// Sections other than Custom must appear in this order.
type SectionID byte

const (
	SectionCustom    SectionID = 0
	SectionType      SectionID = 1
	SectionImport    SectionID = 2
	SectionFunction  SectionID = 3
	SectionTable     SectionID = 4
	SectionMemory    SectionID = 5
	SectionGlobal    SectionID = 6
	SectionExport    SectionID = 7
	SectionStart     SectionID = 8
	SectionElement   SectionID = 9
	SectionCode      SectionID = 10
	SectionData      SectionID = 11
	SectionDataCount SectionID = 12
	SectionTag       SectionID = 13
)

// ImportKind / ExportKind discriminate what an import or export descriptor
// refers to.
type ExternalKind byte

const (
	KindFunc   ExternalKind = 0
	KindTable  ExternalKind = 1
	KindMemory ExternalKind = 2
	KindGlobal ExternalKind = 3
	KindTag    ExternalKind = 4
)

// ValType is a single-byte value type encoding.
type ValType byte

const (
	I32     ValType = 0x7F
	I64     ValType = 0x7E
	F32     ValType = 0x7D
	F64     ValType = 0x7C
	V128    ValType = 0x7B
	FuncRef ValType = 0x70
	ExtRef  ValType = 0x6F
)

func (v ValType) String() string {
	switch v {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case V128:
		return "v128"
	case FuncRef:
		return "funcref"
	case ExtRef:
		return "externref"
	default:
		return "invalid"
	}
}

// BlockType is the signed LEB128 immediate a block/loop/if opcode carries
// when it has a single inline result type rather than a type-section index.
type BlockType int32

const (
	BlockVoid BlockType = -64
	BlockI32  BlockType = -1
	BlockI64  BlockType = -2
	BlockF32  BlockType = -3
	BlockF64  BlockType = -4
	BlockV128 BlockType = -5
)

// Op is a single-byte primary opcode. Multi-byte instructions (the Misc,
// SIMD, GC, and atomic families) are represented by a prefix Op plus a
// LEB128-encoded sub-opcode carried as the instruction's first operand.
type Op byte

const (
	OpUnreachable Op = 0x00
	OpNop         Op = 0x01
	OpBlock       Op = 0x02
	OpLoop        Op = 0x03
	OpIf          Op = 0x04
	OpElse        Op = 0x05
	OpTry         Op = 0x06
	OpCatch       Op = 0x07
	OpThrow       Op = 0x08
	OpRethrow     Op = 0x09
	OpThrowRef    Op = 0x0A
	OpEnd         Op = 0x0B
	OpBr          Op = 0x0C
	OpBrIf        Op = 0x0D
	OpBrTable     Op = 0x0E
	OpReturn      Op = 0x0F
	OpCall        Op = 0x10
	OpCallIndirect Op = 0x11
	// OpReturnCall/OpReturnCallIndirect are the tail-call proposal's
	// opcodes, only ever emitted by the optimizer's tail-call rewrite
	// and only when that pass is enabled.
	OpReturnCall         Op = 0x12
	OpReturnCallIndirect Op = 0x13
	OpDelegate    Op = 0x18
	OpCatchAll    Op = 0x19

	OpDrop       Op = 0x1A
	OpSelect     Op = 0x1B
	OpSelectType Op = 0x1C

	OpLocalGet  Op = 0x20
	OpLocalSet  Op = 0x21
	OpLocalTee  Op = 0x22
	OpGlobalGet Op = 0x23
	OpGlobalSet Op = 0x24

	OpI32Load    Op = 0x28
	OpI64Load    Op = 0x29
	OpF32Load    Op = 0x2A
	OpF64Load    Op = 0x2B
	OpI32Load8S  Op = 0x2C
	OpI32Load8U  Op = 0x2D
	OpI32Load16S Op = 0x2E
	OpI32Load16U Op = 0x2F
	OpI64Load8S  Op = 0x30
	OpI64Load8U  Op = 0x31
	OpI64Load16S Op = 0x32
	OpI64Load16U Op = 0x33
	OpI64Load32S Op = 0x34
	OpI64Load32U Op = 0x35

	OpI32Store   Op = 0x36
	OpI64Store   Op = 0x37
	OpF32Store   Op = 0x38
	OpF64Store   Op = 0x39
	OpI32Store8  Op = 0x3A
	OpI32Store16 Op = 0x3B
	OpI64Store8  Op = 0x3C
	OpI64Store16 Op = 0x3D
	OpI64Store32 Op = 0x3E

	OpMemorySize Op = 0x3F
	OpMemoryGrow Op = 0x40

	OpI32Const Op = 0x41
	OpI64Const Op = 0x42
	OpF32Const Op = 0x43
	OpF64Const Op = 0x44

	OpI32Eqz Op = 0x45
	OpI32Eq  Op = 0x46
	OpI32Ne  Op = 0x47
	OpI32LtS Op = 0x48
	OpI32LtU Op = 0x49
	OpI32GtS Op = 0x4A
	OpI32GtU Op = 0x4B
	OpI32LeS Op = 0x4C
	OpI32LeU Op = 0x4D
	OpI32GeS Op = 0x4E
	OpI32GeU Op = 0x4F

	OpI64Eqz Op = 0x50
	OpI64Eq  Op = 0x51
	OpI64Ne  Op = 0x52
	OpI64LtS Op = 0x53
	OpI64LtU Op = 0x54
	OpI64GtS Op = 0x55
	OpI64GtU Op = 0x56
	OpI64LeS Op = 0x57
	OpI64LeU Op = 0x58
	OpI64GeS Op = 0x59
	OpI64GeU Op = 0x5A

	OpF32Eq Op = 0x5B
	OpF32Ne Op = 0x5C
	OpF32Lt Op = 0x5D
	OpF32Gt Op = 0x5E
	OpF32Le Op = 0x5F
	OpF32Ge Op = 0x60

	OpF64Eq Op = 0x61
	OpF64Ne Op = 0x62
	OpF64Lt Op = 0x63
	OpF64Gt Op = 0x64
	OpF64Le Op = 0x65
	OpF64Ge Op = 0x66

	OpI32Clz    Op = 0x67
	OpI32Ctz    Op = 0x68
	OpI32Popcnt Op = 0x69
	OpI32Add    Op = 0x6A
	OpI32Sub    Op = 0x6B
	OpI32Mul    Op = 0x6C
	OpI32DivS   Op = 0x6D
	OpI32DivU   Op = 0x6E
	OpI32RemS   Op = 0x6F
	OpI32RemU   Op = 0x70
	OpI32And    Op = 0x71
	OpI32Or     Op = 0x72
	OpI32Xor    Op = 0x73
	OpI32Shl    Op = 0x74
	OpI32ShrS   Op = 0x75
	OpI32ShrU   Op = 0x76
	OpI32Rotl   Op = 0x77
	OpI32Rotr   Op = 0x78

	OpI64Clz    Op = 0x79
	OpI64Ctz    Op = 0x7A
	OpI64Popcnt Op = 0x7B
	OpI64Add    Op = 0x7C
	OpI64Sub    Op = 0x7D
	OpI64Mul    Op = 0x7E
	OpI64DivS   Op = 0x7F
	OpI64DivU   Op = 0x80
	OpI64RemS   Op = 0x81
	OpI64RemU   Op = 0x82
	OpI64And    Op = 0x83
	OpI64Or     Op = 0x84
	OpI64Xor    Op = 0x85
	OpI64Shl    Op = 0x86
	OpI64ShrS   Op = 0x87
	OpI64ShrU   Op = 0x88
	OpI64Rotl   Op = 0x89
	OpI64Rotr   Op = 0x8A

	OpF32Abs      Op = 0x8B
	OpF32Neg      Op = 0x8C
	OpF32Ceil     Op = 0x8D
	OpF32Floor    Op = 0x8E
	OpF32Trunc    Op = 0x8F
	OpF32Nearest  Op = 0x90
	OpF32Sqrt     Op = 0x91
	OpF32Add      Op = 0x92
	OpF32Sub      Op = 0x93
	OpF32Mul      Op = 0x94
	OpF32Div      Op = 0x95
	OpF32Min      Op = 0x96
	OpF32Max      Op = 0x97
	OpF32Copysign Op = 0x98

	OpF64Abs      Op = 0x99
	OpF64Neg      Op = 0x9A
	OpF64Ceil     Op = 0x9B
	OpF64Floor    Op = 0x9C
	OpF64Trunc    Op = 0x9D
	OpF64Nearest  Op = 0x9E
	OpF64Sqrt     Op = 0x9F
	OpF64Add      Op = 0xA0
	OpF64Sub      Op = 0xA1
	OpF64Mul      Op = 0xA2
	OpF64Div      Op = 0xA3
	OpF64Min      Op = 0xA4
	OpF64Max      Op = 0xA5
	OpF64Copysign Op = 0xA6

	OpI32WrapI64        Op = 0xA7
	OpI32TruncF32S      Op = 0xA8
	OpI32TruncF32U      Op = 0xA9
	OpI32TruncF64S      Op = 0xAA
	OpI32TruncF64U      Op = 0xAB
	OpI64ExtendI32S     Op = 0xAC
	OpI64ExtendI32U     Op = 0xAD
	OpI64TruncF32S      Op = 0xAE
	OpI64TruncF32U      Op = 0xAF
	OpI64TruncF64S      Op = 0xB0
	OpI64TruncF64U      Op = 0xB1
	OpF32ConvertI32S    Op = 0xB2
	OpF32ConvertI32U    Op = 0xB3
	OpF32ConvertI64S    Op = 0xB4
	OpF32ConvertI64U    Op = 0xB5
	OpF32DemoteF64      Op = 0xB6
	OpF64ConvertI32S    Op = 0xB7
	OpF64ConvertI32U    Op = 0xB8
	OpF64ConvertI64S    Op = 0xB9
	OpF64ConvertI64U    Op = 0xBA
	OpF64PromoteF32     Op = 0xBB
	OpI32ReinterpretF32 Op = 0xBC
	OpI64ReinterpretF64 Op = 0xBD
	OpF32ReinterpretI32 Op = 0xBE
	OpF64ReinterpretI64 Op = 0xBF

	OpI32Extend8S  Op = 0xC0
	OpI32Extend16S Op = 0xC1
	OpI64Extend8S  Op = 0xC2
	OpI64Extend16S Op = 0xC3
	OpI64Extend32S Op = 0xC4

	OpRefNull   Op = 0xD0
	OpRefIsNull Op = 0xD1
	OpRefFunc   Op = 0xD2

	// PrefixMisc introduces the 0xFC sub-opcode space: saturating
	// truncation and bulk-memory/table operations. The assembler encodes
	// the following LEB128 sub-opcode and its decoder reads it back via
	// the Misc* constants.
	PrefixMisc Op = 0xFC
)

var opNames = map[Op]string{
	OpUnreachable: "unreachable", OpNop: "nop", OpBlock: "block", OpLoop: "loop",
	OpIf: "if", OpElse: "else", OpTry: "try", OpCatch: "catch", OpThrow: "throw",
	OpRethrow: "rethrow", OpThrowRef: "throw_ref", OpEnd: "end", OpBr: "br",
	OpBrIf: "br_if", OpBrTable: "br_table", OpReturn: "return", OpCall: "call",
	OpCallIndirect: "call_indirect", OpReturnCall: "return_call",
	OpReturnCallIndirect: "return_call_indirect", OpDelegate: "delegate",
	OpCatchAll: "catch_all", OpDrop: "drop", OpSelect: "select",
	OpSelectType: "select_type", OpLocalGet: "local.get", OpLocalSet: "local.set",
	OpLocalTee: "local.tee", OpGlobalGet: "global.get", OpGlobalSet: "global.set",
	OpI32Load: "i32.load", OpI64Load: "i64.load", OpF32Load: "f32.load",
	OpF64Load: "f64.load", OpI32Store: "i32.store", OpI64Store: "i64.store",
	OpF32Store: "f32.store", OpF64Store: "f64.store", OpMemorySize: "memory.size",
	OpMemoryGrow: "memory.grow", OpI32Const: "i32.const", OpI64Const: "i64.const",
	OpF32Const: "f32.const", OpF64Const: "f64.const", OpI32Eqz: "i32.eqz",
	OpI32Eq: "i32.eq", OpI32Ne: "i32.ne", OpI32LtS: "i32.lt_s", OpI32LtU: "i32.lt_u",
	OpI32GtS: "i32.gt_s", OpI32GtU: "i32.gt_u", OpI32LeS: "i32.le_s",
	OpI32LeU: "i32.le_u", OpI32GeS: "i32.ge_s", OpI32GeU: "i32.ge_u",
	OpF64Eq: "f64.eq", OpF64Ne: "f64.ne", OpF64Lt: "f64.lt", OpF64Gt: "f64.gt",
	OpF64Le: "f64.le", OpF64Ge: "f64.ge", OpI32Add: "i32.add", OpI32Sub: "i32.sub",
	OpI32Mul: "i32.mul", OpI32And: "i32.and", OpI32Or: "i32.or", OpI32Xor: "i32.xor",
	OpF64Neg: "f64.neg", OpF64Add: "f64.add", OpF64Sub: "f64.sub",
	OpF64Mul: "f64.mul", OpF64Div: "f64.div", OpI32WrapI64: "i32.wrap_i64",
	OpI32TruncF64S: "i32.trunc_f64_s", OpF64ConvertI32S: "f64.convert_i32_s",
	OpRefNull: "ref.null", OpRefIsNull: "ref.is_null", OpRefFunc: "ref.func",
}

// String returns the WAT text-format mnemonic for op, or a hex fallback
// for anything not in the table above (the compiler emits only a subset
// of the full instruction set, so the table is deliberately partial).
func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op(0x%02X)", byte(op))
}

// Misc is a sub-opcode following a PrefixMisc byte.
type Misc uint32

const (
	MiscI32TruncSatF32S Misc = 0x00
	MiscI32TruncSatF32U Misc = 0x01
	MiscI32TruncSatF64S Misc = 0x02
	MiscI32TruncSatF64U Misc = 0x03
	MiscI64TruncSatF32S Misc = 0x04
	MiscI64TruncSatF32U Misc = 0x05
	MiscI64TruncSatF64S Misc = 0x06
	MiscI64TruncSatF64U Misc = 0x07
	MiscMemoryCopy      Misc = 0x0A
	MiscMemoryFill      Misc = 0x0B
)

// FuncTypeByte is the discriminant byte of a function type entry in the
// type section; this compiler never emits struct/array/rec/sub GC types.
const FuncTypeByte byte = 0x60

// LimitsFlag encodes whether a table/memory limit pair carries a max.
type LimitsFlag byte

const (
	LimitsNoMax  LimitsFlag = 0x00
	LimitsHasMax LimitsFlag = 0x01
)
