package assembler

import (
	"bytes"
	"fmt"

	"github.com/glint-lang/glintc/internal/diagnostics"
	"github.com/glint-lang/glintc/internal/ir"
	"github.com/glint-lang/glintc/internal/wasmspec"
)

// decodedType is one type-section entry, kept around so Decode can
// recover a call_indirect's arity and an imported/defined function's
// declared signature. Grounded on the teacher's section-by-section walk
// in wasm/parser.go's ReadExports, generalized from "pull out a few
// sections" to "rebuild the whole module".
type decodedType struct {
	params  []wasmspec.ValType
	results []wasmspec.ValType
}

type decoder struct {
	types []decodedType
}

// Decode parses a binary Wasm module back into IR, the inverse of
// Encode. It is used for the round-trip testable property (spec.md §8)
// and by glintdump to disassemble a compiled binary without needing the
// original source.
func Decode(data []byte) (*ir.Module, error) {
	r := bytes.NewReader(data)
	if err := readHeader(r); err != nil {
		return nil, err
	}

	d := &decoder{}
	mod := &ir.Module{}
	var funcTypeIdx []uint32 // type index per function, imports first then defined, in declaration order
	var tableCount int

	for r.Len() > 0 {
		idByte, err := r.ReadByte()
		if err != nil {
			return nil, diagnostics.NewEncodingError("reading section id: %v", err)
		}
		size, err := wasmspec.ReadUvarint(r)
		if err != nil {
			return nil, diagnostics.NewEncodingError("reading section size: %v", err)
		}
		body := make([]byte, size)
		if _, err := r.Read(body); err != nil {
			return nil, diagnostics.NewEncodingError("reading section body: %v", err)
		}
		sr := bytes.NewReader(body)

		switch wasmspec.SectionID(idByte) {
		case wasmspec.SectionType:
			if err := d.readTypeSection(sr); err != nil {
				return nil, err
			}
		case wasmspec.SectionImport:
			idx, err := d.readImportSection(sr, mod)
			if err != nil {
				return nil, err
			}
			funcTypeIdx = append(funcTypeIdx, idx...)
		case wasmspec.SectionFunction:
			idx, err := readFunctionSection(sr)
			if err != nil {
				return nil, err
			}
			funcTypeIdx = append(funcTypeIdx, idx...)
			for _, ti := range idx {
				mod.Functions = append(mod.Functions, &ir.Function{
					Index:   uint32(len(mod.Functions)),
					Params:  d.types[ti].params,
					Results: d.types[ti].results,
				})
			}
		case wasmspec.SectionTable:
			n, err := wasmspec.ReadUvarint(sr)
			if err != nil {
				return nil, err
			}
			tableCount = int(n)
			mod.HasIndirectCalls = tableCount > 0
		case wasmspec.SectionMemory:
			if err := readMemorySection(sr, mod); err != nil {
				return nil, err
			}
		case wasmspec.SectionTag:
			if err := d.readTagSection(sr, mod); err != nil {
				return nil, err
			}
		case wasmspec.SectionGlobal:
			if err := d.readGlobalSection(sr, mod); err != nil {
				return nil, err
			}
		case wasmspec.SectionExport:
			if err := readExportSection(sr, mod); err != nil {
				return nil, err
			}
		case wasmspec.SectionElement:
			// Always table[i] = function i in this compiler's own output;
			// re-deriving HasIndirectCalls from the table section already
			// captured the information a consumer needs.
			if _, err := io_discard(sr); err != nil {
				return nil, err
			}
		case wasmspec.SectionDataCount:
			if _, err := wasmspec.ReadUvarint(sr); err != nil {
				return nil, err
			}
		case wasmspec.SectionCode:
			if err := d.readCodeSection(sr, mod, len(funcTypeIdx)-len(importedCount(mod))); err != nil {
				return nil, err
			}
		case wasmspec.SectionData:
			if err := readDataSection(sr, mod); err != nil {
				return nil, err
			}
		case wasmspec.SectionCustom:
			readNameSection(sr, mod)
		}
	}

	return mod, nil
}

func importedCount(mod *ir.Module) []*ir.Function {
	var out []*ir.Function
	for _, fn := range mod.Functions {
		if fn.Imported {
			out = append(out, fn)
		}
	}
	return out
}

func io_discard(r *bytes.Reader) (int64, error) {
	return r.Seek(0, 2)
}

func readHeader(r *bytes.Reader) error {
	var magic, version [4]byte
	if _, err := r.Read(magic[:]); err != nil {
		return diagnostics.NewEncodingError("reading magic: %v", err)
	}
	if _, err := r.Read(version[:]); err != nil {
		return diagnostics.NewEncodingError("reading version: %v", err)
	}
	if magic != [4]byte{0x00, 0x61, 0x73, 0x6D} {
		return diagnostics.NewEncodingError("bad magic bytes %x", magic)
	}
	if version != [4]byte{0x01, 0x00, 0x00, 0x00} {
		return diagnostics.NewEncodingError("unsupported version %x", version)
	}
	return nil
}

func (d *decoder) readTypeSection(r *bytes.Reader) error {
	n, err := wasmspec.ReadUvarint(r)
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		tag, err := r.ReadByte()
		if err != nil {
			return err
		}
		if tag != wasmspec.FuncTypeByte {
			return diagnostics.NewEncodingError("unsupported type-section entry tag 0x%x", tag)
		}
		params, err := readValTypeVec(r)
		if err != nil {
			return err
		}
		results, err := readValTypeVec(r)
		if err != nil {
			return err
		}
		d.types = append(d.types, decodedType{params, results})
	}
	return nil
}

func readValTypeVec(r *bytes.Reader) ([]wasmspec.ValType, error) {
	n, err := wasmspec.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	out := make([]wasmspec.ValType, n)
	for i := range out {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		out[i] = wasmspec.ValType(b)
	}
	return out, nil
}

func (d *decoder) readImportSection(r *bytes.Reader, mod *ir.Module) ([]uint32, error) {
	n, err := wasmspec.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	var idx []uint32
	for i := uint64(0); i < n; i++ {
		mName, err := wasmspec.ReadName(r)
		if err != nil {
			return nil, err
		}
		fName, err := wasmspec.ReadName(r)
		if err != nil {
			return nil, err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if wasmspec.ExternalKind(kind) != wasmspec.KindFunc {
			return nil, diagnostics.NewEncodingError("import kind %d not supported by decode", kind)
		}
		ti, err := wasmspec.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		fn := &ir.Function{
			Name:      fName,
			Imported:  true,
			ImportMod: mName,
			ImportFn:  fName,
			Index:     uint32(len(mod.Functions)),
			Params:    d.types[ti].params,
			Results:   d.types[ti].results,
		}
		mod.Functions = append(mod.Functions, fn)
		idx = append(idx, uint32(ti))
	}
	return idx, nil
}

func readFunctionSection(r *bytes.Reader) ([]uint32, error) {
	n, err := wasmspec.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		ti, err := wasmspec.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		out[i] = uint32(ti)
	}
	return out, nil
}

func readLimits(r *bytes.Reader) (min, max uint32, hasMax bool, err error) {
	flag, err := r.ReadByte()
	if err != nil {
		return 0, 0, false, err
	}
	mn, err := wasmspec.ReadUvarint(r)
	if err != nil {
		return 0, 0, false, err
	}
	if wasmspec.LimitsFlag(flag) == wasmspec.LimitsHasMax {
		mx, err := wasmspec.ReadUvarint(r)
		if err != nil {
			return 0, 0, false, err
		}
		return uint32(mn), uint32(mx), true, nil
	}
	return uint32(mn), 0, false, nil
}

func readMemorySection(r *bytes.Reader, mod *ir.Module) error {
	n, err := wasmspec.ReadUvarint(r)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	min, max, hasMax, err := readLimits(r)
	if err != nil {
		return err
	}
	mod.MemoryMinPages = min
	if hasMax {
		mod.MemoryMaxPages = max
	}
	return nil
}

func (d *decoder) readTagSection(r *bytes.Reader, mod *ir.Module) error {
	n, err := wasmspec.ReadUvarint(r)
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		if _, err := r.ReadByte(); err != nil { // attribute byte
			return err
		}
		ti, err := wasmspec.ReadUvarint(r)
		if err != nil {
			return err
		}
		mod.Tags = append(mod.Tags, &ir.Tag{
			Index:  uint32(len(mod.Tags)),
			Params: d.types[ti].params,
		})
	}
	return nil
}

func (d *decoder) readGlobalSection(r *bytes.Reader, mod *ir.Module) error {
	n, err := wasmspec.ReadUvarint(r)
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		tb, err := r.ReadByte()
		if err != nil {
			return err
		}
		mb, err := r.ReadByte()
		if err != nil {
			return err
		}
		init, err := d.decodeConstExpr(r)
		if err != nil {
			return err
		}
		mod.Globals = append(mod.Globals, &ir.Global{
			Index:   uint32(len(mod.Globals)),
			Type:    wasmspec.ValType(tb),
			Mutable: mb == 0x01,
			Init:    init,
		})
	}
	return nil
}

// decodeConstExpr reads a single const instruction followed by its
// terminating End — the only expression shape this compiler ever
// places in a global's init or a data/element segment's offset.
func (d *decoder) decodeConstExpr(r *bytes.Reader) (ir.Instruction, error) {
	instrs, err := d.decodeBody(r)
	if err != nil {
		return ir.Instruction{}, err
	}
	if _, err := consumeEnd(r); err != nil {
		return ir.Instruction{}, err
	}
	if len(instrs) != 1 {
		return ir.Instruction{}, diagnostics.NewEncodingError("const expression has %d instructions, want 1", len(instrs))
	}
	return instrs[0], nil
}

func readExportSection(r *bytes.Reader, mod *ir.Module) error {
	n, err := wasmspec.ReadUvarint(r)
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		name, err := wasmspec.ReadName(r)
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		idx, err := wasmspec.ReadUvarint(r)
		if err != nil {
			return err
		}
		if wasmspec.ExternalKind(kind) == wasmspec.KindFunc && int(idx) < len(mod.Functions) {
			mod.Functions[idx].Exported = true
			mod.Functions[idx].ExportAs = name
		}
	}
	return nil
}

func readDataSection(r *bytes.Reader, mod *ir.Module) error {
	n, err := wasmspec.ReadUvarint(r)
	if err != nil {
		return err
	}
	d := &decoder{}
	for i := uint64(0); i < n; i++ {
		flag, err := wasmspec.ReadUvarint(r)
		if err != nil {
			return err
		}
		if flag != 0 {
			return diagnostics.NewEncodingError("passive/explicit-memory data segments not supported by decode")
		}
		offsetExpr, err := d.decodeConstExpr(r)
		if err != nil {
			return err
		}
		n, err := wasmspec.ReadUvarint(r)
		if err != nil {
			return err
		}
		bytes_ := make([]byte, n)
		if _, err := r.Read(bytes_); err != nil {
			return err
		}
		mod.Data = append(mod.Data, &ir.DataSegment{
			Index:  uint32(len(mod.Data)),
			Offset: uint32(offsetExpr.Operands[0]),
			Bytes:  bytes_,
		})
	}
	return nil
}

func readNameSection(r *bytes.Reader, mod *ir.Module) {
	name, err := wasmspec.ReadName(r)
	if err != nil || name != "name" {
		return
	}
	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			return
		}
		size, err := wasmspec.ReadUvarint(r)
		if err != nil {
			return
		}
		body := make([]byte, size)
		if _, err := r.Read(body); err != nil {
			return
		}
		if id == 1 { // function names
			sr := bytes.NewReader(body)
			n, err := wasmspec.ReadUvarint(sr)
			if err != nil {
				return
			}
			for i := uint64(0); i < n; i++ {
				idx, err := wasmspec.ReadUvarint(sr)
				if err != nil {
					return
				}
				nm, err := wasmspec.ReadName(sr)
				if err != nil {
					return
				}
				if int(idx) < len(mod.Functions) {
					mod.Functions[idx].Name = nm
				}
			}
		}
	}
}

func (d *decoder) readCodeSection(r *bytes.Reader, mod *ir.Module, definedCount int) error {
	n, err := wasmspec.ReadUvarint(r)
	if err != nil {
		return err
	}
	defined := make([]*ir.Function, 0, len(mod.Functions))
	for _, fn := range mod.Functions {
		if !fn.Imported {
			defined = append(defined, fn)
		}
	}
	if int(n) != len(defined) {
		return diagnostics.NewEncodingError("code section has %d bodies, function section declared %d", n, len(defined))
	}
	for i := uint64(0); i < n; i++ {
		size, err := wasmspec.ReadUvarint(r)
		if err != nil {
			return err
		}
		body := make([]byte, size)
		if _, err := r.Read(body); err != nil {
			return err
		}
		br := bytes.NewReader(body)
		locals, err := readLocalGroups(br)
		if err != nil {
			return err
		}
		instrs, err := d.decodeBody(br)
		if err != nil {
			return err
		}
		fn := defined[i]
		fn.Locals = locals
		fn.Body = instrs
		fn.State = ir.Lowered
	}
	return nil
}

func readLocalGroups(r *bytes.Reader) ([]ir.Local, error) {
	n, err := wasmspec.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	var out []ir.Local
	for i := uint64(0); i < n; i++ {
		count, err := wasmspec.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		tb, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		for j := uint64(0); j < count; j++ {
			out = append(out, ir.Local{Type: wasmspec.ValType(tb)})
		}
	}
	return out, nil
}

// decodeBody decodes instructions up to the End, Else or Catch opcode
// that terminates the sequence at the current nesting depth, returning
// everything before it and leaving that terminator unread, so the caller
// that opened the construct consumes it and can tell an If's else branch
// or a Try's handler from a plain End (the terminator itself is not
// represented in the IR — Block/Loop/If/Try constructors imply it, same
// as the encoder).
func (d *decoder) decodeBody(r *bytes.Reader) ([]ir.Instruction, error) {
	var out []ir.Instruction
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, diagnostics.NewEncodingError("unexpected end of function body: %v", err)
		}
		op := wasmspec.Op(b)
		if op == wasmspec.OpEnd || op == wasmspec.OpElse || op == wasmspec.OpCatch {
			r.Seek(-1, 1)
			return out, nil
		}
		instr, err := d.decodeOne(r, op)
		if err != nil {
			return nil, err
		}
		out = append(out, instr)
	}
}

func (d *decoder) decodeOne(r *bytes.Reader, op wasmspec.Op) (ir.Instruction, error) {
	switch {
	case op == wasmspec.OpBlock || op == wasmspec.OpLoop:
		bt, err := wasmspec.ReadVarint(r)
		if err != nil {
			return ir.Instruction{}, err
		}
		body, err := d.decodeBody(r)
		if err != nil {
			return ir.Instruction{}, err
		}
		if _, err := consumeEnd(r); err != nil {
			return ir.Instruction{}, err
		}
		return ir.Instruction{Op: op, Operands: []int64{bt}, Blocks: [][]ir.Instruction{body}}, nil

	case op == wasmspec.OpIf:
		bt, err := wasmspec.ReadVarint(r)
		if err != nil {
			return ir.Instruction{}, err
		}
		then, err := d.decodeBody(r)
		if err != nil {
			return ir.Instruction{}, err
		}
		marker, err := r.ReadByte()
		if err != nil {
			return ir.Instruction{}, err
		}
		blocks := [][]ir.Instruction{then}
		if wasmspec.Op(marker) == wasmspec.OpElse {
			els, err := d.decodeBody(r)
			if err != nil {
				return ir.Instruction{}, err
			}
			blocks = append(blocks, els)
			if _, err := consumeEnd(r); err != nil {
				return ir.Instruction{}, err
			}
		}
		return ir.Instruction{Op: op, Operands: []int64{bt}, Blocks: blocks}, nil

	case op == wasmspec.OpTry:
		bt, err := wasmspec.ReadVarint(r)
		if err != nil {
			return ir.Instruction{}, err
		}
		body, err := d.decodeBody(r)
		if err != nil {
			return ir.Instruction{}, err
		}
		if _, err := consumeOp(r, wasmspec.OpCatch); err != nil {
			return ir.Instruction{}, err
		}
		tag, err := wasmspec.ReadUvarint(r)
		if err != nil {
			return ir.Instruction{}, err
		}
		handler, err := d.decodeBody(r)
		if err != nil {
			return ir.Instruction{}, err
		}
		if _, err := consumeEnd(r); err != nil {
			return ir.Instruction{}, err
		}
		return ir.Instruction{Op: op, Operands: []int64{bt, int64(tag)}, Blocks: [][]ir.Instruction{body, handler}}, nil

	case op == wasmspec.OpBr || op == wasmspec.OpBrIf:
		v, err := wasmspec.ReadUvarint(r)
		return ir.Instruction{Op: op, Operands: []int64{int64(v)}}, err

	case op == wasmspec.OpCall || op == wasmspec.OpReturnCall:
		v, err := wasmspec.ReadUvarint(r)
		return ir.Instruction{Op: op, Operands: []int64{int64(v)}}, err

	case op == wasmspec.OpCallIndirect || op == wasmspec.OpReturnCallIndirect:
		ti, err := wasmspec.ReadUvarint(r)
		if err != nil {
			return ir.Instruction{}, err
		}
		tbl, err := wasmspec.ReadUvarint(r)
		if err != nil {
			return ir.Instruction{}, err
		}
		paramPairs := uint32(0)
		if int(ti) < len(d.types) && len(d.types[ti].params) > 0 {
			paramPairs = uint32((len(d.types[ti].params) - 1) / 2)
		}
		return ir.Instruction{Op: op, Operands: []int64{int64(paramPairs), int64(tbl)}}, nil

	case op == wasmspec.OpLocalGet || op == wasmspec.OpLocalSet || op == wasmspec.OpLocalTee ||
		op == wasmspec.OpGlobalGet || op == wasmspec.OpGlobalSet:
		v, err := wasmspec.ReadUvarint(r)
		return ir.Instruction{Op: op, Operands: []int64{int64(v)}}, err

	case isMemOp(op):
		align, err := wasmspec.ReadUvarint(r)
		if err != nil {
			return ir.Instruction{}, err
		}
		offset, err := wasmspec.ReadUvarint(r)
		if err != nil {
			return ir.Instruction{}, err
		}
		return ir.Instruction{Op: op, Operands: []int64{int64(align), int64(offset)}}, nil

	case op == wasmspec.OpMemorySize || op == wasmspec.OpMemoryGrow:
		if _, err := wasmspec.ReadUvarint(r); err != nil {
			return ir.Instruction{}, err
		}
		return ir.Instruction{Op: op}, nil

	case op == wasmspec.OpI32Const:
		v, err := wasmspec.ReadVarint(r)
		return ir.Instruction{Op: op, Operands: []int64{v}}, err

	case op == wasmspec.OpI64Const:
		v, err := wasmspec.ReadVarint(r)
		return ir.Instruction{Op: op, Operands: []int64{v}}, err

	case op == wasmspec.OpF32Const:
		v, err := wasmspec.ReadF32(r)
		return ir.Instruction{Op: op, Float: float64(v)}, err

	case op == wasmspec.OpF64Const:
		v, err := wasmspec.ReadF64(r)
		return ir.Instruction{Op: op, Float: v}, err

	case op == wasmspec.OpThrow:
		v, err := wasmspec.ReadUvarint(r)
		return ir.Instruction{Op: op, Operands: []int64{int64(v)}}, err

	case op == wasmspec.OpRefFunc:
		v, err := wasmspec.ReadUvarint(r)
		return ir.Instruction{Op: op, Operands: []int64{int64(v)}}, err

	case op == wasmspec.OpRefNull:
		b, err := r.ReadByte()
		return ir.Instruction{Op: op, Operands: []int64{int64(b)}}, err

	case op == wasmspec.PrefixMisc:
		sub, err := wasmspec.ReadUvarint(r)
		if err != nil {
			return ir.Instruction{}, err
		}
		operands := []int64{int64(sub)}
		switch wasmspec.Misc(sub) {
		case wasmspec.MiscMemoryCopy:
			a, err := wasmspec.ReadUvarint(r)
			if err != nil {
				return ir.Instruction{}, err
			}
			b, err := wasmspec.ReadUvarint(r)
			if err != nil {
				return ir.Instruction{}, err
			}
			operands = append(operands, int64(a), int64(b))
		case wasmspec.MiscMemoryFill:
			a, err := wasmspec.ReadUvarint(r)
			if err != nil {
				return ir.Instruction{}, err
			}
			operands = append(operands, int64(a))
		}
		return ir.Instruction{Op: op, Operands: operands}, nil

	default:
		return ir.Instruction{Op: op}, nil
	}
}

func consumeEnd(r *bytes.Reader) (byte, error) { return consumeOp(r, wasmspec.OpEnd) }

func consumeOp(r *bytes.Reader, want wasmspec.Op) (byte, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if wasmspec.Op(b) != want {
		return 0, diagnostics.NewEncodingError("expected opcode 0x%x, got 0x%x", want, b)
	}
	return b, nil
}

var _ = fmt.Sprintf
