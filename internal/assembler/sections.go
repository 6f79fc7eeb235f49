package assembler

import (
	"github.com/glint-lang/glintc/internal/ir"
	"github.com/glint-lang/glintc/internal/wasmspec"
)

func (e *encoder) typeSection() (wasmspec.SectionID, []byte) {
	if len(e.sigs) == 0 {
		return wasmspec.SectionType, nil
	}
	buf := wasmspec.NewBuffer()
	wasmspec.PutUvarint(buf, uint64(len(e.sigs)))
	for _, sig := range e.sigs {
		buf.WriteByte(wasmspec.FuncTypeByte)
		wasmspec.PutUvarint(buf, uint64(len(sig.params)))
		for _, p := range sig.params {
			buf.WriteByte(byte(p))
		}
		wasmspec.PutUvarint(buf, uint64(len(sig.results)))
		for _, r := range sig.results {
			buf.WriteByte(byte(r))
		}
	}
	return wasmspec.SectionType, buf.Bytes()
}

func (e *encoder) importedFuncs() []*ir.Function {
	var out []*ir.Function
	for _, fn := range e.mod.Functions {
		if fn.Imported {
			out = append(out, fn)
		}
	}
	return out
}

func (e *encoder) definedFuncs() []*ir.Function {
	var out []*ir.Function
	for _, fn := range e.mod.Functions {
		if !fn.Imported {
			out = append(out, fn)
		}
	}
	return out
}

func (e *encoder) importSection() (wasmspec.SectionID, []byte) {
	imports := e.importedFuncs()
	if len(imports) == 0 {
		return wasmspec.SectionImport, nil
	}
	buf := wasmspec.NewBuffer()
	wasmspec.PutUvarint(buf, uint64(len(imports)))
	for _, fn := range imports {
		wasmspec.PutName(buf, fn.ImportMod)
		wasmspec.PutName(buf, fn.ImportFn)
		buf.WriteByte(byte(wasmspec.KindFunc))
		wasmspec.PutUvarint(buf, uint64(e.mustFuncType(fn)))
	}
	return wasmspec.SectionImport, buf.Bytes()
}

func (e *encoder) functionSection() (wasmspec.SectionID, []byte) {
	defined := e.definedFuncs()
	if len(defined) == 0 {
		return wasmspec.SectionFunction, nil
	}
	buf := wasmspec.NewBuffer()
	wasmspec.PutUvarint(buf, uint64(len(defined)))
	for _, fn := range defined {
		wasmspec.PutUvarint(buf, uint64(e.mustFuncType(fn)))
	}
	return wasmspec.SectionFunction, buf.Bytes()
}

// tableSection emits the single funcref table backing every closure's
// call_indirect, sized to hold every surviving function at its own
// index — only when the generator ever lowered a call through a
// first-class function value.
func (e *encoder) tableSection() (wasmspec.SectionID, []byte) {
	if !e.mod.HasIndirectCalls {
		return wasmspec.SectionTable, nil
	}
	buf := wasmspec.NewBuffer()
	wasmspec.PutUvarint(buf, 1) // one table
	buf.WriteByte(byte(wasmspec.FuncRef))
	buf.WriteByte(byte(wasmspec.LimitsHasMax))
	n := uint64(len(e.mod.Functions))
	wasmspec.PutUvarint(buf, n)
	wasmspec.PutUvarint(buf, n)
	return wasmspec.SectionTable, buf.Bytes()
}

func (e *encoder) memorySection() (wasmspec.SectionID, []byte) {
	min := e.mod.MemoryMinPages
	for _, p := range e.mod.Pages {
		if need := p.Ordinal + p.PageCount; need > min {
			min = need
		}
	}
	buf := wasmspec.NewBuffer()
	wasmspec.PutUvarint(buf, 1) // one memory
	if e.mod.MemoryMaxPages > 0 {
		buf.WriteByte(byte(wasmspec.LimitsHasMax))
		wasmspec.PutUvarint(buf, uint64(min))
		wasmspec.PutUvarint(buf, uint64(e.mod.MemoryMaxPages))
	} else {
		buf.WriteByte(byte(wasmspec.LimitsNoMax))
		wasmspec.PutUvarint(buf, uint64(min))
	}
	return wasmspec.SectionMemory, buf.Bytes()
}

func (e *encoder) tagSection() (wasmspec.SectionID, []byte) {
	if len(e.mod.Tags) == 0 {
		return wasmspec.SectionTag, nil
	}
	buf := wasmspec.NewBuffer()
	wasmspec.PutUvarint(buf, uint64(len(e.mod.Tags)))
	for _, tag := range e.mod.Tags {
		buf.WriteByte(0x00) // attribute: exception, the only kind this proposal defines
		wasmspec.PutUvarint(buf, uint64(e.intern(tag.Params, nil)))
	}
	return wasmspec.SectionTag, buf.Bytes()
}

func (e *encoder) globalSection() (wasmspec.SectionID, []byte) {
	if len(e.mod.Globals) == 0 {
		return wasmspec.SectionGlobal, nil
	}
	buf := wasmspec.NewBuffer()
	wasmspec.PutUvarint(buf, uint64(len(e.mod.Globals)))
	for _, g := range e.mod.Globals {
		buf.WriteByte(byte(g.Type))
		if g.Mutable {
			buf.WriteByte(0x01)
		} else {
			buf.WriteByte(0x00)
		}
		e.encodeInstr(buf, g.Init)
		buf.WriteByte(byte(wasmspec.OpEnd))
	}
	return wasmspec.SectionGlobal, buf.Bytes()
}

func (e *encoder) exportSection() (wasmspec.SectionID, []byte) {
	type exp struct {
		name string
		kind wasmspec.ExternalKind
		idx  uint32
	}
	var exports []exp
	for _, fn := range e.mod.Functions {
		if fn.Exported {
			name := fn.ExportAs
			if name == "" {
				name = fn.Name
			}
			exports = append(exports, exp{name, wasmspec.KindFunc, fn.Index})
		}
	}
	exports = append(exports, exp{"$", wasmspec.KindMemory, 0})

	buf := wasmspec.NewBuffer()
	wasmspec.PutUvarint(buf, uint64(len(exports)))
	for _, x := range exports {
		wasmspec.PutName(buf, x.name)
		buf.WriteByte(byte(x.kind))
		wasmspec.PutUvarint(buf, uint64(x.idx))
	}
	return wasmspec.SectionExport, buf.Bytes()
}

func (e *encoder) elementSection() (wasmspec.SectionID, []byte) {
	if !e.mod.HasIndirectCalls {
		return wasmspec.SectionElement, nil
	}
	buf := wasmspec.NewBuffer()
	wasmspec.PutUvarint(buf, 1) // one active segment
	wasmspec.PutUvarint(buf, 0) // segment flags: active, table 0, expr-encoded funcidxs
	e.encodeInstr(buf, ir.I32Const(0))
	buf.WriteByte(byte(wasmspec.OpEnd))
	wasmspec.PutUvarint(buf, uint64(len(e.mod.Functions)))
	for _, fn := range e.mod.Functions {
		wasmspec.PutUvarint(buf, uint64(fn.Index))
	}
	return wasmspec.SectionElement, buf.Bytes()
}

func (e *encoder) dataCountSection() (wasmspec.SectionID, []byte) {
	if len(e.mod.Data) == 0 {
		return wasmspec.SectionDataCount, nil
	}
	buf := wasmspec.NewBuffer()
	wasmspec.PutUvarint(buf, uint64(len(e.mod.Data)))
	return wasmspec.SectionDataCount, buf.Bytes()
}

func (e *encoder) dataSection() (wasmspec.SectionID, []byte) {
	if len(e.mod.Data) == 0 {
		return wasmspec.SectionData, nil
	}
	buf := wasmspec.NewBuffer()
	wasmspec.PutUvarint(buf, uint64(len(e.mod.Data)))
	for _, d := range e.mod.Data {
		wasmspec.PutUvarint(buf, 0) // active, memory 0
		e.encodeInstr(buf, ir.I32Const(int32(d.Offset)))
		buf.WriteByte(byte(wasmspec.OpEnd))
		wasmspec.PutUvarint(buf, uint64(len(d.Bytes)))
		buf.Write(d.Bytes)
	}
	return wasmspec.SectionData, buf.Bytes()
}

func (e *encoder) codeSection() (wasmspec.SectionID, []byte) {
	defined := e.definedFuncs()
	if len(defined) == 0 {
		return wasmspec.SectionCode, nil
	}
	buf := wasmspec.NewBuffer()
	wasmspec.PutUvarint(buf, uint64(len(defined)))
	for _, fn := range defined {
		body := wasmspec.NewBuffer()
		writeLocalGroups(body, fn.Locals)
		e.encodeInstrs(body, fn.Body) // errors recorded on e.err, checked once by Encode
		body.WriteByte(byte(wasmspec.OpEnd))
		wasmspec.PutUvarint(buf, uint64(body.Len()))
		buf.Write(body.Bytes())
	}
	return wasmspec.SectionCode, buf.Bytes()
}

// writeLocalGroups run-length-encodes fn's declared locals (beyond its
// parameters) into consecutive same-type groups, preserving their
// original order — grouping is pure compression, the local index of
// Locals[i] is always len(params)+i regardless of how groups are drawn.
func writeLocalGroups(buf wasmspec.Writer, locals []ir.Local) {
	type group struct {
		count uint64
		typ   wasmspec.ValType
	}
	var groups []group
	for _, l := range locals {
		if n := len(groups); n > 0 && groups[n-1].typ == l.Type {
			groups[n-1].count++
			continue
		}
		groups = append(groups, group{count: 1, typ: l.Type})
	}
	wasmspec.PutUvarint(buf, uint64(len(groups)))
	for _, g := range groups {
		wasmspec.PutUvarint(buf, g.count)
		buf.WriteByte(byte(g.typ))
	}
}
