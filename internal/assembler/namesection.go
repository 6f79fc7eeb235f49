package assembler

import (
	"sort"

	"github.com/glint-lang/glintc/internal/ir"
	"github.com/glint-lang/glintc/internal/wasmspec"
)

// nameSection emits the custom "name" section: module name (if set),
// function names, and local names, each as its own length-prefixed
// subsection per the tool-conventions appendix of the Wasm spec. Purely
// for debuggability — no validator or host requires it.
func (e *encoder) nameSection() (wasmspec.SectionID, []byte) {
	buf := wasmspec.NewBuffer()
	wasmspec.PutName(buf, "name")

	if e.opts.ModuleName != "" {
		writeNameSubsection(buf, 0, func(sub wasmspec.Writer) {
			wasmspec.PutName(sub, e.opts.ModuleName)
		})
	}

	writeNameSubsection(buf, 1, func(sub wasmspec.Writer) {
		writeFuncNameMap(sub, e.mod.Functions)
	})

	writeNameSubsection(buf, 2, func(sub wasmspec.Writer) {
		writeLocalNameMap(sub, e.definedFuncs())
	})

	return wasmspec.SectionCustom, buf.Bytes()
}

func writeNameSubsection(buf wasmspec.Writer, id byte, write func(wasmspec.Writer)) {
	body := wasmspec.NewBuffer()
	write(body)
	buf.WriteByte(id)
	wasmspec.PutUvarint(buf, uint64(body.Len()))
	buf.Write(body.Bytes())
}

func writeFuncNameMap(buf wasmspec.Writer, funcs []*ir.Function) {
	sorted := append([]*ir.Function{}, funcs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	wasmspec.PutUvarint(buf, uint64(len(sorted)))
	for _, fn := range sorted {
		wasmspec.PutUvarint(buf, uint64(fn.Index))
		wasmspec.PutName(buf, fn.Name)
	}
}

// writeLocalNameMap emits the indirect name map: one entry per function
// that declares at least one local beyond its params, each holding the
// (localidx, name) vector of its named locals in index order. Params are
// never named.
func writeLocalNameMap(buf wasmspec.Writer, funcs []*ir.Function) {
	type entry struct {
		fn     *ir.Function
		locals []ir.Local
	}
	var entries []entry
	for _, fn := range funcs {
		if len(fn.Locals) > 0 {
			entries = append(entries, entry{fn, fn.Locals})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].fn.Index < entries[j].fn.Index })

	wasmspec.PutUvarint(buf, uint64(len(entries)))
	for _, e := range entries {
		wasmspec.PutUvarint(buf, uint64(e.fn.Index))
		named := make([]struct {
			idx  uint32
			name string
		}, 0, len(e.locals))
		base := uint32(len(e.fn.Params))
		for i, l := range e.locals {
			if l.Name != "" {
				named = append(named, struct {
					idx  uint32
					name string
				}{base + uint32(i), l.Name})
			}
		}
		wasmspec.PutUvarint(buf, uint64(len(named)))
		for _, n := range named {
			wasmspec.PutUvarint(buf, uint64(n.idx))
			wasmspec.PutName(buf, n.name)
		}
	}
}
