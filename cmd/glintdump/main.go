// Command glintdump decodes a Wasm binary produced by glintc and prints
// a WAT-like textual listing of its functions, globals, and memory
// layout, for inspecting what the assembler actually emitted.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/glint-lang/glintc/internal/assembler"
	"github.com/glint-lang/glintc/internal/ir"
	"github.com/glint-lang/glintc/internal/wasmspec"
)

func main() {
	cmd := &cobra.Command{
		Use:           "glintdump <input.wasm>",
		Short:         "Disassemble a glintc-produced Wasm binary",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cc *cobra.Command, args []string) error {
			return run(args[0])
		},
	}
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	mod, err := assembler.Decode(data)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}

	dump(os.Stdout, mod)
	return nil
}

func dump(w *os.File, mod *ir.Module) {
	fmt.Fprintf(w, "(module\n")
	fmt.Fprintf(w, "  ;; memory: min=%d max=%d\n", mod.MemoryMinPages, mod.MemoryMaxPages)

	for _, p := range mod.Pages {
		fmt.Fprintf(w, "  ;; page %q: ordinal=%d count=%d\n", p.Name, p.Ordinal, p.PageCount)
	}

	for _, g := range mod.Globals {
		mut := ""
		if g.Mutable {
			mut = " mut"
		}
		fmt.Fprintf(w, "  (global $%s (%s%s))\n", g.Name, g.Type, mut)
	}

	for _, t := range mod.Tags {
		fmt.Fprintf(w, "  (tag $%s %s)\n", t.Name, paramList(t.Params))
	}

	for _, d := range mod.Data {
		fmt.Fprintf(w, "  (data $%s (offset %d) %d bytes)\n", d.Name, d.Offset, len(d.Bytes))
	}

	for i, f := range mod.Functions {
		dumpFunc(w, i, f, mod.MainIndex)
	}

	fmt.Fprintf(w, ")\n")
}

func dumpFunc(w *os.File, index int, f *ir.Function, mainIndex uint32) {
	tag := ""
	switch {
	case f.Imported:
		tag = fmt.Sprintf(" (import %q %q)", f.ImportMod, f.ImportFn)
	case uint32(index) == mainIndex:
		tag = " (main)"
	case f.Exported:
		tag = fmt.Sprintf(" (export %q)", f.ExportAs)
	}

	fmt.Fprintf(w, "  (func $%s%s (param %s) (result %s)\n", f.Name, tag,
		paramList(f.Params), paramList(f.Results))

	for _, l := range f.Locals {
		fmt.Fprintf(w, "    (local %s)\n", l.Type)
	}

	dumpBody(w, f.Body, 2)
	fmt.Fprintf(w, "  )\n")
}

func dumpBody(w *os.File, body []ir.Instruction, indent int) {
	pad := ""
	for i := 0; i < indent; i++ {
		pad += "  "
	}
	for _, instr := range body {
		fmt.Fprintf(w, "%s%s\n", pad, instr.Op)
		for _, block := range instr.Blocks {
			dumpBody(w, block, indent+1)
		}
	}
}

func paramList(types []wasmspec.ValType) string {
	s := ""
	for i, t := range types {
		if i > 0 {
			s += " "
		}
		s += t.String()
	}
	return s
}
