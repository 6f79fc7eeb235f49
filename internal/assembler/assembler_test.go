package assembler

import (
	"bytes"
	"testing"

	"github.com/glint-lang/glintc/internal/analyzer"
	"github.com/glint-lang/glintc/internal/codegen"
	"github.com/glint-lang/glintc/internal/frontend"
	"github.com/glint-lang/glintc/internal/ir"
	"github.com/glint-lang/glintc/internal/optimize"
	"github.com/glint-lang/glintc/internal/wasmspec"
)

// buildModule runs src through the frontend, analyzer, code generator and
// optimizer, stopping short of Encode so tests in this package can drive
// Encode/Decode directly.
func buildModule(t *testing.T, src string, optPasses int) *ir.Module {
	t.Helper()

	prog, err := frontend.Parse("test.js", src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	res, err := analyzer.Analyze(prog, analyzer.DefaultOptions())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	bc := ir.NewBuildContext()
	main, err := codegen.Generate(bc, prog, res, codegen.DefaultOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	bc.Module.MainIndex = main.Index
	bc.Module.MemoryMinPages = 1

	optimize.Run(bc.Module, optimize.Options{Passes: optPasses})
	return bc.Module
}

// stripCustomSections parses bin's top-level section framing and returns a
// copy with every custom section (id 0, which includes the "name" section)
// removed, so two binaries that differ only in debug names compare equal.
func stripCustomSections(t *testing.T, bin []byte) []byte {
	t.Helper()

	if len(bin) < 8 {
		t.Fatalf("binary too short: %d bytes", len(bin))
	}
	out := append([]byte(nil), bin[:8]...)
	r := bytes.NewReader(bin[8:])
	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			t.Fatalf("reading section id: %v", err)
		}
		size, err := wasmspec.ReadUvarint(r)
		if err != nil {
			t.Fatalf("reading section size: %v", err)
		}
		body := make([]byte, size)
		if _, err := r.Read(body); err != nil {
			t.Fatalf("reading section body: %v", err)
		}
		if wasmspec.SectionID(id) == wasmspec.SectionCustom {
			continue
		}
		out = append(out, id)
		lenBuf := wasmspec.NewBuffer()
		if err := wasmspec.PutUvarint(lenBuf, size); err != nil {
			t.Fatalf("PutUvarint: %v", err)
		}
		out = append(out, lenBuf.Bytes()...)
		out = append(out, body...)
	}
	return out
}

// roundTrip encodes mod, decodes the result, re-encodes the decoded module,
// and returns both binaries as encoded; once stripCustomSections removes
// their name sections, spec.md §8's Universal Invariant #1 requires them
// to be byte-identical.
func roundTrip(t *testing.T, mod *ir.Module, opts Options) (first, second []byte) {
	t.Helper()

	first, err := Encode(mod, opts)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(first)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	second, err = Encode(decoded, opts)
	if err != nil {
		t.Fatalf("re-Encode decoded module: %v", err)
	}
	return first, second
}

func TestRoundTripArithmetic(t *testing.T) {
	mod := buildModule(t, "print(1 + 2);", 2)
	first, second := roundTrip(t, mod, DefaultOptions())
	if !bytes.Equal(stripCustomSections(t, first), stripCustomSections(t, second)) {
		t.Fatal("re-emitted binary differs from the original after stripping name sections")
	}
}

func TestRoundTripFunctionsAndControlFlow(t *testing.T) {
	src := `
		function fib(n) {
			if (n < 2) return n;
			return fib(n - 1) + fib(n - 2);
		}
		let x = 0;
		for (let i = 0; i < 5; i++) {
			x += fib(i);
		}
		print(x);
	`
	mod := buildModule(t, src, 2)
	first, second := roundTrip(t, mod, DefaultOptions())
	if !bytes.Equal(stripCustomSections(t, first), stripCustomSections(t, second)) {
		t.Fatal("re-emitted binary differs from the original after stripping name sections")
	}
}

func TestRoundTripClosures(t *testing.T) {
	src := `
		let c = (function() {
			let n = 0;
			return function() { n += 1; return n; };
		})();
		print(c());
		print(c());
	`
	mod := buildModule(t, src, 2)
	first, second := roundTrip(t, mod, DefaultOptions())
	if !bytes.Equal(stripCustomSections(t, first), stripCustomSections(t, second)) {
		t.Fatal("re-emitted binary differs from the original after stripping name sections")
	}
}

func TestRoundTripTryCatch(t *testing.T) {
	mod := buildModule(t, "try { throw 42; } catch (e) { print(e); }", 2)
	first, second := roundTrip(t, mod, DefaultOptions())
	if !bytes.Equal(stripCustomSections(t, first), stripCustomSections(t, second)) {
		t.Fatal("re-emitted binary differs from the original after stripping name sections")
	}
}

func TestDecodeRejectsTruncatedHeader(t *testing.T) {
	if _, err := Decode([]byte{0x00, 0x61, 0x73}); err == nil {
		t.Fatal("expected an error decoding a truncated header")
	}
}

func TestDecodePreservesExports(t *testing.T) {
	mod := buildModule(t, "function f(n) { return n; } print(f(1));", 0)
	bin, err := Encode(mod, DefaultOptions())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(bin)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	foundMain := false
	for _, fn := range decoded.Functions {
		if fn.ExportAs == "m" {
			foundMain = true
		}
	}
	if !foundMain {
		t.Fatal("decoded module lost the \"m\" export")
	}
}
