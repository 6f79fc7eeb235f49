package codegen

import (
	"context"
	"errors"
	"testing"

	"github.com/tetratelabs/wazero"

	"github.com/glint-lang/glintc/internal/analyzer"
	"github.com/glint-lang/glintc/internal/assembler"
	"github.com/glint-lang/glintc/internal/diagnostics"
	"github.com/glint-lang/glintc/internal/frontend"
	"github.com/glint-lang/glintc/internal/ir"
	"github.com/glint-lang/glintc/internal/optimize"
)

// compileErr runs src through the frontend, analyzer and generator only,
// returning whatever error the generator raised (or nil).
func compileErr(t *testing.T, src string) error {
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
	_, err = Generate(bc, prog, res, DefaultOptions())
	return err
}

// run compiles src end to end and returns every value passed to the
// imported print host function, in call order — the same harness
// pkg/compiler's tests use, duplicated here so internal/codegen's own
// tests don't have to import the driver package that imports it.
func run(t *testing.T, src string) []float64 {
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
	main, err := Generate(bc, prog, res, DefaultOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	bc.Module.MainIndex = main.Index
	bc.Module.MemoryMinPages = 1
	optimize.Run(bc.Module, optimize.Options{Passes: 2})

	bin, err := assembler.Encode(bc.Module, assembler.DefaultOptions())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	var printed []float64
	_, err = rt.NewHostModuleBuilder("env").
		NewFunctionBuilder().WithFunc(func(v float64, tag int32) { printed = append(printed, v) }).Export("print").
		NewFunctionBuilder().WithFunc(func(c int32) {}).Export("printChar").
		NewFunctionBuilder().WithFunc(func() float64 { return 0 }).Export("time").
		NewFunctionBuilder().WithFunc(func() float64 { return 0 }).Export("timeOrigin").
		NewFunctionBuilder().WithFunc(func(base, exp float64) float64 { return 0 }).Export("pow").
		NewFunctionBuilder().WithFunc(func(v float64) int32 { return 0 }).Export("numberToString").
		NewFunctionBuilder().WithFunc(func(v, digits float64) int32 { return 0 }).Export("numberToFixed").
		Instantiate(ctx)
	if err != nil {
		t.Fatalf("instantiating env host module: %v", err)
	}

	mod, err := rt.Instantiate(ctx, bin)
	if err != nil {
		t.Fatalf("instantiating compiled module: %v", err)
	}
	if _, err := mod.ExportedFunction("m").Call(ctx); err != nil {
		t.Fatalf("calling m: %v", err)
	}
	return printed
}

func assertFloats(t *testing.T, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v printed values, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("printed value %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestBinaryPlusBothNumbersUsesFastPath(t *testing.T) {
	got := run(t, "let a = 1; let b = 2; print(a + b);")
	assertFloats(t, got, []float64{3})
}

func TestBinaryPlusBothStringsConcatenates(t *testing.T) {
	got := run(t, `print(("ab" + "cd").length);`)
	assertFloats(t, got, []float64{4})
}

// TestBinaryPlusUnknownOperandsDispatchesAtRuntime exercises the case
// review flagged: a function parameter's hint must come back Unknown, not
// a bogus Undefined, so `a + b` inside a function whose callers pass
// different types goes through the runtime dispatcher instead of always
// emitting f64.add.
func TestBinaryPlusUnknownOperandsDispatchesAtRuntime(t *testing.T) {
	src := `
		function addThem(a, b) { return a + b; }
		print(addThem(3, 4));
		print(addThem("ab", "cd").length);
	`
	got := run(t, src)
	assertFloats(t, got, []float64{7, 4})
}

func TestCompoundPlusEqualsUnknownOperandsDispatchesAtRuntime(t *testing.T) {
	src := `
		function accumulate(a, b) {
			a += b;
			return a;
		}
		print(accumulate(3, 4));
		print(accumulate("ab", "cd").length);
	`
	got := run(t, src)
	assertFloats(t, got, []float64{7, 4})
}

func TestCompoundAssignArithmeticOperators(t *testing.T) {
	got := run(t, "let x = 10; x -= 3; x *= 2; x /= 7; print(x);")
	assertFloats(t, got, []float64{2})
}

func TestCompoundAssignSubtractOnKnownStringIsError(t *testing.T) {
	err := compileErr(t, `let s = "abc"; s -= 1; print(s);`)
	if err == nil {
		t.Fatal("expected an error compiling a compound subtract on a string")
	}
	var uErr *diagnostics.UnsupportedError
	if !errors.As(err, &uErr) {
		t.Fatalf("got %T: %v", err, err)
	}
}

// TestFunctionParameterHintDoesNotFalselyPinMethodDispatch guards the
// funcgen.go slot-hint bug: a bare parameter's zero-valued slot used to
// read back as a statically known Undefined hint instead of Unknown, so
// resolveMethodOwner resolved n.toString() to Registry.Lookup(Undefined,
// "toString") — nothing is registered there — and Generate failed with
// an UnsupportedError even though n is only ever used as a number.
func TestFunctionParameterHintDoesNotFalselyPinMethodDispatch(t *testing.T) {
	if err := compileErr(t, "function f(n) { return n.toString(); } print(f(42));"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
}
