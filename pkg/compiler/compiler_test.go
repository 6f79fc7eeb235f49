package compiler

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"

	"github.com/glint-lang/glintc/internal/wasmspec"
)

// run compiles src, instantiates the resulting binary with wazero, and
// invokes exported "m", collecting every value passed to the imported
// print host function in call order.
func run(t *testing.T, src string, opts Options) []float64 {
	t.Helper()

	bin, _, err := Compile("test.js", src, opts)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	var printed []float64
	_, err = rt.NewHostModuleBuilder("env").
		NewFunctionBuilder().WithFunc(func(v float64, tag int32) {
			printed = append(printed, v)
		}).Export("print").
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

	main := mod.ExportedFunction("m")
	if main == nil {
		t.Fatal("compiled module has no exported \"m\" function")
	}
	if _, err := main.Call(ctx); err != nil {
		t.Fatalf("calling m: %v", err)
	}

	return printed
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.ValueType = wasmspec.F64
	return opts
}

func TestScenarioArithmeticPrint(t *testing.T) {
	got := run(t, "print(1 + 2);", testOptions())
	want := []float64{3}
	assertFloats(t, got, want)
}

func TestScenarioForLoopAccumulation(t *testing.T) {
	got := run(t, "let x = 10; for (let i = 0; i < 3; i++) { x += i; } print(x);", testOptions())
	want := []float64{13}
	assertFloats(t, got, want)
}

func TestScenarioRecursiveFibonacci(t *testing.T) {
	src := `
		function f(n) {
			if (n < 2) return n;
			return f(n - 1) + f(n - 2);
		}
		print(f(10));
	`
	got := run(t, src, testOptions())
	want := []float64{55}
	assertFloats(t, got, want)
}

func TestScenarioClosureCounter(t *testing.T) {
	src := `
		let c = (function() {
			let n = 0;
			return function() { n += 1; return n; };
		})();
		print(c());
		print(c());
		print(c());
	`
	got := run(t, src, testOptions())
	want := []float64{1, 2, 3}
	assertFloats(t, got, want)
}

func TestScenarioNestedFunctionDeclaration(t *testing.T) {
	src := `
		function outer(n) {
			function double(x) {
				return x * 2;
			}
			if (n > 0) {
				function triple(x) {
					return x * 3;
				}
				return double(n) + triple(n);
			}
			return double(n);
		}
		print(outer(5));
	`
	got := run(t, src, testOptions())
	want := []float64{25}
	assertFloats(t, got, want)
}

func TestScenarioTryCatch(t *testing.T) {
	got := run(t, "try { throw 42; } catch (e) { print(e); }", testOptions())
	want := []float64{42}
	assertFloats(t, got, want)
}

func TestScenarioOptPassesShrinksBinary(t *testing.T) {
	src := "print(1 + 2);"

	unoptimized := testOptions()
	unoptimized.OptPasses = 0
	binUnopt, _, err := Compile("test.js", src, unoptimized)
	if err != nil {
		t.Fatalf("Compile (unoptimized): %v", err)
	}

	optimized := testOptions()
	optimized.OptPasses = 2
	binOpt, _, err := Compile("test.js", src, optimized)
	if err != nil {
		t.Fatalf("Compile (optimized): %v", err)
	}

	if len(binOpt) >= len(binUnopt) {
		t.Fatalf("expected optimized binary to be smaller: unopt=%d opt=%d", len(binUnopt), len(binOpt))
	}

	optPrinted := run(t, src, optimized)
	assertFloats(t, optPrinted, []float64{3})
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
