// Package spectest walks a directory of paired source/expected-output
// fixtures, compiling each with pkg/compiler and instantiating the
// result with wazero to check the values it actually prints, the same
// embed-and-walk shape the teacher's own spec-conformance suite used
// for its WebAssembly Component Model fixtures, retargeted at this
// compiler's own source language instead.
package spectest

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"
	"testing"

	"github.com/tetratelabs/wazero"

	"github.com/glint-lang/glintc/pkg/compiler"
)

//go:embed testdata/*.js testdata/*.expected
var testData embed.FS

func TestFixtures(t *testing.T) {
	entries, err := fs.Glob(testData, "testdata/*.js")
	if err != nil {
		t.Fatalf("globbing fixtures: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no fixtures found under testdata/")
	}

	for _, jsPath := range entries {
		name := strings.TrimSuffix(path.Base(jsPath), ".js")
		t.Run(name, func(t *testing.T) {
			runFixture(t, jsPath, strings.TrimSuffix(jsPath, ".js")+".expected")
		})
	}
}

func runFixture(t *testing.T, jsPath, expectedPath string) {
	t.Helper()

	src, err := testData.ReadFile(jsPath)
	if err != nil {
		t.Fatalf("reading %s: %v", jsPath, err)
	}
	expectedRaw, err := testData.ReadFile(expectedPath)
	if err != nil {
		t.Fatalf("reading %s: %v", expectedPath, err)
	}
	want := parseExpected(t, string(expectedRaw))

	bin, _, err := compiler.Compile(jsPath, string(src), compiler.DefaultOptions())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	var got []float64
	if _, err := rt.NewHostModuleBuilder("env").
		NewFunctionBuilder().WithFunc(func(v float64, tag int32) { got = append(got, v) }).Export("print").
		NewFunctionBuilder().WithFunc(func(c int32) {}).Export("printChar").
		NewFunctionBuilder().WithFunc(func() float64 { return 0 }).Export("time").
		NewFunctionBuilder().WithFunc(func() float64 { return 0 }).Export("timeOrigin").
		NewFunctionBuilder().WithFunc(func(base, exp float64) float64 { return 0 }).Export("pow").
		NewFunctionBuilder().WithFunc(func(v float64) int32 { return 0 }).Export("numberToString").
		NewFunctionBuilder().WithFunc(func(v, digits float64) int32 { return 0 }).Export("numberToFixed").
		Instantiate(ctx); err != nil {
		t.Fatalf("instantiating env host module: %v", err)
	}

	mod, err := rt.Instantiate(ctx, bin)
	if err != nil {
		t.Fatalf("instantiating compiled module: %v", err)
	}
	if _, err := mod.ExportedFunction("m").Call(ctx); err != nil {
		t.Fatalf("calling m: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("printed %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("print call %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func parseExpected(t *testing.T, raw string) []float64 {
	t.Helper()
	var out []float64
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			t.Fatalf("parsing expected value %q: %v", line, err)
		}
		out = append(out, v)
	}
	return out
}

func init() {
	// Fail fast and loudly if a fixture's .js has no matching .expected,
	// rather than reporting a confusing embed.FS "file not found" from
	// inside a subtest.
	entries, err := fs.Glob(testData, "testdata/*.js")
	if err != nil {
		panic(err)
	}
	for _, jsPath := range entries {
		expected := strings.TrimSuffix(jsPath, ".js") + ".expected"
		if _, err := testData.Open(expected); err != nil {
			panic(fmt.Sprintf("fixture %s has no matching %s", jsPath, expected))
		}
	}
}
