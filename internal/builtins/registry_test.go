package builtins

import (
	"context"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/tetratelabs/wazero"

	"github.com/glint-lang/glintc/internal/assembler"
	"github.com/glint-lang/glintc/internal/ir"
	"github.com/glint-lang/glintc/internal/types"
	"github.com/glint-lang/glintc/internal/wasmspec"
)

func TestLookupCoversRegisteredSurface(t *testing.T) {
	r := NewRegistry()
	cases := []struct {
		id   types.ID
		name string
	}{
		{types.Number, "toString"}, {types.Number, "toFixed"},
		{types.Number, "floor"}, {types.Number, "pow"},
		{types.String, "length"}, {types.String, "charAt"}, {types.String, "concat"},
		{types.String, "indexOf"}, {types.String, "slice"}, {types.String, "toUpperCase"}, {types.String, "toLowerCase"},
		{types.Array, "length"}, {types.Array, "get"}, {types.Array, "set"}, {types.Array, "push"}, {types.Array, "pop"},
		{types.Object, "get"}, {types.Object, "set"},
	}
	for _, c := range cases {
		if _, ok := r.Lookup(c.id, c.name); !ok {
			t.Errorf("missing built-in %s.%s", c.id, c.name)
		}
	}
	if _, ok := r.Lookup(types.String, "notAMethod"); ok {
		t.Error("Lookup found a method that was never registered")
	}
}

// TestInstallDeclaresScratchLocals guards the local-declaration gap this
// package used to have: a Method whose Build body references local
// indices beyond its Params (String#concat, Array#push, ...) needs those
// declared on the resulting ir.Function, or the code section would
// describe fewer locals than the body's instructions actually reference.
func TestInstallDeclaresScratchLocals(t *testing.T) {
	bc := ir.NewBuildContext()
	r := NewRegistry()
	imports := Install(bc, r)

	concat, ok := imports["String#concat"]
	if !ok {
		t.Fatal("String#concat was not installed")
	}
	if got, want := len(concat.Locals), 3; got != want {
		t.Fatalf("String#concat: got %d declared locals, want %d", got, want)
	}

	push, ok := imports["Array#push"]
	if !ok {
		t.Fatal("Array#push was not installed")
	}
	if got, want := len(push.Locals), 4; got != want {
		t.Fatalf("Array#push: got %d declared locals, want %d", got, want)
	}

	caseFold, ok := imports["String#toUpperCase"]
	if !ok {
		t.Fatal("String#toUpperCase was not installed")
	}
	if got, want := len(caseFold.Locals), 4; got != want {
		t.Fatalf("String#toUpperCase: got %d declared locals, want %d", got, want)
	}
}

// harness builds a standalone module exporting "m" that runs body (which
// must leave a (value f64, tag i32) pair on the stack, print's signature)
// through the imported print host function, then compiles and executes it
// with wazero. This drives internal/builtins directly rather than through
// the frontend/analyzer/codegen chain, which internal/builtins cannot
// import without a cycle.
func harness(t *testing.T, strings []string, body func(bc *ir.BuildContext, imports map[string]*ir.Function, strs []*ir.DataSegment) []ir.Instruction) []float64 {
	t.Helper()

	bc := ir.NewBuildContext()
	r := NewRegistry()
	imports := Install(bc, r)

	dataPage := &ir.Page{Name: "data", PageCount: 1}
	bc.ReservePage(dataPage)
	base := dataPage.Ordinal * 65536

	var segs []*ir.DataSegment
	for i, s := range strings {
		units, err := EncodeUTF16(s)
		if err != nil {
			t.Fatalf("EncodeUTF16(%q): %v", s, err)
		}
		count, err := CodeUnitCount(s)
		if err != nil {
			t.Fatalf("CodeUnitCount(%q): %v", s, err)
		}
		bytes := make([]byte, 4+len(units))
		binary.LittleEndian.PutUint32(bytes[0:4], count)
		copy(bytes[4:], units)
		segs = append(segs, bc.PlaceData(base, fmt.Sprintf("s%d", i), bytes))
	}

	main := &ir.Function{
		Name:     "#main",
		Results:  []wasmspec.ValType{wasmspec.F64, wasmspec.I32},
		Locals:   []ir.Local{{Name: "scratch0", Type: wasmspec.I32}, {Name: "scratch1", Type: wasmspec.I32}},
		Exported: true,
		ExportAs: "m",
	}
	bc.ReserveFunction(main)
	main.Lower = func() []ir.Instruction {
		return append(body(bc, imports, segs), ir.Call(imports["print"].Index), ir.F64Const(0), ir.I32Const(0))
	}

	for {
		f := bc.NextPending()
		if f == nil {
			break
		}
		f.State = ir.Lowering
		f.Body = f.Lower()
		f.State = ir.Lowered
	}

	var pages uint32
	for _, p := range bc.Module.Pages {
		pages += p.PageCount
	}
	bc.Module.MainIndex = main.Index
	bc.Module.MemoryMinPages = pages + 1

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

func TestStringConcatAndLength(t *testing.T) {
	got := harness(t, []string{"ab", "cde"}, func(bc *ir.BuildContext, imports map[string]*ir.Function, strs []*ir.DataSegment) []ir.Instruction {
		return []ir.Instruction{
			ir.I32Const(int32(strs[0].Offset)),
			ir.I32Const(int32(strs[1].Offset)),
			ir.Call(imports["String#concat"].Index), // pushes i32 pointer to "abcde"
			ir.Call(imports["String#length"].Index),  // pushes f64 5
			ir.I32Const(int32(types.String)),
		}
	})
	if len(got) != 1 || got[0] != 5 {
		t.Fatalf("(\"ab\"+\"cde\").length: got %v want [5]", got)
	}
}

func TestStringCaseFoldAndIndexOf(t *testing.T) {
	got := harness(t, []string{"hello", "L"}, func(bc *ir.BuildContext, imports map[string]*ir.Function, strs []*ir.DataSegment) []ir.Instruction {
		var out []ir.Instruction
		// upper = "HELLO"; indexOf(upper, "L") should be 2
		out = append(out, ir.I32Const(int32(strs[0].Offset)), ir.Call(imports["String#toUpperCase"].Index), ir.LocalSet(0))
		out = append(out, ir.LocalGet(0), ir.I32Const(int32(strs[1].Offset)), ir.Call(imports["String#indexOf"].Index))
		out = append(out, ir.I32Const(int32(types.Number)))
		return out
	})
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("indexOf('L') in uppercased \"hello\": got %v want [2]", got)
	}
}

func TestStringSliceAndCharAt(t *testing.T) {
	got := harness(t, []string{"hello"}, func(bc *ir.BuildContext, imports map[string]*ir.Function, strs []*ir.DataSegment) []ir.Instruction {
		var out []ir.Instruction
		// slice(1, 4) == "ell"; charAt on the slice at index 1 == "l"; check its length is 1
		out = append(out, ir.I32Const(int32(strs[0].Offset)), ir.I32Const(1), ir.I32Const(4), ir.Call(imports["String#slice"].Index), ir.LocalSet(0))
		out = append(out, ir.LocalGet(0), ir.I32Const(1), ir.Call(imports["String#charAt"].Index), ir.LocalSet(1))
		out = append(out, ir.LocalGet(1), ir.Call(imports["String#length"].Index))
		out = append(out, ir.I32Const(int32(types.String)))
		return out
	})
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("charAt(slice(\"hello\",1,4), 1).length: got %v want [1]", got)
	}
}

func TestArrayPushGrowsAndReturnsNewLength(t *testing.T) {
	got := harness(t, nil, func(bc *ir.BuildContext, imports map[string]*ir.Function, _ []*ir.DataSegment) []ir.Instruction {
		alloc := imports["alloc"].Index
		push := imports["Array#push"].Index
		var out []ir.Instruction
		// arr = alloc(12 bytes: cap, len, dataPtr), all zeroed by alloc.
		out = append(out, ir.I32Const(12), ir.Call(alloc), ir.LocalSet(0))
		out = append(out, ir.LocalGet(0), ir.F64Const(10), ir.Call(push), ir.Plain(wasmspec.OpDrop))
		out = append(out, ir.LocalGet(0), ir.F64Const(20), ir.Call(push))
		out = append(out, ir.I32Const(int32(types.Number)))
		return out
	})
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("Array#push length after two pushes: got %v want [2]", got)
	}
}

func TestArrayPushThenPopRoundTrips(t *testing.T) {
	got := harness(t, nil, func(bc *ir.BuildContext, imports map[string]*ir.Function, _ []*ir.DataSegment) []ir.Instruction {
		alloc := imports["alloc"].Index
		push := imports["Array#push"].Index
		pop := imports["Array#pop"].Index
		get := imports["Array#get"].Index
		var out []ir.Instruction
		out = append(out, ir.I32Const(12), ir.Call(alloc), ir.LocalSet(0))
		out = append(out, ir.LocalGet(0), ir.F64Const(10), ir.Call(push), ir.Plain(wasmspec.OpDrop))
		out = append(out, ir.LocalGet(0), ir.F64Const(20), ir.Call(push), ir.Plain(wasmspec.OpDrop))
		out = append(out, ir.LocalGet(0), ir.Call(pop), ir.Plain(wasmspec.OpDrop)) // pops 20
		out = append(out, ir.LocalGet(0), ir.I32Const(0), ir.Call(get))            // remaining element 0 is 10
		out = append(out, ir.I32Const(int32(types.Number)))
		return out
	})
	if len(got) != 1 || got[0] != 10 {
		t.Fatalf("Array#get(0) after push,push,pop: got %v want [10]", got)
	}
}

func TestMathBuiltins(t *testing.T) {
	got := harness(t, nil, func(bc *ir.BuildContext, imports map[string]*ir.Function, _ []*ir.DataSegment) []ir.Instruction {
		var out []ir.Instruction
		out = append(out, ir.F64Const(3.7), ir.Call(imports["Math#floor"].Index))
		out = append(out, ir.I32Const(int32(types.Number)))
		return out
	})
	if len(got) != 1 || got[0] != 3 {
		t.Fatalf("Math#floor(3.7): got %v want [3]", got)
	}

	got = harness(t, nil, func(bc *ir.BuildContext, imports map[string]*ir.Function, _ []*ir.DataSegment) []ir.Instruction {
		var out []ir.Instruction
		out = append(out, ir.F64Const(2), ir.F64Const(10), ir.Call(imports["Math#max"].Index))
		out = append(out, ir.I32Const(int32(types.Number)))
		return out
	})
	if len(got) != 1 || got[0] != 10 {
		t.Fatalf("Math#max(2, 10): got %v want [10]", got)
	}
}

func TestObjectGetSetRoundTrip(t *testing.T) {
	got := harness(t, nil, func(bc *ir.BuildContext, imports map[string]*ir.Function, _ []*ir.DataSegment) []ir.Instruction {
		alloc := imports["alloc"].Index
		set := imports["Object#set"].Index
		get := imports["Object#get"].Index
		var out []ir.Instruction
		out = append(out, ir.I32Const(8*4), ir.Call(alloc), ir.LocalSet(0))
		out = append(out, ir.LocalGet(0), ir.I32Const(1), ir.F64Const(99), ir.Call(set))
		out = append(out, ir.LocalGet(0), ir.I32Const(1), ir.Call(get))
		out = append(out, ir.I32Const(int32(types.Number)))
		return out
	})
	if len(got) != 1 || got[0] != 99 {
		t.Fatalf("Object get/set round trip: got %v want [99]", got)
	}
}
