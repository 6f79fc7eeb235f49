package optimize

import (
	"reflect"
	"testing"

	"github.com/glint-lang/glintc/internal/ir"
	"github.com/glint-lang/glintc/internal/wasmspec"
)

func runFunc(t *testing.T, body []ir.Instruction, opts Options) []ir.Instruction {
	t.Helper()
	mod := &ir.Module{Functions: []*ir.Function{{Name: "f", Body: body}}}
	Run(mod, opts)
	return mod.Functions[0].Body
}

func TestRedundantReload(t *testing.T) {
	got := runFunc(t, []ir.Instruction{ir.LocalSet(3), ir.LocalGet(3)}, DefaultOptions())
	want := []ir.Instruction{ir.LocalTee(3)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestDeadLoad(t *testing.T) {
	got := runFunc(t, []ir.Instruction{ir.LocalGet(1), ir.Plain(wasmspec.OpDrop)}, DefaultOptions())
	if len(got) != 0 {
		t.Fatalf("expected empty body, got %+v", got)
	}
}

func TestTeeThenDropBecomesSet(t *testing.T) {
	got := runFunc(t, []ir.Instruction{ir.LocalTee(2), ir.Plain(wasmspec.OpDrop)}, DefaultOptions())
	want := []ir.Instruction{ir.LocalSet(2)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestDeadConst(t *testing.T) {
	got := runFunc(t, []ir.Instruction{ir.F64Const(3.5), ir.Plain(wasmspec.OpDrop)}, DefaultOptions())
	if len(got) != 0 {
		t.Fatalf("expected empty body, got %+v", got)
	}
}

func TestEqzCanonicalization(t *testing.T) {
	body := []ir.Instruction{
		ir.LocalGet(0),
		ir.I32Const(0),
		ir.Plain(wasmspec.OpI32Eq),
	}
	got := runFunc(t, body, DefaultOptions())
	want := []ir.Instruction{ir.LocalGet(0), ir.Plain(wasmspec.OpI32Eqz)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestIdentityRoundTrip(t *testing.T) {
	body := []ir.Instruction{
		ir.LocalGet(0),
		ir.Plain(wasmspec.OpI64ExtendI32S),
		ir.Plain(wasmspec.OpI32WrapI64),
	}
	got := runFunc(t, body, DefaultOptions())
	want := []ir.Instruction{ir.LocalGet(0)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestTruncConstantFold(t *testing.T) {
	body := []ir.Instruction{ir.F64Const(9.7), ir.Plain(wasmspec.OpI32TruncF64S)}
	got := runFunc(t, body, DefaultOptions())
	want := []ir.Instruction{ir.I32Const(9)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestEmptyBlockStripped(t *testing.T) {
	body := []ir.Instruction{
		ir.Block(wasmspec.BlockVoid, []ir.Instruction{}),
		ir.LocalGet(0),
		ir.Plain(wasmspec.OpDrop),
	}
	got := runFunc(t, body, DefaultOptions())
	if len(got) != 0 {
		t.Fatalf("expected empty body, got %+v", got)
	}
}

func TestNestedBlockSimplifiedFirst(t *testing.T) {
	inner := []ir.Instruction{ir.LocalSet(0), ir.LocalGet(0)}
	body := []ir.Instruction{ir.Block(wasmspec.BlockVoid, inner)}
	got := runFunc(t, body, DefaultOptions())
	want := []ir.Instruction{ir.Block(wasmspec.BlockVoid, []ir.Instruction{ir.LocalTee(0)})}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestDeadStoreDemotedToDrop(t *testing.T) {
	body := []ir.Instruction{
		ir.F64Const(1),
		ir.LocalSet(5), // clobbered below with no intervening read -> becomes drop -> then collapses with the const above
		ir.F64Const(2),
		ir.LocalSet(5),
	}
	got := runFunc(t, body, DefaultOptions())
	want := []ir.Instruction{ir.F64Const(2), ir.LocalSet(5)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestDeadStoreSurvivesIntermediateRead(t *testing.T) {
	body := []ir.Instruction{
		ir.F64Const(1),
		ir.LocalSet(5),
		ir.LocalGet(6),
		ir.LocalGet(5),
		ir.LocalSet(7),
		ir.F64Const(2),
		ir.LocalSet(5),
	}
	want := append([]ir.Instruction{}, body...)
	got := runFunc(t, append([]ir.Instruction{}, body...), DefaultOptions())
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestTailCallRewriteGatedByOption(t *testing.T) {
	body := []ir.Instruction{ir.Call(7), ir.Plain(wasmspec.OpReturn)}

	off := runFunc(t, append([]ir.Instruction{}, body...), Options{Passes: 2})
	if !reflect.DeepEqual(off, body) {
		t.Fatalf("expected no rewrite with tail calls disabled, got %+v", off)
	}

	on := runFunc(t, append([]ir.Instruction{}, body...), Options{Passes: 2, EnableTailCalls: true})
	want := []ir.Instruction{ir.ReturnCall(7)}
	if !reflect.DeepEqual(on, want) {
		t.Fatalf("got %+v want %+v", on, want)
	}
}

func TestImportedFunctionUntouched(t *testing.T) {
	mod := &ir.Module{Functions: []*ir.Function{{Name: "env.print", Imported: true}}}
	Run(mod, DefaultOptions())
	if mod.Functions[0].Body != nil {
		t.Fatalf("expected imported function body to remain nil")
	}
}
