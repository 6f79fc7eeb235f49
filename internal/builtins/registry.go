// Package builtins supplies the host import descriptors and the
// prebuilt IR bodies for the standard-library surface the code generator
// dispatches to by (type-id, method-name): Number/String/Array/Object
// property access and the Math namespace, plus console.log. Every
// function here is built once per compile and registered into the
// module exactly like a user function that happens to have no source
// position and a pre-supplied Lower thunk.
package builtins

import (
	"github.com/glint-lang/glintc/internal/ir"
	"github.com/glint-lang/glintc/internal/types"
	"github.com/glint-lang/glintc/internal/wasmspec"
)

// HostImport names one function the generated module imports from the
// embedding host rather than defining itself.
type HostImport struct {
	Name    string
	Module  string
	Params  []wasmspec.ValType
	Results []wasmspec.ValType
}

// HostImports is the fixed set of functions spec.md §6 requires every
// compiled module to be able to import, plus the handful this
// implementation adds because Wasm has no native instruction for them:
// console output formatting and floating-point exponentiation. Wasm's
// lack of a transcendental pow instruction mirrors why time/timeOrigin
// are host imports in the first place — anything the ISA cannot compute
// is host's job, not a reason to hand-roll an approximation.
func HostImports() []HostImport {
	return []HostImport{
		{Name: "print", Module: "env", Params: []wasmspec.ValType{wasmspec.F64, wasmspec.I32}},
		{Name: "printChar", Module: "env", Params: []wasmspec.ValType{wasmspec.I32}},
		{Name: "time", Module: "env", Results: []wasmspec.ValType{wasmspec.F64}},
		{Name: "timeOrigin", Module: "env", Results: []wasmspec.ValType{wasmspec.F64}},
		{Name: "pow", Module: "env", Params: []wasmspec.ValType{wasmspec.F64, wasmspec.F64}, Results: []wasmspec.ValType{wasmspec.F64}},
		{Name: "numberToString", Module: "env", Params: []wasmspec.ValType{wasmspec.F64}, Results: []wasmspec.ValType{wasmspec.I32}},
		{Name: "numberToFixed", Module: "env", Params: []wasmspec.ValType{wasmspec.F64, wasmspec.F64}, Results: []wasmspec.ValType{wasmspec.I32}},
	}
}

// DeclareHostImports registers every HostImport as an imported ir.Function
// and returns them indexed by name, so the generator can look up a call
// target's function index when lowering a built-in that needs one.
func DeclareHostImports(bc *ir.BuildContext) map[string]*ir.Function {
	out := make(map[string]*ir.Function)
	for _, h := range HostImports() {
		f := &ir.Function{
			Name:      h.Name,
			Params:    h.Params,
			Results:   h.Results,
			Imported:  true,
			ImportMod: h.Module,
			ImportFn:  h.Name,
			Flags:     types.FuncFlags{Internal: true},
		}
		bc.ReserveFunction(f)
		out[h.Name] = f
	}
	return out
}

// dispatchKey identifies one (receiver type, method name) pair.
type dispatchKey struct {
	id   types.ID
	name string
}

// Method describes the built-in registered for one (type-id, method-name)
// pair; Lookup returns it. The body Build returns is valid once; callers must copy Instructions
// if they intend to mutate a specific call site's inlined body, but the
// generator always calls through a shared function record instead, so
// no copy is needed in practice.
type Method struct {
	// QualifiedName is the unique function name registered in the
	// module, e.g. "Number#toFixed" — never collides with user source
	// because '#' cannot appear in a surface identifier.
	QualifiedName string
	Params        []wasmspec.ValType
	Results       []wasmspec.ValType
	// Locals declares the scratch local variables Build's body references
	// beyond its Params, in order; local index len(Params)+i is Locals[i].
	// Install turns these into the ir.Function's declared locals, exactly
	// as internal/codegen's newLocal does for a user function's temporaries
	// — the code section has no way to infer a local's existence from the
	// instructions that reference it.
	Locals []wasmspec.ValType
	Build  func(imports map[string]*ir.Function) []ir.Instruction
}

// Registry is the full builtin table, built once and installed into a
// module via Install.
type Registry struct {
	methods map[dispatchKey]Method
}

// NewRegistry constructs the registry with every built-in this repo
// supports wired in. Non-goal per spec.md: no general reflection
// (Object.keys et al. are deliberately absent).
func NewRegistry() *Registry {
	r := &Registry{methods: make(map[dispatchKey]Method)}
	registerMath(r)
	registerNumber(r)
	registerString(r)
	registerArray(r)
	registerObject(r)
	return r
}

func (r *Registry) add(id types.ID, name string, m Method) {
	r.methods[dispatchKey{id, name}] = m
}

// Lookup returns the built-in registered for (id, name), if any.
func (r *Registry) Lookup(id types.ID, name string) (Method, bool) {
	m, ok := r.methods[dispatchKey{id, name}]
	return m, ok
}

// Install declares every host import and every built-in method as
// functions on the module, wiring each Method.Build against the
// resulting import table, and returns the import table for the
// generator's global-call-target lookups (e.g. console.log aliasing
// print).
func Install(bc *ir.BuildContext, r *Registry) map[string]*ir.Function {
	imports := DeclareHostImports(bc)
	imports["alloc"] = installAllocator(bc)
	for _, m := range r.methods {
		build := m.Build
		locals := make([]ir.Local, len(m.Locals))
		for i, t := range m.Locals {
			locals[i] = ir.Local{Name: "scratch", Type: t}
		}
		f := &ir.Function{
			Name:    m.QualifiedName,
			Params:  m.Params,
			Results: m.Results,
			Locals:  locals,
			Flags:   types.FuncFlags{Internal: true},
			Lower:   func() []ir.Instruction { return build(imports) },
		}
		bc.ReserveFunction(f)
		imports[m.QualifiedName] = f
	}
	imports["rtAdd"] = installDynamicAdd(bc, imports)
	return imports
}

func registerMath(r *Registry) {
	unary := func(name string, op wasmspec.Op) {
		r.add(types.Number, name, Method{
			QualifiedName: "Math#" + name,
			Params:        []wasmspec.ValType{wasmspec.F64},
			Results:       []wasmspec.ValType{wasmspec.F64},
			Build: func(map[string]*ir.Function) []ir.Instruction {
				return []ir.Instruction{ir.LocalGet(0), ir.Plain(op)}
			},
		})
	}
	binary := func(name string, op wasmspec.Op) {
		r.add(types.Number, name, Method{
			QualifiedName: "Math#" + name,
			Params:        []wasmspec.ValType{wasmspec.F64, wasmspec.F64},
			Results:       []wasmspec.ValType{wasmspec.F64},
			Build: func(map[string]*ir.Function) []ir.Instruction {
				return []ir.Instruction{ir.LocalGet(0), ir.LocalGet(1), ir.Plain(op)}
			},
		})
	}
	unary("floor", wasmspec.OpF64Floor)
	unary("ceil", wasmspec.OpF64Ceil)
	unary("abs", wasmspec.OpF64Abs)
	unary("sqrt", wasmspec.OpF64Sqrt)
	binary("max", wasmspec.OpF64Max)
	binary("min", wasmspec.OpF64Min)

	r.add(types.Number, "pow", Method{
		QualifiedName: "Math#pow",
		Params:        []wasmspec.ValType{wasmspec.F64, wasmspec.F64},
		Results:       []wasmspec.ValType{wasmspec.F64},
		Build: func(imports map[string]*ir.Function) []ir.Instruction {
			return []ir.Instruction{ir.LocalGet(0), ir.LocalGet(1), ir.Call(imports["pow"].Index)}
		},
	})
}

func registerNumber(r *Registry) {
	r.add(types.Number, "toString", Method{
		QualifiedName: "Number#toString",
		Params:        []wasmspec.ValType{wasmspec.F64},
		Results:       []wasmspec.ValType{wasmspec.I32},
		Build: func(imports map[string]*ir.Function) []ir.Instruction {
			return []ir.Instruction{ir.LocalGet(0), ir.Call(imports["numberToString"].Index)}
		},
	})

	// toFixed delegates formatting to the host, same as toString, with
	// the requested digit count passed straight through.
	r.add(types.Number, "toFixed", Method{
		QualifiedName: "Number#toFixed",
		Params:        []wasmspec.ValType{wasmspec.F64, wasmspec.F64},
		Results:       []wasmspec.ValType{wasmspec.I32},
		Build: func(imports map[string]*ir.Function) []ir.Instruction {
			return []ir.Instruction{ir.LocalGet(0), ir.LocalGet(1), ir.Call(imports["numberToFixed"].Index)}
		},
	})
}

func registerObject(r *Registry) {
	// A minimal property bag: get/set by a precomputed slot index, not a
	// general hash map — consistent with the Non-goal that rules out
	// full reflection (Object.keys et al).
	r.add(types.Object, "get", Method{
		QualifiedName: "Object#get",
		Params:        []wasmspec.ValType{wasmspec.I32, wasmspec.I32},
		Results:       []wasmspec.ValType{wasmspec.F64},
		Build: func(map[string]*ir.Function) []ir.Instruction {
			return []ir.Instruction{
				ir.LocalGet(0), ir.LocalGet(1),
				ir.I32Const(8), ir.Plain(wasmspec.OpI32Mul), ir.Plain(wasmspec.OpI32Add),
				ir.Mem(wasmspec.OpF64Load, 3, 0),
			}
		},
	})
	r.add(types.Object, "set", Method{
		QualifiedName: "Object#set",
		Params:        []wasmspec.ValType{wasmspec.I32, wasmspec.I32, wasmspec.F64},
		Build: func(map[string]*ir.Function) []ir.Instruction {
			return []ir.Instruction{
				ir.LocalGet(0), ir.LocalGet(1),
				ir.I32Const(8), ir.Plain(wasmspec.OpI32Mul), ir.Plain(wasmspec.OpI32Add),
				ir.LocalGet(2), ir.Mem(wasmspec.OpF64Store, 3, 0),
			}
		},
	})
}
