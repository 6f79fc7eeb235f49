// Package codegen lowers an analyzed syntax tree into the IR module the
// optimizer and assembler consume. It is the dominant stage of the
// pipeline: every supported AST node has a lowering here, closures become
// heap-allocated environment records, and built-in dispatch goes through
// internal/builtins by (type-id, method-name).
package codegen

import (
	"fmt"

	"github.com/glint-lang/glintc/internal/analyzer"
	"github.com/glint-lang/glintc/internal/ast"
	"github.com/glint-lang/glintc/internal/builtins"
	"github.com/glint-lang/glintc/internal/diagnostics"
	"github.com/glint-lang/glintc/internal/ir"
	"github.com/glint-lang/glintc/internal/wasmspec"
)

// Options carries the subset of spec.md §6's configuration that affects
// lowering decisions; pkg/compiler maps its own Options onto this
// narrower struct so the generator core never depends on the env/flag
// loader.
type Options struct {
	// ValueType is the Wasm scalar type of the value channel every
	// function's two results and every local pair carry. F64 (default)
	// or I32.
	ValueType wasmspec.ValType
}

func DefaultOptions() Options { return Options{ValueType: wasmspec.F64} }

// dataPageCount sizes the page reserved for string/literal data segments;
// internal/builtins reserves its own separate heap page for runtime
// allocation (arrays, closures, objects).
const dataPageCount = 2

// funcInfo is everything call sites and closure-construction sites need
// to know about a function once it has been declared, before its body is
// necessarily lowered.
type funcInfo struct {
	fn       *ir.Function
	freeVars []string // unique names this function's body needs as captured cells
}

// Generator holds the state threaded through one compile's lowering pass.
// A fresh Generator is created per call to pkg/compiler.Compile.
type Generator struct {
	bc       *ir.BuildContext
	res      *analyzer.Result
	registry *builtins.Registry
	imports  map[string]*ir.Function
	opts     Options

	dataBase  uint32
	exceptTag *ir.Tag

	funcByNode map[ast.Node]*funcInfo // FunctionDeclaration | FunctionExpression -> info
	funcByName map[string]*funcInfo   // unique binding name -> info, for direct-call resolution
	propSlots  map[string]int         // property name -> Object record slot index, shared program-wide
	strings    map[string]*ir.DataSegment

	errs []error
}

// Generate lowers prog into bc's module and returns the #main function.
// bc must be fresh (NewBuildContext()); res must be the analyzer.Result
// for prog.
func Generate(bc *ir.BuildContext, prog *ast.Program, res *analyzer.Result, opts Options) (*ir.Function, error) {
	g := &Generator{
		bc:         bc,
		res:        res,
		opts:       opts,
		funcByNode: make(map[ast.Node]*funcInfo),
		funcByName: make(map[string]*funcInfo),
	}
	g.registry = builtins.NewRegistry()
	g.imports = builtins.Install(bc, g.registry)

	dataPage := &ir.Page{Name: "data", PageCount: dataPageCount}
	bc.ReservePage(dataPage)
	g.dataBase = dataPage.Ordinal * 65536

	g.exceptTag = &ir.Tag{Name: "exception", Params: []wasmspec.ValType{opts.ValueType, wasmspec.I32}}
	bc.ReserveTag(g.exceptTag)

	g.hoistFunctionDecls(prog.Body)

	main := &ir.Function{
		Name:     "#main",
		Results:  []wasmspec.ValType{opts.ValueType, wasmspec.I32},
		Exported: true,
		ExportAs: "m",
	}
	bc.ReserveFunction(main)
	main.Lower = func() []ir.Instruction {
		fg := newFuncGen(g, main, nil, nil, false)
		body := fg.lowerBlock(prog.Body)
		// Fall off the end with undefined if no explicit return was hit.
		return append(body, fg.pushUndefined()...)
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

	if len(g.errs) > 0 {
		return nil, g.errs[0]
	}
	return main, nil
}

// hoistFunctionDecls pre-declares every function declaration reachable
// from body without descending into nested function literals, matching
// the analyzer's own hoisting target (nearest function root) so a forward
// call within the same function sees an already-reserved callee index.
// Called once for prog.Body (the program root) and again for every
// function's own body right before that function is lowered, since a
// function declaration nested inside another function hoists to that
// function's root, not to the program root.
func (g *Generator) hoistFunctionDecls(body []ast.Statement) {
	for _, stmt := range body {
		g.hoistStmt(stmt)
	}
}

func (g *Generator) hoistStmt(stmt ast.Statement) {
	switch n := stmt.(type) {
	case *ast.FunctionDeclaration:
		g.declareFunction(n, n.ID, n.Params, n.Body, n.ID.Name)
	case *ast.BlockStatement:
		g.hoistFunctionDecls(n.Body)
	case *ast.IfStatement:
		g.hoistStmt(n.Consequent)
		if n.Alternate != nil {
			g.hoistStmt(n.Alternate)
		}
	case *ast.WhileStatement:
		g.hoistStmt(n.Body)
	case *ast.ForStatement:
		g.hoistStmt(n.Body)
	case *ast.TryStatement:
		g.hoistFunctionDecls(n.Block.Body)
		if n.Handler != nil {
			g.hoistFunctionDecls(n.Handler.Body.Body)
		}
		if n.Finalizer != nil {
			g.hoistFunctionDecls(n.Finalizer.Body)
		}
	default:
	}
}

// declareFunction reserves a function record for a declaration or
// expression node, computing and caching its free-variable list. Safe to
// call multiple times for the same node (function expressions are
// declared lazily at the point they are evaluated as a value); repeat
// calls return the cached info. idNode is the declaration's own name
// identifier (nil for an anonymous function expression); when present,
// the function becomes resolvable by name for the direct-call and
// plain-reference lowering paths.
func (g *Generator) declareFunction(key ast.Node, idNode *ast.Identifier, params []*ast.Identifier, body *ast.BlockStatement, nameHint string) *funcInfo {
	if info, ok := g.funcByNode[key]; ok {
		return info
	}
	free := freeVariables(params, body, g.res)

	paramTypes := make([]wasmspec.ValType, 0, len(params)*2+1)
	for range params {
		paramTypes = append(paramTypes, g.opts.ValueType, wasmspec.I32)
	}
	paramTypes = append(paramTypes, wasmspec.I32) // trailing envPtr

	fn := &ir.Function{
		Name:    uniqueFuncName(nameHint, len(g.funcByNode)),
		Params:  paramTypes,
		Results: []wasmspec.ValType{g.opts.ValueType, wasmspec.I32},
	}
	g.bc.ReserveFunction(fn)

	info := &funcInfo{fn: fn, freeVars: free}
	g.funcByNode[key] = info
	if idNode != nil {
		if b, ok := g.res.Declarations[idNode]; ok {
			g.funcByName[b.UniqueName()] = info
		}
	}

	fn.Lower = func() []ir.Instruction {
		g.hoistFunctionDecls(body.Body)
		fg := newFuncGen(g, fn, params, free, true)
		instrs := append([]ir.Instruction(nil), fg.prelude...)
		instrs = append(instrs, fg.lowerBlock(body.Body)...)
		instrs = append(instrs, fg.pushUndefined()...)
		instrs = append(instrs, ir.Plain(wasmspec.OpReturn))
		return instrs
	}

	return info
}

func uniqueFuncName(hint string, n int) string {
	if hint == "" {
		return fmt.Sprintf("#closure%d", n)
	}
	return fmt.Sprintf("%s#fn%d", hint, n)
}

func (g *Generator) fail(err error) {
	g.errs = append(g.errs, err)
}

func toDiagPos(p ast.Position) diagnostics.Position {
	return diagnostics.Position{File: p.File, Line: p.Line, Column: p.Column}
}
