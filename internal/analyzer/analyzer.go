// Package analyzer implements the two-pass semantic analysis stage:
// discovery hoists var/function declarations and establishes block
// scopes for let/const/catch bindings, then disambiguation resolves
// every identifier reference to a unique binding via innermost-first
// lexical lookup, recording for each Identifier (in Result.Refs, without
// touching the tree) the unique "base#N" name the code generator can use
// as a stable local/global key.
package analyzer

import (
	"fmt"

	"github.com/glint-lang/glintc/internal/ast"
	"github.com/glint-lang/glintc/internal/diagnostics"
)

// Resolution is the output of analysis for one reference: the unique
// name of the binding it resolves to, whether resolving it crosses a
// function boundary (the generator must address it as a heap cell, not
// an ordinary local, when this is true), and whether it names a global
// the generator itself defines rather than a user binding.
type Resolution struct {
	UniqueName   string
	CrossesScope bool
	Builtin      bool
}

// Result is everything the code generator needs from analysis.
type Result struct {
	Refs         map[*ast.Identifier]Resolution
	Declarations map[*ast.Identifier]*binding
	EvalCalls    map[*ast.CallExpression]bool
}

// Options controls analyzer behavior; it maps 1:1 onto the "closures"
// entry of spec.md §6's configuration table.
type Options struct {
	// EnableClosures, when true (the default), lets a nested function
	// capture a variable from an enclosing function by boxing it into a
	// heap cell (internal/codegen's closure lowering). When false, a
	// reference that would require such a capture is instead reported as
	// UnsupportedError at analysis time — the program compiles only if no
	// nested function ever reads or writes an outer function's binding.
	EnableClosures bool
}

func DefaultOptions() Options { return Options{EnableClosures: true} }

type analyzer struct {
	root *scope
	opts Options

	// blockScope/funcScope record the scope discovery created for each
	// block-bearing or function-bearing node, so the disambiguation pass
	// walks the identical tree rather than rebuilding it.
	blockScope map[*ast.BlockStatement]*scope
	funcScope  map[ast.Node]*scope // *ast.FunctionDeclaration | *ast.FunctionExpression
	forScope   map[*ast.ForStatement]*scope
	catchScope map[*ast.CatchClause]*scope

	refs      map[*ast.Identifier]Resolution
	decls     map[*ast.Identifier]*binding
	evalCalls map[*ast.CallExpression]bool
	counter   map[string]int
	errs      []error
}

// globalNames are identifiers the generator resolves to host imports or
// built-in objects rather than user bindings.
var globalNames = map[string]bool{
	"print": true, "console": true, "Math": true, "Number": true, "String": true,
	"Array": true, "Object": true, "undefined": true, "NaN": true, "Infinity": true,
}

// dynamicEvalNames name the two ECMAScript entry points into dynamic code
// evaluation. This compiler never lowers either; the analyzer marks the
// call site instead of letting the generator discover it later.
var dynamicEvalNames = map[string]bool{"eval": true, "Function": true}

// Analyze runs both passes over prog and returns the resolution result,
// or the first diagnostic encountered. Analysis never mutates prog;
// all resolution information lives in the returned Result, so concurrent
// compiles of distinct programs never share state.
func Analyze(prog *ast.Program, opts Options) (*Result, error) {
	a := &analyzer{
		root:       newScope(nil, true),
		opts:       opts,
		blockScope: make(map[*ast.BlockStatement]*scope),
		funcScope:  make(map[ast.Node]*scope),
		forScope:   make(map[*ast.ForStatement]*scope),
		catchScope: make(map[*ast.CatchClause]*scope),
		refs:       make(map[*ast.Identifier]Resolution),
		decls:      make(map[*ast.Identifier]*binding),
		evalCalls:  make(map[*ast.CallExpression]bool),
		counter:    make(map[string]int),
	}
	a.discoverBlock(a.root, prog.Body)
	if len(a.errs) > 0 {
		return nil, a.errs[0]
	}
	a.disambiguateBlock(a.root, prog.Body, a.root)
	if len(a.errs) > 0 {
		return nil, a.errs[0]
	}
	return &Result{Refs: a.refs, Declarations: a.decls, EvalCalls: a.evalCalls}, nil
}

// --- Discovery pass ---

func (a *analyzer) discoverBlock(s *scope, body []ast.Statement) {
	for _, stmt := range body {
		a.discoverStmt(s, stmt)
	}
}

func (a *analyzer) discoverStmt(s *scope, stmt ast.Statement) {
	switch n := stmt.(type) {
	case *ast.VariableDeclaration:
		for _, d := range n.Declarations {
			kind := bindLet
			switch n.Kind {
			case "var":
				kind = bindVar
			case "const":
				kind = bindConst
			}
			target := s
			if kind == bindVar {
				target = s.nearestFunctionRoot()
			}
			a.declareOrError(target, d.ID, kind)
			if d.Init != nil {
				a.discoverExpr(s, d.Init)
			}
		}
	case *ast.FunctionDeclaration:
		target := s.nearestFunctionRoot()
		a.declareOrError(target, n.ID, bindFunction)
		a.discoverFunction(n, s, n.Params, n.Body)
	case *ast.BlockStatement:
		inner := newScope(s, false)
		a.blockScope[n] = inner
		a.discoverBlock(inner, n.Body)
	case *ast.IfStatement:
		a.discoverExpr(s, n.Test)
		a.discoverStmt(s, n.Consequent)
		if n.Alternate != nil {
			a.discoverStmt(s, n.Alternate)
		}
	case *ast.WhileStatement:
		a.discoverExpr(s, n.Test)
		a.discoverStmt(s, n.Body)
	case *ast.ForStatement:
		inner := newScope(s, false)
		a.forScope[n] = inner
		if decl, ok := n.Init.(*ast.VariableDeclaration); ok {
			a.discoverStmt(inner, decl)
		} else if expr, ok := n.Init.(ast.Expression); ok && expr != nil {
			a.discoverExpr(inner, expr)
		}
		if n.Test != nil {
			a.discoverExpr(inner, n.Test)
		}
		if n.Update != nil {
			a.discoverExpr(inner, n.Update)
		}
		a.discoverStmt(inner, n.Body)
	case *ast.ReturnStatement:
		if n.Argument != nil {
			a.discoverExpr(s, n.Argument)
		}
	case *ast.ThrowStatement:
		a.discoverExpr(s, n.Argument)
	case *ast.TryStatement:
		blockScope := newScope(s, false)
		a.blockScope[n.Block] = blockScope
		a.discoverBlock(blockScope, n.Block.Body)
		if n.Handler != nil {
			cs := newScope(s, false)
			a.catchScope[n.Handler] = cs
			if n.Handler.Param != nil {
				a.declareOrError(cs, n.Handler.Param, bindCatch)
			}
			handlerBody := newScope(cs, false)
			a.blockScope[n.Handler.Body] = handlerBody
			a.discoverBlock(handlerBody, n.Handler.Body.Body)
		}
		if n.Finalizer != nil {
			finScope := newScope(s, false)
			a.blockScope[n.Finalizer] = finScope
			a.discoverBlock(finScope, n.Finalizer.Body)
		}
	case *ast.ExpressionStatement:
		a.discoverExpr(s, n.Expression)
	default:
		// BreakStatement, ContinueStatement, EmptyStatement: no bindings.
	}
}

// discoverFunction builds the function's root scope nested under parent,
// declares its parameters, discovers its body, and remembers the scope
// under key so disambiguation can reuse it.
func (a *analyzer) discoverFunction(key ast.Node, parent *scope, params []*ast.Identifier, body *ast.BlockStatement) {
	fnScope := newScope(parent, true)
	a.funcScope[key] = fnScope
	for _, p := range params {
		a.declareOrError(fnScope, p, bindParam)
	}
	a.discoverBlock(fnScope, body.Body)
}

func (a *analyzer) discoverExpr(s *scope, expr ast.Expression) {
	switch n := expr.(type) {
	case *ast.FunctionExpression:
		if n.ID != nil {
			a.declareOrError(s, n.ID, bindFunction)
		}
		a.discoverFunction(n, s, n.Params, n.Body)
	case *ast.BinaryExpression:
		a.discoverExpr(s, n.Left)
		a.discoverExpr(s, n.Right)
	case *ast.LogicalExpression:
		a.discoverExpr(s, n.Left)
		a.discoverExpr(s, n.Right)
	case *ast.UnaryExpression:
		a.discoverExpr(s, n.Argument)
	case *ast.UpdateExpression:
		a.discoverExpr(s, n.Argument)
	case *ast.AssignmentExpression:
		a.discoverExpr(s, n.Left)
		a.discoverExpr(s, n.Right)
	case *ast.ConditionalExpression:
		a.discoverExpr(s, n.Test)
		a.discoverExpr(s, n.Consequent)
		a.discoverExpr(s, n.Alternate)
	case *ast.CallExpression:
		a.discoverExpr(s, n.Callee)
		for _, arg := range n.Arguments {
			a.discoverExpr(s, arg)
		}
	case *ast.NewExpression:
		a.discoverExpr(s, n.Callee)
		for _, arg := range n.Arguments {
			a.discoverExpr(s, arg)
		}
	case *ast.MemberExpression:
		a.discoverExpr(s, n.Object)
		if n.Computed {
			a.discoverExpr(s, n.Property)
		}
	case *ast.SequenceExpression:
		for _, e := range n.Expressions {
			a.discoverExpr(s, e)
		}
	default:
		// Identifier, literals: no nested bindings to discover.
	}
}

func (a *analyzer) declareOrError(s *scope, id *ast.Identifier, kind bindingKind) {
	if id == nil {
		return
	}
	existing, isNew := s.declare(id.Name, kind, id.Pos())
	if !isNew {
		if !(isVarLike(existing.kind) && isVarLike(kind)) {
			a.errs = append(a.errs, diagnostics.NewRedeclarationError(toDiagPos(id.Pos()), id.Name))
			return
		}
	}
	b := s.names[id.Name]
	if b.unique == "" {
		b.unique = a.uniqueName(id.Name)
	}
	a.decls[id] = b
}

func (a *analyzer) uniqueName(base string) string {
	n := a.counter[base]
	a.counter[base] = n + 1
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s#%d", base, n)
}

func toDiagPos(p ast.Position) diagnostics.Position {
	return diagnostics.Position{File: p.File, Line: p.Line, Column: p.Column}
}

// --- Disambiguation pass ---

// disambiguateBlock walks body resolving every identifier reference
// against fnRoot-relative scope s, recording temporal-dead-zone
// violations and eval/Function call markers.
func (a *analyzer) disambiguateBlock(s *scope, body []ast.Statement, fnRoot *scope) {
	for _, stmt := range body {
		a.disambiguateStmt(s, stmt, fnRoot)
	}
}

func (a *analyzer) disambiguateStmt(s *scope, stmt ast.Statement, fnRoot *scope) {
	switch n := stmt.(type) {
	case *ast.VariableDeclaration:
		for _, d := range n.Declarations {
			if d.Init != nil {
				a.disambiguateExpr(s, d.Init, fnRoot)
			}
		}
	case *ast.FunctionDeclaration:
		inner := a.funcScope[n]
		a.disambiguateBlock(inner, n.Body.Body, inner)
	case *ast.BlockStatement:
		inner := a.blockScope[n]
		a.disambiguateBlock(inner, n.Body, fnRoot)
	case *ast.IfStatement:
		a.disambiguateExpr(s, n.Test, fnRoot)
		a.disambiguateStmt(s, n.Consequent, fnRoot)
		if n.Alternate != nil {
			a.disambiguateStmt(s, n.Alternate, fnRoot)
		}
	case *ast.WhileStatement:
		a.disambiguateExpr(s, n.Test, fnRoot)
		a.disambiguateStmt(s, n.Body, fnRoot)
	case *ast.ForStatement:
		inner := a.forScope[n]
		if decl, ok := n.Init.(*ast.VariableDeclaration); ok {
			a.disambiguateStmt(inner, decl, fnRoot)
		} else if expr, ok := n.Init.(ast.Expression); ok && expr != nil {
			a.disambiguateExpr(inner, expr, fnRoot)
		}
		if n.Test != nil {
			a.disambiguateExpr(inner, n.Test, fnRoot)
		}
		if n.Update != nil {
			a.disambiguateExpr(inner, n.Update, fnRoot)
		}
		a.disambiguateStmt(inner, n.Body, fnRoot)
	case *ast.ReturnStatement:
		if n.Argument != nil {
			a.disambiguateExpr(s, n.Argument, fnRoot)
		}
	case *ast.ThrowStatement:
		a.disambiguateExpr(s, n.Argument, fnRoot)
	case *ast.TryStatement:
		a.disambiguateBlock(a.blockScope[n.Block], n.Block.Body, fnRoot)
		if n.Handler != nil {
			a.disambiguateBlock(a.blockScope[n.Handler.Body], n.Handler.Body.Body, fnRoot)
		}
		if n.Finalizer != nil {
			a.disambiguateBlock(a.blockScope[n.Finalizer], n.Finalizer.Body, fnRoot)
		}
	case *ast.ExpressionStatement:
		a.disambiguateExpr(s, n.Expression, fnRoot)
	default:
	}
}

func (a *analyzer) disambiguateExpr(s *scope, expr ast.Expression, fnRoot *scope) {
	switch n := expr.(type) {
	case *ast.Identifier:
		a.resolveRef(s, n, fnRoot)
	case *ast.FunctionExpression:
		inner := a.funcScope[n]
		a.disambiguateBlock(inner, n.Body.Body, inner)
	case *ast.BinaryExpression:
		a.disambiguateExpr(s, n.Left, fnRoot)
		a.disambiguateExpr(s, n.Right, fnRoot)
	case *ast.LogicalExpression:
		a.disambiguateExpr(s, n.Left, fnRoot)
		a.disambiguateExpr(s, n.Right, fnRoot)
	case *ast.UnaryExpression:
		a.disambiguateExpr(s, n.Argument, fnRoot)
	case *ast.UpdateExpression:
		a.disambiguateExpr(s, n.Argument, fnRoot)
	case *ast.AssignmentExpression:
		a.disambiguateExpr(s, n.Left, fnRoot)
		a.disambiguateExpr(s, n.Right, fnRoot)
	case *ast.ConditionalExpression:
		a.disambiguateExpr(s, n.Test, fnRoot)
		a.disambiguateExpr(s, n.Consequent, fnRoot)
		a.disambiguateExpr(s, n.Alternate, fnRoot)
	case *ast.CallExpression:
		if callee, ok := n.Callee.(*ast.Identifier); ok {
			if _, _, found := s.resolve(callee.Name); !found && dynamicEvalNames[callee.Name] {
				a.evalCalls[n] = true
			}
		}
		a.disambiguateExpr(s, n.Callee, fnRoot)
		for _, arg := range n.Arguments {
			a.disambiguateExpr(s, arg, fnRoot)
		}
	case *ast.NewExpression:
		a.disambiguateExpr(s, n.Callee, fnRoot)
		for _, arg := range n.Arguments {
			a.disambiguateExpr(s, arg, fnRoot)
		}
	case *ast.MemberExpression:
		a.disambiguateExpr(s, n.Object, fnRoot)
		if n.Computed {
			a.disambiguateExpr(s, n.Property, fnRoot)
		}
	case *ast.SequenceExpression:
		for _, e := range n.Expressions {
			a.disambiguateExpr(s, e, fnRoot)
		}
	default:
		// literals carry no references.
	}
}

// resolveRef resolves id against s, records its Resolution, and raises
// UnresolvedReferenceError if id is neither a user binding nor a
// recognized global. Temporal-dead-zone: a let/const binding referenced
// before its declaration point (only meaningful within the same scope,
// since a binding never exists in an enclosing scope before control
// reaches it) is also an UnresolvedReferenceError, matching surface
// ECMAScript's ReferenceError on dead-zone access.
func (a *analyzer) resolveRef(s *scope, id *ast.Identifier, fnRoot *scope) {
	b, depth, found := s.resolve(id.Name)
	if !found {
		if globalNames[id.Name] || dynamicEvalNames[id.Name] {
			a.refs[id] = Resolution{UniqueName: id.Name, Builtin: true}
			return
		}
		a.errs = append(a.errs, diagnostics.NewUnresolvedReferenceError(toDiagPos(id.Pos()), id.Name))
		return
	}
	if (b.kind == bindLet || b.kind == bindConst) && isBeforeDeclaration(id.Pos(), b.declaredAt) {
		a.errs = append(a.errs, diagnostics.NewUnresolvedReferenceError(toDiagPos(id.Pos()), id.Name))
		return
	}
	crosses := depth > 0 && crossesFunctionBoundary(s, depth, fnRoot)
	if crosses && !a.opts.EnableClosures {
		a.errs = append(a.errs, diagnostics.NewUnsupportedError(toDiagPos(id.Pos()), "closures are disabled: %q is declared in an enclosing function", id.Name))
		return
	}
	if crosses {
		b.captured = true
	}
	a.refs[id] = Resolution{UniqueName: b.unique, CrossesScope: crosses}
}

// isBeforeDeclaration approximates source order by line then column; the
// frontend assigns strictly increasing positions within one file, so
// this is exact for single-file programs.
func isBeforeDeclaration(ref, decl ast.Position) bool {
	if ref.Line != decl.Line {
		return ref.Line < decl.Line
	}
	return ref.Column < decl.Column
}

// crossesFunctionBoundary reports whether a binding found depth scopes
// above s lives outside the current function, by comparing depth against
// the number of hops from s up to fnRoot: depth <= that distance means
// the binding is declared at or within fnRoot (the current function);
// anything further out belongs to an enclosing function and must be
// captured as a heap cell.
func crossesFunctionBoundary(s *scope, depth int, fnRoot *scope) bool {
	distanceToRoot := 0
	for current := s; current != fnRoot; current = current.enclosingScope {
		distanceToRoot++
	}
	return depth > distanceToRoot
}
