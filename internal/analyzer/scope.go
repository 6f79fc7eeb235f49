package analyzer

import (
	"github.com/glint-lang/glintc/internal/ast"
	"github.com/glint-lang/glintc/internal/diagnostics"
)

// bindingKind distinguishes how a name entered a scope, which in turn
// governs hoisting and temporal-dead-zone behavior.
type bindingKind int

const (
	bindVar      bindingKind = iota // function-scoped, hoisted to its nearest function/program root
	bindLet                         // block-scoped, live only from its declaration point
	bindConst                       // block-scoped, live only from its declaration point, never reassigned
	bindFunction                    // function declaration, hoisted like var but initialized at scope entry
	bindParam                       // a function parameter
	bindCatch                       // a catch clause's binding
)

// binding is one resolved name in a scope: its unique disambiguated name
// (base#N, assigned by the discovery pass when the binding is declared),
// its declaration position
// for temporal-dead-zone checks, and whether it has been observed used
// by a nested closure (driving the heap-cell decision in codegen).
type binding struct {
	kind      bindingKind
	declaredAt ast.Position
	unique    string
	captured  bool
}

// Captured reports whether codegen must address this binding through a
// heap cell rather than an ordinary pair of Wasm locals.
func (b *binding) Captured() bool { return b.captured }

// UniqueName is the disambiguated name codegen uses as the binding's
// stable local/cell key.
func (b *binding) UniqueName() string { return b.unique }

// IsBlockScoped reports whether this binding is a let/const/catch
// binding, live only from its declaration point onward.
func (b *binding) IsBlockScoped() bool {
	return b.kind == bindLet || b.kind == bindConst || b.kind == bindCatch
}

// IsParam reports whether this binding is a function parameter.
func (b *binding) IsParam() bool { return b.kind == bindParam }

// isVarLike reports whether kind hoists and re-declares silently (var and
// function declarations), as opposed to let/const, which conflict with
// any prior binding in the same scope.
func isVarLike(kind bindingKind) bool {
	return kind == bindVar || kind == bindFunction
}

// scope is one lexical scope: a function body, a block, or the program
// root. enclosingScope walks toward the root exactly like the teacher's
// component scope chain; closure(count) is the same "skip N enclosing
// scopes" operation generalized from component-model outer-alias
// resolution to ordinary lexical variable lookup.
type scope struct {
	enclosingScope *scope
	isFunctionRoot bool
	names          map[string]*binding
}

func newScope(enclosing *scope, isFunctionRoot bool) *scope {
	return &scope{
		enclosingScope: enclosing,
		isFunctionRoot: isFunctionRoot,
		names:          make(map[string]*binding),
	}
}

// closure walks up count enclosing scopes, mirroring
// componentmodel/scope.go's (*scope).closure. The disambiguation pass
// does not call it: resolve returns the hop count directly and
// crossesFunctionBoundary does its own walk up to the function root.
func (s *scope) closure(count int) (*scope, error) {
	current := s
	for i := 0; i < count; i++ {
		if current.enclosingScope == nil {
			return nil, errInvalidClosureDepth(count)
		}
		current = current.enclosingScope
	}
	return current, nil
}

func errInvalidClosureDepth(count int) error {
	return diagnostics.NewUnresolvedReferenceError(diagnostics.Position{}, "<closure depth>")
}

// nearestFunctionRoot finds the scope that var/function declarations in
// s hoist to: the nearest enclosing scope marked isFunctionRoot, or the
// program root if none is closer.
func (s *scope) nearestFunctionRoot() *scope {
	current := s
	for !current.isFunctionRoot && current.enclosingScope != nil {
		current = current.enclosingScope
	}
	return current
}

// declare records a new binding directly in s, or returns the existing
// binding and false if s already has one under name. It does no hoisting
// itself: callers pass the nearest function root as s for var/function
// declarations and the immediate block for let/const/catch.
func (s *scope) declare(name string, kind bindingKind, pos ast.Position) (*binding, bool) {
	if existing, ok := s.names[name]; ok {
		return existing, false
	}
	b := &binding{kind: kind, declaredAt: pos}
	s.names[name] = b
	return b, true
}

// resolve performs innermost-first lexical lookup, returning the binding
// and how many enclosing-scope hops it crossed (0 = found locally).
func (s *scope) resolve(name string) (*binding, int, bool) {
	depth := 0
	for current := s; current != nil; current = current.enclosingScope {
		if b, ok := current.names[name]; ok {
			return b, depth, true
		}
		depth++
	}
	return nil, 0, false
}
