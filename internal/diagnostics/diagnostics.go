// Package diagnostics defines the error taxonomy every compiler stage
// raises. Each kind satisfies the Diagnostic interface so callers can
// discriminate by stage with errors.As rather than string matching.
package diagnostics

import "fmt"

// Position is a source location, mirroring ast.Position so diagnostics
// can be constructed without importing the ast package.
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) String() string {
	if p.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Diagnostic is the common interface every error kind below implements.
type Diagnostic interface {
	error
	Stage() string
	Position() Position
}

type diag struct {
	stage string
	pos   Position
	msg   string
}

func (d *diag) Stage() string      { return d.stage }
func (d *diag) Position() Position { return d.pos }
func (d *diag) Error() string {
	if loc := d.pos.String(); loc != "" {
		return fmt.Sprintf("%s: %s: %s", loc, d.stage, d.msg)
	}
	return fmt.Sprintf("%s: %s", d.stage, d.msg)
}

// ParseError is raised by the frontend on malformed source text.
type ParseError struct{ *diag }

func NewParseError(pos Position, format string, args ...any) *ParseError {
	return &ParseError{&diag{stage: "parse error", pos: pos, msg: fmt.Sprintf(format, args...)}}
}

// RedeclarationError is raised by the analyzer when a block-scoped
// binding conflicts with another binding in the same scope.
type RedeclarationError struct{ *diag }

func NewRedeclarationError(pos Position, name string) *RedeclarationError {
	return &RedeclarationError{&diag{stage: "redeclaration error", pos: pos, msg: fmt.Sprintf("%q is already declared in this scope", name)}}
}

// UnsupportedError is raised when source uses a construct the generator
// deliberately does not lower — dynamic eval/Function construction, for
// instance, or a proposed feature outside the language surface.
type UnsupportedError struct{ *diag }

func NewUnsupportedError(pos Position, format string, args ...any) *UnsupportedError {
	return &UnsupportedError{&diag{stage: "unsupported construct", pos: pos, msg: fmt.Sprintf(format, args...)}}
}

// TypeCompileError is the diagnostic kind for an operation a static type
// hint makes provably invalid (e.g. calling a value the analyzer proved
// is never a Function). No stage constructs it: the generator reports a
// compound arithmetic operator on a known non-numeric operand as an
// UnsupportedError.
type TypeCompileError struct{ *diag }

func NewTypeCompileError(pos Position, format string, args ...any) *TypeCompileError {
	return &TypeCompileError{&diag{stage: "type error", pos: pos, msg: fmt.Sprintf(format, args...)}}
}

// UnresolvedReferenceError is raised by the analyzer when an identifier
// has no binding in any enclosing scope, or by the assembler when a
// deferred instruction survives assembly with no resolution.
type UnresolvedReferenceError struct{ *diag }

func NewUnresolvedReferenceError(pos Position, name string) *UnresolvedReferenceError {
	return &UnresolvedReferenceError{&diag{stage: "unresolved reference", pos: pos, msg: fmt.Sprintf("%q is not defined", name)}}
}

// EncodingError is raised by the assembler when a module fails to
// serialize to valid binary form (an out-of-range index, an unclosed
// block, an unrepresentable immediate).
type EncodingError struct{ *diag }

func NewEncodingError(format string, args ...any) *EncodingError {
	return &EncodingError{&diag{stage: "encoding error", msg: fmt.Sprintf(format, args...)}}
}
