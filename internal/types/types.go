// Package types defines the runtime value type ids carried alongside every
// value produced by generated code, and the auxiliary function flags the
// generator and built-in registry attach to function records.
package types

// ID names a language-level value kind. Every function the generator
// lowers from source returns a (value, ID) pair; ID is pushed as an i32.
type ID int32

const (
	Undefined ID = iota
	Null
	Number
	String
	Boolean
	Object
	Function
	Array
	Symbol
	BigInt
	Regex
	Date
	Error
	Map
	Set
	ArrayBuffer

	// Unknown marks a static type hint the generator could not narrow; it
	// never appears as a runtime tag, only as a compile-time hint value.
	Unknown ID = -1
)

func (id ID) String() string {
	switch id {
	case Undefined:
		return "undefined"
	case Null:
		return "null"
	case Number:
		return "number"
	case String:
		return "string"
	case Boolean:
		return "boolean"
	case Object:
		return "object"
	case Function:
		return "function"
	case Array:
		return "array"
	case Symbol:
		return "symbol"
	case BigInt:
		return "bigint"
	case Regex:
		return "regex"
	case Date:
		return "date"
	case Error:
		return "error"
	case Map:
		return "map"
	case Set:
		return "set"
	case ArrayBuffer:
		return "arraybuffer"
	case Unknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// IsNumeric reports whether a statically known id behaves like the
// language's single numeric domain for fast-path arithmetic selection.
func (id ID) IsNumeric() bool { return id == Number }

// Hint is a compile-time static type hint for a subexpression: a concrete
// ID, or Unknown when the generator could not narrow it. Hints drive
// fast-path and method-owner selection; a path chosen from a hint does
// not re-check the runtime tag.
type Hint struct {
	ID ID
}

// Known reports whether the hint names a concrete runtime type.
func (h Hint) Known() bool { return h.ID != Unknown }

// KnownHint builds a concrete hint.
func KnownHint(id ID) Hint { return Hint{ID: id} }

// UnknownHint is the hint assigned to subexpressions the generator cannot
// statically classify.
var UnknownHint = Hint{ID: Unknown}

// FuncFlags records auxiliary properties of a function record that affect
// lowering and assembly but are not part of its Wasm-level signature.
type FuncFlags struct {
	Internal  bool // contributed by the built-in registry, not user source
	Async     bool
	Generator bool
	Variadic  bool
	Constructor bool
}
