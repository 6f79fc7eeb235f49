package codegen

import "github.com/glint-lang/glintc/internal/types"

// methodOwner names the receiver type each built-in method name is
// looked up under in internal/builtins when the receiver's static hint
// could not be narrowed. "length", "get" and "set" are registered for two
// receiver types (String and Array; Array and Object); the table picks
// one owner for each, so a hintless Array receiver resolves "length" to
// String#length and "get"/"set" to Object's. A user-defined Object
// property sharing one of these names is not reachable through
// method-call syntax, a documented Non-goal.
var methodOwner = map[string]types.ID{
	"toString":     types.Number,
	"toFixed":      types.Number,
	"length":       types.String, // also registered for Array; see resolveMethodOwner
	"charAt":       types.String,
	"charCodeAt":   types.String,
	"slice":        types.String,
	"concat":       types.String,
	"indexOf":      types.String,
	"toUpperCase":  types.String,
	"toLowerCase":  types.String,
	"push":         types.Array,
	"pop":          types.Array,
	"get":          types.Object,
	"set":          types.Object,
}

// resolveMethodOwner prefers a tracked static hint (set at declaration
// and at every assignment or update, see funcGen.setHint) and only falls back
// to the fixed name-to-owner table — which guesses String for the
// ambiguous "length" — when no hint survived to this call site.
func resolveMethodOwner(hint types.Hint, name string) types.ID {
	if hint.Known() {
		return hint.ID
	}
	return methodOwner[name]
}

// resultTag names the runtime type tag a built-in method's result is
// boxed with; built-in Method signatures carry raw Wasm types with no
// tag of their own, so the generator must know this out of band.
var resultTag = map[string]types.ID{
	"Number#toString":    types.String,
	"Number#toFixed":     types.String,
	"Math#floor":         types.Number,
	"Math#ceil":          types.Number,
	"Math#abs":           types.Number,
	"Math#sqrt":          types.Number,
	"Math#max":           types.Number,
	"Math#min":           types.Number,
	"Math#pow":           types.Number,
	"String#length":      types.Number,
	"String#charAt":      types.String,
	"String#charCodeAt":  types.Number,
	"String#slice":       types.String,
	"String#concat":      types.String,
	"String#indexOf":     types.Number,
	"String#toUpperCase": types.String,
	"String#toLowerCase": types.String,
	"Array#length":       types.Number,
	"Array#get":          types.Number,
	"Array#push":         types.Number,
	"Array#pop":          types.Number,
	"Object#get":         types.Number,
}
