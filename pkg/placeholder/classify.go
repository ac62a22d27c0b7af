package placeholder

// Kind classifies a token. Classification is total and exclusive: every
// token gets exactly one kind.
type Kind int

const (
	// KindParameter means the token names a declared routine parameter
	// (or a value produced earlier in the same run).
	KindParameter Kind = iota

	// KindBuiltin means the token has a recognized builtin/dynamic form.
	// Builtins are resolved by a downstream stage (possibly inside
	// injected browser-side script) and must pass through interpolation
	// verbatim.
	KindBuiltin

	// KindUnrecognized means the token matches neither; the validator
	// reports these before execution.
	KindUnrecognized
)

// Classifier decides the kind of a token. The namespace and builtin sets
// come from the host system; this package does not invent them.
type Classifier struct {
	// IsParameter reports whether a bare name is resolvable as a
	// parameter or produced value in the current scope.
	IsParameter func(name string) bool

	// Namespaces holds the recognized builtin namespaces for
	// {{namespace:key}} tokens, e.g. "sessionStorage".
	Namespaces map[string]bool

	// Builtins holds recognized bare builtin names, e.g. "uuid".
	Builtins map[string]bool
}

// Classify returns the kind of t. Builtin classification wins for
// namespaced tokens; bare tokens check parameters before bare builtins so
// a declared parameter can never be shadowed by a builtin name.
func (c Classifier) Classify(t Token) Kind {
	if t.Namespaced() {
		if c.Namespaces[t.Name] {
			return KindBuiltin
		}
		return KindUnrecognized
	}
	if c.IsParameter != nil && c.IsParameter(t.Name) {
		return KindParameter
	}
	if c.Builtins[t.Name] {
		return KindBuiltin
	}
	return KindUnrecognized
}

// NewSet builds a lookup set from a name list.
func NewSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
