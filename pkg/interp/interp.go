// Package interp resolves {{name}} placeholders in routine operation
// fields. String-context fields always interpolate to text; structured
// fields (headers, bodies) preserve the declared parameter type when a
// leaf is exactly one placeholder. Builtin and unrecognized tokens pass
// through verbatim in both contexts; they belong to a downstream stage.
package interp

import (
	"strings"

	"github.com/tessworth/routinely/pkg/placeholder"
	"github.com/tessworth/routinely/pkg/routine"
)

// Resolver carries the per-run state interpolation reads: supplied
// parameter values, the declared type map, values produced by earlier
// operations, and the builtin classification sets.
type Resolver struct {
	Values     map[string]any
	Types      routine.TypeMap
	Produced   map[string]any
	Classifier placeholder.Classifier
}

// NewResolver builds a Resolver whose classifier treats declared
// parameters and produced values as resolvable names.
func NewResolver(values map[string]any, types routine.TypeMap, produced map[string]any, namespaces, builtins map[string]bool) *Resolver {
	r := &Resolver{
		Values:   values,
		Types:    types,
		Produced: produced,
	}
	r.Classifier = placeholder.Classifier{
		IsParameter: func(name string) bool {
			if _, ok := r.Types[name]; ok {
				return true
			}
			_, ok := r.Produced[name]
			return ok
		},
		Namespaces: namespaces,
		Builtins:   builtins,
	}
	return r
}

// lookup resolves a bare name. Declared parameters win over produced
// values of the same name, matching parameter-first lookup order.
func (r *Resolver) lookup(name string) (any, error) {
	if _, declared := r.Types[name]; declared {
		v, ok := r.Values[name]
		if !ok {
			return nil, &MissingValueError{Name: name}
		}
		return v, nil
	}
	if v, ok := r.Produced[name]; ok {
		return v, nil
	}
	return nil, &MissingValueError{Name: name}
}

// String interpolates a string-context field (URL, selector, literal
// text, script source, filename). The result is always text; parameter
// values are rendered in their textual form regardless of declared type.
// Builtin and unrecognized tokens are reproduced verbatim.
func (r *Resolver) String(text string) (string, error) {
	segs := placeholder.Extract(text)

	var b strings.Builder
	for _, seg := range segs {
		if seg.Token == nil {
			b.WriteString(seg.Text)
			continue
		}
		tok := *seg.Token
		if r.Classifier.Classify(tok) != placeholder.KindParameter {
			b.WriteString(tok.String())
			continue
		}
		v, err := r.lookup(tok.Name)
		if err != nil {
			return "", err
		}
		b.WriteString(Stringify(v))
	}
	return b.String(), nil
}

// Tree interpolates a structured-context value, recursing into maps
// (values only, never keys) and sequences. A string leaf that is exactly
// one parameter placeholder is replaced by the coerced typed value; any
// other leaf containing placeholders stays a string. Non-string scalars
// pass through untouched.
func (r *Resolver) Tree(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return r.leaf(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for key, item := range val {
			resolved, err := r.Tree(item)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			resolved, err := r.Tree(item)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

// leaf resolves one string leaf of a structured tree.
func (r *Resolver) leaf(s string) (any, error) {
	segs := placeholder.Extract(s)

	// Whole-value case: the leaf is exactly one parameter placeholder
	// with no surrounding text. This is how a JSON body field becomes a
	// real integer or boolean instead of its stringified form.
	if len(segs) == 1 && segs[0].Token != nil {
		tok := *segs[0].Token
		if r.Classifier.Classify(tok) == placeholder.KindParameter {
			v, err := r.lookup(tok.Name)
			if err != nil {
				return nil, err
			}
			if typ, declared := r.Types[tok.Name]; declared {
				return Coerce(tok.Name, v, typ)
			}
			// Produced values carry their own type.
			return v, nil
		}
		return s, nil
	}

	return r.String(s)
}
