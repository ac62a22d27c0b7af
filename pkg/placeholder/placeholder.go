// Package placeholder implements the {{name}} grammar shared by the
// interpolators and the routine validator. It recognizes the exact
// {{name}} and {{namespace:key}} forms; anything else, including
// unbalanced brace sequences, passes through as plain text.
package placeholder

import "regexp"

// tokenRegex matches the exact {{name}} / {{namespace:key}} forms. No
// whitespace is tolerated inside the delimiters.
var tokenRegex = regexp.MustCompile(`\{\{([A-Za-z0-9_.-]+)(?::([^{}\s]+))?\}\}`)

// Token is one parsed {{...}} occurrence.
type Token struct {
	// Raw is the full inner text between the delimiters, e.g.
	// "city" or "sessionStorage:order_id".
	Raw string

	// Name is the part before the first ':' (the whole inner text when
	// there is no namespace separator).
	Name string

	// Key is the part after the first ':', empty for bare tokens.
	Key string
}

// Namespaced reports whether the token uses the namespace:key form.
func (t Token) Namespaced() bool { return t.Key != "" }

// String reconstructs the literal source form of the token.
func (t Token) String() string { return "{{" + t.Raw + "}}" }

// Segment is either a literal text span or a token. Exactly one of the
// two fields is meaningful: Token is nil for text spans.
type Segment struct {
	Text  string
	Token *Token
}

// Extract splits s into its ordered sequence of literal spans and
// placeholder tokens. Concatenating the segments (tokens rendered via
// Token.String) reconstructs s exactly. Pure; no side effects.
func Extract(s string) []Segment {
	matches := tokenRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return []Segment{{Text: s}}
	}

	var segs []Segment
	last := 0
	for _, m := range matches {
		if m[0] > last {
			segs = append(segs, Segment{Text: s[last:m[0]]})
		}
		tok := Token{
			Raw:  s[m[2]:m[3]],
			Name: s[m[2]:m[3]],
		}
		if m[4] >= 0 {
			tok.Raw = s[m[2]:m[3]] + ":" + s[m[4]:m[5]]
			tok.Key = s[m[4]:m[5]]
		}
		segs = append(segs, Segment{Token: &tok})
		last = m[1]
	}
	if last < len(s) {
		segs = append(segs, Segment{Text: s[last:]})
	}
	return segs
}

// Tokens returns just the placeholder tokens of s, in order.
func Tokens(s string) []Token {
	var toks []Token
	for _, seg := range Extract(s) {
		if seg.Token != nil {
			toks = append(toks, *seg.Token)
		}
	}
	return toks
}
