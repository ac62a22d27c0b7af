// Package script gates evaluate_script sources before they reach the
// browser. Sources must be a single self-invoking wrapper so injected
// code cannot leak identifiers into the host page, and must avoid a
// denylist of APIs considered unsafe inside routine scripts.
package script

import (
	"fmt"
	"regexp"
	"strings"
)

// iifeRegex accepts the self-invoking wrapper forms:
// (function () { ... })(), (() => { ... })(), and their async variants,
// with an optional trailing semicolon.
var iifeRegex = regexp.MustCompile(`(?s)^\s*\(\s*(?:async\s+)?(?:function\s*\([^)]*\)|\([^)]*\)\s*=>)\s*\{.*\}\s*\)\s*\(\s*\)\s*;?\s*$`)

// maxLineLength is the soft readability bound for script body lines.
const maxLineLength = 200

// Pattern is one denylist entry: a human-readable label plus the token
// pattern that trips it. Patterns use word boundaries so e.g. a variable
// named "prefetch" does not trip the fetch block.
type Pattern struct {
	Label string
	Regex *regexp.Regexp
}

// DefaultDenylist blocks direct network calls, string evaluation, page
// observers, and window control from routine scripts.
func DefaultDenylist() []Pattern {
	return []Pattern{
		{"eval", regexp.MustCompile(`\beval\s*\(`)},
		{"Function constructor", regexp.MustCompile(`\bnew\s+Function\b`)},
		{"fetch", regexp.MustCompile(`\bfetch\s*\(`)},
		{"XMLHttpRequest", regexp.MustCompile(`\bXMLHttpRequest\b`)},
		{"WebSocket", regexp.MustCompile(`\bWebSocket\b`)},
		{"sendBeacon", regexp.MustCompile(`\bsendBeacon\s*\(`)},
		{"addEventListener", regexp.MustCompile(`\baddEventListener\s*\(`)},
		{"MutationObserver", regexp.MustCompile(`\bMutationObserver\b`)},
		{"IntersectionObserver", regexp.MustCompile(`\bIntersectionObserver\b`)},
		{"window.close", regexp.MustCompile(`\bwindow\.close\s*\(`)},
	}
}

// Result aggregates every finding for one source. Errors reject the
// script; Warnings are advisory only.
type Result struct {
	Errors   []string
	Warnings []string
}

// OK reports whether the source may be executed.
func (r *Result) OK() bool { return len(r.Errors) == 0 }

// Validate checks source against the structural rule and the denylist.
// All violations are collected, not just the first.
func Validate(source string, denylist []Pattern) *Result {
	res := &Result{}

	if strings.TrimSpace(source) == "" {
		res.Errors = append(res.Errors, "script source cannot be empty")
		return res
	}

	if !iifeRegex.MatchString(source) {
		res.Errors = append(res.Errors, "script must be a single self-invoking function (IIFE), e.g. (function () { ... })() or (() => { ... })()")
	}

	for _, p := range denylist {
		if p.Regex.MatchString(source) {
			res.Errors = append(res.Errors, fmt.Sprintf("blocked pattern: %s", p.Label))
		}
	}

	for _, line := range strings.Split(source, "\n") {
		if len(line) > maxLineLength {
			res.Warnings = append(res.Warnings, fmt.Sprintf("line exceeds %d characters; consider breaking it up", maxLineLength))
		}
	}

	return res
}
