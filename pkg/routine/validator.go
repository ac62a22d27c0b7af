package routine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tessworth/routinely/pkg/placeholder"
)

// UndefinedRef is one reference to a placeholder that names neither a
// declared parameter, a builtin, nor a value produced by an earlier
// operation.
type UndefinedRef struct {
	Name    string
	OpIndex int
}

// ValidationReport aggregates every coverage defect found in a routine.
// The pass is value-independent and runs once at acceptance time; a
// routine with a non-empty report is never handed to the executor.
type ValidationReport struct {
	// Unused lists declared parameters no operation references.
	Unused []string

	// Undefined lists placeholder references that resolve to nothing.
	Undefined []UndefinedRef
}

// Empty reports whether the routine passed validation.
func (r *ValidationReport) Empty() bool {
	return len(r.Unused) == 0 && len(r.Undefined) == 0
}

// Err returns nil for an empty report, else a *ValidationError wrapping it.
func (r *ValidationReport) Err() error {
	if r.Empty() {
		return nil
	}
	return &ValidationError{Report: r}
}

// ValidationError rejects a routine whose report is non-empty.
type ValidationError struct {
	Report *ValidationReport
}

func (e *ValidationError) Error() string {
	var parts []string
	for _, name := range e.Report.Unused {
		parts = append(parts, fmt.Sprintf("unused parameter %q", name))
	}
	for _, ref := range e.Report.Undefined {
		parts = append(parts, fmt.Sprintf("undefined placeholder %q in operation %d", ref.Name, ref.OpIndex))
	}
	return "routine validation failed: " + strings.Join(parts, "; ")
}

// Validate runs the bidirectional coverage check: every declared
// parameter must be referenced by some operation, and every non-builtin
// placeholder must name a declared parameter or a value produced by an
// earlier operation. All findings are aggregated so an author sees every
// defect in one pass.
func Validate(rt *Routine, namespaces, builtins []string) *ValidationReport {
	declared := make(map[string]bool, len(rt.Parameters))
	for _, p := range rt.Parameters {
		declared[p.Name] = true
	}

	report := &ValidationReport{}
	referenced := make(map[string]bool)
	produced := make(map[string]bool)

	nsSet := placeholder.NewSet(namespaces)
	biSet := placeholder.NewSet(builtins)

	for i := range rt.Operations {
		op := &rt.Operations[i]

		classifier := placeholder.Classifier{
			IsParameter: func(name string) bool {
				return declared[name] || produced[name]
			},
			Namespaces: nsSet,
			Builtins:   biSet,
		}

		seen := make(map[string]bool) // dedupe undefined refs per op
		check := func(s string) {
			for _, tok := range placeholder.Tokens(s) {
				switch classifier.Classify(tok) {
				case placeholder.KindParameter:
					if declared[tok.Name] {
						referenced[tok.Name] = true
					}
				case placeholder.KindUnrecognized:
					if !seen[tok.Raw] {
						seen[tok.Raw] = true
						report.Undefined = append(report.Undefined, UndefinedRef{Name: tok.Raw, OpIndex: i})
					}
				}
			}
		}

		for _, field := range op.stringFields() {
			check(field)
		}
		walkStrings(op.Headers, check)
		walkStrings(op.Body, check)

		if op.Produce != "" {
			produced[op.Produce] = true
		}
	}

	for _, p := range rt.Parameters {
		if !referenced[p.Name] {
			report.Unused = append(report.Unused, p.Name)
		}
	}
	sort.Strings(report.Unused)

	return report
}

// walkStrings visits every string leaf of a structured value.
func walkStrings(v any, visit func(string)) {
	switch val := v.(type) {
	case string:
		visit(val)
	case map[string]any:
		for _, item := range val {
			walkStrings(item, visit)
		}
	case []any:
		for _, item := range val {
			walkStrings(item, visit)
		}
	}
}
