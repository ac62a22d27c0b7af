package interp

import (
	"fmt"

	"github.com/tessworth/routinely/pkg/routine"
)

// CoercionError means a referenced parameter's value could not be
// converted to its declared type. It aborts interpolation of the current
// field and, through the executor, the run.
type CoercionError struct {
	Name  string
	Type  routine.ParameterType
	Value any
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("cannot coerce value %v for parameter %q to %s", e.Value, e.Name, e.Type)
}

// MissingValueError means a referenced declared parameter has no value in
// the run context. Leaving a literal {{name}} in a URL or script would
// produce a confusing failure far from its cause, so this is surfaced
// instead of skipped.
type MissingValueError struct {
	Name string
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("no value supplied for parameter %q", e.Name)
}
