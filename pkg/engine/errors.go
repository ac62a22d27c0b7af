package engine

import (
	"fmt"
	"strings"

	"github.com/tessworth/routinely/pkg/routine"
)

// CollaboratorError wraps a browser- or HTTP-layer failure. The original
// detail is preserved for the trace entry of the failing operation.
type CollaboratorError struct {
	Kind routine.OperationKind
	Err  error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s operation failed: %v", e.Kind, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// ScriptValidationError rejects an evaluate_script source before any
// browser call is made.
type ScriptValidationError struct {
	Violations []string
}

func (e *ScriptValidationError) Error() string {
	return "script validation failed: " + strings.Join(e.Violations, "; ")
}
