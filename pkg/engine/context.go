package engine

import (
	"time"

	"github.com/tessworth/routinely/pkg/routine"
)

// OperationStatus is the per-operation state.
type OperationStatus int

const (
	OpPending OperationStatus = iota
	OpRunning
	OpSucceeded
	OpFailed
	OpAborted
)

func (s OperationStatus) String() string {
	switch s {
	case OpPending:
		return "pending"
	case OpRunning:
		return "running"
	case OpSucceeded:
		return "succeeded"
	case OpFailed:
		return "failed"
	case OpAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// RunStatus is the state of the routine run as a whole.
type RunStatus int

const (
	RunRunning RunStatus = iota
	RunCompleted
	RunFailed
)

func (s RunStatus) String() string {
	switch s {
	case RunRunning:
		return "running"
	case RunCompleted:
		return "completed"
	case RunFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TraceEntry records one executed operation.
type TraceEntry struct {
	Index      int                  `json:"index"`
	Kind       routine.OperationKind `json:"kind"`
	Status     OperationStatus      `json:"-"`
	StatusName string               `json:"status"`
	Error      string               `json:"error,omitempty"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
}

// RunReport is what a run hands back to the caller: its id, terminal
// status, and the trace up to the point execution stopped.
type RunReport struct {
	RunID  string       `json:"run_id"`
	Status RunStatus    `json:"-"`
	Trace  []TraceEntry `json:"trace"`
}

// ExecutionContext is the per-run mutable state. Parameter values are
// fixed at creation; produced values and the trace grow monotonically as
// operations execute. Owned exclusively by one run — never share one
// across concurrent runs.
type ExecutionContext struct {
	RunID  string
	Values map[string]any
	Types  routine.TypeMap

	produced map[string]any
	trace    []TraceEntry
}

// NewExecutionContext creates the context for one run of rt.
func NewExecutionContext(runID string, rt *routine.Routine, values map[string]any) *ExecutionContext {
	if values == nil {
		values = make(map[string]any)
	}
	return &ExecutionContext{
		RunID:    runID,
		Values:   values,
		Types:    rt.TypeMap(),
		produced: make(map[string]any),
	}
}

// RecordProduced stores a value under key, visible to every subsequent
// operation in the same run. Recording an existing key overwrites it.
func (ec *ExecutionContext) RecordProduced(key string, value any) {
	ec.produced[key] = value
}

// Produced exposes the produced-value map for interpolation. The engine
// is the only mutator.
func (ec *ExecutionContext) Produced() map[string]any {
	return ec.produced
}

// AppendTrace appends one entry to the run trace.
func (ec *ExecutionContext) AppendTrace(e TraceEntry) {
	e.StatusName = e.Status.String()
	ec.trace = append(ec.trace, e)
}

// Trace returns the trace so far.
func (ec *ExecutionContext) Trace() []TraceEntry {
	return ec.trace
}
