// Package engine sequences routine operations: it resolves each
// operation's placeholders against the run context, dispatches to the
// browser or HTTP collaborator, and folds produced values back in for
// later operations. Execution is strictly sequential within one run;
// independent runs may proceed concurrently on independent contexts.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tessworth/routinely/pkg/browser"
	"github.com/tessworth/routinely/pkg/httpclient"
	"github.com/tessworth/routinely/pkg/interp"
	"github.com/tessworth/routinely/pkg/placeholder"
	"github.com/tessworth/routinely/pkg/routine"
	"github.com/tessworth/routinely/pkg/script"
	"github.com/tessworth/routinely/pkg/types"
)

// DefaultScriptTimeout bounds evaluate_script when an operation declares
// no timeout of its own.
const DefaultScriptTimeout = 10 * time.Second

// DefaultNamespaces are the builtin placeholder namespaces the host
// recognizes by default. They classify {{namespace:key}} tokens only;
// the interpolators always pass builtins through verbatim.
func DefaultNamespaces() []string {
	return []string{"sessionStorage", "localStorage", "cookie"}
}

// DefaultBuiltins are the bare builtin placeholder names.
func DefaultBuiltins() []string {
	return []string{"uuid", "timestamp"}
}

// Options configures an Executor.
type Options struct {
	// Namespaces and Builtins drive placeholder classification. Nil
	// means the defaults.
	Namespaces []string
	Builtins   []string

	// Denylist overrides the script safety denylist. Nil means the
	// default set.
	Denylist []script.Pattern

	// ScriptTimeout is the evaluate_script default when the operation
	// declares none.
	ScriptTimeout time.Duration
}

// Executor runs accepted routines against its collaborators.
type Executor struct {
	browser browser.Surface
	http    httpclient.Client
	logger  types.Logger

	namespaces map[string]bool
	builtins   map[string]bool
	denylist   []script.Pattern
	timeout    time.Duration
}

// New builds an Executor. The routine handed to Execute must already
// have passed routine.Validate; the executor assumes coverage holds.
func New(b browser.Surface, h httpclient.Client, logger types.Logger, opts Options) *Executor {
	ns := opts.Namespaces
	if ns == nil {
		ns = DefaultNamespaces()
	}
	bi := opts.Builtins
	if bi == nil {
		bi = DefaultBuiltins()
	}
	dl := opts.Denylist
	if dl == nil {
		dl = script.DefaultDenylist()
	}
	timeout := opts.ScriptTimeout
	if timeout == 0 {
		timeout = DefaultScriptTimeout
	}
	return &Executor{
		browser:    b,
		http:       h,
		logger:     logger,
		namespaces: placeholder.NewSet(ns),
		builtins:   placeholder.NewSet(bi),
		denylist:   dl,
		timeout:    timeout,
	}
}

// Execute runs every operation of rt in declaration order against a
// fresh ExecutionContext. The first failure marks the operation and the
// run Failed and stops; the partial trace is always returned so the
// caller sees exactly how far execution progressed. A single attempt per
// operation; retries belong to callers wrapping the whole run.
func (e *Executor) Execute(ctx context.Context, rt *routine.Routine, values map[string]any) (*RunReport, error) {
	runID := uuid.New().String()
	ec := NewExecutionContext(runID, rt, values)

	logger := e.logger.With().Str("run_id", runID).Str("routine", rt.Name).Logger()
	logger.Info().Int("operations", len(rt.Operations)).Msg("Starting routine run")

	for i := range rt.Operations {
		op := &rt.Operations[i]

		// Cancellation is checked between operations only; an in-flight
		// collaborator call follows its own timeout contract.
		if err := ctx.Err(); err != nil {
			ec.AppendTrace(TraceEntry{Index: i, Kind: op.Kind, Status: OpAborted, Error: err.Error(), StartedAt: time.Now(), FinishedAt: time.Now()})
			return e.report(ec, RunFailed), fmt.Errorf("run cancelled before operation %d: %w", i, err)
		}

		opLogger := logger.With().Int("op_index", i).Str("op_type", string(op.Kind)).Logger()
		opLogger.Info().Msg("Running operation")

		entry := TraceEntry{Index: i, Kind: op.Kind, Status: OpRunning, StartedAt: time.Now()}
		produced, err := e.executeOperation(ctx, ec, op, opLogger)
		entry.FinishedAt = time.Now()

		if err != nil {
			entry.Status = OpFailed
			entry.Error = err.Error()
			ec.AppendTrace(entry)
			opLogger.Error().Err(err).Msg("Operation failed; aborting run")
			return e.report(ec, RunFailed), fmt.Errorf("operation %d (%s): %w", i, op.Kind, err)
		}

		entry.Status = OpSucceeded
		ec.AppendTrace(entry)

		if op.Produce != "" && produced != nil {
			opLogger.Debug().Str("produce", op.Produce).Msg("Storing produced value")
			ec.RecordProduced(op.Produce, produced)
		}
	}

	logger.Info().Msg("Routine run completed")
	return e.report(ec, RunCompleted), nil
}

func (e *Executor) report(ec *ExecutionContext, status RunStatus) *RunReport {
	return &RunReport{RunID: ec.RunID, Status: status, Trace: ec.Trace()}
}

func (e *Executor) resolver(ec *ExecutionContext) *interp.Resolver {
	return interp.NewResolver(ec.Values, ec.Types, ec.Produced(), e.namespaces, e.builtins)
}

// executeOperation interpolates one operation's fields and dispatches it.
// The returned value, when non-nil, is stored under the operation's
// Produce name.
func (e *Executor) executeOperation(ctx context.Context, ec *ExecutionContext, op *routine.Operation, logger types.Logger) (any, error) {
	res := e.resolver(ec)

	collab := func(err error) error {
		if err == nil {
			return nil
		}
		return &CollaboratorError{Kind: op.Kind, Err: err}
	}

	switch op.Kind {
	case routine.OpNavigate:
		url, err := res.String(op.URL)
		if err != nil {
			return nil, err
		}
		return nil, collab(e.browser.Navigate(ctx, url))

	case routine.OpClick:
		selector, err := res.String(op.Selector)
		if err != nil {
			return nil, err
		}
		return nil, collab(e.browser.Click(ctx, selector))

	case routine.OpType:
		selector, err := res.String(op.Selector)
		if err != nil {
			return nil, err
		}
		text, err := res.String(op.Text)
		if err != nil {
			return nil, err
		}
		return nil, collab(e.browser.Type(ctx, selector, text))

	case routine.OpScroll:
		selector, err := res.String(op.Selector)
		if err != nil {
			return nil, err
		}
		return nil, collab(e.browser.Scroll(ctx, selector))

	case routine.OpExtractHTML:
		selector, err := res.String(op.Selector)
		if err != nil {
			return nil, err
		}
		html, err := e.browser.ExtractHTML(ctx, selector)
		if err != nil {
			return nil, collab(err)
		}
		return html, nil

	case routine.OpFetch:
		return e.executeFetch(ctx, res, op, false)

	case routine.OpDownload:
		return e.executeFetch(ctx, res, op, true)

	case routine.OpEvaluateScript:
		return e.executeScript(ctx, res, op, logger)
	}

	return nil, fmt.Errorf("unknown operation kind %q", op.Kind)
}

func (e *Executor) executeFetch(ctx context.Context, res *interp.Resolver, op *routine.Operation, download bool) (any, error) {
	url, err := res.String(op.URL)
	if err != nil {
		return nil, err
	}

	headers, body, err := e.resolveHTTPFields(res, op)
	if err != nil {
		return nil, err
	}

	if download {
		filename, err := res.String(op.Filename)
		if err != nil {
			return nil, err
		}
		path, err := e.http.Download(ctx, url, headers, body, filename)
		if err != nil {
			return nil, &CollaboratorError{Kind: op.Kind, Err: err}
		}
		return path, nil
	}

	method, err := res.String(op.Method)
	if err != nil {
		return nil, err
	}
	resp, err := e.http.Send(ctx, method, url, headers, body)
	if err != nil {
		return nil, &CollaboratorError{Kind: op.Kind, Err: err}
	}
	return map[string]any{
		"status_code": resp.StatusCode,
		"headers":     resp.Headers,
		"body":        resp.Body,
	}, nil
}

// resolveHTTPFields interpolates the structured header and body trees.
// Header values are rendered to text after interpolation since HTTP
// headers have no typed destination.
func (e *Executor) resolveHTTPFields(res *interp.Resolver, op *routine.Operation) (map[string]string, any, error) {
	var headers map[string]string
	if op.Headers != nil {
		resolved, err := res.Tree(op.Headers)
		if err != nil {
			return nil, nil, err
		}
		headerTree, ok := resolved.(map[string]any)
		if !ok {
			return nil, nil, fmt.Errorf("resolved headers are not a map, got %T", resolved)
		}
		headers = make(map[string]string, len(headerTree))
		for k, v := range headerTree {
			headers[k] = interp.Stringify(v)
		}
	}

	var body any
	if op.Body != nil {
		resolved, err := res.Tree(op.Body)
		if err != nil {
			return nil, nil, err
		}
		body = resolved
	}
	return headers, body, nil
}

func (e *Executor) executeScript(ctx context.Context, res *interp.Resolver, op *routine.Operation, logger types.Logger) (any, error) {
	source, err := res.String(op.Script)
	if err != nil {
		return nil, err
	}

	result := script.Validate(source, e.denylist)
	for _, w := range result.Warnings {
		logger.Warn().Str("warning", w).Msg("Script readability warning")
	}
	if !result.OK() {
		return nil, &ScriptValidationError{Violations: result.Errors}
	}

	timeout := e.timeout
	if op.Timeout != "" {
		parsed, parseErr := time.ParseDuration(op.Timeout)
		if parseErr != nil {
			logger.Warn().Err(parseErr).Str("timeout", op.Timeout).Msg("Failed to parse script timeout, using default")
		} else {
			timeout = parsed
		}
	}

	storageKey := ""
	if op.Produce != "" {
		storageKey = "routinely:" + op.Produce
	}
	wrapped := script.WrapEvaluate(source, storageKey)

	raw, err := e.browser.EvaluateScript(ctx, wrapped, timeout)
	if err != nil {
		return nil, &CollaboratorError{Kind: op.Kind, Err: err}
	}

	var env script.Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, &CollaboratorError{Kind: op.Kind, Err: fmt.Errorf("decoding script result envelope: %w", err)}
	}

	for _, line := range env.ConsoleLogs {
		logger.Debug().Str("console_line", line.Message).Msg("Script console output")
	}
	if env.ExecutionError != nil {
		return nil, &CollaboratorError{Kind: op.Kind, Err: fmt.Errorf("script execution error: %s", *env.ExecutionError)}
	}
	if env.StorageError != nil {
		logger.Warn().Str("storage_error", *env.StorageError).Msg("Script result storage failed")
	}

	if op.Produce == "" || len(env.Result) == 0 {
		return nil, nil
	}
	var value any
	if err := json.Unmarshal(env.Result, &value); err != nil {
		return nil, &CollaboratorError{Kind: op.Kind, Err: fmt.Errorf("decoding script result value: %w", err)}
	}
	return value, nil
}
