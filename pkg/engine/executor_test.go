package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessworth/routinely/pkg/engine"
	"github.com/tessworth/routinely/pkg/httpclient"
	"github.com/tessworth/routinely/pkg/interp"
	"github.com/tessworth/routinely/pkg/log"
	"github.com/tessworth/routinely/pkg/routine"
	"github.com/tessworth/routinely/pkg/types"
)

func testLogger() types.Logger {
	return log.NewZerologAdapter(zerolog.Nop())
}

// fakeBrowser records calls and replays canned results.
type fakeBrowser struct {
	calls []string

	navigateErr error
	htmlResult  string
	evalResult  string
	evalErr     error
}

func (f *fakeBrowser) Navigate(_ context.Context, url string) error {
	f.calls = append(f.calls, "navigate:"+url)
	return f.navigateErr
}

func (f *fakeBrowser) Click(_ context.Context, selector string) error {
	f.calls = append(f.calls, "click:"+selector)
	return nil
}

func (f *fakeBrowser) Type(_ context.Context, selector, text string) error {
	f.calls = append(f.calls, "type:"+selector+":"+text)
	return nil
}

func (f *fakeBrowser) Scroll(_ context.Context, selector string) error {
	f.calls = append(f.calls, "scroll:"+selector)
	return nil
}

func (f *fakeBrowser) ExtractHTML(_ context.Context, selector string) (string, error) {
	f.calls = append(f.calls, "extract:"+selector)
	return f.htmlResult, nil
}

func (f *fakeBrowser) EvaluateScript(_ context.Context, source string, _ time.Duration) (string, error) {
	f.calls = append(f.calls, "evaluate")
	if f.evalErr != nil {
		return "", f.evalErr
	}
	if f.evalResult != "" {
		return f.evalResult, nil
	}
	return `{"result": null, "console_logs": [], "storage_error": null, "execution_error": null}`, nil
}

// fakeHTTP records the last request and replays a canned response.
type fakeHTTP struct {
	method  string
	url     string
	headers map[string]string
	body    any

	response *httpclient.Response
	err      error
}

func (f *fakeHTTP) Send(_ context.Context, method, url string, headers map[string]string, body any) (*httpclient.Response, error) {
	f.method, f.url, f.headers, f.body = method, url, headers, body
	if f.err != nil {
		return nil, f.err
	}
	if f.response != nil {
		return f.response, nil
	}
	return &httpclient.Response{StatusCode: 200}, nil
}

func (f *fakeHTTP) Download(_ context.Context, url string, headers map[string]string, body any, filename string) (string, error) {
	f.url, f.headers, f.body = url, headers, body
	if f.err != nil {
		return "", f.err
	}
	return filename, nil
}

func newExecutor(b *fakeBrowser, h *fakeHTTP) *engine.Executor {
	return engine.New(b, h, testLogger(), engine.Options{})
}

func TestExecuteFetchBodyKeepsTypes(t *testing.T) {
	// A whole-value placeholder in a JSON body resolves to a real number.
	rt := &routine.Routine{
		Name: "checkout",
		Parameters: []routine.Parameter{
			{Name: "amount", Type: routine.TypeNumber},
		},
		Operations: []routine.Operation{
			{Kind: routine.OpFetch, Method: "POST", URL: "https://shop.example/api/total",
				Headers: map[string]any{"X-Amount": "{{amount}}"},
				Body:    map[string]any{"total": "{{amount}}"}},
		},
	}

	h := &fakeHTTP{}
	report, err := newExecutor(&fakeBrowser{}, h).Execute(context.Background(), rt, map[string]any{"amount": "19.99"})
	require.NoError(t, err)
	assert.Equal(t, engine.RunCompleted, report.Status)

	body := h.body.(map[string]any)
	assert.Equal(t, 19.99, body["total"], "body field must be numeric, not string")
	assert.Equal(t, "19.99", h.headers["X-Amount"], "header values are rendered to text")
	assert.Equal(t, "POST", h.method)
}

func TestExecuteSequenceAndTrace(t *testing.T) {
	rt := &routine.Routine{
		Name: "walk",
		Parameters: []routine.Parameter{
			{Name: "query", Type: routine.TypeString},
		},
		Operations: []routine.Operation{
			{Kind: routine.OpNavigate, URL: "https://example.com/?q={{query}}"},
			{Kind: routine.OpClick, Selector: "#submit"},
			{Kind: routine.OpType, Selector: "#input", Text: "{{query}}"},
			{Kind: routine.OpScroll, Selector: "#results"},
		},
	}

	b := &fakeBrowser{}
	report, err := newExecutor(b, &fakeHTTP{}).Execute(context.Background(), rt, map[string]any{"query": "shoes"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"navigate:https://example.com/?q=shoes",
		"click:#submit",
		"type:#input:shoes",
		"scroll:#results",
	}, b.calls)

	require.Len(t, report.Trace, 4)
	for i, entry := range report.Trace {
		assert.Equal(t, i, entry.Index)
		assert.Equal(t, engine.OpSucceeded, entry.Status)
	}
}

func TestExecuteFailFastOnCollaboratorError(t *testing.T) {
	// First operation fails: run is Failed, trace has exactly one entry,
	// no further operations are attempted.
	rt := &routine.Routine{
		Name: "failing",
		Operations: []routine.Operation{
			{Kind: routine.OpNavigate, URL: "https://example.com/"},
			{Kind: routine.OpClick, Selector: "#never"},
		},
	}

	b := &fakeBrowser{navigateErr: errors.New("net::ERR_CONNECTION_REFUSED")}
	report, err := newExecutor(b, &fakeHTTP{}).Execute(context.Background(), rt, nil)

	require.Error(t, err)
	var cerr *engine.CollaboratorError
	assert.ErrorAs(t, err, &cerr)

	assert.Equal(t, engine.RunFailed, report.Status)
	require.Len(t, report.Trace, 1)
	assert.Equal(t, engine.OpFailed, report.Trace[0].Status)
	assert.Contains(t, report.Trace[0].Error, "ERR_CONNECTION_REFUSED")
	assert.Equal(t, []string{"navigate:https://example.com/"}, b.calls)
}

func TestExecuteScriptValidationRejectsBeforeBrowserCall(t *testing.T) {
	rt := &routine.Routine{
		Name: "unsafe",
		Operations: []routine.Operation{
			{Kind: routine.OpNavigate, URL: "https://example.com/"},
			{Kind: routine.OpEvaluateScript, Script: "(function() { fetch('/exfil'); })()"},
		},
	}

	b := &fakeBrowser{}
	report, err := newExecutor(b, &fakeHTTP{}).Execute(context.Background(), rt, nil)

	require.Error(t, err)
	var serr *engine.ScriptValidationError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Violations[0], "fetch")

	// The navigate ran; the script never reached the browser.
	assert.Equal(t, []string{"navigate:https://example.com/"}, b.calls)
	require.Len(t, report.Trace, 2)
	assert.Equal(t, engine.OpSucceeded, report.Trace[0].Status)
	assert.Equal(t, engine.OpFailed, report.Trace[1].Status)
}

func TestExecuteScriptValidationAsFirstStep(t *testing.T) {
	rt := &routine.Routine{
		Name: "unsafe-first",
		Operations: []routine.Operation{
			{Kind: routine.OpEvaluateScript, Script: "document.title"},
		},
	}

	b := &fakeBrowser{}
	report, err := newExecutor(b, &fakeHTTP{}).Execute(context.Background(), rt, nil)

	require.Error(t, err)
	var serr *engine.ScriptValidationError
	require.ErrorAs(t, err, &serr)
	assert.Empty(t, b.calls, "no browser call may precede script validation")

	require.Len(t, report.Trace, 1)
	assert.Equal(t, engine.OpFailed, report.Trace[0].Status)
}

func TestExecuteScriptProducesValueForLaterOperations(t *testing.T) {
	rt := &routine.Routine{
		Name: "produce-consume",
		Operations: []routine.Operation{
			{Kind: routine.OpEvaluateScript, Script: "(() => { return 1234; })()", Produce: "order_id"},
			{Kind: routine.OpNavigate, URL: "https://example.com/orders/{{order_id}}"},
			{Kind: routine.OpFetch, Method: "POST", URL: "https://example.com/api",
				Body: map[string]any{"id": "{{order_id}}"}},
		},
	}

	b := &fakeBrowser{evalResult: `{"result": 1234, "console_logs": [], "storage_error": null, "execution_error": null}`}
	h := &fakeHTTP{}
	report, err := newExecutor(b, h).Execute(context.Background(), rt, nil)
	require.NoError(t, err)
	assert.Equal(t, engine.RunCompleted, report.Status)

	assert.Contains(t, b.calls, "navigate:https://example.com/orders/1234")
	// Whole-value references to produced values keep their runtime type.
	assert.Equal(t, float64(1234), h.body.(map[string]any)["id"])
}

func TestExecuteScriptExecutionErrorFailsRun(t *testing.T) {
	rt := &routine.Routine{
		Name: "throws",
		Operations: []routine.Operation{
			{Kind: routine.OpEvaluateScript, Script: "(() => { throw new Error('boom'); })()"},
		},
	}

	b := &fakeBrowser{evalResult: `{"result": null, "console_logs": [], "storage_error": null, "execution_error": "Error: boom"}`}
	report, err := newExecutor(b, &fakeHTTP{}).Execute(context.Background(), rt, nil)

	require.Error(t, err)
	var cerr *engine.CollaboratorError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, engine.RunFailed, report.Status)
}

func TestExecuteExtractHTMLProducesValue(t *testing.T) {
	rt := &routine.Routine{
		Name: "scrape",
		Operations: []routine.Operation{
			{Kind: routine.OpExtractHTML, Selector: "#price", Produce: "price_html"},
			{Kind: routine.OpType, Selector: "#note", Text: "saw {{price_html}}"},
		},
	}

	b := &fakeBrowser{htmlResult: `<span id="price">9.50</span>`}
	_, err := newExecutor(b, &fakeHTTP{}).Execute(context.Background(), rt, nil)
	require.NoError(t, err)
	assert.Contains(t, b.calls, `type:#note:saw <span id="price">9.50</span>`)
}

func TestExecuteDownload(t *testing.T) {
	rt := &routine.Routine{
		Name: "dl",
		Parameters: []routine.Parameter{
			{Name: "report", Type: routine.TypeString},
		},
		Operations: []routine.Operation{
			{Kind: routine.OpDownload, URL: "https://example.com/files/{{report}}",
				Filename: "out/{{report}}.pdf", Produce: "saved_path"},
			{Kind: routine.OpType, Selector: "#status", Text: "saved to {{saved_path}}"},
		},
	}

	b := &fakeBrowser{}
	h := &fakeHTTP{}
	_, err := newExecutor(b, h).Execute(context.Background(), rt, map[string]any{"report": "q3"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/files/q3", h.url)
	assert.Contains(t, b.calls, "type:#status:saved to out/q3.pdf")
}

func TestExecuteMissingValueFailsOperation(t *testing.T) {
	rt := &routine.Routine{
		Name: "novalue",
		Parameters: []routine.Parameter{
			{Name: "query", Type: routine.TypeString},
		},
		Operations: []routine.Operation{
			{Kind: routine.OpNavigate, URL: "https://example.com/?q={{query}}"},
		},
	}

	b := &fakeBrowser{}
	report, err := newExecutor(b, &fakeHTTP{}).Execute(context.Background(), rt, map[string]any{})

	require.Error(t, err)
	var merr *interp.MissingValueError
	assert.ErrorAs(t, err, &merr)
	assert.Empty(t, b.calls)
	assert.Equal(t, engine.RunFailed, report.Status)
}

func TestExecuteCoercionFailureFailsRun(t *testing.T) {
	rt := &routine.Routine{
		Name: "badcoerce",
		Parameters: []routine.Parameter{
			{Name: "limit", Type: routine.TypeInteger},
		},
		Operations: []routine.Operation{
			{Kind: routine.OpFetch, Method: "POST", URL: "https://example.com/api",
				Body: map[string]any{"limit": "{{limit}}"}},
		},
	}

	report, err := newExecutor(&fakeBrowser{}, &fakeHTTP{}).Execute(context.Background(), rt, map[string]any{"limit": "lots"})

	require.Error(t, err)
	var cerr *interp.CoercionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "limit", cerr.Name)
	assert.Equal(t, engine.RunFailed, report.Status)
}

func TestExecuteCancelledBetweenOperations(t *testing.T) {
	rt := &routine.Routine{
		Name: "cancelled",
		Operations: []routine.Operation{
			{Kind: routine.OpNavigate, URL: "https://example.com/"},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := &fakeBrowser{}
	report, err := newExecutor(b, &fakeHTTP{}).Execute(ctx, rt, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, b.calls)
	assert.Equal(t, engine.RunFailed, report.Status)
	require.Len(t, report.Trace, 1)
	assert.Equal(t, engine.OpAborted, report.Trace[0].Status)
}

func TestExecuteBuiltinsPassThroughToCollaborators(t *testing.T) {
	rt := &routine.Routine{
		Name: "builtins",
		Operations: []routine.Operation{
			{Kind: routine.OpEvaluateScript,
				Script: "(() => { return sessionStorage.getItem('{{sessionStorage:auth}}'); })()"},
		},
	}

	b := &fakeBrowser{}
	_, err := newExecutor(b, &fakeHTTP{}).Execute(context.Background(), rt, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"evaluate"}, b.calls)
}

func TestRunReportIDsAreUnique(t *testing.T) {
	rt := &routine.Routine{
		Name: "ids",
		Operations: []routine.Operation{
			{Kind: routine.OpNavigate, URL: "https://example.com/"},
		},
	}

	e := newExecutor(&fakeBrowser{}, &fakeHTTP{})
	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		report, err := e.Execute(context.Background(), rt, nil)
		require.NoError(t, err)
		assert.False(t, seen[report.RunID], "run id %s reused", report.RunID)
		seen[report.RunID] = true
	}
}
