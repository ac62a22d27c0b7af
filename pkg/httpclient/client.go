// Package httpclient implements the HTTP collaborator for fetch and
// download operations. Transport timeouts are this client's concern; the
// executor only consumes its request/response contract.
package httpclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tessworth/routinely/pkg/types"
)

const defaultTimeout = 30 * time.Second

const userAgent = "Routinely-Http-Client/1.0"

// Response is the decoded result of a Send. Body is the parsed JSON value
// when the payload is JSON, the raw text when it is valid UTF-8, and a
// base64 string otherwise.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       any
}

// Client is the contract the executor consumes.
type Client interface {
	Send(ctx context.Context, method, url string, headers map[string]string, body any) (*Response, error)
	Download(ctx context.Context, url string, headers map[string]string, body any, filename string) (string, error)
}

// HTTPClient is the default net/http-backed implementation.
type HTTPClient struct {
	Timeout time.Duration
	Logger  types.Logger

	client http.Client
}

// New returns a client with the default timeout.
func New(logger types.Logger) *HTTPClient {
	return &HTTPClient{Timeout: defaultTimeout, Logger: logger}
}

func (hc *HTTPClient) newRequest(ctx context.Context, method, url string, headers map[string]string, body any) (*http.Request, error) {
	method = strings.ToUpper(method)

	var reqBody io.Reader
	hasBody := false
	if body != nil && (method == "POST" || method == "PUT" || method == "PATCH") {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body to JSON: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
		hasBody = true
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}

	hasContentType := false
	for key, value := range headers {
		req.Header.Set(key, value)
		if strings.EqualFold(key, "content-type") {
			hasContentType = true
		}
	}
	if hasBody && !hasContentType {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", userAgent)

	return req, nil
}

// Send performs one request and decodes the response. Non-2xx statuses
// are transport-level failures for the executor; the decoded response is
// still returned alongside the error so the trace can carry it.
func (hc *HTTPClient) Send(ctx context.Context, method, url string, headers map[string]string, body any) (*Response, error) {
	timeout := hc.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := hc.newRequest(reqCtx, method, url, headers, body)
	if err != nil {
		return nil, err
	}

	if hc.Logger != nil {
		hc.Logger.Info().
			Str("method", req.Method).
			Str("url", url).
			Msg("Making HTTP request")
	}

	resp, err := hc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Headers:    flattenHeaders(resp.Header),
		Body:       decodeBody(respBytes),
	}

	if hc.Logger != nil {
		hc.Logger.Info().
			Int("status_code", resp.StatusCode).
			Msg("Received HTTP response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, fmt.Errorf("HTTP request returned status %d", resp.StatusCode)
	}
	return out, nil
}

// Download performs one request and streams the payload to filename,
// returning the path written.
func (hc *HTTPClient) Download(ctx context.Context, url string, headers map[string]string, body any, filename string) (string, error) {
	timeout := hc.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := http.MethodGet
	if body != nil {
		method = http.MethodPost
	}
	req, err := hc.newRequest(reqCtx, method, url, headers, body)
	if err != nil {
		return "", err
	}

	resp, err := hc.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("creating download directory %q: %w", dir, err)
		}
	}

	f, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("creating download file %q: %w", filename, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("writing download to %q: %w", filename, err)
	}

	if hc.Logger != nil {
		hc.Logger.Info().Str("url", url).Str("path", filename).Msg("Download complete")
	}
	return filename, nil
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ", ")
	}
	return out
}

// decodeBody mirrors the JSON → UTF-8 text → base64 fallback chain.
func decodeBody(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	var parsed any
	if err := json.Unmarshal(b, &parsed); err == nil {
		return parsed
	}
	if s := string(b); strings.ToValidUTF8(s, "") == s {
		return s
	}
	return base64.StdEncoding.EncodeToString(b)
}
