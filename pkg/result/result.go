// Package result defines the decoded outcome of a single fetch task and
// the status classification helpers shared by its consumers.
package result

import "net/http"

// Result holds the decoded outcome of one executed task.
//
// Headers is nil for fire-and-forget tasks. Body holds the decoded
// payload: map[string]any for JSON objects, string for text responses,
// []byte for raw responses. An absent body is represented as an empty
// map so callers can always index into it.
type Result struct {
	StatusCode int         `json:"status"`
	Headers    http.Header `json:"headers,omitempty"`
	Body       any         `json:"body"`
	URL        string      `json:"url,omitempty"`
}

// Empty returns the zero-status result produced by fire-and-forget
// tasks and by tasks that exhausted their retries with FailSilently.
func Empty() Result {
	return Result{Body: map[string]any{}}
}

// Status returns the effective status of the result.
//
// When the body is a JSON-RPC envelope carrying an error object, the
// error code replaces the transport status. JSON-RPC services report
// protocol failures inside an HTTP 200 response; the override lets
// those failures participate in the same classification as plain HTTP
// statuses.
func (r Result) Status() int {
	body, ok := r.Body.(map[string]any)
	if !ok {
		return r.StatusCode
	}
	if _, ok := body["jsonrpc"]; !ok {
		return r.StatusCode
	}
	errObj, ok := body["error"].(map[string]any)
	if !ok {
		return r.StatusCode
	}
	if code, ok := errObj["code"].(float64); ok {
		return int(code)
	}
	return r.StatusCode
}

// IsInformational reports whether the effective status is 1xx.
func (r Result) IsInformational() bool {
	s := r.Status()
	return s >= 100 && s <= 199
}

// IsSuccess reports whether the effective status is 2xx. A Result is
// considered successful exactly when this returns true.
func (r Result) IsSuccess() bool {
	s := r.Status()
	return s >= 200 && s <= 299
}

// IsRedirect reports whether the effective status is 3xx.
func (r Result) IsRedirect() bool {
	s := r.Status()
	return s >= 300 && s <= 399
}

// IsClientError reports whether the effective status is 4xx.
func (r Result) IsClientError() bool {
	s := r.Status()
	return s >= 400 && s <= 499
}

// IsServerError reports whether the effective status is 5xx.
func (r Result) IsServerError() bool {
	s := r.Status()
	return s >= 500 && s <= 599
}
