// Package testutil provides an in-process HTTP server used to exercise
// the fetcher black-box style.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior of a mock endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockService is a configurable HTTP server with a set of built-in
// routes:
//
//	/request-info    echoes method, headers, query and body as JSON
//	/sleep/{secs}    sleeps before answering, {secs} may be fractional
//	/502             always answers 502
//
// Unknown paths answer 404 unless a custom handler is registered.
type MockService struct {
	server *httptest.Server

	mu         sync.RWMutex
	handlers   map[string]http.HandlerFunc
	pathCounts map[string]int
	lastHeader http.Header
}

// NewMockService starts a new mock server. Callers must Close it.
func NewMockService() *MockService {
	mock := &MockService{
		handlers:   make(map[string]http.HandlerFunc),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.pathCounts[r.URL.Path]++
		mock.lastHeader = r.Header.Clone()
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()
		if exists {
			handler(w, r)
			return
		}

		switch {
		case r.URL.Path == "/request-info":
			mock.requestInfoHandler(w, r)
		case strings.HasPrefix(r.URL.Path, "/sleep/"):
			mock.sleepHandler(w, r)
		case r.URL.Path == "/502":
			http.Error(w, "GTFO. Gateway Took Fantastic Outing.", http.StatusBadGateway)
		default:
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error": "not found"}`))
		}
	}))

	return mock
}

// URL returns the mock server base URL.
func (m *MockService) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockService) Close() {
	m.server.Close()
}

// SetHandler registers a custom handler for a path, overriding the
// built-in routes.
func (m *MockService) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a canned response for a path.
func (m *MockService) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// RequestCount returns the number of requests received for a path.
func (m *MockService) RequestCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// TotalRequests returns the number of requests received overall.
func (m *MockService) TotalRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, n := range m.pathCounts {
		total += n
	}
	return total
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockService) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader
}

// Reset clears all request tracking.
func (m *MockService) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pathCounts = make(map[string]int)
	m.lastHeader = nil
}

// requestInfoHandler echoes the request back as JSON. The body is
// decoded as JSON when possible, kept as text otherwise.
func (m *MockService) requestInfoHandler(w http.ResponseWriter, r *http.Request) {
	headers := make(map[string]string, len(r.Header))
	for key := range r.Header {
		headers[key] = r.Header.Get(key)
	}
	query := make(map[string]string)
	for key := range r.URL.Query() {
		query[key] = r.URL.Query().Get(key)
	}

	var content any
	raw, _ := io.ReadAll(r.Body)
	if len(raw) > 0 {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err == nil {
			content = decoded
		} else {
			content = string(raw)
		}
	}

	bundle := map[string]any{
		"method":       r.Method,
		"headers":      headers,
		"query":        query,
		"query_string": r.URL.RawQuery,
		"content":      content,
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(bundle)
}

// sleepHandler waits for the requested number of seconds before
// answering.
func (m *MockService) sleepHandler(w http.ResponseWriter, r *http.Request) {
	secs, err := strconv.ParseFloat(strings.TrimPrefix(r.URL.Path, "/sleep/"), 64)
	if err != nil {
		http.Error(w, `{"error": "bad sleep duration"}`, http.StatusBadRequest)
		return
	}
	time.Sleep(time.Duration(secs * float64(time.Second)))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(map[string]float64{"slept": secs})
}
