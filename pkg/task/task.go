// Package task builds immutable HTTP request descriptors consumed by
// the fetcher. A descriptor fully describes one request: target URL,
// method, serialized body, headers, response decoding mode, and the
// per-task retry and timeout overrides.
package task

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Decoding selects how a response body is decoded into a result.
type Decoding string

const (
	// DecodeJSON decodes the body as JSON, falling back to text when
	// the response does not declare a JSON content type.
	DecodeJSON Decoding = "json"

	// DecodeText decodes the body as a plain string.
	DecodeText Decoding = "text"

	// DecodeRaw keeps the body as raw bytes.
	DecodeRaw Decoding = "raw"
)

// DefaultRetries instructs the fetcher to use its configured retry
// budget instead of a per-task override.
const DefaultRetries = -1

// Descriptor is an immutable description of one HTTP request. Build it
// with New; never mutate it afterwards.
type Descriptor struct {
	// Method is the lower-cased HTTP verb. Defaults to "get".
	Method string

	// URL is the absolute target URL with query parameters merged in.
	URL string

	// Body is the serialized request body, nil when absent.
	Body []byte

	// Headers holds the request headers in canonical form.
	Headers http.Header

	// Decoding selects the response decoding mode. Defaults to
	// DecodeJSON.
	Decoding Decoding

	// Timeout overrides the fetcher's per-attempt timeout when
	// positive.
	Timeout time.Duration

	// DoNotWait marks the task as fire-and-forget: the response body
	// is discarded unread and an empty zero-status result is returned.
	DoNotWait bool

	// NumRetries is the per-task attempt budget. DefaultRetries defers
	// to the fetcher configuration.
	NumRetries int

	// FailSilently converts an exhausted-retry failure into an empty
	// zero-status result instead of an error.
	FailSilently bool
}

type bodyKind int

const (
	bodyNone bodyKind = iota
	bodyBytes
	bodyString
	bodyForm
	bodyStructured
)

type builder struct {
	method       string
	body         any
	headers      http.Header
	query        url.Values
	apiKey       string
	language     string
	decoding     Decoding
	timeout      time.Duration
	doNotWait    bool
	numRetries   int
	failSilently bool
	autodetect   bool
}

// Option customizes a descriptor under construction.
type Option func(*builder)

// WithMethod sets the HTTP verb. The value is lower-cased.
func WithMethod(method string) Option {
	return func(b *builder) { b.method = strings.ToLower(method) }
}

// WithBody sets the request body. []byte, string and url.Values are
// passed through opaquely; any other value is serialized to JSON during
// the build.
func WithBody(body any) Option {
	return func(b *builder) { b.body = body }
}

// WithHeader sets a single request header.
func WithHeader(key, value string) Option {
	return func(b *builder) { b.headers.Set(key, value) }
}

// WithHeaders sets every header from the given map. Keys already set
// are overwritten.
func WithHeaders(headers map[string]string) Option {
	return func(b *builder) {
		for key, value := range headers {
			b.headers.Set(key, value)
		}
	}
}

// WithQuery merges the given parameters into the URL query string.
// Parameters win over values already present in the URL.
func WithQuery(query map[string]string) Option {
	return func(b *builder) {
		for key, value := range query {
			b.query.Set(key, value)
		}
	}
}

// WithAPIKey sets the api-key header, overwriting any existing value.
func WithAPIKey(key string) Option {
	return func(b *builder) { b.apiKey = key }
}

// WithLanguage sets the accept-language header, overwriting any
// existing value.
func WithLanguage(code string) Option {
	return func(b *builder) { b.language = code }
}

// WithDecoding selects the response decoding mode.
func WithDecoding(d Decoding) Option {
	return func(b *builder) { b.decoding = d }
}

// WithTimeout overrides the fetcher's per-attempt timeout for this
// task.
func WithTimeout(d time.Duration) Option {
	return func(b *builder) { b.timeout = d }
}

// WithRetries sets the per-task attempt budget.
func WithRetries(n int) Option {
	return func(b *builder) { b.numRetries = n }
}

// WithDoNotWait marks the task as fire-and-forget.
func WithDoNotWait() Option {
	return func(b *builder) { b.doNotWait = true }
}

// WithFailSilently suppresses the error raised when the task exhausts
// its retries; an empty zero-status result is returned instead.
func WithFailSilently() Option {
	return func(b *builder) { b.failSilently = true }
}

// WithoutContentTypeDetection disables the content-type defaulting
// applied to bodies that carry no explicit content-type header.
func WithoutContentTypeDetection() Option {
	return func(b *builder) { b.autodetect = false }
}

// New builds a descriptor for the given absolute URL. It merges query
// parameters, defaults the content type from the body shape, serializes
// structured bodies to JSON and applies the api-key and accept-language
// headers. New performs no network I/O.
func New(rawURL string, opts ...Option) (Descriptor, error) {
	b := &builder{
		method:     "get",
		headers:    http.Header{},
		query:      url.Values{},
		decoding:   DecodeJSON,
		numRetries: DefaultRetries,
		autodetect: true,
	}
	for _, opt := range opts {
		opt(b)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return Descriptor{}, fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if !u.IsAbs() {
		return Descriptor{}, fmt.Errorf("url %q is not absolute", rawURL)
	}
	if len(b.query) > 0 {
		q := u.Query()
		for key, values := range b.query {
			q[key] = values
		}
		u.RawQuery = q.Encode()
	}

	body, kind, err := serializeBody(b.body)
	if err != nil {
		return Descriptor{}, fmt.Errorf("serialize body: %w", err)
	}

	if b.autodetect && b.headers.Get("Content-Type") == "" {
		switch kind {
		case bodyStructured:
			b.headers.Set("Content-Type", "application/json")
		case bodyString:
			b.headers.Set("Content-Type", "text/html")
		}
	}
	if b.apiKey != "" {
		b.headers.Set("api-key", b.apiKey)
	}
	if b.language != "" {
		b.headers.Set("accept-language", b.language)
	}

	return Descriptor{
		Method:       b.method,
		URL:          u.String(),
		Body:         body,
		Headers:      b.headers,
		Decoding:     b.decoding,
		Timeout:      b.timeout,
		DoNotWait:    b.doNotWait,
		NumRetries:   b.numRetries,
		FailSilently: b.failSilently,
	}, nil
}

// serializeBody converts the user-supplied body into wire bytes.
// Opaque values ([]byte, string, url.Values) pass through unchanged;
// everything else is marshalled to JSON.
func serializeBody(v any) ([]byte, bodyKind, error) {
	switch body := v.(type) {
	case nil:
		return nil, bodyNone, nil
	case []byte:
		return body, bodyBytes, nil
	case string:
		return []byte(body), bodyString, nil
	case url.Values:
		return []byte(body.Encode()), bodyForm, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, bodyStructured, err
		}
		return data, bodyStructured, nil
	}
}
