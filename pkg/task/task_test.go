package task

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	d, err := New("https://api.example.com/users/")
	require.NoError(t, err)

	assert.Equal(t, "get", d.Method)
	assert.Equal(t, "https://api.example.com/users/", d.URL)
	assert.Nil(t, d.Body)
	assert.Empty(t, d.Headers)
	assert.Equal(t, DecodeJSON, d.Decoding)
	assert.Equal(t, time.Duration(0), d.Timeout)
	assert.False(t, d.DoNotWait)
	assert.Equal(t, DefaultRetries, d.NumRetries)
	assert.False(t, d.FailSilently)
}

func TestNewMethodLowerCased(t *testing.T) {
	d, err := New("https://api.example.com/", WithMethod("POST"))
	require.NoError(t, err)
	assert.Equal(t, "post", d.Method)
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := New("/users/")
	assert.Error(t, err)
}

func TestNewQueryMerge(t *testing.T) {
	d, err := New("https://api.example.com/users/", WithQuery(map[string]string{"key": "True"}))
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/users/?key=True", d.URL)
}

func TestNewQueryMergeLastWins(t *testing.T) {
	d, err := New("https://api.example.com/users/?page=1&sort=asc",
		WithQuery(map[string]string{"page": "2"}))
	require.NoError(t, err)

	u, err := url.Parse(d.URL)
	require.NoError(t, err)
	assert.Equal(t, "2", u.Query().Get("page"))
	assert.Equal(t, "asc", u.Query().Get("sort"))
}

func TestNewStructuredBody(t *testing.T) {
	d, err := New("https://api.example.com/users/",
		WithMethod("post"),
		WithBody(map[string]any{"test": 1}))
	require.NoError(t, err)

	assert.Equal(t, "application/json", d.Headers.Get("Content-Type"))
	assert.JSONEq(t, `{"test": 1}`, string(d.Body))
}

func TestNewStringBody(t *testing.T) {
	d, err := New("https://api.example.com/users/", WithBody("lol"))
	require.NoError(t, err)

	assert.Equal(t, "text/html", d.Headers.Get("Content-Type"))
	assert.Equal(t, "lol", string(d.Body))
}

func TestNewBytesBodyPassedThrough(t *testing.T) {
	d, err := New("https://api.example.com/users/", WithBody([]byte{0x01, 0x02}))
	require.NoError(t, err)

	assert.Empty(t, d.Headers.Get("Content-Type"))
	assert.Equal(t, []byte{0x01, 0x02}, d.Body)
}

func TestNewFormBodyEncoded(t *testing.T) {
	d, err := New("https://api.example.com/users/",
		WithBody(url.Values{"name": {"bob"}}))
	require.NoError(t, err)

	assert.Empty(t, d.Headers.Get("Content-Type"))
	assert.Equal(t, "name=bob", string(d.Body))
}

func TestNewKeepsExplicitContentType(t *testing.T) {
	d, err := New("https://api.example.com/users/",
		WithHeader("content-type", "application/xml"),
		WithBody(map[string]any{"test": 1}))
	require.NoError(t, err)

	assert.Equal(t, "application/xml", d.Headers.Get("Content-Type"))
}

func TestNewWithoutContentTypeDetection(t *testing.T) {
	d, err := New("https://api.example.com/users/",
		WithBody(map[string]any{"test": 1}),
		WithoutContentTypeDetection())
	require.NoError(t, err)

	assert.Empty(t, d.Headers.Get("Content-Type"))
	// The body is still serialized.
	assert.JSONEq(t, `{"test": 1}`, string(d.Body))
}

func TestNewAPIKeyHeader(t *testing.T) {
	d, err := New("https://api.example.com/users/", WithAPIKey("k"))
	require.NoError(t, err)

	assert.Len(t, d.Headers, 1)
	assert.Equal(t, "k", d.Headers.Get("api-key"))
}

func TestNewAPIKeyOverwrites(t *testing.T) {
	d, err := New("https://api.example.com/users/",
		WithHeader("api-key", "old"),
		WithAPIKey("new"))
	require.NoError(t, err)

	assert.Equal(t, []string{"new"}, d.Headers.Values("api-key"))
}

func TestNewLanguageHeader(t *testing.T) {
	d, err := New("https://api.example.com/users/", WithLanguage("ru"))
	require.NoError(t, err)

	assert.Equal(t, "ru", d.Headers.Get("accept-language"))
}

func TestNewHeadersCopied(t *testing.T) {
	headers := map[string]string{"X-Trace": "abc"}
	d, err := New("https://api.example.com/users/", WithHeaders(headers))
	require.NoError(t, err)

	headers["X-Trace"] = "mutated"
	assert.Equal(t, "abc", d.Headers.Get("X-Trace"))
}

func TestNewOverrides(t *testing.T) {
	d, err := New("https://api.example.com/users/",
		WithDecoding(DecodeRaw),
		WithTimeout(3*time.Second),
		WithRetries(5),
		WithDoNotWait(),
		WithFailSilently())
	require.NoError(t, err)

	assert.Equal(t, DecodeRaw, d.Decoding)
	assert.Equal(t, 3*time.Second, d.Timeout)
	assert.Equal(t, 5, d.NumRetries)
	assert.True(t, d.DoNotWait)
	assert.True(t, d.FailSilently)
}

func TestNewStructBodyMarshalled(t *testing.T) {
	type payload struct {
		Page int `json:"page"`
	}
	d, err := New("https://api.example.com/users/", WithBody(payload{Page: 2}))
	require.NoError(t, err)

	assert.Equal(t, "application/json", d.Headers.Get("Content-Type"))
	assert.JSONEq(t, `{"page": 2}`, string(d.Body))
}

func TestNewUnmarshalableBody(t *testing.T) {
	_, err := New("https://api.example.com/users/", WithBody(func() {}))
	assert.Error(t, err)
}
