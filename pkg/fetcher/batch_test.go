package fetcher

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/night-crawler/async-fetcher/pkg/result"
	"github.com/night-crawler/async-fetcher/pkg/task"
)

func mustTask(t *testing.T, url string, opts ...task.Option) task.Descriptor {
	t.Helper()
	d, err := task.New(url, opts...)
	if err != nil {
		t.Fatalf("task.New(%q) error: %v", url, err)
	}
	return d
}

func TestBatchPreservesInsertionOrder(t *testing.T) {
	b := NewBatch().
		Add("profile", mustTask(t, "https://api.example.com/profile")).
		Add("orders", mustTask(t, "https://api.example.com/orders")).
		Add("cart", mustTask(t, "https://api.example.com/cart"))

	names := b.Names()
	expected := []string{"profile", "orders", "cart"}
	if len(names) != len(expected) {
		t.Fatalf("Names() length = %d, want %d", len(names), len(expected))
	}
	for i, name := range expected {
		if names[i] != name {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], name)
		}
	}
}

func TestBatchReAddKeepsPosition(t *testing.T) {
	b := NewBatch().
		Add("a", mustTask(t, "https://api.example.com/1")).
		Add("b", mustTask(t, "https://api.example.com/2")).
		Add("a", mustTask(t, "https://api.example.com/3"))

	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}
	if names := b.Names(); names[0] != "a" || names[1] != "b" {
		t.Errorf("Names() = %v, want [a b]", names)
	}
	d, ok := b.Get("a")
	if !ok {
		t.Fatal("Get(a) not found")
	}
	if d.URL != "https://api.example.com/3" {
		t.Errorf("Re-added descriptor not stored, URL = %q", d.URL)
	}
}

func TestResultsMarshalJSONOrder(t *testing.T) {
	r := &Results{
		names: []string{"zulu", "alpha", "mike"},
		results: map[string]result.Result{
			"zulu":  {StatusCode: 200, Body: map[string]any{}},
			"alpha": {StatusCode: 404, Body: map[string]any{}},
			"mike":  {StatusCode: 500, Body: map[string]any{}},
		},
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	text := string(data)
	zulu := strings.Index(text, `"zulu"`)
	alpha := strings.Index(text, `"alpha"`)
	mike := strings.Index(text, `"mike"`)
	if zulu < 0 || alpha < 0 || mike < 0 {
		t.Fatalf("Marshal() missing keys: %s", text)
	}
	if !(zulu < alpha && alpha < mike) {
		t.Errorf("Keys not in insertion order: %s", text)
	}

	// The output is still a valid JSON object.
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Round-trip unmarshal error: %v", err)
	}
	if len(decoded) != 3 {
		t.Errorf("Decoded %d entries, want 3", len(decoded))
	}
}
