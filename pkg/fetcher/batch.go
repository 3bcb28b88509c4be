package fetcher

import (
	"bytes"
	"encoding/json"

	"github.com/night-crawler/async-fetcher/pkg/result"
	"github.com/night-crawler/async-fetcher/pkg/task"
)

// Batch is an insertion-ordered collection of named task descriptors.
// Results of a run are correlated back to these names in the same
// order, regardless of completion order.
type Batch struct {
	names []string
	tasks map[string]task.Descriptor
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{tasks: make(map[string]task.Descriptor)}
}

// Add appends a named task. Re-adding an existing name replaces the
// descriptor but keeps the original position. Add returns the batch
// for chaining.
func (b *Batch) Add(name string, d task.Descriptor) *Batch {
	if _, ok := b.tasks[name]; !ok {
		b.names = append(b.names, name)
	}
	b.tasks[name] = d
	return b
}

// Len returns the number of tasks in the batch.
func (b *Batch) Len() int {
	return len(b.names)
}

// Names returns the task names in insertion order.
func (b *Batch) Names() []string {
	names := make([]string, len(b.names))
	copy(names, b.names)
	return names
}

// Get returns the descriptor registered under name.
func (b *Batch) Get(name string) (task.Descriptor, bool) {
	d, ok := b.tasks[name]
	return d, ok
}

// Results is an insertion-ordered collection of named results produced
// by a batch run.
type Results struct {
	names   []string
	results map[string]result.Result
}

// Len returns the number of results.
func (r *Results) Len() int {
	return len(r.names)
}

// Names returns the result names in the original batch order.
func (r *Results) Names() []string {
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

// Get returns the result stored under name.
func (r *Results) Get(name string) (result.Result, bool) {
	res, ok := r.results[name]
	return res, ok
}

// MarshalJSON renders the results as a JSON object whose keys appear
// in the original batch order.
func (r *Results) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(r.results[name])
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
