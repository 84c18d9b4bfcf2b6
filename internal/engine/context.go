// Package engine executes a pipeline definition: it owns the per-run
// execution context, walks the step graph following conditioned edges, and
// suspends branches waiting for out-of-band user input.
package engine

import (
	"encoding/json"
	"sync"

	"github.com/plexo/agentic/pkg/schema"
)

// ContextStore is the shared, append-only execution context of one run.
// A key is written at most once, exactly when its step completes; once
// written it is never mutated. All values are normalized through a JSON
// round-trip so reads always see plain JSON types.
type ContextStore struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewContextStore creates a store seeded with the caller's initial bindings.
// Seed values are normalized the same way step results are.
func NewContextStore(initial map[string]any) (*ContextStore, error) {
	values := make(map[string]any, len(initial))
	for k, v := range initial {
		nv, err := normalize(v)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"initial context value %q is not JSON-serializable", k).WithCause(err)
		}
		values[k] = nv
	}
	return &ContextStore{values: values}, nil
}

// Put records a step's result. Writing a key that already exists is a
// conflict: the context is append-only within a run.
func (s *ContextStore) Put(stepID string, value any) error {
	nv, err := normalize(value)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeExecution,
			"result of step %q is not JSON-serializable", stepID).WithStep(stepID).WithCause(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.values[stepID]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict,
			"context key %q already written", stepID).WithStep(stepID)
	}
	s.values[stepID] = nv
	return nil
}

// Get returns the value recorded under a key.
func (s *ContextStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Snapshot returns a deep copy of the current context. Handlers and
// condition evaluation work on snapshots, so concurrent branch writes never
// race with reads.
func (s *ContextStore) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = deepCopy(v)
	}
	return out
}

// Len returns the number of recorded keys.
func (s *ContextStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// normalize round-trips a value through JSON so the stored form uses only
// maps, slices, strings, float64, bool, and nil.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// deepCopy copies normalized JSON values. Scalars are immutable and returned
// as-is.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = deepCopy(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopy(e)
		}
		return out
	default:
		return v
	}
}
