package actions

import (
	"context"
	"sync"

	"github.com/plexo/agentic/internal/capability"
	"github.com/plexo/agentic/pkg/schema"
)

// Registry is a thread-safe lookup of handlers keyed by action type.
type Registry struct {
	mu       sync.RWMutex
	handlers map[schema.ActionType]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[schema.ActionType]Handler),
	}
}

// NewDefaultRegistry wires the six built-in handlers to the given capabilities.
func NewDefaultRegistry(caps capability.Capabilities) (*Registry, error) {
	r := NewRegistry()
	builtins := []Handler{
		NewPredictHandler(caps.Generator),
		NewFindHandler(caps.Searcher),
		NewAskHandler(caps.Searcher),
		NewWebHandler(caps.Fetcher),
		NewAPIHandler(caps.Fetcher),
		NewUserHandler(),
	}
	for _, h := range builtins {
		if err := r.Register(h); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a handler. Returns an error on duplicate type.
func (r *Registry) Register(h Handler) error {
	if h == nil {
		return schema.NewError(schema.ErrCodeValidation, "handler is nil")
	}
	t := h.Type()
	if t == "" {
		return schema.NewError(schema.ErrCodeValidation, "handler type is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[t]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "handler for %q already registered", t)
	}
	r.handlers[t] = h
	return nil
}

// Get retrieves the handler for an action type.
func (r *Registry) Get(t schema.ActionType) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[t]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "no handler registered for action type %q", t)
	}
	return h, nil
}

// Has checks whether a handler is registered for the type.
func (r *Registry) Has(t schema.ActionType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[t]
	return ok
}

// Count returns the number of registered handlers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Dispatch resolves the handler for the invocation's action and runs it.
func (r *Registry) Dispatch(ctx context.Context, inv Invocation) (any, error) {
	if inv.Action == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "step has no action").WithStep(inv.StepID)
	}
	h, err := r.Get(inv.Action.Type)
	if err != nil {
		return nil, err
	}
	return h.Run(ctx, inv)
}
