// Package actions implements one handler per action variant. A handler
// formats its declared inputs against the execution context, invokes the
// capability it fronts, and returns the value to record under its step id.
package actions

import (
	"context"

	"github.com/plexo/agentic/internal/expressions"
	"github.com/plexo/agentic/pkg/schema"
)

// Invocation is everything a handler receives for one step execution.
// Context is a read-only snapshot of the execution context at invocation time.
type Invocation struct {
	StepID   string
	Action   *schema.Action
	Context  map[string]any
	Prompter Prompter
}

// Handler executes one action variant. Run returns the value to write into
// the execution context under the invoking step's id.
type Handler interface {
	Type() schema.ActionType
	Run(ctx context.Context, inv Invocation) (any, error)
}

// Prompter suspends a step until an out-of-band user response arrives.
// The engine's user-input gate implements it; tests substitute doubles.
type Prompter interface {
	Prompt(ctx context.Context, stepID string, params *schema.UserParams) (any, error)
}

// formatRequired renders a template whose every token must resolve. An
// unresolved token fails the step rather than producing a partial input.
func formatRequired(template string, execCtx map[string]any) (string, error) {
	out, ok := expressions.Format(template, execCtx, true)
	if !ok {
		return "", schema.NewErrorf(schema.ErrCodeTemplate,
			"unresolved template input in %q", template)
	}
	return out, nil
}

// formatHeaders renders every header value, failing on unresolved tokens.
func formatHeaders(headers map[string]string, execCtx map[string]any) (map[string]string, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		fv, err := formatRequired(v, execCtx)
		if err != nil {
			return nil, err
		}
		out[k] = fv
	}
	return out, nil
}
