package actions

import (
	"context"

	"github.com/plexo/agentic/internal/capability"
	"github.com/plexo/agentic/internal/expressions"
	"github.com/plexo/agentic/pkg/schema"
)

// FindHandler runs the "find" action: a retrieval query against the
// configured knowledge source.
type FindHandler struct {
	searcher capability.Searcher
}

// NewFindHandler creates the find handler.
func NewFindHandler(s capability.Searcher) *FindHandler {
	return &FindHandler{searcher: s}
}

func (h *FindHandler) Type() schema.ActionType { return schema.ActionFind }

func (h *FindHandler) Run(ctx context.Context, inv Invocation) (any, error) {
	params := inv.Action.Find
	if params == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "find action has no params").WithStep(inv.StepID)
	}
	if h.searcher == nil {
		return nil, schema.NewError(schema.ErrCodeCapability, "no searcher capability configured").WithStep(inv.StepID)
	}

	query, err := formatRequired(params.Query, inv.Context)
	if err != nil {
		return nil, err
	}

	options, err := formatOptions(params.Options, inv.Context)
	if err != nil {
		return nil, err
	}

	res, err := h.searcher.Find(ctx, query, params.Features, options)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, schema.NewError(schema.ErrCodeCapability, "find returned no results payload").WithStep(inv.StepID)
	}

	return map[string]any{"results": res.Results}, nil
}

// formatOptions renders template tokens inside option values, failing the
// step when a token cannot be resolved.
func formatOptions(options map[string]any, execCtx map[string]any) (map[string]any, error) {
	if len(options) == 0 {
		return nil, nil
	}
	out, ok := expressions.FormatValue(options, execCtx)
	if !ok {
		return nil, schema.NewError(schema.ErrCodeTemplate, "unresolved template input in options")
	}
	m, _ := out.(map[string]any)
	return m, nil
}
