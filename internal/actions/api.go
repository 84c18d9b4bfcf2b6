package actions

import (
	"context"
	"strings"

	"github.com/plexo/agentic/internal/capability"
	"github.com/plexo/agentic/internal/expressions"
	"github.com/plexo/agentic/pkg/schema"
)

// APIHandler runs the "api" action: an arbitrary HTTP call whose JSON
// response is projected into named outputs. An output selector starting with
// "." is treated as a jq program; anything else as a dotted path.
type APIHandler struct {
	fetcher capability.Fetcher
	jq      *expressions.GoJQEngine
}

// NewAPIHandler creates the api handler.
func NewAPIHandler(f capability.Fetcher) *APIHandler {
	return &APIHandler{
		fetcher: f,
		jq:      expressions.NewGoJQEngine(),
	}
}

func (h *APIHandler) Type() schema.ActionType { return schema.ActionAPI }

func (h *APIHandler) Run(ctx context.Context, inv Invocation) (any, error) {
	params := inv.Action.API
	if params == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "api action has no params").WithStep(inv.StepID)
	}
	if h.fetcher == nil {
		return nil, schema.NewError(schema.ErrCodeCapability, "no fetcher capability configured").WithStep(inv.StepID)
	}

	rawURL, err := formatRequired(params.URL, inv.Context)
	if err != nil {
		return nil, err
	}
	headers, err := formatHeaders(params.Headers, inv.Context)
	if err != nil {
		return nil, err
	}

	var body any
	if params.Body != nil {
		formatted, ok := expressions.FormatValue(params.Body, inv.Context)
		if !ok {
			return nil, schema.NewError(schema.ErrCodeTemplate,
				"unresolved template input in request body").WithStep(inv.StepID)
		}
		body = formatted
	}

	resp, err := h.fetcher.Do(ctx, capability.Request{
		Method:  params.Method,
		URL:     rawURL,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, schema.NewErrorf(schema.ErrCodeCapability,
			"api call to %s returned %d", rawURL, resp.StatusCode).WithStep(inv.StepID)
	}
	if resp.JSON == nil {
		return nil, schema.NewErrorf(schema.ErrCodeCapability,
			"api call to %s did not return parseable JSON", rawURL).WithStep(inv.StepID)
	}

	result := make(map[string]any, len(params.Outputs))
	for name, selector := range params.Outputs {
		if strings.HasPrefix(selector, ".") {
			value, err := h.jq.Query(ctx, selector, resp.JSON)
			if err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeExpression,
					"output %q: invalid jq selector %q", name, selector).
					WithStep(inv.StepID).WithCause(err)
			}
			result[name] = value
			continue
		}
		if value, ok := expressions.Resolve(resp.JSON, selector); ok {
			result[name] = value
		}
	}
	return result, nil
}
