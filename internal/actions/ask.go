package actions

import (
	"context"
	"encoding/json"

	"github.com/plexo/agentic/internal/capability"
	"github.com/plexo/agentic/pkg/schema"
)

// AskHandler runs the "ask" action: a question answered over the knowledge
// source, optionally extracting structured fields alongside the raw answer.
type AskHandler struct {
	searcher capability.Searcher
}

// NewAskHandler creates the ask handler.
func NewAskHandler(s capability.Searcher) *AskHandler {
	return &AskHandler{searcher: s}
}

func (h *AskHandler) Type() schema.ActionType { return schema.ActionAsk }

func (h *AskHandler) Run(ctx context.Context, inv Invocation) (any, error) {
	params := inv.Action.Ask
	if params == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "ask action has no params").WithStep(inv.StepID)
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

	// Requested structured outputs travel as a schema inside the options.
	if len(params.Outputs) > 0 {
		outputSchema, err := buildOutputSchema(params.Outputs)
		if err != nil {
			return nil, err
		}
		var schemaDoc any
		if err := json.Unmarshal(outputSchema, &schemaDoc); err != nil {
			return nil, err
		}
		if options == nil {
			options = map[string]any{}
		}
		options["answer_json_schema"] = schemaDoc
	}

	answer, err := h.searcher.Ask(ctx, query, nil, params.Features, options)
	if err != nil {
		return nil, err
	}
	if answer == nil {
		return nil, schema.NewError(schema.ErrCodeCapability, "ask returned no answer payload").WithStep(inv.StepID)
	}

	result := map[string]any{"results": answer.Results}
	for k, v := range answer.StructuredOutput {
		result[k] = v
	}
	return result, nil
}
