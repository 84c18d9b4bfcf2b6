package actions

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/plexo/agentic/internal/capability"
	"github.com/plexo/agentic/pkg/schema"
)

// PredictHandler runs the "predict" action: it turns the declared outputs
// into a JSON Schema, asks the generator for a conforming object, and checks
// the answer against that schema before accepting it.
type PredictHandler struct {
	generator capability.Generator
}

// NewPredictHandler creates the predict handler.
func NewPredictHandler(g capability.Generator) *PredictHandler {
	return &PredictHandler{generator: g}
}

func (h *PredictHandler) Type() schema.ActionType { return schema.ActionPredict }

func (h *PredictHandler) Run(ctx context.Context, inv Invocation) (any, error) {
	params := inv.Action.Predict
	if params == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "predict action has no params").WithStep(inv.StepID)
	}
	if h.generator == nil {
		return nil, schema.NewError(schema.ErrCodeCapability, "no generator capability configured").WithStep(inv.StepID)
	}

	query, err := formatRequired(params.Query, inv.Context)
	if err != nil {
		return nil, err
	}

	contextValues := make([]string, 0, len(params.Context))
	for _, c := range params.Context {
		fc, err := formatRequired(c, inv.Context)
		if err != nil {
			return nil, err
		}
		contextValues = append(contextValues, fc)
	}

	outputSchema, err := buildOutputSchema(params.Outputs)
	if err != nil {
		return nil, err
	}

	answer, err := h.generator.GenerateStructuredOutput(ctx, query, contextValues, outputSchema)
	if err != nil {
		return nil, err
	}

	if err := validateAgainstSchema(outputSchema, answer); err != nil {
		return nil, schema.NewError(schema.ErrCodeCapability,
			"generated output does not match the requested schema").
			WithStep(inv.StepID).WithCause(err)
	}

	return answer, nil
}

// buildOutputSchema converts an outputs declaration into a JSON Schema
// document named "answer" with one property per output, collecting the names
// flagged required into the schema's required list.
func buildOutputSchema(outputs map[string]*schema.OutputSpec) (json.RawMessage, error) {
	properties := make(map[string]any, len(outputs))
	required := make([]string, 0, len(outputs))
	for name, spec := range outputs {
		if spec == nil {
			continue
		}
		properties[name] = outputProperty(spec)
		if spec.Required {
			required = append(required, name)
		}
	}

	doc := map[string]any{
		"name":       "answer",
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return json.Marshal(doc)
}

func outputProperty(spec *schema.OutputSpec) map[string]any {
	prop := map[string]any{"type": spec.Type}
	if spec.Description != "" {
		prop["description"] = spec.Description
	}
	if spec.Type == "array" && spec.Items != nil {
		prop["items"] = outputProperty(spec.Items)
	}
	return prop
}

func validateAgainstSchema(rawSchema json.RawMessage, value map[string]any) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(rawSchema))
	if err != nil {
		return err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("answer.json", doc); err != nil {
		return err
	}
	compiled, err := compiler.Compile("answer.json")
	if err != nil {
		return err
	}
	// Round-trip so typed values become plain JSON values for the validator.
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	return compiled.Validate(inst)
}
