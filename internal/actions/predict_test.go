package actions

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/plexo/agentic/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	gotPrompt  string
	gotContext []string
	gotSchema  json.RawMessage
	answer     map[string]any
	err        error
}

func (g *fakeGenerator) GenerateStructuredOutput(ctx context.Context, prompt string, contextValues []string, s json.RawMessage) (map[string]any, error) {
	g.gotPrompt = prompt
	g.gotContext = contextValues
	g.gotSchema = s
	return g.answer, g.err
}

func predictAction(outputs map[string]*schema.OutputSpec) *schema.Action {
	return &schema.Action{
		Type: schema.ActionPredict,
		Predict: &schema.PredictParams{
			Query:   "extract the title from {{START.text}}",
			Context: []string{"{{START.text}}"},
			Outputs: outputs,
		},
	}
}

func TestPredictHandler_Run(t *testing.T) {
	gen := &fakeGenerator{answer: map[string]any{"title": "Go", "tags": []any{"lang"}}}
	h := NewPredictHandler(gen)

	action := predictAction(map[string]*schema.OutputSpec{
		"title": {Type: "string", Description: "document title", Required: true},
		"tags":  {Type: "array", Items: &schema.OutputSpec{Type: "string"}},
	})

	out, err := h.Run(context.Background(), Invocation{
		StepID:  "extract",
		Action:  action,
		Context: map[string]any{"START": map[string]any{"text": "a doc"}},
	})
	require.NoError(t, err)
	assert.Equal(t, gen.answer, out)

	assert.Equal(t, "extract the title from a doc", gen.gotPrompt)
	assert.Equal(t, []string{"a doc"}, gen.gotContext)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(gen.gotSchema, &doc))
	assert.Equal(t, "answer", doc["name"])
	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, []any{"title"}, doc["required"])

	props := doc["properties"].(map[string]any)
	title := props["title"].(map[string]any)
	assert.Equal(t, "string", title["type"])
	assert.Equal(t, "document title", title["description"])
	tags := props["tags"].(map[string]any)
	assert.Equal(t, "array", tags["type"])
	assert.Equal(t, map[string]any{"type": "string"}, tags["items"])
}

func TestPredictHandler_UnresolvedQueryFails(t *testing.T) {
	h := NewPredictHandler(&fakeGenerator{answer: map[string]any{}})

	_, err := h.Run(context.Background(), Invocation{
		StepID:  "extract",
		Action:  predictAction(map[string]*schema.OutputSpec{"title": {Type: "string"}}),
		Context: map[string]any{},
	})
	require.Error(t, err)
	var perr *schema.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, schema.ErrCodeTemplate, perr.Code)
}

func TestPredictHandler_RejectsNonConformingAnswer(t *testing.T) {
	gen := &fakeGenerator{answer: map[string]any{"title": float64(7)}}
	h := NewPredictHandler(gen)

	action := &schema.Action{
		Type: schema.ActionPredict,
		Predict: &schema.PredictParams{
			Query:   "extract",
			Outputs: map[string]*schema.OutputSpec{"title": {Type: "string", Required: true}},
		},
	}

	_, err := h.Run(context.Background(), Invocation{StepID: "extract", Action: action, Context: map[string]any{}})
	require.Error(t, err)
	var perr *schema.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, schema.ErrCodeCapability, perr.Code)
}

func TestPredictHandler_NoGenerator(t *testing.T) {
	h := NewPredictHandler(nil)
	_, err := h.Run(context.Background(), Invocation{
		StepID: "extract",
		Action: predictAction(nil),
	})
	require.Error(t, err)
}
