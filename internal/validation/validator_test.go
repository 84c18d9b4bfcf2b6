package validation

import (
	"encoding/json"
	"testing"

	"github.com/plexo/agentic/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustValidator(t *testing.T) *DefinitionValidator {
	t.Helper()
	v, err := NewDefinitionValidator()
	require.NoError(t, err)
	return v
}

func decodeDefinition(t *testing.T, raw string) schema.PipelineDefinition {
	t.Helper()
	var def schema.PipelineDefinition
	require.NoError(t, json.Unmarshal([]byte(raw), &def))
	return def
}

const validPipeline = `{
  "START": {
    "action": {"type": "predict", "query": "classify {{query}}", "outputs": {
      "kind": {"type": "string", "description": "document kind", "required": true}
    }},
    "next": [
      {"step_id": "search", "if": "START.kind == \"report\""},
      {"step_id": "confirm"}
    ]
  },
  "search": {
    "action": {"type": "find", "query": "{{query}}", "options": {}}
  },
  "confirm": {
    "action": {"type": "user", "label": "continue?", "input_type": "boolean"}
  }
}`

func TestValidate_ValidPipeline(t *testing.T) {
	v := mustValidator(t)
	result := v.Validate(decodeDefinition(t, validPipeline))
	assert.True(t, result.Valid())
	assert.Empty(t, result.Warnings)
}

func TestValidate_MissingStart(t *testing.T) {
	v := mustValidator(t)
	def := schema.PipelineDefinition{
		"A": {Action: &schema.Action{Type: schema.ActionFind, Find: &schema.FindParams{Query: "q"}}},
	}
	result := v.Validate(def)
	assert.False(t, result.Valid())
}

func TestValidate_NilDefinition(t *testing.T) {
	v := mustValidator(t)
	result := v.Validate(nil)
	assert.False(t, result.Valid())
}

func TestValidate_PerVariantRequiredParams(t *testing.T) {
	tests := []struct {
		name   string
		action *schema.Action
	}{
		{"predict without outputs", &schema.Action{
			Type:    schema.ActionPredict,
			Predict: &schema.PredictParams{Query: "q"},
		}},
		{"predict without query", &schema.Action{
			Type:    schema.ActionPredict,
			Predict: &schema.PredictParams{Outputs: map[string]*schema.OutputSpec{"x": {Type: "string"}}},
		}},
		{"find without query", &schema.Action{
			Type: schema.ActionFind,
			Find: &schema.FindParams{},
		}},
		{"web without url", &schema.Action{
			Type: schema.ActionWeb,
			Web:  &schema.WebParams{Outputs: map[string]string{"t": "h1"}},
		}},
		{"api with bad method", &schema.Action{
			Type: schema.ActionAPI,
			API:  &schema.APIParams{URL: "https://example.com", Method: "DELETE", Outputs: map[string]string{}},
		}},
		{"user with bad input type", &schema.Action{
			Type: schema.ActionUser,
			User: &schema.UserParams{Label: "ok?", InputType: "slider"},
		}},
	}

	v := mustValidator(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := schema.PipelineDefinition{
				schema.StartStepID: {Action: tt.action},
			}
			result := v.Validate(def)
			assert.False(t, result.Valid())
		})
	}
}

func TestValidate_ArrayOutputNeedsItems(t *testing.T) {
	v := mustValidator(t)
	def := schema.PipelineDefinition{
		schema.StartStepID: {Action: &schema.Action{
			Type: schema.ActionPredict,
			Predict: &schema.PredictParams{
				Query:   "q",
				Outputs: map[string]*schema.OutputSpec{"tags": {Type: "array"}},
			},
		}},
	}
	result := v.Validate(def)
	assert.False(t, result.Valid())
}

func TestValidate_DanglingEdgeIsWarning(t *testing.T) {
	v := mustValidator(t)
	def := schema.PipelineDefinition{
		schema.StartStepID: {
			Action: &schema.Action{Type: schema.ActionFind, Find: &schema.FindParams{Query: "q"}},
			Next:   []schema.Edge{{StepID: "GHOST"}},
		},
	}
	result := v.Validate(def)
	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Message, "GHOST")
}

func TestValidate_CycleIsError(t *testing.T) {
	v := mustValidator(t)
	find := func() *schema.Action {
		return &schema.Action{Type: schema.ActionFind, Find: &schema.FindParams{Query: "q"}}
	}
	def := schema.PipelineDefinition{
		schema.StartStepID: {Action: find(), Next: []schema.Edge{{StepID: "A"}}},
		"A":                {Action: find(), Next: []schema.Edge{{StepID: "B"}}},
		"B":                {Action: find(), Next: []schema.Edge{{StepID: "A"}}},
	}
	result := v.Validate(def)
	assert.False(t, result.Valid())
	require.NotEmpty(t, result.Errors)

	found := false
	for _, e := range result.Errors {
		if e.Code == schema.ErrCodeCycleDetected {
			found = true
		}
	}
	assert.True(t, found, "expected a cycle error, got %+v", result.Errors)
}

func TestValidate_UnreachableStepIsWarning(t *testing.T) {
	v := mustValidator(t)
	find := func() *schema.Action {
		return &schema.Action{Type: schema.ActionFind, Find: &schema.FindParams{Query: "q"}}
	}
	def := schema.PipelineDefinition{
		schema.StartStepID: {Action: find()},
		"orphan":           {Action: find()},
	}
	result := v.Validate(def)
	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Message, "orphan")
}

func TestValidate_DiamondFanOutIsValid(t *testing.T) {
	v := mustValidator(t)
	find := func() *schema.Action {
		return &schema.Action{Type: schema.ActionFind, Find: &schema.FindParams{Query: "q"}}
	}
	def := schema.PipelineDefinition{
		schema.StartStepID: {Action: find(), Next: []schema.Edge{{StepID: "A"}, {StepID: "B"}}},
		"A":                {Action: find(), Next: []schema.Edge{{StepID: "D"}}},
		"B":                {Action: find(), Next: []schema.Edge{{StepID: "D"}}},
		"D":                {Action: find()},
	}
	result := v.Validate(def)
	assert.True(t, result.Valid())
	assert.Empty(t, result.Warnings)
}
