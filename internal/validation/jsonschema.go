// Package validation checks pipeline definitions before execution:
// JSON Schema structural validation, per-variant semantic checks, and graph
// analysis over the edge set.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/plexo/agentic/pkg/schema"
)

// pipelineSchemaJSON is the JSON Schema for PipelineDefinition validation.
// Embedded as a constant to avoid filesystem dependencies.
const pipelineSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://plexo.dev/schemas/pipeline.json",
  "type": "object",
  "required": ["START"],
  "minProperties": 1,
  "additionalProperties": { "$ref": "#/$defs/step" },
  "$defs": {
    "step": {
      "type": "object",
      "required": ["action"],
      "properties": {
        "action": { "$ref": "#/$defs/action" },
        "next": {
          "type": "array",
          "items": { "$ref": "#/$defs/edge" }
        },
        "status_message": { "type": "string" }
      },
      "additionalProperties": false
    },
    "edge": {
      "type": "object",
      "required": ["step_id"],
      "properties": {
        "step_id": { "type": "string", "minLength": 1 },
        "if": { "type": "string" }
      },
      "additionalProperties": false
    },
    "action": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": {
          "type": "string",
          "enum": ["predict", "find", "ask", "web", "api", "user"]
        }
      },
      "allOf": [
        {
          "if": { "properties": { "type": { "const": "predict" } } },
          "then": { "required": ["query", "outputs"] }
        },
        {
          "if": { "properties": { "type": { "const": "find" } } },
          "then": { "required": ["query"] }
        },
        {
          "if": { "properties": { "type": { "const": "ask" } } },
          "then": { "required": ["query"] }
        },
        {
          "if": { "properties": { "type": { "const": "web" } } },
          "then": { "required": ["url", "outputs"] }
        },
        {
          "if": { "properties": { "type": { "const": "api" } } },
          "then": {
            "required": ["url", "method", "outputs"],
            "properties": { "method": { "enum": ["GET", "POST"] } }
          }
        },
        {
          "if": { "properties": { "type": { "const": "user" } } },
          "then": {
            "required": ["label", "input_type"],
            "properties": { "input_type": { "enum": ["boolean", "choice", "text"] } }
          }
        }
      ]
    }
  }
}`

// JSONSchemaValidator validates pipeline definitions against the embedded
// JSON Schema (Draft 2020-12). Safe for concurrent use once constructed.
type JSONSchemaValidator struct {
	pipelineSchema *jsonschema.Schema
}

// NewJSONSchemaValidator creates a validator with the pipeline schema
// pre-compiled.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(pipelineSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal pipeline schema: %w", err)
	}
	if err := c.AddResource("https://plexo.dev/schemas/pipeline.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("add pipeline schema resource: %w", err)
	}

	compiled, err := c.Compile("https://plexo.dev/schemas/pipeline.json")
	if err != nil {
		return nil, fmt.Errorf("compile pipeline schema: %w", err)
	}

	return &JSONSchemaValidator{pipelineSchema: compiled}, nil
}

// ValidateDefinition checks a definition against the pipeline JSON Schema.
func (v *JSONSchemaValidator) ValidateDefinition(def schema.PipelineDefinition) error {
	if def == nil {
		return schema.NewError(schema.ErrCodeValidation, "pipeline definition is nil")
	}

	doc, err := toJSONValue(def)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize pipeline definition").WithCause(err)
	}

	if err := v.pipelineSchema.Validate(doc); err != nil {
		return toPipelineError(err)
	}
	return nil
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toPipelineError converts a jsonschema.ValidationError into a PipelineError
// with per-location violation messages.
func toPipelineError(err error) *schema.PipelineError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}

	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("validation failed with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf error
// messages with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
