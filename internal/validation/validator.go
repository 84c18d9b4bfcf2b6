package validation

import "github.com/plexo/agentic/pkg/schema"

// DefinitionValidator runs the full validation pipeline over a definition:
// JSON Schema first, then semantic and graph analysis.
type DefinitionValidator struct {
	structural *JSONSchemaValidator
}

// NewDefinitionValidator creates the validator with the pipeline schema
// pre-compiled.
func NewDefinitionValidator() (*DefinitionValidator, error) {
	structural, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &DefinitionValidator{structural: structural}, nil
}

// Validate returns every issue found in the definition. Warnings do not make
// the result invalid.
func (v *DefinitionValidator) Validate(def schema.PipelineDefinition) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	if err := v.structural.ValidateDefinition(def); err != nil {
		perr, ok := err.(*schema.PipelineError)
		if !ok {
			perr = schema.NewError(schema.ErrCodeValidation, err.Error())
		}
		result.AddError("", perr.Code, perr.Message)
		// Structural failure makes semantic analysis unreliable.
		return result
	}

	result.Merge(validateSemantic(def))
	return result
}
