package schema

import (
	"encoding/json"
	"fmt"
)

// StartStepID is the mandatory entry point of every pipeline definition.
const StartStepID = "START"

// PipelineDefinition is the JSON-serializable pipeline format: a mapping from
// step id to Step. The step keyed by StartStepID is where execution begins.
type PipelineDefinition map[string]*Step

// Step pairs exactly one Action with zero or more outgoing edges.
// An empty Next list marks the step as terminal for its branch.
type Step struct {
	Action        *Action `json:"action"`
	Next          []Edge  `json:"next,omitempty"`
	StatusMessage string  `json:"status_message,omitempty"`
}

// Edge is a directed, optionally conditioned link to another step.
// An empty If means the edge is always followed.
type Edge struct {
	StepID string `json:"step_id"`
	If     string `json:"if,omitempty"`
}

// ActionType discriminates the Action union.
type ActionType string

const (
	ActionPredict ActionType = "predict"
	ActionFind    ActionType = "find"
	ActionAsk     ActionType = "ask"
	ActionWeb     ActionType = "web"
	ActionAPI     ActionType = "api"
	ActionUser    ActionType = "user"
)

// Action is a tagged union describing one unit of work. Exactly one of the
// params fields is non-nil, matching Type. The JSON form inlines the params
// next to the "type" discriminant:
//
//	{"type": "predict", "query": "...", "outputs": {...}}
type Action struct {
	Type ActionType

	Predict *PredictParams
	Find    *FindParams
	Ask     *AskParams
	Web     *WebParams
	API     *APIParams
	User    *UserParams
}

// PredictParams configures an LLM structured-extraction action.
type PredictParams struct {
	Query   string                 `json:"query"`
	Context []string               `json:"context,omitempty"`
	Outputs map[string]*OutputSpec `json:"outputs"`
}

// FindParams configures a retrieval action.
type FindParams struct {
	Query    string         `json:"query"`
	Features []string       `json:"features,omitempty"`
	Options  map[string]any `json:"options"`
}

// AskParams configures a RAG-answer action.
type AskParams struct {
	Query    string                 `json:"query"`
	Features []string               `json:"features,omitempty"`
	Options  map[string]any         `json:"options,omitempty"`
	Outputs  map[string]*OutputSpec `json:"outputs,omitempty"`
}

// WebParams configures a web-scraping action. Outputs maps result names to
// CSS selectors; each resolves to the first match's text content.
type WebParams struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Outputs map[string]string `json:"outputs"`
}

// APIParams configures a raw HTTP call action. Outputs maps result names to
// dotted paths into the JSON response (or jq expressions starting with ".").
type APIParams struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    any               `json:"body,omitempty"`
	Outputs map[string]string `json:"outputs"`
}

// UserInputType enumerates the kinds of values a user action can collect.
type UserInputType string

const (
	UserInputBoolean UserInputType = "boolean"
	UserInputChoice  UserInputType = "choice"
	UserInputText    UserInputType = "text"
)

// UserParams configures a user-input wait action.
type UserParams struct {
	Label     string        `json:"label"`
	Help      string        `json:"help,omitempty"`
	InputType UserInputType `json:"input_type"`
}

// OutputSpec describes one field of a structured output request.
// Scalar specs use Type string/number/boolean; array specs set Items.
type OutputSpec struct {
	Type        string      `json:"type"`
	Description string      `json:"description,omitempty"`
	Required    bool        `json:"required,omitempty"`
	Items       *OutputSpec `json:"items,omitempty"`
}

// actionEnvelope is the minimal shape used to read the discriminant.
type actionEnvelope struct {
	Type ActionType `json:"type"`
}

// UnmarshalJSON decodes the tagged union, rejecting unknown action types so
// malformed definitions fail at load time rather than mid-execution.
func (a *Action) UnmarshalJSON(data []byte) error {
	var env actionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	a.Type = env.Type
	switch env.Type {
	case ActionPredict:
		a.Predict = &PredictParams{}
		return json.Unmarshal(data, a.Predict)
	case ActionFind:
		a.Find = &FindParams{}
		return json.Unmarshal(data, a.Find)
	case ActionAsk:
		a.Ask = &AskParams{}
		return json.Unmarshal(data, a.Ask)
	case ActionWeb:
		a.Web = &WebParams{}
		return json.Unmarshal(data, a.Web)
	case ActionAPI:
		a.API = &APIParams{}
		return json.Unmarshal(data, a.API)
	case ActionUser:
		a.User = &UserParams{}
		return json.Unmarshal(data, a.User)
	case "":
		return fmt.Errorf("action is missing the required \"type\" field")
	default:
		return fmt.Errorf("unknown action type %q", env.Type)
	}
}

// MarshalJSON re-inlines the params next to the "type" discriminant.
func (a *Action) MarshalJSON() ([]byte, error) {
	var params any
	switch a.Type {
	case ActionPredict:
		params = a.Predict
	case ActionFind:
		params = a.Find
	case ActionAsk:
		params = a.Ask
	case ActionWeb:
		params = a.Web
	case ActionAPI:
		params = a.API
	case ActionUser:
		params = a.User
	default:
		return nil, fmt.Errorf("unknown action type %q", a.Type)
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	m["type"] = string(a.Type)
	return json.Marshal(m)
}
