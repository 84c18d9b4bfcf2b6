package schema

// UserPrompt is emitted when a user action suspends its branch. PromptID is a
// generated correlation id, unique per wait, so re-entering the same step
// never routes a stale response.
type UserPrompt struct {
	PromptID string      `json:"prompt_id"`
	StepID   string      `json:"step_id"`
	Params   *UserParams `json:"params"`
}

// UserResponse resumes a suspended branch. Correlation is by PromptID when
// set, otherwise by StepID (first pending wait for that step).
// Value is a bool, string, or []string depending on the prompt's input type.
type UserResponse struct {
	PromptID string `json:"prompt_id,omitempty"`
	StepID   string `json:"step_id"`
	Value    any    `json:"value"`
}
