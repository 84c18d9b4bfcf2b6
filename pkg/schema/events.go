package schema

// Event type constants for the run event stream.
const (
	EventRunStarted   = "run_started"
	EventRunCompleted = "run_completed"
	EventRunFailed    = "run_failed"

	EventStepRunning = "step_running"
	EventStepDone    = "step_done"
	EventStepFailed  = "step_failed"

	EventPromptRequested = "prompt_requested"
	EventPromptResolved  = "prompt_resolved"
)

// StepStatus represents the lifecycle state of a step within a run.
type StepStatus string

const (
	StepStatusRunning StepStatus = "running"
	StepStatusDone    StepStatus = "done"
	StepStatusError   StepStatus = "error"
)

// LifecycleEvent reports a step status change during a run.
type LifecycleEvent struct {
	StepID  string     `json:"step_id"`
	Status  StepStatus `json:"status"`
	Message string     `json:"message,omitempty"`
}

// RunStatus represents the overall state of a pipeline run.
type RunStatus string

const (
	RunStatusActive    RunStatus = "active"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)
