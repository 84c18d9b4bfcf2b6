// Package streaming provides pub/sub distribution of run lifecycle events
// and user prompts to outward subscribers.
package streaming

import "context"

// Event is a real-time event emitted during pipeline execution.
type Event struct {
	RunID   string `json:"run_id"`
	StepID  string `json:"step_id,omitempty"`
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Filter specifies which events a subscriber wants to receive.
type Filter struct {
	RunID string   `json:"run_id,omitempty"`
	Types []string `json:"types,omitempty"`
}

// Hub provides pub/sub for real-time pipeline events.
type Hub interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(ctx context.Context, filter Filter) (<-chan Event, func(), error)
}
