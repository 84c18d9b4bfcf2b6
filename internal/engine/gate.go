package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plexo/agentic/internal/streaming"
	"github.com/plexo/agentic/pkg/schema"
)

// pendingWait is one suspended user step awaiting its response.
type pendingWait struct {
	promptID string
	stepID   string
	ch       chan any
}

// Gate suspends user steps and routes responses back to them. Each wait gets
// a fresh correlation id, so two concurrent waits on the same step id (or a
// stale response from an earlier run) can never cross wires.
type Gate struct {
	runID   string
	hub     streaming.Hub
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]*pendingWait
}

// NewGate creates a gate for one run. A zero timeout means waits block until
// a response arrives or the run context is cancelled.
func NewGate(runID string, hub streaming.Hub, timeout time.Duration) *Gate {
	return &Gate{
		runID:   runID,
		hub:     hub,
		timeout: timeout,
		pending: make(map[string]*pendingWait),
	}
}

// Prompt publishes a UserPrompt and blocks until a correlated response,
// timeout, or context cancellation.
func (g *Gate) Prompt(ctx context.Context, stepID string, params *schema.UserParams) (any, error) {
	wait := &pendingWait{
		promptID: uuid.NewString(),
		stepID:   stepID,
		ch:       make(chan any, 1),
	}

	g.mu.Lock()
	g.pending[wait.promptID] = wait
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.pending, wait.promptID)
		g.mu.Unlock()
	}()

	prompt := &schema.UserPrompt{PromptID: wait.promptID, StepID: stepID, Params: params}
	if err := g.hub.Publish(ctx, streaming.Event{
		RunID:   g.runID,
		StepID:  stepID,
		Type:    schema.EventPromptRequested,
		Payload: prompt,
	}); err != nil {
		return nil, err
	}

	var timeoutCh <-chan time.Time
	if g.timeout > 0 {
		timer := time.NewTimer(g.timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case value := <-wait.ch:
		_ = g.hub.Publish(ctx, streaming.Event{
			RunID:  g.runID,
			StepID: stepID,
			Type:   schema.EventPromptResolved,
			Payload: &schema.UserResponse{
				PromptID: wait.promptID,
				StepID:   stepID,
				Value:    value,
			},
		})
		return value, nil
	case <-timeoutCh:
		return nil, schema.NewErrorf(schema.ErrCodeTimeout,
			"no user response within %s", g.timeout).WithStep(stepID)
	case <-ctx.Done():
		return nil, schema.NewError(schema.ErrCodeCancelled, "run cancelled while awaiting user input").
			WithStep(stepID).WithCause(ctx.Err())
	}
}

// Respond delivers a response to a suspended wait. Correlation is by
// PromptID when set, otherwise the first pending wait for the step id wins.
func (g *Gate) Respond(resp schema.UserResponse) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var wait *pendingWait
	if resp.PromptID != "" {
		wait = g.pending[resp.PromptID]
	} else {
		for _, w := range g.pending {
			if w.stepID == resp.StepID {
				wait = w
				break
			}
		}
	}
	if wait == nil {
		return schema.NewErrorf(schema.ErrCodeNotFound,
			"no pending prompt for step %q", resp.StepID)
	}

	delete(g.pending, wait.promptID)
	wait.ch <- resp.Value
	return nil
}

// Pending lists the prompts currently awaiting a response.
func (g *Gate) Pending() []*schema.UserPrompt {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]*schema.UserPrompt, 0, len(g.pending))
	for _, w := range g.pending {
		out = append(out, &schema.UserPrompt{PromptID: w.promptID, StepID: w.stepID})
	}
	return out
}
