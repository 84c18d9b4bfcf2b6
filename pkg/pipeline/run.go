package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/plexo/agentic/internal/engine"
	"github.com/plexo/agentic/internal/logging"
	"github.com/plexo/agentic/internal/streaming"
	"github.com/plexo/agentic/pkg/schema"
)

// Run is one in-flight (or finished) pipeline execution.
type Run struct {
	state *engine.RunState
	done  chan struct{}

	mu      sync.Mutex
	status  schema.RunStatus
	result  bool
	history []streaming.Event
}

func newRun(state *engine.RunState) *Run {
	return &Run{
		state:  state,
		done:   make(chan struct{}),
		status: schema.RunStatusActive,
	}
}

// start launches the run goroutine and the history collector.
func (r *Run) start(ctx context.Context, runner *engine.GraphRunner, logger *slog.Logger) {
	events, cancelEvents, err := r.state.Hub.Subscribe(ctx, streaming.Filter{RunID: r.state.RunID})
	if err != nil {
		// Only a pre-cancelled context reaches here.
		cancelEvents = func() {}
		events = nil
	}

	go r.collect(events, cancelEvents)

	go func() {
		runCtx := logging.WithRunID(ctx, r.state.RunID)

		_ = r.state.Hub.Publish(runCtx, streaming.Event{
			RunID: r.state.RunID,
			Type:  schema.EventRunStarted,
		})

		ok := runner.Execute(runCtx, r.state)

		finalType := schema.EventRunCompleted
		finalStatus := schema.RunStatusSucceeded
		if !ok {
			finalType = schema.EventRunFailed
			finalStatus = schema.RunStatusFailed
		}
		_ = r.state.Hub.Publish(runCtx, streaming.Event{
			RunID:   r.state.RunID,
			Type:    finalType,
			Payload: map[string]any{"result": ok},
		})
		logger.InfoContext(runCtx, "run finished", slog.Bool("result", ok))

		r.mu.Lock()
		r.result = ok
		r.status = finalStatus
		r.mu.Unlock()
		close(r.done)
	}()
}

// collect appends every run event to the in-memory history until the run
// finishes, then drains whatever is still buffered.
func (r *Run) collect(events <-chan streaming.Event, cancel func()) {
	defer cancel()
	if events == nil {
		return
	}
	for {
		select {
		case e := <-events:
			r.append(e)
		case <-r.done:
			for {
				select {
				case e := <-events:
					r.append(e)
				default:
					return
				}
			}
		}
	}
}

func (r *Run) append(e streaming.Event) {
	r.mu.Lock()
	r.history = append(r.history, e)
	r.mu.Unlock()
}

// ID returns the run's correlation id.
func (r *Run) ID() string {
	return r.state.RunID
}

// Status returns the run's current overall status.
func (r *Run) Status() schema.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Wait blocks until the run finishes or the context is cancelled, returning
// the logical AND of all reached terminal branches.
func (r *Run) Wait(ctx context.Context) (bool, error) {
	select {
	case <-r.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.result, nil
	case <-ctx.Done():
		return false, schema.NewError(schema.ErrCodeCancelled, "wait cancelled").WithCause(ctx.Err())
	}
}

// Events subscribes to the run's live event stream. Events published before
// the subscription are available through History.
func (r *Run) Events(ctx context.Context) (<-chan streaming.Event, func(), error) {
	return r.state.Hub.Subscribe(ctx, streaming.Filter{RunID: r.state.RunID})
}

// Prompts subscribes to the run's user-prompt stream.
func (r *Run) Prompts(ctx context.Context) (<-chan streaming.Event, func(), error) {
	return r.state.Hub.Subscribe(ctx, streaming.Filter{
		RunID: r.state.RunID,
		Types: []string{schema.EventPromptRequested},
	})
}

// PendingPrompts lists the user prompts currently awaiting a response.
func (r *Run) PendingPrompts() []*schema.UserPrompt {
	return r.state.Gate.Pending()
}

// Respond delivers a user response to a suspended step.
func (r *Run) Respond(resp schema.UserResponse) error {
	return r.state.Gate.Respond(resp)
}

// Context returns a deep copy of the run's execution context.
func (r *Run) Context() map[string]any {
	return r.state.Context.Snapshot()
}

// History returns a copy of every event recorded so far.
func (r *Run) History() []streaming.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]streaming.Event(nil), r.history...)
}
