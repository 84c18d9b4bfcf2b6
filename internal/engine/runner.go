package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/plexo/agentic/internal/actions"
	"github.com/plexo/agentic/internal/expressions"
	"github.com/plexo/agentic/internal/logging"
	"github.com/plexo/agentic/internal/streaming"
	"github.com/plexo/agentic/pkg/schema"
)

// RunState bundles everything scoped to one run: the immutable definition,
// the run's own context store, event hub, and user-input gate. Nothing here
// is shared between runs, so a definition can execute concurrently with
// itself.
type RunState struct {
	RunID      string
	Definition schema.PipelineDefinition
	Context    *ContextStore
	Hub        streaming.Hub
	Gate       *Gate
}

// GraphRunner walks a pipeline graph from the entry step, following edges
// whose condition holds and fanning out over multiple matches. It is
// stateless across runs.
type GraphRunner struct {
	registry   *actions.Registry
	conditions *expressions.ConditionEvaluator
	logger     *slog.Logger
}

// NewGraphRunner creates a runner dispatching to the given handler registry
// and evaluating edge conditions with the given engine.
func NewGraphRunner(registry *actions.Registry, engine expressions.Engine, logger *slog.Logger) *GraphRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphRunner{
		registry:   registry,
		conditions: expressions.NewConditionEvaluator(engine),
		logger:     logger,
	}
}

// Execute runs the graph from the entry step. The result is true iff every
// branch reached a terminal step successfully.
func (r *GraphRunner) Execute(ctx context.Context, state *RunState) bool {
	ctx = logging.WithRunID(ctx, state.RunID)
	return r.runStep(ctx, state, schema.StartStepID)
}

// runStep executes one step and recurses into its matching next steps.
// A multi-edge fan-out is an implicit join: the branch succeeds iff every
// spawned sub-branch succeeds.
func (r *GraphRunner) runStep(ctx context.Context, state *RunState, stepID string) bool {
	if ctx.Err() != nil {
		return false
	}
	ctx = logging.WithStepID(ctx, stepID)

	step, ok := state.Definition[stepID]
	if !ok || step == nil {
		r.logger.WarnContext(ctx, "edge references unknown step")
		r.emit(ctx, state, stepID, schema.StepStatusError, "unknown step")
		return false
	}

	r.emit(ctx, state, stepID, schema.StepStatusRunning, "")

	snapshot := state.Context.Snapshot()
	value, err := r.registry.Dispatch(ctx, actions.Invocation{
		StepID:   stepID,
		Action:   step.Action,
		Context:  snapshot,
		Prompter: state.Gate,
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "step failed", slog.String("error", err.Error()))
		r.emit(ctx, state, stepID, schema.StepStatusError, err.Error())
		return false
	}

	if err := state.Context.Put(stepID, value); err != nil {
		r.logger.ErrorContext(ctx, "context write rejected", slog.String("error", err.Error()))
		r.emit(ctx, state, stepID, schema.StepStatusError, err.Error())
		return false
	}

	after := state.Context.Snapshot()
	message := ""
	if step.StatusMessage != "" {
		message, _ = expressions.Format(step.StatusMessage, after, false)
	}
	r.emit(ctx, state, stepID, schema.StepStatusDone, message)

	next := r.nextSteps(ctx, step, after)
	switch len(next) {
	case 0:
		return true
	case 1:
		return r.runStep(ctx, state, next[0])
	}

	// Fan-out: run every matching next step concurrently and AND the results.
	results := make([]bool, len(next))
	var wg sync.WaitGroup
	for i, id := range next {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = r.runStep(ctx, state, id)
		}()
	}
	wg.Wait()

	for _, ok := range results {
		if !ok {
			return false
		}
	}
	return true
}

// nextSteps returns the targets of edges whose condition holds. Edges
// without a condition are always followed; a condition that fails to
// evaluate counts as not holding.
func (r *GraphRunner) nextSteps(ctx context.Context, step *schema.Step, execCtx map[string]any) []string {
	var out []string
	for _, edge := range step.Next {
		if edge.If == "" {
			out = append(out, edge.StepID)
			continue
		}
		result, ok := r.conditions.Evaluate(ctx, edge.If, execCtx)
		if !ok {
			r.logger.WarnContext(ctx, "edge condition did not evaluate",
				slog.String("condition", edge.If), slog.String("target", edge.StepID))
			continue
		}
		if result {
			out = append(out, edge.StepID)
		}
	}
	return out
}

func (r *GraphRunner) emit(ctx context.Context, state *RunState, stepID string, status schema.StepStatus, message string) {
	eventType := schema.EventStepRunning
	switch status {
	case schema.StepStatusDone:
		eventType = schema.EventStepDone
	case schema.StepStatusError:
		eventType = schema.EventStepFailed
	}

	err := state.Hub.Publish(ctx, streaming.Event{
		RunID:  state.RunID,
		StepID: stepID,
		Type:   eventType,
		Payload: &schema.LifecycleEvent{
			StepID:  stepID,
			Status:  status,
			Message: message,
		},
	})
	if err != nil {
		r.logger.WarnContext(ctx, "failed to publish lifecycle event", slog.String("error", err.Error()))
	}
}
