// Package pipeline is the public entry point: it validates definitions,
// starts runs, and exposes each run's event stream, prompt stream, and
// response channel.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/plexo/agentic/internal/actions"
	"github.com/plexo/agentic/internal/capability"
	"github.com/plexo/agentic/internal/engine"
	"github.com/plexo/agentic/internal/expressions"
	"github.com/plexo/agentic/internal/logging"
	"github.com/plexo/agentic/internal/streaming"
	"github.com/plexo/agentic/internal/validation"
	"github.com/plexo/agentic/pkg/schema"
)

// Engine validates and executes pipeline definitions. One Engine serves any
// number of concurrent runs; all per-run state lives in the Run.
type Engine struct {
	registry      *actions.Registry
	validator     *validation.DefinitionValidator
	runner        *engine.GraphRunner
	logger        *slog.Logger
	promptTimeout time.Duration
}

// Option configures an Engine.
type Option func(*config)

type config struct {
	logger        *slog.Logger
	condEngine    expressions.Engine
	promptTimeout time.Duration
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithConditionEngine selects the expression engine used for edge
// conditions. The default is the expr engine.
func WithConditionEngine(e expressions.Engine) Option {
	return func(c *config) { c.condEngine = e }
}

// WithPromptTimeout bounds how long a user step waits for its response.
// Zero (the default) means wait until the run is cancelled.
func WithPromptTimeout(d time.Duration) Option {
	return func(c *config) { c.promptTimeout = d }
}

// New creates an Engine wired to the given capabilities.
func New(caps capability.Capabilities, opts ...Option) (*Engine, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.condEngine == nil {
		cfg.condEngine = expressions.NewExprEngine()
	}

	registry, err := actions.NewDefaultRegistry(caps)
	if err != nil {
		return nil, err
	}
	validator, err := validation.NewDefinitionValidator()
	if err != nil {
		return nil, err
	}

	return &Engine{
		registry:      registry,
		validator:     validator,
		runner:        engine.NewGraphRunner(registry, cfg.condEngine, cfg.logger),
		logger:        cfg.logger,
		promptTimeout: cfg.promptTimeout,
	}, nil
}

// Validate checks a definition without running it.
func (e *Engine) Validate(def schema.PipelineDefinition) *schema.ValidationResult {
	return e.validator.Validate(def)
}

// Run validates the definition and starts it asynchronously. The returned
// Run exposes the event stream, pending prompts, and the final result. The
// context governs the whole run: cancelling it aborts in-flight branches and
// releases suspended user steps.
func (e *Engine) Run(ctx context.Context, def schema.PipelineDefinition, initial map[string]any) (*Run, error) {
	if result := e.validator.Validate(def); !result.Valid() {
		return nil, result.ToError()
	}

	store, err := engine.NewContextStore(initial)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	hub := streaming.NewMemoryHub()
	state := &engine.RunState{
		RunID:      runID,
		Definition: def,
		Context:    store,
		Hub:        hub,
		Gate:       engine.NewGate(runID, hub, e.promptTimeout),
	}

	run := newRun(state)
	run.start(ctx, e.runner, e.logger)

	e.logger.InfoContext(logging.WithRunID(ctx, runID), "run started",
		slog.Int("steps", len(def)))
	return run, nil
}

// RunToCompletion starts a run and blocks until it finishes. Used by the
// scheduler and by callers that do not need the streams.
func (e *Engine) RunToCompletion(ctx context.Context, def schema.PipelineDefinition, initial map[string]any) (bool, error) {
	run, err := e.Run(ctx, def, initial)
	if err != nil {
		return false, err
	}
	return run.Wait(ctx)
}
