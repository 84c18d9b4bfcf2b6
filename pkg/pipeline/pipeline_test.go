package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/plexo/agentic/internal/capability"
	"github.com/plexo/agentic/internal/expressions"
	"github.com/plexo/agentic/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	mu      sync.Mutex
	answers map[string]map[string]any // keyed by prompt
	calls   []string
}

func (g *stubGenerator) GenerateStructuredOutput(ctx context.Context, prompt string, contextValues []string, s json.RawMessage) (map[string]any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, prompt)
	if a, ok := g.answers[prompt]; ok {
		return a, nil
	}
	return map[string]any{}, nil
}

type stubSearcher struct {
	mu      sync.Mutex
	queries []string
	results any
}

func (s *stubSearcher) Find(ctx context.Context, query string, features []string, options map[string]any) (*capability.FindResults, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	return &capability.FindResults{Results: s.results}, nil
}

func (s *stubSearcher) Ask(ctx context.Context, query string, prior []capability.Turn, features []string, options map[string]any) (*capability.Answer, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	return &capability.Answer{Results: s.results}, nil
}

func newTestEngine(t *testing.T, caps capability.Capabilities, opts ...Option) *Engine {
	t.Helper()
	e, err := New(caps, opts...)
	require.NoError(t, err)
	return e
}

func waitForPrompt(t *testing.T, run *Run) *schema.UserPrompt {
	t.Helper()
	var prompt *schema.UserPrompt
	require.Eventually(t, func() bool {
		pending := run.PendingPrompts()
		if len(pending) == 0 {
			return false
		}
		prompt = pending[0]
		return true
	}, 2*time.Second, 5*time.Millisecond)
	return prompt
}

func TestEngine_LinearRun(t *testing.T) {
	gen := &stubGenerator{answers: map[string]map[string]any{
		"classify turtles": {"kind": "report"},
	}}
	search := &stubSearcher{results: []any{"doc-1"}}
	e := newTestEngine(t, capability.Capabilities{Generator: gen, Searcher: search})

	def := schema.PipelineDefinition{
		"START": {
			Action: &schema.Action{Type: schema.ActionPredict, Predict: &schema.PredictParams{
				Query:   "classify {{query}}",
				Outputs: map[string]*schema.OutputSpec{"kind": {Type: "string", Required: true}},
			}},
			Next: []schema.Edge{{StepID: "search"}},
		},
		"search": {
			Action: &schema.Action{Type: schema.ActionFind, Find: &schema.FindParams{
				Query: "{{START.kind}} about {{query}}",
			}},
		},
	}

	run, err := e.Run(context.Background(), def, map[string]any{"query": "turtles"})
	require.NoError(t, err)

	ok, err := run.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, schema.RunStatusSucceeded, run.Status())

	execCtx := run.Context()
	assert.Equal(t, map[string]any{"kind": "report"}, execCtx["START"])
	assert.Equal(t, map[string]any{"results": []any{"doc-1"}}, execCtx["search"])
	assert.Equal(t, []string{"report about turtles"}, search.queries)
}

func TestEngine_ConditionalBranching(t *testing.T) {
	gen := &stubGenerator{answers: map[string]map[string]any{
		"classify": {"kind": "invoice"},
	}}
	search := &stubSearcher{results: "r"}
	e := newTestEngine(t, capability.Capabilities{Generator: gen, Searcher: search})

	def := schema.PipelineDefinition{
		"START": {
			Action: &schema.Action{Type: schema.ActionPredict, Predict: &schema.PredictParams{
				Query:   "classify",
				Outputs: map[string]*schema.OutputSpec{"kind": {Type: "string"}},
			}},
			Next: []schema.Edge{
				{StepID: "reports", If: `START.kind == "report"`},
				{StepID: "invoices", If: `START.kind == "invoice"`},
			},
		},
		"reports":  {Action: &schema.Action{Type: schema.ActionFind, Find: &schema.FindParams{Query: "reports"}}},
		"invoices": {Action: &schema.Action{Type: schema.ActionFind, Find: &schema.FindParams{Query: "invoices"}}},
	}

	ok, err := e.RunToCompletion(context.Background(), def, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"invoices"}, search.queries)
}

func TestEngine_InvalidDefinitionRejected(t *testing.T) {
	e := newTestEngine(t, capability.Capabilities{})

	def := schema.PipelineDefinition{
		"A": {Action: &schema.Action{Type: schema.ActionFind, Find: &schema.FindParams{Query: "q"}}},
	}
	_, err := e.Run(context.Background(), def, nil)
	require.Error(t, err)
	var perr *schema.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, schema.ErrCodeValidation, perr.Code)
}

func TestEngine_UserSuspendResume(t *testing.T) {
	search := &stubSearcher{results: "found"}
	e := newTestEngine(t, capability.Capabilities{Searcher: search})

	def := schema.PipelineDefinition{
		"START": {
			Action: &schema.Action{Type: schema.ActionUser, User: &schema.UserParams{
				Label:     "search for {{query}}?",
				InputType: schema.UserInputBoolean,
			}},
			Next: []schema.Edge{{StepID: "search", If: "START == true"}},
		},
		"search": {
			Action: &schema.Action{Type: schema.ActionFind, Find: &schema.FindParams{Query: "{{query}}"}},
		},
	}

	run, err := e.Run(context.Background(), def, map[string]any{"query": "turtles"})
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusActive, run.Status())

	prompt := waitForPrompt(t, run)
	require.NoError(t, run.Respond(schema.UserResponse{PromptID: prompt.PromptID, Value: true}))

	ok, err := run.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	execCtx := run.Context()
	assert.Equal(t, true, execCtx["START"])
	assert.Equal(t, map[string]any{"results": "found"}, execCtx["search"])
}

func TestEngine_PromptTimeoutFailsBranch(t *testing.T) {
	e := newTestEngine(t, capability.Capabilities{}, WithPromptTimeout(20*time.Millisecond))

	def := schema.PipelineDefinition{
		"START": {
			Action: &schema.Action{Type: schema.ActionUser, User: &schema.UserParams{
				Label:     "anyone there?",
				InputType: schema.UserInputText,
			}},
		},
	}

	ok, err := e.RunToCompletion(context.Background(), def, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngine_ConcurrentRunsAreIsolated(t *testing.T) {
	search := &stubSearcher{results: "r"}
	e := newTestEngine(t, capability.Capabilities{Searcher: search})

	def := schema.PipelineDefinition{
		"START": {Action: &schema.Action{Type: schema.ActionFind, Find: &schema.FindParams{Query: "{{query}}"}}},
	}

	runA, err := e.Run(context.Background(), def, map[string]any{"query": "alpha"})
	require.NoError(t, err)
	runB, err := e.Run(context.Background(), def, map[string]any{"query": "beta"})
	require.NoError(t, err)
	assert.NotEqual(t, runA.ID(), runB.ID())

	okA, err := runA.Wait(context.Background())
	require.NoError(t, err)
	okB, err := runB.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, okA)
	assert.True(t, okB)

	assert.Equal(t, "alpha", runA.Context()["query"])
	assert.Equal(t, "beta", runB.Context()["query"])
	assert.ElementsMatch(t, []string{"alpha", "beta"}, search.queries)
}

func TestEngine_EventHistory(t *testing.T) {
	search := &stubSearcher{results: "r"}
	e := newTestEngine(t, capability.Capabilities{Searcher: search})

	def := schema.PipelineDefinition{
		"START": {
			Action:        &schema.Action{Type: schema.ActionFind, Find: &schema.FindParams{Query: "q"}},
			StatusMessage: "search done",
		},
	}

	run, err := e.Run(context.Background(), def, nil)
	require.NoError(t, err)
	ok, err := run.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	var types []string
	require.Eventually(t, func() bool {
		types = nil
		for _, ev := range run.History() {
			types = append(types, ev.Type)
		}
		return len(types) >= 4
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{
		schema.EventRunStarted,
		schema.EventStepRunning,
		schema.EventStepDone,
		schema.EventRunCompleted,
	}, types)
}

func TestEngine_LiveEventStream(t *testing.T) {
	search := &stubSearcher{results: "r"}
	e := newTestEngine(t, capability.Capabilities{Searcher: search})

	def := schema.PipelineDefinition{
		"START": {
			Action: &schema.Action{Type: schema.ActionUser, User: &schema.UserParams{
				Label:     "go?",
				InputType: schema.UserInputBoolean,
			}},
		},
	}

	run, err := e.Run(context.Background(), def, nil)
	require.NoError(t, err)

	events, cancel, err := run.Events(context.Background())
	require.NoError(t, err)
	defer cancel()

	prompt := waitForPrompt(t, run)
	require.NoError(t, run.Respond(schema.UserResponse{StepID: prompt.StepID, Value: false}))

	ok, err := run.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	// The live stream saw at least the prompt resolution and completion.
	seen := map[string]bool{}
	deadline := time.After(time.Second)
	for !seen[schema.EventRunCompleted] {
		select {
		case ev := <-events:
			seen[ev.Type] = true
		case <-deadline:
			t.Fatalf("run completion never reached the live stream, saw %v", seen)
		}
	}
	assert.True(t, seen[schema.EventPromptResolved])
}

func TestEngine_CELConditionEngine(t *testing.T) {
	search := &stubSearcher{results: "r"}
	cel, err := expressions.NewCELEngine()
	require.NoError(t, err)
	e := newTestEngine(t, capability.Capabilities{Searcher: search}, WithConditionEngine(cel))

	def := schema.PipelineDefinition{
		"START": {
			Action: &schema.Action{Type: schema.ActionFind, Find: &schema.FindParams{Query: "q"}},
			Next:   []schema.Edge{{StepID: "next", If: `ctx.START.results == "r"`}},
		},
		"next": {Action: &schema.Action{Type: schema.ActionFind, Find: &schema.FindParams{Query: "q2"}}},
	}

	ok, err := e.RunToCompletion(context.Background(), def, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, search.queries, 2)
}
