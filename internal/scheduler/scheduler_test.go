package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/plexo/agentic/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	mu      sync.Mutex
	runs    int
	initial []map[string]any
	result  bool
	err     error
	block   chan struct{}
}

func (m *mockRunner) RunToCompletion(ctx context.Context, def schema.PipelineDefinition, initial map[string]any) (bool, error) {
	m.mu.Lock()
	m.runs++
	m.initial = append(m.initial, initial)
	m.mu.Unlock()
	if m.block != nil {
		<-m.block
	}
	return m.result, m.err
}

func (m *mockRunner) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}

func testDefinition() schema.PipelineDefinition {
	return schema.PipelineDefinition{
		schema.StartStepID: {Action: &schema.Action{
			Type: schema.ActionFind,
			Find: &schema.FindParams{Query: "q"},
		}},
	}
}

func TestScheduler_AddJob(t *testing.T) {
	s := NewScheduler(&mockRunner{result: true}, slog.Default())

	require.NoError(t, s.AddJob(Job{
		ID:             "nightly",
		CronExpression: "0 3 * * *",
		Definition:     testDefinition(),
		Enabled:        true,
	}))

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "nightly", jobs[0].ID)
	assert.False(t, jobs[0].NextRunAt.IsZero())
}

func TestScheduler_AddJobRejectsDuplicateAndBadCron(t *testing.T) {
	s := NewScheduler(&mockRunner{result: true}, slog.Default())

	require.NoError(t, s.AddJob(Job{ID: "j", CronExpression: "* * * * *"}))
	require.Error(t, s.AddJob(Job{ID: "j", CronExpression: "* * * * *"}))
	require.Error(t, s.AddJob(Job{ID: "k", CronExpression: "not a cron"}))
	require.Error(t, s.AddJob(Job{CronExpression: "* * * * *"}))
}

func TestScheduler_TickRunsDueJobs(t *testing.T) {
	runner := &mockRunner{result: true}
	s := NewScheduler(runner, slog.Default())

	require.NoError(t, s.AddJob(Job{
		ID:             "due",
		CronExpression: "* * * * *",
		Definition:     testDefinition(),
		Initial:        map[string]any{"query": "scheduled"},
		Enabled:        true,
	}))
	require.NoError(t, s.AddJob(Job{
		ID:             "disabled",
		CronExpression: "* * * * *",
		Definition:     testDefinition(),
		Enabled:        false,
	}))

	// Force both due.
	s.jobsMu.Lock()
	for _, j := range s.jobs {
		j.NextRunAt = time.Now().UTC().Add(-time.Minute)
	}
	s.jobsMu.Unlock()

	s.tick(context.Background())

	assert.Equal(t, 1, runner.count())
	assert.Equal(t, map[string]any{"query": "scheduled"}, runner.initial[0])

	jobs := s.Jobs()
	for _, j := range jobs {
		if j.ID == "due" {
			assert.Equal(t, "success", j.LastRunStatus)
			assert.True(t, j.NextRunAt.After(time.Now().UTC().Add(-time.Second)))
		}
		if j.ID == "disabled" {
			assert.Empty(t, j.LastRunStatus)
		}
	}
}

func TestScheduler_FailedRunRecorded(t *testing.T) {
	runner := &mockRunner{result: false}
	s := NewScheduler(runner, slog.Default())

	require.NoError(t, s.AddJob(Job{
		ID:             "failing",
		CronExpression: "* * * * *",
		Definition:     testDefinition(),
		Enabled:        true,
	}))
	s.jobsMu.Lock()
	s.jobs["failing"].NextRunAt = time.Now().UTC().Add(-time.Minute)
	s.jobsMu.Unlock()

	s.tick(context.Background())

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "error", jobs[0].LastRunStatus)
}

func TestScheduler_NotDueJobSkipped(t *testing.T) {
	runner := &mockRunner{result: true}
	s := NewScheduler(runner, slog.Default())

	require.NoError(t, s.AddJob(Job{
		ID:             "future",
		CronExpression: "0 3 * * *",
		Definition:     testDefinition(),
		Enabled:        true,
	}))

	s.tick(context.Background())
	assert.Equal(t, 0, runner.count())
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(&mockRunner{result: true}, slog.Default())

	require.NoError(t, s.Start(context.Background()))
	require.Error(t, s.Start(context.Background()), "second start must fail")
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop(), "stop is idempotent")
}

func TestScheduler_CalculateNextRun(t *testing.T) {
	s := NewScheduler(&mockRunner{}, slog.Default())

	from := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	next, err := s.CalculateNextRun("0 3 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC), next)

	_, err = s.CalculateNextRun("bogus", from)
	require.Error(t, err)
}
