// Package scheduler runs registered pipeline definitions on cron schedules.
// Jobs live in memory for the process lifetime.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/plexo/agentic/pkg/schema"
)

// PipelineRunner is the interface the scheduler uses to start runs.
// Satisfied by the pipeline engine (avoids import cycle).
type PipelineRunner interface {
	RunToCompletion(ctx context.Context, def schema.PipelineDefinition, initial map[string]any) (bool, error)
}

// Job is a pipeline definition executed on a cron schedule.
type Job struct {
	ID             string
	CronExpression string
	Definition     schema.PipelineDefinition
	Initial        map[string]any
	Enabled        bool

	NextRunAt     time.Time
	LastRunAt     time.Time
	LastRunStatus string
}

// Scheduler ticks once a minute and runs every enabled job that is due.
type Scheduler struct {
	runner PipelineRunner
	parser cron.Parser
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex

	jobsMu sync.Mutex
	jobs   map[string]*Job

	inflightMu sync.Mutex
	inflight   map[string]struct{} // job IDs currently executing (dedup)
}

// NewScheduler creates a new Scheduler.
func NewScheduler(runner PipelineRunner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:   runner,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:   logger,
		jobs:     make(map[string]*Job),
		inflight: make(map[string]struct{}),
	}
}

// AddJob registers a job and computes its first run time. Duplicate ids are
// rejected.
func (s *Scheduler) AddJob(job Job) error {
	if job.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "job id is empty")
	}
	next, err := s.CalculateNextRun(job.CronExpression, time.Now().UTC())
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"job %q has an invalid schedule", job.ID).WithCause(err)
	}
	job.NextRunAt = next

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "job %q already registered", job.ID)
	}
	s.jobs[job.ID] = &job
	return nil
}

// RemoveJob unregisters a job. Removing an unknown id is a no-op.
func (s *Scheduler) RemoveJob(id string) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	delete(s.jobs, id)
}

// Jobs returns a snapshot of the registered jobs, sorted by id.
func (s *Scheduler) Jobs() []Job {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Start launches the background scheduling loop with a 60s ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	// Run an initial tick immediately.
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs every enabled job whose next run time has passed.
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().UTC()
	for _, job := range s.dueJobs(now) {
		if !s.tryAcquire(job.ID) {
			continue // already running (dedup)
		}
		s.runJob(ctx, job.ID, now)
		s.releaseJob(job.ID)
	}
}

func (s *Scheduler) dueJobs(now time.Time) []*Job {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	var due []*Job
	for _, j := range s.jobs {
		if j.Enabled && !j.NextRunAt.After(now) {
			due = append(due, j)
		}
	}
	return due
}

// runJob starts a run for the job's definition and updates its timestamps.
func (s *Scheduler) runJob(ctx context.Context, jobID string, now time.Time) {
	s.logger.Info("running scheduled job", slog.String("job_id", jobID))

	s.jobsMu.Lock()
	job, ok := s.jobs[jobID]
	s.jobsMu.Unlock()
	if !ok {
		return
	}

	ok, err := s.runner.RunToCompletion(ctx, job.Definition, job.Initial)
	status := "success"
	if err != nil || !ok {
		status = "error"
		s.logger.Error("scheduled job execution failed",
			slog.String("job_id", jobID),
			slog.Bool("result", ok),
			slog.Any("error", err),
		)
	}

	next, err := s.CalculateNextRun(job.CronExpression, now)
	if err != nil {
		s.logger.Error("failed to compute next run",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}

	s.jobsMu.Lock()
	if j, ok := s.jobs[jobID]; ok {
		j.LastRunAt = now
		j.LastRunStatus = status
		j.NextRunAt = next
	}
	s.jobsMu.Unlock()
}

// tryAcquire returns true and marks the job as in-flight if it is not already running.
func (s *Scheduler) tryAcquire(jobID string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[jobID]; ok {
		return false
	}
	s.inflight[jobID] = struct{}{}
	return true
}

// releaseJob removes the job from the in-flight set.
func (s *Scheduler) releaseJob(jobID string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, jobID)
}

// CalculateNextRun computes the next run time for a cron expression.
func (s *Scheduler) CalculateNextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}
