package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/plexo/agentic/internal/scheduler"
	"github.com/plexo/agentic/pkg/schema"
)

// jobFile is the on-disk shape of a scheduled pipeline entry.
type jobFile struct {
	ID         string                    `json:"id"`
	Cron       string                    `json:"cron"`
	Definition schema.PipelineDefinition `json:"definition"`
	Initial    map[string]any            `json:"initial,omitempty"`
	Enabled    *bool                     `json:"enabled,omitempty"`
}

// loadJobs reads a JSON array of scheduled pipelines. Entries default to
// enabled unless the file says otherwise.
func loadJobs(path string) ([]scheduler.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jobs file: %w", err)
	}

	var entries []jobFile
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse jobs file: %w", err)
	}

	jobs := make([]scheduler.Job, 0, len(entries))
	for _, e := range entries {
		enabled := true
		if e.Enabled != nil {
			enabled = *e.Enabled
		}
		jobs = append(jobs, scheduler.Job{
			ID:             e.ID,
			CronExpression: e.Cron,
			Definition:     e.Definition,
			Initial:        e.Initial,
			Enabled:        enabled,
		})
	}
	return jobs, nil
}
