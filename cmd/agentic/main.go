package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/plexo/agentic/internal/capability"
	"github.com/plexo/agentic/internal/expressions"
	"github.com/plexo/agentic/internal/logging"
	"github.com/plexo/agentic/internal/scheduler"
	"github.com/plexo/agentic/pkg/mcp"
	"github.com/plexo/agentic/pkg/pipeline"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		printVersion()
		return
	}

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "agentic:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := loadConfig()

	// Stdout carries the MCP transport, so all logging goes to stderr.
	logger := slog.New(logging.NewCorrelationHandler(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.SetDefault(logger)

	if cfg.CapabilityURL == "" {
		return fmt.Errorf("capability_url is not configured (set AGENTIC_CAPABILITY_URL or %s)", settingsPath())
	}

	remote := capability.NewRemoteClient(capability.RemoteConfig{
		BaseURL: cfg.CapabilityURL,
		APIKey:  cfg.CapabilityAPIKey,
	}, nil)

	caps := capability.Capabilities{
		Generator: remote,
		Searcher:  remote,
		Fetcher:   capability.NewHTTPFetcher(capability.FetcherConfig{}),
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithPromptTimeout(cfg.PromptTimeout()),
	}
	if cfg.ConditionEngine == "cel" {
		cel, err := expressions.NewCELEngine()
		if err != nil {
			return fmt.Errorf("init cel engine: %w", err)
		}
		opts = append(opts, pipeline.WithConditionEngine(cel))
	}

	engine, err := pipeline.New(caps, opts...)
	if err != nil {
		return fmt.Errorf("init pipeline engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.JobsPath != "" {
		sched := scheduler.NewScheduler(engine, logger)
		jobs, err := loadJobs(cfg.JobsPath)
		if err != nil {
			return err
		}
		for _, job := range jobs {
			if err := sched.AddJob(job); err != nil {
				return fmt.Errorf("register job %q: %w", job.ID, err)
			}
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
		logger.Info("scheduler started", "jobs", len(jobs))
	}

	server := mcp.NewAgenticServer(mcp.AgenticServerDeps{
		Engine: engine,
		Logger: logger,
	})

	logger.Info("agentic server starting", "version", version, "condition_engine", cfg.ConditionEngine)
	return server.Serve(ctx)
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
