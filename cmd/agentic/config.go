package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all agentic server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	CapabilityURL    string `json:"capability_url"`
	CapabilityAPIKey string `json:"capability_api_key"`
	LogLevel         string `json:"log_level"`
	ConditionEngine  string `json:"condition_engine"`
	PromptTimeoutSec int    `json:"prompt_timeout_sec"`
	JobsPath         string `json:"jobs_path"`
}

func defaultConfig() Config {
	return Config{
		LogLevel:        "info",
		ConditionEngine: "expr",
	}
}

func agenticDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agentic"
	}
	return filepath.Join(home, ".agentic")
}

func settingsPath() string {
	return filepath.Join(agenticDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("AGENTIC_CAPABILITY_URL"); v != "" {
		cfg.CapabilityURL = v
	}
	if v := os.Getenv("AGENTIC_CAPABILITY_API_KEY"); v != "" {
		cfg.CapabilityAPIKey = v
	}
	if v := os.Getenv("AGENTIC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("AGENTIC_CONDITION_ENGINE"); v != "" {
		cfg.ConditionEngine = v
	}
	if v := os.Getenv("AGENTIC_PROMPT_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PromptTimeoutSec = n
		}
	}
	if v := os.Getenv("AGENTIC_JOBS_PATH"); v != "" {
		cfg.JobsPath = v
	}

	return cfg
}

// PromptTimeout converts the configured seconds to a duration. Zero means
// user steps wait indefinitely.
func (c Config) PromptTimeout() time.Duration {
	return time.Duration(c.PromptTimeoutSec) * time.Second
}
