package core

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sonde-dev/sonde/internal/engine"
	"github.com/sonde-dev/sonde/internal/pipeline"
	"github.com/sonde-dev/sonde/internal/resilience"
)

// Config is the full runtime configuration, loaded from YAML and merged with
// secrets. API keys never live in the YAML file.
type Config struct {
	Model struct {
		Provider string `yaml:"provider"`
		Name     string `yaml:"name"`
		APIKey   string `yaml:"-"`
	} `yaml:"model"`
	RateLimit struct {
		MaxRequestsPerMinute  int `yaml:"max_requests_per_minute"`
		MaxQueueSize          int `yaml:"max_queue_size"`
		RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
	} `yaml:"rate_limit"`
	Retry struct {
		MaxRetries      int      `yaml:"max_retries"`
		InitialDelayMs  int      `yaml:"initial_delay_ms"`
		MaxDelayMs      int      `yaml:"max_delay_ms"`
		Factor          float64  `yaml:"factor"`
		Jitter          bool     `yaml:"jitter"`
		RetryableErrors []string `yaml:"retryable_errors"`
	} `yaml:"retry"`
	Execution struct {
		MaxQueriesPerTask    int  `yaml:"max_queries_per_task"`
		SearchTimeoutSeconds int  `yaml:"search_timeout_seconds"`
		ParallelSearches     bool `yaml:"parallel_searches"`
		MaxConcurrentTasks   int  `yaml:"max_concurrent_tasks"`
	} `yaml:"execution"`
	Synthesis struct {
		MaxAttempts int `yaml:"max_attempts"`
		BaseDelayMs int `yaml:"base_delay_ms"`
	} `yaml:"synthesis"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	var cfg Config
	cfg.Model.Provider = "openai"
	cfg.RateLimit.MaxRequestsPerMinute = 60
	cfg.RateLimit.MaxQueueSize = 100
	cfg.RateLimit.RequestTimeoutSeconds = 30
	cfg.Retry.MaxRetries = 3
	cfg.Retry.InitialDelayMs = 1000
	cfg.Retry.MaxDelayMs = 30000
	cfg.Retry.Factor = 2.0
	cfg.Retry.Jitter = true
	cfg.Retry.RetryableErrors = []string{"timeout", "rate limit", "429", "500", "502", "503", "504"}
	cfg.Execution.MaxQueriesPerTask = 3
	cfg.Execution.SearchTimeoutSeconds = 45
	cfg.Execution.ParallelSearches = true
	cfg.Execution.MaxConcurrentTasks = 4
	cfg.Synthesis.MaxAttempts = 3
	cfg.Synthesis.BaseDelayMs = 2000
	return cfg
}

// LoadConfig reads YAML configuration from a path. If path is empty, it
// resolves $XDG_CONFIG_HOME/sonde/config.yaml or ~/.config/sonde/config.yaml;
// a missing default file falls back to DefaultConfig. Secrets merge from
// secrets.env and the environment.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	explicit := path != ""
	if path == "" {
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, _ := os.UserHomeDir()
			base = filepath.Join(home, ".config")
		}
		path = filepath.Join(base, "sonde", "config.yaml")
	}
	f, err := os.Open(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			mergeSecrets(&cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	mergeSecrets(&cfg)
	return cfg, nil
}

// mergeSecrets fills API keys from secrets.env and the environment, the
// environment winning.
func mergeSecrets(cfg *Config) {
	secrets, _ := LoadSecretsEnv("")
	if v, ok := secrets["OPENAI_API_KEY"]; ok && v != "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Model.APIKey = v
	}
}

// RetryPolicy converts the retry section into an executor policy.
func (c Config) RetryPolicy() resilience.RetryPolicy {
	return resilience.RetryPolicy{
		MaxRetries:     c.Retry.MaxRetries,
		InitialDelay:   time.Duration(c.Retry.InitialDelayMs) * time.Millisecond,
		MaxDelay:       time.Duration(c.Retry.MaxDelayMs) * time.Millisecond,
		Factor:         c.Retry.Factor,
		Jitter:         c.Retry.Jitter,
		RetryableMatch: c.Retry.RetryableErrors,
	}
}

// RateLimiterConfig converts the rate_limit section.
func (c Config) RateLimiterConfig() resilience.RateLimiterConfig {
	return resilience.RateLimiterConfig{
		MaxRequestsPerMinute: c.RateLimit.MaxRequestsPerMinute,
		MaxQueueSize:         c.RateLimit.MaxQueueSize,
		RequestTimeout:       time.Duration(c.RateLimit.RequestTimeoutSeconds) * time.Second,
	}
}

// EngineConfig converts the execution section.
func (c Config) EngineConfig() engine.Config {
	return engine.Config{
		MaxQueriesPerTask:  c.Execution.MaxQueriesPerTask,
		SearchTimeout:      time.Duration(c.Execution.SearchTimeoutSeconds) * time.Second,
		ParallelSearches:   c.Execution.ParallelSearches,
		MaxConcurrentTasks: c.Execution.MaxConcurrentTasks,
	}
}

// SynthesisConfig converts the synthesis section.
func (c Config) SynthesisConfig() pipeline.SynthesisConfig {
	return pipeline.SynthesisConfig{
		MaxAttempts: c.Synthesis.MaxAttempts,
		BaseDelay:   time.Duration(c.Synthesis.BaseDelayMs) * time.Millisecond,
	}
}

// StorePath resolves the SQLite database location, defaulting to
// $XDG_DATA_HOME/sonde/sonde.db.
func (c Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "sonde", "sonde.db")
}
