// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

// Package config loads and validates Argus configuration from layered
// sources: built-in defaults, an optional YAML file, and environment
// variables (highest priority). Loading is done with Koanf v2; validation
// uses go-playground/validator struct tags plus cross-field checks.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the Argus server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Sources  []SourceConfig `koanf:"sources"`
	Watcher  WatcherConfig  `koanf:"watcher"`
	Queue    QueueConfig    `koanf:"queue"`
	Parser   ParserConfig   `koanf:"parser"`
	Analysis AnalysisConfig `koanf:"analysis"`
	Notify   NotifyConfig   `koanf:"notify"`
	Health   HealthConfig   `koanf:"health"`
	Report   ReportConfig   `koanf:"report"`
	API      APIConfig      `koanf:"api"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig holds SQLite persistence settings.
type DatabaseConfig struct {
	// Path is the SQLite database file. ":memory:" is accepted for tests.
	Path string `koanf:"path" validate:"required"`

	// BusyTimeout bounds how long a write waits on a locked database.
	BusyTimeout time.Duration `koanf:"busy_timeout"`
}

// SourceConfig declares one monitored log source at startup.
type SourceConfig struct {
	Name    string `koanf:"name" validate:"required"`
	Path    string `koanf:"path" validate:"required"`
	Enabled bool   `koanf:"enabled"`
}

// WatcherConfig holds per-source poll loop settings.
type WatcherConfig struct {
	// PollInterval is how often each watcher checks its source for new bytes.
	PollInterval time.Duration `koanf:"poll_interval" validate:"min=10ms"`

	// PartialLineTimeout bounds how long a trailing partial line is buffered
	// before being flushed as a best-effort line.
	PartialLineTimeout time.Duration `koanf:"partial_line_timeout"`

	// MaxBatchLines caps the number of lines emitted per poll cycle.
	MaxBatchLines int `koanf:"max_batch_lines" validate:"min=1"`

	// DedupeEnabled turns on content-hash suppression of re-read lines
	// after a truncation reset.
	DedupeEnabled bool `koanf:"dedupe_enabled"`

	// DedupePath is the BadgerDB directory for the dedupe seen-store.
	DedupePath string `koanf:"dedupe_path"`

	// DedupeTTL is how long seen-hashes are retained.
	DedupeTTL time.Duration `koanf:"dedupe_ttl"`
}

// QueueConfig holds ingestion queue settings.
type QueueConfig struct {
	// Capacity is the bound on buffered line batches. Enqueue blocks when
	// the queue is full.
	Capacity int `koanf:"capacity" validate:"min=1"`

	// DrainGrace bounds how long shutdown waits for the queue to drain
	// before discarding the remainder.
	DrainGrace time.Duration `koanf:"drain_grace"`
}

// ParserConfig holds parsing worker pool settings.
type ParserConfig struct {
	Workers int `koanf:"workers" validate:"min=1"`
}

// AnalysisConfig holds the analysis dispatcher settings. The worker pool
// is sized independently of parsing because analysis carries external I/O
// latency.
type AnalysisConfig struct {
	Workers int `koanf:"workers" validate:"min=1"`

	// APIKey enables the external AI scorer when non-empty; without it
	// every event is scored by the rule-based fallback.
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`

	// CallTimeout bounds one external scoring call.
	CallTimeout time.Duration `koanf:"call_timeout"`

	// MaxRetries is the number of retries after the first failed attempt.
	MaxRetries int `koanf:"max_retries" validate:"min=0,max=10"`

	// RetryInitialInterval seeds the exponential backoff between retries.
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`

	// RatePerSecond throttles external calls. 0 disables throttling.
	RatePerSecond float64 `koanf:"rate_per_second"`

	// BreakerFailureThreshold trips the circuit breaker after this many
	// consecutive external failures.
	BreakerFailureThreshold uint32 `koanf:"breaker_failure_threshold"`

	// BreakerCooldown is how long the breaker stays open before probing.
	BreakerCooldown time.Duration `koanf:"breaker_cooldown"`
}

// NotifyConfig holds notification publisher settings.
type NotifyConfig struct {
	// SendTimeout bounds one delivery attempt to one subscriber so a slow
	// subscriber cannot stall the fan-out.
	SendTimeout time.Duration `koanf:"send_timeout"`

	// PingInterval is the application-level liveness probe period.
	PingInterval time.Duration `koanf:"ping_interval"`

	// PongTimeout is how long after a ping a pong must arrive before the
	// subscriber is treated as disconnected.
	PongTimeout time.Duration `koanf:"pong_timeout"`

	// MetricsInterval is how often the metrics envelope is broadcast to
	// subscribers. 0 disables the broadcast loop.
	MetricsInterval time.Duration `koanf:"metrics_interval"`
}

// HealthConfig holds derived-health thresholds.
type HealthConfig struct {
	// QueueDepthThreshold marks the pipeline degraded when queue depth
	// stays at or above it.
	QueueDepthThreshold int `koanf:"queue_depth_threshold" validate:"min=1"`

	// FallbackRateThreshold marks the pipeline degraded when the analysis
	// fallback rate over the window exceeds it (0..1).
	FallbackRateThreshold float64 `koanf:"fallback_rate_threshold" validate:"min=0,max=1"`

	// NotifyFailureThreshold marks the pipeline degraded when the
	// notification failure rate over the window exceeds it (0..1).
	NotifyFailureThreshold float64 `koanf:"notify_failure_threshold" validate:"min=0,max=1"`

	// Window is the recent period rates are computed over.
	Window time.Duration `koanf:"window"`
}

// ReportConfig holds periodic report settings.
type ReportConfig struct {
	// DefaultWindow is the aggregation window when a trigger omits one.
	DefaultWindow time.Duration `koanf:"default_window"`

	// MaxWindow bounds a requested aggregation window.
	MaxWindow time.Duration `koanf:"max_window"`
}

// APIConfig holds HTTP API behavior settings.
type APIConfig struct {
	DefaultPageSize int           `koanf:"default_page_size" validate:"min=1"`
	MaxPageSize     int           `koanf:"max_page_size" validate:"min=1"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration, combining struct tags with
// cross-field rules that tags cannot express.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if c.API.DefaultPageSize > c.API.MaxPageSize {
		return fmt.Errorf("config validation: api.default_page_size (%d) exceeds api.max_page_size (%d)",
			c.API.DefaultPageSize, c.API.MaxPageSize)
	}
	if c.Report.DefaultWindow > c.Report.MaxWindow {
		return fmt.Errorf("config validation: report.default_window (%s) exceeds report.max_window (%s)",
			c.Report.DefaultWindow, c.Report.MaxWindow)
	}
	if c.Watcher.DedupeEnabled && c.Watcher.DedupePath == "" {
		return fmt.Errorf("config validation: watcher.dedupe_path is required when watcher.dedupe_enabled is set")
	}

	seen := make(map[string]struct{}, len(c.Sources))
	for _, s := range c.Sources {
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("config validation: duplicate source name %q", s.Name)
		}
		seen[s.Name] = struct{}{}
	}

	return nil
}
