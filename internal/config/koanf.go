// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/argus/config.yaml",
	"/etc/argus/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "ARGUS_CONFIG"

// defaultConfig returns the built-in defaults. They are applied first,
// then overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8764,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path:        "/data/argus.db",
			BusyTimeout: 5 * time.Second,
		},
		Watcher: WatcherConfig{
			PollInterval:       2 * time.Second,
			PartialLineTimeout: 10 * time.Second,
			MaxBatchLines:      5000,
			DedupeEnabled:      false,
			DedupePath:         "/data/argus-dedupe",
			DedupeTTL:          24 * time.Hour,
		},
		Queue: QueueConfig{
			Capacity:   256,
			DrainGrace: 10 * time.Second,
		},
		Parser: ParserConfig{
			Workers: 4,
		},
		Analysis: AnalysisConfig{
			Workers:                 8,
			Model:                   "gpt-4o-mini",
			CallTimeout:             15 * time.Second,
			MaxRetries:              3,
			RetryInitialInterval:    500 * time.Millisecond,
			RatePerSecond:           10,
			BreakerFailureThreshold: 5,
			BreakerCooldown:         30 * time.Second,
		},
		Notify: NotifyConfig{
			SendTimeout:     2 * time.Second,
			PingInterval:    30 * time.Second,
			PongTimeout:     5 * time.Second,
			MetricsInterval: 15 * time.Second,
		},
		Health: HealthConfig{
			QueueDepthThreshold:    192,
			FallbackRateThreshold:  0.5,
			NotifyFailureThreshold: 0.25,
			Window:                 5 * time.Minute,
		},
		Report: ReportConfig{
			DefaultWindow: 24 * time.Hour,
			MaxWindow:     30 * 24 * time.Hour,
		},
		API: APIConfig{
			DefaultPageSize: 50,
			MaxPageSize:     500,
			RateLimitReqs:   120,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile picks the config file path from the environment override
// or the default search list.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are config paths parsed as comma-separated slices when
// supplied through environment variables.
var sliceConfigPaths = []string{
	"api.cors_origins",
}

// processSliceFields converts comma-separated env strings into slices for
// known slice-valued paths. YAML-provided slices pass through untouched.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf paths.
// Unmapped variables are skipped so arbitrary process environment does
// not pollute the configuration.
func envTransformFunc(key string) string {
	envMappings := map[string]string{
		"http_host":             "server.host",
		"http_port":             "server.port",
		"http_read_timeout":     "server.read_timeout",
		"http_write_timeout":    "server.write_timeout",
		"http_shutdown_timeout": "server.shutdown_timeout",

		"database_path":         "database.path",
		"database_busy_timeout": "database.busy_timeout",

		"watch_poll_interval":        "watcher.poll_interval",
		"watch_partial_line_timeout": "watcher.partial_line_timeout",
		"watch_max_batch_lines":      "watcher.max_batch_lines",
		"watch_dedupe_enabled":       "watcher.dedupe_enabled",
		"watch_dedupe_path":          "watcher.dedupe_path",
		"watch_dedupe_ttl":           "watcher.dedupe_ttl",

		"queue_capacity":    "queue.capacity",
		"queue_drain_grace": "queue.drain_grace",

		"parser_workers": "parser.workers",

		"analysis_workers":           "analysis.workers",
		"analysis_api_key":           "analysis.api_key",
		"analysis_base_url":          "analysis.base_url",
		"analysis_model":             "analysis.model",
		"analysis_call_timeout":      "analysis.call_timeout",
		"analysis_max_retries":       "analysis.max_retries",
		"analysis_retry_interval":    "analysis.retry_initial_interval",
		"analysis_rate_per_second":   "analysis.rate_per_second",
		"analysis_breaker_threshold": "analysis.breaker_failure_threshold",
		"analysis_breaker_cooldown":  "analysis.breaker_cooldown",

		"notify_send_timeout":     "notify.send_timeout",
		"notify_ping_interval":    "notify.ping_interval",
		"notify_pong_timeout":     "notify.pong_timeout",
		"notify_metrics_interval": "notify.metrics_interval",

		"health_queue_depth_threshold":    "health.queue_depth_threshold",
		"health_fallback_rate_threshold":  "health.fallback_rate_threshold",
		"health_notify_failure_threshold": "health.notify_failure_threshold",
		"health_window":                   "health.window",

		"report_default_window": "report.default_window",
		"report_max_window":     "report.max_window",

		"api_default_page_size": "api.default_page_size",
		"api_max_page_size":     "api.max_page_size",
		"api_rate_limit_reqs":   "api.rate_limit_reqs",
		"api_rate_limit_window": "api.rate_limit_window",
		"cors_origins":          "api.cors_origins",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
