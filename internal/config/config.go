// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

// Package config holds all application configuration for Replay.
//
// Configuration loading order (Koanf v2):
//  1. Defaults: built-in sensible defaults for every setting
//  2. Config file: optional YAML file (config.yaml, or CONFIG_PATH)
//  3. Environment variables: override any setting (SERVER_PORT, STATS_FLUSH_INTERVAL, ...)
//
// Config is immutable after Load() and safe for concurrent reads.
package config

import "time"

// Config is the root configuration object.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Stats    StatsConfig    `koanf:"stats"`
	Metadata MetadataConfig `koanf:"metadata"`
	Notify   NotifyConfig   `koanf:"notify"`
	WAL      WALConfig      `koanf:"wal"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitReqs requests per RateLimitWindow, keyed by client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// DatabaseConfig configures the embedded DuckDB store.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	// Threads for DuckDB; 0 means runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// StatsConfig configures the ingestion/flush/aggregation engine.
type StatsConfig struct {
	// FlushInterval is elapsed wall time since the last successful flush
	// before the periodic flusher runs again. An explicit flush resets it.
	FlushInterval time.Duration `koanf:"flush_interval"`

	// TailWindow is the tail-completion threshold in seconds: events ending
	// within this many seconds of the track length are stored as complete.
	TailWindow float64 `koanf:"tail_window"`

	// HistoryLimit is the default shuffle-history cap, used when the user's
	// shuffle config carries no history_limit of its own.
	HistoryLimit int `koanf:"history_limit"`
}

// MetadataConfig configures the track-duration resolver collaborator.
type MetadataConfig struct {
	// BaseURL of the metadata lookup service. Empty disables remote lookup;
	// every resolution then degrades to a zero length.
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`

	CacheSize int           `koanf:"cache_size"`
	CacheTTL  time.Duration `koanf:"cache_ttl"`

	// Circuit breaker settings for the lookup client.
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
}

// NotifyConfig configures the fire-and-forget notification sink.
type NotifyConfig struct {
	// WebhookURL receives free-text log lines. Empty disables the sink.
	WebhookURL string `koanf:"webhook_url"`
	QueueSize  int    `koanf:"queue_size"`
	// RatePerSecond caps outbound posts; excess lines are dropped, never
	// queued behind the pipeline.
	RatePerSecond float64       `koanf:"rate_per_second"`
	Timeout       time.Duration `koanf:"timeout"`
}

// WALConfig configures the optional durable buffer log. Disabled by default:
// the documented delivery guarantee for buffered reports is at-most-once,
// and the WAL is the opt-in strengthening of that guarantee.
type WALConfig struct {
	Enabled bool   `koanf:"enabled"`
	Dir     string `koanf:"dir"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. These are applied
// first, then overridden by config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            9464,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   300,
			RateLimitWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Path:      "/data/replay.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = runtime.NumCPU()
		},
		Stats: StatsConfig{
			FlushInterval: 300 * time.Second,
			TailWindow:    10.0,
			HistoryLimit:  50,
		},
		Metadata: MetadataConfig{
			BaseURL:                 "",
			Timeout:                 5 * time.Second,
			CacheSize:               4096,
			CacheTTL:                12 * time.Hour,
			BreakerFailureThreshold: 5,
			BreakerTimeout:          30 * time.Second,
		},
		Notify: NotifyConfig{
			WebhookURL:    "",
			QueueSize:     256,
			RatePerSecond: 1.0,
			Timeout:       10 * time.Second,
		},
		WAL: WALConfig{
			Enabled: false,
			Dir:     "/data/wal",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
