// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"context"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// ShardCount configures the number of ingestion shards. One worker
	// goroutine and one bounded queue per shard.
	ShardCount int `koanf:"shard_count"`

	// QueueSize bounds each shard's in-memory task queue.
	QueueSize int `koanf:"queue_size"`

	// DedupeSize sets the size of the admission deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// FlowWindowSeconds sets the tumbling window width for the flow streams.
	FlowWindowSeconds int `koanf:"flow_window_seconds"`

	// HistoryLimit caps the per-user session history ring.
	HistoryLimit int `koanf:"history_limit"`

	// AlertLogLimit caps the per-user alert log.
	AlertLogLimit int `koanf:"alert_log_limit"`

	// ExportDir is the directory for JSONL output streams.
	ExportDir string `koanf:"export_dir"`

	// ExportIntervalMS sets the cadence of the periodic export loop.
	ExportIntervalMS int `koanf:"export_interval_ms"`

	// SnapshotPath is the SQLite file for persisted user aggregates.
	// Empty disables persistence.
	SnapshotPath string `koanf:"snapshot_path"`

	// SnapshotIntervalMS sets the cadence of the aggregate persist loop.
	SnapshotIntervalMS int `koanf:"snapshot_interval_ms"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention; it is reserved for future use.
func New(_ context.Context) *Config {
	c := &Config{
		LogLevel:           "info",
		Addr:               ":9080",
		ShardCount:         8,
		QueueSize:          100_000,
		DedupeSize:         500_000,
		FlowWindowSeconds:  300,
		HistoryLimit:       100,
		AlertLogLimit:      200,
		ExportDir:          "./data/exports",
		ExportIntervalMS:   1_000,
		SnapshotPath:       "./data/pulse.db",
		SnapshotIntervalMS: 5_000,
	}
	return c
}
