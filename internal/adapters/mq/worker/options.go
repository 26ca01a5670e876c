// Package worker runs the sharded ingestion pipeline.
package worker

import (
	"github.com/flowstate/pulse/pkg/logger"
)

// Option applies a configuration option to a shard worker.
type Option func(*shardWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *shardWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *shardWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithAlertFunc registers a callback invoked with alerts fired while a task
// is applied. The callback runs on the shard worker goroutine and must not
// block.
func WithAlertFunc(fn AlertFunc) Option {
	return func(w *shardWorker) {
		if fn != nil {
			w.onAlerts = fn
		}
	}
}
