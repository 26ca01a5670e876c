package repository

import (
	"time"

	"github.com/flowstate/pulse/internal/domain/window"
)

// Option applies a configuration option to the UserStore.
type Option func(*UserStore)

// WithShardCount sets the number of user-map partitions. It must match the
// worker pool's shard count so that per-user mutation stays single-writer.
func WithShardCount(n int) Option {
	return func(s *UserStore) {
		if n > 0 {
			s.setShardCount(n)
		}
	}
}

// WithWindowSizes overrides the tumbling window widths.
func WithWindowSizes(sizes window.Sizes) Option {
	return func(s *UserStore) {
		s.sizes = sizes
	}
}

// WithHistoryLimit caps the per-user session history.
func WithHistoryLimit(limit int) Option {
	return func(s *UserStore) {
		if limit > 0 {
			s.historyLimit = limit
		}
	}
}

// WithAlertLogLimit caps the per-user alert log.
func WithAlertLogLimit(limit int) Option {
	return func(s *UserStore) {
		if limit > 0 {
			s.alertLogLimit = limit
		}
	}
}

// WithClock overrides the evaluation clock. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *UserStore) {
		if now != nil {
			s.now = now
		}
	}
}
