// Package repository owns all per-user engine state and exposes it through
// non-blocking snapshot reads.
package repository

import (
	"context"

	"github.com/flowstate/pulse/internal/domain/history"
	"github.com/flowstate/pulse/internal/domain/model"
)

// Aggregate is the persistable last-known summary for one user.
type Aggregate struct {
	UserID        string
	Stats         history.CumulativeStats
	LastFlowScore float64
}

// Store provides write access for the worker path and snapshot reads for the
// query path.
type Store interface {
	// ApplyEvent folds one normalized event into the user's windows, refreshes
	// the feature vector, and returns any alerts fired.
	ApplyEvent(ctx context.Context, ev model.Event) ([]model.Alert, error)

	// ApplySession appends one session record to the user's history, refreshes
	// classification and predictions, and returns any alerts fired.
	ApplySession(ctx context.Context, rec model.SessionRecord) ([]model.Alert, error)

	// FeatureVector returns the latest feature vector snapshot.
	// The boolean is false when the user has no event data yet.
	FeatureVector(ctx context.Context, userID string) (model.FeatureVector, bool)

	// Classification returns the latest classification snapshot.
	Classification(ctx context.Context, userID string) (model.Classification, bool)

	// Predictions returns the latest predictor snapshot.
	Predictions(ctx context.Context, userID string) (model.Predictions, bool)

	// Alerts returns up to limit alerts for one user, newest first.
	Alerts(ctx context.Context, userID string, limit int) []model.Alert

	// AllAlerts returns up to limit alerts across all users, newest first.
	AllAlerts(ctx context.Context, limit int) []model.Alert

	// Classifications returns the latest classification snapshot of every
	// user that has one. Used by the export loop.
	Classifications(ctx context.Context) []model.Classification

	// Aggregates returns the persistable summary of every tracked user.
	Aggregates(ctx context.Context) []Aggregate

	// Restore seeds users from persisted aggregates at startup.
	Restore(ctx context.Context, aggs []Aggregate)

	// Count returns the number of tracked users.
	Count(ctx context.Context) int
}

// newestFirst reverses an oldest-first alert log into a newest-first slice,
// truncated to limit when positive.
func newestFirst(log []model.Alert, limit int) []model.Alert {
	n := len(log)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.Alert, 0, n)
	for i := len(log) - 1; i >= len(log)-n; i-- {
		out = append(out, log[i])
	}
	return out
}
