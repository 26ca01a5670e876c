// Package loadgen generates synthetic activity traffic against a running
// engine and reports admission statistics.
package loadgen

import "time"

// Config controls a load generation run.
type Config struct {
	// BaseURL of the target service, e.g. http://localhost:9080.
	BaseURL string

	// NumUsers is the number of simulated users.
	NumUsers int

	// EventsPerUser is the number of activity events per user.
	EventsPerUser int

	// SessionsPerUser is the number of completed sessions per user.
	SessionsPerUser int

	// Workers is the number of concurrent submitters.
	Workers int

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// Verbose enables per-batch progress logging.
	Verbose bool
}

// Stats accumulates the outcome of a run.
type Stats struct {
	EventsGenerated   int
	SessionsGenerated int
	Submitted         int
	Accepted          int
	Duplicate         int
	Failed            int
	Elapsed           time.Duration
}
