package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/flowstate/pulse/internal/loadgen"
)

// Default configuration constants.
const (
	defaultNumUsers        = 25
	defaultEventsPerUser   = 400
	defaultSessionsPerUser = 10
	defaultWorkerFactor    = 2 // multiplier for runtime.NumCPU()
	defaultTimeout         = 30 * time.Second
	defaultRunTimeout      = 10 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		users    = flag.Int("users", defaultNumUsers, "Number of simulated users")
		events   = flag.Int("events", defaultEventsPerUser, "Activity events per user")
		sessions = flag.Int("sessions", defaultSessionsPerUser, "Completed sessions per user")
		workers  = flag.Int("workers", runtime.NumCPU()*defaultWorkerFactor, "Number of concurrent submitters")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &loadgen.Config{
		BaseURL:         *baseURL,
		NumUsers:        *users,
		EventsPerUser:   *events,
		SessionsPerUser: *sessions,
		Workers:         *workers,
		Timeout:         *timeout,
		Verbose:         *verbose,
	}

	if _, err := loadgen.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("load generation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
