package loadgen

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// task is one payload to submit, either an event or a session.
type task struct {
	url  string
	body any
}

// Run generates synthetic traffic per the config, submits it, and spot-checks
// the read endpoints for one user.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}

	users := generateUsers(cfg.NumUsers)

	var tasks []task
	for _, u := range users {
		for _, ev := range generateEvents(u, cfg.EventsPerUser) {
			tasks = append(tasks, task{url: cfg.BaseURL + "/events", body: ev})
		}
		for _, sess := range generateSessions(u, cfg.SessionsPerUser) {
			tasks = append(tasks, task{url: cfg.BaseURL + "/sessions", body: sess})
		}
	}
	stats.EventsGenerated = cfg.NumUsers * cfg.EventsPerUser
	stats.SessionsGenerated = cfg.NumUsers * cfg.SessionsPerUser

	log.Printf("submitting %d payloads for %d users with %d workers",
		len(tasks), len(users), cfg.Workers)

	client := newHTTPClient(cfg.Timeout)

	var accepted, duplicate, failed, submitted int64

	taskChan := make(chan task, cfg.Workers*2)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range taskChan {
				select {
				case <-ctx.Done():
					return
				default:
				}
				atomic.AddInt64(&submitted, 1)
				switch client.post(ctx, t.url, t.body) {
				case resultAccepted:
					atomic.AddInt64(&accepted, 1)
				case resultDuplicate:
					atomic.AddInt64(&duplicate, 1)
				case resultFailed:
					atomic.AddInt64(&failed, 1)
				}
			}
		}()
	}

	go func() {
		defer close(taskChan)
		for _, t := range tasks {
			select {
			case <-ctx.Done():
				return
			case taskChan <- t:
			}
		}
	}()

	wg.Wait()

	stats.Submitted = int(atomic.LoadInt64(&submitted))
	stats.Accepted = int(atomic.LoadInt64(&accepted))
	stats.Duplicate = int(atomic.LoadInt64(&duplicate))
	stats.Failed = int(atomic.LoadInt64(&failed))
	stats.Elapsed = time.Since(start)

	log.Printf("submission complete: accepted=%d duplicate=%d failed=%d in %s",
		stats.Accepted, stats.Duplicate, stats.Failed, stats.Elapsed)

	if len(users) > 0 {
		spotCheck(ctx, client, cfg, users[0].id)
	}

	return stats, nil
}

// spotCheck queries the read endpoints for one user and logs the results.
// Snapshots are published asynchronously, so a short settle delay comes first.
func spotCheck(ctx context.Context, client *httpClient, cfg *Config, userID string) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(2 * time.Second):
	}

	var flow map[string]any
	if err := client.get(ctx, cfg.BaseURL+"/flow/"+userID, &flow); err != nil {
		log.Printf("flow check for %s failed: %v", userID, err)
	} else if cfg.Verbose {
		log.Printf("flow for %s: %v", userID, flow)
	}

	var insights map[string]any
	if err := client.get(ctx, cfg.BaseURL+"/insights/"+userID, &insights); err != nil {
		log.Printf("insights check for %s failed: %v", userID, err)
	} else if cfg.Verbose {
		log.Printf("insights for %s: %v", userID, insights)
	}

	var alerts map[string]any
	if err := client.get(ctx, cfg.BaseURL+"/alerts?user_id="+userID, &alerts); err != nil {
		log.Printf("alerts check for %s failed: %v", userID, err)
	} else if cfg.Verbose {
		log.Printf("alerts for %s: %v", userID, alerts)
	}
}
