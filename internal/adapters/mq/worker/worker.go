// Package worker runs the sharded ingestion pipeline. Tasks are routed to a
// shard by hashing the user ID, so all mutations for one user are applied by
// a single goroutine while different users progress in parallel.
package worker

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/flowstate/pulse/internal/adapters/mq/queue"
	"github.com/flowstate/pulse/internal/domain/model"
	"github.com/flowstate/pulse/pkg/logger"
	"github.com/flowstate/pulse/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultShardCount   = 8
	poolShutdownTimeout = 30 * time.Second
)

// Applier folds tasks into per-user engine state. Calls for one user are
// always made from the same shard worker.
type Applier interface {
	ApplyEvent(ctx context.Context, ev model.Event) ([]model.Alert, error)
	ApplySession(ctx context.Context, rec model.SessionRecord) ([]model.Alert, error)
}

// AlertFunc receives alerts fired while applying a task.
type AlertFunc func(ctx context.Context, alerts []model.Alert)

// Worker processes the tasks of a single shard.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	// It will process any remaining tasks before stopping.
	Shutdown(ctx context.Context) error
}

// shardWorker implements Worker for one shard's queue.
type shardWorker struct {
	queue    queue.Queue
	applier  Applier
	onAlerts AlertFunc
	name     string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// newShardWorker creates a worker bound to one shard queue.
func newShardWorker(q queue.Queue, applier Applier, opts ...Option) *shardWorker {
	w := &shardWorker{
		queue:    q,
		applier:  applier,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *shardWorker) Run(ctx context.Context) {
	defer func() {
		close(w.done)
	}()

	taskChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case task, ok := <-taskChan:
			if !ok {
				return
			}

			if err := w.processTask(ctx, task); err != nil {
				w.logger.Error(ctx, "error processing task", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *shardWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processTask applies a single task to the store and forwards fired alerts.
func (w *shardWorker) processTask(ctx context.Context, task queue.Task) error {
	start := time.Now()
	defer func() {
		latency := time.Since(start).Milliseconds()
		metrics.RecordWorkerProcessingLatency(float64(latency))
	}()

	var (
		alerts []model.Alert
		err    error
	)
	switch {
	case task.Event != nil:
		alerts, err = w.applier.ApplyEvent(ctx, *task.Event)
		if err != nil {
			metrics.RecordWorkerError()
			w.logger.Error(ctx, "event apply failed",
				logger.String("userID", task.Event.UserID),
				logger.Error(err),
			)
			return fmt.Errorf("apply event for %s: %w", task.Event.UserID, err)
		}
		metrics.RecordEventProcessed()
	case task.Session != nil:
		alerts, err = w.applier.ApplySession(ctx, *task.Session)
		if err != nil {
			metrics.RecordWorkerError()
			w.logger.Error(ctx, "session apply failed",
				logger.String("userID", task.Session.UserID),
				logger.Error(err),
			)
			return fmt.Errorf("apply session for %s: %w", task.Session.UserID, err)
		}
		metrics.RecordSessionProcessed()
	default:
		return nil
	}

	if len(alerts) > 0 {
		for _, a := range alerts {
			metrics.RecordAlertFired(string(a.Kind))
		}
		if w.onAlerts != nil {
			w.onAlerts(ctx, alerts)
		}
	}
	return nil
}

// Pool manages one queue and one worker per shard.
type Pool struct {
	queues  []*queue.InMemoryQueue
	workers []*shardWorker

	logger logger.Logger
}

// NewPool creates a sharded worker pool. Each shard gets its own bounded
// queue and a single consuming goroutine.
func NewPool(shardCount, queueCapacity int, applier Applier, opts ...Option) *Pool {
	if shardCount < 1 {
		shardCount = defaultShardCount
	}

	pool := &Pool{
		queues:  make([]*queue.InMemoryQueue, shardCount),
		workers: make([]*shardWorker, shardCount),
		logger:  logger.Get().Named("worker-pool"),
	}

	for i := 0; i < shardCount; i++ {
		q := queue.NewInMemoryQueue(queue.WithCapacity(queueCapacity))
		pool.queues[i] = q
		pool.workers[i] = newShardWorker(
			q,
			applier,
			append([]Option{WithName("shard-" + strconv.Itoa(i))}, opts...)...,
		)
	}

	metrics.UpdateWorkerActiveCount(shardCount)

	return pool
}

// Start starts all shard workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Dispatch routes a task to its owning shard queue.
// Returns false when the shard queue is full or closed.
func (p *Pool) Dispatch(ctx context.Context, task queue.Task) bool {
	return p.queues[p.shardFor(task.UserID())].Enqueue(ctx, task)
}

// Depth returns the total number of queued tasks across all shards.
func (p *Pool) Depth(ctx context.Context) int {
	n := 0
	for _, q := range p.queues {
		n += q.Len(ctx)
	}
	return n
}

func (p *Pool) shardFor(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(len(p.queues)))
}

// Shutdown closes the shard queues and waits for workers to drain them.
func (p *Pool) Shutdown(ctx context.Context) error {
	for _, q := range p.queues {
		if err := q.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("shard", i))
		}
	}

	return nil
}
