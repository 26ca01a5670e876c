// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	workerpool "github.com/flowstate/pulse/internal/adapters/mq/worker"
	"github.com/flowstate/pulse/internal/adapters/repository"
	"github.com/flowstate/pulse/internal/adapters/sink"
	"github.com/flowstate/pulse/internal/adapters/snapshot"
	"github.com/flowstate/pulse/internal/domain/dedupe"
	"github.com/flowstate/pulse/internal/domain/model"
	"github.com/flowstate/pulse/internal/domain/normalize"
	"github.com/flowstate/pulse/internal/domain/window"
	"github.com/flowstate/pulse/pkg/logger"
	"github.com/flowstate/pulse/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultShardCount       = 8
	defaultQueueSize        = 100_000
	defaultDedupeSize       = 500_000
	defaultExportInterval   = time.Second
	defaultSnapshotInterval = 5 * time.Second
	systemMetricsInterval   = 10 * time.Second
)

// Service implements the API dependencies for the flow engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	deduper    dedupe.Deduper
	normalizer *normalize.Normalizer
	pool       *workerpool.Pool
	exporter   *sink.Writer
	snapshots  *snapshot.DB

	// Configuration
	shardCount       int
	queueSize        int
	dedupeSize       int
	windowSizes      window.Sizes
	historyLimit     int
	alertLogLimit    int
	exportDir        string
	exportInterval   time.Duration
	snapshotPath     string
	snapshotInterval time.Duration

	// State
	started bool
	cancel  context.CancelFunc
	loops   *errgroup.Group

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithShardCount sets the number of ingestion shards.
func WithShardCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.shardCount = count
		}
	}
}

// WithQueueSize sets the per-shard task queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the admission deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithFlowWindow overrides the tumbling window width for the flow streams.
func WithFlowWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.windowSizes.Flow = d
		}
	}
}

// WithHistoryLimit caps the per-user session history.
func WithHistoryLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.historyLimit = limit
		}
	}
}

// WithAlertLogLimit caps the per-user alert log.
func WithAlertLogLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.alertLogLimit = limit
		}
	}
}

// WithExportDir sets the directory for JSONL output streams.
// Empty disables the export loop.
func WithExportDir(dir string) Option {
	return func(s *Service) {
		s.exportDir = dir
	}
}

// WithExportInterval sets the cadence of the export loop.
func WithExportInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.exportInterval = d
		}
	}
}

// WithSnapshotPath sets the SQLite file for persisted aggregates.
// Empty disables persistence.
func WithSnapshotPath(path string) Option {
	return func(s *Service) {
		s.snapshotPath = path
	}
}

// WithSnapshotInterval sets the cadence of the aggregate persist loop.
func WithSnapshotInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.snapshotInterval = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		shardCount:       defaultShardCount,
		queueSize:        defaultQueueSize,
		dedupeSize:       defaultDedupeSize,
		windowSizes:      window.DefaultSizes(),
		historyLimit:     0, // repository default
		alertLogLimit:    0, // repository default
		exportInterval:   defaultExportInterval,
		snapshotInterval: defaultSnapshotInterval,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting flow engine service...")

	repoOpts := []repository.Option{
		repository.WithShardCount(s.shardCount),
		repository.WithWindowSizes(s.windowSizes),
	}
	if s.historyLimit > 0 {
		repoOpts = append(repoOpts, repository.WithHistoryLimit(s.historyLimit))
	}
	if s.alertLogLimit > 0 {
		repoOpts = append(repoOpts, repository.WithAlertLogLimit(s.alertLogLimit))
	}
	s.store = repository.NewUserStore(ctx, repoOpts...)
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.normalizer = normalize.New()

	if s.exportDir != "" {
		w, err := sink.NewWriter(s.exportDir)
		if err != nil {
			return err
		}
		s.exporter = w
	}

	if s.snapshotPath != "" {
		db, err := snapshot.Open(s.snapshotPath)
		if err != nil {
			return err
		}
		s.snapshots = db

		rows, err := db.LoadAggregates(ctx)
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			s.store.Restore(ctx, fromRows(rows))
			s.logger.Info(ctx, "restored user aggregates", logger.Int("users", len(rows)))
		}
	}

	poolOpts := []workerpool.Option{}
	if s.exporter != nil {
		poolOpts = append(poolOpts, workerpool.WithAlertFunc(s.exportAlerts))
	}
	s.pool = workerpool.NewPool(s.shardCount, s.queueSize, s.store, poolOpts...)

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(loopCtx)

	g, gctx := errgroup.WithContext(loopCtx)
	s.loops = g
	if s.exporter != nil {
		g.Go(func() error {
			s.runExportLoop(gctx)
			return nil
		})
	}
	if s.snapshots != nil {
		g.Go(func() error {
			s.runPersistLoop(gctx)
			return nil
		})
	}
	g.Go(func() error {
		s.runSystemMetricsLoop(gctx)
		return nil
	})

	s.started = true
	s.logger.Info(ctx, "flow engine service started",
		logger.Int("shards", s.shardCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Duration("flowWindow", s.windowSizes.Flow),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping flow engine service...")

	if s.pool != nil {
		_ = s.pool.Shutdown(ctx)
	}

	if s.cancel != nil {
		s.cancel()
	}
	if s.loops != nil {
		_ = s.loops.Wait()
	}

	// Final persist so a clean shutdown loses nothing.
	if s.snapshots != nil {
		s.persistAggregates(ctx)
		_ = s.snapshots.Close()
	}
	if s.exporter != nil {
		_ = s.exporter.Close()
	}

	s.started = false
	s.logger.Info(ctx, "flow engine service stopped")
}

// SeenAndRecord atomically checks if a record id was seen and records it if
// not. Returns true if the id was already seen, false if newly recorded.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordEventDuplicate()
	}
	return seen
}

// Unrecord removes a record ID from the seen list, allowing it to be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// SubmitEvent normalizes an activity event and dispatches it to its shard.
// Returns false on backpressure.
func (s *Service) SubmitEvent(ctx context.Context, raw normalize.RawEvent) bool {
	ev, err := s.normalizer.Event(raw)
	if err != nil {
		// Handlers validate before submitting; a failure here means the
		// record bypassed the API layer.
		metrics.RecordEventInvalid()
		s.logger.Warn(ctx, "rejected unnormalizable event",
			logger.String("userID", raw.UserID),
			logger.Error(err),
		)
		return true
	}
	return s.pool.Dispatch(ctx, taskForEvent(ev))
}

// SubmitSession normalizes a session record and dispatches it to its shard.
// Returns false on backpressure.
func (s *Service) SubmitSession(ctx context.Context, raw normalize.RawSession) bool {
	rec, err := s.normalizer.Session(raw)
	if err != nil {
		metrics.RecordEventInvalid()
		s.logger.Warn(ctx, "rejected unnormalizable session",
			logger.String("userID", raw.UserID),
			logger.Error(err),
		)
		return true
	}
	return s.pool.Dispatch(ctx, taskForSession(rec))
}

// FlowVector returns the latest feature vector snapshot for a user.
func (s *Service) FlowVector(ctx context.Context, userID string) (model.FeatureVector, bool) {
	return s.store.FeatureVector(ctx, userID)
}

// UserInsights returns the latest classification snapshot for a user.
func (s *Service) UserInsights(ctx context.Context, userID string) (model.Classification, bool) {
	return s.store.Classification(ctx, userID)
}

// UserPredictions returns the latest prediction snapshot for a user.
func (s *Service) UserPredictions(ctx context.Context, userID string) (model.Predictions, bool) {
	return s.store.Predictions(ctx, userID)
}

// UserAlerts returns up to limit alerts for one user, newest first.
func (s *Service) UserAlerts(ctx context.Context, userID string, limit int) []model.Alert {
	return s.store.Alerts(ctx, userID, limit)
}

// RecentAlerts returns up to limit alerts across all users, newest first.
func (s *Service) RecentAlerts(ctx context.Context, limit int) []model.Alert {
	return s.store.AllAlerts(ctx, limit)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"shardCount":  s.shardCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"flowWindowS": int(s.windowSizes.Flow.Seconds()),
	}

	if s.started {
		depth := s.pool.Depth(ctx)
		users := s.store.Count(ctx)

		stats["queueDepth"] = depth
		stats["trackedUsers"] = users

		metrics.UpdateQueueSize(depth)
		metrics.UpdateTrackedUsers(users)
	}

	return stats
}

// exportAlerts forwards fired alerts to the JSONL sink. Runs on the shard
// worker goroutine.
func (s *Service) exportAlerts(ctx context.Context, alerts []model.Alert) {
	for _, a := range alerts {
		if err := s.exporter.WriteAlert(ctx, a); err != nil {
			s.logger.Error(ctx, "alert export failed", logger.Error(err))
			return
		}
	}
}

// runExportLoop periodically publishes flow and classification snapshots to
// the JSONL output streams.
func (s *Service) runExportLoop(ctx context.Context) {
	ticker := time.NewTicker(s.exportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.exportSnapshots(ctx)
		}
	}
}

func (s *Service) exportSnapshots(ctx context.Context) {
	for _, agg := range s.store.Aggregates(ctx) {
		if err := s.exporter.WriteUserStats(ctx, agg.UserID, agg.LastFlowScore); err != nil {
			s.logger.Error(ctx, "user stats export failed", logger.Error(err))
			return
		}
	}
	for _, cls := range s.store.Classifications(ctx) {
		if err := s.exporter.WriteProductivity(ctx, cls); err != nil {
			s.logger.Error(ctx, "productivity export failed", logger.Error(err))
			return
		}
		if cls.BurnoutRisk != model.BurnoutLow {
			if err := s.exporter.WriteBurnout(ctx, cls.UserID, cls.BurnoutRisk); err != nil {
				s.logger.Error(ctx, "burnout export failed", logger.Error(err))
				return
			}
		}
	}
}

// runPersistLoop periodically writes user aggregates to the snapshot store.
func (s *Service) runPersistLoop(ctx context.Context) {
	ticker := time.NewTicker(s.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.persistAggregates(ctx)
		}
	}
}

func (s *Service) persistAggregates(ctx context.Context) {
	aggs := s.store.Aggregates(ctx)
	if len(aggs) == 0 {
		return
	}
	start := time.Now()
	if err := s.snapshots.UpsertAggregates(ctx, toRows(aggs, start)); err != nil {
		metrics.RecordSnapshotError()
		s.logger.Error(ctx, "aggregate persist failed", logger.Error(err))
		return
	}
	metrics.RecordSnapshotPersist(float64(time.Since(start).Milliseconds()))
}

// runSystemMetricsLoop refreshes coarse process health gauges.
func (s *Service) runSystemMetricsLoop(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			metrics.UpdateSystemMemoryUsage(ms.Alloc)
			metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
		}
	}
}
