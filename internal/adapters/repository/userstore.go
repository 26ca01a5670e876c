package repository

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowstate/pulse/internal/domain/classify"
	"github.com/flowstate/pulse/internal/domain/feature"
	"github.com/flowstate/pulse/internal/domain/history"
	"github.com/flowstate/pulse/internal/domain/model"
	"github.com/flowstate/pulse/internal/domain/predict"
	"github.com/flowstate/pulse/internal/domain/rules"
	"github.com/flowstate/pulse/internal/domain/window"
	"github.com/flowstate/pulse/pkg/metrics"
)

// Default store configuration constants.
const (
	defaultShardCount = 8
)

// userState bundles everything owned for one user. Mutation is serialized by
// the worker that owns the user's shard; readers only touch the atomic
// snapshot pointers.
type userState struct {
	agg     *window.Aggregator
	rules   *rules.Engine
	history *history.Log

	vector         atomic.Pointer[model.FeatureVector]
	classification atomic.Pointer[model.Classification]
	predictions    atomic.Pointer[model.Predictions]
	alerts         atomic.Pointer[[]model.Alert]
	stats          atomic.Pointer[history.CumulativeStats]
}

// stateShard is one partition of the user map. The mutex guards only map
// membership, not per-user state.
type stateShard struct {
	mu    sync.RWMutex
	users map[string]*userState
}

// UserStore implements Store with a sharded in-memory user map.
type UserStore struct {
	shards        []*stateShard
	sizes         window.Sizes
	historyLimit  int
	alertLogLimit int
	now           func() time.Time
}

// NewUserStore constructs a UserStore with configuration options.
func NewUserStore(ctx context.Context, opts ...Option) *UserStore {
	s := &UserStore{
		sizes:         window.DefaultSizes(),
		historyLimit:  history.DefaultLimit,
		alertLogLimit: rules.DefaultAlertLogLimit,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.shards) == 0 {
		s.setShardCount(defaultShardCount)
	}
	return s
}

func (s *UserStore) setShardCount(n int) {
	s.shards = make([]*stateShard, n)
	for i := range s.shards {
		s.shards[i] = &stateShard{users: make(map[string]*userState)}
	}
}

func (s *UserStore) shardFor(userID string) *stateShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

func (s *UserStore) get(userID string) (*userState, bool) {
	sh := s.shardFor(userID)
	sh.mu.RLock()
	st, ok := sh.users[userID]
	sh.mu.RUnlock()
	return st, ok
}

func (s *UserStore) getOrCreate(userID string) *userState {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	st, ok := sh.users[userID]
	if !ok {
		st = &userState{
			agg:     window.New(s.sizes),
			rules:   rules.New(userID, rules.WithAlertLogLimit(s.alertLogLimit)),
			history: history.NewLog(s.historyLimit),
		}
		sh.users[userID] = st
	}
	sh.mu.Unlock()

	if !ok {
		metrics.UpdateTrackedUsers(s.Count(context.Background()))
	}
	return st
}

// streamsFor maps an event type onto the metric streams it feeds.
func streamsFor(t model.EventType) []window.Stream {
	switch t {
	case model.EventKeystroke:
		return []window.Stream{window.StreamKeystroke, window.StreamKeystrokePerMinute}
	case model.EventBlur:
		return []window.Stream{window.StreamDistraction}
	case model.EventTabSwitch:
		return []window.Stream{window.StreamDistraction, window.StreamTabSwitch}
	case model.EventTimerTick:
		return []window.Stream{window.StreamSessionDuration}
	default:
		return nil
	}
}

// ApplyEvent implements Store.ApplyEvent. It must only be called from the
// worker owning the user's shard.
func (s *UserStore) ApplyEvent(ctx context.Context, ev model.Event) ([]model.Alert, error) {
	st := s.getOrCreate(ev.UserID)

	applied := false
	late := false
	replayed := false
	for _, stream := range streamsFor(ev.Type) {
		switch st.agg.Apply(stream, ev) {
		case window.Applied:
			applied = true
		case window.Late:
			late = true
		case window.Duplicate:
			replayed = true
		}
	}
	if !applied {
		switch {
		case late:
			metrics.RecordLateEventDropped()
		case replayed:
			metrics.RecordReplaySuppressed()
		}
		return nil, nil
	}

	now := s.now()
	vec := feature.Compose(ev.UserID, st.agg, now)
	st.vector.Store(&vec)

	in := rules.WindowInput{
		Vector:       vec,
		FlowIndex:    st.agg.IndexFor(window.StreamKeystroke, ev.EventTime),
		BlurObserved: ev.Type == model.EventBlur,
	}
	if b, ok := st.agg.Current(window.StreamTabSwitch); ok {
		in.TabSwitchCount, in.TabSwitchIndex = b.Count, b.Index
	}
	if b, ok := st.agg.Current(window.StreamKeystrokePerMinute); ok {
		in.VelocityCount, in.VelocityIndex = b.Count, b.Index
	}

	alerts := st.rules.EvaluateWindow(in, now)
	if len(alerts) > 0 {
		s.publishAlerts(st)
	}
	return alerts, nil
}

// ApplySession implements Store.ApplySession. Same ownership rule as
// ApplyEvent.
func (s *UserStore) ApplySession(ctx context.Context, rec model.SessionRecord) ([]model.Alert, error) {
	st := s.getOrCreate(rec.UserID)
	now := s.now()

	st.history.Append(rec)
	sessions := st.history.Sessions()
	stats := st.history.Stats()
	st.stats.Store(&stats)

	cls := s.classifyStats(rec.UserID, stats)
	st.classification.Store(&cls)

	preds := predict.Predict(rec.UserID, sessions, now)
	st.predictions.Store(&preds)

	alerts := st.rules.EvaluateSession(rules.SessionInput{
		Latest:   rec,
		Sessions: sessions,
		Streak:   preds.Streak,
		Now:      now,
	})
	if len(alerts) > 0 {
		s.publishAlerts(st)
	}
	return alerts, nil
}

func (s *UserStore) classifyStats(userID string, stats history.CumulativeStats) model.Classification {
	return classify.Classify(userID, classify.Stats{
		TotalSessions:   stats.TotalSessions,
		AvgFocusScore:   stats.AvgFocus(),
		AvgQualityScore: stats.AvgQuality(),
		TotalDuration:   stats.TotalDuration,
		Distractions:    stats.TotalDistractions,
		MaxFocus:        stats.MaxFocus,
		MinFocus:        stats.MinFocus,
	})
}

func (s *UserStore) publishAlerts(st *userState) {
	snap := st.rules.Snapshot()
	st.alerts.Store(&snap)
}

// FeatureVector implements Store.FeatureVector.
func (s *UserStore) FeatureVector(ctx context.Context, userID string) (model.FeatureVector, bool) {
	st, ok := s.get(userID)
	if !ok {
		return model.FeatureVector{}, false
	}
	v := st.vector.Load()
	if v == nil {
		return model.FeatureVector{}, false
	}
	return *v, true
}

// Classification implements Store.Classification.
func (s *UserStore) Classification(ctx context.Context, userID string) (model.Classification, bool) {
	st, ok := s.get(userID)
	if !ok {
		return model.Classification{}, false
	}
	c := st.classification.Load()
	if c == nil {
		return model.Classification{}, false
	}
	return *c, true
}

// Predictions implements Store.Predictions.
func (s *UserStore) Predictions(ctx context.Context, userID string) (model.Predictions, bool) {
	st, ok := s.get(userID)
	if !ok {
		return model.Predictions{}, false
	}
	p := st.predictions.Load()
	if p == nil {
		return model.Predictions{}, false
	}
	return *p, true
}

// Alerts implements Store.Alerts; newest first.
func (s *UserStore) Alerts(ctx context.Context, userID string, limit int) []model.Alert {
	st, ok := s.get(userID)
	if !ok {
		return nil
	}
	return newestFirst(st.loadAlerts(), limit)
}

// AllAlerts implements Store.AllAlerts; newest first across all users.
func (s *UserStore) AllAlerts(ctx context.Context, limit int) []model.Alert {
	var all []model.Alert
	s.eachUser(func(_ string, st *userState) {
		all = append(all, st.loadAlerts()...)
	})
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].TriggeredAt.After(all[j].TriggeredAt)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

// Classifications implements Store.Classifications.
func (s *UserStore) Classifications(ctx context.Context) []model.Classification {
	var out []model.Classification
	s.eachUser(func(_ string, st *userState) {
		if c := st.classification.Load(); c != nil {
			out = append(out, *c)
		}
	})
	return out
}

// Aggregates implements Store.Aggregates.
func (s *UserStore) Aggregates(ctx context.Context) []Aggregate {
	var out []Aggregate
	s.eachUser(func(userID string, st *userState) {
		agg := Aggregate{UserID: userID}
		if p := st.stats.Load(); p != nil {
			agg.Stats = *p
		}
		if v := st.vector.Load(); v != nil {
			agg.LastFlowScore = v.FlowScore
		}
		if agg.Stats.TotalSessions == 0 && agg.LastFlowScore == 0 {
			return
		}
		out = append(out, agg)
	})
	return out
}

// Restore implements Store.Restore. Restored users get their cumulative stats
// and a classification snapshot back; windows, history, and alerts restart
// empty.
func (s *UserStore) Restore(ctx context.Context, aggs []Aggregate) {
	for _, agg := range aggs {
		if agg.UserID == "" {
			continue
		}
		st := s.getOrCreate(agg.UserID)
		st.history.Restore(agg.Stats)
		stats := agg.Stats
		st.stats.Store(&stats)
		if agg.Stats.TotalSessions > 0 {
			cls := s.classifyStats(agg.UserID, agg.Stats)
			st.classification.Store(&cls)
		}
	}
}

// Count implements Store.Count.
func (s *UserStore) Count(ctx context.Context) int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.users)
		sh.mu.RUnlock()
	}
	return n
}

// eachUser visits every user under the shard read locks. The callback must
// only touch snapshot pointers and other read-safe state.
func (s *UserStore) eachUser(fn func(userID string, st *userState)) {
	for _, sh := range s.shards {
		sh.mu.RLock()
		for id, st := range sh.users {
			fn(id, st)
		}
		sh.mu.RUnlock()
	}
}

// loadAlerts returns the published alert snapshot; nil until a rule fires.
func (st *userState) loadAlerts() []model.Alert {
	if p := st.alerts.Load(); p != nil {
		return *p
	}
	return nil
}
