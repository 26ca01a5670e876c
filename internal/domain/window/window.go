// Package window maintains per-user tumbling windows with incremental
// reducers. An Aggregator owns the buckets for a single user across all named
// metric streams. It is not safe for concurrent use; the caller serializes
// all updates for one user (per-shard worker ownership).
package window

import (
	"time"

	"github.com/flowstate/pulse/internal/domain/model"
)

// Stream names a per-user metric stream.
type Stream string

// Metric streams. The first three feed the feature vector; the last two feed
// rule-specific detection windows.
const (
	StreamKeystroke          Stream = "keystroke"
	StreamDistraction        Stream = "distraction"
	StreamSessionDuration    Stream = "session_duration"
	StreamTabSwitch          Stream = "tab_switch"
	StreamKeystrokePerMinute Stream = "keystroke_per_minute"
)

// Default window sizes. Flow streams share one tumbling window; the detection
// streams use the literal widths from the rule table.
const (
	DefaultFlowWindow          = 5 * time.Minute
	DefaultContextSwitchWindow = 2 * time.Minute
	DefaultVelocityWindow      = 1 * time.Minute
)

// Sizes carries the stream-specific window widths.
type Sizes struct {
	Flow          time.Duration
	ContextSwitch time.Duration
	Velocity      time.Duration
}

// DefaultSizes returns the default window widths.
func DefaultSizes() Sizes {
	return Sizes{
		Flow:          DefaultFlowWindow,
		ContextSwitch: DefaultContextSwitchWindow,
		Velocity:      DefaultVelocityWindow,
	}
}

func (s Sizes) forStream(stream Stream) time.Duration {
	switch stream {
	case StreamTabSwitch:
		return s.ContextSwitch
	case StreamKeystrokePerMinute:
		return s.Velocity
	default:
		return s.Flow
	}
}

// Bucket holds the running reducer state for one (stream, index) pair.
// The key is immutable; reducer state mutates in place.
type Bucket struct {
	Index      int64
	Count      int
	Sum        float64
	Min        float64
	Max        float64
	LastUpdate time.Time
}

func (b *Bucket) apply(ev model.Event) {
	if b.Count == 0 || ev.Value < b.Min {
		b.Min = ev.Value
	}
	if b.Count == 0 || ev.Value > b.Max {
		b.Max = ev.Value
	}
	b.Count++
	b.Sum += ev.Value
	if ev.EventTime.After(b.LastUpdate) {
		b.LastUpdate = ev.EventTime
	}
}

// Result classifies the outcome of applying an event to a stream.
type Result int

// Apply outcomes.
const (
	// Applied means the reducer state was updated.
	Applied Result = iota
	// Duplicate means the arrival sequence was already applied; no-op.
	Duplicate
	// Late means the target bucket was already evicted; the event is dropped
	// without mutating any reducer.
	Late
)

// streamState tracks the open bucket plus one closed bucket kept for the
// late-arrival grace period.
type streamState struct {
	size     time.Duration
	current  *Bucket
	previous *Bucket
	lastSeq  uint64
}

// Aggregator maintains tumbling windows for one user.
type Aggregator struct {
	sizes   Sizes
	streams map[Stream]*streamState
}

// New constructs an Aggregator with the given window sizes.
func New(sizes Sizes) *Aggregator {
	if sizes.Flow <= 0 {
		sizes.Flow = DefaultFlowWindow
	}
	if sizes.ContextSwitch <= 0 {
		sizes.ContextSwitch = DefaultContextSwitchWindow
	}
	if sizes.Velocity <= 0 {
		sizes.Velocity = DefaultVelocityWindow
	}
	return &Aggregator{
		sizes:   sizes,
		streams: make(map[Stream]*streamState),
	}
}

// IndexFor returns the bucket index a time falls into for a stream.
func (a *Aggregator) IndexFor(stream Stream, t time.Time) int64 {
	return t.Unix() / int64(a.sizes.forStream(stream).Seconds())
}

func (a *Aggregator) state(stream Stream) *streamState {
	st, ok := a.streams[stream]
	if !ok {
		st = &streamState{size: a.sizes.forStream(stream)}
		a.streams[stream] = st
	}
	return st
}

// Apply routes one event into the stream's bucket identified by
// floor(event_time / window_size). Replays of an already-applied arrival
// sequence are no-ops; events older than the one-bucket grace period are
// dropped. Applying the same event twice yields identical reducer state.
func (a *Aggregator) Apply(stream Stream, ev model.Event) Result {
	st := a.state(stream)

	if st.lastSeq != 0 && ev.ArrivalSeq <= st.lastSeq {
		return Duplicate
	}

	idx := ev.EventTime.Unix() / int64(st.size.Seconds())

	switch {
	case st.current == nil:
		st.current = &Bucket{Index: idx}
	case idx > st.current.Index:
		// Current bucket closes; it stays readable for one more period.
		st.previous = st.current
		st.current = &Bucket{Index: idx}
	case idx == st.current.Index:
		// Still open.
	case idx == st.current.Index-1:
		// Within the late-arrival grace period.
		if st.previous == nil || st.previous.Index != idx {
			st.previous = &Bucket{Index: idx}
		}
		st.previous.apply(ev)
		st.lastSeq = ev.ArrivalSeq
		return Applied
	default:
		// More than one grace period behind: evicted, drop.
		st.lastSeq = ev.ArrivalSeq
		return Late
	}

	st.current.apply(ev)
	st.lastSeq = ev.ArrivalSeq
	return Applied
}

// Current returns a copy of the stream's open bucket, if any.
func (a *Aggregator) Current(stream Stream) (Bucket, bool) {
	st, ok := a.streams[stream]
	if !ok || st.current == nil {
		return Bucket{}, false
	}
	return *st.current, true
}

// CurrentIndex returns the open bucket index for a stream, or the index the
// given time would map to when the stream has no data yet.
func (a *Aggregator) CurrentIndex(stream Stream, fallback time.Time) int64 {
	if st, ok := a.streams[stream]; ok && st.current != nil {
		return st.current.Index
	}
	return a.IndexFor(stream, fallback)
}
