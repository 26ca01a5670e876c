// Package sink appends engine output records to JSON Lines files, one file
// per output stream. Downstream consumers tail these files.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/flowstate/pulse/internal/domain/model"
	"github.com/flowstate/pulse/pkg/metrics"
)

// Output stream file names.
const (
	userStatsFile    = "user_stats.jsonl"
	productivityFile = "productivity.jsonl"
	burnoutFile      = "burnout.jsonl"
	alertsFile       = "alerts.jsonl"
)

const fileMode = 0o644

// UserStatsRecord is one exported flow snapshot.
type UserStatsRecord struct {
	UserID     string    `json:"user_id"`
	FlowScore  float64   `json:"flow_score"`
	ExportedAt time.Time `json:"exported_at"`
}

// ProductivityRecord is one exported classification snapshot.
type ProductivityRecord struct {
	Classification model.Classification `json:"classification"`
	ExportedAt     time.Time            `json:"exported_at"`
}

// BurnoutRecord is one exported burnout flag. Only non-low risks are written.
type BurnoutRecord struct {
	UserID     string            `json:"user_id"`
	Risk       model.BurnoutRisk `json:"risk"`
	ExportedAt time.Time         `json:"exported_at"`
}

// AlertRecord is one exported alert.
type AlertRecord struct {
	Alert      model.Alert `json:"alert"`
	ExportedAt time.Time   `json:"exported_at"`
}

// Writer appends records to per-stream JSONL files under one directory.
// Appends to the same file are serialized; files are opened lazily and held
// open until Close.
type Writer struct {
	dir string
	now func() time.Time

	mu    sync.Mutex
	files map[string]*os.File
}

// Option applies a configuration option to the Writer.
type Option func(*Writer)

// WithClock overrides the export timestamp clock. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWriter creates a Writer rooted at dir, creating the directory if needed.
func NewWriter(dir string, opts ...Option) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir %s: %w", dir, err)
	}
	w := &Writer{
		dir:   dir,
		now:   time.Now,
		files: make(map[string]*os.File),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// WriteUserStats appends one flow snapshot per user.
func (w *Writer) WriteUserStats(ctx context.Context, userID string, flowScore float64) error {
	return w.append(userStatsFile, UserStatsRecord{
		UserID:     userID,
		FlowScore:  flowScore,
		ExportedAt: w.now(),
	})
}

// WriteProductivity appends one classification snapshot.
func (w *Writer) WriteProductivity(ctx context.Context, cls model.Classification) error {
	return w.append(productivityFile, ProductivityRecord{
		Classification: cls,
		ExportedAt:     w.now(),
	})
}

// WriteBurnout appends one burnout flag.
func (w *Writer) WriteBurnout(ctx context.Context, userID string, risk model.BurnoutRisk) error {
	return w.append(burnoutFile, BurnoutRecord{
		UserID:     userID,
		Risk:       risk,
		ExportedAt: w.now(),
	})
}

// WriteAlert appends one alert.
func (w *Writer) WriteAlert(ctx context.Context, alert model.Alert) error {
	return w.append(alertsFile, AlertRecord{
		Alert:      alert,
		ExportedAt: w.now(),
	})
}

func (w *Writer) append(name string, record any) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", name, err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.file(name)
	if err != nil {
		metrics.RecordExportError()
		return err
	}
	if _, err := f.Write(line); err != nil {
		metrics.RecordExportError()
		return fmt.Errorf("append to %s: %w", name, err)
	}
	metrics.RecordExportedRecord(name)
	return nil
}

// file returns the open handle for a stream file. Must hold w.mu.
func (w *Writer) file(name string) (*os.File, error) {
	if f, ok := w.files[name]; ok {
		return f, nil
	}
	f, err := os.OpenFile(filepath.Join(w.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, fileMode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	w.files[name] = f
	return f, nil
}

// Close flushes and closes all open stream files.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	for name, f := range w.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", name, err)
		}
		delete(w.files, name)
	}
	return firstErr
}
