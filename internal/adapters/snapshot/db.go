// Package snapshot persists the last-known per-user aggregates to SQLite so
// cumulative stats survive a restart. Windows and alert logs are not
// persisted; they rebuild from live traffic.
package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection to the aggregate snapshot database.
type DB struct {
	conn *sql.DB
}

// Open opens or creates the SQLite database at the given path.
// It creates the parent directory if it does not exist.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir %s: %w", dir, err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db %s: %w", dbPath, err)
	}

	// WAL keeps readers off the writer's back during periodic persists.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

// OpenInMemory opens an in-memory SQLite database, useful for testing.
func OpenInMemory() (*DB, error) {
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// AggregateRow is the flat persisted form of one user's summary.
type AggregateRow struct {
	UserID            string
	TotalSessions     int
	FocusSum          float64
	QualitySum        float64
	TotalDuration     int
	TotalDistractions int
	MaxFocus          float64
	MinFocus          float64
	LastFlowScore     float64
	UpdatedAt         time.Time
}

// UpsertAggregates writes a batch of user aggregates in one transaction.
func (db *DB) UpsertAggregates(ctx context.Context, rows []AggregateRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin aggregate upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO user_aggregates
		(user_id, total_sessions, focus_sum, quality_sum, total_duration,
		 total_distractions, max_focus, min_focus, last_flow_score, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			total_sessions     = excluded.total_sessions,
			focus_sum          = excluded.focus_sum,
			quality_sum        = excluded.quality_sum,
			total_duration     = excluded.total_duration,
			total_distractions = excluded.total_distractions,
			max_focus          = excluded.max_focus,
			min_focus          = excluded.min_focus,
			last_flow_score    = excluded.last_flow_score,
			updated_at         = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("prepare aggregate upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range rows {
		r := &rows[i]
		if _, err := stmt.ExecContext(ctx,
			r.UserID, r.TotalSessions, r.FocusSum, r.QualitySum, r.TotalDuration,
			r.TotalDistractions, r.MaxFocus, r.MinFocus, r.LastFlowScore,
			r.UpdatedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("upsert aggregate for %s: %w", r.UserID, err)
		}
	}

	return tx.Commit()
}

// LoadAggregates returns every persisted user aggregate.
func (db *DB) LoadAggregates(ctx context.Context) ([]AggregateRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT user_id, total_sessions, focus_sum, quality_sum, total_duration,
		       total_distractions, max_focus, min_focus, last_flow_score, updated_at
		FROM user_aggregates
	`)
	if err != nil {
		return nil, fmt.Errorf("load aggregates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []AggregateRow
	for rows.Next() {
		var r AggregateRow
		var updatedAt string
		if err := rows.Scan(
			&r.UserID, &r.TotalSessions, &r.FocusSum, &r.QualitySum, &r.TotalDuration,
			&r.TotalDistractions, &r.MaxFocus, &r.MinFocus, &r.LastFlowScore, &updatedAt,
		); err != nil {
			return nil, err
		}
		r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}
