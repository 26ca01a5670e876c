package snapshot

import "fmt"

// currentSchemaVersion is the latest schema version.
const currentSchemaVersion = 1

// migrate runs forward migrations to bring the database schema up to date.
func (db *DB) migrate() error {
	if _, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	version := 0
	row := db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1")
	if err := row.Scan(&version); err != nil {
		// No rows means version 0 (fresh database).
		version = 0
	}

	if version < 1 {
		if err := db.migrateV1(); err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}

	return nil
}

// migrateV1 creates the initial table.
func (db *DB) migrateV1() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS user_aggregates (
			user_id            TEXT PRIMARY KEY,
			total_sessions     INTEGER NOT NULL,
			focus_sum          REAL NOT NULL,
			quality_sum        REAL NOT NULL,
			total_duration     INTEGER NOT NULL,
			total_distractions INTEGER NOT NULL,
			max_focus          REAL NOT NULL,
			min_focus          REAL NOT NULL,
			last_flow_score    REAL NOT NULL,
			updated_at         TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_user_aggregates_updated ON user_aggregates(updated_at)`,
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt[:40], err)
		}
	}

	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", currentSchemaVersion); err != nil {
		return err
	}

	return tx.Commit()
}
