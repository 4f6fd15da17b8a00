package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,
    record_path TEXT NOT NULL,
    trigger_neuron INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);

CREATE TABLE IF NOT EXISTS engines (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    engine TEXT NOT NULL,
    events INTEGER NOT NULL,
    spikes INTEGER NOT NULL,
    adjustments INTEGER NOT NULL,
    dropped INTEGER NOT NULL,
    first_tick INTEGER,
    last_tick INTEGER,
    first_time TEXT,
    last_time TEXT,
    duration_ns INTEGER,
    tick_period_ns INTEGER,
    position INTEGER NOT NULL,
    PRIMARY KEY (run_id, engine)
);

CREATE TABLE IF NOT EXISTS epochs (
    run_id TEXT NOT NULL,
    engine TEXT NOT NULL,
    epoch INTEGER NOT NULL,
    spikes INTEGER NOT NULL,
    adjustments INTEGER NOT NULL,
    PRIMARY KEY (run_id, engine, epoch),
    FOREIGN KEY (run_id, engine) REFERENCES engines(run_id, engine) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS spikes (
    run_id TEXT NOT NULL,
    engine TEXT NOT NULL,
    epoch INTEGER NOT NULL,
    seq INTEGER NOT NULL,
    tick INTEGER NOT NULL,
    time TEXT,
    neuron INTEGER NOT NULL,
    kind INTEGER NOT NULL,
    PRIMARY KEY (run_id, engine, epoch, seq),
    FOREIGN KEY (run_id, engine, epoch) REFERENCES epochs(run_id, engine, epoch) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS adjustments (
    run_id TEXT NOT NULL,
    engine TEXT NOT NULL,
    epoch INTEGER NOT NULL,
    spike_seq INTEGER NOT NULL,
    seq INTEGER NOT NULL,
    neuron INTEGER NOT NULL,
    synapse INTEGER NOT NULL,
    strength INTEGER NOT NULL,
    PRIMARY KEY (run_id, engine, epoch, spike_seq, seq),
    FOREIGN KEY (run_id, engine, epoch, spike_seq) REFERENCES spikes(run_id, engine, epoch, seq) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// InitSchema creates the schema on a new database and checks integrity of
// an existing one before any migration.
func InitSchema(ctx context.Context, db *sql.DB) error {
	currentVersion, err := getSchemaVersion(ctx, db)
	if err != nil {
		if err := createSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	}

	if err := ValidateIntegrity(ctx, db); err != nil {
		return fmt.Errorf("database integrity check failed: %w", err)
	}

	if currentVersion > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", currentVersion, SchemaVersion)
	}
	return nil
}

// getSchemaVersion fails when the schema_version table does not exist.
func getSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return tx.Commit()
}

// ValidateIntegrity runs PRAGMA integrity_check and PRAGMA foreign_key_check.
func ValidateIntegrity(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `PRAGMA integrity_check`)
	if err != nil {
		return fmt.Errorf("failed to run integrity_check: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var result string
		if err := rows.Scan(&result); err != nil {
			return fmt.Errorf("failed to scan integrity_check result: %w", err)
		}
		if result != "ok" {
			return fmt.Errorf("integrity_check failed: %s", result)
		}
	}

	fkRows, err := db.QueryContext(ctx, `PRAGMA foreign_key_check`)
	if err != nil {
		return fmt.Errorf("failed to run foreign_key_check: %w", err)
	}
	defer fkRows.Close()

	var fkErrors []string
	for fkRows.Next() {
		var table, rowid, parent, fkid sql.NullString
		if err := fkRows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("failed to scan foreign_key_check result: %w", err)
		}
		fkErrors = append(fkErrors, fmt.Sprintf("table=%s rowid=%s parent=%s fkid=%s", table.String, rowid.String, parent.String, fkid.String))
	}

	if len(fkErrors) > 0 {
		return fmt.Errorf("foreign_key_check failed: %v", fkErrors)
	}
	return nil
}
