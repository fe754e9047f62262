package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
)

func NewConnection(connectStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connectStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	slog.Debug("database connection established")
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS edit_runs (
	id          SERIAL PRIMARY KEY,
	source_path TEXT NOT NULL,
	output_path TEXT NOT NULL DEFAULT '',
	mode        TEXT NOT NULL,
	provider    TEXT NOT NULL DEFAULT '',
	model       TEXT NOT NULL DEFAULT '',
	dry_run     BOOLEAN NOT NULL DEFAULT FALSE,
	edited      INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS edit_changes (
	id         SERIAL PRIMARY KEY,
	run_id     INTEGER NOT NULL REFERENCES edit_runs(id) ON DELETE CASCADE,
	slide      INTEGER NOT NULL,
	shape_id   INTEGER NOT NULL,
	shape_name TEXT NOT NULL,
	shape_kind TEXT NOT NULL,
	notes      BOOLEAN NOT NULL DEFAULT FALSE,
	unit       INTEGER NOT NULL,
	original   TEXT NOT NULL,
	proposed   TEXT NOT NULL,
	applied    BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// EnsureSchema creates the journal tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("error creating journal schema: %w", err)
	}
	return nil
}
