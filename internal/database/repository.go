package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/gnemet/SlideEdit/internal/editor"
)

type Run struct {
	ID         int        `json:"id"`
	SourcePath string     `json:"source_path"`
	OutputPath string     `json:"output_path"`
	Mode       string     `json:"mode"`
	Provider   string     `json:"provider"`
	Model      string     `json:"model"`
	DryRun     bool       `json:"dry_run"`
	Edited     int        `json:"edited"`
	Error      string     `json:"error"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

func SaveRun(ctx context.Context, db *sql.DB, r *Run) (int, error) {
	query := `
		INSERT INTO edit_runs (source_path, mode, provider, model, dry_run)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, started_at
	`
	err := db.QueryRowContext(ctx, query, r.SourcePath, r.Mode, r.Provider, r.Model, r.DryRun).Scan(&r.ID, &r.StartedAt)
	return r.ID, err
}

func FinishRun(ctx context.Context, db *sql.DB, id, edited int, outputPath, runErr string) error {
	_, err := db.ExecContext(ctx,
		"UPDATE edit_runs SET edited = $1, output_path = $2, error = $3, finished_at = NOW() WHERE id = $4",
		edited, outputPath, runErr, id)
	return err
}

func SaveChange(ctx context.Context, db *sql.DB, runID int, c editor.Change) error {
	query := `
		INSERT INTO edit_changes (run_id, slide, shape_id, shape_name, shape_kind, notes, unit, original, proposed, applied)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := db.ExecContext(ctx, query, runID, c.Slide, c.ShapeID, c.ShapeName, c.ShapeKind, c.Notes, c.Unit, c.Original, c.Proposed, c.Applied)
	return err
}

func GetRun(ctx context.Context, db *sql.DB, id int) (*Run, error) {
	var r Run
	query := "SELECT id, source_path, output_path, mode, provider, model, dry_run, edited, error, started_at, finished_at FROM edit_runs WHERE id = $1"
	err := db.QueryRowContext(ctx, query, id).Scan(&r.ID, &r.SourcePath, &r.OutputPath, &r.Mode, &r.Provider, &r.Model, &r.DryRun, &r.Edited, &r.Error, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func GetChangesByRun(ctx context.Context, db *sql.DB, runID int) ([]editor.Change, error) {
	rows, err := db.QueryContext(ctx, "SELECT slide, shape_id, shape_name, shape_kind, notes, unit, original, proposed, applied FROM edit_changes WHERE run_id = $1 ORDER BY id", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []editor.Change
	for rows.Next() {
		var c editor.Change
		if err := rows.Scan(&c.Slide, &c.ShapeID, &c.ShapeName, &c.ShapeKind, &c.Notes, &c.Unit, &c.Original, &c.Proposed, &c.Applied); err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// Journal records pipeline changes under one edit run.
type Journal struct {
	db    *sql.DB
	runID int
}

// StartJournal inserts the run row and returns a recorder bound to it.
func StartJournal(ctx context.Context, db *sql.DB, r *Run) (*Journal, error) {
	id, err := SaveRun(ctx, db, r)
	if err != nil {
		return nil, err
	}
	return &Journal{db: db, runID: id}, nil
}

func (j *Journal) RunID() int {
	return j.runID
}

func (j *Journal) Record(ctx context.Context, c editor.Change) error {
	return SaveChange(ctx, j.db, j.runID, c)
}

// Finish stores the outcome of the run. runErr may be nil.
func (j *Journal) Finish(ctx context.Context, edited int, outputPath string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	return FinishRun(ctx, j.db, j.runID, edited, outputPath, msg)
}
