package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/remote-agent-terminal/engine-relay/internal/model"
)

// DefaultListLimit caps List when the caller passes no limit.
const DefaultListLimit = 50

// RunRepository provides data access for engine runs.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `id, binary, args, pid, status, exit_code, last_line, transcript_path, started_at, ended_at`

// Create inserts a new run.
func (r *RunRepository) Create(ctx context.Context, run *model.Run) error {
	argsJSON, err := run.ArgsToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize args: %w", err)
	}

	query := `
		INSERT INTO runs (id, binary, args, pid, status, exit_code, last_line, transcript_path, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.Binary,
		argsJSON,
		run.PID,
		run.Status,
		run.ExitCode,
		run.LastLine,
		run.TranscriptPath,
		run.StartedAt,
		run.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// GetByID retrieves a run by its ID.
func (r *RunRepository) GetByID(ctx context.Context, id string) (*model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, model.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs first.
func (r *RunRepository) List(ctx context.Context, limit int) ([]*model.Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// Finish records the final state of a run.
func (r *RunRepository) Finish(ctx context.Context, id string, status model.RunStatus, exitCode *int, lastLine string) error {
	query := `
		UPDATE runs
		SET status = ?, exit_code = ?, last_line = ?, ended_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, status, exitCode, lastLine, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return model.ErrRunNotFound
	}

	return nil
}

// MarkOrphaned fails every run still marked running. It is called at boot,
// when no process from a previous server lifetime can still be supervised.
func (r *RunRepository) MarkOrphaned(ctx context.Context) (int64, error) {
	query := `
		UPDATE runs
		SET status = ?, ended_at = ?
		WHERE status = ?
	`

	result, err := r.db.ExecContext(ctx, query, model.RunStatusFailed, time.Now(), model.RunStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to mark orphaned runs: %w", err)
	}

	return result.RowsAffected()
}

// CountActive returns the number of runs marked running.
func (r *RunRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE status = ?`, model.RunStatusRunning).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active runs: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*model.Run, error) {
	run := &model.Run{}
	var argsJSON string
	var pid sql.NullInt64
	var exitCode sql.NullInt64
	var lastLine sql.NullString
	var transcriptPath sql.NullString
	var endedAt sql.NullTime

	err := row.Scan(
		&run.ID,
		&run.Binary,
		&argsJSON,
		&pid,
		&run.Status,
		&exitCode,
		&lastLine,
		&transcriptPath,
		&run.StartedAt,
		&endedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := run.ArgsFromJSON(argsJSON); err != nil {
		return nil, fmt.Errorf("failed to parse args: %w", err)
	}

	if pid.Valid {
		p := int(pid.Int64)
		run.PID = &p
	}

	if exitCode.Valid {
		code := int(exitCode.Int64)
		run.ExitCode = &code
	}

	if lastLine.Valid {
		run.LastLine = lastLine.String
	}

	if transcriptPath.Valid {
		run.TranscriptPath = transcriptPath.String
	}

	if endedAt.Valid {
		t := endedAt.Time
		run.EndedAt = &t
	}

	return run, nil
}
