package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/fanx/internal/models"
	"github.com/desertthunder/fanx/internal/shared"
)

const runColumns = `
	id, sequence, target_type, target_id, section, status, error,
	customers, succeeded, not_found, failed, likes, tracks, artists,
	filtered_artists, track_failures, image_failures, started_at, finished_at
`

// RunRepository persists [models.Run] summaries.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// RunCriteria filters [RunRepository.List]. Zero values match everything.
type RunCriteria struct {
	TargetType models.TargetType
	TargetID   string
	Status     models.RunStatus
	Limit      int
}

// Create inserts a new run with a fresh sequence number. An empty ID is generated.
func (r *RunRepository) Create(ctx context.Context, run *models.Run) error {
	if run.Target.ID == "" {
		return fmt.Errorf("%w: run target id", shared.ErrInvalidInput)
	}

	sequence, err := NextSequence(ctx, r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	if run.ID == "" {
		run.ID = shared.GenerateID()
	}
	if run.Status == "" {
		run.Status = models.RunRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Sequence = sequence

	query := `INSERT INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.Sequence,
		run.Target.Type,
		run.Target.ID,
		run.Target.Section,
		run.Status,
		run.Error,
		run.Customers,
		run.Succeeded,
		run.NotFound,
		run.Failed,
		run.Likes,
		run.Tracks,
		run.Artists,
		run.FilteredArtists,
		run.TrackFailures,
		run.ImageFailures,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// Finish stores the final status and counts of a run.
func (r *RunRepository) Finish(ctx context.Context, run *models.Run) error {
	if run.FinishedAt == nil {
		now := time.Now()
		run.FinishedAt = &now
	}

	query := `
		UPDATE runs
		SET status = ?, error = ?, customers = ?, succeeded = ?, not_found = ?,
			failed = ?, likes = ?, tracks = ?, artists = ?, filtered_artists = ?,
			track_failures = ?, image_failures = ?, finished_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		run.Status,
		run.Error,
		run.Customers,
		run.Succeeded,
		run.NotFound,
		run.Failed,
		run.Likes,
		run.Tracks,
		run.Artists,
		run.FilteredArtists,
		run.TrackFailures,
		run.ImageFailures,
		run.FinishedAt,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: run %s", shared.ErrNotFound, run.ID)
	}

	return nil
}

// Get retrieves a run by ID.
func (r *RunRepository) Get(ctx context.Context, id string) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", shared.ErrNotFound, id)
	}
	return run, err
}

// List retrieves runs matching the given criteria, newest first.
func (r *RunRepository) List(ctx context.Context, criteria RunCriteria) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1 = 1`
	args := []any{}

	if criteria.TargetType != "" {
		query += " AND target_type = ?"
		args = append(args, criteria.TargetType)
	}

	if criteria.TargetID != "" {
		query += " AND target_id = ?"
		args = append(args, criteria.TargetID)
	}

	if criteria.Status != "" {
		query += " AND status = ?"
		args = append(args, criteria.Status)
	}

	query += " ORDER BY sequence DESC"

	if criteria.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, criteria.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// scanRun scans a single row into a [models.Run]
func scanRun(row scanner) (*models.Run, error) {
	var (
		run        models.Run
		targetType string
		section    string
		status     string
		finishedAt sql.NullTime
	)

	err := row.Scan(
		&run.ID, &run.Sequence, &targetType, &run.Target.ID, &section, &status, &run.Error,
		&run.Customers, &run.Succeeded, &run.NotFound, &run.Failed, &run.Likes, &run.Tracks, &run.Artists,
		&run.FilteredArtists, &run.TrackFailures, &run.ImageFailures, &run.StartedAt, &finishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Target.Type = models.TargetType(targetType)
	run.Target.Section = models.Section(section)
	run.Status = models.RunStatus(status)
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}

	return &run, nil
}
