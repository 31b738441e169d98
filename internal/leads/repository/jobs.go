package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrJobExists is returned when a lead already has a pending or processing job.
var ErrJobExists = errors.New("lead already has a live processing job")

// ErrJobNotFound is returned for unknown job ids.
var ErrJobNotFound = errors.New("processing job not found")

// Processing job statuses.
const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

type ProcessingJob struct {
	ID          uuid.UUID
	LeadID      uuid.UUID
	Status      string
	Progress    int
	CurrentStep string
	QueueTaskID string
	Error       *string
	StartedAt   *time.Time
	FinishedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const jobColumns = `
	id, lead_id, status, progress, current_step, queue_task_id,
	error, started_at, finished_at, created_at, updated_at`

func scanJob(row scannable) (ProcessingJob, error) {
	var job ProcessingJob
	err := row.Scan(
		&job.ID, &job.LeadID, &job.Status, &job.Progress, &job.CurrentStep, &job.QueueTaskID,
		&job.Error, &job.StartedAt, &job.FinishedAt, &job.CreatedAt, &job.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ProcessingJob{}, ErrJobNotFound
	}
	return job, err
}

// CreateJob opens a job for a lead. The partial unique index on live jobs
// turns a concurrent double-enqueue into ErrJobExists.
func (r *Repository) CreateJob(ctx context.Context, leadID uuid.UUID) (ProcessingJob, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO processing_jobs (lead_id) VALUES ($1)
		RETURNING`+jobColumns, leadID)

	job, err := scanJob(row)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ProcessingJob{}, ErrJobExists
	}
	return job, err
}

func (r *Repository) GetJobByID(ctx context.Context, id uuid.UUID) (ProcessingJob, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+jobColumns+` FROM processing_jobs WHERE id = $1`, id)
	return scanJob(row)
}

// SetJobTaskID records the queue task backing the job.
func (r *Repository) SetJobTaskID(ctx context.Context, id uuid.UUID, taskID string) error {
	return r.execJob(ctx, `
		UPDATE processing_jobs SET queue_task_id = $2, updated_at = now() WHERE id = $1
	`, id, taskID)
}

// StartJob marks the job as picked up by a worker.
func (r *Repository) StartJob(ctx context.Context, id uuid.UUID) error {
	return r.execJob(ctx, `
		UPDATE processing_jobs
		SET status = 'processing', started_at = coalesce(started_at, now()), updated_at = now()
		WHERE id = $1
	`, id)
}

// UpdateJobProgress advances the job's progress and step label. Progress
// never moves backwards so retried tasks keep the furthest reported stage.
func (r *Repository) UpdateJobProgress(ctx context.Context, id uuid.UUID, progress int, step string) error {
	return r.execJob(ctx, `
		UPDATE processing_jobs
		SET progress = greatest(progress, $2), current_step = $3, updated_at = now()
		WHERE id = $1
	`, id, progress, step)
}

// CompleteJob finishes the job at full progress.
func (r *Repository) CompleteJob(ctx context.Context, id uuid.UUID) error {
	return r.execJob(ctx, `
		UPDATE processing_jobs
		SET status = 'completed', progress = 100, current_step = 'done',
		    error = NULL, finished_at = now(), updated_at = now()
		WHERE id = $1
	`, id)
}

// FailJob records a terminal failure.
func (r *Repository) FailJob(ctx context.Context, id uuid.UUID, message string) error {
	return r.execJob(ctx, `
		UPDATE processing_jobs
		SET status = 'failed', error = $2, finished_at = now(), updated_at = now()
		WHERE id = $1
	`, id, message)
}

// CountJobsByStatus returns job counts keyed by status.
func (r *Repository) CountJobsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, count(*) FROM processing_jobs GROUP BY status
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *Repository) execJob(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}
