package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jonesrussell/doc-indexer/internal/domain"
)

// jobSelectList is the column list for SELECT on indexing_jobs (single source
// for schema changes).
const jobSelectList = `id, job_type, target_type, target_id, status, attempt,
		max_attempts, available_at, started_at, completed_at, last_error,
		created_at, updated_at`

// JobRepository manages the durable indexing job queue in PostgreSQL.
// Every state transition is a single conditional UPDATE, so concurrent
// workers stay correct without external locking.
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Enqueue inserts one pending job and returns its id. Duplicate enqueues are
// tolerated: handlers are idempotent upserts, so no uniqueness is enforced.
func (r *JobRepository) Enqueue(
	ctx context.Context,
	jobType domain.JobType,
	targetType domain.TargetType,
	targetID int64,
	availableAt time.Time,
	maxAttempts int,
) (int64, error) {
	query := `
		INSERT INTO indexing_jobs (job_type, target_type, target_id, status, attempt, max_attempts, available_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6)
		RETURNING id`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		string(jobType), string(targetType), targetID,
		string(domain.JobStatusPending), maxAttempts, availableAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("enqueue job: %w", err)
	}
	return id, nil
}

// PollDue returns up to limit pending jobs that are due at now, earliest
// first with a stable id tie-break so no job starves.
func (r *JobRepository) PollDue(ctx context.Context, now time.Time, limit int) ([]domain.IndexingJob, error) {
	query := `
		SELECT ` + jobSelectList + `
		FROM indexing_jobs
		WHERE status = $1 AND available_at <= $2
		ORDER BY available_at ASC, id ASC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, string(domain.JobStatusPending), now, limit)
	if err != nil {
		return nil, fmt.Errorf("poll due jobs: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

// ClaimPending atomically moves a job from pending to running. Returns false
// when another worker won the claim; the caller must skip, not retry.
func (r *JobRepository) ClaimPending(ctx context.Context, jobID int64, claimedAt time.Time) (bool, error) {
	query := `
		UPDATE indexing_jobs
		SET status = $2, started_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4`

	return r.conditionalUpdate(ctx, "claim pending", query,
		jobID, string(domain.JobStatusRunning), claimedAt, string(domain.JobStatusPending))
}

// MarkSucceeded moves a running job to its terminal success state.
func (r *JobRepository) MarkSucceeded(ctx context.Context, jobID int64, completedAt time.Time) (bool, error) {
	query := `
		UPDATE indexing_jobs
		SET status = $2, completed_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4`

	return r.conditionalUpdate(ctx, "mark succeeded", query,
		jobID, string(domain.JobStatusSucceeded), completedAt, string(domain.JobStatusRunning))
}

// MarkFailedWithRetry moves a running job back to pending with an incremented
// attempt and a future due time. Fails the condition once the retry budget is
// spent.
func (r *JobRepository) MarkFailedWithRetry(ctx context.Context, jobID int64, nextAttemptAt time.Time, errorMessage string) (bool, error) {
	query := `
		UPDATE indexing_jobs
		SET status = $2, attempt = attempt + 1, available_at = $3, last_error = $4, updated_at = NOW()
		WHERE id = $1 AND status = $5 AND attempt < max_attempts`

	return r.conditionalUpdate(ctx, "mark failed with retry", query,
		jobID, string(domain.JobStatusPending), nextAttemptAt,
		domain.TruncateError(errorMessage), string(domain.JobStatusRunning))
}

// MarkDeadLetter moves a running job to its terminal failure state. The only
// condition is that the job is still running, so permanent failures can be
// dead-lettered without exhausting the retry budget first.
func (r *JobRepository) MarkDeadLetter(ctx context.Context, jobID int64, completedAt time.Time, errorMessage string) (bool, error) {
	query := `
		UPDATE indexing_jobs
		SET status = $2, completed_at = $3, last_error = $4, updated_at = NOW()
		WHERE id = $1 AND status = $5`

	return r.conditionalUpdate(ctx, "mark dead letter", query,
		jobID, string(domain.JobStatusDeadLetter), completedAt,
		domain.TruncateError(errorMessage), string(domain.JobStatusRunning))
}

// ResetStaleRunning re-queues jobs stuck in running longer than olderThan.
// This recovers jobs claimed by a worker that crashed before completing.
func (r *JobRepository) ResetStaleRunning(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		UPDATE indexing_jobs
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND updated_at < NOW() - $3::interval`

	result, err := r.db.ExecContext(ctx, query,
		string(domain.JobStatusPending), string(domain.JobStatusRunning), olderThan.String())
	if err != nil {
		return 0, fmt.Errorf("reset stale running: %w", err)
	}

	return result.RowsAffected()
}

// Stats returns job counts per status and the average completion lag over
// the past hour.
func (r *JobRepository) Stats(ctx context.Context) (*domain.JobStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COUNT(*) FILTER (WHERE status = 'running') AS running,
			COUNT(*) FILTER (WHERE status = 'succeeded') AS succeeded,
			COUNT(*) FILTER (WHERE status = 'dead_letter') AS dead_letter,
			COALESCE(AVG(EXTRACT(EPOCH FROM (completed_at - created_at)))
				FILTER (WHERE status = 'succeeded' AND completed_at > NOW() - INTERVAL '1 hour'), 0) AS avg_completion_seconds
		FROM indexing_jobs`

	var stats domain.JobStats
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.Pending,
		&stats.Running,
		&stats.Succeeded,
		&stats.DeadLetter,
		&stats.AvgCompletionSeconds,
	)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	return &stats, nil
}

// GetByID retrieves a single job by id.
func (r *JobRepository) GetByID(ctx context.Context, jobID int64) (*domain.IndexingJob, error) {
	query := `SELECT ` + jobSelectList + ` FROM indexing_jobs WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, jobID)
	job, scanErr := scanJob(row)
	if scanErr == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if scanErr != nil {
		return nil, fmt.Errorf("get job by id: %w", scanErr)
	}
	return job, nil
}

// conditionalUpdate runs a compare-and-set statement and reports whether it
// matched exactly one row.
func (r *JobRepository) conditionalUpdate(ctx context.Context, op, query string, args ...any) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	rows, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return false, fmt.Errorf("%s: affected rows: %w", op, rowsErr)
	}
	return rows == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.IndexingJob, error) {
	var job domain.IndexingJob
	var jobType, targetType, status string

	err := row.Scan(
		&job.ID, &jobType, &targetType, &job.TargetID, &status, &job.Attempt,
		&job.MaxAttempts, &job.AvailableAt, &job.StartedAt, &job.CompletedAt,
		&job.LastError, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.JobType = domain.JobType(jobType)
	job.TargetType = domain.TargetType(targetType)
	job.Status = domain.JobStatus(status)
	return &job, nil
}

func scanJobs(rows *sql.Rows) ([]domain.IndexingJob, error) {
	var jobs []domain.IndexingJob
	for rows.Next() {
		job, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan job: %w", scanErr)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}
