package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/article-engine/internal/types"
)

// -----------------------------------------------------------------------------
// Article Job Methods (queue.Store implementation)
// -----------------------------------------------------------------------------

const jobColumns = `id, configuration_id, seed_topic, status, scheduled_at, created_at,
	processing_started_at, processing_completed_at, published_at,
	published_post_id, published_post_url, error_message, retry_count`

// Create inserts a new job record with its categories and tags.
func (db *DB) Create(ctx context.Context, job *types.ArticleJob) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO article_jobs (id, configuration_id, seed_topic, status, scheduled_at, created_at, retry_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.ConfigurationID, job.SeedTopic, job.Status, job.ScheduledAt, job.CreatedAt, job.RetryCount,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	if err := insertLabels(ctx, tx, "job_categories", job.ID, job.Categories); err != nil {
		return err
	}
	if err := insertLabels(ctx, tx, "job_tags", job.ID, job.Tags); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Get retrieves a job by ID including its categories and tags.
func (db *DB) Get(ctx context.Context, id uuid.UUID) (*types.ArticleJob, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM article_jobs WHERE id = $1`, id)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &types.ErrJobNotFound{JobID: id}
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	if err := db.loadLabels(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// List retrieves jobs matching the filter, newest first.
func (db *DB) List(ctx context.Context, filter types.JobFilter) ([]types.ArticleJob, error) {
	query := `SELECT ` + jobColumns + ` FROM article_jobs WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, filter.Status)
		argPos++
	}
	if filter.ConfigurationID != uuid.Nil {
		query += fmt.Sprintf(" AND configuration_id = $%d", argPos)
		args = append(args, filter.ConfigurationID)
		argPos++
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, filter.Limit)
		argPos++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argPos)
		args = append(args, filter.Offset)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []types.ArticleJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// NextEligible returns the oldest queued job whose scheduled_at is unset or
// in the past. Strict FIFO by creation time.
func (db *DB) NextEligible(ctx context.Context, now time.Time) (*types.ArticleJob, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM article_jobs
		 WHERE status = 'queued' AND (scheduled_at IS NULL OR scheduled_at <= $1)
		 ORDER BY created_at ASC
		 LIMIT 1`, now)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query next eligible job: %w", err)
	}

	if err := db.loadLabels(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Claim performs the atomic queued -> processing transition. The status
// check and the update happen in one statement, so of two racing workers
// exactly one sees a row affected.
func (db *DB) Claim(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE article_jobs
		 SET status = 'processing', processing_started_at = $2
		 WHERE id = $1 AND status = 'queued'`,
		id, now)
	if err != nil {
		return false, fmt.Errorf("failed to claim job: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	// Distinguish "already claimed" from "no such job".
	var exists bool
	if err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM article_jobs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check job existence: %w", err)
	}
	if !exists {
		return false, &types.ErrJobNotFound{JobID: id}
	}
	return false, nil
}

// MarkCompleted transitions processing -> completed and records the post
// identity.
func (db *DB) MarkCompleted(ctx context.Context, id uuid.UUID, postID int64, postURL string, now time.Time) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE article_jobs
		 SET status = 'completed', processing_completed_at = $2,
		     published_post_id = $3, published_post_url = $4
		 WHERE id = $1 AND status = 'processing'`,
		id, now, postID, postURL)
	if err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	return db.transitionResult(ctx, tag.RowsAffected(), id, types.StatusCompleted)
}

// MarkFailed transitions processing -> failed, records the error message and
// increments retry_count.
func (db *DB) MarkFailed(ctx context.Context, id uuid.UUID, message string, now time.Time) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE article_jobs
		 SET status = 'failed', processing_completed_at = $2,
		     error_message = $3, retry_count = retry_count + 1
		 WHERE id = $1 AND status = 'processing'`,
		id, now, message)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return db.transitionResult(ctx, tag.RowsAffected(), id, types.StatusFailed)
}

// MarkPublished transitions completed -> published.
func (db *DB) MarkPublished(ctx context.Context, id uuid.UUID, now time.Time) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE article_jobs
		 SET status = 'published', published_at = $2
		 WHERE id = $1 AND status = 'completed'`,
		id, now)
	if err != nil {
		return fmt.Errorf("failed to mark job published: %w", err)
	}
	return db.transitionResult(ctx, tag.RowsAffected(), id, types.StatusPublished)
}

// Requeue transitions failed -> queued, clearing the error message while
// preserving retry_count.
func (db *DB) Requeue(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE article_jobs
		 SET status = 'queued', error_message = NULL
		 WHERE id = $1 AND status = 'failed'`,
		id)
	if err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}
	return db.transitionResult(ctx, tag.RowsAffected(), id, types.StatusQueued)
}

// ForceRequeue resets a stuck processing job back to queued. Operator
// recovery only.
func (db *DB) ForceRequeue(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE article_jobs
		 SET status = 'queued', error_message = NULL
		 WHERE id = $1 AND status = 'processing'`,
		id)
	if err != nil {
		return fmt.Errorf("failed to force-requeue job: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	job, err := db.Get(ctx, id)
	if err != nil {
		return err
	}
	return &types.ErrInvalidOperation{
		JobID:   id,
		Message: "force requeue applies only to processing jobs, current status is " + string(job.Status),
	}
}

// Update applies a partial update to a queued job.
func (db *DB) Update(ctx context.Context, id uuid.UUID, req *types.UpdateJobRequest) (*types.ArticleJob, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status types.JobStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM article_jobs WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &types.ErrJobNotFound{JobID: id}
		}
		return nil, fmt.Errorf("failed to lock job: %w", err)
	}
	if status != types.StatusQueued {
		return nil, &types.ErrInvalidOperation{
			JobID:   id,
			Message: "only queued jobs can be updated, current status is " + string(status),
		}
	}

	if req.SeedTopic != nil {
		if _, err := tx.Exec(ctx, `UPDATE article_jobs SET seed_topic = $2 WHERE id = $1`, id, *req.SeedTopic); err != nil {
			return nil, fmt.Errorf("failed to update seed topic: %w", err)
		}
	}
	if req.ScheduledAt != nil {
		if _, err := tx.Exec(ctx, `UPDATE article_jobs SET scheduled_at = $2 WHERE id = $1`, id, *req.ScheduledAt); err != nil {
			return nil, fmt.Errorf("failed to update schedule: %w", err)
		}
	}
	if req.Categories != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM job_categories WHERE job_id = $1`, id); err != nil {
			return nil, fmt.Errorf("failed to clear categories: %w", err)
		}
		if err := insertLabels(ctx, tx, "job_categories", id, req.Categories); err != nil {
			return nil, err
		}
	}
	if req.Tags != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM job_tags WHERE job_id = $1`, id); err != nil {
			return nil, fmt.Errorf("failed to clear tags: %w", err)
		}
		if err := insertLabels(ctx, tx, "job_tags", id, req.Tags); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}
	return db.Get(ctx, id)
}

// Delete removes a job. Categories and tags cascade; audit trails are kept
// on purpose.
func (db *DB) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM article_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &types.ErrJobNotFound{JobID: id}
	}
	return nil
}

// Statistics returns job counts grouped by status.
func (db *DB) Statistics(ctx context.Context) (*types.QueueStatistics, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM article_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to query statistics: %w", err)
	}
	defer rows.Close()

	stats := &types.QueueStatistics{}
	for rows.Next() {
		var status types.JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan statistics: %w", err)
		}
		switch status {
		case types.StatusQueued:
			stats.Queued = count
		case types.StatusProcessing:
			stats.Processing = count
		case types.StatusCompleted:
			stats.Completed = count
		case types.StatusFailed:
			stats.Failed = count
		case types.StatusPublished:
			stats.Published = count
		}
		stats.Total += count
	}
	return stats, rows.Err()
}

// AddCategory appends a category to the job, ignoring duplicates.
func (db *DB) AddCategory(ctx context.Context, id uuid.UUID, category string) error {
	return db.addLabel(ctx, "job_categories", id, category)
}

// RemoveCategory removes a category from the job if present.
func (db *DB) RemoveCategory(ctx context.Context, id uuid.UUID, category string) error {
	return db.removeLabel(ctx, "job_categories", id, category)
}

// AddTag appends a tag to the job, ignoring duplicates.
func (db *DB) AddTag(ctx context.Context, id uuid.UUID, tag string) error {
	return db.addLabel(ctx, "job_tags", id, tag)
}

// RemoveTag removes a tag from the job if present.
func (db *DB) RemoveTag(ctx context.Context, id uuid.UUID, tag string) error {
	return db.removeLabel(ctx, "job_tags", id, tag)
}

func (db *DB) addLabel(ctx context.Context, table string, jobID uuid.UUID, name string) error {
	if err := db.requireJob(ctx, jobID); err != nil {
		return err
	}
	_, err := db.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (job_id, name, position)
		 SELECT $1, $2, COALESCE(MAX(position) + 1, 0) FROM %s WHERE job_id = $1
		 ON CONFLICT (job_id, name) DO NOTHING`, table, table),
		jobID, name)
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

func (db *DB) removeLabel(ctx context.Context, table string, jobID uuid.UUID, name string) error {
	if err := db.requireJob(ctx, jobID); err != nil {
		return err
	}
	_, err := db.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE job_id = $1 AND name = $2`, table), jobID, name)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return nil
}

func (db *DB) requireJob(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM article_jobs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check job existence: %w", err)
	}
	if !exists {
		return &types.ErrJobNotFound{JobID: id}
	}
	return nil
}

// transitionResult reports a successful transition or builds the precise
// error for a rejected one, leaving the row untouched either way.
func (db *DB) transitionResult(ctx context.Context, rowsAffected int64, id uuid.UUID, to types.JobStatus) error {
	if rowsAffected == 1 {
		return nil
	}

	var from types.JobStatus
	err := db.pool.QueryRow(ctx, `SELECT status FROM article_jobs WHERE id = $1`, id).Scan(&from)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &types.ErrJobNotFound{JobID: id}
		}
		return fmt.Errorf("failed to read job status: %w", err)
	}
	return &types.ErrInvalidTransition{JobID: id, From: from, To: to}
}

// scanJob scans one job row.
func scanJob(row pgx.Row) (*types.ArticleJob, error) {
	var job types.ArticleJob
	err := row.Scan(
		&job.ID, &job.ConfigurationID, &job.SeedTopic, &job.Status, &job.ScheduledAt, &job.CreatedAt,
		&job.ProcessingStartedAt, &job.ProcessingCompletedAt, &job.PublishedAt,
		&job.PublishedPostID, &job.PublishedPostURL, &job.ErrorMessage, &job.RetryCount,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// loadLabels populates the job's categories and tags in stored order.
func (db *DB) loadLabels(ctx context.Context, job *types.ArticleJob) error {
	categories, err := db.listLabels(ctx, "job_categories", job.ID)
	if err != nil {
		return err
	}
	tags, err := db.listLabels(ctx, "job_tags", job.ID)
	if err != nil {
		return err
	}
	job.Categories = categories
	job.Tags = tags
	return nil
}

func (db *DB) listLabels(ctx context.Context, table string, jobID uuid.UUID) ([]string, error) {
	rows, err := db.pool.Query(ctx,
		fmt.Sprintf(`SELECT name FROM %s WHERE job_id = $1 ORDER BY position`, table), jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func insertLabels(ctx context.Context, tx pgx.Tx, table string, jobID uuid.UUID, names []string) error {
	for i, name := range names {
		_, err := tx.Exec(ctx,
			fmt.Sprintf(`INSERT INTO %s (job_id, name, position) VALUES ($1, $2, $3)
			 ON CONFLICT (job_id, name) DO NOTHING`, table),
			jobID, name, i)
		if err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}
	return nil
}
