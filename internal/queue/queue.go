// Package queue provides the article job queue and its status state machine.
//
// The queue is the single source of truth for job state. Every status change
// goes through a Store implementation that enforces the transition matrix
// atomically, so two workers racing for the same job cannot both claim it.
package queue

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/article-engine/internal/types"
)

// Store persists article jobs and enforces the status transition matrix.
// Implementations must apply each transition as a single atomic
// check-status-and-set operation.
type Store interface {
	// Create inserts a new job record.
	Create(ctx context.Context, job *types.ArticleJob) error
	// Get returns the job or *types.ErrJobNotFound.
	Get(ctx context.Context, id uuid.UUID) (*types.ArticleJob, error)
	// List returns jobs matching the filter, newest first.
	List(ctx context.Context, filter types.JobFilter) ([]types.ArticleJob, error)
	// NextEligible returns the oldest queued job whose scheduled_at is unset
	// or in the past, or nil if no job qualifies.
	NextEligible(ctx context.Context, now time.Time) (*types.ArticleJob, error)
	// Claim transitions queued -> processing via compare-and-set. It returns
	// false without error when the job was already claimed by another worker.
	Claim(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	// MarkCompleted transitions processing -> completed and records the
	// published post identity.
	MarkCompleted(ctx context.Context, id uuid.UUID, postID int64, postURL string, now time.Time) error
	// MarkFailed transitions processing -> failed, sets the error message and
	// increments retry_count.
	MarkFailed(ctx context.Context, id uuid.UUID, message string, now time.Time) error
	// MarkPublished transitions completed -> published.
	MarkPublished(ctx context.Context, id uuid.UUID, now time.Time) error
	// Requeue transitions failed -> queued, clearing the error message and
	// preserving retry_count.
	Requeue(ctx context.Context, id uuid.UUID) error
	// ForceRequeue resets a stuck processing job back to queued. Operator
	// recovery only; there is no automatic lease on processing jobs.
	ForceRequeue(ctx context.Context, id uuid.UUID) error
	// Update applies a partial update to a queued job.
	Update(ctx context.Context, id uuid.UUID, req *types.UpdateJobRequest) (*types.ArticleJob, error)
	// Delete removes the job and cascades to its categories and tags.
	Delete(ctx context.Context, id uuid.UUID) error
	// Statistics returns job counts grouped by status.
	Statistics(ctx context.Context) (*types.QueueStatistics, error)

	// AddCategory, RemoveCategory, AddTag and RemoveTag maintain the ordered
	// label sets attached to a job. Adding an existing label is a no-op.
	AddCategory(ctx context.Context, id uuid.UUID, category string) error
	RemoveCategory(ctx context.Context, id uuid.UUID, category string) error
	AddTag(ctx context.Context, id uuid.UUID, tag string) error
	RemoveTag(ctx context.Context, id uuid.UUID, tag string) error
}

// ConfigurationProvider resolves generation configurations referenced by jobs.
type ConfigurationProvider interface {
	// GetConfiguration returns the configuration or
	// *types.ErrConfigurationNotFound.
	GetConfiguration(ctx context.Context, id uuid.UUID) (*types.Configuration, error)
}

// Queue wraps a Store with enqueue-time validation.
type Queue struct {
	store   Store
	configs ConfigurationProvider
	now     func() time.Time
}

// New creates a Queue backed by the given store and configuration provider.
func New(store Store, configs ConfigurationProvider) *Queue {
	return &Queue{
		store:   store,
		configs: configs,
		now:     time.Now,
	}
}

// Store exposes the underlying store for callers that need direct access,
// such as the worker claim loop.
func (q *Queue) Store() Store {
	return q.store
}

// Enqueue validates the request, verifies the referenced configuration
// exists, and inserts a new queued job. It returns the created job.
func (q *Queue) Enqueue(ctx context.Context, req *types.EnqueueJobRequest) (*types.ArticleJob, error) {
	if err := req.Validate(); err != nil {
		return nil, &types.ErrValidation{Field: "request", Message: err.Error()}
	}
	if strings.TrimSpace(req.SeedTopic) == "" {
		return nil, &types.ErrValidation{Field: "seed_topic", Message: "seed topic is required"}
	}

	configID, err := uuid.Parse(req.ConfigurationID)
	if err != nil {
		return nil, &types.ErrValidation{Field: "configuration_id", Message: "must be a valid UUID"}
	}

	// The configuration must exist before the job is accepted; a dangling
	// reference would only fail later inside a worker.
	if _, err := q.configs.GetConfiguration(ctx, configID); err != nil {
		return nil, err
	}

	job := &types.ArticleJob{
		ID:              uuid.New(),
		ConfigurationID: configID,
		SeedTopic:       strings.TrimSpace(req.SeedTopic),
		Status:          types.StatusQueued,
		ScheduledAt:     req.ScheduledAt,
		CreatedAt:       q.now().UTC(),
		Categories:      dedupe(req.Categories),
		Tags:            dedupe(req.Tags),
	}

	if err := q.store.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Get returns the job by ID.
func (q *Queue) Get(ctx context.Context, id uuid.UUID) (*types.ArticleJob, error) {
	return q.store.Get(ctx, id)
}

// List returns jobs matching the filter.
func (q *Queue) List(ctx context.Context, filter types.JobFilter) ([]types.ArticleJob, error) {
	return q.store.List(ctx, filter)
}

// NextEligible returns the next claimable job, or nil when the queue is idle.
func (q *Queue) NextEligible(ctx context.Context) (*types.ArticleJob, error) {
	return q.store.NextEligible(ctx, q.now().UTC())
}

// Claim attempts the atomic queued -> processing transition.
func (q *Queue) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	return q.store.Claim(ctx, id, q.now().UTC())
}

// MarkCompleted records a successful run and the resulting post identity.
func (q *Queue) MarkCompleted(ctx context.Context, id uuid.UUID, postID int64, postURL string) error {
	return q.store.MarkCompleted(ctx, id, postID, postURL, q.now().UTC())
}

// MarkFailed records a failed run with the captured error message.
func (q *Queue) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	return q.store.MarkFailed(ctx, id, message, q.now().UTC())
}

// MarkPublished records that the completed post went live.
func (q *Queue) MarkPublished(ctx context.Context, id uuid.UUID) error {
	return q.store.MarkPublished(ctx, id, q.now().UTC())
}

// Requeue puts a failed job back in the queue for another attempt. With force
// set it also recovers a job stuck in processing after a worker crash.
func (q *Queue) Requeue(ctx context.Context, id uuid.UUID, force bool) error {
	if force {
		return q.store.ForceRequeue(ctx, id)
	}
	return q.store.Requeue(ctx, id)
}

// Update applies a partial update to a queued job.
func (q *Queue) Update(ctx context.Context, id uuid.UUID, req *types.UpdateJobRequest) (*types.ArticleJob, error) {
	if err := req.Validate(); err != nil {
		return nil, &types.ErrValidation{Field: "request", Message: err.Error()}
	}
	return q.store.Update(ctx, id, req)
}

// Cancel removes a job that has not started processing. Cancelling a
// processing job is rejected: there is no mid-flight cancellation signal, so
// the running worker would republish over the operator's intent.
func (q *Queue) Cancel(ctx context.Context, id uuid.UUID) error {
	job, err := q.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != types.StatusQueued {
		return &types.ErrInvalidOperation{
			JobID:   id,
			Message: "only queued jobs can be cancelled, current status is " + string(job.Status),
		}
	}
	return q.store.Delete(ctx, id)
}

// Delete removes the job regardless of status, cascading to categories and
// tags. Audit trails reference jobs by ID and survive the delete.
func (q *Queue) Delete(ctx context.Context, id uuid.UUID) error {
	return q.store.Delete(ctx, id)
}

// Statistics returns job counts grouped by status.
func (q *Queue) Statistics(ctx context.Context) (*types.QueueStatistics, error) {
	return q.store.Statistics(ctx)
}

// dedupe returns the values with duplicates removed, preserving first-seen
// order.
func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
