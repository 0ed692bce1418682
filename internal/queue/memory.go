package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/article-engine/internal/types"
)

// MemoryStore is an in-memory Store implementation. It backs unit tests and
// single-process deployments without Postgres, and mirrors the transition
// semantics of the SQL store exactly.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*types.ArticleJob
	// seq breaks creation-time ties so FIFO ordering is stable.
	seq     map[uuid.UUID]int64
	nextSeq int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[uuid.UUID]*types.ArticleJob),
		seq:  make(map[uuid.UUID]int64),
	}
}

// Create inserts a new job record.
func (s *MemoryStore) Create(_ context.Context, job *types.ArticleJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *job
	s.jobs[job.ID] = &copied
	s.seq[job.ID] = s.nextSeq
	s.nextSeq++
	return nil
}

// Get returns a copy of the job or *types.ErrJobNotFound.
func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*types.ArticleJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(id)
}

func (s *MemoryStore) getLocked(id uuid.UUID) (*types.ArticleJob, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, &types.ErrJobNotFound{JobID: id}
	}
	copied := *job
	return &copied, nil
}

// List returns jobs matching the filter, newest first.
func (s *MemoryStore) List(_ context.Context, filter types.JobFilter) ([]types.ArticleJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.ArticleJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.ConfigurationID != uuid.Nil && job.ConfigurationID != filter.ConfigurationID {
			continue
		}
		out = append(out, *job)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return s.seq[out[i].ID] > s.seq[out[j].ID]
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []types.ArticleJob{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// NextEligible returns the oldest schedule-eligible queued job, strict FIFO
// by creation time. A job scheduled in the future is skipped even if it is
// older than an eligible job.
func (s *MemoryStore) NextEligible(_ context.Context, now time.Time) (*types.ArticleJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *types.ArticleJob
	for _, job := range s.jobs {
		if job.Status != types.StatusQueued {
			continue
		}
		if job.ScheduledAt != nil && job.ScheduledAt.After(now) {
			continue
		}
		if best == nil || s.olderLocked(job, best) {
			best = job
		}
	}
	if best == nil {
		return nil, nil
	}
	copied := *best
	return &copied, nil
}

func (s *MemoryStore) olderLocked(a, b *types.ArticleJob) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return s.seq[a.ID] < s.seq[b.ID]
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// Claim transitions queued -> processing. The check and the set happen under
// one lock acquisition, so concurrent claimers see exactly one winner.
func (s *MemoryStore) Claim(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return false, &types.ErrJobNotFound{JobID: id}
	}
	if job.Status != types.StatusQueued {
		return false, nil
	}
	job.Status = types.StatusProcessing
	started := now
	job.ProcessingStartedAt = &started
	return true, nil
}

// MarkCompleted transitions processing -> completed.
func (s *MemoryStore) MarkCompleted(_ context.Context, id uuid.UUID, postID int64, postURL string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.transitionLocked(id, types.StatusCompleted)
	if err != nil {
		return err
	}
	completed := now
	job.ProcessingCompletedAt = &completed
	job.PublishedPostID = &postID
	job.PublishedPostURL = &postURL
	return nil
}

// MarkFailed transitions processing -> failed and increments retry_count.
func (s *MemoryStore) MarkFailed(_ context.Context, id uuid.UUID, message string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.transitionLocked(id, types.StatusFailed)
	if err != nil {
		return err
	}
	completed := now
	job.ProcessingCompletedAt = &completed
	job.ErrorMessage = &message
	job.RetryCount++
	return nil
}

// MarkPublished transitions completed -> published.
func (s *MemoryStore) MarkPublished(_ context.Context, id uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.transitionLocked(id, types.StatusPublished)
	if err != nil {
		return err
	}
	published := now
	job.PublishedAt = &published
	return nil
}

// Requeue transitions failed -> queued, clearing the error message while
// preserving retry_count.
func (s *MemoryStore) Requeue(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.transitionLocked(id, types.StatusQueued)
	if err != nil {
		return err
	}
	job.ErrorMessage = nil
	return nil
}

// ForceRequeue resets a processing job back to queued. Operator recovery for
// jobs orphaned by a worker crash; there is no automatic lease.
func (s *MemoryStore) ForceRequeue(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return &types.ErrJobNotFound{JobID: id}
	}
	if job.Status != types.StatusProcessing {
		return &types.ErrInvalidOperation{
			JobID:   id,
			Message: "force requeue applies only to processing jobs, current status is " + string(job.Status),
		}
	}
	job.Status = types.StatusQueued
	job.ErrorMessage = nil
	return nil
}

// Update applies a partial update to a queued job.
func (s *MemoryStore) Update(_ context.Context, id uuid.UUID, req *types.UpdateJobRequest) (*types.ArticleJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, &types.ErrJobNotFound{JobID: id}
	}
	if job.Status != types.StatusQueued {
		return nil, &types.ErrInvalidOperation{
			JobID:   id,
			Message: "only queued jobs can be updated, current status is " + string(job.Status),
		}
	}

	if req.SeedTopic != nil {
		job.SeedTopic = *req.SeedTopic
	}
	if req.ScheduledAt != nil {
		job.ScheduledAt = req.ScheduledAt
	}
	if req.Categories != nil {
		job.Categories = append([]string(nil), req.Categories...)
	}
	if req.Tags != nil {
		job.Tags = append([]string(nil), req.Tags...)
	}

	copied := *job
	return &copied, nil
}

// Delete removes the job and its attached categories and tags.
func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return &types.ErrJobNotFound{JobID: id}
	}
	delete(s.jobs, id)
	delete(s.seq, id)
	return nil
}

// Statistics returns job counts grouped by status.
func (s *MemoryStore) Statistics(_ context.Context) (*types.QueueStatistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &types.QueueStatistics{}
	for _, job := range s.jobs {
		switch job.Status {
		case types.StatusQueued:
			stats.Queued++
		case types.StatusProcessing:
			stats.Processing++
		case types.StatusCompleted:
			stats.Completed++
		case types.StatusFailed:
			stats.Failed++
		case types.StatusPublished:
			stats.Published++
		}
		stats.Total++
	}
	return stats, nil
}

// AddCategory appends a category if not already present.
func (s *MemoryStore) AddCategory(_ context.Context, id uuid.UUID, category string) error {
	return s.addLabel(id, category, func(j *types.ArticleJob) *[]string { return &j.Categories })
}

// RemoveCategory removes a category if present.
func (s *MemoryStore) RemoveCategory(_ context.Context, id uuid.UUID, category string) error {
	return s.removeLabel(id, category, func(j *types.ArticleJob) *[]string { return &j.Categories })
}

// AddTag appends a tag if not already present.
func (s *MemoryStore) AddTag(_ context.Context, id uuid.UUID, tag string) error {
	return s.addLabel(id, tag, func(j *types.ArticleJob) *[]string { return &j.Tags })
}

// RemoveTag removes a tag if present.
func (s *MemoryStore) RemoveTag(_ context.Context, id uuid.UUID, tag string) error {
	return s.removeLabel(id, tag, func(j *types.ArticleJob) *[]string { return &j.Tags })
}

func (s *MemoryStore) addLabel(id uuid.UUID, label string, field func(*types.ArticleJob) *[]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return &types.ErrJobNotFound{JobID: id}
	}
	labels := field(job)
	for _, existing := range *labels {
		if existing == label {
			return nil
		}
	}
	*labels = append(*labels, label)
	return nil
}

func (s *MemoryStore) removeLabel(id uuid.UUID, label string, field func(*types.ArticleJob) *[]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return &types.ErrJobNotFound{JobID: id}
	}
	labels := field(job)
	for i, existing := range *labels {
		if existing == label {
			*labels = append((*labels)[:i], (*labels)[i+1:]...)
			return nil
		}
	}
	return nil
}

// transitionLocked validates and applies a status transition. It returns
// *types.ErrInvalidTransition and leaves the job unchanged when the
// transition is not in the matrix.
func (s *MemoryStore) transitionLocked(id uuid.UUID, to types.JobStatus) (*types.ArticleJob, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, &types.ErrJobNotFound{JobID: id}
	}
	if !job.Status.CanTransitionTo(to) {
		return nil, &types.ErrInvalidTransition{JobID: id, From: job.Status, To: to}
	}
	job.Status = to
	return job, nil
}
