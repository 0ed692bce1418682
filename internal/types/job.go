// Package types provides type definitions for structured data used throughout the article-engine system.
package types

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of an article job.
type JobStatus string

// Job status constants
const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusPublished  JobStatus = "published"
)

// legalTransitions is the status transition matrix. Any transition not listed
// here is rejected. "published" is terminal and has no outgoing edge.
var legalTransitions = map[JobStatus][]JobStatus{
	StatusQueued:     {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {StatusPublished},
	StatusFailed:     {StatusQueued},
	StatusPublished:  {},
}

// IsValid reports whether s is a known job status.
func (s JobStatus) IsValid() bool {
	_, ok := legalTransitions[s]
	return ok
}

// CanTransitionTo reports whether the transition s -> target is legal.
func (s JobStatus) CanTransitionTo(target JobStatus) bool {
	for _, t := range legalTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// ArticleJob represents one article-generation request tracked by the queue.
type ArticleJob struct {
	ID                    uuid.UUID  `json:"id"`
	ConfigurationID       uuid.UUID  `json:"configuration_id"`
	SeedTopic             string     `json:"seed_topic"`
	Status                JobStatus  `json:"status"`
	ScheduledAt           *time.Time `json:"scheduled_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	ProcessingStartedAt   *time.Time `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time `json:"processing_completed_at,omitempty"`
	PublishedAt           *time.Time `json:"published_at,omitempty"`
	PublishedPostID       *int64     `json:"published_post_id,omitempty"`
	PublishedPostURL      *string    `json:"published_post_url,omitempty"`
	ErrorMessage          *string    `json:"error_message,omitempty"`
	RetryCount            int        `json:"retry_count"`
	Categories            []string   `json:"categories,omitempty"`
	Tags                  []string   `json:"tags,omitempty"`
}

// JobFilter narrows ListJobs results. Zero values mean "no filter".
type JobFilter struct {
	Status          JobStatus
	ConfigurationID uuid.UUID
	Limit           int
	Offset          int
}

// QueueStatistics holds job counts grouped by status.
type QueueStatistics struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Published  int `json:"published"`
	Total      int `json:"total"`
}
