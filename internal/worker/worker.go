// Package worker runs the queue polling loop that feeds jobs to the
// workflow orchestrator.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/article-engine/internal/queue"
)

// Defaults for the polling loop.
const (
	DefaultWorkers      = 2
	DefaultPollInterval = 5 * time.Second
)

// Executor runs one claimed job end to end.
type Executor interface {
	Execute(ctx context.Context, jobID uuid.UUID) error
}

// Pool polls the queue and dispatches eligible jobs to an Executor. Several
// workers may race for the same job; the claim inside Execute decides the
// winner, so losing a race is not an error.
type Pool struct {
	queue    *queue.Queue
	executor Executor
	workers  int
	poll     time.Duration
}

// Option configures a Pool.
type Option func(*Pool)

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithPollInterval sets how long an idle worker waits between queue polls.
func WithPollInterval(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.poll = d
		}
	}
}

// New creates a Pool.
func New(q *queue.Queue, executor Executor, opts ...Option) *Pool {
	p := &Pool{
		queue:    q,
		executor: executor,
		workers:  DefaultWorkers,
		poll:     DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts the workers and blocks until the context is cancelled. Jobs
// already being processed finish before Run returns.
func (p *Pool) Run(ctx context.Context) error {
	log.Printf("Starting %d workers (poll interval %v)", p.workers, p.poll)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		worker := i + 1
		g.Go(func() error {
			return p.loop(ctx, worker)
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("worker pool stopped: %w", err)
	}
	log.Println("Worker pool stopped")
	return nil
}

// loop is one worker's poll-claim-execute cycle.
func (p *Pool) loop(ctx context.Context, worker int) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		job, err := p.queue.NextEligible(ctx)
		if err != nil {
			log.Printf("[worker %d] failed to poll queue: %v", worker, err)
			if err := p.sleep(ctx); err != nil {
				return err
			}
			continue
		}
		if job == nil {
			if err := p.sleep(ctx); err != nil {
				return err
			}
			continue
		}

		log.Printf("[worker %d] picked up job %s (%s)", worker, job.ID, job.SeedTopic)
		if err := p.executor.Execute(ctx, job.ID); err != nil {
			// Execute records the failure on the job itself; the loop keeps
			// going so one bad job cannot stall the queue.
			log.Printf("[worker %d] job %s failed: %v", worker, job.ID, err)
		}
	}
}

// sleep waits one poll interval, returning early on cancellation.
func (p *Pool) sleep(ctx context.Context) error {
	timer := time.NewTimer(p.poll)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
