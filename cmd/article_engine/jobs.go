package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/article-engine/internal/db"
	"github.com/jonathan/article-engine/internal/observability"
	"github.com/jonathan/article-engine/internal/queue"
	"github.com/jonathan/article-engine/internal/types"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage queued jobs",
}

var (
	jobsDatabaseURL string
	jobsStatus      string
	jobsLimit       int
	jobsForce       bool
)

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, newest first",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withQueue(func(ctx context.Context, q *queue.Queue) error {
			filter := types.JobFilter{Limit: jobsLimit}
			if jobsStatus != "" {
				status := types.JobStatus(jobsStatus)
				if !status.IsValid() {
					return fmt.Errorf("unknown status %q", jobsStatus)
				}
				filter.Status = status
			}

			jobs, err := q.List(ctx, filter)
			if err != nil {
				return err
			}
			observability.NewPrinter(os.Stdout).PrintJobList(jobs)
			return nil
		})
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show one job in detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return withJob(args[0], func(ctx context.Context, q *queue.Queue, id uuid.UUID) error {
			job, err := q.Get(ctx, id)
			if err != nil {
				return err
			}
			observability.NewPrinter(os.Stdout).PrintJob(job)
			return nil
		})
	},
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a job that has not started processing",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return withJob(args[0], func(ctx context.Context, q *queue.Queue, id uuid.UUID) error {
			if err := q.Cancel(ctx, id); err != nil {
				return err
			}
			fmt.Printf("Cancelled job %s\n", id)
			return nil
		})
	},
}

var jobsRequeueCmd = &cobra.Command{
	Use:   "requeue <job-id>",
	Short: "Put a failed job back in the queue",
	Long: `Puts a failed job back in the queue for another run. With --force it
also recovers a job stuck in processing after a worker crash.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return withJob(args[0], func(ctx context.Context, q *queue.Queue, id uuid.UUID) error {
			if err := q.Requeue(ctx, id, jobsForce); err != nil {
				return err
			}
			fmt.Printf("Requeued job %s\n", id)
			return nil
		})
	},
}

var jobsDeleteCmd = &cobra.Command{
	Use:   "delete <job-id>",
	Short: "Delete a job regardless of status",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return withJob(args[0], func(ctx context.Context, q *queue.Queue, id uuid.UUID) error {
			if err := q.Delete(ctx, id); err != nil {
				return err
			}
			fmt.Printf("Deleted job %s\n", id)
			return nil
		})
	},
}

func init() {
	jobsCmd.PersistentFlags().StringVar(&jobsDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	jobsListCmd.Flags().StringVar(&jobsStatus, "status", "", "Filter by status (queued, processing, completed, failed, published)")
	jobsListCmd.Flags().IntVar(&jobsLimit, "limit", 20, "Maximum jobs to list")
	jobsRequeueCmd.Flags().BoolVar(&jobsForce, "force", false, "Also recover a job stuck in processing")

	jobsCmd.AddCommand(jobsListCmd, jobsShowCmd, jobsCancelCmd, jobsRequeueCmd, jobsDeleteCmd)
	rootCmd.AddCommand(jobsCmd)
}

// withQueue connects to the database and hands a queue to fn.
func withQueue(fn func(ctx context.Context, q *queue.Queue) error) error {
	databaseURL := jobsDatabaseURL
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		return fmt.Errorf("database URL is required (flag --db-url or DATABASE_URL)")
	}

	ctx := context.Background()
	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	return fn(ctx, queue.New(database, database))
}

func withJob(rawID string, fn func(ctx context.Context, q *queue.Queue, id uuid.UUID) error) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid job ID %q: %w", rawID, err)
	}
	return withQueue(func(ctx context.Context, q *queue.Queue) error {
		return fn(ctx, q, id)
	})
}
