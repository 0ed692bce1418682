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
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue statistics",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withQueue(func(ctx context.Context, q *queue.Queue) error {
			stats, err := q.Statistics(ctx)
			if err != nil {
				return err
			}
			observability.NewPrinter(os.Stdout).PrintStatistics(stats)
			return nil
		})
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit <job-id>",
	Short: "Show stored audit trails for a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runAudit,
}

func init() {
	statsCmd.Flags().StringVar(&jobsDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	auditCmd.Flags().StringVar(&jobsDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	rootCmd.AddCommand(statsCmd, auditCmd)
}

func runAudit(_ *cobra.Command, args []string) error {
	return withJob(args[0], func(ctx context.Context, q *queue.Queue, id uuid.UUID) error {
		database, ok := q.Store().(*db.DB)
		if !ok {
			return fmt.Errorf("audit trails require a database-backed queue")
		}

		records, err := database.ListAuditTrails(ctx, id)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Printf("No audit trails for job %s\n", id)
			return nil
		}

		printer := observability.NewPrinter(os.Stdout)
		for _, record := range records {
			printer.PrintAuditTrail(record.Trail)
		}
		return nil
	})
}
