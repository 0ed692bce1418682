package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/article-engine/internal/db"
	"github.com/jonathan/article-engine/internal/observability"
	"github.com/jonathan/article-engine/internal/queue"
	"github.com/jonathan/article-engine/internal/types"
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Enqueue a new article job",
	RunE:  runEnqueue,
}

var (
	enqueueConfigPath  string
	enqueueDatabaseURL string
	enqueueConfigID    string
	enqueueTopic       string
	enqueueScheduledAt string
	enqueueCategories  []string
	enqueueTags        []string
	enqueueVerbose     bool
)

func init() {
	enqueueCmd.Flags().StringVar(&enqueueConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	enqueueCmd.Flags().StringVar(&enqueueDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	enqueueCmd.Flags().StringVar(&enqueueConfigID, "configuration", "", "Configuration ID the job runs under (required)")
	enqueueCmd.Flags().StringVarP(&enqueueTopic, "topic", "t", "", "Seed topic for the article (required)")
	enqueueCmd.Flags().StringVar(&enqueueScheduledAt, "scheduled-at", "", "Earliest start time, RFC 3339 (optional)")
	enqueueCmd.Flags().StringSliceVar(&enqueueCategories, "category", nil, "Category to attach (repeatable)")
	enqueueCmd.Flags().StringSliceVar(&enqueueTags, "tag", nil, "Tag to attach (repeatable)")
	enqueueCmd.Flags().BoolVarP(&enqueueVerbose, "verbose", "v", false, "Print detailed debug information")
	_ = enqueueCmd.MarkFlagRequired("configuration")
	_ = enqueueCmd.MarkFlagRequired("topic")

	rootCmd.AddCommand(enqueueCmd)
}

func runEnqueue(_ *cobra.Command, _ []string) error {
	cfg, err := loadEngineConfig(enqueueConfigPath, enqueueDatabaseURL, enqueueVerbose)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database URL is required (flag --db-url, config file, or DATABASE_URL)")
	}

	ctx := context.Background()
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()
	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	req := &types.EnqueueJobRequest{
		ConfigurationID: enqueueConfigID,
		SeedTopic:       enqueueTopic,
		Categories:      enqueueCategories,
		Tags:            enqueueTags,
	}
	if enqueueScheduledAt != "" {
		at, err := time.Parse(time.RFC3339, enqueueScheduledAt)
		if err != nil {
			return fmt.Errorf("invalid --scheduled-at %q: %w", enqueueScheduledAt, err)
		}
		req.ScheduledAt = &at
	}

	job, err := queue.New(database, database).Enqueue(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("Enqueued job %s\n", job.ID)
	if enqueueVerbose {
		observability.NewPrinter(os.Stdout).PrintJob(job)
	}
	return nil
}
