package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/article-engine/internal/observability"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single job through the workflow",
	Long: `Claims one specific job and runs it end-to-end: structure generation,
content writing, optional image generation and upload, then publishing.
Intended for operators; routine processing goes through the worker pool.`,
	RunE: runOneJob,
}

var (
	runConfigPath  string
	runDatabaseURL string
	runJobID       string
	runAuditDir    string
	runVerbose     bool
)

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	runCmd.Flags().StringVar(&runDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	runCmd.Flags().StringVar(&runJobID, "id", "", "Job ID to run (required)")
	runCmd.Flags().StringVar(&runAuditDir, "audit-dir", "", "Directory for audit trail JSON files (optional)")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print detailed debug information")
	_ = runCmd.MarkFlagRequired("id")

	rootCmd.AddCommand(runCmd)
}

func runOneJob(cmd *cobra.Command, _ []string) error {
	jobID, err := uuid.Parse(runJobID)
	if err != nil {
		return fmt.Errorf("invalid job ID %q: %w", runJobID, err)
	}

	cfg, err := loadEngineConfig(runConfigPath, runDatabaseURL, runVerbose)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("audit-dir") {
		cfg.AuditDir = runAuditDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer eng.close()

	execErr := eng.orchestrator.Execute(ctx, jobID)

	job, err := eng.queue.Get(ctx, jobID)
	if err == nil && runVerbose {
		observability.NewPrinter(os.Stdout).PrintJob(job)
	}

	if execErr != nil {
		return fmt.Errorf("job %s failed: %w", jobID, execErr)
	}
	return nil
}
