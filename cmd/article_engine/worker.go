package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/article-engine/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the queue worker pool",
	Long: `Polls the job queue and runs eligible jobs through the generation workflow.
Workers claim jobs atomically, so multiple worker processes can share one queue.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values.`,
	RunE: runWorker,
}

var (
	workerConfigPath   string
	workerDatabaseURL  string
	workerCount        int
	workerPollInterval int
	workerAuditDir     string
	workerMaxAttempts  int
	workerVerbose      bool
)

func init() {
	workerCmd.Flags().StringVar(&workerConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	workerCmd.Flags().StringVar(&workerDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	workerCmd.Flags().IntVar(&workerCount, "workers", 0, "Number of concurrent workers")
	workerCmd.Flags().IntVar(&workerPollInterval, "poll-interval", 0, "Seconds between queue polls when idle")
	workerCmd.Flags().StringVar(&workerAuditDir, "audit-dir", "", "Directory for audit trail JSON files (optional)")
	workerCmd.Flags().IntVar(&workerMaxAttempts, "max-attempts", 0, "Per-phase retry attempts")
	workerCmd.Flags().BoolVarP(&workerVerbose, "verbose", "v", false, "Print detailed debug information")

	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	cfg, err := loadEngineConfig(workerConfigPath, workerDatabaseURL, workerVerbose)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = workerCount
	}
	if cmd.Flags().Changed("poll-interval") {
		cfg.PollIntervalSeconds = workerPollInterval
	}
	if cmd.Flags().Changed("audit-dir") {
		cfg.AuditDir = workerAuditDir
	}
	if cmd.Flags().Changed("max-attempts") {
		cfg.MaxAttempts = workerMaxAttempts
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer eng.close()

	opts := []worker.Option{}
	if cfg.Workers > 0 {
		opts = append(opts, worker.WithWorkers(cfg.Workers))
	}
	if cfg.PollIntervalSeconds > 0 {
		opts = append(opts, worker.WithPollInterval(time.Duration(cfg.PollIntervalSeconds)*time.Second))
	}

	pool := worker.New(eng.queue, eng.orchestrator, opts...)
	return pool.Run(ctx)
}
