package main

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/jonathan/article-engine/internal/config"
	"github.com/jonathan/article-engine/internal/db"
	"github.com/jonathan/article-engine/internal/generation"
	"github.com/jonathan/article-engine/internal/images"
	"github.com/jonathan/article-engine/internal/ledger"
	"github.com/jonathan/article-engine/internal/llm"
	"github.com/jonathan/article-engine/internal/queue"
	"github.com/jonathan/article-engine/internal/vault"
	"github.com/jonathan/article-engine/internal/wordpress"
	"github.com/jonathan/article-engine/internal/workflow"
)

// engine bundles the wired collaborators shared by the worker and run
// commands.
type engine struct {
	db           *db.DB
	queue        *queue.Queue
	orchestrator *workflow.Orchestrator
	llm          *llm.GeminiClient
}

// close releases the engine's resources.
func (e *engine) close() {
	if e.llm != nil {
		if err := e.llm.Close(); err != nil {
			log.Printf("failed to close LLM client: %v", err)
		}
	}
	if e.db != nil {
		e.db.Close()
	}
}

// buildEngine connects the database and wires the orchestrator with real
// providers.
func buildEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database URL is required (flag --db-url, config file, or DATABASE_URL)")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required (config file or GEMINI_API_KEY)")
	}

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	v, err := vault.NewFromEnv()
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to open credential vault: %w", err)
	}

	llmClient, err := llm.NewGeminiClient(ctx, llm.DefaultConfig(), cfg.GeminiAPIKey)
	if err != nil {
		database.Close()
		return nil, err
	}

	generator, err := generation.New(llmClient)
	if err != nil {
		database.Close()
		return nil, err
	}

	// The image provider is optional; jobs with images enabled fail in the
	// asset phase when no key is configured.
	var imageClient workflow.ImageGenerator
	if cfg.OpenAIAPIKey != "" {
		client, err := images.NewClient(cfg.OpenAIAPIKey)
		if err != nil {
			database.Close()
			return nil, err
		}
		imageClient = client
	}

	wpClient := wordpress.NewClient(v)
	q := queue.New(database, database)

	audits, err := buildAuditSink(database, cfg.AuditDir)
	if err != nil {
		database.Close()
		return nil, err
	}

	opts := []workflow.Option{}
	if cfg.MaxAttempts > 0 {
		opts = append(opts, workflow.WithMaxAttempts(cfg.MaxAttempts))
	}

	orchestrator := workflow.New(
		q,
		database,
		generator,
		imageClient,
		wordpress.NewAssetStore(wpClient),
		wordpress.NewPublisher(wpClient),
		audits,
		opts...,
	)

	return &engine{
		db:           database,
		queue:        q,
		orchestrator: orchestrator,
		llm:          llmClient,
	}, nil
}

// multiSink fans an audit trail out to several sinks. A failing sink logs
// and does not block the others.
type multiSink []workflow.AuditSink

func (m multiSink) SaveAuditTrail(ctx context.Context, jobID uuid.UUID, trail *ledger.AuditTrail) error {
	for _, sink := range m {
		if err := sink.SaveAuditTrail(ctx, jobID, trail); err != nil {
			log.Printf("failed to persist audit trail for job %s: %v", jobID, err)
		}
	}
	return nil
}

func buildAuditSink(database *db.DB, auditDir string) (workflow.AuditSink, error) {
	if auditDir == "" {
		return database, nil
	}
	fileSink, err := ledger.NewFileSink(auditDir)
	if err != nil {
		return nil, err
	}
	return multiSink{database, fileSink}, nil
}

// loadEngineConfig merges the config file, environment and common flags.
func loadEngineConfig(path, dbURL string, verbose bool) (*config.Config, error) {
	cfg := &config.Config{}
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if err := loaded.Validate(); err != nil {
			return nil, err
		}
		cfg = loaded
		if verbose {
			log.Printf("Loaded config from: %s", path)
		}
	}

	if dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	cfg.FromEnv()
	return cfg, nil
}
