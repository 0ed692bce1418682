// Package db provides PostgreSQL persistence for the article queue,
// generation configurations and audit trails.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Migrate applies the schema. Statements are idempotent so Migrate can run
// on every startup.
func (db *DB) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS article_configurations (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			chapter_count INT NOT NULL,
			words_per_chapter INT NOT NULL,
			model_tier TEXT NOT NULL DEFAULT 'standard',
			auto_publish BOOLEAN NOT NULL DEFAULT FALSE,
			images_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			image_size TEXT NOT NULL DEFAULT '1024x1024',
			image_quality TEXT NOT NULL DEFAULT 'standard',
			asset_provider TEXT NOT NULL DEFAULT 'wordpress',
			allow_partial_completion BOOLEAN NOT NULL DEFAULT FALSE,
			phase_timeout_seconds INT NOT NULL DEFAULT 0,
			site_url TEXT NOT NULL DEFAULT '',
			site_username TEXT NOT NULL DEFAULT '',
			site_password_encrypted TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS article_jobs (
			id UUID PRIMARY KEY,
			configuration_id UUID NOT NULL REFERENCES article_configurations(id),
			seed_topic TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'queued',
			scheduled_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			processing_started_at TIMESTAMPTZ,
			processing_completed_at TIMESTAMPTZ,
			published_at TIMESTAMPTZ,
			published_post_id BIGINT,
			published_post_url TEXT,
			error_message TEXT,
			retry_count INT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_article_jobs_eligibility
			ON article_jobs (created_at) WHERE status = 'queued'`,
		`CREATE TABLE IF NOT EXISTS job_categories (
			job_id UUID NOT NULL REFERENCES article_jobs(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			position INT NOT NULL DEFAULT 0,
			PRIMARY KEY (job_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS job_tags (
			job_id UUID NOT NULL REFERENCES article_jobs(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			position INT NOT NULL DEFAULT 0,
			PRIMARY KEY (job_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_trails (
			id BIGSERIAL PRIMARY KEY,
			job_id UUID NOT NULL,
			version TEXT NOT NULL,
			trail JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_trails_job ON audit_trails (job_id, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
