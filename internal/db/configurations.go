package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/article-engine/internal/types"
)

// -----------------------------------------------------------------------------
// Configuration Methods
// -----------------------------------------------------------------------------

const configurationColumns = `id, name, chapter_count, words_per_chapter, model_tier,
	auto_publish, images_enabled, image_size, image_quality, asset_provider,
	allow_partial_completion, phase_timeout_seconds,
	site_url, site_username, site_password_encrypted, created_at, updated_at`

// CreateConfiguration inserts a new configuration. The site password must
// already be vault-sealed by the caller.
func (db *DB) CreateConfiguration(ctx context.Context, cfg *types.Configuration) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO article_configurations (`+configurationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		cfg.ID, cfg.Name, cfg.ChapterCount, cfg.WordsPerChapter, cfg.ModelTier,
		cfg.AutoPublish, cfg.ImagesEnabled, cfg.ImageSize, cfg.ImageQuality, cfg.AssetProvider,
		cfg.AllowPartialCompletion, cfg.PhaseTimeoutSeconds,
		cfg.SiteURL, cfg.SiteUsername, cfg.SitePasswordEncrypted, cfg.CreatedAt, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create configuration: %w", err)
	}
	return nil
}

// GetConfiguration retrieves a configuration by ID.
func (db *DB) GetConfiguration(ctx context.Context, id uuid.UUID) (*types.Configuration, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+configurationColumns+` FROM article_configurations WHERE id = $1`, id)

	cfg, err := scanConfiguration(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &types.ErrConfigurationNotFound{ConfigurationID: id}
		}
		return nil, fmt.Errorf("failed to get configuration: %w", err)
	}
	return cfg, nil
}

// ListConfigurations retrieves all configurations, newest first.
func (db *DB) ListConfigurations(ctx context.Context) ([]types.Configuration, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+configurationColumns+` FROM article_configurations ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list configurations: %w", err)
	}
	defer rows.Close()

	var configs []types.Configuration
	for rows.Next() {
		cfg, err := scanConfiguration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan configuration: %w", err)
		}
		configs = append(configs, *cfg)
	}
	return configs, rows.Err()
}

// UpdateConfiguration replaces the mutable fields of a configuration.
// Running jobs keep the snapshot they read at claim time.
func (db *DB) UpdateConfiguration(ctx context.Context, cfg *types.Configuration) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE article_configurations
		 SET name = $2, chapter_count = $3, words_per_chapter = $4, model_tier = $5,
		     auto_publish = $6, images_enabled = $7, image_size = $8, image_quality = $9,
		     asset_provider = $10, allow_partial_completion = $11, phase_timeout_seconds = $12,
		     site_url = $13, site_username = $14, site_password_encrypted = $15,
		     updated_at = $16
		 WHERE id = $1`,
		cfg.ID, cfg.Name, cfg.ChapterCount, cfg.WordsPerChapter, cfg.ModelTier,
		cfg.AutoPublish, cfg.ImagesEnabled, cfg.ImageSize, cfg.ImageQuality,
		cfg.AssetProvider, cfg.AllowPartialCompletion, cfg.PhaseTimeoutSeconds,
		cfg.SiteURL, cfg.SiteUsername, cfg.SitePasswordEncrypted,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update configuration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &types.ErrConfigurationNotFound{ConfigurationID: cfg.ID}
	}
	return nil
}

// DeleteConfiguration removes a configuration. The jobs table references it
// with a plain foreign key, so deletion fails while jobs still point at it.
func (db *DB) DeleteConfiguration(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM article_configurations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete configuration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &types.ErrConfigurationNotFound{ConfigurationID: id}
	}
	return nil
}

func scanConfiguration(row pgx.Row) (*types.Configuration, error) {
	var cfg types.Configuration
	err := row.Scan(
		&cfg.ID, &cfg.Name, &cfg.ChapterCount, &cfg.WordsPerChapter, &cfg.ModelTier,
		&cfg.AutoPublish, &cfg.ImagesEnabled, &cfg.ImageSize, &cfg.ImageQuality, &cfg.AssetProvider,
		&cfg.AllowPartialCompletion, &cfg.PhaseTimeoutSeconds,
		&cfg.SiteURL, &cfg.SiteUsername, &cfg.SitePasswordEncrypted, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
