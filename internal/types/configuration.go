package types

import (
	"time"

	"github.com/google/uuid"
)

// ImageSize constants accepted by the image provider.
const (
	ImageSizeSquare   = "1024x1024"
	ImageSizeWide     = "1792x1024"
	ImageSizePortrait = "1024x1792"
	ImageQualityStd   = "standard"
	ImageQualityHD    = "hd"
)

// Configuration holds the generation preferences for a group of article jobs.
// The orchestrator reads it once at claim time and treats it as an immutable
// snapshot for the whole run; edits made mid-run apply to later runs only.
type Configuration struct {
	ID                     uuid.UUID `json:"id"`
	Name                   string    `json:"name"`
	ChapterCount           int       `json:"chapter_count"`
	WordsPerChapter        int       `json:"words_per_chapter"`
	ModelTier              string    `json:"model_tier"`
	AutoPublish            bool      `json:"auto_publish"`
	ImagesEnabled          bool      `json:"images_enabled"`
	ImageSize              string    `json:"image_size"`
	ImageQuality           string    `json:"image_quality"`
	AssetProvider          string    `json:"asset_provider"`
	AllowPartialCompletion bool      `json:"allow_partial_completion"`
	PhaseTimeoutSeconds    int       `json:"phase_timeout_seconds"`
	SiteURL                string    `json:"site_url"`
	SiteUsername           string    `json:"site_username"`
	// SitePasswordEncrypted is a vault-sealed application password. It is
	// decrypted only inside the publish and asset phases.
	SitePasswordEncrypted string    `json:"-"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// PhaseTimeout returns the per-phase timeout as a duration, or the given
// fallback when the configuration does not set one.
func (c *Configuration) PhaseTimeout(fallback time.Duration) time.Duration {
	if c.PhaseTimeoutSeconds <= 0 {
		return fallback
	}
	return time.Duration(c.PhaseTimeoutSeconds) * time.Second
}
