package types

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// EnqueueJobRequest represents the request to enqueue a new article job.
type EnqueueJobRequest struct {
	ConfigurationID string     `json:"configuration_id" validate:"required,uuid4"`
	SeedTopic       string     `json:"seed_topic" validate:"required,min=3"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
	Categories      []string   `json:"categories,omitempty" validate:"dive,min=1"`
	Tags            []string   `json:"tags,omitempty" validate:"dive,min=1"`
}

// UpdateJobRequest represents a partial update to a queued job. Only the
// fields that are non-nil are applied.
type UpdateJobRequest struct {
	SeedTopic   *string    `json:"seed_topic,omitempty" validate:"omitempty,min=3"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	Categories  []string   `json:"categories,omitempty" validate:"dive,min=1"`
	Tags        []string   `json:"tags,omitempty" validate:"dive,min=1"`
}

// CreateConfigurationRequest represents the request to create a generation
// configuration.
type CreateConfigurationRequest struct {
	Name                   string `json:"name" validate:"required,min=1"`
	ChapterCount           int    `json:"chapter_count" validate:"required,min=1,max=20"`
	WordsPerChapter        int    `json:"words_per_chapter" validate:"required,min=100,max=5000"`
	ModelTier              string `json:"model_tier" validate:"omitempty,oneof=lite standard advanced"`
	AutoPublish            bool   `json:"auto_publish"`
	ImagesEnabled          bool   `json:"images_enabled"`
	ImageSize              string `json:"image_size" validate:"omitempty,oneof=1024x1024 1792x1024 1024x1792"`
	ImageQuality           string `json:"image_quality" validate:"omitempty,oneof=standard hd"`
	AssetProvider          string `json:"asset_provider" validate:"omitempty,oneof=wordpress"`
	AllowPartialCompletion bool   `json:"allow_partial_completion"`
	PhaseTimeoutSeconds    int    `json:"phase_timeout_seconds" validate:"omitempty,min=10,max=3600"`
	SiteURL                string `json:"site_url" validate:"omitempty,url"`
	SiteUsername           string `json:"site_username,omitempty"`
	SitePassword           string `json:"site_password,omitempty"`
}

// TokenRequest represents the operator token request.
type TokenRequest struct {
	Secret string `json:"secret" validate:"required"`
}

// Validate validates the EnqueueJobRequest using the validator.
func (r *EnqueueJobRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the UpdateJobRequest using the validator.
func (r *UpdateJobRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the CreateConfigurationRequest using the validator.
func (r *CreateConfigurationRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the TokenRequest using the validator.
func (r *TokenRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
