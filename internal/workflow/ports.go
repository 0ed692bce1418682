// Package workflow drives one article job through its generation phases,
// wrapping each phase with the retry policy and recording everything to the
// execution ledger.
package workflow

import (
	"context"

	"github.com/google/uuid"

	"github.com/jonathan/article-engine/internal/ledger"
	"github.com/jonathan/article-engine/internal/types"
)

// Phase names in execution order.
const (
	PhaseGenerateStructure = "generate_structure"
	PhaseWriteContent      = "write_content"
	PhaseGenerateAssets    = "generate_assets"
	PhaseOrganizeAssets    = "organize_assets"
	PhasePublish           = "publish"
)

// CallUsage reports the billable usage of one provider call so the
// orchestrator can record it in the ledger.
type CallUsage struct {
	API          string
	Operation    string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// ChapterSpec describes one planned chapter of the article.
type ChapterSpec struct {
	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords,omitempty"`
}

// Outline is the planned structure of the article.
type Outline struct {
	Title           string        `json:"title"`
	MetaDescription string        `json:"meta_description"`
	Chapters        []ChapterSpec `json:"chapters"`
	ImagePrompt     string        `json:"image_prompt,omitempty"`
}

// SectionResult is one written chapter plus its usage.
type SectionResult struct {
	HTML  string
	Usage CallUsage
}

// ContentGenerator produces the article structure and chapter content.
type ContentGenerator interface {
	// GenerateStructure plans the article outline from a seed topic.
	GenerateStructure(ctx context.Context, topic string, cfg *types.Configuration) (*Outline, CallUsage, error)
	// WriteSection writes one chapter. priorContext carries the tail of the
	// previously written chapters so the text stays coherent.
	WriteSection(ctx context.Context, chapter ChapterSpec, priorContext string, cfg *types.Configuration) (*SectionResult, error)
}

// GeneratedImage is one produced image and its billing detail.
type GeneratedImage struct {
	URL       string
	LocalPath string
	CostUSD   float64
}

// ImageGenerator produces images from prompts.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt, size, quality string) (*GeneratedImage, error)
}

// AssetFile is one file to hand to the asset store.
type AssetFile struct {
	Name      string
	SourceURL string
	LocalPath string
}

// UploadResult reports where uploaded assets ended up.
type UploadResult struct {
	URLs     []string
	MediaIDs []int64
	Manifest map[string]any
}

// AssetStore uploads generated assets to remote storage.
type AssetStore interface {
	Upload(ctx context.Context, cfg *types.Configuration, files []AssetFile) (*UploadResult, error)
}

// PostDraft is the content handed to the publisher.
type PostDraft struct {
	Title           string
	Content         string
	Excerpt         string
	Categories      []string
	Tags            []string
	FeaturedMediaID int64
	// Publish controls whether the post goes live immediately or is created
	// as a draft.
	Publish bool
}

// PostResult identifies the created remote post.
type PostResult struct {
	PostID  int64
	PostURL string
}

// Publisher creates and updates posts on the remote site.
type Publisher interface {
	CreatePost(ctx context.Context, cfg *types.Configuration, draft *PostDraft) (*PostResult, error)
	UpdatePostStatus(ctx context.Context, cfg *types.Configuration, postID int64, status string) error
}

// ConfigurationProvider resolves the generation configuration for a job.
// The orchestrator calls it once per run, right after claiming, and treats
// the result as an immutable snapshot.
type ConfigurationProvider interface {
	GetConfiguration(ctx context.Context, id uuid.UUID) (*types.Configuration, error)
}

// AuditSink persists the audit trail produced by a run.
type AuditSink interface {
	SaveAuditTrail(ctx context.Context, jobID uuid.UUID, trail *ledger.AuditTrail) error
}
