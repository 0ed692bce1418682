package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/article-engine/internal/ledger"
	"github.com/jonathan/article-engine/internal/queue"
	"github.com/jonathan/article-engine/internal/retry"
	"github.com/jonathan/article-engine/internal/types"
)

// fixture wires an orchestrator against the in-memory store and recording
// fakes for every provider.
type fixture struct {
	store     *queue.MemoryStore
	queue     *queue.Queue
	configs   *stubConfigs
	content   *stubContent
	images    *stubImages
	assets    *stubAssets
	publisher *stubPublisher
	audits    *stubAudits
	job       *types.ArticleJob
}

type stubConfigs struct {
	cfg *types.Configuration
	err error
}

func (s *stubConfigs) GetConfiguration(_ context.Context, id uuid.UUID) (*types.Configuration, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.cfg, nil
}

type stubContent struct {
	structureErr error
	sectionErr   error
	sections     int
}

func (s *stubContent) GenerateStructure(_ context.Context, topic string, _ *types.Configuration) (*Outline, CallUsage, error) {
	if s.structureErr != nil {
		return nil, CallUsage{}, s.structureErr
	}
	outline := &Outline{
		Title:           "On " + topic,
		MetaDescription: "A short piece about " + topic,
		Chapters: []ChapterSpec{
			{Title: "Origins", Summary: "Where it began"},
			{Title: "Today", Summary: "Where it stands"},
		},
		ImagePrompt: "An illustration of " + topic,
	}
	usage := CallUsage{API: "gemini", Operation: "generate_structure", InputTokens: 100, OutputTokens: 300, CostUSD: 0.02}
	return outline, usage, nil
}

func (s *stubContent) WriteSection(_ context.Context, chapter ChapterSpec, _ string, _ *types.Configuration) (*SectionResult, error) {
	if s.sectionErr != nil {
		return nil, s.sectionErr
	}
	s.sections++
	return &SectionResult{
		HTML:  "<p>Content for " + chapter.Title + "</p>",
		Usage: CallUsage{API: "gemini", Operation: "write_section", InputTokens: 200, OutputTokens: 800, CostUSD: 0.05},
	}, nil
}

type stubImages struct {
	err   error
	calls int
}

func (s *stubImages) GenerateImage(_ context.Context, prompt, size, quality string) (*GeneratedImage, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &GeneratedImage{URL: "https://images.example.com/1.png", CostUSD: 0.04}, nil
}

type stubAssets struct {
	err   error
	calls int
}

func (s *stubAssets) Upload(_ context.Context, _ *types.Configuration, files []AssetFile) (*UploadResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &UploadResult{
		URLs:     []string{"https://example.com/media/1.png"},
		MediaIDs: []int64{77},
	}, nil
}

type stubPublisher struct {
	err       error
	lastDraft *PostDraft
}

func (s *stubPublisher) CreatePost(_ context.Context, _ *types.Configuration, draft *PostDraft) (*PostResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.lastDraft = draft
	return &PostResult{PostID: 1234, PostURL: "https://example.com/?p=1234"}, nil
}

func (s *stubPublisher) UpdatePostStatus(context.Context, *types.Configuration, int64, string) error {
	return nil
}

type stubAudits struct {
	trails []*ledger.AuditTrail
}

func (s *stubAudits) SaveAuditTrail(_ context.Context, _ uuid.UUID, trail *ledger.AuditTrail) error {
	s.trails = append(s.trails, trail)
	return nil
}

func newFixture(t *testing.T, cfg *types.Configuration) *fixture {
	t.Helper()

	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	store := queue.NewMemoryStore()
	job := &types.ArticleJob{
		ID:              uuid.New(),
		ConfigurationID: cfg.ID,
		SeedTopic:       "the transistor",
		Status:          types.StatusQueued,
		CreatedAt:       time.Now().UTC(),
		Categories:      []string{"history"},
		Tags:            []string{"electronics"},
	}
	require.NoError(t, store.Create(context.Background(), job))

	return &fixture{
		store:     store,
		queue:     queue.New(store, &stubConfigs{cfg: cfg}),
		configs:   &stubConfigs{cfg: cfg},
		content:   &stubContent{},
		images:    &stubImages{},
		assets:    &stubAssets{},
		publisher: &stubPublisher{},
		audits:    &stubAudits{},
		job:       job,
	}
}

func (f *fixture) orchestrator(opts ...Option) *Orchestrator {
	noSleep := retry.NewPolicy().WithSleep(func(context.Context, time.Duration) error { return nil })
	opts = append([]Option{WithRetryPolicy(noSleep)}, opts...)
	return New(f.queue, f.configs, f.content, f.images, f.assets, f.publisher, f.audits, opts...)
}

func (f *fixture) jobStatus(t *testing.T) types.JobStatus {
	t.Helper()
	job, err := f.store.Get(context.Background(), f.job.ID)
	require.NoError(t, err)
	return job.Status
}

func TestOrchestrator_ExecuteSuccess(t *testing.T) {
	f := newFixture(t, &types.Configuration{Name: "plain", ChapterCount: 2, WordsPerChapter: 500})

	err := f.orchestrator().Execute(context.Background(), f.job.ID)
	require.NoError(t, err)

	assert.Equal(t, types.StatusCompleted, f.jobStatus(t))
	assert.Equal(t, 2, f.content.sections)
	assert.Zero(t, f.images.calls, "images should be skipped when disabled")

	job, err := f.store.Get(context.Background(), f.job.ID)
	require.NoError(t, err)
	require.NotNil(t, job.PublishedPostID)
	assert.Equal(t, int64(1234), *job.PublishedPostID)

	require.NotNil(t, f.publisher.lastDraft)
	assert.Equal(t, "On the transistor", f.publisher.lastDraft.Title)
	assert.Equal(t, []string{"history"}, f.publisher.lastDraft.Categories)
	assert.False(t, f.publisher.lastDraft.Publish)

	require.Len(t, f.audits.trails, 1)
	trail := f.audits.trails[0]
	assert.Equal(t, ledger.ExecutionSuccess, trail.Summary.Status)
	assert.InDelta(t, 0.12, trail.Summary.TotalCostUSD, 1e-9)
	require.Len(t, trail.Phases, 3)
	assert.Equal(t, PhaseGenerateStructure, trail.Phases[0].Phase)
	assert.Equal(t, PhaseWriteContent, trail.Phases[1].Phase)
	assert.Equal(t, PhasePublish, trail.Phases[2].Phase)
}

func TestOrchestrator_ExecuteAutoPublish(t *testing.T) {
	f := newFixture(t, &types.Configuration{Name: "auto", ChapterCount: 2, WordsPerChapter: 500, AutoPublish: true})

	require.NoError(t, f.orchestrator().Execute(context.Background(), f.job.ID))

	assert.Equal(t, types.StatusPublished, f.jobStatus(t))
	require.NotNil(t, f.publisher.lastDraft)
	assert.True(t, f.publisher.lastDraft.Publish)
}

func TestOrchestrator_ExecuteWithImages(t *testing.T) {
	f := newFixture(t, &types.Configuration{
		Name:            "illustrated",
		ChapterCount:    2,
		WordsPerChapter: 500,
		ImagesEnabled:   true,
		ImageSize:       types.ImageSizeWide,
		ImageQuality:    types.ImageQualityHD,
	})

	require.NoError(t, f.orchestrator().Execute(context.Background(), f.job.ID))

	assert.Equal(t, 1, f.images.calls)
	assert.Equal(t, 1, f.assets.calls)
	require.NotNil(t, f.publisher.lastDraft)
	assert.Equal(t, int64(77), f.publisher.lastDraft.FeaturedMediaID)

	require.Len(t, f.audits.trails, 1)
	require.Len(t, f.audits.trails[0].Phases, 5)
}

func TestOrchestrator_ExecuteAlreadyClaimed(t *testing.T) {
	f := newFixture(t, &types.Configuration{Name: "plain", ChapterCount: 2, WordsPerChapter: 500})

	claimed, err := f.store.Claim(context.Background(), f.job.ID, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, claimed)

	err = f.orchestrator().Execute(context.Background(), f.job.ID)
	require.NoError(t, err, "losing the claim race is not an error")
	assert.Zero(t, f.content.sections, "no phase should run without the claim")
	assert.Empty(t, f.audits.trails)
}

func TestOrchestrator_ExecuteUnknownJob(t *testing.T) {
	f := newFixture(t, &types.Configuration{Name: "plain", ChapterCount: 2, WordsPerChapter: 500})

	err := f.orchestrator().Execute(context.Background(), uuid.New())
	var notFound *types.ErrJobNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestOrchestrator_ExecuteConfigurationLookupFails(t *testing.T) {
	f := newFixture(t, &types.Configuration{Name: "plain", ChapterCount: 2, WordsPerChapter: 500})
	f.configs.err = &types.ErrConfigurationNotFound{ConfigurationID: f.job.ConfigurationID}

	err := f.orchestrator().Execute(context.Background(), f.job.ID)
	require.Error(t, err)
	var cfgErr *types.ErrConfiguration
	assert.ErrorAs(t, err, &cfgErr)

	assert.Equal(t, types.StatusFailed, f.jobStatus(t))
	require.Len(t, f.audits.trails, 1, "a failed run still persists its audit trail")
	assert.Equal(t, 1, f.audits.trails[0].Summary.ErrorCount)
}

func TestOrchestrator_ExecutePhaseFailureMarksFailed(t *testing.T) {
	f := newFixture(t, &types.Configuration{Name: "plain", ChapterCount: 2, WordsPerChapter: 500})
	f.content.structureErr = &types.ErrContentGeneration{Message: "blocked", PolicyViolation: true}

	err := f.orchestrator().Execute(context.Background(), f.job.ID)
	require.Error(t, err)

	assert.Equal(t, types.StatusFailed, f.jobStatus(t))
	job, getErr := f.store.Get(context.Background(), f.job.ID)
	require.NoError(t, getErr)
	assert.Equal(t, 1, job.RetryCount)
	require.NotNil(t, job.ErrorMessage)

	require.Len(t, f.audits.trails, 1)
	trail := f.audits.trails[0]
	assert.Equal(t, ledger.ExecutionFailed, trail.Summary.Status)
	require.Len(t, trail.Phases, 1)
	assert.Equal(t, ledger.PhaseFailed, trail.Phases[0].Status)
	require.NotNil(t, trail.Phases[0].Error)
	assert.Equal(t, retry.CategoryContentPolicy, trail.Phases[0].Error.Category)
}

func TestOrchestrator_RetryWithinPhase(t *testing.T) {
	f := newFixture(t, &types.Configuration{Name: "plain", ChapterCount: 2, WordsPerChapter: 500})

	failures := 2
	f.content.structureErr = nil
	content := &flakyContent{inner: f.content, failuresLeft: &failures}
	o := New(f.queue, f.configs, content, f.images, f.assets, f.publisher, f.audits,
		WithRetryPolicy(retry.NewPolicy().WithSleep(func(context.Context, time.Duration) error { return nil })),
		WithMaxAttempts(3))

	require.NoError(t, o.Execute(context.Background(), f.job.ID))

	require.Len(t, f.audits.trails, 1)
	structure := f.audits.trails[0].Phases[0]
	assert.Equal(t, ledger.PhaseCompleted, structure.Status)
	assert.Equal(t, 3, structure.Result["attempts"])
}

// flakyContent fails GenerateStructure a fixed number of times before
// delegating.
type flakyContent struct {
	inner        ContentGenerator
	failuresLeft *int
}

func (f *flakyContent) GenerateStructure(ctx context.Context, topic string, cfg *types.Configuration) (*Outline, CallUsage, error) {
	if *f.failuresLeft > 0 {
		*f.failuresLeft--
		return nil, CallUsage{}, &types.ErrContentGeneration{Message: "upstream reset", StatusCode: 502}
	}
	return f.inner.GenerateStructure(ctx, topic, cfg)
}

func (f *flakyContent) WriteSection(ctx context.Context, chapter ChapterSpec, prior string, cfg *types.Configuration) (*SectionResult, error) {
	return f.inner.WriteSection(ctx, chapter, prior, cfg)
}

func TestOrchestrator_RetryBudgetExhausted(t *testing.T) {
	f := newFixture(t, &types.Configuration{Name: "plain", ChapterCount: 2, WordsPerChapter: 500})
	f.content.structureErr = &types.ErrContentGeneration{Message: "upstream reset", StatusCode: 502}

	err := f.orchestrator(WithMaxAttempts(2)).Execute(context.Background(), f.job.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 2 attempts")
	assert.Equal(t, types.StatusFailed, f.jobStatus(t))
}

func TestOrchestrator_OptionalImagePhaseTolerated(t *testing.T) {
	f := newFixture(t, &types.Configuration{
		Name:                   "tolerant",
		ChapterCount:           2,
		WordsPerChapter:        500,
		ImagesEnabled:          true,
		AllowPartialCompletion: true,
	})
	f.images.err = &types.ErrImageGeneration{Message: "provider down"}

	require.NoError(t, f.orchestrator(WithMaxAttempts(1)).Execute(context.Background(), f.job.ID))

	assert.Equal(t, types.StatusCompleted, f.jobStatus(t), "image failure should not sink the run when partial completion is allowed")
	assert.Zero(t, f.assets.calls, "organize_assets should be skipped when generation failed")
	require.NotNil(t, f.publisher.lastDraft)
	assert.Zero(t, f.publisher.lastDraft.FeaturedMediaID)

	require.Len(t, f.audits.trails, 1)
	trail := f.audits.trails[0]
	assert.Equal(t, ledger.ExecutionPartialSuccess, trail.Summary.Status)
	assert.Equal(t, 1, trail.Summary.WarningCount)
}

func TestOrchestrator_OptionalImagePhaseFatalWithoutTolerance(t *testing.T) {
	f := newFixture(t, &types.Configuration{
		Name:            "strict",
		ChapterCount:    2,
		WordsPerChapter: 500,
		ImagesEnabled:   true,
	})
	f.images.err = &types.ErrImageGeneration{Message: "provider down"}

	err := f.orchestrator(WithMaxAttempts(1)).Execute(context.Background(), f.job.ID)
	require.Error(t, err)
	assert.Equal(t, types.StatusFailed, f.jobStatus(t))
	assert.Nil(t, f.publisher.lastDraft, "publish should not run after a fatal asset failure")
}

func TestOrchestrator_NoImageProviderConfigured(t *testing.T) {
	f := newFixture(t, &types.Configuration{
		Name:                   "no-provider",
		ChapterCount:           2,
		WordsPerChapter:        500,
		ImagesEnabled:          true,
		AllowPartialCompletion: true,
	})

	noSleep := retry.NewPolicy().WithSleep(func(context.Context, time.Duration) error { return nil })
	o := New(f.queue, f.configs, f.content, nil, f.assets, f.publisher, f.audits,
		WithRetryPolicy(noSleep), WithMaxAttempts(1))

	require.NoError(t, o.Execute(context.Background(), f.job.ID))

	assert.Equal(t, types.StatusCompleted, f.jobStatus(t))
	assert.Zero(t, f.assets.calls)
	require.Len(t, f.audits.trails, 1)
	assert.Equal(t, ledger.ExecutionPartialSuccess, f.audits.trails[0].Summary.Status)
}

func TestOrchestrator_OrganizeFailureTolerated(t *testing.T) {
	f := newFixture(t, &types.Configuration{
		Name:                   "tolerant",
		ChapterCount:           2,
		WordsPerChapter:        500,
		ImagesEnabled:          true,
		AllowPartialCompletion: true,
	})
	f.assets.err = &types.ErrStorage{Message: "upload interrupted"}

	require.NoError(t, f.orchestrator(WithMaxAttempts(1)).Execute(context.Background(), f.job.ID))

	assert.Equal(t, types.StatusCompleted, f.jobStatus(t))
	require.NotNil(t, f.publisher.lastDraft)
	assert.Zero(t, f.publisher.lastDraft.FeaturedMediaID, "no media should be attached when organize failed")
}

func TestOrchestrator_PublishFailure(t *testing.T) {
	f := newFixture(t, &types.Configuration{Name: "plain", ChapterCount: 2, WordsPerChapter: 500})
	f.publisher.err = &types.ErrPublish{Message: "bad application password", StatusCode: 401}

	err := f.orchestrator().Execute(context.Background(), f.job.ID)
	require.Error(t, err)
	assert.Equal(t, types.StatusFailed, f.jobStatus(t))
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", tail("short", 100))
	assert.Equal(t, "", tail("", 10))

	long := "alpha beta gamma delta"
	got := tail(long, 11)
	assert.LessOrEqual(t, len(got), 11)
	assert.Equal(t, "delta", got, "the cut should land on a word boundary")
}
