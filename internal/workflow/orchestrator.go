package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/article-engine/internal/ledger"
	"github.com/jonathan/article-engine/internal/retry"
	"github.com/jonathan/article-engine/internal/types"
)

// DefaultMaxAttempts is the per-phase retry budget.
const DefaultMaxAttempts = 3

// DefaultPhaseTimeout bounds a single phase attempt when the configuration
// does not set its own timeout.
const DefaultPhaseTimeout = 5 * time.Minute

// priorContextLimit caps how much of the already-written article is fed back
// into the next chapter prompt.
const priorContextLimit = 2000

// JobQueue is the slice of the queue the orchestrator needs.
type JobQueue interface {
	Get(ctx context.Context, id uuid.UUID) (*types.ArticleJob, error)
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, postID int64, postURL string) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	MarkPublished(ctx context.Context, id uuid.UUID) error
}

// Orchestrator drives one job end-to-end through the generation phases.
// Collaborators are injected at construction; the orchestrator holds no
// mutable global state and threads a run-scoped state value through the
// phase chain instead.
type Orchestrator struct {
	jobs      JobQueue
	configs   ConfigurationProvider
	content   ContentGenerator
	images    ImageGenerator
	assets    AssetStore
	publisher Publisher
	audits    AuditSink

	policy       *retry.Policy
	maxAttempts  int
	phaseTimeout time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy *retry.Policy) Option {
	return func(o *Orchestrator) { o.policy = policy }
}

// WithMaxAttempts overrides the per-phase retry budget.
func WithMaxAttempts(n int) Option {
	return func(o *Orchestrator) { o.maxAttempts = n }
}

// WithPhaseTimeout overrides the fallback per-phase timeout.
func WithPhaseTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.phaseTimeout = d }
}

// New creates an Orchestrator with the given collaborators. audits may be
// nil, in which case audit trails are not persisted externally.
func New(
	jobs JobQueue,
	configs ConfigurationProvider,
	content ContentGenerator,
	images ImageGenerator,
	assets AssetStore,
	publisher Publisher,
	audits AuditSink,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		jobs:         jobs,
		configs:      configs,
		content:      content,
		images:       images,
		assets:       assets,
		publisher:    publisher,
		audits:       audits,
		policy:       retry.NewPolicy(),
		maxAttempts:  DefaultMaxAttempts,
		phaseTimeout: DefaultPhaseTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// runState carries everything produced during one run. It replaces any
// notion of a process-wide "current phase" pointer: all run state lives here
// and travels through the call chain.
type runState struct {
	job     *types.ArticleJob
	cfg     *types.Configuration
	led     *ledger.Ledger
	outline *Outline
	content string
	image   *GeneratedImage
	upload  *UploadResult
	post    *PostResult
}

// Execute claims the job and runs it to completion or failure. A job already
// claimed by another worker aborts silently with a nil error. The
// configuration is resolved once, immediately after the claim, and the
// snapshot is used for the entire run.
func (o *Orchestrator) Execute(ctx context.Context, jobID uuid.UUID) error {
	job, err := o.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}

	claimed, err := o.jobs.Claim(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to claim job %s: %w", jobID, err)
	}
	if !claimed {
		log.Printf("job %s already claimed by another worker, skipping", jobID)
		return nil
	}

	state := &runState{
		job: job,
		led: ledger.New(jobID),
	}

	// Claim happens before configuration validation so a dangling
	// configuration reference can be recorded as a failed run; the matrix
	// has no queued -> failed edge.
	cfg, err := o.configs.GetConfiguration(ctx, job.ConfigurationID)
	if err != nil {
		cfgErr := &types.ErrConfiguration{Message: "configuration lookup failed for job " + jobID.String(), Cause: err}
		state.led.Error(cfgErr.Error(), map[string]any{"configuration_id": job.ConfigurationID.String()})
		return o.fail(ctx, state, cfgErr)
	}
	state.cfg = cfg

	log.Printf("job %s claimed: topic=%q configuration=%s", jobID, job.SeedTopic, cfg.Name)

	if err := o.runPhases(ctx, state); err != nil {
		return o.fail(ctx, state, err)
	}

	if err := o.jobs.MarkCompleted(ctx, jobID, state.post.PostID, state.post.PostURL); err != nil {
		return err
	}
	if cfg.AutoPublish {
		if err := o.jobs.MarkPublished(ctx, jobID); err != nil {
			return err
		}
	}

	o.persistAudit(ctx, state)
	log.Printf("job %s completed: post=%d url=%s cost=$%.4f",
		jobID, state.post.PostID, state.post.PostURL, state.led.GenerateSummary().TotalCostUSD)
	return nil
}

// runPhases executes the ordered phase chain against the run state.
func (o *Orchestrator) runPhases(ctx context.Context, state *runState) error {
	if err := o.generateStructure(ctx, state); err != nil {
		return err
	}
	if err := o.writeContent(ctx, state); err != nil {
		return err
	}

	if state.cfg.ImagesEnabled {
		if err := o.generateAssets(ctx, state); err != nil {
			if !state.cfg.AllowPartialCompletion {
				return err
			}
			state.led.Warning("continuing without assets after optional phase failure",
				map[string]any{"error": err.Error()})
		} else if err := o.organizeAssets(ctx, state); err != nil {
			if !state.cfg.AllowPartialCompletion {
				return err
			}
			state.led.Warning("continuing with unorganized assets after optional phase failure",
				map[string]any{"error": err.Error()})
		}
	}

	return o.publish(ctx, state)
}

func (o *Orchestrator) generateStructure(ctx context.Context, state *runState) error {
	return o.runPhase(ctx, state, PhaseGenerateStructure,
		map[string]any{"topic": state.job.SeedTopic},
		func(ctx context.Context) (map[string]any, error) {
			outline, usage, err := o.content.GenerateStructure(ctx, state.job.SeedTopic, state.cfg)
			if err != nil {
				return nil, err
			}
			state.led.LogAPICall(usage.API, usage.Operation,
				map[string]any{"topic": state.job.SeedTopic},
				map[string]any{"chapters": len(outline.Chapters), "input_tokens": usage.InputTokens, "output_tokens": usage.OutputTokens},
				usage.CostUSD)
			state.outline = outline
			return map[string]any{"title": outline.Title, "chapters": len(outline.Chapters)}, nil
		})
}

func (o *Orchestrator) writeContent(ctx context.Context, state *runState) error {
	return o.runPhase(ctx, state, PhaseWriteContent,
		map[string]any{"chapters": len(state.outline.Chapters)},
		func(ctx context.Context) (map[string]any, error) {
			var sb strings.Builder
			words := 0
			for i, chapter := range state.outline.Chapters {
				section, err := o.content.WriteSection(ctx, chapter, tail(sb.String(), priorContextLimit), state.cfg)
				if err != nil {
					return nil, fmt.Errorf("chapter %d (%s): %w", i+1, chapter.Title, err)
				}
				state.led.LogAPICall(section.Usage.API, section.Usage.Operation,
					map[string]any{"chapter": chapter.Title},
					map[string]any{"input_tokens": section.Usage.InputTokens, "output_tokens": section.Usage.OutputTokens},
					section.Usage.CostUSD)
				sb.WriteString("<h2>" + chapter.Title + "</h2>\n")
				sb.WriteString(section.HTML)
				sb.WriteString("\n")
				words += len(strings.Fields(section.HTML))
			}
			state.content = sb.String()
			return map[string]any{"word_count": words}, nil
		})
}

func (o *Orchestrator) generateAssets(ctx context.Context, state *runState) error {
	return o.runPhase(ctx, state, PhaseGenerateAssets,
		map[string]any{"size": state.cfg.ImageSize, "quality": state.cfg.ImageQuality},
		func(ctx context.Context) (map[string]any, error) {
			if o.images == nil {
				return nil, &types.ErrConfiguration{Message: "images enabled but no image provider is configured"}
			}
			prompt := state.outline.ImagePrompt
			if prompt == "" {
				prompt = "Featured illustration for an article titled: " + state.outline.Title
			}
			image, err := o.images.GenerateImage(ctx, prompt, state.cfg.ImageSize, state.cfg.ImageQuality)
			if err != nil {
				return nil, err
			}
			state.led.LogAPICall("dalle", "image.generate",
				map[string]any{"prompt": prompt, "size": state.cfg.ImageSize, "quality": state.cfg.ImageQuality},
				map[string]any{"url": image.URL},
				image.CostUSD)
			state.image = image
			return map[string]any{"url": image.URL}, nil
		})
}

func (o *Orchestrator) organizeAssets(ctx context.Context, state *runState) error {
	return o.runPhase(ctx, state, PhaseOrganizeAssets,
		map[string]any{"provider": state.cfg.AssetProvider},
		func(ctx context.Context) (map[string]any, error) {
			files := []AssetFile{{
				Name:      "featured-image",
				SourceURL: state.image.URL,
				LocalPath: state.image.LocalPath,
			}}
			upload, err := o.assets.Upload(ctx, state.cfg, files)
			if err != nil {
				return nil, err
			}
			state.upload = upload
			return map[string]any{"uploaded": len(upload.URLs)}, nil
		})
}

func (o *Orchestrator) publish(ctx context.Context, state *runState) error {
	return o.runPhase(ctx, state, PhasePublish,
		map[string]any{"site": state.cfg.SiteURL, "auto_publish": state.cfg.AutoPublish},
		func(ctx context.Context) (map[string]any, error) {
			draft := &PostDraft{
				Title:      state.outline.Title,
				Content:    state.content,
				Excerpt:    state.outline.MetaDescription,
				Categories: state.job.Categories,
				Tags:       state.job.Tags,
				Publish:    state.cfg.AutoPublish,
			}
			if state.upload != nil && len(state.upload.MediaIDs) > 0 {
				draft.FeaturedMediaID = state.upload.MediaIDs[0]
			}
			post, err := o.publisher.CreatePost(ctx, state.cfg, draft)
			if err != nil {
				return nil, err
			}
			state.led.LogAPICall("wordpress", "posts.create",
				map[string]any{"title": draft.Title},
				map[string]any{"post_id": post.PostID, "post_url": post.PostURL},
				0)
			state.post = post
			return map[string]any{"post_id": post.PostID, "post_url": post.PostURL}, nil
		})
}

// runPhase wraps one phase with ledger bookkeeping, the per-attempt timeout
// and the retry policy. Retries happen only inside a phase; the orchestrator
// never retries across phases.
func (o *Orchestrator) runPhase(
	ctx context.Context,
	state *runState,
	name string,
	metadata map[string]any,
	fn func(ctx context.Context) (map[string]any, error),
) error {
	state.led.StartPhase(name, metadata)

	timeout := state.cfg.PhaseTimeout(o.phaseTimeout)
	var result map[string]any

	attempts, err := o.policy.Do(ctx, name, o.maxAttempts, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		r, err := fn(attemptCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return &types.ErrTimeout{Operation: name, Cause: err}
			}
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		classification := retry.Classify(err)
		state.led.FailPhase(name, err.Error(), classification.Category, err)
		return err
	}

	if result == nil {
		result = map[string]any{}
	}
	result["attempts"] = attempts
	state.led.CompletePhase(name, result)
	if attempts > 1 {
		log.Printf("phase %s succeeded after %d attempts", name, attempts)
	}
	return nil
}

// fail marks the job failed, persists the audit trail and returns the
// original phase error.
func (o *Orchestrator) fail(ctx context.Context, state *runState, cause error) error {
	if err := o.jobs.MarkFailed(ctx, state.job.ID, cause.Error()); err != nil {
		log.Printf("failed to mark job %s failed: %v", state.job.ID, err)
	}
	o.persistAudit(ctx, state)
	return cause
}

func (o *Orchestrator) persistAudit(ctx context.Context, state *runState) {
	if o.audits == nil {
		return
	}
	trail := state.led.GenerateAuditTrail()
	if err := o.audits.SaveAuditTrail(ctx, state.job.ID, trail); err != nil {
		log.Printf("failed to persist audit trail for job %s: %v", state.job.ID, err)
	}
}

// tail returns the last limit bytes of s, cut at a word boundary.
func tail(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := s[len(s)-limit:]
	if idx := strings.IndexByte(cut, ' '); idx > 0 {
		cut = cut[idx+1:]
	}
	return cut
}
