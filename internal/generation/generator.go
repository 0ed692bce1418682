// Package generation implements the content-generator capability: article
// outlines and chapter bodies produced by the LLM client, with outline JSON
// validated against an embedded schema before it is trusted.
package generation

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jonathan/article-engine/internal/ledger"
	"github.com/jonathan/article-engine/internal/llm"
	"github.com/jonathan/article-engine/internal/types"
	"github.com/jonathan/article-engine/internal/workflow"
)

//go:embed outline_schema.json
var outlineSchemaJSON []byte

// Generator implements workflow.ContentGenerator on top of an llm.Client.
type Generator struct {
	client llm.Client
	schema *gojsonschema.Schema
}

// New creates a Generator. It compiles the outline schema once up front.
func New(client llm.Client) (*Generator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(outlineSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to compile outline schema: %w", err)
	}
	return &Generator{client: client, schema: schema}, nil
}

// GenerateStructure plans the article outline from a seed topic. The model's
// JSON is validated against the outline schema; malformed output is returned
// as a retryable content-generation error since the model may well produce
// valid JSON on the next attempt.
func (g *Generator) GenerateStructure(ctx context.Context, topic string, cfg *types.Configuration) (*workflow.Outline, workflow.CallUsage, error) {
	tier := llm.TierFromString(cfg.ModelTier)
	prompt := buildOutlinePrompt(topic, cfg)

	raw, usage, err := g.client.GenerateJSON(ctx, prompt, tier)
	callUsage := g.callUsage("completion.outline", tier, usage)
	if err != nil {
		return nil, callUsage, err
	}

	result, err := g.schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, callUsage, &types.ErrContentGeneration{
			Message: "outline is not valid JSON",
			Cause:   err,
		}
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, callUsage, &types.ErrContentGeneration{
			Message: "outline failed schema validation: " + strings.Join(problems, "; "),
		}
	}

	var outline workflow.Outline
	if err := json.Unmarshal([]byte(raw), &outline); err != nil {
		return nil, callUsage, &types.ErrContentGeneration{
			Message: "failed to decode outline",
			Cause:   err,
		}
	}

	// The model sometimes plans more chapters than asked; trim rather than
	// re-prompt.
	if cfg.ChapterCount > 0 && len(outline.Chapters) > cfg.ChapterCount {
		outline.Chapters = outline.Chapters[:cfg.ChapterCount]
	}

	return &outline, callUsage, nil
}

// WriteSection writes one chapter as HTML.
func (g *Generator) WriteSection(ctx context.Context, chapter workflow.ChapterSpec, priorContext string, cfg *types.Configuration) (*workflow.SectionResult, error) {
	tier := llm.TierFromString(cfg.ModelTier)
	prompt := buildSectionPrompt(chapter, priorContext, cfg)

	text, usage, err := g.client.GenerateContent(ctx, prompt, tier)
	if err != nil {
		return nil, err
	}

	return &workflow.SectionResult{
		HTML:  strings.TrimSpace(text),
		Usage: g.callUsage("completion.section", tier, usage),
	}, nil
}

// callUsage converts provider token usage into a priced workflow.CallUsage.
func (g *Generator) callUsage(operation string, tier llm.ModelTier, usage llm.Usage) workflow.CallUsage {
	rates := g.client.Rates(tier)
	return workflow.CallUsage{
		API:          "gemini",
		Operation:    operation,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		CostUSD:      ledger.LanguageModelCost(usage.InputTokens, usage.OutputTokens, rates.InputPerK, rates.OutputPerK),
	}
}
