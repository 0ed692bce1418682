package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/jonathan/article-engine/internal/types"
)

// Usage reports the token consumption of one call for cost accounting.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Client is an abstraction over LLM providers.
type Client interface {
	// GenerateContent generates text content using the specified model tier.
	GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, Usage, error)
	// GenerateJSON generates JSON content using the specified model tier.
	GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, Usage, error)
	// Rates returns the billing rates for a tier.
	Rates(tier ModelTier) ModelRates
	// Close releases any resources held by the client.
	Close() error
}

// GeminiClient implements Client for Google Gemini.
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, &types.ErrCredential{Message: "Gemini API key is required"}
	}
	if config == nil {
		config = DefaultConfig()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: config,
	}, nil
}

// GenerateContent generates text content using the specified model tier.
func (c *GeminiClient) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, Usage, error) {
	return c.generate(ctx, prompt, tier, "")
}

// GenerateJSON generates JSON content using the specified model tier. Any
// markdown code-block wrapper around the JSON is stripped.
func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, Usage, error) {
	text, usage, err := c.generate(ctx, prompt, tier, "application/json")
	if err != nil {
		return "", usage, err
	}
	return CleanJSONBlock(text), usage, nil
}

// Rates returns the billing rates for a tier.
func (c *GeminiClient) Rates(tier ModelTier) ModelRates {
	return c.config.GetRates(tier)
}

// Close releases resources held by the client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *GeminiClient) generate(ctx context.Context, prompt string, tier ModelTier, mimeType string) (string, Usage, error) {
	modelName := c.config.GetModel(tier)
	if modelName == "" {
		return "", Usage{}, &types.ErrConfiguration{Message: fmt.Sprintf("no model configured for tier %s", tier)}
	}

	model := c.client.GenerativeModel(modelName)
	model.SetTemperature(0.7)
	if mimeType != "" {
		model.ResponseMIMEType = mimeType
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", Usage{}, wrapProviderError(err)
	}

	usage := Usage{}
	if resp.UsageMetadata != nil {
		usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return "", usage, err
	}
	return text, usage, nil
}

// wrapProviderError maps a Gemini transport error onto the engine's error
// taxonomy so the retry policy can classify it.
func wrapProviderError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 {
			return &types.ErrRateLimited{API: "gemini", Cause: err}
		}
		return &types.ErrContentGeneration{
			Message:    "provider request failed",
			StatusCode: apiErr.Code,
			Cause:      err,
		}
	}
	return &types.ErrContentGeneration{Message: "provider request failed", Cause: err}
}

// extractTextFromResponse pulls the text parts out of a Gemini response.
// Safety-blocked candidates surface as content-policy violations.
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", &types.ErrContentGeneration{Message: "empty response from model"}
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", &types.ErrContentGeneration{
			Message:         "response blocked by content policy",
			PolicyViolation: true,
		}
	}
	if candidate.Content == nil {
		return "", &types.ErrContentGeneration{Message: "candidate has no content"}
	}

	var text string
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	if text == "" {
		return "", &types.ErrContentGeneration{Message: "response contained no text parts"}
	}
	return text, nil
}
