// Package images implements the image-generator capability using the OpenAI
// Images API. Each generated image is billed from the deterministic
// (size, quality) price table in the ledger package.
package images

import (
	"context"
	"errors"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/jonathan/article-engine/internal/ledger"
	"github.com/jonathan/article-engine/internal/types"
	"github.com/jonathan/article-engine/internal/workflow"
)

// Model is the image model used for featured illustrations.
const Model = openai.ImageModelDallE3

// Client implements workflow.ImageGenerator against the OpenAI Images API.
type Client struct {
	api openai.Client
}

// NewClient creates an image client with the given API key.
func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, &types.ErrCredential{Message: "OpenAI API key is required"}
	}
	return &Client{api: openai.NewClient(option.WithAPIKey(apiKey))}, nil
}

// GenerateImage produces one image for the prompt at the given size and
// quality and returns its hosted URL plus the list-price cost.
func (c *Client) GenerateImage(ctx context.Context, prompt, size, quality string) (*workflow.GeneratedImage, error) {
	resp, err := c.api.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:  prompt,
		Model:   Model,
		N:       openai.Int(1),
		Size:    openai.ImageGenerateParamsSize(size),
		Quality: openai.ImageGenerateParamsQuality(quality),
	})
	if err != nil {
		return nil, wrapImageError(err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return nil, &types.ErrImageGeneration{Message: "provider returned no image"}
	}

	return &workflow.GeneratedImage{
		URL:     resp.Data[0].URL,
		CostUSD: ledger.ImageCost(size, quality),
	}, nil
}

// wrapImageError maps an OpenAI transport error onto the engine's error
// taxonomy so the retry policy can classify it.
func wrapImageError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return &types.ErrRateLimited{API: "dalle", Cause: err}
		}
		return &types.ErrImageGeneration{
			Message:    "provider request failed",
			StatusCode: apiErr.StatusCode,
			Cause:      err,
		}
	}
	return &types.ErrImageGeneration{Message: "provider request failed", Cause: err}
}
