package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/article-engine/internal/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantRetryable bool
		wantCategory  string
		wantDelay     time.Duration
	}{
		{
			name:          "rate limited",
			err:           &types.ErrRateLimited{API: "gemini"},
			wantRetryable: true,
			wantCategory:  CategoryRateLimit,
			wantDelay:     RateLimitDelay,
		},
		{
			name:          "rate limit by message",
			err:           errors.New("HTTP 429 Too Many Requests"),
			wantRetryable: true,
			wantCategory:  CategoryRateLimit,
			wantDelay:     RateLimitDelay,
		},
		{
			name:          "wrapped rate limit",
			err:           fmt.Errorf("phase failed: %w", &types.ErrRateLimited{API: "dalle"}),
			wantRetryable: true,
			wantCategory:  CategoryRateLimit,
			wantDelay:     RateLimitDelay,
		},
		{
			name:          "validation",
			err:           &types.ErrValidation{Field: "seed_topic", Message: "required"},
			wantRetryable: false,
			wantCategory:  CategoryValidation,
		},
		{
			name:          "configuration",
			err:           &types.ErrConfiguration{Message: "missing site URL"},
			wantRetryable: false,
			wantCategory:  CategoryConfiguration,
		},
		{
			name:          "configuration not found",
			err:           &types.ErrConfigurationNotFound{},
			wantRetryable: false,
			wantCategory:  CategoryConfiguration,
		},
		{
			name:          "credential",
			err:           &types.ErrCredential{Message: "cannot decrypt site password"},
			wantRetryable: false,
			wantCategory:  CategoryCredential,
		},
		{
			name:          "content policy violation",
			err:           &types.ErrContentGeneration{Message: "blocked", PolicyViolation: true},
			wantRetryable: false,
			wantCategory:  CategoryContentPolicy,
		},
		{
			name:          "content generation auth status",
			err:           &types.ErrContentGeneration{Message: "denied", StatusCode: http.StatusUnauthorized},
			wantRetryable: false,
			wantCategory:  CategoryAuthentication,
		},
		{
			name:          "content generation bad api key message",
			err:           &types.ErrContentGeneration{Message: "invalid API key provided"},
			wantRetryable: false,
			wantCategory:  CategoryAuthentication,
		},
		{
			name:          "content generation quota",
			err:           &types.ErrContentGeneration{Message: "quota exceeded for project"},
			wantRetryable: false,
			wantCategory:  CategoryAuthentication,
		},
		{
			name:          "content generation transient",
			err:           &types.ErrContentGeneration{Message: "upstream reset", StatusCode: http.StatusBadGateway},
			wantRetryable: true,
			wantCategory:  CategoryConnection,
		},
		{
			name:          "image generation auth",
			err:           &types.ErrImageGeneration{Message: "denied", StatusCode: http.StatusForbidden},
			wantRetryable: false,
			wantCategory:  CategoryAuthentication,
		},
		{
			name:          "image generation transient",
			err:           &types.ErrImageGeneration{Message: "timeout talking to provider"},
			wantRetryable: true,
			wantCategory:  CategoryConnection,
		},
		{
			name:          "publish auth",
			err:           &types.ErrPublish{Message: "bad application password", StatusCode: http.StatusUnauthorized},
			wantRetryable: false,
			wantCategory:  CategoryAuthentication,
		},
		{
			name:          "publish transient",
			err:           &types.ErrPublish{Message: "connection refused"},
			wantRetryable: true,
			wantCategory:  CategoryConnection,
		},
		{
			name:          "storage",
			err:           &types.ErrStorage{Message: "upload interrupted"},
			wantRetryable: true,
			wantCategory:  CategoryConnection,
		},
		{
			name:          "timeout",
			err:           &types.ErrTimeout{Operation: "write_content"},
			wantRetryable: true,
			wantCategory:  CategoryTimeout,
		},
		{
			name:          "deadline exceeded",
			err:           context.DeadlineExceeded,
			wantRetryable: true,
			wantCategory:  CategoryTimeout,
		},
		{
			name:          "invalid transition",
			err:           &types.ErrInvalidTransition{From: types.StatusQueued, To: types.StatusPublished},
			wantRetryable: false,
			wantCategory:  CategoryUsage,
		},
		{
			name:          "invalid operation",
			err:           &types.ErrInvalidOperation{Message: "cannot cancel"},
			wantRetryable: false,
			wantCategory:  CategoryUsage,
		},
		{
			name:          "unknown error",
			err:           errors.New("something broke"),
			wantRetryable: true,
			wantCategory:  CategoryUnknown,
		},
		{
			name:          "nil error",
			err:           nil,
			wantRetryable: false,
			wantCategory:  CategoryUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.err)
			assert.Equal(t, tt.wantRetryable, c.Retryable)
			assert.Equal(t, tt.wantCategory, c.Category)
			assert.Equal(t, tt.wantDelay, c.SuggestedDelay)
		})
	}
}

func TestPolicy_BackoffDelay(t *testing.T) {
	p := NewPolicy()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 32 * time.Second},
		{6, 60 * time.Second},
		{7, 60 * time.Second},
		{100, 60 * time.Second},
		{0, 2 * time.Second},
		{-1, 2 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, p.BackoffDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestPolicy_DoSucceedsAfterRetries(t *testing.T) {
	var delays []time.Duration
	p := NewPolicy().WithSleep(func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	})

	calls := 0
	attempts, err := p.Do(context.Background(), "write_content", 3, func(context.Context) error {
		calls++
		if calls < 3 {
			return &types.ErrPublish{Message: "connection refused"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, delays)
}

func TestPolicy_DoNonRetryableStopsImmediately(t *testing.T) {
	slept := false
	p := NewPolicy().WithSleep(func(context.Context, time.Duration) error {
		slept = true
		return nil
	})

	calls := 0
	attempts, err := p.Do(context.Background(), "generate_structure", 5, func(context.Context) error {
		calls++
		return &types.ErrContentGeneration{Message: "blocked", PolicyViolation: true}
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
	assert.False(t, slept, "non-retryable failures should not sleep")
	var contentErr *types.ErrContentGeneration
	assert.ErrorAs(t, err, &contentErr)
}

func TestPolicy_DoExhaustion(t *testing.T) {
	p := NewPolicy().WithSleep(func(context.Context, time.Duration) error { return nil })

	cause := &types.ErrStorage{Message: "upload interrupted"}
	attempts, err := p.Do(context.Background(), "generate_assets", 3, func(context.Context) error {
		return cause
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "generate_assets failed after 3 attempts")
	var storageErr *types.ErrStorage
	assert.ErrorAs(t, err, &storageErr, "exhaustion should wrap the last error")
}

func TestPolicy_DoRateLimitUsesFixedDelay(t *testing.T) {
	var delays []time.Duration
	p := NewPolicy().WithSleep(func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	})

	calls := 0
	_, err := p.Do(context.Background(), "publish", 2, func(context.Context) error {
		calls++
		if calls == 1 {
			return &types.ErrRateLimited{API: "wordpress"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{RateLimitDelay}, delays)
}

func TestPolicy_DoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPolicy().WithSleep(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	})

	_, err := p.Do(ctx, "write_content", 5, func(context.Context) error {
		return &types.ErrStorage{Message: "transient"}
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestPolicy_DoCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPolicy()
	attempts, err := p.Do(ctx, "write_content", 3, func(context.Context) error {
		t.Fatal("fn should not run with a cancelled context")
		return nil
	})
	assert.Equal(t, 0, attempts)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPolicy_DoClampsMaxAttempts(t *testing.T) {
	p := NewPolicy()

	calls := 0
	attempts, err := p.Do(context.Background(), "op", 0, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestDoValue(t *testing.T) {
	p := NewPolicy().WithSleep(func(context.Context, time.Duration) error { return nil })

	calls := 0
	value, attempts, err := DoValue(context.Background(), p, "generate_structure", 3, func(context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", &types.ErrStorage{Message: "transient"}
		}
		return "outline", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "outline", value)
	assert.Equal(t, 2, attempts)
}
