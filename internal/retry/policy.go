// Package retry provides failure classification and exponential-backoff
// retry execution for workflow phases.
//
// Classification is an explicit result value rather than something inferred
// from error subclassing at the call site: callers get back
// {retryable, category, suggested delay} and decide nothing themselves.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/article-engine/internal/types"
)

// Default backoff parameters. Attempts 1..6 yield 2, 4, 8, 16, 32, 60 seconds.
const (
	DefaultBaseDelay = 2 * time.Second
	DefaultCapDelay  = 60 * time.Second

	// RateLimitDelay is the fixed suggested delay for rate-limit errors,
	// applied regardless of the attempt count.
	RateLimitDelay = 60 * time.Second
)

// Error categories reported by Classify.
const (
	CategoryRateLimit      = "rate_limit"
	CategoryAuthentication = "authentication"
	CategoryConfiguration  = "configuration"
	CategoryCredential     = "credential"
	CategoryContentPolicy  = "content_policy"
	CategoryValidation     = "validation"
	CategoryTimeout        = "timeout"
	CategoryConnection     = "connection"
	CategoryUsage          = "usage"
	CategoryUnknown        = "unknown"
)

// Classification is the explicit retry decision for one error.
type Classification struct {
	Retryable      bool
	Category       string
	SuggestedDelay time.Duration
}

// Policy holds backoff parameters and executes operations with retries.
type Policy struct {
	BaseDelay time.Duration
	CapDelay  time.Duration

	// sleep is injectable for tests. It must honor context cancellation.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPolicy creates a Policy with the default backoff parameters.
func NewPolicy() *Policy {
	return &Policy{
		BaseDelay: DefaultBaseDelay,
		CapDelay:  DefaultCapDelay,
		sleep:     sleepContext,
	}
}

// WithSleep returns a copy of the policy using the given sleep function.
// Tests use this to observe delays without waiting.
func (p *Policy) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Policy {
	copied := *p
	copied.sleep = sleep
	return &copied
}

// Classify inspects an error and returns an explicit retry decision.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Retryable: false, Category: CategoryUnknown}
	}

	// Rate limits first: a 429 is retryable with a fixed delay no matter
	// which provider raised it or how many attempts were made.
	var rateLimited *types.ErrRateLimited
	if errors.As(err, &rateLimited) || isRateLimitMessage(err) {
		return Classification{Retryable: true, Category: CategoryRateLimit, SuggestedDelay: RateLimitDelay}
	}

	var validation *types.ErrValidation
	if errors.As(err, &validation) {
		return Classification{Retryable: false, Category: CategoryValidation}
	}

	var configuration *types.ErrConfiguration
	var configurationNotFound *types.ErrConfigurationNotFound
	if errors.As(err, &configuration) || errors.As(err, &configurationNotFound) {
		return Classification{Retryable: false, Category: CategoryConfiguration}
	}

	var credential *types.ErrCredential
	if errors.As(err, &credential) {
		return Classification{Retryable: false, Category: CategoryCredential}
	}

	var contentGen *types.ErrContentGeneration
	if errors.As(err, &contentGen) {
		switch {
		case contentGen.PolicyViolation:
			return Classification{Retryable: false, Category: CategoryContentPolicy}
		case isAuthStatus(contentGen.StatusCode) || isAPIKeyMessage(err):
			return Classification{Retryable: false, Category: CategoryAuthentication}
		case strings.Contains(strings.ToLower(err.Error()), "quota"):
			return Classification{Retryable: false, Category: CategoryAuthentication}
		default:
			return Classification{Retryable: true, Category: CategoryConnection}
		}
	}

	var imageGen *types.ErrImageGeneration
	if errors.As(err, &imageGen) {
		if isAuthStatus(imageGen.StatusCode) {
			return Classification{Retryable: false, Category: CategoryAuthentication}
		}
		return Classification{Retryable: true, Category: CategoryConnection}
	}

	var publish *types.ErrPublish
	if errors.As(err, &publish) {
		if isAuthStatus(publish.StatusCode) {
			return Classification{Retryable: false, Category: CategoryAuthentication}
		}
		return Classification{Retryable: true, Category: CategoryConnection}
	}

	var storage *types.ErrStorage
	if errors.As(err, &storage) {
		return Classification{Retryable: true, Category: CategoryConnection}
	}

	var timeout *types.ErrTimeout
	if errors.As(err, &timeout) || errors.Is(err, context.DeadlineExceeded) {
		return Classification{Retryable: true, Category: CategoryTimeout}
	}

	var invalidTransition *types.ErrInvalidTransition
	var invalidOperation *types.ErrInvalidOperation
	if errors.As(err, &invalidTransition) || errors.As(err, &invalidOperation) {
		return Classification{Retryable: false, Category: CategoryUsage}
	}

	// Generic connection and server failures are transient by default.
	return Classification{Retryable: true, Category: CategoryUnknown}
}

// BackoffDelay returns min(BaseDelay * 2^(attempt-1), CapDelay) for 1-indexed
// attempts.
func (p *Policy) BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.CapDelay {
			return p.CapDelay
		}
	}
	if delay > p.CapDelay {
		return p.CapDelay
	}
	return delay
}

// Do runs fn up to maxAttempts times. Non-retryable failures return
// immediately without sleeping. Retryable failures sleep the backoff delay
// (or the classification's suggested delay when set) before the next attempt.
// The returned attempt count covers both outcomes, so a caller can observe
// "succeeded after N attempts".
func (p *Policy) Do(ctx context.Context, name string, maxAttempts int, fn func(ctx context.Context) error) (int, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return attempt, nil
		}

		classification := Classify(lastErr)
		if !classification.Retryable {
			return attempt, lastErr
		}
		if attempt == maxAttempts {
			break
		}

		delay := classification.SuggestedDelay
		if delay <= 0 {
			delay = p.BackoffDelay(attempt)
		}
		if err := p.sleep(ctx, delay); err != nil {
			return attempt, err
		}
	}

	return maxAttempts, fmt.Errorf("%s failed after %d attempts: %w", name, maxAttempts, lastErr)
}

// DoValue runs fn with the policy's retry loop and returns its value along
// with the attempt count.
func DoValue[T any](ctx context.Context, p *Policy, name string, maxAttempts int, fn func(ctx context.Context) (T, error)) (T, int, error) {
	var value T
	attempts, err := p.Do(ctx, name, maxAttempts, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	return value, attempts, err
}

// sleepContext waits for the duration or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isAuthStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

func isRateLimitMessage(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "429")
}

func isAPIKeyMessage(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "api key") || strings.Contains(msg, "invalid key")
}
