// Retrying chat completions with exponential backoff.
//
// Wrap any client; failures that look transient (rate limits, HTTP 429 and
// 5xx) are retried:
//
//	retryClient := llm.RetryChatCompletion(client, llm.RetryConfig{
//		MaxRetries: 5,
//		BaseDelay:  100 * time.Millisecond,
//	})
//	resp, err := retryClient.ChatCompletion(ctx, req)
//
// Against the fake provider, a rule answering with a scripted rate limit error
// exercises this path without any network access.
package llm

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"math"
	"net/http"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
)

// ChatCompleter is the part of Client needed for retries
type ChatCompleter interface {
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// RetryConfig defines the retry policy.
//
//	RetryConfig{MaxRetries: 3, BaseDelay: 1*time.Second, BackoffFactor: 2.0}
//	RetryConfig{MaxRetries: 3, BaseDelay: 2*time.Second, RetryOnStatusCodes: []int{429}}
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first one (default: 3)
	MaxRetries int

	// BaseDelay is the delay before the first retry (default: 1 second)
	BaseDelay time.Duration

	// MaxDelay caps the delay between retries (default: 60 seconds)
	MaxDelay time.Duration

	// BackoffFactor multiplies the delay after each retry (default: 2.0)
	BackoffFactor float64

	// Jitter multiplies each delay by a random factor between 0.5 and 1.5
	Jitter bool

	// RetryableErrors lists error codes retried under the default policy
	RetryableErrors []string

	// RetryOnStatusCodes, when set, restricts retries to these status codes
	// (or to the error types below, when both are set)
	RetryOnStatusCodes []int

	// RetryOnErrorTypes, when set, restricts retries to these error types
	// (or to the status codes above, when both are set)
	RetryOnErrorTypes []string
}

// DefaultRetryConfig returns the policy used when none is given
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		BaseDelay:       1 * time.Second,
		MaxDelay:        60 * time.Second,
		BackoffFactor:   2.0,
		Jitter:          true,
		RetryableErrors: []string{"rate_limit_exceeded"},
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = def.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = def.BackoffFactor
	}
	if c.RetryableErrors == nil {
		c.RetryableErrors = def.RetryableErrors
	}
	return c
}

// RetryableChatCompleter wraps a ChatCompleter with retries
type RetryableChatCompleter struct {
	client ChatCompleter
	config RetryConfig
}

// RetryChatCompletion wraps client so transient failures are retried with
// exponential backoff. Zero fields of config take their default values.
func RetryChatCompletion(client ChatCompleter, config ...RetryConfig) *RetryableChatCompleter {
	cfg := DefaultRetryConfig()
	if len(config) > 0 {
		cfg = config[0].withDefaults()
	}
	return &RetryableChatCompleter{client: client, config: cfg}
}

// ChatCompletion executes the chat completion with retry logic
func (r *RetryableChatCompleter) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		resp, err := r.client.ChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt == r.config.MaxRetries || !r.isRetryableError(err) {
			break
		}

		delay := r.calculateDelay(attempt)
		log.Debug().
			Err(err).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Retrying chat completion")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, lastErr
}

// isRetryableError reports whether err is an *Error the policy retries
func (r *RetryableChatCompleter) isRetryableError(err error) bool {
	llmErr, ok := AsError(err)
	if !ok {
		return false
	}

	byStatus := len(r.config.RetryOnStatusCodes) > 0
	byType := len(r.config.RetryOnErrorTypes) > 0
	if byStatus || byType {
		return (byStatus && slices.Contains(r.config.RetryOnStatusCodes, llmErr.StatusCode)) ||
			(byType && slices.Contains(r.config.RetryOnErrorTypes, llmErr.Type))
	}

	switch {
	case llmErr.Type == ErrorTypeRateLimit:
		return true
	case slices.Contains(r.config.RetryableErrors, llmErr.Code):
		return true
	case llmErr.StatusCode == http.StatusTooManyRequests:
		return true
	}
	return llmErr.StatusCode >= 500 && llmErr.StatusCode < 600
}

// calculateDelay computes baseDelay * backoffFactor^attempt, capped at MaxDelay
func (r *RetryableChatCompleter) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.BaseDelay) * math.Pow(r.config.BackoffFactor, float64(attempt))

	if r.config.Jitter {
		delay *= 0.5 + randomFloat64()
	}
	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}
	return time.Duration(delay)
}

// randomFloat64 returns a random number in [0, 1], or 1 if the system
// random source fails
func randomFloat64() float64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 1.0
	}
	return float64(binary.BigEndian.Uint64(b[:])) / float64(^uint64(0))
}

var _ ChatCompleter = (*RetryableChatCompleter)(nil)
