package llm_test

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inercia/go-fakellm/pkg/fake"
	"github.com/inercia/go-fakellm/pkg/llm"
)

// flakyClient returns a fake client failing with failure for the first
// failures calls, then answering "recovered"
func flakyClient(failures int, failure *llm.Error) (*fake.Client, *atomic.Int32) {
	var calls atomic.Int32
	m := fake.NewModel().ResponseAlways(fake.ResponseFunc(func(llm.Conversation) (fake.Response, error) {
		if int(calls.Add(1)) <= failures {
			return fake.Response{}, failure
		}
		return fake.Text("recovered"), nil
	}))
	return fake.NewClient(m, ""), &calls
}

func retryRequest() llm.ChatRequest {
	return llm.ChatRequest{Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "hello")}}
}

func fastRetries(maxRetries int) llm.RetryConfig {
	return llm.RetryConfig{MaxRetries: maxRetries, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

var (
	rateLimited = &llm.Error{Code: "rate_limit_exceeded", Type: llm.ErrorTypeRateLimit, StatusCode: http.StatusTooManyRequests}
	serverError = &llm.Error{Code: "internal", Type: llm.ErrorTypeAPI, StatusCode: http.StatusBadGateway}
	badRequest  = &llm.Error{Code: "invalid", Type: llm.ErrorTypeValidation, StatusCode: http.StatusBadRequest}
)

func TestRetryChatCompletion_Recovers(t *testing.T) {
	t.Parallel()

	for name, failure := range map[string]*llm.Error{"rate limit": rateLimited, "server error": serverError} {
		t.Run(name, func(t *testing.T) {
			client, calls := flakyClient(2, failure)

			resp, err := llm.RetryChatCompletion(client, fastRetries(3)).ChatCompletion(context.Background(), retryRequest())
			require.NoError(t, err)
			assert.Equal(t, "recovered", resp.Text())
			assert.Equal(t, int32(3), calls.Load())
		})
	}
}

func TestRetryChatCompletion_NonRetryable(t *testing.T) {
	t.Parallel()

	client, calls := flakyClient(1, badRequest)
	_, err := llm.RetryChatCompletion(client, fastRetries(3)).ChatCompletion(context.Background(), retryRequest())
	assert.Same(t, badRequest, err)
	assert.Equal(t, int32(1), calls.Load())

	// an empty rule table is not worth retrying either
	_, err = llm.RetryChatCompletion(fake.NewClient(nil, ""), fastRetries(3)).ChatCompletion(context.Background(), retryRequest())
	llmErr, ok := llm.AsError(err)
	require.True(t, ok)
	assert.Equal(t, fake.CodeNoMatch, llmErr.Code)
}

func TestRetryChatCompletion_MaxRetriesExceeded(t *testing.T) {
	t.Parallel()

	client, calls := flakyClient(10, rateLimited)
	_, err := llm.RetryChatCompletion(client, fastRetries(2)).ChatCompletion(context.Background(), retryRequest())
	assert.Same(t, rateLimited, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryChatCompletion_ContextCancellation(t *testing.T) {
	t.Parallel()

	client, calls := flakyClient(10, rateLimited)
	cfg := llm.RetryConfig{MaxRetries: 5, BaseDelay: time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := llm.RetryChatCompletion(client, cfg).ChatCompletion(ctx, retryRequest())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryChatCompletion_Backoff(t *testing.T) {
	t.Parallel()

	client, _ := flakyClient(2, rateLimited)
	cfg := llm.RetryConfig{MaxRetries: 2, BaseDelay: 20 * time.Millisecond, BackoffFactor: 2}

	start := time.Now()
	_, err := llm.RetryChatCompletion(client, cfg).ChatCompletion(context.Background(), retryRequest())
	require.NoError(t, err)
	// 20ms then 40ms
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestRetryChatCompletion_Policies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		config    llm.RetryConfig
		failure   *llm.Error
		wantCalls int32
	}{
		{
			name:      "status codes only, matching",
			config:    llm.RetryConfig{RetryOnStatusCodes: []int{http.StatusBadRequest}},
			failure:   badRequest,
			wantCalls: 2,
		},
		{
			name:      "status codes only, rate limit type ignored",
			config:    llm.RetryConfig{RetryOnStatusCodes: []int{http.StatusServiceUnavailable}},
			failure:   rateLimited,
			wantCalls: 1,
		},
		{
			name:      "error types only",
			config:    llm.RetryConfig{RetryOnErrorTypes: []string{llm.ErrorTypeAPI}},
			failure:   serverError,
			wantCalls: 2,
		},
		{
			name:      "error types only, 5xx of another type",
			config:    llm.RetryConfig{RetryOnErrorTypes: []string{llm.ErrorTypeRateLimit}},
			failure:   serverError,
			wantCalls: 1,
		},
		{
			name: "either status or type",
			config: llm.RetryConfig{
				RetryOnStatusCodes: []int{http.StatusBadGateway},
				RetryOnErrorTypes:  []string{llm.ErrorTypeValidation},
			},
			failure:   badRequest,
			wantCalls: 2,
		},
		{
			name:      "custom retryable code",
			config:    llm.RetryConfig{RetryableErrors: []string{"invalid"}},
			failure:   badRequest,
			wantCalls: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, calls := flakyClient(1, tt.failure)
			tt.config.MaxRetries = 1
			tt.config.BaseDelay = time.Millisecond

			_, _ = llm.RetryChatCompletion(client, tt.config).ChatCompletion(context.Background(), retryRequest())
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	t.Parallel()

	cfg := llm.DefaultRetryConfig()
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.BaseDelay)
	assert.Equal(t, time.Minute, cfg.MaxDelay)
	assert.Equal(t, 2.0, cfg.BackoffFactor)
	assert.True(t, cfg.Jitter)
}
