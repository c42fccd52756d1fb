package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inercia/go-fakellm/pkg/llm"
)

// newTestClient returns a client talking to handler
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(llm.ClientConfig{APIKey: "test", BaseURL: srv.URL + "/v1", Model: "gpt-4o"})
	require.NoError(t, err)
	return client
}

func TestNewClient_MissingAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewClient(llm.ClientConfig{})
	llmErr, ok := llm.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "missing_api_key", llmErr.Code)
}

func TestClient_ChatCompletion(t *testing.T) {
	t.Parallel()

	var received map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{
			"id": "chatcmpl-1",
			"model": "gpt-4o",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "Hi!", "reasoning_content": "greeting"}}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7}
		}`)
	})

	req := llm.ChatRequest{Messages: llm.NewHistory().WithSystemPrompt("").WithUserMessage("Hello").Messages()}
	resp, err := client.ChatCompletion(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "chatcmpl-1", resp.ID)
	assert.Equal(t, "Hi!", resp.Text())
	assert.Equal(t, "greeting", resp.ReasoningContent())
	assert.Equal(t, 7, resp.Usage.TotalTokens)

	assert.Equal(t, "gpt-4o", received["model"])
	messages := received["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, " ", messages[0].(map[string]any)["content"], "empty content is sent as a space")
	assert.Equal(t, "Hello", messages[1].(map[string]any)["content"])
}

func TestClient_ResponseFormatSchema(t *testing.T) {
	t.Parallel()

	var received map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = fmt.Fprint(w, `{"id": "x", "choices": [{"message": {"role": "assistant", "content": "{}"}}]}`)
	})

	schema := map[string]any{"type": "object"}
	req := llm.ChatRequest{
		Messages:       []llm.Message{llm.NewTextMessage(llm.RoleUser, "json please")},
		ResponseFormat: llm.NewJSONSchemaResponseFormat("empty", "", schema),
	}
	_, err := client.ChatCompletion(context.Background(), req)
	require.NoError(t, err)

	format := received["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	assert.Equal(t, schema, format["json_schema"].(map[string]any)["schema"])
}

func TestClient_Errors(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = fmt.Fprint(w, `{"error": {"message": "slow down", "type": "requests", "code": "rate_limit_exceeded"}}`)
	})

	_, err := client.ChatCompletion(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")},
	})
	llmErr, ok := llm.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "rate_limit_exceeded", llmErr.Code)
	assert.Equal(t, llm.ErrorTypeRateLimit, llmErr.Type)
	assert.Equal(t, http.StatusTooManyRequests, llmErr.StatusCode)
}

func TestClient_StreamChatCompletion(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range []string{
			`{"id":"s","choices":[{"index":0,"delta":{"role":"assistant","reasoning_content":"hmm"}}]}`,
			`{"id":"s","choices":[{"index":0,"delta":{"content":"Hello"}}]}`,
			`{"id":"s","choices":[{"index":0,"delta":{"content":" world"}}]}`,
			`{"id":"s","choices":[{"index":0,"delta":{},"finish_reason":"length"}]}`,
		} {
			_, _ = fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	})

	events, err := client.StreamChatCompletion(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")},
	})
	require.NoError(t, err)

	var acc llm.StreamAccumulator
	for event := range events {
		acc.Add(event)
	}
	require.Nil(t, acc.Err())
	assert.Equal(t, "Hello world", acc.Content())
	assert.Equal(t, "hmm", acc.ReasoningContent())
	assert.Equal(t, llm.FinishReasonLength, acc.FinishReason())
}

func TestClient_ModelInfo(t *testing.T) {
	t.Parallel()

	client, err := NewClient(llm.ClientConfig{APIKey: "k"})
	require.NoError(t, err)

	info := client.GetModelInfo()
	assert.Equal(t, llm.DefaultOpenAIModel, info.Name)
	assert.Equal(t, providerName, info.Provider)
	assert.Equal(t, 128000, info.MaxTokens)
	assert.False(t, info.SupportsReasoning)

	assert.Equal(t, 8192, maxTokensForModel("gpt-4"))
	assert.Equal(t, 4096, maxTokensForModel("my-local-model"))
	assert.True(t, reasoningModels.MatchString("o3-mini"))
}
