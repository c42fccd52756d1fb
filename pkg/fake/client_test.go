package fake

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inercia/go-fakellm/pkg/llm"
)

// Compile-time check
var _ llm.Client = (*Client)(nil)

func chatRequest(text string) llm.ChatRequest {
	return llm.ChatRequest{
		Model:    "fake-test",
		Messages: llm.NewHistory().WithSystemPrompt("be nice").WithUserMessage(text).Messages(),
	}
}

func collect(t *testing.T, events <-chan llm.StreamEvent) []llm.StreamEvent {
	t.Helper()
	var out []llm.StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, event)
		case <-timeout:
			t.Fatal("stream did not close")
			return out
		}
	}
}

func TestClient_ChatCompletion(t *testing.T) {
	t.Parallel()

	m := NewModel().ResponseAlways(WithReasoning("considering", "Hello there"))
	client := NewClient(m, "")

	resp, err := client.ChatCompletion(context.Background(), chatRequest("hi"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.ID, "fake-"))
	assert.Equal(t, "fake-test", resp.Model)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, llm.RoleAssistant, resp.Choices[0].Message.Role)
	assert.Equal(t, "Hello there", resp.Text())
	assert.Equal(t, "considering", resp.ReasoningContent())
	assert.Equal(t, llm.FinishReasonStop, resp.Choices[0].FinishReason)

	assert.Greater(t, resp.Usage.PromptTokens, 0)
	assert.Greater(t, resp.Usage.CompletionTokens, 0)
	assert.Equal(t, resp.Usage.PromptTokens+resp.Usage.CompletionTokens, resp.Usage.TotalTokens)

	other, err := client.ChatCompletion(context.Background(), llm.ChatRequest{Messages: chatRequest("x").Messages})
	require.NoError(t, err)
	assert.NotEqual(t, resp.ID, other.ID)
	assert.Equal(t, llm.DefaultFakeModel, other.Model)
}

func TestClient_ErrorConversion(t *testing.T) {
	t.Parallel()

	rateLimited := &llm.Error{Code: "rate_limit", Message: "slow down", Type: llm.ErrorTypeRateLimit, StatusCode: 429}
	m := NewModel().
		ResponseWhenKeywordInLastMessage("limit", Fail(rateLimited)).
		ResponseWhenKeywordInLastMessage("panic", ResponseFunc(func(llm.Conversation) (Response, error) {
			return Response{}, context.DeadlineExceeded
		})).
		ResponseWhen(func(conv llm.Conversation) (bool, error) {
			if strings.Contains(conv.LastText(), "explode") {
				return false, assert.AnError
			}
			return false, nil
		}, Text("never"))
	client := NewClient(m, "fake-model")

	tests := []struct {
		name     string
		req      llm.ChatRequest
		wantCode string
		wantIs   error
	}{
		{name: "no match", req: chatRequest("unknown"), wantCode: CodeNoMatch, wantIs: ErrNoMatch},
		{name: "empty conversation", req: llm.ChatRequest{}, wantCode: CodeValidation, wantIs: ErrValidation},
		{name: "predicate", req: chatRequest("explode"), wantCode: CodePredicate, wantIs: ErrPredicate},
		{name: "scripted llm error", req: chatRequest("limit"), wantCode: "rate_limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.ChatCompletion(context.Background(), tt.req)
			require.Error(t, err)

			llmErr, ok := llm.AsError(err)
			require.True(t, ok, "expected *llm.Error, got %T", err)
			assert.Equal(t, tt.wantCode, llmErr.Code)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}

			_, err = client.StreamChatCompletion(context.Background(), tt.req)
			llmErr, ok = llm.AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, llmErr.Code)
		})
	}

	t.Run("context errors are kept", func(t *testing.T) {
		_, err := client.ChatCompletion(context.Background(), chatRequest("panic"))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		_, ok := llm.AsError(err)
		assert.False(t, ok)
	})
}

func TestClient_StreamChatCompletion(t *testing.T) {
	t.Parallel()

	m := NewModel().
		ResponseAlways(WithReasoning("thinking it over", "The answer is 42")).
		WithStreamWPS(1000)
	client := NewClient(m, "")

	events, err := client.StreamChatCompletion(context.Background(), chatRequest("question"))
	require.NoError(t, err)
	got := collect(t, events)

	require.Len(t, got, 3+4+1)
	for _, event := range got[:7] {
		assert.True(t, event.IsDelta())
	}
	assert.Equal(t, "thinking", got[0].Choice.Delta.ReasoningContent)
	assert.Equal(t, " it", got[1].Choice.Delta.ReasoningContent)
	assert.Equal(t, "The", got[3].Choice.Delta.GetText())
	assert.Equal(t, " answer", got[4].Choice.Delta.GetText())

	last := got[len(got)-1]
	require.True(t, last.IsDone())
	assert.Equal(t, llm.FinishReasonStop, last.Choice.FinishReason)

	var acc llm.StreamAccumulator
	for _, event := range got {
		acc.Add(event)
	}
	assert.Equal(t, "The answer is 42", acc.Content())
	assert.Equal(t, "thinking it over", acc.ReasoningContent())
}

func TestClient_StreamCancellation(t *testing.T) {
	t.Parallel()

	m := NewModel().ResponseAlways(Text("one two three four five")).WithStreamWPS(2)
	client := NewClient(m, "")

	ctx, cancel := context.WithCancel(context.Background())
	events, err := client.StreamChatCompletion(ctx, chatRequest("go"))
	require.NoError(t, err)

	first := <-events
	assert.True(t, first.IsDelta())
	cancel()

	start := time.Now()
	rest := collect(t, events)
	assert.Less(t, time.Since(start), 2*time.Second)

	require.NotEmpty(t, rest)
	for _, event := range rest {
		assert.False(t, event.IsDone(), "no done event after cancellation")
	}
	last := rest[len(rest)-1]
	require.True(t, last.IsError())
	assert.Equal(t, CodeCanceled, last.Error.Code)
	assert.ErrorIs(t, last.Error, context.Canceled)
}

func TestClient_ResponseFormat(t *testing.T) {
	t.Parallel()

	type person struct {
		Name string `json:"name" required:"true"`
		Age  int    `json:"age" required:"true"`
	}
	format, err := llm.NewJSONSchemaResponseFormatFromStruct("person", "A person", person{})
	require.NoError(t, err)

	m := NewModel().
		ResponseWhenKeywordInLastMessage("good", JSON(person{Name: "Ann", Age: 41})).
		ResponseWhenKeywordInLastMessage("bad", Text(`{"name": 7}`)).
		ResponseWhenKeywordInLastMessage("prose", Text("not json at all"))
	client := NewClient(m, "")

	req := chatRequest("good")
	req.ResponseFormat = format
	resp, err := client.ChatCompletion(context.Background(), req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Ann","age":41}`, resp.Text())

	req = chatRequest("bad")
	req.ResponseFormat = format
	_, err = client.ChatCompletion(context.Background(), req)
	llmErr, ok := llm.AsError(err)
	require.True(t, ok)
	assert.Equal(t, CodeSchemaValidation, llmErr.Code)

	req = chatRequest("prose")
	req.ResponseFormat = llm.NewJSONResponseFormat()
	_, err = client.StreamChatCompletion(context.Background(), req)
	llmErr, ok = llm.AsError(err)
	require.True(t, ok)
	assert.Equal(t, CodeSchemaValidation, llmErr.Code)

	req = chatRequest("prose")
	req.ResponseFormat = &llm.ResponseFormat{Type: llm.ResponseFormatText}
	_, err = client.ChatCompletion(context.Background(), req)
	assert.NoError(t, err)
}

func TestClient_CallLog(t *testing.T) {
	t.Parallel()

	client := NewClient(NewModel().ResponseAlways(Text("ok")).WithStreamWPS(1000), "")
	assert.Nil(t, client.LastCall())
	assert.Equal(t, 0, client.CallCount())

	req := chatRequest("first")
	_, err := client.ChatCompletion(context.Background(), req)
	require.NoError(t, err)
	req.Messages[1].SetText("mutated after the call")

	events, err := client.StreamChatCompletion(context.Background(), chatRequest("second"))
	require.NoError(t, err)
	collect(t, events)

	assert.Equal(t, 2, client.CallCount())
	calls := client.Calls()
	assert.Equal(t, "first", calls[0].Conversation().LastText())
	assert.Equal(t, "second", client.LastCall().Conversation().LastText())

	client.ResetCalls()
	assert.Equal(t, 0, client.CallCount())
}

func TestClient_Info(t *testing.T) {
	t.Parallel()

	m := NewModel()
	client := NewClient(m, "scripted")
	assert.Same(t, m, client.Model())

	info := client.GetModelInfo()
	assert.Equal(t, "scripted", info.Name)
	assert.Equal(t, ProviderName, info.Provider)
	assert.True(t, info.SupportsStreaming)

	remote := client.GetRemote()
	assert.Equal(t, ProviderName, remote.Name)
	require.NotNil(t, remote.Status)
	assert.True(t, *remote.Status.Healthy)
	assert.NoError(t, client.Close())

	assert.NotNil(t, NewClient(nil, "").Model())
}

func TestClient_WithMiddleware(t *testing.T) {
	t.Parallel()

	client := llm.ClientWithMiddleware(NewClient(NewModel().ResponseAlways(Text("wrapped")), ""), nil)
	resp, err := client.ChatCompletion(context.Background(), chatRequest("x"))
	require.NoError(t, err)
	assert.Equal(t, "wrapped", resp.Text())
	assert.Equal(t, ProviderName, client.GetModelInfo().Provider)
}
