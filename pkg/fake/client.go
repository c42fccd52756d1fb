package fake

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/inercia/go-fakellm/pkg/llm"
)

// ProviderName is the provider reported by Client
const ProviderName = "fake"

// Error codes of the *llm.Error values returned by Client
const (
	CodeNoMatch          = "no_match"
	CodeValidation       = "validation_error"
	CodePredicate        = "predicate_error"
	CodeConfiguration    = "configuration_error"
	CodeSchemaValidation = "schema_validation_error"
	CodeScripted         = "scripted_error"
	CodeCanceled         = "canceled"
)

// Client implements llm.Client on top of a Model
type Client struct {
	model     *Model
	modelName string

	mu      sync.Mutex
	callLog []llm.ChatRequest

	lastHealthCheck  *time.Time
	lastHealthStatus *bool
}

// NewClient creates a client answering from model. modelName is reported
// in responses when a request does not name a model.
func NewClient(model *Model, modelName string) *Client {
	if model == nil {
		model = NewModel()
	}
	if modelName == "" {
		modelName = llm.DefaultFakeModel
	}
	return &Client{
		model:     model,
		modelName: modelName,
	}
}

// Model returns the model behind the client, for registering rules
func (c *Client) Model() *Model {
	return c.model
}

func (c *Client) record(req llm.ChatRequest) {
	cp := req
	cp.Messages = make([]llm.Message, len(req.Messages))
	for i, msg := range req.Messages {
		cp.Messages[i] = msg.DeepCopy()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.callLog = append(c.callLog, cp)
}

func (c *Client) responseModel(req llm.ChatRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return c.modelName
}

// ChatCompletion answers the request with the first matching rule
func (c *Client) ChatCompletion(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	c.record(req)

	resp, err := c.model.Ask(ctx, req.Conversation())
	if err != nil {
		return nil, toLLMError(err)
	}
	if err := checkResponseFormat(req.ResponseFormat, resp.Content); err != nil {
		return nil, err
	}

	return &llm.ChatResponse{
		ID:    "fake-" + uuid.NewString(),
		Model: c.responseModel(req),
		Choices: []llm.Choice{
			{
				Index:        0,
				Message:      resp.Message(),
				FinishReason: llm.FinishReasonStop,
			},
		},
		Usage: usageFor(req.Conversation(), resp),
	}, nil
}

// StreamChatCompletion streams the matching response as one delta event per
// chunk, paced by the model rate, followed by a done event. Errors selecting
// the response are returned directly. If ctx is done mid-stream the channel ends
// with an error event carrying the context error, when the consumer has room for it.
func (c *Client) StreamChatCompletion(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	c.record(req)

	stream, err := c.model.AskStream(ctx, req.Conversation())
	if err != nil {
		return nil, toLLMError(err)
	}
	if err := checkResponseFormat(req.ResponseFormat, stream.Response().Content); err != nil {
		return nil, err
	}

	// one slot keeps room for the error event of an interrupted stream
	ch := make(chan llm.StreamEvent, 1)

	go func() {
		defer close(ch)

		send := func(event llm.StreamEvent) bool {
			select {
			case ch <- event:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for stream.Next(ctx) {
			chunk := stream.Chunk()
			var delta *llm.MessageDelta
			if chunk.Kind == ChunkReasoning {
				delta = llm.NewReasoningDelta(chunk.Lead + chunk.Text)
			} else {
				delta = llm.NewTextDelta(chunk.Lead + chunk.Text)
			}
			if !send(llm.NewDeltaEvent(0, delta)) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			select {
			case ch <- llm.NewErrorEvent(&llm.Error{
				Code:    CodeCanceled,
				Message: err.Error(),
				Type:    llm.ErrorTypeSimulation,
				Err:     err,
			}):
			default:
			}
			return
		}

		send(llm.NewDoneEvent(0, llm.FinishReasonStop))
	}()

	return ch, nil
}

// GetRemote reports the fake as always healthy
func (c *Client) GetRemote() llm.ClientRemoteInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if c.lastHealthCheck == nil || now.Sub(*c.lastHealthCheck) >= llm.DefaultHealthCheckInterval {
		healthy := true
		c.lastHealthStatus = &healthy
		c.lastHealthCheck = &now
	}

	return llm.ClientRemoteInfo{
		Name: ProviderName,
		Status: &llm.ClientRemoteInfoStatus{
			Healthy:     c.lastHealthStatus,
			LastChecked: c.lastHealthCheck,
		},
	}
}

// GetModelInfo returns the model info
func (c *Client) GetModelInfo() llm.ModelInfo {
	return llm.ModelInfo{
		Name:              c.modelName,
		Provider:          ProviderName,
		SupportsStreaming: true,
		SupportsReasoning: true,
	}
}

// Close does nothing
func (c *Client) Close() error {
	return nil
}

// Calls returns a copy of every request received, oldest first
func (c *Client) Calls() []llm.ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.ChatRequest(nil), c.callLog...)
}

// LastCall returns the most recent request, or nil
func (c *Client) LastCall() *llm.ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.callLog) == 0 {
		return nil
	}
	last := c.callLog[len(c.callLog)-1]
	return &last
}

// CallCount returns the number of requests received
func (c *Client) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.callLog)
}

// ResetCalls clears the call log
func (c *Client) ResetCalls() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callLog = nil
}

func usageFor(conv llm.Conversation, resp Response) llm.Usage {
	prompt := 0
	for _, msg := range conv {
		prompt += CountTokens(msg.GetText())
	}
	completion := CountTokens(resp.Reasoning) + CountTokens(resp.Content)
	return llm.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}

func checkResponseFormat(format *llm.ResponseFormat, content string) error {
	if format == nil {
		return nil
	}

	var schema any
	switch format.Type {
	case llm.ResponseFormatJSONSchema:
		if format.JSONSchema != nil {
			schema = format.JSONSchema.Schema
		}
	case llm.ResponseFormatJSON:
	default:
		return nil
	}

	if err := llm.ValidateAgainstSchema([]byte(content), schema); err != nil {
		return &llm.Error{
			Code:       CodeSchemaValidation,
			Message:    err.Error(),
			Type:       llm.ErrorTypeValidation,
			StatusCode: http.StatusUnprocessableEntity,
			Err:        err,
		}
	}
	return nil
}

// toLLMError converts model errors to *llm.Error. Context errors and
// errors that already are *llm.Error are returned unchanged.
func toLLMError(err error) error {
	if _, ok := llm.AsError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	llmErr := &llm.Error{Message: err.Error(), Err: err}
	switch {
	case errors.Is(err, ErrNoMatch):
		llmErr.Code, llmErr.Type, llmErr.StatusCode = CodeNoMatch, llm.ErrorTypeSimulation, http.StatusNotFound
	case errors.Is(err, ErrValidation):
		llmErr.Code, llmErr.Type, llmErr.StatusCode = CodeValidation, llm.ErrorTypeValidation, http.StatusBadRequest
	case errors.Is(err, ErrPredicate):
		llmErr.Code, llmErr.Type = CodePredicate, llm.ErrorTypeSimulation
	case errors.Is(err, ErrConfiguration):
		llmErr.Code, llmErr.Type = CodeConfiguration, llm.ErrorTypeSimulation
	default:
		llmErr.Code, llmErr.Type = CodeScripted, llm.ErrorTypeSimulation
	}
	return llmErr
}
