package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/inercia/go-fakellm/pkg/llm"
)

const providerName = "openai"

// contextLength maps model name patterns to their context window, first match wins
var contextLength = []struct {
	pattern *regexp.Regexp
	tokens  int
}{
	{regexp.MustCompile(`^gpt-4o(-mini)?$`), 128000},
	{regexp.MustCompile(`^gpt-4-turbo(-preview|-\d{4}-\d{2}-\d{2})?$`), 128000},
	{regexp.MustCompile(`^gpt-4-32k(-0613)?$`), 32768},
	{regexp.MustCompile(`^gpt-4(-0613)?$`), 8192},
	{regexp.MustCompile(`^gpt-3\.5-turbo-16k(-\d{4}-\d{2}-\d{2})?$`), 16384},
	{regexp.MustCompile(`^gpt-3\.5-turbo(-\d{4}-\d{2}-\d{2})?$`), 4096},
}

// reasoningModels produce reasoning content
var reasoningModels = regexp.MustCompile(`^(o\d|gpt-5|deepseek-reasoner)`)

// Client implements the llm.Client interface for OpenAI and compatible endpoints
type Client struct {
	client  *openai.Client
	model   string
	baseURL string

	mu               sync.Mutex
	lastHealthCheck  *time.Time
	lastHealthStatus *bool
}

// NewClient creates a new OpenAI client
func NewClient(config llm.ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, &llm.Error{
			Code:    "missing_api_key",
			Message: "API key is required for OpenAI",
			Type:    llm.ErrorTypeAuthentication,
		}
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = llm.DefaultTimeout
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	model := config.Model
	if model == "" {
		model = llm.DefaultOpenAIModel
	}

	return &Client{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		baseURL: config.BaseURL,
	}, nil
}

// ChatCompletion performs a chat completion request
func (c *Client) ChatCompletion(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	openaiReq, err := c.convertRequest(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.CreateChatCompletion(ctx, openaiReq)
	if err != nil {
		return nil, convertError(err)
	}
	return convertResponse(resp), nil
}

// StreamChatCompletion performs a streaming chat completion request
func (c *Client) StreamChatCompletion(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	openaiReq, err := c.convertRequest(req)
	if err != nil {
		return nil, err
	}
	openaiReq.Stream = true

	stream, err := c.client.CreateChatCompletionStream(ctx, openaiReq)
	if err != nil {
		return nil, convertError(err)
	}

	ch := make(chan llm.StreamEvent, 10)

	go func() {
		defer close(ch)
		defer func() { _ = stream.Close() }()

		send := func(event llm.StreamEvent) bool {
			select {
			case ch <- event:
				return true
			case <-ctx.Done():
				return false
			}
		}

		finishReason := llm.FinishReasonStop
		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				send(llm.NewDoneEvent(0, finishReason))
				return
			}
			if err != nil {
				send(llm.NewErrorEvent(convertError(err)))
				return
			}
			if len(response.Choices) == 0 {
				continue
			}

			choice := response.Choices[0]
			if choice.FinishReason != "" {
				finishReason = string(choice.FinishReason)
			}

			delta := &llm.MessageDelta{ReasoningContent: choice.Delta.ReasoningContent}
			if choice.Delta.Content != "" {
				delta.Content = []llm.MessageContent{llm.NewTextContent(choice.Delta.Content)}
			}
			if len(delta.Content) == 0 && delta.ReasoningContent == "" {
				continue
			}
			if !send(llm.NewDeltaEvent(0, delta)) {
				return
			}
		}
	}()

	return ch, nil
}

// GetRemote returns information about the remote endpoint. The health check
// result is cached for llm.DefaultHealthCheckInterval.
func (c *Client) GetRemote() llm.ClientRemoteInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if c.lastHealthCheck == nil || now.Sub(*c.lastHealthCheck) >= llm.DefaultHealthCheckInterval {
		healthy := c.performHealthCheck()
		c.lastHealthStatus = &healthy
		c.lastHealthCheck = &now
	}

	return llm.ClientRemoteInfo{
		Name: providerName,
		Status: &llm.ClientRemoteInfoStatus{
			Healthy:     c.lastHealthStatus,
			LastChecked: c.lastHealthCheck,
		},
	}
}

// performHealthCheck lists the models of the endpoint
func (c *Client) performHealthCheck() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := c.client.ListModels(ctx)
	return err == nil
}

// GetModelInfo returns information about the model being used
func (c *Client) GetModelInfo() llm.ModelInfo {
	return llm.ModelInfo{
		Name:              c.model,
		Provider:          providerName,
		MaxTokens:         maxTokensForModel(c.model),
		SupportsStreaming: true,
		SupportsReasoning: reasoningModels.MatchString(c.model),
	}
}

// Close does nothing; the HTTP client needs no cleanup
func (c *Client) Close() error {
	return nil
}

func (c *Client) convertRequest(req llm.ChatRequest) (openai.ChatCompletionRequest, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	openaiReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: convertMessages(req.Messages),
		Stream:   req.Stream,
	}
	if req.Temperature != nil {
		openaiReq.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		openaiReq.MaxTokens = *req.MaxTokens
	}
	if req.TopP != nil {
		openaiReq.TopP = *req.TopP
	}

	format, err := convertResponseFormat(req.ResponseFormat)
	if err != nil {
		return openai.ChatCompletionRequest{}, err
	}
	openaiReq.ResponseFormat = format

	return openaiReq, nil
}

func convertResponseFormat(format *llm.ResponseFormat) (*openai.ChatCompletionResponseFormat, error) {
	if format == nil {
		return nil, nil
	}

	switch format.Type {
	case llm.ResponseFormatJSON:
		return &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}, nil
	case llm.ResponseFormatJSONSchema:
		if format.JSONSchema == nil {
			return nil, &llm.Error{
				Code:    "missing_schema",
				Message: "json_schema response format requires a schema",
				Type:    llm.ErrorTypeValidation,
			}
		}
		jsonSchema := &openai.ChatCompletionResponseFormatJSONSchema{
			Name:        format.JSONSchema.Name,
			Description: format.JSONSchema.Description,
		}
		if format.JSONSchema.Schema != nil {
			raw, err := json.Marshal(format.JSONSchema.Schema)
			if err != nil {
				return nil, errors.Wrap(err, "marshaling response schema")
			}
			jsonSchema.Schema = json.RawMessage(raw)
		}
		if format.JSONSchema.Strict != nil {
			jsonSchema.Strict = *format.JSONSchema.Strict
		}
		return &openai.ChatCompletionResponseFormat{
			Type:       openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: jsonSchema,
		}, nil
	}
	return nil, nil
}

func convertMessages(messages []llm.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		text := msg.GetText()
		if strings.TrimSpace(text) == "" {
			// the API rejects messages without content
			text = " "
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: text,
		})
	}
	return out
}

func convertResponse(resp openai.ChatCompletionResponse) *llm.ChatResponse {
	chatResp := &llm.ChatResponse{
		ID:    resp.ID,
		Model: resp.Model,
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	for _, choice := range resp.Choices {
		msg := llm.NewTextMessage(llm.MessageRole(choice.Message.Role), choice.Message.Content)
		msg.ReasoningContent = choice.Message.ReasoningContent
		chatResp.Choices = append(chatResp.Choices, llm.Choice{
			Index:        choice.Index,
			Message:      msg,
			FinishReason: string(choice.FinishReason),
		})
	}
	return chatResp
}

func convertError(err error) *llm.Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := "unknown"
		if s, ok := apiErr.Code.(string); ok {
			code = s
		}
		errType := apiErr.Type
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			errType = llm.ErrorTypeRateLimit
		}
		return &llm.Error{
			Code:       code,
			Message:    apiErr.Message,
			Type:       errType,
			StatusCode: apiErr.HTTPStatusCode,
			Err:        err,
		}
	}

	return &llm.Error{
		Code:    "unknown_error",
		Message: err.Error(),
		Type:    llm.ErrorTypeAPI,
		Err:     err,
	}
}

func maxTokensForModel(model string) int {
	for _, entry := range contextLength {
		if entry.pattern.MatchString(model) {
			return entry.tokens
		}
	}
	return 4096
}
