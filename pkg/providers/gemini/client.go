package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/inercia/go-fakellm/pkg/llm"
)

const providerName = "gemini"

// modelCapabilities are matched in order, first match wins
var modelCapabilities = []struct {
	pattern   *regexp.Regexp
	maxTokens int
	reasoning bool
}{
	{regexp.MustCompile(`gemini-2\.5`), 1048576, true},
	{regexp.MustCompile(`gemini-1\.5-pro`), 2000000, false},
	{regexp.MustCompile(`gemini-(1\.5|2\.0)-flash`), 1000000, false},
}

// Client implements llm.Client using the Google Gen AI SDK
type Client struct {
	model string
	genai *genai.Client

	mu               sync.Mutex
	lastHealthCheck  *time.Time
	lastHealthStatus *bool
}

// NewClient creates a new Gemini client
func NewClient(config llm.ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, &llm.Error{Code: "missing_api_key", Message: "API key is required for Gemini", Type: llm.ErrorTypeAuthentication}
	}
	if config.Model == "" {
		config.Model = llm.DefaultGeminiModel
	}

	genaiConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.Timeout > 0 {
		genaiConfig.HTTPOptions.Timeout = &config.Timeout
	}
	if config.BaseURL != "" {
		genaiConfig.HTTPOptions.BaseURL = config.BaseURL
	}

	genaiClient, err := genai.NewClient(context.Background(), genaiConfig)
	if err != nil {
		return nil, &llm.Error{
			Code:    "client_creation_error",
			Message: fmt.Sprintf("Failed to create genai client: %v", err),
			Type:    llm.ErrorTypeAPI,
			Err:     err,
		}
	}

	return &Client{model: config.Model, genai: genaiClient}, nil
}

// ChatCompletion performs a non-streaming content generation request
func (c *Client) ChatCompletion(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	chat, last, err := c.startChat(ctx, req)
	if err != nil {
		return nil, err
	}

	response, err := chat.SendMessage(ctx, last...)
	if err != nil {
		return nil, convertError(err)
	}
	return c.convertResponse(response), nil
}

// StreamChatCompletion performs a streaming content generation request
func (c *Client) StreamChatCompletion(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	chat, last, err := c.startChat(ctx, req)
	if err != nil {
		return nil, err
	}

	ch := make(chan llm.StreamEvent)

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

		finishReason := llm.FinishReasonStop
		for response, err := range chat.SendMessageStream(ctx, last...) {
			if err != nil {
				send(llm.NewErrorEvent(convertError(err)))
				return
			}
			if len(response.Candidates) == 0 {
				continue
			}

			candidate := response.Candidates[0]
			if candidate.FinishReason != "" {
				finishReason = convertFinishReason(candidate.FinishReason)
			}
			reasoning, text := splitParts(candidate.Content)
			if reasoning == "" && text == "" {
				continue
			}

			delta := &llm.MessageDelta{ReasoningContent: reasoning}
			if text != "" {
				delta.Content = []llm.MessageContent{llm.NewTextContent(text)}
			}
			if !send(llm.NewDeltaEvent(0, delta)) {
				return
			}
		}

		send(llm.NewDoneEvent(0, finishReason))
	}()

	return ch, nil
}

// startChat creates a chat session holding every message but the last one,
// and returns the parts of the last message
func (c *Client) startChat(ctx context.Context, req llm.ChatRequest) (*genai.Chat, []genai.Part, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	system, contents, err := convertMessages(req.Messages)
	if err != nil {
		return nil, nil, err
	}

	config := &genai.GenerateContentConfig{}
	if req.Temperature != nil {
		config.Temperature = req.Temperature
	}
	if req.TopP != nil {
		config.TopP = req.TopP
	}
	if req.MaxTokens != nil {
		config.MaxOutputTokens = clampInt32(*req.MaxTokens)
	}

	if instruction := responseFormatInstruction(req.ResponseFormat); instruction != "" {
		config.ResponseMIMEType = "application/json"
		system = append(system, instruction)
	}
	if len(system) > 0 {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(strings.Join(system, "\n\n"))},
		}
	}

	history := contents[:len(contents)-1]
	chat, err := c.genai.Chats.Create(ctx, model, config, history)
	if err != nil {
		return nil, nil, convertError(err)
	}

	lastContent := contents[len(contents)-1]
	parts := make([]genai.Part, len(lastContent.Parts))
	for i, part := range lastContent.Parts {
		parts[i] = *part
	}
	return chat, parts, nil
}

// convertMessages splits system prompts from the chat contents
func convertMessages(messages []llm.Message) ([]string, []*genai.Content, error) {
	var system []string
	var contents []*genai.Content

	for _, msg := range messages {
		text := msg.GetText()
		if msg.Role == llm.RoleSystem {
			if text != "" {
				system = append(system, text)
			}
			continue
		}
		if text == "" {
			continue
		}

		role := genai.RoleUser
		if msg.Role == llm.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(text)},
		})
	}

	if len(contents) == 0 {
		return nil, nil, &llm.Error{
			Code:       "invalid_request",
			Message:    "No valid messages provided",
			Type:       llm.ErrorTypeValidation,
			StatusCode: http.StatusBadRequest,
		}
	}
	return system, contents, nil
}

// responseFormatInstruction asks for JSON in the system instruction; the
// schema is described in the prompt rather than enforced by the API
func responseFormatInstruction(format *llm.ResponseFormat) string {
	const plain = "Respond only with valid JSON. Do not include any text before or after the JSON object."
	if format == nil {
		return ""
	}

	switch format.Type {
	case llm.ResponseFormatJSON:
		return plain
	case llm.ResponseFormatJSONSchema:
		if format.JSONSchema == nil || format.JSONSchema.Schema == nil {
			return plain
		}
		schema, err := json.Marshal(format.JSONSchema.Schema)
		if err != nil {
			return plain
		}
		return fmt.Sprintf("Respond only with valid JSON conforming to this schema: %s. Do not include any text before or after the JSON object.", schema)
	}
	return ""
}

// splitParts separates thought parts from answer parts
func splitParts(content *genai.Content) (reasoning, text string) {
	if content == nil {
		return "", ""
	}
	var r, t strings.Builder
	for _, part := range content.Parts {
		if part == nil || part.Text == "" {
			continue
		}
		if part.Thought {
			r.WriteString(part.Text)
		} else {
			t.WriteString(part.Text)
		}
	}
	return r.String(), t.String()
}

func convertFinishReason(reason genai.FinishReason) string {
	switch {
	case reason == genai.FinishReasonMaxTokens:
		return llm.FinishReasonLength
	case strings.Contains(string(reason), "SAFETY"):
		return "content_filter"
	}
	return llm.FinishReasonStop
}

func (c *Client) convertResponse(resp *genai.GenerateContentResponse) *llm.ChatResponse {
	chatResp := &llm.ChatResponse{
		ID:    "gemini-" + uuid.NewString(),
		Model: c.model,
	}
	if resp.UsageMetadata != nil {
		chatResp.Usage = llm.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	if len(resp.Candidates) == 0 {
		return chatResp
	}

	candidate := resp.Candidates[0]
	reasoning, text := splitParts(candidate.Content)
	msg := llm.NewTextMessage(llm.RoleAssistant, text)
	msg.ReasoningContent = reasoning

	chatResp.Choices = []llm.Choice{{
		Index:        0,
		Message:      msg,
		FinishReason: convertFinishReason(candidate.FinishReason),
	}}
	return chatResp
}

// convertError classifies genai errors by their message
func convertError(err error) *llm.Error {
	if llmErr, ok := llm.AsError(err); ok {
		return llmErr
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "API key") || strings.Contains(msg, "401"):
		return &llm.Error{Code: "authentication_error", Message: msg, Type: llm.ErrorTypeAuthentication, StatusCode: http.StatusUnauthorized, Err: err}
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return &llm.Error{Code: "rate_limit_error", Message: msg, Type: llm.ErrorTypeRateLimit, StatusCode: http.StatusTooManyRequests, Err: err}
	case strings.Contains(msg, "quota") || strings.Contains(msg, "403"):
		return &llm.Error{Code: "quota_error", Message: msg, Type: "quota_error", StatusCode: http.StatusForbidden, Err: err}
	}
	return &llm.Error{Code: "api_error", Message: msg, Type: llm.ErrorTypeAPI, Err: err}
}

// GetRemote returns information about the remote API. The health check
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

// performHealthCheck sends a one-token request to the configured model
func (c *Client) performHealthCheck() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	chat, err := c.genai.Chats.Create(ctx, c.model, &genai.GenerateContentConfig{MaxOutputTokens: 1}, nil)
	if err != nil {
		return false
	}
	_, err = chat.SendMessage(ctx, *genai.NewPartFromText("ping"))
	return err == nil
}

func (c *Client) GetModelInfo() llm.ModelInfo {
	info := llm.ModelInfo{
		Name:              c.model,
		Provider:          providerName,
		MaxTokens:         30720,
		SupportsStreaming: true,
	}
	for _, caps := range modelCapabilities {
		if caps.pattern.MatchString(c.model) {
			info.MaxTokens = caps.maxTokens
			info.SupportsReasoning = caps.reasoning
			break
		}
	}
	return info
}

func (c *Client) Close() error {
	return nil
}

func clampInt32(v int) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}
