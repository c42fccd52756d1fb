package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/inercia/go-fakellm/pkg/llm"
)

const providerName = "bedrock"

// Keys of llm.ClientConfig.Extra read by NewClient
const (
	ExtraRegion                 = "region"
	ExtraBedrockEndpoint        = "bedrock_endpoint"
	ExtraBedrockRuntimeEndpoint = "bedrock_runtime_endpoint"
)

// contextLength is matched by substring, first match wins
var contextLength = []struct {
	fragment  string
	maxTokens int
	reasoning bool
}{
	{"claude-3-7", 200000, true},
	{"claude-sonnet-4", 200000, true},
	{"claude-opus-4", 200000, true},
	{"claude-3", 200000, false},
	{"deepseek.r1", 128000, true},
	{"nova", 300000, false},
	{"llama3", 128000, false},
	{"titan", 8000, false},
	{"mistral", 32000, false},
}

// Client implements llm.Client on the Bedrock Converse API
type Client struct {
	runtime *bedrockruntime.Client
	control *bedrock.Client
	model   string
	region  string

	mu               sync.Mutex
	lastHealthCheck  *time.Time
	lastHealthStatus *bool
}

// NewClient creates a Bedrock client. Credentials come from the default AWS
// chain; the region from Extra["region"], falling back to us-east-1.
func NewClient(config llm.ClientConfig) (*Client, error) {
	if config.Model == "" {
		return nil, &llm.Error{Code: "missing_model", Message: "a Bedrock model ID is required", Type: llm.ErrorTypeValidation}
	}

	region := config.Extra[ExtraRegion]
	if region == "" {
		region = llm.DefaultBedrockRegion
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if config.Timeout > 0 {
		opts = append(opts, awsconfig.WithHTTPClient(&http.Client{Timeout: config.Timeout}))
	}
	if config.MaxRetries > 0 {
		opts = append(opts, awsconfig.WithRetryMaxAttempts(config.MaxRetries))
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, &llm.Error{
			Code:    "aws_config_error",
			Message: fmt.Sprintf("Failed to load AWS configuration: %v", err),
			Type:    llm.ErrorTypeAuthentication,
			Err:     err,
		}
	}

	runtimeEndpoint := config.Extra[ExtraBedrockRuntimeEndpoint]
	if config.BaseURL != "" {
		runtimeEndpoint = config.BaseURL
	}

	return &Client{
		runtime: bedrockruntime.NewFromConfig(awsConfig, func(o *bedrockruntime.Options) {
			if runtimeEndpoint != "" {
				o.BaseEndpoint = aws.String(runtimeEndpoint)
			}
		}),
		control: bedrock.NewFromConfig(awsConfig, func(o *bedrock.Options) {
			if endpoint := config.Extra[ExtraBedrockEndpoint]; endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		}),
		model:  config.Model,
		region: region,
	}, nil
}

// ChatCompletion performs a Converse request
func (c *Client) ChatCompletion(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	input, err := c.convertRequest(req)
	if err != nil {
		return nil, err
	}

	output, err := c.runtime.Converse(ctx, input)
	if err != nil {
		return nil, convertError(err)
	}
	return convertResponse(aws.ToString(input.ModelId), output), nil
}

// StreamChatCompletion performs a ConverseStream request
func (c *Client) StreamChatCompletion(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	input, err := c.convertRequest(req)
	if err != nil {
		return nil, err
	}

	output, err := c.runtime.ConverseStream(ctx, &bedrockruntime.ConverseStreamInput{
		ModelId:         input.ModelId,
		Messages:        input.Messages,
		System:          input.System,
		InferenceConfig: input.InferenceConfig,
	})
	if err != nil {
		return nil, convertError(err)
	}

	ch := make(chan llm.StreamEvent)

	go func() {
		defer close(ch)

		stream := output.GetStream()
		defer stream.Close()

		send := func(event llm.StreamEvent) bool {
			select {
			case ch <- event:
				return true
			case <-ctx.Done():
				return false
			}
		}

		finishReason := ""
		for event := range stream.Events() {
			switch v := event.(type) {
			case *types.ConverseStreamOutputMemberContentBlockDelta:
				if delta := convertDelta(v.Value.Delta); delta != nil {
					if !send(llm.NewDeltaEvent(0, delta)) {
						return
					}
				}
			case *types.ConverseStreamOutputMemberMessageStop:
				finishReason = convertStopReason(v.Value.StopReason)
			}
		}

		if err := stream.Err(); err != nil {
			send(llm.NewErrorEvent(convertError(err)))
			return
		}
		if finishReason == "" {
			finishReason = llm.FinishReasonStop
		}
		send(llm.NewDoneEvent(0, finishReason))
	}()

	return ch, nil
}

// GetRemote checks the control plane at most once per health check interval
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

func (c *Client) performHealthCheck() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := c.control.ListFoundationModels(ctx, &bedrock.ListFoundationModelsInput{})
	return err == nil
}

// GetModelInfo returns information about the configured model
func (c *Client) GetModelInfo() llm.ModelInfo {
	info := llm.ModelInfo{
		Name:              c.model,
		Provider:          providerName,
		MaxTokens:         4096,
		SupportsStreaming: true,
	}
	for _, entry := range contextLength {
		if strings.Contains(c.model, entry.fragment) {
			info.MaxTokens = entry.maxTokens
			info.SupportsReasoning = entry.reasoning
			break
		}
	}
	return info
}

// Close is a no-op; the AWS SDK holds no long-lived connections
func (c *Client) Close() error {
	return nil
}

func (c *Client) convertRequest(req llm.ChatRequest) (*bedrockruntime.ConverseInput, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	system, messages, err := convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	if instruction := responseFormatInstruction(req.ResponseFormat); instruction != "" {
		system = append(system, &types.SystemContentBlockMemberText{Value: instruction})
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(model),
		Messages: messages,
		System:   system,
	}
	if req.MaxTokens != nil || req.Temperature != nil || req.TopP != nil {
		cfg := &types.InferenceConfiguration{
			Temperature: req.Temperature,
			TopP:        req.TopP,
		}
		if req.MaxTokens != nil {
			cfg.MaxTokens = aws.Int32(clampInt32(*req.MaxTokens))
		}
		input.InferenceConfig = cfg
	}
	return input, nil
}

// convertMessages splits system prompts from the conversation. Consecutive
// messages with the same role are merged, as Converse requires alternation.
func convertMessages(msgs []llm.Message) ([]types.SystemContentBlock, []types.Message, error) {
	var system []types.SystemContentBlock
	var messages []types.Message

	for _, msg := range msgs {
		text := msg.GetText()
		if msg.Role == llm.RoleSystem {
			if text != "" {
				system = append(system, &types.SystemContentBlockMemberText{Value: text})
			}
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		role := types.ConversationRoleUser
		if msg.Role == llm.RoleAssistant {
			role = types.ConversationRoleAssistant
		}

		block := &types.ContentBlockMemberText{Value: text}
		if n := len(messages); n > 0 && messages[n-1].Role == role {
			messages[n-1].Content = append(messages[n-1].Content, block)
			continue
		}
		messages = append(messages, types.Message{Role: role, Content: []types.ContentBlock{block}})
	}

	if len(messages) == 0 {
		return nil, nil, &llm.Error{
			Code:       "invalid_request",
			Message:    "No valid messages provided",
			Type:       llm.ErrorTypeValidation,
			StatusCode: http.StatusBadRequest,
		}
	}
	return system, messages, nil
}

// responseFormatInstruction asks for JSON in the system prompt, as Converse
// has no response format of its own
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

func convertResponse(model string, output *bedrockruntime.ConverseOutput) *llm.ChatResponse {
	message := llm.NewTextMessage(llm.RoleAssistant, "")
	if member, ok := output.Output.(*types.ConverseOutputMemberMessage); ok {
		reasoning, text := splitContent(member.Value.Content)
		message = llm.NewTextMessage(llm.RoleAssistant, text)
		message.ReasoningContent = reasoning
	}

	resp := &llm.ChatResponse{
		ID:    "bedrock-" + uuid.NewString(),
		Model: model,
		Choices: []llm.Choice{{
			Index:        0,
			Message:      message,
			FinishReason: convertStopReason(output.StopReason),
		}},
	}
	if usage := output.Usage; usage != nil {
		resp.Usage = llm.Usage{
			PromptTokens:     int(aws.ToInt32(usage.InputTokens)),
			CompletionTokens: int(aws.ToInt32(usage.OutputTokens)),
			TotalTokens:      int(aws.ToInt32(usage.TotalTokens)),
		}
	}
	return resp
}

// splitContent separates reasoning blocks from text blocks
func splitContent(blocks []types.ContentBlock) (reasoning, text string) {
	var r, t strings.Builder
	for _, block := range blocks {
		switch v := block.(type) {
		case *types.ContentBlockMemberText:
			t.WriteString(v.Value)
		case *types.ContentBlockMemberReasoningContent:
			if rt, ok := v.Value.(*types.ReasoningContentBlockMemberReasoningText); ok {
				r.WriteString(aws.ToString(rt.Value.Text))
			}
		}
	}
	return r.String(), t.String()
}

func convertDelta(delta types.ContentBlockDelta) *llm.MessageDelta {
	switch v := delta.(type) {
	case *types.ContentBlockDeltaMemberText:
		if v.Value != "" {
			return llm.NewTextDelta(v.Value)
		}
	case *types.ContentBlockDeltaMemberReasoningContent:
		if rt, ok := v.Value.(*types.ReasoningContentBlockDeltaMemberText); ok && rt.Value != "" {
			return llm.NewReasoningDelta(rt.Value)
		}
	}
	return nil
}

func convertStopReason(reason types.StopReason) string {
	switch reason {
	case types.StopReasonMaxTokens:
		return llm.FinishReasonLength
	case types.StopReasonContentFiltered, types.StopReasonGuardrailIntervened:
		return "content_filter"
	default:
		return llm.FinishReasonStop
	}
}

func convertError(err error) *llm.Error {
	if llmErr, ok := llm.AsError(err); ok {
		return llmErr
	}

	result := &llm.Error{Code: "api_error", Message: err.Error(), Type: llm.ErrorTypeAPI, Err: err}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return result
	}

	switch apiErr.ErrorCode() {
	case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException":
		result.Code, result.Type, result.StatusCode = "authentication_error", llm.ErrorTypeAuthentication, http.StatusUnauthorized
	case "ThrottlingException", "TooManyRequestsException", "ServiceQuotaExceededException":
		result.Code, result.Type, result.StatusCode = "rate_limit_error", llm.ErrorTypeRateLimit, http.StatusTooManyRequests
	case "ResourceNotFoundException":
		result.Code, result.Type, result.StatusCode = "model_not_found", llm.ErrorTypeValidation, http.StatusNotFound
	case "ValidationException":
		result.Code, result.Type, result.StatusCode = "invalid_request", llm.ErrorTypeValidation, http.StatusBadRequest
	case "ModelNotReadyException", "ServiceUnavailableException", "InternalServerException", "ModelTimeoutException":
		result.Code, result.StatusCode = "service_unavailable", http.StatusServiceUnavailable
	}
	return result
}

func clampInt32(v int) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < 0 {
		return 0
	}
	return int32(v)
}
