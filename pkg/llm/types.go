// Core request and response types
package llm

// Finish reasons reported in choices and done events
const (
	FinishReasonStop   = "stop"
	FinishReasonLength = "length"
	FinishReasonError  = "error"
)

// ChatRequest represents a chat completion request (provider-agnostic)
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    *float32        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	TopP           *float32        `json:"top_p,omitempty"`
	Stream         bool            `json:"stream,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// Conversation returns the request messages as a Conversation
func (r ChatRequest) Conversation() Conversation {
	return Conversation(r.Messages)
}

// ChatResponse represents a chat completion response (provider-agnostic)
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage,omitempty"`
}

// Choice represents a single response choice
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// IsComplete checks if this choice represents a complete response
func (c Choice) IsComplete() bool {
	return c.FinishReason == FinishReasonStop || c.FinishReason == FinishReasonLength
}

// Text returns the text of the first choice, or an empty string when there is none
func (r ChatResponse) Text() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.GetText()
}

// ReasoningContent returns the reasoning of the first choice, if any
func (r ChatResponse) ReasoningContent() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.ReasoningContent
}

// DeepCopy creates a deep copy of the ChatResponse, including all choices and usage information.
// Modifications to the copy do not affect the original response.
func (r ChatResponse) DeepCopy() ChatResponse {
	cp := ChatResponse{
		ID:    r.ID,
		Model: r.Model,
		Usage: r.Usage,
	}

	if len(r.Choices) > 0 {
		cp.Choices = make([]Choice, 0, len(r.Choices))
		for _, choice := range r.Choices {
			cp.Choices = append(cp.Choices, Choice{
				Index:        choice.Index,
				Message:      choice.Message.DeepCopy(),
				FinishReason: choice.FinishReason,
			})
		}
	}

	return cp
}
