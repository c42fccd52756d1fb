// Types for streaming chat completions
package llm

import "strings"

// Stream event types
const (
	StreamEventDelta = "delta"
	StreamEventDone  = "done"
	StreamEventError = "error"
)

// StreamEvent represents a single event in the streaming response
type StreamEvent struct {
	Type   string        `json:"type"` // "delta", "done", "error"
	Choice *StreamChoice `json:"choice,omitempty"`
	Error  *Error        `json:"error,omitempty"`
}

// StreamChoice represents a choice in the streaming response
type StreamChoice struct {
	Index        int           `json:"index"`
	Delta        *MessageDelta `json:"delta,omitempty"`
	FinishReason string        `json:"finish_reason,omitempty"`
}

// MessageDelta represents incremental updates to a message.
// A delta carries either content or reasoning text, rarely both.
type MessageDelta struct {
	Content          []MessageContent `json:"content,omitempty"`
	ReasoningContent string           `json:"reasoning_content,omitempty"`
}

// NewTextDelta creates a delta with a single text content item
func NewTextDelta(text string) *MessageDelta {
	return &MessageDelta{Content: []MessageContent{NewTextContent(text)}}
}

// NewReasoningDelta creates a delta carrying reasoning text only
func NewReasoningDelta(reasoning string) *MessageDelta {
	return &MessageDelta{ReasoningContent: reasoning}
}

// GetText returns the concatenated text of the delta content
func (d *MessageDelta) GetText() string {
	if d == nil {
		return ""
	}
	var sb strings.Builder
	for _, content := range d.Content {
		if textContent, ok := content.(*TextContent); ok {
			sb.WriteString(textContent.GetText())
		}
	}
	return sb.String()
}

// IsDelta returns true if this is a delta event
func (e StreamEvent) IsDelta() bool {
	return e.Type == StreamEventDelta && e.Choice != nil && e.Choice.Delta != nil
}

// IsDone returns true if this is a done event
func (e StreamEvent) IsDone() bool {
	return e.Type == StreamEventDone && e.Choice != nil
}

// IsError returns true if this is an error event
func (e StreamEvent) IsError() bool {
	return e.Type == StreamEventError && e.Error != nil
}

// NewDeltaEvent creates a new delta stream event
func NewDeltaEvent(index int, delta *MessageDelta) StreamEvent {
	return StreamEvent{
		Type: StreamEventDelta,
		Choice: &StreamChoice{
			Index: index,
			Delta: delta,
		},
	}
}

// NewDoneEvent creates a new done stream event
func NewDoneEvent(index int, finishReason string) StreamEvent {
	return StreamEvent{
		Type: StreamEventDone,
		Choice: &StreamChoice{
			Index:        index,
			FinishReason: finishReason,
		},
	}
}

// NewErrorEvent creates a new error stream event
func NewErrorEvent(err *Error) StreamEvent {
	return StreamEvent{
		Type:  StreamEventError,
		Error: err,
	}
}

// StreamAccumulator rebuilds a complete response from stream events
type StreamAccumulator struct {
	content      strings.Builder
	reasoning    strings.Builder
	finishReason string
	err          *Error
}

// Add folds one event into the accumulator
func (a *StreamAccumulator) Add(event StreamEvent) {
	switch {
	case event.IsDelta():
		a.content.WriteString(event.Choice.Delta.GetText())
		a.reasoning.WriteString(event.Choice.Delta.ReasoningContent)
	case event.IsDone():
		a.finishReason = event.Choice.FinishReason
	case event.IsError():
		a.err = event.Error
	}
}

// Content returns the accumulated content text
func (a *StreamAccumulator) Content() string {
	return a.content.String()
}

// ReasoningContent returns the accumulated reasoning text
func (a *StreamAccumulator) ReasoningContent() string {
	return a.reasoning.String()
}

// FinishReason returns the finish reason of the done event, if one was seen
func (a *StreamAccumulator) FinishReason() string {
	return a.finishReason
}

// Err returns the error carried by an error event, if one was seen
func (a *StreamAccumulator) Err() *Error {
	return a.err
}

// Message returns the accumulated assistant message
func (a *StreamAccumulator) Message() Message {
	msg := NewTextMessage(RoleAssistant, a.Content())
	msg.ReasoningContent = a.ReasoningContent()
	return msg
}
