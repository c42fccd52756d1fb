package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// MessageContent defines the interface for the content items of a message.
// Only text is produced and consumed by go-fakellm clients, but the interface
// keeps messages open to other content kinds.
type MessageContent interface {
	// Type returns the content type identifier
	Type() MessageType
	// Validate checks if the content is valid
	Validate() error
	// Size returns the content size in bytes
	Size() int64
}

// MessageType represents the type of message content
type MessageType string

// Supported message content types
const (
	MessageTypeText MessageType = "text"
)

// TextContent represents text-based message content
type TextContent struct {
	Text string `json:"text"`
}

// NewTextContent creates a new TextContent instance with the given text
func NewTextContent(text string) *TextContent {
	return &TextContent{
		Text: text,
	}
}

// Type returns the message type for text content
func (t *TextContent) Type() MessageType {
	return MessageTypeText
}

// Validate checks if the text content is valid.
// Text content must not be empty or contain only whitespace.
func (t *TextContent) Validate() error {
	if t == nil {
		return errors.New("text content cannot be nil")
	}
	if strings.TrimSpace(t.Text) == "" {
		return errors.New("text content cannot be empty")
	}
	return nil
}

// Size returns the byte size of the text content
func (t *TextContent) Size() int64 {
	if t == nil {
		return 0
	}
	return int64(len(t.Text))
}

// GetText returns the text content as a string
func (t *TextContent) GetText() string {
	if t == nil {
		return ""
	}
	return t.Text
}

// MarshalJSON encodes the content together with its type tag
func (t *TextContent) MarshalJSON() ([]byte, error) {
	if t == nil {
		return json.Marshal(nil)
	}

	return json.Marshal(struct {
		Type MessageType `json:"type"`
		Text string      `json:"text"`
	}{
		Type: t.Type(),
		Text: t.Text,
	})
}

// UnmarshalJSON decodes a tagged text content item
func (t *TextContent) UnmarshalJSON(data []byte) error {
	if t == nil {
		return errors.New("cannot unmarshal into nil TextContent")
	}

	var content struct {
		Type MessageType `json:"type"`
		Text string      `json:"text"`
	}
	if err := json.Unmarshal(data, &content); err != nil {
		return err
	}
	if content.Type != "" && content.Type != MessageTypeText {
		return errors.New("invalid content type for TextContent")
	}

	t.Text = content.Text
	return nil
}
