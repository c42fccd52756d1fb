// Message types and functionality
package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message represents a single conversation turn
type Message struct {
	Role             MessageRole      `json:"role"`
	Content          []MessageContent `json:"content"`
	ReasoningContent string           `json:"reasoning_content,omitempty"`
	Metadata         map[string]any   `json:"metadata,omitempty"`
}

// MessageRole defines the role of a message sender
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// IsValid reports whether the role is one of the known roles
func (r MessageRole) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// NewTextMessage creates a new Message with a single TextContent item
func NewTextMessage(role MessageRole, text string) Message {
	return Message{
		Role:    role,
		Content: []MessageContent{NewTextContent(text)},
	}
}

// GetText returns the concatenated text of all TextContent items.
// Returns an empty string if the message has no text.
func (m Message) GetText() string {
	var sb strings.Builder
	for _, content := range m.Content {
		if textContent, ok := content.(*TextContent); ok {
			sb.WriteString(textContent.GetText())
		}
	}
	return sb.String()
}

// SetText replaces all existing content with a single TextContent item
func (m *Message) SetText(text string) {
	m.Content = []MessageContent{NewTextContent(text)}
}

// SetMetadata sets a metadata key-value pair
func (m *Message) SetMetadata(key string, value any) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[key] = value
}

// GetMetadata retrieves a metadata value by key
func (m Message) GetMetadata(key string) (any, bool) {
	value, exists := m.Metadata[key]
	return value, exists
}

// Validate validates the role and all content items in the message
func (m Message) Validate() error {
	if !m.Role.IsValid() {
		return fmt.Errorf("invalid message role: %q", m.Role)
	}
	for i, content := range m.Content {
		if err := content.Validate(); err != nil {
			return fmt.Errorf("content item %d validation failed: %w", i, err)
		}
	}
	return nil
}

// DeepCopy creates a deep copy of the message.
// Metadata values are copied shallowly.
func (m Message) DeepCopy() Message {
	cp := Message{
		Role:             m.Role,
		ReasoningContent: m.ReasoningContent,
	}

	if len(m.Content) > 0 {
		cp.Content = make([]MessageContent, 0, len(m.Content))
		for _, content := range m.Content {
			if textContent, ok := content.(*TextContent); ok {
				cp.Content = append(cp.Content, NewTextContent(textContent.Text))
				continue
			}
			cp.Content = append(cp.Content, content)
		}
	}

	if len(m.Metadata) > 0 {
		cp.Metadata = make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			cp.Metadata[k] = v
		}
	}

	return cp
}

// MarshalJSON implements custom JSON marshaling for Message
func (m Message) MarshalJSON() ([]byte, error) {
	type Alias Message

	temp := struct {
		Alias
		Content []json.RawMessage `json:"content"`
	}{
		Alias: (Alias)(m),
	}

	if len(m.Content) > 0 {
		temp.Content = make([]json.RawMessage, len(m.Content))
		for i, content := range m.Content {
			contentBytes, err := json.Marshal(content)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal content item %d: %w", i, err)
			}
			temp.Content[i] = contentBytes
		}
	}

	return json.Marshal(temp)
}

// UnmarshalJSON implements custom JSON unmarshaling for Message.
// A plain string content is accepted as a single text item.
func (m *Message) UnmarshalJSON(data []byte) error {
	type Alias Message

	temp := struct {
		*Alias
		Content json.RawMessage `json:"content"`
	}{
		Alias: (*Alias)(m),
	}

	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	m.Content = nil
	if len(temp.Content) == 0 || string(temp.Content) == "null" {
		return nil
	}

	var text string
	if err := json.Unmarshal(temp.Content, &text); err == nil {
		m.Content = []MessageContent{NewTextContent(text)}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(temp.Content, &items); err != nil {
		return fmt.Errorf("failed to decode message content: %w", err)
	}

	m.Content = make([]MessageContent, 0, len(items))
	for i, item := range items {
		var typeChecker struct {
			Type MessageType `json:"type"`
		}
		if err := json.Unmarshal(item, &typeChecker); err != nil {
			return fmt.Errorf("failed to determine type for content item %d: %w", i, err)
		}
		if typeChecker.Type != MessageTypeText {
			return fmt.Errorf("unsupported content type: %s", typeChecker.Type)
		}

		content := &TextContent{}
		if err := json.Unmarshal(item, content); err != nil {
			return fmt.Errorf("failed to unmarshal content item %d: %w", i, err)
		}
		m.Content = append(m.Content, content)
	}

	return nil
}
