package llm

// Conversation is an ordered, chronological list of messages
type Conversation []Message

// Len returns the number of messages
func (c Conversation) Len() int {
	return len(c)
}

// Last returns the most recent message
func (c Conversation) Last() (Message, bool) {
	if len(c) == 0 {
		return Message{}, false
	}
	return c[len(c)-1], true
}

// LastText returns the text of the most recent message, or "" for an empty conversation
func (c Conversation) LastText() string {
	last, ok := c.Last()
	if !ok {
		return ""
	}
	return last.GetText()
}

// LastByRole returns the most recent message with the given role
func (c Conversation) LastByRole(role MessageRole) (Message, bool) {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].Role == role {
			return c[i], true
		}
	}
	return Message{}, false
}

// History is an immutable conversation builder. Every With* method returns a
// new History and leaves the receiver untouched, so a base history can be shared
// between several requests.
type History struct {
	messages []Message
}

// NewHistory creates a history from existing messages. The messages are copied.
func NewHistory(messages ...Message) History {
	h := History{}
	for _, msg := range messages {
		h.messages = append(h.messages, msg.DeepCopy())
	}
	return h
}

// WithMessage returns a new history with a text message appended
func (h History) WithMessage(role MessageRole, text string) History {
	next := h.Clone()
	next.messages = append(next.messages, NewTextMessage(role, text))
	return next
}

// WithUserMessage returns a new history with a user message appended
func (h History) WithUserMessage(text string) History {
	return h.WithMessage(RoleUser, text)
}

// WithAssistantMessage returns a new history with an assistant message appended
func (h History) WithAssistantMessage(text string) History {
	return h.WithMessage(RoleAssistant, text)
}

// WithSystemPrompt returns a new history whose first message is the given system prompt.
// An existing leading system message is replaced.
func (h History) WithSystemPrompt(text string) History {
	next := h.Clone()
	system := NewTextMessage(RoleSystem, text)
	if len(next.messages) > 0 && next.messages[0].Role == RoleSystem {
		next.messages[0] = system
		return next
	}
	next.messages = append([]Message{system}, next.messages...)
	return next
}

// Len returns the number of messages
func (h History) Len() int {
	return len(h.messages)
}

// Messages returns a copy of the messages as a Conversation
func (h History) Messages() Conversation {
	return h.Clone().messages
}

// Clone returns a deep copy of the history
func (h History) Clone() History {
	cp := History{messages: make([]Message, 0, len(h.messages)+1)}
	for _, msg := range h.messages {
		cp.messages = append(cp.messages, msg.DeepCopy())
	}
	return cp
}
