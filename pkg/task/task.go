package task

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/inercia/go-fakellm/pkg/llm"
)

// Task pairs a client with a conversation history.
//
// Ask and AskStream send the history, plus an optional new user message, and
// leave the history untouched. Chat and ChatStream also append the turn, so the
// next call sees it.
type Task struct {
	client llm.Client
	model  string

	mu      sync.Mutex
	history llm.History
}

// New creates a task over client starting from history
func New(client llm.Client, history llm.History) *Task {
	return &Task{client: client, history: history}
}

// WithModel sets the model name sent with every request. The client default is
// used when it is empty.
func (t *Task) WithModel(model string) *Task {
	t.model = model
	return t
}

// Client returns the client used by the task
func (t *Task) Client() llm.Client {
	return t.client
}

// History returns the current history
func (t *Task) History() llm.History {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.history
}

// SetHistory replaces the history
func (t *Task) SetHistory(history llm.History) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = history
}

// request builds a request from the history. An empty input adds no user message.
func (t *Task) request(input string) (llm.ChatRequest, llm.History) {
	history := t.History()
	if input != "" {
		history = history.WithUserMessage(input)
	}
	return llm.ChatRequest{Model: t.model, Messages: history.Messages()}, history
}

// Ask sends the history and input and returns the response
func (t *Task) Ask(ctx context.Context, input string) (*llm.ChatResponse, error) {
	req, _ := t.request(input)
	return t.client.ChatCompletion(ctx, req)
}

// AskStream is the streaming form of Ask
func (t *Task) AskStream(ctx context.Context, input string) (<-chan llm.StreamEvent, error) {
	req, _ := t.request(input)
	return t.client.StreamChatCompletion(ctx, req)
}

// Chat asks and appends both the input and the answer to the history.
// The history is unchanged when the call fails.
func (t *Task) Chat(ctx context.Context, input string) (*llm.ChatResponse, error) {
	req, history := t.request(input)
	resp, err := t.client.ChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("response has no choices")
	}
	t.SetHistory(history.WithAssistantMessage(resp.Text()))
	return resp, nil
}

// ChatStream streams the answer, calling handle for every event, and appends
// the turn once the stream completes. An error from handle stops the stream.
// The history is unchanged unless a done event was received.
func (t *Task) ChatStream(ctx context.Context, input string, handle func(llm.StreamEvent) error) (llm.Message, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, history := t.request(input)
	events, err := t.client.StreamChatCompletion(ctx, req)
	if err != nil {
		return llm.Message{}, err
	}

	var acc llm.StreamAccumulator
	for event := range events {
		acc.Add(event)
		if event.IsError() {
			return llm.Message{}, event.Error
		}
		if handle != nil {
			if err := handle(event); err != nil {
				return llm.Message{}, err
			}
		}
	}
	if acc.FinishReason() == "" {
		if err := ctx.Err(); err != nil {
			return llm.Message{}, err
		}
		return llm.Message{}, &llm.Error{
			Code:    llm.ErrorCodeIncompleteStream,
			Message: "stream closed before completion",
			Type:    llm.ErrorTypeAPI,
		}
	}

	answer := acc.Message()
	t.SetHistory(history.WithAssistantMessage(answer.GetText()))
	return answer, nil
}
