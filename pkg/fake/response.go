package fake

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/inercia/go-fakellm/pkg/llm"
)

// Response is the payload a rule answers with
type Response struct {
	Reasoning string `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
	Content   string `json:"content" yaml:"content"`
}

// Responder produces the response of a rule for a conversation
type Responder interface {
	Respond(conv llm.Conversation) (Response, error)
}

// Respond returns the response itself
func (r Response) Respond(llm.Conversation) (Response, error) {
	return r, nil
}

// Message returns the response as an assistant message
func (r Response) Message() llm.Message {
	msg := llm.NewTextMessage(llm.RoleAssistant, r.Content)
	msg.ReasoningContent = r.Reasoning
	return msg
}

// Text is a response with content only
func Text(content string) Response {
	return Response{Content: content}
}

// WithReasoning is a response carrying reasoning followed by content
func WithReasoning(reasoning, content string) Response {
	return Response{Reasoning: reasoning, Content: content}
}

// ResponseFunc computes the response from the conversation on every call
type ResponseFunc func(conv llm.Conversation) (Response, error)

func (f ResponseFunc) Respond(conv llm.Conversation) (Response, error) {
	return f(conv)
}

// JSON answers with v encoded as JSON. v is encoded on every call, so a
// pointer may be updated between calls.
func JSON(v any) Responder {
	return ResponseFunc(func(llm.Conversation) (Response, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return Response{}, errors.Wrap(err, "encoding JSON response")
		}
		return Text(string(data)), nil
	})
}

type failure struct {
	err error
}

func (f failure) Respond(llm.Conversation) (Response, error) {
	return Response{}, f.err
}

// Fail makes the rule fail the call with err, for scripting provider errors
// such as rate limits. A nil err fails with a generic *llm.Error.
func Fail(err error) Responder {
	if err == nil {
		err = &llm.Error{Code: "scripted_failure", Message: "scripted failure", Type: llm.ErrorTypeSimulation}
	}
	return failure{err: err}
}
