package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamEventTypes(t *testing.T) {
	delta := NewDeltaEvent(0, NewTextDelta("hi"))
	assert.True(t, delta.IsDelta())
	assert.False(t, delta.IsDone())
	assert.False(t, delta.IsError())

	done := NewDoneEvent(0, FinishReasonStop)
	assert.True(t, done.IsDone())
	assert.Equal(t, FinishReasonStop, done.Choice.FinishReason)

	errEvent := NewErrorEvent(&Error{Code: "boom", Message: "boom"})
	assert.True(t, errEvent.IsError())
	assert.False(t, errEvent.IsDelta())

	assert.False(t, StreamEvent{Type: StreamEventDelta}.IsDelta())
	assert.False(t, StreamEvent{Type: StreamEventError}.IsError())
}

func TestStreamAccumulator(t *testing.T) {
	var acc StreamAccumulator
	for _, event := range []StreamEvent{
		NewDeltaEvent(0, NewReasoningDelta("think ")),
		NewDeltaEvent(0, NewReasoningDelta("hard")),
		NewDeltaEvent(0, NewTextDelta("Hello ")),
		NewDeltaEvent(0, NewTextDelta("World")),
		NewDoneEvent(0, FinishReasonStop),
	} {
		acc.Add(event)
	}

	assert.Equal(t, "Hello World", acc.Content())
	assert.Equal(t, "think hard", acc.ReasoningContent())
	assert.Equal(t, FinishReasonStop, acc.FinishReason())
	assert.Nil(t, acc.Err())

	msg := acc.Message()
	assert.Equal(t, RoleAssistant, msg.Role)
	assert.Equal(t, "Hello World", msg.GetText())
	assert.Equal(t, "think hard", msg.ReasoningContent)

	acc.Add(NewErrorEvent(&Error{Code: "x", Message: "failed"}))
	assert.Equal(t, "failed", acc.Err().Error())
}
