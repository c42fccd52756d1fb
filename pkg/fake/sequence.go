package fake

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ResponseSequence plays a fixed list of responses once, in order.
//
// The cursor starts at 0 and never exceeds TotalResponses; reaching it
// leaves the sequence exhausted until Reset. A ResponseSequence is not
// safe for concurrent use on its own; the Model serializes access to the
// sequences it owns.
type ResponseSequence struct {
	responses []Response
	current   int
}

// NewResponseSequence creates a sequence over a copy of responses
func NewResponseSequence(responses ...Response) (*ResponseSequence, error) {
	if len(responses) == 0 {
		return nil, configErrorf("a response sequence needs at least one response")
	}
	return &ResponseSequence{
		responses: append([]Response(nil), responses...),
	}, nil
}

// Response returns the response at the cursor without moving it
func (s *ResponseSequence) Response() (Response, error) {
	if !s.HasMoreResponses() {
		return Response{}, &ExhaustedError{Total: len(s.responses)}
	}
	return s.responses[s.current], nil
}

// Advance moves the cursor forward, saturating once exhausted
func (s *ResponseSequence) Advance() {
	if s.current < len(s.responses) {
		s.current++
	}
}

// Reset moves the cursor back to the first response
func (s *ResponseSequence) Reset() {
	s.current = 0
}

func (s *ResponseSequence) HasMoreResponses() bool {
	return s.current < len(s.responses)
}

func (s *ResponseSequence) TotalResponses() int {
	return len(s.responses)
}

func (s *ResponseSequence) CurrentIndex() int {
	return s.current
}

// RuleCheck reports whether the sequence still has a response to offer,
// which is what a sequence-backed rule requires to match.
func (s *ResponseSequence) RuleCheck() bool {
	return s.HasMoreResponses()
}

// Responses returns a copy of all responses
func (s *ResponseSequence) Responses() []Response {
	return append([]Response(nil), s.responses...)
}

// Equal reports whether both sequences hold the same responses at the same cursor
func (s *ResponseSequence) Equal(other *ResponseSequence) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.current != other.current || len(s.responses) != len(other.responses) {
		return false
	}
	for i := range s.responses {
		if s.responses[i] != other.responses[i] {
			return false
		}
	}
	return true
}

// Hash is consistent with Equal
func (s *ResponseSequence) Hash() uint64 {
	d := xxhash.New()
	var buf [8]byte
	writeString := func(v string) {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(v)))
		_, _ = d.Write(buf[:])
		_, _ = d.WriteString(v)
	}
	for _, r := range s.responses {
		writeString(r.Reasoning)
		writeString(r.Content)
	}
	binary.LittleEndian.PutUint64(buf[:], uint64(s.current))
	_, _ = d.Write(buf[:])
	return d.Sum64()
}

func (s *ResponseSequence) String() string {
	parts := make([]string, len(s.responses))
	for i, r := range s.responses {
		if r.Reasoning != "" {
			parts[i] = fmt.Sprintf("(%q, %q)", r.Reasoning, r.Content)
		} else {
			parts[i] = fmt.Sprintf("%q", r.Content)
		}
	}
	return fmt.Sprintf("ResponseSequence[%d/%d]{%s}", s.current, len(s.responses), strings.Join(parts, ", "))
}
