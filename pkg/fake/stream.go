package fake

import (
	"context"
	"io"
	"iter"
	"math"
	"strings"
	"time"
)

// Banners written between sections by Stream.Render and Stream.Text
const (
	ReasoningSplitter = "---------------------------reasoning---------------------------"
	ContentSplitter   = "---------------------------content---------------------------"
)

// ChunkKind tells reasoning chunks from content chunks
type ChunkKind int

const (
	ChunkReasoning ChunkKind = iota
	ChunkContent
)

func (k ChunkKind) String() string {
	if k == ChunkReasoning {
		return "reasoning"
	}
	return "content"
}

// Chunk is one piece of a streamed response
type Chunk struct {
	Kind ChunkKind
	Text string
	// Lead is the separator that preceded Text in the original response;
	// Lead+Text of consecutive chunks rebuilds each section.
	Lead string
}

// Stream replays a response as a finite, single-use sequence of chunks.
//
// Streams are pull-based: every call to Next waits one chunk interval
// before exposing the next chunk, so a stream of N chunks takes about
// N/wps to drain. Abandoning a stream needs no cleanup. The rate and
// chunking mode are fixed when the stream is created.
type Stream struct {
	response Response
	chunks   []Chunk
	pos      int
	interval time.Duration
	timer    *time.Timer

	current Chunk
	entered bool
	ended   bool
	stopped bool
	err     error

	reasoning strings.Builder
	content   strings.Builder
}

func newStream(resp Response, wps float64, chunking Chunking) (*Stream, error) {
	s := &Stream{
		response: resp,
		interval: chunkInterval(wps),
	}
	sep := chunking.separator()
	for _, section := range []struct {
		kind ChunkKind
		text string
	}{
		{ChunkReasoning, resp.Reasoning},
		{ChunkContent, resp.Content},
	} {
		pieces, err := chunking.Split(section.text)
		if err != nil {
			return nil, err
		}
		for i, piece := range pieces {
			chunk := Chunk{Kind: section.kind, Text: piece}
			if i > 0 {
				chunk.Lead = sep
			}
			s.chunks = append(s.chunks, chunk)
		}
	}
	return s, nil
}

// chunkInterval converts a rate to the wait between chunks. Rates too small
// for a time.Duration wait the longest representable interval.
func chunkInterval(wps float64) time.Duration {
	interval := float64(time.Second) / wps
	if interval >= math.MaxInt64 {
		return math.MaxInt64
	}
	return time.Duration(interval)
}

// Next waits for the next chunk and reports whether one is available.
// It returns false once the stream is drained, stopped, or ctx is done.
func (s *Stream) Next(ctx context.Context) bool {
	if s.ended || s.stopped || s.err != nil {
		return false
	}
	s.entered = true

	if s.pos >= len(s.chunks) {
		s.ended = true
		return false
	}

	if err := s.wait(ctx); err != nil {
		s.err = err
		return false
	}

	s.current = s.chunks[s.pos]
	s.chunks[s.pos] = Chunk{}
	s.pos++

	switch s.current.Kind {
	case ChunkReasoning:
		s.reasoning.WriteString(s.current.Lead + s.current.Text)
	case ChunkContent:
		s.content.WriteString(s.current.Lead + s.current.Text)
	}
	return true
}

func (s *Stream) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.interval <= 0 {
		return nil
	}
	if s.timer == nil {
		s.timer = time.NewTimer(s.interval)
	} else {
		s.timer.Reset(s.interval)
	}
	select {
	case <-ctx.Done():
		s.timer.Stop()
		return ctx.Err()
	case <-s.timer.C:
		return nil
	}
}

// Chunk returns the chunk made available by the last successful Next
func (s *Stream) Chunk() Chunk {
	return s.current
}

// Err returns the context error that interrupted the stream, if any
func (s *Stream) Err() error {
	return s.err
}

// Stop abandons the stream. Further calls to Next return false.
func (s *Stream) Stop() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.entered = true
	s.stopped = true
	s.chunks = nil
	s.pos = 0
}

// All ranges over the remaining chunks. Breaking out of the loop stops the stream.
func (s *Stream) All(ctx context.Context) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		for s.Next(ctx) {
			if !yield(s.Chunk()) {
				s.Stop()
				return
			}
		}
	}
}

// Remaining returns the number of chunks not yet delivered
func (s *Stream) Remaining() int {
	return len(s.chunks) - s.pos
}

// Entered reports whether iteration has started and the stream has not ended yet.
// A stream is in exactly one of three states: not entered, entered or ended.
func (s *Stream) Entered() bool {
	return s.entered && !s.ended
}

// Ended reports whether every chunk has been delivered
func (s *Stream) Ended() bool {
	return s.ended
}

// Response returns the full response being streamed
func (s *Stream) Response() Response {
	return s.response
}

// Content returns the content delivered so far
func (s *Stream) Content() string {
	return s.content.String()
}

// ReasoningContent returns the reasoning delivered so far
func (s *Stream) ReasoningContent() string {
	return s.reasoning.String()
}

// Render drains the stream into w. With withReasoning set, reasoning is
// written too and each section is introduced by its banner; otherwise only
// content is written.
func (s *Stream) Render(ctx context.Context, w io.Writer, withReasoning bool) error {
	var section *ChunkKind
	for s.Next(ctx) {
		chunk := s.Chunk()
		if chunk.Kind == ChunkReasoning && !withReasoning {
			continue
		}
		if withReasoning && (section == nil || *section != chunk.Kind) {
			if section != nil {
				if _, err := io.WriteString(w, "\n\n"); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, bannerFor(chunk.Kind)+"\n\n"); err != nil {
				return err
			}
			kind := chunk.Kind
			section = &kind
		}
		if _, err := io.WriteString(w, chunk.Lead+chunk.Text); err != nil {
			return err
		}
	}
	return s.Err()
}

// Text returns the delivered response in the same layout Render writes
func (s *Stream) Text(withReasoning bool) string {
	if !withReasoning {
		return s.Content()
	}
	var sb strings.Builder
	if reasoning := s.ReasoningContent(); reasoning != "" {
		sb.WriteString(ReasoningSplitter + "\n\n" + reasoning)
	}
	if content := s.Content(); content != "" {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(ContentSplitter + "\n\n" + content)
	}
	return sb.String()
}

func bannerFor(kind ChunkKind) string {
	if kind == ChunkReasoning {
		return ReasoningSplitter
	}
	return ContentSplitter
}
