package fake

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func askStream(t *testing.T, m *Model, text string) *Stream {
	t.Helper()
	stream, err := m.AskStream(context.Background(), userSays(text))
	require.NoError(t, err)
	return stream
}

func drain(ctx context.Context, s *Stream) []Chunk {
	var chunks []Chunk
	for s.Next(ctx) {
		chunks = append(chunks, s.Chunk())
	}
	return chunks
}

func chunkTexts(chunks []Chunk) []string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return texts
}

func TestStream_PacedWords(t *testing.T) {
	m := NewModel().ResponseAlways(Text("a b c")).WithStreamWPS(3)
	stream := askStream(t, m, "go")

	start := time.Now()
	var (
		texts []string
		times []time.Duration
	)
	for stream.Next(context.Background()) {
		texts = append(texts, stream.Chunk().Text)
		times = append(times, time.Since(start))
	}
	total := time.Since(start)

	require.NoError(t, stream.Err())
	assert.Equal(t, []string{"a", "b", "c"}, texts)

	assert.InDelta(t, time.Second.Seconds(), total.Seconds(), 0.35)
	for i := 1; i < len(times); i++ {
		gap := times[i] - times[i-1]
		assert.InDelta(t, (time.Second / 3).Seconds(), gap.Seconds(), 0.2, "gap %d", i)
	}
}

func TestStream_ReasoningThenContent(t *testing.T) {
	t.Parallel()

	m := NewModel().ResponseAlways(WithReasoning("think  hard", "Hello big world")).WithStreamWPS(1000)
	stream := askStream(t, m, "go")

	assert.False(t, stream.Entered())
	assert.Equal(t, 5, stream.Remaining())

	chunks := drain(context.Background(), stream)
	require.Len(t, chunks, 5)
	assert.Equal(t, []string{"think", "hard", "Hello", "big", "world"}, chunkTexts(chunks))
	assert.Equal(t, ChunkReasoning, chunks[0].Kind)
	assert.Equal(t, ChunkReasoning, chunks[1].Kind)
	assert.Equal(t, ChunkContent, chunks[2].Kind)

	assert.Equal(t, "", chunks[0].Lead)
	assert.Equal(t, " ", chunks[1].Lead)
	assert.Equal(t, "", chunks[2].Lead, "a new section starts without a separator")

	assert.False(t, stream.Entered(), "an ended stream is no longer entered")
	assert.True(t, stream.Ended())
	assert.Equal(t, "think hard", stream.ReasoningContent())
	assert.Equal(t, "Hello big world", stream.Content())
	assert.Equal(t, WithReasoning("think  hard", "Hello big world"), stream.Response())
}

func TestStream_SingleUse(t *testing.T) {
	t.Parallel()

	m := NewModel().ResponseAlways(Text("one two")).WithStreamWPS(1000)
	stream := askStream(t, m, "go")

	assert.Len(t, drain(context.Background(), stream), 2)
	assert.False(t, stream.Next(context.Background()))
	assert.Empty(t, drain(context.Background(), stream))
	assert.Equal(t, "one two", stream.Content())
}

func TestStream_EmptyResponse(t *testing.T) {
	t.Parallel()

	m := NewModel().ResponseAlways(Text("   ")).WithStreamWPS(1)
	stream := askStream(t, m, "go")

	start := time.Now()
	assert.False(t, stream.Next(context.Background()))
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.True(t, stream.Ended())
	assert.Equal(t, "", stream.Content())
}

func TestStream_Cancellation(t *testing.T) {
	t.Parallel()

	m := NewModel().ResponseAlways(Text("slow words here")).WithStreamWPS(0.5)
	stream := askStream(t, m, "go")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	assert.False(t, stream.Next(ctx))
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, stream.Err(), context.DeadlineExceeded)
	assert.False(t, stream.Ended())
	assert.False(t, stream.Next(context.Background()), "a failed stream stays failed")
}

func TestStream_States(t *testing.T) {
	t.Parallel()

	m := NewModel().ResponseAlways(Text("a b")).WithStreamWPS(1000)
	stream := askStream(t, m, "go")
	assert.False(t, stream.Entered())
	assert.False(t, stream.Ended())

	require.True(t, stream.Next(context.Background()))
	assert.True(t, stream.Entered())
	assert.False(t, stream.Ended())

	drain(context.Background(), stream)
	assert.False(t, stream.Entered())
	assert.True(t, stream.Ended())
}

func TestStream_TinyRateStillPaces(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Duration(math.MaxInt64), chunkInterval(1e-12))
	assert.Equal(t, 20*time.Millisecond, chunkInterval(50))

	m := NewModel().ResponseAlways(Text("a b c")).WithStreamWPS(1e-12)
	stream := askStream(t, m, "go")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.False(t, stream.Next(ctx), "no chunk before the interval elapses")
	assert.ErrorIs(t, stream.Err(), context.DeadlineExceeded)
	assert.Empty(t, stream.Content())
}

func TestStream_RateCapturedAtCreation(t *testing.T) {
	t.Parallel()

	m := NewModel().ResponseAlways(Text("a b c d")).WithStreamWPS(200)
	stream := askStream(t, m, "go")
	m.WithStreamWPS(0.1)

	start := time.Now()
	assert.Len(t, drain(context.Background(), stream), 4)
	assert.Less(t, time.Since(start), time.Second)
}

func TestStream_SelectionMatchesAsk(t *testing.T) {
	t.Parallel()

	m := NewModel().
		ResponseSequence(Text("first answer")).
		ResponseAlways(Text("fallback")).
		WithStreamWPS(1000)

	assert.Equal(t, "first answer", askStream(t, m, "q").Response().Content)
	assert.Equal(t, "fallback", askStream(t, m, "q").Response().Content)

	m.ClearRules()
	_, err := m.AskStream(context.Background(), userSays("q"))
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestStream_AllWithBreak(t *testing.T) {
	t.Parallel()

	m := NewModel().ResponseAlways(Text("a b c d e")).WithStreamWPS(1000)
	stream := askStream(t, m, "go")

	var got []string
	for chunk := range stream.All(context.Background()) {
		got = append(got, chunk.Text)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 0, stream.Remaining())
	assert.False(t, stream.Next(context.Background()))
	assert.False(t, stream.Ended())
	assert.Equal(t, "a b", stream.Content())
}

func TestStream_Segments(t *testing.T) {
	t.Parallel()

	m := NewModel().ResponseAlways(WithReasoning("Hmm.", "Hello, world!")).
		WithChunking(ChunkSegments).
		WithStreamWPS(1000)
	stream := askStream(t, m, "go")

	chunks := drain(context.Background(), stream)
	assert.Contains(t, chunkTexts(chunks), "Hello")
	assert.Contains(t, chunkTexts(chunks), " ")
	for _, c := range chunks {
		assert.Equal(t, "", c.Lead)
	}
	assert.Equal(t, "Hello, world!", stream.Content())
	assert.Equal(t, "Hmm.", stream.ReasoningContent())
}

func TestStream_RenderAndText(t *testing.T) {
	t.Parallel()

	m := NewModel().ResponseAlways(WithReasoning("think first", "then answer")).WithStreamWPS(1000)

	want := ReasoningSplitter + "\n\nthink first\n\n" + ContentSplitter + "\n\nthen answer"

	var sb strings.Builder
	stream := askStream(t, m, "go")
	require.NoError(t, stream.Render(context.Background(), &sb, true))
	assert.Equal(t, want, sb.String())
	assert.Equal(t, want, stream.Text(true))
	assert.Equal(t, "then answer", stream.Text(false))

	sb.Reset()
	stream = askStream(t, m, "go")
	require.NoError(t, stream.Render(context.Background(), &sb, false))
	assert.Equal(t, "then answer", sb.String())
}

func TestStream_RenderContentOnlyWithBanners(t *testing.T) {
	t.Parallel()

	m := NewModel().ResponseAlways(Text("plain text")).WithStreamWPS(1000)
	stream := askStream(t, m, "go")

	var sb strings.Builder
	require.NoError(t, stream.Render(context.Background(), &sb, true))
	assert.Equal(t, ContentSplitter+"\n\nplain text", sb.String())
	assert.Equal(t, sb.String(), stream.Text(true))
}
