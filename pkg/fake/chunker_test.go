package fake

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunking_Split(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		chunking Chunking
		text     string
		want     []string
	}{
		{name: "words", chunking: ChunkWords, text: "a b  c\n d", want: []string{"a", "b", "c", "d"}},
		{name: "words empty", chunking: ChunkWords, text: " \t ", want: []string{}},
		{name: "segments", chunking: ChunkSegments, text: "Hi, you", want: []string{"Hi", ",", " ", "you"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.chunking.Split(tt.text)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, got)
			assert.Equal(t, len(tt.want), len(got))
		})
	}
}

func TestChunking_SegmentsKeepAllText(t *testing.T) {
	t.Parallel()

	for _, text := range []string{
		"The quick brown fox.",
		"你好，世界",
		"emoji 👍🏽 and tabs\tincluded",
	} {
		chunks, err := ChunkSegments.Split(text)
		require.NoError(t, err)
		assert.Equal(t, text, strings.Join(chunks, ""))
	}
}

func TestChunking_Tokens(t *testing.T) {
	t.Parallel()

	text := "Streaming tokens should rebuild the original text."
	chunks, err := ChunkTokens.Split(text)
	require.NoError(t, err)

	assert.Greater(t, len(chunks), 3)
	assert.Equal(t, text, strings.Join(chunks, ""))
	assert.Equal(t, len(chunks), CountTokens(text))
}

func TestCountTokens(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, CountTokens(""))
	assert.Greater(t, CountTokens("hello world"), 0)
}

func TestParseChunking(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]Chunking{
		"words":    ChunkWords,
		"Segments": ChunkSegments,
		" tokens ": ChunkTokens,
	} {
		got, err := ParseChunking(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseChunking("letters")
	assert.ErrorIs(t, err, ErrConfiguration)

	var c Chunking
	require.NoError(t, c.UnmarshalText([]byte("tokens")))
	assert.Equal(t, ChunkTokens, c)

	text, err := ChunkSegments.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "segments", string(text))

	_, err = Chunking(9).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "unknown", Chunking(9).String())

	_, err = Chunking(9).Split("x")
	assert.Error(t, err)
}
