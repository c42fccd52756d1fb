package fake

import (
	"strings"
	"sync"

	"github.com/clipperhouse/uax29/v2/words"
	"github.com/pkg/errors"
	"github.com/tiktoken-go/tokenizer"
)

// Chunking selects how streamed text is cut into chunks
type Chunking int

const (
	// ChunkWords splits on whitespace; whitespace itself is not streamed
	ChunkWords Chunking = iota
	// ChunkSegments splits on Unicode word boundaries (UAX #29), keeping
	// whitespace and punctuation as their own chunks. CJK text is cut per word.
	ChunkSegments
	// ChunkTokens splits into o200k_base BPE tokens
	ChunkTokens
)

var chunkingNames = map[Chunking]string{
	ChunkWords:    "words",
	ChunkSegments: "segments",
	ChunkTokens:   "tokens",
}

func (c Chunking) String() string {
	if name, ok := chunkingNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseChunking parses a chunking mode name
func ParseChunking(name string) (Chunking, error) {
	for c, n := range chunkingNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return c, nil
		}
	}
	return 0, configErrorf("unknown chunking mode %q (want words, segments or tokens)", name)
}

func (c Chunking) MarshalText() ([]byte, error) {
	if _, ok := chunkingNames[c]; !ok {
		return nil, configErrorf("unknown chunking mode %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *Chunking) UnmarshalText(text []byte) error {
	parsed, err := ParseChunking(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// separator is placed between consecutive chunks when reassembling text
func (c Chunking) separator() string {
	if c == ChunkWords {
		return " "
	}
	return ""
}

// Split cuts text into chunks. Empty chunks are never returned.
func (c Chunking) Split(text string) ([]string, error) {
	switch c {
	case ChunkWords:
		return strings.Fields(text), nil
	case ChunkSegments:
		return splitSegments(text), nil
	case ChunkTokens:
		return splitTokens(text)
	}
	return nil, configErrorf("unknown chunking mode %d", int(c))
}

func splitSegments(text string) []string {
	var chunks []string
	iter := words.FromString(text)
	for iter.Next() {
		if segment := iter.Value(); segment != "" {
			chunks = append(chunks, segment)
		}
	}
	return chunks
}

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
	codecErr  error
)

func tokenCodec() (tokenizer.Codec, error) {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.O200kBase)
	})
	return codec, codecErr
}

func splitTokens(text string) ([]string, error) {
	enc, err := tokenCodec()
	if err != nil {
		return nil, errors.Wrap(err, "loading o200k_base tokenizer")
	}
	_, tokens, err := enc.Encode(text)
	if err != nil {
		return nil, errors.Wrap(err, "tokenizing response")
	}
	chunks := tokens[:0]
	for _, token := range tokens {
		if token != "" {
			chunks = append(chunks, token)
		}
	}
	return chunks, nil
}

// CountTokens counts o200k_base tokens, falling back to a length estimate
// when the tokenizer is unavailable.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	enc, err := tokenCodec()
	if err == nil {
		if count, err := enc.Count(text); err == nil {
			return count
		}
	}
	return (len(text) + 3) / 4
}
