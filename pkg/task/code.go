package task

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/inercia/go-fakellm/pkg/llm"
)

// ExtractCode returns the code of an answer. An answer not starting with a
// fence is returned trimmed. Otherwise it must hold exactly one fenced block,
// in the given language when language is not empty.
func ExtractCode(answer, language string) (string, error) {
	trimmed := strings.TrimSpace(answer)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed, nil
	}

	source := []byte(answer)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var blocks []string
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		cb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		if language != "" && string(cb.Language(source)) != language {
			return ast.WalkContinue, nil
		}
		var sb strings.Builder
		lines := cb.Lines()
		for i := 0; i < lines.Len(); i++ {
			segment := lines.At(i)
			sb.Write(segment.Value(source))
		}
		blocks = append(blocks, sb.String())
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}

	what := "code"
	if language != "" {
		what = language + " code"
	}
	switch len(blocks) {
	case 0:
		return "", errors.Errorf("no %s found in answer", what)
	case 1:
		return blocks[0], nil
	default:
		return "", errors.Errorf("%d %s blocks found in answer, expected one", len(blocks), what)
	}
}

// JSONParser returns a parser for AskParsed decoding the code of an answer into
// a T. When schema is not nil the code is validated against it first.
func JSONParser[T any](schema any) func(string) (T, error) {
	return func(answer string) (T, error) {
		var value T
		code, err := ExtractCode(answer, "")
		if err != nil {
			return value, err
		}
		if schema != nil {
			if err := llm.ValidateAgainstSchema([]byte(code), schema); err != nil {
				return value, err
			}
		}
		if err := json.Unmarshal([]byte(code), &value); err != nil {
			return value, fmt.Errorf("decoding answer: %w", err)
		}
		return value, nil
	}
}
