package task

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultMaxTries is the number of attempts made by AskParsed when none is given
const DefaultMaxTries = 5

// ErrOutputParseFailed is matched by every *ParseFailedError
var ErrOutputParseFailed = errors.New("output parse failed")

// ParseAttempt is one answer the parser rejected
type ParseAttempt struct {
	Output string
	Err    error
}

// ParseFailedError is returned by AskParsed when no answer could be parsed
type ParseFailedError struct {
	Attempts []ParseAttempt
}

func (e *ParseFailedError) Error() string {
	tries := "tries"
	if len(e.Attempts) == 1 {
		tries = "try"
	}
	msg := fmt.Sprintf("%s after %d %s", ErrOutputParseFailed, len(e.Attempts), tries)
	if n := len(e.Attempts); n > 0 {
		msg += ": " + e.Attempts[n-1].Err.Error()
	}
	return msg
}

func (e *ParseFailedError) Is(target error) bool {
	return target == ErrOutputParseFailed
}

// Unwrap returns the parse error of every attempt
func (e *ParseFailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		errs = append(errs, attempt.Err)
	}
	return errs
}

// AskParsed asks t and parses the answer, asking again with the same input
// each time parse fails, for at most maxTries attempts (DefaultMaxTries when
// maxTries is not positive). Client errors are returned at once. The history
// of t is not modified.
func AskParsed[T any](ctx context.Context, t *Task, input string, parse func(string) (T, error), maxTries int) (T, error) {
	var zero T
	if maxTries <= 0 {
		maxTries = DefaultMaxTries
	}

	var attempts []ParseAttempt
	for len(attempts) < maxTries {
		resp, err := t.Ask(ctx, input)
		if err != nil {
			return zero, err
		}

		output := resp.Text()
		value, err := parse(output)
		if err == nil {
			return value, nil
		}

		attempts = append(attempts, ParseAttempt{Output: output, Err: err})
		log.Warn().
			Err(err).
			Int("attempt", len(attempts)).
			Int("max_tries", maxTries).
			Msg("Error parsing model output")
	}
	return zero, &ParseFailedError{Attempts: attempts}
}
