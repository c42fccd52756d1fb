package fake

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/inercia/go-fakellm/pkg/llm"
)

// Sentinel errors, matched with errors.Is against the typed errors below
var (
	ErrConfiguration = errors.New("invalid fake model configuration")
	ErrPredicate     = errors.New("rule predicate failed")
	ErrExhausted     = errors.New("response sequence exhausted")
	ErrNoMatch       = errors.New("no response rule matched")
	ErrValidation    = errors.New("invalid conversation")
)

// ConfigurationError reports an invalid rule registration or setting
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return ErrConfiguration.Error() + ": " + e.Reason
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func configErrorf(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// PredicateError wraps a failure (returned error or panic) raised by the predicate of a rule
type PredicateError struct {
	// Rule is the index of the rule in the table
	Rule int
	Err  error
}

func (e *PredicateError) Error() string {
	return fmt.Sprintf("%s: rule %d: %v", ErrPredicate, e.Rule, e.Err)
}

func (e *PredicateError) Unwrap() error {
	return e.Err
}

func (e *PredicateError) Is(target error) bool {
	return target == ErrPredicate
}

// ExhaustedError is returned when a response is requested from an exhausted sequence
type ExhaustedError struct {
	Total int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: all %d responses consumed", ErrExhausted, e.Total)
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

// NoMatchError is returned when no rule matches a conversation
type NoMatchError struct {
	LastMessage llm.Message
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("%s: last message (%s) %q", ErrNoMatch, e.LastMessage.Role, e.LastMessage.GetText())
}

func (e *NoMatchError) Is(target error) bool {
	return target == ErrNoMatch
}

// ValidationError reports a conversation the model cannot answer
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error() + ": " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
