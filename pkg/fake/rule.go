package fake

import (
	"github.com/pkg/errors"

	"github.com/inercia/go-fakellm/pkg/llm"
)

// Rule binds a Matcher to a response source: a Responder, or a
// ResponseSequence that must still have responses for the rule to match.
type Rule struct {
	matcher   Matcher
	responder Responder
	sequence  *ResponseSequence
}

// NewRule creates a rule answering with resp whenever m matches
func NewRule(m Matcher, resp Responder) (Rule, error) {
	rule := Rule{matcher: m, responder: resp}
	if err := rule.validate(); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

// NewPredicateRule creates a rule answering with resp whenever pred returns true
func NewPredicateRule(pred Predicate, resp Responder) (Rule, error) {
	return NewRule(When(pred), resp)
}

// NewKeywordRule creates a rule answering with resp when the last message
// contains any of the keywords
func NewKeywordRule(keywords []string, resp Responder) (Rule, error) {
	return NewRule(KeywordInLastMessage(keywords...), resp)
}

// NewSequenceRule creates a rule playing responses in order while m matches.
// A nil matcher behaves as Always.
func NewSequenceRule(m Matcher, responses ...Response) (Rule, error) {
	if m == nil {
		m = Always()
	}
	seq, err := NewResponseSequence(responses...)
	if err != nil {
		return Rule{}, err
	}
	rule := Rule{matcher: m, sequence: seq}
	if err := rule.validate(); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

func (r Rule) validate() error {
	if err := validateMatcher(r.matcher); err != nil {
		return err
	}
	switch {
	case r.responder == nil && r.sequence == nil:
		return configErrorf("rule %s has no response", r.matcher)
	case r.responder != nil && r.sequence != nil:
		return configErrorf("rule %s has both a response and a sequence", r.matcher)
	}
	if fn, ok := r.responder.(ResponseFunc); ok && fn == nil {
		return configErrorf("rule %s has a nil response function", r.matcher)
	}
	return nil
}

// Matcher returns the match condition of the rule
func (r Rule) Matcher() Matcher {
	return r.matcher
}

// Sequence returns the sequence backing the rule, or nil
func (r Rule) Sequence() *ResponseSequence {
	return r.sequence
}

// Kind describes the rule for logs and diagnostics
func (r Rule) Kind() string {
	if r.sequence != nil {
		return "sequence/" + r.matcher.String()
	}
	return r.matcher.String()
}

// matches evaluates the rule, turning predicate failures and panics into a *PredicateError
func (r Rule) matches(index int, conv llm.Conversation) (matched bool, err error) {
	if r.sequence != nil && !r.sequence.RuleCheck() {
		return false, nil
	}

	defer func() {
		if p := recover(); p != nil {
			matched = false
			err = &PredicateError{Rule: index, Err: errors.Errorf("panic: %v", p)}
		}
	}()

	matched, err = r.matcher.Match(conv)
	if err != nil {
		return false, &PredicateError{Rule: index, Err: err}
	}
	return matched, nil
}
