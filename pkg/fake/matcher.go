package fake

import (
	"fmt"
	"strings"

	"github.com/inercia/go-fakellm/pkg/llm"
)

// Matcher decides whether a rule applies to a conversation
type Matcher interface {
	Match(conv llm.Conversation) (bool, error)
	String() string
}

// Predicate is a caller-supplied match condition. Returning an error aborts
// the call with a *PredicateError.
type Predicate func(conv llm.Conversation) (bool, error)

// Check adapts a plain boolean function into a Predicate
func Check(fn func(conv llm.Conversation) bool) Predicate {
	if fn == nil {
		return nil
	}
	return func(conv llm.Conversation) (bool, error) {
		return fn(conv), nil
	}
}

// LastMessageFromRole matches conversations whose last message has the given role
func LastMessageFromRole(role llm.MessageRole) Predicate {
	return func(conv llm.Conversation) (bool, error) {
		last, ok := conv.Last()
		return ok && last.Role == role, nil
	}
}

type alwaysMatcher struct{}

// Always matches every conversation
func Always() Matcher {
	return alwaysMatcher{}
}

func (alwaysMatcher) Match(llm.Conversation) (bool, error) {
	return true, nil
}

func (alwaysMatcher) String() string {
	return "always"
}

type predicateMatcher struct {
	pred Predicate
}

// When matches whenever pred returns true
func When(pred Predicate) Matcher {
	return predicateMatcher{pred: pred}
}

func (m predicateMatcher) Match(conv llm.Conversation) (bool, error) {
	return m.pred(conv)
}

func (m predicateMatcher) String() string {
	return "predicate"
}

func (m predicateMatcher) validate() error {
	if m.pred == nil {
		return configErrorf("predicate must not be nil")
	}
	return nil
}

type keywordMatcher struct {
	keywords []string
}

// KeywordInLastMessage matches when the text of the last message contains any
// of the keywords. The test is a case-sensitive substring search.
func KeywordInLastMessage(keywords ...string) Matcher {
	return keywordMatcher{keywords: append([]string(nil), keywords...)}
}

func (m keywordMatcher) Match(conv llm.Conversation) (bool, error) {
	text := conv.LastText()
	for _, keyword := range m.keywords {
		if strings.Contains(text, keyword) {
			return true, nil
		}
	}
	return false, nil
}

func (m keywordMatcher) String() string {
	return fmt.Sprintf("keyword%q", m.keywords)
}

func (m keywordMatcher) validate() error {
	if len(m.keywords) == 0 {
		return configErrorf("at least one keyword is required")
	}
	for i, keyword := range m.keywords {
		if keyword == "" {
			return configErrorf("keyword %d is empty", i)
		}
	}
	return nil
}

type validator interface {
	validate() error
}

func validateMatcher(m Matcher) error {
	if m == nil {
		return configErrorf("matcher must not be nil")
	}
	if v, ok := m.(validator); ok {
		return v.validate()
	}
	return nil
}
