package fake

import (
	"context"
	"math"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/inercia/go-fakellm/pkg/llm"
)

// DefaultStreamWPS is the streaming pace of a new Model, in chunks per second
const DefaultStreamWPS = 50

// Model is a scripted LLM answering from an ordered rule table.
//
// Rules are evaluated in registration order and the first match wins.
// Predicates run while the table is locked and must not call back into the
// Model; Responders run after the lock is released.
type Model struct {
	mu        sync.Mutex
	rules     []Rule
	streamWPS float64
	chunking  Chunking
	logger    zerolog.Logger
}

// Option configures a Model at construction
type Option func(*Model)

// WithStreamWPS sets the streaming pace
func WithStreamWPS(rate float64) Option {
	return func(m *Model) { m.WithStreamWPS(rate) }
}

// WithChunking sets how streamed text is cut
func WithChunking(c Chunking) Option {
	return func(m *Model) { m.WithChunking(c) }
}

// WithLogger sets the logger used for rule selection traces
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Model) { m.WithLogger(logger) }
}

// WithRules appends pre-built rules
func WithRules(rules ...Rule) Option {
	return func(m *Model) {
		for _, rule := range rules {
			m.mustAdd(rule, nil)
		}
	}
}

// NewModel creates an empty model streaming at DefaultStreamWPS.
// It panics with a *ConfigurationError if an option is invalid.
func NewModel(opts ...Option) *Model {
	m := &Model{
		streamWPS: DefaultStreamWPS,
		chunking:  ChunkWords,
		logger:    log.Logger.With().Str("component", "fake").Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Model) mustAdd(rule Rule, err error) *Model {
	if err == nil {
		err = m.AddRule(rule)
	}
	if err != nil {
		panic(err)
	}
	return m
}

// AddRule appends a rule to the table
func (m *Model) AddRule(rule Rule) error {
	if err := rule.validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule)
	return nil
}

// ResponseAlways appends a rule matching every conversation
func (m *Model) ResponseAlways(resp Responder) *Model {
	return m.mustAdd(NewRule(Always(), resp))
}

// ResponseWhen appends a rule matching whenever pred returns true
func (m *Model) ResponseWhen(pred Predicate, resp Responder) *Model {
	return m.mustAdd(NewPredicateRule(pred, resp))
}

// ResponseWhenKeywordInLastMessage appends a rule matching when the last message contains keyword
func (m *Model) ResponseWhenKeywordInLastMessage(keyword string, resp Responder) *Model {
	return m.mustAdd(NewKeywordRule([]string{keyword}, resp))
}

// ResponseWhenAnyKeywordInLastMessage appends a rule matching when the last
// message contains any of the keywords
func (m *Model) ResponseWhenAnyKeywordInLastMessage(keywords []string, resp Responder) *Model {
	return m.mustAdd(NewKeywordRule(keywords, resp))
}

// ResponseSequence appends a rule answering with responses in order, one per
// call, and matching nothing once they are all consumed.
func (m *Model) ResponseSequence(responses ...Response) *Model {
	return m.mustAdd(NewSequenceRule(Always(), responses...))
}

// ResponseSequenceWhen is ResponseSequence restricted to conversations matched by matcher
func (m *Model) ResponseSequenceWhen(matcher Matcher, responses ...Response) *Model {
	if matcher == nil {
		panic(configErrorf("matcher must not be nil"))
	}
	return m.mustAdd(NewSequenceRule(matcher, responses...))
}

func validateRate(rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return configErrorf("stream rate must be a positive finite number, got %v", rate)
	}
	return nil
}

// SetStreamWPS sets the streaming pace. Streams already created keep their rate.
func (m *Model) SetStreamWPS(rate float64) error {
	if err := validateRate(rate); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamWPS = rate
	return nil
}

// WithStreamWPS is the fluent form of SetStreamWPS; it panics on invalid rates
func (m *Model) WithStreamWPS(rate float64) *Model {
	if err := m.SetStreamWPS(rate); err != nil {
		panic(err)
	}
	return m
}

// StreamWPS returns the current streaming pace
func (m *Model) StreamWPS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamWPS
}

// WithChunking sets how streamed text is cut; it panics on unknown modes
func (m *Model) WithChunking(c Chunking) *Model {
	if _, ok := chunkingNames[c]; !ok {
		panic(configErrorf("unknown chunking mode %d", int(c)))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunking = c
	return m
}

// Chunking returns the current chunking mode
func (m *Model) Chunking() Chunking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chunking
}

// WithLogger replaces the logger
func (m *Model) WithLogger(logger zerolog.Logger) *Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
	return m
}

// RulesCount returns the number of registered rules
func (m *Model) RulesCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rules)
}

// Rules returns a copy of the rule table. Sequences are shared with the model.
func (m *Model) Rules() []Rule {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Rule(nil), m.rules...)
}

// Sequence returns the sequence backing rule i, if that rule has one
func (m *Model) Sequence(i int) (*ResponseSequence, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.rules) || m.rules[i].sequence == nil {
		return nil, false
	}
	return m.rules[i].sequence, true
}

// ResetSequences rewinds every sequence in the table
func (m *Model) ResetSequences() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rule := range m.rules {
		if rule.sequence != nil {
			rule.sequence.Reset()
		}
	}
}

// ClearRules removes every rule at once. The stream rate is kept.
func (m *Model) ClearRules() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = nil
}

// Ask answers the conversation with the first matching rule
func (m *Model) Ask(ctx context.Context, conv llm.Conversation) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	resp, _, _, err := m.resolve(conv)
	return resp, err
}

// AskStream resolves the response like Ask and returns it as a paced Stream
func (m *Model) AskStream(ctx context.Context, conv llm.Conversation) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, wps, chunking, err := m.resolve(conv)
	if err != nil {
		return nil, err
	}
	return newStream(resp, wps, chunking)
}

// resolve selects the response and snapshots the streaming settings.
// A selected sequence is advanced before the lock is released.
func (m *Model) resolve(conv llm.Conversation) (Response, float64, Chunking, error) {
	if len(conv) == 0 {
		return Response{}, 0, 0, &ValidationError{Reason: "conversation is empty"}
	}

	m.mu.Lock()
	wps, chunking, logger := m.streamWPS, m.chunking, m.logger

	for i, rule := range m.rules {
		matched, err := rule.matches(i, conv)
		if err != nil {
			m.mu.Unlock()
			return Response{}, 0, 0, err
		}
		if !matched {
			continue
		}

		logger.Debug().
			Int("rule", i).
			Str("kind", rule.Kind()).
			Int("messages", len(conv)).
			Msg("Rule selected")

		if rule.sequence != nil {
			resp, err := rule.sequence.Response()
			rule.sequence.Advance()
			m.mu.Unlock()
			return resp, wps, chunking, err
		}

		m.mu.Unlock()
		resp, err := rule.responder.Respond(conv)
		return resp, wps, chunking, err
	}
	m.mu.Unlock()

	last, _ := conv.Last()
	return Response{}, 0, 0, &NoMatchError{LastMessage: last}
}
