// Package record captures live LLM exchanges and turns them into fake
// scripts.
//
// A Recorder is an llm.Middleware: wrap a real client with it, run the code
// under test once against the real provider, then write the captured
// exchanges as a script that the fake provider replays offline.
//
//	rec := record.New()
//	client := llm.ClientWithMiddleware(realClient, []llm.Middleware{rec})
//	// ... use client ...
//	_ = rec.WriteScript(os.Stdout)
package record

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/inercia/go-fakellm/pkg/fake"
	"github.com/inercia/go-fakellm/pkg/llm"
)

// Exchange is one prompt and the response it got
type Exchange struct {
	Prompt   string
	Response fake.Response
}

// Recorder captures successful completions passing through a client
type Recorder struct {
	mu        sync.Mutex
	exchanges []Exchange
}

// New creates an empty Recorder
func New() *Recorder {
	return &Recorder{}
}

// Name implements llm.Middleware
func (r *Recorder) Name() string {
	return "recorder"
}

// ProcessRequest implements llm.Middleware. The request is not changed.
func (r *Recorder) ProcessRequest(_ context.Context, req *llm.ChatRequest) (*llm.ChatRequest, error) {
	return req, nil
}

// ProcessStreamEvent implements llm.Middleware. Events are not changed.
func (r *Recorder) ProcessStreamEvent(_ context.Context, _ *llm.ChatRequest, event llm.StreamEvent) (llm.StreamEvent, error) {
	return event, nil
}

// ProcessResponse records the text of the last user message together with
// the response. Failed calls and requests without a user message are skipped.
func (r *Recorder) ProcessResponse(_ context.Context, req *llm.ChatRequest, resp *llm.ChatResponse, err error) (*llm.ChatResponse, error) {
	if err != nil || resp == nil || req == nil {
		return resp, err
	}

	user, ok := req.Conversation().LastByRole(llm.RoleUser)
	if !ok || user.GetText() == "" {
		log.Debug().Msg("Not recording exchange without a user prompt")
		return resp, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.exchanges = append(r.exchanges, Exchange{
		Prompt: user.GetText(),
		Response: fake.Response{
			Reasoning: resp.ReasoningContent(),
			Content:   resp.Text(),
		},
	})
	return resp, nil
}

// Exchanges returns a copy of the recorded exchanges, oldest first
func (r *Recorder) Exchanges() []Exchange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Exchange(nil), r.exchanges...)
}

// Reset forgets every recorded exchange
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exchanges = nil
}

// Script builds a script replaying the recorded exchanges. Exchanges are
// grouped by prompt in first-seen order: a prompt answered once becomes a
// keyword rule, a prompt answered several times becomes a keyword rule with
// a sequence of its responses, in order.
//
// Prompts are matched as substrings, so a prompt contained in another one
// recorded later may shadow it.
func (r *Recorder) Script() *fake.Script {
	exchanges := r.Exchanges()

	var order []string
	byPrompt := make(map[string][]fake.ScriptResponse)
	for _, ex := range exchanges {
		if _, seen := byPrompt[ex.Prompt]; !seen {
			order = append(order, ex.Prompt)
		}
		byPrompt[ex.Prompt] = append(byPrompt[ex.Prompt], fake.ScriptResponse(ex.Response))
	}

	script := &fake.Script{Rules: make([]fake.ScriptRule, 0, len(order))}
	for _, prompt := range order {
		responses := byPrompt[prompt]
		rule := fake.ScriptRule{Keywords: fake.StringList{prompt}}
		if len(responses) == 1 {
			rule.Response = &responses[0]
		} else {
			rule.Sequence = responses
		}
		script.Rules = append(script.Rules, rule)
	}
	return script
}

// WriteScript writes Script as YAML
func (r *Recorder) WriteScript(w io.Writer) error {
	return r.Script().Write(w)
}

var _ llm.Middleware = (*Recorder)(nil)
