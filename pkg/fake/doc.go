// Package fake provides a deterministic, scripted stand-in for an LLM.
//
// A Model holds an ordered table of rules. Each rule pairs a Matcher with a
// response source: either a Responder producing one payload per call, or a
// ResponseSequence that plays a fixed list of payloads once, in order.
// Ask scans the table in registration order and answers with the first rule
// that matches; AskStream resolves the same way and then replays the answer as
// a word-paced Stream.
//
// Example:
//
//	m := fake.NewModel().
//	    ResponseWhenKeywordInLastMessage("weather", fake.Text("It is sunny.")).
//	    ResponseSequence(fake.Text("first"), fake.Text("second")).
//	    ResponseAlways(fake.Text("default")).
//	    WithStreamWPS(20)
//
//	resp, err := m.Ask(ctx, llm.NewHistory().WithUserMessage("hi").Messages())
//
// Client adapts a Model to the llm.Client interface, so code written against
// real providers can be exercised offline. Rules can also be loaded from YAML
// scripts (see Script) and recorded from real sessions (see package record).
package fake
