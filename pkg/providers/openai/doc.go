// Package openai implements llm.Client for OpenAI and OpenAI-compatible
// endpoints, using github.com/sashabaranov/go-openai.
//
// Text messages, streaming, reasoning content (for endpoints that report it)
// and JSON response formats are supported. Set ClientConfig.BaseURL to talk to
// a compatible server such as a local inference runtime.
package openai
