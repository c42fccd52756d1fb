// Package llm provides the provider-agnostic types shared by go-fakellm clients.
//
// This package defines the client interface that real providers and the fake
// model both implement, along with the request, response, message and streaming
// types exchanged through it.
//
// The main components include:
//
// - Client interface: chat completion, synchronous and streamed
// - Message types: role-tagged messages with text content and optional reasoning
// - Conversation and History: ordered message lists and an immutable builder
// - Streaming: delta/done/error events delivered over a channel
// - Middleware: request/response/event hooks around any Client
// - Retry: exponential backoff around chat completions
// - Structured output: JSON schema response formats and validation
// - Configuration: provider-agnostic client configuration loaded from the environment
// - Error handling: the standardized Error type
//
// Provider implementations live under /pkg/providers/ and the scripted test double
// under /pkg/fake, so that this package stays free of provider dependencies.
package llm
