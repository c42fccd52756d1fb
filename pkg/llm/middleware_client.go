package llm

import (
	"context"
	"fmt"
)

// EnhancedClient wraps an LLM client with middleware chain
type EnhancedClient struct {
	client Client
	chain  *MiddlewareChain
}

// NewEnhancedClient creates a new enhanced LLM client with middleware
func NewEnhancedClient(client Client, chain []Middleware) *EnhancedClient {
	return &EnhancedClient{
		client: client,
		chain:  NewMiddlewareChain(chain),
	}
}

// ChatCompletion implements Client interface with middleware processing
func (e *EnhancedClient) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	processedReq, err := e.chain.ProcessRequest(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("middleware request processing failed: %w", err)
	}

	resp, err := e.client.ChatCompletion(ctx, *processedReq)

	return e.chain.ProcessResponse(ctx, processedReq, resp, err)
}

// StreamChatCompletion implements Client interface with middleware processing for streaming.
// Once the inner stream closes, the response rebuilt from its events is passed
// through the response middleware.
func (e *EnhancedClient) StreamChatCompletion(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error) {
	processedReq, err := e.chain.ProcessRequest(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("middleware request processing failed: %w", err)
	}

	eventChan, err := e.client.StreamChatCompletion(ctx, *processedReq)
	if err != nil {
		_, _ = e.chain.ProcessResponse(ctx, processedReq, nil, err)
		return nil, err
	}

	processedChan := make(chan StreamEvent)

	go func() {
		defer close(processedChan)

		var acc StreamAccumulator
		for event := range eventChan {
			processedEvent, _ := e.chain.ProcessStreamEvent(ctx, processedReq, event)
			acc.Add(processedEvent)

			select {
			case processedChan <- processedEvent:
			case <-ctx.Done():
				return
			}
		}

		if streamErr := incompleteStreamError(ctx, &acc); streamErr != nil {
			_, _ = e.chain.ProcessResponse(ctx, processedReq, nil, streamErr)
			return
		}

		resp := &ChatResponse{
			Model: processedReq.Model,
			Choices: []Choice{{
				Message:      acc.Message(),
				FinishReason: acc.FinishReason(),
			}},
		}
		_, _ = e.chain.ProcessResponse(ctx, processedReq, resp, nil)
	}()

	return processedChan, nil
}

// incompleteStreamError returns the error that ended a stream early. A stream
// closed without a done event did not finish, even when no error event was sent.
func incompleteStreamError(ctx context.Context, acc *StreamAccumulator) error {
	if err := acc.Err(); err != nil {
		return err
	}
	if acc.FinishReason() != "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return &Error{
		Code:    ErrorCodeIncompleteStream,
		Message: "stream closed before completion",
		Type:    ErrorTypeAPI,
	}
}

// GetRemote implements Client interface
func (e *EnhancedClient) GetRemote() ClientRemoteInfo {
	return e.client.GetRemote()
}

// GetModelInfo implements Client interface
func (e *EnhancedClient) GetModelInfo() ModelInfo {
	return e.client.GetModelInfo()
}

// Close implements Client interface
func (e *EnhancedClient) Close() error {
	return e.client.Close()
}

// AddMiddleware adds a middleware to the client's chain
func (e *EnhancedClient) AddMiddleware(middleware Middleware) {
	e.chain.AddMiddleware(middleware)
}

// RemoveMiddleware removes a middleware from the client's chain
func (e *EnhancedClient) RemoveMiddleware(name string) bool {
	return e.chain.RemoveMiddleware(name)
}

// GetMiddlewareNames returns the names of all middleware in the client's chain
func (e *EnhancedClient) GetMiddlewareNames() []string {
	return e.chain.GetMiddlewareNames()
}

// ClientWithMiddleware wraps an existing LLM client with the middleware system.
// An EnhancedClient gets the middleware appended to its existing chain.
func ClientWithMiddleware(client Client, chain []Middleware) Client {
	if enhancedClient, ok := client.(*EnhancedClient); ok {
		for _, middleware := range chain {
			enhancedClient.AddMiddleware(middleware)
		}
		return enhancedClient
	}

	return NewEnhancedClient(client, chain)
}
