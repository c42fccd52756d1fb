package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Middleware defines the interface for LLM middleware components
type Middleware interface {
	// Name returns the middleware name for identification
	Name() string

	// ProcessRequest processes the request before sending to LLM
	ProcessRequest(ctx context.Context, req *ChatRequest) (*ChatRequest, error)

	// ProcessResponse processes the response after receiving from LLM.
	// For streaming calls it receives the response rebuilt from the stream.
	ProcessResponse(ctx context.Context, req *ChatRequest, resp *ChatResponse, err error) (*ChatResponse, error)

	// ProcessStreamEvent processes streaming events
	ProcessStreamEvent(ctx context.Context, req *ChatRequest, event StreamEvent) (StreamEvent, error)
}

// MiddlewareChain manages a chain of LLM middleware
type MiddlewareChain struct {
	mu          sync.RWMutex
	middlewares []Middleware
}

// NewMiddlewareChain creates a new middleware chain
func NewMiddlewareChain(middlewares []Middleware) *MiddlewareChain {
	chain := &MiddlewareChain{}
	for _, middleware := range middlewares {
		chain.AddMiddleware(middleware)
	}
	return chain
}

// AddMiddleware adds a middleware to the chain
func (c *MiddlewareChain) AddMiddleware(middleware Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middlewares = append(c.middlewares, middleware)
}

// RemoveMiddleware removes a middleware by name
func (c *MiddlewareChain) RemoveMiddleware(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, middleware := range c.middlewares {
		if middleware.Name() == name {
			c.middlewares = append(c.middlewares[:i], c.middlewares[i+1:]...)
			return true
		}
	}
	return false
}

func (c *MiddlewareChain) snapshot() []Middleware {
	c.mu.RLock()
	defer c.mu.RUnlock()
	middlewares := make([]Middleware, len(c.middlewares))
	copy(middlewares, c.middlewares)
	return middlewares
}

// ProcessRequest processes request through the middleware chain.
// The first failing middleware aborts the request.
func (c *MiddlewareChain) ProcessRequest(ctx context.Context, req *ChatRequest) (*ChatRequest, error) {
	currentReq := req
	var err error

	for _, middleware := range c.snapshot() {
		currentReq, err = middleware.ProcessRequest(ctx, currentReq)
		if err != nil {
			return nil, fmt.Errorf("middleware %s failed: %w", middleware.Name(), err)
		}
	}

	return currentReq, nil
}

// ProcessResponse processes response through the middleware chain (in reverse order).
// A failing middleware is skipped; the original call error is always returned unchanged.
func (c *MiddlewareChain) ProcessResponse(ctx context.Context, req *ChatRequest, resp *ChatResponse, err error) (*ChatResponse, error) {
	middlewares := c.snapshot()
	currentResp := resp

	for i := len(middlewares) - 1; i >= 0; i-- {
		middleware := middlewares[i]
		processedResp, processErr := middleware.ProcessResponse(ctx, req, currentResp, err)
		if processErr != nil {
			log.Debug().Err(processErr).Str("middleware", middleware.Name()).Msg("Response middleware failed, skipping")
			continue
		}
		currentResp = processedResp
	}

	return currentResp, err
}

// ProcessStreamEvent processes stream events through the middleware chain
func (c *MiddlewareChain) ProcessStreamEvent(ctx context.Context, req *ChatRequest, event StreamEvent) (StreamEvent, error) {
	currentEvent := event

	for _, middleware := range c.snapshot() {
		processed, err := middleware.ProcessStreamEvent(ctx, req, currentEvent)
		if err != nil {
			log.Debug().Err(err).Str("middleware", middleware.Name()).Msg("Stream middleware failed, skipping")
			continue
		}
		currentEvent = processed
	}

	return currentEvent, nil
}

// GetMiddlewareNames returns the names of all middleware in the chain
func (c *MiddlewareChain) GetMiddlewareNames() []string {
	middlewares := c.snapshot()
	names := make([]string, len(middlewares))
	for i, middleware := range middlewares {
		names[i] = middleware.Name()
	}
	return names
}
