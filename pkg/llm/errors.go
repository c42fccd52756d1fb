// Error types and handling
package llm

import "errors"

// Error types shared by all clients
const (
	ErrorTypeValidation     = "validation_error"
	ErrorTypeAuthentication = "authentication_error"
	ErrorTypeRateLimit      = "rate_limit_error"
	ErrorTypeAPI            = "api_error"
	ErrorTypeSimulation     = "simulation_error"
)

// ErrorCodeIncompleteStream is reported when a stream closes without a done event
const ErrorCodeIncompleteStream = "incomplete_stream"

// Error represents a standardized LLM error
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	StatusCode int    `json:"status_code,omitempty"`

	// Err is the error this one was converted from, if any
	Err error `json:"-"`
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the error this one was converted from
func (e *Error) Unwrap() error {
	return e.Err
}

// AsError reports whether err is (or wraps) an *Error and returns it
func AsError(err error) (*Error, bool) {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr, true
	}
	return nil, false
}
