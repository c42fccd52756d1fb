package factory

import (
	"fmt"
	"strings"

	"github.com/inercia/go-fakellm/pkg/llm"
)

// DefaultProvider is used when a config names no provider
const DefaultProvider = "fake"

// Factory creates LLM clients based on configuration
type Factory struct{}

// New creates a new client factory
func New() *Factory {
	return &Factory{}
}

// CreateClient creates an LLM client based on the configuration
func (f *Factory) CreateClient(config llm.ClientConfig) (llm.Client, error) {
	provider := strings.ToLower(config.Provider)
	if provider == "" {
		provider = DefaultProvider
	}

	if config.Model == "" && provider != DefaultProvider {
		return nil, &llm.Error{
			Code:    "missing_model",
			Message: "model is required",
			Type:    llm.ErrorTypeValidation,
		}
	}

	constructor, exists := GetProvider(provider)
	if !exists {
		return nil, &llm.Error{
			Code:    "unsupported_provider",
			Message: fmt.Sprintf("unsupported provider: %s", provider),
			Type:    llm.ErrorTypeValidation,
		}
	}

	return constructor(config)
}

// CreateClientFromEnv creates a client for the provider selected by
// llm.GetLLMFromEnv, after loading any of the given .env files that exist
func (f *Factory) CreateClientFromEnv(dotenvPaths ...string) (llm.Client, error) {
	if err := llm.LoadDotEnv(dotenvPaths...); err != nil {
		return nil, err
	}
	config, err := llm.GetLLMFromEnv()
	if err != nil {
		return nil, err
	}
	return f.CreateClient(config)
}
