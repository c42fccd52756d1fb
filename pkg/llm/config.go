// Configuration types and response format specifications
package llm

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultGeminiModel = "gemini-1.5-flash"
	DefaultFakeModel   = "fake"

	DefaultBedrockRegion = "us-east-1"
)

// DefaultTimeout is used when a client config does not set one
const DefaultTimeout = 30 * time.Second

// ClientConfig holds configuration for creating LLM clients
type ClientConfig struct {
	Provider   string            `json:"provider"` // fake, openai, gemini, bedrock
	Model      string            `json:"model"`
	APIKey     string            `json:"api_key,omitempty"`
	BaseURL    string            `json:"base_url,omitempty"`
	Timeout    time.Duration     `json:"timeout,omitempty"`
	MaxRetries int               `json:"max_retries,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"` // Provider-specific configs
}

// ResponseFormat specifies the desired response format for structured outputs
type ResponseFormat struct {
	Type       ResponseFormatType `json:"type"`
	JSONSchema *JSONSchema        `json:"json_schema,omitempty"`
}

// ResponseFormatType defines the type of response format
type ResponseFormatType string

const (
	// ResponseFormatText indicates plain text response (default)
	ResponseFormatText ResponseFormatType = "text"
	// ResponseFormatJSON indicates JSON object response without strict schema
	ResponseFormatJSON ResponseFormatType = "json_object"
	// ResponseFormatJSONSchema indicates JSON response with strict schema validation
	ResponseFormatJSONSchema ResponseFormatType = "json_schema"
)

// JSONSchema represents a JSON Schema specification for structured outputs
type JSONSchema struct {
	Name        string `json:"name,omitempty"`        // Schema name (required by some providers)
	Description string `json:"description,omitempty"` // Human-readable description
	Schema      any    `json:"schema"`                // The actual JSON Schema object
	Strict      *bool  `json:"strict,omitempty"`      // Enable strict validation (OpenAI-specific)
}

// providerEnv lists the environment variables consulted by GetLLMFromEnv.
// Timeouts are expressed in seconds.
type providerEnv struct {
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel   string `envconfig:"OPENAI_MODEL"`
	OpenAITimeout int    `envconfig:"OPENAI_TIMEOUT" default:"30"`

	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`
	GeminiModel   string `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash"`
	GeminiTimeout int    `envconfig:"GEMINI_TIMEOUT" default:"30"`

	BedrockModel   string `envconfig:"BEDROCK_MODEL"`
	BedrockTimeout int    `envconfig:"BEDROCK_TIMEOUT" default:"30"`
	AWSRegion      string `envconfig:"AWS_REGION"`

	Model string `envconfig:"MODEL"`
}

func secondsOrDefault(secs int, def time.Duration) time.Duration {
	if secs <= 0 {
		return def
	}
	return time.Duration(secs) * time.Second
}

// LoadDotEnv loads the given .env files into the process environment.
// Missing files are skipped; variables already set are not overridden.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return errors.Wrapf(err, "loading %s", path)
		}
	}
	return nil
}

// GetLLMFromEnv picks a provider from the environment.
//
// A custom OpenAI-compatible endpoint (OPENAI_BASE_URL) wins, then OpenAI
// (OPENAI_API_KEY), then Gemini (GEMINI_API_KEY), then Bedrock (BEDROCK_MODEL,
// with credentials from the usual AWS chain). When none is configured the
// offline fake provider is returned, so examples and tests never need network access.
func GetLLMFromEnv() (ClientConfig, error) {
	var env providerEnv
	if err := envconfig.Process("", &env); err != nil {
		return ClientConfig{}, errors.Wrap(err, "processing provider environment")
	}

	switch {
	case env.OpenAIBaseURL != "":
		log.Debug().Str("base_url", env.OpenAIBaseURL).Msg("Using custom OpenAI-compatible API")
		apiKey := env.OpenAIAPIKey
		if apiKey == "" {
			apiKey = "dummy" // Some endpoints don't require real keys
		}

		model := DefaultOpenAIModel
		if env.OpenAIModel != "" {
			model = env.OpenAIModel
		} else if env.Model != "" {
			model = env.Model
		}

		return ClientConfig{
			Provider: "openai",
			Model:    model,
			APIKey:   apiKey,
			BaseURL:  env.OpenAIBaseURL,
			Timeout:  secondsOrDefault(env.OpenAITimeout, DefaultTimeout),
		}, nil

	case env.OpenAIAPIKey != "":
		log.Debug().Msg("Using OpenAI API")
		model := DefaultOpenAIModel
		if env.OpenAIModel != "" {
			model = env.OpenAIModel
		}
		return ClientConfig{
			Provider: "openai",
			Model:    model,
			APIKey:   env.OpenAIAPIKey,
			Timeout:  secondsOrDefault(env.OpenAITimeout, DefaultTimeout),
		}, nil

	case env.GeminiAPIKey != "":
		log.Debug().Msg("Using Gemini API")
		return ClientConfig{
			Provider: "gemini",
			Model:    env.GeminiModel,
			APIKey:   env.GeminiAPIKey,
			Timeout:  secondsOrDefault(env.GeminiTimeout, DefaultTimeout),
		}, nil
	}

	if env.BedrockModel != "" {
		region := env.AWSRegion
		if region == "" {
			region = DefaultBedrockRegion
		}
		log.Debug().Str("region", region).Msg("Using AWS Bedrock")
		return ClientConfig{
			Provider: "bedrock",
			Model:    env.BedrockModel,
			Timeout:  secondsOrDefault(env.BedrockTimeout, DefaultTimeout),
			Extra:    map[string]string{"region": region},
		}, nil
	}

	log.Debug().Msg("No provider credentials found, using the fake provider")
	return ClientConfig{
		Provider: "fake",
		Model:    DefaultFakeModel,
	}, nil
}
