package fake

import (
	"strconv"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"

	"github.com/inercia/go-fakellm/pkg/llm"
)

// EnvPrefix prefixes the environment variables read by LoadConfig
const EnvPrefix = "FAKELLM"

// Keys of llm.ClientConfig.Extra read by NewClientFromConfig
const (
	ExtraStreamWPS = "stream_wps"
	ExtraChunking  = "chunking"
	ExtraScript    = "script"
)

// Config holds the settings of a fake model, usually read from the environment
type Config struct {
	StreamWPS float64  `envconfig:"STREAM_WPS" default:"50"`
	Chunking  Chunking `envconfig:"CHUNKING" default:"words"`
	// Script is an optional path to a YAML script loaded into new models
	Script string `envconfig:"SCRIPT"`
}

// DefaultConfig returns the settings of NewModel
func DefaultConfig() Config {
	return Config{StreamWPS: DefaultStreamWPS, Chunking: ChunkWords}
}

// LoadConfig reads FAKELLM_STREAM_WPS, FAKELLM_CHUNKING and FAKELLM_SCRIPT,
// after loading any of the given .env files that exist.
func LoadConfig(dotenvPaths ...string) (Config, error) {
	if err := llm.LoadDotEnv(dotenvPaths...); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "processing fake model environment")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings
func (c Config) Validate() error {
	if err := validateRate(c.StreamWPS); err != nil {
		return err
	}
	if _, ok := chunkingNames[c.Chunking]; !ok {
		return configErrorf("unknown chunking mode %d", int(c.Chunking))
	}
	return nil
}

// NewModel builds a model from the settings, loading the script if one is set.
// Settings are applied in order: the config, then the script, then opts, so a
// caller option such as WithStreamWPS wins over both. Rules added by opts come
// after the scripted ones.
func (c Config) NewModel(opts ...Option) (*Model, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	m := NewModel(WithStreamWPS(c.StreamWPS), WithChunking(c.Chunking))

	if c.Script != "" {
		script, err := LoadScript(c.Script)
		if err != nil {
			return nil, err
		}
		if err := script.Apply(m); err != nil {
			return nil, errors.Wrapf(err, "applying script %s", c.Script)
		}
	}

	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// NewClientFromConfig creates a client from provider settings. The FAKELLM_*
// environment is read first and the Extra entries of config override it.
func NewClientFromConfig(config llm.ClientConfig) (*Client, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	if v, ok := config.Extra[ExtraStreamWPS]; ok {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, configErrorf("invalid %s %q", ExtraStreamWPS, v)
		}
		cfg.StreamWPS = rate
	}
	if v, ok := config.Extra[ExtraChunking]; ok {
		if cfg.Chunking, err = ParseChunking(v); err != nil {
			return nil, err
		}
	}
	if v, ok := config.Extra[ExtraScript]; ok {
		cfg.Script = v
	}

	m, err := cfg.NewModel()
	if err != nil {
		return nil, err
	}
	return NewClient(m, config.Model), nil
}
