package factory

import (
	"github.com/inercia/go-fakellm/pkg/fake"
	"github.com/inercia/go-fakellm/pkg/llm"
	"github.com/inercia/go-fakellm/pkg/providers/bedrock"
	"github.com/inercia/go-fakellm/pkg/providers/gemini"
	"github.com/inercia/go-fakellm/pkg/providers/openai"
)

func init() {
	RegisterProvider("fake", func(config llm.ClientConfig) (llm.Client, error) {
		return fake.NewClientFromConfig(config)
	})

	RegisterProvider("openai", func(config llm.ClientConfig) (llm.Client, error) {
		return openai.NewClient(config)
	})

	RegisterProvider("gemini", func(config llm.ClientConfig) (llm.Client, error) {
		return gemini.NewClient(config)
	})

	RegisterProvider("bedrock", func(config llm.ClientConfig) (llm.Client, error) {
		return bedrock.NewClient(config)
	})
}
