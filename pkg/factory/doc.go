// Package factory creates llm.Client values from an llm.ClientConfig.
//
// The fake, openai, gemini and bedrock providers are registered when the package is
// imported; more can be added with RegisterProvider.
//
//	client, err := factory.New().CreateClient(llm.ClientConfig{
//	    Provider: "fake",
//	    Extra:    map[string]string{"script": "testdata/chat.yaml"},
//	})
//
// CreateClientFromEnv picks the provider from the environment and falls back
// to the fake one when no credentials are configured.
package factory
