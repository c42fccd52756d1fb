package factory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inercia/go-fakellm/pkg/fake"
	"github.com/inercia/go-fakellm/pkg/llm"
)

func TestFactory_Validation(t *testing.T) {
	t.Parallel()

	f := New()

	_, err := f.CreateClient(llm.ClientConfig{Provider: "openai"})
	llmErr, ok := llm.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "missing_model", llmErr.Code)
	assert.Equal(t, llm.ErrorTypeValidation, llmErr.Type)

	_, err = f.CreateClient(llm.ClientConfig{Provider: "unsupported", Model: "x"})
	llmErr, ok = llm.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "unsupported_provider", llmErr.Code)
}

func TestFactory_Providers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"bedrock", "fake", "gemini", "openai"}, ListProviders())

	f := New()
	client, err := f.CreateClient(llm.ClientConfig{Provider: "OpenAI", Model: "gpt-4o", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "openai", client.GetModelInfo().Provider)

	client, err = f.CreateClient(llm.ClientConfig{Provider: "gemini", Model: "gemini-2.5-flash", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "gemini", client.GetModelInfo().Provider)
}

func TestFactory_Bedrock(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIDTEST")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "config"))

	client, err := New().CreateClient(llm.ClientConfig{
		Provider: "bedrock",
		Model:    "anthropic.claude-3-haiku-20240307-v1:0",
		Extra:    map[string]string{"region": "us-west-2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "bedrock", client.GetModelInfo().Provider)
}

func TestFactory_FakeWithScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	script := "rules:\n  - keywords: ping\n    response: pong\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o600))

	client, err := New().CreateClient(llm.ClientConfig{Extra: map[string]string{fake.ExtraScript: path}})
	require.NoError(t, err)
	assert.Equal(t, fake.ProviderName, client.GetModelInfo().Provider)

	resp, err := client.ChatCompletion(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "ping?")},
	})
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Text())
}

func TestFactory_CreateClientFromEnv(t *testing.T) {
	for _, name := range []string{"OPENAI_BASE_URL", "OPENAI_API_KEY", "GEMINI_API_KEY", "BEDROCK_MODEL"} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}

	client, err := New().CreateClientFromEnv(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, fake.ProviderName, client.GetModelInfo().Provider)

	t.Setenv("OPENAI_API_KEY", "sk-test")
	client, err = New().CreateClientFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "openai", client.GetModelInfo().Provider)
	assert.Equal(t, llm.DefaultOpenAIModel, client.GetModelInfo().Name)
}

func TestRegisterProvider(t *testing.T) {
	t.Parallel()

	constructor, ok := GetProvider("fake")
	require.True(t, ok)

	client, err := constructor(llm.ClientConfig{Model: "custom"})
	require.NoError(t, err)
	assert.Equal(t, "custom", client.GetModelInfo().Name)

	_, ok = GetProvider("nonexistent")
	assert.False(t, ok)
}
