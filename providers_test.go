package agentrelay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/config"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/model"
)

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		cfg      config.ProviderConfig
		provider string
		model    string
	}{
		{"OpenAI", config.ProviderConfig{Kind: config.KindOpenAI, Model: "gpt-4o", APIKey: "sk-test"}, "openai", "gpt-4o"},
		{"Azure", config.ProviderConfig{Kind: config.KindAzure, Endpoint: "https://example.openai.azure.com", Deployment: "chat", APIKey: "k"}, "azure", "chat"},
		{"Anthropic", config.ProviderConfig{Kind: config.KindAnthropic, Model: "claude-3-5-haiku-latest", APIKey: "k"}, "anthropic", "claude-3-5-haiku-latest"},
		{"Gemini", config.ProviderConfig{Kind: config.KindGemini, Model: "gemini-2.0-flash", APIKey: "k"}, "gemini", "gemini-2.0-flash"},
		{"Ollama", config.ProviderConfig{Kind: config.KindOllama, Model: "mistral"}, "ollama", "mistral"},
		{"MockNamed", config.ProviderConfig{Name: "canned", Kind: config.KindMock}, "canned", "mock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(ctx, tt.cfg)
			require.NoError(t, err)
			info := p.Info()
			assert.Equal(t, tt.provider, info.Provider)
			assert.Equal(t, tt.model, info.Name)
		})
	}
}

func TestNewProvider_Unsupported(t *testing.T) {
	_, err := NewProvider(context.Background(), config.ProviderConfig{Kind: "bard"})
	assert.ErrorContains(t, err, "unsupported provider kind")
}

func TestNewProvider_MockResponses(t *testing.T) {
	p, err := NewProvider(context.Background(), config.ProviderConfig{
		Kind:      config.KindMock,
		Responses: map[string]string{"ping": "pong"},
	})
	require.NoError(t, err)

	resp, err := p.Complete(context.Background(), model.Request{Messages: []core.Message{core.NewMessage(core.RoleUser, "ping")}})
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Text)
}

func TestBuildChain(t *testing.T) {
	entries, byName, err := buildChain(context.Background(), []config.ProviderConfig{
		{Name: "first", Kind: config.KindMock, Priority: 2, Timeout: config.Duration(5 * time.Second)},
		{Kind: config.KindOllama, Model: "llama3", Priority: 1},
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 2, entries[0].Priority)
	assert.Equal(t, config.Duration(5 * time.Second).Std(), entries[0].Timeout)
	assert.Contains(t, byName, "first")
	assert.Contains(t, byName, "ollama/llama3")
}
