package agentrelay

import (
	"context"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/agentrelay/config"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/model/anthropic"
	"github.com/hupe1980/agentrelay/model/gemini"
	"github.com/hupe1980/agentrelay/model/ollama"
	"github.com/hupe1980/agentrelay/model/openai"
	"github.com/hupe1980/agentrelay/router"
)

const defaultAzureAPIVersion = "2024-06-01"

// NewProvider builds the model adapter described by p.
func NewProvider(ctx context.Context, p config.ProviderConfig) (model.Provider, error) {
	key := p.ResolveAPIKey()

	switch p.Kind {
	case config.KindOpenAI:
		reqOpts := []option.RequestOption{}
		if key != "" {
			reqOpts = append(reqOpts, option.WithAPIKey(key))
		}
		if p.BaseURL != "" {
			reqOpts = append(reqOpts, option.WithBaseURL(p.BaseURL))
		}
		return openai.NewModel(reqOpts, func(o *openai.Options) {
			if p.Model != "" {
				o.Model = p.Model
			}
			if p.Temperature != nil {
				o.Temperature = *p.Temperature
			}
			if p.MaxTokens > 0 {
				o.MaxCompletionTokens = p.MaxTokens
			}
		}), nil

	case config.KindAzure:
		version := p.APIVersion
		if version == "" {
			version = defaultAzureAPIVersion
		}
		return openai.NewAzureModel(p.Endpoint, version, key, p.Deployment, func(o *openai.Options) {
			if p.Temperature != nil {
				o.Temperature = *p.Temperature
			}
			if p.MaxTokens > 0 {
				o.MaxCompletionTokens = p.MaxTokens
			}
		}), nil

	case config.KindAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.APIKey = key
			if p.Model != "" {
				o.Model = anthropicsdk.Model(p.Model)
			}
			if p.Temperature != nil {
				o.Temperature = *p.Temperature
			}
			if p.MaxTokens > 0 {
				o.MaxTokens = p.MaxTokens
			}
			if p.BaseURL != "" {
				o.RequestOptions = append(o.RequestOptions, anthropicopt.WithBaseURL(p.BaseURL))
			}
		}), nil

	case config.KindGemini:
		m, err := gemini.NewModel(ctx, func(o *gemini.Options) {
			o.APIKey = key
			o.BaseURL = p.BaseURL
			if p.Model != "" {
				o.Model = p.Model
			}
			if p.Temperature != nil {
				o.Temperature = float32(*p.Temperature)
			}
			if p.MaxTokens > 0 {
				o.MaxOutputTokens = int32(p.MaxTokens)
			}
		})
		if err != nil {
			return nil, err
		}
		return m, nil

	case config.KindOllama:
		return ollama.NewModel(func(o *ollama.Options) {
			if p.BaseURL != "" {
				o.BaseURL = p.BaseURL
			}
			if p.Model != "" {
				o.Model = p.Model
			}
			if p.Temperature != nil {
				o.Temperature = *p.Temperature
			}
			if p.MaxTokens > 0 {
				o.MaxTokens = p.MaxTokens
			}
		}), nil

	case config.KindMock:
		name := p.Model
		if name == "" {
			name = "mock"
		}
		provider := p.Name
		if provider == "" {
			provider = config.KindMock
		}
		m := model.NewMockProvider(name, provider)
		for prompt, reply := range p.Responses {
			m.AddResponse(prompt, reply)
		}
		return m, nil

	default:
		return nil, fmt.Errorf("unsupported provider kind %q", p.Kind)
	}
}

// buildChain turns the configured providers into router entries. The
// returned map indexes the providers by their effective config name.
func buildChain(ctx context.Context, providers []config.ProviderConfig) ([]router.Entry, map[string]model.Provider, error) {
	entries := make([]router.Entry, 0, len(providers))
	byName := make(map[string]model.Provider, len(providers))

	for _, p := range providers {
		name := config.ProviderName(p)
		prov, err := NewProvider(ctx, p)
		if err != nil {
			return nil, nil, fmt.Errorf("provider %q: %w", name, err)
		}
		byName[name] = prov
		entries = append(entries, router.Entry{
			Provider: prov,
			Priority: p.Priority,
			Timeout:  p.Timeout.Std(),
		})
	}
	return entries, byName, nil
}
