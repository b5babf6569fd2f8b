// Package openai provides an implementation of model.Provider using the
// OpenAI Chat Completions API. The same adapter serves Azure OpenAI
// deployments (NewAzureModel) and any OpenAI-compatible endpoint reached
// through option.WithBaseURL, such as a local Ollama daemon.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/model"
)

// Options configure the OpenAI model adapter.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	// ProviderName labels Info and errors ("openai", "azure", "ollama").
	ProviderName string
}

// Model wraps the OpenAI Chat Completions API behind model.Provider.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a new OpenAI model using the official client. Request
// options (API key, base URL, retries) are passed to openai.NewClient; without
// them the client reads OPENAI_API_KEY from the environment.
func NewModel(reqOpts []option.RequestOption, optFns ...func(o *Options)) *Model {
	client := openai.NewClient(reqOpts...)
	return NewModelFromClient(&client, optFns...)
}

// NewAzureModel creates a model bound to an Azure OpenAI deployment. The
// deployment name is used as the model.
func NewAzureModel(endpoint, apiVersion, apiKey, deployment string, optFns ...func(o *Options)) *Model {
	client := openai.NewClient(
		azure.WithEndpoint(endpoint, apiVersion),
		azure.WithAPIKey(apiKey),
	)
	fns := append([]func(o *Options){func(o *Options) {
		o.Model = deployment
		o.ProviderName = "azure"
	}}, optFns...)
	return NewModelFromClient(&client, fns...)
}

// NewModelFromClient creates a new OpenAI model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 1024,
		ProviderName:        "openai",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Complete implements model.Provider.
func (m *Model) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	params := m.buildParams(req)

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return model.Response{}, model.NewProviderError(m.opts.ProviderName, statusCode(err), fmt.Errorf("openai api error: %w", err))
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return model.Response{}, model.NewProviderError(m.opts.ProviderName, 0, model.ErrEmptyResponse)
	}

	ch0 := resp.Choices[0]
	return model.Response{
		ID:           resp.ID,
		Text:         ch0.Message.Content,
		Model:        resp.Model,
		FinishReason: ch0.FinishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

// buildParams assembles the OpenAI request parameters.
func (m *Model) buildParams(req model.Request) openai.ChatCompletionNewParams {
	name := m.opts.Model
	if req.Model != "" {
		name = req.Model
	}
	maxTokens := m.opts.MaxCompletionTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	return openai.ChatCompletionNewParams{
		Messages:            buildMessages(req.Messages),
		Model:               name,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	}
}

// buildMessages converts conversation messages into OpenAI chat messages.
func buildMessages(msgs []core.Message) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case core.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case core.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	return messages
}

func statusCode(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Info returns metadata describing this model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:     m.opts.Model,
		Provider: m.opts.ProviderName,
	}
}
