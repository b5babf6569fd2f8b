// Package anthropic provides a model.Provider for the Anthropic Claude API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/model"
)

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	// RequestOptions are passed to anthropic.NewClient by NewModel.
	RequestOptions []option.RequestOption
}

// Model wraps the Anthropic Messages API behind model.Provider.
type Model struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   1024,
	}
}

// NewModel creates a new Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := append([]option.RequestOption(nil), opts.RequestOptions...)
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{
		client: &client,
		opts:   opts,
	}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{
		client: client,
		opts:   opts,
	}
}

// Complete implements model.Provider.
func (m *Model) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	system, turns := model.SplitSystem(req.Messages)

	messages := buildMessages(turns)
	if len(messages) == 0 {
		return model.Response{}, model.NewProviderError("anthropic", 400, errors.New("no user message to send"))
	}

	name := m.opts.Model
	if req.Model != "" {
		name = anthropic.Model(req.Model)
	}
	maxTokens := m.opts.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       name,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return model.Response{}, model.NewProviderError("anthropic", statusCode(err), fmt.Errorf("anthropic api error: %w", err))
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	if text.Len() == 0 {
		return model.Response{}, model.NewProviderError("anthropic", 0, model.ErrEmptyResponse)
	}

	finishReason := "stop"
	if resp.StopReason != "" {
		finishReason = string(resp.StopReason)
	}

	return model.Response{
		ID:           resp.ID,
		Text:         text.String(),
		Model:        string(resp.Model),
		FinishReason: finishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}

// buildMessages converts the conversation into Anthropic messages. The API
// requires the first message to come from the user and roles to alternate,
// so leading assistant turns are dropped and consecutive turns of the same
// role are merged into one message with several text blocks.
func buildMessages(turns []core.Message) []anthropic.MessageParam {
	var (
		messages []anthropic.MessageParam
		role     core.Role
		blocks   []anthropic.ContentBlockParamUnion
	)
	flush := func() {
		if len(blocks) == 0 {
			return
		}
		if role == core.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		} else {
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		}
		blocks = nil
	}

	for _, t := range turns {
		if t.Content == "" {
			continue
		}
		r := core.RoleUser
		if t.Role == core.RoleAssistant {
			r = core.RoleAssistant
		}
		if len(messages) == 0 && len(blocks) == 0 && r == core.RoleAssistant {
			continue
		}
		if r != role {
			flush()
			role = r
		}
		blocks = append(blocks, anthropic.NewTextBlock(t.Content))
	}
	flush()
	return messages
}

func statusCode(err error) int {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:     string(m.opts.Model),
		Provider: "anthropic",
	}
}
