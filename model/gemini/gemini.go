// Package gemini provides a model.Provider backed by the Google Gen AI SDK
// (Gemini API).
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/model"
)

// Options configures the Gemini model adapter.
type Options struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	APIKey          string
	// BaseURL overrides the API endpoint (tests, proxies).
	BaseURL string
}

// Model wraps genai.Client.Models.GenerateContent behind model.Provider.
type Model struct {
	client *genai.Client
	opts   Options
}

// NewModel creates a new Gemini model. Without an APIKey the SDK falls back
// to the GOOGLE_API_KEY / GEMINI_API_KEY environment variables.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := Options{
		Model:           "gemini-2.0-flash",
		Temperature:     0.7,
		MaxOutputTokens: 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Model{client: client, opts: opts}, nil
}

// Complete implements model.Provider.
func (m *Model) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	system, turns := model.SplitSystem(req.Messages)
	contents := buildContents(turns)
	if len(contents) == 0 {
		return model.Response{}, model.NewProviderError("gemini", 400, errors.New("no messages to send"))
	}

	name := m.opts.Model
	if req.Model != "" {
		name = req.Model
	}
	maxTokens := m.opts.MaxOutputTokens
	if req.MaxTokens > 0 {
		maxTokens = int32(req.MaxTokens)
	}

	temp := m.opts.Temperature
	config := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: maxTokens,
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := m.client.Models.GenerateContent(ctx, name, contents, config)
	if err != nil {
		return model.Response{}, model.NewProviderError("gemini", statusCode(err), fmt.Errorf("gemini api error: %w", err))
	}

	text := resp.Text()
	if text == "" {
		return model.Response{}, model.NewProviderError("gemini", 0, model.ErrEmptyResponse)
	}

	out := model.Response{Text: text, Model: name}
	if len(resp.Candidates) > 0 {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = &model.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func buildContents(turns []core.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		if t.Content == "" {
			continue
		}
		role := genai.Role(genai.RoleUser)
		if t.Role == core.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Content, role))
	}
	return contents
}

func statusCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code
	}
	return 0
}

// Info returns metadata describing this model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "gemini"}
}
