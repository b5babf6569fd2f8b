// Package ollama connects to a local Ollama daemon through its
// OpenAI-compatible /v1 endpoint.
package ollama

import (
	"strings"

	"github.com/openai/openai-go/option"

	"github.com/hupe1980/agentrelay/model/openai"
)

// DefaultBaseURL is the address of a local Ollama daemon.
const DefaultBaseURL = "http://localhost:11434"

// Options configures the Ollama adapter.
type Options struct {
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int64
	// MaxRetries is passed to the underlying client. Defaults to 0, a local
	// daemon that is down should fail over quickly.
	MaxRetries int
}

// NewModel creates a model.Provider for an Ollama model.
func NewModel(optFns ...func(o *Options)) *openai.Model {
	opts := Options{
		BaseURL:     DefaultBaseURL,
		Model:       "llama3",
		Temperature: 0.7,
		MaxTokens:   1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return openai.NewModel([]option.RequestOption{
		option.WithBaseURL(endpoint(opts.BaseURL)),
		option.WithAPIKey("ollama"), // ignored by the daemon but required by the client
		option.WithMaxRetries(opts.MaxRetries),
	}, func(o *openai.Options) {
		o.Model = opts.Model
		o.Temperature = opts.Temperature
		o.MaxCompletionTokens = opts.MaxTokens
		o.ProviderName = "ollama"
	})
}

func endpoint(base string) string {
	base = strings.TrimRight(base, "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base + "/"
}
