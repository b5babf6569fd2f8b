package model

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/agentrelay/core"
)

// Request captures the normalized completion input.
type Request struct {
	// Messages is the conversation window, oldest first. System messages are
	// passed through to vendors that support them.
	Messages []core.Message `json:"messages"`
	// Model overrides the adapter's configured model when non-empty.
	Model string `json:"model,omitempty"`
	// MaxTokens overrides the adapter's completion token limit when > 0.
	MaxTokens int64 `json:"max_tokens,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a final completion.
type Response struct {
	ID           string      `json:"id"`
	Text         string      `json:"text"`
	Model        string      `json:"model"`
	FinishReason string      `json:"finish_reason"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a provider implementation.
type Info struct {
	Name     string `json:"name"`     // model name, e.g. "gpt-4o-mini"
	Provider string `json:"provider"` // "openai", "azure", "anthropic", "gemini", "ollama", "mock"
}

// Provider is the minimal interface required by the router to obtain a completion.
type Provider interface {
	Complete(ctx context.Context, req Request) (Response, error)

	// Info returns information about the provider implementation.
	Info() Info
}

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	KindTimeout    ErrorKind = "timeout"
	KindCanceled   ErrorKind = "canceled"
	KindTransport  ErrorKind = "transport"
	KindAuth       ErrorKind = "auth"
	KindRateLimit  ErrorKind = "rate_limit"
	KindBadRequest ErrorKind = "bad_request"
	KindServer     ErrorKind = "server"
	KindEmpty      ErrorKind = "empty_response"
	KindUnknown    ErrorKind = "unknown"
)

// ErrEmptyResponse is returned by adapters when the vendor answered without text.
var ErrEmptyResponse = errors.New("empty response")

// ProviderError describes a failed completion call.
type ProviderError struct {
	Provider   string    `json:"provider"`
	Kind       ErrorKind `json:"kind"`
	StatusCode int       `json:"status_code,omitempty"`
	Err        error     `json:"-"`
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s [%s %d]: %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s [%s]: %v", e.Provider, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError classifies err for provider. statusCode is the HTTP status
// reported by the vendor SDK, or 0 when unknown. An err that already is a
// *ProviderError is returned unchanged.
func NewProviderError(provider string, statusCode int, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return &ProviderError{Provider: provider, Kind: classify(statusCode, err), StatusCode: statusCode, Err: err}
}

// KindOf returns the kind of a *ProviderError in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return classify(0, err)
}

func classify(statusCode int, err error) ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrEmptyResponse):
		return KindEmpty
	}
	switch {
	case statusCode == 401 || statusCode == 403:
		return KindAuth
	case statusCode == 408:
		return KindTimeout
	case statusCode == 429:
		return KindRateLimit
	case statusCode >= 500:
		return KindServer
	case statusCode >= 400:
		return KindBadRequest
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindTransport
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindTransport
	}
	return KindUnknown
}

// SplitSystem separates system messages (joined by blank lines) from the
// conversational turns, for vendors that take the system prompt out of band.
func SplitSystem(msgs []core.Message) (string, []core.Message) {
	var sys []string
	rest := make([]core.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == core.RoleSystem {
			sys = append(sys, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(sys, "\n\n"), rest
}

// LastUserText returns the content of the newest user message.
func LastUserText(msgs []core.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == core.RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}

// MockProvider is a lightweight in-memory Provider useful for tests & examples.
type MockProvider struct {
	info Info

	mu        sync.RWMutex
	responses map[string]string
	err       error
	hook      func(ctx context.Context, req Request) error

	calls atomic.Int64
}

// NewMockProvider constructs a MockProvider.
func NewMockProvider(name, provider string) *MockProvider {
	return &MockProvider{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for the newest user message.
func (m *MockProvider) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// FailWith makes every call fail with err. Passing nil restores normal behaviour.
func (m *MockProvider) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// OnComplete installs a hook run at the start of every call; a non-nil
// return fails the call.
func (m *MockProvider) OnComplete(hook func(ctx context.Context, req Request) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = hook
}

// Calls returns how many times Complete was invoked.
func (m *MockProvider) Calls() int { return int(m.calls.Load()) }

// Complete implements Provider.
func (m *MockProvider) Complete(ctx context.Context, req Request) (Response, error) {
	m.calls.Add(1)

	m.mu.RLock()
	hook, failure := m.hook, m.err
	m.mu.RUnlock()

	if hook != nil {
		if err := hook(ctx, req); err != nil {
			return Response{}, NewProviderError(m.info.Provider, 0, err)
		}
	}
	if failure != nil {
		return Response{}, NewProviderError(m.info.Provider, 0, failure)
	}
	if err := ctx.Err(); err != nil {
		return Response{}, NewProviderError(m.info.Provider, 0, err)
	}
	if len(req.Messages) == 0 {
		return Response{}, NewProviderError(m.info.Provider, 400, fmt.Errorf("no messages provided"))
	}

	input := LastUserText(req.Messages)

	m.mu.RLock()
	full, ok := m.responses[input]
	m.mu.RUnlock()
	if !ok {
		full = fmt.Sprintf("Mock response to: %s", input)
	}

	name := m.info.Name
	if req.Model != "" {
		name = req.Model
	}
	return Response{Text: full, Model: name, FinishReason: "stop"}, nil
}

// Info implements Provider.
func (m *MockProvider) Info() Info { return m.info }
