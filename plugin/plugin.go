package plugin

import (
	"context"
	"encoding/json"
	"fmt"
)

// Plugin defines the interface of a capability module.
//
// A module owns whatever private resources it allocates in Initialize and
// must release them in Shutdown. The Executor drives every invocation through
// Initialize → Execute → Shutdown and never runs two invocations of the same
// instance concurrently, so implementations need no internal locking for
// their lifecycle state.
//
// Implementations should:
//   - Provide a unique, lowercase name (snake_case recommended)
//   - Honor ctx cancellation in Initialize and Execute
//   - Make Shutdown safe to call after a failed Initialize
type Plugin interface {
	// Descriptor returns the static description of the module.
	Descriptor() Descriptor

	// Initialize prepares the module for one invocation.
	Initialize(ctx context.Context) error

	// Execute runs the module against the free-text input.
	Execute(ctx context.Context, in Input) (Output, error)

	// Shutdown releases resources acquired since Initialize.
	Shutdown(ctx context.Context) error
}

// Input is the argument of one invocation.
type Input struct {
	// Text is the free-text argument following the capability name.
	Text string `json:"text"`
	// SessionID identifies the conversation the invocation belongs to.
	SessionID string `json:"session_id"`
}

// Output is the payload of a successful invocation: free text, structured
// data, or both.
type Output struct {
	Text string `json:"text,omitempty"`
	Data any    `json:"data,omitempty"`
}

// String renders the output as reply text. Text wins; structured data is
// rendered as indented JSON.
func (o Output) String() string {
	if o.Text != "" || o.Data == nil {
		return o.Text
	}
	b, err := json.MarshalIndent(o.Data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", o.Data)
	}
	return string(b)
}

// Metadata carries optional descriptive information about a module.
type Metadata struct {
	Author     string         `json:"author"`
	Version    string         `json:"version"`
	Example    string         `json:"example"`
	Category   string         `json:"category"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Descriptor contains display information about a Plugin.
type Descriptor struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Metadata    Metadata `json:"metadata"`
}

// Default metadata values applied at registration.
const (
	DefaultAuthor   = "unknown"
	DefaultVersion  = "0.0.0"
	DefaultCategory = "general"
)

// WithDefaults returns a copy of d with empty metadata fields filled in.
func (d Descriptor) WithDefaults() Descriptor {
	if d.Metadata.Author == "" {
		d.Metadata.Author = DefaultAuthor
	}
	if d.Metadata.Version == "" {
		d.Metadata.Version = DefaultVersion
	}
	if d.Metadata.Category == "" {
		d.Metadata.Category = DefaultCategory
	}
	if d.Metadata.Example == "" {
		d.Metadata.Example = fmt.Sprintf("run %s <input>", d.Name)
	}
	return d
}
