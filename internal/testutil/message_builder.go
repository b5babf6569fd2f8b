package testutil

import (
	"fmt"
	"time"

	"github.com/hupe1980/agentrelay/core"
)

// MessageBuilder provides a fluent helper for constructing conversation
// fixtures in tests. Example:
//
//	msgs := NewMessageBuilder().User("hi").Assistant("hello").Build()
//
// Timestamps start at a fixed instant and advance one second per message, IDs
// are deterministic ("m-0", "m-1", ...).
type MessageBuilder struct {
	start time.Time
	msgs  []core.Message
}

// NewMessageBuilder creates a builder starting at 2024-01-01T00:00:00Z.
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Start overrides the first timestamp (chainable).
func (b *MessageBuilder) Start(t time.Time) *MessageBuilder { b.start = t; return b }

// User appends a user message (chainable).
func (b *MessageBuilder) User(content string) *MessageBuilder { return b.add(core.RoleUser, content) }

// Assistant appends an assistant message (chainable).
func (b *MessageBuilder) Assistant(content string) *MessageBuilder {
	return b.add(core.RoleAssistant, content)
}

// System appends a system message (chainable).
func (b *MessageBuilder) System(content string) *MessageBuilder {
	return b.add(core.RoleSystem, content)
}

// Turns appends n alternating user/assistant messages "u0", "a1", "u2"... (chainable).
func (b *MessageBuilder) Turns(n int) *MessageBuilder {
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			b.User(fmt.Sprintf("u%d", len(b.msgs)))
		} else {
			b.Assistant(fmt.Sprintf("a%d", len(b.msgs)))
		}
	}
	return b
}

// Build returns a copy of the accumulated messages.
func (b *MessageBuilder) Build() []core.Message { return core.CloneMessages(b.msgs) }

func (b *MessageBuilder) add(role core.Role, content string) *MessageBuilder {
	i := len(b.msgs)
	b.msgs = append(b.msgs, core.Message{
		ID:        fmt.Sprintf("m-%d", i),
		Role:      role,
		Content:   content,
		Timestamp: b.start.Add(time.Duration(i) * time.Second),
	})
	return b
}
