package core

import (
	"context"
	"time"
)

// FastStore is the low-latency, volatile memory tier. Implementations keep a
// bounded, ordered list of messages per session (e.g. a Redis list).
type FastStore interface {
	// Push appends msg to the tail of the session list.
	Push(ctx context.Context, sessionID string, msg Message) error
	// Range returns the last count messages ordered oldest to newest.
	// A count <= 0 returns every retained message.
	Range(ctx context.Context, sessionID string, count int) ([]Message, error)
	// Delete removes the session list.
	Delete(ctx context.Context, sessionID string) error
	// Len reports the number of retained messages.
	Len(ctx context.Context, sessionID string) (int, error)
}

// DurableStore is the slower, durable memory tier holding the full history.
type DurableStore interface {
	// Insert persists msg for the session.
	Insert(ctx context.Context, sessionID string, msg Message) error
	// QueryRecent returns the most recent limit messages ordered oldest to
	// newest. A limit <= 0 returns the whole history.
	QueryRecent(ctx context.Context, sessionID string, limit int) ([]Message, error)
	// DeleteAll removes every message of the session and reports how many rows went away.
	DeleteAll(ctx context.Context, sessionID string) (int64, error)
	// Count reports the number of persisted messages.
	Count(ctx context.Context, sessionID string) (int, error)
	// Sessions lists the distinct session IDs in ascending order.
	Sessions(ctx context.Context) ([]string, error)
}

// ExecutionRecord is one entry of the plugin execution log.
type ExecutionRecord struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	Plugin    string        `json:"plugin"`
	Input     string        `json:"input"`
	Output    string        `json:"output"`
	Status    string        `json:"status"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// ExecutionLog persists capability invocations for later inspection.
type ExecutionLog interface {
	RecordExecution(ctx context.Context, rec ExecutionRecord) error
	// Executions returns the newest limit records first. A limit <= 0 returns all.
	Executions(ctx context.Context, sessionID string, limit int) ([]ExecutionRecord, error)
}
