package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/agentrelay/core"
)

// InMemoryFastStore is a process-local FastStore. Each session keeps at most
// MaxMessages entries (oldest dropped first) and expires after TTL without
// writes, mirroring the Redis adapter's LTRIM/EXPIRE behaviour.
//
// Concurrency: protected by RWMutex. Suitable for tests, demos and
// single-process deployments.
type InMemoryFastStore struct {
	mu       sync.RWMutex
	sessions map[string]*fastSession
	max      int
	ttl      time.Duration
	now      func() time.Time
}

type fastSession struct {
	msgs    []core.Message
	touched time.Time
}

// InMemoryFastStoreOptions configures an InMemoryFastStore.
type InMemoryFastStoreOptions struct {
	// MaxMessages caps the retained list per session. Zero disables the cap.
	MaxMessages int
	// TTL expires idle sessions. Zero disables expiry.
	TTL time.Duration
	// Now is the clock used for expiry.
	Now func() time.Time
}

// NewInMemoryFastStore creates a new in-memory fast store.
func NewInMemoryFastStore(optFns ...func(o *InMemoryFastStoreOptions)) *InMemoryFastStore {
	opts := InMemoryFastStoreOptions{
		MaxMessages: 100,
		TTL:         24 * time.Hour,
		Now:         time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryFastStore{
		sessions: make(map[string]*fastSession),
		max:      opts.MaxMessages,
		ttl:      opts.TTL,
		now:      opts.Now,
	}
}

// Push appends msg to the session list and refreshes its expiry.
func (s *InMemoryFastStore) Push(ctx context.Context, sessionID string, msg core.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.live(sessionID)
	if !ok {
		sess = &fastSession{}
		s.sessions[sessionID] = sess
	}
	sess.msgs = append(sess.msgs, msg)
	if s.max > 0 && len(sess.msgs) > s.max {
		sess.msgs = append([]core.Message(nil), sess.msgs[len(sess.msgs)-s.max:]...)
	}
	sess.touched = s.now()
	return nil
}

// Range returns the last count messages (all when count <= 0), oldest first.
func (s *InMemoryFastStore) Range(ctx context.Context, sessionID string, count int) ([]core.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.live(sessionID)
	if !ok {
		return []core.Message{}, nil
	}
	msgs := sess.msgs
	if count > 0 && len(msgs) > count {
		msgs = msgs[len(msgs)-count:]
	}
	return core.CloneMessages(msgs), nil
}

// Delete removes the session list. Deleting an unknown session is a no-op.
func (s *InMemoryFastStore) Delete(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Len reports the number of retained messages.
func (s *InMemoryFastStore) Len(ctx context.Context, sessionID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.live(sessionID)
	if !ok {
		return 0, nil
	}
	return len(sess.msgs), nil
}

// live returns the session if present and not expired. Caller holds mu.
func (s *InMemoryFastStore) live(sessionID string) (*fastSession, bool) {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	if s.ttl > 0 && s.now().Sub(sess.touched) > s.ttl {
		return nil, false
	}
	return sess, true
}

// InMemoryDurableStore is a process-local DurableStore that also implements
// core.ExecutionLog. History is unbounded.
type InMemoryDurableStore struct {
	mu         sync.RWMutex
	messages   map[string][]core.Message        // sessionID -> history
	executions map[string][]core.ExecutionRecord // sessionID -> log, append order
}

// NewInMemoryDurableStore creates a new in-memory durable store.
func NewInMemoryDurableStore() *InMemoryDurableStore {
	return &InMemoryDurableStore{
		messages:   make(map[string][]core.Message),
		executions: make(map[string][]core.ExecutionRecord),
	}
}

// Insert appends msg to the session history.
func (s *InMemoryDurableStore) Insert(ctx context.Context, sessionID string, msg core.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[sessionID] = append(s.messages[sessionID], msg)
	return nil
}

// QueryRecent returns the most recent limit messages, oldest first.
func (s *InMemoryDurableStore) QueryRecent(ctx context.Context, sessionID string, limit int) ([]core.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[sessionID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return core.CloneMessages(msgs), nil
}

// DeleteAll removes the session history and reports the number of removed messages.
func (s *InMemoryDurableStore) DeleteAll(ctx context.Context, sessionID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.messages[sessionID])
	delete(s.messages, sessionID)
	return int64(n), nil
}

// Count reports the number of persisted messages.
func (s *InMemoryDurableStore) Count(ctx context.Context, sessionID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages[sessionID]), nil
}

// Sessions lists the sessions holding at least one message, sorted.
func (s *InMemoryDurableStore) Sessions(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.messages))
	for id, msgs := range s.messages {
		if len(msgs) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// RecordExecution appends rec to the execution log.
func (s *InMemoryDurableStore) RecordExecution(ctx context.Context, rec core.ExecutionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = core.NewID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[rec.SessionID] = append(s.executions[rec.SessionID], rec)
	return nil
}

// Executions returns the newest limit records of the session first.
func (s *InMemoryDurableStore) Executions(ctx context.Context, sessionID string, limit int) ([]core.ExecutionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.executions[sessionID]
	out := make([]core.ExecutionRecord, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, src[i])
	}
	return out, nil
}
