package testutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/agentrelay/core"
)

// ErrInjected is the default failure returned by the flaky stores.
var ErrInjected = errors.New("injected failure")

// Switch toggles failure injection. The zero value passes calls through.
type Switch struct {
	down atomic.Bool
	mu   sync.Mutex
	err  error
}

// Down makes every subsequent call fail with err (ErrInjected when nil).
func (s *Switch) Down(err error) {
	if err == nil {
		err = ErrInjected
	}
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.down.Store(true)
}

// Up restores pass-through behaviour.
func (s *Switch) Up() { s.down.Store(false) }

func (s *Switch) fail() error {
	if !s.down.Load() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// FlakyFastStore wraps a core.FastStore and fails while its Switch is down.
// PushFault fails only Push, leaving reads intact.
type FlakyFastStore struct {
	Switch
	PushFault Switch
	Inner     core.FastStore
	calls     atomic.Int64
}

// NewFlakyFastStore wraps inner.
func NewFlakyFastStore(inner core.FastStore) *FlakyFastStore {
	return &FlakyFastStore{Inner: inner}
}

// Calls reports how many calls reached the wrapper.
func (f *FlakyFastStore) Calls() int64 { return f.calls.Load() }

func (f *FlakyFastStore) Push(ctx context.Context, sessionID string, msg core.Message) error {
	f.calls.Add(1)
	if err := f.fail(); err != nil {
		return err
	}
	if err := f.PushFault.fail(); err != nil {
		return err
	}
	return f.Inner.Push(ctx, sessionID, msg)
}

func (f *FlakyFastStore) Range(ctx context.Context, sessionID string, count int) ([]core.Message, error) {
	f.calls.Add(1)
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.Inner.Range(ctx, sessionID, count)
}

func (f *FlakyFastStore) Delete(ctx context.Context, sessionID string) error {
	f.calls.Add(1)
	if err := f.fail(); err != nil {
		return err
	}
	return f.Inner.Delete(ctx, sessionID)
}

func (f *FlakyFastStore) Len(ctx context.Context, sessionID string) (int, error) {
	f.calls.Add(1)
	if err := f.fail(); err != nil {
		return 0, err
	}
	return f.Inner.Len(ctx, sessionID)
}

// FlakyDurableStore wraps a core.DurableStore and fails while its Switch is down.
type FlakyDurableStore struct {
	Switch
	Inner core.DurableStore
	calls atomic.Int64
}

// NewFlakyDurableStore wraps inner.
func NewFlakyDurableStore(inner core.DurableStore) *FlakyDurableStore {
	return &FlakyDurableStore{Inner: inner}
}

// Calls reports how many calls reached the wrapper.
func (f *FlakyDurableStore) Calls() int64 { return f.calls.Load() }

func (f *FlakyDurableStore) Insert(ctx context.Context, sessionID string, msg core.Message) error {
	f.calls.Add(1)
	if err := f.fail(); err != nil {
		return err
	}
	return f.Inner.Insert(ctx, sessionID, msg)
}

func (f *FlakyDurableStore) QueryRecent(ctx context.Context, sessionID string, limit int) ([]core.Message, error) {
	f.calls.Add(1)
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.Inner.QueryRecent(ctx, sessionID, limit)
}

func (f *FlakyDurableStore) DeleteAll(ctx context.Context, sessionID string) (int64, error) {
	f.calls.Add(1)
	if err := f.fail(); err != nil {
		return 0, err
	}
	return f.Inner.DeleteAll(ctx, sessionID)
}

func (f *FlakyDurableStore) Count(ctx context.Context, sessionID string) (int, error) {
	f.calls.Add(1)
	if err := f.fail(); err != nil {
		return 0, err
	}
	return f.Inner.Count(ctx, sessionID)
}

func (f *FlakyDurableStore) Sessions(ctx context.Context) ([]string, error) {
	f.calls.Add(1)
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.Inner.Sessions(ctx)
}
