package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/internal/testutil"
)

// Interface compliance (compile-time assertions)
var (
	_ core.FastStore    = (*InMemoryFastStore)(nil)
	_ core.DurableStore = (*InMemoryDurableStore)(nil)
	_ core.ExecutionLog = (*InMemoryDurableStore)(nil)
)

func TestInMemoryFastStore_PushRange(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryFastStore()

	for _, m := range testutil.NewMessageBuilder().Turns(6).Build() {
		require.NoError(t, s.Push(ctx, "s1", m))
	}

	got, err := s.Range(ctx, "s1", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"m-3", "m-4", "m-5"}, ids(got))

	all, err := s.Range(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 6)

	n, err := s.Len(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	empty, err := s.Range(ctx, "unknown", 5)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestInMemoryFastStore_CapAndTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewInMemoryFastStore(func(o *InMemoryFastStoreOptions) {
		o.MaxMessages = 2
		o.TTL = time.Minute
		o.Now = func() time.Time { return now }
	})

	for _, m := range testutil.NewMessageBuilder().Turns(3).Build() {
		require.NoError(t, s.Push(ctx, "s1", m))
	}
	got, err := s.Range(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"m-1", "m-2"}, ids(got))

	now = now.Add(2 * time.Minute)
	n, err := s.Len(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, n)

	// A push after expiry starts a fresh list.
	require.NoError(t, s.Push(ctx, "s1", core.NewMessage(core.RoleUser, "again")))
	got, err = s.Range(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "again", got[0].Content)
}

func TestInMemoryFastStore_RangeReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryFastStore()
	require.NoError(t, s.Push(ctx, "s1", core.NewMessage(core.RoleUser, "a")))

	got, _ := s.Range(ctx, "s1", 0)
	got[0].Content = "changed"

	again, _ := s.Range(ctx, "s1", 0)
	assert.Equal(t, "a", again[0].Content)
}

func TestInMemoryFastStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewInMemoryFastStore()
	assert.ErrorIs(t, s.Push(ctx, "s1", core.NewMessage(core.RoleUser, "a")), context.Canceled)
}

func TestInMemoryDurableStore_History(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryDurableStore()

	for _, m := range testutil.NewMessageBuilder().Turns(4).Build() {
		require.NoError(t, s.Insert(ctx, "b", m))
	}
	require.NoError(t, s.Insert(ctx, "a", core.NewMessage(core.RoleUser, "x")))

	recent, err := s.QueryRecent(ctx, "b", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"m-2", "m-3"}, ids(recent))

	all, err := s.QueryRecent(ctx, "b", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	sessions, err := s.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, sessions)

	n, err := s.DeleteAll(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	c, err := s.Count(ctx, "b")
	require.NoError(t, err)
	assert.Zero(t, c)
}

func TestInMemoryDurableStore_Executions(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryDurableStore()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordExecution(ctx, core.ExecutionRecord{
			SessionID: "s1",
			Plugin:    "echo",
			Input:     fmt.Sprintf("in-%d", i),
			Status:    "ok",
		}))
	}

	recs, err := s.Executions(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "in-2", recs[0].Input)
	assert.Equal(t, "in-1", recs[1].Input)
	assert.NotEmpty(t, recs[0].ID)

	none, err := s.Executions(ctx, "other", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInMemoryStores_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	fast := NewInMemoryFastStore(func(o *InMemoryFastStoreOptions) { o.MaxMessages = 0 })
	durable := NewInMemoryDurableStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := core.NewMessage(core.RoleUser, fmt.Sprintf("msg-%d", i))
			_ = fast.Push(ctx, "s", m)
			_ = durable.Insert(ctx, "s", m)
			_, _ = fast.Range(ctx, "s", 5)
			_, _ = durable.QueryRecent(ctx, "s", 5)
		}(i)
	}
	wg.Wait()

	n, _ := fast.Len(ctx, "s")
	c, _ := durable.Count(ctx, "s")
	assert.Equal(t, 20, n)
	assert.Equal(t, 20, c)
}

func ids(msgs []core.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}
