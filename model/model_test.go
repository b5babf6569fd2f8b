package model

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
)

var _ Provider = (*MockProvider)(nil)

func TestNewProviderError_Classification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		err    error
		want   ErrorKind
	}{
		{"deadline", 0, fmt.Errorf("call: %w", context.DeadlineExceeded), KindTimeout},
		{"canceled", 0, context.Canceled, KindCanceled},
		{"empty", 0, ErrEmptyResponse, KindEmpty},
		{"unauthorized", 401, errors.New("bad key"), KindAuth},
		{"forbidden", 403, errors.New("nope"), KindAuth},
		{"rate", 429, errors.New("slow down"), KindRateLimit},
		{"bad request", 422, errors.New("invalid"), KindBadRequest},
		{"server", 503, errors.New("overloaded"), KindServer},
		{"transport", 0, &net.OpError{Op: "dial", Err: errors.New("connection refused")}, KindTransport},
		{"unknown", 0, errors.New("???"), KindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pe := NewProviderError("p", tc.status, tc.err)
			assert.Equal(t, tc.want, pe.Kind)
			assert.ErrorIs(t, pe, tc.err)
		})
	}
}

func TestNewProviderError_KeepsExisting(t *testing.T) {
	inner := NewProviderError("inner", 401, errors.New("x"))
	outer := NewProviderError("outer", 0, fmt.Errorf("wrap: %w", inner))
	assert.Same(t, inner, outer)
	assert.Equal(t, KindAuth, KindOf(fmt.Errorf("again: %w", outer)))
	assert.Contains(t, inner.Error(), "provider inner [auth 401]")
}

func TestSplitSystem(t *testing.T) {
	sys, rest := SplitSystem([]core.Message{
		core.NewMessage(core.RoleSystem, "a"),
		core.NewMessage(core.RoleUser, "q"),
		core.NewMessage(core.RoleSystem, "b"),
	})
	assert.Equal(t, "a\n\nb", sys)
	require.Len(t, rest, 1)
	assert.Equal(t, "q", rest[0].Content)
}

func TestMockProvider(t *testing.T) {
	m := NewMockProvider("mock-1", "mock")
	m.AddResponse("2+2", "4")

	req := Request{Messages: []core.Message{
		core.NewMessage(core.RoleUser, "2+2"),
		core.NewMessage(core.RoleAssistant, "thinking"),
	}}
	resp, err := m.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "4", resp.Text)
	assert.Equal(t, "mock-1", resp.Model)

	resp, err = m.Complete(context.Background(), Request{Messages: []core.Message{core.NewMessage(core.RoleUser, "hi")}, Model: "other"})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: hi", resp.Text)
	assert.Equal(t, "other", resp.Model)

	m.FailWith(errors.New("down"))
	_, err = m.Complete(context.Background(), req)
	assert.Equal(t, KindUnknown, KindOf(err))
	assert.Equal(t, 3, m.Calls())

	m.FailWith(nil)
	_, err = m.Complete(context.Background(), Request{})
	assert.Equal(t, KindBadRequest, KindOf(err))
}
