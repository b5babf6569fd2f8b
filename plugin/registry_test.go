package plugin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
)

// Interface compliance (compile-time assertions)
var _ Plugin = (*Func)(nil)

func echoFunc(name string) *Func {
	return NewTextFunc(name, "echo "+name, func(_ context.Context, text string) (string, error) {
		return text, nil
	})
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoFunc("Echo")))

	p, ok := r.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "Echo", p.Descriptor().Name)

	_, ok = r.Get("ECHO")
	assert.True(t, ok)

	_, ok = r.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_DuplicateKeepsFirst(t *testing.T) {
	first := echoFunc("dup")
	r := NewRegistry(first)

	err := r.Register(NewTextFunc("dup", "second", func(context.Context, string) (string, error) { return "", nil }))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDuplicateCapability)

	p, ok := r.Get("dup")
	require.True(t, ok)
	assert.Same(t, first, p)

	d, _ := r.Descriptor("dup")
	assert.Equal(t, "echo dup", d.Description)
}

func TestRegistry_InvalidNames(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Register(echoFunc("  ")), core.ErrInvalidArgument)
	assert.ErrorIs(t, r.Register(echoFunc("two words")), core.ErrInvalidArgument)
	assert.ErrorIs(t, r.Register(nil), core.ErrInvalidArgument)
	assert.Zero(t, r.Len())

	assert.Panics(t, func() { r.MustRegister(echoFunc("")) })
}

func TestRegistry_ListSortedWithDefaults(t *testing.T) {
	r := NewRegistry(echoFunc("zeta"), echoFunc("alpha"))
	require.NoError(t, r.Register(NewFunc(Descriptor{
		Name:        "mid",
		Description: "with metadata",
		Metadata:    Metadata{Author: "ops", Version: "1.2.0", Example: "run mid now", Category: "system"},
	}, func(context.Context, Input) (Output, error) { return Output{}, nil })))

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Names())

	alpha := list[0]
	assert.Equal(t, DefaultAuthor, alpha.Metadata.Author)
	assert.Equal(t, DefaultVersion, alpha.Metadata.Version)
	assert.Equal(t, DefaultCategory, alpha.Metadata.Category)
	assert.Equal(t, "run alpha <input>", alpha.Metadata.Example)

	mid := list[1]
	assert.Equal(t, "ops", mid.Metadata.Author)
	assert.Equal(t, "run mid now", mid.Metadata.Example)
}

func TestOutput_String(t *testing.T) {
	assert.Equal(t, "plain", Output{Text: "plain"}.String())
	assert.Equal(t, "", Output{}.String())
	assert.JSONEq(t, `{"count":2}`, Output{Data: map[string]int{"count": 2}}.String())
}

func TestError_Matching(t *testing.T) {
	cause := assert.AnError
	err := NewError("shell", StatusExecFailed, cause)

	assert.ErrorIs(t, err, core.ErrCapabilityExecFailed)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, core.ErrCapabilityTimeout)
	assert.Contains(t, err.Error(), "[exec_failed] in shell")

	nf := NewError("x", StatusNotFound, nil)
	assert.ErrorIs(t, nf, core.ErrCapabilityNotFound)
	assert.Nil(t, StatusOK.Sentinel())
}
