//go:build unix

package builtin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/plugin"
)

func runShell(ctx context.Context, t *testing.T, s *Shell, command string) (plugin.Output, error) {
	t.Helper()
	require.NoError(t, s.Initialize(ctx))
	defer func() { assert.NoError(t, s.Shutdown(context.Background())) }()
	return s.Execute(ctx, plugin.Input{Text: command})
}

func TestShell_Echo(t *testing.T) {
	out, err := runShell(context.Background(), t, NewShell(), "echo hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Text)
}

func TestShell_CapturesStderr(t *testing.T) {
	out, err := runShell(context.Background(), t, NewShell(), "echo oops 1>&2")
	require.NoError(t, err)
	assert.Equal(t, "oops", out.Text)
}

func TestShell_NonZeroExit(t *testing.T) {
	_, err := runShell(context.Background(), t, NewShell(), "echo broken; exit 3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 3")
	assert.Contains(t, err.Error(), "broken")
}

func TestShell_EmptyCommand(t *testing.T) {
	_, err := runShell(context.Background(), t, NewShell(), "   ")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestShell_MissingInterpreter(t *testing.T) {
	s := NewShell(func(o *ShellOptions) { o.Shell = "definitely-not-a-shell" })
	assert.Error(t, s.Initialize(context.Background()))
}

func TestShell_KillsProcessGroupOnTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := runShell(ctx, t, NewShell(), "sleep 10 & sleep 10; wait")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestShell_OutputLimit(t *testing.T) {
	s := NewShell(func(o *ShellOptions) { o.MaxOutput = 4 })
	out, err := runShell(context.Background(), t, s, "echo abcdefgh")
	require.NoError(t, err)
	assert.Equal(t, "abcd\n[output truncated]", out.Text)
}
