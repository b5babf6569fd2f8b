package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/config"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/engine"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Log.Level = "error"
	cfg.Memory.Fast = config.BackendMemory
	cfg.Memory.Durable = config.BackendSQLite
	cfg.Memory.SQLite.Path = filepath.Join(dir, "relay.db")
	cfg.Plugins.DisableShell = true
	cfg.Providers = []config.ProviderConfig{
		{Name: "mock", Kind: config.KindMock, Responses: map[string]string{"What is 2+2?": "4"}},
	}

	path := filepath.Join(dir, "agentrelay.yaml")
	require.NoError(t, cfg.Save(path))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSend(t *testing.T) {
	path := writeConfig(t)

	out, err := run(t, "", "-c", path, "send", "What is 2+2?")
	require.NoError(t, err)
	assert.Equal(t, "4\n", out)

	out, err = run(t, "", "-c", path, "send", "run", "calculator", "6*7")
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)
}

func TestSendJSON(t *testing.T) {
	path := writeConfig(t)

	out, err := run(t, "", "-c", path, "send", "--json", "-s", "alice", "run echo hi")
	require.NoError(t, err)

	var reply engine.Reply
	require.NoError(t, json.Unmarshal([]byte(out), &reply))
	assert.Equal(t, "hi", reply.Text)
	assert.Equal(t, "alice", reply.SessionID)
	assert.Equal(t, engine.PathCapability, reply.Path.Kind)
}

func TestPersistenceAcrossCommands(t *testing.T) {
	path := writeConfig(t)

	_, err := run(t, "", "-c", path, "-s", "bob", "send", "run echo one")
	require.NoError(t, err)

	out, err := run(t, "", "-c", path, "sessions")
	require.NoError(t, err)
	assert.Equal(t, "bob\n", out)

	out, err = run(t, "", "-c", path, "memory", "bob")
	require.NoError(t, err)
	var msgs []core.Message
	require.NoError(t, json.Unmarshal([]byte(out), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "run echo one", msgs[0].Content)
	assert.Equal(t, "one", msgs[1].Content)

	out, err = run(t, "", "-c", path, "logs", "bob")
	require.NoError(t, err)
	var recs []core.ExecutionRecord
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "echo", recs[0].Plugin)

	out, err = run(t, "", "-c", path, "reset", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "cleared"`)

	out, err = run(t, "", "-c", path, "sessions")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestChat(t *testing.T) {
	path := writeConfig(t)

	out, err := run(t, "What is 2+2?\n\n/audit\nrun nope\n/quit\nignored\n", "-c", path, "chat", "--show-path")
	require.NoError(t, err)
	assert.Contains(t, out, "[mock] 4")
	assert.Contains(t, out, "short=2 long=2 consistent=true")
	assert.Contains(t, out, `[not_found] Capability "nope" not found.`)
	assert.NotContains(t, out, "ignored")
}

func TestPlugins(t *testing.T) {
	path := writeConfig(t)

	out, err := run(t, "", "-c", path, "plugins")
	require.NoError(t, err)
	assert.Contains(t, out, "calculator")
	assert.Contains(t, out, "plugin_metadata")
	assert.NotContains(t, out, "shell")
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "agentrelay.yaml")

	out, err := run(t, "", "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote")
	_, err = os.Stat(path)
	require.NoError(t, err)

	_, err = run(t, "", "config", "init", path)
	assert.ErrorContains(t, err, "already exists")

	out, err = run(t, "", "-c", path, "config", "validate")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)

	out, err = run(t, "", "-c", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "providers:")
}

func TestMissingConfigFile(t *testing.T) {
	_, err := run(t, "", "-c", filepath.Join(t.TempDir(), "missing.yaml"), "plugins")
	assert.Error(t, err)
}
