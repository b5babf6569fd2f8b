package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Engine.ContextWindow)
	assert.Equal(t, 24*time.Hour, cfg.Memory.ShortTermTTL.Std())
	assert.Equal(t, []string{"openai", "ollama"}, []string{cfg.Providers[0].Name, cfg.Providers[1].Name})
}

func TestParse_MergesOverDefaults(t *testing.T) {
	t.Setenv(EnvRedisAddr, "")
	t.Setenv(EnvSQLitePath, "")
	t.Setenv(EnvLogLevel, "")

	cfg, err := Parse(strings.NewReader(`
log:
  level: debug
memory:
  fast: memory
  op_timeout: 500ms
engine:
  context_window: 4
router:
  breaker_threshold: 3
providers:
  - kind: anthropic
    model: claude-3-5-sonnet-20241022
    api_key_env: ANTHROPIC_API_KEY
    timeout: 15s
  - name: local
    kind: ollama
    base_url: http://ollama:11434
    temperature: 0.2
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, BackendMemory, cfg.Memory.Fast)
	assert.Equal(t, BackendSQLite, cfg.Memory.Durable)
	assert.Equal(t, 500*time.Millisecond, cfg.Memory.OpTimeout.Std())
	assert.Equal(t, 100, cfg.Memory.MaxShortTermMessages)
	assert.Equal(t, 4, cfg.Engine.ContextWindow)
	assert.Equal(t, int64(10), cfg.Engine.MaxConcurrentDispatches)
	assert.Equal(t, 3, cfg.Router.BreakerThreshold)

	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, "anthropic/claude-3-5-sonnet-20241022", ProviderName(cfg.Providers[0]))
	assert.Equal(t, 15*time.Second, cfg.Providers[0].Timeout.Std())
	require.NotNil(t, cfg.Providers[1].Temperature)
	assert.InDelta(t, 0.2, *cfg.Providers[1].Temperature, 1e-9)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Providers, cfg.Providers)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse(strings.NewReader("unknown_key: 1\n"))
	assert.Error(t, err)

	_, err = Parse(strings.NewReader("router:\n  default_timeout: soon\n"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvRedisAddr, "redis:6380")
	t.Setenv(EnvSQLitePath, "/tmp/relay.db")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "redis:6380", cfg.Memory.Redis.Addr)
	assert.Equal(t, "/tmp/relay.db", cfg.Memory.SQLite.Path)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("RELAY_TEST_KEY", "from-env")

	assert.Equal(t, "inline", ProviderConfig{APIKey: "inline", APIKeyEnv: "RELAY_TEST_KEY"}.ResolveAPIKey())
	assert.Equal(t, "from-env", ProviderConfig{APIKeyEnv: "RELAY_TEST_KEY"}.ResolveAPIKey())
	assert.Empty(t, ProviderConfig{}.ResolveAPIKey())
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers = nil
	assert.ErrorIs(t, cfg.Validate(), core.ErrEmptyProviderChain)

	cfg = DefaultConfig()
	cfg.Log.Level = "loud"
	cfg.Memory.Fast = "memcached"
	cfg.Engine.ContextWindow = 0
	cfg.Plugins.AskProvider = "missing"
	cfg.Providers = append(cfg.Providers,
		ProviderConfig{Name: "openai", Kind: KindOpenAI},
		ProviderConfig{Kind: "cohere"},
		ProviderConfig{Name: "az", Kind: KindAzure},
	)

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	for _, want := range []string{"log.level", "memory.fast", "engine.context_window", "ask_provider", "duplicate name", "cohere", "azure requires"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv(EnvRedisAddr, "")
	t.Setenv(EnvSQLitePath, "")
	t.Setenv(EnvLogLevel, "")

	path := filepath.Join(t.TempDir(), "nested", "agentrelay.yaml")
	cfg := DefaultConfig()
	cfg.Router.TerminalReply = "offline"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
