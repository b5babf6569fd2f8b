package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
)

// Environment variables consulted by Load.
const (
	EnvRedisAddr  = "AGENTRELAY_REDIS_ADDR"
	EnvSQLitePath = "AGENTRELAY_SQLITE_PATH"
	EnvLogLevel   = "AGENTRELAY_LOG_LEVEL"
)

// Memory backends.
const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Provider kinds.
const (
	KindOpenAI    = "openai"
	KindAzure     = "azure"
	KindAnthropic = "anthropic"
	KindGemini    = "gemini"
	KindOllama    = "ollama"
	KindMock      = "mock"
)

// ValidProviderKinds lists all supported provider kinds.
var ValidProviderKinds = []string{KindOpenAI, KindAzure, KindAnthropic, KindGemini, KindOllama, KindMock}

// Config holds all agentrelay configuration.
type Config struct {
	Log       LogConfig        `yaml:"log"`
	Memory    MemoryConfig     `yaml:"memory"`
	Engine    EngineConfig     `yaml:"engine"`
	Plugins   PluginsConfig    `yaml:"plugins"`
	Router    RouterConfig     `yaml:"router"`
	Providers []ProviderConfig `yaml:"providers"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level   string `yaml:"level"`   // debug, info, warn, error
	Format  string `yaml:"format"`  // json, text
	Backend string `yaml:"backend"` // slog, zap
}

// MemoryConfig configures the two memory tiers.
type MemoryConfig struct {
	// Fast selects the short-term tier: redis or memory.
	Fast string `yaml:"fast"`
	// Durable selects the long-term tier: sqlite or memory.
	Durable string `yaml:"durable"`

	Redis  RedisConfig  `yaml:"redis"`
	SQLite SQLiteConfig `yaml:"sqlite"`

	// MaxShortTermMessages caps the fast tier per session.
	MaxShortTermMessages int `yaml:"max_short_term_messages"`
	// ShortTermTTL expires idle sessions in the fast tier.
	ShortTermTTL Duration `yaml:"short_term_ttl"`
	// OpTimeout bounds every single store call.
	OpTimeout Duration `yaml:"op_timeout"`
}

// RedisConfig configures the Redis fast store.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// SQLiteConfig configures the SQLite durable store.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// EngineConfig configures dispatch.
type EngineConfig struct {
	ContextWindow           int      `yaml:"context_window"`
	MaxConcurrentDispatches int64    `yaml:"max_concurrent_dispatches"`
	InvocationPrefixes      []string `yaml:"invocation_prefixes"`
	SystemPrompt            string   `yaml:"system_prompt"`
}

// PluginsConfig configures capability execution.
type PluginsConfig struct {
	Timeout         Duration `yaml:"timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	DisableShell    bool     `yaml:"disable_shell"`
	// ShellDir is the working directory of the shell module.
	ShellDir string `yaml:"shell_dir"`
	// AskProvider names the provider behind the ask module. Empty disables it.
	AskProvider string `yaml:"ask_provider"`
}

// RouterConfig configures the provider fallback chain.
type RouterConfig struct {
	DefaultTimeout   Duration `yaml:"default_timeout"`
	TerminalReply    string   `yaml:"terminal_reply"`
	BreakerThreshold int      `yaml:"breaker_threshold"`
	BreakerCooldown  Duration `yaml:"breaker_cooldown"`
}

// ProviderConfig describes one provider chain entry.
type ProviderConfig struct {
	// Name identifies the entry. Defaults to "<kind>/<model>".
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
	// Model overrides the adapter's default model.
	Model string `yaml:"model"`
	// APIKey takes precedence over APIKeyEnv.
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`
	// BaseURL overrides the vendor endpoint (OpenAI-compatible gateways, Ollama).
	BaseURL string `yaml:"base_url"`

	// Azure OpenAI settings.
	Endpoint   string `yaml:"endpoint"`
	APIVersion string `yaml:"api_version"`
	Deployment string `yaml:"deployment"`

	Priority    int      `yaml:"priority"`
	Timeout     Duration `yaml:"timeout"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   int64    `yaml:"max_tokens"`

	// Responses seeds a mock provider with canned replies.
	Responses map[string]string `yaml:"responses,omitempty"`
}

// ResolveAPIKey returns APIKey, or the value of the APIKeyEnv variable.
func (p ProviderConfig) ResolveAPIKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv != "" {
		return os.Getenv(p.APIKeyEnv)
	}
	return ""
}

// DefaultConfig returns the configuration used when no file is given: Redis
// and SQLite memory, OpenAI first and a local Ollama daemon as fallback.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:   "info",
			Format:  "text",
			Backend: string(logging.BackendSlog),
		},
		Memory: MemoryConfig{
			Fast:                 BackendRedis,
			Durable:              BackendSQLite,
			Redis:                RedisConfig{Addr: "localhost:6379", KeyPrefix: "agentrelay:session:"},
			SQLite:               SQLiteConfig{Path: filepath.Join("data", "agentrelay.db")},
			MaxShortTermMessages: 100,
			ShortTermTTL:         Duration(24 * time.Hour),
			OpTimeout:            Duration(2 * time.Second),
		},
		Engine: EngineConfig{
			ContextWindow:           10,
			MaxConcurrentDispatches: 10,
			InvocationPrefixes:      []string{"run ", "/run "},
		},
		Plugins: PluginsConfig{
			Timeout:         Duration(30 * time.Second),
			ShutdownTimeout: Duration(5 * time.Second),
		},
		Router: RouterConfig{
			DefaultTimeout:  Duration(30 * time.Second),
			BreakerCooldown: Duration(30 * time.Second),
		},
		Providers: []ProviderConfig{
			{Name: "openai", Kind: KindOpenAI, Model: "gpt-4o-mini", APIKeyEnv: "OPENAI_API_KEY", Priority: 1},
			{Name: "ollama", Kind: KindOllama, Model: "llama3", Priority: 2},
		},
	}
}

// Merge applies non-zero values from source into c. A non-empty provider
// list replaces the configured chain.
func (c *Config) Merge(source *Config) {
	mergeString(&c.Log.Level, source.Log.Level)
	mergeString(&c.Log.Format, source.Log.Format)
	mergeString(&c.Log.Backend, source.Log.Backend)

	m, s := &c.Memory, &source.Memory
	mergeString(&m.Fast, s.Fast)
	mergeString(&m.Durable, s.Durable)
	mergeString(&m.Redis.Addr, s.Redis.Addr)
	mergeString(&m.Redis.Password, s.Redis.Password)
	mergeString(&m.Redis.KeyPrefix, s.Redis.KeyPrefix)
	if s.Redis.DB > 0 {
		m.Redis.DB = s.Redis.DB
	}
	mergeString(&m.SQLite.Path, s.SQLite.Path)
	if s.MaxShortTermMessages > 0 {
		m.MaxShortTermMessages = s.MaxShortTermMessages
	}
	mergeDuration(&m.ShortTermTTL, s.ShortTermTTL)
	mergeDuration(&m.OpTimeout, s.OpTimeout)

	if source.Engine.ContextWindow > 0 {
		c.Engine.ContextWindow = source.Engine.ContextWindow
	}
	if source.Engine.MaxConcurrentDispatches > 0 {
		c.Engine.MaxConcurrentDispatches = source.Engine.MaxConcurrentDispatches
	}
	if len(source.Engine.InvocationPrefixes) > 0 {
		c.Engine.InvocationPrefixes = source.Engine.InvocationPrefixes
	}
	mergeString(&c.Engine.SystemPrompt, source.Engine.SystemPrompt)

	mergeDuration(&c.Plugins.Timeout, source.Plugins.Timeout)
	mergeDuration(&c.Plugins.ShutdownTimeout, source.Plugins.ShutdownTimeout)
	if source.Plugins.DisableShell {
		c.Plugins.DisableShell = true
	}
	mergeString(&c.Plugins.ShellDir, source.Plugins.ShellDir)
	mergeString(&c.Plugins.AskProvider, source.Plugins.AskProvider)

	mergeDuration(&c.Router.DefaultTimeout, source.Router.DefaultTimeout)
	mergeString(&c.Router.TerminalReply, source.Router.TerminalReply)
	if source.Router.BreakerThreshold > 0 {
		c.Router.BreakerThreshold = source.Router.BreakerThreshold
	}
	mergeDuration(&c.Router.BreakerCooldown, source.Router.BreakerCooldown)

	if len(source.Providers) > 0 {
		c.Providers = source.Providers
	}
}

// Load reads a YAML config file, merges it over the defaults and applies
// environment overrides. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes YAML from r, merges it over the defaults and applies
// environment overrides. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	var loaded Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&loaded); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := DefaultConfig()
	cfg.Merge(&loaded)
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv(EnvRedisAddr); addr != "" {
		c.Memory.Redis.Addr = addr
	}
	if path := os.Getenv(EnvSQLitePath); path != "" {
		c.Memory.SQLite.Path = path
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Log.Level = level
	}
}

// ProviderName returns the effective name of chain entry p.
func ProviderName(p ProviderConfig) string {
	if p.Name != "" {
		return p.Name
	}
	if p.Model != "" {
		return p.Kind + "/" + p.Model
	}
	return p.Kind
}

// Validate reports every configuration problem at once. A config without
// providers is core.ErrEmptyProviderChain; everything else wraps
// core.ErrInvalidArgument.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return core.ErrEmptyProviderChain
	}

	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", core.ErrInvalidArgument, fmt.Sprintf(format, args...)))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		invalid("log.level: %v", err)
	}
	if f := strings.ToLower(c.Log.Format); f != "" && f != "json" && f != "text" {
		invalid("log.format %q (valid: json, text)", c.Log.Format)
	}
	if b := c.Log.Backend; b != "" && b != string(logging.BackendSlog) && b != string(logging.BackendZap) {
		invalid("log.backend %q (valid: slog, zap)", b)
	}

	switch c.Memory.Fast {
	case BackendRedis:
		if c.Memory.Redis.Addr == "" {
			invalid("memory.redis.addr is required")
		}
	case BackendMemory:
	default:
		invalid("memory.fast %q (valid: redis, memory)", c.Memory.Fast)
	}
	switch c.Memory.Durable {
	case BackendSQLite:
		if c.Memory.SQLite.Path == "" {
			invalid("memory.sqlite.path is required")
		}
	case BackendMemory:
	default:
		invalid("memory.durable %q (valid: sqlite, memory)", c.Memory.Durable)
	}
	if c.Memory.MaxShortTermMessages <= 0 {
		invalid("memory.max_short_term_messages must be positive")
	}

	if c.Engine.ContextWindow <= 0 {
		invalid("engine.context_window must be positive")
	}
	if c.Engine.MaxConcurrentDispatches <= 0 {
		invalid("engine.max_concurrent_dispatches must be positive")
	}

	seen := map[string]bool{}
	for i, p := range c.Providers {
		name := ProviderName(p)
		if !slices.Contains(ValidProviderKinds, p.Kind) {
			invalid("providers[%d].kind %q (valid: %v)", i, p.Kind, ValidProviderKinds)
		}
		if seen[name] {
			invalid("providers[%d]: duplicate name %q", i, name)
		}
		seen[name] = true
		if p.Kind == KindAzure && (p.Endpoint == "" || p.Deployment == "") {
			invalid("providers[%d]: azure requires endpoint and deployment", i)
		}
	}

	if ask := c.Plugins.AskProvider; ask != "" && !seen[ask] {
		invalid("plugins.ask_provider %q is not a configured provider", ask)
	}

	return errors.Join(errs...)
}

func mergeString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

func mergeDuration(dst *Duration, src Duration) {
	if src > 0 {
		*dst = src
	}
}
