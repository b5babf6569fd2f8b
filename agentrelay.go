// Package agentrelay wires a conversational assistant backend from a single
// configuration: a two tier conversation memory, a registry of capability
// modules and an ordered chain of language model providers.
//
// Most applications interact with this package by:
//  1. Loading a config.Config (config.Load) or starting from config.DefaultConfig
//  2. Creating an AgentRelay via New, optionally overriding stores, providers or the logger
//  3. Calling Dispatch for every incoming message
//
// The façade delegates the request flow to engine.Engine while keeping setup
// concise. Memory backends and providers that cannot be reached at startup do
// not fail construction; each request degrades to whatever is left.
package agentrelay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hupe1980/agentrelay/config"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/engine"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/memory"
	"github.com/hupe1980/agentrelay/memory/redis"
	"github.com/hupe1980/agentrelay/memory/sqlite"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/plugin"
	"github.com/hupe1980/agentrelay/plugin/builtin"
	"github.com/hupe1980/agentrelay/router"
)

// Options configures the AgentRelay instance. Every field is optional and
// takes precedence over the matching config section.
type Options struct {
	// Logger defaults to a logger built from the log section.
	Logger logging.Logger
	// LogOutput receives log records when Logger is nil. Defaults to stderr.
	LogOutput io.Writer

	// FastStore and DurableStore replace the configured memory backends.
	FastStore    core.FastStore
	DurableStore core.DurableStore
	// ExecutionLog records capability invocations. Defaults to the durable
	// store when it implements core.ExecutionLog.
	ExecutionLog core.ExecutionLog

	// Providers replaces the configured provider chain.
	Providers []router.Entry

	// Plugins are registered next to the bundled modules.
	Plugins []plugin.Plugin
	// Callbacks are attached to the engine.
	Callbacks []engine.Callback
}

// AgentRelay is the high-level façade aggregating memory, capabilities,
// providers and the dispatch engine.
type AgentRelay struct {
	cfg      *config.Config
	logger   logging.Logger
	memory   *memory.Manager
	registry *plugin.Registry
	executor *plugin.Executor
	router   *router.Router
	engine   *engine.Engine
	execLog  core.ExecutionLog

	closers []io.Closer
}

// New validates cfg and builds every component. A nil cfg uses
// config.DefaultConfig.
func New(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*AgentRelay, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	// Injected providers stand in for an empty configured chain.
	check := *cfg
	if len(opts.Providers) > 0 && len(check.Providers) == 0 {
		check.Providers = []config.ProviderConfig{{Kind: config.KindMock}}
	}
	if err := check.Validate(); err != nil {
		return nil, err
	}

	a := &AgentRelay{cfg: cfg}
	a.logger = opts.Logger
	if a.logger == nil {
		logger, err := newLogger(cfg.Log, opts.LogOutput)
		if err != nil {
			return nil, err
		}
		a.logger = logger
	}

	if err := a.openMemory(ctx, opts); err != nil {
		_ = a.Close()
		return nil, err
	}

	entries := opts.Providers
	var byName map[string]model.Provider
	if len(entries) == 0 {
		var err error
		entries, byName, err = buildChain(ctx, cfg.Providers)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	rt, err := router.New(entries, func(o *router.Options) {
		o.Logger = a.logger
		o.TerminalReply = cfg.Router.TerminalReply
		o.BreakerThreshold = cfg.Router.BreakerThreshold
		if d := cfg.Router.DefaultTimeout.Std(); d > 0 {
			o.DefaultTimeout = d
		}
		if d := cfg.Router.BreakerCooldown.Std(); d > 0 {
			o.BreakerCooldown = d
		}
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.router = rt

	deps := builtin.Deps{
		Memory:       a.memory,
		DisableShell: cfg.Plugins.DisableShell,
	}
	if dir := cfg.Plugins.ShellDir; dir != "" {
		deps.Shell = append(deps.Shell, func(o *builtin.ShellOptions) { o.Dir = dir })
	}
	if name := cfg.Plugins.AskProvider; name != "" {
		deps.Ask = byName[name]
	}

	a.registry = plugin.NewRegistry()
	if err := builtin.RegisterDefaults(a.registry, deps); err != nil {
		_ = a.Close()
		return nil, err
	}
	for _, p := range opts.Plugins {
		if err := a.registry.Register(p); err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	a.executor = plugin.NewExecutor(a.registry, func(o *plugin.ExecutorOptions) {
		o.Logger = a.logger
		o.Recorder = a.execLog
		if d := cfg.Plugins.Timeout.Std(); d > 0 {
			o.Timeout = d
		}
		if d := cfg.Plugins.ShutdownTimeout.Std(); d > 0 {
			o.ShutdownTimeout = d
		}
	})

	a.engine, err = engine.New(a.executor, a.memory, a.router, func(o *engine.Options) {
		o.Logger = a.logger
		o.ContextWindow = cfg.Engine.ContextWindow
		o.MaxConcurrentDispatches = cfg.Engine.MaxConcurrentDispatches
		o.InvocationPrefixes = cfg.Engine.InvocationPrefixes
		o.SystemPrompt = cfg.Engine.SystemPrompt
		o.Callbacks = opts.Callbacks
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.logger.Info("agentrelay.started",
		"fast_store", cfg.Memory.Fast,
		"durable_store", cfg.Memory.Durable,
		"providers", len(entries),
		"capabilities", a.registry.Len(),
	)
	return a, nil
}

func newLogger(cfg config.LogConfig, out io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidArgument, err)
	}
	if out == nil {
		out = os.Stderr
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Format,
		Backend:   logging.Backend(cfg.Backend),
		Output:    out,
		Component: "agentrelay",
	}), nil
}

func (a *AgentRelay) openMemory(ctx context.Context, opts Options) error {
	mc := a.cfg.Memory

	fast := opts.FastStore
	if fast == nil {
		switch mc.Fast {
		case config.BackendRedis:
			s := redis.NewStore(mc.Redis.Addr, mc.Redis.Password, mc.Redis.DB, func(o *redis.Options) {
				if mc.Redis.KeyPrefix != "" {
					o.KeyPrefix = mc.Redis.KeyPrefix
				}
				o.MaxMessages = mc.MaxShortTermMessages
				o.TTL = mc.ShortTermTTL.Std()
			})
			a.closers = append(a.closers, s)
			if err := ping(ctx, s, mc.OpTimeout.Std()); err != nil {
				logging.LogStoreFailure(a.logger, memory.StoreFast, "ping", "", err)
			}
			fast = s
		default:
			fast = memory.NewInMemoryFastStore(func(o *memory.InMemoryFastStoreOptions) {
				o.MaxMessages = mc.MaxShortTermMessages
				o.TTL = mc.ShortTermTTL.Std()
			})
		}
	}

	durable := opts.DurableStore
	if durable == nil {
		switch mc.Durable {
		case config.BackendSQLite:
			s, err := sqlite.Open(mc.SQLite.Path)
			if err != nil {
				return err
			}
			a.closers = append(a.closers, s)
			durable = s
		default:
			durable = memory.NewInMemoryDurableStore()
		}
	}

	a.execLog = opts.ExecutionLog
	if a.execLog == nil {
		if l, ok := durable.(core.ExecutionLog); ok {
			a.execLog = l
		}
	}

	m, err := memory.NewManager(fast, durable, func(o *memory.ManagerOptions) {
		o.Logger = a.logger
		if d := mc.OpTimeout.Std(); d > 0 {
			o.OpTimeout = d
		}
	})
	if err != nil {
		return err
	}
	a.memory = m
	return nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

func ping(ctx context.Context, p pinger, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return p.Ping(ctx)
}

// Dispatch handles one incoming message for the session.
func (a *AgentRelay) Dispatch(ctx context.Context, sessionID, text string) engine.Reply {
	return a.engine.Dispatch(ctx, sessionID, text)
}

// ListCapabilities returns the registered capability descriptors ordered by name.
func (a *AgentRelay) ListCapabilities() []plugin.Descriptor {
	return a.engine.ListCapabilities()
}

// AuditSession compares both memory tiers of a session.
func (a *AgentRelay) AuditSession(ctx context.Context, sessionID string) (memory.AuditReport, error) {
	return a.engine.AuditSession(ctx, sessionID)
}

// ResetSession clears both memory tiers of a session.
func (a *AgentRelay) ResetSession(ctx context.Context, sessionID string) memory.ResetResult {
	return a.engine.ResetSession(ctx, sessionID)
}

// Sessions lists the sessions known to the durable tier.
func (a *AgentRelay) Sessions(ctx context.Context) ([]string, error) {
	return a.engine.Sessions(ctx)
}

// ReadMemory returns the conversation of a session from the requested tier.
func (a *AgentRelay) ReadMemory(ctx context.Context, sessionID string, mode memory.Mode, limit int) ([]core.Message, error) {
	return a.memory.Read(ctx, sessionID, mode, limit)
}

// PluginLogs returns the newest capability invocations of a session.
func (a *AgentRelay) PluginLogs(ctx context.Context, sessionID string, limit int) ([]core.ExecutionRecord, error) {
	if a.execLog == nil {
		return nil, nil
	}
	return a.execLog.Executions(ctx, sessionID, limit)
}

// Engine exposes the underlying dispatch engine.
func (a *AgentRelay) Engine() *engine.Engine { return a.engine }

// Router exposes the provider chain.
func (a *AgentRelay) Router() *router.Router { return a.router }

// Close waits for background capability work and releases the stores opened
// by New. Stores passed through Options are left open.
func (a *AgentRelay) Close() error {
	if a.executor != nil {
		a.executor.Wait()
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil

	if s, ok := a.logger.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
	return errors.Join(errs...)
}
