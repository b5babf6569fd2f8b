// Package logging provides a minimal logging interface and adapters for AgentRelay.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the memory manager, plugin executor, router and engine use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - ZapAdapter wrapping go.uber.org/zap for deployments already standardized on zap
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json"})
//	relay, err := agentrelay.New(cfg, func(o *agentrelay.Options) { o.Logger = logger })
//
// Arguments after the message are slog style key/value pairs.
package logging
