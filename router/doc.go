// Package router implements the provider fallback chain.
//
// A Router holds a static, priority-ordered list of model.Provider entries.
// Generate tries them in order with a per-call timeout and returns the first
// non-empty completion. Timeouts, transport failures, authentication errors
// and empty responses advance to the next entry. When the chain is exhausted
// the caller receives a fixed, user-safe reply together with
// core.ErrAllProvidersExhausted.
//
// An optional circuit breaker per entry skips providers that keep failing
// until a cooldown has elapsed.
package router
