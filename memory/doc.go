// Package memory implements the dual-tier session memory of AgentRelay.
//
// The store contracts (core.FastStore, core.DurableStore) reside in the core
// package. Manager coordinates one store of each kind:
//
//   - Append writes to the fast tier, then the durable tier. One failing
//     tier degrades the write, it does not fail it.
//   - Read serves ModeShort from the fast tier and ModeLong from the durable
//     tier, each falling back to the other.
//   - Reset clears both tiers and reports a partial outcome honestly.
//   - Audit returns both tiers side by side for inspection.
//
// The in-memory stores in this package are used for tests and single-process
// setups. Production adapters live in the redis and sqlite subpackages and are
// selected at wiring time.
package memory
