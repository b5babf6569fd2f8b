// Package core provides the foundational domain types and contracts shared by
// every AgentRelay package. It defines:
//
//   - Messages (immutable, role tagged conversation records)
//   - Store contracts for the two memory tiers (FastStore, DurableStore)
//   - The plugin execution log contract (ExecutionLog / ExecutionRecord)
//   - The error taxonomy used across memory, plugin, router and engine
//
// The package intentionally keeps implementation concerns (Redis, SQLite,
// vendor SDKs, orchestration) out of scope, exposing small interfaces so that
// backends can be swapped at wiring time without touching calling code.
package core
