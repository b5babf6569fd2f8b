// Package engine implements the dispatch orchestrator.
//
// For every incoming message the Engine
//
//  1. acquires a concurrency slot and the per-session lock,
//  2. appends the user message to memory (both tiers, degrading gracefully),
//  3. either runs a capability module when the message starts with an
//     invocation marker ("run <plugin> <input>") or hands the recent
//     conversation window to the provider fallback chain,
//  4. appends the reply and returns it.
//
// Dispatch never fails outright. Capability failures, provider exhaustion and
// store outages are reflected in Reply.Path, Reply.Status and Reply.Degraded
// while the user receives a safe, natural-language text.
//
// A malformed invocation ("run" without a capability name) yields a usage
// reply. The user message is still persisted but no assistant message is
// appended for it.
//
// Lifecycle callbacks (BeforeDispatch, AfterCapability, AfterProvider,
// AfterDispatch, OnError) can be registered with AddCallback.
package engine
