// Package model defines the provider-agnostic abstractions for obtaining a
// completion from a language model inside AgentRelay.
//
// Core goals:
//   - Hide vendor SDKs behind a single synchronous Provider interface
//   - Classify failures (timeout, transport, auth, empty response) through
//     ProviderError so the router can decide whether to advance
//   - Facilitate lightweight mocking for tests (MockProvider)
//
// Adapters live in subpackages: openai (also Azure OpenAI), anthropic,
// gemini and ollama.
package model
