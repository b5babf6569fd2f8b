// Package session provides per-session coordination primitives.
//
// Locker serializes work on a single session ID (append user turn, dispatch,
// append reply) while letting different sessions proceed concurrently. Locks
// are reference counted so idle sessions do not accumulate entries.
package session
