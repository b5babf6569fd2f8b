package core

import (
	"errors"
	"fmt"
)

// Request-time error taxonomy.
var (
	// ErrStoreUnavailable signals that a backing memory store could not serve
	// an operation. The memory manager absorbs it whenever a fallback exists.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrCapabilityNotFound is returned for invocations naming an unregistered capability.
	ErrCapabilityNotFound = errors.New("capability not found")
	// ErrCapabilityInitFailed is returned when a capability fails to initialize.
	ErrCapabilityInitFailed = errors.New("capability initialization failed")
	// ErrCapabilityExecFailed is returned when a capability's Execute fails or panics.
	ErrCapabilityExecFailed = errors.New("capability execution failed")
	// ErrCapabilityTimeout is returned when a capability exceeds its deadline.
	ErrCapabilityTimeout = errors.New("capability timed out")
	// ErrAllProvidersExhausted is returned when every provider chain entry failed.
	ErrAllProvidersExhausted = errors.New("all providers exhausted")
	// ErrMalformedInvocation is returned for a capability marker without name or argument.
	ErrMalformedInvocation = errors.New("malformed capability invocation")
)

// Configuration-time errors. These are fatal at startup.
var (
	// ErrDuplicateCapability is returned when a capability name is registered twice.
	ErrDuplicateCapability = errors.New("capability already registered")
	// ErrEmptyProviderChain is returned when no completion provider is configured.
	ErrEmptyProviderChain = errors.New("provider chain is empty")
	// ErrInvalidArgument is returned for invalid inputs (empty IDs, unknown roles).
	ErrInvalidArgument = errors.New("invalid argument")
)

// StoreError describes a failed operation against one memory tier.
type StoreError struct {
	Store string `json:"store"` // "fast" or "durable"
	Op    string `json:"op"`    // push, range, insert, query, delete, count...
	Err   error  `json:"-"`
}

// NewStoreError wraps err as a StoreError.
func NewStoreError(store, op string, err error) *StoreError {
	return &StoreError{Store: store, Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s store %s: %v", e.Store, e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StoreError) Unwrap() error { return e.Err }

// Is makes every StoreError match ErrStoreUnavailable.
func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }
