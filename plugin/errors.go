package plugin

import (
	"fmt"

	"github.com/hupe1980/agentrelay/core"
)

// Status classifies the outcome of one invocation.
type Status string

const (
	StatusOK         Status = "ok"
	StatusNotFound   Status = "not_found"
	StatusInitFailed Status = "init_failed"
	StatusExecFailed Status = "exec_failed"
	StatusTimeout    Status = "timeout"
)

// Sentinel returns the core error matching the status, or nil for StatusOK.
func (s Status) Sentinel() error {
	switch s {
	case StatusNotFound:
		return core.ErrCapabilityNotFound
	case StatusInitFailed:
		return core.ErrCapabilityInitFailed
	case StatusExecFailed:
		return core.ErrCapabilityExecFailed
	case StatusTimeout:
		return core.ErrCapabilityTimeout
	default:
		return nil
	}
}

// Error represents a failed invocation. It matches both the status sentinel
// and the underlying cause with errors.Is.
type Error struct {
	Plugin string `json:"plugin"`
	Status Status `json:"status"`
	Err    error  `json:"-"`
}

// NewError creates a new Error.
func NewError(plugin string, status Status, cause error) *Error {
	return &Error{Plugin: plugin, Status: status, Err: cause}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("plugin error [%s] in %s", e.Status, e.Plugin)
	}
	return fmt.Sprintf("plugin error [%s] in %s: %v", e.Status, e.Plugin, e.Err)
}

// Unwrap exposes the status sentinel and the cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Status.Sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
