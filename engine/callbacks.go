package engine

import (
	"context"
	"sync"

	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/plugin"
	"github.com/hupe1980/agentrelay/router"
)

// CallbackType defines the lifecycle points of a dispatch where callbacks run.
//
// Available callback types:
//   - BeforeDispatch: after the session lock is held, before anything is persisted
//   - AfterCapability: after a capability invocation, whatever its status
//   - AfterProvider: after the provider chain produced a result
//   - AfterDispatch: after the reply has been persisted
//   - OnError: when a capability failed or the provider chain was exhausted
//
// Callbacks are executed synchronously. Only a BeforeDispatch callback can
// influence the flow: returning an error rejects the request. Errors from the
// other types are logged.
type CallbackType string

const (
	CallbackBeforeDispatch  CallbackType = "before_dispatch"
	CallbackAfterCapability CallbackType = "after_capability"
	CallbackAfterProvider   CallbackType = "after_provider"
	CallbackAfterDispatch   CallbackType = "after_dispatch"
	CallbackOnError         CallbackType = "on_error"
)

// CallbackContext carries the state of the dispatch a callback runs for.
// Fields that do not apply to a callback type are left zero.
type CallbackContext struct {
	CallbackType CallbackType

	SessionID string
	// Text is the incoming user message.
	Text string

	// Capability is set for AfterCapability and capability OnError callbacks.
	Capability *plugin.Result
	// Provider is set for AfterProvider and exhausted OnError callbacks.
	Provider *router.Result
	// Reply is set for AfterDispatch callbacks.
	Reply *Reply
	// Err is the failure reported to OnError callbacks.
	Err error

	// Metadata provides extensible storage shared by the callbacks of one dispatch.
	Metadata map[string]any
}

// Callback is a dispatch lifecycle hook.
//
// Implementations should be fast; they run on the request path while the
// session lock is held.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	audit := NewFunctionCallback(
//	    CallbackAfterDispatch,
//	    func(ctx context.Context, cc *CallbackContext) error {
//	        log.Printf("%s -> %s", cc.SessionID, cc.Reply.PathTaken())
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager routes callbacks by type. Callbacks of one type run in
// registration order and the first error stops the remaining ones.
//
// The manager is safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// Len returns the number of callbacks registered for callbackType.
func (cm *CallbackManager) Len(callbackType CallbackType) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.callbacks[callbackType])
}

// ExecuteCallbacks executes all registered callbacks for the specified type
// and returns the first error.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	cm.mu.RLock()
	callbacks := cm.callbacks[callbackType]
	cm.mu.RUnlock()

	callbackCtx.CallbackType = callbackType
	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}

	return nil
}

// LoggingCallback writes one structured log line per lifecycle event.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logging.OrNoOp(logger),
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the event with the fields that apply to its type.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	args := []any{"callback", string(c.callbackType), "session_id", callbackCtx.SessionID}
	if r := callbackCtx.Capability; r != nil {
		args = append(args, "plugin", r.Plugin, "status", string(r.Status))
	}
	if r := callbackCtx.Provider; r != nil {
		args = append(args, "provider", r.Provider, "model", r.Model, "exhausted", r.Exhausted)
	}
	if r := callbackCtx.Reply; r != nil {
		args = append(args, "path", r.PathTaken(), "degraded", r.Degraded)
	}
	if callbackCtx.Err != nil {
		args = append(args, "error", callbackCtx.Err.Error())
	}
	c.logger.Info("engine.callback", args...)
	return nil
}

// InputValidationCallback rejects dispatches whose text fails validation.
//
// Example:
//
//	maxLen := NewInputValidationCallback(func(text string) error {
//	    if len(text) > 4096 {
//	        return errors.New("message too long")
//	    }
//	    return nil
//	})
type InputValidationCallback struct {
	validator func(text string) error
}

// NewInputValidationCallback creates a BeforeDispatch validation callback.
func NewInputValidationCallback(validator func(text string) error) *InputValidationCallback {
	return &InputValidationCallback{validator: validator}
}

// Type returns CallbackBeforeDispatch.
func (c *InputValidationCallback) Type() CallbackType {
	return CallbackBeforeDispatch
}

// Execute runs the validator against the incoming text.
func (c *InputValidationCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.validator == nil {
		return nil
	}
	return c.validator(callbackCtx.Text)
}
