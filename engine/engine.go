package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/internal/util"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/memory"
	"github.com/hupe1980/agentrelay/plugin"
	"github.com/hupe1980/agentrelay/router"
	"github.com/hupe1980/agentrelay/session"
)

// DefaultSessionID is used when a dispatch carries no session ID.
const DefaultSessionID = "default"

// Canned replies. Only not-found and usage replies name user input; the other
// failure replies never carry internal detail.
const (
	DefaultUsageReply    = "Usage: run <plugin> <input>"
	DefaultRejectedReply = "Your request could not be processed."
	DefaultBusyReply     = "The assistant is busy, please try again."
)

// Executor runs capability modules.
type Executor interface {
	Execute(ctx context.Context, name string, in plugin.Input) plugin.Result
	Registry() *plugin.Registry
}

// Memory is the conversation store used by the engine.
type Memory interface {
	Append(ctx context.Context, sessionID string, role core.Role, content string) (memory.AppendResult, error)
	Read(ctx context.Context, sessionID string, mode memory.Mode, limit int) ([]core.Message, error)
	Reset(ctx context.Context, sessionID string) memory.ResetResult
	Audit(ctx context.Context, sessionID string) (memory.AuditReport, error)
	Sessions(ctx context.Context) ([]string, error)
}

// Generator produces a completion from a message window.
type Generator interface {
	Generate(ctx context.Context, msgs []core.Message) (router.Result, error)
}

// Options configures an Engine.
type Options struct {
	// Logger defaults to a no-op logger.
	Logger logging.Logger

	// ContextWindow is the number of recent messages handed to the provider chain.
	ContextWindow int

	// MaxConcurrentDispatches bounds in-flight dispatches across all sessions.
	MaxConcurrentDispatches int64

	// InvocationPrefixes are the capability markers, matched case-insensitively.
	InvocationPrefixes []string

	// SystemPrompt is a text/template rendered per dispatch with the keys
	// session_id and capabilities. Empty disables the system message.
	SystemPrompt string

	UsageReply    string
	RejectedReply string
	BusyReply     string

	// Callbacks are registered at construction.
	Callbacks []Callback
}

// PathKind classifies how a reply was produced.
type PathKind string

const (
	PathCapability PathKind = "capability"
	PathProvider   PathKind = "provider"
	PathExhausted  PathKind = "exhausted"
	PathUsage      PathKind = "usage"
	PathNotFound   PathKind = "not_found"
	PathRejected   PathKind = "rejected"
)

// Path describes the route a dispatch took.
type Path struct {
	Kind PathKind `json:"kind"`
	// Name is the capability or provider name.
	Name string `json:"name,omitempty"`
	// Model is set for provider paths.
	Model string `json:"model,omitempty"`
}

// Reply is the outcome of a dispatch. It is always populated, failures are
// expressed in Path and Status and in the user-safe Text.
type Reply struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id"`
	Path      Path   `json:"path"`
	// Status is the capability status for capability and not-found paths.
	Status plugin.Status `json:"status,omitempty"`
	// Degraded reports that a memory tier failed during the dispatch.
	Degraded bool `json:"degraded"`
	// Attempts lists the failed provider attempts, in chain order.
	Attempts []router.Attempt `json:"attempts,omitempty"`
	// Err holds the internal failure, if any. It is never shown to the user.
	Err error `json:"-"`
}

// PathTaken returns the capability or provider that produced the reply,
// "exhausted" when the provider chain failed, or the path kind otherwise.
func (r Reply) PathTaken() string {
	switch r.Path.Kind {
	case PathCapability, PathProvider:
		return r.Path.Name
	}
	return string(r.Path.Kind)
}

// Engine routes each incoming message to a capability module or to the
// provider chain and keeps the conversation in memory.
//
// Concurrency model:
//   - at most MaxConcurrentDispatches dispatches run at once
//   - dispatches, resets and audits of one session are serialized
//   - different sessions proceed independently
type Engine struct {
	exec      Executor
	mem       Memory
	gen       Generator
	locks     *session.Locker
	sem       *semaphore.Weighted
	prompt    *util.Template
	callbacks *CallbackManager
	opts      Options
}

// New creates an Engine. All collaborators are required.
func New(exec Executor, mem Memory, gen Generator, optFns ...func(o *Options)) (*Engine, error) {
	opts := Options{
		Logger:                  logging.NoOpLogger{},
		ContextWindow:           10,
		MaxConcurrentDispatches: 10,
		InvocationPrefixes:      DefaultInvocationPrefixes,
		UsageReply:              DefaultUsageReply,
		RejectedReply:           DefaultRejectedReply,
		BusyReply:               DefaultBusyReply,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	switch {
	case exec == nil:
		return nil, fmt.Errorf("%w: nil executor", core.ErrInvalidArgument)
	case mem == nil:
		return nil, fmt.Errorf("%w: nil memory", core.ErrInvalidArgument)
	case gen == nil:
		return nil, fmt.Errorf("%w: nil generator", core.ErrInvalidArgument)
	case opts.ContextWindow <= 0:
		return nil, fmt.Errorf("%w: context window must be positive", core.ErrInvalidArgument)
	case opts.MaxConcurrentDispatches <= 0:
		return nil, fmt.Errorf("%w: max concurrent dispatches must be positive", core.ErrInvalidArgument)
	}

	prompt, err := util.ParseTemplate("system", opts.SystemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: system prompt: %w", core.ErrInvalidArgument, err)
	}

	e := &Engine{
		exec:      exec,
		mem:       mem,
		gen:       gen,
		locks:     session.NewLocker(),
		sem:       semaphore.NewWeighted(opts.MaxConcurrentDispatches),
		prompt:    prompt,
		callbacks: NewCallbackManager(),
		opts:      opts,
	}
	for _, cb := range opts.Callbacks {
		e.AddCallback(cb)
	}
	return e, nil
}

// AddCallback registers a lifecycle callback.
func (e *Engine) AddCallback(cb Callback) {
	e.callbacks.RegisterCallback(cb)
}

// Dispatch handles one user message and returns the reply. It never returns
// an error; failures are described by the reply.
func (e *Engine) Dispatch(ctx context.Context, sessionID, text string) Reply {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	start := time.Now()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return e.reject(sessionID, e.opts.BusyReply, err)
	}
	defer e.sem.Release(1)

	unlock, err := e.locks.Lock(ctx, sessionID)
	if err != nil {
		return e.reject(sessionID, e.opts.BusyReply, err)
	}
	defer unlock()

	cc := &CallbackContext{SessionID: sessionID, Text: text, Metadata: map[string]any{}}
	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackBeforeDispatch, cc); err != nil {
		e.opts.Logger.Warn("engine.dispatch.rejected", "session_id", sessionID, "error", err.Error())
		return e.reject(sessionID, e.opts.RejectedReply, err)
	}

	reply := Reply{SessionID: sessionID}

	in, err := e.mem.Append(ctx, sessionID, core.RoleUser, text)
	reply.Degraded = in.Degraded()
	if err != nil {
		e.opts.Logger.Error("engine.memory.append_failed", "session_id", sessionID, "role", string(core.RoleUser), "error", err.Error())
	}

	inv, ok, perr := ParseInvocation(text, e.opts.InvocationPrefixes)
	switch {
	case perr != nil:
		reply.Text = e.opts.UsageReply
		reply.Path = Path{Kind: PathUsage}
		reply.Err = perr
		e.finish(ctx, cc, &reply, start)
		return reply
	case ok:
		e.invoke(ctx, cc, inv, &reply)
	default:
		e.generate(ctx, cc, in.Message, &reply)
	}

	out, err := e.mem.Append(ctx, sessionID, core.RoleAssistant, reply.Text)
	if out.Degraded() {
		reply.Degraded = true
	}
	if err != nil {
		e.opts.Logger.Error("engine.memory.append_failed", "session_id", sessionID, "role", string(core.RoleAssistant), "error", err.Error())
	}

	e.finish(ctx, cc, &reply, start)
	return reply
}

func (e *Engine) invoke(ctx context.Context, cc *CallbackContext, inv Invocation, reply *Reply) {
	res := e.exec.Execute(ctx, inv.Name, plugin.Input{Text: inv.Input, SessionID: reply.SessionID})

	reply.Status = res.Status
	reply.Err = res.Err
	reply.Path = Path{Kind: PathCapability, Name: res.Plugin}

	switch res.Status {
	case plugin.StatusOK:
		reply.Text = res.Output.String()
	case plugin.StatusNotFound:
		reply.Path.Kind = PathNotFound
		reply.Text = fmt.Sprintf("Capability %q not found.", inv.Name)
	case plugin.StatusInitFailed:
		reply.Text = fmt.Sprintf("Capability %q could not be started.", res.Plugin)
	case plugin.StatusTimeout:
		reply.Text = fmt.Sprintf("Capability %q timed out.", res.Plugin)
	default:
		reply.Text = fmt.Sprintf("Capability %q failed.", res.Plugin)
	}

	cc.Capability = &res
	e.runCallbacks(ctx, CallbackAfterCapability, cc)
	if !res.OK() {
		cc.Err = res.Err
		e.runCallbacks(ctx, CallbackOnError, cc)
	}
}

func (e *Engine) generate(ctx context.Context, cc *CallbackContext, current core.Message, reply *Reply) {
	window, err := e.mem.Read(ctx, reply.SessionID, memory.ModeShort, e.opts.ContextWindow)
	if err != nil {
		reply.Degraded = true
		e.opts.Logger.Error("engine.memory.read_failed", "session_id", reply.SessionID, "error", err.Error())
	}
	if n := len(window); n == 0 || window[n-1].ID != current.ID {
		// The fast tier missed the current turn.
		window = append(window[:n:n], current)
		if over := len(window) - e.opts.ContextWindow; over > 0 {
			window = window[over:]
		}
	}

	msgs := window
	if sys := e.systemPrompt(reply.SessionID); sys != "" {
		msgs = append([]core.Message{core.NewMessage(core.RoleSystem, sys)}, window...)
	}

	res, err := e.gen.Generate(ctx, msgs)
	reply.Text = res.Text
	reply.Attempts = res.Attempts
	reply.Err = err
	if res.Exhausted {
		reply.Path = Path{Kind: PathExhausted}
	} else {
		reply.Path = Path{Kind: PathProvider, Name: res.Provider, Model: res.Model}
	}

	cc.Provider = &res
	e.runCallbacks(ctx, CallbackAfterProvider, cc)
	if err != nil {
		cc.Err = err
		e.runCallbacks(ctx, CallbackOnError, cc)
	}
}

func (e *Engine) systemPrompt(sessionID string) string {
	text, err := e.prompt.Render(map[string]any{
		"session_id":   sessionID,
		"capabilities": e.exec.Registry().Names(),
	})
	if err != nil {
		e.opts.Logger.Warn("engine.prompt.render_failed", "session_id", sessionID, "error", err.Error())
		return ""
	}
	return text
}

func (e *Engine) finish(ctx context.Context, cc *CallbackContext, reply *Reply, start time.Time) {
	cc.Reply = reply
	e.runCallbacks(ctx, CallbackAfterDispatch, cc)

	args := []any{
		"session_id", reply.SessionID,
		"path", string(reply.Path.Kind),
		"name", reply.Path.Name,
		"degraded", reply.Degraded,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if reply.Err != nil && !errors.Is(reply.Err, core.ErrMalformedInvocation) {
		e.opts.Logger.Warn("engine.dispatch.completed", append(args, "error", reply.Err.Error())...)
		return
	}
	e.opts.Logger.Info("engine.dispatch.completed", args...)
}

func (e *Engine) runCallbacks(ctx context.Context, t CallbackType, cc *CallbackContext) {
	if err := e.callbacks.ExecuteCallbacks(ctx, t, cc); err != nil {
		e.opts.Logger.Warn("engine.callback.failed", "session_id", cc.SessionID, "callback", string(t), "error", err.Error())
	}
}

func (e *Engine) reject(sessionID, text string, err error) Reply {
	return Reply{
		Text:      text,
		SessionID: sessionID,
		Path:      Path{Kind: PathRejected},
		Err:       err,
	}
}

// ListCapabilities returns the registered capability descriptors sorted by name.
func (e *Engine) ListCapabilities() []plugin.Descriptor {
	return e.exec.Registry().List()
}

// AuditSession returns both memory tiers of a session side by side.
func (e *Engine) AuditSession(ctx context.Context, sessionID string) (memory.AuditReport, error) {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	unlock, err := e.locks.Lock(ctx, sessionID)
	if err != nil {
		return memory.AuditReport{}, err
	}
	defer unlock()
	return e.mem.Audit(ctx, sessionID)
}

// ResetSession clears both memory tiers of a session.
func (e *Engine) ResetSession(ctx context.Context, sessionID string) memory.ResetResult {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	unlock, err := e.locks.Lock(ctx, sessionID)
	if err != nil {
		return memory.ResetResult{SessionID: sessionID, ShortErr: err, LongErr: err}
	}
	defer unlock()
	return e.mem.Reset(ctx, sessionID)
}

// Sessions lists the known session IDs.
func (e *Engine) Sessions(ctx context.Context) ([]string, error) {
	return e.mem.Sessions(ctx)
}
