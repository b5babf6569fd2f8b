package plugin

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
)

// Result is the tagged outcome of Executor.Execute. Output is meaningful only
// when Status is StatusOK; otherwise Err holds a *Error.
type Result struct {
	Status   Status
	Plugin   string
	Output   Output
	Err      error
	Duration time.Duration
}

// OK reports whether the invocation succeeded.
func (r Result) OK() bool { return r.Status == StatusOK }

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	// Timeout bounds Initialize+Execute when the caller's context has no
	// earlier deadline. Zero disables the executor's own bound.
	Timeout time.Duration
	// ShutdownTimeout bounds Shutdown, which runs detached from the caller's
	// cancellation.
	ShutdownTimeout time.Duration
	Logger          logging.Logger
	// Recorder, when set, receives one record per invocation.
	Recorder core.ExecutionLog
	// MaxRecordedOutput truncates recorded outputs (bytes). Zero keeps everything.
	MaxRecordedOutput int
}

// Executor runs registered plugins through their lifecycle.
//
// Each invocation is Initialize → Execute → Shutdown. Execute runs only after
// a successful Initialize. Shutdown is attempted on every path, including a
// failed Initialize, an Execute error, a panic or a timeout. Invocations of
// the same registered instance are serialized.
type Executor struct {
	registry *Registry
	opts     ExecutorOptions

	mu    sync.Mutex
	slots map[string]chan struct{}
	wg    sync.WaitGroup
}

// NewExecutor creates an Executor over registry.
func NewExecutor(registry *Registry, optFns ...func(o *ExecutorOptions)) *Executor {
	opts := ExecutorOptions{
		Timeout:           30 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		Logger:            logging.NoOpLogger{},
		MaxRecordedOutput: 64 * 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	return &Executor{
		registry: registry,
		opts:     opts,
		slots:    make(map[string]chan struct{}),
	}
}

// Registry returns the underlying registry.
func (e *Executor) Registry() *Registry { return e.registry }

type outcome struct {
	status Status
	output Output
	err    error
}

// Execute runs the plugin registered under name. It never panics and always
// returns; a timeout is reported as soon as the deadline passes while the
// module's goroutine is left to finish and shut down in the background.
func (e *Executor) Execute(ctx context.Context, name string, in Input) Result {
	start := time.Now()
	name = strings.ToLower(strings.TrimSpace(name))

	p, ok := e.registry.Get(name)
	if !ok {
		res := Result{
			Status: StatusNotFound,
			Plugin: name,
			Err:    NewError(name, StatusNotFound, nil),
		}
		e.finish(ctx, in, &res, start)
		return res
	}

	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	slot := e.slot(name)
	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		res := Result{
			Status: StatusTimeout,
			Plugin: name,
			Err:    NewError(name, StatusTimeout, fmt.Errorf("waiting for instance: %w", ctx.Err())),
		}
		e.finish(ctx, in, &res, start)
		return res
	}

	done := make(chan outcome, 1)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() { <-slot }()
		done <- e.run(ctx, name, p, in)
	}()

	var res Result
	select {
	case o := <-done:
		res = Result{Status: o.status, Plugin: name, Output: o.output}
		if o.status != StatusOK {
			res.Err = NewError(name, o.status, o.err)
		}
	case <-ctx.Done():
		res = Result{
			Status: StatusTimeout,
			Plugin: name,
			Err:    NewError(name, StatusTimeout, ctx.Err()),
		}
	}
	e.finish(ctx, in, &res, start)
	return res
}

// Wait blocks until every invocation goroutine, including abandoned ones
// still shutting down, has returned.
func (e *Executor) Wait() { e.wg.Wait() }

// run drives one lifecycle. It executes on its own goroutine.
func (e *Executor) run(ctx context.Context, name string, p Plugin, in Input) (o outcome) {
	defer e.shutdown(ctx, name, p)

	defer func() {
		if r := recover(); r != nil {
			e.opts.Logger.Error("plugin.panic", "plugin", name, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			o = outcome{status: StatusExecFailed, err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if err := p.Initialize(ctx); err != nil {
		if isDeadline(ctx, err) {
			return outcome{status: StatusTimeout, err: err}
		}
		return outcome{status: StatusInitFailed, err: err}
	}

	out, err := p.Execute(ctx, in)
	if err != nil {
		if isDeadline(ctx, err) {
			return outcome{status: StatusTimeout, err: err}
		}
		return outcome{status: StatusExecFailed, err: err}
	}
	return outcome{status: StatusOK, output: out}
}

func (e *Executor) shutdown(ctx context.Context, name string, p Plugin) {
	sctx := context.WithoutCancel(ctx)
	if e.opts.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(sctx, e.opts.ShutdownTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			e.opts.Logger.Error("plugin.shutdown.panic", "plugin", name, "panic", fmt.Sprint(r))
		}
	}()

	if err := p.Shutdown(sctx); err != nil {
		e.opts.Logger.Warn("plugin.shutdown.failed", "plugin", name, "error", err.Error())
	}
}

func (e *Executor) finish(ctx context.Context, in Input, res *Result, start time.Time) {
	res.Duration = time.Since(start)
	logging.LogCapabilityCall(e.opts.Logger, res.Plugin, in.SessionID, string(res.Status), res.Duration, res.Err)

	if e.opts.Recorder == nil {
		return
	}
	output := res.Output.String()
	if res.Err != nil {
		output = res.Err.Error()
	}
	if max := e.opts.MaxRecordedOutput; max > 0 && len(output) > max {
		output = output[:max]
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := e.opts.Recorder.RecordExecution(rctx, core.ExecutionRecord{
		ID:        core.NewID(),
		SessionID: in.SessionID,
		Plugin:    res.Plugin,
		Input:     in.Text,
		Output:    output,
		Status:    string(res.Status),
		Duration:  res.Duration,
		Timestamp: start.UTC(),
	}); err != nil {
		e.opts.Logger.Warn("plugin.record.failed", "plugin", res.Plugin, "error", err.Error())
	}
}

func (e *Executor) slot(name string) chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.slots[name]
	if !ok {
		s = make(chan struct{}, 1)
		e.slots[name] = s
	}
	return s
}

func isDeadline(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
}
