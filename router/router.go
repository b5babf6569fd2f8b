package router

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/model"
)

// DefaultTerminalReply is returned to the user when every chain entry failed.
const DefaultTerminalReply = "Sorry, no language model is available right now. Please try again later."

// ErrCircuitOpen is recorded for an entry skipped by its circuit breaker.
var ErrCircuitOpen = errors.New("circuit open")

// Entry is one element of the provider chain.
type Entry struct {
	Provider model.Provider
	// Model overrides the provider's configured model when non-empty.
	Model string
	// Priority orders the chain, lowest first. Equal priorities keep their
	// configured order.
	Priority int
	// Timeout bounds a single call. Zero uses Options.DefaultTimeout.
	Timeout time.Duration
}

// Name returns "provider/model" for logging.
func (e Entry) Name() string {
	return fmt.Sprintf("%s/%s", e.Provider.Info().Provider, e.modelName())
}

func (e Entry) modelName() string {
	if e.Model != "" {
		return e.Model
	}
	return e.Provider.Info().Name
}

// Attempt records one failed (or skipped) chain entry.
type Attempt struct {
	Provider string          `json:"provider"`
	Model    string          `json:"model"`
	Kind     model.ErrorKind `json:"kind"`
	Err      error           `json:"-"`
	Skipped  bool            `json:"skipped,omitempty"`
	Duration time.Duration   `json:"duration"`
}

// Result is the outcome of Generate.
type Result struct {
	Text      string    `json:"text"`
	Provider  string    `json:"provider,omitempty"`
	Model     string    `json:"model,omitempty"`
	Attempts  []Attempt `json:"attempts,omitempty"`
	Exhausted bool      `json:"exhausted"`
}

// Options configures a Router.
type Options struct {
	DefaultTimeout time.Duration
	Logger         logging.Logger
	TerminalReply  string
	// BreakerThreshold enables a per-entry circuit breaker when > 0.
	BreakerThreshold int
	BreakerCooldown  time.Duration
	// Clock is used by the circuit breakers.
	Clock func() time.Time
}

// Router tries a static chain of providers until one returns usable text.
type Router struct {
	entries  []Entry
	breakers []*Breaker
	opts     Options
}

// New creates a Router. The chain must contain at least one entry.
func New(entries []Entry, optFns ...func(o *Options)) (*Router, error) {
	opts := Options{
		DefaultTimeout:  30 * time.Second,
		Logger:          logging.NoOpLogger{},
		TerminalReply:   DefaultTerminalReply,
		BreakerCooldown: 30 * time.Second,
		Clock:           time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	if len(entries) == 0 {
		return nil, core.ErrEmptyProviderChain
	}
	for i, e := range entries {
		if e.Provider == nil {
			return nil, fmt.Errorf("%w: chain entry %d has no provider", core.ErrInvalidArgument, i)
		}
	}

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	r := &Router{entries: sorted, opts: opts}
	if opts.BreakerThreshold > 0 {
		r.breakers = make([]*Breaker, len(sorted))
		for i := range sorted {
			r.breakers[i] = NewBreaker(opts.BreakerThreshold, opts.BreakerCooldown)
		}
	}
	return r, nil
}

// Entries returns the chain in the order it is tried.
func (r *Router) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Breaker returns the circuit breaker of chain entry i, or nil when breakers
// are disabled.
func (r *Router) Breaker(i int) *Breaker {
	if r.breakers == nil || i < 0 || i >= len(r.breakers) {
		return nil
	}
	return r.breakers[i]
}

// Generate walks the chain in order and returns the first usable completion.
// When every entry failed the result carries the terminal reply and the
// error matches core.ErrAllProvidersExhausted. Cancelling ctx stops the walk.
func (r *Router) Generate(ctx context.Context, msgs []core.Message) (Result, error) {
	var res Result

	for i, e := range r.entries {
		if err := ctx.Err(); err != nil {
			res.Text = r.opts.TerminalReply
			res.Exhausted = true
			return res, fmt.Errorf("%w: %w", core.ErrAllProvidersExhausted, err)
		}

		info := e.Provider.Info()
		modelName := e.modelName()

		if b := r.Breaker(i); b != nil && !b.Allow(r.opts.Clock()) {
			res.Attempts = append(res.Attempts, Attempt{
				Provider: info.Provider,
				Model:    modelName,
				Kind:     b.OpenedKind(),
				Err:      ErrCircuitOpen,
				Skipped:  true,
			})
			r.opts.Logger.Debug("provider.call.skipped", "provider", info.Provider, "model", modelName)
			continue
		}

		start := time.Now()
		resp, err := r.call(ctx, e, msgs)
		dur := time.Since(start)
		logging.LogProviderCall(r.opts.Logger, info.Provider, modelName, dur, err)

		if err == nil {
			if b := r.Breaker(i); b != nil {
				b.RecordSuccess()
			}
			res.Text = resp.Text
			res.Provider = info.Provider
			res.Model = modelName
			if resp.Model != "" {
				res.Model = resp.Model
			}
			return res, nil
		}

		kind := model.KindOf(err)
		if b := r.Breaker(i); b != nil {
			if kind == model.KindCanceled {
				b.RecordCanceled()
			} else {
				b.RecordFailure(kind, r.opts.Clock())
			}
		}
		res.Attempts = append(res.Attempts, Attempt{
			Provider: info.Provider,
			Model:    modelName,
			Kind:     kind,
			Err:      err,
			Duration: dur,
		})
	}

	r.opts.Logger.Error("provider.chain.exhausted", "attempts", len(res.Attempts))

	res.Text = r.opts.TerminalReply
	res.Exhausted = true
	return res, attemptsError(res.Attempts)
}

func (r *Router) call(ctx context.Context, e Entry, msgs []core.Message) (model.Response, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = r.opts.DefaultTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := e.Provider.Complete(cctx, model.Request{Messages: msgs, Model: e.Model})
	if err != nil {
		return model.Response{}, model.NewProviderError(e.Provider.Info().Provider, 0, err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return model.Response{}, model.NewProviderError(e.Provider.Info().Provider, 0, model.ErrEmptyResponse)
	}
	return resp, nil
}

func attemptsError(attempts []Attempt) error {
	errs := make([]error, 0, len(attempts)+1)
	errs = append(errs, core.ErrAllProvidersExhausted)
	for _, a := range attempts {
		errs = append(errs, fmt.Errorf("%s/%s: %w", a.Provider, a.Model, a.Err))
	}
	return errors.Join(errs...)
}
