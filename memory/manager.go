package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
)

// Mode selects which tier a Read is served from.
type Mode string

const (
	// ModeShort reads the recent window from the fast store.
	ModeShort Mode = "short"
	// ModeLong reads the history from the durable store.
	ModeLong Mode = "long"
)

// ParseMode converts "short" or "long" (case-insensitive) into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeShort:
		return ModeShort, nil
	case ModeLong:
		return ModeLong, nil
	default:
		return "", fmt.Errorf("%w: unknown memory mode %q", core.ErrInvalidArgument, s)
	}
}

// Store labels used in logs and StoreError values.
const (
	StoreFast    = "fast"
	StoreDurable = "durable"
)

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Logger logging.Logger
	// OpTimeout bounds every single store call.
	OpTimeout time.Duration
	// DefaultShortLimit is used by Read when the caller passes limit <= 0 in ModeShort.
	DefaultShortLimit int
	// Clock stamps new messages.
	Clock func() time.Time
}

// Manager coordinates the fast and durable memory tiers. Writes go to both,
// reads prefer one tier and fall back to the other. It holds no state of its
// own and is safe for concurrent use.
type Manager struct {
	fast    core.FastStore
	durable core.DurableStore
	opts    ManagerOptions
}

// NewManager creates a Manager over the given stores.
func NewManager(fast core.FastStore, durable core.DurableStore, optFns ...func(o *ManagerOptions)) (*Manager, error) {
	if fast == nil || durable == nil {
		return nil, fmt.Errorf("%w: memory manager requires both stores", core.ErrInvalidArgument)
	}

	opts := ManagerOptions{
		Logger:            logging.NoOpLogger{},
		OpTimeout:         2 * time.Second,
		DefaultShortLimit: 5,
		Clock:             func() time.Time { return time.Now().UTC() },
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	return &Manager{fast: fast, durable: durable, opts: opts}, nil
}

// AppendResult reports the per-tier outcome of Append.
type AppendResult struct {
	Message   core.Message
	ShortTerm bool
	LongTerm  bool
	ShortErr  error
	LongErr   error
}

// Degraded reports whether at least one tier rejected the write.
func (r AppendResult) Degraded() bool { return r.ShortErr != nil || r.LongErr != nil }

// Append records a message in both tiers. The fast write is attempted first
// and its failure never prevents the durable write. An error is returned only
// when neither tier accepted the message.
func (m *Manager) Append(ctx context.Context, sessionID string, role core.Role, content string) (AppendResult, error) {
	if sessionID == "" {
		return AppendResult{}, fmt.Errorf("%w: empty session id", core.ErrInvalidArgument)
	}
	if !role.Valid() {
		return AppendResult{}, fmt.Errorf("%w: unknown role %q", core.ErrInvalidArgument, role)
	}

	msg := core.NewMessage(role, content)
	msg.Timestamp = m.opts.Clock()

	res := AppendResult{Message: msg}

	if err := m.withTimeout(ctx, func(ctx context.Context) error {
		return m.fast.Push(ctx, sessionID, msg)
	}); err != nil {
		res.ShortErr = core.NewStoreError(StoreFast, "push", err)
		logging.LogStoreFailure(m.opts.Logger, StoreFast, "push", sessionID, err)
	} else {
		res.ShortTerm = true
	}

	if err := m.withTimeout(ctx, func(ctx context.Context) error {
		return m.durable.Insert(ctx, sessionID, msg)
	}); err != nil {
		res.LongErr = core.NewStoreError(StoreDurable, "insert", err)
		logging.LogStoreFailure(m.opts.Logger, StoreDurable, "insert", sessionID, err)
	} else {
		res.LongTerm = true
	}

	if !res.ShortTerm && !res.LongTerm {
		return res, errors.Join(res.ShortErr, res.LongErr)
	}
	return res, nil
}

// Read returns messages ordered oldest to newest. ModeShort serves the last
// limit messages from the fast store and falls back to the durable store with
// the same window. ModeLong serves the durable history (limit <= 0 is
// unbounded) and falls back to the fast store window.
func (m *Manager) Read(ctx context.Context, sessionID string, mode Mode, limit int) ([]core.Message, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: empty session id", core.ErrInvalidArgument)
	}

	switch mode {
	case ModeShort:
		if limit <= 0 {
			limit = m.opts.DefaultShortLimit
		}
		msgs, fastErr := m.readFast(ctx, sessionID, limit)
		if fastErr == nil {
			return msgs, nil
		}
		logging.LogStoreFailure(m.opts.Logger, StoreFast, "range", sessionID, fastErr)

		msgs, durErr := m.readDurable(ctx, sessionID, limit)
		if durErr != nil {
			logging.LogStoreFailure(m.opts.Logger, StoreDurable, "query", sessionID, durErr)
			return nil, errors.Join(core.NewStoreError(StoreFast, "range", fastErr), core.NewStoreError(StoreDurable, "query", durErr))
		}
		m.opts.Logger.Info("memory.read.fallback", "session_id", sessionID, "mode", string(mode), "served_by", StoreDurable)
		return msgs, nil
	case ModeLong:
		msgs, durErr := m.readDurable(ctx, sessionID, limit)
		if durErr == nil {
			return msgs, nil
		}
		logging.LogStoreFailure(m.opts.Logger, StoreDurable, "query", sessionID, durErr)

		msgs, fastErr := m.readFast(ctx, sessionID, limit)
		if fastErr != nil {
			logging.LogStoreFailure(m.opts.Logger, StoreFast, "range", sessionID, fastErr)
			return nil, errors.Join(core.NewStoreError(StoreDurable, "query", durErr), core.NewStoreError(StoreFast, "range", fastErr))
		}
		m.opts.Logger.Warn("memory.read.degraded", "session_id", sessionID, "mode", string(mode), "served_by", StoreFast)
		return msgs, nil
	default:
		return nil, fmt.Errorf("%w: unknown memory mode %q", core.ErrInvalidArgument, mode)
	}
}

// ResetStatus summarizes the outcome of Reset.
type ResetStatus string

const (
	// ResetCleared means both tiers were cleared.
	ResetCleared ResetStatus = "cleared"
	// ResetPartial means exactly one tier was cleared.
	ResetPartial ResetStatus = "partial"
	// ResetFailed means neither tier was cleared.
	ResetFailed ResetStatus = "failed"
)

// ResetResult reports the per-tier outcome of Reset.
type ResetResult struct {
	SessionID    string `json:"session_id"`
	ShortCleared bool   `json:"short_cleared"`
	LongCleared  bool   `json:"long_cleared"`
	// Removed is the number of durable rows deleted.
	Removed  int64 `json:"removed"`
	ShortErr error `json:"-"`
	LongErr  error `json:"-"`
}

// Status classifies the result.
func (r ResetResult) Status() ResetStatus {
	switch {
	case r.ShortCleared && r.LongCleared:
		return ResetCleared
	case r.ShortCleared || r.LongCleared:
		return ResetPartial
	default:
		return ResetFailed
	}
}

// Err returns the combined tier errors, or nil.
func (r ResetResult) Err() error { return errors.Join(r.ShortErr, r.LongErr) }

// Reset clears the session in both tiers. Both deletions are attempted
// regardless of the other's outcome.
func (m *Manager) Reset(ctx context.Context, sessionID string) ResetResult {
	res := ResetResult{SessionID: sessionID}
	if sessionID == "" {
		err := fmt.Errorf("%w: empty session id", core.ErrInvalidArgument)
		res.ShortErr, res.LongErr = err, err
		return res
	}

	if err := m.withTimeout(ctx, func(ctx context.Context) error {
		return m.fast.Delete(ctx, sessionID)
	}); err != nil {
		res.ShortErr = core.NewStoreError(StoreFast, "delete", err)
		logging.LogStoreFailure(m.opts.Logger, StoreFast, "delete", sessionID, err)
	} else {
		res.ShortCleared = true
	}

	if err := m.withTimeout(ctx, func(ctx context.Context) error {
		n, err := m.durable.DeleteAll(ctx, sessionID)
		res.Removed = n
		return err
	}); err != nil {
		res.LongErr = core.NewStoreError(StoreDurable, "delete", err)
		logging.LogStoreFailure(m.opts.Logger, StoreDurable, "delete", sessionID, err)
	} else {
		res.LongCleared = true
	}

	m.opts.Logger.Info("memory.reset", "session_id", sessionID, "status", string(res.Status()), "removed", res.Removed)
	return res
}

// Counts holds the per-tier message counts of an AuditReport.
type Counts struct {
	Short int `json:"short"`
	Long  int `json:"long"`
}

// AuditReport is a side-by-side, unreconciled view of both tiers.
type AuditReport struct {
	SessionID string         `json:"session_id"`
	ShortTerm []core.Message `json:"short_term"`
	LongTerm  []core.Message `json:"long_term"`
	Counts    Counts         `json:"counts"`
	ShortErr  string         `json:"short_error,omitempty"`
	LongErr   string         `json:"long_error,omitempty"`
}

// Consistent reports whether both tiers hold the same message IDs in the same order.
func (r AuditReport) Consistent() bool {
	if r.ShortErr != "" || r.LongErr != "" || len(r.ShortTerm) != len(r.LongTerm) {
		return false
	}
	for i := range r.ShortTerm {
		if r.ShortTerm[i].ID != r.LongTerm[i].ID {
			return false
		}
	}
	return true
}

// Audit reads the complete content of both tiers concurrently. It has no side
// effects; an error is returned only when neither tier could be read.
func (m *Manager) Audit(ctx context.Context, sessionID string) (AuditReport, error) {
	if sessionID == "" {
		return AuditReport{}, fmt.Errorf("%w: empty session id", core.ErrInvalidArgument)
	}

	report := AuditReport{SessionID: sessionID, ShortTerm: []core.Message{}, LongTerm: []core.Message{}}

	var fastErr, durErr error

	// Per-tier failures are captured, not propagated, so one side never
	// cancels the other.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		msgs, err := m.readFast(gctx, sessionID, 0)
		if err != nil {
			fastErr = err
			return nil
		}
		report.ShortTerm = msgs
		report.Counts.Short = len(msgs)
		return nil
	})
	g.Go(func() error {
		msgs, err := m.readDurable(gctx, sessionID, 0)
		if err != nil {
			durErr = err
			return nil
		}
		report.LongTerm = msgs
		report.Counts.Long = len(msgs)
		return nil
	})
	_ = g.Wait()

	if fastErr != nil {
		report.ShortErr = fastErr.Error()
		logging.LogStoreFailure(m.opts.Logger, StoreFast, "range", sessionID, fastErr)
	}
	if durErr != nil {
		report.LongErr = durErr.Error()
		logging.LogStoreFailure(m.opts.Logger, StoreDurable, "query", sessionID, durErr)
	}
	if fastErr != nil && durErr != nil {
		return report, errors.Join(core.NewStoreError(StoreFast, "range", fastErr), core.NewStoreError(StoreDurable, "query", durErr))
	}
	return report, nil
}

// Sessions lists the sessions known to the durable store.
func (m *Manager) Sessions(ctx context.Context) ([]string, error) {
	var ids []string
	if err := m.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		ids, err = m.durable.Sessions(ctx)
		return err
	}); err != nil {
		return nil, core.NewStoreError(StoreDurable, "sessions", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (m *Manager) readFast(ctx context.Context, sessionID string, limit int) ([]core.Message, error) {
	var msgs []core.Message
	err := m.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		msgs, err = m.fast.Range(ctx, sessionID, limit)
		return err
	})
	return core.CloneMessages(msgs), err
}

func (m *Manager) readDurable(ctx context.Context, sessionID string, limit int) ([]core.Message, error) {
	var msgs []core.Message
	err := m.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		msgs, err = m.durable.QueryRecent(ctx, sessionID, limit)
		return err
	})
	return core.CloneMessages(msgs), err
}

func (m *Manager) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.opts.OpTimeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, m.opts.OpTimeout)
	defer cancel()
	return fn(ctx)
}
