// Package sqlite provides the durable memory tier on SQLite.
//
// The store keeps two tables: messages, holding the full conversation history
// of every session, and plugin_logs, holding one row per capability
// invocation. It implements core.DurableStore and core.ExecutionLog and uses
// the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/agentrelay/core"
)

// Compile-time assertions.
var (
	_ core.DurableStore = (*Store)(nil)
	_ core.ExecutionLog = (*Store)(nil)
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Store implements core.DurableStore and core.ExecutionLog.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and runs migrations.
// The special path ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("sqlite: create data dir: %w", err)
			}
		}
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	// SQLite serializes writers; a single connection also keeps ":memory:"
	// databases from being recreated per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS messages (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT    NOT NULL,
			session_id TEXT    NOT NULL,
			role       TEXT    NOT NULL,
			content    TEXT    NOT NULL,
			timestamp  TEXT    NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq);

		CREATE TABLE IF NOT EXISTS plugin_logs (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			id          TEXT    NOT NULL,
			session_id  TEXT    NOT NULL,
			plugin      TEXT    NOT NULL,
			input       TEXT    NOT NULL,
			output      TEXT    NOT NULL,
			status      TEXT    NOT NULL,
			duration_ms INTEGER NOT NULL,
			timestamp   TEXT    NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_plugin_logs_session ON plugin_logs(session_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Insert appends msg to the session history.
func (s *Store) Insert(ctx context.Context, sessionID string, msg core.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, role, content, timestamp) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, sessionID, string(msg.Role), msg.Content, formatTime(msg.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert message: %w", err)
	}
	return nil
}

// QueryRecent returns the most recent limit messages, oldest first. A limit
// <= 0 returns the whole history.
func (s *Store) QueryRecent(ctx context.Context, sessionID string, limit int) ([]core.Message, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, timestamp FROM (
			SELECT seq, id, role, content, timestamp FROM messages
			WHERE session_id = ?
			ORDER BY seq DESC
			LIMIT ?
		) ORDER BY seq ASC`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query messages: %w", err)
	}
	defer rows.Close()

	msgs := []core.Message{}
	for rows.Next() {
		var (
			m    core.Message
			role string
			ts   string
		)
		if err := rows.Scan(&m.ID, &role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("sqlite: scan message: %w", err)
		}
		m.Role = core.Role(role)
		if m.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("sqlite: parse timestamp %q: %w", ts, err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate messages: %w", err)
	}
	return msgs, nil
}

// DeleteAll removes the session history and reports the number of deleted rows.
func (s *Store) DeleteAll(ctx context.Context, sessionID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete messages: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	return n, nil
}

// Count reports the number of messages of the session.
func (s *Store) Count(ctx context.Context, sessionID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE session_id = ?`, sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count messages: %w", err)
	}
	return n, nil
}

// Sessions lists the distinct session IDs holding messages, sorted.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT session_id FROM messages ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list sessions: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scan session: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecordExecution appends one capability invocation to plugin_logs.
func (s *Store) RecordExecution(ctx context.Context, rec core.ExecutionRecord) error {
	if rec.ID == "" {
		rec.ID = core.NewID()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plugin_logs (id, session_id, plugin, input, output, status, duration_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.Plugin, rec.Input, rec.Output, rec.Status,
		rec.Duration.Milliseconds(), formatTime(rec.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert plugin log: %w", err)
	}
	return nil
}

// Executions returns the newest limit records of the session first. A limit
// <= 0 returns all records.
func (s *Store) Executions(ctx context.Context, sessionID string, limit int) ([]core.ExecutionRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, plugin, input, output, status, duration_ms, timestamp
		FROM plugin_logs
		WHERE session_id = ?
		ORDER BY seq DESC
		LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query plugin logs: %w", err)
	}
	defer rows.Close()

	recs := []core.ExecutionRecord{}
	for rows.Next() {
		var (
			r  core.ExecutionRecord
			ms int64
			ts string
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Plugin, &r.Input, &r.Output, &r.Status, &ms, &ts); err != nil {
			return nil, fmt.Errorf("sqlite: scan plugin log: %w", err)
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		if r.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("sqlite: parse timestamp %q: %w", ts, err)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate plugin logs: %w", err)
	}
	return recs, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }
