package testutil

import "sync"

// LogEntry is one record captured by RecordingLogger.
type LogEntry struct {
	Level string
	Msg   string
	Args  []any
}

// Field returns the value logged under key, or nil.
func (e LogEntry) Field(key string) any {
	for i := 0; i+1 < len(e.Args); i += 2 {
		if k, ok := e.Args[i].(string); ok && k == key {
			return e.Args[i+1]
		}
	}
	return nil
}

// RecordingLogger captures log calls for assertions. It satisfies logging.Logger.
type RecordingLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (l *RecordingLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *RecordingLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *RecordingLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *RecordingLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

// Entries returns a snapshot of the captured records.
func (l *RecordingLogger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LogEntry(nil), l.entries...)
}

// Find returns the captured records with the given message.
func (l *RecordingLogger) Find(msg string) []LogEntry {
	var out []LogEntry
	for _, e := range l.Entries() {
		if e.Msg == msg {
			out = append(out, e)
		}
	}
	return out
}

func (l *RecordingLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Msg: msg, Args: append([]any(nil), args...)})
}
