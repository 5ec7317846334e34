package testutil

import (
	"sync"

	"github.com/hupe1980/agentweave/logging"
)

// Entry is one recorded log line.
type Entry struct {
	Level logging.Level
	Msg   string
	Args  []any
}

// Attr returns the value logged under key.
func (e Entry) Attr(key string) (any, bool) {
	for i := 0; i+1 < len(e.Args); i += 2 {
		if k, ok := e.Args[i].(string); ok && k == key {
			return e.Args[i+1], true
		}
	}
	return nil, false
}

// RecordingLogger implements logging.Logger and keeps every entry.
type RecordingLogger struct {
	mu      sync.Mutex
	entries []Entry
}

var _ logging.Logger = (*RecordingLogger)(nil)

func (l *RecordingLogger) Debug(msg string, args ...any) { l.record(logging.LevelDebug, msg, args) }
func (l *RecordingLogger) Info(msg string, args ...any)  { l.record(logging.LevelInfo, msg, args) }
func (l *RecordingLogger) Warn(msg string, args ...any)  { l.record(logging.LevelWarn, msg, args) }
func (l *RecordingLogger) Error(msg string, args ...any) { l.record(logging.LevelError, msg, args) }

func (l *RecordingLogger) record(level logging.Level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Level: level, Msg: msg, Args: append([]any(nil), args...)})
}

// Entries returns a copy of everything logged so far.
func (l *RecordingLogger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Find returns the entries with the given message.
func (l *RecordingLogger) Find(msg string) []Entry {
	var out []Entry
	for _, e := range l.Entries() {
		if e.Msg == msg {
			out = append(out, e)
		}
	}
	return out
}
