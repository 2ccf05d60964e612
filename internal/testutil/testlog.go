// Package testlog records log lines so tests can assert on them.
package testlog

import (
	"sync"

	"service-dispatch/internal/logx"
)

// Entry is one recorded log line.
type Entry struct {
	Level  string
	Msg    string
	Fields []logx.Field
}

// Field returns the value logged under key. Later fields win, as in slog.
func (e Entry) Field(key string) (any, bool) {
	for i := len(e.Fields) - 1; i >= 0; i-- {
		if e.Fields[i].Key == key {
			return e.Fields[i].Value, true
		}
	}
	return nil, false
}

// Recorder collects entries from every logger it hands out.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// New returns an empty Recorder.
func New() *Recorder { return &Recorder{} }

// Logger returns a logx.Logger writing into r.
func (r *Recorder) Logger() logx.Logger {
	return recorderLogger{r: r}
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Find returns the first entry with the given message.
func (r *Recorder) Find(msg string) (Entry, bool) {
	for _, e := range r.Entries() {
		if e.Msg == msg {
			return e, true
		}
	}
	return Entry{}, false
}

// Count returns how many entries were logged at level.
func (r *Recorder) Count(level string) int {
	n := 0
	for _, e := range r.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}

func (r *Recorder) add(level, msg string, fields []logx.Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Msg: msg, Fields: fields})
}

type recorderLogger struct {
	r    *Recorder
	base []logx.Field
}

var _ logx.Logger = recorderLogger{}

func (l recorderLogger) fields(f []logx.Field) []logx.Field {
	out := make([]logx.Field, 0, len(l.base)+len(f))
	return append(append(out, l.base...), f...)
}

func (l recorderLogger) Debug(msg string, f ...logx.Field) { l.r.add("debug", msg, l.fields(f)) }
func (l recorderLogger) Info(msg string, f ...logx.Field)  { l.r.add("info", msg, l.fields(f)) }
func (l recorderLogger) Warn(msg string, f ...logx.Field)  { l.r.add("warn", msg, l.fields(f)) }
func (l recorderLogger) Error(msg string, f ...logx.Field) { l.r.add("error", msg, l.fields(f)) }

func (l recorderLogger) With(f ...logx.Field) logx.Logger {
	return recorderLogger{r: l.r, base: l.fields(f)}
}

func (recorderLogger) Sync() error { return nil }
