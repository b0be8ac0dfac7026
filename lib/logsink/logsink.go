// Package logsink collects timestamped, severity-tagged log lines in a
// capped ring buffer so an embedding shell (GUI, CLI watch mode) can
// display and retain them without blocking the automations that write
// them.
package logsink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type Severity string

const (
	SeverityDebug Severity = "DEBUG"
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

type Entry struct {
	Time     time.Time
	Severity Severity
	Message  string
}

// Sink is an append-only ring buffer of log entries, safe for
// concurrent append from multiple automations.
type Sink struct {
	mu      sync.Mutex
	entries []Entry
	start   int
	count   int
}

func NewSink(capacity int) *Sink {
	if capacity <= 0 {
		capacity = 512
	}
	return &Sink{entries: make([]Entry, capacity)}
}

func (s *Sink) Append(severity Severity, message string) {
	s.AppendAt(time.Now(), severity, message)
}

func (s *Sink) AppendAt(at time.Time, severity Severity, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := (s.start + s.count) % len(s.entries)
	s.entries[idx] = Entry{Time: at, Severity: severity, Message: message}
	if s.count < len(s.entries) {
		s.count++
	} else {
		s.start = (s.start + 1) % len(s.entries)
	}
}

// Entries returns a snapshot in append order, oldest first.
func (s *Sink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, s.count)
	for i := 0; i < s.count; i++ {
		out[i] = s.entries[(s.start+i)%len(s.entries)]
	}
	return out
}

func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Handler adapts a Sink into a slog.Handler so ambient slog lines from
// the libraries land in the same buffer the shell displays.
type Handler struct {
	sink  *Sink
	level slog.Level
	attrs []slog.Attr
}

func NewHandler(sink *Sink, level slog.Level) *Handler {
	return &Handler{sink: sink, level: level}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *Handler) Handle(_ context.Context, record slog.Record) error {
	msg := record.Message
	appendAttr := func(a slog.Attr) bool {
		msg = fmt.Sprintf("%s %s=%v", msg, a.Key, a.Value)
		return true
	}
	for _, a := range h.attrs {
		appendAttr(a)
	}
	record.Attrs(appendAttr)

	h.sink.AppendAt(record.Time, severityOf(record.Level), msg)
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &Handler{sink: h.sink, level: h.level, attrs: merged}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	// group nesting is not worth surfacing in a single display line
	return h
}

func severityOf(level slog.Level) Severity {
	switch {
	case level >= slog.LevelError:
		return SeverityError
	case level >= slog.LevelWarn:
		return SeverityWarn
	case level >= slog.LevelInfo:
		return SeverityInfo
	default:
		return SeverityDebug
	}
}
