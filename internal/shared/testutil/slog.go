// Package testutil holds shared test helpers.
package testutil

import (
	"context"
	"log/slog"
	"sync"
)

// LogRecord is one captured log line.
type LogRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

type captureStore struct {
	mu      sync.Mutex
	records []LogRecord
}

// CaptureHandler is a slog.Handler that records everything it receives,
// so tests can assert on structured log output. Handlers derived with
// WithAttrs share the same record store.
type CaptureHandler struct {
	store *captureStore
	attrs []slog.Attr
}

func NewCaptureHandler() *CaptureHandler {
	return &CaptureHandler{store: &captureStore{}}
}

func (h *CaptureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *CaptureHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any)
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	h.store.records = append(h.store.records, LogRecord{
		Level:   r.Level,
		Message: r.Message,
		Attrs:   attrs,
	})
	return nil
}

func (h *CaptureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...)
	return &CaptureHandler{store: h.store, attrs: merged}
}

func (h *CaptureHandler) WithGroup(string) slog.Handler { return h }

// Records returns a copy of everything captured so far.
func (h *CaptureHandler) Records() []LogRecord {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	out := make([]LogRecord, len(h.store.records))
	copy(out, h.store.records)
	return out
}

// Last returns the most recent record, or nil.
func (h *CaptureHandler) Last() *LogRecord {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	if len(h.store.records) == 0 {
		return nil
	}
	r := h.store.records[len(h.store.records)-1]
	return &r
}
