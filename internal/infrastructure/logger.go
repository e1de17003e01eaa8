// Package infrastructure wires the observability stack: structured
// logging with trace correlation, OpenTelemetry tracing and the
// Prometheus-exported business metrics.
package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const traceIDKey contextKey = "trace_id"

var (
	loggerOnce sync.Once
	logger     *slog.Logger
	logErr     error
)

// LoggingConfig controls the slog setup.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL" default:"info"`
	Output string `yaml:"output" envconfig:"LOG_OUTPUT" default:"stdout"`
	Dir    string `yaml:"dir" envconfig:"LOG_DIR" default:"logs"`
}

// InitializeLogger builds the process-wide JSON logger once and installs
// it as slog's default. Subsequent calls return the same logger.
func InitializeLogger(cfg LoggingConfig) (*slog.Logger, error) {
	loggerOnce.Do(func() {
		logger, logErr = createLogger(cfg)
		if logErr == nil {
			slog.SetDefault(logger)
		}
	})
	return logger, logErr
}

func createLogger(cfg LoggingConfig) (*slog.Logger, error) {
	var out io.Writer
	switch cfg.Output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	case "file":
		f, err := openLogFile(cfg.Dir)
		if err != nil {
			return nil, err
		}
		out = f
	case "both":
		f, err := openLogFile(cfg.Dir)
		if err != nil {
			return nil, err
		}
		out = io.MultiWriter(os.Stdout, f)
	default:
		return nil, fmt.Errorf("unknown log output %q", cfg.Output)
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})
	return slog.New(&traceHandler{Handler: handler}), nil
}

func openLogFile(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	path := filepath.Join(dir, "licenseforge.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// traceHandler injects the active trace and request ids into every record
// so log lines correlate with spans.
type traceHandler struct {
	slog.Handler
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if span := trace.SpanContextFromContext(ctx); span.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", span.TraceID().String()),
			slog.String("span_id", span.SpanID().String()),
		)
	} else if id := GetTraceID(ctx); id != "" {
		r.AddAttrs(slog.String("trace_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}

// WithTraceID stores a correlation id in the context for handlers that
// run outside an OTel span.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

// GetTraceID returns the correlation id stored with WithTraceID, if any.
func GetTraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}
