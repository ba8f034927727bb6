// Package logging builds the process wide structured logger. Records go to
// a human readable text stream and, when an OTLP endpoint is configured
// through the environment, to an OpenTelemetry log exporter as well.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const serviceName = "pingwatch"

// Levels lists the accepted level names.
var Levels = []string{"debug", "info", "warning", "error"}

// ParseLevel maps one of Levels to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, errors.Errorf("invalid log level %q (valid: %s)", s, strings.Join(Levels, ", "))
}

// Err returns an "error" attribute holding the message of err. Errors from
// github.com/pkg/errors would otherwise print their stack trace.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// New creates a logger writing text lines to w. Additional handlers get
// every record as well; they apply their own level.
func New(w io.Writer, level slog.Leveler, extra ...slog.Handler) *slog.Logger {
	text := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	if len(extra) == 0 {
		return slog.New(text)
	}
	return slog.New(fanout(append([]slog.Handler{text}, extra...)))
}

// Setup creates the process logger on w. If OTEL_EXPORTER_OTLP_ENDPOINT
// (or OTEL_EXPORTER_OTLP_LOGS_ENDPOINT) is set, records are exported via
// OTLP/gRPC too. The returned function flushes pending exports.
func Setup(ctx context.Context, w io.Writer, level slog.Leveler) (*slog.Logger, func(context.Context) error, error) {
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" && os.Getenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT") == "" {
		return New(w, level), func(context.Context) error { return nil }, nil
	}

	handler, shutdown, err := otlpHandler(ctx, level)
	if err != nil {
		return nil, nil, err
	}
	return New(w, level, handler), shutdown, nil
}

func otlpHandler(ctx context.Context, level slog.Leveler) (slog.Handler, func(context.Context) error, error) {
	exporter, err := otlploggrpc.New(ctx) // reads the OTEL_EXPORTER_OTLP_* variables
	if err != nil {
		return nil, nil, errors.Wrap(err, "create OTLP log exporter")
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create resource")
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(res),
	)

	handler := otelslog.NewHandler(serviceName, otelslog.WithLoggerProvider(provider))
	return &leveled{Handler: handler, level: level}, provider.Shutdown, nil
}

// leveled drops records below level before they reach the wrapped handler.
type leveled struct {
	slog.Handler
	level slog.Leveler
}

func (h *leveled) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level.Level() && h.Handler.Enabled(ctx, l)
}

func (h *leveled) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &leveled{Handler: h.Handler.WithAttrs(attrs), level: h.level}
}

func (h *leveled) WithGroup(name string) slog.Handler {
	return &leveled{Handler: h.Handler.WithGroup(name), level: h.level}
}

// fanout passes every record to all enabled handlers.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
