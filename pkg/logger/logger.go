// Package logger builds the storefront's JSON slog logger and carries
// request identifiers through context so every *Context log call is
// attributed to its request, customer and session.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

type ctxKey int

const (
	keyLogger ctxKey = iota
	keyCorrelationID
	keyCustomerID
	keySessionID
)

// New returns a JSON logger on stdout tagged with service.
func New(service, level string) *slog.Logger {
	return NewWithWriter(service, level, os.Stdout)
}

// NewWithWriter is New writing to w.
func NewWithWriter(service, level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl <= slog.LevelDebug,
	})
	return slog.New(contextHandler{h}).With(slog.String("service", service))
}

// ParseLevel accepts debug, info, warn or error in any case. Anything else
// is info.
func ParseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// contextHandler appends the identifiers found in the record's context.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(Attrs(ctx)...)
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}

// Attrs returns the request identifiers and trace ids carried by ctx.
func Attrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var attrs []slog.Attr
	for _, f := range []struct {
		key ctxKey
		arg string
	}{
		{keyCorrelationID, "correlation_id"},
		{keyCustomerID, "customer_id"},
		{keySessionID, "session_id"},
	} {
		if v := value(ctx, f.key); v != "" {
			attrs = append(attrs, slog.String(f.arg, v))
		}
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return attrs
}

func value(ctx context.Context, key ctxKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// WithCorrelationID stores the request's correlation id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyCorrelationID, id)
}

// CorrelationID returns the id stored by WithCorrelationID.
func CorrelationID(ctx context.Context) string { return value(ctx, keyCorrelationID) }

// WithCustomerID stores the signed-in customer's id.
func WithCustomerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyCustomerID, id)
}

// CustomerID returns the id stored by WithCustomerID.
func CustomerID(ctx context.Context) string { return value(ctx, keyCustomerID) }

// WithSessionID stores the storefront session id.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keySessionID, id)
}

// SessionID returns the id stored by WithSessionID.
func SessionID(ctx context.Context) string { return value(ctx, keySessionID) }

// NewContext stores l for FromContext.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, keyLogger, l)
}

// FromContext returns the logger stored by NewContext, or nil.
func FromContext(ctx context.Context) *slog.Logger {
	l, _ := ctx.Value(keyLogger).(*slog.Logger)
	return l
}
