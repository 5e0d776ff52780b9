package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNewWithWriter_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("storefront", "warn", &buf)

	l.Info("hidden")
	l.Warn("shown", slog.Int("attempt", 2))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["msg"])
	assert.Equal(t, "storefront", lines[0]["service"])
	assert.Equal(t, float64(2), lines[0]["attempt"])
}

func TestContextIdentifiersAreLogged(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("storefront", "info", &buf)

	ctx := WithCorrelationID(context.Background(), "corr-1")
	ctx = WithCustomerID(ctx, "cus_01")
	ctx = WithSessionID(ctx, "3b8f0c5e-0000-4000-8000-000000000001")

	l.With(slog.String("component", "cart")).InfoContext(ctx, "line item added")
	l.Info("no context")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "corr-1", lines[0]["correlation_id"])
	assert.Equal(t, "cus_01", lines[0]["customer_id"])
	assert.Equal(t, "3b8f0c5e-0000-4000-8000-000000000001", lines[0]["session_id"])
	assert.Equal(t, "cart", lines[0]["component"])
	assert.NotContains(t, lines[1], "correlation_id")
}

func TestAttrs_IncludesSpan(t *testing.T) {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	attrs := Attrs(ctx)
	require.Len(t, attrs, 2)
	assert.Equal(t, "trace_id", attrs[0].Key)
	assert.Equal(t, sc.TraceID().String(), attrs[0].Value.String())
	assert.Equal(t, "span_id", attrs[1].Key)
}

func TestAccessors(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, CorrelationID(ctx))
	assert.Empty(t, CustomerID(ctx))
	assert.Empty(t, SessionID(ctx))
	assert.Nil(t, FromContext(ctx))
	assert.Empty(t, Attrs(ctx))

	l := slog.New(slog.DiscardHandler)
	ctx = NewContext(WithSessionID(ctx, "s1"), l)
	assert.Same(t, l, FromContext(ctx))
	assert.Equal(t, "s1", SessionID(ctx))
}
