package database

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/storefront/pkg/database"

// commandHook wraps every command and pipeline in a client span and logs
// the slow ones. Cache misses (redis.Nil) are not errors.
type commandHook struct {
	tracer trace.Tracer
	slow   time.Duration
	logger *slog.Logger
}

var _ redis.Hook = (*commandHook)(nil)

func newCommandHook(slow time.Duration, logger *slog.Logger) *commandHook {
	return &commandHook{tracer: otel.Tracer(tracerName), slow: slow, logger: logger}
}

func (h *commandHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *commandHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		return h.observe(ctx, cmd.FullName(), 1, func(ctx context.Context) error {
			return next(ctx, cmd)
		})
	}
}

func (h *commandHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		return h.observe(ctx, pipelineName(cmds), len(cmds), func(ctx context.Context) error {
			return next(ctx, cmds)
		})
	}
}

func (h *commandHook) observe(ctx context.Context, op string, n int, run func(context.Context) error) error {
	ctx, span := h.tracer.Start(ctx, "redis "+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("db.operation", op),
			attribute.Int("db.redis.commands", n),
		),
	)
	start := time.Now()
	err := run(ctx)
	elapsed := time.Since(start)

	if err != nil && !errors.Is(err, redis.Nil) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	if h.slow > 0 && elapsed >= h.slow && h.logger != nil {
		h.logger.WarnContext(ctx, "slow redis command",
			slog.String("operation", op),
			slog.Int("commands", n),
			slog.Duration("duration", elapsed),
		)
	}
	return err
}

// pipelineName is "pipeline" plus the command name when all commands share it.
func pipelineName(cmds []redis.Cmder) string {
	if len(cmds) == 0 {
		return "pipeline"
	}
	name := cmds[0].Name()
	for _, c := range cmds[1:] {
		if c.Name() != name {
			return "pipeline"
		}
	}
	return "pipeline " + name
}
