// Package database connects the storefront to Redis and instruments the
// client with tracing, slow command logging and pool metrics.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// SlowCommand logs commands slower than this at warn. Zero disables it.
	SlowCommand time.Duration
}

const (
	connectAttempts = 3
	connectBaseWait = 500 * time.Millisecond
)

// NewRedisClient opens a client, installs the command hook and pings the
// server. Connection failures are retried with jittered exponential backoff;
// other errors such as bad credentials fail at once.
func NewRedisClient(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	client.AddHook(newCommandHook(cfg.SlowCommand, logger))

	for attempt := 1; ; attempt++ {
		err := client.Ping(ctx).Err()
		if err == nil {
			return client, nil
		}
		if attempt == connectAttempts || !transient(err) {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
		}

		wait := connectBackoff(attempt)
		logger.Warn("redis not reachable yet",
			slog.String("addr", cfg.Addr),
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", wait),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			_ = client.Close()
			return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, ctx.Err())
		case <-time.After(wait):
		}
	}
}

// connectBackoff doubles from connectBaseWait with up to 20% jitter.
func connectBackoff(attempt int) time.Duration {
	base := connectBaseWait << (attempt - 1)
	return base + time.Duration(rand.Int64N(int64(base)/5+1)) // #nosec G404 -- jitter only
}

// transient reports network-level failures that a later attempt may not hit.
func transient(err error) bool {
	var netErr net.Error
	var opErr *net.OpError
	return errors.As(err, &netErr) || errors.As(err, &opErr)
}
