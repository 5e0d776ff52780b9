package database

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), RedisConfig{Addr: mr.Addr()}, discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), "product:prod_1", "{}", time.Minute).Err())
	assert.True(t, mr.Exists("product:prod_1"))
}

func TestNewRedisClient_BadPasswordFailsFast(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("secret")

	start := time.Now()
	client, err := NewRedisClient(context.Background(), RedisConfig{Addr: mr.Addr(), Password: "wrong"}, discard())

	assert.Nil(t, client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), mr.Addr())
	assert.Less(t, time.Since(start), connectBaseWait)
}

func TestNewRedisClient_GivesUpWhenContextEnds(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client, err := NewRedisClient(ctx, RedisConfig{Addr: addr}, discard())
	assert.Nil(t, client)
	require.Error(t, err)
}

func TestConnectBackoff(t *testing.T) {
	for attempt, base := range map[int]time.Duration{1: connectBaseWait, 2: 2 * connectBaseWait, 3: 4 * connectBaseWait} {
		for range 20 {
			d := connectBackoff(attempt)
			assert.GreaterOrEqual(t, d, base)
			assert.LessOrEqual(t, d, base+base/5)
		}
	}
}

func TestTransient(t *testing.T) {
	assert.True(t, transient(&net.OpError{Op: "dial", Err: errors.New("connection refused")}))
	assert.False(t, transient(errors.New("WRONGPASS invalid username-password pair")))
	assert.False(t, transient(nil))
}
