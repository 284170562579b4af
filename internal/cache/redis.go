// Package cache holds the shared Redis client and the Redis-backed stores built on it.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nocson47/beaconofknowledge/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	pingTimeout   = 5 * time.Second
	slowThreshold = 250 * time.Millisecond
)

var client atomic.Pointer[redis.Client]

// commandHook counts failed commands by name and logs commands slower than slowThreshold.
// redis.Nil is a cache miss, not a failure.
type commandHook struct{}

func (commandHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (commandHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		observe(ctx, cmd.Name(), time.Since(start), err)
		return err
	}
}

func (commandHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		observe(ctx, "pipeline", time.Since(start), err)
		return err
	}
}

func observe(ctx context.Context, name string, took time.Duration, err error) {
	if err != nil && !errors.Is(err, redis.Nil) {
		middleware.RedisErrors.WithLabelValues(name).Inc()
	}
	if took > slowThreshold {
		middleware.Logger.WarnContext(ctx, "slow redis command",
			slog.String("command", name), slog.Duration("took", took))
	}
}

// parseOptions accepts a bare host:port or a redis:// / rediss:// URL.
func parseOptions(addr string) (*redis.Options, error) {
	if !strings.Contains(addr, "://") {
		return &redis.Options{Addr: addr}, nil
	}
	return redis.ParseURL(addr)
}

// NewClient builds an instrumented client without contacting the server.
func NewClient(addr string) (*redis.Client, error) {
	opts, err := parseOptions(addr)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	rdb.AddHook(commandHook{})
	return rdb, nil
}

// InitRedis connects the shared client. When the URL is invalid or the ping fails the
// shared client stays nil and callers run without Redis.
func InitRedis(addr string) {
	client.Store(nil)

	rdb, err := NewClient(addr)
	if err != nil {
		middleware.Logger.Warn("invalid REDIS_URL, continuing without redis", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		middleware.Logger.Warn("redis unreachable, continuing without redis", slog.String("error", err.Error()))
		_ = rdb.Close()
		return
	}

	client.Store(rdb)
	middleware.Logger.Info("redis connected", slog.String("addr", rdb.Options().Addr))
}

// GetClient may return nil.
func GetClient() *redis.Client {
	return client.Load()
}

// SetClient replaces the shared client.
func SetClient(rdb *redis.Client) {
	client.Store(rdb)
}
