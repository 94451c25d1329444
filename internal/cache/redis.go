package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	logx "cinebot/pkg/logx"
)

// Redis shares cached catalog responses between bot instances.
type Redis struct {
	client *redis.Client
	prefix string
	log    logx.Logger
	stats  counters
}

func NewRedis(ctx context.Context, opt Options, log logx.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opt.Addr,
		Password:     opt.Password,
		DB:           opt.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	log.Info("connected to redis cache", logx.String("addr", opt.Addr), logx.Int("db", opt.DB))
	return newRedisWithClient(client, opt.Prefix, log), nil
}

func newRedisWithClient(client *redis.Client, prefix string, log logx.Logger) *Redis {
	return &Redis{client: client, prefix: prefix, log: log}
}

func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.stats.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		c.stats.misses.Add(1)
		c.log.Warn("redis get failed", logx.String("key", key), logx.Err(err))
		return nil, false, err
	}
	c.stats.hits.Add(1)
	return val, true, nil
}

func (c *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, c.prefix+key, val, ttl).Err(); err != nil {
		c.log.Warn("redis set failed", logx.String("key", key), logx.Err(err))
		return err
	}
	c.stats.sets.Add(1)
	return nil
}

func (c *Redis) Stats() Stats {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	size, err := c.client.DBSize(ctx).Result()
	if err != nil {
		size = 0
	}
	return c.stats.snapshot(int(size))
}

// Ping backs the ops readiness probe.
func (c *Redis) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

func (c *Redis) Close() error { return c.client.Close() }
