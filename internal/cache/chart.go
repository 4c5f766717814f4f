package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/bazirun/internal/application"
)

// Layer names where a cached value was found
type Layer string

const (
	LayerNone   Layer = ""
	LayerRedis  Layer = "redis"
	LayerMemory Layer = "memory"
)

// Options configures a ChartCache
type Options struct {
	Namespace     string        // separates results computed with different settings or reference data
	TTL           time.Duration // Default: 24h
	MemoryEntries int           // 0 disables the in-process layer
	MaxFailures   uint32        // consecutive Redis failures that open the breaker; Default: 5
	OpenTimeout   time.Duration // Default: 30s
}

// ChartCache stores serialized chart results in Redis with an in-process
// fallback. Redis calls go through a circuit breaker; while it is open only
// the memory layer is used.
type ChartCache struct {
	redis   *RedisStore
	memory  *MemoryStore
	breaker *gobreaker.CircuitBreaker
	opts    Options
}

// NewChartCache builds the cache; client may be nil for memory only
func NewChartCache(client *redis.Client, opts Options) *ChartCache {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}

	c := &ChartCache{opts: opts}
	if opts.MemoryEntries > 0 {
		c.memory = NewMemoryStore(opts.MemoryEntries)
	}
	if client != nil {
		c.redis = NewRedisStore(client)
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "redis",
			MaxRequests: 1,
			Timeout:     opts.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= opts.MaxFailures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("cache breaker state changed")
			},
		})
	}
	return c
}

// Key derives the cache key of one chart request
func (c *ChartCache) Key(in application.Input) string {
	h := sha256.New()
	lon := "-"
	if in.Longitude != nil {
		lon = strconv.FormatFloat(*in.Longitude, 'g', -1, 64)
	}
	fmt.Fprintf(h, "%s|%d|%d|%s", in.BirthTime.Format(time.RFC3339Nano), in.Gender, int64(in.Correction), lon)
	return "bazirun:chart:" + c.opts.Namespace + ":" + hex.EncodeToString(h.Sum(nil))
}

// Get looks in Redis, then memory
func (c *ChartCache) Get(ctx context.Context, key string) ([]byte, Layer) {
	if c.redis != nil {
		v, err := c.breaker.Execute(func() (interface{}, error) {
			b, ok, err := c.redis.Get(ctx, key)
			if err != nil || !ok {
				return nil, err
			}
			return b, nil
		})
		if err != nil {
			log.Debug().Err(err).Str("key", key).Msg("redis cache unavailable")
		} else if b, ok := v.([]byte); ok {
			return b, LayerRedis
		}
	}
	if c.memory != nil {
		if b, ok := c.memory.Get(key); ok {
			return b, LayerMemory
		}
	}
	return nil, LayerNone
}

// Set writes every layer. The memory write always happens; a Redis failure
// is returned.
func (c *ChartCache) Set(ctx context.Context, key string, value []byte) error {
	if c.memory != nil {
		c.memory.Set(key, value, c.opts.TTL)
	}
	if c.redis == nil {
		return nil
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.redis.Set(ctx, key, value, c.opts.TTL)
	})
	return err
}

// BreakerState reports the Redis breaker state, "disabled" without Redis
func (c *ChartCache) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}

// Ping checks Redis through the breaker; nil without Redis
func (c *ChartCache) Ping(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.redis.Ping(ctx)
	})
	return err
}

func (c *ChartCache) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}
