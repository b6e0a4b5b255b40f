package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/izeeshan007/eternal-essence-backend/internal/repository"

	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// Incrementer is the subset of *redis.Client the counter needs.
type Incrementer interface {
	Incr(ctx context.Context, key string) *goredis.IntCmd
	IncrBy(ctx context.Context, key string, value int64) *goredis.IntCmd
}

// Seeder reports the highest sequence already persisted for a year.
type Seeder interface {
	HighestIssued(ctx context.Context, year int) (int64, error)
}

// Counter hands out order sequences with INCR, which redis applies
// atomically across every service instance.
type Counter struct {
	client Incrementer
	seeder Seeder
}

var _ repository.SequenceRepository = (*Counter)(nil)

func NewCounter(client Incrementer, seeder Seeder) *Counter {
	return &Counter{client: client, seeder: seeder}
}

func NewClient(addr string) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:         addr,
		DB:           0,
		PoolSize:     200,
		MinIdleConns: 20,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
}

func counterKey(year int) string {
	return "orders:seq:" + strconv.Itoa(year)
}

func (c *Counter) Next(ctx context.Context, year int) (int64, error) {
	key := counterKey(year)
	v, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: incr %s: %w", key, err)
	}
	if v != 1 || c.seeder == nil {
		return v, nil
	}

	// First value for this key: the key was missing (new year or flushed
	// redis). Jump past anything the store already holds.
	highest, err := c.seeder.HighestIssued(ctx, year)
	if err != nil {
		return 0, fmt.Errorf("redis: seed %s: %w", key, err)
	}
	if highest <= 0 {
		return v, nil
	}

	v, err = c.client.IncrBy(ctx, key, highest).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: seed %s: %w", key, err)
	}
	log.Info().Str("key", key).Int64("seeded_from", highest).Msg("order counter seeded from store")
	return v, nil
}
