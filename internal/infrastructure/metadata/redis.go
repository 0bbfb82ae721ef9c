package metadata

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"fraud-graph-engine/internal/pkg/config"
)

// RedisKV backs the metadata store with Redis hashes. Each record is one
// hash: HIncrBy gives the additive operate, HSetNX the create-only seed.
type RedisKV struct {
	rdb *redis.Client
}

// NewRedisKV connects to Redis and verifies the connection
func NewRedisKV(cfg config.MetadataConfig) (*RedisKV, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.KVAddress,
		Password:     cfg.KVPassword,
		DB:           cfg.KVDatabase,
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to metadata KV store: %w", err)
	}

	return &RedisKV{rdb: rdb}, nil
}

// AddBins applies counter deltas atomically within one pipeline round trip
func (k *RedisKV) AddBins(ctx context.Context, key string, deltas map[string]int64) error {
	pipe := k.rdb.TxPipeline()
	for bin, delta := range deltas {
		pipe.HIncrBy(ctx, key, bin, delta)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// SetBinsIfAbsent seeds bins without touching existing values
func (k *RedisKV) SetBinsIfAbsent(ctx context.Context, key string, defaults map[string]int64) error {
	pipe := k.rdb.Pipeline()
	for bin, value := range defaults {
		pipe.HSetNX(ctx, key, bin, value)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// ReadBins returns all bins of a record
func (k *RedisKV) ReadBins(ctx context.Context, key string) (map[string]int64, error) {
	raw, err := k.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(raw))
	for bin, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bin %s of %s is not a counter: %w", bin, key, err)
		}
		out[bin] = n
	}
	return out, nil
}

// Delete removes records entirely
func (k *RedisKV) Delete(ctx context.Context, keys ...string) error {
	return k.rdb.Del(ctx, keys...).Err()
}

// Ping tests the connection
func (k *RedisKV) Ping(ctx context.Context) error {
	return k.rdb.Ping(ctx).Err()
}

// Close closes the connection
func (k *RedisKV) Close() error {
	return k.rdb.Close()
}
