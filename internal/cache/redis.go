package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/raquelitre/Encuesta/internal/config"
	"github.com/raquelitre/Encuesta/internal/models"
)

// Redis caches the summary in a single Redis key shared by all instances
type Redis struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewRedis creates a Redis-backed cache
func NewRedis(client redis.UniversalClient, key string, ttl time.Duration) (*Redis, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	return &Redis{client: client, key: key, ttl: ttl}, nil
}

func (r *Redis) Get(ctx context.Context) (*models.StatsSummary, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, err
	}

	var summary models.StatsSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode cached summary: %w", err)
	}
	return &summary, nil
}

// Generation returns the invalidation counter shared by all instances
func (r *Redis) Generation(ctx context.Context) (uint64, error) {
	gen, err := r.client.Get(ctx, r.generationKey()).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Set stores summary unless the generation moved since it was read. The
// generation key is watched so an Invalidate racing the write aborts it.
func (r *Redis) Set(ctx context.Context, generation uint64, summary *models.StatsSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, r.generationKey()).Uint64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key, data, r.ttl)
			return nil
		})
		return err
	}, r.generationKey())
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func (r *Redis) Invalidate(ctx context.Context) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, r.generationKey())
		pipe.Del(ctx, r.key)
		return nil
	})
	return err
}

func (r *Redis) generationKey() string {
	return r.key + ":gen"
}

// New builds the cache selected by cfg: Nop when disabled, Redis when an
// address is configured, otherwise an in-process cache
func New(ctx context.Context, cfg config.CacheConfig) (SummaryCache, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	if cfg.RedisAddr == "" {
		return NewMemory(cfg.TTL()), nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.RedisAddr},
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedis(client, cfg.Key, cfg.TTL())
}
