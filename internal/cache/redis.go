package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/werserver/thaideals/internal/model"
)

// Key prefixes for the two cache granularities.
const (
	pageKeyPrefix = "page:"
	itemKeyPrefix = "item:"
)

// Redis is a Store backed by a Redis instance, for deployments that run
// more than one replica and want the caches shared. Page entries carry
// the TTL on the Redis side; item entries are kept until invalidation.
type Redis struct {
	client  *redis.Client
	pageTTL time.Duration
}

// NewRedis connects to Redis and returns a Store using it.
func NewRedis(ctx context.Context, redisURL string, pageTTL time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Connection pool settings
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)

	// Verify connection
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Redis{client: client, pageTTL: pageTTL}, nil
}

// Ping checks Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// GetPage returns the cached page for a key, or ErrCacheMiss.
func (r *Redis) GetPage(ctx context.Context, key string) (*model.PageResult, error) {
	data, err := r.client.Get(ctx, pageKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var result model.PageResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode cached page: %w", err)
	}
	return &result, nil
}

// SetPage stores a page result with the page TTL.
func (r *Redis) SetPage(ctx context.Context, key string, result *model.PageResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode page: %w", err)
	}
	if err := r.client.Set(ctx, pageKeyPrefix+key, data, r.pageTTL).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// GetItem returns the last-seen product for an id, or ErrCacheMiss.
func (r *Redis) GetItem(ctx context.Context, productID string) (*model.Product, error) {
	data, err := r.client.Get(ctx, itemKeyPrefix+productID).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var p model.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode cached product: %w", err)
	}
	return &p, nil
}

// SetItems stores every given product under its id, without expiry.
func (r *Redis) SetItems(ctx context.Context, products []model.Product) error {
	if len(products) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for _, p := range products {
		if p.ID == "" {
			continue
		}
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode product %s: %w", p.ID, err)
		}
		pipe.Set(ctx, itemKeyPrefix+p.ID, data, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// InvalidateAll deletes every page and item key.
func (r *Redis) InvalidateAll(ctx context.Context) error {
	for _, prefix := range []string{pageKeyPrefix, itemKeyPrefix} {
		iter := r.client.Scan(ctx, 0, prefix+"*", 500).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
			if len(keys) >= 500 {
				if err := r.client.Del(ctx, keys...).Err(); err != nil {
					return fmt.Errorf("redis del failed: %w", err)
				}
				keys = keys[:0]
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("redis scan failed: %w", err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del failed: %w", err)
			}
		}
	}
	return nil
}
