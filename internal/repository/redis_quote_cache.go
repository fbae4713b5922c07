package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"booking-server/internal/engine"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Compile-time check to ensure redisQuoteCache implements engine.QuoteCache
var _ engine.QuoteCache = (*redisQuoteCache)(nil)

type redisQuoteCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisQuoteCache creates a Redis-backed quote cache.
// Ключи уже приходят со скоупом quote:{artist}:{service}:{hash};
// вытеснение - только по TTL.
func NewRedisQuoteCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) engine.QuoteCache {
	return &redisQuoteCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisQuoteCache"),
	}
}

// Get возвращает (nil, nil) при промахе.
func (r *redisQuoteCache) Get(ctx context.Context, key string) (*engine.CachedQuote, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		r.logger.Error("Failed to read quote cache", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to read quote cache: %w", err)
	}

	var cached engine.CachedQuote
	if err := json.Unmarshal(data, &cached); err != nil {
		r.logger.Warn("Corrupted quote cache entry, treating as miss", zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	return &cached, nil
}

func (r *redisQuoteCache) Set(ctx context.Context, key string, value engine.CachedQuote) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cached quote: %w", err)
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		r.logger.Error("Failed to write quote cache", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to write quote cache: %w", err)
	}
	return nil
}
