package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"booking-server/internal/engine"
	"booking-server/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Compile-time check to ensure redisDraftStore implements engine.DraftStore
var _ engine.DraftStore = (*redisDraftStore)(nil)

type redisDraftStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisDraftStore creates a Redis-backed draft mirror.
// Снапшот хранится JSON-ом прямо под своим ключом live:{artist}:{service},
// TTL обновляется при каждой записи.
func NewRedisDraftStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) engine.DraftStore {
	return &redisDraftStore{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisDraftStore"),
	}
}

// LoadDraft возвращает (nil, nil), когда снапшота нет.
func (r *redisDraftStore) LoadDraft(ctx context.Context, key string) (*models.DraftSnapshot, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		r.logger.Error("Failed to load draft snapshot from redis", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to load draft snapshot: %w", err)
	}

	var snapshot models.DraftSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		// Битый снапшот хуже отсутствующего: логируем и считаем, что его нет.
		r.logger.Warn("Corrupted draft snapshot, treating as missing", zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	r.logger.Debug("Draft snapshot loaded", zap.String("key", key), zap.String("requestID", snapshot.RequestID))
	return &snapshot, nil
}

func (r *redisDraftStore) SaveDraft(ctx context.Context, key string, snapshot models.DraftSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal draft snapshot: %w", err)
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		r.logger.Error("Failed to save draft snapshot to redis", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to save draft snapshot: %w", err)
	}
	r.logger.Debug("Draft snapshot saved", zap.String("key", key), zap.Duration("ttl", r.ttl))
	return nil
}

func (r *redisDraftStore) ClearDraft(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.logger.Error("Failed to clear draft snapshot from redis", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to clear draft snapshot: %w", err)
	}
	r.logger.Debug("Draft snapshot cleared", zap.String("key", key))
	return nil
}
