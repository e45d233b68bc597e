package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"driverbook/internal/domain"
)

// EarningsHistoryTTL bounds how stale a cached history can be when no write invalidates it.
const EarningsHistoryTTL = 60 * time.Second

const earningsHistoryPrefix = "cache:earnings:history:"

// CacheStore handles read-model caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// GetEarningsHistory retrieves a driver's cached statement history.
// Returns nil on a cache miss.
func (s *CacheStore) GetEarningsHistory(ctx context.Context, driverID string) ([]*domain.EarningsStatement, error) {
	data, err := s.client.Get(ctx, earningsHistoryPrefix+driverID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var history []*domain.EarningsStatement
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// SetEarningsHistory stores a driver's statement history.
func (s *CacheStore) SetEarningsHistory(ctx context.Context, driverID string, history []*domain.EarningsStatement) error {
	data, err := json.Marshal(history)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, earningsHistoryPrefix+driverID, data, EarningsHistoryTTL).Err()
}

// InvalidateEarningsHistory removes the cached histories of the given drivers in one pipeline.
func (s *CacheStore) InvalidateEarningsHistory(ctx context.Context, driverIDs ...string) error {
	if len(driverIDs) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, id := range driverIDs {
		pipe.Del(ctx, earningsHistoryPrefix+id)
	}

	_, err := pipe.Exec(ctx)
	return err
}
