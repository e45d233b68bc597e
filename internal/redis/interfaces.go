package redis

import (
	"context"
	"time"

	"driverbook/internal/domain"
)

// Locker defines the interface for distributed locking.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (string, error)
	Release(ctx context.Context, name, token string) error
}

// EarningsCache defines the interface for caching statement histories.
type EarningsCache interface {
	GetEarningsHistory(ctx context.Context, driverID string) ([]*domain.EarningsStatement, error)
	SetEarningsHistory(ctx context.Context, driverID string, history []*domain.EarningsStatement) error
	InvalidateEarningsHistory(ctx context.Context, driverIDs ...string) error
}

// Ensure concrete types implement interfaces.
var (
	_ Locker        = (*LockStore)(nil)
	_ EarningsCache = (*CacheStore)(nil)
)
