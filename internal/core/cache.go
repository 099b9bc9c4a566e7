package core

import (
	"context"
	"time"
)

// Cache[T] is the key-value cache sitting in front of the user store.
type Cache[T any] interface {
	// Get returns cache.ErrCacheMiss when the key is absent or expired.
	Get(ctx context.Context, key string) (T, error)
	Set(ctx context.Context, key string, value T, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
	Health(ctx context.Context) error

	// GetWithFetch reads through to fetchFunc on a miss and stores the result.
	GetWithFetch(
		ctx context.Context,
		key string,
		ttl time.Duration,
		fetchFunc func(ctx context.Context, key string) (T, error),
	) (T, error)
}
