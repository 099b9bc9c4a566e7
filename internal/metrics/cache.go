package metrics

import (
	"context"
	"time"

	"github.com/go-authgate/exchauth/internal/core"
)

// CacheWrapper provides a read-through cache for user counts.
// It queries the database on cache miss and updates the cache for subsequent requests.
type CacheWrapper struct {
	store   core.UserCounter
	cache   core.Cache[int64]
	metrics core.Recorder
}

// NewCacheWrapper creates a new cache wrapper for user counts.
func NewCacheWrapper(store core.UserCounter, cache core.Cache[int64], m core.Recorder) *CacheWrapper {
	if m == nil {
		m = NewNoopMetrics()
	}
	return &CacheWrapper{
		store:   store,
		cache:   cache,
		metrics: m,
	}
}

// GetUserCount retrieves the number of local users.
func (m *CacheWrapper) GetUserCount(ctx context.Context, ttl time.Duration) (int64, error) {
	return m.getCountWithCache(ctx, "users:total", ttl, func(ctx context.Context) (int64, error) {
		return m.store.CountUsers(ctx)
	})
}

// GetDomainUserCount retrieves the number of local users of one domain.
func (m *CacheWrapper) GetDomainUserCount(
	ctx context.Context,
	domain string,
	ttl time.Duration,
) (int64, error) {
	return m.getCountWithCache(
		ctx,
		"users:domain:"+domain,
		ttl,
		func(ctx context.Context) (int64, error) {
			return m.store.CountUsersByDomain(ctx, domain)
		},
	)
}

// getCountWithCache retrieves a count using the cache-aside pattern.
func (m *CacheWrapper) getCountWithCache(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fetchFunc func(ctx context.Context) (int64, error),
) (int64, error) {
	return m.cache.GetWithFetch(
		ctx,
		key,
		ttl,
		func(ctx context.Context, _ string) (int64, error) {
			n, err := fetchFunc(ctx)
			if err != nil {
				m.metrics.RecordDatabaseQueryError("count_users")
			}
			return n, err
		},
	)
}
