package bootstrap

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/go-authgate/exchauth/internal/cache"
	"github.com/go-authgate/exchauth/internal/config"
	"github.com/go-authgate/exchauth/internal/core"
	"github.com/go-authgate/exchauth/internal/metrics"
	"github.com/go-authgate/exchauth/internal/models"
)

// initializeMetrics initializes Prometheus metrics
func initializeMetrics(cfg *config.Config, logger logrus.FieldLogger) core.Recorder {
	recorder := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		logger.Info("Prometheus metrics initialized")
	} else {
		logger.Debug("Metrics disabled (using noop implementation)")
	}
	return recorder
}

// newCache builds a Cache[T] of the configured type under prefix.
func newCache[T any](
	ctx context.Context,
	cfg *config.Config,
	logger logrus.FieldLogger,
	name, prefix string,
) (core.Cache[T], func() error, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.CacheInitTimeout)
	defer cancel()

	switch cfg.UserCacheType {
	case config.UserCacheTypeRedis:
		c, err := cache.NewRueidisCache[T](
			ctx,
			cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			prefix,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize redis %s cache: %w", name, err)
		}
		logger.WithFields(logrus.Fields{
			"addr": cfg.RedisAddr,
			"db":   cfg.RedisDB,
		}).Infof("%s cache: redis", name)
		return c, c.Close, nil

	default: // memory
		c := cache.NewMemoryCache[T]()
		logger.Debugf("%s cache: memory (single instance only)", name)
		return c, c.Close, nil
	}
}

// initializeUserCache initializes the user cache (always enabled, defaults to memory)
func initializeUserCache(
	ctx context.Context,
	cfg *config.Config,
	logger logrus.FieldLogger,
) (core.Cache[models.User], func() error, error) {
	return newCache[models.User](ctx, cfg, logger, "User", "exchauth:users:")
}

// initializeCountCache initializes the cache behind user counts
func initializeCountCache(
	ctx context.Context,
	cfg *config.Config,
	logger logrus.FieldLogger,
) (core.Cache[int64], func() error, error) {
	return newCache[int64](ctx, cfg, logger, "Count", "exchauth:counts:")
}
