package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/hireflow/pkg/cache"
	"github.com/dukex/hireflow/pkg/services"
)

func NewCache(ctx context.Context, logger *slog.Logger, cacheURL string) cache.Store {
	switch {
	case cacheURL == "", strings.HasPrefix(cacheURL, "memory://"):
		logger.InfoContext(ctx, "Using in-memory cache")

		return cache.NewMemory(cache.WithMaxTTL(services.DefaultCacheTTL))
	case strings.HasPrefix(cacheURL, "redis://"), strings.HasPrefix(cacheURL, "rediss://"):
		store, err := cache.NewRedis(ctx, cacheURL, logger)
		if err != nil {
			panic(fmt.Errorf("failed to connect to redis cache: %w", err))
		}

		logger.InfoContext(ctx, "Using redis cache")

		return store
	default:
		panic("Unsupported cache URL: " + cacheURL)
	}
}
