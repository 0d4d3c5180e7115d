// Package cache memoizes converted station tables for the HTTP surface.
package cache

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/ghcn-daily-etl/internal/observability"
)

// Store holds encoded tables by key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Converter produces an encoded daily table for a station.
type Converter interface {
	Convert(ctx context.Context, station, format string) ([]byte, error)
}

// CachedConverter wraps a Converter with a Store. Store failures degrade to
// a direct conversion rather than failing the request.
type CachedConverter struct {
	inner   Converter
	store   Store
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewCachedConverter creates a cache decorator around a converter.
func NewCachedConverter(inner Converter, store Store, metrics *observability.Metrics, logger *slog.Logger) *CachedConverter {
	return &CachedConverter{inner: inner, store: store, metrics: metrics, logger: logger}
}

func (c *CachedConverter) Convert(ctx context.Context, station, format string) ([]byte, error) {
	key := station + "|" + format

	data, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		c.metrics.CacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("cache lookup failed", "key", key, "error", err)
	case ok:
		c.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return data, nil
	default:
		c.metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	data, err = c.inner.Convert(ctx, station, format)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, key, data); err != nil {
		c.logger.Warn("cache store failed", "key", key, "error", err)
	}
	return data, nil
}

var (
	_ Store = (*LRU)(nil)
	_ Store = (*Redis)(nil)
)
