package stock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tallerpos/domain"
	"tallerpos/remote"
)

// Invalidator drops cached stock for a catalog query. Coordinators call it
// after every commit that touched a variant so the next resolution reads
// fresh counts.
type Invalidator interface {
	Invalidate(ctx context.Context, filter domain.VariantFilter)
}

// NoopInvalidator is used when no cache sits in front of the catalog.
type NoopInvalidator struct{}

func (NoopInvalidator) Invalidate(context.Context, domain.VariantFilter) {}

// CachedCatalog is a read-through cache over the catalog collaborator.
// Cache trouble is never fatal: a miss or a redis error falls through to
// the remote catalog and is logged.
type CachedCatalog struct {
	inner  remote.Catalog
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedCatalog(inner remote.Catalog, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedCatalog {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &CachedCatalog{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (c *CachedCatalog) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *CachedCatalog) Close() error {
	return c.client.Close()
}

func (c *CachedCatalog) QueryVariantStock(ctx context.Context, filter domain.VariantFilter) ([]domain.StockVariant, error) {
	key := cacheKey(filter)
	val, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var variants []domain.StockVariant
		if err := json.Unmarshal([]byte(val), &variants); err == nil {
			return variants, nil
		}
		c.logger.Warn("stock cache entry unreadable", zap.String("key", key))
	} else if err != redis.Nil {
		c.logger.Warn("stock cache read failed", zap.String("key", key), zap.Error(err))
	}

	variants, err := c.inner.QueryVariantStock(ctx, filter)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(variants); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.Warn("stock cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return variants, nil
}

func (c *CachedCatalog) Invalidate(ctx context.Context, filter domain.VariantFilter) {
	filter.Size = ""
	if err := c.client.Del(ctx, cacheKey(filter)).Err(); err != nil {
		c.logger.Warn("stock cache invalidation failed", zap.Error(err))
	}
}

func cacheKey(filter domain.VariantFilter) string {
	return fmt.Sprintf("stock:%s:%s:%s:%s", filter.GarmentType, filter.Design, filter.Color, filter.Size)
}
