package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// CachedCatalog reads products through redis. Name, price, rate and the active
// flag may be up to one TTL stale; stock is never trusted from the cache.
type CachedCatalog struct {
	next   Catalog
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *logrus.Logger
}

func NewCachedCatalog(next Catalog, rdb redis.Cmdable, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{next: next, rdb: rdb, ttl: ttl, logger: config.GetLogger()}
}

func (c *CachedCatalog) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	key := utils.CacheKey[models.Product](id)

	var product models.Product
	found, err := utils.GetRedisObject(ctx, c.rdb, key, &product)
	if err != nil {
		c.logger.WithFields(logrus.Fields{"field": "CachedCatalog.GetProduct", "product_id": id}).Warn("catalog cache read failed: " + err.Error())
	}
	if found {
		return &product, nil
	}

	p, err := c.next.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := utils.SetRedisObject(ctx, c.rdb, key, p, c.ttl); err != nil {
		c.logger.WithFields(logrus.Fields{"field": "CachedCatalog.GetProduct", "product_id": id}).Warn("catalog cache write failed: " + err.Error())
	}
	return p, nil
}

// Invalidate drops a cached product after a catalog write.
func (c *CachedCatalog) Invalidate(ctx context.Context, ids ...string) error {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, utils.CacheKey[models.Product](id))
	}
	if len(keys) == 0 {
		return nil
	}
	return utils.RemoveRedisKey(ctx, c.rdb, keys...)
}
