package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// CartCache is a rebuildable projection of carts; the store stays authoritative.
type CartCache interface {
	Get(ctx context.Context, cartId string) (*models.Cart, error)
	Set(ctx context.Context, cart *models.Cart) error
	Delete(ctx context.Context, cartId string) error
}

// evictionGuard outlives any in-flight cache-miss read, so a read that started
// before an eviction cannot put the evicted cart back.
const evictionGuard = time.Minute

// setCartScript writes KEYS[1] (cart JSON) and KEYS[2] (its version) unless
// KEYS[3] marks the cart as evicted or a newer version is already cached.
var setCartScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[3]) == 1 then
	return 0
end
local cached = redis.call("GET", KEYS[2])
if cached and tonumber(cached) > tonumber(ARGV[2]) then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

// deleteCartScript drops the cart and leaves an eviction marker for ARGV[1] ms.
var deleteCartScript = redis.NewScript(`
redis.call("DEL", KEYS[1], KEYS[2])
redis.call("SET", KEYS[3], "1", "PX", ARGV[1])
return 1
`)

type RedisCartCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisCartCache(rdb redis.Cmdable, ttl time.Duration) *RedisCartCache {
	return &RedisCartCache{rdb: rdb, ttl: ttl}
}

func cartCacheKeys(cartId string) []string {
	key := utils.CacheKey[models.Cart](cartId)
	return []string{key, key + ":version", key + ":evicted"}
}

func (c *RedisCartCache) Get(ctx context.Context, cartId string) (*models.Cart, error) {
	var cart models.Cart
	found, err := utils.GetRedisObject(ctx, c.rdb, utils.CacheKey[models.Cart](cartId), &cart)
	if err != nil {
		return nil, fmt.Errorf("redis get cart: %w", err)
	}
	if !found {
		return nil, ErrCacheMiss
	}
	return &cart, nil
}

// Set is a no-op for a cart evicted within evictionGuard or older than the cached copy.
func (c *RedisCartCache) Set(ctx context.Context, cart *models.Cart) error {
	if utils.IsNilClient(c.rdb) {
		return nil
	}
	payload, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}
	ttl := c.ttl
	if ttl <= 0 {
		ttl = time.Hour
	}
	err = setCartScript.Run(ctx, c.rdb, cartCacheKeys(cart.ID), payload, cart.Version, ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}
	return nil
}

func (c *RedisCartCache) Delete(ctx context.Context, cartId string) error {
	if utils.IsNilClient(c.rdb) {
		return nil
	}
	if err := deleteCartScript.Run(ctx, c.rdb, cartCacheKeys(cartId), evictionGuard.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis delete cart: %w", err)
	}
	return nil
}
