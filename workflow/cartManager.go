package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/metrics"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// cartLoadTimeout bounds a shared cache-miss read once it no longer follows its caller.
const cartLoadTimeout = 5 * time.Second

// CartManager owns the cart aggregate. Reads are cache first; every mutation
// reloads the cart from the store, recomputes it and writes the full line set
// back before refreshing the cache.
type CartManager struct {
	store   CartStore
	cache   CartCache
	catalog Catalog
	metrics *metrics.Metrics
	logger  *logrus.Logger
	sfg     singleflight.Group
}

func NewCartManager(store CartStore, cache CartCache, catalog Catalog, m *metrics.Metrics) *CartManager {
	return &CartManager{
		store:   store,
		cache:   cache,
		catalog: catalog,
		metrics: m,
		logger:  config.GetLogger(),
	}
}

func (m *CartManager) Create(ctx context.Context, input models.NewCart) (*models.Cart, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	cart := &models.Cart{
		StoreId:    input.StoreId,
		CashierId:  input.CashierId,
		CustomerId: input.CustomerId,
		Items:      []models.CartItem{},
		Status:     models.CartStatusActive,
		Version:    1,
	}
	cart.CalculateTotals()
	if err := m.store.CreateCart(ctx, cart); err != nil {
		config.LogError(m.logger, "cartManager.go", "Create", "CreateCart", input, err)
		return nil, utils.Infrastructure(err)
	}
	m.cacheSet(ctx, cart)
	return cart, nil
}

// Get returns the cart, collapsing concurrent misses for the same id into one
// store read. The shared read is detached from any single caller, so a caller
// that goes away only abandons its own wait.
func (m *CartManager) Get(ctx context.Context, cartId string) (*models.Cart, error) {
	ch := m.sfg.DoChan(cartId, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cartLoadTimeout)
		defer cancel()
		return m.load(loadCtx, cartId)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Cart).Clone(), nil
	}
}

func (m *CartManager) load(ctx context.Context, cartId string) (*models.Cart, error) {
	cart, err := m.cache.Get(ctx, cartId)
	if err == nil {
		m.metrics.ObserveCartCache("hit")
		return cart, nil
	}
	if errors.Is(err, ErrCacheMiss) {
		m.metrics.ObserveCartCache("miss")
	} else {
		m.metrics.ObserveCartCache("error")
		m.logger.WithFields(logrus.Fields{"field": "CartManager.Get", "cart_id": cartId}).Warn("cart cache read failed: " + err.Error())
	}

	cart, err = m.store.GetCart(ctx, cartId)
	if err != nil {
		return nil, utils.Infrastructure(err)
	}
	// closed carts are evicted for good; only live carts are worth caching
	if cart.Status == models.CartStatusActive {
		m.cacheSet(ctx, cart)
	}
	return cart, nil
}

func (m *CartManager) AddItem(ctx context.Context, cartId string, input models.NewCartItem) (*models.Cart, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	product, err := lookupProduct(ctx, m.catalog, input.ProductId)
	if err != nil {
		return nil, err
	}
	return m.mutate(ctx, cartId, func(cart *models.Cart) error {
		cart.Items = addLine(cart.Items, product, lineRequest{
			ProductId: input.ProductId,
			Quantity:  input.Quantity,
			UnitPrice: input.UnitPrice,
			Discount:  input.Discount,
			Metadata:  input.Metadata,
		})
		return nil
	})
}

// UpdateItem changes a line in place; a quantity of zero or less removes it.
func (m *CartManager) UpdateItem(ctx context.Context, cartId string, itemId string, input models.CartItemUpdate) (*models.Cart, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	return m.mutate(ctx, cartId, func(cart *models.Cart) error {
		i := cart.FindItem(itemId)
		if i < 0 {
			return utils.ErrItemNotFound
		}
		if input.Quantity != nil && *input.Quantity <= 0 {
			cart.RemoveItemAt(i)
			return nil
		}
		line := &cart.Items[i]
		if input.Quantity != nil {
			line.Quantity = *input.Quantity
		}
		if input.Discount != nil {
			line.DiscountRate = *input.Discount
		}
		if len(input.Metadata) > 0 {
			line.Metadata = line.Metadata.Merge(input.Metadata)
		}
		return nil
	})
}

func (m *CartManager) RemoveItem(ctx context.Context, cartId string, itemId string) (*models.Cart, error) {
	return m.mutate(ctx, cartId, func(cart *models.Cart) error {
		i := cart.FindItem(itemId)
		if i < 0 {
			return utils.ErrItemNotFound
		}
		cart.RemoveItemAt(i)
		return nil
	})
}

func (m *CartManager) Clear(ctx context.Context, cartId string) (*models.Cart, error) {
	return m.mutate(ctx, cartId, func(cart *models.Cart) error {
		cart.Items = []models.CartItem{}
		return nil
	})
}

// Delete abandons the cart and evicts it. A missing cart is not an error.
func (m *CartManager) Delete(ctx context.Context, cartId string) error {
	if err := m.store.AbandonCart(ctx, cartId); err != nil {
		config.LogError(m.logger, "cartManager.go", "Delete", "AbandonCart", cartId, err)
		return utils.Infrastructure(err)
	}
	m.cacheDelete(ctx, cartId)
	return nil
}

// AbandonStale abandons up to limit active carts untouched since before and
// returns how many were closed.
func (m *CartManager) AbandonStale(ctx context.Context, before time.Time, limit int) (int, error) {
	carts, err := m.store.ListStaleCarts(ctx, before, limit)
	if err != nil {
		return 0, utils.Infrastructure(err)
	}
	for _, cart := range carts {
		if err := m.Delete(ctx, cart.ID); err != nil {
			return 0, err
		}
	}
	return len(carts), nil
}

func (m *CartManager) mutate(ctx context.Context, cartId string, fn func(cart *models.Cart) error) (*models.Cart, error) {
	cart, err := m.store.GetCart(ctx, cartId)
	if err != nil {
		return nil, utils.Infrastructure(err)
	}
	if cart.Status != models.CartStatusActive {
		return nil, utils.NewInvalidStateError("cart %s is %s", cart.ID, cart.Status)
	}
	if err := fn(cart); err != nil {
		return nil, err
	}
	cart.CalculateTotals()
	if err := m.store.SaveCart(ctx, cart); err != nil {
		if !errors.Is(err, utils.ErrConflict) {
			config.LogError(m.logger, "cartManager.go", "mutate", "SaveCart", cartId, err)
		}
		return nil, utils.Infrastructure(err)
	}
	m.cacheSet(ctx, cart)
	return cart, nil
}

func (m *CartManager) cacheSet(ctx context.Context, cart *models.Cart) {
	if err := m.cache.Set(ctx, cart); err != nil {
		m.logger.WithFields(logrus.Fields{"field": "CartManager", "cart_id": cart.ID}).Warn("cart cache write failed: " + err.Error())
	}
}

func (m *CartManager) cacheDelete(ctx context.Context, cartId string) {
	if err := m.cache.Delete(ctx, cartId); err != nil {
		m.logger.WithFields(logrus.Fields{"field": "CartManager", "cart_id": cartId}).Warn("cart cache evict failed: " + err.Error())
	}
}
