package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/pos_backend/utils"
	"gorm.io/gorm"
)

func (s *Store) CreateCart(ctx context.Context, cart *Cart) error {
	if cart.Version == 0 {
		cart.Version = 1
	}
	return s.db.WithContext(ctx).Create(cart).Error
}

// GetCart loads the cart with its lines in display order. Lines missing a
// name or sku snapshot are filled from the catalog.
func (s *Store) GetCart(ctx context.Context, id string) (*Cart, error) {
	var cart Cart
	err := s.db.WithContext(ctx).Preload("Items", orderedItems).Where("id = ?", id).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrCartNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.backfillItemNames(ctx, cart.Items); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (s *Store) backfillItemNames(ctx context.Context, items []CartItem) error {
	var productIds []string
	for _, item := range items {
		if item.Name == "" || item.Sku == "" {
			productIds = append(productIds, item.ProductId)
		}
	}
	if len(productIds) == 0 {
		return nil
	}
	var products []Product
	if err := s.db.WithContext(ctx).Select("id", "name", "sku").Where("id IN ?", productIds).Find(&products).Error; err != nil {
		return err
	}
	byId := make(map[string]Product, len(products))
	for _, p := range products {
		byId[p.ID] = p
	}
	for i := range items {
		p, ok := byId[items[i].ProductId]
		if !ok {
			continue
		}
		if items[i].Name == "" {
			items[i].Name = p.Name
		}
		if items[i].Sku == "" {
			items[i].Sku = p.Sku
		}
	}
	return nil
}

// SaveCart writes the rollups and replaces every line in one unit of work.
// The write only applies when the stored version still matches cart.Version;
// on success cart.Version is advanced.
func (s *Store) SaveCart(ctx context.Context, cart *Cart) error {
	now := nowUTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Cart{}).
			Where("id = ? AND version = ? AND status = ?", cart.ID, cart.Version, CartStatusActive).
			Updates(map[string]interface{}{
				"customer_id":    cart.CustomerId,
				"subtotal":       cart.Subtotal,
				"total_discount": cart.TotalDiscount,
				"total_tax":      cart.TotalTax,
				"total":          cart.Total,
				"version":        cart.Version + 1,
				"updated_at":     now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ErrCartModified
		}
		if err := tx.Where("cart_id = ?", cart.ID).Delete(&CartItem{}).Error; err != nil {
			return err
		}
		if len(cart.Items) > 0 {
			if err := tx.Create(&cart.Items).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	cart.Version++
	cart.UpdatedAt = now
	return nil
}

// AbandonCart moves an active cart to abandoned. Missing or already closed carts are left alone.
func (s *Store) AbandonCart(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&Cart{}).
		Where("id = ? AND status = ?", id, CartStatusActive).
		Updates(map[string]interface{}{
			"status":  CartStatusAbandoned,
			"version": gorm.Expr("version + 1"),
		}).Error
}

// ListStaleCarts returns active carts untouched since before, oldest first.
func (s *Store) ListStaleCarts(ctx context.Context, before time.Time, limit int) ([]Cart, error) {
	var carts []Cart
	q := s.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", CartStatusActive, before).
		Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&carts).Error; err != nil {
		return nil, err
	}
	return carts, nil
}
