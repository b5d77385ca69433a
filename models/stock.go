package models

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mmdatafocus/pos_backend/utils"
	"gorm.io/gorm"
)

// netStockChanges sums signed quantities per product, skipping zero moves.
func netStockChanges(movements []StockMovement) map[string]int {
	net := make(map[string]int)
	for _, m := range movements {
		if m.Quantity == 0 {
			continue
		}
		net[m.ProductId] += m.Quantity
	}
	return net
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// checkStockSufficiency locks the product rows a settlement would decrement
// and fails if any would end up below zero.
func checkStockSufficiency(tx *gorm.DB, movements []StockMovement) error {
	net := netStockChanges(movements)
	// lock in id order so concurrent settlements cannot deadlock
	for _, productId := range sortedKeys(net) {
		delta := net[productId]
		if delta >= 0 {
			continue
		}
		var product Product
		if err := lockForUpdate(tx).Select("id", "sku", "stock_quantity").Where("id = ?", productId).First(&product).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", utils.ErrProductNotFound, productId)
			}
			return err
		}
		if product.StockQuantity+delta < 0 {
			return fmt.Errorf("%w: product %s has %d on hand, needs %d", utils.ErrInsufficientStock, product.Sku, product.StockQuantity, -delta)
		}
	}
	return nil
}

// applyStockMovements increments each product's counter by the signed quantity
// and records one inventory movement per line.
func applyStockMovements(tx *gorm.DB, storeId string, transactionId string, movements []StockMovement) error {
	net := netStockChanges(movements)
	for _, productId := range sortedKeys(net) {
		res := tx.Model(&Product{}).
			Where("id = ?", productId).
			UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", net[productId]))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", utils.ErrProductNotFound, productId)
		}
	}

	records := make([]InventoryMovement, 0, len(movements))
	for _, m := range movements {
		if m.Quantity == 0 {
			continue
		}
		records = append(records, InventoryMovement{
			StoreId:           storeId,
			ProductId:         m.ProductId,
			Quantity:          m.Quantity,
			MovementType:      m.MovementType,
			TransactionId:     transactionId,
			TransactionItemId: m.TransactionItemId,
		})
	}
	if len(records) == 0 {
		return nil
	}
	return tx.Create(&records).Error
}
