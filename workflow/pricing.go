package workflow

import (
	"context"

	"github.com/google/uuid"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
)

type lineRequest struct {
	ProductId string
	Quantity  int
	UnitPrice *decimal.Decimal
	Discount  *decimal.Decimal
	Metadata  models.Metadata
}

// lookupProduct resolves an active catalog product.
func lookupProduct(ctx context.Context, catalog Catalog, productId string) (*models.Product, error) {
	product, err := catalog.GetProduct(ctx, productId)
	if err != nil {
		return nil, utils.Infrastructure(err)
	}
	if !product.IsActive {
		return nil, utils.ErrProductInactive
	}
	return product, nil
}

// addLine merges req into items by product id or appends a new line.
// A merged line takes the new price and keeps its discount unless one is given.
func addLine(items []models.CartItem, product *models.Product, req lineRequest) []models.CartItem {
	unitPrice := product.UnitPrice
	if req.UnitPrice != nil {
		unitPrice = *req.UnitPrice
	}

	for i := range items {
		if items[i].ProductId != product.ID {
			continue
		}
		line := &items[i]
		line.Quantity += req.Quantity
		line.UnitPrice = unitPrice
		line.TaxRate = product.TaxRate
		line.Name = product.Name
		line.Sku = product.Sku
		if req.Discount != nil {
			line.DiscountRate = *req.Discount
		}
		if len(req.Metadata) > 0 {
			line.Metadata = line.Metadata.Merge(req.Metadata)
		}
		return items
	}

	line := models.CartItem{
		ID:           uuid.NewString(),
		ProductId:    product.ID,
		Name:         product.Name,
		Sku:          product.Sku,
		Quantity:     req.Quantity,
		UnitPrice:    unitPrice,
		DiscountRate: decimal.Zero,
		TaxRate:      product.TaxRate,
		Metadata:     req.Metadata,
	}
	if req.Discount != nil {
		line.DiscountRate = *req.Discount
	}
	return append(items, line)
}
