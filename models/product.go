package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. StockQuantity is only ever changed with an
// atomic increment inside a settlement or void unit of work.
type Product struct {
	ID            string          `gorm:"type:char(36);primary_key" json:"id"`
	Name          string          `gorm:"size:255;not null" json:"name" validate:"required"`
	Sku           string          `gorm:"size:100;not null;uniqueIndex" json:"sku" validate:"required"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price" validate:"positive"`
	TaxRate       decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"tax_rate" validate:"fraction"`
	IsActive      bool            `gorm:"not null" json:"is_active"`
	StockQuantity int             `gorm:"not null;default:0" json:"stock_quantity"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
