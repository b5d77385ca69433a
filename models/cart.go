package models

import (
	"time"

	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
)

type Cart struct {
	ID            string          `gorm:"type:char(36);primary_key" json:"id"`
	StoreId       string          `gorm:"size:64;not null;index" json:"store_id"`
	CashierId     string          `gorm:"size:64;not null;index" json:"cashier_id"`
	CustomerId    *string         `gorm:"size:64;default:null" json:"customer_id"`
	Items         []CartItem      `gorm:"foreignKey:CartId" json:"items"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"subtotal"`
	TotalDiscount decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total_discount"`
	TotalTax      decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total_tax"`
	Total         decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total"`
	Status        CartStatus      `gorm:"size:20;not null;index" json:"status"`
	Version       int             `gorm:"not null;default:1" json:"version"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime;index" json:"updated_at"`
}

type CartItem struct {
	ID             string          `gorm:"type:char(36);primary_key" json:"id"`
	CartId         string          `gorm:"type:char(36);not null;index" json:"cart_id"`
	Position       int             `gorm:"not null" json:"position"`
	ProductId      string          `gorm:"type:char(36);not null" json:"product_id"`
	Name           string          `gorm:"size:255" json:"name"`
	Sku            string          `gorm:"size:100" json:"sku"`
	Quantity       int             `gorm:"not null" json:"quantity"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	DiscountRate   decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"discount_rate"`
	TaxRate        decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"tax_rate"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"subtotal"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"discount_amount"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"tax_amount"`
	Total          decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total"`
	Metadata       Metadata        `gorm:"type:json" json:"metadata,omitempty"`
}

type NewCart struct {
	StoreId    string  `json:"store_id" validate:"required"`
	CashierId  string  `json:"cashier_id" validate:"required"`
	CustomerId *string `json:"customer_id"`
}

type NewCartItem struct {
	ProductId string           `json:"product_id" validate:"required"`
	Quantity  int              `json:"quantity" validate:"gt=0"`
	UnitPrice *decimal.Decimal `json:"unit_price" validate:"omitempty,positive"`
	Discount  *decimal.Decimal `json:"discount" validate:"omitempty,fraction"`
	Metadata  Metadata         `json:"metadata"`
}

type CartItemUpdate struct {
	Quantity *int             `json:"quantity"`
	Discount *decimal.Decimal `json:"discount" validate:"omitempty,fraction"`
	Metadata Metadata         `json:"metadata"`
}

// CalculateAmounts derives the line's money fields from price, quantity and rates.
func (item *CartItem) CalculateAmounts() {
	amounts := utils.CalculateLineAmounts(item.UnitPrice, item.Quantity, item.DiscountRate, item.TaxRate)
	item.Subtotal = amounts.Subtotal
	item.DiscountAmount = amounts.DiscountAmount
	item.TaxAmount = amounts.TaxAmount
	item.Total = amounts.Total
}

// CalculateTotals recomputes every line and sums the rollups from scratch.
// Positions are renumbered to match slice order.
func (cart *Cart) CalculateTotals() {
	var subtotal, discount, tax, total decimal.Decimal
	for i := range cart.Items {
		item := &cart.Items[i]
		item.Position = i + 1
		item.CartId = cart.ID
		item.CalculateAmounts()
		subtotal = subtotal.Add(item.Subtotal)
		discount = discount.Add(item.DiscountAmount)
		tax = tax.Add(item.TaxAmount)
		total = total.Add(item.Total)
	}
	cart.Subtotal = subtotal
	cart.TotalDiscount = discount
	cart.TotalTax = tax
	cart.Total = total
}

func (cart *Cart) FindItem(itemId string) int {
	for i, item := range cart.Items {
		if item.ID == itemId {
			return i
		}
	}
	return -1
}

func (cart *Cart) FindProduct(productId string) int {
	for i, item := range cart.Items {
		if item.ProductId == productId {
			return i
		}
	}
	return -1
}

func (cart *Cart) RemoveItemAt(i int) {
	cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
}

// Clone returns a deep copy so callers can mutate without touching a cached value.
func (cart *Cart) Clone() *Cart {
	c := *cart
	c.Items = make([]CartItem, len(cart.Items))
	copy(c.Items, cart.Items)
	return &c
}
