package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is the durable record of a sale, return or void. Rollups are
// fixed at creation; settlement and void only change status and annotations.
type Transaction struct {
	ID               string            `gorm:"type:char(36);primary_key" json:"id"`
	StoreId          string            `gorm:"size:64;not null;index:idx_transactions_store_created,priority:1" json:"store_id"`
	CashierId        string            `gorm:"size:64;not null;index" json:"cashier_id"`
	CustomerId       *string           `gorm:"size:64;default:null;index" json:"customer_id"`
	Type             TransactionType   `gorm:"size:20;not null" json:"type"`
	Status           TransactionStatus `gorm:"size:20;not null;index" json:"status"`
	CartId           *string           `gorm:"type:char(36);default:null;index" json:"cart_id"`
	Items            []TransactionItem `gorm:"foreignKey:TransactionId" json:"items"`
	Subtotal         decimal.Decimal   `gorm:"type:decimal(20,2);default:0" json:"subtotal"`
	TotalDiscount    decimal.Decimal   `gorm:"type:decimal(20,2);default:0" json:"total_discount"`
	TotalTax         decimal.Decimal   `gorm:"type:decimal(20,2);default:0" json:"total_tax"`
	Total            decimal.Decimal   `gorm:"type:decimal(20,2);default:0" json:"total"`
	PaymentMethod    string            `gorm:"size:50" json:"payment_method"`
	PaymentReference *string           `gorm:"size:255;default:null" json:"payment_reference"`
	ReceiptNumber    string            `gorm:"size:100;not null;uniqueIndex" json:"receipt_number"`
	Notes            *string           `gorm:"type:text;default:null" json:"notes"`
	Metadata         Metadata          `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt        time.Time         `gorm:"autoCreateTime;index:idx_transactions_store_created,priority:2" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	CompletedAt      *time.Time        `gorm:"default:null" json:"completed_at"`
	VoidedAt         *time.Time        `gorm:"default:null" json:"voided_at"`
}

type TransactionItem struct {
	ID             string          `gorm:"type:char(36);primary_key" json:"id"`
	TransactionId  string          `gorm:"type:char(36);not null;index" json:"transaction_id"`
	Position       int             `gorm:"not null" json:"position"`
	ProductId      string          `gorm:"type:char(36);not null;index" json:"product_id"`
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

type NewTransactionItem struct {
	ProductId string           `json:"product_id" validate:"required"`
	Quantity  int              `json:"quantity" validate:"gt=0"`
	UnitPrice *decimal.Decimal `json:"unit_price" validate:"omitempty,positive"`
	Discount  *decimal.Decimal `json:"discount" validate:"omitempty,fraction"`
	Metadata  Metadata         `json:"metadata"`
}

type NewTransaction struct {
	StoreId          string               `json:"store_id" validate:"required"`
	CashierId        string               `json:"cashier_id" validate:"required"`
	CustomerId       *string              `json:"customer_id"`
	Type             TransactionType      `json:"type" validate:"required"`
	CartId           *string              `json:"cart_id"`
	Items            []NewTransactionItem `json:"items" validate:"omitempty,dive"`
	PaymentMethod    string               `json:"payment_method" validate:"required"`
	PaymentReference *string              `json:"payment_reference"`
	Notes            *string              `json:"notes"`
	Metadata         Metadata             `json:"metadata"`
}

type Payment struct {
	PaymentMethod    string          `json:"payment_method" validate:"required"`
	Amount           decimal.Decimal `json:"amount"`
	PaymentReference *string         `json:"payment_reference"`
	Metadata         Metadata        `json:"metadata"`
}

// NewTransactionItemFromCart snapshots a cart line verbatim. The snapshot gets
// its own id on insert since one cart may back several pending transactions.
func NewTransactionItemFromCart(transactionId string, item CartItem) TransactionItem {
	return TransactionItem{
		TransactionId:  transactionId,
		Position:       item.Position,
		ProductId:      item.ProductId,
		Name:           item.Name,
		Sku:            item.Sku,
		Quantity:       item.Quantity,
		UnitPrice:      item.UnitPrice,
		DiscountRate:   item.DiscountRate,
		TaxRate:        item.TaxRate,
		Subtotal:       item.Subtotal,
		DiscountAmount: item.DiscountAmount,
		TaxAmount:      item.TaxAmount,
		Total:          item.Total,
		Metadata:       item.Metadata,
	}
}

// FormatReceiptNumber renders {storeId}-{YYYYMMDD}-{seq}, seq zero padded to four digits.
func FormatReceiptNumber(storeId string, businessDate string, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", storeId, businessDate, seq)
}

// BusinessDate is the YYYYMMDD calendar day of t in loc.
func BusinessDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("20060102")
}
