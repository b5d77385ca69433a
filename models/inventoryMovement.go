package models

import "time"

// InventoryMovement is an insert-only audit row for one stock change.
type InventoryMovement struct {
	ID                string       `gorm:"type:char(36);primary_key" json:"id"`
	StoreId           string       `gorm:"size:64;not null;index" json:"store_id"`
	ProductId         string       `gorm:"type:char(36);not null;index" json:"product_id"`
	Quantity          int          `gorm:"not null" json:"quantity"`
	MovementType      MovementType `gorm:"size:20;not null" json:"movement_type"`
	TransactionId     string       `gorm:"type:char(36);not null;index" json:"transaction_id"`
	TransactionItemId string       `gorm:"type:char(36);not null" json:"transaction_item_id"`
	CreatedAt         time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

// StockMovement is a pending stock change; Quantity is signed.
type StockMovement struct {
	ProductId         string
	TransactionItemId string
	Quantity          int
	MovementType      MovementType
}

// Settlement carries everything the store needs to complete a pending transaction.
type Settlement struct {
	TransactionId    string
	PaymentMethod    string
	PaymentReference *string
	Metadata         Metadata
	Movements        []StockMovement
	StrictStock      bool
	CompletedAt      time.Time
}

// Voiding carries everything the store needs to void a completed transaction.
type Voiding struct {
	TransactionId string
	Reason        string
	Movements     []StockMovement
	VoidedAt      time.Time
}
