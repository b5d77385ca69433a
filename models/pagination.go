package models

import "time"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type TransactionFilter struct {
	StoreId    string             `form:"store_id" json:"store_id" validate:"required"`
	From       *time.Time         `form:"from" json:"from"`
	To         *time.Time         `form:"to" json:"to"`
	CashierId  *string            `form:"cashier_id" json:"cashier_id"`
	CustomerId *string            `form:"customer_id" json:"customer_id"`
	Type       *TransactionType   `form:"type" json:"type"`
	Status     *TransactionStatus `form:"status" json:"status"`
	Page       int                `form:"page" json:"page" validate:"omitempty,min=1"`
	PageSize   int                `form:"page_size" json:"page_size" validate:"omitempty,min=1,max=100"`
}

// Normalize fills paging defaults.
func (f *TransactionFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
}

func (f TransactionFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

type TransactionPage struct {
	Items    []Transaction `json:"items"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}
