package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func newId(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	newId(&p.ID)
	return nil
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	newId(&c.ID)
	if c.Status == "" {
		c.Status = CartStatusActive
	}
	return nil
}

func (item *CartItem) BeforeCreate(tx *gorm.DB) error {
	newId(&item.ID)
	return nil
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	newId(&t.ID)
	if t.Status == "" {
		t.Status = TransactionStatusPending
	}
	return nil
}

func (item *TransactionItem) BeforeCreate(tx *gorm.DB) error {
	newId(&item.ID)
	return nil
}

func (m *InventoryMovement) BeforeCreate(tx *gorm.DB) error {
	newId(&m.ID)
	return nil
}
