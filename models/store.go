package models

import (
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/pos_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const mysqlDuplicateEntry = 1062

// Store is the relational store adapter. Every multi-row write runs in a
// single DB transaction and rolls back as a whole on error.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func lockForUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// catalog

func (s *Store) GetProduct(ctx context.Context, id string) (*Product, error) {
	var product Product
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// UpsertProduct inserts by sku or refreshes name, price, rate and active flag.
// Stock is only set on first insert.
func (s *Store) UpsertProduct(ctx context.Context, product *Product) error {
	if err := utils.ValidateStruct(product); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sku"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "unit_price", "tax_rate", "is_active", "updated_at"}),
		}).Create(product).Error
		if err != nil {
			return err
		}
		return tx.Where("sku = ?", product.Sku).First(product).Error
	})
}
