package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmdatafocus/pos_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NextReceiptSequence atomically advances and returns the receipt counter
// for storeId on businessDate (YYYYMMDD).
func (s *Store) NextReceiptSequence(ctx context.Context, storeId string, businessDate string) (int, error) {
	var seq int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := ReceiptSequence{StoreId: storeId, BusinessDate: businessDate, LastSeq: 1}
		if err := tx.Clauses(clause.OnConflict{
			DoUpdates: clause.Assignments(map[string]interface{}{"last_seq": gorm.Expr("last_seq + 1")}),
		}).Create(&row).Error; err != nil {
			return err
		}
		if err := lockForUpdate(tx).
			Where("store_id = ? AND business_date = ?", storeId, businessDate).
			First(&row).Error; err != nil {
			return err
		}
		seq = row.LastSeq
		return nil
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// CreateTransaction inserts the transaction and its lines together.
func (s *Store) CreateTransaction(ctx context.Context, txn *Transaction) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(txn).Error
	})
	if isDuplicateKey(err) {
		return fmt.Errorf("%w: %s", utils.ErrDuplicateReceipt, txn.ReceiptNumber)
	}
	return err
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	return getTransaction(s.db.WithContext(ctx), id)
}

func getTransaction(db *gorm.DB, id string) (*Transaction, error) {
	var txn Transaction
	err := db.Preload("Items", orderedItems).Where("id = ?", id).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// lockTransaction reads the transaction row under FOR UPDATE.
func lockTransaction(tx *gorm.DB, id string) (*Transaction, error) {
	var txn Transaction
	err := lockForUpdate(tx).Where("id = ?", id).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// swapStatus flips status only if the row still holds from.
func swapStatus(tx *gorm.DB, id string, from TransactionStatus, updates map[string]interface{}) error {
	res := tx.Model(&Transaction{}).Where("id = ? AND status = ?", id, from).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.NewInvalidStateError("transaction %s is no longer %s", id, from)
	}
	return nil
}

// ListTransactions returns one page of matching transactions, newest first, with the total match count.
func (s *Store) ListTransactions(ctx context.Context, filter TransactionFilter) (*TransactionPage, error) {
	filter.Normalize()

	q := s.db.WithContext(ctx).Model(&Transaction{}).Where("store_id = ?", filter.StoreId)
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at < ?", *filter.To)
	}
	if filter.CashierId != nil {
		q = q.Where("cashier_id = ?", *filter.CashierId)
	}
	if filter.CustomerId != nil {
		q = q.Where("customer_id = ?", *filter.CustomerId)
	}
	if filter.Type != nil {
		q = q.Where("type = ?", *filter.Type)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}
	items := make([]Transaction, 0)
	if err := q.Preload("Items", orderedItems).
		Order("created_at DESC").Order("id DESC").
		Limit(filter.PageSize).Offset(filter.Offset()).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return &TransactionPage{
		Items:    items,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

// SettleTransaction completes a pending transaction. Stock, inventory movements,
// the status flip and the source cart all commit together or not at all.
func (s *Store) SettleTransaction(ctx context.Context, settlement Settlement) (*Transaction, error) {
	var settled *Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := lockTransaction(tx, settlement.TransactionId)
		if err != nil {
			return err
		}
		if txn.Status != TransactionStatusPending {
			return utils.NewInvalidStateError("transaction %s is %s, only pending transactions can be paid", txn.ID, txn.Status)
		}
		if settlement.StrictStock {
			if err := checkStockSufficiency(tx, settlement.Movements); err != nil {
				return err
			}
		}
		if err := applyStockMovements(tx, txn.StoreId, txn.ID, settlement.Movements); err != nil {
			return err
		}

		completedAt := settlement.CompletedAt
		if completedAt.IsZero() {
			completedAt = nowUTC()
		}
		updates := map[string]interface{}{
			"status":       TransactionStatusCompleted,
			"completed_at": completedAt,
			"metadata":     txn.Metadata.Merge(settlement.Metadata),
		}
		if settlement.PaymentMethod != "" {
			updates["payment_method"] = settlement.PaymentMethod
		}
		if settlement.PaymentReference != nil {
			updates["payment_reference"] = *settlement.PaymentReference
		}
		if err := swapStatus(tx, txn.ID, TransactionStatusPending, updates); err != nil {
			return err
		}

		if txn.CartId != nil {
			if err := tx.Model(&Cart{}).
				Where("id = ? AND status = ?", *txn.CartId, CartStatusActive).
				Updates(map[string]interface{}{
					"status":  CartStatusCompleted,
					"version": gorm.Expr("version + 1"),
				}).Error; err != nil {
				return err
			}
		}

		settled, err = getTransaction(tx, txn.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return settled, nil
}

// VoidTransaction moves a completed transaction to voided and applies the
// reversal movements in the same unit of work. Rollups are left untouched.
func (s *Store) VoidTransaction(ctx context.Context, voiding Voiding) (*Transaction, error) {
	var voided *Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := lockTransaction(tx, voiding.TransactionId)
		if err != nil {
			return err
		}
		if txn.Status != TransactionStatusCompleted {
			return utils.NewInvalidStateError("transaction %s is %s, only completed transactions can be voided", txn.ID, txn.Status)
		}
		if err := applyStockMovements(tx, txn.StoreId, txn.ID, voiding.Movements); err != nil {
			return err
		}

		voidedAt := voiding.VoidedAt
		if voidedAt.IsZero() {
			voidedAt = nowUTC()
		}
		if err := swapStatus(tx, txn.ID, TransactionStatusCompleted, map[string]interface{}{
			"status":    TransactionStatusVoided,
			"voided_at": voidedAt,
			"notes":     utils.AppendNote(txn.Notes, "Voided: "+voiding.Reason),
		}); err != nil {
			return err
		}

		voided, err = getTransaction(tx, txn.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return voided, nil
}

// FailTransaction moves a pending transaction to failed with reason appended to notes.
func (s *Store) FailTransaction(ctx context.Context, id string, reason string) (*Transaction, error) {
	var failed *Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := lockTransaction(tx, id)
		if err != nil {
			return err
		}
		if txn.Status != TransactionStatusPending {
			return utils.NewInvalidStateError("transaction %s is %s, only pending transactions can fail", txn.ID, txn.Status)
		}
		if err := swapStatus(tx, txn.ID, TransactionStatusPending, map[string]interface{}{
			"status": TransactionStatusFailed,
			"notes":  utils.AppendNote(txn.Notes, "Failed: "+reason),
		}); err != nil {
			return err
		}
		failed, err = getTransaction(tx, txn.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return failed, nil
}
