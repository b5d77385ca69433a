package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/pos_backend/models"
)

// CartStore is the authoritative cart persistence. models.Store implements it.
type CartStore interface {
	CreateCart(ctx context.Context, cart *models.Cart) error
	GetCart(ctx context.Context, id string) (*models.Cart, error)
	SaveCart(ctx context.Context, cart *models.Cart) error
	AbandonCart(ctx context.Context, id string) error
	ListStaleCarts(ctx context.Context, before time.Time, limit int) ([]models.Cart, error)
}

// TransactionStore persists transactions and performs the atomic settle and
// void units of work. models.Store implements it.
type TransactionStore interface {
	GetCart(ctx context.Context, id string) (*models.Cart, error)
	NextReceiptSequence(ctx context.Context, storeId string, businessDate string) (int, error)
	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, filter models.TransactionFilter) (*models.TransactionPage, error)
	SettleTransaction(ctx context.Context, settlement models.Settlement) (*models.Transaction, error)
	VoidTransaction(ctx context.Context, voiding models.Voiding) (*models.Transaction, error)
	FailTransaction(ctx context.Context, id string, reason string) (*models.Transaction, error)
}

// Catalog resolves products for pricing.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
}
