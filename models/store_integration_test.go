package models_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
)

var testStore *models.Store

func TestMain(m *testing.M) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	container, err := mysql.Run(ctx, "mysql:8.0.36", mysql.WithDatabase("pos_test"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "start mysql container: %v\n", err)
		os.Exit(1)
	}
	dsn, err := container.ConnectionString(ctx, "charset=utf8mb4", "parseTime=true", "loc=UTC")
	if err != nil {
		fmt.Fprintf(os.Stderr, "mysql dsn: %v\n", err)
		os.Exit(1)
	}
	db, err := config.OpenDatabase(dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	if err := models.MigrateTable(db); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
	testStore = models.NewStore(db)

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func requireStore(t *testing.T) *models.Store {
	t.Helper()
	if testStore == nil {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}
	return testStore
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2))
}

func seedProduct(t *testing.T, store *models.Store, price string, taxRate string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:          "Widget",
		Sku:           "SKU-" + strings.ReplaceAll(t.Name(), "/", "-") + fmt.Sprint(time.Now().UnixNano()),
		UnitPrice:     dec(price),
		TaxRate:       dec(taxRate),
		IsActive:      true,
		StockQuantity: stock,
	}
	require.NoError(t, store.UpsertProduct(context.Background(), p))
	return p
}

// seedPendingSale writes an active cart with one line and a pending sale built from it.
func seedPendingSale(t *testing.T, store *models.Store, storeId string, product *models.Product, qty int) (*models.Cart, *models.Transaction) {
	t.Helper()
	ctx := context.Background()

	cart := &models.Cart{StoreId: storeId, CashierId: "cashier-1"}
	require.NoError(t, store.CreateCart(ctx, cart))
	cart.Items = []models.CartItem{{
		ProductId: product.ID,
		Name:      product.Name,
		Sku:       product.Sku,
		Quantity:  qty,
		UnitPrice: product.UnitPrice,
		TaxRate:   product.TaxRate,
	}}
	cart.CalculateTotals()
	require.NoError(t, store.SaveCart(ctx, cart))

	day := models.BusinessDate(time.Now(), time.UTC)
	seq, err := store.NextReceiptSequence(ctx, storeId, day)
	require.NoError(t, err)

	txn := &models.Transaction{
		StoreId:       storeId,
		CashierId:     cart.CashierId,
		Type:          models.TransactionTypeSale,
		CartId:        &cart.ID,
		Subtotal:      cart.Subtotal,
		TotalDiscount: cart.TotalDiscount,
		TotalTax:      cart.TotalTax,
		Total:         cart.Total,
		PaymentMethod: "cash",
		ReceiptNumber: models.FormatReceiptNumber(storeId, day, seq),
	}
	for _, item := range cart.Items {
		txn.Items = append(txn.Items, models.NewTransactionItemFromCart("", item))
	}
	require.NoError(t, store.CreateTransaction(ctx, txn))
	return cart, txn
}

func saleMovements(txn *models.Transaction) []models.StockMovement {
	var out []models.StockMovement
	for _, item := range txn.Items {
		out = append(out, models.StockMovement{
			ProductId:         item.ProductId,
			TransactionItemId: item.ID,
			Quantity:          -item.Quantity,
			MovementType:      models.MovementTypeSale,
		})
	}
	return out
}

func TestCartSaveVersionCheck(t *testing.T) {
	store := requireStore(t)
	ctx := context.Background()
	product := seedProduct(t, store, "10.00", "0.10", 5)

	cart := &models.Cart{StoreId: "S1", CashierId: "C1"}
	require.NoError(t, store.CreateCart(ctx, cart))
	assert.Equal(t, models.CartStatusActive, cart.Status)
	assert.Equal(t, 1, cart.Version)

	stale, err := store.GetCart(ctx, cart.ID)
	require.NoError(t, err)

	cart.Items = []models.CartItem{{ProductId: product.ID, Quantity: 2, UnitPrice: product.UnitPrice, TaxRate: product.TaxRate}}
	cart.CalculateTotals()
	require.NoError(t, store.SaveCart(ctx, cart))
	assert.Equal(t, 2, cart.Version)

	loaded, err := store.GetCart(ctx, cart.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assertMoney(t, "22.00", loaded.Total)
	// empty snapshots come back filled from the catalog
	assert.Equal(t, product.Sku, loaded.Items[0].Sku)
	assert.Equal(t, product.Name, loaded.Items[0].Name)

	stale.Items = nil
	stale.CalculateTotals()
	err = store.SaveCart(ctx, stale)
	assert.ErrorIs(t, err, utils.ErrConflict)
}

func TestAbandonCart(t *testing.T) {
	store := requireStore(t)
	ctx := context.Background()

	cart := &models.Cart{StoreId: "S1", CashierId: "C1"}
	require.NoError(t, store.CreateCart(ctx, cart))
	require.NoError(t, store.AbandonCart(ctx, cart.ID))
	require.NoError(t, store.AbandonCart(ctx, "missing"))

	loaded, err := store.GetCart(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CartStatusAbandoned, loaded.Status)

	_, err = store.GetCart(ctx, "missing")
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestNextReceiptSequenceIncreases(t *testing.T) {
	store := requireStore(t)
	ctx := context.Background()
	storeId := fmt.Sprintf("RS%d", time.Now().UnixNano())

	var wg sync.WaitGroup
	seqs := make(chan int, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := store.NextReceiptSequence(ctx, storeId, "20240101")
			assert.NoError(t, err)
			seqs <- seq
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int]bool)
	for seq := range seqs {
		assert.False(t, seen[seq], "duplicate sequence %d", seq)
		seen[seq] = true
	}
	assert.Len(t, seen, 20)

	next, err := store.NextReceiptSequence(ctx, storeId, "20240101")
	require.NoError(t, err)
	assert.Equal(t, 21, next)

	other, err := store.NextReceiptSequence(ctx, storeId, "20240102")
	require.NoError(t, err)
	assert.Equal(t, 1, other)
}

func TestCreateTransactionDuplicateReceipt(t *testing.T) {
	store := requireStore(t)
	ctx := context.Background()
	product := seedProduct(t, store, "10.00", "0.10", 5)
	_, txn := seedPendingSale(t, store, "DUP", product, 1)

	dup := &models.Transaction{
		StoreId:       "DUP",
		CashierId:     "C1",
		Type:          models.TransactionTypeSale,
		PaymentMethod: "cash",
		ReceiptNumber: txn.ReceiptNumber,
	}
	err := store.CreateTransaction(ctx, dup)
	assert.ErrorIs(t, err, utils.ErrDuplicateReceipt)
}

func TestSettleTransaction(t *testing.T) {
	store := requireStore(t)
	ctx := context.Background()
	product := seedProduct(t, store, "10.00", "0.10", 5)
	cart, txn := seedPendingSale(t, store, "S1", product, 2)
	assertMoney(t, "22.00", txn.Total)

	ref := "auth-123"
	settled, err := store.SettleTransaction(ctx, models.Settlement{
		TransactionId:    txn.ID,
		PaymentMethod:    "card",
		PaymentReference: &ref,
		Metadata:         models.Metadata{"terminal": "T1"},
		Movements:        saleMovements(txn),
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, settled.Status)
	assert.NotNil(t, settled.CompletedAt)
	assert.Equal(t, "card", settled.PaymentMethod)
	assert.Equal(t, "T1", settled.Metadata["terminal"])
	assertMoney(t, "22.00", settled.Total)

	p, err := store.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, p.StockQuantity)

	c, err := store.GetCart(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CartStatusCompleted, c.Status)

	_, err = store.SettleTransaction(ctx, models.Settlement{TransactionId: txn.ID, Movements: saleMovements(txn)})
	assert.ErrorIs(t, err, utils.ErrInvalidState)

	p, err = store.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, p.StockQuantity, "a rejected settlement must not move stock")
}

func TestSettleTransactionConcurrentOnce(t *testing.T) {
	store := requireStore(t)
	ctx := context.Background()
	product := seedProduct(t, store, "5.00", "0", 10)
	_, txn := seedPendingSale(t, store, "S1", product, 1)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.SettleTransaction(ctx, models.Settlement{TransactionId: txn.ID, Movements: saleMovements(txn)})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, utils.ErrInvalidState)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	p, err := store.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, p.StockQuantity)
}

func TestSettleTransactionStrictStock(t *testing.T) {
	store := requireStore(t)
	ctx := context.Background()
	product := seedProduct(t, store, "5.00", "0", 1)
	_, txn := seedPendingSale(t, store, "S1", product, 2)

	_, err := store.SettleTransaction(ctx, models.Settlement{
		TransactionId: txn.ID,
		Movements:     saleMovements(txn),
		StrictStock:   true,
	})
	assert.ErrorIs(t, err, utils.ErrInsufficientStock)

	loaded, err := store.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, loaded.Status)
	p, err := store.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.StockQuantity)

	failed, err := store.FailTransaction(ctx, txn.ID, "insufficient stock")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, failed.Status)
	require.NotNil(t, failed.Notes)
	assert.Contains(t, *failed.Notes, "insufficient stock")
}

func TestVoidTransaction(t *testing.T) {
	store := requireStore(t)
	ctx := context.Background()
	product := seedProduct(t, store, "10.00", "0.10", 5)
	_, txn := seedPendingSale(t, store, "S1", product, 2)

	_, err := store.VoidTransaction(ctx, models.Voiding{TransactionId: txn.ID, Reason: "too early"})
	assert.ErrorIs(t, err, utils.ErrInvalidState)

	_, err = store.SettleTransaction(ctx, models.Settlement{TransactionId: txn.ID, Movements: saleMovements(txn)})
	require.NoError(t, err)

	reversal := saleMovements(txn)
	for i := range reversal {
		reversal[i].Quantity = -reversal[i].Quantity
		reversal[i].MovementType = models.MovementTypeVoidReversal
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.VoidTransaction(ctx, models.Voiding{TransactionId: txn.ID, Reason: "customer refund", Movements: reversal})
		}()
	}
	wg.Wait()

	voided, err := store.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusVoided, voided.Status)
	assert.NotNil(t, voided.VoidedAt)
	require.NotNil(t, voided.Notes)
	assert.Contains(t, *voided.Notes, "customer refund")
	assertMoney(t, "22.00", voided.Total)

	p, err := store.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, p.StockQuantity)
}

func TestListTransactions(t *testing.T) {
	store := requireStore(t)
	ctx := context.Background()
	product := seedProduct(t, store, "1.00", "0", 100)
	storeId := fmt.Sprintf("LS%d", time.Now().UnixNano())

	for i := 0; i < 3; i++ {
		seedPendingSale(t, store, storeId, product, 1)
	}

	page, err := store.ListTransactions(ctx, models.TransactionFilter{StoreId: storeId, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Items, 2)
	assert.False(t, page.Items[0].CreatedAt.Before(page.Items[1].CreatedAt))

	completed := models.TransactionStatusCompleted
	page, err = store.ListTransactions(ctx, models.TransactionFilter{StoreId: storeId, Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, int64(0), page.Total)
	assert.Empty(t, page.Items)
}
