package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

type recordingNotifier struct {
	mu     sync.Mutex
	events []TransactionEvent
	err    error
}

func (n *recordingNotifier) TransactionCompleted(_ context.Context, event TransactionEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func (n *recordingNotifier) recorded() []TransactionEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]TransactionEvent(nil), n.events...)
}

type fixture struct {
	store    *memStore
	mr       *miniredis.Miniredis
	rdb      *redis.Client
	cache    *RedisCartCache
	locker   *LocalLocker
	notifier *recordingNotifier
	carts    *CartManager
	txns     *TransactionManager
	p1       *models.Product
}

func newFixture(t *testing.T, opts TransactionManagerOptions) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := newMemStore()
	cache := NewRedisCartCache(rdb, time.Hour)
	locker := NewLocalLocker()
	notifier := &recordingNotifier{}

	txns := NewTransactionManager(store, store, cache, locker, notifier, opts)
	txns.now = func() time.Time { return fixedNow }

	f := &fixture{
		store:    store,
		mr:       mr,
		rdb:      rdb,
		cache:    cache,
		locker:   locker,
		notifier: notifier,
		carts:    NewCartManager(store, cache, store, nil),
		txns:     txns,
	}
	f.p1 = store.addProduct(models.Product{
		ID:            "P1",
		Name:          "Coffee beans",
		Sku:           "CB-250",
		UnitPrice:     dec("10.00"),
		TaxRate:       dec("0.10"),
		IsActive:      true,
		StockQuantity: 10,
	})
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intPtr(i int) *int {
	return &i
}

func strPtr(s string) *string {
	return &s
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2))
}

func assertRollups(t *testing.T, cart *models.Cart) {
	t.Helper()
	var subtotal, discount, tax, total decimal.Decimal
	for _, item := range cart.Items {
		subtotal = subtotal.Add(item.Subtotal)
		discount = discount.Add(item.DiscountAmount)
		tax = tax.Add(item.TaxAmount)
		total = total.Add(item.Total)
	}
	assert.True(t, cart.Subtotal.Equal(subtotal), "subtotal %s != %s", cart.Subtotal, subtotal)
	assert.True(t, cart.TotalDiscount.Equal(discount), "discount %s != %s", cart.TotalDiscount, discount)
	assert.True(t, cart.TotalTax.Equal(tax), "tax %s != %s", cart.TotalTax, tax)
	assert.True(t, cart.Total.Equal(total), "total %s != %s", cart.Total, total)
	assert.True(t, cart.Total.Equal(cart.Subtotal.Sub(cart.TotalDiscount).Add(cart.TotalTax)))
}

// cartWithP1 builds the S1/C1 cart holding quantity 2 of P1.
func (f *fixture) cartWithP1(t *testing.T) *models.Cart {
	t.Helper()
	ctx := context.Background()
	cart, err := f.carts.Create(ctx, models.NewCart{StoreId: "S1", CashierId: "C1"})
	require.NoError(t, err)
	cart, err = f.carts.AddItem(ctx, cart.ID, models.NewCartItem{ProductId: "P1", Quantity: 2})
	require.NoError(t, err)
	return cart
}

// pendingSale creates a pending sale for the S1/C1 cart, total 22.00.
func (f *fixture) pendingSale(t *testing.T) (*models.Cart, *models.Transaction) {
	t.Helper()
	cart := f.cartWithP1(t)
	txn, err := f.txns.CreateTransaction(context.Background(), models.NewTransaction{
		StoreId:       "S1",
		CashierId:     "C1",
		Type:          models.TransactionTypeSale,
		CartId:        &cart.ID,
		PaymentMethod: "cash",
	})
	require.NoError(t, err)
	return cart, txn
}
