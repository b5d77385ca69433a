package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/utils"
)

// memStore is an in-memory CartStore, TransactionStore and Catalog. One mutex
// stands in for the DB transaction, so each method is an atomic unit of work.
type memStore struct {
	mu           sync.Mutex
	carts        map[string]*models.Cart
	transactions map[string]*models.Transaction
	products     map[string]*models.Product
	sequences    map[string]int
	movements    []models.InventoryMovement

	// failNextCreate makes the next CreateTransaction report a receipt collision this many times.
	failNextCreate int
	getCartCalls   int
	err            error
	// getCartHook runs before every GetCart, outside the lock.
	getCartHook func(ctx context.Context)
}

func newMemStore() *memStore {
	return &memStore{
		carts:        make(map[string]*models.Cart),
		transactions: make(map[string]*models.Transaction),
		products:     make(map[string]*models.Product),
		sequences:    make(map[string]int),
	}
}

// clone deep-copies through JSON so callers never share slices or maps with the store.
func clone[T any](v *T) *T {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		panic(err)
	}
	return &out
}

func (s *memStore) addProduct(p models.Product) *models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.products[p.ID] = &p
	return clone(&p)
}

func (s *memStore) stock(productId string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[productId].StockQuantity
}

func (s *memStore) movementCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.movements)
}

func (s *memStore) GetProduct(_ context.Context, id string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, utils.ErrProductNotFound
	}
	return clone(p), nil
}

func (s *memStore) CreateCart(_ context.Context, cart *models.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if cart.ID == "" {
		cart.ID = uuid.NewString()
	}
	if cart.Version == 0 {
		cart.Version = 1
	}
	now := time.Now().UTC()
	cart.CreatedAt, cart.UpdatedAt = now, now
	s.carts[cart.ID] = clone(cart)
	return nil
}

func (s *memStore) GetCart(ctx context.Context, id string) (*models.Cart, error) {
	if s.getCartHook != nil {
		s.getCartHook(ctx)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCartCalls++
	if s.err != nil {
		return nil, s.err
	}
	cart, ok := s.carts[id]
	if !ok {
		return nil, utils.ErrCartNotFound
	}
	return clone(cart), nil
}

func (s *memStore) SaveCart(_ context.Context, cart *models.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	stored, ok := s.carts[cart.ID]
	if !ok || stored.Version != cart.Version || stored.Status != models.CartStatusActive {
		return utils.ErrCartModified
	}
	for i := range cart.Items {
		if cart.Items[i].ID == "" {
			cart.Items[i].ID = uuid.NewString()
		}
	}
	cart.Version++
	cart.UpdatedAt = time.Now().UTC()
	s.carts[cart.ID] = clone(cart)
	return nil
}

func (s *memStore) AbandonCart(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cart, ok := s.carts[id]; ok && cart.Status == models.CartStatusActive {
		cart.Status = models.CartStatusAbandoned
		cart.Version++
	}
	return nil
}

func (s *memStore) ListStaleCarts(_ context.Context, before time.Time, limit int) ([]models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Cart
	for _, cart := range s.carts {
		if cart.Status == models.CartStatusActive && cart.UpdatedAt.Before(before) {
			out = append(out, *clone(cart))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) NextReceiptSequence(_ context.Context, storeId string, businessDate string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := storeId + "|" + businessDate
	s.sequences[key]++
	return s.sequences[key], nil
}

func (s *memStore) CreateTransaction(_ context.Context, txn *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNextCreate > 0 {
		s.failNextCreate--
		return fmt.Errorf("%w: %s", utils.ErrDuplicateReceipt, txn.ReceiptNumber)
	}
	for _, existing := range s.transactions {
		if existing.ReceiptNumber == txn.ReceiptNumber {
			return fmt.Errorf("%w: %s", utils.ErrDuplicateReceipt, txn.ReceiptNumber)
		}
	}
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	for i := range txn.Items {
		txn.Items[i].TransactionId = txn.ID
		if txn.Items[i].ID == "" {
			txn.Items[i].ID = uuid.NewString()
		}
	}
	now := time.Now().UTC()
	txn.CreatedAt, txn.UpdatedAt = now, now
	s.transactions[txn.ID] = clone(txn)
	return nil
}

func (s *memStore) GetTransaction(_ context.Context, id string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.transactions[id]
	if !ok {
		return nil, utils.ErrTransactionNotFound
	}
	return clone(txn), nil
}

func (s *memStore) ListTransactions(_ context.Context, filter models.TransactionFilter) (*models.TransactionPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	filter.Normalize()
	var matched []models.Transaction
	for _, txn := range s.transactions {
		if txn.StoreId != filter.StoreId ||
			(filter.CashierId != nil && txn.CashierId != *filter.CashierId) ||
			(filter.Type != nil && txn.Type != *filter.Type) ||
			(filter.Status != nil && txn.Status != *filter.Status) ||
			(filter.From != nil && txn.CreatedAt.Before(*filter.From)) ||
			(filter.To != nil && !txn.CreatedAt.Before(*filter.To)) {
			continue
		}
		if filter.CustomerId != nil && (txn.CustomerId == nil || *txn.CustomerId != *filter.CustomerId) {
			continue
		}
		matched = append(matched, *clone(txn))
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ReceiptNumber > matched[j].ReceiptNumber
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	page := &models.TransactionPage{Items: []models.Transaction{}, Total: int64(len(matched)), Page: filter.Page, PageSize: filter.PageSize}
	start := filter.Offset()
	if start < len(matched) {
		end := start + filter.PageSize
		if end > len(matched) {
			end = len(matched)
		}
		page.Items = matched[start:end]
	}
	return page, nil
}

func (s *memStore) applyMovements(txn *models.Transaction, movements []models.StockMovement) error {
	for _, m := range movements {
		if _, ok := s.products[m.ProductId]; !ok {
			return utils.ErrProductNotFound
		}
	}
	for _, m := range movements {
		if m.Quantity == 0 {
			continue
		}
		s.products[m.ProductId].StockQuantity += m.Quantity
		s.movements = append(s.movements, models.InventoryMovement{
			ID:                uuid.NewString(),
			StoreId:           txn.StoreId,
			ProductId:         m.ProductId,
			Quantity:          m.Quantity,
			MovementType:      m.MovementType,
			TransactionId:     txn.ID,
			TransactionItemId: m.TransactionItemId,
		})
	}
	return nil
}

func (s *memStore) SettleTransaction(_ context.Context, settlement models.Settlement) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.transactions[settlement.TransactionId]
	if !ok {
		return nil, utils.ErrTransactionNotFound
	}
	if txn.Status != models.TransactionStatusPending {
		return nil, utils.NewInvalidStateError("transaction is %s", txn.Status)
	}
	if settlement.StrictStock {
		need := make(map[string]int)
		for _, m := range settlement.Movements {
			need[m.ProductId] += m.Quantity
		}
		for productId, delta := range need {
			if p, ok := s.products[productId]; ok && p.StockQuantity+delta < 0 {
				return nil, fmt.Errorf("%w: %s", utils.ErrInsufficientStock, p.Sku)
			}
		}
	}
	if err := s.applyMovements(txn, settlement.Movements); err != nil {
		return nil, err
	}
	completedAt := settlement.CompletedAt
	txn.Status = models.TransactionStatusCompleted
	txn.CompletedAt = &completedAt
	txn.Metadata = txn.Metadata.Merge(settlement.Metadata)
	if settlement.PaymentMethod != "" {
		txn.PaymentMethod = settlement.PaymentMethod
	}
	if settlement.PaymentReference != nil {
		txn.PaymentReference = settlement.PaymentReference
	}
	if txn.CartId != nil {
		if cart, ok := s.carts[*txn.CartId]; ok && cart.Status == models.CartStatusActive {
			cart.Status = models.CartStatusCompleted
			cart.Version++
		}
	}
	return clone(txn), nil
}

func (s *memStore) VoidTransaction(_ context.Context, voiding models.Voiding) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.transactions[voiding.TransactionId]
	if !ok {
		return nil, utils.ErrTransactionNotFound
	}
	if txn.Status != models.TransactionStatusCompleted {
		return nil, utils.NewInvalidStateError("transaction is %s", txn.Status)
	}
	if err := s.applyMovements(txn, voiding.Movements); err != nil {
		return nil, err
	}
	voidedAt := voiding.VoidedAt
	txn.Status = models.TransactionStatusVoided
	txn.VoidedAt = &voidedAt
	txn.Notes = utils.AppendNote(txn.Notes, "Voided: "+voiding.Reason)
	return clone(txn), nil
}

func (s *memStore) FailTransaction(_ context.Context, id string, reason string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.transactions[id]
	if !ok {
		return nil, utils.ErrTransactionNotFound
	}
	if txn.Status != models.TransactionStatusPending {
		return nil, utils.NewInvalidStateError("transaction is %s", txn.Status)
	}
	txn.Status = models.TransactionStatusFailed
	txn.Notes = utils.AppendNote(txn.Notes, "Failed: "+reason)
	return clone(txn), nil
}
