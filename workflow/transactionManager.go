package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/metrics"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxReceiptRetries bounds how many fresh receipt numbers are drawn after a collision.
const maxReceiptRetries = 3

const (
	lockReleaseTimeout = 2 * time.Second
	notifyTimeout      = 5 * time.Second
)

var tracer = otel.Tracer("pos-backend")

type TransactionManagerOptions struct {
	LockTTL     time.Duration
	StrictStock bool
	Location    *time.Location
	Metrics     *metrics.Metrics
}

// TransactionManager owns the transaction lifecycle: creation from a cart or
// direct items, the single pending -> completed settlement and void reversal.
type TransactionManager struct {
	store       TransactionStore
	catalog     Catalog
	carts       CartCache
	locker      Locker
	notifier    Notifier
	metrics     *metrics.Metrics
	logger      *logrus.Logger
	lockTTL     time.Duration
	strictStock bool
	location    *time.Location
	now         func() time.Time
	notifying   sync.WaitGroup
}

func NewTransactionManager(store TransactionStore, catalog Catalog, carts CartCache, locker Locker, notifier Notifier, opts TransactionManagerOptions) *TransactionManager {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &TransactionManager{
		store:       store,
		catalog:     catalog,
		carts:       carts,
		locker:      locker,
		notifier:    notifier,
		metrics:     opts.Metrics,
		logger:      config.GetLogger(),
		lockTTL:     opts.LockTTL,
		strictStock: opts.StrictStock,
		location:    opts.Location,
		now:         time.Now,
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// CreateTransaction builds a pending transaction from a cart snapshot or from
// directly priced items, and assigns its receipt number.
func (t *TransactionManager) CreateTransaction(ctx context.Context, input models.NewTransaction) (txn *models.Transaction, err error) {
	ctx, span := tracer.Start(ctx, "TransactionManager.CreateTransaction", trace.WithAttributes(
		attribute.String("store.id", input.StoreId),
		attribute.String("transaction.type", string(input.Type)),
	))
	defer func() { endSpan(span, err) }()

	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !input.Type.IsValid() {
		return nil, utils.NewValidationError("unknown transaction type %q", input.Type)
	}

	txn = &models.Transaction{
		StoreId:          input.StoreId,
		CashierId:        input.CashierId,
		CustomerId:       input.CustomerId,
		Type:             input.Type,
		Status:           models.TransactionStatusPending,
		PaymentMethod:    input.PaymentMethod,
		PaymentReference: input.PaymentReference,
		Notes:            input.Notes,
		Metadata:         input.Metadata,
	}

	var source *models.Cart
	switch {
	case input.CartId != nil && *input.CartId != "":
		source, err = t.cartSnapshot(ctx, input)
	case len(input.Items) > 0:
		source, err = t.pricedItems(ctx, input.Items)
	default:
		err = utils.NewValidationError("either cart_id or items is required")
	}
	if err != nil {
		return nil, err
	}

	txn.CartId = input.CartId
	txn.Subtotal = source.Subtotal
	txn.TotalDiscount = source.TotalDiscount
	txn.TotalTax = source.TotalTax
	txn.Total = source.Total
	for _, item := range source.Items {
		txn.Items = append(txn.Items, models.NewTransactionItemFromCart("", item))
	}

	businessDate := models.BusinessDate(t.now(), t.location)
	for attempt := 0; ; attempt++ {
		seq, err := t.store.NextReceiptSequence(ctx, txn.StoreId, businessDate)
		if err != nil {
			config.LogError(t.logger, "transactionManager.go", "CreateTransaction", "NextReceiptSequence", txn.StoreId, err)
			return nil, utils.Infrastructure(err)
		}
		txn.ReceiptNumber = models.FormatReceiptNumber(txn.StoreId, businessDate, seq)

		err = t.store.CreateTransaction(ctx, txn)
		if err == nil {
			break
		}
		if errors.Is(err, utils.ErrDuplicateReceipt) && attempt < maxReceiptRetries {
			t.logger.WithFields(logrus.Fields{
				"field":          "TransactionManager.CreateTransaction",
				"receipt_number": txn.ReceiptNumber,
				"attempt":        attempt + 1,
			}).Warn("receipt number collision, drawing the next one")
			continue
		}
		config.LogError(t.logger, "transactionManager.go", "CreateTransaction", "CreateTransaction", txn.ReceiptNumber, err)
		return nil, utils.Infrastructure(err)
	}

	span.SetAttributes(attribute.String("transaction.id", txn.ID), attribute.String("transaction.receipt", txn.ReceiptNumber))
	return txn, nil
}

// cartSnapshot reads the authoritative cart and checks it can be sold.
func (t *TransactionManager) cartSnapshot(ctx context.Context, input models.NewTransaction) (*models.Cart, error) {
	cart, err := t.store.GetCart(ctx, *input.CartId)
	if err != nil {
		return nil, utils.Infrastructure(err)
	}
	if cart.Status != models.CartStatusActive {
		return nil, utils.NewInvalidStateError("cart %s is %s", cart.ID, cart.Status)
	}
	if cart.StoreId != input.StoreId {
		return nil, utils.NewValidationError("cart %s belongs to store %s", cart.ID, cart.StoreId)
	}
	if len(cart.Items) == 0 {
		return nil, utils.NewValidationError("cart %s has no items", cart.ID)
	}
	return cart, nil
}

// pricedItems prices direct items against the catalog the same way cart lines are.
func (t *TransactionManager) pricedItems(ctx context.Context, items []models.NewTransactionItem) (*models.Cart, error) {
	lines := make([]models.CartItem, 0, len(items))
	for _, item := range items {
		product, err := lookupProduct(ctx, t.catalog, item.ProductId)
		if err != nil {
			return nil, err
		}
		lines = addLine(lines, product, lineRequest{
			ProductId: item.ProductId,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Discount:  item.Discount,
			Metadata:  item.Metadata,
		})
	}
	cart := &models.Cart{Items: lines}
	cart.CalculateTotals()
	return cart, nil
}

// ProcessPayment settles a pending transaction exactly once. Concurrent calls
// for the same transaction lose the lock race (Conflict) or find it no longer
// pending (InvalidState).
func (t *TransactionManager) ProcessPayment(ctx context.Context, transactionId string, payment models.Payment) (settled *models.Transaction, err error) {
	ctx, span := tracer.Start(ctx, "TransactionManager.ProcessPayment", trace.WithAttributes(
		attribute.String("transaction.id", transactionId),
	))
	defer func() {
		t.metrics.ObserveSettlement(settlementOutcome(err))
		endSpan(span, err)
	}()

	if err := utils.ValidateStruct(payment); err != nil {
		return nil, err
	}

	lease, err := t.locker.TryAcquire(ctx, settlementLockKey(transactionId), t.lockTTL)
	if err != nil {
		return nil, err
	}
	defer t.release(ctx, lease, transactionId)

	txn, err := t.store.GetTransaction(ctx, transactionId)
	if err != nil {
		return nil, utils.Infrastructure(err)
	}
	if txn.Status != models.TransactionStatusPending {
		return nil, utils.NewInvalidStateError("transaction %s is %s, only pending transactions can be paid", txn.ID, txn.Status)
	}
	if !payment.Amount.Equal(txn.Total) {
		return nil, fmt.Errorf("%w: paid %s, total is %s", utils.ErrAmountMismatch, payment.Amount.String(), txn.Total.StringFixed(2))
	}

	settled, err = t.store.SettleTransaction(ctx, models.Settlement{
		TransactionId:    txn.ID,
		PaymentMethod:    payment.PaymentMethod,
		PaymentReference: payment.PaymentReference,
		Metadata:         payment.Metadata,
		Movements:        settlementMovements(txn),
		StrictStock:      t.strictStock,
		CompletedAt:      t.now().UTC(),
	})
	if errors.Is(err, utils.ErrInsufficientStock) {
		if _, failErr := t.store.FailTransaction(ctx, txn.ID, err.Error()); failErr != nil {
			config.LogError(t.logger, "transactionManager.go", "ProcessPayment", "FailTransaction", txn.ID, failErr)
		}
		return nil, err
	}
	if err != nil {
		config.LogError(t.logger, "transactionManager.go", "ProcessPayment", "SettleTransaction", txn.ID, err)
		return nil, utils.Infrastructure(err)
	}

	if settled.CartId != nil && t.carts != nil {
		if cacheErr := t.carts.Delete(ctx, *settled.CartId); cacheErr != nil {
			t.logger.WithFields(logrus.Fields{"field": "TransactionManager.ProcessPayment", "cart_id": *settled.CartId}).Warn("cart cache evict failed: " + cacheErr.Error())
		}
	}
	t.publishCompleted(ctx, settled)
	return settled, nil
}

func settlementOutcome(err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, utils.ErrInsufficientStock):
		return "failed"
	}
	if kind := utils.KindOf(err); kind != nil {
		return strings.ReplaceAll(kind.Error(), " ", "_")
	}
	return "error"
}

// release frees the settlement lock even when ctx is already done; the lock TTL covers a failed release.
func (t *TransactionManager) release(ctx context.Context, lease Lease, transactionId string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
	defer cancel()
	if err := lease.Release(releaseCtx); err != nil {
		t.logger.WithFields(logrus.Fields{
			"field":          "TransactionManager.release",
			"transaction_id": transactionId,
		}).Warn("failed to release settlement lock: " + err.Error())
	}
}

func (t *TransactionManager) publishCompleted(ctx context.Context, txn *models.Transaction) {
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	event := newTransactionEvent(txn, correlationId)

	t.notifying.Add(1)
	go func() {
		defer t.notifying.Done()
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := t.notifier.TransactionCompleted(notifyCtx, event); err != nil {
			t.logger.WithFields(logrus.Fields{
				"field":          "TransactionManager.publishCompleted",
				"transaction_id": event.TransactionId,
			}).Warn("completion notification failed: " + err.Error())
		}
	}()
}

// WaitNotifications blocks until in-flight completion notifications finish.
func (t *TransactionManager) WaitNotifications() {
	t.notifying.Wait()
}

// VoidTransaction voids a completed transaction and puts its stock back.
// The store re-checks the status under a row lock, so concurrent voids reverse once.
func (t *TransactionManager) VoidTransaction(ctx context.Context, transactionId string, reason string) (voided *models.Transaction, err error) {
	ctx, span := tracer.Start(ctx, "TransactionManager.VoidTransaction", trace.WithAttributes(
		attribute.String("transaction.id", transactionId),
	))
	defer func() { endSpan(span, err) }()

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, utils.NewValidationError("void reason is required")
	}

	txn, err := t.store.GetTransaction(ctx, transactionId)
	if err != nil {
		return nil, utils.Infrastructure(err)
	}
	if txn.Status != models.TransactionStatusCompleted {
		return nil, utils.NewInvalidStateError("transaction %s is %s, only completed transactions can be voided", txn.ID, txn.Status)
	}

	voided, err = t.store.VoidTransaction(ctx, models.Voiding{
		TransactionId: txn.ID,
		Reason:        reason,
		Movements:     reversalMovements(txn),
		VoidedAt:      t.now().UTC(),
	})
	if err != nil {
		if utils.KindOf(err) == nil {
			config.LogError(t.logger, "transactionManager.go", "VoidTransaction", "VoidTransaction", txn.ID, err)
		}
		return nil, utils.Infrastructure(err)
	}
	return voided, nil
}

// GetTransaction always reads the store; transactions are never cached.
func (t *TransactionManager) GetTransaction(ctx context.Context, transactionId string) (*models.Transaction, error) {
	txn, err := t.store.GetTransaction(ctx, transactionId)
	if err != nil {
		return nil, utils.Infrastructure(err)
	}
	return txn, nil
}

func (t *TransactionManager) GetTransactionHistory(ctx context.Context, filter models.TransactionFilter) (*models.TransactionPage, error) {
	if err := utils.ValidateStruct(filter); err != nil {
		return nil, err
	}
	if filter.Type != nil && !filter.Type.IsValid() {
		return nil, utils.NewValidationError("unknown transaction type %q", *filter.Type)
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, utils.NewValidationError("unknown transaction status %q", *filter.Status)
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, utils.NewValidationError("from must be before to")
	}
	filter.Normalize()
	page, err := t.store.ListTransactions(ctx, filter)
	if err != nil {
		return nil, utils.Infrastructure(err)
	}
	return page, nil
}
