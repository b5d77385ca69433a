package workflow

import (
	"context"
	"encoding/json"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

// TransactionEvent is published once a transaction settles.
type TransactionEvent struct {
	TransactionId string                 `json:"transaction_id"`
	StoreId       string                 `json:"store_id"`
	CashierId     string                 `json:"cashier_id"`
	ReceiptNumber string                 `json:"receipt_number"`
	Type          models.TransactionType `json:"type"`
	Total         decimal.Decimal        `json:"total"`
	PaymentMethod string                 `json:"payment_method"`
	CompletedAt   time.Time              `json:"completed_at"`
	CorrelationId string                 `json:"correlation_id,omitempty"`
}

func newTransactionEvent(txn *models.Transaction, correlationId string) TransactionEvent {
	event := TransactionEvent{
		TransactionId: txn.ID,
		StoreId:       txn.StoreId,
		CashierId:     txn.CashierId,
		ReceiptNumber: txn.ReceiptNumber,
		Type:          txn.Type,
		Total:         txn.Total,
		PaymentMethod: txn.PaymentMethod,
		CorrelationId: correlationId,
	}
	if txn.CompletedAt != nil {
		event.CompletedAt = *txn.CompletedAt
	}
	return event
}

// Notifier hands completion events to downstream consumers. Delivery is best
// effort; a failed notification never affects the settled transaction.
type Notifier interface {
	TransactionCompleted(ctx context.Context, event TransactionEvent) error
}

type NopNotifier struct{}

func (NopNotifier) TransactionCompleted(context.Context, TransactionEvent) error { return nil }

// RedisNotifier publishes the event as JSON on a redis channel.
type RedisNotifier struct {
	rdb     redis.Cmdable
	channel string
}

func NewRedisNotifier(rdb redis.Cmdable, channel string) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, channel: channel}
}

func (n *RedisNotifier) TransactionCompleted(ctx context.Context, event TransactionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, n.channel, payload).Err()
}

// PubSubNotifier publishes the event to a Google Pub/Sub topic.
type PubSubNotifier struct {
	topic *pubsub.Topic
}

func NewPubSubNotifier(topic *pubsub.Topic) *PubSubNotifier {
	return &PubSubNotifier{topic: topic}
}

func (n *PubSubNotifier) TransactionCompleted(ctx context.Context, event TransactionEvent) error {
	attrs := map[string]string{
		"event":    "transaction.completed",
		"store_id": event.StoreId,
	}
	if event.CorrelationId != "" {
		attrs["correlation_id"] = event.CorrelationId
	}
	_, err := config.PublishJSON(ctx, n.topic, event, attrs)
	return err
}

// BreakerNotifier stops calling a failing backend until it recovers.
type BreakerNotifier struct {
	next Notifier
	cb   *gobreaker.CircuitBreaker[any]
}

func NewBreakerNotifier(name string, next Notifier) *BreakerNotifier {
	logger := config.GetLogger()
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"field": "BreakerNotifier",
				"name":  name,
				"from":  from.String(),
				"to":    to.String(),
			}).Warn("notifier circuit state changed")
		},
	}
	return &BreakerNotifier{next: next, cb: gobreaker.NewCircuitBreaker[any](settings)}
}

func (n *BreakerNotifier) TransactionCompleted(ctx context.Context, event TransactionEvent) error {
	_, err := n.cb.Execute(func() (any, error) {
		return nil, n.next.TransactionCompleted(ctx, event)
	})
	return err
}
