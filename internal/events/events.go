// Package events carries order lifecycle and payment events out of the
// service, either to RabbitMQ or to the log.
package events

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	OrderCreated                  = "order.created"
	OrderStatusChanged            = "order.status_changed"
	OrderStalePaymentSession      = "order.stale_payment_session"
	PaymentReconciliationRequired = "payment.reconciliation_required"
)

// Event is one published fact. Type doubles as the routing key.
type Event struct {
	Type       string            `json:"type"`
	OrderID    string            `json:"orderId"`
	UserID     string            `json:"userId,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// LogPublisher writes events to the logger. It is used when no broker is
// configured and never fails.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	fields := []zap.Field{
		zap.String("type", e.Type),
		zap.String("order_id", e.OrderID),
		zap.Time("occurred_at", e.OccurredAt),
	}
	if e.UserID != "" {
		fields = append(fields, zap.String("user_id", e.UserID))
	}
	for k, v := range e.Attributes {
		fields = append(fields, zap.String(k, v))
	}
	p.log.Info("event", fields...)
	return nil
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
