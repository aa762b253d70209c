package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingChannel struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
}

func (r *recordingChannel) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	r.exchange, r.key, r.msg = exchange, key, msg
	return r.err
}

func TestAMQPPublisher_Publish(t *testing.T) {
	ch := &recordingChannel{}
	p := &AMQPPublisher{channel: ch, exchange: Exchange}
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	err := p.Publish(context.Background(), Event{Type: OrderStatusChanged, OrderID: "o-1", Attributes: map[string]string{"to": "shipped"}, OccurredAt: at})
	require.NoError(t, err)

	assert.Equal(t, "orders.events", ch.exchange)
	assert.Equal(t, "order.status_changed", ch.key)
	assert.Equal(t, uint8(amqp.Persistent), ch.msg.DeliveryMode)
	assert.Equal(t, "application/json", ch.msg.ContentType)

	var decoded Event
	require.NoError(t, json.Unmarshal(ch.msg.Body, &decoded))
	assert.Equal(t, "o-1", decoded.OrderID)
	assert.Equal(t, "shipped", decoded.Attributes["to"])
}

func TestAMQPPublisher_Errors(t *testing.T) {
	p := &AMQPPublisher{channel: &recordingChannel{err: amqp.ErrClosed}, exchange: Exchange}
	err := p.Publish(context.Background(), Event{Type: OrderCreated, OrderID: "o-1"})
	assert.ErrorIs(t, err, amqp.ErrClosed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = p.Publish(ctx, Event{Type: OrderCreated})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := NewLogPublisher(zap.New(core))

	require.NoError(t, p.Publish(context.Background(), Event{
		Type:       PaymentReconciliationRequired,
		OrderID:    "o-1",
		UserID:     "u-1",
		Attributes: map[string]string{"payment_id": "pay_1"},
	}))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "payment.reconciliation_required", fields["type"])
	assert.Equal(t, "pay_1", fields["payment_id"])
	assert.Equal(t, "u-1", fields["user_id"])
}
