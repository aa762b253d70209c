package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/printpoint/print-shop-backend/internal/address"
	"github.com/printpoint/print-shop-backend/internal/events"
	"github.com/printpoint/print-shop-backend/internal/lineitem"
	"github.com/printpoint/print-shop-backend/internal/pricing"
	"go.uber.org/zap"
)

// Manager owns every order state change. Each call makes exactly one
// attempt against the repository.
type Manager struct {
	repo     Repository
	events   events.Publisher
	log      *zap.Logger
	currency string
	now      func() time.Time
}

func NewManager(repo Repository, pub events.Publisher, log *zap.Logger, currency string) *Manager {
	return &Manager{repo: repo, events: pub, log: log, currency: currency, now: time.Now}
}

// Create validates the items and address, prices the order and stores it
// as pending. Client-side totals are never consulted.
func (m *Manager) Create(ctx context.Context, userID string, items []lineitem.LineItem, addr address.ShippingAddress) (Order, error) {
	if userID == "" {
		return Order{}, fmt.Errorf("%w: missing user", ErrValidation)
	}
	if len(items) == 0 {
		return Order{}, fmt.Errorf("%w: no items", ErrValidation)
	}
	for i, it := range items {
		if err := it.Validate(); err != nil {
			return Order{}, fmt.Errorf("%w: item %d: %w", ErrValidation, i, err)
		}
	}
	if err := addr.Validate(); err != nil {
		return Order{}, fmt.Errorf("%w: %w: %w", ErrValidation, address.ErrIncomplete, err)
	}

	totals := pricing.Calculate(items).Rounded()
	now := m.now().UTC()
	o := Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		Status:          StatusPending,
		Items:           append([]lineitem.LineItem(nil), items...),
		Subtotal:        totals.Subtotal,
		Tax:             totals.Tax,
		Shipping:        totals.Shipping,
		Total:           totals.Total,
		Currency:        m.currency,
		ShippingAddress: addr,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := m.repo.Create(ctx, o); err != nil {
		return Order{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	m.publish(ctx, events.Event{
		Type:       events.OrderCreated,
		OrderID:    o.ID,
		UserID:     o.UserID,
		Attributes: map[string]string{"total": o.Total.StringFixed(2), "currency": o.Currency},
		OccurredAt: now,
	})
	return o, nil
}

// MarkConfirmed moves a pending order to confirmed and records the
// payment reference.
func (m *Manager) MarkConfirmed(ctx context.Context, orderID, paymentRef string) (Order, error) {
	if paymentRef == "" {
		return Order{}, fmt.Errorf("%w: missing payment reference", ErrValidation)
	}
	return m.transition(ctx, Transition{
		OrderID:          orderID,
		From:             []Status{StatusPending},
		To:               StatusConfirmed,
		PaymentReference: paymentRef,
	})
}

// Advance moves an order along one legal edge. Cancellation goes through
// Cancel; only MarkConfirmed may confirm, since confirmed means paid.
func (m *Manager) Advance(ctx context.Context, orderID string, to Status) (Order, error) {
	if !to.Valid() {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}
	switch to {
	case StatusCancelled:
		return m.Cancel(ctx, orderID)
	case StatusConfirmed:
		return Order{}, fmt.Errorf("%w: orders are confirmed by payment only", ErrInvalidTransition)
	}
	from := predecessors(to)
	if len(from) == 0 {
		return Order{}, fmt.Errorf("%w: nothing moves to %s", ErrInvalidTransition, to)
	}
	return m.transition(ctx, Transition{OrderID: orderID, From: from, To: to})
}

func (m *Manager) Cancel(ctx context.Context, orderID string) (Order, error) {
	return m.transition(ctx, Transition{
		OrderID: orderID,
		From:    predecessors(StatusCancelled),
		To:      StatusCancelled,
	})
}

func (m *Manager) transition(ctx context.Context, t Transition) (Order, error) {
	t.At = m.now().UTC()
	o, err := m.repo.UpdateStatus(ctx, t)
	switch {
	case errors.Is(err, ErrNotFound):
		return Order{}, ErrNotFound
	case errors.Is(err, ErrStatusConflict):
		m.log.Warn("rejected order transition",
			zap.String("order_id", t.OrderID),
			zap.String("to", string(t.To)),
		)
		return Order{}, fmt.Errorf("%w: order %s cannot move to %s", ErrInvalidTransition, t.OrderID, t.To)
	case err != nil:
		return Order{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	attrs := map[string]string{"status": string(o.Status)}
	if o.PaymentReference != "" {
		attrs["payment_reference"] = o.PaymentReference
	}
	m.publish(ctx, events.Event{
		Type:       events.OrderStatusChanged,
		OrderID:    o.ID,
		UserID:     o.UserID,
		Attributes: attrs,
		OccurredAt: t.At,
	})
	return o, nil
}

// AttachPaymentSession stores the gateway session opened for a pending
// order. An order carries at most one session.
func (m *Manager) AttachPaymentSession(ctx context.Context, orderID, sessionID string) (Order, error) {
	o, err := m.repo.SetPaymentSession(ctx, orderID, sessionID, m.now().UTC())
	switch {
	case errors.Is(err, ErrNotFound):
		return Order{}, ErrNotFound
	case errors.Is(err, ErrStatusConflict):
		return Order{}, fmt.Errorf("%w: order %s already has a payment session or is not pending", ErrInvalidTransition, orderID)
	case err != nil:
		return Order{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return o, nil
}

// GetByID returns the order only to its owner.
func (m *Manager) GetByID(ctx context.Context, orderID, requestingUserID string) (Order, error) {
	o, err := m.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.UserID != requestingUserID {
		return Order{}, ErrNotAuthorized
	}
	return o, nil
}

// Get loads an order without an ownership check; admin use only.
func (m *Manager) Get(ctx context.Context, orderID string) (Order, error) {
	o, err := m.repo.GetByID(ctx, orderID)
	if errors.Is(err, ErrNotFound) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return o, nil
}

func (m *Manager) ListForUser(ctx context.Context, userID string) ([]Order, error) {
	orders, err := m.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return orders, nil
}

func (m *Manager) List(ctx context.Context, f Filter) ([]Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, f.Status)
	}
	orders, err := m.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return orders, nil
}

// publish is best-effort: a broker failure never fails the state change
// that already happened.
func (m *Manager) publish(ctx context.Context, e events.Event) {
	if err := m.events.Publish(ctx, e); err != nil {
		m.log.Warn("publish order event", zap.String("type", e.Type), zap.String("order_id", e.OrderID), zap.Error(err))
	}
}
