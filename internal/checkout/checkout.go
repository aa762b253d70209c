// Package checkout turns a session cart and a shipping address into a
// confirmed order, driving the payment gateway in between.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/printpoint/print-shop-backend/internal/address"
	"github.com/printpoint/print-shop-backend/internal/events"
	"github.com/printpoint/print-shop-backend/internal/lineitem"
	"github.com/printpoint/print-shop-backend/internal/order"
	"github.com/printpoint/print-shop-backend/internal/payment"
	"github.com/printpoint/print-shop-backend/internal/pricing"
	"go.uber.org/zap"
)

// Cart is the part of a cart store checkout needs.
type Cart interface {
	Items(ctx context.Context) []lineitem.LineItem
	Clear(ctx context.Context) error
}

type Orders interface {
	Create(ctx context.Context, userID string, items []lineitem.LineItem, addr address.ShippingAddress) (order.Order, error)
	GetByID(ctx context.Context, orderID, requestingUserID string) (order.Order, error)
	AttachPaymentSession(ctx context.Context, orderID, sessionID string) (order.Order, error)
	MarkConfirmed(ctx context.Context, orderID, paymentRef string) (order.Order, error)
}

type Addresses interface {
	Get(ctx context.Context, userID, id string) (address.Address, error)
}

type Deps struct {
	Orders    Orders
	Addresses Addresses
	Gateway   payment.Gateway
	Events    events.Publisher
	Log       *zap.Logger
	// KeyID is the public gateway key returned with reused sessions.
	KeyID string
}

type Service struct {
	orders    Orders
	addresses Addresses
	gateway   payment.Gateway
	events    events.Publisher
	log       *zap.Logger
	keyID     string
}

func NewService(d Deps) *Service {
	return &Service{
		orders:    d.Orders,
		addresses: d.Addresses,
		gateway:   d.Gateway,
		events:    d.Events,
		log:       d.Log,
		keyID:     d.KeyID,
	}
}

// Request starts a checkout. Either AddressID (a saved address) or Address
// must be set; AddressID wins when both are.
type Request struct {
	UserID    string
	Cart      Cart
	AddressID string
	Address   *address.ShippingAddress
}

// Pending is a created order waiting for payment. Session is nil when the
// gateway could not be reached; the order is kept for a retry.
type Pending struct {
	Order   order.Order      `json:"order"`
	Session *payment.Session `json:"payment,omitempty"`
}

type OutcomeStatus string

const (
	OutcomeConfirmed OutcomeStatus = "confirmed"
	OutcomeDismissed OutcomeStatus = "dismissed"
)

type Outcome struct {
	Status      OutcomeStatus `json:"status"`
	Order       order.Order   `json:"order"`
	CartCleared bool          `json:"cartCleared"`
}

// Confirmation is the widget's success callback for one order.
type Confirmation struct {
	UserID   string
	OrderID  string
	Callback payment.Callback
	Cart     Cart
}

// Begin validates the caller, cart and address, creates the pending order
// and opens its payment session. On ErrPaymentInitFailed the returned
// Pending still carries the order.
func (s *Service) Begin(ctx context.Context, req Request) (Pending, error) {
	if req.UserID == "" {
		return Pending{}, ErrAuthRequired
	}
	items := req.Cart.Items(ctx)
	if len(items) == 0 {
		return Pending{}, ErrEmptyCart
	}
	addr, err := s.resolveAddress(ctx, req)
	if err != nil {
		return Pending{}, err
	}

	o, err := s.orders.Create(ctx, req.UserID, items, addr)
	if err != nil {
		return Pending{}, err
	}
	s.log.Info("checkout started",
		zap.String("order_id", o.ID),
		zap.String("user_id", o.UserID),
		zap.String("total", o.Total.StringFixed(2)),
	)

	session, err := s.openSession(ctx, o)
	if err != nil {
		return Pending{Order: o}, err
	}
	return Pending{Order: o, Session: &session}, nil
}

func (s *Service) resolveAddress(ctx context.Context, req Request) (address.ShippingAddress, error) {
	if req.AddressID != "" {
		saved, err := s.addresses.Get(ctx, req.UserID, req.AddressID)
		if errors.Is(err, address.ErrNotFound) {
			return address.ShippingAddress{}, fmt.Errorf("%w: saved address not found", ErrIncompleteAddress)
		}
		if err != nil {
			return address.ShippingAddress{}, fmt.Errorf("%w: %w", order.ErrPersistence, err)
		}
		return saved.ShippingAddress, nil
	}
	if req.Address == nil {
		return address.ShippingAddress{}, ErrIncompleteAddress
	}
	if err := req.Address.Validate(); err != nil {
		return address.ShippingAddress{}, fmt.Errorf("%w: %w", ErrIncompleteAddress, err)
	}
	return *req.Address, nil
}

// OpenSession retries the payment step for a pending order. A session
// already stored on the order is returned as is, so the gateway is asked
// at most once per order.
func (s *Service) OpenSession(ctx context.Context, userID, orderID string) (payment.Session, error) {
	if userID == "" {
		return payment.Session{}, ErrAuthRequired
	}
	o, err := s.orders.GetByID(ctx, orderID, userID)
	if err != nil {
		return payment.Session{}, err
	}
	if o.Status != order.StatusPending {
		return payment.Session{}, fmt.Errorf("%w: order is %s", order.ErrInvalidTransition, o.Status)
	}
	return s.openSession(ctx, o)
}

func (s *Service) openSession(ctx context.Context, o order.Order) (payment.Session, error) {
	if o.PaymentSessionID != "" {
		return s.storedSession(o), nil
	}

	session, err := s.gateway.CreateSession(ctx, payment.SessionRequest{
		OrderID:  o.ID,
		Amount:   o.Total,
		Currency: o.Currency,
	})
	if err != nil {
		s.log.Warn("payment session failed", zap.String("order_id", o.ID), zap.Error(err))
		return payment.Session{}, fmt.Errorf("%w: %w", ErrPaymentInitFailed, err)
	}

	if _, err := s.orders.AttachPaymentSession(ctx, o.ID, session.ID); err != nil {
		if errors.Is(err, order.ErrInvalidTransition) {
			// a concurrent call stored its session first
			current, gerr := s.orders.GetByID(ctx, o.ID, o.UserID)
			if gerr == nil && current.Status == order.StatusPending && current.PaymentSessionID != "" {
				return s.storedSession(current), nil
			}
		}
		return payment.Session{}, fmt.Errorf("%w: %w", ErrPaymentInitFailed, err)
	}
	return session, nil
}

func (s *Service) storedSession(o order.Order) payment.Session {
	return payment.Session{
		ID:       o.PaymentSessionID,
		KeyID:    s.keyID,
		OrderID:  o.ID,
		Amount:   pricing.MinorUnits(o.Total),
		Currency: o.Currency,
	}
}

// Confirm verifies the gateway callback and confirms the order, then clears
// the cart. Repeating a confirmation that already succeeded is a no-op and
// leaves the cart alone.
func (s *Service) Confirm(ctx context.Context, c Confirmation) (Outcome, error) {
	if c.UserID == "" {
		return Outcome{}, ErrAuthRequired
	}
	o, err := s.orders.GetByID(ctx, c.OrderID, c.UserID)
	if err != nil {
		if errors.Is(err, order.ErrPersistence) {
			// the customer may already have paid
			s.log.Error("payment callback not recorded",
				zap.String("order_id", c.OrderID),
				zap.String("user_id", c.UserID),
				zap.String("payment_id", c.Callback.PaymentID),
				zap.String("payment_session_id", c.Callback.SessionID),
				zap.Error(err),
			)
		}
		return Outcome{}, err
	}

	if c.Callback.SessionID == "" {
		c.Callback.SessionID = o.PaymentSessionID
	}
	if o.PaymentSessionID == "" || c.Callback.SessionID != o.PaymentSessionID {
		return Outcome{}, fmt.Errorf("%w: callback does not match the order's payment session", ErrPaymentVerification)
	}
	if err := s.gateway.Verify(c.Callback); err != nil {
		s.log.Warn("payment callback rejected", zap.String("order_id", o.ID), zap.Error(err))
		return Outcome{}, fmt.Errorf("%w: %w", ErrPaymentVerification, err)
	}

	if alreadyConfirmed(o, c.Callback.PaymentID) {
		return Outcome{Status: OutcomeConfirmed, Order: o}, nil
	}

	confirmed, err := s.orders.MarkConfirmed(ctx, o.ID, c.Callback.PaymentID)
	if err != nil {
		if errors.Is(err, order.ErrInvalidTransition) {
			if current, gerr := s.orders.GetByID(ctx, o.ID, c.UserID); gerr == nil && alreadyConfirmed(current, c.Callback.PaymentID) {
				return Outcome{Status: OutcomeConfirmed, Order: current}, nil
			}
		}
		return Outcome{}, s.reconciliationFailed(ctx, o, c.Callback.PaymentID, err)
	}
	return s.finish(ctx, confirmed, c.Cart), nil
}

// alreadyConfirmed reports whether o left pending because of paymentID.
func alreadyConfirmed(o order.Order, paymentID string) bool {
	return o.Status != order.StatusPending && o.Status != order.StatusCancelled && o.PaymentReference == paymentID
}

func (s *Service) finish(ctx context.Context, o order.Order, cart Cart) Outcome {
	out := Outcome{Status: OutcomeConfirmed, Order: o}
	if cart == nil {
		return out
	}
	if err := cart.Clear(ctx); err != nil {
		s.log.Warn("clear cart after checkout", zap.String("order_id", o.ID), zap.Error(err))
		return out
	}
	out.CartCleared = true
	return out
}

func (s *Service) reconciliationFailed(ctx context.Context, o order.Order, paymentID string, cause error) error {
	rerr := &ReconciliationError{OrderID: o.ID, PaymentID: paymentID, Err: cause}
	s.log.Error("paid order not confirmed",
		zap.String("order_id", o.ID),
		zap.String("user_id", o.UserID),
		zap.String("payment_id", paymentID),
		zap.String("support_reference", rerr.SupportReference()),
		zap.Error(cause),
	)

	err := s.events.Publish(ctx, events.Event{
		Type:    events.PaymentReconciliationRequired,
		OrderID: o.ID,
		UserID:  o.UserID,
		Attributes: map[string]string{
			"payment_id":         paymentID,
			"payment_session_id": o.PaymentSessionID,
			"amount":             o.Total.StringFixed(2),
			"currency":           o.Currency,
			"cause":              cause.Error(),
		},
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		s.log.Error("publish reconciliation alert", zap.String("order_id", o.ID), zap.Error(err))
	}
	return rerr
}

// Dismiss records that the customer closed the payment widget. The order
// stays pending and the cart is left alone.
func (s *Service) Dismiss(ctx context.Context, userID, orderID string) (Outcome, error) {
	if userID == "" {
		return Outcome{}, ErrAuthRequired
	}
	o, err := s.orders.GetByID(ctx, orderID, userID)
	if err != nil {
		return Outcome{}, err
	}
	if o.Status != order.StatusPending {
		return Outcome{}, fmt.Errorf("%w: order is %s", order.ErrInvalidTransition, o.Status)
	}
	s.log.Info("payment dismissed", zap.String("order_id", o.ID))
	return Outcome{Status: OutcomeDismissed, Order: o}, nil
}
