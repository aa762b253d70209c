// Package payment talks to the hosted checkout gateway: it opens payment
// sessions for orders and verifies the signed success callbacks.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrUnavailable      = errors.New("payment gateway unavailable")
	ErrDeclined         = errors.New("payment gateway declined the request")
	ErrInvalidSignature = errors.New("payment signature mismatch")
	ErrMissingField     = errors.New("payment callback is incomplete")
)

// SessionRequest asks for a session collecting Amount for one order. The
// order id doubles as the gateway receipt.
type SessionRequest struct {
	OrderID  string
	Amount   decimal.Decimal
	Currency string
}

// Session is what the client needs to open the hosted payment widget.
type Session struct {
	ID       string `json:"id"`
	KeyID    string `json:"keyId"`
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Callback is the success payload the widget hands back to the client.
type Callback struct {
	SessionID string `json:"sessionId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
	Verify(cb Callback) error
}
