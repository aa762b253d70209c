package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrAuthRequired        = errors.New("sign in to check out")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrIncompleteAddress   = errors.New("shipping address is incomplete")
	ErrPaymentInitFailed   = errors.New("could not start payment")
	ErrPaymentVerification = errors.New("payment could not be verified")

	ErrPostPaymentReconciliationFailed = errors.New("payment received but order not confirmed")
)

// ReconciliationError reports a verified payment whose order could not be
// confirmed. The customer has been charged; the order needs manual or
// automatic reconciliation and must never be charged again.
type ReconciliationError struct {
	OrderID   string
	PaymentID string
	Err       error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("%s: order %s payment %s: %v", ErrPostPaymentReconciliationFailed, e.OrderID, e.PaymentID, e.Err)
}

func (e *ReconciliationError) Unwrap() []error {
	return []error{ErrPostPaymentReconciliationFailed, e.Err}
}

// SupportReference identifies the incident for customer support.
func (e *ReconciliationError) SupportReference() string {
	return e.OrderID + "/" + e.PaymentID
}
