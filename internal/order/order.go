package order

import (
	"time"

	"github.com/printpoint/print-shop-backend/internal/address"
	"github.com/printpoint/print-shop-backend/internal/lineitem"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// next lists the legal successors of each status. delivered and cancelled
// are terminal.
var next = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusReady, StatusCancelled},
	StatusReady:      {StatusShipped},
	StatusShipped:    {StatusDelivered},
}

var allStatuses = []Status{
	StatusPending, StatusConfirmed, StatusProcessing, StatusReady,
	StatusShipped, StatusDelivered, StatusCancelled,
}

func (s Status) Valid() bool {
	for _, v := range allStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s.Valid() && len(next[s]) == 0
}

func CanTransition(from, to Status) bool {
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}

// predecessors returns every status with a legal edge into to.
func predecessors(to Status) []Status {
	var out []Status
	for _, from := range allStatuses {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// Order is a placed purchase. Items and amounts are fixed at creation;
// only Status, PaymentSessionID, PaymentReference and UpdatedAt change.
type Order struct {
	ID               string                  `json:"id"`
	UserID           string                  `json:"userId"`
	Status           Status                  `json:"status"`
	Items            []lineitem.LineItem     `json:"items"`
	Subtotal         decimal.Decimal         `json:"subtotal"`
	Tax              decimal.Decimal         `json:"tax"`
	Shipping         decimal.Decimal         `json:"shipping"`
	Total            decimal.Decimal         `json:"total"`
	Currency         string                  `json:"currency"`
	ShippingAddress  address.ShippingAddress `json:"shippingAddress"`
	PaymentSessionID string                  `json:"paymentSessionId,omitempty"`
	PaymentReference string                  `json:"paymentReference,omitempty"`
	CreatedAt        time.Time               `json:"createdAt"`
	UpdatedAt        time.Time               `json:"updatedAt"`
}

// Delivery estimate, in business days after the order was placed.
const (
	minDeliveryDays = 3
	maxDeliveryDays = 5
)

// DeliveryWindow estimates the earliest and latest delivery dates.
func (o Order) DeliveryWindow() (earliest, latest time.Time) {
	return addBusinessDays(o.CreatedAt, minDeliveryDays), addBusinessDays(o.CreatedAt, maxDeliveryDays)
}

func addBusinessDays(t time.Time, days int) time.Time {
	for days > 0 {
		t = t.AddDate(0, 0, 1)
		if wd := t.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days--
		}
	}
	return t
}
