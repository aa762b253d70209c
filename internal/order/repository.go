package order

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrValidation        = errors.New("invalid order")
	ErrNotFound          = errors.New("order not found")
	ErrNotAuthorized     = errors.New("order belongs to another user")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPersistence       = errors.New("order store unavailable")

	// ErrStatusConflict is returned by repositories when a conditional
	// update finds the order in an unexpected status.
	ErrStatusConflict = errors.New("order status changed concurrently")
)

// Transition is a conditional status update: it applies only while the
// order is in one of From and, with RequireNoSession, has no payment
// session.
type Transition struct {
	OrderID          string
	From             []Status
	To               Status
	PaymentReference string
	RequireNoSession bool
	At               time.Time
}

type Filter struct {
	Status Status
	UserID string
	Limit  int
	Offset int
}

type Repository interface {
	Create(ctx context.Context, o Order) error
	GetByID(ctx context.Context, id string) (Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	List(ctx context.Context, f Filter) ([]Order, error)
	// UpdateStatus applies t atomically and returns the updated order.
	UpdateStatus(ctx context.Context, t Transition) (Order, error)
	// SetPaymentSession records sessionID on a pending order that has no
	// session yet.
	SetPaymentSession(ctx context.Context, id, sessionID string, at time.Time) (Order, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]Order, error)
}

type InMemoryRepository struct {
	mu     sync.RWMutex
	orders map[string]Order
}

func NewInMemoryRepository(seed []Order) *InMemoryRepository {
	r := &InMemoryRepository{orders: make(map[string]Order, len(seed))}
	for _, o := range seed {
		r.orders[o.ID] = clone(o)
	}
	return r
}

func clone(o Order) Order {
	o.Items = append(o.Items[:0:0], o.Items...)
	return o
}

func (r *InMemoryRepository) Create(_ context.Context, o Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[o.ID]; ok {
		return errors.New("duplicate order id")
	}
	r.orders[o.ID] = clone(o)
	return nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id string) (Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return clone(o), nil
}

func (r *InMemoryRepository) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return r.List(ctx, Filter{UserID: userID})
}

// List returns matching orders newest first.
func (r *InMemoryRepository) List(_ context.Context, f Filter) ([]Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Order, 0)
	for _, o := range r.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		out = append(out, clone(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []Order{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *InMemoryRepository) UpdateStatus(_ context.Context, t Transition) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[t.OrderID]
	if !ok {
		return Order{}, ErrNotFound
	}
	if !containsStatus(t.From, o.Status) || (t.RequireNoSession && o.PaymentSessionID != "") {
		return Order{}, ErrStatusConflict
	}
	o.Status = t.To
	if t.PaymentReference != "" {
		o.PaymentReference = t.PaymentReference
	}
	o.UpdatedAt = t.At
	r.orders[o.ID] = o
	return clone(o), nil
}

func (r *InMemoryRepository) SetPaymentSession(_ context.Context, id, sessionID string, at time.Time) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	if o.Status != StatusPending || o.PaymentSessionID != "" {
		return Order{}, ErrStatusConflict
	}
	o.PaymentSessionID = sessionID
	o.UpdatedAt = at
	r.orders[id] = o
	return clone(o), nil
}

func (r *InMemoryRepository) ListPendingBefore(_ context.Context, cutoff time.Time) ([]Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Order, 0)
	for _, o := range r.orders {
		if o.Status == StatusPending && o.CreatedAt.Before(cutoff) {
			out = append(out, clone(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func containsStatus(set []Status, s Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
