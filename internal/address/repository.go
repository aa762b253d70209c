package address

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrNotFound   = errors.New("address not found")
	ErrIncomplete = errors.New("shipping address is incomplete")
)

type Repository interface {
	List(ctx context.Context, userID string) ([]Address, error)
	Get(ctx context.Context, userID, id string) (Address, error)
	Add(ctx context.Context, addr Address) (Address, error)
	Update(ctx context.Context, addr Address) (Address, error)
	Delete(ctx context.Context, userID, id string) error
}

// InMemoryRepository keeps addresses per user, in insertion order.
type InMemoryRepository struct {
	mu   sync.RWMutex
	data map[string][]Address
}

func NewInMemoryRepository(seed map[string][]Address) *InMemoryRepository {
	data := make(map[string][]Address, len(seed))
	for userID, addrs := range seed {
		data[userID] = append([]Address(nil), addrs...)
	}
	return &InMemoryRepository{data: data}
}

func (r *InMemoryRepository) List(_ context.Context, userID string) ([]Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Address, len(r.data[userID]))
	copy(out, r.data[userID])
	return out, nil
}

func (r *InMemoryRepository) Get(_ context.Context, userID, id string) (Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.data[userID] {
		if a.ID == id {
			return a, nil
		}
	}
	return Address{}, ErrNotFound
}

func (r *InMemoryRepository) Add(_ context.Context, addr Address) (Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[addr.UserID] = append(r.data[addr.UserID], addr)
	return addr, nil
}

func (r *InMemoryRepository) Update(_ context.Context, addr Address) (Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, a := range r.data[addr.UserID] {
		if a.ID == addr.ID {
			addr.CreatedAt = a.CreatedAt
			r.data[addr.UserID][i] = addr
			return addr, nil
		}
	}
	return Address{}, ErrNotFound
}

func (r *InMemoryRepository) Delete(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	addrs := r.data[userID]
	for i, a := range addrs {
		if a.ID == id {
			r.data[userID] = append(addrs[:i:i], addrs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}
