package cart

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrStorageUnavailable = errors.New("cart storage unavailable")
	ErrInvalidItem        = errors.New("invalid cart item")
)

// Storage persists the serialized item list of one cart under one key.
// Load returns (nil, nil) when nothing has been stored yet.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// MemoryStorage is used for tests and when no Redis is configured.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func (m *MemoryStorage) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (m *MemoryStorage) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := make([]byte, len(data))
	copy(b, data)
	m.data[key] = b
	return nil
}
