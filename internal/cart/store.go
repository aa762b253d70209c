package cart

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/printpoint/print-shop-backend/internal/lineitem"
	"go.uber.org/zap"
)

// Service opens per-session cart stores over shared storage.
type Service struct {
	storage  Storage
	notifier *Notifier
	log      *zap.Logger
}

func NewService(storage Storage, notifier *Notifier, log *zap.Logger) *Service {
	return &Service{storage: storage, notifier: notifier, log: log}
}

// Open returns the store for one cart session.
func (s *Service) Open(sessionID string) *Store {
	return &Store{
		storage:  s.storage,
		notifier: s.notifier,
		log:      s.log,
		key:      Key(sessionID),
	}
}

// Key is the storage key holding a session's items.
func Key(sessionID string) string {
	return "cart:" + sessionID
}

// Store is the item list of a single cart. Each mutation rewrites the whole
// list and then notifies subscribers.
type Store struct {
	storage  Storage
	notifier *Notifier
	log      *zap.Logger
	key      string
}

// Items never fails: unreadable or corrupt data reads as an empty cart.
func (s *Store) Items(ctx context.Context) []lineitem.LineItem {
	items, err := s.load(ctx)
	if err != nil {
		s.log.Warn("cart load failed", zap.String("key", s.key), zap.Error(err))
		return []lineitem.LineItem{}
	}
	return items
}

// Add stores a copy of item under a freshly generated id.
func (s *Store) Add(ctx context.Context, item lineitem.LineItem) (lineitem.LineItem, error) {
	if err := item.Validate(); err != nil {
		return lineitem.LineItem{}, fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}
	items, err := s.load(ctx)
	if err != nil {
		return lineitem.LineItem{}, err
	}

	item.ID = uuid.NewString()
	items = append(items, item)
	if err := s.save(ctx, items, OpAdd); err != nil {
		return lineitem.LineItem{}, err
	}
	return item, nil
}

// Remove deletes the item with id; an unknown id is not an error.
func (s *Store) Remove(ctx context.Context, id string) error {
	items, err := s.load(ctx)
	if err != nil {
		return err
	}

	kept := make([]lineitem.LineItem, 0, len(items))
	for _, it := range items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	return s.save(ctx, kept, OpRemove)
}

// UpdateQuantity sets an item's quantity; below 1 removes it.
func (s *Store) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	if quantity < 1 {
		return s.Remove(ctx, id)
	}
	items, err := s.load(ctx)
	if err != nil {
		return err
	}

	for i := range items {
		if items[i].ID == id {
			items[i].Quantity = quantity
		}
	}
	return s.save(ctx, items, OpUpdate)
}

func (s *Store) Clear(ctx context.Context) error {
	return s.save(ctx, []lineitem.LineItem{}, OpClear)
}

// Count is the sum of quantities, not the number of lines.
func (s *Store) Count(ctx context.Context) int {
	return count(s.Items(ctx))
}

func count(items []lineitem.LineItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

// load distinguishes an unavailable backend (error) from corrupt data,
// which is treated like an empty cart.
func (s *Store) load(ctx context.Context) ([]lineitem.LineItem, error) {
	raw, err := s.storage.Load(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if len(raw) == 0 {
		return []lineitem.LineItem{}, nil
	}

	var items []lineitem.LineItem
	if err := json.Unmarshal(raw, &items); err != nil {
		s.log.Warn("discarding undecodable cart", zap.String("key", s.key), zap.Error(err))
		return []lineitem.LineItem{}, nil
	}
	return items, nil
}

func (s *Store) save(ctx context.Context, items []lineitem.LineItem, op Op) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	if err := s.storage.Save(ctx, s.key, raw); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if s.notifier != nil {
		s.notifier.Publish(Event{Key: s.key, Op: op, Count: count(items)})
	}
	return nil
}
