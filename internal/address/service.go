package address

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) List(ctx context.Context, userID string) ([]Address, error) {
	return s.repo.List(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID, id string) (Address, error) {
	return s.repo.Get(ctx, userID, id)
}

func (s *Service) Add(ctx context.Context, userID, label string, sa ShippingAddress) (Address, error) {
	if err := sa.Validate(); err != nil {
		return Address{}, fmt.Errorf("%w: %w", ErrIncomplete, err)
	}
	now := s.now().UTC()
	return s.repo.Add(ctx, Address{
		ID:              uuid.NewString(),
		UserID:          userID,
		Label:           strings.TrimSpace(label),
		ShippingAddress: sa,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
}

func (s *Service) Update(ctx context.Context, userID, id, label string, sa ShippingAddress) (Address, error) {
	if err := sa.Validate(); err != nil {
		return Address{}, fmt.Errorf("%w: %w", ErrIncomplete, err)
	}
	return s.repo.Update(ctx, Address{
		ID:              id,
		UserID:          userID,
		Label:           strings.TrimSpace(label),
		ShippingAddress: sa,
		UpdatedAt:       s.now().UTC(),
	})
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.repo.Delete(ctx, userID, id)
}
