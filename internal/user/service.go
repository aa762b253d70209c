package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) GetByID(ctx context.Context, id string) (User, error) {
	return s.repo.GetByID(ctx, id)
}

// Register creates a customer account. The role is always customer;
// admins are provisioned out of band.
func (s *Service) Register(ctx context.Context, user User) (User, error) {
	user.Email = strings.TrimSpace(user.Email)
	if _, err := s.repo.GetByEmail(ctx, user.Email); err == nil {
		return User{}, ErrEmailExists
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	now := s.now().UTC()
	user.ID = uuid.NewString()
	user.Password = string(hashed)
	user.Role = RoleCustomer
	user.CreatedAt = now
	user.UpdatedAt = now
	return s.repo.Create(ctx, user)
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return User{}, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// ProfileUpdate carries the optional fields a user may change on
// themselves; nil leaves the field as is.
type ProfileUpdate struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Phone     *string `json:"phone,omitempty"`
}

func (s *Service) UpdateProfile(ctx context.Context, id string, p ProfileUpdate) (User, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if p.FirstName != nil {
		existing.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		existing.LastName = *p.LastName
	}
	if p.Phone != nil {
		existing.Phone = *p.Phone
	}
	existing.UpdatedAt = s.now().UTC()
	return s.repo.Update(ctx, existing)
}
