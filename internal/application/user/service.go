package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-api-otp/internal/domain"
	"github.com/go-api-otp/internal/pkg/id"
)

type Service interface {
	Register(ctx context.Context, req domain.SignupRequest) (*domain.User, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type service struct {
	repo domain.UserStore
	now  func() time.Time
}

type ServiceDeps struct {
	UserRepo domain.UserStore
	Clock    func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &service{repo: deps.UserRepo, now: now}
}

// Register creates a user unless the email is taken. The lookup catches the
// common case on every backend; stores with a unique index also report
// ErrConflict for a concurrent duplicate.
func (s *service) Register(ctx context.Context, req domain.SignupRequest) (*domain.User, error) {
	_, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err == nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	now := s.now().UTC()
	u := &domain.User{
		UserID:    id.At(now),
		Name:      req.Name,
		Email:     req.Email,
		CreatedAt: now,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.GetUser(ctx, userID)
}
