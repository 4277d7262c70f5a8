package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-api-otp/internal/config"
	"github.com/go-api-otp/internal/domain"
)

// Store implements domain.CredentialStore on top of the users and otps tables.
type Store struct {
	users *UserRepo
	otps  *OtpRepo
}

var _ domain.CredentialStore = (*Store)(nil)

func NewStore(client API, tables config.DynamoTables) *Store {
	return &Store{
		users: NewUserRepo(client, tables.Users),
		otps:  NewOtpRepo(client, tables.Otps),
	}
}

// CreateUser checks the email-index before writing. Two concurrent signups
// for the same address can both pass the check.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.users.GetByEmail(ctx, u.Email)
	if err == nil {
		return fmt.Errorf("user with email %s: %w", u.Email, domain.ErrConflict)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return s.users.Put(ctx, u)
}

func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.Get(ctx, userID)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.users.GetByEmail(ctx, email)
}

func (s *Store) CreateOtp(ctx context.Context, o *domain.Otp) error {
	return s.otps.Put(ctx, o)
}

// RedeemOtp spends the code before loading its owner. If the user lookup then
// fails the code stays used and the caller sees the lookup error.
func (s *Store) RedeemOtp(ctx context.Context, otpID, code string, now time.Time) (*domain.User, error) {
	o, err := s.otps.MarkUsed(ctx, otpID, code, now)
	if err != nil {
		return nil, err
	}
	return s.users.Get(ctx, o.UserID)
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *Store) Close(context.Context) error { return nil }
