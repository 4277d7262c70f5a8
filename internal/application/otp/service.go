// Package otp issues and redeems one-time sign-in codes.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/go-api-otp/internal/domain"
	"github.com/go-api-otp/internal/pkg/id"
)

const (
	// CodeLength is the number of decimal digits in a code.
	CodeLength = 6
	// DefaultTTL is how long a code stays redeemable after generation.
	DefaultTTL = 30 * time.Minute
)

type Service interface {
	Generate(ctx context.Context, userID string) (*domain.Otp, error)
	Validate(ctx context.Context, otpID, code string) (*domain.User, error)
}

type service struct {
	store  domain.OtpStore
	ttl    time.Duration
	now    func() time.Time
	random io.Reader
}

// Option customises the service.
type Option func(*service)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *service) { s.ttl = ttl }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithRandom overrides the digit entropy source (crypto/rand by default).
func WithRandom(r io.Reader) Option {
	return func(s *service) { s.random = r }
}

func NewService(store domain.OtpStore, opts ...Option) Service {
	s := &service{store: store, ttl: DefaultTTL, now: time.Now, random: rand.Reader}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *service) Generate(ctx context.Context, userID string) (*domain.Otp, error) {
	code, err := newCode(s.random)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	// Whole-second expiry so every backend, including epoch-second DynamoDB
	// items, compares against the same instant.
	o := &domain.Otp{
		OtpID:     id.At(now),
		Code:      code,
		UserID:    userID,
		ExpiresAt: now.Add(s.ttl).Truncate(time.Second),
		Used:      false,
		CreatedAt: now,
	}
	if err := s.store.CreateOtp(ctx, o); err != nil {
		return nil, fmt.Errorf("store otp: %w", err)
	}
	return o, nil
}

// Validate redeems the code. Unknown id, wrong code, expiry and reuse all
// surface as the same domain.ErrNotFound.
func (s *service) Validate(ctx context.Context, otpID, code string) (*domain.User, error) {
	if len(code) != CodeLength {
		return nil, fmt.Errorf("invalid or expired code: %w", domain.ErrNotFound)
	}
	u, err := s.store.RedeemOtp(ctx, otpID, code, s.now().UTC())
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("invalid or expired code: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redeem otp: %w", err)
	}
	return u, nil
}

// newCode draws CodeLength independent uniform digits. Leading zeros are kept.
func newCode(r io.Reader) (string, error) {
	ten := big.NewInt(10)
	b := make([]byte, CodeLength)
	for i := range b {
		n, err := rand.Int(r, ten)
		if err != nil {
			return "", fmt.Errorf("generate otp digit: %w", err)
		}
		b[i] = byte('0' + n.Int64())
	}
	return string(b), nil
}
