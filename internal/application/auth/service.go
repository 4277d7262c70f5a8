// Package auth implements the passwordless sign-in flow: signup, emailing a
// one-time code and exchanging the code for a session token.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-api-otp/internal/application/otp"
	"github.com/go-api-otp/internal/application/user"
	"github.com/go-api-otp/internal/domain"
	"github.com/go-api-otp/internal/observability"
)

// Session is returned after a successful code redemption.
type Session struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

type Service interface {
	Signup(ctx context.Context, req domain.SignupRequest) (*domain.User, error)
	// Signin issues and emails a code and returns its id.
	Signin(ctx context.Context, req domain.SigninRequest) (string, error)
	UseOTP(ctx context.Context, req domain.UseOTPRequest) (*Session, error)
}

type tokenSigner interface {
	Sign(userID string) (string, error)
}

type otpNotifier interface {
	SendOTP(ctx context.Context, u *domain.User, o *domain.Otp) bool
}

type userLookup interface {
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

type service struct {
	users          userLookup
	registrar      user.Service
	otps           otp.Service
	tokens         tokenSigner
	notifier       otpNotifier
	strictDelivery bool
	metrics        *observability.Metrics
}

type ServiceDeps struct {
	UserRepo    userLookup
	UserService user.Service
	OtpService  otp.Service
	JWTProvider tokenSigner
	Notifier    otpNotifier
	// StrictDelivery makes Signin fail with domain.ErrUndelivered when the
	// email could not be handed to the mailer.
	StrictDelivery bool
	Metrics        *observability.Metrics
}

func NewService(deps ServiceDeps) Service {
	return &service{
		users:          deps.UserRepo,
		registrar:      deps.UserService,
		otps:           deps.OtpService,
		tokens:         deps.JWTProvider,
		notifier:       deps.Notifier,
		strictDelivery: deps.StrictDelivery,
		metrics:        deps.Metrics,
	}
}

func (s *service) Signup(ctx context.Context, req domain.SignupRequest) (*domain.User, error) {
	u, err := s.registrar.Register(ctx, req)
	switch {
	case err == nil:
		s.metrics.Signup(observability.ResultOK)
	case errors.Is(err, domain.ErrConflict):
		s.metrics.Signup(observability.ResultConflict)
	default:
		s.metrics.Signup(observability.ResultFailed)
	}
	return u, err
}

func (s *service) Signin(ctx context.Context, req domain.SigninRequest) (string, error) {
	u, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return "", fmt.Errorf("signin: %w", err)
	}
	o, err := s.otps.Generate(ctx, u.UserID)
	if err != nil {
		return "", fmt.Errorf("signin: %w", err)
	}
	s.metrics.IssuedOtp()

	if !s.notifier.SendOTP(ctx, u, o) && s.strictDelivery {
		return "", fmt.Errorf("signin: %w", domain.ErrUndelivered)
	}
	return o.OtpID, nil
}

func (s *service) UseOTP(ctx context.Context, req domain.UseOTPRequest) (*Session, error) {
	u, err := s.otps.Validate(ctx, req.ID, req.Code)
	if errors.Is(err, domain.ErrNotFound) {
		s.metrics.Redemption(observability.ResultRejected)
		return nil, err
	}
	if err != nil {
		s.metrics.Redemption(observability.ResultFailed)
		return nil, err
	}
	token, err := s.tokens.Sign(u.UserID)
	if err != nil {
		s.metrics.Redemption(observability.ResultFailed)
		return nil, err
	}
	s.metrics.Redemption(observability.ResultOK)
	return &Session{Token: token, User: u}, nil
}
