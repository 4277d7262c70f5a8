package http

import (
	"time"

	"github.com/go-api-otp/internal/application/notification"
	"github.com/go-api-otp/internal/domain"
	jwtinfra "github.com/go-api-otp/internal/infrastructure/jwt"
	"github.com/go-api-otp/internal/observability"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	Store       domain.CredentialStore
	Mailer      notification.Mailer
	JWTProvider *jwtinfra.Provider
	// Templates overrides the built-in email templates when non-nil.
	Templates *notification.Templates
	// Metrics is optional; when nil nothing is recorded and /metrics is not mounted.
	Metrics *observability.Metrics

	OtpTTL         time.Duration
	Sender         string
	StrictDelivery bool
	AllowedOrigins []string
}
