// Package notification delivers one-time codes to users by email.
package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-api-otp/internal/domain"
	"github.com/go-api-otp/internal/observability"
)

// Mailer sends a single plain-text email.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type Service interface {
	// SendOTP emails the code to its owner and reports whether the mailer
	// accepted the message. Failures are logged, never returned.
	SendOTP(ctx context.Context, u *domain.User, o *domain.Otp) bool
}

type service struct {
	mailer    Mailer
	templates *Templates
	sender    string
	metrics   *observability.Metrics
	now       func() time.Time
}

func NewService(mailer Mailer, templates *Templates, sender string, metrics *observability.Metrics) Service {
	if templates == nil {
		templates = MustDefaultTemplates()
	}
	return &service{mailer: mailer, templates: templates, sender: sender, metrics: metrics, now: time.Now}
}

func (s *service) SendOTP(ctx context.Context, u *domain.User, o *domain.Otp) bool {
	subject, body, err := s.templates.Render(MessageData{
		Name:         u.Name,
		Email:        u.Email,
		Code:         o.Code,
		ValidMinutes: validMinutes(o.ExpiresAt.Sub(s.now())),
		Sender:       s.sender,
	})
	if err != nil {
		slog.Error("render otp email", "user_id", u.UserID, "err", err)
		s.metrics.MailDelivery(observability.ResultFailed)
		return false
	}
	if err := s.mailer.SendEmail(ctx, u.Email, subject, body); err != nil {
		slog.Warn("otp email not delivered", "user_id", u.UserID, "otp_id", o.OtpID, "err", err)
		s.metrics.MailDelivery(observability.ResultFailed)
		return false
	}
	s.metrics.MailDelivery(observability.ResultOK)
	return true
}

// validMinutes rounds up so a fresh 30 minute code reads "30", not "29".
func validMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Minute - 1) / time.Minute)
}
