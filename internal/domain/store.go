package domain

import (
	"context"
	"time"
)

// UserStore is the persistence contract for user records.
type UserStore interface {
	// CreateUser stores a new user. Backends that can enforce email
	// uniqueness return ErrConflict for a duplicate.
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, userID string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// OtpStore is the persistence contract for one-time codes.
type OtpStore interface {
	CreateOtp(ctx context.Context, o *Otp) error
	// RedeemOtp marks the Otp identified by otpID as used if and only if it
	// is unused, its code equals code and it has not expired at now. The check
	// and the write happen as a single conditional operation in the backend.
	// The owning user is returned on success; every other outcome is ErrNotFound.
	RedeemOtp(ctx context.Context, otpID, code string, now time.Time) (*User, error)
}

// CredentialStore is the full storage surface a backend provides.
type CredentialStore interface {
	UserStore
	OtpStore
	Close(ctx context.Context) error
}
