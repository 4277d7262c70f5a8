// Package postgres provides a PostgreSQL credential store built on pgx.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/go-api-otp/internal/domain"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// poolIface is the part of pgxpool.Pool the store needs; pgxmock satisfies it.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Store implements domain.CredentialStore using PostgreSQL.
type Store struct {
	pool poolIface
}

var _ domain.CredentialStore = (*Store)(nil)

func NewStore(pool poolIface) *Store {
	return &Store{pool: pool}
}

// Connect opens a pool and pings it with exponential backoff, so the server
// can start alongside a database that is still booting.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}
	if err := ping(ctx, pool, retry.WithMaxRetries(5, retry.NewExponential(200*time.Millisecond))); err != nil {
		pool.Close()
		return nil, err
	}
	return NewStore(pool), nil
}

func ping(ctx context.Context, pool poolIface, b retry.Backoff) error {
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_PING_FAILED").Wrap(err)
	}
	return nil
}

func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (user_id, name, email, created_at)
		VALUES ($1, $2, $3, $4)
	`, u.UserID, u.Name, u.Email, u.CreatedAt)
	if isUniqueViolation(err) {
		return oops.Code("USER_EMAIL_TAKEN").With("email", u.Email).Wrap(domain.ErrConflict)
	}
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("user_id", u.UserID).
			Wrap(err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, name, email, created_at
		FROM users
		WHERE user_id = $1
	`, userID)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("user_id", userID).Wrap(domain.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").With("user_id", userID).Wrap(err)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, name, email, created_at
		FROM users
		WHERE email = $1
	`, email)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(domain.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").With("email", email).Wrap(err)
	}
	return u, nil
}

func (s *Store) CreateOtp(ctx context.Context, o *domain.Otp) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO otps (otp_id, code, user_id, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, o.OtpID, o.Code, o.UserID, o.ExpiresAt, o.Used, o.CreatedAt)
	if err != nil {
		return oops.Code("OTP_CREATE_FAILED").
			With("operation", "insert otp").
			With("user_id", o.UserID).
			Wrap(err)
	}
	return nil
}

// RedeemOtp marks the row used and reads its owner in one statement; the
// row lock taken by UPDATE makes concurrent redemptions serialize.
func (s *Store) RedeemOtp(ctx context.Context, otpID, code string, now time.Time) (*domain.User, error) {
	row := s.pool.QueryRow(ctx, `
		WITH redeemed AS (
			UPDATE otps SET used = TRUE
			WHERE otp_id = $1 AND code = $2 AND used = FALSE AND expires_at >= $3
			RETURNING user_id
		)
		SELECT u.user_id, u.name, u.email, u.created_at
		FROM redeemed r
		JOIN users u ON u.user_id = r.user_id
	`, otpID, code, now)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("OTP_NOT_REDEEMABLE").With("otp_id", otpID).Wrap(domain.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("OTP_REDEEM_FAILED").With("otp_id", otpID).Wrap(err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.UserID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
