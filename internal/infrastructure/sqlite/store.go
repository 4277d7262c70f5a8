// Package sqlite provides a single-file credential store backed by modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-api-otp/internal/domain"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

//go:embed schema.sql
var schema string

// Store implements domain.CredentialStore over SQLite.
type Store struct {
	db *sql.DB
}

var _ domain.CredentialStore = (*Store)(nil)

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// Open opens (creating if needed) the database at path and applies the schema.
// Writes are funnelled through one connection, so the conditional redeem
// UPDATE is never interleaved with another writer.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close(context.Context) error {
	return s.db.Close()
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, name, email, created_at) VALUES (?, ?, ?, ?)`,
		u.UserID, u.Name, u.Email, toMillis(u.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("user with email %s: %w", u.Email, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT user_id, name, email, created_at FROM users WHERE user_id = ?`, userID))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT user_id, name, email, created_at FROM users WHERE email = ?`, email))
}

func (s *Store) scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u         domain.User
		createdAt int64
	)
	err := row.Scan(&u.UserID, &u.Name, &u.Email, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt = fromMillis(createdAt)
	return &u, nil
}

func (s *Store) CreateOtp(ctx context.Context, o *domain.Otp) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO otps (otp_id, code, user_id, expires_at, used, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		o.OtpID, o.Code, o.UserID, toMillis(o.ExpiresAt), o.Used, toMillis(o.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert otp: %w", err)
	}
	return nil
}

func (s *Store) RedeemOtp(ctx context.Context, otpID, code string, now time.Time) (*domain.User, error) {
	var userID string
	err := s.db.QueryRowContext(ctx,
		`UPDATE otps SET used = 1
		 WHERE otp_id = ? AND code = ? AND used = 0 AND expires_at >= ?
		 RETURNING user_id`,
		otpID, code, toMillis(now)).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("otp %s: %w", otpID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redeem otp: %w", err)
	}
	return s.GetUser(ctx, userID)
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
