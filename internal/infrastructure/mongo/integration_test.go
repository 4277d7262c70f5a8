//go:build integration

package mongo

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-api-otp/internal/domain"
	"github.com/go-api-otp/internal/pkg/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires a reachable server in MONGO_URI, e.g. mongodb://localhost:27017.
func TestIntegration_CredentialStore(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx := context.Background()
	s, err := Connect(ctx, uri, "otpauth_test_"+id.New())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.db.Drop(ctx)
		_ = s.Close(ctx)
	})

	at := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, s.CreateUser(ctx, &domain.User{UserID: "u1", Name: "Ana", Email: "a@x.com", CreatedAt: at}))
	err = s.CreateUser(ctx, &domain.User{UserID: "u2", Name: "Ana", Email: "a@x.com", CreatedAt: at})
	assert.True(t, errors.Is(err, domain.ErrConflict))

	require.NoError(t, s.CreateOtp(ctx, &domain.Otp{
		OtpID: "o1", Code: "123456", UserID: "u1", ExpiresAt: at.Add(30 * time.Minute), CreatedAt: at,
	}))
	_, err = s.RedeemOtp(ctx, "o1", "123456", at.Add(31*time.Minute))
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.RedeemOtp(ctx, "o1", "123456", at); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}
