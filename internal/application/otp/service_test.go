package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-api-otp/internal/domain"
	"github.com/go-api-otp/internal/pkg/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- mocks ---

type mockOtpStore struct{ mock.Mock }

func (m *mockOtpStore) CreateOtp(ctx context.Context, o *domain.Otp) error {
	return m.Called(ctx, o).Error(0)
}
func (m *mockOtpStore) RedeemOtp(ctx context.Context, otpID, code string, now time.Time) (*domain.User, error) {
	args := m.Called(ctx, otpID, code, now)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// --- Generate ---

func TestGenerate_PersistsWellFormedOtp(t *testing.T) {
	st := &mockOtpStore{}
	st.On("CreateOtp", mock.Anything, mock.AnythingOfType("*domain.Otp")).Return(nil)

	svc := NewService(st, WithClock(clock))
	o, err := svc.Generate(context.Background(), "u1")

	require.NoError(t, err)
	assert.True(t, id.Valid(o.OtpID))
	assert.Equal(t, "u1", o.UserID)
	assert.Equal(t, fixedNow.Add(30*time.Minute), o.ExpiresAt)
	assert.False(t, o.Used)
	assert.Len(t, o.Code, CodeLength)

	stored := st.Calls[0].Arguments.Get(1).(*domain.Otp)
	assert.Same(t, o, stored)
	st.AssertExpectations(t)
}

func TestGenerate_CustomTTL(t *testing.T) {
	st := &mockOtpStore{}
	st.On("CreateOtp", mock.Anything, mock.Anything).Return(nil)

	o, err := NewService(st, WithClock(clock), WithTTL(5*time.Minute)).Generate(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(5*time.Minute), o.ExpiresAt)
}

func TestGenerate_ExpiryTruncatedToSecond(t *testing.T) {
	st := &mockOtpStore{}
	st.On("CreateOtp", mock.Anything, mock.Anything).Return(nil)

	issued := fixedNow.Add(700 * time.Millisecond)
	o, err := NewService(st, WithClock(func() time.Time { return issued })).Generate(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(30*time.Minute), o.ExpiresAt)
	assert.Equal(t, issued, o.CreatedAt)
}

func TestGenerate_CodesAreSixDigits(t *testing.T) {
	st := &mockOtpStore{}
	st.On("CreateOtp", mock.Anything, mock.Anything).Return(nil)
	svc := NewService(st)

	// Every digit must show up in every position; a generator that never
	// yields 9 (or any other digit) fails this with overwhelming probability.
	var seen [CodeLength][10]bool
	for i := 0; i < 2000; i++ {
		o, err := svc.Generate(context.Background(), "u1")
		require.NoError(t, err)
		require.Len(t, o.Code, CodeLength)
		for pos, c := range o.Code {
			require.True(t, c >= '0' && c <= '9', "non-digit %q in %q", c, o.Code)
			seen[pos][c-'0'] = true
		}
	}
	for pos := range seen {
		for d, ok := range seen[pos] {
			assert.True(t, ok, "digit %d never generated at position %d", d, pos)
		}
	}
}

func TestGenerate_KeepsLeadingZeros(t *testing.T) {
	st := &mockOtpStore{}
	st.On("CreateOtp", mock.Anything, mock.Anything).Return(nil)

	o, err := NewService(st, WithRandom(zeroReader{})).Generate(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "000000", o.Code)
}

func TestGenerate_EntropyFailure(t *testing.T) {
	st := &mockOtpStore{}
	_, err := NewService(st, WithRandom(failingReader{})).Generate(context.Background(), "u1")
	assert.ErrorContains(t, err, "entropy exhausted")
	st.AssertNotCalled(t, "CreateOtp", mock.Anything, mock.Anything)
}

func TestGenerate_StoreFailure(t *testing.T) {
	st := &mockOtpStore{}
	st.On("CreateOtp", mock.Anything, mock.Anything).Return(errors.New("write failed"))

	_, err := NewService(st).Generate(context.Background(), "u1")
	assert.ErrorContains(t, err, "write failed")
}

// --- Validate ---

func TestValidate_ReturnsOwner(t *testing.T) {
	st := &mockOtpStore{}
	user := &domain.User{UserID: "u1", Name: "Ana", Email: "a@x.com"}
	st.On("RedeemOtp", mock.Anything, "o1", "123456", fixedNow).Return(user, nil)

	got, err := NewService(st, WithClock(clock)).Validate(context.Background(), "o1", "123456")
	require.NoError(t, err)
	assert.Equal(t, user, got)
}

func TestValidate_NotFoundIsOpaque(t *testing.T) {
	st := &mockOtpStore{}
	st.On("RedeemOtp", mock.Anything, "o1", "000000", fixedNow).Return(nil, domain.ErrNotFound)

	_, err := NewService(st, WithClock(clock)).Validate(context.Background(), "o1", "000000")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, "invalid or expired code: not found", err.Error())
}

func TestValidate_WrongLengthSkipsStore(t *testing.T) {
	st := &mockOtpStore{}
	_, err := NewService(st).Validate(context.Background(), "o1", "12345")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	st.AssertNotCalled(t, "RedeemOtp", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestValidate_StoreFailureIsNotNotFound(t *testing.T) {
	st := &mockOtpStore{}
	st.On("RedeemOtp", mock.Anything, "o1", "123456", mock.Anything).Return(nil, errors.New("connection reset"))

	_, err := NewService(st).Validate(context.Background(), "o1", "123456")
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
}
