package security

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beroe-labs/abi/internal/kvstore"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple", 0)
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, CheckPassword(hash, "correct horse battery staple"))
	assert.False(t, CheckPassword(hash, "wrong password"))
	assert.False(t, CheckPassword("not a hash", "anything"))
}

func TestNewSessionToken(t *testing.T) {
	first, err := NewSessionToken()
	require.NoError(t, err)
	second, err := NewSessionToken()
	require.NoError(t, err)

	assert.Len(t, first, 64)
	assert.NotEqual(t, first, second)
	_, err = hex.DecodeString(first)
	assert.NoError(t, err)
}

func TestValidateCSRFToken(t *testing.T) {
	token, err := NewCSRFToken()
	require.NoError(t, err)

	assert.True(t, ValidateCSRFToken(token, token))
	assert.False(t, ValidateCSRFToken(token, ""))
	assert.False(t, ValidateCSRFToken("", token))
	assert.False(t, ValidateCSRFToken(token, token[:32]), "length mismatch fails")
	other, err := NewCSRFToken()
	require.NoError(t, err)
	assert.False(t, ValidateCSRFToken(token, other))
}

func TestSafeMethod(t *testing.T) {
	assert.True(t, SafeMethod("GET"))
	assert.True(t, SafeMethod("HEAD"))
	assert.True(t, SafeMethod("OPTIONS"))
	assert.False(t, SafeMethod("POST"))
	assert.False(t, SafeMethod("DELETE"))
}

func TestSignedVisitorCookie(t *testing.T) {
	const secret = "cookie-secret"

	signed := SignVisitorID(secret, "visitor-123")
	assert.Equal(t, "visitor-123", VerifyVisitorID(secret, signed))

	// Tamper with the id.
	assert.Empty(t, VerifyVisitorID(secret, strings.Replace(signed, "visitor", "intruder", 1)))
	// Tamper with the signature.
	tampered := signed[:len(signed)-1] + "x"
	if tampered == signed {
		tampered = signed[:len(signed)-1] + "y"
	}
	assert.Empty(t, VerifyVisitorID(secret, tampered))
	// Wrong secret, malformed values.
	assert.Empty(t, VerifyVisitorID("other-secret", signed))
	assert.Empty(t, VerifyVisitorID(secret, "no-separator"))
	assert.Empty(t, VerifyVisitorID(secret, ""))
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	limiter := NewRateLimiter(kvstore.NewMemoryWithClock(clock))
	ctx := context.Background()

	for _, wantRemaining := range []int64{2, 1, 0} {
		result, err := limiter.Allow(ctx, "10.0.0.1", PresetRegister)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, wantRemaining, result.Remaining)
	}

	result, err := limiter.Allow(ctx, "10.0.0.1", PresetRegister)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, int64(0), result.Remaining)
	assert.Equal(t, now.Add(time.Minute), result.ResetAt)

	// Another ip and another endpoint have their own windows.
	other, err := limiter.Allow(ctx, "10.0.0.2", PresetRegister)
	require.NoError(t, err)
	assert.True(t, other.Allowed)
	other, err = limiter.Allow(ctx, "10.0.0.1", PresetLogin)
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	// Counter resets after the window.
	now = now.Add(61 * time.Second)
	result, err = limiter.Allow(ctx, "10.0.0.1", PresetRegister)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(2), result.Remaining)
}

func TestAddTimingNoiseBounds(t *testing.T) {
	start := time.Now()
	AddTimingNoise(5*time.Millisecond, 20*time.Millisecond)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 5*time.Millisecond)
}
