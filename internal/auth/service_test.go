package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beroe-labs/abi/internal/kvstore"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return NewService(store, kvstore.NewMemory(), Config{RequireInvite: false})
}

func register(t *testing.T, svc *Service, username, email string) string {
	t.Helper()
	_, code, err := svc.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    email,
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	return code
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, code, err := svc.Register(ctx, RegisterInput{
		Username: "morgan",
		Email:    "Morgan@Example.com",
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	assert.Equal(t, "morgan@example.com", user.Email, "emails normalize to lowercase")
	assert.NotEmpty(t, code)
	assert.False(t, user.EmailVerified)

	session, got, err := svc.Login(ctx, "morgan", "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Len(t, session.Token, 64)

	_, _, err = svc.Login(ctx, "morgan", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "nobody", "correct horse battery")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, RegisterInput{Username: "admin", Email: "a@b.com", Password: "longenough"})
	assert.ErrorIs(t, err, ErrReservedUsername)

	_, _, err = svc.Register(ctx, RegisterInput{Username: "morgan", Email: "a@b.com", Password: "short"})
	assert.ErrorIs(t, err, ErrWeakPassword)

	register(t, svc, "morgan", "morgan@example.com")
	_, _, err = svc.Register(ctx, RegisterInput{Username: "Morgan", Email: "other@example.com", Password: "longenough"})
	assert.ErrorIs(t, err, ErrDuplicate, "usernames are case-insensitive")
}

func TestInviteGatedRegistration(t *testing.T) {
	store, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	svc := NewService(store, kvstore.NewMemory(), Config{RequireInvite: true})
	ctx := context.Background()

	_, _, err = svc.Register(ctx, RegisterInput{
		Username: "morgan", Email: "m@example.com", Password: "longenough", InviteCode: "bogus",
	})
	assert.ErrorIs(t, err, ErrInvalidInvite)

	inv, err := svc.CreateInvite(ctx, "")
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, RegisterInput{
		Username: "morgan", Email: "m@example.com", Password: "longenough", InviteCode: inv.Code,
	})
	require.NoError(t, err)

	// Burned on use.
	_, err = svc.ValidateInvite(ctx, inv.Code)
	assert.ErrorIs(t, err, ErrInvalidInvite)
}

func TestInviteBoundToEmail(t *testing.T) {
	store := NewMemory()
	svc := NewService(store, kvstore.NewMemory(), Config{RequireInvite: true})
	ctx := context.Background()

	inv, err := svc.CreateInvite(ctx, "alex@example.com")
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, RegisterInput{
		Username: "intruder", Email: "other@example.com", Password: "longenough", InviteCode: inv.Code,
	})
	assert.ErrorIs(t, err, ErrInvalidInvite)

	_, _, err = svc.Register(ctx, RegisterInput{
		Username: "alex", Email: "alex@example.com", Password: "longenough", InviteCode: inv.Code,
	})
	assert.NoError(t, err)
}

func TestVerifyEmail(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	code := register(t, svc, "morgan", "morgan@example.com")
	require.NoError(t, svc.VerifyEmail(ctx, code))

	user, err := svc.store.UserByUsername(ctx, "morgan")
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)

	assert.ErrorIs(t, svc.VerifyEmail(ctx, "bogus"), ErrNotFound)
}

func TestAuthenticateSessionLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	register(t, svc, "morgan", "morgan@example.com")
	session, user, err := svc.Login(ctx, "morgan", "correct horse battery")
	require.NoError(t, err)

	got, err := svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.Logout(ctx, session.Token))
	_, err = svc.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuthenticateExpiredSession(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	register(t, svc, "morgan", "morgan@example.com")
	session, _, err := svc.Login(ctx, "morgan", "correct horse battery")
	require.NoError(t, err)

	svc.WithClock(func() time.Time { return time.Now().Add(DefaultSessionTTL + time.Hour) })
	_, err = svc.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestJoinWaitlist(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.JoinWaitlist(ctx, "Someone@Example.com"))
	// Re-joining is a no-op, not an error.
	require.NoError(t, svc.JoinWaitlist(ctx, "someone@example.com"))
	assert.ErrorIs(t, svc.JoinWaitlist(ctx, "not-an-email"), ErrInvalidCredentials)
}
