// Package auth owns accounts, sessions, invites, and the waitlist. Passwords
// never leave the package unhashed and session tokens are opaque random
// strings resolved server-side.
package auth

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/beroe-labs/abi/internal/model"
)

// Sentinel errors. Handlers map these to HTTP status codes.
var (
	ErrNotFound           = eris.New("auth: not found")
	ErrDuplicate          = eris.New("auth: already exists")
	ErrInvalidCredentials = eris.New("auth: invalid credentials")
	ErrInvalidInvite      = eris.New("auth: invalid invite code")
	ErrReservedUsername   = eris.New("auth: username is reserved")
	ErrWeakPassword       = eris.New("auth: password too short")
	ErrSessionExpired     = eris.New("auth: session expired")
)

// Store persists auth records.
type Store interface {
	CreateUser(ctx context.Context, user model.User) error
	UserByID(ctx context.Context, id string) (*model.User, error)
	UserByUsername(ctx context.Context, username string) (*model.User, error)
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	MarkEmailVerified(ctx context.Context, userID string) error

	CreateSession(ctx context.Context, session model.Session) error
	SessionByToken(ctx context.Context, token string) (*model.Session, error)
	DeleteSession(ctx context.Context, token string) error

	CreateInvite(ctx context.Context, invite model.Invite) error
	InviteByCode(ctx context.Context, code string) (*model.Invite, error)
	MarkInviteUsed(ctx context.Context, code string, at time.Time) error

	AddToWaitlist(ctx context.Context, email string, at time.Time) error

	Migrate(ctx context.Context) error
	Close() error
}
