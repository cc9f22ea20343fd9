package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/beroe-labs/abi/internal/kvstore"
	"github.com/beroe-labs/abi/internal/model"
	"github.com/beroe-labs/abi/internal/security"
)

// Defaults.
const (
	DefaultSessionTTL = 30 * 24 * time.Hour
	verificationTTL   = 24 * time.Hour
	minPasswordLength = 8
)

// reservedUsernames are never registrable.
var reservedUsernames = map[string]bool{
	"admin":   true,
	"root":    true,
	"system":  true,
	"support": true,
	"abi":     true,
	"beroe":   true,
}

// Config tunes the auth service.
type Config struct {
	SessionTTL time.Duration `yaml:"session_ttl" mapstructure:"session_ttl"`
	HashCost   int           `yaml:"hash_cost" mapstructure:"hash_cost"`
	// RequireInvite gates registration behind invite codes.
	RequireInvite bool `yaml:"require_invite" mapstructure:"require_invite"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		SessionTTL:    DefaultSessionTTL,
		HashCost:      security.DefaultHashCost,
		RequireInvite: true,
	}
}

// Service implements registration, login, sessions, invites, and email
// verification. Verification codes live in the kvstore with a 24 h TTL.
type Service struct {
	store Store
	codes kvstore.Store
	cfg   Config
	now   func() time.Time
}

// NewService creates an auth service.
func NewService(store Store, codes kvstore.Store, cfg Config) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.HashCost <= 0 {
		cfg.HashCost = security.DefaultHashCost
	}
	return &Service{store: store, codes: codes, cfg: cfg, now: time.Now}
}

// WithClock overrides the service clock for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RegisterInput is one registration attempt.
type RegisterInput struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	InviteCode string `json:"inviteCode,omitempty"`
	CompanyID  string `json:"companyId,omitempty"`
}

// Register creates a user after username, password, and invite checks, and
// issues an email verification code.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, string, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if username == "" || email == "" {
		return nil, "", eris.Wrap(ErrInvalidCredentials, "username and email required")
	}
	if reservedUsernames[strings.ToLower(username)] {
		return nil, "", eris.Wrapf(ErrReservedUsername, "%s", username)
	}
	if len(in.Password) < minPasswordLength {
		return nil, "", eris.Wrapf(ErrWeakPassword, "minimum %d characters", minPasswordLength)
	}

	if s.cfg.RequireInvite {
		if err := s.consumeInvite(ctx, in.InviteCode, email); err != nil {
			return nil, "", err
		}
	}

	hash, err := security.HashPassword(in.Password, s.cfg.HashCost)
	if err != nil {
		return nil, "", eris.Wrap(err, "auth: hash password")
	}

	user := model.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CompanyID:    in.CompanyID,
		Role:         model.RoleMember,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, "", err
	}

	code, err := s.issueVerification(ctx, user.ID)
	if err != nil {
		zap.L().Warn("auth: verification code issue failed", zap.Error(err))
	}
	return &user, code, nil
}

// consumeInvite validates and burns an invite code.
func (s *Service) consumeInvite(ctx context.Context, code, email string) error {
	inv, err := s.ValidateInvite(ctx, code)
	if err != nil {
		return err
	}
	if inv.Email != "" && !strings.EqualFold(inv.Email, email) {
		return eris.Wrap(ErrInvalidInvite, "invite bound to another email")
	}
	return s.store.MarkInviteUsed(ctx, code, s.now().UTC())
}

// ValidateInvite checks that an invite code exists and is unused. Callers
// surfacing the result to unauthenticated clients add timing noise first.
func (s *Service) ValidateInvite(ctx context.Context, code string) (*model.Invite, error) {
	if strings.TrimSpace(code) == "" {
		return nil, eris.Wrap(ErrInvalidInvite, "code required")
	}
	inv, err := s.store.InviteByCode(ctx, code)
	if err != nil {
		if eris.Is(err, ErrNotFound) {
			return nil, eris.Wrap(ErrInvalidInvite, "unknown code")
		}
		return nil, err
	}
	if inv.UsedAt != nil {
		return nil, eris.Wrap(ErrInvalidInvite, "code already used")
	}
	return inv, nil
}

// Login verifies credentials and opens a session. The error is identical for
// unknown users and wrong passwords.
func (s *Service) Login(ctx context.Context, username, password string) (*model.Session, *model.User, error) {
	user, err := s.store.UserByUsername(ctx, username)
	if err != nil {
		if eris.Is(err, ErrNotFound) {
			// Burn comparable time so unknown users are not distinguishable
			// by response latency.
			security.CheckPassword("$2a$10$invalidinvalidinvalidinvalidinvalidinvalidinvalidinva", password)
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if !security.CheckPassword(user.PasswordHash, password) {
		return nil, nil, ErrInvalidCredentials
	}

	token, err := security.NewSessionToken()
	if err != nil {
		return nil, nil, eris.Wrap(err, "auth: session token")
	}
	now := s.now().UTC()
	session := model.Session{
		Token:     token,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, nil, err
	}
	return &session, user, nil
}

// Authenticate resolves a session token to its user, rejecting expired
// sessions.
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, eris.Wrap(ErrNotFound, "session")
	}
	session, err := s.store.SessionByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.Expired(s.now()) {
		_ = s.store.DeleteSession(ctx, token)
		return nil, ErrSessionExpired
	}
	return s.store.UserByID(ctx, session.UserID)
}

// Logout deletes a session.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.store.DeleteSession(ctx, token)
}

// VerifyEmail redeems a verification code.
func (s *Service) VerifyEmail(ctx context.Context, code string) error {
	raw, ok, err := s.codes.Get(ctx, verificationKey(code))
	if err != nil {
		return eris.Wrap(err, "auth: read verification code")
	}
	if !ok {
		return eris.Wrap(ErrNotFound, "verification code")
	}
	return s.store.MarkEmailVerified(ctx, string(raw))
}

// JoinWaitlist records an interested email.
func (s *Service) JoinWaitlist(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return eris.Wrap(ErrInvalidCredentials, "valid email required")
	}
	return s.store.AddToWaitlist(ctx, email, s.now().UTC())
}

// CreateInvite mints a new invite code, optionally bound to an email.
func (s *Service) CreateInvite(ctx context.Context, email string) (*model.Invite, error) {
	inv := model.Invite{
		Code:      uuid.NewString(),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateInvite(ctx, inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *Service) issueVerification(ctx context.Context, userID string) (string, error) {
	code, err := security.NewSessionToken()
	if err != nil {
		return "", eris.Wrap(err, "auth: verification code")
	}
	if err := s.codes.SetWithTTL(ctx, verificationKey(code), []byte(userID), verificationTTL); err != nil {
		return "", err
	}
	return code, nil
}

func verificationKey(code string) string {
	return "verify:" + code
}
