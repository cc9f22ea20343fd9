package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/beroe-labs/abi/internal/model"
)

// MemoryStore is an in-process Store used in tests and single-node dev runs.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[string]model.User // id -> user
	sessions map[string]model.Session
	invites  map[string]model.Invite
	waitlist map[string]time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]model.User),
		sessions: make(map[string]model.Session),
		invites:  make(map[string]model.Invite),
		waitlist: make(map[string]time.Time),
	}
}

func (m *MemoryStore) CreateUser(_ context.Context, user model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, user.Username) || strings.EqualFold(u.Email, user.Email) {
			return eris.Wrapf(ErrDuplicate, "user %s", user.Username)
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *MemoryStore) UserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "user %s", id)
	}
	return &u, nil
}

func (m *MemoryStore) UserByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			out := u
			return &out, nil
		}
	}
	return nil, eris.Wrapf(ErrNotFound, "user %s", username)
}

func (m *MemoryStore) UserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			out := u
			return &out, nil
		}
	}
	return nil, eris.Wrapf(ErrNotFound, "email %s", email)
}

func (m *MemoryStore) MarkEmailVerified(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return eris.Wrapf(ErrNotFound, "user %s", userID)
	}
	u.EmailVerified = true
	m.users[userID] = u
	return nil
}

func (m *MemoryStore) CreateSession(_ context.Context, session model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.Token] = session
	return nil
}

func (m *MemoryStore) SessionByToken(_ context.Context, token string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, eris.Wrap(ErrNotFound, "session")
	}
	return &s, nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *MemoryStore) CreateInvite(_ context.Context, invite model.Invite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invites[invite.Code]; ok {
		return eris.Wrapf(ErrDuplicate, "invite %s", invite.Code)
	}
	m.invites[invite.Code] = invite
	return nil
}

func (m *MemoryStore) InviteByCode(_ context.Context, code string) (*model.Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invites[code]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "invite %s", code)
	}
	return &inv, nil
}

func (m *MemoryStore) MarkInviteUsed(_ context.Context, code string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invites[code]
	if !ok {
		return eris.Wrapf(ErrNotFound, "invite %s", code)
	}
	inv.UsedAt = &at
	m.invites[code] = inv
	return nil
}

func (m *MemoryStore) AddToWaitlist(_ context.Context, email string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(email)
	if _, ok := m.waitlist[key]; ok {
		return nil
	}
	m.waitlist[key] = at
	return nil
}

func (m *MemoryStore) Migrate(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
