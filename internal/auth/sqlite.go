package auth

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/beroe-labs/abi/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "auth sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "auth sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS users (
	id             TEXT PRIMARY KEY,
	username       TEXT NOT NULL COLLATE NOCASE UNIQUE,
	email          TEXT NOT NULL COLLATE NOCASE UNIQUE,
	password_hash  TEXT NOT NULL,
	company_id     TEXT NOT NULL DEFAULT '',
	role           TEXT NOT NULL DEFAULT 'member',
	email_verified INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sessions (
	token      TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id),
	created_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS invites (
	code       TEXT PRIMARY KEY,
	email      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	used_at    DATETIME
);

CREATE TABLE IF NOT EXISTS waitlist (
	email      TEXT PRIMARY KEY COLLATE NOCASE,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "auth sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateUser(ctx context.Context, user model.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, company_id, role, email_verified, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, user.PasswordHash,
		user.CompanyID, user.Role, user.EmailVerified, user.CreatedAt,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return eris.Wrapf(ErrDuplicate, "user %s", user.Username)
	}
	return eris.Wrap(err, "auth sqlite: insert user")
}

const selectUser = `SELECT id, username, email, password_hash, company_id, role, email_verified, created_at FROM users`

func (s *SQLiteStore) UserByID(ctx context.Context, id string) (*model.User, error) {
	return s.user(ctx, selectUser+` WHERE id = ?`, id)
}

func (s *SQLiteStore) UserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.user(ctx, selectUser+` WHERE username = ?`, username)
}

func (s *SQLiteStore) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.user(ctx, selectUser+` WHERE email = ?`, email)
}

func (s *SQLiteStore) user(ctx context.Context, query, arg string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash,
		&u.CompanyID, &u.Role, &u.EmailVerified, &u.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "user %s", arg)
	}
	if err != nil {
		return nil, eris.Wrap(err, "auth sqlite: get user")
	}
	return &u, nil
}

func (s *SQLiteStore) MarkEmailVerified(ctx context.Context, userID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET email_verified = 1 WHERE id = ?`, userID,
	)
	if err != nil {
		return eris.Wrap(err, "auth sqlite: verify email")
	}
	return checkAffected(result, "user", userID)
}

func (s *SQLiteStore) CreateSession(ctx context.Context, session model.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		session.Token, session.UserID, session.CreatedAt, session.ExpiresAt,
	)
	return eris.Wrap(err, "auth sqlite: insert session")
}

func (s *SQLiteStore) SessionByToken(ctx context.Context, token string) (*model.Session, error) {
	var sess model.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT token, user_id, created_at, expires_at FROM sessions WHERE token = ?`, token,
	).Scan(&sess.Token, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "session")
	}
	if err != nil {
		return nil, eris.Wrap(err, "auth sqlite: get session")
	}
	return &sess, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	return eris.Wrap(err, "auth sqlite: delete session")
}

func (s *SQLiteStore) CreateInvite(ctx context.Context, invite model.Invite) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invites (code, email, created_at, used_at) VALUES (?, ?, ?, ?)`,
		invite.Code, invite.Email, invite.CreatedAt, nullableTime(invite.UsedAt),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return eris.Wrapf(ErrDuplicate, "invite %s", invite.Code)
	}
	return eris.Wrap(err, "auth sqlite: insert invite")
}

func (s *SQLiteStore) InviteByCode(ctx context.Context, code string) (*model.Invite, error) {
	var inv model.Invite
	var email sql.NullString
	var usedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT code, email, created_at, used_at FROM invites WHERE code = ?`, code,
	).Scan(&inv.Code, &email, &inv.CreatedAt, &usedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "invite %s", code)
	}
	if err != nil {
		return nil, eris.Wrap(err, "auth sqlite: get invite")
	}
	inv.Email = email.String
	if usedAt.Valid {
		t := usedAt.Time
		inv.UsedAt = &t
	}
	return &inv, nil
}

func (s *SQLiteStore) MarkInviteUsed(ctx context.Context, code string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE invites SET used_at = ? WHERE code = ? AND used_at IS NULL`, at.UTC(), code,
	)
	if err != nil {
		return eris.Wrap(err, "auth sqlite: mark invite used")
	}
	return checkAffected(result, "invite", code)
}

func (s *SQLiteStore) AddToWaitlist(ctx context.Context, email string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO waitlist (email, created_at) VALUES (?, ?) ON CONFLICT(email) DO NOTHING`,
		email, at.UTC(),
	)
	return eris.Wrap(err, "auth sqlite: add waitlist")
}

func checkAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
