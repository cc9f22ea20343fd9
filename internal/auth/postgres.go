package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/beroe-labs/abi/internal/model"
)

// Pool is the subset of pgxpool.Pool the store needs; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore over an existing pool config string.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "auth postgres: parse config")
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "auth postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "auth postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool, letting the auth store share
// the ledger's connection pool.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS users (
	id             TEXT PRIMARY KEY,
	username       TEXT NOT NULL,
	email          TEXT NOT NULL,
	password_hash  TEXT NOT NULL,
	company_id     TEXT NOT NULL DEFAULT '',
	role           TEXT NOT NULL DEFAULT 'member',
	email_verified BOOLEAN NOT NULL DEFAULT false,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users(lower(username));
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(lower(email));

CREATE TABLE IF NOT EXISTS sessions (
	token      TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

CREATE TABLE IF NOT EXISTS invites (
	code       TEXT PRIMARY KEY,
	email      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	used_at    TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS waitlist (
	email      TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "auth postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, password_hash, company_id, role, email_verified, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.Username, user.Email, user.PasswordHash,
		user.CompanyID, user.Role, user.EmailVerified, user.CreatedAt,
	)
	if isUniqueViolation(err) {
		return eris.Wrapf(ErrDuplicate, "user %s", user.Username)
	}
	return eris.Wrap(err, "auth postgres: insert user")
}

const pgSelectUser = `SELECT id, username, email, password_hash, company_id, role, email_verified, created_at FROM users`

func (s *PostgresStore) UserByID(ctx context.Context, id string) (*model.User, error) {
	return s.user(ctx, pgSelectUser+` WHERE id = $1`, id)
}

func (s *PostgresStore) UserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.user(ctx, pgSelectUser+` WHERE lower(username) = lower($1)`, username)
}

func (s *PostgresStore) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.user(ctx, pgSelectUser+` WHERE lower(email) = lower($1)`, email)
}

func (s *PostgresStore) user(ctx context.Context, query, arg string) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash,
		&u.CompanyID, &u.Role, &u.EmailVerified, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "user %s", arg)
	}
	if err != nil {
		return nil, eris.Wrap(err, "auth postgres: get user")
	}
	return &u, nil
}

func (s *PostgresStore) MarkEmailVerified(ctx context.Context, userID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET email_verified = true WHERE id = $1`, userID,
	)
	if err != nil {
		return eris.Wrap(err, "auth postgres: verify email")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "user %s", userID)
	}
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, session model.Session) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (token, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)`,
		session.Token, session.UserID, session.CreatedAt, session.ExpiresAt,
	)
	return eris.Wrap(err, "auth postgres: insert session")
}

func (s *PostgresStore) SessionByToken(ctx context.Context, token string) (*model.Session, error) {
	var sess model.Session
	err := s.pool.QueryRow(ctx,
		`SELECT token, user_id, created_at, expires_at FROM sessions WHERE token = $1`, token,
	).Scan(&sess.Token, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "session")
	}
	if err != nil {
		return nil, eris.Wrap(err, "auth postgres: get session")
	}
	return &sess, nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	return eris.Wrap(err, "auth postgres: delete session")
}

func (s *PostgresStore) CreateInvite(ctx context.Context, invite model.Invite) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO invites (code, email, created_at, used_at) VALUES ($1, $2, $3, $4)`,
		invite.Code, invite.Email, invite.CreatedAt, invite.UsedAt,
	)
	if isUniqueViolation(err) {
		return eris.Wrapf(ErrDuplicate, "invite %s", invite.Code)
	}
	return eris.Wrap(err, "auth postgres: insert invite")
}

func (s *PostgresStore) InviteByCode(ctx context.Context, code string) (*model.Invite, error) {
	var inv model.Invite
	var email *string
	err := s.pool.QueryRow(ctx,
		`SELECT code, email, created_at, used_at FROM invites WHERE code = $1`, code,
	).Scan(&inv.Code, &email, &inv.CreatedAt, &inv.UsedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "invite %s", code)
	}
	if err != nil {
		return nil, eris.Wrap(err, "auth postgres: get invite")
	}
	if email != nil {
		inv.Email = *email
	}
	return &inv, nil
}

func (s *PostgresStore) MarkInviteUsed(ctx context.Context, code string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE invites SET used_at = $1 WHERE code = $2 AND used_at IS NULL`, at.UTC(), code,
	)
	if err != nil {
		return eris.Wrap(err, "auth postgres: mark invite used")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "invite %s", code)
	}
	return nil
}

func (s *PostgresStore) AddToWaitlist(ctx context.Context, email string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO waitlist (email, created_at) VALUES (lower($1), $2) ON CONFLICT (email) DO NOTHING`,
		email, at.UTC(),
	)
	return eris.Wrap(err, "auth postgres: add waitlist")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
