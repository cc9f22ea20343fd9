package auth

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beroe-labs/abi/internal/model"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_CreateUser_Duplicate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	user := model.User{
		ID: "u-1", Username: "morgan", Email: "morgan@example.com",
		PasswordHash: "hash", Role: model.RoleMember, CreatedAt: time.Now(),
	}
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(user.ID, user.Username, user.Email, user.PasswordHash,
			user.CompanyID, user.Role, user.EmailVerified, user.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := s.CreateUser(context.Background(), user)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UserByUsername(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	created := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, username, email, password_hash`).
		WithArgs("morgan").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "username", "email", "password_hash", "company_id", "role", "email_verified", "created_at",
		}).AddRow("u-1", "morgan", "morgan@example.com", "hash", "co-1", model.RoleMember, false, created))

	user, err := s.UserByUsername(context.Background(), "morgan")
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, "co-1", user.CompanyID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UserByUsername_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, username, email, password_hash`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.UserByUsername(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkInviteUsed_AlreadyBurned(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	at := time.Now()
	mock.ExpectExec(`UPDATE invites SET used_at`).
		WithArgs(at.UTC(), "code-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.MarkInviteUsed(context.Background(), "code-1", at)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SessionByToken(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT token, user_id, created_at, expires_at FROM sessions`).
		WithArgs("tok-1").
		WillReturnRows(pgxmock.NewRows([]string{"token", "user_id", "created_at", "expires_at"}).
			AddRow("tok-1", "u-1", now, now.Add(time.Hour)))

	sess, err := s.SessionByToken(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", sess.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AddToWaitlist_Idempotent(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	at := time.Now()
	mock.ExpectExec(`INSERT INTO waitlist`).
		WithArgs("someone@example.com", at.UTC()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	assert.NoError(t, s.AddToWaitlist(context.Background(), "someone@example.com", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}
