package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beroe-labs/abi/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetAccount_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT a.id, a.company_id, a.bonus_credits`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetAccount(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetAccount_DerivedBalance(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	end := time.Now().Add(30 * 24 * time.Hour)
	mock.ExpectQuery(`SELECT a.id, a.company_id, a.bonus_credits`).
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "company_id", "bonus_credits", "subscription_tier", "subscription_end",
			"credits", "debits", "reserved",
		}).AddRow("acct-1", "co-1", int64(500), "enterprise", &end, int64(10000), int64(2000), int64(3000)))

	account, err := s.GetAccount(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), account.TotalCredits)
	assert.Equal(t, int64(5500), account.Available())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetReservation_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT account_id, reference_id, amount`).
		WithArgs("acct-1", "ref-1").
		WillReturnError(pgx.ErrNoRows)

	res, err := s.GetReservation(context.Background(), "acct-1", "ref-1")
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendEntry(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO ledger_entries`).
		WithArgs("e-1", "acct-1", int64(3000), "debit", "hold_conversion",
			"hold conversion", "request", "req-1", pgxmock.AnyArg(), "system").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.AppendEntry(context.Background(), model.LedgerEntry{
		ID:              "e-1",
		AccountID:       "acct-1",
		Amount:          3000,
		EntryType:       model.EntryDebit,
		TransactionType: model.TxHoldConversion,
		Description:     "hold conversion",
		ReferenceType:   "request",
		ReferenceID:     "req-1",
		CreatedAt:       time.Now().UTC(),
		CreatedBy:       "system",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateReservation_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE reservations SET converted`).
		WithArgs(true, int64(100), false, "acct-1", "ref-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateReservation(context.Background(), model.Reservation{
		AccountID:       "acct-1",
		ReferenceID:     "ref-1",
		Converted:       true,
		ConvertedAmount: 100,
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
