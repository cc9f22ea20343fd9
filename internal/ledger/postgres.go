package ledger

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

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS accounts (
	id                TEXT PRIMARY KEY,
	company_id        TEXT NOT NULL,
	bonus_credits     BIGINT NOT NULL DEFAULT 0,
	subscription_tier TEXT NOT NULL DEFAULT 'standard',
	subscription_end  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	id               TEXT PRIMARY KEY,
	account_id       TEXT NOT NULL REFERENCES accounts(id),
	amount           BIGINT NOT NULL CHECK (amount > 0),
	entry_type       TEXT NOT NULL CHECK (entry_type IN ('credit', 'debit')),
	transaction_type TEXT NOT NULL,
	description      TEXT,
	reference_type   TEXT,
	reference_id     TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	created_by       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS reservations (
	account_id       TEXT NOT NULL REFERENCES accounts(id),
	reference_id     TEXT NOT NULL,
	amount           BIGINT NOT NULL CHECK (amount > 0),
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	converted        BOOLEAN NOT NULL DEFAULT false,
	converted_amount BIGINT NOT NULL DEFAULT 0,
	released         BOOLEAN NOT NULL DEFAULT false,
	PRIMARY KEY (account_id, reference_id)
);

CREATE TABLE IF NOT EXISTS requests (
	id                TEXT PRIMARY KEY,
	requester_id      TEXT NOT NULL,
	approver_id       TEXT,
	account_id        TEXT NOT NULL REFERENCES accounts(id),
	type              TEXT NOT NULL,
	title             TEXT NOT NULL,
	description       TEXT,
	context           TEXT,
	estimated_credits BIGINT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'draft',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at        TIMESTAMPTZ,
	approval_note     TEXT,
	denial_reason     TEXT,
	escalated         BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS approval_events (
	id         TEXT PRIMARY KEY,
	request_id TEXT NOT NULL REFERENCES requests(id),
	kind       TEXT NOT NULL,
	actor_id   TEXT NOT NULL,
	note       TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_ledger_entries_account ON ledger_entries(account_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_requests_account ON requests(account_id);
CREATE INDEX IF NOT EXISTS idx_requests_status_expires ON requests(status, expires_at);
CREATE INDEX IF NOT EXISTS idx_approval_events_request ON approval_events(request_id, created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateAccount(ctx context.Context, account model.CreditAccount) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (id, company_id, bonus_credits, subscription_tier, subscription_end)
		 VALUES ($1, $2, $3, $4, $5)`,
		account.AccountID, account.CompanyID, account.BonusCredits,
		account.SubscriptionTier, account.SubscriptionEnd.UTC(),
	)
	return eris.Wrap(err, "postgres: insert account")
}

// GetAccount returns the derived balance view: total credits, debits, and
// reserved are aggregated from the ledger and active holds on every read.
func (s *PostgresStore) GetAccount(ctx context.Context, accountID string) (*model.CreditAccount, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT a.id, a.company_id, a.bonus_credits, a.subscription_tier, a.subscription_end,
			COALESCE((SELECT SUM(amount) FROM ledger_entries WHERE account_id = a.id AND entry_type = 'credit'), 0),
			COALESCE((SELECT SUM(amount) FROM ledger_entries WHERE account_id = a.id AND entry_type = 'debit'), 0),
			COALESCE((SELECT SUM(amount) FROM reservations WHERE account_id = a.id AND NOT converted AND NOT released), 0)
		 FROM accounts a WHERE a.id = $1`,
		accountID,
	)

	var a model.CreditAccount
	var subEnd *time.Time
	err := row.Scan(&a.AccountID, &a.CompanyID, &a.BonusCredits,
		&a.SubscriptionTier, &subEnd, &a.LedgerCredits, &a.LedgerDebits, &a.ReservedCredits)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "account %s", accountID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get account")
	}
	a.TotalCredits = a.LedgerCredits
	if subEnd != nil {
		a.SubscriptionEnd = *subEnd
	}
	return &a, nil
}

func (s *PostgresStore) AppendEntry(ctx context.Context, entry model.LedgerEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ledger_entries (id, account_id, amount, entry_type, transaction_type, description, reference_type, reference_id, created_at, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.AccountID, entry.Amount, string(entry.EntryType), string(entry.TransactionType),
		entry.Description, entry.ReferenceType, entry.ReferenceID, entry.CreatedAt, entry.CreatedBy,
	)
	return eris.Wrap(err, "postgres: append entry")
}

func (s *PostgresStore) ListEntries(ctx context.Context, accountID string, limit, offset int) ([]model.LedgerEntry, int, error) {
	var total int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM ledger_entries WHERE account_id = $1`, accountID,
	).Scan(&total)
	if err != nil {
		return nil, 0, eris.Wrap(err, "postgres: count entries")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, amount, entry_type, transaction_type, description, reference_type, reference_id, created_at, created_by
		 FROM ledger_entries WHERE account_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		accountID, limit, offset,
	)
	if err != nil {
		return nil, 0, eris.Wrap(err, "postgres: list entries")
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		var description, refType, refID *string
		err := rows.Scan(&e.ID, &e.AccountID, &e.Amount, &e.EntryType, &e.TransactionType,
			&description, &refType, &refID, &e.CreatedAt, &e.CreatedBy)
		if err != nil {
			return nil, 0, eris.Wrap(err, "postgres: scan entry")
		}
		e.Description = deref(description)
		e.ReferenceType = deref(refType)
		e.ReferenceID = deref(refID)
		entries = append(entries, e)
	}
	return entries, total, eris.Wrap(rows.Err(), "postgres: list entries iterate")
}

func (s *PostgresStore) CreateReservation(ctx context.Context, res model.Reservation) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO reservations (account_id, reference_id, amount, created_at) VALUES ($1, $2, $3, $4)`,
		res.AccountID, res.ReferenceID, res.Amount, res.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert reservation")
}

func (s *PostgresStore) GetReservation(ctx context.Context, accountID, referenceID string) (*model.Reservation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT account_id, reference_id, amount, created_at, converted, converted_amount, released
		 FROM reservations WHERE account_id = $1 AND reference_id = $2`,
		accountID, referenceID,
	)

	var r model.Reservation
	err := row.Scan(&r.AccountID, &r.ReferenceID, &r.Amount, &r.CreatedAt, &r.Converted, &r.ConvertedAmount, &r.Released)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get reservation")
	}
	return &r, nil
}

func (s *PostgresStore) UpdateReservation(ctx context.Context, res model.Reservation) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reservations SET converted = $1, converted_amount = $2, released = $3
		 WHERE account_id = $4 AND reference_id = $5`,
		res.Converted, res.ConvertedAmount, res.Released, res.AccountID, res.ReferenceID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: update reservation")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "reservation %s", res.ReferenceID)
	}
	return nil
}

func (s *PostgresStore) CreateRequest(ctx context.Context, req model.UpgradeRequest) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO requests (id, requester_id, approver_id, account_id, type, title, description, context, estimated_credits, status, created_at, expires_at, approval_note, denial_reason, escalated)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		req.ID, req.RequesterID, emptyToNil(req.ApproverID), req.AccountID, req.Type, req.Title,
		req.Description, req.Context, req.EstimatedCredits, string(req.Status), req.CreatedAt,
		req.ExpiresAt, req.ApprovalNote, req.DenialReason, req.Escalated,
	)
	return eris.Wrap(err, "postgres: insert request")
}

const pgSelectRequest = `SELECT id, requester_id, approver_id, account_id, type, title, description, context, estimated_credits, status, created_at, expires_at, approval_note, denial_reason, escalated FROM requests`

func (s *PostgresStore) GetRequest(ctx context.Context, id string) (*model.UpgradeRequest, error) {
	row := s.pool.QueryRow(ctx, pgSelectRequest+` WHERE id = $1`, id)
	req, err := scanPgRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "request %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get request")
	}
	return req, nil
}

func (s *PostgresStore) UpdateRequest(ctx context.Context, req model.UpgradeRequest) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE requests SET approver_id = $1, status = $2, expires_at = $3, approval_note = $4, denial_reason = $5, escalated = $6
		 WHERE id = $7`,
		emptyToNil(req.ApproverID), string(req.Status), req.ExpiresAt,
		req.ApprovalNote, req.DenialReason, req.Escalated, req.ID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: update request")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "request %s", req.ID)
	}
	return nil
}

func (s *PostgresStore) ListRequests(ctx context.Context, accountID string) ([]model.UpgradeRequest, error) {
	rows, err := s.pool.Query(ctx,
		pgSelectRequest+` WHERE account_id = $1 ORDER BY created_at DESC`, accountID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list requests")
	}
	defer rows.Close()
	return collectPgRequests(rows)
}

func (s *PostgresStore) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]model.UpgradeRequest, error) {
	rows, err := s.pool.Query(ctx,
		pgSelectRequest+` WHERE status = $1 AND expires_at IS NOT NULL AND expires_at <= $2 ORDER BY expires_at`,
		string(model.RequestPending), cutoff.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pending")
	}
	defer rows.Close()
	return collectPgRequests(rows)
}

func (s *PostgresStore) AppendEvent(ctx context.Context, ev model.ApprovalEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO approval_events (id, request_id, kind, actor_id, note, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.ID, ev.RequestID, string(ev.Kind), ev.ActorID, ev.Note, ev.CreatedAt,
	)
	return eris.Wrap(err, "postgres: append event")
}

func (s *PostgresStore) ListEvents(ctx context.Context, requestID string) ([]model.ApprovalEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, request_id, kind, actor_id, note, created_at FROM approval_events
		 WHERE request_id = $1 ORDER BY created_at, id`,
		requestID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list events")
	}
	defer rows.Close()

	var events []model.ApprovalEvent
	for rows.Next() {
		var ev model.ApprovalEvent
		var note *string
		if err := rows.Scan(&ev.ID, &ev.RequestID, &ev.Kind, &ev.ActorID, &note, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan event")
		}
		ev.Note = deref(note)
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "postgres: list events iterate")
}

// helpers

func scanPgRequest(row pgx.Row) (*model.UpgradeRequest, error) {
	var req model.UpgradeRequest
	var approverID, description, reqContext, approvalNote, denialReason *string

	err := row.Scan(&req.ID, &req.RequesterID, &approverID, &req.AccountID, &req.Type, &req.Title,
		&description, &reqContext, &req.EstimatedCredits, &req.Status, &req.CreatedAt,
		&req.ExpiresAt, &approvalNote, &denialReason, &req.Escalated)
	if err != nil {
		return nil, err
	}

	req.ApproverID = deref(approverID)
	req.Description = deref(description)
	req.Context = deref(reqContext)
	req.ApprovalNote = deref(approvalNote)
	req.DenialReason = deref(denialReason)
	return &req, nil
}

func collectPgRequests(rows pgx.Rows) ([]model.UpgradeRequest, error) {
	var requests []model.UpgradeRequest
	for rows.Next() {
		req, err := scanPgRequest(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan request")
		}
		requests = append(requests, *req)
	}
	return requests, eris.Wrap(rows.Err(), "postgres: iterate requests")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
