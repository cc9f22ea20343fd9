package ledger

import (
	"context"
	"database/sql"
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
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS accounts (
	id                TEXT PRIMARY KEY,
	company_id        TEXT NOT NULL,
	bonus_credits     INTEGER NOT NULL DEFAULT 0,
	subscription_tier TEXT NOT NULL DEFAULT 'standard',
	subscription_end  DATETIME
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	id               TEXT PRIMARY KEY,
	account_id       TEXT NOT NULL REFERENCES accounts(id),
	amount           INTEGER NOT NULL CHECK (amount > 0),
	entry_type       TEXT NOT NULL CHECK (entry_type IN ('credit', 'debit')),
	transaction_type TEXT NOT NULL,
	description      TEXT,
	reference_type   TEXT,
	reference_id     TEXT,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	created_by       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS reservations (
	account_id       TEXT NOT NULL REFERENCES accounts(id),
	reference_id     TEXT NOT NULL,
	amount           INTEGER NOT NULL CHECK (amount > 0),
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	converted        INTEGER NOT NULL DEFAULT 0,
	converted_amount INTEGER NOT NULL DEFAULT 0,
	released         INTEGER NOT NULL DEFAULT 0,
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
	estimated_credits INTEGER NOT NULL,
	status            TEXT NOT NULL DEFAULT 'draft',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at        DATETIME,
	approval_note     TEXT,
	denial_reason     TEXT,
	escalated         INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS approval_events (
	id         TEXT PRIMARY KEY,
	request_id TEXT NOT NULL REFERENCES requests(id),
	kind       TEXT NOT NULL,
	actor_id   TEXT NOT NULL,
	note       TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_ledger_entries_account ON ledger_entries(account_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_requests_account ON requests(account_id);
CREATE INDEX IF NOT EXISTS idx_requests_status_expires ON requests(status, expires_at);
CREATE INDEX IF NOT EXISTS idx_approval_events_request ON approval_events(request_id, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateAccount(ctx context.Context, account model.CreditAccount) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, company_id, bonus_credits, subscription_tier, subscription_end)
		 VALUES (?, ?, ?, ?, ?)`,
		account.AccountID, account.CompanyID, account.BonusCredits,
		account.SubscriptionTier, account.SubscriptionEnd.UTC(),
	)
	return eris.Wrap(err, "sqlite: insert account")
}

// GetAccount returns the derived balance view: total credits, debits, and
// reserved are aggregated from the ledger and active holds on every read.
func (s *SQLiteStore) GetAccount(ctx context.Context, accountID string) (*model.CreditAccount, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT a.id, a.company_id, a.bonus_credits, a.subscription_tier, a.subscription_end,
			COALESCE((SELECT SUM(amount) FROM ledger_entries WHERE account_id = a.id AND entry_type = 'credit'), 0),
			COALESCE((SELECT SUM(amount) FROM ledger_entries WHERE account_id = a.id AND entry_type = 'debit'), 0),
			COALESCE((SELECT SUM(amount) FROM reservations WHERE account_id = a.id AND converted = 0 AND released = 0), 0)
		 FROM accounts a WHERE a.id = ?`,
		accountID,
	)

	var a model.CreditAccount
	var subEnd sql.NullTime
	err := row.Scan(&a.AccountID, &a.CompanyID, &a.BonusCredits,
		&a.SubscriptionTier, &subEnd, &a.LedgerCredits, &a.LedgerDebits, &a.ReservedCredits)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "account %s", accountID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get account")
	}
	a.TotalCredits = a.LedgerCredits
	if subEnd.Valid {
		a.SubscriptionEnd = subEnd.Time
	}
	return &a, nil
}

func (s *SQLiteStore) AppendEntry(ctx context.Context, entry model.LedgerEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ledger_entries (id, account_id, amount, entry_type, transaction_type, description, reference_type, reference_id, created_at, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.AccountID, entry.Amount, string(entry.EntryType), string(entry.TransactionType),
		entry.Description, entry.ReferenceType, entry.ReferenceID, entry.CreatedAt, entry.CreatedBy,
	)
	return eris.Wrap(err, "sqlite: append entry")
}

func (s *SQLiteStore) ListEntries(ctx context.Context, accountID string, limit, offset int) ([]model.LedgerEntry, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger_entries WHERE account_id = ?`, accountID,
	).Scan(&total)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: count entries")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, amount, entry_type, transaction_type, description, reference_type, reference_id, created_at, created_by
		 FROM ledger_entries WHERE account_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		accountID, limit, offset,
	)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: list entries")
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		var description, refType, refID sql.NullString
		err := rows.Scan(&e.ID, &e.AccountID, &e.Amount, &e.EntryType, &e.TransactionType,
			&description, &refType, &refID, &e.CreatedAt, &e.CreatedBy)
		if err != nil {
			return nil, 0, eris.Wrap(err, "sqlite: scan entry")
		}
		e.Description = description.String
		e.ReferenceType = refType.String
		e.ReferenceID = refID.String
		entries = append(entries, e)
	}
	return entries, total, eris.Wrap(rows.Err(), "sqlite: list entries iterate")
}

func (s *SQLiteStore) CreateReservation(ctx context.Context, res model.Reservation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reservations (account_id, reference_id, amount, created_at, converted, converted_amount, released)
		 VALUES (?, ?, ?, ?, 0, 0, 0)`,
		res.AccountID, res.ReferenceID, res.Amount, res.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert reservation")
}

func (s *SQLiteStore) GetReservation(ctx context.Context, accountID, referenceID string) (*model.Reservation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT account_id, reference_id, amount, created_at, converted, converted_amount, released
		 FROM reservations WHERE account_id = ? AND reference_id = ?`,
		accountID, referenceID,
	)

	var r model.Reservation
	err := row.Scan(&r.AccountID, &r.ReferenceID, &r.Amount, &r.CreatedAt, &r.Converted, &r.ConvertedAmount, &r.Released)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get reservation")
	}
	return &r, nil
}

func (s *SQLiteStore) UpdateReservation(ctx context.Context, res model.Reservation) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE reservations SET converted = ?, converted_amount = ?, released = ?
		 WHERE account_id = ? AND reference_id = ?`,
		res.Converted, res.ConvertedAmount, res.Released, res.AccountID, res.ReferenceID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: update reservation")
	}
	return checkRowsAffected(result, "reservation", res.ReferenceID)
}

func (s *SQLiteStore) CreateRequest(ctx context.Context, req model.UpgradeRequest) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO requests (id, requester_id, approver_id, account_id, type, title, description, context, estimated_credits, status, created_at, expires_at, approval_note, denial_reason, escalated)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.RequesterID, nullString(req.ApproverID), req.AccountID, req.Type, req.Title,
		req.Description, req.Context, req.EstimatedCredits, string(req.Status), req.CreatedAt,
		nullTime(req.ExpiresAt), req.ApprovalNote, req.DenialReason, req.Escalated,
	)
	return eris.Wrap(err, "sqlite: insert request")
}

func (s *SQLiteStore) GetRequest(ctx context.Context, id string) (*model.UpgradeRequest, error) {
	row := s.db.QueryRowContext(ctx, selectRequest+` WHERE id = ?`, id)
	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "request %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get request")
	}
	return req, nil
}

func (s *SQLiteStore) UpdateRequest(ctx context.Context, req model.UpgradeRequest) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE requests SET approver_id = ?, status = ?, expires_at = ?, approval_note = ?, denial_reason = ?, escalated = ?
		 WHERE id = ?`,
		nullString(req.ApproverID), string(req.Status), nullTime(req.ExpiresAt),
		req.ApprovalNote, req.DenialReason, req.Escalated, req.ID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: update request")
	}
	return checkRowsAffected(result, "request", req.ID)
}

func (s *SQLiteStore) ListRequests(ctx context.Context, accountID string) ([]model.UpgradeRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		selectRequest+` WHERE account_id = ? ORDER BY created_at DESC`, accountID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list requests")
	}
	defer rows.Close()
	return collectRequests(rows)
}

func (s *SQLiteStore) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]model.UpgradeRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		selectRequest+` WHERE status = ? AND expires_at IS NOT NULL AND expires_at <= ? ORDER BY expires_at`,
		string(model.RequestPending), cutoff.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pending")
	}
	defer rows.Close()
	return collectRequests(rows)
}

func (s *SQLiteStore) AppendEvent(ctx context.Context, ev model.ApprovalEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO approval_events (id, request_id, kind, actor_id, note, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.RequestID, string(ev.Kind), ev.ActorID, ev.Note, ev.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: append event")
}

func (s *SQLiteStore) ListEvents(ctx context.Context, requestID string) ([]model.ApprovalEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, kind, actor_id, note, created_at FROM approval_events
		 WHERE request_id = ? ORDER BY created_at, id`,
		requestID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list events")
	}
	defer rows.Close()

	var events []model.ApprovalEvent
	for rows.Next() {
		var ev model.ApprovalEvent
		var note sql.NullString
		if err := rows.Scan(&ev.ID, &ev.RequestID, &ev.Kind, &ev.ActorID, &note, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event")
		}
		ev.Note = note.String
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: list events iterate")
}

// helpers

const selectRequest = `SELECT id, requester_id, approver_id, account_id, type, title, description, context, estimated_credits, status, created_at, expires_at, approval_note, denial_reason, escalated FROM requests`

type scannable interface {
	Scan(dest ...any) error
}

func scanRequest(row scannable) (*model.UpgradeRequest, error) {
	var req model.UpgradeRequest
	var approverID, description, reqContext, approvalNote, denialReason sql.NullString
	var expiresAt sql.NullTime

	err := row.Scan(&req.ID, &req.RequesterID, &approverID, &req.AccountID, &req.Type, &req.Title,
		&description, &reqContext, &req.EstimatedCredits, &req.Status, &req.CreatedAt,
		&expiresAt, &approvalNote, &denialReason, &req.Escalated)
	if err != nil {
		return nil, err
	}

	req.ApproverID = approverID.String
	req.Description = description.String
	req.Context = reqContext.String
	req.ApprovalNote = approvalNote.String
	req.DenialReason = denialReason.String
	if expiresAt.Valid {
		t := expiresAt.Time
		req.ExpiresAt = &t
	}
	return &req, nil
}

func collectRequests(rows *sql.Rows) ([]model.UpgradeRequest, error) {
	var requests []model.UpgradeRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan request")
		}
		requests = append(requests, *req)
	}
	return requests, eris.Wrap(rows.Err(), "sqlite: iterate requests")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
