// Package ledger implements the append-only credit ledger and the
// approval-gated request lifecycle. Balances are always derived from the
// ledger plus active holds, never stored, and writes for one account are
// serialized so the derived available balance can never go negative.
package ledger

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/beroe-labs/abi/internal/model"
)

// Sentinel errors mapped to HTTP statuses by the server layer.
var (
	ErrNotFound            = eris.New("ledger: not found")
	ErrConflict            = eris.New("ledger: conflict")
	ErrInsufficientCredits = eris.New("ledger: insufficient credits")
	ErrInvalidTransition   = eris.New("ledger: invalid transition")
	ErrForbidden           = eris.New("ledger: forbidden")
)

// EntryPage is one page of ledger history.
type EntryPage struct {
	Entries []model.LedgerEntry `json:"transactions"`
	Total   int                 `json:"total"`
	HasMore bool                `json:"hasMore"`
}

// Store is the persistence boundary for accounts, ledger rows, holds,
// requests, and approval events. Ledger rows and events are append-only.
type Store interface {
	// Accounts
	CreateAccount(ctx context.Context, account model.CreditAccount) error
	GetAccount(ctx context.Context, accountID string) (*model.CreditAccount, error)

	// Ledger
	AppendEntry(ctx context.Context, entry model.LedgerEntry) error
	ListEntries(ctx context.Context, accountID string, limit, offset int) ([]model.LedgerEntry, int, error)

	// Reservations
	CreateReservation(ctx context.Context, res model.Reservation) error
	GetReservation(ctx context.Context, accountID, referenceID string) (*model.Reservation, error)
	UpdateReservation(ctx context.Context, res model.Reservation) error

	// Requests and events
	CreateRequest(ctx context.Context, req model.UpgradeRequest) error
	GetRequest(ctx context.Context, id string) (*model.UpgradeRequest, error)
	UpdateRequest(ctx context.Context, req model.UpgradeRequest) error
	ListRequests(ctx context.Context, accountID string) ([]model.UpgradeRequest, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]model.UpgradeRequest, error)
	AppendEvent(ctx context.Context, ev model.ApprovalEvent) error
	ListEvents(ctx context.Context, requestID string) ([]model.ApprovalEvent, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
