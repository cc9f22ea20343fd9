package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/beroe-labs/abi/internal/model"
)

// Config tunes the approval workflow.
type Config struct {
	// AutoApproveThreshold is the largest estimate approved without review.
	AutoApproveThreshold int64 `yaml:"auto_approve_threshold" mapstructure:"auto_approve_threshold"`
	// RequestTTL bounds how long a pending request waits for a decision.
	RequestTTL time.Duration `yaml:"request_ttl" mapstructure:"request_ttl"`
	// EscalationWindow marks pending requests nearing expiry.
	EscalationWindow time.Duration `yaml:"escalation_window" mapstructure:"escalation_window"`
}

// DefaultConfig returns the workflow defaults.
func DefaultConfig() Config {
	return Config{
		AutoApproveThreshold: 500,
		RequestTTL:           7 * 24 * time.Hour,
		EscalationWindow:     24 * time.Hour,
	}
}

// Service serializes ledger writes per account and enforces the
// non-negative available invariant on every write path.
type Service struct {
	store Store
	cfg   Config
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a ledger service over the given store.
func NewService(store Store, cfg Config) *Service {
	if cfg.RequestTTL <= 0 {
		cfg.RequestTTL = DefaultConfig().RequestTTL
	}
	if cfg.EscalationWindow <= 0 {
		cfg.EscalationWindow = DefaultConfig().EscalationWindow
	}
	return &Service{
		store: store,
		cfg:   cfg,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

// WithClock overrides the time source, used by expiry tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// lock returns the serialization point for one account.
func (s *Service) lock(accountID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[accountID] = l
	}
	return l
}

// Balance returns the derived account view.
func (s *Service) Balance(ctx context.Context, accountID string) (*model.CreditAccount, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Available() < 0 {
		zap.L().Error("ledger: negative available balance",
			zap.String("account_id", accountID),
			zap.Int64("available", account.Available()))
		return nil, eris.New("ledger: negative available balance")
	}
	now := s.now()
	if account.SubscriptionEnd.After(now) {
		account.DaysRemaining = int(account.SubscriptionEnd.Sub(now).Hours() / 24)
	}
	return account, nil
}

// Transactions pages through the account's ledger history, newest first.
func (s *Service) Transactions(ctx context.Context, accountID string, limit, offset int) (*EntryPage, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	entries, total, err := s.store.ListEntries(ctx, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &EntryPage{
		Entries: entries,
		Total:   total,
		HasMore: offset+len(entries) < total,
	}, nil
}

// Allocate appends an allocation credit.
func (s *Service) Allocate(ctx context.Context, accountID string, amount int64, description, actorID string) error {
	if amount <= 0 {
		return eris.Wrap(ErrConflict, "allocation amount must be positive")
	}
	l := s.lock(accountID)
	l.Lock()
	defer l.Unlock()

	return s.append(ctx, accountID, amount, model.EntryCredit, model.TxAllocation, description, "", "", actorID)
}

// Reserve places a hold against available credits. A reference id is
// reservable at most once.
func (s *Service) Reserve(ctx context.Context, accountID string, amount int64, referenceID, actorID string) error {
	if amount <= 0 {
		return eris.Wrap(ErrConflict, "reservation amount must be positive")
	}
	l := s.lock(accountID)
	l.Lock()
	defer l.Unlock()

	return s.reserveLocked(ctx, accountID, amount, referenceID)
}

func (s *Service) reserveLocked(ctx context.Context, accountID string, amount int64, referenceID string) error {
	if existing, err := s.store.GetReservation(ctx, accountID, referenceID); err != nil {
		return err
	} else if existing != nil {
		return eris.Wrapf(ErrConflict, "reference %s already reserved", referenceID)
	}

	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if amount > account.Available() {
		return eris.Wrapf(ErrInsufficientCredits, "need %d, available %d", amount, account.Available())
	}

	return s.store.CreateReservation(ctx, model.Reservation{
		AccountID:   accountID,
		ReferenceID: referenceID,
		Amount:      amount,
		CreatedAt:   s.now().UTC(),
	})
}

// ConvertHold settles a reservation into a spend debit of the actual cost,
// refunding any unused remainder. Repeating the call with the same amount
// is a no-op.
func (s *Service) ConvertHold(ctx context.Context, accountID, referenceID string, actualAmount int64, actorID string) error {
	if actualAmount < 0 {
		return eris.Wrap(ErrConflict, "conversion amount must not be negative")
	}
	l := s.lock(accountID)
	l.Lock()
	defer l.Unlock()

	res, err := s.store.GetReservation(ctx, accountID, referenceID)
	if err != nil {
		return err
	}
	if res == nil {
		return eris.Wrapf(ErrNotFound, "reservation %s", referenceID)
	}
	if res.Released {
		return eris.Wrapf(ErrConflict, "reservation %s already released", referenceID)
	}
	if res.Converted {
		if res.ConvertedAmount == actualAmount {
			return nil
		}
		return eris.Wrapf(ErrConflict, "reservation %s already converted for %d", referenceID, res.ConvertedAmount)
	}
	if actualAmount > res.Amount {
		return eris.Wrapf(ErrConflict, "conversion %d exceeds hold %d", actualAmount, res.Amount)
	}

	// Retire the hold first so the debit replaces it instead of stacking on
	// it, then debit the full hold and credit back the unused delta. The net
	// spend equals the actual cost and the ledger stays conserved.
	res.Converted = true
	res.ConvertedAmount = actualAmount
	if err := s.store.UpdateReservation(ctx, *res); err != nil {
		return err
	}
	err = s.append(ctx, accountID, res.Amount, model.EntryDebit, model.TxHoldConversion,
		"hold conversion", "request", referenceID, actorID)
	if err != nil {
		return err
	}
	if delta := res.Amount - actualAmount; delta > 0 {
		err = s.append(ctx, accountID, delta, model.EntryCredit, model.TxRefund,
			"unused hold refund", "request", referenceID, actorID)
		if err != nil {
			return err
		}
	}
	return nil
}

// Release frees a reservation without spending. Releasing a released
// reservation is a no-op.
func (s *Service) Release(ctx context.Context, accountID, referenceID string) error {
	l := s.lock(accountID)
	l.Lock()
	defer l.Unlock()

	res, err := s.store.GetReservation(ctx, accountID, referenceID)
	if err != nil {
		return err
	}
	if res == nil {
		return eris.Wrapf(ErrNotFound, "reservation %s", referenceID)
	}
	if res.Released {
		return nil
	}
	if res.Converted {
		return eris.Wrapf(ErrConflict, "reservation %s already converted", referenceID)
	}
	res.Released = true
	return s.store.UpdateReservation(ctx, *res)
}

// Adjust appends a manual correction on either side of the ledger.
func (s *Service) Adjust(ctx context.Context, accountID string, amount int64, side model.EntryType, description, actorID string) error {
	if amount <= 0 {
		return eris.Wrap(ErrConflict, "adjustment amount must be positive")
	}
	l := s.lock(accountID)
	l.Lock()
	defer l.Unlock()

	if side == model.EntryDebit {
		account, err := s.store.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if amount > account.Available() {
			return eris.Wrapf(ErrInsufficientCredits, "need %d, available %d", amount, account.Available())
		}
	}
	return s.append(ctx, accountID, amount, side, model.TxAdjustment, description, "", "", actorID)
}

// ExpireCredits debits unspent credits at subscription end.
func (s *Service) ExpireCredits(ctx context.Context, accountID string, actorID string) (int64, error) {
	l := s.lock(accountID)
	l.Lock()
	defer l.Unlock()

	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	available := account.Available()
	if available <= 0 {
		return 0, nil
	}
	err = s.append(ctx, accountID, available, model.EntryDebit, model.TxExpiry,
		"subscription period expiry", "", "", actorID)
	if err != nil {
		return 0, err
	}
	return available, nil
}

// Rollover carries a tier-capped share of unspent credits into the next
// period: expiry debit of the full remainder, rollover credit of the kept
// share.
func (s *Service) Rollover(ctx context.Context, accountID string, cap int64, actorID string) (int64, error) {
	l := s.lock(accountID)
	l.Lock()
	defer l.Unlock()

	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	available := account.Available()
	if available <= 0 {
		return 0, nil
	}
	kept := available
	if cap > 0 && kept > cap {
		kept = cap
	}
	err = s.append(ctx, accountID, available, model.EntryDebit, model.TxExpiry,
		"period close", "", "", actorID)
	if err != nil {
		return 0, err
	}
	err = s.append(ctx, accountID, kept, model.EntryCredit, model.TxRollover,
		"rollover", "", "", actorID)
	if err != nil {
		return 0, err
	}
	return kept, nil
}

// append writes one ledger row and verifies the non-negative invariant
// afterwards. A violation is logged and surfaced; the caller's guards
// should have made it unreachable.
func (s *Service) append(ctx context.Context, accountID string, amount int64, side model.EntryType, tx model.TransactionType, description, refType, refID, actorID string) error {
	entry := model.LedgerEntry{
		ID:              uuid.NewString(),
		AccountID:       accountID,
		Amount:          amount,
		EntryType:       side,
		TransactionType: tx,
		Description:     description,
		ReferenceType:   refType,
		ReferenceID:     refID,
		CreatedAt:       s.now().UTC(),
		CreatedBy:       actorID,
	}
	if err := s.store.AppendEntry(ctx, entry); err != nil {
		return err
	}

	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account.Available() < 0 {
		zap.L().Error("ledger: write produced negative available balance",
			zap.String("account_id", accountID),
			zap.String("entry_id", entry.ID),
			zap.Int64("available", account.Available()))
		return eris.Errorf("ledger: negative available balance on account %s", accountID)
	}
	return nil
}
