package model

import "time"

// EntryType is the accounting side of a ledger entry.
type EntryType string

// Entry type constants.
const (
	EntryCredit EntryType = "credit"
	EntryDebit  EntryType = "debit"
)

// TransactionType is the business reason for a ledger entry.
type TransactionType string

// Transaction type constants.
const (
	TxAllocation     TransactionType = "allocation"
	TxSpend          TransactionType = "spend"
	TxHoldConversion TransactionType = "hold_conversion"
	TxRefund         TransactionType = "refund"
	TxAdjustment     TransactionType = "adjustment"
	TxExpiry         TransactionType = "expiry"
	TxRollover       TransactionType = "rollover"
)

// LedgerEntry is one immutable row in the append-only credit ledger.
// Amount is always positive; EntryType carries the sign.
type LedgerEntry struct {
	ID              string          `json:"id"`
	AccountID       string          `json:"accountId"`
	Amount          int64           `json:"amount"`
	EntryType       EntryType       `json:"entryType"`
	TransactionType TransactionType `json:"transactionType"`
	Description     string          `json:"description,omitempty"`
	ReferenceType   string          `json:"referenceType,omitempty"`
	ReferenceID     string          `json:"referenceId,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	CreatedBy       string          `json:"createdBy"`
}

// CreditAccount is the derived view of one account's balance. Available
// credits are never stored; they are computed from the ledger plus holds.
type CreditAccount struct {
	AccountID        string    `json:"accountId"`
	CompanyID        string    `json:"companyId"`
	TotalCredits     int64     `json:"totalCredits"`
	BonusCredits     int64     `json:"bonusCredits"`
	LedgerCredits    int64     `json:"ledgerCredits"`
	LedgerDebits     int64     `json:"ledgerDebits"`
	ReservedCredits  int64     `json:"reservedCredits"`
	SubscriptionTier string    `json:"subscriptionTier"`
	SubscriptionEnd  time.Time `json:"subscriptionEnd"`
	DaysRemaining    int       `json:"daysRemaining"`
}

// Available computes spendable credits. Must never be negative after a
// ledger write.
func (a CreditAccount) Available() int64 {
	return a.TotalCredits + a.BonusCredits - a.LedgerDebits - a.ReservedCredits
}

// Reservation is an active hold against an account. ConvertedAmount records
// the debit written at conversion so a repeated conversion with the same
// amount is a no-op.
type Reservation struct {
	AccountID       string    `json:"accountId"`
	ReferenceID     string    `json:"referenceId"`
	Amount          int64     `json:"amount"`
	CreatedAt       time.Time `json:"createdAt"`
	Converted       bool      `json:"converted"`
	ConvertedAmount int64     `json:"convertedAmount,omitempty"`
	Released        bool      `json:"released"`
}

// Active reports whether the hold still counts against available credits.
func (r Reservation) Active() bool {
	return !r.Converted && !r.Released
}
