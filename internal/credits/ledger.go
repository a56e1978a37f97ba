// Package credits owns organization credit balances. Reserve and refund are
// the only operations that mutate a balance, each is atomic with respect to
// concurrent callers, and each appends an immutable transaction record.
package credits

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind tags a ledger transaction.
type Kind string

const (
	KindReserve Kind = "reserve"
	KindRefund  Kind = "refund"
)

// Transaction is an immutable ledger entry. Amount is negative for a
// reservation and positive for a refund.
type Transaction struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"orgId"`
	Amount      int       `json:"amount"`
	Description string    `json:"description"`
	RenderJobID string    `json:"renderJobId"`
	Kind        Kind      `json:"kind"`
	CreatedAt   time.Time `json:"createdAt"`
}

// InsufficientCreditsError is returned by Reserve when the balance cannot
// cover the requested amount. The balance is left untouched.
type InsufficientCreditsError struct {
	Required  int
	Available int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}

// ErrAlreadyRefunded is returned by Refund when a refund for the job id has
// already been recorded. The balance is left untouched, so retried failure
// or cancellation signals cannot double-credit an org.
var ErrAlreadyRefunded = errors.New("credits: job already refunded")

// Ledger is the single serialization point for an org's balance. Reserve
// performs check-and-decrement as one indivisible step: no two concurrent
// reservations may both succeed against a balance that covers only one, and
// the balance never goes negative.
type Ledger interface {
	// Reserve atomically verifies balance >= amount and decrements it,
	// appending a reservation transaction tied to jobID. Returns
	// *InsufficientCreditsError without mutating anything when the balance
	// is too low.
	Reserve(ctx context.Context, orgID string, amount int, jobID, description string) error
	// Refund atomically adds amount back and appends a refund transaction.
	// At most one refund per job id; later calls return ErrAlreadyRefunded.
	Refund(ctx context.Context, orgID string, amount int, jobID, description string) error
	// Balance returns the org's current credit balance.
	Balance(ctx context.Context, orgID string) (int, error)
	// Transactions returns the org's ledger entries, newest first.
	Transactions(ctx context.Context, orgID string) ([]Transaction, error)
}
