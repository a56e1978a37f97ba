package credits

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"abode/internal/pkg/errors"
)

// MemoryLedger keeps balances and transactions in process memory. It backs
// tests and single-node runs; the Postgres ledger in internal/repo is the
// durable implementation. One mutex guards everything, so the
// check-then-decrement of Reserve is a single critical section.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]int
	refunded map[string]bool
	txs      []Transaction
}

// NewMemoryLedger returns an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[string]int),
		refunded: make(map[string]bool),
	}
}

// SetBalance seeds an org's balance directly, bypassing the ledger. Intended
// for wiring and tests; it does not append a transaction.
func (l *MemoryLedger) SetBalance(orgID string, credits int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[orgID] = credits
}

func (l *MemoryLedger) Reserve(_ context.Context, orgID string, amount int, jobID, description string) error {
	if amount <= 0 {
		return errors.Validationf("reservation amount must be positive, got %d", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.balances[orgID]
	if !ok {
		return errors.NotFound("organization", orgID)
	}
	if balance < amount {
		return &InsufficientCreditsError{Required: amount, Available: balance}
	}

	l.balances[orgID] = balance - amount
	l.append(orgID, -amount, jobID, description, KindReserve)
	return nil
}

func (l *MemoryLedger) Refund(_ context.Context, orgID string, amount int, jobID, description string) error {
	if amount <= 0 {
		return errors.Validationf("refund amount must be positive, got %d", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.balances[orgID]
	if !ok {
		return errors.NotFound("organization", orgID)
	}
	if l.refunded[jobID] {
		return ErrAlreadyRefunded
	}

	l.refunded[jobID] = true
	l.balances[orgID] = balance + amount
	l.append(orgID, amount, jobID, description, KindRefund)
	return nil
}

func (l *MemoryLedger) Balance(_ context.Context, orgID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.balances[orgID]
	if !ok {
		return 0, errors.NotFound("organization", orgID)
	}
	return balance, nil
}

func (l *MemoryLedger) Transactions(_ context.Context, orgID string) ([]Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Transaction, 0)
	for i := len(l.txs) - 1; i >= 0; i-- {
		if l.txs[i].OrgID == orgID {
			out = append(out, l.txs[i])
		}
	}
	return out, nil
}

// append records a transaction; caller holds the mutex.
func (l *MemoryLedger) append(orgID string, amount int, jobID, description string, kind Kind) {
	l.txs = append(l.txs, Transaction{
		ID:          "ct_" + uuid.NewString(),
		OrgID:       orgID,
		Amount:      amount,
		Description: description,
		RenderJobID: jobID,
		Kind:        kind,
		CreatedAt:   time.Now().UTC(),
	})
}
