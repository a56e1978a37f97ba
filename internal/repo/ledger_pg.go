package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"abode/internal/credits"
	"abode/internal/httpkit"
	"abode/internal/pkg/errors"
)

// PostgresLedger implements credits.Ledger on the organizations and
// credit_transactions tables. Each reserve or refund is one transaction
// holding a row lock on the organization, so the balance check and the
// decrement are a single indivisible step for every concurrent caller.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

func (l *PostgresLedger) Reserve(ctx context.Context, orgID string, amount int, jobID, description string) error {
	if amount <= 0 {
		return errors.Validationf("reservation amount must be positive, got %d", amount)
	}

	return l.inTx(ctx, "repo.ledger.reserve", func(tx pgx.Tx) error {
		balance, err := lockBalance(ctx, tx, orgID)
		if err != nil {
			return err
		}
		if balance < amount {
			return &credits.InsufficientCreditsError{Required: amount, Available: balance}
		}

		if _, err := tx.Exec(ctx,
			`UPDATE organizations SET credits = credits - $2 WHERE id = $1`,
			orgID, amount,
		); err != nil {
			return err
		}
		return insertTransaction(ctx, tx, orgID, -amount, jobID, description, credits.KindReserve)
	})
}

func (l *PostgresLedger) Refund(ctx context.Context, orgID string, amount int, jobID, description string) error {
	if amount <= 0 {
		return errors.Validationf("refund amount must be positive, got %d", amount)
	}

	return l.inTx(ctx, "repo.ledger.refund", func(tx pgx.Tx) error {
		if _, err := lockBalance(ctx, tx, orgID); err != nil {
			return err
		}

		// The partial unique index on (render_job_id) WHERE kind='refund'
		// turns a second refund for the same job into a constraint hit.
		err := insertTransaction(ctx, tx, orgID, amount, jobID, description, credits.KindRefund)
		if err != nil {
			if httpkit.IsUniqueViolation(err) {
				return credits.ErrAlreadyRefunded
			}
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE organizations SET credits = credits + $2 WHERE id = $1`,
			orgID, amount,
		)
		return err
	})
}

func (l *PostgresLedger) Balance(ctx context.Context, orgID string) (int, error) {
	var balance int
	err := l.pool.QueryRow(ctx,
		`SELECT credits FROM organizations WHERE id = $1`, orgID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errors.NotFound("organization", orgID)
		}
		return 0, errors.Wrap(err, "repo.ledger.balance", "query failed")
	}
	return balance, nil
}

func (l *PostgresLedger) Transactions(ctx context.Context, orgID string) ([]credits.Transaction, error) {
	rows, err := l.pool.Query(ctx, `
SELECT id, org_id, amount, description, render_job_id, kind, created_at
FROM credit_transactions
WHERE org_id = $1
ORDER BY created_at DESC`, orgID)
	if err != nil {
		// A fresh database without the history table has no history.
		if httpkit.IsUndefinedTable(err) {
			return []credits.Transaction{}, nil
		}
		return nil, errors.Wrap(err, "repo.ledger.transactions", "query failed")
	}
	defer rows.Close()

	out := make([]credits.Transaction, 0)
	for rows.Next() {
		var t credits.Transaction
		if err := rows.Scan(&t.ID, &t.OrgID, &t.Amount, &t.Description, &t.RenderJobID, &t.Kind, &t.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "repo.ledger.transactions", "row scan failed")
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "repo.ledger.transactions", "rows failed")
	}
	return out, nil
}

// inTx runs fn inside a transaction, rolling back on any error. Domain
// errors (insufficient credits, already refunded, not found) pass through
// untouched so callers can react to them.
func (l *PostgresLedger) inTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, op, "begin failed")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		if isDomainErr(err) {
			return err
		}
		return errors.Wrap(err, op, "ledger transaction failed")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, op, "commit failed")
	}
	return nil
}

func isDomainErr(err error) bool {
	var ice *credits.InsufficientCreditsError
	if errors.As(err, &ice) {
		return true
	}
	if errors.Is(err, credits.ErrAlreadyRefunded) {
		return true
	}
	var coded *errors.Error
	return errors.As(err, &coded)
}

func lockBalance(ctx context.Context, tx pgx.Tx, orgID string) (int, error) {
	var balance int
	err := tx.QueryRow(ctx,
		`SELECT credits FROM organizations WHERE id = $1 FOR UPDATE`, orgID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errors.NotFound("organization", orgID)
		}
		return 0, err
	}
	return balance, nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, orgID string, amount int, jobID, description string, kind credits.Kind) error {
	_, err := tx.Exec(ctx, `
INSERT INTO credit_transactions (id, org_id, amount, description, render_job_id, kind, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		"ct_"+uuid.NewString(), orgID, amount, description, jobID, kind, time.Now().UTC(),
	)
	return err
}
