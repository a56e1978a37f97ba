package repo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"abode/internal/pkg/errors"
	"abode/internal/render"
)

// PostgresKeys resolves API keys against the api_keys table.
type PostgresKeys struct {
	pool *pgxpool.Pool
}

func NewPostgresKeys(pool *pgxpool.Pool) *PostgresKeys {
	return &PostgresKeys{pool: pool}
}

func (r *PostgresKeys) Resolve(ctx context.Context, key string) (render.Identity, error) {
	var id render.Identity
	err := r.pool.QueryRow(ctx,
		`SELECT org_id, user_id FROM api_keys WHERE key = $1`, key,
	).Scan(&id.OrgID, &id.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return render.Identity{}, errors.Unauthorized("Unauthorized")
		}
		return render.Identity{}, errors.Wrap(err, "repo.keys.resolve", "query failed")
	}
	return id, nil
}
