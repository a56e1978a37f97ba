package repo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"abode/internal/pkg/errors"
	"abode/internal/render"
)

// PostgresProjects implements render.ProjectStore on the projects table.
type PostgresProjects struct {
	pool *pgxpool.Pool
}

func NewPostgresProjects(pool *pgxpool.Pool) *PostgresProjects {
	return &PostgresProjects{pool: pool}
}

func (r *PostgresProjects) Get(ctx context.Context, id string) (*render.Project, error) {
	var p render.Project
	err := r.pool.QueryRow(ctx,
		`SELECT id, org_id, name FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.OrgID, &p.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NotFound("project", id)
		}
		return nil, errors.Wrap(err, "repo.projects.get", "query failed")
	}
	return &p, nil
}
