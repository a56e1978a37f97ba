package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"abode/internal/pkg/errors"
	"abode/internal/render"
)

// PostgresJobs implements render.JobStore on the render_jobs table.
type PostgresJobs struct {
	pool *pgxpool.Pool
}

func NewPostgresJobs(pool *pgxpool.Pool) *PostgresJobs {
	return &PostgresJobs{pool: pool}
}

const jobColumns = `id, org_id, project_id, user_id, type, quality, priority, status,
	credits_cost, progress, scene_data, render_settings, metadata,
	scheduled_for, created_at, updated_at, started_at, completed_at`

func (r *PostgresJobs) Create(ctx context.Context, job *render.Job) error {
	scene, settings, metadata, err := marshalPayloads(job)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
INSERT INTO render_jobs (`+jobColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		job.ID, job.OrgID, job.ProjectID, job.UserID,
		job.Type, job.Quality, job.Priority, job.Status,
		job.CreditsCost, job.Progress, scene, settings, metadata,
		job.ScheduledFor, job.CreatedAt, job.UpdatedAt, job.StartedAt, job.CompletedAt,
	)
	if err != nil {
		return errors.Wrap(err, "repo.jobs.create", "insert failed")
	}
	return nil
}

func (r *PostgresJobs) Get(ctx context.Context, id string) (*render.Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM render_jobs WHERE id=$1`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NotFound("render job", id)
		}
		return nil, errors.Wrap(err, "repo.jobs.get", "query failed")
	}
	return job, nil
}

func (r *PostgresJobs) Update(ctx context.Context, job *render.Job) error {
	// Scene data and render settings are immutable after creation; only
	// the metadata payload can change.
	metadata, err := marshalPayload(job.Metadata)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE render_jobs
SET status=$2, progress=$3, metadata=$4, updated_at=$5, started_at=$6, completed_at=$7
WHERE id=$1`,
		job.ID, job.Status, job.Progress, metadata,
		job.UpdatedAt, job.StartedAt, job.CompletedAt,
	)
	if err != nil {
		return errors.Wrap(err, "repo.jobs.update", "update failed")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("render job", job.ID)
	}
	return nil
}

func (r *PostgresJobs) ListByOrg(ctx context.Context, orgID string, f render.JobFilter) ([]*render.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM render_jobs WHERE org_id=$1`
	args := []any{orgID}

	if len(f.Statuses) > 0 {
		args = append(args, statusStrings(f.Statuses))
		query += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}
	if len(f.Priorities) > 0 {
		args = append(args, priorityStrings(f.Priorities))
		query += fmt.Sprintf(" AND priority = ANY($%d)", len(args))
	}
	if len(f.Types) > 0 {
		args = append(args, typeStrings(f.Types))
		query += fmt.Sprintf(" AND type = ANY($%d)", len(args))
	}
	if f.ProjectID != "" {
		args = append(args, f.ProjectID)
		query += fmt.Sprintf(" AND project_id = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	return r.queryJobs(ctx, query, args...)
}

func (r *PostgresJobs) Active(ctx context.Context) ([]*render.Job, error) {
	return r.queryJobs(ctx, `
SELECT `+jobColumns+` FROM render_jobs
WHERE status IN ('queued','processing')`)
}

func (r *PostgresJobs) ScheduledDue(ctx context.Context, now time.Time) ([]*render.Job, error) {
	return r.queryJobs(ctx, `
SELECT `+jobColumns+` FROM render_jobs
WHERE status='scheduled' AND scheduled_for <= $1`, now)
}

func (r *PostgresJobs) queryJobs(ctx context.Context, query string, args ...any) ([]*render.Job, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "repo.jobs.list", "query failed")
	}
	defer rows.Close()

	out := make([]*render.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "repo.jobs.list", "row scan failed")
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "repo.jobs.list", "rows failed")
	}
	return out, nil
}

func scanJob(row pgx.Row) (*render.Job, error) {
	var (
		job                       render.Job
		scene, settings, metadata []byte
	)
	err := row.Scan(
		&job.ID, &job.OrgID, &job.ProjectID, &job.UserID,
		&job.Type, &job.Quality, &job.Priority, &job.Status,
		&job.CreditsCost, &job.Progress, &scene, &settings, &metadata,
		&job.ScheduledFor, &job.CreatedAt, &job.UpdatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalPayload(scene, &job.SceneData); err != nil {
		return nil, err
	}
	if err := unmarshalPayload(settings, &job.RenderSettings); err != nil {
		return nil, err
	}
	if err := unmarshalPayload(metadata, &job.Metadata); err != nil {
		return nil, err
	}
	return &job, nil
}

func marshalPayloads(job *render.Job) (scene, settings, metadata []byte, err error) {
	if scene, err = marshalPayload(job.SceneData); err != nil {
		return nil, nil, nil, err
	}
	if settings, err = marshalPayload(job.RenderSettings); err != nil {
		return nil, nil, nil, err
	}
	if metadata, err = marshalPayload(job.Metadata); err != nil {
		return nil, nil, nil, err
	}
	return scene, settings, metadata, nil
}

func marshalPayload(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "repo.jobs", "payload marshal failed")
	}
	return b, nil
}

func unmarshalPayload(b []byte, dst *map[string]any) error {
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return errors.Wrap(err, "repo.jobs", "payload unmarshal failed")
	}
	return nil
}

func statusStrings(in []render.Status) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

func priorityStrings(in []render.Priority) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

func typeStrings(in []render.JobType) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}
