package employment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recruitdesk/recruitdesk/internal/authz"
)

const jobColumns = `id, title, COALESCE(description, ''), location, skills, salary, status, placement,
	user_id, recruiter_id,
	(SELECT COUNT(*) FROM applications a WHERE a.employment_id = employments.id AND a.deleted_at IS NULL),
	created_at, updated_at`

const liveRows = "deleted_at IS NULL"

// Repository provides PostgreSQL backed persistence for jobs. Deleted jobs
// are kept with deleted_at set and are invisible to every read.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns the window of jobs selected by q and the total match count.
func (r *Repository) List(ctx context.Context, q authz.Query) ([]Job, int, error) {
	if q.Empty() {
		return []Job{}, 0, nil
	}
	where, args := q.WhereSQL(1)
	where = onlyLive(where)

	var total int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM employments %s", where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("employment: count: %w", err)
	}

	page, pageArgs := q.PageSQL(len(args) + 1)
	query := strings.Join([]string{"SELECT", jobColumns, "FROM employments", where, q.OrderSQL(), page}, " ")
	rows, err := r.pool.Query(ctx, query, append(args, pageArgs...)...)
	if err != nil {
		return nil, 0, fmt.Errorf("employment: list: %w", err)
	}
	defer rows.Close()

	out := []Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Get loads a job by id.
func (r *Repository) Get(ctx context.Context, id int64) (Job, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM employments WHERE id = $1 AND %s", jobColumns, liveRows), id)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	return j, err
}

// Create inserts the job.
func (r *Repository) Create(ctx context.Context, j Job) (Job, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO employments (title, description, location, skills, salary, status, placement, user_id, recruiter_id)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		j.Title, j.Description, j.Location, j.Skills, j.Salary, string(j.Status), string(j.Placement), j.CreatedBy, j.RecruiterID,
	).Scan(&id)
	if err != nil {
		return Job{}, fmt.Errorf("employment: create: %w", err)
	}
	return r.Get(ctx, id)
}

// Update persists every editable field of j.
func (r *Repository) Update(ctx context.Context, j Job) (Job, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE employments
		SET title = $2, description = NULLIF($3, ''), location = $4, skills = $5, salary = $6,
		    status = $7, placement = $8, recruiter_id = $9, updated_at = NOW()
		WHERE id = $1 AND `+liveRows,
		j.ID, j.Title, j.Description, j.Location, j.Skills, j.Salary, string(j.Status), string(j.Placement), j.RecruiterID,
	)
	if err != nil {
		return Job{}, fmt.Errorf("employment: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Job{}, ErrNotFound
	}
	return r.Get(ctx, j.ID)
}

// UpdateStatus sets the lifecycle state of the job.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status) (Job, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE employments SET status = $2, updated_at = NOW() WHERE id = $1 AND `+liveRows, id, string(status))
	if err != nil {
		return Job{}, fmt.Errorf("employment: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Job{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

// Delete marks the job as deleted.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE employments SET deleted_at = NOW() WHERE id = $1 AND `+liveRows, id)
	if err != nil {
		return fmt.Errorf("employment: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// OwnerOf returns the id of the account that created the job.
func (r *Repository) OwnerOf(ctx context.Context, _ authz.Resource, id int64) (int64, error) {
	var owner int64
	err := r.pool.QueryRow(ctx, `SELECT user_id FROM employments WHERE id = $1 AND `+liveRows, id).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, authz.ErrResourceNotFound
		}
		return 0, err
	}
	return owner, nil
}

func scanJob(row pgx.Row) (Job, error) {
	var (
		j                 Job
		status, placement string
	)
	err := row.Scan(
		&j.ID, &j.Title, &j.Description, &j.Location, &j.Skills, &j.Salary, &status, &placement,
		&j.CreatedBy, &j.RecruiterID, &j.ApplicationsCount, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return Job{}, err
	}
	j.Status = Status(status)
	j.Placement = Placement(placement)
	return j, nil
}

func onlyLive(where string) string {
	if where == "" {
		return "WHERE " + liveRows
	}
	return where + " AND " + liveRows
}

var _ authz.OwnerStore = (*Repository)(nil)
