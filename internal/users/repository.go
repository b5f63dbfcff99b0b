package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recruitdesk/recruitdesk/internal/authz"
	"github.com/recruitdesk/recruitdesk/internal/platform/db"
)

const userColumns = `id, uuid, name, last_name, email, password, COALESCE(avatar, ''), created_by,
	email_verified_at, created_at, updated_at,
	ARRAY(SELECT r.role FROM users_roles ur JOIN roles r ON r.id = ur.role_id WHERE ur.user_id = users.id ORDER BY r.id)`

// Repository provides PostgreSQL backed persistence for users.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns the window of users selected by q and the total match count.
func (r *Repository) List(ctx context.Context, q authz.Query) ([]User, int, error) {
	if q.Empty() {
		return []User{}, 0, nil
	}
	where, args := q.WhereSQL(1)

	var total int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM users %s", where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("users: count: %w", err)
	}

	suffix, selectArgs := q.SelectSQL()
	rows, err := r.pool.Query(ctx, fmt.Sprintf("SELECT %s FROM users %s", userColumns, suffix), selectArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("users: list: %w", err)
	}
	out, err := collectUsers(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Get loads a user by id.
func (r *Repository) Get(ctx context.Context, id int64) (User, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM users WHERE id = $1", userColumns), id)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// FindByEmail loads a user by address, case-insensitively.
func (r *Repository) FindByEmail(ctx context.Context, email string) (User, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM users WHERE lower(email) = lower($1)", userColumns), email)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// EmailExists reports whether another user already uses email.
func (r *Repository) EmailExists(ctx context.Context, email string, exceptID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = lower($1) AND id <> $2)`, email, exceptID).Scan(&exists)
	return exists, err
}

// RolesOf returns the role names assigned to the user.
func (r *Repository) RolesOf(ctx context.Context, userID int64) ([]authz.Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT r.role FROM users_roles ur JOIN roles r ON r.id = ur.role_id WHERE ur.user_id = $1 ORDER BY r.id`, userID)
	if err != nil {
		return nil, err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return toRoles(names), nil
}

// Create inserts the user and attaches its role in one transaction.
func (r *Repository) Create(ctx context.Context, u User, role authz.Role) (User, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO users (uuid, name, last_name, email, password, avatar, created_by)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
			RETURNING id`,
			u.UUID, u.Name, u.LastName, u.Email, u.PasswordHash, u.Avatar, u.CreatedBy,
		).Scan(&id)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return ErrEmailTaken
			}
			return err
		}
		tag, err := tx.Exec(ctx, `INSERT INTO users_roles (user_id, role_id) SELECT $1, id FROM roles WHERE role = $2`, id, string(role))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", ErrInvalidRole, role)
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return r.Get(ctx, id)
}

// Update persists profile fields, password and verification state.
func (r *Repository) Update(ctx context.Context, u User) (User, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET name = $2, last_name = $3, email = $4, password = $5, email_verified_at = $6, updated_at = NOW()
		WHERE id = $1`,
		u.ID, u.Name, u.LastName, u.Email, u.PasswordHash, u.EmailVerifiedAt,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	if tag.RowsAffected() == 0 {
		return User{}, ErrNotFound
	}
	return r.Get(ctx, u.ID)
}

// Delete removes the user. Role links cascade; jobs and applications keep
// their reference and block the delete.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Recruiters lists accounts holding the recruiter role within q.
func (r *Repository) Recruiters(ctx context.Context, q authz.Query) ([]User, error) {
	if q.Empty() {
		return []User{}, nil
	}
	q = q.OrderBy("name", false)
	where, args := q.WhereSQL(1)
	roleFilter := fmt.Sprintf("id IN (SELECT ur.user_id FROM users_roles ur JOIN roles r ON r.id = ur.role_id WHERE r.role = $%d)", len(args)+1)
	args = append(args, string(authz.RoleRecruiter))
	if where == "" {
		where = "WHERE " + roleFilter
	} else {
		where += " AND " + roleFilter
	}
	query := strings.Join([]string{"SELECT", userColumns, "FROM users", where, q.OrderSQL()}, " ")
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("users: recruiters: %w", err)
	}
	return collectUsers(rows)
}

// OwnerOf returns the id of the account that created the user.
func (r *Repository) OwnerOf(ctx context.Context, _ authz.Resource, id int64) (int64, error) {
	var createdBy *int64
	err := r.pool.QueryRow(ctx, `SELECT created_by FROM users WHERE id = $1`, id).Scan(&createdBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, authz.ErrResourceNotFound
		}
		return 0, err
	}
	if createdBy == nil {
		return 0, nil
	}
	return *createdBy, nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u     User
		roles []string
	)
	err := row.Scan(
		&u.ID, &u.UUID, &u.Name, &u.LastName, &u.Email, &u.PasswordHash, &u.Avatar, &u.CreatedBy,
		&u.EmailVerifiedAt, &u.CreatedAt, &u.UpdatedAt, &roles,
	)
	if err != nil {
		return User{}, err
	}
	u.Roles = toRoles(roles)
	return u, nil
}

func collectUsers(rows pgx.Rows) ([]User, error) {
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func toRoles(names []string) []authz.Role {
	roles := make([]authz.Role, len(names))
	for i, n := range names {
		roles[i] = authz.Role(n)
	}
	return roles
}

var _ authz.OwnerStore = (*Repository)(nil)
