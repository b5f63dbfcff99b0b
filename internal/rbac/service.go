package rbac

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recruitdesk/recruitdesk/internal/authz"
	"github.com/recruitdesk/recruitdesk/internal/platform/db"
)

// Service mirrors the in-code role table into the roles, permissions and
// roles_permissions tables.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// SyncReport summarises a Sync run.
type SyncReport struct {
	Roles       int
	Permissions int
	Grants      int
}

// Sync upserts every role and catalog permission and replaces the stored
// role-permission links with those of policy.
func (s *Service) Sync(ctx context.Context, policy *authz.Policy) (SyncReport, error) {
	var report SyncReport
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, perm := range authz.AllPermissions() {
			if _, err := tx.Exec(ctx, `INSERT INTO permissions (permission) VALUES ($1) ON CONFLICT (permission) DO NOTHING`, perm.Name()); err != nil {
				return fmt.Errorf("upsert permission %s: %w", perm, err)
			}
			report.Permissions++
		}
		for _, role := range authz.AllRoles() {
			var roleID int64
			err := tx.QueryRow(ctx, `
				INSERT INTO roles (role) VALUES ($1)
				ON CONFLICT (role) DO UPDATE SET role = EXCLUDED.role
				RETURNING id`, string(role)).Scan(&roleID)
			if err != nil {
				return fmt.Errorf("upsert role %s: %w", role, err)
			}
			report.Roles++

			if _, err := tx.Exec(ctx, `DELETE FROM roles_permissions WHERE role_id = $1`, roleID); err != nil {
				return fmt.Errorf("clear grants for %s: %w", role, err)
			}
			for _, perm := range policy.PermissionsFor(role) {
				_, err := tx.Exec(ctx, `
					INSERT INTO roles_permissions (role_id, permission_id)
					SELECT $1, id FROM permissions WHERE permission = $2`, roleID, perm.Name())
				if err != nil {
					return fmt.Errorf("grant %s to %s: %w", perm, role, err)
				}
				report.Grants++
			}
		}
		return nil
	})
	if err != nil {
		return SyncReport{}, fmt.Errorf("rbac: sync: %w", err)
	}
	return report, nil
}
