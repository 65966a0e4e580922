// Package roster resolves principals' role assignments and the notifiable
// admins/editors of an org.
package roster

import (
	"context"

	"github.com/google/uuid"

	"github.com/hubatlas/backend/internal/models"
	"github.com/hubatlas/backend/pkg/database"
)

// Repository handles role assignment persistence.
type Repository struct {
	q database.Querier
}

// NewRepository creates a roster repository.
func NewRepository(q database.Querier) *Repository {
	return &Repository{q: q}
}

// AssignmentsForUser returns every role assignment the user holds.
func (r *Repository) AssignmentsForUser(ctx context.Context, userID uuid.UUID) ([]models.RoleAssignment, error) {
	const q = `SELECT id, user_id, role_name, org_id, created_at
		FROM role_assignments WHERE user_id = $1 ORDER BY id`
	rows, err := r.q.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.RoleAssignment
	for rows.Next() {
		var a models.RoleAssignment
		if err := rows.Scan(&a.ID, &a.UserID, &a.RoleName, &a.OrgID, &a.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// AdminsAndEditors returns the active admins and editors assigned directly to
// the org (exact org id, no ancestor widening; escalation handles that).
func (r *Repository) AdminsAndEditors(ctx context.Context, orgID int64) ([]models.Recipient, error) {
	const q = `SELECT DISTINCT u.id, u.email, u.full_name
		FROM role_assignments ra
		JOIN users u ON u.id = ra.user_id
		WHERE ra.org_id = $1 AND ra.role_name IN ($2, $3) AND u.is_active
		ORDER BY u.email`
	rows, err := r.q.Query(ctx, q, orgID, models.RoleAdmin, models.RoleEditor)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Recipient
	for rows.Next() {
		var rec models.Recipient
		if err := rows.Scan(&rec.UserID, &rec.Email, &rec.FullName); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

// Assign grants a role at an org, idempotently.
func (r *Repository) Assign(ctx context.Context, userID uuid.UUID, role models.RoleName, orgID int64) error {
	const q = `INSERT INTO role_assignments (user_id, role_name, org_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, role_name, org_id) DO NOTHING`
	_, err := r.q.Exec(ctx, q, userID, role, orgID)
	return err
}
