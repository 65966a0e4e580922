package orgs

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hubatlas/backend/internal/apperr"
	"github.com/hubatlas/backend/internal/models"
	"github.com/hubatlas/backend/pkg/database"
)

const orgColumns = `id, parent_id, org_type, name, default_location_id, is_active, created_at, updated_at`

// Repository handles org-tree persistence.
type Repository struct {
	q database.Querier
}

// NewRepository creates an org repository over a pool or transaction.
func NewRepository(q database.Querier) *Repository {
	return &Repository{q: q}
}

// WithQuerier returns a copy of the repository bound to q (typically a pgx.Tx).
func (r *Repository) WithQuerier(q database.Querier) *Repository {
	return &Repository{q: q}
}

func scanOrg(row pgx.Row) (*models.Org, error) {
	var o models.Org
	err := row.Scan(&o.ID, &o.ParentID, &o.OrgType, &o.Name, &o.DefaultLocationID, &o.IsActive, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetByID returns an org by id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Org, error) {
	const q = `SELECT ` + orgColumns + ` FROM orgs WHERE id = $1`
	o, err := scanOrg(r.q.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("org %d not found", id)
	}
	return o, err
}

// AncestorChain fetches the org and its ancestors up to the nation in a single
// self-joined query and places each hit at its rank. A broken parent link
// leaves the higher ranks nil; that is not an error at this layer.
func (r *Repository) AncestorChain(ctx context.Context, orgID int64) (models.AncestorChain, error) {
	const q = `
		SELECT
			o0.id, o0.parent_id, o0.org_type, o0.name, o0.default_location_id, o0.is_active, o0.created_at, o0.updated_at,
			o1.id, o1.parent_id, o1.org_type, o1.name, o1.default_location_id, o1.is_active, o1.created_at, o1.updated_at,
			o2.id, o2.parent_id, o2.org_type, o2.name, o2.default_location_id, o2.is_active, o2.created_at, o2.updated_at,
			o3.id, o3.parent_id, o3.org_type, o3.name, o3.default_location_id, o3.is_active, o3.created_at, o3.updated_at,
			o4.id, o4.parent_id, o4.org_type, o4.name, o4.default_location_id, o4.is_active, o4.created_at, o4.updated_at
		FROM orgs o0
		LEFT JOIN orgs o1 ON o1.id = o0.parent_id
		LEFT JOIN orgs o2 ON o2.id = o1.parent_id
		LEFT JOIN orgs o3 ON o3.id = o2.parent_id
		LEFT JOIN orgs o4 ON o4.id = o3.parent_id
		WHERE o0.id = $1`

	type nullableOrg struct {
		id         *int64
		parentID   *int64
		orgType    *string
		name       *string
		defaultLoc *int64
		isActive   *bool
		createdAt  *time.Time
		updatedAt  *time.Time
	}
	var raw [models.ChainDepth]nullableOrg
	dest := make([]any, 0, models.ChainDepth*8)
	for i := range raw {
		dest = append(dest,
			&raw[i].id, &raw[i].parentID, &raw[i].orgType, &raw[i].name,
			&raw[i].defaultLoc, &raw[i].isActive, &raw[i].createdAt, &raw[i].updatedAt)
	}

	var chain models.AncestorChain
	err := r.q.QueryRow(ctx, q, orgID).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return chain, apperr.NotFound("org %d not found", orgID)
	}
	if err != nil {
		return chain, err
	}
	for i := range raw {
		if raw[i].id == nil {
			continue
		}
		o := &models.Org{
			ID:                *raw[i].id,
			ParentID:          raw[i].parentID,
			OrgType:           models.OrgType(*raw[i].orgType),
			Name:              *raw[i].name,
			DefaultLocationID: raw[i].defaultLoc,
			IsActive:          *raw[i].isActive,
		}
		if raw[i].createdAt != nil {
			o.CreatedAt = *raw[i].createdAt
		}
		if raw[i].updatedAt != nil {
			o.UpdatedAt = *raw[i].updatedAt
		}
		chain.Set(o)
	}
	return chain, nil
}

// ChildrenByParent returns the active children of an org.
func (r *Repository) ChildrenByParent(ctx context.Context, parentID int64) ([]models.Org, error) {
	const q = `SELECT ` + orgColumns + ` FROM orgs WHERE parent_id = $1 AND is_active ORDER BY name`
	rows, err := r.q.Query(ctx, q, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Org
	for rows.Next() {
		var o models.Org
		if err := rows.Scan(&o.ID, &o.ParentID, &o.OrgType, &o.Name, &o.DefaultLocationID, &o.IsActive, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

// Create inserts a new org.
func (r *Repository) Create(ctx context.Context, o *models.Org) error {
	const q = `INSERT INTO orgs (parent_id, org_type, name, default_location_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_active, created_at, updated_at`
	return r.q.QueryRow(ctx, q, o.ParentID, o.OrgType, o.Name, o.DefaultLocationID).
		Scan(&o.ID, &o.IsActive, &o.CreatedAt, &o.UpdatedAt)
}

// UpdateName updates the org's display name.
func (r *Repository) UpdateName(ctx context.Context, id int64, name string) error {
	const q = `UPDATE orgs SET name = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.q.Exec(ctx, q, name, id)
	return err
}

// UpdateParent reparents the org. Only AOs move in practice; org_type never changes.
func (r *Repository) UpdateParent(ctx context.Context, id, newParentID int64) error {
	const q = `UPDATE orgs SET parent_id = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.q.Exec(ctx, q, newParentID, id)
	return err
}

// SetDefaultLocation points an AO at its default location.
func (r *Repository) SetDefaultLocation(ctx context.Context, id, locationID int64) error {
	const q = `UPDATE orgs SET default_location_id = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.q.Exec(ctx, q, locationID, id)
	return err
}

// SoftDelete marks the org inactive.
func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	const q = `UPDATE orgs SET is_active = FALSE, updated_at = NOW() WHERE id = $1`
	_, err := r.q.Exec(ctx, q, id)
	return err
}
