package locations

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/hubatlas/backend/internal/apperr"
	"github.com/hubatlas/backend/internal/models"
	"github.com/hubatlas/backend/pkg/database"
)

const locationColumns = `id, org_id, name, description, address1, address2, city, state, zip, country, latitude, longitude, is_active, created_at, updated_at`

// Repository handles location persistence.
type Repository struct {
	q database.Querier
}

// NewRepository creates a locations repository over a pool or transaction.
func NewRepository(q database.Querier) *Repository {
	return &Repository{q: q}
}

// WithQuerier returns a copy of the repository bound to q.
func (r *Repository) WithQuerier(q database.Querier) *Repository {
	return &Repository{q: q}
}

func scanLocation(row pgx.Row) (*models.Location, error) {
	var l models.Location
	err := row.Scan(&l.ID, &l.OrgID, &l.Name, &l.Description, &l.Address1, &l.Address2,
		&l.City, &l.State, &l.Zip, &l.Country, &l.Latitude, &l.Longitude,
		&l.IsActive, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetByID returns a location by id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Location, error) {
	const q = `SELECT ` + locationColumns + ` FROM locations WHERE id = $1`
	l, err := scanLocation(r.q.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("location %d not found", id)
	}
	return l, err
}

// Create inserts a new location.
func (r *Repository) Create(ctx context.Context, l *models.Location) error {
	const q = `INSERT INTO locations (org_id, name, description, address1, address2, city, state, zip, country, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, is_active, created_at, updated_at`
	return r.q.QueryRow(ctx, q, l.OrgID, l.Name, l.Description, l.Address1, l.Address2,
		l.City, l.State, l.Zip, l.Country, l.Latitude, l.Longitude).
		Scan(&l.ID, &l.IsActive, &l.CreatedAt, &l.UpdatedAt)
}

// Update rewrites the location's descriptive fields. Ownership (org_id) only
// changes through the region move engine.
func (r *Repository) Update(ctx context.Context, l *models.Location) error {
	const q = `UPDATE locations SET name = $1, description = $2, address1 = $3, address2 = $4,
		city = $5, state = $6, zip = $7, country = $8, latitude = $9, longitude = $10, updated_at = NOW()
		WHERE id = $11`
	_, err := r.q.Exec(ctx, q, l.Name, l.Description, l.Address1, l.Address2,
		l.City, l.State, l.Zip, l.Country, l.Latitude, l.Longitude, l.ID)
	return err
}

// SoftDelete marks the location inactive.
func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	const q = `UPDATE locations SET is_active = FALSE, updated_at = NOW() WHERE id = $1`
	_, err := r.q.Exec(ctx, q, id)
	return err
}

// FirstForAO returns the AO's default location, falling back to the location
// of its first event. NotFound when the AO has no location at all.
func (r *Repository) FirstForAO(ctx context.Context, aoID int64) (*models.Location, error) {
	const q = `SELECT ` + locationColumns + ` FROM locations WHERE id = COALESCE(
			(SELECT default_location_id FROM orgs WHERE id = $1),
			(SELECT e.location_id FROM events e WHERE e.org_id = $1 AND e.location_id IS NOT NULL ORDER BY e.id LIMIT 1))`
	l, err := scanLocation(r.q.QueryRow(ctx, q, aoID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("ao %d has no location", aoID)
	}
	return l, err
}

// ActiveForAOEvents returns the distinct active locations referenced by the
// AO's active events. These are the locations a region move must fork.
func (r *Repository) ActiveForAOEvents(ctx context.Context, aoID int64) ([]models.Location, error) {
	var q = `SELECT DISTINCT ` + prefixed("l") + `
		FROM locations l
		JOIN events e ON e.location_id = l.id
		WHERE e.org_id = $1 AND e.is_active AND l.is_active
		ORDER BY l.id`
	rows, err := r.q.Query(ctx, q, aoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Location
	for rows.Next() {
		var l models.Location
		if err := rows.Scan(&l.ID, &l.OrgID, &l.Name, &l.Description, &l.Address1, &l.Address2,
			&l.City, &l.State, &l.Zip, &l.Country, &l.Latitude, &l.Longitude,
			&l.IsActive, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

func prefixed(alias string) string {
	return alias + `.id, ` + alias + `.org_id, ` + alias + `.name, ` + alias + `.description, ` +
		alias + `.address1, ` + alias + `.address2, ` + alias + `.city, ` + alias + `.state, ` +
		alias + `.zip, ` + alias + `.country, ` + alias + `.latitude, ` + alias + `.longitude, ` +
		alias + `.is_active, ` + alias + `.created_at, ` + alias + `.updated_at`
}
