package events

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/hubatlas/backend/internal/apperr"
	"github.com/hubatlas/backend/internal/models"
	"github.com/hubatlas/backend/pkg/database"
)

const eventColumns = `id, org_id, location_id, name, description, day_of_week, start_time, end_time, recurrence_pattern, recurrence_interval, index_within_interval, is_active, created_at, updated_at`

// Repository handles event persistence.
type Repository struct {
	q database.Querier
}

// NewRepository creates an events repository over a pool or transaction.
func NewRepository(q database.Querier) *Repository {
	return &Repository{q: q}
}

// WithQuerier returns a copy of the repository bound to q.
func (r *Repository) WithQuerier(q database.Querier) *Repository {
	return &Repository{q: q}
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.OrgID, &e.LocationID, &e.Name, &e.Description,
		&e.DayOfWeek, &e.StartTime, &e.EndTime,
		&e.RecurrencePattern, &e.RecurrenceInterval, &e.IndexWithinInterval,
		&e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetByID returns an event by id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	e, err := scanEvent(r.q.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("event %d not found", id)
	}
	return e, err
}

// Create inserts a new event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (org_id, location_id, name, description, day_of_week, start_time, end_time, recurrence_pattern, recurrence_interval, index_within_interval)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, is_active, created_at, updated_at`
	return r.q.QueryRow(ctx, q, e.OrgID, e.LocationID, e.Name, e.Description,
		e.DayOfWeek, e.StartTime, e.EndTime,
		e.RecurrencePattern, e.RecurrenceInterval, e.IndexWithinInterval).
		Scan(&e.ID, &e.IsActive, &e.CreatedAt, &e.UpdatedAt)
}

// Update rewrites the event's schedule and descriptive fields. Ownership
// (org_id, location_id) changes through the dedicated move operations.
func (r *Repository) Update(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events SET name = $1, description = $2, day_of_week = $3, start_time = $4, end_time = $5,
		recurrence_pattern = $6, recurrence_interval = $7, index_within_interval = $8, updated_at = NOW()
		WHERE id = $9`
	_, err := r.q.Exec(ctx, q, e.Name, e.Description, e.DayOfWeek, e.StartTime, e.EndTime,
		e.RecurrencePattern, e.RecurrenceInterval, e.IndexWithinInterval, e.ID)
	return err
}

// IDsByAOAndLocation returns the ids of the AO's active events on a location.
func (r *Repository) IDsByAOAndLocation(ctx context.Context, aoID, locationID int64) ([]int64, error) {
	const q = `SELECT id FROM events WHERE org_id = $1 AND location_id = $2 AND is_active ORDER BY id`
	return r.scanIDs(ctx, q, aoID, locationID)
}

// IDsByAO returns the ids of all of the AO's active events.
func (r *Repository) IDsByAO(ctx context.Context, aoID int64) ([]int64, error) {
	const q = `SELECT id FROM events WHERE org_id = $1 AND is_active ORDER BY id`
	return r.scanIDs(ctx, q, aoID)
}

func (r *Repository) scanIDs(ctx context.Context, q string, args ...any) ([]int64, error) {
	rows, err := r.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetLocation re-points the given events at a location in one bulk update.
func (r *Repository) SetLocation(ctx context.Context, eventIDs []int64, locationID int64) error {
	if len(eventIDs) == 0 {
		return nil
	}
	const q = `UPDATE events SET location_id = $1, updated_at = NOW() WHERE id = ANY($2)`
	_, err := r.q.Exec(ctx, q, locationID, eventIDs)
	return err
}

// MoveToAO re-points an event at a new AO and location.
func (r *Repository) MoveToAO(ctx context.Context, eventID, aoID, locationID int64) error {
	const q = `UPDATE events SET org_id = $1, location_id = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.q.Exec(ctx, q, aoID, locationID, eventID)
	return err
}

// AnyWithLocation reports whether any event anywhere still references the
// location. Inactive events count: they may be reactivated.
func (r *Repository) AnyWithLocation(ctx context.Context, locationID int64) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM events WHERE location_id = $1)`
	var exists bool
	err := r.q.QueryRow(ctx, q, locationID).Scan(&exists)
	return exists, err
}

// SoftDelete marks the event inactive.
func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	const q = `UPDATE events SET is_active = FALSE, updated_at = NOW() WHERE id = $1`
	_, err := r.q.Exec(ctx, q, id)
	return err
}

// SoftDeleteByAO marks all of the AO's events inactive.
func (r *Repository) SoftDeleteByAO(ctx context.Context, aoID int64) error {
	const q = `UPDATE events SET is_active = FALSE, updated_at = NOW() WHERE org_id = $1`
	_, err := r.q.Exec(ctx, q, aoID)
	return err
}

// LinkEventTypes attaches event-type tags to an event.
func (r *Repository) LinkEventTypes(ctx context.Context, eventID int64, typeIDs []int64) error {
	const q = `INSERT INTO event_event_types (event_id, event_type_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING`
	_, err := r.q.Exec(ctx, q, eventID, typeIDs)
	return err
}

// UnlinkEventTypesByAO removes event-type links for all of the AO's events.
func (r *Repository) UnlinkEventTypesByAO(ctx context.Context, aoID int64) error {
	const q = `DELETE FROM event_event_types WHERE event_id IN (SELECT id FROM events WHERE org_id = $1)`
	_, err := r.q.Exec(ctx, q, aoID)
	return err
}
