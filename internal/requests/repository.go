package requests

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hubatlas/backend/internal/apperr"
	"github.com/hubatlas/backend/internal/models"
	"github.com/hubatlas/backend/pkg/database"
)

const requestColumns = `id, status, kind, region_id, submitted_by, reviewed_by, reviewed_at, token, payload, created_at, updated_at`

// NewToken generates the capability secret for email-link self-approval.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Repository handles update request persistence.
type Repository struct {
	q database.Querier
}

// NewRepository creates a requests repository over a pool or transaction.
func NewRepository(q database.Querier) *Repository {
	return &Repository{q: q}
}

// WithQuerier returns a copy of the repository bound to q.
func (r *Repository) WithQuerier(q database.Querier) *Repository {
	return &Repository{q: q}
}

func scanRequest(row pgx.Row) (*models.UpdateRequest, error) {
	var u models.UpdateRequest
	err := row.Scan(&u.ID, &u.Status, &u.Kind, &u.RegionID, &u.SubmittedBy,
		&u.ReviewedBy, &u.ReviewedAt, &u.Token, &u.Payload, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Upsert inserts the request row, or updates its review fields when the
// client-supplied id already exists. Re-applying the same id therefore never
// creates a duplicate row.
func (r *Repository) Upsert(ctx context.Context, u *models.UpdateRequest) error {
	const q = `INSERT INTO update_requests (id, status, kind, region_id, submitted_by, reviewed_by, reviewed_at, token, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			reviewed_by = EXCLUDED.reviewed_by,
			reviewed_at = EXCLUDED.reviewed_at,
			payload = EXCLUDED.payload,
			updated_at = NOW()
		RETURNING created_at, updated_at`
	return r.q.QueryRow(ctx, q, u.ID, u.Status, u.Kind, u.RegionID, u.SubmittedBy,
		u.ReviewedBy, u.ReviewedAt, u.Token, u.Payload).
		Scan(&u.CreatedAt, &u.UpdatedAt)
}

// GetByID returns a request by id, token included.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.UpdateRequest, error) {
	const q = `SELECT ` + requestColumns + ` FROM update_requests WHERE id = $1`
	u, err := scanRequest(r.q.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("request %s not found", id)
	}
	return u, err
}

// ListPending returns all pending requests, oldest first.
func (r *Repository) ListPending(ctx context.Context) ([]models.UpdateRequest, error) {
	const q = `SELECT ` + requestColumns + ` FROM update_requests WHERE status = $1 ORDER BY created_at`
	rows, err := r.q.Query(ctx, q, models.RequestStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.UpdateRequest
	for rows.Next() {
		var u models.UpdateRequest
		if err := rows.Scan(&u.ID, &u.Status, &u.Kind, &u.RegionID, &u.SubmittedBy,
			&u.ReviewedBy, &u.ReviewedAt, &u.Token, &u.Payload, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// MarkRejected moves a pending request to rejected.
func (r *Repository) MarkRejected(ctx context.Context, id uuid.UUID, reviewedBy string) error {
	const q = `UPDATE update_requests SET status = $1, reviewed_by = $2, reviewed_at = $3, updated_at = NOW()
		WHERE id = $4 AND status = $5`
	tag, err := r.q.Exec(ctx, q, models.RequestStatusRejected, reviewedBy, time.Now().UTC(), id, models.RequestStatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.InvalidState("request %s is not pending", id)
	}
	return nil
}
