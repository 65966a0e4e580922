package notify

import (
	"context"

	"github.com/google/uuid"

	"github.com/hubatlas/backend/internal/models"
	"github.com/hubatlas/backend/pkg/database"
)

// Repository records attempted escalation notifications.
type Repository struct {
	q database.Querier
}

// NewRepository creates a notification log repository.
func NewRepository(q database.Querier) *Repository {
	return &Repository{q: q}
}

// Record inserts one notification log row.
func (r *Repository) Record(ctx context.Context, log *models.NotificationLog) error {
	const q = `INSERT INTO notification_logs (id, request_id, recipient_email, recipient_org_id, no_admins_notice, status, error_message, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`
	return r.q.QueryRow(ctx, q, log.ID, log.RequestID, log.RecipientEmail, log.RecipientOrgID,
		log.NoAdminsNotice, log.Status, log.ErrorMessage, log.SentAt).
		Scan(&log.CreatedAt)
}

// ListByRequest returns all notification attempts for a request.
func (r *Repository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]models.NotificationLog, error) {
	const q = `SELECT id, request_id, recipient_email, recipient_org_id, no_admins_notice, status, error_message, sent_at, created_at
		FROM notification_logs WHERE request_id = $1 ORDER BY created_at`
	rows, err := r.q.Query(ctx, q, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.NotificationLog
	for rows.Next() {
		var l models.NotificationLog
		if err := rows.Scan(&l.ID, &l.RequestID, &l.RecipientEmail, &l.RecipientOrgID,
			&l.NoAdminsNotice, &l.Status, &l.ErrorMessage, &l.SentAt, &l.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}
