package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationLogStatus for delivery.
const (
	NotificationStatusSent   = "sent"
	NotificationStatusFailed = "failed"
)

// NotificationLog records one attempted escalation notification.
type NotificationLog struct {
	ID             uuid.UUID  `json:"id"`
	RequestID      uuid.UUID  `json:"request_id"`
	RecipientEmail string     `json:"recipient_email"`
	RecipientOrgID int64      `json:"recipient_org_id"`
	NoAdminsNotice bool       `json:"no_admins_notice"`
	Status         string     `json:"status"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
