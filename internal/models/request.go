package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RequestStatus is the lifecycle state of an update request.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// RequestKind identifies which graph mutation a request carries.
type RequestKind string

const (
	KindCreateLocationAndEvent    RequestKind = "create_location_and_event"
	KindCreateEvent               RequestKind = "create_event"
	KindEditEvent                 RequestKind = "edit_event"
	KindEditAOAndLocation         RequestKind = "edit_ao_and_location"
	KindMoveAOToDifferentRegion   RequestKind = "move_ao_to_different_region"
	KindMoveAOToNewLocation       RequestKind = "move_ao_to_new_location"
	KindMoveAOToDifferentLocation RequestKind = "move_ao_to_different_location"
	KindMoveEventToDifferentAO    RequestKind = "move_event_to_different_ao"
	KindMoveEventToNewLocation    RequestKind = "move_event_to_new_location"
	KindEditLegacy                RequestKind = "edit"
	KindDeleteEvent               RequestKind = "delete_event"
	KindDeleteAO                  RequestKind = "delete_ao"
)

// UpdateRequest is a proposed or auto-applied mutation of the
// org/location/event graph. IDs are client-supplied so a create-then-approve
// flow can be retried idempotently; Token is a server-generated capability
// secret for unauthenticated email-link approval.
type UpdateRequest struct {
	ID          uuid.UUID       `json:"id"`
	Status      RequestStatus   `json:"status"`
	Kind        RequestKind     `json:"kind"`
	RegionID    int64           `json:"region_id"`
	SubmittedBy string          `json:"submitted_by"`
	ReviewedBy  *string         `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time      `json:"reviewed_at,omitempty"`
	Token       string          `json:"-"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Terminal reports whether the request has reached a final state.
func (r *UpdateRequest) Terminal() bool {
	return r.Status == RequestStatusApproved || r.Status == RequestStatusRejected
}
