package models

import "time"

// Event is a recurring gathering hosted by an AO at a location. Both the AO
// and the location are reassignable; an event belongs to exactly one of each
// at a time.
type Event struct {
	ID                  int64     `json:"id"`
	OrgID               int64     `json:"org_id"` // always an AO
	LocationID          *int64    `json:"location_id,omitempty"`
	Name                string    `json:"name"`
	Description         string    `json:"description,omitempty"`
	DayOfWeek           *string   `json:"day_of_week,omitempty"`
	StartTime           *string   `json:"start_time,omitempty"` // HH:MM
	EndTime             *string   `json:"end_time,omitempty"`   // HH:MM
	RecurrencePattern   *string   `json:"recurrence_pattern,omitempty"` // weekly, monthly
	RecurrenceInterval  *int      `json:"recurrence_interval,omitempty"`
	IndexWithinInterval *int      `json:"index_within_interval,omitempty"`
	IsActive            bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// EventType is a tag describing what kind of gathering an event is. Events
// carry a set of them through a join table.
type EventType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
