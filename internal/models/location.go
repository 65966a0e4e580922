package models

import "time"

// Location is a physical place owned by exactly one org (a region, or an AO
// for caller-managed spots). It is never shared across two regions: when a
// region move would require sharing, the move engine forks a copy instead.
type Location struct {
	ID          int64     `json:"id"`
	OrgID       int64     `json:"org_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Address1    string    `json:"address1,omitempty"`
	Address2    string    `json:"address2,omitempty"`
	City        string    `json:"city,omitempty"`
	State       string    `json:"state,omitempty"`
	Zip         string    `json:"zip,omitempty"`
	Country     string    `json:"country,omitempty"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CopyTo returns a field-for-field copy of l owned by the given org, with a
// zero ID so the store assigns a fresh one.
func (l *Location) CopyTo(orgID int64) *Location {
	c := *l
	c.ID = 0
	c.OrgID = orgID
	c.IsActive = true
	return &c
}
