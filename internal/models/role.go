package models

import (
	"time"

	"github.com/google/uuid"
)

// RoleName is a principal's role at a specific org.
type RoleName string

const (
	RoleAdmin  RoleName = "admin"
	RoleEditor RoleName = "editor"
	RoleUser   RoleName = "user"
)

// Satisfies reports whether an assignment with this role meets the required
// role. Admin satisfies every requirement; other roles only an exact match.
func (r RoleName) Satisfies(required RoleName) bool {
	return r == RoleAdmin || r == required
}

// CanEdit reports whether the role carries editor-level capability.
func (r RoleName) CanEdit() bool {
	return r == RoleAdmin || r == RoleEditor
}

// RoleAssignment grants a user a role at one org. A principal may hold any
// number of assignments across different orgs.
type RoleAssignment struct {
	ID        int64     `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	RoleName  RoleName  `json:"role_name"`
	OrgID     int64     `json:"org_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Recipient is a notifiable admin or editor resolved from the roster.
type Recipient struct {
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
}
