package requests

import (
	"context"

	"github.com/google/uuid"

	"github.com/hubatlas/backend/internal/models"
)

// OrgStore is the org-tree surface the dispatcher mutates.
type OrgStore interface {
	GetByID(ctx context.Context, id int64) (*models.Org, error)
	AncestorChain(ctx context.Context, orgID int64) (models.AncestorChain, error)
	Create(ctx context.Context, o *models.Org) error
	UpdateName(ctx context.Context, id int64, name string) error
	UpdateParent(ctx context.Context, id, newParentID int64) error
	SetDefaultLocation(ctx context.Context, id, locationID int64) error
	SoftDelete(ctx context.Context, id int64) error
}

// LocationStore is the location surface the dispatcher mutates.
type LocationStore interface {
	GetByID(ctx context.Context, id int64) (*models.Location, error)
	Create(ctx context.Context, l *models.Location) error
	Update(ctx context.Context, l *models.Location) error
	SoftDelete(ctx context.Context, id int64) error
	FirstForAO(ctx context.Context, aoID int64) (*models.Location, error)
	ActiveForAOEvents(ctx context.Context, aoID int64) ([]models.Location, error)
}

// EventStore is the event surface the dispatcher mutates.
type EventStore interface {
	GetByID(ctx context.Context, id int64) (*models.Event, error)
	Create(ctx context.Context, e *models.Event) error
	Update(ctx context.Context, e *models.Event) error
	IDsByAOAndLocation(ctx context.Context, aoID, locationID int64) ([]int64, error)
	IDsByAO(ctx context.Context, aoID int64) ([]int64, error)
	SetLocation(ctx context.Context, eventIDs []int64, locationID int64) error
	MoveToAO(ctx context.Context, eventID, aoID, locationID int64) error
	AnyWithLocation(ctx context.Context, locationID int64) (bool, error)
	SoftDelete(ctx context.Context, id int64) error
	SoftDeleteByAO(ctx context.Context, aoID int64) error
	LinkEventTypes(ctx context.Context, eventID int64, typeIDs []int64) error
	UnlinkEventTypesByAO(ctx context.Context, aoID int64) error
}

// RequestStore persists update request rows.
type RequestStore interface {
	Upsert(ctx context.Context, r *models.UpdateRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.UpdateRequest, error)
	ListPending(ctx context.Context) ([]models.UpdateRequest, error)
	MarkRejected(ctx context.Context, id uuid.UUID, reviewedBy string) error
}

// Store bundles every surface a handler touches. InTx runs fn against a
// transaction-bound Store and commits only when fn returns nil, so a
// mid-sequence failure leaves no dangling forked location or half-repointed
// event set.
type Store interface {
	Orgs() OrgStore
	Locations() LocationStore
	Events() EventStore
	Requests() RequestStore
	InTx(ctx context.Context, fn func(Store) error) error
}
