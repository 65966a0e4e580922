package requests

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hubatlas/backend/internal/apperr"
	"github.com/hubatlas/backend/internal/models"
)

// Sink receives every applied request, e.g. an outbound webhook. Sinks are
// injected at construction; delivery failures are logged and never affect the
// already-committed request.
type Sink interface {
	Deliver(ctx context.Context, r *models.UpdateRequest) error
}

// ChainInvalidator drops cached ancestor chains after a reparent.
type ChainInvalidator interface {
	Invalidate(ctx context.Context, orgIDs ...int64)
}

// ApplyResult reports what an apply produced.
type ApplyResult struct {
	Request        *models.UpdateRequest `json:"request"`
	NewLocationIDs []int64               `json:"new_location_ids,omitempty"`
}

// Dispatcher routes a typed request payload to its handler and records the
// request row in the same transaction as the graph mutation.
type Dispatcher struct {
	store  Store
	sinks  []Sink
	cache  ChainInvalidator
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher. cache may be nil.
func NewDispatcher(store Store, sinks []Sink, cache ChainInvalidator, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{store: store, sinks: sinks, cache: cache, logger: logger}
}

// Apply executes the payload's mutation and upserts the request row with
// status approved and reviewedAt set, all inside one transaction. Typed
// failures abort the whole apply with nothing committed. After commit the
// request is fanned out to the sinks.
func (d *Dispatcher) Apply(ctx context.Context, req *models.UpdateRequest, p Payload) (*ApplyResult, error) {
	if req.Kind != p.Kind() {
		return nil, apperr.InvalidState("request kind %q does not match payload %q", req.Kind, p.Kind())
	}

	res := &ApplyResult{Request: req}
	err := d.store.InTx(ctx, func(s Store) error {
		newLocs, err := applyPayload(ctx, s, req, p)
		if err != nil {
			return err
		}
		res.NewLocationIDs = newLocs

		now := time.Now().UTC()
		req.Status = models.RequestStatusApproved
		req.ReviewedAt = &now
		return s.Requests().Upsert(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	if mv, ok := p.(*MoveAOToDifferentRegion); ok && d.cache != nil {
		d.cache.Invalidate(ctx, mv.AOID)
	}
	d.deliver(ctx, req)
	return res, nil
}

func (d *Dispatcher) deliver(ctx context.Context, req *models.UpdateRequest) {
	for _, sink := range d.sinks {
		if err := sink.Deliver(ctx, req); err != nil {
			d.logger.Warn("sink delivery failed",
				zap.String("request_id", req.ID.String()),
				zap.Error(err))
		}
	}
}

// applyPayload is the exhaustive dispatch over the request union.
func applyPayload(ctx context.Context, s Store, req *models.UpdateRequest, p Payload) ([]int64, error) {
	switch p := p.(type) {
	case *CreateLocationAndEvent:
		return nil, applyCreateLocationAndEvent(ctx, s, req.RegionID, p)
	case *CreateEvent:
		return nil, applyCreateEvent(ctx, s, p)
	case *EditEvent:
		return nil, applyEditEvent(ctx, s, p)
	case *EditAOAndLocation:
		return nil, applyEditAOAndLocation(ctx, s, p)
	case *MoveAOToDifferentRegion:
		return applyMoveAOToDifferentRegion(ctx, s, p)
	case *MoveAOToNewLocation:
		return nil, applyMoveAOToNewLocation(ctx, s, p)
	case *MoveAOToDifferentLocation:
		return nil, applyMoveAOToDifferentLocation(ctx, s, p)
	case *MoveEventToDifferentAO:
		return nil, applyMoveEventToDifferentAO(ctx, s, p)
	case *MoveEventToNewLocation:
		return nil, applyMoveEventToNewLocation(ctx, s, p)
	case *EditLegacy:
		return nil, applyEditLegacy(ctx, s, req.RegionID, p)
	case *DeleteEvent:
		return nil, applyDeleteEvent(ctx, s, p)
	case *DeleteAO:
		return nil, applyDeleteAO(ctx, s, p)
	default:
		return nil, apperr.InvalidState("unknown request type %q", req.Kind)
	}
}

func getOrgOfType(ctx context.Context, s Store, id int64, want models.OrgType) (*models.Org, error) {
	o, err := s.Orgs().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.OrgType != want {
		return nil, apperr.InvalidState("org %d is a %s, expected %s", id, o.OrgType, want)
	}
	return o, nil
}

func applyCreateLocationAndEvent(ctx context.Context, s Store, regionID int64, p *CreateLocationAndEvent) error {
	region, err := getOrgOfType(ctx, s, regionID, models.OrgTypeRegion)
	if err != nil {
		return err
	}

	loc := &models.Location{OrgID: region.ID}
	p.Location.Apply(loc)
	if err := s.Locations().Create(ctx, loc); err != nil {
		return err
	}

	ao := &models.Org{
		ParentID:          &region.ID,
		OrgType:           models.OrgTypeAO,
		Name:              p.AOName,
		DefaultLocationID: &loc.ID,
	}
	if err := s.Orgs().Create(ctx, ao); err != nil {
		return err
	}

	ev := &models.Event{OrgID: ao.ID, LocationID: &loc.ID}
	p.Event.Apply(ev)
	if err := s.Events().Create(ctx, ev); err != nil {
		return err
	}
	if len(p.EventTypeIDs) > 0 {
		return s.Events().LinkEventTypes(ctx, ev.ID, p.EventTypeIDs)
	}
	return nil
}

func applyCreateEvent(ctx context.Context, s Store, p *CreateEvent) error {
	ao, err := getOrgOfType(ctx, s, p.AOID, models.OrgTypeAO)
	if err != nil {
		return err
	}
	loc, err := s.Locations().FirstForAO(ctx, ao.ID)
	if err != nil {
		return err
	}

	ev := &models.Event{OrgID: ao.ID, LocationID: &loc.ID}
	p.Event.Apply(ev)
	if err := s.Events().Create(ctx, ev); err != nil {
		return err
	}
	if len(p.EventTypeIDs) > 0 {
		return s.Events().LinkEventTypes(ctx, ev.ID, p.EventTypeIDs)
	}
	return nil
}

func applyEditEvent(ctx context.Context, s Store, p *EditEvent) error {
	ev, err := s.Events().GetByID(ctx, p.EventID)
	if err != nil {
		return err
	}
	p.Event.Apply(ev)
	return s.Events().Update(ctx, ev)
}

func applyEditAOAndLocation(ctx context.Context, s Store, p *EditAOAndLocation) error {
	ao, err := getOrgOfType(ctx, s, p.AOID, models.OrgTypeAO)
	if err != nil {
		return err
	}
	loc, err := s.Locations().FirstForAO(ctx, ao.ID)
	if err != nil {
		return err
	}
	p.Location.Apply(loc)
	if err := s.Locations().Update(ctx, loc); err != nil {
		return err
	}
	if p.AOName != "" && p.AOName != ao.Name {
		return s.Orgs().UpdateName(ctx, ao.ID, p.AOName)
	}
	return nil
}

func applyMoveAOToDifferentRegion(ctx context.Context, s Store, p *MoveAOToDifferentRegion) ([]int64, error) {
	if p.OriginalRegionID == p.NewRegionID {
		return nil, apperr.InvalidState("ao %d is already in region %d", p.AOID, p.NewRegionID)
	}
	ao, err := getOrgOfType(ctx, s, p.AOID, models.OrgTypeAO)
	if err != nil {
		return nil, err
	}
	if ao.ParentID == nil || *ao.ParentID != p.OriginalRegionID {
		return nil, apperr.InvalidState("ao %d is not parented under region %d", p.AOID, p.OriginalRegionID)
	}
	newRegion, err := getOrgOfType(ctx, s, p.NewRegionID, models.OrgTypeRegion)
	if err != nil {
		return nil, err
	}

	if err := s.Orgs().UpdateParent(ctx, ao.ID, newRegion.ID); err != nil {
		return nil, err
	}
	return moveAOLocations(ctx, s, ao.ID, p.OriginalRegionID, newRegion.ID)
}

func applyMoveAOToNewLocation(ctx context.Context, s Store, p *MoveAOToNewLocation) error {
	ao, err := getOrgOfType(ctx, s, p.AOID, models.OrgTypeAO)
	if err != nil {
		return err
	}
	if ao.ParentID == nil {
		return apperr.InvalidState("ao %d has no parent region", ao.ID)
	}

	loc := &models.Location{OrgID: *ao.ParentID}
	p.Location.Apply(loc)
	if err := s.Locations().Create(ctx, loc); err != nil {
		return err
	}
	if err := s.Orgs().SetDefaultLocation(ctx, ao.ID, loc.ID); err != nil {
		return err
	}
	eventIDs, err := s.Events().IDsByAO(ctx, ao.ID)
	if err != nil {
		return err
	}
	return s.Events().SetLocation(ctx, eventIDs, loc.ID)
}

func applyMoveAOToDifferentLocation(ctx context.Context, s Store, p *MoveAOToDifferentLocation) error {
	ao, err := getOrgOfType(ctx, s, p.AOID, models.OrgTypeAO)
	if err != nil {
		return err
	}
	loc, err := s.Locations().GetByID(ctx, p.LocationID)
	if err != nil {
		return err
	}

	if err := s.Orgs().SetDefaultLocation(ctx, ao.ID, loc.ID); err != nil {
		return err
	}
	eventIDs, err := s.Events().IDsByAO(ctx, ao.ID)
	if err != nil {
		return err
	}
	return s.Events().SetLocation(ctx, eventIDs, loc.ID)
}

func applyMoveEventToDifferentAO(ctx context.Context, s Store, p *MoveEventToDifferentAO) error {
	ev, err := s.Events().GetByID(ctx, p.EventID)
	if err != nil {
		return err
	}
	ao, err := getOrgOfType(ctx, s, p.AOID, models.OrgTypeAO)
	if err != nil {
		return err
	}
	loc, err := s.Locations().FirstForAO(ctx, ao.ID)
	if err != nil {
		return err
	}
	return s.Events().MoveToAO(ctx, ev.ID, ao.ID, loc.ID)
}

func applyMoveEventToNewLocation(ctx context.Context, s Store, p *MoveEventToNewLocation) error {
	ev, err := s.Events().GetByID(ctx, p.EventID)
	if err != nil {
		return err
	}
	ao, err := s.Orgs().GetByID(ctx, ev.OrgID)
	if err != nil {
		return err
	}
	owner := ao.ID
	if ao.ParentID != nil {
		owner = *ao.ParentID
	}

	loc := &models.Location{OrgID: owner}
	p.Location.Apply(loc)
	if err := s.Locations().Create(ctx, loc); err != nil {
		return err
	}
	return s.Events().SetLocation(ctx, []int64{ev.ID}, loc.ID)
}

func applyEditLegacy(ctx context.Context, s Store, regionID int64, p *EditLegacy) error {
	var ao *models.Org
	if p.AOID == nil {
		region, err := getOrgOfType(ctx, s, regionID, models.OrgTypeRegion)
		if err != nil {
			return err
		}
		ao = &models.Org{ParentID: &region.ID, OrgType: models.OrgTypeAO, Name: p.AOName}
		if err := s.Orgs().Create(ctx, ao); err != nil {
			return err
		}
		if p.Location != nil {
			loc := &models.Location{OrgID: region.ID}
			p.Location.Apply(loc)
			if err := s.Locations().Create(ctx, loc); err != nil {
				return err
			}
			if err := s.Orgs().SetDefaultLocation(ctx, ao.ID, loc.ID); err != nil {
				return err
			}
		}
	} else {
		var err error
		ao, err = getOrgOfType(ctx, s, *p.AOID, models.OrgTypeAO)
		if err != nil {
			return err
		}
		if p.AOName != "" && p.AOName != ao.Name {
			if err := s.Orgs().UpdateName(ctx, ao.ID, p.AOName); err != nil {
				return err
			}
		}
		if p.Location != nil {
			loc, err := s.Locations().FirstForAO(ctx, ao.ID)
			if err != nil {
				return err
			}
			p.Location.Apply(loc)
			if err := s.Locations().Update(ctx, loc); err != nil {
				return err
			}
		}
	}

	switch {
	case p.EventID != nil:
		ev, err := s.Events().GetByID(ctx, *p.EventID)
		if err != nil {
			return err
		}
		if p.Event != nil {
			p.Event.Apply(ev)
		}
		return s.Events().Update(ctx, ev)
	case p.Event != nil:
		loc, err := s.Locations().FirstForAO(ctx, ao.ID)
		if err != nil {
			return err
		}
		ev := &models.Event{OrgID: ao.ID, LocationID: &loc.ID}
		p.Event.Apply(ev)
		return s.Events().Create(ctx, ev)
	}
	return nil
}

func applyDeleteEvent(ctx context.Context, s Store, p *DeleteEvent) error {
	ev, err := s.Events().GetByID(ctx, p.EventID)
	if err != nil {
		return err
	}
	return s.Events().SoftDelete(ctx, ev.ID)
}

func applyDeleteAO(ctx context.Context, s Store, p *DeleteAO) error {
	ao, err := getOrgOfType(ctx, s, p.AOID, models.OrgTypeAO)
	if err != nil {
		return err
	}
	if err := s.Events().UnlinkEventTypesByAO(ctx, ao.ID); err != nil {
		return err
	}
	if err := s.Events().SoftDeleteByAO(ctx, ao.ID); err != nil {
		return err
	}
	return s.Orgs().SoftDelete(ctx, ao.ID)
}
