package requests

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubatlas/backend/internal/apperr"
	"github.com/hubatlas/backend/internal/models"
)

type recordingSink struct {
	mu        sync.Mutex
	delivered []uuid.UUID
}

func (r *recordingSink) Deliver(_ context.Context, req *models.UpdateRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered = append(r.delivered, req.ID)
	return nil
}

type recordingInvalidator struct {
	orgIDs []int64
}

func (r *recordingInvalidator) Invalidate(_ context.Context, orgIDs ...int64) {
	r.orgIDs = append(r.orgIDs, orgIDs...)
}

func ptr[T any](v T) *T { return &v }

// seedRegions builds two regions under one area and an AO with two events on a
// default location in the first region.
func seedRegions(s *memStore) (aoID, oldRegion, newRegion, locID, e1, e2 int64) {
	area := s.addOrg(models.Org{OrgType: models.OrgTypeArea, Name: "North"})
	oldRegion = s.addOrg(models.Org{ParentID: &area, OrgType: models.OrgTypeRegion, Name: "R2"})
	newRegion = s.addOrg(models.Org{ParentID: &area, OrgType: models.OrgTypeRegion, Name: "R3"})
	locID = s.addLocation(models.Location{OrgID: oldRegion, Name: "Main Park"})
	aoID = s.addOrg(models.Org{ParentID: &oldRegion, OrgType: models.OrgTypeAO, Name: "AO7", DefaultLocationID: &locID})
	e1 = s.addEvent(models.Event{OrgID: aoID, LocationID: &locID, Name: "Monday"})
	e2 = s.addEvent(models.Event{OrgID: aoID, LocationID: &locID, Name: "Thursday"})
	return
}

func newRequest(kind models.RequestKind, regionID int64, p Payload) (*models.UpdateRequest, Payload) {
	raw, _ := json.Marshal(p)
	return &models.UpdateRequest{
		ID:          uuid.New(),
		Kind:        kind,
		RegionID:    regionID,
		SubmittedBy: "sub@example.com",
		Payload:     raw,
	}, p
}

func TestApplyKindMismatch(t *testing.T) {
	d := NewDispatcher(newMemStore(), nil, nil, nil)
	req, _ := newRequest(models.KindDeleteEvent, 1, &DeleteEvent{EventID: 1})
	_, err := d.Apply(context.Background(), req, &DeleteAO{AOID: 1})
	require.Error(t, err)
	assert.True(t, apperr.IsInvalidState(err))
}

func TestApplyMoveAOToDifferentRegion(t *testing.T) {
	s := newMemStore()
	aoID, oldRegion, newRegion, locID, e1, e2 := seedRegions(s)
	sink := &recordingSink{}
	inv := &recordingInvalidator{}
	d := NewDispatcher(s, []Sink{sink}, inv, nil)

	req, p := newRequest(models.KindMoveAOToDifferentRegion, oldRegion, &MoveAOToDifferentRegion{
		AOID: aoID, OriginalRegionID: oldRegion, NewRegionID: newRegion,
	})
	res, err := d.Apply(context.Background(), req, p)
	require.NoError(t, err)
	require.Len(t, res.NewLocationIDs, 1)
	forkID := res.NewLocationIDs[0]

	// AO reparented, default location re-pointed at the fork.
	ao := s.orgs[aoID]
	require.NotNil(t, ao.ParentID)
	assert.Equal(t, newRegion, *ao.ParentID)
	require.NotNil(t, ao.DefaultLocationID)
	assert.Equal(t, forkID, *ao.DefaultLocationID)

	// Fork owned by the new region, field-for-field copy of the original.
	fork := s.locations[forkID]
	assert.Equal(t, newRegion, fork.OrgID)
	assert.Equal(t, "Main Park", fork.Name)
	assert.True(t, fork.IsActive)

	// Both events re-pointed.
	for _, id := range []int64{e1, e2} {
		ev := s.events[id]
		require.NotNil(t, ev.LocationID)
		assert.Equal(t, forkID, *ev.LocationID)
	}

	// Old location unreferenced, so soft-deleted.
	assert.False(t, s.locations[locID].IsActive)

	// Request row committed as approved with a review timestamp.
	row := s.rows[req.ID]
	assert.Equal(t, models.RequestStatusApproved, row.Status)
	assert.NotNil(t, row.ReviewedAt)

	// Post-commit effects: chain invalidated, sink notified.
	assert.Equal(t, []int64{aoID}, inv.orgIDs)
	assert.Equal(t, []uuid.UUID{req.ID}, sink.delivered)
}

func TestApplyMoveAOSharedLocationStaysActive(t *testing.T) {
	s := newMemStore()
	aoID, oldRegion, newRegion, locID, _, _ := seedRegions(s)
	otherAO := s.addOrg(models.Org{ParentID: &oldRegion, OrgType: models.OrgTypeAO, Name: "AO8"})
	s.addEvent(models.Event{OrgID: otherAO, LocationID: &locID, Name: "Saturday"})
	d := NewDispatcher(s, nil, nil, nil)

	req, p := newRequest(models.KindMoveAOToDifferentRegion, oldRegion, &MoveAOToDifferentRegion{
		AOID: aoID, OriginalRegionID: oldRegion, NewRegionID: newRegion,
	})
	_, err := d.Apply(context.Background(), req, p)
	require.NoError(t, err)

	// The other AO still references the old location, so it survives.
	assert.True(t, s.locations[locID].IsActive)
}

func TestApplyMoveAOSameRegionRejected(t *testing.T) {
	s := newMemStore()
	aoID, oldRegion, _, _, _, _ := seedRegions(s)
	d := NewDispatcher(s, nil, nil, nil)

	req, p := newRequest(models.KindMoveAOToDifferentRegion, oldRegion, &MoveAOToDifferentRegion{
		AOID: aoID, OriginalRegionID: oldRegion, NewRegionID: oldRegion,
	})
	_, err := d.Apply(context.Background(), req, p)
	require.Error(t, err)
	assert.True(t, apperr.IsInvalidState(err))
}

func TestApplyMoveAOWrongOriginalRegionRejected(t *testing.T) {
	s := newMemStore()
	aoID, oldRegion, newRegion, _, _, _ := seedRegions(s)
	d := NewDispatcher(s, nil, nil, nil)

	// Claimed original region is the new one; the AO actually lives in oldRegion.
	req, p := newRequest(models.KindMoveAOToDifferentRegion, oldRegion, &MoveAOToDifferentRegion{
		AOID: aoID, OriginalRegionID: newRegion, NewRegionID: oldRegion,
	})
	_, err := d.Apply(context.Background(), req, p)
	require.Error(t, err)
	assert.True(t, apperr.IsInvalidState(err))
	assert.Empty(t, s.rows)
}

func TestApplyMoveAOStrayLocationRollsBack(t *testing.T) {
	s := newMemStore()
	aoID, oldRegion, newRegion, _, _, _ := seedRegions(s)
	// One of the AO's events references a location the old region does not own,
	// which fails the move after the AO has already been reparented.
	area := *s.orgs[oldRegion].ParentID
	strayLoc := s.addLocation(models.Location{OrgID: area, Name: "Stray"})
	s.addEvent(models.Event{OrgID: aoID, LocationID: &strayLoc, Name: "Stray Event"})
	d := NewDispatcher(s, nil, nil, nil)

	req, p := newRequest(models.KindMoveAOToDifferentRegion, oldRegion, &MoveAOToDifferentRegion{
		AOID: aoID, OriginalRegionID: oldRegion, NewRegionID: newRegion,
	})
	_, err := d.Apply(context.Background(), req, p)
	require.Error(t, err)
	assert.True(t, apperr.IsInvalidState(err))

	// Nothing committed: the reparent was rolled back and no row was written.
	ao := s.orgs[aoID]
	require.NotNil(t, ao.ParentID)
	assert.Equal(t, oldRegion, *ao.ParentID)
	assert.Empty(t, s.rows)
}

func TestApplyCreateLocationAndEvent(t *testing.T) {
	s := newMemStore()
	region := s.addOrg(models.Org{OrgType: models.OrgTypeRegion, Name: "R1"})
	d := NewDispatcher(s, nil, nil, nil)

	req, p := newRequest(models.KindCreateLocationAndEvent, region, &CreateLocationAndEvent{
		AOName:       "New AO",
		Location:     LocationFields{Name: "River Park", City: "Springfield"},
		Event:        EventFields{Name: "Bootcamp", DayOfWeek: ptr("tuesday")},
		EventTypeIDs: []int64{1, 2},
	})
	_, err := d.Apply(context.Background(), req, p)
	require.NoError(t, err)

	var ao *models.Org
	for _, o := range s.orgs {
		if o.OrgType == models.OrgTypeAO {
			ao = ptr(o)
		}
	}
	require.NotNil(t, ao)
	assert.Equal(t, "New AO", ao.Name)
	require.NotNil(t, ao.ParentID)
	assert.Equal(t, region, *ao.ParentID)
	require.NotNil(t, ao.DefaultLocationID)
	assert.Equal(t, "River Park", s.locations[*ao.DefaultLocationID].Name)

	require.Len(t, s.events, 1)
	for id, ev := range s.events {
		assert.Equal(t, ao.ID, ev.OrgID)
		assert.Equal(t, *ao.DefaultLocationID, *ev.LocationID)
		assert.Equal(t, []int64{1, 2}, s.links[id])
	}
}

func TestApplyCreateLocationAndEventRejectsNonRegion(t *testing.T) {
	s := newMemStore()
	area := s.addOrg(models.Org{OrgType: models.OrgTypeArea, Name: "North"})
	d := NewDispatcher(s, nil, nil, nil)

	req, p := newRequest(models.KindCreateLocationAndEvent, area, &CreateLocationAndEvent{
		AOName:   "New AO",
		Location: LocationFields{Name: "River Park"},
		Event:    EventFields{Name: "Bootcamp"},
	})
	_, err := d.Apply(context.Background(), req, p)
	require.Error(t, err)
	assert.True(t, apperr.IsInvalidState(err))
}

func TestApplyMoveAOToNewLocation(t *testing.T) {
	s := newMemStore()
	aoID, oldRegion, _, locID, e1, e2 := seedRegions(s)
	d := NewDispatcher(s, nil, nil, nil)

	req, p := newRequest(models.KindMoveAOToNewLocation, oldRegion, &MoveAOToNewLocation{
		AOID:     aoID,
		Location: LocationFields{Name: "New Park"},
	})
	_, err := d.Apply(context.Background(), req, p)
	require.NoError(t, err)

	ao := s.orgs[aoID]
	require.NotNil(t, ao.DefaultLocationID)
	newLoc := s.locations[*ao.DefaultLocationID]
	assert.Equal(t, "New Park", newLoc.Name)
	assert.Equal(t, oldRegion, newLoc.OrgID)
	assert.NotEqual(t, locID, newLoc.ID)

	for _, id := range []int64{e1, e2} {
		assert.Equal(t, newLoc.ID, *s.events[id].LocationID)
	}
}

func TestApplyMoveEventToDifferentAO(t *testing.T) {
	s := newMemStore()
	aoID, oldRegion, _, _, e1, _ := seedRegions(s)
	targetLoc := s.addLocation(models.Location{OrgID: oldRegion, Name: "Target Park"})
	targetAO := s.addOrg(models.Org{ParentID: &oldRegion, OrgType: models.OrgTypeAO, Name: "AO9", DefaultLocationID: &targetLoc})
	d := NewDispatcher(s, nil, nil, nil)

	req, p := newRequest(models.KindMoveEventToDifferentAO, oldRegion, &MoveEventToDifferentAO{
		EventID: e1, AOID: targetAO,
	})
	_, err := d.Apply(context.Background(), req, p)
	require.NoError(t, err)

	ev := s.events[e1]
	assert.Equal(t, targetAO, ev.OrgID)
	assert.Equal(t, targetLoc, *ev.LocationID)
	assert.NotEqual(t, aoID, ev.OrgID)
}

func TestApplyDeleteAOCascades(t *testing.T) {
	s := newMemStore()
	aoID, oldRegion, _, _, e1, e2 := seedRegions(s)
	s.links[e1] = []int64{1}
	d := NewDispatcher(s, nil, nil, nil)

	req, p := newRequest(models.KindDeleteAO, oldRegion, &DeleteAO{AOID: aoID})
	_, err := d.Apply(context.Background(), req, p)
	require.NoError(t, err)

	assert.False(t, s.orgs[aoID].IsActive)
	assert.False(t, s.events[e1].IsActive)
	assert.False(t, s.events[e2].IsActive)
	assert.Empty(t, s.links[e1])
}

func TestApplyDeleteEvent(t *testing.T) {
	s := newMemStore()
	_, oldRegion, _, _, e1, e2 := seedRegions(s)
	d := NewDispatcher(s, nil, nil, nil)

	req, p := newRequest(models.KindDeleteEvent, oldRegion, &DeleteEvent{EventID: e1})
	_, err := d.Apply(context.Background(), req, p)
	require.NoError(t, err)

	assert.False(t, s.events[e1].IsActive)
	assert.True(t, s.events[e2].IsActive)
}

func TestApplyUpsertIsIdempotent(t *testing.T) {
	s := newMemStore()
	_, oldRegion, _, _, e1, _ := seedRegions(s)
	d := NewDispatcher(s, nil, nil, nil)

	req, p := newRequest(models.KindEditEvent, oldRegion, &EditEvent{
		EventID: e1, Event: EventFields{Name: "Renamed"},
	})
	_, err := d.Apply(context.Background(), req, p)
	require.NoError(t, err)
	created := s.rows[req.ID].CreatedAt

	_, err = d.Apply(context.Background(), req, p)
	require.NoError(t, err)
	assert.Len(t, s.rows, 1)
	assert.Equal(t, created, s.rows[req.ID].CreatedAt)
	assert.Equal(t, "Renamed", s.events[e1].Name)
}
