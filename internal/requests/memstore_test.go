package requests

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hubatlas/backend/internal/apperr"
	"github.com/hubatlas/backend/internal/models"
)

// memStore is an in-memory Store for dispatcher tests. InTx snapshots the maps
// before running fn and restores them when fn fails, mirroring rollback.
type memStore struct {
	nextID    int64
	orgs      map[int64]models.Org
	locations map[int64]models.Location
	events    map[int64]models.Event
	links     map[int64][]int64
	rows      map[uuid.UUID]models.UpdateRequest
}

func newMemStore() *memStore {
	return &memStore{
		orgs:      make(map[int64]models.Org),
		locations: make(map[int64]models.Location),
		events:    make(map[int64]models.Event),
		links:     make(map[int64][]int64),
		rows:      make(map[uuid.UUID]models.UpdateRequest),
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) addOrg(o models.Org) int64 {
	if o.ID == 0 {
		o.ID = s.id()
	} else if o.ID > s.nextID {
		s.nextID = o.ID
	}
	o.IsActive = true
	s.orgs[o.ID] = o
	return o.ID
}

func (s *memStore) addLocation(l models.Location) int64 {
	if l.ID == 0 {
		l.ID = s.id()
	} else if l.ID > s.nextID {
		s.nextID = l.ID
	}
	l.IsActive = true
	s.locations[l.ID] = l
	return l.ID
}

func (s *memStore) addEvent(e models.Event) int64 {
	if e.ID == 0 {
		e.ID = s.id()
	} else if e.ID > s.nextID {
		s.nextID = e.ID
	}
	e.IsActive = true
	s.events[e.ID] = e
	return e.ID
}

func (s *memStore) Orgs() OrgStore           { return memOrgs{s} }
func (s *memStore) Locations() LocationStore { return memLocations{s} }
func (s *memStore) Events() EventStore       { return memEvents{s} }
func (s *memStore) Requests() RequestStore   { return memRequests{s} }

func (s *memStore) InTx(_ context.Context, fn func(Store) error) error {
	orgs := cloneMap(s.orgs)
	locations := cloneMap(s.locations)
	events := cloneMap(s.events)
	rows := cloneMap(s.rows)
	links := make(map[int64][]int64, len(s.links))
	for k, v := range s.links {
		links[k] = append([]int64(nil), v...)
	}
	nextID := s.nextID

	if err := fn(s); err != nil {
		s.orgs, s.locations, s.events, s.rows, s.links, s.nextID =
			orgs, locations, events, rows, links, nextID
		return err
	}
	return nil
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type memOrgs struct{ s *memStore }

func (m memOrgs) GetByID(_ context.Context, id int64) (*models.Org, error) {
	o, ok := m.s.orgs[id]
	if !ok {
		return nil, apperr.NotFound("org %d not found", id)
	}
	return &o, nil
}

func (m memOrgs) AncestorChain(_ context.Context, orgID int64) (models.AncestorChain, error) {
	var chain models.AncestorChain
	cur, ok := m.s.orgs[orgID]
	if !ok {
		return chain, apperr.NotFound("org %d not found", orgID)
	}
	for i := 0; i < models.ChainDepth; i++ {
		o := cur
		chain.Set(&o)
		if cur.ParentID == nil {
			break
		}
		next, ok := m.s.orgs[*cur.ParentID]
		if !ok {
			break
		}
		cur = next
	}
	return chain, nil
}

func (m memOrgs) Create(_ context.Context, o *models.Org) error {
	o.ID = m.s.id()
	o.IsActive = true
	m.s.orgs[o.ID] = *o
	return nil
}

func (m memOrgs) UpdateName(_ context.Context, id int64, name string) error {
	o := m.s.orgs[id]
	o.Name = name
	m.s.orgs[id] = o
	return nil
}

func (m memOrgs) UpdateParent(_ context.Context, id, newParentID int64) error {
	o := m.s.orgs[id]
	o.ParentID = &newParentID
	m.s.orgs[id] = o
	return nil
}

func (m memOrgs) SetDefaultLocation(_ context.Context, id, locationID int64) error {
	o := m.s.orgs[id]
	o.DefaultLocationID = &locationID
	m.s.orgs[id] = o
	return nil
}

func (m memOrgs) SoftDelete(_ context.Context, id int64) error {
	o := m.s.orgs[id]
	o.IsActive = false
	m.s.orgs[id] = o
	return nil
}

type memLocations struct{ s *memStore }

func (m memLocations) GetByID(_ context.Context, id int64) (*models.Location, error) {
	l, ok := m.s.locations[id]
	if !ok {
		return nil, apperr.NotFound("location %d not found", id)
	}
	return &l, nil
}

func (m memLocations) Create(_ context.Context, l *models.Location) error {
	l.ID = m.s.id()
	l.IsActive = true
	m.s.locations[l.ID] = *l
	return nil
}

func (m memLocations) Update(_ context.Context, l *models.Location) error {
	m.s.locations[l.ID] = *l
	return nil
}

func (m memLocations) SoftDelete(_ context.Context, id int64) error {
	l := m.s.locations[id]
	l.IsActive = false
	m.s.locations[id] = l
	return nil
}

func (m memLocations) FirstForAO(ctx context.Context, aoID int64) (*models.Location, error) {
	if ao, ok := m.s.orgs[aoID]; ok && ao.DefaultLocationID != nil {
		if l, ok := m.s.locations[*ao.DefaultLocationID]; ok {
			return &l, nil
		}
	}
	var ids []int64
	for _, e := range m.s.events {
		if e.OrgID == aoID && e.IsActive && e.LocationID != nil {
			ids = append(ids, *e.LocationID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > 0 {
		l := m.s.locations[ids[0]]
		return &l, nil
	}
	return nil, apperr.NotFound("ao %d has no location", aoID)
}

func (m memLocations) ActiveForAOEvents(_ context.Context, aoID int64) ([]models.Location, error) {
	seen := make(map[int64]bool)
	var out []models.Location
	for _, e := range m.s.events {
		if e.OrgID != aoID || !e.IsActive || e.LocationID == nil || seen[*e.LocationID] {
			continue
		}
		seen[*e.LocationID] = true
		if l, ok := m.s.locations[*e.LocationID]; ok && l.IsActive {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memEvents struct{ s *memStore }

func (m memEvents) GetByID(_ context.Context, id int64) (*models.Event, error) {
	e, ok := m.s.events[id]
	if !ok {
		return nil, apperr.NotFound("event %d not found", id)
	}
	return &e, nil
}

func (m memEvents) Create(_ context.Context, e *models.Event) error {
	e.ID = m.s.id()
	e.IsActive = true
	m.s.events[e.ID] = *e
	return nil
}

func (m memEvents) Update(_ context.Context, e *models.Event) error {
	m.s.events[e.ID] = *e
	return nil
}

func (m memEvents) IDsByAOAndLocation(_ context.Context, aoID, locationID int64) ([]int64, error) {
	var ids []int64
	for _, e := range m.s.events {
		if e.OrgID == aoID && e.IsActive && e.LocationID != nil && *e.LocationID == locationID {
			ids = append(ids, e.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m memEvents) IDsByAO(_ context.Context, aoID int64) ([]int64, error) {
	var ids []int64
	for _, e := range m.s.events {
		if e.OrgID == aoID && e.IsActive {
			ids = append(ids, e.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m memEvents) SetLocation(_ context.Context, eventIDs []int64, locationID int64) error {
	for _, id := range eventIDs {
		e := m.s.events[id]
		e.LocationID = &locationID
		m.s.events[id] = e
	}
	return nil
}

func (m memEvents) MoveToAO(_ context.Context, eventID, aoID, locationID int64) error {
	e := m.s.events[eventID]
	e.OrgID = aoID
	e.LocationID = &locationID
	m.s.events[eventID] = e
	return nil
}

func (m memEvents) AnyWithLocation(_ context.Context, locationID int64) (bool, error) {
	for _, e := range m.s.events {
		if e.LocationID != nil && *e.LocationID == locationID {
			return true, nil
		}
	}
	return false, nil
}

func (m memEvents) SoftDelete(_ context.Context, id int64) error {
	e := m.s.events[id]
	e.IsActive = false
	m.s.events[id] = e
	return nil
}

func (m memEvents) SoftDeleteByAO(_ context.Context, aoID int64) error {
	for id, e := range m.s.events {
		if e.OrgID == aoID {
			e.IsActive = false
			m.s.events[id] = e
		}
	}
	return nil
}

func (m memEvents) LinkEventTypes(_ context.Context, eventID int64, typeIDs []int64) error {
	m.s.links[eventID] = append(m.s.links[eventID], typeIDs...)
	return nil
}

func (m memEvents) UnlinkEventTypesByAO(_ context.Context, aoID int64) error {
	for id, e := range m.s.events {
		if e.OrgID == aoID {
			delete(m.s.links, id)
		}
	}
	return nil
}

type memRequests struct{ s *memStore }

func (m memRequests) Upsert(_ context.Context, r *models.UpdateRequest) error {
	if existing, ok := m.s.rows[r.ID]; ok {
		r.CreatedAt = existing.CreatedAt
	} else {
		r.CreatedAt = time.Now().UTC()
	}
	r.UpdatedAt = time.Now().UTC()
	m.s.rows[r.ID] = *r
	return nil
}

func (m memRequests) GetByID(_ context.Context, id uuid.UUID) (*models.UpdateRequest, error) {
	r, ok := m.s.rows[id]
	if !ok {
		return nil, apperr.NotFound("request %s not found", id)
	}
	return &r, nil
}

func (m memRequests) ListPending(_ context.Context) ([]models.UpdateRequest, error) {
	var out []models.UpdateRequest
	for _, r := range m.s.rows {
		if r.Status == models.RequestStatusPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m memRequests) MarkRejected(_ context.Context, id uuid.UUID, reviewedBy string) error {
	r, ok := m.s.rows[id]
	if !ok || r.Status != models.RequestStatusPending {
		return apperr.InvalidState("request %s is not pending", id)
	}
	now := time.Now().UTC()
	r.Status = models.RequestStatusRejected
	r.ReviewedBy = &reviewedBy
	r.ReviewedAt = &now
	m.s.rows[id] = r
	return nil
}
