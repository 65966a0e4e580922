package requests

import (
	"encoding/json"
	"fmt"

	"github.com/hubatlas/backend/internal/models"
)

// Payload is the closed union of request variants. Every variant carries only
// the fields its mutation needs; the dispatcher switches over the concrete
// types and rejects anything else.
type Payload interface {
	Kind() models.RequestKind
}

// LocationFields are the caller-editable fields of a location.
type LocationFields struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Address1    string   `json:"address1,omitempty"`
	Address2    string   `json:"address2,omitempty"`
	City        string   `json:"city,omitempty"`
	State       string   `json:"state,omitempty"`
	Zip         string   `json:"zip,omitempty"`
	Country     string   `json:"country,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// Apply copies the fields onto a location.
func (f LocationFields) Apply(l *models.Location) {
	l.Name = f.Name
	l.Description = f.Description
	l.Address1 = f.Address1
	l.Address2 = f.Address2
	l.City = f.City
	l.State = f.State
	l.Zip = f.Zip
	l.Country = f.Country
	l.Latitude = f.Latitude
	l.Longitude = f.Longitude
}

// EventFields are the caller-editable fields of an event.
type EventFields struct {
	Name                string  `json:"name"`
	Description         string  `json:"description,omitempty"`
	DayOfWeek           *string `json:"day_of_week,omitempty"`
	StartTime           *string `json:"start_time,omitempty"`
	EndTime             *string `json:"end_time,omitempty"`
	RecurrencePattern   *string `json:"recurrence_pattern,omitempty"`
	RecurrenceInterval  *int    `json:"recurrence_interval,omitempty"`
	IndexWithinInterval *int    `json:"index_within_interval,omitempty"`
}

// Apply copies the fields onto an event.
func (f EventFields) Apply(e *models.Event) {
	e.Name = f.Name
	e.Description = f.Description
	e.DayOfWeek = f.DayOfWeek
	e.StartTime = f.StartTime
	e.EndTime = f.EndTime
	e.RecurrencePattern = f.RecurrencePattern
	e.RecurrenceInterval = f.RecurrenceInterval
	e.IndexWithinInterval = f.IndexWithinInterval
}

// CreateLocationAndEvent creates a location, a new AO under the request's
// region, and the AO's first event in one shot.
type CreateLocationAndEvent struct {
	AOName       string         `json:"ao_name"`
	Location     LocationFields `json:"location"`
	Event        EventFields    `json:"event"`
	EventTypeIDs []int64        `json:"event_type_ids,omitempty"`
}

// CreateEvent adds an event to an existing AO, on the AO's first location.
type CreateEvent struct {
	AOID         int64       `json:"ao_id"`
	Event        EventFields `json:"event"`
	EventTypeIDs []int64     `json:"event_type_ids,omitempty"`
}

// EditEvent updates an existing event's fields.
type EditEvent struct {
	EventID int64       `json:"event_id"`
	Event   EventFields `json:"event"`
}

// EditAOAndLocation updates an AO's name and its first location's fields.
type EditAOAndLocation struct {
	AOID     int64          `json:"ao_id"`
	AOName   string         `json:"ao_name,omitempty"`
	Location LocationFields `json:"location"`
}

// MoveAOToDifferentRegion reparents an AO under a new region and forks its
// shared locations into that region.
type MoveAOToDifferentRegion struct {
	AOID             int64 `json:"ao_id"`
	OriginalRegionID int64 `json:"original_region_id"`
	NewRegionID      int64 `json:"new_region_id"`
}

// MoveAOToNewLocation creates a fresh location in the AO's region, makes it
// the AO's default, and re-points all of the AO's events to it.
type MoveAOToNewLocation struct {
	AOID     int64          `json:"ao_id"`
	Location LocationFields `json:"location"`
}

// MoveAOToDifferentLocation points the AO and all of its events at an
// existing location.
type MoveAOToDifferentLocation struct {
	AOID       int64 `json:"ao_id"`
	LocationID int64 `json:"location_id"`
}

// MoveEventToDifferentAO re-homes an event onto another AO's first location.
type MoveEventToDifferentAO struct {
	EventID int64 `json:"event_id"`
	AOID    int64 `json:"ao_id"`
}

// MoveEventToNewLocation creates a fresh location and re-points the event to it.
type MoveEventToNewLocation struct {
	EventID  int64          `json:"event_id"`
	Location LocationFields `json:"location"`
}

// EditLegacy is the catch-all variant kept for older clients: it creates or
// updates an AO, then optionally creates or updates one event.
type EditLegacy struct {
	AOID     *int64          `json:"ao_id,omitempty"`
	AOName   string          `json:"ao_name,omitempty"`
	Location *LocationFields `json:"location,omitempty"`
	EventID  *int64          `json:"event_id,omitempty"`
	Event    *EventFields    `json:"event,omitempty"`
}

// DeleteEvent soft-deletes an event.
type DeleteEvent struct {
	EventID int64 `json:"event_id"`
}

// DeleteAO soft-deletes an AO, cascades to its events, and unlinks their
// event-type associations.
type DeleteAO struct {
	AOID int64 `json:"ao_id"`
}

func (CreateLocationAndEvent) Kind() models.RequestKind    { return models.KindCreateLocationAndEvent }
func (CreateEvent) Kind() models.RequestKind               { return models.KindCreateEvent }
func (EditEvent) Kind() models.RequestKind                 { return models.KindEditEvent }
func (EditAOAndLocation) Kind() models.RequestKind         { return models.KindEditAOAndLocation }
func (MoveAOToDifferentRegion) Kind() models.RequestKind   { return models.KindMoveAOToDifferentRegion }
func (MoveAOToNewLocation) Kind() models.RequestKind       { return models.KindMoveAOToNewLocation }
func (MoveAOToDifferentLocation) Kind() models.RequestKind { return models.KindMoveAOToDifferentLocation }
func (MoveEventToDifferentAO) Kind() models.RequestKind    { return models.KindMoveEventToDifferentAO }
func (MoveEventToNewLocation) Kind() models.RequestKind    { return models.KindMoveEventToNewLocation }
func (EditLegacy) Kind() models.RequestKind                { return models.KindEditLegacy }
func (DeleteEvent) Kind() models.RequestKind               { return models.KindDeleteEvent }
func (DeleteAO) Kind() models.RequestKind                  { return models.KindDeleteAO }

// UnmarshalPayload decodes raw JSON into the variant named by kind.
func UnmarshalPayload(kind models.RequestKind, raw json.RawMessage) (Payload, error) {
	var p Payload
	switch kind {
	case models.KindCreateLocationAndEvent:
		p = &CreateLocationAndEvent{}
	case models.KindCreateEvent:
		p = &CreateEvent{}
	case models.KindEditEvent:
		p = &EditEvent{}
	case models.KindEditAOAndLocation:
		p = &EditAOAndLocation{}
	case models.KindMoveAOToDifferentRegion:
		p = &MoveAOToDifferentRegion{}
	case models.KindMoveAOToNewLocation:
		p = &MoveAOToNewLocation{}
	case models.KindMoveAOToDifferentLocation:
		p = &MoveAOToDifferentLocation{}
	case models.KindMoveEventToDifferentAO:
		p = &MoveEventToDifferentAO{}
	case models.KindMoveEventToNewLocation:
		p = &MoveEventToNewLocation{}
	case models.KindEditLegacy:
		p = &EditLegacy{}
	case models.KindDeleteEvent:
		p = &DeleteEvent{}
	case models.KindDeleteAO:
		p = &DeleteAO{}
	default:
		return nil, fmt.Errorf("unknown request type %q", kind)
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return p, nil
}

// OrgsToCheck lists the org ids the permission gate must approve for a
// payload. Checks fan out concurrently and combine with logical AND.
func OrgsToCheck(p Payload, regionID int64) []int64 {
	switch p := p.(type) {
	case *MoveAOToDifferentRegion:
		return []int64{p.OriginalRegionID, p.NewRegionID}
	case *CreateEvent:
		return []int64{p.AOID}
	case *EditAOAndLocation:
		return []int64{p.AOID}
	case *MoveAOToNewLocation:
		return []int64{p.AOID}
	case *MoveAOToDifferentLocation:
		return []int64{p.AOID}
	case *DeleteAO:
		return []int64{p.AOID}
	case *MoveEventToDifferentAO:
		return []int64{regionID, p.AOID}
	default:
		return []int64{regionID}
	}
}
