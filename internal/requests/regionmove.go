package requests

import (
	"context"

	"github.com/hubatlas/backend/internal/apperr"
)

// moveAOLocations forks the locations referenced by the AO's events into the
// new region. Locations are owned by a region while events reference them
// across AOs, so transferring a location outright would silently drag other
// AOs' events along. Instead, per location:
//
//  1. verify it still belongs to the old region (guards against
//     partially-migrated state),
//  2. insert a field-for-field copy owned by the new region,
//  3. bulk re-point the AO's events from the old location to the copy,
//  4. soft-delete the old location only when no event anywhere references it.
//
// Runs inside the dispatcher's transaction; returns the forked location ids.
func moveAOLocations(ctx context.Context, s Store, aoID, oldRegionID, newRegionID int64) ([]int64, error) {
	locs, err := s.Locations().ActiveForAOEvents(ctx, aoID)
	if err != nil {
		return nil, err
	}

	var newIDs []int64
	for i := range locs {
		old := &locs[i]
		if old.OrgID != oldRegionID {
			return nil, apperr.InvalidState("locations to move are not in the old region")
		}

		fork := old.CopyTo(newRegionID)
		if err := s.Locations().Create(ctx, fork); err != nil {
			return nil, err
		}

		eventIDs, err := s.Events().IDsByAOAndLocation(ctx, aoID, old.ID)
		if err != nil {
			return nil, err
		}
		if err := s.Events().SetLocation(ctx, eventIDs, fork.ID); err != nil {
			return nil, err
		}

		ao, err := s.Orgs().GetByID(ctx, aoID)
		if err != nil {
			return nil, err
		}
		if ao.DefaultLocationID != nil && *ao.DefaultLocationID == old.ID {
			if err := s.Orgs().SetDefaultLocation(ctx, aoID, fork.ID); err != nil {
				return nil, err
			}
		}

		inUse, err := s.Events().AnyWithLocation(ctx, old.ID)
		if err != nil {
			return nil, err
		}
		if !inUse {
			if err := s.Locations().SoftDelete(ctx, old.ID); err != nil {
				return nil, err
			}
		}

		newIDs = append(newIDs, fork.ID)
	}
	return newIDs, nil
}
