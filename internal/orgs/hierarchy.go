package orgs

import (
	"context"

	"github.com/hubatlas/backend/internal/models"
)

// ChainSource resolves an org's rank-indexed ancestor chain. Implemented by
// Repository and by the redis-backed ChainCache.
type ChainSource interface {
	AncestorChain(ctx context.Context, orgID int64) (models.AncestorChain, error)
}

// Walker answers ancestor/descendant questions over the org tree. Every walk
// runs over a bounded rank-indexed chain, so a miswired parent pointer can
// cost at most one extra lookup, never an unbounded recursion.
type Walker struct {
	chains ChainSource
}

// NewWalker creates a hierarchy walker.
func NewWalker(chains ChainSource) *Walker {
	return &Walker{chains: chains}
}

// NearestAncestorOfType returns the org itself when it already has the wanted
// type, otherwise the nearest ancestor of that type, or nil when the chain
// does not reach that level.
func (w *Walker) NearestAncestorOfType(ctx context.Context, orgID int64, t models.OrgType) (*models.Org, error) {
	chain, err := w.chains.AncestorChain(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return chain.At(t), nil
}

// EditableOrgs is the visibility scope derived from a principal's assignments.
type EditableOrgs struct {
	// OrgIDs maps org id to its type for every org the principal can see.
	OrgIDs map[int64]models.OrgType
	// IsNationAdmin short-circuits all filtering: the principal holds admin
	// or editor at a nation org and has global visibility.
	IsNationAdmin bool
}

// Visible reports whether any org in the chain falls inside the scope.
func (e EditableOrgs) Visible(chain models.AncestorChain) bool {
	if e.IsNationAdmin {
		return true
	}
	for id := range e.OrgIDs {
		if chain.Contains(id) {
			return true
		}
	}
	return false
}

// CollectEditableOrgs unions the orgs a principal can edit or review. Only
// admin and editor assignments contribute. An assignment at a nation org
// short-circuits to global visibility (for editor as well as admin; the two
// are treated the same at nation level). Otherwise each assigned org is
// widened two levels upward, with AOs first promoted to their region, and the
// touched ids de-duplicated.
func (w *Walker) CollectEditableOrgs(ctx context.Context, assignments []models.RoleAssignment) (EditableOrgs, error) {
	out := EditableOrgs{OrgIDs: make(map[int64]models.OrgType)}
	for _, a := range assignments {
		if !a.RoleName.CanEdit() {
			continue
		}
		chain, err := w.chains.AncestorChain(ctx, a.OrgID)
		if err != nil {
			return EditableOrgs{}, err
		}
		assigned := findInChain(chain, a.OrgID)
		if assigned == nil {
			continue
		}
		if assigned.OrgType == models.OrgTypeNation {
			return EditableOrgs{IsNationAdmin: true}, nil
		}
		start := assigned.OrgType.Rank()
		if assigned.OrgType == models.OrgTypeAO {
			start = models.OrgTypeRegion.Rank()
		}
		for rank := start; rank <= start+2 && rank < models.ChainDepth; rank++ {
			if o := chain[rank]; o != nil {
				out.OrgIDs[o.ID] = o.OrgType
			}
		}
	}
	return out, nil
}

func findInChain(chain models.AncestorChain, orgID int64) *models.Org {
	for _, o := range chain {
		if o != nil && o.ID == orgID {
			return o
		}
	}
	return nil
}
