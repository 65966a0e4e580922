// Package permissions decides whether a principal may act on an org node by
// direct or ancestor role matching over the org tree.
package permissions

import (
	"context"
	"sync"

	"github.com/hubatlas/backend/internal/models"
	"github.com/hubatlas/backend/internal/orgs"
)

// Mode says how a grant was obtained.
type Mode string

const (
	ModeDirect   Mode = "direct"
	ModeAncestor Mode = "ancestor"
	ModeNone     Mode = "none"
)

// Decision is the outcome of a role check. MatchedOrgID is the org whose
// assignment satisfied the check: the target itself for direct grants, the
// ancestor actually matched for ancestor grants.
type Decision struct {
	Granted      bool            `json:"granted"`
	MatchedOrgID int64           `json:"matched_org_id,omitempty"`
	MatchedRole  models.RoleName `json:"matched_role,omitempty"`
	Mode         Mode            `json:"mode"`
}

// Resolver evaluates role checks against ancestor chains.
type Resolver struct {
	chains orgs.ChainSource
}

// NewResolver creates a permission resolver.
func NewResolver(chains orgs.ChainSource) *Resolver {
	return &Resolver{chains: chains}
}

// CheckRole decides whether the principal's assignments grant the required
// role on the target org. Absence of permission is a normal denied Decision,
// not an error. A target with a broken ancestor chain simply yields no
// ancestor matches; callers that require an ancestor raise their own error.
func (r *Resolver) CheckRole(ctx context.Context, assignments []models.RoleAssignment, targetOrgID int64, required models.RoleName) (Decision, error) {
	for _, a := range assignments {
		if a.OrgID == targetOrgID && a.RoleName.Satisfies(required) {
			return Decision{Granted: true, MatchedOrgID: a.OrgID, MatchedRole: a.RoleName, Mode: ModeDirect}, nil
		}
	}

	chain, err := r.chains.AncestorChain(ctx, targetOrgID)
	if err != nil {
		return Decision{Mode: ModeNone}, err
	}
	for _, ancestor := range chain {
		if ancestor == nil || ancestor.ID == targetOrgID {
			continue
		}
		for _, a := range assignments {
			if a.OrgID == ancestor.ID && a.RoleName.Satisfies(required) {
				return Decision{Granted: true, MatchedOrgID: ancestor.ID, MatchedRole: a.RoleName, Mode: ModeAncestor}, nil
			}
		}
	}
	return Decision{Mode: ModeNone}, nil
}

// CheckAll fans out one CheckRole per target org concurrently and combines
// the decisions with logical AND: any single denial fails the whole gate.
func (r *Resolver) CheckAll(ctx context.Context, assignments []models.RoleAssignment, targetOrgIDs []int64, required models.RoleName) (bool, error) {
	if len(targetOrgIDs) == 0 {
		return false, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		granted  = true
	)
	for _, orgID := range targetOrgIDs {
		wg.Add(1)
		go func(orgID int64) {
			defer wg.Done()
			d, err := r.CheckRole(ctx, assignments, orgID, required)
			mu.Lock()
			defer mu.Unlock()
			if err != nil && firstErr == nil {
				firstErr = err
			}
			if !d.Granted {
				granted = false
			}
		}(orgID)
	}
	wg.Wait()

	if firstErr != nil {
		return false, firstErr
	}
	return granted, nil
}
