package models

import "time"

// OrgType is the rank of a node in the org tree, lowest (ao) to highest (nation).
type OrgType string

const (
	OrgTypeAO     OrgType = "ao"
	OrgTypeRegion OrgType = "region"
	OrgTypeArea   OrgType = "area"
	OrgTypeSector OrgType = "sector"
	OrgTypeNation OrgType = "nation"
)

// ChainDepth is the maximum depth of the org tree (ao through nation).
const ChainDepth = 5

// Rank returns the position of the type in the hierarchy: ao=0 .. nation=4,
// -1 for an unknown type.
func (t OrgType) Rank() int {
	switch t {
	case OrgTypeAO:
		return 0
	case OrgTypeRegion:
		return 1
	case OrgTypeArea:
		return 2
	case OrgTypeSector:
		return 3
	case OrgTypeNation:
		return 4
	}
	return -1
}

// Valid reports whether t is one of the five known org types.
func (t OrgType) Valid() bool { return t.Rank() >= 0 }

// Org is a node in the organization tree. ParentID is nil for the root
// (nation) and for orphaned nodes. DefaultLocationID is set only for AOs.
type Org struct {
	ID                int64     `json:"id"`
	ParentID          *int64    `json:"parent_id,omitempty"`
	OrgType           OrgType   `json:"org_type"`
	Name              string    `json:"name"`
	DefaultLocationID *int64    `json:"default_location_id,omitempty"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// AncestorChain is the org's ancestor chain indexed by rank: index 0 holds the
// ao, index 4 the nation. Entries below the starting org's rank, and above the
// first missing parent link, are nil. Because it is a fixed-size array walk,
// traversal is bounded regardless of how parent pointers are wired in the table.
type AncestorChain [ChainDepth]*Org

// At returns the chain entry of the given type, or nil when the chain does not
// reach that level.
func (c AncestorChain) At(t OrgType) *Org {
	r := t.Rank()
	if r < 0 {
		return nil
	}
	return c[r]
}

// Set places o at its rank. Orgs with an unknown type are ignored.
func (c *AncestorChain) Set(o *Org) {
	if o == nil {
		return
	}
	if r := o.OrgType.Rank(); r >= 0 {
		c[r] = o
	}
}

// IDs returns the non-nil org ids in the chain, lowest rank first.
func (c AncestorChain) IDs() []int64 {
	ids := make([]int64, 0, ChainDepth)
	for _, o := range c {
		if o != nil {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

// Contains reports whether any entry in the chain has the given id.
func (c AncestorChain) Contains(id int64) bool {
	for _, o := range c {
		if o != nil && o.ID == id {
			return true
		}
	}
	return false
}
