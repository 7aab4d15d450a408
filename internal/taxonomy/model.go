// Package taxonomy models the procedure taxonomy snapshot served by the
// remote gallery API and provides the client used to fetch it. The snapshot
// is treated as read-only and possibly stale; the engine never mutates it.
package taxonomy

import "context"

// Snapshot is the nested category/procedure structure returned by the
// gallery API for one credential scope.
type Snapshot struct {
	Data []Category `json:"data"`
}

// Category groups procedures under a display name.
type Category struct {
	Name       string      `json:"name"`
	Procedures []Procedure `json:"procedures"`
}

// Procedure is a single gallery procedure. IDs is never empty for a valid
// node; the first element is the canonical numeric id.
type Procedure struct {
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	IDs       []int  `json:"ids"`
	CaseCount int    `json:"case_count"`
	Sensitive bool   `json:"sensitive"`
}

// CanonicalID returns the procedure's canonical numeric id. A node with an
// empty id list is unresolvable and reports ok=false; it must be skipped,
// never treated as id 0.
func (p *Procedure) CanonicalID() (int, bool) {
	if len(p.IDs) == 0 {
		return 0, false
	}
	return p.IDs[0], true
}

// Provider supplies taxonomy snapshots for a credential scope.
type Provider interface {
	GetTaxonomy(ctx context.Context, scope string) (*Snapshot, error)
}
