package rules

// Query variables the routing table may populate. The host's request parser
// only preserves declared variables, so registration re-runs on every
// bootstrap pass; the set itself is fixed.
const (
	VarProcedureTitle   = "procedure_title"
	VarCaseSuffix       = "case_suffix"
	VarFavoritesSection = "favorites_section"
	VarFilterCategory   = "filter_category"
	VarFilterProcedure  = "filter_procedure"
	VarFavoritesPage    = "favorites_page"
)

// Registry declares the query variables accepted from matched rules.
type Registry struct {
	vars map[string]bool
}

// NewRegistry returns a registry populated with the fixed variable set.
// Calling it again yields an identical set; registration is idempotent.
func NewRegistry() *Registry {
	r := &Registry{vars: make(map[string]bool)}
	for _, v := range RegisteredVars() {
		r.vars[v] = true
	}
	return r
}

// RegisteredVars returns the fixed set of custom query variables.
func RegisteredVars() []string {
	return []string{
		VarProcedureTitle,
		VarCaseSuffix,
		VarFavoritesSection,
		VarFilterCategory,
		VarFilterProcedure,
		VarFavoritesPage,
	}
}

// Accepts reports whether a query variable is declared. The routing target
// keys (page_id, pagename) are always accepted.
func (r *Registry) Accepts(name string) bool {
	if name == "page_id" || name == "pagename" {
		return true
	}
	return r.vars[name]
}
