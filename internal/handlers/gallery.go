package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"gallery-router/internal/common/logging"
	"gallery-router/internal/rules"
	"gallery-router/internal/storage"
)

// DispatchGallery matches a gallery path against the published routing table
// and returns the internal query variables the matched rule produced. This is
// the request-time half of the engine: the rendering layer consumes the
// variable map to decide what to show.
func (h *Handlers) DispatchGallery(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	vars, ok := h.dispatcher.Match(path)
	if !ok {
		writeError(w, http.StatusNotFound, "no routing rule matches this path")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"path": path,
		"vars": vars,
	})
}

// ResolveSlug converts a procedure path slug into its canonical procedure id.
// A miss is a 404 with found=false rather than an error: an unresolvable slug
// is an expected outcome, not a fault.
func (h *Handlers) ResolveSlug(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = h.config.APIScope
	}

	id, found, err := h.resolver.Resolve(r.Context(), slug, scope)
	if err != nil {
		h.logger.Error("slug resolution failed", err, logging.String("slug", slug))
		writeError(w, http.StatusBadGateway, "taxonomy lookup failed")
		return
	}

	status := http.StatusOK
	if !found {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]interface{}{
		"slug":         slug,
		"found":        found,
		"procedure_id": id,
	})
}

// GetRoutes returns the currently published routing table.
func (h *Handlers) GetRoutes(w http.ResponseWriter, r *http.Request) {
	table := h.dispatcher.Table()
	if table == nil {
		writeError(w, http.StatusServiceUnavailable, "no routing table published yet")
		return
	}
	writeJSON(w, http.StatusOK, table)
}

// GetPages returns the gallery pages discovery currently yields.
func (h *Handlers) GetPages(w http.ResponseWriter, r *http.Request) {
	pages := h.discoverer.DiscoverPages(r.Context())
	writeJSON(w, http.StatusOK, pages)
}

// GetQueryVars returns the registered query variables.
func (h *Handlers) GetQueryVars(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"vars": rules.RegisteredVars(),
	})
}

// Health reports liveness of the service and its backing stores.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": "ok"}

	if err := h.storage.Health(); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["storage"] = err.Error()
	}

	if h.rdb != nil {
		if err := h.rdb.Health(); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["redis"] = err.Error()
		}
	}

	if table := h.dispatcher.Table(); table != nil {
		body["rules"] = strconv.Itoa(len(table.Rules))
	}

	// Stale-rules advisory: the published table no longer matches what a
	// fresh compile yields. POST /api/flush republishes and clears it.
	if advisory, err := h.storage.GetSetting(r.Context(), storage.SettingRulesAdvisory); err == nil && advisory != "" {
		body["rules_advisory"] = advisory
	}

	writeJSON(w, status, body)
}
