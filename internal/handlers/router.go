package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"gallery-router/internal/middleware"
)

// Router assembles the HTTP routes. Dispatch and resolution are public;
// anything that mutates routing state sits behind auth, with CSRF on the
// flush trigger.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.LoggingMiddleware)

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	api.HandleFunc("/resolve/{slug}", h.ResolveSlug).Methods(http.MethodGet)
	api.HandleFunc("/routes", h.GetRoutes).Methods(http.MethodGet)
	api.HandleFunc("/pages", h.GetPages).Methods(http.MethodGet)
	api.HandleFunc("/queryvars", h.GetQueryVars).Methods(http.MethodGet)

	api.Handle("/flush", h.auth.RequireCSRF(http.HandlerFunc(h.TriggerFlush))).Methods(http.MethodPost)
	api.Handle("/password", h.auth.RequireCSRF(http.HandlerFunc(h.ChangePassword))).Methods(http.MethodPost)

	// Catch-all dispatch: compiled patterns embed the page slug, so the
	// whole site-relative path is matched, not a fixed prefix.
	r.PathPrefix("/").HandlerFunc(h.DispatchGallery).Methods(http.MethodGet)

	return r
}
