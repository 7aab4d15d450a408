// Package handlers exposes the routing engine over HTTP: gallery path
// dispatch, slug resolution, the published routing table, and the
// authenticated flush trigger.
package handlers

import (
	"encoding/json"
	"net/http"

	"gallery-router/internal/auth"
	"gallery-router/internal/common/logging"
	"gallery-router/internal/config"
	"gallery-router/internal/discovery"
	"gallery-router/internal/flush"
	"gallery-router/internal/redis"
	"gallery-router/internal/resolver"
	"gallery-router/internal/rules"
	"gallery-router/internal/storage"
)

type Handlers struct {
	storage    storage.Storage
	dispatcher *rules.Dispatcher
	resolver   *resolver.Resolver
	discoverer *discovery.Discoverer
	flusher    *flush.Controller
	auth       *auth.Auth
	rdb        *redis.Client
	config     *config.Config
	logger     logging.Logger
}

func New(
	store storage.Storage,
	dispatcher *rules.Dispatcher,
	res *resolver.Resolver,
	discoverer *discovery.Discoverer,
	flusher *flush.Controller,
	authHandler *auth.Auth,
	rdb *redis.Client,
	cfg *config.Config,
	logger logging.Logger,
) *Handlers {
	return &Handlers{
		storage:    store,
		dispatcher: dispatcher,
		resolver:   res,
		discoverer: discoverer,
		flusher:    flusher,
		auth:       authHandler,
		rdb:        rdb,
		config:     cfg,
		logger:     logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
