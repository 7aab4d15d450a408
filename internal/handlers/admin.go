package handlers

import (
	"encoding/json"
	"net/http"

	"gallery-router/internal/common/logging"
)

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	CSRF  string `json:"csrf"`
}

type flushResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Login exchanges the admin password for a session token and CSRF token.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	token, csrf, err := h.auth.Login(r.Context(), req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, CSRF: csrf})
}

// TriggerFlush forces a recompile-and-publish cycle, clearing caches and any
// stale-rules advisory. The router guards this with auth + CSRF middleware.
func (h *Handlers) TriggerFlush(w http.ResponseWriter, r *http.Request) {
	if err := h.flusher.ForceFlush(r.Context()); err != nil {
		h.logger.Error("manual flush failed", err)
		writeJSON(w, http.StatusInternalServerError, flushResponse{
			Success: false,
			Message: "routing table rebuild failed; previous table remains active",
		})
		return
	}

	writeJSON(w, http.StatusOK, flushResponse{
		Success: true,
		Message: "routing table recompiled and published",
	})
}

// ChangePassword replaces the stored admin password.
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.auth.ChangePassword(r.Context(), req.NewPassword); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info("admin password changed", logging.String("remote_addr", r.RemoteAddr))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
