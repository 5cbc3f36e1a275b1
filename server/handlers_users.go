package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/jackbot/telemetry"
	"github.com/onnwee/jackbot/users"
)

// authResponse is returned by POST /user/auth.
type authResponse struct {
	User             users.Record `json:"user"`
	SkippedTemplates []string     `json:"skipped_templates"`
}

// HandleUserAuth registers or refreshes a user: the platform id is resolved
// when missing, then ownership is correlated and persisted.
func (h *Handlers) HandleUserAuth(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodPost) {
		return
	}
	var rec users.Record
	if !decodeJSON(w, r, &rec) {
		return
	}
	rec.Username = users.Key(rec.Username)
	if rec.Username == "" {
		http.Error(w, "username required", http.StatusBadRequest)
		return
	}
	logger := telemetry.LoggerWithCorr(r.Context()).With(slog.String("username", rec.Username), slog.String("component", "user_auth"))

	// Server-owned fields are never taken from the request body.
	existing, err := h.deps.Users.Get(r.Context(), rec.Username)
	switch {
	case err == nil:
		rec.Admin = existing.Admin
		if rec.TwitchID == "" {
			rec.TwitchID = existing.TwitchID
		}
		if rec.Raw == nil {
			rec.Raw = existing.Raw
		}
	case errors.Is(err, users.ErrNotFound):
		rec.Admin = false
	default:
		logger.Error("user lookup failed", slog.Any("err", err))
		http.Error(w, "user store unavailable", http.StatusServiceUnavailable)
		return
	}

	if rec.TwitchID == "" && h.deps.Helix != nil {
		id, err := h.deps.Helix.GetUserID(r.Context(), rec.Username)
		if err != nil {
			logger.Warn("twitch id lookup failed", slog.Any("err", err))
		} else {
			rec.TwitchID = id
		}
	}

	res, err := h.deps.Correlator.Correlate(r.Context(), rec)
	if err != nil {
		logger.Warn("ownership correlation failed", slog.Any("err", err))
		http.Error(w, "ledger unavailable, try again later", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: res.User, SkippedTemplates: res.Skipped})
}

// HandleUserGet returns the stored record for /users/{username}.
func (h *Handlers) HandleUserGet(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodGet) {
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/users/")
	if name == "" || strings.Contains(name, "/") {
		http.NotFound(w, r)
		return
	}
	rec, err := h.deps.Users.Get(r.Context(), name)
	if errors.Is(err, users.ErrNotFound) {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("user lookup failed", slog.Any("err", err), slog.String("component", "users"))
		http.Error(w, "user store unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
