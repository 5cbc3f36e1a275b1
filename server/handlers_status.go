package server

import (
	"log/slog"
	"net/http"

	"github.com/onnwee/jackbot/status"
	"github.com/onnwee/jackbot/telemetry"
)

// HandleRoot answers the API greeting; any other unmatched path is 404.
func (h *Handlers) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if !methodAllowed(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "Ready to chat!"})
}

// HandleTwitchStatus returns the bot status on GET and replaces it on PUT or
// PATCH. Both write methods replace the whole record.
func (h *Handlers) HandleTwitchStatus(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.deps.Registry.Get())
	case http.MethodPut, http.MethodPatch:
		var next status.BotStatus
		if !decodeJSON(w, r, &next) {
			return
		}
		if next.Channels == nil {
			next.Channels = []string{}
		}
		h.deps.Registry.Set(next)
		telemetry.RecordStatusUpdate()
		telemetry.LoggerWithCorr(r.Context()).Info("bot status replaced",
			slog.Any("channels", next.Channels),
			slog.String("mode", next.Mode),
			slog.String("control_target", next.ControlTarget),
			slog.String("component", "status"))
		w.WriteHeader(http.StatusNoContent)
	default:
		methodAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodPatch)
	}
}
