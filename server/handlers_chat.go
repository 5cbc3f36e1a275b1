package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/onnwee/jackbot/bridge"
	"github.com/onnwee/jackbot/chat"
	"github.com/onnwee/jackbot/telemetry"
)

// HandleTwitchMessage stores a chat event and forwards it to the control
// bridge. A bridge failure is logged; the stored event stays.
func (h *Handlers) HandleTwitchMessage(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodPost) {
		return
	}
	var ev chat.Event
	if !decodeJSON(w, r, &ev) {
		return
	}
	ev.Channel = strings.ToLower(strings.TrimSpace(ev.Channel))
	if ev.Channel == "" {
		http.Error(w, "channel required", http.StatusBadRequest)
		return
	}

	received := h.deps.Store.Append(ev)
	ev.ReceiptTime = received
	ev = ev.Normalize()

	logger := telemetry.LoggerWithCorr(r.Context())
	logger.Debug("chat event stored", slog.String("channel", ev.Channel), slog.String("author", ev.AuthorName), slog.String("component", "chat"))

	if h.deps.Bridge != nil {
		if err := h.deps.Bridge.Send(ev); err != nil {
			if errors.Is(err, bridge.ErrNoTarget) {
				logger.Debug("control bridge idle", slog.String("component", "bridge"))
			} else {
				logger.Warn("control message not sent", slog.Any("err", err), slog.String("channel", ev.Channel), slog.String("component", "bridge"))
			}
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]time.Time{"receipt_time": received})
}

// HandleGetMessages returns the display projection of stored events, filtered
// by seconds_history and repeated channel_names. Malformed input yields [].
func (h *Handlers) HandleGetMessages(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodGet) {
		return
	}
	out := []chat.Display{}
	seconds, ok := parseSecondsHistory(r)
	if !ok {
		writeJSON(w, http.StatusOK, out)
		return
	}

	var channels []string
	for _, c := range r.URL.Query()["channel_names"] {
		for _, part := range strings.Split(c, ",") {
			if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
				channels = append(channels, part)
			}
		}
	}

	events := h.deps.Store.Query(chat.Query{
		Window:   time.Duration(seconds) * time.Second,
		Channels: channels,
	})
	for _, ev := range events {
		out = append(out, ev.Display())
	}
	writeJSON(w, http.StatusOK, out)
}
