package handlers

import (
	"net/http"
	"strconv"

	"github.com/isdelr/metrics-bridge/internal/services"
	"github.com/rs/zerolog/log"
)

const maxEventLimit = 500

// EventHandler handles HTTP requests related to audit events.
type EventHandler struct {
	service services.EventServiceProvider
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(service services.EventServiceProvider) *EventHandler {
	return &EventHandler{service: service}
}

// GetRecent handles the request to get recent activity/events.
func (h *EventHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	limitStr := r.URL.Query().Get("limit")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 20 // Default limit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	events, err := h.service.GetRecentEvents(limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to retrieve events")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve events")
		return
	}

	writeJSON(w, http.StatusOK, events)
}
