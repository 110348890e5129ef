package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/isdelr/metrics-bridge/internal/models"
	"github.com/isdelr/metrics-bridge/internal/services"
)

const (
	defaultHistoryMinutes = 60
	maxHistoryMinutes     = 24 * 60
)

// MetricsHandler serves metrics snapshots and recorded history.
type MetricsHandler struct {
	metrics services.MetricsServiceProvider
	history services.HistoryServiceProvider
}

// NewMetricsHandler creates a new MetricsHandler. history may be nil.
func NewMetricsHandler(metrics services.MetricsServiceProvider, history services.HistoryServiceProvider) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, history: history}
}

// Get returns a fresh snapshot.
func (h *MetricsHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.metrics.Snapshot(r.Context()))
}

// History returns the points recorded within ?minutes= (default one hour).
func (h *MetricsHandler) History(w http.ResponseWriter, r *http.Request) {
	minutes, err := strconv.Atoi(r.URL.Query().Get("minutes"))
	if err != nil || minutes <= 0 {
		minutes = defaultHistoryMinutes
	}
	if minutes > maxHistoryMinutes {
		minutes = maxHistoryMinutes
	}

	points := []models.ResourceDataPoint{}
	if h.history != nil {
		points, err = h.history.GetHistory(time.Now().Add(-time.Duration(minutes) * time.Minute))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, points)
}

// Test is a cheap authenticated liveness probe.
func (h *MetricsHandler) Test(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":              "ok",
		"timestamp":           time.Now().UnixMilli(),
		"websocket_supported": true,
	})
}
