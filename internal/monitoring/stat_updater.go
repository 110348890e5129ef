package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/isdelr/metrics-bridge/internal/models"
	"github.com/isdelr/metrics-bridge/internal/services"
	"github.com/rs/zerolog/log"
)

const (
	highCPUThreshold = 90.0
	lowTPSThreshold  = 15.0
	alertCooldown    = 15 * time.Minute

	// HistoryRetention is how long recorded history points are kept.
	HistoryRetention = 24 * time.Hour
)

// StatUpdater turns metrics snapshots into history points and raises alert
// events when the host is struggling.
type StatUpdater struct {
	metrics   services.MetricsServiceProvider
	history   services.HistoryServiceProvider
	events    services.EventServiceProvider
	lastAlert map[string]time.Time
	now       func() time.Time
}

// NewStatUpdater creates a new StatUpdater. events may be nil.
func NewStatUpdater(metrics services.MetricsServiceProvider, history services.HistoryServiceProvider, events services.EventServiceProvider) *StatUpdater {
	return &StatUpdater{
		metrics:   metrics,
		history:   history,
		events:    events,
		lastAlert: make(map[string]time.Time),
		now:       time.Now,
	}
}

// RecordSnapshot takes a snapshot and stores it as a history point.
// It is not safe for concurrent use; the scheduler runs it serially.
func (su *StatUpdater) RecordSnapshot(ctx context.Context) error {
	snap := su.metrics.Snapshot(ctx)
	point := models.ResourceDataPoint{
		Timestamp:   snap.Timestamp,
		TPS:         snap.TPS,
		TickTimeMs:  snap.TickTimeMs,
		CPUUsage:    snap.CPUUsagePercent,
		RAMUsageMB:  snap.RAMUsageMB,
		PlayerCount: snap.PlayerCount,
	}
	if err := su.history.RecordPoint(point); err != nil {
		return fmt.Errorf("failed to record history point: %w", err)
	}
	su.checkAndAlert(snap)
	return nil
}

// PruneHistory drops points older than the retention window.
func (su *StatUpdater) PruneHistory(retention time.Duration) (int64, error) {
	return su.history.Prune(su.now().Add(-retention))
}

func (su *StatUpdater) checkAndAlert(snap models.MetricsSnapshot) {
	if snap.CPUUsagePercent.Valid && snap.CPUUsagePercent.Value > highCPUThreshold {
		su.alert("system.alert.cpu", fmt.Sprintf("High CPU usage (%.1f%%) detected.", snap.CPUUsagePercent.Value))
	}
	if snap.TPS.Valid && snap.TPS.Value < lowTPSThreshold {
		su.alert("system.alert.tps", fmt.Sprintf("Low TPS (%.2f) detected, average tick %.2f ms.", snap.TPS.Value, snap.TickTimeMs.Value))
	}
}

// alert records an event unless the same alert fired within the cooldown.
func (su *StatUpdater) alert(eventType, msg string) {
	now := su.now()
	if last, ok := su.lastAlert[eventType]; ok && now.Sub(last) < alertCooldown {
		return
	}
	su.lastAlert[eventType] = now

	log.Warn().Str("type", eventType).Msg(msg)
	services.RecordEvent(su.events, eventType, "warn", msg, "")
}
