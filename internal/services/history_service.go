package services

import (
	"database/sql"
	"time"

	"github.com/isdelr/metrics-bridge/internal/models"
)

// HistoryServiceProvider defines the interface for metrics history.
type HistoryServiceProvider interface {
	RecordPoint(point models.ResourceDataPoint) error
	GetHistory(since time.Time) ([]models.ResourceDataPoint, error)
	Prune(before time.Time) (int64, error)
}

// HistoryService stores periodic metrics points in the database.
type HistoryService struct {
	db *sql.DB
}

// NewHistoryService creates a new HistoryService.
func NewHistoryService(db *sql.DB) *HistoryService {
	return &HistoryService{db: db}
}

// RecordPoint inserts one history row. Unavailable values are stored as NULL.
func (s *HistoryService) RecordPoint(point models.ResourceDataPoint) error {
	_, err := s.db.Exec(`
	INSERT INTO resource_history (timestamp, tps, tick_time_ms, cpu_usage, ram_usage_mb, players_current)
	VALUES (?, ?, ?, ?, ?, ?)`,
		point.Timestamp.UTC(), nullFloat(point.TPS), nullFloat(point.TickTimeMs), nullFloat(point.CPUUsage),
		point.RAMUsageMB, nullInt(point.PlayerCount))
	return err
}

// GetHistory returns points recorded at or after since, oldest first.
func (s *HistoryService) GetHistory(since time.Time) ([]models.ResourceDataPoint, error) {
	rows, err := s.db.Query(`
	SELECT timestamp, tps, tick_time_ms, cpu_usage, ram_usage_mb, players_current
	FROM resource_history WHERE timestamp >= ? ORDER BY timestamp ASC`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []models.ResourceDataPoint{}
	for rows.Next() {
		var dp models.ResourceDataPoint
		var tps, tick, cpu sql.NullFloat64
		var players sql.NullInt64
		if err := rows.Scan(&dp.Timestamp, &tps, &tick, &cpu, &dp.RAMUsageMB, &players); err != nil {
			return nil, err
		}
		dp.TPS = fromNullFloat(tps)
		dp.TickTimeMs = fromNullFloat(tick)
		dp.CPUUsage = fromNullFloat(cpu)
		if players.Valid {
			dp.PlayerCount = models.Available(int(players.Int64))
		}
		history = append(history, dp)
	}
	return history, rows.Err()
}

// Prune deletes points recorded before the cutoff.
func (s *HistoryService) Prune(before time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM resource_history WHERE timestamp < ?", before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullFloat(f models.Field[float64]) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f.Value, Valid: f.Valid}
}

func nullInt(f models.Field[int]) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(f.Value), Valid: f.Valid}
}

func fromNullFloat(f sql.NullFloat64) models.Field[float64] {
	if !f.Valid {
		return models.Missing[float64]()
	}
	return models.Available(f.Float64)
}
