package services

import (
	"database/sql"
	"testing"
	"time"

	"github.com/isdelr/metrics-bridge/internal/database"
	"github.com/isdelr/metrics-bridge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEventService_CreateAndList(t *testing.T) {
	t.Parallel()

	events := NewEventService(newTestDB(t))
	actor := "admin"
	require.NoError(t, events.CreateEvent("user.create", "info", "first", &actor))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, events.CreateEvent("system.alert.cpu", "warn", "second", nil))

	got, err := events.GetRecentEvents(10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].Message, "newest first")
	assert.Nil(t, got[0].Actor)
	require.NotNil(t, got[1].Actor)
	assert.Equal(t, "admin", *got[1].Actor)
	assert.NotEmpty(t, got[1].ID)

	limited, err := events.GetRecentEvents(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRecordEvent(t *testing.T) {
	t.Parallel()

	rec := &recordingEvents{}
	RecordEvent(rec, "auth.login", "info", "hello", "")
	RecordEvent(rec, "auth.logout", "info", "bye", "bob")

	require.Len(t, rec.events, 2)
	assert.Nil(t, rec.events[0].Actor)
	require.NotNil(t, rec.events[1].Actor)
	assert.Equal(t, "bob", *rec.events[1].Actor)

	assert.NotPanics(t, func() { RecordEvent(nil, "x", "info", "y", "") })
}

func TestHistoryService_RecordGetPrune(t *testing.T) {
	t.Parallel()

	history := NewHistoryService(newTestDB(t))
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, history.RecordPoint(models.ResourceDataPoint{
		Timestamp:   base,
		TPS:         models.Available(19.5),
		TickTimeMs:  models.Available(51.2),
		CPUUsage:    models.Missing[float64](),
		RAMUsageMB:  512,
		PlayerCount: models.Available(3),
	}))
	require.NoError(t, history.RecordPoint(models.ResourceDataPoint{
		Timestamp:  base.Add(time.Hour),
		TPS:        models.Missing[float64](),
		RAMUsageMB: 600,
	}))

	points, err := history.GetHistory(base.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, models.Available(19.5), points[0].TPS)
	assert.False(t, points[0].CPUUsage.Valid)
	assert.Equal(t, models.Available(3), points[0].PlayerCount)
	assert.False(t, points[1].TPS.Valid)
	assert.False(t, points[1].PlayerCount.Valid)
	assert.Equal(t, int64(600), points[1].RAMUsageMB)

	recent, err := history.GetHistory(base.Add(30 * time.Minute))
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	n, err := history.Prune(base.Add(30 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	points, err = history.GetHistory(time.Time{})
	require.NoError(t, err)
	assert.Len(t, points, 1)
}
