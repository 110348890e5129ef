package services

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/metrics-bridge/internal/models"
	"github.com/rs/zerolog/log"
)

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	CreateEvent(eventType, level, message string, actor *string) error
	GetRecentEvents(limit int) ([]models.Event, error)
}

// EventService records audit events in the database.
type EventService struct {
	db *sql.DB
}

// NewEventService creates a new EventService.
func NewEventService(db *sql.DB) *EventService {
	return &EventService{db: db}
}

// CreateEvent logs a new event to the database.
func (s *EventService) CreateEvent(eventType, level, message string, actor *string) error {
	event := models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Level:     level,
		Message:   message,
		Actor:     actor,
		CreatedAt: time.Now().UTC(),
	}

	stmt, err := s.db.Prepare("INSERT INTO events (id, type, level, message, actor, created_at) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(event.ID, event.Type, event.Level, event.Message, event.Actor, event.CreatedAt)
	return err
}

// GetRecentEvents retrieves the most recent events from the database.
func (s *EventService) GetRecentEvents(limit int) ([]models.Event, error) {
	rows, err := s.db.Query("SELECT id, type, level, message, actor, created_at FROM events ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var event models.Event
		var actor sql.NullString
		if err := rows.Scan(&event.ID, &event.Type, &event.Level, &event.Message, &actor, &event.CreatedAt); err != nil {
			return nil, err
		}
		if actor.Valid {
			event.Actor = &actor.String
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// RecordEvent writes an audit event, logging instead of failing the caller.
func RecordEvent(events EventServiceProvider, eventType, level, message, actor string) {
	if events == nil {
		return
	}
	var actorPtr *string
	if actor != "" {
		actorPtr = &actor
	}
	if err := events.CreateEvent(eventType, level, message, actorPtr); err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("Failed to record event")
	}
}
