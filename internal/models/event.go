package models

import "time"

// Event represents an audited action or alert in the bridge.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`  // e.g., "console.execute", "user.delete"
	Level     string    `json:"level"` // e.g., "info", "warn", "error"
	Message   string    `json:"message"`
	Actor     *string   `json:"actor,omitempty"` // Nullable for system events
	CreatedAt time.Time `json:"createdAt"`
}
