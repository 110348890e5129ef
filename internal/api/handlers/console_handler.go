package handlers

import (
	"net/http"
	"time"

	"github.com/isdelr/metrics-bridge/internal/auth"
	"github.com/isdelr/metrics-bridge/internal/models"
	"github.com/isdelr/metrics-bridge/internal/services"
	"github.com/rs/zerolog/log"
)

// ConsoleHistory is the read side of the console sink.
type ConsoleHistory interface {
	History() []string
}

// ConsoleHandler handles console and teleport requests from admins.
type ConsoleHandler struct {
	admin   services.AdminServiceProvider
	console ConsoleHistory
}

// NewConsoleHandler creates a new ConsoleHandler.
func NewConsoleHandler(admin services.AdminServiceProvider, console ConsoleHistory) *ConsoleHandler {
	return &ConsoleHandler{admin: admin, console: console}
}

// History returns the buffered console lines.
func (h *ConsoleHandler) History(w http.ResponseWriter, r *http.Request) {
	lines := h.console.History()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"console_output": lines,
		"timestamp":      time.Now().UnixMilli(),
		"total_lines":    len(lines),
	})
}

// CommandPayload defines the structure for console requests.
type CommandPayload struct {
	Command string `json:"command"`
}

// Execute runs a console command on the host.
func (h *ConsoleHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var payload CommandPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.admin.ExecuteCommand(r.Context(), id.Username, payload.Command)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	log.Info().Str("username", id.Username).Str("command", payload.Command).Int("result", result.Code).Msg("Console command executed")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": result.Success(),
		"output":  result.Output,
		"result":  result.Code,
	})
}

// Teleport moves a player to the requested coordinates.
func (h *ConsoleHandler) Teleport(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req models.TeleportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Player name and numeric x, y, z coordinates are required")
		return
	}

	msg, err := h.admin.Teleport(r.Context(), id.Username, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, map[string]interface{}{"message": msg})
}
