package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/isdelr/metrics-bridge/internal/auth"
	"github.com/isdelr/metrics-bridge/internal/services"
	ws "github.com/isdelr/metrics-bridge/internal/websocket"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler streams console lines to admins over a websocket.
type WebSocketHandler struct {
	hub      *ws.Hub
	tickets  *auth.TicketIssuer
	users    services.UserServiceProvider
	console  ConsoleHistory
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler. allowedOrigins limits
// cross-origin upgrades; "*" allows any origin.
func NewWebSocketHandler(hub *ws.Hub, tickets *auth.TicketIssuer, users services.UserServiceProvider, console ConsoleHistory, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:     hub,
		tickets: tickets,
		users:   users,
		console: console,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// Ticket issues a short-lived ticket for opening the console stream.
func (h *WebSocketHandler) Ticket(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	ticket, err := h.tickets.GenerateTicket(id.Username)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, map[string]interface{}{
		"ticket":    ticket,
		"expiresIn": int(auth.DefaultTicketTTL / time.Second),
	})
}

// Serve upgrades a ticket-bearing request and streams console lines,
// starting with the buffered history.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	claims, err := h.tickets.ValidateTicket(r.URL.Query().Get("ticket"))
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Rejected console stream ticket")
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if !h.users.IsAdmin(claims.Username) {
		writeError(w, http.StatusForbidden, "Admin privileges required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	// Nothing else writes to conn until WritePump starts.
	for _, line := range h.console.History() {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, ws.NewConsoleLineMessage(line)); err != nil {
			conn.Close()
			return
		}
	}

	client := ws.NewClient(h.hub, conn, claims.Username)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump(h.handleIncomingWSMessage)
}

// handleIncomingWSMessage ignores client frames; commands go through POST /api/console.
func (h *WebSocketHandler) handleIncomingWSMessage(client *ws.Client, message []byte) {
	log.Debug().Str("username", client.Username).Int("bytes", len(message)).Msg("Ignoring inbound console stream frame")
}
