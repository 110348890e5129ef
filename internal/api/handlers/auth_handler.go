package handlers

import (
	"errors"
	"net/http"

	"github.com/isdelr/metrics-bridge/internal/auth"
	"github.com/isdelr/metrics-bridge/internal/services"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// AuthHandler handles login, logout and the caller's own account.
type AuthHandler struct {
	sessions services.SessionServiceProvider
	users    services.UserServiceProvider
	events   services.EventServiceProvider
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(sessions services.SessionServiceProvider, users services.UserServiceProvider, events services.EventServiceProvider) *AuthHandler {
	return &AuthHandler{sessions: sessions, users: users, events: events}
}

// AuthPayload defines the structure for login requests.
type AuthPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials for a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload AuthPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if payload.Username == "" || payload.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	session, err := h.sessions.CreateSession(payload.Username, payload.Password)
	if err != nil {
		hlog.FromRequest(r).Warn().Str("username", payload.Username).Msg("Failed authentication attempt")
		services.RecordEvent(h.events, "auth.login.fail", "warn", "Failed login for '"+payload.Username+"'", "")
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	log.Info().Str("username", session.Username).Bool("is_admin", session.IsAdmin).Msg("User logged in")
	services.RecordEvent(h.events, "auth.login", "info", session.Username+" logged in", session.Username)
	writeSuccess(w, map[string]interface{}{
		"sessionToken": session.Token,
		"username":     session.Username,
		"displayName":  session.DisplayName,
		"isAdmin":      session.IsAdmin,
	})
}

// Logout ends the session named by the session header. Unknown tokens are ignored.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(auth.SessionHeader)
	if token != "" {
		if session, ok := h.sessions.GetSession(token); ok {
			services.RecordEvent(h.events, "auth.logout", "info", session.Username+" logged out", session.Username)
		}
		h.sessions.InvalidateSession(token)
	}
	writeSuccess(w, nil)
}

// Session reports whether the session header names a live session.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sessions.GetSession(r.Header.Get(auth.SessionHeader))
	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": true,
		"username":      session.Username,
		"displayName":   session.DisplayName,
		"isAdmin":       session.IsAdmin,
	})
}

// ChangePasswordPayload defines the structure for password change requests.
type ChangePasswordPayload struct {
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// ChangePassword changes the calling user's own password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var payload ChangePasswordPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if payload.OldPassword == "" {
		writeError(w, http.StatusBadRequest, "Current password is required")
		return
	}
	if err := services.ValidateNewPassword(payload.NewPassword, payload.ConfirmPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := h.users.UpdatePassword(id.Username, payload.OldPassword, payload.NewPassword); err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			// The caller is authenticated; a wrong current password is a bad request, not a lost session.
			writeError(w, http.StatusBadRequest, "Current password is incorrect")
			return
		}
		writeServiceError(w, r, err)
		return
	}

	log.Info().Str("username", id.Username).Msg("Password changed")
	services.RecordEvent(h.events, "auth.password.change", "info", id.Username+" changed their password", id.Username)
	writeSuccess(w, map[string]interface{}{"message": "Password updated successfully"})
}
