package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/metrics-bridge/internal/auth"
	"github.com/isdelr/metrics-bridge/internal/services"
)

// AdminHandler handles user management requests.
type AdminHandler struct {
	admin services.AdminServiceProvider
	users services.UserServiceProvider
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(admin services.AdminServiceProvider, users services.UserServiceProvider) *AdminHandler {
	return &AdminHandler{admin: admin, users: users}
}

// ListUsers returns every user without credentials.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, map[string]interface{}{"users": h.users.ListUsers()})
}

// CreateUserPayload defines the structure for user creation requests.
type CreateUserPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"isAdmin"`
}

// CreateUser adds a user.
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var payload CreateUserPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.admin.CreateUser(id.Username, payload.Username, payload.Password, payload.IsAdmin); err != nil {
		writeServiceError(w, r, err)
		return
	}

	user, _ := h.users.GetUser(payload.Username)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "User created successfully",
		"user":    user.Info(),
	})
}

// DeleteUser removes the user named in the path.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	username := chi.URLParam(r, "username")

	if err := h.admin.DeleteUser(id.Username, username); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, map[string]interface{}{"message": "User deleted successfully"})
}

// SetAdminPayload defines the structure for admin flag changes.
type SetAdminPayload struct {
	IsAdmin *bool `json:"isAdmin"`
}

// SetAdmin grants or revokes the admin flag of the user named in the path.
func (h *AdminHandler) SetAdmin(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	username := chi.URLParam(r, "username")

	var payload SetAdminPayload
	if err := decodeJSON(w, r, &payload); err != nil || payload.IsAdmin == nil {
		writeError(w, http.StatusBadRequest, "isAdmin is required")
		return
	}
	if err := h.admin.SetAdminStatus(id.Username, username, *payload.IsAdmin); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, map[string]interface{}{"message": "Admin status updated"})
}
