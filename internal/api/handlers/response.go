package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/isdelr/metrics-bridge/internal/host"
	"github.com/isdelr/metrics-bridge/internal/services"
	"github.com/rs/zerolog/hlog"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, fields map[string]interface{}) {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["success"] = true
	writeJSON(w, http.StatusOK, fields)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": msg})
}

// writeServiceError maps service and host errors to an HTTP status at the
// request boundary. Unexpected errors are logged and reported generically.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		writeError(w, http.StatusBadRequest, userMessage(strings.TrimPrefix(err.Error(), services.ErrValidation.Error()+": ")))
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, host.ErrPlayerNotFound),
		errors.Is(err, host.ErrWorldNotFound):
		writeError(w, http.StatusNotFound, userMessage(err.Error()))
	case errors.Is(err, services.ErrUserExists):
		writeError(w, http.StatusConflict, userMessage(err.Error()))
	case errors.Is(err, services.ErrLastAdmin),
		errors.Is(err, services.ErrOriginalAdmin),
		errors.Is(err, services.ErrSelfDelete),
		errors.Is(err, services.ErrSelfDemote):
		writeError(w, http.StatusUnprocessableEntity, userMessage(err.Error()))
	case errors.Is(err, host.ErrUnavailable):
		hlog.FromRequest(r).Warn().Err(err).Msg("Host unavailable")
		writeError(w, http.StatusServiceUnavailable, "Server not available")
	default:
		hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// userMessage capitalizes an error string for display.
func userMessage(msg string) string {
	r, size := utf8.DecodeRuneInString(msg)
	if r == utf8.RuneError {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	return json.NewDecoder(r.Body).Decode(v)
}
