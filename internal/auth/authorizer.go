// Package auth resolves inbound requests to an identity and gates routes on it.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/isdelr/metrics-bridge/internal/services"
	"github.com/rs/zerolog/hlog"
)

const (
	// SessionHeader carries the session token issued at login.
	SessionHeader = "X-Session-Token"
	// TokenQueryParam carries the legacy shared secret in the query string.
	TokenQueryParam = "token"
)

// Kind says which strategy authorized a request.
type Kind string

const (
	KindSession Kind = "session"
	KindToken   Kind = "token"
)

// Identity is the caller resolved by an authorization strategy.
type Identity struct {
	Username    string
	DisplayName string
	IsAdmin     bool
	Token       string
	Kind        Kind
}

// Strategy authorizes a request or declines it.
type Strategy interface {
	Authorize(r *http.Request) (Identity, bool)
}

// SessionStrategy accepts a live session token in the session header and
// refreshes its last access time.
type SessionStrategy struct {
	Sessions services.SessionServiceProvider
}

// Authorize implements Strategy.
func (s SessionStrategy) Authorize(r *http.Request) (Identity, bool) {
	token := r.Header.Get(SessionHeader)
	if token == "" {
		return Identity{}, false
	}
	session, ok := s.Sessions.Touch(token)
	if !ok {
		return Identity{}, false
	}
	return Identity{
		Username:    session.Username,
		DisplayName: session.DisplayName,
		IsAdmin:     session.IsAdmin,
		Token:       token,
		Kind:        KindSession,
	}, true
}

// StaticTokenStrategy accepts the legacy shared secret as a bearer token or
// query parameter. The resulting identity is anonymous and never an admin.
// An empty secret disables the strategy.
type StaticTokenStrategy struct {
	Secret string
}

// Authorize implements Strategy.
func (s StaticTokenStrategy) Authorize(r *http.Request) (Identity, bool) {
	if s.Secret == "" {
		return Identity{}, false
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		if secretEqual(strings.TrimPrefix(auth, "Bearer "), s.Secret) {
			return Identity{Kind: KindToken}, true
		}
	}
	if q := r.URL.Query().Get(TokenQueryParam); q != "" && secretEqual(q, s.Secret) {
		return Identity{Kind: KindToken}, true
	}
	return Identity{}, false
}

func secretEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Authorizer runs its strategies in order; the first match wins.
type Authorizer struct {
	strategies []Strategy
}

// NewAuthorizer creates an Authorizer from an ordered strategy list.
func NewAuthorizer(strategies ...Strategy) *Authorizer {
	return &Authorizer{strategies: strategies}
}

// Authorize resolves r to an identity.
func (a *Authorizer) Authorize(r *http.Request) (Identity, bool) {
	for _, s := range a.strategies {
		if id, ok := s.Authorize(r); ok {
			return id, true
		}
	}
	return Identity{}, false
}

type contextKey string

const identityKey = contextKey("identity")

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext returns the identity stored by Middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// Middleware rejects unauthorized requests with 401 and stores the identity
// in the request context otherwise.
func (a *Authorizer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := a.Authorize(r)
		if !ok {
			hlog.FromRequest(r).Debug().Str("path", r.URL.Path).Msg("Rejected unauthorized request")
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireSession rejects callers that did not authenticate with a session,
// such as legacy token holders, with 403.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if id.Kind != KindSession {
			writeError(w, http.StatusForbidden, "Session login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects callers whose session is not an admin session with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if id.Kind != KindSession || !id.IsAdmin {
			hlog.FromRequest(r).Warn().Str("username", id.Username).Str("path", r.URL.Path).Msg("Rejected non-admin request")
			writeError(w, http.StatusForbidden, "Admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": msg})
}
