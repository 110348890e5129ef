package services

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/metrics-bridge/internal/models"
)

// DefaultSessionTimeout is the idle time after which a session expires.
const DefaultSessionTimeout = 24 * time.Hour

// SessionServiceProvider defines the interface for session services.
type SessionServiceProvider interface {
	CreateSession(username, password string) (models.Session, error)
	GetSession(token string) (models.Session, bool)
	Touch(token string) (models.Session, bool)
	IsOp(token string) bool
	InvalidateSession(token string)
	InvalidateUser(username string) int
}

// SessionService issues and validates in-memory session tokens. Sessions are
// expired lazily at lookup time; there is no background sweep.
//
// The admin flag is snapshotted at login. Granting or revoking admin status
// takes effect for a user's existing sessions only after they log in again.
type SessionService struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	users    UserServiceProvider
	timeout  time.Duration
	now      func() time.Time
}

// NewSessionService creates a session service backed by users.
func NewSessionService(users UserServiceProvider, timeout time.Duration) *SessionService {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &SessionService{
		sessions: make(map[string]*models.Session),
		users:    users,
		timeout:  timeout,
		now:      time.Now,
	}
}

// CreateSession checks the credentials and returns a new session. The error
// never reveals which credential was wrong.
func (s *SessionService) CreateSession(username, password string) (models.Session, error) {
	if !s.users.Authenticate(username, password) {
		return models.Session{}, ErrInvalidCredentials
	}
	user, ok := s.users.GetUser(username)
	if !ok {
		return models.Session{}, ErrInvalidCredentials
	}

	session := &models.Session{
		Token:       generateSessionToken(),
		Username:    user.Username,
		DisplayName: user.Username,
		IsAdmin:     user.IsAdmin,
		LastAccess:  s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Token] = session
	return *session, nil
}

// generateSessionToken returns 122 random bits from a v4 UUID, without dashes.
func generateSessionToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// GetSession returns the session if it exists and has not expired. It does
// not refresh the access time.
func (s *SessionService) GetSession(token string) (models.Session, bool) {
	if token == "" {
		return models.Session{}, false
	}
	s.mu.RLock()
	session, ok := s.sessions[token]
	var snapshot models.Session
	if ok {
		snapshot = *session
	}
	s.mu.RUnlock()

	if !ok {
		return models.Session{}, false
	}
	if s.expired(snapshot) {
		s.remove(token, snapshot.LastAccess)
		return models.Session{}, false
	}
	return snapshot, true
}

// Touch validates the session and refreshes its access time.
func (s *SessionService) Touch(token string) (models.Session, bool) {
	if token == "" {
		return models.Session{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return models.Session{}, false
	}
	if s.expired(*session) {
		delete(s.sessions, token)
		return models.Session{}, false
	}
	session.LastAccess = s.now()
	return *session, true
}

// IsOp reports whether token names a live admin session.
func (s *SessionService) IsOp(token string) bool {
	session, ok := s.GetSession(token)
	return ok && session.IsAdmin
}

// InvalidateSession removes the session. Unknown tokens are ignored.
func (s *SessionService) InvalidateSession(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// InvalidateUser removes every session belonging to username and returns how many were removed.
func (s *SessionService) InvalidateUser(username string) int {
	username = normalizeUsername(username)
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for token, session := range s.sessions {
		if session.Username == username {
			delete(s.sessions, token)
			n++
		}
	}
	return n
}

// Count returns the number of stored sessions, expired ones included.
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionService) expired(session models.Session) bool {
	return s.now().Sub(session.LastAccess) >= s.timeout
}

// remove deletes token unless it was touched after lastAccess was read.
func (s *SessionService) remove(token string, lastAccess time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[token]; ok && session.LastAccess.Equal(lastAccess) {
		delete(s.sessions, token)
	}
}
