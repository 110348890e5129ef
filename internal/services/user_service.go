package services

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/isdelr/metrics-bridge/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/argon2"
)

const (
	// OriginalAdmin is the bootstrap admin account, which can never be deleted or demoted.
	OriginalAdmin = "admin"
	// DefaultAdminPassword is the well-known bootstrap password. Change it after first login.
	DefaultAdminPassword = "admin"

	// SchemeSHA256 is the legacy SHA-256(salt || password) scheme; stored records
	// without a scheme use it.
	SchemeSHA256 = "sha256"

	saltLength = 16
)

// HashParams are the argon2id cost parameters for new password hashes.
type HashParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

// DefaultHashParams follow the OWASP argon2id baseline.
var DefaultHashParams = HashParams{Time: 2, Memory: 19 * 1024, Threads: 1, KeyLen: 32}

// scheme encodes the parameters so they can change without breaking old hashes.
func (p HashParams) scheme() string {
	return fmt.Sprintf("argon2id:%d:%d:%d:%d", p.Time, p.Memory, p.Threads, p.KeyLen)
}

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	CreateUser(username, password string, isAdmin bool) error
	Authenticate(username, password string) bool
	GetUser(username string) (models.User, bool)
	IsAdmin(username string) bool
	UpdatePassword(username, oldPassword, newPassword string) error
	ResetPassword(username, newPassword string) error
	DeleteUser(username string) error
	SetAdminStatus(username string, isAdmin bool) error
	IsOriginalAdmin(username string) bool
	ListUsers() map[string]models.UserInfo
}

// UserService stores credentials in memory and persists the whole set to a
// JSON file on every mutation. Mutations hold the write lock; lookups hold the read lock.
type UserService struct {
	mu     sync.RWMutex
	users  map[string]*models.User
	path   string
	params HashParams
	now    func() time.Time
}

// userRecord is the on-disk form of a user.
type userRecord struct {
	Username       string `json:"username"`
	HashedPassword string `json:"hashedPassword"`
	Salt           string `json:"salt"`
	Scheme         string `json:"scheme,omitempty"`
	IsAdmin        bool   `json:"isAdmin"`
	CreatedAt      int64  `json:"createdAt"`
	LastModified   int64  `json:"lastModified"`
}

// NewUserService loads the user file at path. If the file does not exist,
// a default admin account is created and persisted immediately.
func NewUserService(path string, params HashParams) (*UserService, error) {
	s := &UserService{
		users:  make(map[string]*models.User),
		path:   path,
		params: params,
		now:    time.Now,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	if s.Authenticate(OriginalAdmin, DefaultAdminPassword) {
		log.Warn().Str("username", OriginalAdmin).Msg("Default admin password is still in use. Change it immediately!")
	}
	return s, nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// CreateUser adds a user with a fresh salt.
func (s *UserService) CreateUser(username, password string, isAdmin bool) error {
	username = normalizeUsername(username)
	if username == "" {
		return fmt.Errorf("%w: username is required", ErrValidation)
	}
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: password is required", ErrValidation)
	}

	// Hash outside the lock; argon2 is deliberately slow.
	salt, hash, scheme, err := s.hashNew(password)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return ErrUserExists
	}

	now := s.now()
	s.users[username] = &models.User{
		Username:     username,
		PasswordHash: hash,
		Salt:         salt,
		Scheme:       scheme,
		IsAdmin:      isAdmin,
		CreatedAt:    now,
		LastModified: now,
	}
	s.persist()
	return nil
}

// Authenticate verifies a user's credentials.
func (s *UserService) Authenticate(username, password string) bool {
	user, ok := s.GetUser(username)
	if !ok {
		return false
	}
	return verifyPassword(user, password)
}

// GetUser returns a copy of the stored user.
func (s *UserService) GetUser(username string) (models.User, bool) {
	username = normalizeUsername(username)

	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return models.User{}, false
	}
	return *user, true
}

// IsAdmin reports whether the user exists and holds the admin flag.
func (s *UserService) IsAdmin(username string) bool {
	user, ok := s.GetUser(username)
	return ok && user.IsAdmin
}

// UpdatePassword verifies the current password, then stores the new one under a new salt.
func (s *UserService) UpdatePassword(username, oldPassword, newPassword string) error {
	if normalizeUsername(username) == "" || oldPassword == "" || strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("%w: username, current password and new password are required", ErrValidation)
	}

	user, ok := s.GetUser(username)
	if !ok || !verifyPassword(user, oldPassword) {
		return ErrInvalidCredentials
	}
	return s.replacePassword(user, newPassword)
}

// ResetPassword sets a new password without checking the old one.
func (s *UserService) ResetPassword(username, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("%w: new password is required", ErrValidation)
	}
	user, ok := s.GetUser(username)
	if !ok {
		return ErrUserNotFound
	}
	return s.replacePassword(user, newPassword)
}

// replacePassword swaps in a new hash if the stored hash still matches prev,
// so a concurrent password change is not silently overwritten.
func (s *UserService) replacePassword(prev models.User, newPassword string) error {
	salt, hash, scheme, err := s.hashNew(newPassword)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[prev.Username]
	if !ok {
		return ErrUserNotFound
	}
	if !bytes.Equal(user.PasswordHash, prev.PasswordHash) {
		return ErrInvalidCredentials
	}
	updated := *user
	updated.PasswordHash = hash
	updated.Salt = salt
	updated.Scheme = scheme
	updated.LastModified = s.now()
	s.users[prev.Username] = &updated
	s.persist()
	return nil
}

// DeleteUser removes a user. The original admin and the last admin cannot be removed.
func (s *UserService) DeleteUser(username string) error {
	username = normalizeUsername(username)
	if s.IsOriginalAdmin(username) {
		return ErrOriginalAdmin
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return ErrUserNotFound
	}
	if user.IsAdmin && s.adminCount() <= 1 {
		return ErrLastAdmin
	}
	delete(s.users, username)
	s.persist()
	return nil
}

// SetAdminStatus grants or revokes the admin flag.
func (s *UserService) SetAdminStatus(username string, isAdmin bool) error {
	username = normalizeUsername(username)
	if !isAdmin && s.IsOriginalAdmin(username) {
		return ErrOriginalAdmin
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return ErrUserNotFound
	}
	if user.IsAdmin && !isAdmin && s.adminCount() <= 1 {
		return ErrLastAdmin
	}
	updated := *user
	updated.IsAdmin = isAdmin
	updated.LastModified = s.now()
	s.users[username] = &updated
	s.persist()
	return nil
}

// IsOriginalAdmin reports whether username names the bootstrap admin.
func (s *UserService) IsOriginalAdmin(username string) bool {
	return normalizeUsername(username) == OriginalAdmin
}

// ListUsers returns every user without credentials, keyed by username.
func (s *UserService) ListUsers() map[string]models.UserInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make(map[string]models.UserInfo, len(s.users))
	for name, user := range s.users {
		list[name] = user.Info()
	}
	return list
}

// adminCount must be called with s.mu held.
func (s *UserService) adminCount() int {
	n := 0
	for _, user := range s.users {
		if user.IsAdmin {
			n++
		}
	}
	return n
}

func (s *UserService) hashNew(password string) (salt, hash []byte, scheme string, err error) {
	salt = make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, "", fmt.Errorf("failed to generate salt: %w", err)
	}
	p := s.params
	hash = argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	return salt, hash, p.scheme(), nil
}

// verifyPassword recomputes the hash with the stored salt and scheme.
func verifyPassword(user models.User, password string) bool {
	var computed []byte
	switch {
	case user.Scheme == "" || user.Scheme == SchemeSHA256:
		digest := sha256.New()
		digest.Write(user.Salt)
		digest.Write([]byte(password))
		computed = digest.Sum(nil)
	case strings.HasPrefix(user.Scheme, "argon2id:"):
		p, err := parseScheme(user.Scheme)
		if err != nil {
			log.Error().Err(err).Str("username", user.Username).Msg("Unreadable password scheme")
			return false
		}
		computed = argon2.IDKey([]byte(password), user.Salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	default:
		log.Error().Str("username", user.Username).Str("scheme", user.Scheme).Msg("Unknown password scheme")
		return false
	}
	return subtle.ConstantTimeCompare(computed, user.PasswordHash) == 1
}

func parseScheme(scheme string) (HashParams, error) {
	parts := strings.Split(scheme, ":")
	if len(parts) != 5 {
		return HashParams{}, fmt.Errorf("malformed scheme %q", scheme)
	}
	var nums [4]uint64
	for i, part := range parts[1:] {
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return HashParams{}, fmt.Errorf("malformed scheme %q: %w", scheme, err)
		}
		nums[i] = n
	}
	return HashParams{Time: uint32(nums[0]), Memory: uint32(nums[1]), Threads: uint8(nums[2]), KeyLen: uint32(nums[3])}, nil
}

func (s *UserService) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s.createDefaultAdmin()
	}
	if err != nil {
		return fmt.Errorf("failed to read user database: %w", err)
	}

	var records map[string]userRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to parse user database %s: %w", s.path, err)
	}

	for key, rec := range records {
		hash, err := base64.StdEncoding.DecodeString(rec.HashedPassword)
		if err != nil {
			return fmt.Errorf("user %s: bad password hash: %w", key, err)
		}
		salt, err := base64.StdEncoding.DecodeString(rec.Salt)
		if err != nil {
			return fmt.Errorf("user %s: bad salt: %w", key, err)
		}
		username := normalizeUsername(key)
		s.users[username] = &models.User{
			Username:     username,
			PasswordHash: hash,
			Salt:         salt,
			Scheme:       rec.Scheme,
			IsAdmin:      rec.IsAdmin,
			CreatedAt:    time.UnixMilli(rec.CreatedAt),
			LastModified: time.UnixMilli(rec.LastModified),
		}
	}

	if len(s.users) == 0 {
		return s.createDefaultAdmin()
	}
	if s.adminCount() == 0 {
		return fmt.Errorf("user database %s has no admin account", s.path)
	}
	log.Info().Int("users", len(s.users)).Str("path", s.path).Msg("Loaded user database")
	return nil
}

func (s *UserService) createDefaultAdmin() error {
	salt, hash, scheme, err := s.hashNew(DefaultAdminPassword)
	if err != nil {
		return err
	}
	now := s.now()
	s.users[OriginalAdmin] = &models.User{
		Username:     OriginalAdmin,
		PasswordHash: hash,
		Salt:         salt,
		Scheme:       scheme,
		IsAdmin:      true,
		CreatedAt:    now,
		LastModified: now,
	}
	if err := s.save(); err != nil {
		return err
	}
	log.Warn().Str("username", OriginalAdmin).Str("password", DefaultAdminPassword).Str("path", s.path).
		Msg("Created default admin user. Please change the default password immediately!")
	return nil
}

// persist must be called with the write lock held. A failed write is logged
// and the in-memory change is kept.
func (s *UserService) persist() {
	if err := s.save(); err != nil {
		log.Error().Err(err).Str("path", s.path).Msg("Failed to save user database")
	}
}

// save writes the full user set to a temp file and renames it over the old one.
func (s *UserService) save() error {
	records := make(map[string]userRecord, len(s.users))
	for name, user := range s.users {
		records[name] = userRecord{
			Username:       user.Username,
			HashedPassword: base64.StdEncoding.EncodeToString(user.PasswordHash),
			Salt:           base64.StdEncoding.EncodeToString(user.Salt),
			Scheme:         user.Scheme,
			IsAdmin:        user.IsAdmin,
			CreatedAt:      user.CreatedAt.UnixMilli(),
			LastModified:   user.LastModified.UnixMilli(),
		}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode user database: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write user database: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync user database: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close user database: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("failed to chmod user database: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}
