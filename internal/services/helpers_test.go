package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/isdelr/metrics-bridge/internal/host"
	"github.com/isdelr/metrics-bridge/internal/models"
	"github.com/stretchr/testify/require"
)

// fastHashParams keep argon2 cheap in tests.
var fastHashParams = HashParams{Time: 1, Memory: 64, Threads: 1, KeyLen: 16}

func newTestUserService(t *testing.T) *UserService {
	t.Helper()
	s, err := NewUserService(filepath.Join(t.TempDir(), "users.json"), fastHashParams)
	require.NoError(t, err)
	return s
}

type recordingSink struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingSink) WriteLine(source, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *recordingSink) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

type recordingEvents struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recordingEvents) CreateEvent(eventType, level, message string, actor *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, models.Event{Type: eventType, Level: level, Message: message, Actor: actor})
	return nil
}

func (r *recordingEvents) GetRecentEvents(limit int) ([]models.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Event(nil), r.events...), nil
}

func (r *recordingEvents) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.events))
	for i, e := range r.events {
		types[i] = e.Type
	}
	return types
}

// stubHost is a host.Server whose answers are set per test.
type stubHost struct {
	players    []models.Player
	playersErr error
	world      models.WorldInfo
	worldErr   error
	result     models.CommandResult
	execErr    error
	commands   []string
	teleported []string
	worlds     map[string]bool
}

func (s *stubHost) Players(ctx context.Context) ([]models.Player, error) {
	return s.players, s.playersErr
}

func (s *stubHost) WorldInfo(ctx context.Context) (models.WorldInfo, error) {
	return s.world, s.worldErr
}

func (s *stubHost) ExecuteCommand(ctx context.Context, command string) (models.CommandResult, error) {
	s.commands = append(s.commands, command)
	return s.result, s.execErr
}

func (s *stubHost) TeleportPlayer(ctx context.Context, name string, pos models.Position, world string) error {
	for _, p := range s.players {
		if p.Name == name {
			s.teleported = append(s.teleported, name+"@"+world)
			return nil
		}
	}
	return host.ErrPlayerNotFound
}

func (s *stubHost) FindWorld(ctx context.Context, id string) (string, error) {
	world := host.NormalizeWorldID(id)
	if !s.worlds[world] {
		return "", host.ErrWorldNotFound
	}
	return world, nil
}
