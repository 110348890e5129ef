package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/isdelr/metrics-bridge/internal/host"
	"github.com/isdelr/metrics-bridge/internal/models"
	"github.com/rs/zerolog/log"
)

// MinPasswordLength applies to passwords set through the API.
const MinPasswordLength = 6

// AdminServiceProvider defines the privileged operations. Callers must have
// checked that actor is an admin.
type AdminServiceProvider interface {
	ExecuteCommand(ctx context.Context, actor, command string) (models.CommandResult, error)
	Teleport(ctx context.Context, actor string, req models.TeleportRequest) (string, error)
	CreateUser(actor, username, password string, isAdmin bool) error
	DeleteUser(actor, username string) error
	SetAdminStatus(actor, username string, isAdmin bool) error
}

// AdminService forwards console, teleport and user management operations and
// enforces the request-level self-protection rules.
//
// Console commands are not allow-listed: anything the host can dispatch is permitted.
type AdminService struct {
	host     host.Server
	users    UserServiceProvider
	sessions SessionServiceProvider
	console  host.LogSink
	events   EventServiceProvider
}

// NewAdminService creates a new AdminService.
func NewAdminService(srv host.Server, users UserServiceProvider, sessions SessionServiceProvider, console host.LogSink, events EventServiceProvider) *AdminService {
	return &AdminService{
		host:     srv,
		users:    users,
		sessions: sessions,
		console:  console,
		events:   events,
	}
}

// ExecuteCommand dispatches a raw console command to the host.
func (s *AdminService) ExecuteCommand(ctx context.Context, actor, command string) (models.CommandResult, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return models.CommandResult{}, fmt.Errorf("%w: No command provided", ErrValidation)
	}

	s.console.WriteLine("command", "> "+command)
	result, err := s.host.ExecuteCommand(ctx, command)
	if err != nil {
		log.Error().Err(err).Str("actor", actor).Str("command", command).Msg("Failed to execute command")
		return models.CommandResult{}, err
	}

	if result.Output == "" {
		if result.Success() {
			result.Output = "Command executed successfully"
		} else {
			result.Output = "Command failed or returned 0"
		}
	}
	for _, line := range strings.Split(result.Output, "\n") {
		s.console.WriteLine("command", line)
	}

	level := "info"
	if !result.Success() {
		level = "warn"
	}
	RecordEvent(s.events, "console.execute", level, fmt.Sprintf("%s ran '%s' (result %d)", actor, command, result.Code), actor)
	return result, nil
}

// Teleport validates the request and moves the player.
func (s *AdminService) Teleport(ctx context.Context, actor string, req models.TeleportRequest) (string, error) {
	player := strings.TrimSpace(req.Player)
	if player == "" {
		return "", fmt.Errorf("%w: Player name is required", ErrValidation)
	}
	for _, c := range []struct {
		name string
		v    *float64
	}{{"x", req.X}, {"y", req.Y}, {"z", req.Z}} {
		if c.v == nil {
			return "", fmt.Errorf("%w: Coordinate %s is required", ErrValidation, c.name)
		}
		if math.IsNaN(*c.v) || math.IsInf(*c.v, 0) {
			return "", fmt.Errorf("%w: Coordinate %s must be a finite number", ErrValidation, c.name)
		}
	}

	world, err := s.host.FindWorld(ctx, req.World)
	if err != nil {
		if errors.Is(err, host.ErrWorldNotFound) {
			return "", fmt.Errorf("world '%s': %w", req.World, err)
		}
		return "", err
	}

	pos := models.Position{X: *req.X, Y: *req.Y, Z: *req.Z}
	if err := s.host.TeleportPlayer(ctx, player, pos, world); err != nil {
		if errors.Is(err, host.ErrPlayerNotFound) {
			return "", fmt.Errorf("player '%s': %w", player, err)
		}
		return "", err
	}

	msg := fmt.Sprintf("Teleported %s to %.2f, %.2f, %.2f in %s", player, pos.X, pos.Y, pos.Z, world)
	RecordEvent(s.events, "player.teleport", "info", actor+": "+msg, actor)
	return msg, nil
}

// ValidateNewPassword checks a password set through the API.
func ValidateNewPassword(password, confirm string) error {
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: Password is required", ErrValidation)
	}
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: Password must be at least %d characters", ErrValidation, MinPasswordLength)
	}
	if password != confirm {
		return fmt.Errorf("%w: Passwords do not match", ErrValidation)
	}
	return nil
}

// CreateUser adds a user on behalf of an admin.
func (s *AdminService) CreateUser(actor, username, password string, isAdmin bool) error {
	username = normalizeUsername(username)
	if username == "" {
		return fmt.Errorf("%w: Username is required", ErrValidation)
	}
	if strings.ContainsAny(username, " /\\") {
		return fmt.Errorf("%w: Username must not contain spaces or slashes", ErrValidation)
	}
	if err := ValidateNewPassword(password, password); err != nil {
		return err
	}
	if err := s.users.CreateUser(username, password, isAdmin); err != nil {
		return err
	}
	RecordEvent(s.events, "user.create", "info", fmt.Sprintf("%s created user '%s' (admin: %t)", actor, username, isAdmin), actor)
	return nil
}

// DeleteUser removes a user and ends their sessions. Callers cannot delete themselves.
func (s *AdminService) DeleteUser(actor, username string) error {
	username = normalizeUsername(username)
	if username == normalizeUsername(actor) {
		return ErrSelfDelete
	}
	if err := s.users.DeleteUser(username); err != nil {
		return err
	}
	n := s.sessions.InvalidateUser(username)
	RecordEvent(s.events, "user.delete", "warn", fmt.Sprintf("%s deleted user '%s' (%d sessions ended)", actor, username, n), actor)
	return nil
}

// SetAdminStatus changes another user's admin flag. It does not touch their
// existing sessions, which keep the flag they logged in with.
func (s *AdminService) SetAdminStatus(actor, username string, isAdmin bool) error {
	username = normalizeUsername(username)
	if username == normalizeUsername(actor) {
		return ErrSelfDemote
	}
	if err := s.users.SetAdminStatus(username, isAdmin); err != nil {
		return err
	}
	RecordEvent(s.events, "user.admin", "warn", fmt.Sprintf("%s set admin=%t for '%s'", actor, isAdmin, username), actor)
	return nil
}
