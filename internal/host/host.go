// Package host defines the game-server collaborator the bridge reads state
// from and dispatches administrative commands to.
package host

import (
	"context"
	"errors"
	"strings"

	"github.com/isdelr/metrics-bridge/internal/models"
)

var (
	// ErrUnavailable is returned when the host cannot serve a query right now.
	ErrUnavailable = errors.New("host unavailable")
	// ErrPlayerNotFound is returned when a named player is not online.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrWorldNotFound is returned when a world identifier does not resolve.
	ErrWorldNotFound = errors.New("world not found")
)

// DefaultWorld is used when a teleport names no world.
const DefaultWorld = "minecraft:overworld"

// Server is the narrow surface the bridge needs from the game server.
type Server interface {
	Players(ctx context.Context) ([]models.Player, error)
	WorldInfo(ctx context.Context) (models.WorldInfo, error)
	ExecuteCommand(ctx context.Context, command string) (models.CommandResult, error)
	TeleportPlayer(ctx context.Context, name string, pos models.Position, world string) error
	// FindWorld resolves a world identifier to its canonical id.
	FindWorld(ctx context.Context, id string) (string, error)
}

// EntityCounter is implemented by hosts that can count entities per world and type.
type EntityCounter interface {
	EntityCounts(ctx context.Context) (map[string]map[string]int, error)
}

// ModLister is implemented by hosts that can report loaded mods.
type ModLister interface {
	Mods(ctx context.Context) ([]models.Mod, error)
}

// TickSource is implemented by hosts that call back at every tick boundary.
type TickSource interface {
	OnTickEnd(fn func())
}

// LogSink receives console lines produced by the host.
type LogSink interface {
	WriteLine(source, line string)
}

// NormalizeWorldID turns "overworld" or "nether" into a namespaced id.
func NormalizeWorldID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	switch id {
	case "":
		return DefaultWorld
	case "nether":
		id = "the_nether"
	case "end":
		id = "the_end"
	}
	if !strings.Contains(id, ":") {
		id = "minecraft:" + id
	}
	return id
}
