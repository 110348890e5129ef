package host

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/isdelr/metrics-bridge/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	// TickInterval is the nominal duration of one tick at 20 TPS.
	TickInterval = 50 * time.Millisecond
	ticksPerDay  = 24000
	viewDistance = 2
	maxPlayers   = 20
)

type localPlayer struct {
	name  string
	world string
	pos   models.Position
	ping  int
}

// Local is an in-process host: it owns a 20 TPS game loop, a set of worlds
// and players, and a small command dispatcher.
type Local struct {
	mu      sync.RWMutex
	version string
	worlds  map[string]bool
	players map[string]*localPlayer
	mods    []models.Mod
	ticks   int64
	dayTime int64
	hooks   []func()
	sink    LogSink
	ticker  *time.Ticker
	done    chan bool
}

// NewLocal creates a local host. Console output goes to sink, which may be nil.
func NewLocal(version string, sink LogSink, mods ...models.Mod) *Local {
	return &Local{
		version: version,
		worlds: map[string]bool{
			"minecraft:overworld":  true,
			"minecraft:the_nether": true,
			"minecraft:the_end":    true,
		},
		players: make(map[string]*localPlayer),
		mods:    mods,
		sink:    sink,
		done:    make(chan bool),
	}
}

// OnTickEnd registers fn to run after every tick.
func (l *Local) OnTickEnd(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, fn)
}

// Run drives the game loop until Stop is called.
func (l *Local) Run() {
	log.Info().Str("version", l.version).Msg("Starting local game loop...")
	l.ticker = time.NewTicker(TickInterval)
	defer l.ticker.Stop()

	for {
		select {
		case <-l.done:
			log.Info().Msg("Stopping local game loop.")
			return
		case <-l.ticker.C:
			l.Tick()
		}
	}
}

// Stop halts the game loop.
func (l *Local) Stop() {
	l.done <- true
}

// Tick advances the simulation by one tick and runs the tick hooks.
func (l *Local) Tick() {
	l.mu.Lock()
	l.ticks++
	l.dayTime = (l.dayTime + 1) % ticksPerDay
	hooks := append([]func(){}, l.hooks...)
	l.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// Join puts a player into a world. An empty world means the overworld.
func (l *Local) Join(name, world string, pos models.Position) error {
	world = NormalizeWorldID(world)
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.worlds[world] {
		return fmt.Errorf("join %s: %w", world, ErrWorldNotFound)
	}
	l.players[strings.ToLower(name)] = &localPlayer{name: name, world: world, pos: pos}
	l.writeLine("server", name+" joined the game")
	return nil
}

// Leave removes a player.
func (l *Local) Leave(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.players[strings.ToLower(name)]; ok {
		delete(l.players, strings.ToLower(name))
		l.writeLine("server", p.name+" left the game")
	}
}

// SetPing records a player's latency.
func (l *Local) SetPing(name string, ms int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.players[strings.ToLower(name)]; ok {
		p.ping = ms
	}
}

func (l *Local) Players(ctx context.Context) ([]models.Player, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	players := make([]models.Player, 0, len(l.players))
	for _, p := range l.players {
		players = append(players, models.Player{
			Name:      p.name,
			Ping:      models.Available(p.ping),
			Location:  models.Available(p.pos),
			Dimension: models.Available(p.world),
		})
	}
	sort.Slice(players, func(i, j int) bool { return players[i].Name < players[j].Name })
	return players, nil
}

func (l *Local) WorldInfo(ctx context.Context) (models.WorldInfo, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return models.WorldInfo{
		TimeOfDay:    models.Available(l.dayTime),
		ChunksLoaded: models.Available(l.loadedChunks()),
		UptimeTicks:  models.Available(l.ticks),
		Version:      models.Available(l.version),
	}, nil
}

// loadedChunks counts the distinct chunks kept loaded around spawn and each player.
func (l *Local) loadedChunks() int {
	type chunkKey struct {
		world string
		x, z  int
	}
	loaded := make(map[chunkKey]struct{})
	around := func(world string, cx, cz int) {
		for x := cx - viewDistance; x <= cx+viewDistance; x++ {
			for z := cz - viewDistance; z <= cz+viewDistance; z++ {
				loaded[chunkKey{world, x, z}] = struct{}{}
			}
		}
	}
	around(DefaultWorld, 0, 0)
	for _, p := range l.players {
		around(p.world, int(p.pos.X)>>4, int(p.pos.Z)>>4)
	}
	return len(loaded)
}

func (l *Local) ExecuteCommand(ctx context.Context, command string) (models.CommandResult, error) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(command), "/"))
	if len(fields) == 0 {
		return models.CommandResult{Code: 0, Output: "Unknown or incomplete command"}, nil
	}

	switch fields[0] {
	case "say":
		if len(fields) < 2 {
			return models.CommandResult{Code: 0, Output: "Unknown or incomplete command"}, nil
		}
		l.mu.Lock()
		l.writeLine("server", "[Server] "+strings.Join(fields[1:], " "))
		l.mu.Unlock()
		return models.CommandResult{Code: 1}, nil
	case "list":
		l.mu.RLock()
		names := make([]string, 0, len(l.players))
		for _, p := range l.players {
			names = append(names, p.name)
		}
		l.mu.RUnlock()
		sort.Strings(names)
		out := fmt.Sprintf("There are %d of a max of %d players online: %s", len(names), maxPlayers, strings.Join(names, ", "))
		return models.CommandResult{Code: len(names) + 1, Output: out}, nil
	case "time":
		return l.timeCommand(fields[1:]), nil
	case "tp", "teleport":
		return l.tpCommand(ctx, fields[1:]), nil
	default:
		return models.CommandResult{Code: 0, Output: "Unknown or incomplete command"}, nil
	}
}

func (l *Local) timeCommand(args []string) models.CommandResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case len(args) == 2 && args[0] == "query" && args[1] == "daytime":
		return models.CommandResult{Code: 1, Output: fmt.Sprintf("The time is %d", l.dayTime)}
	case len(args) == 2 && args[0] == "query" && args[1] == "gametime":
		return models.CommandResult{Code: 1, Output: fmt.Sprintf("The time is %d", l.ticks)}
	case len(args) == 2 && args[0] == "set":
		t, ok := parseDayTime(args[1])
		if !ok {
			return models.CommandResult{Code: 0, Output: "Invalid time: " + args[1]}
		}
		l.dayTime = t
		return models.CommandResult{Code: 1, Output: fmt.Sprintf("Set the time to %d", t)}
	}
	return models.CommandResult{Code: 0, Output: "Unknown or incomplete command"}
}

func parseDayTime(arg string) (int64, bool) {
	switch arg {
	case "day":
		return 1000, true
	case "noon":
		return 6000, true
	case "night":
		return 13000, true
	case "midnight":
		return 18000, true
	}
	t, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || t < 0 {
		return 0, false
	}
	return t % ticksPerDay, true
}

func (l *Local) tpCommand(ctx context.Context, args []string) models.CommandResult {
	if len(args) != 4 {
		return models.CommandResult{Code: 0, Output: "Unknown or incomplete command"}
	}
	var coords [3]float64
	for i, a := range args[1:] {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return models.CommandResult{Code: 0, Output: "Expected a coordinate: " + a}
		}
		coords[i] = v
	}

	l.mu.RLock()
	p, ok := l.players[strings.ToLower(args[0])]
	var world string
	if ok {
		world = p.world
	}
	l.mu.RUnlock()
	if !ok {
		return models.CommandResult{Code: 0, Output: "No player was found"}
	}

	pos := models.Position{X: coords[0], Y: coords[1], Z: coords[2]}
	if err := l.TeleportPlayer(ctx, args[0], pos, world); err != nil {
		return models.CommandResult{Code: 0, Output: err.Error()}
	}
	return models.CommandResult{Code: 1, Output: fmt.Sprintf("Teleported %s to %.2f, %.2f, %.2f", p.name, pos.X, pos.Y, pos.Z)}
}

func (l *Local) TeleportPlayer(ctx context.Context, name string, pos models.Position, world string) error {
	world, err := l.FindWorld(ctx, world)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.players[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrPlayerNotFound)
	}
	p.world = world
	p.pos = pos
	return nil
}

func (l *Local) FindWorld(ctx context.Context, id string) (string, error) {
	world := NormalizeWorldID(id)
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.worlds[world] {
		return "", fmt.Errorf("%s: %w", id, ErrWorldNotFound)
	}
	return world, nil
}

func (l *Local) EntityCounts(ctx context.Context) (map[string]map[string]int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	counts := make(map[string]map[string]int, len(l.worlds))
	for world := range l.worlds {
		counts[world] = make(map[string]int)
	}
	for _, p := range l.players {
		counts[p.world]["minecraft:player"]++
	}
	return counts, nil
}

func (l *Local) Mods(ctx context.Context) ([]models.Mod, error) {
	return append([]models.Mod(nil), l.mods...), nil
}

// writeLine must be called with l.mu held.
func (l *Local) writeLine(source, line string) {
	if l.sink != nil {
		l.sink.WriteLine(source, line)
	}
}
