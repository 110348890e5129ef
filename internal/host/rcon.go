package host

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gorcon/rcon"
	"github.com/isdelr/metrics-bridge/internal/models"
	"github.com/rs/zerolog/log"
)

// Conn is the subset of an RCON connection the collaborator uses.
type Conn interface {
	Execute(command string) (string, error)
	Close() error
}

// DialFunc opens an RCON connection.
type DialFunc func(addr, password string) (Conn, error)

// AddrResolver returns the RCON address to dial.
type AddrResolver func(ctx context.Context) (string, error)

var (
	timeQueryRe = regexp.MustCompile(`The time is (-?\d+)`)
	vectorRe    = regexp.MustCompile(`\[(-?[0-9.E-]+)d, (-?[0-9.E-]+)d, (-?[0-9.E-]+)d\]`)
	quotedRe    = regexp.MustCompile(`"([^"]+)"`)
)

// RCON is a host collaborator for a game server reachable over RCON.
type RCON struct {
	resolve    AddrResolver
	password   string
	dial       DialFunc
	attempts   int
	retryDelay time.Duration
}

// NewRCON creates an RCON collaborator. The address is resolved on every dial
// so a restarted container with a new port binding is picked up.
func NewRCON(resolve AddrResolver, password string) *RCON {
	return &RCON{
		resolve:  resolve,
		password: password,
		dial: func(addr, password string) (Conn, error) {
			conn, err := rcon.Dial(addr, password, rcon.SetDialTimeout(5*time.Second), rcon.SetDeadline(10*time.Second))
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
		attempts:   3,
		retryDelay: 2 * time.Second,
	}
}

// StaticAddr resolves to a fixed address.
func StaticAddr(addr string) AddrResolver {
	return func(context.Context) (string, error) { return addr, nil }
}

// WithDialer replaces the RCON dialer.
func (c *RCON) WithDialer(dial DialFunc, retryDelay time.Duration) *RCON {
	c.dial = dial
	c.retryDelay = retryDelay
	return c
}

func (c *RCON) execute(ctx context.Context, command string) (string, error) {
	addr, err := c.resolve(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve rcon address: %w: %v", ErrUnavailable, err)
	}

	var conn Conn
	var dialErr error

	// The server may accept TCP before RCON is ready, so retry a few times.
	for i := 0; i < c.attempts; i++ {
		conn, dialErr = c.dial(addr, c.password)
		if dialErr == nil {
			break
		}
		log.Warn().Err(dialErr).Str("addr", addr).Int("attempt", i+1).Msg("RCON connection attempt failed, retrying...")
		if i == c.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
	if dialErr != nil {
		return "", fmt.Errorf("could not connect via rcon after %d attempts: %w: %v", c.attempts, ErrUnavailable, dialErr)
	}
	defer conn.Close()

	response, err := conn.Execute(command)
	if err != nil {
		return "", fmt.Errorf("rcon command failed: %w: %v", ErrUnavailable, err)
	}
	return response, nil
}

func (c *RCON) ExecuteCommand(ctx context.Context, command string) (models.CommandResult, error) {
	response, err := c.execute(ctx, strings.TrimPrefix(strings.TrimSpace(command), "/"))
	if err != nil {
		return models.CommandResult{}, err
	}
	log.Info().Str("command", command).Str("response", response).Msg("RCON command executed")

	code := 1
	if isFailureResponse(response) {
		code = 0
	}
	return models.CommandResult{Code: code, Output: response}, nil
}

func isFailureResponse(response string) bool {
	for _, prefix := range []string{"Unknown or incomplete command", "Unknown command", "Incorrect argument", "No player was found", "No entity was found"} {
		if strings.HasPrefix(response, prefix) {
			return true
		}
	}
	return false
}

func (c *RCON) Players(ctx context.Context) ([]models.Player, error) {
	response, err := c.execute(ctx, "list")
	if err != nil {
		return nil, err
	}

	names := parsePlayerList(response)
	players := make([]models.Player, len(names))
	for i, name := range names {
		players[i] = models.Player{Name: name, Ping: models.Missing[int]()}
		if out, err := c.execute(ctx, "data get entity "+name+" Pos"); err == nil {
			if pos, ok := parseVector(out); ok {
				players[i].Location = models.Available(pos)
			}
		}
		if out, err := c.execute(ctx, "data get entity "+name+" Dimension"); err == nil {
			if m := quotedRe.FindStringSubmatch(out); m != nil {
				players[i].Dimension = models.Available(m[1])
			}
		}
	}
	return players, nil
}

// parsePlayerList parses "There are 2 of a max of 20 players online: a, b".
func parsePlayerList(response string) []string {
	parts := strings.SplitN(response, ":", 2)
	if len(parts) < 2 {
		return []string{}
	}

	playerNamesStr := strings.TrimSpace(parts[1])
	if playerNamesStr == "" {
		return []string{}
	}
	return strings.Split(playerNamesStr, ", ")
}

func parseVector(s string) (models.Position, bool) {
	m := vectorRe.FindStringSubmatch(s)
	if m == nil {
		return models.Position{}, false
	}
	var v [3]float64
	for i := range v {
		f, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return models.Position{}, false
		}
		v[i] = f
	}
	return models.Position{X: v[0], Y: v[1], Z: v[2]}, true
}

func parseTimeQuery(s string) (int64, bool) {
	m := timeQueryRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	t, err := strconv.ParseInt(m[1], 10, 64)
	return t, err == nil
}

func (c *RCON) WorldInfo(ctx context.Context) (models.WorldInfo, error) {
	response, err := c.execute(ctx, "time query daytime")
	if err != nil {
		return models.WorldInfo{}, err
	}
	info := models.WorldInfo{}
	if t, ok := parseTimeQuery(response); ok {
		info.TimeOfDay = models.Available(t)
	}
	return info, nil
}

func (c *RCON) TeleportPlayer(ctx context.Context, name string, pos models.Position, world string) error {
	world, err := c.FindWorld(ctx, world)
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf("execute in %s run tp %s %s %s %s", world, name,
		strconv.FormatFloat(pos.X, 'f', -1, 64),
		strconv.FormatFloat(pos.Y, 'f', -1, 64),
		strconv.FormatFloat(pos.Z, 'f', -1, 64))
	response, err := c.execute(ctx, cmd)
	if err != nil {
		return err
	}
	if strings.HasPrefix(response, "No entity was found") || strings.HasPrefix(response, "No player was found") {
		return fmt.Errorf("%s: %w", name, ErrPlayerNotFound)
	}
	if isFailureResponse(response) {
		return fmt.Errorf("teleport rejected: %s", response)
	}
	return nil
}

// FindWorld probes the dimension by running a harmless query inside it.
func (c *RCON) FindWorld(ctx context.Context, id string) (string, error) {
	world := NormalizeWorldID(id)
	response, err := c.execute(ctx, "execute in "+world+" run time query gametime")
	if err != nil {
		return "", err
	}
	if _, ok := parseTimeQuery(response); !ok {
		return "", fmt.Errorf("%s: %w", id, ErrWorldNotFound)
	}
	return world, nil
}
