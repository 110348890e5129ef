package host

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/isdelr/metrics-bridge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedConn answers commands from a prefix table.
type scriptedConn struct {
	mu       sync.Mutex
	replies  map[string]string
	commands []string
	closed   int
}

func (c *scriptedConn) Execute(command string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, command)
	for prefix, reply := range c.replies {
		if strings.HasPrefix(command, prefix) {
			return reply, nil
		}
	}
	return "Unknown or incomplete command, see below for error", nil
}

func (c *scriptedConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func newScriptedRCON(conn *scriptedConn) *RCON {
	return NewRCON(StaticAddr("127.0.0.1:25575"), "pw").WithDialer(func(addr, password string) (Conn, error) {
		return conn, nil
	}, 0)
}

func TestRCON_ExecuteCommand(t *testing.T) {
	t.Parallel()

	conn := &scriptedConn{replies: map[string]string{"say": ""}}
	c := newScriptedRCON(conn)

	res, err := c.ExecuteCommand(context.Background(), "/say hi")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Code)
	assert.Equal(t, []string{"say hi"}, conn.commands)
	assert.Equal(t, 1, conn.closed)

	res, err = c.ExecuteCommand(context.Background(), "bogus")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Code)
}

func TestRCON_DialRetriesThenFails(t *testing.T) {
	t.Parallel()

	attempts := 0
	c := NewRCON(StaticAddr("127.0.0.1:1"), "pw").WithDialer(func(addr, password string) (Conn, error) {
		attempts++
		return nil, errors.New("connection refused")
	}, 0)

	_, err := c.ExecuteCommand(context.Background(), "list")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, attempts)
}

func TestRCON_DialRecovers(t *testing.T) {
	t.Parallel()

	conn := &scriptedConn{replies: map[string]string{"list": "There are 0 of a max of 20 players online: "}}
	attempts := 0
	c := NewRCON(StaticAddr("127.0.0.1:25575"), "pw").WithDialer(func(addr, password string) (Conn, error) {
		attempts++
		if attempts < 2 {
			return nil, errors.New("not ready")
		}
		return conn, nil
	}, 0)

	players, err := c.Players(context.Background())
	require.NoError(t, err)
	assert.Empty(t, players)
	assert.Equal(t, 2, attempts)
}

func TestRCON_ResolveFailureIsUnavailable(t *testing.T) {
	t.Parallel()

	c := NewRCON(func(context.Context) (string, error) {
		return "", errors.New("container not running")
	}, "pw")

	_, err := c.WorldInfo(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRCON_Players(t *testing.T) {
	t.Parallel()

	conn := &scriptedConn{replies: map[string]string{
		"list":                           "There are 2 of a max of 20 players online: Steve, Alex",
		"data get entity Steve Pos":      "Steve has the following entity data: [10.5d, 64.0d, -3.25d]",
		"data get entity Steve Dim":      `Steve has the following entity data: "minecraft:overworld"`,
		"data get entity Alex Pos":       "No entity was found",
		"data get entity Alex Dimension": `Alex has the following entity data: "minecraft:the_nether"`,
	}}
	players, err := newScriptedRCON(conn).Players(context.Background())
	require.NoError(t, err)
	require.Len(t, players, 2)

	assert.Equal(t, "Steve", players[0].Name)
	assert.Equal(t, models.Available(models.Position{X: 10.5, Y: 64, Z: -3.25}), players[0].Location)
	assert.Equal(t, models.Available("minecraft:overworld"), players[0].Dimension)
	assert.False(t, players[0].Ping.Valid, "rcon cannot report ping")
	assert.False(t, players[1].Location.Valid)
	assert.Equal(t, models.Available("minecraft:the_nether"), players[1].Dimension)
}

func TestRCON_WorldInfo(t *testing.T) {
	t.Parallel()

	conn := &scriptedConn{replies: map[string]string{"time query daytime": "The time is 13000"}}
	info, err := newScriptedRCON(conn).WorldInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.Available(int64(13000)), info.TimeOfDay)
	assert.False(t, info.UptimeTicks.Valid)
	assert.False(t, info.ChunksLoaded.Valid)
}

func TestRCON_FindWorldAndTeleport(t *testing.T) {
	t.Parallel()

	conn := &scriptedConn{replies: map[string]string{
		"execute in minecraft:the_nether run time query": "The time is 123",
		"execute in minecraft:the_nether run tp Steve":   "Teleported Steve to 1.0, 2.0, 3.0",
		"execute in minecraft:the_nether run tp Alex":    "No entity was found",
	}}
	c := newScriptedRCON(conn)
	ctx := context.Background()

	world, err := c.FindWorld(ctx, "nether")
	require.NoError(t, err)
	assert.Equal(t, "minecraft:the_nether", world)

	_, err = c.FindWorld(ctx, "the_void")
	assert.ErrorIs(t, err, ErrWorldNotFound)

	require.NoError(t, c.TeleportPlayer(ctx, "Steve", models.Position{X: 1, Y: 2.5, Z: 3}, "nether"))
	assert.Contains(t, conn.commands, "execute in minecraft:the_nether run tp Steve 1 2.5 3")

	assert.ErrorIs(t, c.TeleportPlayer(ctx, "Alex", models.Position{}, "nether"), ErrPlayerNotFound)
}

func TestParsePlayerList(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "b"}, parsePlayerList("There are 2 of a max of 20 players online: a, b"))
	assert.Empty(t, parsePlayerList("There are 0 of a max of 20 players online: "))
	assert.Empty(t, parsePlayerList("garbage"))
}
