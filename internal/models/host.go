package models

// Position is a location in a world.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Player is an online player as reported by the host server.
type Player struct {
	Name      string          `json:"name"`
	Ping      Field[int]      `json:"ping"`
	Location  Field[Position] `json:"location"`
	Dimension Field[string]   `json:"dimension"`
}

// WorldInfo is the host's world state. Each field is optional.
type WorldInfo struct {
	TimeOfDay    Field[int64]  `json:"timeOfDay"`
	ChunksLoaded Field[int]    `json:"chunksLoaded"`
	UptimeTicks  Field[int64]  `json:"uptimeTicks"`
	Version      Field[string] `json:"version"`
}

// CommandResult is the outcome of a console command dispatched to the host.
type CommandResult struct {
	Code   int    `json:"result"`
	Output string `json:"output"`
}

// Success reports whether the host accepted the command.
func (r CommandResult) Success() bool {
	return r.Code > 0
}

// Mod describes a loaded server modification.
type Mod struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// TeleportRequest is a validated-on-use teleport order. Nil coordinates are missing.
type TeleportRequest struct {
	Player string   `json:"player"`
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	Z      *float64 `json:"z"`
	World  string   `json:"world"`
}
