package models

import "time"

// MemoryStats holds byte counts from the runtime's memory accounting.
type MemoryStats struct {
	Total uint64 `json:"total"`
	Used  uint64 `json:"used"`
	Free  uint64 `json:"free"`
	Max   uint64 `json:"max"`
}

// ModStatus summarises the host's loaded mods.
type ModStatus struct {
	LoadedMods []Mod `json:"loaded_mods"`
	ModCount   int   `json:"mod_count"`
}

// MetricsSnapshot is a point-in-time view of the host, built fresh per request.
type MetricsSnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	TPS             Field[float64] `json:"tps"`
	TickTimeMs      Field[float64] `json:"tick_time_ms"`
	CPUUsagePercent Field[float64] `json:"cpu_usage_percent"`

	RAMUsageMB      int64 `json:"ram_usage_mb"`
	RAMTotalMB      int64 `json:"ram_total_mb"`
	RAMMaxMB        int64 `json:"ram_max_mb"`
	RAMUsagePercent int64 `json:"ram_usage_percent"`

	PlayerCount      Field[int]      `json:"player_count"`
	NetworkLatencyMs Field[int64]    `json:"network_latency_ms"`
	Players          Field[[]Player] `json:"players"`

	ServerUptimeMs   Field[int64]  `json:"server_uptime_ms"`
	MinecraftVersion Field[string] `json:"minecraft_version"`
	WorldTime        Field[int64]  `json:"world_time"`
	ChunksLoaded     Field[int]    `json:"chunks_loaded"`

	WorldSizeMB      Field[int64] `json:"world_size_mb"`
	DiskFreeGB       Field[int64] `json:"disk_free_gb"`
	DiskTotalGB      Field[int64] `json:"disk_total_gb"`
	DiskUsagePercent Field[int64] `json:"disk_usage_percent"`

	TotalEntities       Field[int]                       `json:"total_entities"`
	EntityCountsByWorld Field[map[string]map[string]int] `json:"entity_counts_by_world"`
	EntityCountsSummary Field[map[string]int]            `json:"entity_counts_summary"`

	ModStatus Field[ModStatus] `json:"mod_status"`
}

// ResourceDataPoint is one row of recorded metrics history.
type ResourceDataPoint struct {
	Timestamp   time.Time      `json:"timestamp"`
	TPS         Field[float64] `json:"tps"`
	TickTimeMs  Field[float64] `json:"tickTimeMs"`
	CPUUsage    Field[float64] `json:"cpuUsage"`
	RAMUsageMB  int64          `json:"ramUsageMb"`
	PlayerCount Field[int]     `json:"playerCount"`
}
