package services

import (
	"context"
	"io/fs"
	"math"
	"path/filepath"
	"time"

	"github.com/isdelr/metrics-bridge/internal/host"
	"github.com/isdelr/metrics-bridge/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/disk"
)

const (
	mb = 1024 * 1024
	gb = 1024 * 1024 * 1024

	// sourceTimeout bounds each collaborator query within one snapshot.
	sourceTimeout = 3 * time.Second
)

// SamplerReader is the read side of the tick sampler.
type SamplerReader interface {
	AvgTickMs() float64
	TPS() float64
	CPUProcessLoad() float64
	Memory() models.MemoryStats
}

// DiskUsageFunc reports total and free bytes of the filesystem holding path.
type DiskUsageFunc func(ctx context.Context, path string) (total, free uint64, err error)

// MetricsServiceProvider defines the interface for metrics services.
type MetricsServiceProvider interface {
	Snapshot(ctx context.Context) models.MetricsSnapshot
}

// MetricsService assembles a fresh snapshot per call. Nothing is cached.
type MetricsService struct {
	sampler   SamplerReader
	host      host.Server
	worldDir  string
	diskUsage DiskUsageFunc
	now       func() time.Time
}

// NewMetricsService creates a new MetricsService.
func NewMetricsService(sampler SamplerReader, srv host.Server, worldDir string) *MetricsService {
	return &MetricsService{
		sampler:   sampler,
		host:      srv,
		worldDir:  worldDir,
		diskUsage: gopsutilDiskUsage,
		now:       time.Now,
	}
}

func gopsutilDiskUsage(ctx context.Context, path string) (uint64, uint64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, 0, err
	}
	return usage.Total, usage.Free, nil
}

// Snapshot reads every source independently. A failed source marks its
// fields unavailable; the snapshot as a whole always succeeds.
func (s *MetricsService) Snapshot(ctx context.Context) models.MetricsSnapshot {
	snap := models.MetricsSnapshot{Timestamp: s.now()}

	snap.TPS = models.Float(round2(s.sampler.TPS()))
	snap.TickTimeMs = models.Float(round2(s.sampler.AvgTickMs()))
	snap.CPUUsagePercent = models.Float(round2(s.sampler.CPUProcessLoad()))

	mem := s.sampler.Memory()
	snap.RAMUsageMB = int64(math.Round(float64(mem.Used) / mb))
	snap.RAMTotalMB = int64(math.Round(float64(mem.Total) / mb))
	snap.RAMMaxMB = int64(math.Round(float64(mem.Max) / mb))
	if mem.Total > 0 {
		snap.RAMUsagePercent = int64(math.Round(float64(mem.Used) / float64(mem.Total) * 100))
	}

	s.fillPlayers(ctx, &snap)
	s.fillWorld(ctx, &snap)
	s.fillDisk(ctx, &snap)
	s.fillEntities(ctx, &snap)
	s.fillMods(ctx, &snap)
	return snap
}

func (s *MetricsService) fillPlayers(ctx context.Context, snap *models.MetricsSnapshot) {
	ctx, cancel := context.WithTimeout(ctx, sourceTimeout)
	defer cancel()

	players, err := s.host.Players(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Metrics: player list unavailable")
		return
	}
	if players == nil {
		players = []models.Player{}
	}
	snap.Players = models.Available(players)
	snap.PlayerCount = models.Available(len(players))

	var sum, n int64
	for _, p := range players {
		if p.Ping.Valid {
			sum += int64(p.Ping.Value)
			n++
		}
	}
	if n > 0 {
		snap.NetworkLatencyMs = models.Available(int64(math.Round(float64(sum) / float64(n))))
	}
}

func (s *MetricsService) fillWorld(ctx context.Context, snap *models.MetricsSnapshot) {
	ctx, cancel := context.WithTimeout(ctx, sourceTimeout)
	defer cancel()

	info, err := s.host.WorldInfo(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Metrics: world info unavailable")
		return
	}
	snap.WorldTime = info.TimeOfDay
	snap.ChunksLoaded = info.ChunksLoaded
	snap.MinecraftVersion = info.Version
	if info.UptimeTicks.Valid {
		snap.ServerUptimeMs = models.Available(info.UptimeTicks.Value * host.TickInterval.Milliseconds())
	}
}

func (s *MetricsService) fillDisk(ctx context.Context, snap *models.MetricsSnapshot) {
	if s.worldDir != "" {
		if size, err := directorySize(s.worldDir); err == nil {
			snap.WorldSizeMB = models.Available(int64(math.Round(float64(size) / mb)))
		} else {
			log.Debug().Err(err).Str("path", s.worldDir).Msg("Metrics: could not calculate world size")
		}
	}

	path := s.worldDir
	if path == "" {
		path = "."
	}
	total, free, err := s.diskUsage(ctx, path)
	if err != nil || total == 0 {
		log.Debug().Err(err).Str("path", path).Msg("Metrics: disk usage unavailable")
		return
	}
	snap.DiskTotalGB = models.Available(int64(math.Round(float64(total) / gb)))
	snap.DiskFreeGB = models.Available(int64(math.Round(float64(free) / gb)))
	snap.DiskUsagePercent = models.Available(int64(math.Round(float64(total-free) / float64(total) * 100)))
}

// directorySize sums the sizes of all regular files under path.
func directorySize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			size += info.Size()
		}
		return nil
	})
	return size, err
}

func (s *MetricsService) fillEntities(ctx context.Context, snap *models.MetricsSnapshot) {
	counter, ok := s.host.(host.EntityCounter)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, sourceTimeout)
	defer cancel()

	byWorld, err := counter.EntityCounts(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Metrics: entity counts unavailable")
		return
	}
	summary := make(map[string]int)
	total := 0
	for _, types := range byWorld {
		for entityType, n := range types {
			summary[entityType] += n
			total += n
		}
	}
	snap.EntityCountsByWorld = models.Available(byWorld)
	snap.EntityCountsSummary = models.Available(summary)
	snap.TotalEntities = models.Available(total)
}

func (s *MetricsService) fillMods(ctx context.Context, snap *models.MetricsSnapshot) {
	lister, ok := s.host.(host.ModLister)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, sourceTimeout)
	defer cancel()

	mods, err := lister.Mods(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Metrics: mod list unavailable")
		return
	}
	if mods == nil {
		mods = []models.Mod{}
	}
	snap.ModStatus = models.Available(models.ModStatus{LoadedMods: mods, ModCount: len(mods)})
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
