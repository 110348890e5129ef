package monitoring

import (
	"math"
	"os"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/isdelr/metrics-bridge/internal/models"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

const (
	// WindowSize is the number of tick durations kept (~10s at 20 TPS).
	WindowSize = 200
	// MaxTPS is the host's nominal tick rate.
	MaxTPS = 20.0
)

// Sampler keeps a rolling window of tick durations. OnTickEnd is called from
// the host's tick thread; every other method may run concurrently with it.
type Sampler struct {
	mu     sync.RWMutex
	window [WindowSize]int64 // nanoseconds, ring buffer
	next   int
	count  int
	last   time.Time
	now    func() time.Time

	cpuMu sync.Mutex
	proc  *process.Process
}

// NewSampler creates a sampler whose first tick is measured from now.
func NewSampler() *Sampler {
	s := &Sampler{now: time.Now}
	s.last = s.now()

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		// The first Percent(0) call only primes the CPU time baseline.
		if _, err := p.Percent(0); err == nil {
			s.proc = p
		}
	}
	return s
}

// OnTickEnd records the time elapsed since the previous tick boundary.
func (s *Sampler) OnTickEnd() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.push(now.Sub(s.last))
	s.last = now
}

// Record pushes a tick duration directly into the window.
func (s *Sampler) Record(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.push(d)
}

// push must be called with s.mu held. Negative durations are clamped to zero.
func (s *Sampler) push(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.window[s.next] = int64(d)
	s.next = (s.next + 1) % WindowSize
	if s.count < WindowSize {
		s.count++
	}
}

// Len returns the number of samples in the window.
func (s *Sampler) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// AvgTickMs returns the mean tick duration in milliseconds, or NaN before the first tick.
func (s *Sampler) AvgTickMs() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.count == 0 {
		return math.NaN()
	}

	// Oldest entry sits at next once the ring has wrapped.
	start := 0
	if s.count == WindowSize {
		start = s.next
	}
	var sum float64
	for i := 0; i < s.count; i++ {
		sum += float64(s.window[(start+i)%WindowSize])
	}
	return sum / float64(s.count) / float64(time.Millisecond)
}

// TPS derives ticks per second from AvgTickMs, capped at MaxTPS.
func (s *Sampler) TPS() float64 {
	ms := s.AvgTickMs()
	if math.IsNaN(ms) || ms <= 0 {
		return math.NaN()
	}
	return math.Min(MaxTPS, 1000.0/ms)
}

// CPUProcessLoad returns this process's CPU usage since the previous call as
// a 0-100 share of all cores, or NaN when the OS facility is unavailable.
func (s *Sampler) CPUProcessLoad() float64 {
	if s.proc == nil {
		return math.NaN()
	}
	s.cpuMu.Lock()
	defer s.cpuMu.Unlock()

	p, err := s.proc.Percent(0)
	if err != nil || p < 0 {
		return math.NaN()
	}
	return math.Min(100, p/float64(runtime.NumCPU()))
}

// Memory reports heap accounting from the Go runtime. Max is the configured
// memory limit, or physical memory when no limit is set.
func (s *Sampler) Memory() models.MemoryStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := models.MemoryStats{
		Total: ms.HeapSys,
		Used:  ms.HeapAlloc,
		Free:  ms.HeapSys - ms.HeapAlloc,
		Max:   ms.Sys,
	}
	if limit := debug.SetMemoryLimit(-1); limit > 0 && limit != math.MaxInt64 {
		stats.Max = uint64(limit)
	} else if vm, err := mem.VirtualMemory(); err == nil {
		stats.Max = vm.Total
	}
	return stats
}
