package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultRecordSpec records one history point per minute.
	DefaultRecordSpec = "@every 1m"
	// DefaultPruneSpec prunes old history at the top of every hour.
	DefaultPruneSpec = "@hourly"

	jobTimeout = 30 * time.Second
)

// Scheduler runs the periodic history jobs on a cron schedule.
type Scheduler struct {
	cron      *cron.Cron
	updater   *StatUpdater
	retention time.Duration
	mu        sync.Mutex
	done      chan bool
}

// NewScheduler registers the record and prune jobs. Both specs use the
// standard cron syntax or a descriptor such as "@every 1m".
func NewScheduler(updater *StatUpdater, recordSpec, pruneSpec string, retention time.Duration) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(),
		updater:   updater,
		retention: retention,
		done:      make(chan bool),
	}
	if _, err := s.cron.AddFunc(recordSpec, s.recordPoint); err != nil {
		return nil, fmt.Errorf("invalid record schedule %q: %w", recordSpec, err)
	}
	if _, err := s.cron.AddFunc(pruneSpec, s.pruneHistory); err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", pruneSpec, err)
	}
	return s, nil
}

// Run starts the cron runner and blocks until Stop is called.
func (s *Scheduler) Run() {
	log.Info().Int("jobs", len(s.cron.Entries())).Msg("Starting background scheduler...")

	// Run once immediately on start
	s.recordPoint()
	s.cron.Start()

	<-s.done
	<-s.cron.Stop().Done()
	log.Info().Msg("Stopping background scheduler.")
}

// Stop halts the scheduler.
func (s *Scheduler) Stop() {
	s.done <- true
}

func (s *Scheduler) recordPoint() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if err := s.updater.RecordSnapshot(ctx); err != nil {
		log.Error().Err(err).Msg("Scheduler: Failed to record metrics history")
	}
}

func (s *Scheduler) pruneHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.updater.PruneHistory(s.retention)
	if err != nil {
		log.Error().Err(err).Msg("Scheduler: Failed to prune metrics history")
		return
	}
	log.Debug().Int64("removed", n).Msg("Scheduler: Pruned metrics history")
}
