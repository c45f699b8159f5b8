package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"saathi-backend/internal/chat"
)

const sweepInterval = time.Minute

// Purger is implemented by stores that keep expired logs around until asked
// to drop them (memory, Postgres and SQLite). Redis expires keys on its own.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// SessionSweeper periodically forgets idle sessions and purges expired logs.
type SessionSweeper struct {
	registry *chat.Registry
	purger   Purger
	idle     time.Duration
	interval time.Duration
	now      func() time.Time
	stopChan chan struct{}
	done     chan struct{}
}

// NewSessionSweeper builds a sweeper. store may be any chat.LogStore; it is
// purged only when it implements Purger.
func NewSessionSweeper(registry *chat.Registry, store chat.LogStore, idle time.Duration) *SessionSweeper {
	purger, _ := store.(Purger)
	return &SessionSweeper{
		registry: registry,
		purger:   purger,
		idle:     idle,
		interval: sweepInterval,
		now:      time.Now,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *SessionSweeper) Start() {
	go s.loop()
	log.Info().Dur("idle", s.idle).Dur("interval", s.interval).Msg("session sweeper started")
}

// Stop ends the loop and waits for an in-progress sweep to finish.
func (s *SessionSweeper) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
	<-s.done
}

func (s *SessionSweeper) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunOnce(context.Background())
		}
	}
}

// RunOnce performs one sweep and returns the number of sessions forgotten
// and stored logs purged.
func (s *SessionSweeper) RunOnce(ctx context.Context) (evicted int, purged int64) {
	evicted = s.registry.Sweep(s.now(), s.idle)

	if s.purger != nil {
		var err error
		purged, err = s.purger.PurgeExpired(ctx)
		if err != nil {
			log.Error().Err(err).Msg("session sweeper: failed to purge expired chat logs")
		}
	}

	if evicted > 0 || purged > 0 {
		log.Info().Int("evicted", evicted).Int64("purged", purged).Msg("session sweep")
	}
	return evicted, purged
}
