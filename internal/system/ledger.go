package system

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	coresys "github.com/citysim/worldcore/internal/core/system"
	"github.com/citysim/worldcore/internal/world"
)

// LedgerStore persists region generation counters. Implemented by
// persist.RegionRepo.
type LedgerStore interface {
	SaveBatch(ctx context.Context, gens map[world.RegionCoord]uint32) error
}

// LedgerSystem periodically hands the counters changed since the last flush
// to a background save. At most one save runs at a time; a failed batch is
// merged into the next one. Phase 6 (Persist).
type LedgerSystem struct {
	tracker  *world.RegionTracker
	store    LedgerStore
	log      *zap.Logger
	interval int // flush every N ticks

	tickCount int

	mu       sync.Mutex
	inFlight bool
	retry    map[world.RegionCoord]uint32
	wg       sync.WaitGroup
}

func NewLedgerSystem(tracker *world.RegionTracker, store LedgerStore, log *zap.Logger, intervalTicks int) *LedgerSystem {
	if intervalTicks <= 0 {
		intervalTicks = 1
	}
	return &LedgerSystem{
		tracker:  tracker,
		store:    store,
		log:      log,
		interval: intervalTicks,
	}
}

func (s *LedgerSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *LedgerSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return
	}
	batch := s.takeLocked()
	if len(batch) == 0 {
		s.mu.Unlock()
		return
	}
	s.inFlight = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.save(ctx, batch)
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()
}

// Flush waits for a running save, then writes everything outstanding
// synchronously. Called on shutdown from the frame goroutine.
func (s *LedgerSystem) Flush(ctx context.Context) error {
	s.wg.Wait()
	s.mu.Lock()
	batch := s.takeLocked()
	s.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	if err := s.store.SaveBatch(ctx, batch); err != nil {
		return err
	}
	s.log.Info("generation ledger flushed", zap.Int("regions", len(batch)))
	return nil
}

// takeLocked merges pending retries with the tracker's dirty counters. The
// tracker is only touched from the frame goroutine.
func (s *LedgerSystem) takeLocked() map[world.RegionCoord]uint32 {
	batch := s.tracker.DirtyGenerations()
	for c, g := range s.retry {
		if batch == nil {
			batch = make(map[world.RegionCoord]uint32, len(s.retry))
		}
		if g > batch[c] {
			batch[c] = g
		}
	}
	s.retry = nil
	return batch
}

func (s *LedgerSystem) save(ctx context.Context, batch map[world.RegionCoord]uint32) {
	if err := s.store.SaveBatch(ctx, batch); err != nil {
		s.log.Error("generation ledger save failed", zap.Int("regions", len(batch)), zap.Error(err))
		s.mu.Lock()
		if s.retry == nil {
			s.retry = make(map[world.RegionCoord]uint32, len(batch))
		}
		for c, g := range batch {
			if g > s.retry[c] {
				s.retry[c] = g
			}
		}
		s.mu.Unlock()
		return
	}
	s.log.Debug("generation ledger saved", zap.Int("regions", len(batch)))
}
