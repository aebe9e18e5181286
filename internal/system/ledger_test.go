package system

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/citysim/worldcore/internal/core/ecs"
	"github.com/citysim/worldcore/internal/world"
)

type memLedger struct {
	mu    sync.Mutex
	saved map[world.RegionCoord]uint32
	fail  bool
	calls int
}

func (m *memLedger) SaveBatch(_ context.Context, gens map[world.RegionCoord]uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail {
		return errors.New("connection refused")
	}
	if m.saved == nil {
		m.saved = make(map[world.RegionCoord]uint32)
	}
	for c, g := range gens {
		if g > m.saved[c] {
			m.saved[c] = g
		}
	}
	return nil
}

func newLedgerFixture(t *testing.T, store LedgerStore, interval int) (*world.RegionTracker, *LedgerSystem) {
	t.Helper()
	s := testSettings()
	log := zaptest.NewLogger(t)
	w := ecs.NewWorld()
	reg := world.NewRegistry(s.Grid, s.Limits, w, log)
	tracker := world.NewRegionTracker(s.Grid, s.Streaming, reg, w, log)
	return tracker, NewLedgerSystem(tracker, store, log, interval)
}

func TestLedgerFlushesOnInterval(t *testing.T) {
	store := &memLedger{}
	tracker, ledger := newLedgerFixture(t, store, 3)
	c := world.RegionCoord{X: 2, Z: 3}
	if _, _, err := tracker.RequestLoad(c); err != nil {
		t.Fatal(err)
	}

	ledger.Update(dt)
	ledger.Update(dt)
	if err := ledger.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if store.saved[c] != 1 {
		t.Fatalf("saved = %v", store.saved)
	}

	// Nothing dirty: the interval tick saves nothing.
	calls := store.calls
	ledger.Update(dt)
	ledger.Update(dt)
	ledger.Update(dt)
	ledger.wg.Wait()
	if store.calls != calls {
		t.Fatalf("clean flush hit the store")
	}
}

func TestLedgerRetriesFailedBatch(t *testing.T) {
	store := &memLedger{fail: true}
	tracker, ledger := newLedgerFixture(t, store, 1)
	c := world.RegionCoord{X: 0, Z: 0}
	if _, _, err := tracker.RequestLoad(c); err != nil {
		t.Fatal(err)
	}
	ledger.Update(dt)
	ledger.wg.Wait()
	if len(store.saved) != 0 {
		t.Fatal("failing store recorded data")
	}

	store.mu.Lock()
	store.fail = false
	store.mu.Unlock()
	if err := ledger.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if store.saved[c] != 1 {
		t.Fatalf("retry lost the counter: %v", store.saved)
	}
}
