package system

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/citysim/worldcore/internal/core/ecs"
	"github.com/citysim/worldcore/internal/core/event"
	coresys "github.com/citysim/worldcore/internal/core/system"
	"github.com/citysim/worldcore/internal/world"
)

// LimitSystem enforces per-category entity ceilings at most hz times per
// second of frame time. Phase 2 (Limit).
type LimitSystem struct {
	frame    *FrameState
	registry *world.Registry
	spawner  world.Spawner
	bus      *event.Bus
	limiter  *rate.Limiter
}

// NewLimitSystem creates the system. hz <= 0 enforces every frame.
func NewLimitSystem(frame *FrameState, registry *world.Registry, spawner world.Spawner, bus *event.Bus, hz float64) *LimitSystem {
	limit := rate.Inf
	if hz > 0 {
		limit = rate.Limit(hz)
	}
	return &LimitSystem{
		frame:    frame,
		registry: registry,
		spawner:  spawner,
		bus:      bus,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

func (s *LimitSystem) Phase() coresys.Phase { return coresys.PhaseLimit }

func (s *LimitSystem) Update(_ time.Duration) {
	if !s.limiter.AllowN(s.frame.Now(), 1) {
		return
	}
	evicted := s.registry.EnforceLimits()
	if len(evicted) == 0 {
		return
	}
	ids := make([]ecs.EntityID, len(evicted))
	for i := range evicted {
		ids[i] = evicted[i].ID
	}
	s.spawner.Despawn(ids, world.DespawnEvicted)
	event.Emit(s.bus, event.EntitiesEvicted{Frame: s.frame.Frame, Evicted: evicted})
}
