package system

import (
	"time"

	"github.com/citysim/worldcore/internal/core/event"
	coresys "github.com/citysim/worldcore/internal/core/system"
	"github.com/citysim/worldcore/internal/world"
)

// LODSystem evaluates tiers for a budgeted slice of the registry each
// frame, resuming where the previous frame stopped. Phase 3 (LOD).
type LODSystem struct {
	frame    *FrameState
	registry *world.Registry
	cache    *world.DistanceCache
	lod      *world.LODCoordinator
	bus      *event.Bus
	budget   int // 0 = every entity every frame
	cursor   int
}

func NewLODSystem(frame *FrameState, registry *world.Registry, cache *world.DistanceCache, lod *world.LODCoordinator, bus *event.Bus, budget int) *LODSystem {
	return &LODSystem{
		frame:    frame,
		registry: registry,
		cache:    cache,
		lod:      lod,
		bus:      bus,
		budget:   budget,
	}
}

func (s *LODSystem) Phase() coresys.Phase { return coresys.PhaseLOD }

func (s *LODSystem) Update(_ time.Duration) {
	if !s.frame.HasReference {
		return
	}
	n := s.registry.Len()
	if n == 0 {
		return
	}
	count := n
	if s.budget > 0 && s.budget < n {
		count = s.budget
	}
	for i := 0; i < count; i++ {
		if s.cursor >= n {
			s.cursor = 0
		}
		e := s.registry.At(s.cursor)
		s.cursor++
		d := s.cache.GetOrCompute(e.ID, e.Position)
		if change, ok := s.lod.UpdateTier(e.ID, e.Category, d); ok {
			event.Emit(s.bus, event.TierChanged{Frame: s.frame.Frame, Change: change})
		}
	}
}
