package system

import (
	"time"

	"github.com/citysim/worldcore/internal/core/ecs"
	"github.com/citysim/worldcore/internal/core/event"
	coresys "github.com/citysim/worldcore/internal/core/system"
	"github.com/citysim/worldcore/internal/world"
)

// PhysicsSystem feeds the activation service. Active entities are checked
// every frame; Dormant ones are scanned a budgeted slice at a time,
// resuming where the previous frame stopped. Phase 4 (Physics).
type PhysicsSystem struct {
	frame      *FrameState
	registry   *world.Registry
	cache      *world.DistanceCache
	physics    *world.PhysicsService
	profiles   *world.Profiles
	bus        *event.Bus
	scan       int // 0 = every entity every frame
	cursor     int
	candidates []world.PhysicsCandidate
	gone       []ecs.EntityID

	last world.StepResult
}

func NewPhysicsSystem(frame *FrameState, registry *world.Registry, cache *world.DistanceCache, physics *world.PhysicsService, profiles *world.Profiles, bus *event.Bus, scan int) *PhysicsSystem {
	return &PhysicsSystem{
		frame:    frame,
		registry: registry,
		cache:    cache,
		physics:  physics,
		profiles: profiles,
		bus:      bus,
		scan:     scan,
	}
}

func (s *PhysicsSystem) Phase() coresys.Phase { return coresys.PhasePhysics }

func (s *PhysicsSystem) Update(_ time.Duration) {
	s.releaseDeregistered()
	if !s.frame.HasReference {
		return
	}
	s.candidates = s.candidates[:0]
	s.physics.EachActive(func(id ecs.EntityID, _ world.Category) {
		if e, ok := s.registry.Get(id); ok {
			s.add(e)
		}
	})

	n := s.registry.Len()
	count := n
	if s.scan > 0 && s.scan < n {
		count = s.scan
	}
	for i := 0; i < count; i++ {
		if s.cursor >= n {
			s.cursor = 0
		}
		e := s.registry.At(s.cursor)
		s.cursor++
		if s.physics.Residency(e.ID) == world.Active || !s.profiles[e.Category].Physics.Eligible {
			continue
		}
		s.add(e)
	}

	s.last = s.physics.Step(s.candidates)
	s.emit(s.last.Changes)
}

func (s *PhysicsSystem) add(e *world.TrackedEntity) {
	s.candidates = append(s.candidates, world.PhysicsCandidate{
		ID:         e.ID,
		Category:   e.Category,
		DistanceSq: s.cache.GetOrCompute(e.ID, e.Position),
	})
}

// releaseDeregistered drops Active entities that were evicted or unloaded
// earlier in the frame, before cleanup destroys them.
func (s *PhysicsSystem) releaseDeregistered() {
	s.gone = s.gone[:0]
	s.physics.EachActive(func(id ecs.EntityID, _ world.Category) {
		if _, ok := s.registry.Get(id); !ok {
			s.gone = append(s.gone, id)
		}
	})
	for _, id := range s.gone {
		if ch, ok := s.physics.Release(id); ok {
			s.emit([]world.ResidencyChange{ch})
		}
	}
}

func (s *PhysicsSystem) emit(changes []world.ResidencyChange) {
	for _, ch := range changes {
		event.Emit(s.bus, event.ResidencyChanged{Frame: s.frame.Frame, Change: ch})
	}
}

// LastStep returns the result of the most recent pass.
func (s *PhysicsSystem) LastStep() world.StepResult { return s.last }
