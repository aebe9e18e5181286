package system

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/citysim/worldcore/internal/core/ecs"
	"github.com/citysim/worldcore/internal/core/event"
	coresys "github.com/citysim/worldcore/internal/core/system"
	"github.com/citysim/worldcore/internal/world"
)

// StreamSystem applies generator completions and streams regions in and out
// around the reference. Phase 1 (Stream).
type StreamSystem struct {
	frame          *FrameState
	tracker        *world.RegionTracker
	registry       *world.Registry
	completions    *world.CompletionQueue
	generator      world.Generator
	spawner        world.Spawner
	bus            *event.Bus
	maxCompletions int
	log            *zap.Logger

	started bool
	buf     []world.Completion
}

func NewStreamSystem(frame *FrameState, tracker *world.RegionTracker, registry *world.Registry,
	completions *world.CompletionQueue, generator world.Generator, spawner world.Spawner,
	bus *event.Bus, maxCompletions int, log *zap.Logger) *StreamSystem {
	return &StreamSystem{
		frame:          frame,
		tracker:        tracker,
		registry:       registry,
		completions:    completions,
		generator:      generator,
		spawner:        spawner,
		bus:            bus,
		maxCompletions: maxCompletions,
		log:            log,
	}
}

func (s *StreamSystem) Phase() coresys.Phase { return coresys.PhaseStream }

func (s *StreamSystem) Update(_ time.Duration) {
	if !s.started {
		s.started = true
		if s.tracker.Mode() == world.StreamStatic {
			reqs := s.tracker.LoadAll()
			for _, req := range reqs {
				s.generator.RequestRegion(req)
			}
			s.log.Info("static streaming: all regions requested", zap.Int("regions", len(reqs)))
		}
	}

	s.applyCompletions()

	if !s.frame.HasReference {
		return
	}
	res := s.tracker.Stream(s.frame.Reference.Position)
	for _, u := range res.Unloaded {
		if len(u.Entities) > 0 {
			s.spawner.Despawn(u.Entities, world.DespawnRegionUnloaded)
		}
		event.Emit(s.bus, event.RegionUnloaded{
			Frame:      s.frame.Frame,
			Coord:      u.Coord,
			Generation: u.Generation,
			Entities:   u.Entities,
		})
	}
	for _, req := range res.Requested {
		s.generator.RequestRegion(req)
	}
}

func (s *StreamSystem) applyCompletions() {
	s.buf = s.completions.Drain(s.buf[:0], s.maxCompletions)
	for i := range s.buf {
		c := &s.buf[i]
		ids, err := s.tracker.CompleteLoad(c.Coord, c.Generation, c.Payload, s.frame.Frame)
		if err != nil {
			var stale *world.StaleGenerationError
			switch {
			case errors.As(err, &stale):
				s.log.Debug("stale region completion dropped",
					zap.Int32("x", c.Coord.X), zap.Int32("z", c.Coord.Z),
					zap.Uint32("generation", stale.Got),
					zap.Uint32("current", stale.Current),
					zap.Stringer("state", stale.State))
			default:
				s.log.Warn("region completion rejected",
					zap.Int32("x", c.Coord.X), zap.Int32("z", c.Coord.Z),
					zap.Error(err))
			}
			continue
		}

		spawned := make([]ecs.EntityID, 0, len(ids))
		for j, id := range ids {
			if id == 0 {
				continue
			}
			e, ok := s.registry.Get(id)
			if !ok {
				continue
			}
			s.spawner.Spawn(id, c.Coord, c.Payload[j], e.Position)
			spawned = append(spawned, id)
		}
		event.Emit(s.bus, event.RegionLoaded{
			Frame:      s.frame.Frame,
			Coord:      c.Coord,
			Generation: c.Generation,
			Entities:   spawned,
		})
	}
	clear(s.buf)
}
