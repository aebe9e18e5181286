package main

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/citysim/worldcore/internal/core/ecs"
	"github.com/citysim/worldcore/internal/world"
)

// logSpawner stands in for the game's entity store: it only counts and
// logs what the core asks for.
type logSpawner struct {
	log       *zap.Logger
	spawned   uint64
	despawned [2]uint64 // by DespawnReason
}

func (s *logSpawner) Spawn(id ecs.EntityID, region world.RegionCoord, d world.Descriptor, pos mgl32.Vec3) {
	s.spawned++
	if ce := s.log.Check(zap.DebugLevel, "spawn"); ce != nil {
		ce.Write(
			zap.Uint64("entity", uint64(id)),
			zap.Stringer("category", d.Category),
			zap.Int32("x", region.X), zap.Int32("z", region.Z),
			zap.Float32("px", pos.X()), zap.Float32("pz", pos.Z()),
			zap.Any("params", d.Params),
		)
	}
}

func (s *logSpawner) Despawn(ids []ecs.EntityID, reason world.DespawnReason) {
	if int(reason) < len(s.despawned) {
		s.despawned[reason] += uint64(len(ids))
	}
	s.log.Debug("despawn", zap.Int("count", len(ids)), zap.Stringer("reason", reason))
}

// poolAllocator hands out a fixed number of rigid bodies.
type poolAllocator struct {
	log      *zap.Logger
	capacity int
	held     map[ecs.EntityID]struct{}
	refused  uint64
}

func newPoolAllocator(capacity int, log *zap.Logger) *poolAllocator {
	return &poolAllocator{log: log, capacity: capacity, held: make(map[ecs.EntityID]struct{}, capacity)}
}

func (a *poolAllocator) Acquire(id ecs.EntityID, category world.Category) error {
	if len(a.held) >= a.capacity {
		a.refused++
		return fmt.Errorf("body pool exhausted (%d in use)", len(a.held))
	}
	a.held[id] = struct{}{}
	a.log.Debug("body acquired", zap.Uint64("entity", uint64(id)), zap.Stringer("category", category))
	return nil
}

func (a *poolAllocator) Release(id ecs.EntityID) {
	delete(a.held, id)
}
