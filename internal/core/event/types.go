package event

import (
	"github.com/citysim/worldcore/internal/core/ecs"
	"github.com/citysim/worldcore/internal/world"
)

// Notifications for renderer, animation and tooling consumers. Emitted by
// the frame systems, dispatched once per frame in the output phase.

type TierChanged struct {
	Frame  uint64
	Change world.TierChange
}

type ResidencyChanged struct {
	Frame  uint64
	Change world.ResidencyChange
}

type RegionLoaded struct {
	Frame      uint64
	Coord      world.RegionCoord
	Generation uint32
	Entities   []ecs.EntityID
}

type RegionUnloaded struct {
	Frame      uint64
	Coord      world.RegionCoord
	Generation uint32
	Entities   []ecs.EntityID
}

type EntitiesEvicted struct {
	Frame   uint64
	Evicted []world.EvictedEntity
}
