package world

import (
	"sort"

	"github.com/citysim/worldcore/internal/core/ecs"
)

// RegionIndex tracks which entities belong to which region, so a region
// unload can find its entities without scanning the registry.
// Accessed only from the frame loop goroutine, no locks.
type RegionIndex struct {
	cells map[RegionCoord]map[ecs.EntityID]struct{}
}

func NewRegionIndex() *RegionIndex {
	return &RegionIndex{
		cells: make(map[RegionCoord]map[ecs.EntityID]struct{}),
	}
}

func (x *RegionIndex) Add(id ecs.EntityID, c RegionCoord) {
	cell := x.cells[c]
	if cell == nil {
		cell = make(map[ecs.EntityID]struct{})
		x.cells[c] = cell
	}
	cell[id] = struct{}{}
}

func (x *RegionIndex) Remove(id ecs.EntityID, c RegionCoord) {
	cell := x.cells[c]
	if cell == nil {
		return
	}
	delete(cell, id)
	if len(cell) == 0 {
		delete(x.cells, c)
	}
}

// Members returns the entities of one region in ascending ID order.
func (x *RegionIndex) Members(c RegionCoord) []ecs.EntityID {
	cell := x.cells[c]
	out := make([]ecs.EntityID, 0, len(cell))
	for id := range cell {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
