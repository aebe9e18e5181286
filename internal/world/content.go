package world

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/citysim/worldcore/internal/core/ecs"
)

// Descriptor is one entry of a region payload: what to spawn, where
// (relative to the region origin) and category-specific parameters. The
// core forwards it unmodified to the Spawner.
type Descriptor struct {
	Category Category
	Position mgl32.Vec3
	Params   map[string]string
}

// LoadRequest asks the content generator for one region at one generation.
type LoadRequest struct {
	Coord      RegionCoord
	Generation uint32
}

// Completion is a generator's answer to a LoadRequest.
type Completion struct {
	Coord      RegionCoord
	Generation uint32
	Payload    []Descriptor
}

// CompletionQueue hands completions from generator goroutines to the frame
// loop. Push never blocks on the frame; Drain never blocks on a generator
// for longer than a slice swap.
type CompletionQueue struct {
	mu    sync.Mutex
	items []Completion
}

func NewCompletionQueue() *CompletionQueue {
	return &CompletionQueue{items: make([]Completion, 0, 16)}
}

func (q *CompletionQueue) Push(c Completion) {
	q.mu.Lock()
	q.items = append(q.items, c)
	q.mu.Unlock()
}

// Drain moves up to limit completions (0 = all) into dst in arrival order.
func (q *CompletionQueue) Drain(dst []Completion, limit int) []Completion {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	if limit > 0 && n > limit {
		n = limit
	}
	dst = append(dst, q.items[:n]...)
	rest := copy(q.items, q.items[n:])
	clear(q.items[rest:])
	q.items = q.items[:rest]
	return dst
}

func (q *CompletionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// ReferenceProvider supplies the reference for a frame. ok=false is the
// normal idle state between control transfers.
type ReferenceProvider interface {
	Reference() (ref Reference, ok bool)
}

// Generator produces region content. RequestRegion must not block the
// frame; the result is delivered later through a CompletionQueue.
type Generator interface {
	RequestRegion(req LoadRequest)
}

type DespawnReason uint8

const (
	DespawnRegionUnloaded DespawnReason = iota
	DespawnEvicted
)

func (r DespawnReason) String() string {
	if r == DespawnEvicted {
		return "evicted"
	}
	return "region_unloaded"
}

// Spawner creates and destroys entities in the external entity store. The
// core only decides which IDs should exist.
type Spawner interface {
	Spawn(id ecs.EntityID, region RegionCoord, d Descriptor, position mgl32.Vec3)
	Despawn(ids []ecs.EntityID, reason DespawnReason)
}

// PhysicsAllocator grants and revokes simulation resources (colliders,
// rigid bodies).
type PhysicsAllocator interface {
	Acquire(id ecs.EntityID, category Category) error
	Release(id ecs.EntityID)
}
