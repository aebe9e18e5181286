package world

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/citysim/worldcore/internal/core/ecs"
)

// DistanceCacheConfig bounds the cache by age and size.
type DistanceCacheConfig struct {
	MaxAgeFrames uint64 // a value computed at frame f serves frames f..f+MaxAgeFrames-1
	MaxEntries   int
}

type distEntry struct {
	distSq float32
	frame  uint64
	seq    uint64
}

type fifoSlot struct {
	id  ecs.EntityID
	seq uint64
}

// DistanceCache memoizes squared distances from the reference position so
// every system of a frame window reads the same value without recomputing.
// The cache is dropped wholesale when the reference entity changes.
// Accessed only from the frame loop goroutine.
type DistanceCache struct {
	cfg DistanceCacheConfig

	frame  uint64
	ref    Reference
	hasRef bool
	seenID bool

	entries map[ecs.EntityID]distEntry
	fifo    []fifoSlot // insertion order; slots whose seq no longer matches are stale
	head    int
	seq     uint64

	hits, misses uint64
}

func NewDistanceCache(cfg DistanceCacheConfig) *DistanceCache {
	if cfg.MaxAgeFrames == 0 {
		cfg.MaxAgeFrames = 1
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 4096
	}
	return &DistanceCache{
		cfg:     cfg,
		entries: make(map[ecs.EntityID]distEntry, cfg.MaxEntries),
		fifo:    make([]fifoSlot, 0, cfg.MaxEntries),
	}
}

// BeginFrame advances the cache to frame and installs the frame's reference.
// ok=false means no reference exists this frame; lookups then return the
// sentinel and nothing is stored.
func (c *DistanceCache) BeginFrame(frame uint64, ref Reference, ok bool) {
	c.frame = frame
	c.hasRef = ok
	if !ok {
		return
	}
	if c.seenID && ref.ID != c.ref.ID {
		c.Invalidate()
	}
	c.ref = ref
	c.seenID = true
}

// GetOrCompute returns the squared distance from the reference to position,
// reusing a value computed within the last MaxAgeFrames frames.
func (c *DistanceCache) GetOrCompute(id ecs.EntityID, position mgl32.Vec3) float32 {
	if !c.hasRef {
		return MaxDistanceSq
	}
	if e, ok := c.entries[id]; ok && c.frame-e.frame < c.cfg.MaxAgeFrames {
		c.hits++
		return e.distSq
	}
	c.misses++
	d := distanceSq(position, c.ref.Position)
	c.seq++
	c.entries[id] = distEntry{distSq: d, frame: c.frame, seq: c.seq}
	c.fifo = append(c.fifo, fifoSlot{id: id, seq: c.seq})
	c.evict()
	return d
}

// Get returns the cached value for id, or MaxDistanceSq when absent.
func (c *DistanceCache) Get(id ecs.EntityID) float32 {
	if e, ok := c.entries[id]; ok {
		return e.distSq
	}
	return MaxDistanceSq
}

func (c *DistanceCache) Forget(id ecs.EntityID) { delete(c.entries, id) }

// Remove lets the ECS cleanup phase drop entries of released entities.
func (c *DistanceCache) Remove(id ecs.EntityID) { c.Forget(id) }

func (c *DistanceCache) Invalidate() {
	clear(c.entries)
	c.fifo = c.fifo[:0]
	c.head = 0
}

func (c *DistanceCache) Len() int { return len(c.entries) }

// Stats returns lookup hits and misses since creation.
func (c *DistanceCache) Stats() (hits, misses uint64) { return c.hits, c.misses }

func (c *DistanceCache) evict() {
	for len(c.entries) > c.cfg.MaxEntries && c.head < len(c.fifo) {
		s := c.fifo[c.head]
		c.head++
		if e, ok := c.entries[s.id]; ok && e.seq == s.seq {
			delete(c.entries, s.id)
		}
	}
	// Refreshed entries leave stale slots behind; compact once they dominate.
	if live := len(c.fifo) - c.head; c.head > len(c.fifo)/2 || live > 2*c.cfg.MaxEntries+64 {
		c.compact()
	}
}

func (c *DistanceCache) compact() {
	n := 0
	for _, s := range c.fifo[c.head:] {
		if e, ok := c.entries[s.id]; ok && e.seq == s.seq {
			c.fifo[n] = s
			n++
		}
	}
	c.fifo = c.fifo[:n]
	c.head = 0
}
