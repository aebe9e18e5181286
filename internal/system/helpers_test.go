package system

import (
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap/zaptest"

	"github.com/citysim/worldcore/internal/core/ecs"
	"github.com/citysim/worldcore/internal/core/event"
	"github.com/citysim/worldcore/internal/world"
)

func testSettings() Settings {
	var p world.Profiles
	for i := range p {
		p[i] = world.CategoryProfile{
			LOD: world.TierTable{Bounds: [world.NumTiers - 1]float32{100, 250, 600}, Margin: 10},
			Physics: world.PhysicsProfile{
				Eligible:           true,
				ActivationRadius:   150,
				DeactivationMargin: 30,
			},
		}
	}
	p[world.CategoryVegetation].Physics.Eligible = false
	return Settings{
		Grid:          world.Grid{CellSize: 128, Bounds: world.Bounds{MinX: -8, MaxX: 7, MinZ: -8, MaxZ: 7}},
		Streaming:     world.StreamingConfig{Mode: world.StreamContinuous, Radius: 100, Margin: 50},
		DistanceCache: world.DistanceCacheConfig{MaxAgeFrames: 1, MaxEntries: 1024},
		Profiles:      p,
		PhysicsBudget: world.PhysicsBudget{MaxActivations: 50, MaxDeactivations: 50},
	}
}

type recordingGenerator struct {
	mu       sync.Mutex
	requests []world.LoadRequest
}

func (g *recordingGenerator) RequestRegion(req world.LoadRequest) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()
}

func (g *recordingGenerator) take() []world.LoadRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := g.requests
	g.requests = nil
	return out
}

type recordingSpawner struct {
	spawned   map[ecs.EntityID]mgl32.Vec3
	despawned map[world.DespawnReason][]ecs.EntityID
}

func newRecordingSpawner() *recordingSpawner {
	return &recordingSpawner{
		spawned:   make(map[ecs.EntityID]mgl32.Vec3),
		despawned: make(map[world.DespawnReason][]ecs.EntityID),
	}
}

func (s *recordingSpawner) Spawn(id ecs.EntityID, _ world.RegionCoord, _ world.Descriptor, pos mgl32.Vec3) {
	s.spawned[id] = pos
}

func (s *recordingSpawner) Despawn(ids []ecs.EntityID, reason world.DespawnReason) {
	s.despawned[reason] = append(s.despawned[reason], ids...)
}

type countingAllocator struct {
	held     map[ecs.EntityID]bool
	released int
}

func (a *countingAllocator) Acquire(id ecs.EntityID, _ world.Category) error {
	a.held[id] = true
	return nil
}

func (a *countingAllocator) Release(id ecs.EntityID) {
	delete(a.held, id)
	a.released++
}

// notifications collects everything dispatched on the bus.
type notifications struct {
	tiers     []event.TierChanged
	residency []event.ResidencyChanged
	loaded    []event.RegionLoaded
	unloaded  []event.RegionUnloaded
	evicted   []event.EntitiesEvicted
}

func subscribeAll(bus *event.Bus) *notifications {
	n := &notifications{}
	event.Subscribe(bus, func(e event.TierChanged) { n.tiers = append(n.tiers, e) })
	event.Subscribe(bus, func(e event.ResidencyChanged) { n.residency = append(n.residency, e) })
	event.Subscribe(bus, func(e event.RegionLoaded) { n.loaded = append(n.loaded, e) })
	event.Subscribe(bus, func(e event.RegionUnloaded) { n.unloaded = append(n.unloaded, e) })
	event.Subscribe(bus, func(e event.EntitiesEvicted) { n.evicted = append(n.evicted, e) })
	return n
}

type harness struct {
	*Pipeline
	ref   *StaticReference
	gen   *recordingGenerator
	spawn *recordingSpawner
	alloc *countingAllocator
	seen  *notifications
}

func newHarness(t *testing.T, s Settings, refPos mgl32.Vec3) *harness {
	t.Helper()
	h := &harness{
		ref:   NewStaticReference(ecs.EntityID(1<<32|1), refPos),
		gen:   &recordingGenerator{},
		spawn: newRecordingSpawner(),
		alloc: &countingAllocator{held: make(map[ecs.EntityID]bool)},
	}
	h.Pipeline = Build(s, Collaborators{
		Reference: h.ref,
		Generator: h.gen,
		Spawner:   h.spawn,
		Allocator: h.alloc,
	}, zaptest.NewLogger(t))
	h.seen = subscribeAll(h.Bus)
	return h
}
