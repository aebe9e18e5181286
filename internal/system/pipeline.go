package system

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/citysim/worldcore/internal/core/ecs"
	"github.com/citysim/worldcore/internal/core/event"
	coresys "github.com/citysim/worldcore/internal/core/system"
	"github.com/citysim/worldcore/internal/world"
)

// Settings are the tunables of every world component.
type Settings struct {
	Grid                   world.Grid
	Streaming              world.StreamingConfig
	MaxCompletionsPerFrame int
	DistanceCache          world.DistanceCacheConfig
	Limits                 world.LimitConfig
	EnforceHz              float64
	Profiles               world.Profiles
	LODDirtyDelta          float32
	MaxLODEvaluations      int
	PhysicsBudget          world.PhysicsBudget
	MaxPhysicsScan         int
	LedgerIntervalTicks    int
}

// Collaborators are the outside systems the core drives. A nil Reference
// keeps the core idle; nil Generator, Spawner and Allocator are no-ops.
// Ledger may be nil.
type Collaborators struct {
	Reference   world.ReferenceProvider
	Generator   world.Generator
	Completions *world.CompletionQueue
	Spawner     world.Spawner
	Allocator   world.PhysicsAllocator
	Ledger      LedgerStore
}

// Pipeline is the assembled frame loop and handles to its state.
type Pipeline struct {
	Runner   *coresys.Runner
	Bus      *event.Bus
	Entities *ecs.World
	Frame    *FrameState

	Cache       *world.DistanceCache
	Tracker     *world.RegionTracker
	Registry    *world.Registry
	LOD         *world.LODCoordinator
	Physics     *world.PhysicsService
	Completions *world.CompletionQueue

	PhysicsSystem *PhysicsSystem
	Ledger        *LedgerSystem // nil without a ledger store
}

// Build wires the components and registers one system per phase.
func Build(s Settings, c Collaborators, log *zap.Logger) *Pipeline {
	if c.Reference == nil {
		c.Reference = idleReference{}
	}
	if c.Generator == nil {
		c.Generator = nopGenerator{}
	}
	if c.Spawner == nil {
		c.Spawner = nopSpawner{}
	}
	if c.Allocator == nil {
		c.Allocator = nopAllocator{}
	}
	if c.Completions == nil {
		c.Completions = world.NewCompletionQueue()
	}

	p := &Pipeline{
		Runner:      coresys.NewRunner(),
		Bus:         event.NewBus(),
		Entities:    ecs.NewWorld(),
		Frame:       &FrameState{},
		Completions: c.Completions,
	}
	profiles := s.Profiles

	p.Cache = world.NewDistanceCache(s.DistanceCache)
	p.Registry = world.NewRegistry(s.Grid, s.Limits, p.Entities, log.Named("registry"))
	p.Tracker = world.NewRegionTracker(s.Grid, s.Streaming, p.Registry, p.Entities, log.Named("regions"))
	p.LOD = world.NewLODCoordinator(&profiles, s.LODDirtyDelta)
	p.Physics = world.NewPhysicsService(&profiles, s.PhysicsBudget, c.Allocator, log.Named("physics"))

	// Stores that must forget an entity when the cleanup phase releases it.
	reg := p.Entities.Registry()
	reg.Register(p.LOD)
	reg.Register(p.Physics)
	reg.Register(p.Cache)

	p.PhysicsSystem = NewPhysicsSystem(p.Frame, p.Registry, p.Cache, p.Physics, &profiles, p.Bus, s.MaxPhysicsScan)

	p.Runner.Register(NewReferenceSystem(p.Frame, c.Reference, p.Cache))
	p.Runner.Register(NewStreamSystem(p.Frame, p.Tracker, p.Registry, c.Completions, c.Generator, c.Spawner, p.Bus, s.MaxCompletionsPerFrame, log.Named("stream")))
	p.Runner.Register(NewLimitSystem(p.Frame, p.Registry, c.Spawner, p.Bus, s.EnforceHz))
	p.Runner.Register(NewLODSystem(p.Frame, p.Registry, p.Cache, p.LOD, p.Bus, s.MaxLODEvaluations))
	p.Runner.Register(p.PhysicsSystem)
	p.Runner.Register(NewNotifySystem(p.Bus))
	if c.Ledger != nil {
		p.Ledger = NewLedgerSystem(p.Tracker, c.Ledger, log.Named("ledger"), s.LedgerIntervalTicks)
		p.Runner.Register(p.Ledger)
	}
	p.Runner.Register(NewCleanupSystem(p.Entities, log.Named("cleanup")))
	return p
}

// Tick runs one frame.
func (p *Pipeline) Tick(dt time.Duration) { p.Runner.Tick(dt) }

type idleReference struct{}

func (idleReference) Reference() (world.Reference, bool) { return world.Reference{}, false }

type nopGenerator struct{}

func (nopGenerator) RequestRegion(world.LoadRequest) {}

type nopSpawner struct{}

func (nopSpawner) Spawn(ecs.EntityID, world.RegionCoord, world.Descriptor, mgl32.Vec3) {}
func (nopSpawner) Despawn([]ecs.EntityID, world.DespawnReason)                         {}

type nopAllocator struct{}

func (nopAllocator) Acquire(ecs.EntityID, world.Category) error { return nil }
func (nopAllocator) Release(ecs.EntityID)                       {}
