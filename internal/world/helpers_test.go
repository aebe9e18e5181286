package world

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap/zaptest"

	"github.com/citysim/worldcore/internal/core/ecs"
)

func testGrid() Grid {
	return Grid{CellSize: 128, Bounds: Bounds{MinX: -8, MaxX: 7, MinZ: -8, MaxZ: 7}}
}

func testProfiles() *Profiles {
	var p Profiles
	for i := range p {
		p[i] = CategoryProfile{
			LOD: TierTable{Bounds: [NumTiers - 1]float32{100, 250, 600}, Margin: 10},
			Physics: PhysicsProfile{
				Eligible:           true,
				ActivationRadius:   150,
				DeactivationMargin: 30,
			},
		}
	}
	p[CategoryVegetation].Physics.Eligible = false
	return &p
}

type fixture struct {
	world    *ecs.World
	registry *Registry
	tracker  *RegionTracker
}

func newFixture(t *testing.T, limits LimitConfig, streaming StreamingConfig) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	w := ecs.NewWorld()
	reg := NewRegistry(testGrid(), limits, w, log)
	return &fixture{
		world:    w,
		registry: reg,
		tracker:  NewRegionTracker(testGrid(), streaming, reg, w, log),
	}
}

func (f *fixture) spawn(t *testing.T, c Category, pos mgl32.Vec3, tick uint64) ecs.EntityID {
	t.Helper()
	id := f.world.CreateEntity()
	if err := f.registry.Register(id, c, pos, tick); err != nil {
		t.Fatalf("register: %v", err)
	}
	return id
}
