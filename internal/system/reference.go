package system

import (
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/citysim/worldcore/internal/core/ecs"
	coresys "github.com/citysim/worldcore/internal/core/system"
	"github.com/citysim/worldcore/internal/world"
)

// advancer is implemented by providers that move with frame time.
type advancer interface {
	Advance(dt time.Duration)
}

// ReferenceSystem samples the reference provider, advances the frame clock
// and points the distance cache at the new reference. Phase 0 (Reference).
type ReferenceSystem struct {
	frame    *FrameState
	provider world.ReferenceProvider
	cache    *world.DistanceCache
}

func NewReferenceSystem(frame *FrameState, provider world.ReferenceProvider, cache *world.DistanceCache) *ReferenceSystem {
	return &ReferenceSystem{frame: frame, provider: provider, cache: cache}
}

func (s *ReferenceSystem) Phase() coresys.Phase { return coresys.PhaseReference }

func (s *ReferenceSystem) Update(dt time.Duration) {
	s.frame.Frame++
	s.frame.Elapsed += dt
	if a, ok := s.provider.(advancer); ok {
		a.Advance(dt)
	}
	ref, ok := s.provider.Reference()
	s.frame.Reference, s.frame.HasReference = ref, ok
	s.cache.BeginFrame(s.frame.Frame, ref, ok)
}

// StaticReference is a settable reference. Safe to update from another
// goroutine, e.g. a control handler.
type StaticReference struct {
	mu  sync.Mutex
	ref world.Reference
	ok  bool
}

// NewStaticReference returns a provider already holding id at pos.
func NewStaticReference(id ecs.EntityID, pos mgl32.Vec3) *StaticReference {
	return &StaticReference{ref: world.Reference{ID: id, Position: pos}, ok: true}
}

func (r *StaticReference) Reference() (world.Reference, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ref, r.ok
}

func (r *StaticReference) Set(id ecs.EntityID, pos mgl32.Vec3) {
	r.mu.Lock()
	r.ref, r.ok = world.Reference{ID: id, Position: pos}, true
	r.mu.Unlock()
}

func (r *StaticReference) Move(pos mgl32.Vec3) {
	r.mu.Lock()
	r.ref.Position = pos
	r.mu.Unlock()
}

// Clear puts the provider into the idle state.
func (r *StaticReference) Clear() {
	r.mu.Lock()
	r.ok = false
	r.mu.Unlock()
}

// PathReference moves along a closed loop of waypoints at constant speed
// (units per second).
type PathReference struct {
	id        ecs.EntityID
	waypoints []mgl32.Vec3
	speed     float32
	leg       int
	pos       mgl32.Vec3
}

func NewPathReference(id ecs.EntityID, speed float32, waypoints ...mgl32.Vec3) *PathReference {
	p := &PathReference{id: id, waypoints: waypoints, speed: speed}
	if len(waypoints) > 0 {
		p.pos = waypoints[0]
	}
	return p
}

func (p *PathReference) Reference() (world.Reference, bool) {
	if len(p.waypoints) == 0 {
		return world.Reference{}, false
	}
	return world.Reference{ID: p.id, Position: p.pos}, true
}

func (p *PathReference) Advance(dt time.Duration) {
	if len(p.waypoints) < 2 || p.speed <= 0 {
		return
	}
	step := p.speed * float32(dt.Seconds())
	for step > 0 {
		target := p.waypoints[(p.leg+1)%len(p.waypoints)]
		delta := target.Sub(p.pos)
		dist := delta.Len()
		if dist > step {
			p.pos = p.pos.Add(delta.Mul(step / dist))
			return
		}
		p.pos = target
		step -= dist
		p.leg = (p.leg + 1) % len(p.waypoints)
		if dist == 0 && step > 0 && p.allSame() {
			return
		}
	}
}

func (p *PathReference) allSame() bool {
	for _, w := range p.waypoints[1:] {
		if w != p.waypoints[0] {
			return false
		}
	}
	return true
}
