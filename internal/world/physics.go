package world

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/citysim/worldcore/internal/core/ecs"
)

// Residency says whether an entity holds simulation resources.
type Residency uint8

const (
	Dormant Residency = iota
	Active
)

func (r Residency) String() string {
	if r == Active {
		return "active"
	}
	return "dormant"
}

// PhysicsBudget caps residency mutations per frame. Activation is the
// costlier direction, so the two caps are independent. A cap <= 0 is
// unlimited.
type PhysicsBudget struct {
	MaxActivations   int
	MaxDeactivations int
}

// PhysicsCandidate is one physics-eligible entity and its squared distance
// to the reference for this frame.
type PhysicsCandidate struct {
	ID         ecs.EntityID
	Category   Category
	DistanceSq float32
}

type ResidencyChange struct {
	ID       ecs.EntityID
	Category Category
	From     Residency
	To       Residency
}

// AllocationFailure records an activation the allocator refused. The
// entity stays Dormant and is retried on a later frame.
type AllocationFailure struct {
	ID       ecs.EntityID
	Category Category
	Err      error
}

// StepResult reports what one frame pass did and what it left queued.
type StepResult struct {
	Changes               []ResidencyChange
	Failures              []AllocationFailure
	DeferredActivations   int // eligible but over budget
	DeferredDeactivations int
}

type residencyState struct {
	category Category
	since    uint64 // frame the entity became Active
}

type pending struct {
	id       ecs.EntityID
	category Category
	distSq   float32
}

// PhysicsService decides which entities hold physics resources. Each frame
// every candidate gets one distance check that yields at most one
// transition; the transitions are then applied nearest-first (activations)
// and farthest-first (deactivations) within the budget. Whatever does not
// fit waits for the next frame.
type PhysicsService struct {
	profiles [NumCategories]PhysicsProfile
	budget   PhysicsBudget
	alloc    PhysicsAllocator
	log      *zap.Logger

	active *ecs.Store[residencyState]
	frame  uint64

	activate   []pending
	deactivate []pending
}

func NewPhysicsService(profiles *Profiles, budget PhysicsBudget, alloc PhysicsAllocator, log *zap.Logger) *PhysicsService {
	s := &PhysicsService{
		budget: budget,
		alloc:  alloc,
		log:    log,
		active: ecs.NewStore[residencyState](256),
	}
	for i := range profiles {
		s.profiles[i] = profiles[i].Physics
	}
	return s
}

// Step runs one frame pass over candidates.
func (s *PhysicsService) Step(candidates []PhysicsCandidate) StepResult {
	s.frame++
	s.activate = s.activate[:0]
	s.deactivate = s.deactivate[:0]

	for _, c := range candidates {
		if !c.Category.Valid() {
			continue
		}
		p := &s.profiles[c.Category]
		on := s.active.Has(c.ID)
		switch {
		case !on && p.Eligible && c.DistanceSq <= p.ActivationRadius*p.ActivationRadius:
			s.activate = append(s.activate, pending{c.ID, c.Category, c.DistanceSq})
		case on && (!p.Eligible || c.DistanceSq > sq(p.ActivationRadius+p.DeactivationMargin)):
			s.deactivate = append(s.deactivate, pending{c.ID, c.Category, c.DistanceSq})
		}
	}

	var res StepResult
	sort.Slice(s.activate, func(i, j int) bool {
		a, b := s.activate[i], s.activate[j]
		if a.distSq != b.distSq {
			return a.distSq < b.distSq
		}
		return a.id < b.id
	})
	n := capped(len(s.activate), s.budget.MaxActivations)
	for _, p := range s.activate[:n] {
		if err := s.alloc.Acquire(p.id, p.category); err != nil {
			err = fmt.Errorf("%w: %w", ErrAllocation, err)
			s.log.Warn("physics activation failed",
				zap.Uint64("entity", uint64(p.id)),
				zap.Stringer("category", p.category),
				zap.Error(err))
			res.Failures = append(res.Failures, AllocationFailure{ID: p.id, Category: p.category, Err: err})
			continue
		}
		s.active.Set(p.id, &residencyState{category: p.category, since: s.frame})
		res.Changes = append(res.Changes, ResidencyChange{ID: p.id, Category: p.category, From: Dormant, To: Active})
	}
	res.DeferredActivations = len(s.activate) - n

	sort.Slice(s.deactivate, func(i, j int) bool {
		a, b := s.deactivate[i], s.deactivate[j]
		if a.distSq != b.distSq {
			return a.distSq > b.distSq
		}
		return a.id < b.id
	})
	n = capped(len(s.deactivate), s.budget.MaxDeactivations)
	for _, p := range s.deactivate[:n] {
		s.alloc.Release(p.id)
		s.active.Remove(p.id)
		res.Changes = append(res.Changes, ResidencyChange{ID: p.id, Category: p.category, From: Active, To: Dormant})
	}
	res.DeferredDeactivations = len(s.deactivate) - n
	return res
}

func (s *PhysicsService) Residency(id ecs.EntityID) Residency {
	if s.active.Has(id) {
		return Active
	}
	return Dormant
}

func (s *PhysicsService) ActiveCount() int { return s.active.Len() }

// EachActive visits every Active entity.
func (s *PhysicsService) EachActive(fn func(id ecs.EntityID, category Category)) {
	s.active.Each(func(id ecs.EntityID, st *residencyState) { fn(id, st.category) })
}

// Release drops an Active entity that left the world outside the
// distance rule, such as an eviction or a region unload. It is not charged
// to the deactivation budget.
func (s *PhysicsService) Release(id ecs.EntityID) (ResidencyChange, bool) {
	st, ok := s.active.Get(id)
	if !ok {
		return ResidencyChange{}, false
	}
	ch := ResidencyChange{ID: id, Category: st.category, From: Active, To: Dormant}
	s.alloc.Release(id)
	s.active.Remove(id)
	return ch, true
}

// Remove forgets a destroyed entity, returning its resources to the
// allocator if it was still Active. Entities deregistered before the
// physics phase were already released there with a residency change.
func (s *PhysicsService) Remove(id ecs.EntityID) {
	if s.active.Has(id) {
		s.alloc.Release(id)
		s.active.Remove(id)
	}
}

func sq(v float32) float32 { return v * v }

func capped(n, limit int) int {
	if limit <= 0 || limit > n {
		return n
	}
	return limit
}
