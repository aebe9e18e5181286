package world

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/citysim/worldcore/internal/core/ecs"
)

// TrackedEntity is the registry's record of a live entity. Position is a
// mirror of the external entity store, kept for distance scoring only.
type TrackedEntity struct {
	ID        ecs.EntityID
	Category  Category
	Position  mgl32.Vec3
	Region    RegionCoord // region the entity was spawned for
	SpawnTick uint64
}

// EvictedEntity is an entity removed by EnforceLimits. The caller despawns
// it in the external entity store.
type EvictedEntity struct {
	ID        ecs.EntityID
	Category  Category
	Region    RegionCoord
	SpawnTick uint64
}

// LimitConfig holds the per-category ceilings.
type LimitConfig struct {
	Ceilings  [NumCategories]int // 0 = unlimited
	WarnSlack int                // overshoot tolerated before a warning is logged
}

// Registry holds every live tracked entity and enforces per-category
// ceilings by evicting the oldest spawns first.
// Accessed only from the frame loop goroutine.
type Registry struct {
	grid   Grid
	limits LimitConfig
	world  *ecs.World
	log    *zap.Logger

	records    *ecs.Store[TrackedEntity]
	dense      []ecs.EntityID // stable iteration order for budgeted passes
	slot       map[ecs.EntityID]int
	byCategory [NumCategories]map[ecs.EntityID]struct{}
	regions    *RegionIndex
}

func NewRegistry(grid Grid, limits LimitConfig, w *ecs.World, log *zap.Logger) *Registry {
	r := &Registry{
		grid:    grid,
		limits:  limits,
		world:   w,
		log:     log,
		records: ecs.NewStore[TrackedEntity](1024),
		dense:   make([]ecs.EntityID, 0, 1024),
		slot:    make(map[ecs.EntityID]int, 1024),
		regions: NewRegionIndex(),
	}
	for i := range r.byCategory {
		r.byCategory[i] = make(map[ecs.EntityID]struct{})
	}
	return r
}

// Register tracks an entity whose owning region is derived from position.
func (r *Registry) Register(id ecs.EntityID, category Category, position mgl32.Vec3, spawnTick uint64) error {
	return r.RegisterInRegion(id, r.grid.RegionOf(position), category, position, spawnTick)
}

// RegisterInRegion tracks an entity spawned on behalf of region.
func (r *Registry) RegisterInRegion(id ecs.EntityID, region RegionCoord, category Category, position mgl32.Vec3, spawnTick uint64) error {
	if !category.Valid() {
		return fmt.Errorf("register %d: %w", id, ErrUnknownCategory)
	}
	if r.records.Has(id) {
		return fmt.Errorf("register %d: %w", id, ErrDuplicateEntity)
	}
	r.records.Set(id, &TrackedEntity{
		ID:        id,
		Category:  category,
		Position:  position,
		Region:    region,
		SpawnTick: spawnTick,
	})
	r.slot[id] = len(r.dense)
	r.dense = append(r.dense, id)
	r.byCategory[category][id] = struct{}{}
	r.regions.Add(id, region)
	return nil
}

// Deregister stops tracking id and queues its component state for release.
// Returns false when id was not registered.
func (r *Registry) Deregister(id ecs.EntityID) bool {
	e, ok := r.records.Get(id)
	if !ok {
		return false
	}
	r.records.Remove(id)
	delete(r.byCategory[e.Category], id)
	r.regions.Remove(id, e.Region)

	i := r.slot[id]
	last := len(r.dense) - 1
	if i != last {
		moved := r.dense[last]
		r.dense[i] = moved
		r.slot[moved] = i
	}
	r.dense = r.dense[:last]
	delete(r.slot, id)

	r.world.MarkForDestruction(id)
	return true
}

// DeregisterRegion removes every entity owned by region and returns their
// IDs in ascending order.
func (r *Registry) DeregisterRegion(region RegionCoord) []ecs.EntityID {
	ids := r.regions.Members(region)
	for _, id := range ids {
		r.Deregister(id)
	}
	return ids
}

// UpdatePosition refreshes the mirrored position of a tracked entity.
func (r *Registry) UpdatePosition(id ecs.EntityID, position mgl32.Vec3) bool {
	e, ok := r.records.Get(id)
	if !ok {
		return false
	}
	e.Position = position
	return true
}

func (r *Registry) Get(id ecs.EntityID) (*TrackedEntity, bool) { return r.records.Get(id) }

func (r *Registry) Count(c Category) int {
	if !c.Valid() {
		return 0
	}
	return len(r.byCategory[c])
}

// Counts returns the live count of every category.
func (r *Registry) Counts() [NumCategories]int {
	var out [NumCategories]int
	for i := range out {
		out[i] = len(r.byCategory[i])
	}
	return out
}

func (r *Registry) Len() int { return len(r.dense) }

// At returns the i-th entity of the registry's dense order. The order is
// stable between registrations; a removal moves the last entity into the
// freed slot.
func (r *Registry) At(i int) *TrackedEntity {
	e, _ := r.records.Get(r.dense[i])
	return e
}

// Each visits every tracked entity in dense order.
func (r *Registry) Each(fn func(*TrackedEntity)) {
	for _, id := range r.dense {
		e, _ := r.records.Get(id)
		fn(e)
	}
}

func (r *Registry) InRegion(region RegionCoord) []ecs.EntityID { return r.regions.Members(region) }

// EnforceLimits evicts, for every category above its ceiling, the entities
// with the oldest SpawnTick (ties by ascending ID) until the count equals the
// ceiling. Under the limits it returns nil and changes nothing.
func (r *Registry) EnforceLimits() []EvictedEntity {
	var evicted []EvictedEntity
	for _, c := range Categories() {
		ceiling := r.limits.Ceilings[c]
		live := len(r.byCategory[c])
		if ceiling <= 0 || live <= ceiling {
			continue
		}
		over := live - ceiling
		if over > r.limits.WarnSlack {
			r.log.Warn("entity limit exceeded",
				zap.Stringer("category", c),
				zap.Int("live", live),
				zap.Int("limit", ceiling),
			)
		}

		oldest := make([]*TrackedEntity, 0, live)
		for id := range r.byCategory[c] {
			e, _ := r.records.Get(id)
			oldest = append(oldest, e)
		}
		sort.Slice(oldest, func(i, j int) bool {
			if oldest[i].SpawnTick != oldest[j].SpawnTick {
				return oldest[i].SpawnTick < oldest[j].SpawnTick
			}
			return oldest[i].ID < oldest[j].ID
		})
		for _, e := range oldest[:over] {
			evicted = append(evicted, EvictedEntity{
				ID:        e.ID,
				Category:  e.Category,
				Region:    e.Region,
				SpawnTick: e.SpawnTick,
			})
			r.Deregister(e.ID)
		}
	}
	return evicted
}
