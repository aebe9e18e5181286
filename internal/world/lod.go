package world

import (
	"math"

	"github.com/citysim/worldcore/internal/core/ecs"
)

// Tier is a detail level, finest first.
type Tier uint8

const (
	TierFull Tier = iota
	TierReduced
	TierMinimal
	TierHidden

	NumTiers = int(TierHidden) + 1

	// TierUnassigned is the From of an entity's first tier change.
	TierUnassigned Tier = math.MaxUint8
)

func (t Tier) String() string {
	switch t {
	case TierFull:
		return "full"
	case TierReduced:
		return "reduced"
	case TierMinimal:
		return "minimal"
	case TierHidden:
		return "hidden"
	case TierUnassigned:
		return "unassigned"
	}
	return "unknown"
}

// TierTable is the distance table of one category. Bounds[i] is the upper
// bound of tier i; the last tier extends to infinity. Margin is the
// hysteresis band applied on both sides of every bound.
type TierTable struct {
	Bounds [NumTiers - 1]float32
	Margin float32
}

func (t *TierTable) lower(tier Tier) float32 {
	if tier == 0 {
		return 0
	}
	return t.Bounds[tier-1]
}

func (t *TierTable) upper(tier Tier) float32 {
	if int(tier) >= NumTiers-1 {
		return float32(math.Inf(1))
	}
	return t.Bounds[tier]
}

// Classify returns the tier containing d with no hysteresis.
func (t *TierTable) Classify(d float32) Tier {
	for i, b := range t.Bounds {
		if d < b {
			return Tier(i)
		}
	}
	return TierHidden
}

// holds reports whether d is inside the hold band of tier, the range in
// which next keeps the entity where it is.
func (t *TierTable) holds(tier Tier, d float32) bool {
	return d >= t.lower(tier)-t.Margin && d <= t.upper(tier)+t.Margin
}

// next applies the hysteresis rule to an entity currently at cur.
func (t *TierTable) next(cur Tier, d float32) Tier {
	switch {
	case d > t.upper(cur)+t.Margin:
		for k := NumTiers - 1; k > int(cur); k-- {
			if t.lower(Tier(k)) <= d {
				return Tier(k)
			}
		}
	case d < t.lower(cur)-t.Margin:
		for k := 0; k < int(cur); k++ {
			if t.upper(Tier(k)) >= d {
				return Tier(k)
			}
		}
	}
	return cur
}

// TierChange is emitted whenever an entity's tier moves.
type TierChange struct {
	ID       ecs.EntityID
	Category Category
	From     Tier
	To       Tier
}

type lodState struct {
	tier     Tier
	lastDist float32
}

// LODCoordinator assigns detail tiers with hysteresis against each entity's
// current tier. Renderer and animation consumers act on the returned
// changes; the coordinator never touches meshes itself.
type LODCoordinator struct {
	tables     [NumCategories]TierTable
	dirtyDelta float32
	states     *ecs.Store[lodState]
}

func NewLODCoordinator(profiles *Profiles, dirtyDelta float32) *LODCoordinator {
	c := &LODCoordinator{
		dirtyDelta: dirtyDelta,
		states:     ecs.NewStore[lodState](1024),
	}
	for i := range profiles {
		c.tables[i] = profiles[i].LOD
	}
	return c
}

// UpdateTier evaluates one entity at squared distance distanceSq. The first
// evaluation assigns the tier containing the distance. Later evaluations
// move at most once per call and only when the distance has left the
// current tier by more than the margin. Entities whose distance moved less
// than the dirty delta since their last evaluation are skipped, but only
// while they remain inside the current tier's hold band.
func (c *LODCoordinator) UpdateTier(id ecs.EntityID, category Category, distanceSq float32) (TierChange, bool) {
	if !category.Valid() {
		return TierChange{}, false
	}
	table := &c.tables[category]
	d := float32(math.Sqrt(float64(distanceSq)))

	st, ok := c.states.Get(id)
	if !ok {
		st = &lodState{tier: table.Classify(d), lastDist: d}
		c.states.Set(id, st)
		return TierChange{ID: id, Category: category, From: TierUnassigned, To: st.tier}, true
	}
	if c.dirtyDelta > 0 && abs32(d-st.lastDist) < c.dirtyDelta && table.holds(st.tier, d) {
		return TierChange{}, false
	}
	st.lastDist = d

	to := table.next(st.tier, d)
	if to == st.tier {
		return TierChange{}, false
	}
	from := st.tier
	st.tier = to
	return TierChange{ID: id, Category: category, From: from, To: to}, true
}

// Tier returns the current tier of id, TierUnassigned if never evaluated.
func (c *LODCoordinator) Tier(id ecs.EntityID) Tier {
	if st, ok := c.states.Get(id); ok {
		return st.tier
	}
	return TierUnassigned
}

// Remove drops the state of a released entity.
func (c *LODCoordinator) Remove(id ecs.EntityID) { c.states.Remove(id) }

func (c *LODCoordinator) Len() int { return c.states.Len() }

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
