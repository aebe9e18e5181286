package world

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/citysim/worldcore/internal/core/ecs"
)

type RegionState uint8

const (
	RegionUnloaded RegionState = iota
	RegionLoading
	RegionLoaded
)

func (s RegionState) String() string {
	switch s {
	case RegionUnloaded:
		return "unloaded"
	case RegionLoading:
		return "loading"
	case RegionLoaded:
		return "loaded"
	}
	return "unknown"
}

// StreamingMode selects how regions come and go.
type StreamingMode uint8

const (
	// StreamContinuous loads regions around the reference and unloads them
	// once the reference has moved past radius+margin.
	StreamContinuous StreamingMode = iota
	// StreamStatic requests every region once at startup; nothing unloads.
	StreamStatic
)

func (m StreamingMode) String() string {
	if m == StreamStatic {
		return "static"
	}
	return "continuous"
}

type StreamingConfig struct {
	Mode                StreamingMode
	Radius              float32
	Margin              float32
	MaxRequestsPerFrame int // 0 = unlimited
}

type regionSlot struct {
	state      RegionState
	generation uint32
	dirty      bool // generation changed since the ledger last saw it
}

// UnloadedRegion reports one region reverted to Unloaded and the entities
// deregistered with it.
type UnloadedRegion struct {
	Coord      RegionCoord
	Generation uint32
	Entities   []ecs.EntityID
}

// StreamResult is the outcome of one streaming pass.
type StreamResult struct {
	Requested []LoadRequest
	Unloaded  []UnloadedRegion
}

// RegionTracker owns the load state machine of every region:
// Unloaded -> Loading(gen) -> Loaded(gen) -> Unloaded.
// Generation counters survive unloads, so a completion for an abandoned load
// never matches a later one. Accessed only from the frame loop goroutine.
type RegionTracker struct {
	grid      Grid
	streaming StreamingConfig
	registry  *Registry
	entities  *ecs.World
	log       *zap.Logger

	slots  map[RegionCoord]*regionSlot
	active map[RegionCoord]struct{} // Loading or Loaded
}

func NewRegionTracker(grid Grid, streaming StreamingConfig, registry *Registry, entities *ecs.World, log *zap.Logger) *RegionTracker {
	return &RegionTracker{
		grid:      grid,
		streaming: streaming,
		registry:  registry,
		entities:  entities,
		log:       log,
		slots:     make(map[RegionCoord]*regionSlot),
		active:    make(map[RegionCoord]struct{}),
	}
}

func (t *RegionTracker) Grid() Grid                 { return t.grid }
func (t *RegionTracker) Mode() StreamingMode        { return t.streaming.Mode }
func (t *RegionTracker) Streaming() StreamingConfig { return t.streaming }

func (t *RegionTracker) slot(c RegionCoord) *regionSlot {
	s := t.slots[c]
	if s == nil {
		s = &regionSlot{}
		t.slots[c] = s
	}
	return s
}

// State returns the current state of c. Out-of-range coordinates report
// Unloaded; use Grid().Check to distinguish them.
func (t *RegionTracker) State(c RegionCoord) RegionState {
	if s := t.slots[c]; s != nil {
		return s.state
	}
	return RegionUnloaded
}

// Generation returns the latest generation issued for c.
func (t *RegionTracker) Generation(c RegionCoord) uint32 {
	if s := t.slots[c]; s != nil {
		return s.generation
	}
	return 0
}

// RequestLoad moves an Unloaded region to Loading and returns the new
// generation. ok=false means the region was already Loading or Loaded.
func (t *RegionTracker) RequestLoad(c RegionCoord) (generation uint32, ok bool, err error) {
	if err := t.grid.Check(c); err != nil {
		return 0, false, err
	}
	s := t.slot(c)
	if s.state != RegionUnloaded {
		return 0, false, nil
	}
	s.generation++
	s.state = RegionLoading
	s.dirty = true
	t.active[c] = struct{}{}
	return s.generation, true, nil
}

// CompleteLoad applies a generation result. It succeeds only while c is
// still Loading at exactly generation; the payload is then registered and
// the region becomes Loaded. The returned IDs line up with payload; a zero
// ID marks a descriptor the registry refused.
func (t *RegionTracker) CompleteLoad(c RegionCoord, generation uint32, payload []Descriptor, spawnTick uint64) ([]ecs.EntityID, error) {
	if err := t.grid.Check(c); err != nil {
		return nil, err
	}
	s := t.slots[c]
	if s == nil || s.state != RegionLoading || s.generation != generation {
		stale := &StaleGenerationError{Coord: c, Got: generation}
		if s != nil {
			stale.Current = s.generation
			stale.State = s.state
		}
		return nil, stale
	}

	origin := t.grid.Origin(c)
	ids := make([]ecs.EntityID, len(payload))
	for i, d := range payload {
		id := t.entities.CreateEntity()
		if err := t.registry.RegisterInRegion(id, c, d.Category, origin.Add(d.Position), spawnTick); err != nil {
			t.entities.Pool().Release(id)
			t.log.Warn("region payload entry rejected",
				zap.Int32("x", c.X), zap.Int32("z", c.Z),
				zap.Int("index", i), zap.Error(err))
			continue
		}
		ids[i] = id
	}
	s.state = RegionLoaded
	return ids, nil
}

// Unload reverts c to Unloaded. From Loaded it deregisters every entity of
// the region in the same step; from Loading it abandons the pending
// generation. Unloaded regions return ErrNotLoaded.
func (t *RegionTracker) Unload(c RegionCoord) ([]ecs.EntityID, error) {
	if err := t.grid.Check(c); err != nil {
		return nil, err
	}
	s := t.slots[c]
	if s == nil || s.state == RegionUnloaded {
		return nil, ErrNotLoaded
	}
	var ids []ecs.EntityID
	if s.state == RegionLoaded {
		ids = t.registry.DeregisterRegion(c)
	}
	s.state = RegionUnloaded
	delete(t.active, c)
	return ids, nil
}

// Stream runs one continuous-mode pass around pos: regions whose center is
// within Radius are requested nearest first (capped per frame), regions
// beyond Radius+Margin are unloaded. Static mode never streams.
func (t *RegionTracker) Stream(pos mgl32.Vec3) StreamResult {
	var res StreamResult
	if t.streaming.Mode == StreamStatic {
		return res
	}

	far := t.streaming.Radius + t.streaming.Margin
	far2 := far * far
	for _, c := range t.ActiveRegions() {
		if t.grid.PlanarDistanceSq(c, pos) <= far2 {
			continue
		}
		gen := t.Generation(c)
		ids, err := t.Unload(c)
		if err != nil {
			continue
		}
		res.Unloaded = append(res.Unloaded, UnloadedRegion{Coord: c, Generation: gen, Entities: ids})
	}

	for _, c := range t.grid.Within(pos, t.streaming.Radius) {
		if limit := t.streaming.MaxRequestsPerFrame; limit > 0 && len(res.Requested) >= limit {
			break
		}
		gen, ok, err := t.RequestLoad(c)
		if err != nil || !ok {
			continue
		}
		res.Requested = append(res.Requested, LoadRequest{Coord: c, Generation: gen})
	}
	return res
}

// LoadAll requests every in-bounds region that is Unloaded. Used once at
// startup in static mode.
func (t *RegionTracker) LoadAll() []LoadRequest {
	b := t.grid.Bounds
	reqs := make([]LoadRequest, 0, b.Count())
	for x := b.MinX; x <= b.MaxX; x++ {
		for z := b.MinZ; z <= b.MaxZ; z++ {
			c := RegionCoord{X: x, Z: z}
			if gen, ok, err := t.RequestLoad(c); err == nil && ok {
				reqs = append(reqs, LoadRequest{Coord: c, Generation: gen})
			}
		}
	}
	return reqs
}

// ActiveRegions returns every Loading or Loaded region in coordinate order.
func (t *RegionTracker) ActiveRegions() []RegionCoord {
	out := make([]RegionCoord, 0, len(t.active))
	for c := range t.active {
		out = append(out, c)
	}
	sortCoords(out)
	return out
}

// Counts returns the number of Loading and Loaded regions.
func (t *RegionTracker) Counts() (loading, loaded int) {
	for c := range t.active {
		if t.slots[c].state == RegionLoading {
			loading++
		} else {
			loaded++
		}
	}
	return loading, loaded
}

// SeedGenerations restores generation counters persisted by an earlier run.
// Counters only move forward.
func (t *RegionTracker) SeedGenerations(gens map[RegionCoord]uint32) {
	for c, g := range gens {
		if !t.grid.Bounds.Contains(c) {
			continue
		}
		if s := t.slot(c); g > s.generation {
			s.generation = g
		}
	}
}

// DirtyGenerations returns and clears the counters changed since the last
// call.
func (t *RegionTracker) DirtyGenerations() map[RegionCoord]uint32 {
	var out map[RegionCoord]uint32
	for c, s := range t.slots {
		if !s.dirty {
			continue
		}
		if out == nil {
			out = make(map[RegionCoord]uint32)
		}
		out[c] = s.generation
		s.dirty = false
	}
	return out
}

func sortCoords(cs []RegionCoord) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].X != cs[j].X {
			return cs[i].X < cs[j].X
		}
		return cs[i].Z < cs[j].Z
	})
}

type byDistance struct {
	coords []RegionCoord
	dist   []float32
}

func (b byDistance) Len() int { return len(b.coords) }
func (b byDistance) Less(i, j int) bool {
	if b.dist[i] != b.dist[j] {
		return b.dist[i] < b.dist[j]
	}
	if b.coords[i].X != b.coords[j].X {
		return b.coords[i].X < b.coords[j].X
	}
	return b.coords[i].Z < b.coords[j].Z
}
func (b byDistance) Swap(i, j int) {
	b.coords[i], b.coords[j] = b.coords[j], b.coords[i]
	b.dist[i], b.dist[j] = b.dist[j], b.dist[i]
}

func sortByDistance(coords []RegionCoord, dist []float32) {
	sort.Sort(byDistance{coords: coords, dist: dist})
}
