package scripting

import (
	"sync"

	"go.uber.org/zap"

	"github.com/citysim/worldcore/internal/world"
)

// PlacementSource supplies fixed, hand-placed descriptors per region.
type PlacementSource interface {
	Get(c world.RegionCoord) []world.Descriptor
}

// GeneratorConfig parameterizes a LuaGenerator.
type GeneratorConfig struct {
	CellSize  float32
	WorldSeed int64
	// Backlog above which a warning is logged. Requests are never dropped.
	BacklogWarn int
}

// LuaGenerator implements world.Generator on top of an Engine. The engine
// is owned by a single worker goroutine; RequestRegion only appends to a
// pending list and never blocks the frame.
type LuaGenerator struct {
	engine     *Engine
	placements PlacementSource
	out        *world.CompletionQueue
	cfg        GeneratorConfig
	log        *zap.Logger

	mu      sync.Mutex
	pending []world.LoadRequest
	warned  bool
	wake    chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewGenerator starts the worker. placements may be nil.
func NewGenerator(engine *Engine, placements PlacementSource, out *world.CompletionQueue, cfg GeneratorConfig, log *zap.Logger) *LuaGenerator {
	g := &LuaGenerator{
		engine:     engine,
		placements: placements,
		out:        out,
		cfg:        cfg,
		log:        log,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	g.wg.Add(1)
	go g.run()
	return g
}

func (g *LuaGenerator) RequestRegion(req world.LoadRequest) {
	g.mu.Lock()
	g.pending = append(g.pending, req)
	n := len(g.pending)
	warn := g.cfg.BacklogWarn > 0 && n > g.cfg.BacklogWarn && !g.warned
	if warn {
		g.warned = true
	} else if n <= g.cfg.BacklogWarn {
		g.warned = false
	}
	g.mu.Unlock()

	if warn {
		g.log.Warn("content generator backlog", zap.Int("pending", n))
	}
	select {
	case g.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of requests not yet picked up by the worker.
func (g *LuaGenerator) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// Close stops the worker after its current request and closes the VM.
// Requests still pending are discarded.
func (g *LuaGenerator) Close() {
	close(g.done)
	g.wg.Wait()
	g.engine.Close()
}

func (g *LuaGenerator) run() {
	defer g.wg.Done()
	var batch []world.LoadRequest
	for {
		select {
		case <-g.done:
			return
		case <-g.wake:
		}

		g.mu.Lock()
		batch = append(batch[:0], g.pending...)
		clear(g.pending)
		g.pending = g.pending[:0]
		g.mu.Unlock()

		for _, req := range batch {
			select {
			case <-g.done:
				return
			default:
			}
			g.out.Push(g.generate(req))
		}
	}
}

// generate always yields a completion. A script failure still delivers the
// fixed placements so the region reaches Loaded.
func (g *LuaGenerator) generate(req world.LoadRequest) world.Completion {
	ctx := RegionContext{
		Coord:      req.Coord,
		Generation: req.Generation,
		CellSize:   g.cfg.CellSize,
		Seed:       RegionSeed(g.cfg.WorldSeed, req.Coord),
	}
	payload, err := g.engine.GenerateRegion(ctx)
	if err != nil {
		g.log.Error("region generation failed",
			zap.Int32("x", req.Coord.X), zap.Int32("z", req.Coord.Z),
			zap.Uint32("generation", req.Generation), zap.Error(err))
	}
	if g.placements != nil {
		payload = append(payload, g.placements.Get(req.Coord)...)
	}
	return world.Completion{Coord: req.Coord, Generation: req.Generation, Payload: payload}
}
