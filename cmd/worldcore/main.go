package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/citysim/worldcore/internal/config"
	"github.com/citysim/worldcore/internal/core/ecs"
	"github.com/citysim/worldcore/internal/data"
	"github.com/citysim/worldcore/internal/persist"
	"github.com/citysim/worldcore/internal/scripting"
	"github.com/citysim/worldcore/internal/system"
	"github.com/citysim/worldcore/internal/transport/observer"
	"github.com/citysim/worldcore/internal/world"
)

const demoBodies = 512

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

var printer = message.NewPrinter(language.English)

func printBanner(mode string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              worldcore  v0.1.0            \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mstreaming:\033[0m %s\n\n", mode)
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := printer.Sprintf("%d", count)
	dotsLen := max(42-len(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main loop ─────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/worldcore.toml"
	if p := os.Getenv("WORLDCORE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	streaming := cfg.StreamingSettings()
	printBanner(streaming.Mode.String())

	// 3. Content: placements + Lua generator
	printSection("content")
	placements, err := data.LoadPlacementTable(cfg.Content.Placements)
	if err != nil {
		return fmt.Errorf("placements: %w", err)
	}
	printStat("hand-placed entities", placements.Count())
	printStat("regions with placements", placements.Regions())

	engine, err := scripting.NewEngine(cfg.Content.ScriptsDir, log.Named("lua"))
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	printOK("lua content scripts loaded")

	completions := world.NewCompletionQueue()
	generator := scripting.NewGenerator(engine, placements, completions, scripting.GeneratorConfig{
		CellSize:    cfg.World.CellSize,
		WorldSeed:   cfg.Content.Seed,
		BacklogWarn: cfg.Content.QueueSize,
	}, log.Named("generator"))
	defer generator.Close()
	fmt.Println()

	// 4. Generation ledger (optional)
	var ledgerStore system.LedgerStore
	var seeded map[world.RegionCoord]uint32
	if cfg.Database.DSN != "" {
		printSection("ledger")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		repo, err := persist.OpenLedger(ctx, cfg.Database, log.Named("db"))
		if err != nil {
			cancel()
			return fmt.Errorf("ledger: %w", err)
		}
		defer repo.Close()
		printOK(fmt.Sprintf("schema version %d", repo.SchemaVersion()))

		seeded, err = repo.LoadAll(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("load generations: %w", err)
		}
		printStat("regions with history", len(seeded))
		ledgerStore = repo
		fmt.Println()
	}

	// 5. Assemble the frame pipeline
	grid := cfg.Grid()
	reference := demoPath(grid)
	spawner := &logSpawner{log: log.Named("spawner")}
	allocator := newPoolAllocator(demoBodies, log.Named("bodies"))

	p := system.Build(system.Settings{
		Grid:                   grid,
		Streaming:              streaming,
		MaxCompletionsPerFrame: cfg.Streaming.MaxCompletionsPerFrame,
		DistanceCache:          cfg.DistanceCacheSettings(),
		Limits:                 cfg.LimitSettings(),
		EnforceHz:              cfg.Limits.EnforceHz,
		Profiles:               cfg.Profiles(),
		LODDirtyDelta:          cfg.LOD.DirtyDelta,
		MaxLODEvaluations:      cfg.LOD.MaxEvaluationsPerFrame,
		PhysicsBudget:          cfg.PhysicsBudget(),
		MaxPhysicsScan:         cfg.Physics.MaxScanPerFrame,
		LedgerIntervalTicks:    cfg.Database.LedgerIntervalTicks,
	}, system.Collaborators{
		Reference:   reference,
		Generator:   generator,
		Completions: completions,
		Spawner:     spawner,
		Allocator:   allocator,
		Ledger:      ledgerStore,
	}, log)
	if seeded != nil {
		p.Tracker.SeedGenerations(seeded)
	}

	printSection("world")
	printStat("regions in bounds", grid.Bounds.Count())
	printStat("physics bodies", demoBodies)
	fmt.Println()

	// 6. Observer feed (optional)
	var hub *observer.Hub
	var srv *http.Server
	if cfg.Observer.Enabled {
		hub = observer.NewHub(cfg.Observer.ClientQueue, log.Named("observer"))
		hub.Attach(p.Bus)
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/observe", hub.Handler())
		srv = &http.Server{Addr: cfg.Observer.BindAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("observer server failed", zap.Error(err))
			}
		}()
	}

	// 7. Frame loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	tick := cfg.Frame.TickRate
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	printSection("ready")
	if srv != nil {
		printReady(fmt.Sprintf("observer feed ws://%s/v1/observe", cfg.Observer.BindAddress))
	}
	printReady(fmt.Sprintf("frame loop started (tick: %s)", tick))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			p.Tick(tick)
			if n := cfg.Frame.StatsInterval; n > 0 && p.Frame.Frame%uint64(n) == 0 {
				logStats(log, p, spawner, allocator, hub)
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			if srv != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				_ = srv.Shutdown(ctx)
				cancel()
				hub.Close()
			}
			if p.Ledger != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := p.Ledger.Flush(ctx); err != nil {
					log.Error("final ledger flush failed", zap.Error(err))
				}
				cancel()
			}
			log.Info("worldcore stopped", zap.Uint64("frames", p.Frame.Frame))
			return nil
		}
	}
}

// demoPath loops the reference around the middle of the world so streaming,
// LOD and physics all see movement without an input layer.
func demoPath(g world.Grid) *system.PathReference {
	b := g.Bounds
	cx := float32(b.MinX+b.MaxX+1) * g.CellSize / 2
	cz := float32(b.MinZ+b.MaxZ+1) * g.CellSize / 2
	rx := float32(b.MaxX-b.MinX+1) * g.CellSize * 0.3
	rz := float32(b.MaxZ-b.MinZ+1) * g.CellSize * 0.3
	return system.NewPathReference(ecs.EntityID(1), 40,
		mgl32.Vec3{cx - rx, 0, cz - rz},
		mgl32.Vec3{cx + rx, 0, cz - rz},
		mgl32.Vec3{cx + rx, 0, cz + rz},
		mgl32.Vec3{cx - rx, 0, cz + rz},
	)
}

func logStats(log *zap.Logger, p *system.Pipeline, spawner *logSpawner, alloc *poolAllocator, hub *observer.Hub) {
	loading, loaded := p.Tracker.Counts()
	counts := p.Registry.Counts()
	hits, misses := p.Cache.Stats()
	step := p.PhysicsSystem.LastStep()
	fields := []zap.Field{
		zap.Uint64("frame", p.Frame.Frame),
		zap.Int("loading", loading),
		zap.Int("loaded", loaded),
		zap.Int("entities", p.Registry.Len()),
		zap.Int("active_bodies", p.Physics.ActiveCount()),
		zap.Int("deferred_activations", step.DeferredActivations),
		zap.Uint64("bodies_refused", alloc.refused),
		zap.Uint64("spawned", spawner.spawned),
		zap.Uint64("evicted", spawner.despawned[world.DespawnEvicted]),
		zap.Uint64("cache_hits", hits),
		zap.Uint64("cache_misses", misses),
	}
	var active [world.NumCategories]int
	p.Physics.EachActive(func(_ ecs.EntityID, c world.Category) { active[c]++ })
	for _, c := range world.Categories() {
		fields = append(fields, zap.String(c.String(), fmt.Sprintf("%d/%d", active[c], counts[c])))
	}
	if hub != nil {
		fields = append(fields, zap.Int("observers", hub.Clients()), zap.Uint64("observer_dropped", hub.Dropped()))
	}
	log.Info("frame stats", fields...)
}
