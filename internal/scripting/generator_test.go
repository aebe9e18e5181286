package scripting

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap/zaptest"

	"github.com/citysim/worldcore/internal/world"
)

type fixedPlacements map[world.RegionCoord][]world.Descriptor

func (p fixedPlacements) Get(c world.RegionCoord) []world.Descriptor { return p[c] }

func waitCompletions(t *testing.T, q *world.CompletionQueue, n int) []world.Completion {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var out []world.Completion
	for len(out) < n {
		if time.Now().After(deadline) {
			t.Fatalf("got %d completions, want %d", len(out), n)
		}
		out = q.Drain(out, 0)
		time.Sleep(time.Millisecond)
	}
	return out
}

func TestGeneratorDeliversCompletions(t *testing.T) {
	log := zaptest.NewLogger(t)
	e, err := NewEngine(writeScript(t, testScript), log)
	if err != nil {
		t.Fatal(err)
	}
	home := world.RegionCoord{X: 0, Z: 0}
	landmark := world.Descriptor{Category: world.CategoryStructure, Position: mgl32.Vec3{64, 0, 64}}
	q := world.NewCompletionQueue()
	g := NewGenerator(e, fixedPlacements{home: {landmark}}, q, GeneratorConfig{CellSize: 128, WorldSeed: 1, BacklogWarn: 1}, log)
	defer g.Close()

	g.RequestRegion(world.LoadRequest{Coord: home, Generation: 1})
	g.RequestRegion(world.LoadRequest{Coord: world.RegionCoord{X: 1, Z: 0}, Generation: 1})
	g.RequestRegion(world.LoadRequest{Coord: home, Generation: 2})

	got := waitCompletions(t, q, 3)
	if got[0].Coord != home || got[0].Generation != 1 {
		t.Fatalf("first completion = %v/%d", got[0].Coord, got[0].Generation)
	}
	if got[2].Generation != 2 {
		t.Fatalf("completions out of order: %+v", got)
	}
	if n := len(got[0].Payload); n != 5 {
		t.Fatalf("home payload = %d, want 4 scripted + 1 placed", n)
	}
	if got[0].Payload[4].Position != landmark.Position {
		t.Fatalf("placement not appended: %+v", got[0].Payload[4])
	}
	if n := len(got[1].Payload); n != 4 {
		t.Fatalf("neighbour payload = %d, want 4", n)
	}
}

func TestGeneratorScriptFailureStillCompletes(t *testing.T) {
	log := zaptest.NewLogger(t)
	e, err := NewEngine(writeScript(t, `function generate_region(ctx) error("bad") end`), log)
	if err != nil {
		t.Fatal(err)
	}
	c := world.RegionCoord{X: 3, Z: 3}
	q := world.NewCompletionQueue()
	g := NewGenerator(e, fixedPlacements{c: {{Category: world.CategoryOther}}}, q, GeneratorConfig{CellSize: 128}, log)
	defer g.Close()

	g.RequestRegion(world.LoadRequest{Coord: c, Generation: 1})
	got := waitCompletions(t, q, 1)
	if len(got[0].Payload) != 1 || got[0].Payload[0].Category != world.CategoryOther {
		t.Fatalf("payload = %+v, want placements only", got[0].Payload)
	}
}
