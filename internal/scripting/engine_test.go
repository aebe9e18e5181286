package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/citysim/worldcore/internal/world"
)

const testScript = `
function generate_region(ctx)
  local out = {}
  for i = 1, 3 do
    out[#out + 1] = {
      category = "vehicle",
      x = hash01(ctx.seed, i) * ctx.cell_size,
      y = 0,
      z = i * 10,
      params = { model = "sedan", gen = tostring(ctx.generation) },
    }
  end
  out[#out + 1] = { category = "spaceship", x = 1, y = 1, z = 1 }
  out[#out + 1] = { category = "structure", x = ctx.x, y = 0, z = ctx.z }
  return out
end
`

func writeScript(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "region.lua"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestEngineGenerateRegion(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	e, err := NewEngine(writeScript(t, testScript), zap.New(core))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	ctx := RegionContext{
		Coord:      world.RegionCoord{X: 2, Z: -1},
		Generation: 3,
		CellSize:   128,
		Seed:       RegionSeed(42, world.RegionCoord{X: 2, Z: -1}),
	}
	got, err := e.GenerateRegion(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Fatalf("descriptors = %d, want 4 (unknown category skipped)", len(got))
	}
	for i := 0; i < 3; i++ {
		d := got[i]
		if d.Category != world.CategoryVehicle {
			t.Fatalf("descriptor %d category = %v", i, d.Category)
		}
		if d.Position[0] < 0 || d.Position[0] >= 128 {
			t.Fatalf("descriptor %d x = %v out of cell", i, d.Position[0])
		}
		if d.Params["model"] != "sedan" || d.Params["gen"] != "3" {
			t.Fatalf("descriptor %d params = %v", i, d.Params)
		}
	}
	last := got[3]
	if last.Category != world.CategoryStructure || last.Position[0] != 2 || last.Position[2] != -1 {
		t.Fatalf("structure descriptor = %+v", last)
	}
	if logs.FilterMessage("generate_region: skipping entry").Len() != 1 {
		t.Fatalf("expected one skip warning, got %v", logs.All())
	}

	again, err := e.GenerateRegion(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for i := range got {
		if got[i].Position != again[i].Position {
			t.Fatalf("generation not deterministic at %d: %v vs %v", i, got[i].Position, again[i].Position)
		}
	}
}

func TestEngineMissingFunction(t *testing.T) {
	e, err := NewEngine(filepath.Join(t.TempDir(), "absent"), zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if _, err := e.GenerateRegion(RegionContext{}); err == nil {
		t.Fatal("expected error without generate_region")
	}
}

func TestEngineScriptErrorIsReturned(t *testing.T) {
	e, err := NewEngine(t.TempDir(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if err := e.LoadString(`function generate_region(ctx) error("boom") end`); err != nil {
		t.Fatal(err)
	}
	if _, err := e.GenerateRegion(RegionContext{}); err == nil {
		t.Fatal("expected script error")
	}
	// VM stays usable after a protected call fails.
	if err := e.LoadString(`function generate_region(ctx) return {} end`); err != nil {
		t.Fatal(err)
	}
	got, err := e.GenerateRegion(RegionContext{})
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestNewEngineSyntaxError(t *testing.T) {
	if _, err := NewEngine(writeScript(t, "function ("), zaptest.NewLogger(t)); err == nil {
		t.Fatal("expected load error")
	}
}

func TestRegionSeed(t *testing.T) {
	a := RegionSeed(7, world.RegionCoord{X: 1, Z: 1})
	if a != RegionSeed(7, world.RegionCoord{X: 1, Z: 1}) {
		t.Fatal("seed not stable")
	}
	if a == RegionSeed(7, world.RegionCoord{X: 1, Z: 2}) {
		t.Fatal("neighbouring regions share a seed")
	}
	if a == RegionSeed(8, world.RegionCoord{X: 1, Z: 1}) {
		t.Fatal("world seed ignored")
	}
}
