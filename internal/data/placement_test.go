package data

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/citysim/worldcore/internal/world"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadPlacementTable(t *testing.T) {
	path := writeFile(t, "placements.yaml", `
regions:
  - x: 1
    z: 1
    entities:
      - category: structure
        x: 10
        z: 20
        params:
          model: tower
      - category: vehicle
        x: 64
        z: 64
  - x: -2
    z: 0
    entities:
      - category: vegetation
        x: 1
        z: 1
`)
	table, err := LoadPlacementTable(path)
	if err != nil {
		t.Fatal(err)
	}
	if table.Count() != 3 || table.Regions() != 2 {
		t.Fatalf("count = %d regions = %d", table.Count(), table.Regions())
	}
	got := table.Get(world.RegionCoord{X: 1, Z: 1})
	if len(got) != 2 || got[0].Category != world.CategoryStructure || got[0].Params["model"] != "tower" {
		t.Fatalf("region (1,1) = %+v", got)
	}
	if got[0].Position.X() != 10 || got[0].Position.Z() != 20 {
		t.Fatalf("position = %v", got[0].Position)
	}
	if len(table.Get(world.RegionCoord{X: 5, Z: 5})) != 0 {
		t.Fatal("unexpected placements")
	}
}

func TestLoadPlacementTableMissingFile(t *testing.T) {
	table, err := LoadPlacementTable(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil || table.Count() != 0 {
		t.Fatalf("table %v err %v", table, err)
	}
}

func TestLoadPlacementTableUnknownCategory(t *testing.T) {
	path := writeFile(t, "bad.yaml", "regions:\n  - x: 0\n    z: 0\n    entities:\n      - category: airship\n")
	_, err := LoadPlacementTable(path)
	if !errors.Is(err, world.ErrUnknownCategory) {
		t.Fatalf("err = %v", err)
	}
}
