package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/citysim/worldcore/internal/world"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worldcore.toml")
	src := `
[frame]
tick_rate = "20ms"

[world]
cell_size = 64.0
min_x = -4
max_x = 3
min_z = -4
max_z = 3

[streaming]
mode = "static"

[categories.vehicle]
limit = 12
lod_bounds = [50.0, 120.0, 300.0]
lod_margin = 5.0
physics_eligible = true
activation_radius = 90.0
deactivation_margin = 15.0
`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Frame.TickRate != 20*time.Millisecond {
		t.Errorf("tick_rate = %s", cfg.Frame.TickRate)
	}
	if g := cfg.Grid(); g.CellSize != 64 || g.Bounds.Count() != 64 {
		t.Errorf("grid = %+v", g)
	}
	if cfg.StreamingSettings().Mode != world.StreamStatic {
		t.Errorf("mode = %s", cfg.StreamingSettings().Mode)
	}

	p := cfg.Profiles()
	v := p[world.CategoryVehicle]
	if v.Limit != 12 || v.LOD.Bounds != [world.NumTiers - 1]float32{50, 120, 300} || v.Physics.ActivationRadius != 90 {
		t.Errorf("vehicle profile = %+v", v)
	}
	// Untouched categories keep their defaults.
	if p[world.CategoryVegetation].Limit != 4000 || p[world.CategoryVegetation].Physics.Eligible {
		t.Errorf("vegetation profile = %+v", p[world.CategoryVegetation])
	}
	if cfg.LimitSettings().Ceilings[world.CategoryVehicle] != 12 {
		t.Errorf("ceilings = %v", cfg.LimitSettings().Ceilings)
	}
}

func TestPartialCategoryKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("[categories.vehicle]\nlimit = 10\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	v := cfg.Profiles()[world.CategoryVehicle]
	if v.Limit != 10 {
		t.Errorf("limit = %d, want 10", v.Limit)
	}
	if v.LOD.Bounds != [world.NumTiers - 1]float32{100, 250, 600} || v.LOD.Margin != 10 {
		t.Errorf("lod = %+v, want defaults", v.LOD)
	}
	if !v.Physics.Eligible || v.Physics.ActivationRadius != 150 {
		t.Errorf("physics = %+v, want defaults", v.Physics)
	}
}

func TestPhysicsZeroBudgetAccepted(t *testing.T) {
	src := "[physics]\nmax_activations_per_frame = 0\nmax_deactivations_per_frame = 0\nmax_scan_per_frame = 0\n"
	cfg, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if b := cfg.PhysicsBudget(); b != (world.PhysicsBudget{}) {
		t.Errorf("budget = %+v", b)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"bad mode":         "[streaming]\nmode = \"sometimes\"\n",
		"empty world":      "[world]\nmin_x = 3\nmax_x = 1\n",
		"unknown category": "[categories.aircraft]\nlod_bounds = [1.0, 2.0, 3.0]\n",
		"unordered bounds": "[categories.other]\nlod_bounds = [100.0, 50.0, 300.0]\n",
		"short bounds":     "[categories.other]\nlod_bounds = [100.0]\n",
		"negative radius":  "[categories.other]\nlod_bounds = [1.0, 2.0, 3.0]\nactivation_radius = -1.0\n",
		"negative scan":    "[physics]\nmax_scan_per_frame = -1\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(src)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("err = %v", err)
	}
}
