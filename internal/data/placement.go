package data

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"github.com/citysim/worldcore/internal/world"
)

// PlacementEntry is one hand-placed entity, positioned relative to the
// origin of its region.
type PlacementEntry struct {
	Category string            `yaml:"category"`
	X        float32           `yaml:"x"`
	Y        float32           `yaml:"y"`
	Z        float32           `yaml:"z"`
	Params   map[string]string `yaml:"params"`
}

type placementRegion struct {
	X        int32            `yaml:"x"`
	Z        int32            `yaml:"z"`
	Entities []PlacementEntry `yaml:"entities"`
}

type placementFile struct {
	Regions []placementRegion `yaml:"regions"`
}

// PlacementTable holds landmarks and other fixed content that every load
// of a region must contain, on top of whatever the procedural generator
// produces.
type PlacementTable struct {
	regions map[world.RegionCoord][]world.Descriptor
	total   int
}

// LoadPlacementTable loads placements.yaml. A missing file yields an empty
// table.
func LoadPlacementTable(path string) (*PlacementTable, error) {
	t := &PlacementTable{regions: make(map[world.RegionCoord][]world.Descriptor)}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return t, nil
		}
		return nil, fmt.Errorf("read placements %s: %w", path, err)
	}
	var file placementFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse placements: %w", err)
	}
	for _, r := range file.Regions {
		coord := world.RegionCoord{X: r.X, Z: r.Z}
		for i, e := range r.Entities {
			cat, err := world.ParseCategory(e.Category)
			if err != nil {
				return nil, fmt.Errorf("placements region (%d,%d) entry %d: %w", r.X, r.Z, i, err)
			}
			t.regions[coord] = append(t.regions[coord], world.Descriptor{
				Category: cat,
				Position: mgl32.Vec3{e.X, e.Y, e.Z},
				Params:   e.Params,
			})
			t.total++
		}
	}
	return t, nil
}

// Get returns the fixed descriptors of a region. The slice is shared; do
// not modify it.
func (t *PlacementTable) Get(c world.RegionCoord) []world.Descriptor {
	return t.regions[c]
}

// Count returns the total number of placements loaded.
func (t *PlacementTable) Count() int { return t.total }

// Regions returns the number of regions with at least one placement.
func (t *PlacementTable) Regions() int { return len(t.regions) }
