package config

import "github.com/citysim/worldcore/internal/world"

// Conversions from the file layout to the settings each world component
// takes. Call after Validate.

func (c *Config) Grid() world.Grid {
	return world.Grid{
		CellSize: c.World.CellSize,
		Bounds: world.Bounds{
			MinX: c.World.MinX, MaxX: c.World.MaxX,
			MinZ: c.World.MinZ, MaxZ: c.World.MaxZ,
		},
	}
}

func (c *Config) StreamingSettings() world.StreamingConfig {
	mode, _ := c.StreamingMode()
	return world.StreamingConfig{
		Mode:                mode,
		Radius:              c.Streaming.Radius,
		Margin:              c.Streaming.Margin,
		MaxRequestsPerFrame: c.Streaming.MaxRequestsPerFrame,
	}
}

func (c *Config) DistanceCacheSettings() world.DistanceCacheConfig {
	return world.DistanceCacheConfig{
		MaxAgeFrames: c.DistanceCache.MaxAgeFrames,
		MaxEntries:   c.DistanceCache.MaxEntries,
	}
}

func (c *Config) PhysicsBudget() world.PhysicsBudget {
	return world.PhysicsBudget{
		MaxActivations:   c.Physics.MaxActivationsPerFrame,
		MaxDeactivations: c.Physics.MaxDeactivationsPerFrame,
	}
}

// Profiles builds the category table. A category missing from the map gets
// a zero profile: unlimited, never physics-eligible.
func (c *Config) Profiles() world.Profiles {
	var p world.Profiles
	for name, cat := range c.Categories {
		id, err := world.ParseCategory(name)
		if err != nil {
			continue
		}
		prof := world.CategoryProfile{
			Limit: cat.Limit,
			Physics: world.PhysicsProfile{
				Eligible:           cat.PhysicsEligible,
				ActivationRadius:   cat.ActivationRadius,
				DeactivationMargin: cat.DeactivationMargin,
			},
		}
		copy(prof.LOD.Bounds[:], cat.LODBounds)
		prof.LOD.Margin = cat.LODMargin
		p[id] = prof
	}
	return p
}

func (c *Config) LimitSettings() world.LimitConfig {
	l := world.LimitConfig{WarnSlack: c.Limits.WarnSlack}
	p := c.Profiles()
	for i := range p {
		l.Ceilings[i] = p[i].Limit
	}
	return l
}
