package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/citysim/worldcore/internal/world"
)

type Config struct {
	Frame         FrameConfig               `toml:"frame"`
	World         WorldConfig               `toml:"world"`
	Streaming     StreamingConfig           `toml:"streaming"`
	DistanceCache DistanceCacheConfig       `toml:"distance_cache"`
	Limits        LimitsConfig              `toml:"limits"`
	LOD           LODConfig                 `toml:"lod"`
	Physics       PhysicsConfig             `toml:"physics"`
	Categories    map[string]CategoryConfig `toml:"categories"`
	Content       ContentConfig             `toml:"content"`
	Database      DatabaseConfig            `toml:"database"`
	Observer      ObserverConfig            `toml:"observer"`
	Logging       LoggingConfig             `toml:"logging"`
}

type FrameConfig struct {
	TickRate      time.Duration `toml:"tick_rate"`
	StatsInterval int           `toml:"stats_interval"` // frames between stat log lines, 0 = off
}

type WorldConfig struct {
	CellSize float32 `toml:"cell_size"`
	MinX     int32   `toml:"min_x"`
	MaxX     int32   `toml:"max_x"`
	MinZ     int32   `toml:"min_z"`
	MaxZ     int32   `toml:"max_z"`
}

type StreamingConfig struct {
	Mode                   string  `toml:"mode"` // "continuous" or "static"
	Radius                 float32 `toml:"radius"`
	Margin                 float32 `toml:"margin"`
	MaxRequestsPerFrame    int     `toml:"max_requests_per_frame"`
	MaxCompletionsPerFrame int     `toml:"max_completions_per_frame"`
}

type DistanceCacheConfig struct {
	MaxAgeFrames uint64 `toml:"max_age_frames"`
	MaxEntries   int    `toml:"max_entries"`
}

type LimitsConfig struct {
	EnforceHz float64 `toml:"enforce_hz"`
	WarnSlack int     `toml:"warn_slack"`
}

type LODConfig struct {
	DirtyDelta             float32 `toml:"dirty_delta"`
	MaxEvaluationsPerFrame int     `toml:"max_evaluations_per_frame"` // 0 = every entity every frame
}

// PhysicsConfig budgets: 0 = unlimited, as for the other per-frame caps.
type PhysicsConfig struct {
	MaxActivationsPerFrame   int `toml:"max_activations_per_frame"`
	MaxDeactivationsPerFrame int `toml:"max_deactivations_per_frame"`
	MaxScanPerFrame          int `toml:"max_scan_per_frame"` // dormant entities checked per frame
}

type CategoryConfig struct {
	Limit              int       `toml:"limit"`
	LODBounds          []float32 `toml:"lod_bounds"`
	LODMargin          float32   `toml:"lod_margin"`
	PhysicsEligible    bool      `toml:"physics_eligible"`
	ActivationRadius   float32   `toml:"activation_radius"`
	DeactivationMargin float32   `toml:"deactivation_margin"`
}

type ContentConfig struct {
	ScriptsDir string `toml:"scripts_dir"`
	Placements string `toml:"placements"`
	Seed       int64  `toml:"seed"`
	QueueSize  int    `toml:"queue_size"`
}

type DatabaseConfig struct {
	DSN                 string        `toml:"dsn"` // empty disables the generation ledger
	MaxOpenConns        int           `toml:"max_open_conns"`
	MaxIdleConns        int           `toml:"max_idle_conns"`
	ConnMaxLifetime     time.Duration `toml:"conn_max_lifetime"`
	LedgerIntervalTicks int           `toml:"ledger_interval_ticks"`
}

type ObserverConfig struct {
	Enabled     bool   `toml:"enabled"`
	BindAddress string `toml:"bind_address"`
	ClientQueue int    `toml:"client_queue"`
}

type LoggingConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"` // "json" or "console"
	File       string `toml:"file"`   // optional rotated log file
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes TOML over the defaults and validates the result. A
// [categories.<name>] block only overrides the keys it sets.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := mergeCategories(cfg, string(data)); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeCategories re-decodes each category block over its default, since
// the plain decode replaces map values whole.
func mergeCategories(cfg *Config, data string) error {
	var raw struct {
		Categories map[string]toml.Primitive `toml:"categories"`
	}
	md, err := toml.Decode(data, &raw)
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	defaults := Defaults().Categories
	for name, prim := range raw.Categories {
		cat := defaults[name]
		if err := md.PrimitiveDecode(prim, &cat); err != nil {
			return fmt.Errorf("parse config: categories.%s: %w", name, err)
		}
		cfg.Categories[name] = cat
	}
	return nil
}

func Defaults() *Config {
	return &Config{
		Frame: FrameConfig{
			TickRate:      16 * time.Millisecond,
			StatsInterval: 300,
		},
		World: WorldConfig{
			CellSize: 128,
			MinX:     -32,
			MaxX:     31,
			MinZ:     -32,
			MaxZ:     31,
		},
		Streaming: StreamingConfig{
			Mode:                   "continuous",
			Radius:                 512,
			Margin:                 128,
			MaxRequestsPerFrame:    4,
			MaxCompletionsPerFrame: 8,
		},
		DistanceCache: DistanceCacheConfig{
			MaxAgeFrames: 3,
			MaxEntries:   16384,
		},
		Limits: LimitsConfig{
			EnforceHz: 4,
			WarnSlack: 16,
		},
		LOD: LODConfig{
			DirtyDelta:             1,
			MaxEvaluationsPerFrame: 2048,
		},
		Physics: PhysicsConfig{
			MaxActivationsPerFrame:   32,
			MaxDeactivationsPerFrame: 64,
			MaxScanPerFrame:          4096,
		},
		Categories: map[string]CategoryConfig{
			"vehicle": {
				Limit: 200, LODBounds: []float32{100, 250, 600}, LODMargin: 10,
				PhysicsEligible: true, ActivationRadius: 150, DeactivationMargin: 30,
			},
			"structure": {
				Limit: 1500, LODBounds: []float32{150, 400, 900}, LODMargin: 20,
				PhysicsEligible: true, ActivationRadius: 120, DeactivationMargin: 40,
			},
			"pedestrian": {
				Limit: 300, LODBounds: []float32{60, 150, 300}, LODMargin: 8,
				PhysicsEligible: true, ActivationRadius: 80, DeactivationMargin: 20,
			},
			"vegetation": {
				Limit: 4000, LODBounds: []float32{80, 200, 450}, LODMargin: 10,
			},
			"other": {
				LODBounds: []float32{100, 250, 600}, LODMargin: 10,
				PhysicsEligible: true, ActivationRadius: 100, DeactivationMargin: 25,
			},
		},
		Content: ContentConfig{
			ScriptsDir: "scripts",
			Placements: "data/yaml/placements.yaml",
			Seed:       1,
			QueueSize:  64,
		},
		Database: DatabaseConfig{
			MaxOpenConns:        4,
			MaxIdleConns:        1,
			ConnMaxLifetime:     30 * time.Minute,
			LedgerIntervalTicks: 600,
		},
		Observer: ObserverConfig{
			BindAddress: "127.0.0.1:7420",
			ClientQueue: 1024,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  64,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// Validate rejects settings the world core cannot honour.
func (c *Config) Validate() error {
	var errs []error
	if c.Frame.TickRate <= 0 {
		errs = append(errs, errors.New("frame.tick_rate must be positive"))
	}
	if c.World.CellSize <= 0 {
		errs = append(errs, errors.New("world.cell_size must be positive"))
	}
	if c.World.MaxX < c.World.MinX || c.World.MaxZ < c.World.MinZ {
		errs = append(errs, errors.New("world extent is empty"))
	}
	if _, err := c.StreamingMode(); err != nil {
		errs = append(errs, err)
	}
	if c.Streaming.Radius < 0 || c.Streaming.Margin < 0 {
		errs = append(errs, errors.New("streaming radius and margin must be >= 0"))
	}
	if c.Physics.MaxActivationsPerFrame < 0 || c.Physics.MaxDeactivationsPerFrame < 0 || c.Physics.MaxScanPerFrame < 0 {
		errs = append(errs, errors.New("physics budgets must be >= 0 (0 = unlimited)"))
	}
	if c.Limits.EnforceHz <= 0 {
		errs = append(errs, errors.New("limits.enforce_hz must be positive"))
	}
	for name, cat := range c.Categories {
		if _, err := world.ParseCategory(name); err != nil {
			errs = append(errs, fmt.Errorf("categories.%s: %w", name, err))
			continue
		}
		if err := cat.validate(); err != nil {
			errs = append(errs, fmt.Errorf("categories.%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (c CategoryConfig) validate() error {
	if len(c.LODBounds) != world.NumTiers-1 {
		return fmt.Errorf("lod_bounds needs %d values, got %d", world.NumTiers-1, len(c.LODBounds))
	}
	prev := float32(0)
	for i, b := range c.LODBounds {
		if b <= prev {
			return fmt.Errorf("lod_bounds[%d]=%v must exceed %v", i, b, prev)
		}
		prev = b
	}
	if c.LODMargin < 0 || c.ActivationRadius < 0 || c.DeactivationMargin < 0 || c.Limit < 0 {
		return errors.New("limit, margins and radii must be >= 0")
	}
	return nil
}

func (c *Config) StreamingMode() (world.StreamingMode, error) {
	switch c.Streaming.Mode {
	case "", "continuous":
		return world.StreamContinuous, nil
	case "static":
		return world.StreamStatic, nil
	}
	return 0, fmt.Errorf("streaming.mode %q: want continuous or static", c.Streaming.Mode)
}
