package persist

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/citysim/worldcore/internal/world"
)

// RegionRepo stores the last issued load generation per region, so a
// restarted process continues the counters instead of reissuing old ones.
type RegionRepo struct {
	pool    *pgxpool.Pool
	version int64
}

// SchemaVersion is the ledger schema version reached at open.
func (r *RegionRepo) SchemaVersion() int64 { return r.version }

func (r *RegionRepo) Close() { r.pool.Close() }

// LoadAll returns every persisted counter.
func (r *RegionRepo) LoadAll(ctx context.Context) (map[world.RegionCoord]uint32, error) {
	rows, err := r.pool.Query(ctx, `SELECT x, z, generation FROM region_generation`)
	if err != nil {
		return nil, fmt.Errorf("query region generations: %w", err)
	}
	defer rows.Close()

	out := make(map[world.RegionCoord]uint32)
	for rows.Next() {
		var x, z int32
		var gen int64
		if err := rows.Scan(&x, &z, &gen); err != nil {
			return nil, fmt.Errorf("scan region generation: %w", err)
		}
		out[world.RegionCoord{X: x, Z: z}] = uint32(gen)
	}
	return out, rows.Err()
}

// SaveBatch upserts the given counters in one transaction. A stored value is
// never lowered.
func (r *RegionRepo) SaveBatch(ctx context.Context, gens map[world.RegionCoord]uint32) error {
	if len(gens) == 0 {
		return nil
	}
	coords := make([]world.RegionCoord, 0, len(gens))
	for c := range gens {
		coords = append(coords, c)
	}
	// Fixed row order keeps concurrent writers from deadlocking.
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].X != coords[j].X {
			return coords[i].X < coords[j].X
		}
		return coords[i].Z < coords[j].Z
	})

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ledger begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range coords {
		if _, err := tx.Exec(ctx,
			`INSERT INTO region_generation (x, z, generation, updated_at)
			 VALUES ($1, $2, $3, now())
			 ON CONFLICT (x, z) DO UPDATE
			 SET generation = GREATEST(region_generation.generation, EXCLUDED.generation),
			     updated_at = now()`,
			c.X, c.Z, int64(gens[c]),
		); err != nil {
			return fmt.Errorf("ledger upsert (%d,%d): %w", c.X, c.Z, err)
		}
	}

	return tx.Commit(ctx)
}
