package persist

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/citysim/worldcore/internal/config"
	"github.com/citysim/worldcore/internal/world"
)

// Needs a disposable Postgres database in WORLDCORE_TEST_DSN.
func openTestRepo(t *testing.T) *RegionRepo {
	t.Helper()
	dsn := os.Getenv("WORLDCORE_TEST_DSN")
	if dsn == "" {
		t.Skip("WORLDCORE_TEST_DSN not set")
	}
	ctx := context.Background()
	repo, err := OpenLedger(ctx, config.DatabaseConfig{DSN: dsn, MaxOpenConns: 2}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(repo.Close)
	if _, err := repo.pool.Exec(ctx, `TRUNCATE region_generation`); err != nil {
		t.Fatal(err)
	}
	return repo
}

func TestPoolConfigTagsConnections(t *testing.T) {
	cfg, err := poolConfig(config.DatabaseConfig{
		DSN:             "postgres://wc:wc@db.local:5432/worldcore",
		MaxOpenConns:    3,
		MaxIdleConns:    8,
		ConnMaxLifetime: 10 * time.Minute,
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxConns != 3 || cfg.MinConns != 3 {
		t.Errorf("conns = %d/%d, want idle clamped to 3", cfg.MinConns, cfg.MaxConns)
	}
	if cfg.MaxConnLifetime != 10*time.Minute {
		t.Errorf("lifetime = %s", cfg.MaxConnLifetime)
	}
	if got := cfg.ConnConfig.RuntimeParams["application_name"]; got != "worldcore" {
		t.Errorf("application_name = %q", got)
	}

	cfg, err = poolConfig(config.DatabaseConfig{DSN: "postgres://wc@db.local/worldcore?application_name=ops"})
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.ConnConfig.RuntimeParams["application_name"]; got != "ops" {
		t.Errorf("dsn application_name overridden: %q", got)
	}
}

func TestPoolConfigBadDSN(t *testing.T) {
	if _, err := poolConfig(config.DatabaseConfig{DSN: "postgres://wc@db.local:notaport/x"}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLatestMigrationEmbedded(t *testing.T) {
	v, err := latestMigration(migrations)
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Fatalf("latest migration = %d, want 1", v)
	}
}

func TestRegionRepoRoundTripMonotonic(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	a := world.RegionCoord{X: 1, Z: -2}
	b := world.RegionCoord{X: 0, Z: 0}
	if err := repo.SaveBatch(ctx, map[world.RegionCoord]uint32{a: 5, b: 1}); err != nil {
		t.Fatal(err)
	}
	// Lower value must not overwrite.
	if err := repo.SaveBatch(ctx, map[world.RegionCoord]uint32{a: 3, b: 2}); err != nil {
		t.Fatal(err)
	}

	got, err := repo.LoadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got[a] != 5 || got[b] != 2 || len(got) != 2 {
		t.Fatalf("LoadAll = %v", got)
	}
}

func TestRegionRepoEmptyBatch(t *testing.T) {
	repo := &RegionRepo{}
	if err := repo.SaveBatch(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
}
