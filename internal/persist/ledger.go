package persist

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/citysim/worldcore/internal/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

const applicationName = "worldcore"

// OpenLedger connects to the generation ledger database, brings its schema
// up to the newest embedded migration and returns the repository over it.
func OpenLedger(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*RegionRepo, error) {
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to ledger: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping ledger: %w", err)
	}

	from, to, err := migrate(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("generation ledger ready",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("database", poolCfg.ConnConfig.Database),
		zap.Int32("max_conns", poolCfg.MaxConns),
		zap.Int64("schema_from", from),
		zap.Int64("schema", to))
	return &RegionRepo{pool: pool, version: to}, nil
}

// poolConfig maps the database section onto pgx settings. Connections are
// tagged with the application name unless the DSN sets one, and idle
// connections never exceed the open cap.
func poolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse ledger dsn: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	poolCfg.MinConns = min(int32(max(cfg.MaxIdleConns, 0)), poolCfg.MaxConns)
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if _, ok := poolCfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	return poolCfg, nil
}

// migrate applies pending migrations and returns the schema version before
// and after. A database left below the newest embedded migration is an
// error.
func migrate(ctx context.Context, pool *pgxpool.Pool) (from, to int64, err error) {
	want, err := latestMigration(migrations)
	if err != nil {
		return 0, 0, err
	}
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return 0, 0, fmt.Errorf("set dialect: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if from, err = goose.GetDBVersionContext(ctx, db); err != nil {
		return 0, 0, fmt.Errorf("read schema version: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return from, 0, fmt.Errorf("run migrations: %w", err)
	}
	if to, err = goose.GetDBVersionContext(ctx, db); err != nil {
		return from, 0, fmt.Errorf("read schema version: %w", err)
	}
	if to < want {
		return from, to, fmt.Errorf("ledger schema at %d, want %d", to, want)
	}
	return from, to, nil
}

// latestMigration returns the highest version among the embedded files.
func latestMigration(fsys fs.FS) (int64, error) {
	entries, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return 0, fmt.Errorf("list migrations: %w", err)
	}
	var latest int64
	for _, e := range entries {
		v, err := goose.NumericComponent(e.Name())
		if err != nil {
			return 0, fmt.Errorf("migration %s: %w", e.Name(), err)
		}
		latest = max(latest, v)
	}
	return latest, nil
}
