package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-provisioning/migrations"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

type dbConfig struct {
	driver string
	server string
	debug  bool
}

func (c dbConfig) GetDebug() bool {
	return c.debug
}

func (c dbConfig) GetDriver() string {
	return c.driver
}

func (c dbConfig) GetServer() string {
	return c.server
}

func (c dbConfig) GetPingTimeout() time.Duration {
	return 5 * time.Second
}

func (c dbConfig) GetOtelIdentifier() string {
	return "go-provisioning"
}

// openPersistence opens the configured database and applies the schema for
// its dialect.
func openPersistence(ctx context.Context, cfg settings) (*persistence.Client, error) {
	migration, err := migrations.DialectForDriver(cfg.DBDriver)
	if err != nil {
		return nil, err
	}
	driver, dialect := "postgres", schema.Dialect(pgdialect.New())
	if migration == migrations.DialectSQLite {
		driver, dialect = "sqlite3", sqlitedialect.New()
	}
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("webhookd: PROVISIONING_DB_DSN is required for driver %q", cfg.DBDriver)
	}

	sqlDB, err := sql.Open(driver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("webhookd: open database: %w", err)
	}
	if driver == "sqlite3" {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(dbConfig{driver: driver, server: cfg.DBDSN, debug: cfg.DBDebug}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("webhookd: persistence client: %w", err)
	}

	_, err = migrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != migration {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, migrations.WithDialects(migration))
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("webhookd: migrate: %w", err)
	}
	return client, nil
}
