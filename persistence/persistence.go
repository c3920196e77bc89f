// Package persistence opens the accounts database and brings its schema up
// to date. Postgres DSNs use pgx, anything else is treated as sqlite.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"

	users "github.com/ogehub/go-users"
	"github.com/ogehub/go-users/migrations"
)

// Driver identifies the database backend behind a DSN.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// Options configures Open.
type Options struct {
	DSN            string
	Debug          bool
	SkipMigrations bool
	Logger         users.Logger
}

// DriverFor reports which backend serves dsn.
func DriverFor(dsn string) Driver {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

// Open connects to the database named by opts.DSN, verifies the connection
// and runs the schema migrations.
func Open(ctx context.Context, opts Options) (*bun.DB, error) {
	dsn := strings.TrimSpace(opts.DSN)
	if dsn == "" {
		return nil, errors.New("persistence: empty DSN")
	}

	logger := opts.Logger
	if logger == nil {
		logger = users.NopLogger()
	}

	var (
		db      *bun.DB
		dialect goose.Dialect
	)

	switch driver := DriverFor(dsn); driver {
	case DriverPostgres:
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("persistence: open postgres: %w", err)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
		dialect = goose.DialectPostgres
	default:
		sqldb, err := sql.Open(sqliteshim.ShimName, strings.TrimPrefix(dsn, "sqlite://"))
		if err != nil {
			return nil, fmt.Errorf("persistence: open sqlite: %w", err)
		}
		// sqlite serializes writers, a single connection keeps in memory
		// databases shared across queries
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
		dialect = goose.DialectSQLite3
	}

	if opts.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: ping: %w", err)
	}

	if !opts.SkipMigrations {
		if err := migrations.Up(ctx, db.DB, dialect); err != nil {
			db.Close()
			return nil, err
		}
	}

	logger.Info("database ready", "driver", string(DriverFor(dsn)), "debug", opts.Debug)
	return db, nil
}
