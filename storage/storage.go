// Package storage opens the bun database and runs the embedded goose
// migrations. sqlite is served through sqliteshim, postgres through the
// pgx stdlib driver.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-tours/storage/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// MemoryDSN is a private in-memory sqlite database
const MemoryDSN = "file::memory:"

// Logger is the subset of tours.Logger used for query logging
type Logger interface {
	Debug(msg string, args ...any)
}

// Options for Open
type Options struct {
	Driver string
	DSN    string
	// LogQueries logs every statement at debug level
	LogQueries bool
	Logger     Logger
}

// Open connects and pings the database
func Open(ctx context.Context, opts Options) (*bun.DB, error) {
	var (
		sqldb *sql.DB
		db    *bun.DB
		err   error
	)

	switch strings.ToLower(opts.Driver) {
	case "", DriverSQLite, "sqlite3":
		dsn := opts.DSN
		if dsn == "" {
			dsn = MemoryDSN
		}
		sqldb, err = sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite database")
		}
		if strings.Contains(dsn, ":memory:") {
			// every new connection would see an empty database
			sqldb.SetMaxOpenConns(1)
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case DriverPostgres, "pgx", "postgresql":
		sqldb, err = sql.Open("pgx", opts.DSN)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open postgres database")
		}
		sqldb.SetMaxOpenConns(10)
		sqldb.SetConnMaxIdleTime(5 * time.Minute)
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		return nil, goerrors.New(fmt.Sprintf("unsupported database driver %q", opts.Driver), goerrors.CategoryBadInput)
	}

	if err := sqldb.PingContext(ctx); err != nil {
		sqldb.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to reach database")
	}

	if opts.LogQueries && opts.Logger != nil {
		db.AddQueryHook(queryLogger{logger: opts.Logger})
	}

	return db, nil
}

var migrateMu sync.Mutex

// Migrate applies all pending migrations
func Migrate(ctx context.Context, db *bun.DB) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	gooseDialect := "sqlite3"
	if db.Dialect().Name() == dialect.PG {
		gooseDialect = "postgres"
	}

	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(gooseDialect); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to set migration dialect")
	}

	if err := goose.UpContext(ctx, db.DB, "."); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to run migrations")
	}
	return nil
}

// OpenAndMigrate is Open followed by Migrate
func OpenAndMigrate(ctx context.Context, opts Options) (*bun.DB, error) {
	db, err := Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

type queryLogger struct {
	logger Logger
}

func (h queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h queryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	args := []any{"query", event.Query, "duration", time.Since(event.StartTime)}
	if event.Err != nil && event.Err != sql.ErrNoRows {
		args = append(args, "error", event.Err)
	}
	h.logger.Debug("sql", args...)
}
