// Package database opens the portal's Postgres database and keeps its
// schema up to date.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/qustavo/sqlhooks/v2"
	"github.com/rs/zerolog"

	"github.com/tablewise/portal/pkg/database/gensql"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const (
	driverName       = "postgres"
	hookedDriverName = "postgres-hooked"
	migrationsDir    = "migrations"
)

var registerHooked sync.Once

type Repo struct {
	Querier gensql.Querier
	db      *sql.DB
}

func (r *Repo) GetDB() *sql.DB {
	return r.db
}

func (r *Repo) Close() error {
	return r.db.Close()
}

func (r *Repo) WithTx(ctx context.Context) (*gensql.Queries, func() error, func() error, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}

	return gensql.New(tx), tx.Rollback, tx.Commit, nil
}

// New connects to the database and runs all pending migrations. With debug
// enabled every statement is logged.
func New(dbConnDSN string, maxIdleConn, maxOpenConn int, debug bool, log zerolog.Logger) (*Repo, error) {
	driver := driverName

	if debug {
		registerHooked.Do(func() {
			sql.Register(hookedDriverName, sqlhooks.Wrap(&pq.Driver{}, &Hooks{log: log}))
		})

		driver = hookedDriverName
	}

	db, err := sql.Open(driver, dbConnDSN)
	if err != nil {
		return nil, fmt.Errorf("open sql connection: %w", err)
	}

	db.SetMaxIdleConns(maxIdleConn)
	db.SetMaxOpenConns(maxOpenConn)

	err = Migrate(db, log)
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	return &Repo{
		Querier: gensql.New(db),
		db:      db,
	}, nil
}

func Migrate(db *sql.DB, log zerolog.Logger) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(&gooseLogger{log: log})

	err := goose.SetDialect("postgres")
	if err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	err = goose.Up(db, migrationsDir)
	if err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}

type hookStartKey struct{}

type Hooks struct {
	log zerolog.Logger
}

var _ sqlhooks.Hooks = &Hooks{}

func (h *Hooks) Before(ctx context.Context, _ string, _ ...interface{}) (context.Context, error) {
	return context.WithValue(ctx, hookStartKey{}, time.Now()), nil
}

func (h *Hooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	ev := h.log.Debug().Str("query", query).Int("args", len(args))

	if start, ok := ctx.Value(hookStartKey{}).(time.Time); ok {
		ev = ev.Dur("duration", time.Since(start))
	}

	ev.Msg("sql")

	return ctx, nil
}

func (h *Hooks) OnError(ctx context.Context, err error, query string, _ ...interface{}) error {
	h.log.Debug().Err(err).Str("query", query).Msg("sql failed")

	return err
}

type gooseLogger struct {
	log zerolog.Logger
}

func (l *gooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Fatal().Msgf(format, v...)
}

func (l *gooseLogger) Printf(format string, v ...interface{}) {
	l.log.Info().Msgf(format, v...)
}
