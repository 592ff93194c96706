// Package dbcheck checks an uploaded credentials document before a project
// is submitted, by connecting to the client database and listing the tables
// the conversion would see.
package dbcheck

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/tablewise/portal/pkg/errs"
	"github.com/tablewise/portal/pkg/service"
)

const DefaultTimeout = 10 * time.Second

var ErrUnsupportedDBType = errors.New("unsupported database type")

var _ service.CredentialsChecker = &Checker{}

type Checker struct {
	timeout time.Duration
	log     zerolog.Logger
}

func (p *Checker) Check(ctx context.Context, dbType string, doc []byte) ([]string, error) {
	const op errs.Op = "dbcheck.Check"

	creds, err := ParseCredentials(doc)
	if err != nil {
		return nil, errs.E(errs.Validation, op, errs.Parameter("credentials"), errs.Detail("The credentials document could not be read"), err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var tables []string

	switch dbType {
	case service.DBTypePostgreSQL:
		tables, err = p.postgres(ctx, creds)
	case service.DBTypeMySQL:
		tables, err = p.mysql(ctx, creds)
	case service.DBTypeSQLite:
		tables, err = p.sqlite(ctx, creds)
	default:
		return nil, errs.E(errs.Validation, op, errs.Parameter("dbType"), errors.Wrap(ErrUnsupportedDBType, dbType))
	}

	if err != nil {
		p.log.Info().Err(err).Str("db_type", dbType).Msg("probing credentials")

		return nil, errs.E(errs.Validation, op, errs.Parameter("credentials"), errs.Detail("Could not connect to the database with the given credentials"), err)
	}

	return tables, nil
}

func (p *Checker) postgres(ctx context.Context, creds *Credentials) ([]string, error) {
	config, err := pgxpool.ParseConfig(PostgresURL(creds))
	if err != nil {
		return nil, errors.Wrap(err, "parsing connection url")
	}

	config.MaxConns = 1
	config.MinConns = 0

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, errors.Wrap(err, "creating connection pool")
	}
	defer pool.Close()

	query, args, err := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Select("table_name").
		From("information_schema.tables").
		Where(sq.Eq{"table_schema": "public", "table_type": "BASE TABLE"}).
		OrderBy("table_name").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "listing tables")
	}
	defer rows.Close()

	var tables []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "scanning table name")
		}

		tables = append(tables, name)
	}

	return tables, errors.Wrap(rows.Err(), "reading tables")
}

func (p *Checker) mysql(ctx context.Context, creds *Credentials) ([]string, error) {
	db, err := sql.Open("mysql", MySQLDSN(creds))
	if err != nil {
		return nil, errors.Wrap(err, "opening connection")
	}
	defer db.Close()

	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question).
		Select("table_name").
		From("information_schema.tables").
		Where("table_schema = DATABASE()").
		Where(sq.Eq{"table_type": "BASE TABLE"}).
		OrderBy("table_name")

	return listTables(ctx, db, builder)
}

func (p *Checker) sqlite(ctx context.Context, creds *Credentials) ([]string, error) {
	path := creds.Path
	if path == "" {
		path = creds.Database
	}

	if path == "" {
		return nil, errors.New("no database path in credentials")
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	defer db.Close()

	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question).
		Select("name").
		From("sqlite_master").
		Where(sq.Eq{"type": "table"}).
		Where(sq.NotLike{"name": "sqlite_%"}).
		OrderBy("name")

	return listTables(ctx, db, builder)
}

func listTables(ctx context.Context, db *sql.DB, builder sq.SelectBuilder) ([]string, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "listing tables")
	}
	defer rows.Close()

	var tables []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "scanning table name")
		}

		tables = append(tables, name)
	}

	return tables, errors.Wrap(rows.Err(), "reading tables")
}

func PostgresURL(creds *Credentials) string {
	if creds.URL != "" {
		return creds.URL
	}

	port := creds.Port
	if port == 0 {
		port = 5432
	}

	sslMode := creds.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(creds.User, creds.Password),
		Host:     net.JoinHostPort(creds.Host, strconv.Itoa(port)),
		Path:     "/" + creds.Database,
		RawQuery: url.Values{"sslmode": []string{sslMode}}.Encode(),
	}

	return u.String()
}

func MySQLDSN(creds *Credentials) string {
	if creds.URL != "" {
		return creds.URL
	}

	port := creds.Port
	if port == 0 {
		port = 3306
	}

	cfg := mysql.NewConfig()
	cfg.User = creds.User
	cfg.Passwd = creds.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(creds.Host, strconv.Itoa(port))
	cfg.DBName = creds.Database
	cfg.Timeout = DefaultTimeout

	return cfg.FormatDSN()
}

func New(timeout time.Duration, log zerolog.Logger) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Checker{
		timeout: timeout,
		log:     log,
	}
}
