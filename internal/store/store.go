// Package store opens the relational store shared by the catalog, membership and
// circulation services and runs goqu-built statements against it.
//
// Three drivers are supported: "postgres" (lib/pq), "pgx" (pgx/v5 through
// database/sql) and "sqlite" (modernc, pure Go). Statements are built with the
// goqu dialect matching the driver so the same service code runs on all three.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	_ "github.com/jackc/pgx/v5/stdlib"                  // registers "pgx"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // registers "postgres"
	_ "modernc.org/sqlite" // registers "sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverPGX      = "pgx"
	DriverSQLite   = "sqlite"

	dialectPostgres = "postgres"
	dialectSQLite   = "sqlite3"

	logMsgSQLExecuted = "executed sql"
	logAttrQuery      = "query"
	logAttrDurationMS = "duration_ms"
	logAttrRows       = "rows_affected"
	logAttrError      = "error"
)

var ErrUnknownDriver = errors.New("unknown database driver")

func init() {
	// every statement binds its arguments instead of interpolating them
	goqu.SetDefaultPrepared(true)
}

// Statement is anything goqu can render: select, insert, update and delete datasets.
type Statement interface {
	ToSQL() (string, []any, error)
}

// Querier runs statements against either the pool or an open transaction.
type Querier struct {
	ext       sqlx.ExtContext
	dialect   goqu.DialectWrapper
	returning bool
	logger    *slog.Logger
}

// DB is an open store handle.
type DB struct {
	*Querier
	conn   *sqlx.DB
	driver string
}

// Option configures Open.
type Option func(*DB)

// WithLogger sets the logger receiving debug-level SQL timings.
func WithLogger(logger *slog.Logger) Option {
	return func(db *DB) {
		db.logger = logger
	}
}

// Open connects to the store and verifies the connection.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*DB, error) {
	var (
		dialect   string
		returning bool
	)

	switch driver {
	case DriverPostgres, DriverPGX:
		dialect, returning = dialectPostgres, true
	case DriverSQLite:
		dialect = dialectSQLite
		var err error
		if dsn, err = sqliteDSN(dsn); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one writer at a time; busy_timeout covers the rest
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	db := &DB{
		Querier: &Querier{
			ext:       conn,
			dialect:   goqu.Dialect(dialect),
			returning: returning,
			logger:    slog.Default(),
		},
		conn:   conn,
		driver: driver,
	}
	for _, opt := range opts {
		opt(db)
	}

	return db, nil
}

func sqliteDSN(dsn string) (string, error) {
	if dsn == "" {
		dsn = "librarydesk.db"
	}
	if strings.HasPrefix(dsn, "file:") || dsn == ":memory:" {
		return dsn, nil
	}
	if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("create db dir: %w", err)
		}
	}
	return "file:" + dsn + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", nil
}

// Driver returns the driver name the store was opened with.
func (db *DB) Driver() string { return db.driver }

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error { return db.conn.PingContext(ctx) }

// Close closes the underlying pool.
func (db *DB) Close() error { return db.conn.Close() }

// WithTx runs fn inside a transaction, committing when fn returns nil.
func (db *DB) WithTx(ctx context.Context, fn func(q *Querier) error) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := &Querier{
		ext:       tx,
		dialect:   db.dialect,
		returning: db.returning,
		logger:    db.logger,
	}
	if err := fn(q); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Dialect returns the goqu dialect for building statements.
func (q *Querier) Dialect() goqu.DialectWrapper { return q.dialect }

// Exec runs stmt and returns the number of affected rows.
func (q *Querier) Exec(ctx context.Context, stmt Statement) (int64, error) {
	query, args, err := stmt.ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build statement: %w", err)
	}

	start := time.Now()
	res, err := q.ext.ExecContext(ctx, query, args...)
	if err != nil {
		q.logQuery(query, start, err)
		return 0, Classify(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	q.logger.Debug(logMsgSQLExecuted,
		logAttrQuery, query,
		logAttrDurationMS, time.Since(start).Milliseconds(),
		logAttrRows, n,
	)

	return n, nil
}

// Get scans a single row into dest. sql.ErrNoRows is returned unwrapped.
func (q *Querier) Get(ctx context.Context, dest any, stmt Statement) error {
	query, args, err := stmt.ToSQL()
	if err != nil {
		return fmt.Errorf("build statement: %w", err)
	}

	start := time.Now()
	err = sqlx.GetContext(ctx, q.ext, dest, query, args...)
	q.logQuery(query, start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return sql.ErrNoRows
	}
	if err != nil {
		return Classify(err)
	}
	return nil
}

// Select scans all rows into dest, which must be a pointer to a slice.
func (q *Querier) Select(ctx context.Context, dest any, stmt Statement) error {
	query, args, err := stmt.ToSQL()
	if err != nil {
		return fmt.Errorf("build statement: %w", err)
	}

	start := time.Now()
	err = sqlx.SelectContext(ctx, q.ext, dest, query, args...)
	q.logQuery(query, start, err)
	if err != nil {
		return Classify(err)
	}
	return nil
}

// Insert runs ds and returns the generated value of idColumn.
func (q *Querier) Insert(ctx context.Context, ds *goqu.InsertDataset, idColumn string) (int64, error) {
	if !q.returning {
		query, args, err := ds.ToSQL()
		if err != nil {
			return 0, fmt.Errorf("build insert: %w", err)
		}

		start := time.Now()
		res, err := q.ext.ExecContext(ctx, query, args...)
		q.logQuery(query, start, err)
		if err != nil {
			return 0, Classify(err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("last insert id: %w", err)
		}
		return id, nil
	}

	query, args, err := ds.Returning(goqu.C(idColumn)).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}

	start := time.Now()
	var id int64
	err = q.ext.QueryRowxContext(ctx, query, args...).Scan(&id)
	q.logQuery(query, start, err)
	if err != nil {
		return 0, Classify(err)
	}
	return id, nil
}

func (q *Querier) logQuery(query string, start time.Time, err error) {
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		q.logger.Debug(logMsgSQLExecuted,
			logAttrQuery, query,
			logAttrDurationMS, time.Since(start).Milliseconds(),
			logAttrError, err,
		)
		return
	}
	q.logger.Debug(logMsgSQLExecuted,
		logAttrQuery, query,
		logAttrDurationMS, time.Since(start).Milliseconds(),
	)
}
