package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
)

const (
	schemaVersion    = 1
	schemaVersionKey = "schema_version"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS books (
		book_id          BIGSERIAL PRIMARY KEY,
		title            TEXT NOT NULL,
		author           TEXT NOT NULL,
		genre            TEXT NOT NULL,
		isbn             TEXT NOT NULL,
		total_copies     INTEGER NOT NULL CHECK (total_copies >= 1),
		available_copies INTEGER NOT NULL CHECK (available_copies >= 0 AND available_copies <= total_copies)
	)`,
	`CREATE TABLE IF NOT EXISTS members (
		member_id       BIGSERIAL PRIMARY KEY,
		name            TEXT NOT NULL,
		email           TEXT NOT NULL UNIQUE,
		phone           TEXT NOT NULL,
		membership_type TEXT NOT NULL CHECK (membership_type IN ('Standard', 'Premium')),
		address         TEXT NOT NULL,
		password_hash   TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS issuance (
		issuance_id   BIGSERIAL PRIMARY KEY,
		member_id     BIGINT NOT NULL REFERENCES members(member_id),
		book_id       BIGINT NOT NULL REFERENCES books(book_id),
		due_date      DATE NOT NULL,
		returned_date DATE
	)`,
	`CREATE INDEX IF NOT EXISTS issuance_open_by_book ON issuance (book_id) WHERE returned_date IS NULL`,
	`CREATE TABLE IF NOT EXISTS activity (
		activity_id BIGSERIAL PRIMARY KEY,
		entity      TEXT NOT NULL,
		entity_id   BIGINT NOT NULL,
		action      TEXT NOT NULL,
		detail      TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS books (
		book_id          INTEGER PRIMARY KEY AUTOINCREMENT,
		title            TEXT NOT NULL,
		author           TEXT NOT NULL,
		genre            TEXT NOT NULL,
		isbn             TEXT NOT NULL,
		total_copies     INTEGER NOT NULL CHECK (total_copies >= 1),
		available_copies INTEGER NOT NULL CHECK (available_copies >= 0 AND available_copies <= total_copies)
	)`,
	`CREATE TABLE IF NOT EXISTS members (
		member_id       INTEGER PRIMARY KEY AUTOINCREMENT,
		name            TEXT NOT NULL,
		email           TEXT NOT NULL UNIQUE,
		phone           TEXT NOT NULL,
		membership_type TEXT NOT NULL CHECK (membership_type IN ('Standard', 'Premium')),
		address         TEXT NOT NULL,
		password_hash   TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS issuance (
		issuance_id   INTEGER PRIMARY KEY AUTOINCREMENT,
		member_id     INTEGER NOT NULL REFERENCES members(member_id),
		book_id       INTEGER NOT NULL REFERENCES books(book_id),
		due_date      DATE NOT NULL,
		returned_date DATE
	)`,
	`CREATE INDEX IF NOT EXISTS issuance_open_by_book ON issuance (book_id) WHERE returned_date IS NULL`,
	`CREATE TABLE IF NOT EXISTS activity (
		activity_id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity      TEXT NOT NULL,
		entity_id   INTEGER NOT NULL,
		action      TEXT NOT NULL,
		detail      TEXT,
		created_at  TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
}

// Migrate creates the schema if the recorded version is behind.
func (db *DB) Migrate(ctx context.Context) error {
	stmts := postgresSchema
	if db.driver == DriverSQLite {
		stmts = sqliteSchema
	}

	current, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}

	return db.WithTx(ctx, func(q *Querier) error {
		for _, stmt := range stmts {
			if _, err := q.ext.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration: %w", err)
			}
		}

		meta := goqu.T("meta")
		if _, err := q.Exec(ctx, q.dialect.Delete(meta).Where(goqu.C("key").Eq(schemaVersionKey))); err != nil {
			return fmt.Errorf("clear schema version: %w", err)
		}
		record := goqu.Record{"key": schemaVersionKey, "value": fmt.Sprint(schemaVersion)}
		if _, err := q.Exec(ctx, q.dialect.Insert(meta).Rows(record)); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	})
}

// SchemaVersion returns the applied schema version, 0 on a fresh store.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	if _, err := db.ext.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return 0, fmt.Errorf("create meta table: %w", err)
	}

	var version int
	stmt := db.dialect.From("meta").Select("value").Where(goqu.C("key").Eq(schemaVersionKey))
	err := db.Get(ctx, &version, stmt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}
