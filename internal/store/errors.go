package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrUniqueViolation     = errors.New("unique constraint violation")
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Classify tags constraint violations from any supported driver with
// ErrUniqueViolation or ErrForeignKeyViolation. Other errors pass through.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var code string
	var pqErr *pq.Error
	var pgErr *pgconn.PgError
	var liteErr *sqlite.Error

	switch {
	case errors.As(err, &pqErr):
		code = string(pqErr.Code)
	case errors.As(err, &pgErr):
		code = pgErr.Code
	case errors.As(err, &liteErr):
		code = sqliteCode(liteErr)
	}

	switch code {
	case pgUniqueViolation:
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %w", ErrForeignKeyViolation, err)
	default:
		return err
	}
}

// sqliteCode folds SQLite constraint errors onto the Postgres SQLSTATE codes.
func sqliteCode(e *sqlite.Error) string {
	switch e.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return pgUniqueViolation
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return pgForeignKeyViolation
	}
	// primary result code only: fall back to the message
	if e.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		msg := e.Error()
		switch {
		case strings.Contains(msg, "UNIQUE"):
			return pgUniqueViolation
		case strings.Contains(msg, "FOREIGN KEY"):
			return pgForeignKeyViolation
		}
	}
	return ""
}
