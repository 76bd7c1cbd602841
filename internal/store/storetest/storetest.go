// Package storetest opens throwaway stores for tests.
package storetest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"librarydesk/internal/store"
)

// SQLite returns a migrated SQLite store in a temp directory, closed on cleanup.
func SQLite(t testing.TB) *store.DB {
	t.Helper()

	db, err := store.Open(context.Background(), store.DriverSQLite, filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate(context.Background()))
	return db
}

// Postgres connects to the server named by the PG* environment variables and
// skips the test when it cannot be reached. Tables are truncated before use.
func Postgres(t testing.TB, driver string) *store.DB {
	t.Helper()

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnv("PGHOST", "localhost"),
		getEnv("PGPORT", "5432"),
		getEnv("PGUSER", "user"),
		getEnv("PGPASSWORD", "password"),
		getEnv("PGDATABASE", "testdb"),
	)

	probe, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	defer probe.Close()
	if err := probe.Ping(); err != nil {
		t.Skipf("skipping: could not connect to postgres: %v", err)
	}

	if driver == store.DriverPGX {
		connStr = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			getEnv("PGUSER", "user"),
			getEnv("PGPASSWORD", "password"),
			getEnv("PGHOST", "localhost"),
			getEnv("PGPORT", "5432"),
			getEnv("PGDATABASE", "testdb"),
		)
	}

	db, err := store.Open(context.Background(), driver, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate(context.Background()))
	_, err = probe.Exec("TRUNCATE TABLE activity, issuance, members, books RESTART IDENTITY CASCADE")
	require.NoError(t, err)

	return db
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
