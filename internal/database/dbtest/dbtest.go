// Package dbtest hands tests a migrated in-memory store.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/maheshrc27/postflow/internal/database"
)

func New(t testing.TB) *sql.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(db, database.DriverSQLite); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}
