package database

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// recordTables lists every table the schema creates.
var recordTables = []string{"financial_records"}

// TestDB returns a dedicated connection pool for tests that change the
// schema or rely on delivered notifications.
// Skips the test if TEST_DATABASE_URL is not set.
func TestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	pool, err := Connect(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}

// CleanupTables empties the record tables in one statement.
func CleanupTables(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	stmt := "TRUNCATE TABLE " + strings.Join(recordTables, ", ")
	if _, err := pool.Exec(context.Background(), stmt); err != nil {
		t.Fatalf("failed to truncate %s: %v", strings.Join(recordTables, ", "), err)
	}
}
