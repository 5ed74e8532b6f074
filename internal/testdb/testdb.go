// Package testdb provides a migrated Postgres pool for repository
// integration tests. Tests are skipped unless TEST_DB_DSN is set.
package testdb

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"orderdesk/internal/migrate"
)

// Pool connects to TEST_DB_DSN, applies migrations and truncates all data
// tables. The pool is closed when the test ends.
func Pool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE orders, baskets, discount_products, discounts, products, tokens, customers, blackout_dates RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return pool
}

// Customer inserts a customer row and returns its id.
func Customer(ctx context.Context, t *testing.T, pool *pgxpool.Pool, email, audience string) string {
	t.Helper()
	var id string
	err := pool.QueryRow(ctx, `
INSERT INTO customers (email, password_hash, audience_class)
VALUES ($1, 'x', $2)
RETURNING id::text
`, email, audience).Scan(&id)
	if err != nil {
		t.Fatalf("insert customer: %v", err)
	}
	return id
}
