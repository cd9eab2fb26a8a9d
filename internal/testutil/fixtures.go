// Package testutil provides Postgres fixtures for integration tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/infrastructure/postgres"
	"github.com/iho/stockledger/internal/infrastructure/postgres/generated"
)

// DatabaseURLEnv names the variable that enables integration tests.
const DatabaseURLEnv = "STOCKLEDGER_TEST_DATABASE_URL"

// TestDB provides isolated test database connections.
type TestDB struct {
	Pool    *pgxpool.Pool
	Queries *generated.Queries
	URL     string
	t       *testing.T
}

// NewTestDB connects to the database named by STOCKLEDGER_TEST_DATABASE_URL
// and applies the migrations. The test is skipped when the variable is
// unset or -short is given.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test")
	}

	dbURL := os.Getenv(DatabaseURLEnv)
	if dbURL == "" {
		t.Skipf("%s is not set", DatabaseURLEnv)
	}

	if err := postgres.RunMigrations(dbURL, MigrationsPath()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL: dbURL,
		MaxConns:    20,
		MinConns:    1,
	})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	db := &TestDB{
		Pool:    pool,
		Queries: generated.New(pool),
		URL:     dbURL,
		t:       t,
	}
	t.Cleanup(db.Cleanup)

	return db
}

// MigrationsPath returns the absolute path of the migrations directory.
func MigrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "infrastructure", "postgres", "migrations")
}

// Cleanup closes the database connection.
func (db *TestDB) Cleanup() {
	db.Pool.Close()
}

// TruncateAll removes all data from tables.
func (db *TestDB) TruncateAll(ctx context.Context) {
	db.t.Helper()

	_, err := db.Pool.Exec(ctx, `
		TRUNCATE TABLE audit_logs;
		TRUNCATE TABLE outbox_events;
		TRUNCATE TABLE contracts CASCADE;
		TRUNCATE TABLE ledger_entries CASCADE;
	`)
	if err != nil {
		db.t.Fatalf("failed to truncate tables: %v", err)
	}
}

// CreateLedgerEntry inserts an active ledger entry with the given stock.
func (db *TestDB) CreateLedgerEntry(ctx context.Context, stock int64) *domain.LedgerEntry {
	db.t.Helper()

	now := time.Now().UTC().Truncate(time.Microsecond)
	entry := &domain.LedgerEntry{
		ID:             ulid.Make().String(),
		OwnerUserID:    "provider-" + ulid.Make().String(),
		ServiceID:      "service-" + ulid.Make().String(),
		InitialStock:   stock,
		AvailableStock: stock,
		Lifecycle:      domain.LifecycleActive,
		Audit: domain.Audit{
			CreatedBy: "provider",
			CreatedAt: now,
			UpdatedBy: "provider",
			UpdatedAt: now,
		},
	}

	ts := timestamptz(now)
	_, err := db.Queries.CreateLedgerEntry(ctx, generated.CreateLedgerEntryParams{
		ID:             entry.ID,
		OwnerUserID:    entry.OwnerUserID,
		ServiceID:      entry.ServiceID,
		InitialStock:   entry.InitialStock,
		AvailableStock: entry.AvailableStock,
		Lifecycle:      string(entry.Lifecycle),
		CreatedBy:      entry.CreatedBy,
		CreatedAt:      ts,
		UpdatedBy:      entry.UpdatedBy,
		UpdatedAt:      ts,
	})
	if err != nil {
		db.t.Fatalf("failed to create ledger entry: %v", err)
	}

	return entry
}

// DeleteLedgerEntry logically deletes a ledger entry.
func (db *TestDB) DeleteLedgerEntry(ctx context.Context, id string) {
	db.t.Helper()

	if _, err := db.Pool.Exec(ctx, `UPDATE ledger_entries SET lifecycle = 'deleted' WHERE id = $1`, id); err != nil {
		db.t.Fatalf("failed to delete ledger entry: %v", err)
	}
}

// AvailableStock reads the stored stock regardless of lifecycle.
func (db *TestDB) AvailableStock(ctx context.Context, id string) int64 {
	db.t.Helper()

	var stock int64
	if err := db.Pool.QueryRow(ctx, `SELECT available_stock FROM ledger_entries WHERE id = $1`, id).Scan(&stock); err != nil {
		db.t.Fatalf("failed to read stock: %v", err)
	}
	return stock
}

// CountContracts counts contracts of an entry in the given lifecycle.
func (db *TestDB) CountContracts(ctx context.Context, entryID string, lifecycle domain.Lifecycle) int {
	db.t.Helper()

	var n int
	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM contracts WHERE ledger_entry_id = $1 AND lifecycle = $2`,
		entryID, string(lifecycle),
	).Scan(&n)
	if err != nil {
		db.t.Fatalf("failed to count contracts: %v", err)
	}
	return n
}

func timestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}
