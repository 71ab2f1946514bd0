package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"cabbook/internal/repository"
	"cabbook/internal/repository/postgres"
	"cabbook/migrations"
)

// openTestDB connects to TEST_DATABASE_URL and applies the migrations.
// The test is skipped when the variable is unset.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		t.Fatalf("goose provider: %v", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestTokenStore_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// Each test runs in a transaction that is rolled back.
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()

	store := postgres.NewTokenStore(tx)

	if _, err := store.Get(ctx, repository.AccessTokenKey); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Set(ctx, repository.AccessTokenKey, "a1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, repository.AccessTokenKey, "a2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := store.Set(ctx, repository.RefreshTokenKey, "r1"); err != nil {
		t.Fatalf("set refresh: %v", err)
	}

	got, err := store.Get(ctx, repository.AccessTokenKey)
	if err != nil || got != "a2" {
		t.Errorf("expected a2, got %q (%v)", got, err)
	}

	if err := store.Delete(ctx, repository.AccessTokenKey, repository.RefreshTokenKey); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, repository.RefreshTokenKey); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected refresh token deleted, got %v", err)
	}

	if err := store.Delete(ctx); err != nil {
		t.Errorf("deleting nothing: %v", err)
	}
}
