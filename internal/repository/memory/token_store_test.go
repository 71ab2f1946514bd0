package memory

import (
	"context"
	"errors"
	"testing"

	"cabbook/internal/repository"
)

func TestTokenStore_SetGetDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewTokenStore()

	if _, err := store.Get(ctx, repository.AccessTokenKey); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Set(ctx, repository.AccessTokenKey, "a"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, repository.RefreshTokenKey, "b"); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := store.Get(ctx, repository.AccessTokenKey)
	if err != nil || got != "a" {
		t.Fatalf("expected a, got %q (%v)", got, err)
	}

	if err := store.Delete(ctx, repository.AccessTokenKey, repository.RefreshTokenKey, "missing"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, repository.RefreshTokenKey); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected refresh token to be cleared, got %v", err)
	}
}
