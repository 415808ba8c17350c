package store

import (
	"context"
	"testing"

	"github.com/erazemk/najdeno/internal/db"
)

func TestGetJWTSecret_GeneratesAndPersists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	secret1, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if len(secret1) != 64 { // 32 bytes = 64 hex chars
		t.Fatalf("expected 64 hex chars, got %d", len(secret1))
	}

	secret2, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if secret1 != secret2 {
		t.Fatalf("expected same secret, got %q and %q", secret1, secret2)
	}
}

func TestGetOrCreateSettingKeepsFirstValue(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	v, err := GetOrCreateSetting(ctx, database, "site_name", func() (string, error) { return "first", nil })
	if err != nil {
		t.Fatal(err)
	}
	if v != "first" {
		t.Fatalf("expected 'first', got %q", v)
	}

	v, err = GetOrCreateSetting(ctx, database, "site_name", func() (string, error) { return "second", nil })
	if err != nil {
		t.Fatal(err)
	}
	if v != "first" {
		t.Errorf("expected stored value 'first', got %q", v)
	}
}
