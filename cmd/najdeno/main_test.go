package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/ratelimit"
	"github.com/erazemk/najdeno/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestGeneratePassword(t *testing.T) {
	a, err := generatePassword(16)
	require.NoError(t, err)
	b, err := generatePassword(16)
	require.NoError(t, err)

	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}

func TestInitDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "najdeno.sqlite3")

	database, password, err := initDatabase(path, "Admin@Example.com")
	require.NoError(t, err)
	defer database.Close()

	admin, err := store.GetUserByEmail(context.Background(), database, "admin@example.com")
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.Equal(t, model.RoleAdmin, admin.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)))

	categories, err := store.ListCategories(context.Background(), database)
	require.NoError(t, err)
	assert.NotEmpty(t, categories)
}

func TestInitCommandRefusesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "najdeno.sqlite3")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	var out, errOut bytes.Buffer
	code := run([]string{"init", "-db", path}, &out, &errOut)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "already exists")
}

func TestRunHelp(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 0, run([]string{"-h"}, &out, &errOut))
	assert.True(t, strings.HasPrefix(out.String(), "Usage: najdeno"))

	out.Reset()
	assert.Equal(t, 1, run([]string{"serve", "extra"}, &out, &errOut))
}

func TestRunCleanup(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.RevokeToken(ctx, database, "expired", time.Now().Add(-time.Hour)))
	require.NoError(t, store.RevokeToken(ctx, database, "current", time.Now().Add(time.Hour)))

	cleanupCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		runCleanup(cleanupCtx, 10*time.Millisecond, database, ratelimit.New(10, time.Minute))
		close(done)
	}()

	require.Eventually(t, func() bool {
		revoked, err := store.IsTokenRevoked(ctx, database, "expired")
		return err == nil && !revoked
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("cleanup did not stop after cancel")
	}

	revoked, err := store.IsTokenRevoked(ctx, database, "current")
	require.NoError(t, err)
	assert.True(t, revoked)
}
