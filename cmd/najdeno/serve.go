package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erazemk/najdeno/internal/api"
	"github.com/erazemk/najdeno/internal/config"
	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/posting"
	"github.com/erazemk/najdeno/internal/ratelimit"
	"github.com/erazemk/najdeno/internal/storage"
	"github.com/erazemk/najdeno/internal/store"
	"github.com/erazemk/najdeno/internal/web"
)

// cleanupInterval is how often expired rate-limit entries and revoked
// tokens are purged.
const cleanupInterval = 10 * time.Minute

func serve(cfg *config.Config, out io.Writer) error {
	// Auto-init if the database does not exist yet.
	if _, err := os.Stat(cfg.DBPath); errors.Is(err, os.ErrNotExist) {
		database, password, err := initDatabase(cfg.DBPath, cfg.AdminEmail)
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		database.Close()

		printInitResult(out, cfg.DBPath, cfg.AdminEmail, password)
		fmt.Fprintln(out)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	// Bring older databases up to date.
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	version, _ := db.Version(database)
	slog.Info("database ready", "path", cfg.DBPath, "version", version)

	jwtSecret, err := store.GetJWTSecret(context.Background(), database)
	if err != nil {
		return fmt.Errorf("getting JWT secret: %w", err)
	}

	images, uploads, err := openStorage(cfg)
	if err != nil {
		return err
	}
	posts := posting.New(database, images)
	limiter := ratelimit.New(10, time.Minute)

	apiRouter := api.NewRouter(database, jwtSecret, posts, api.Options{
		Limiter:    limiter,
		TrustProxy: cfg.TrustProxy,
	})
	webRouter, err := web.NewRouter(database, jwtSecret, posts, web.Options{
		Uploads:       uploads,
		Limiter:       limiter,
		TrustProxy:    cfg.TrustProxy,
		SecureCookies: cfg.SecureCookies,
	})
	if err != nil {
		return fmt.Errorf("setting up web router: %w", err)
	}

	// API routes take priority, web routes handle the rest.
	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)
	mux.Handle("/", webRouter)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runCleanup(ctx, cleanupInterval, database, limiter)

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr, "storage", cfg.Storage)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}

// runCleanup purges expired revoked tokens and rate-limit entries every
// interval until ctx is done.
func runCleanup(ctx context.Context, interval time.Duration, database *sql.DB, limiter *ratelimit.Limiter) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			limiter.Cleanup()
			n, err := store.PurgeExpiredTokens(ctx, database, now)
			if err != nil {
				slog.Error("failed to purge revoked tokens", "error", err)
			} else if n > 0 {
				slog.Debug("purged revoked tokens", "count", n)
			}
		}
	}
}

// openStorage builds the configured image store. For local storage it also
// returns the handler serving the files under /uploads/.
func openStorage(cfg *config.Config) (storage.Store, http.Handler, error) {
	switch cfg.Storage {
	case config.StorageS3:
		s3Store, err := storage.NewS3(cfg.S3)
		if err != nil {
			return nil, nil, fmt.Errorf("setting up s3 storage: %w", err)
		}
		slog.Info("image storage ready", "backend", "s3", "bucket", cfg.S3.Bucket, "public_url", s3Store.PublicURL())
		return s3Store, nil, nil
	default:
		local, err := storage.NewLocal(cfg.UploadDir, "/uploads")
		if err != nil {
			return nil, nil, fmt.Errorf("setting up local storage: %w", err)
		}
		slog.Info("image storage ready", "backend", "local", "dir", cfg.UploadDir)
		return local, local.Handler(), nil
	}
}
