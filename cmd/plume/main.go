// Package main is the entry point for the plume taxonomy server.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plume/internal/cache"
	"plume/internal/config"
	"plume/internal/database"
	"plume/internal/handlers"
	"plume/internal/middleware"
	"plume/internal/router"
	"plume/internal/store"
	"plume/internal/validate"
)

func main() {
	// Structured logger — text output, debug level in development.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"default_locale", cfg.DefaultLocale,
	)

	// Connect to PostgreSQL.
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run pending migrations.
	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed the sample taxonomy in development (no-op if data exists).
	if cfg.IsDev() {
		if err := database.Seed(db, cfg.DefaultLocale); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	// Connect to Valkey for the tree cache.
	valkeyClient, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	// Initialize data stores.
	categoryStore := store.NewCategoryStore(db)
	groupStore := store.NewClassifierGroupStore(db)
	classifierStore := store.NewClassifierStore(db)

	// Tree cache reads through the category store; the store fans stale
	// ids back into the cache after every structural mutation.
	treeCache := cache.NewTreeCache(valkeyClient, cfg.CacheTTL, categoryStore)
	categoryStore.SetInvalidator(treeCache)

	// Make sure every locale we serve has its hidden root in place.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if _, err := categoryStore.GetOrCreateHiddenRoot(ctx, cfg.DefaultLocale); err != nil {
		cancel()
		slog.Error("failed to ensure hidden root", "error", err)
		os.Exit(1)
	}
	cancel()

	validator := validate.NewValidator(classifierStore)

	taxonomyHandlers := handlers.NewTaxonomy(
		categoryStore, groupStore, classifierStore, treeCache, validator, cfg.DefaultLocale)

	// Per-IP rate limiting across the whole API.
	limiter := middleware.NewRateLimiter(300, time.Minute)
	defer limiter.Stop()

	// Set up the Chi router.
	r := router.New(taxonomyHandlers, limiter)

	// Create the HTTP server with sensible timeouts. Moves of large
	// subtrees are the slowest requests; they still finish well inside
	// the write timeout.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	// Give active requests up to 30 seconds to complete.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
