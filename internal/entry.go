// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/sowilo/internal/api"
	"github.com/starford/sowilo/internal/journal"
	"github.com/starford/sowilo/internal/kvstore"
	"github.com/starford/sowilo/internal/mcpserver"
	"github.com/starford/sowilo/internal/noteservice"
	"github.com/starford/sowilo/internal/sse"
	"github.com/starford/sowilo/internal/storage"
	"github.com/starford/sowilo/internal/tagindex"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("journal_dir", cfg.Journal.Dir),
		slog.String("cache_path", cfg.Index.CachePath),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}

	// Initialize storage.
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// Initialize the key-value cache backing index persistence.
	cache, err := kvstore.Open(cfg.Index.CachePath)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	defer cache.Close()

	// SSE broker.
	broker := sse.NewBroker()
	defer broker.Close()

	// Journal store and tag index.
	js := journal.NewStore(store, cfg.Journal.Dir, cfg.Journal.Ext, logger)
	idx := tagindex.New(store, js, cache, logger, tagindex.Options{
		CacheKey:       cfg.Index.CacheKey,
		FuzzyThreshold: cfg.Index.FuzzyThreshold,
		Notify:         broker.Publish,
	})

	// Resume from the cached index when possible; otherwise run a full build.
	if idx.LoadCached() {
		logger.Info("index restored from cache",
			slog.Int("files", idx.FileCount()), slog.Int("tags", idx.TagCountTotal()))
	} else if err := idx.Build(ctx); err != nil {
		logger.Warn("initial build failed", slog.String("error", err.Error()))
	}

	svc := noteservice.NewService(store, idx)

	// MCP mode: serve tools on stdio instead of HTTP.
	if app.mcpMode {
		return mcpserver.New(store, svc, idx).ServeStdio()
	}

	apiRouter := api.NewRouter(svc, js, idx, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	g, gCtx := errgroup.WithContext(runCtx)

	// Start file watcher feeding incremental index updates.
	g.Go(func() error {
		if err := tagindex.Watch(gCtx, idx, store, cfg.Vault.Path, logger); err != nil {
			logger.Error("watcher failed", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Stop the watcher goroutine as well.
		stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
