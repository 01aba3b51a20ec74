package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lysyi3m/dot-reports/app/api"
	"github.com/lysyi3m/dot-reports/app/archive"
	"github.com/lysyi3m/dot-reports/app/cfg"
	"github.com/lysyi3m/dot-reports/app/database"
	"github.com/lysyi3m/dot-reports/app/feed"
	"github.com/lysyi3m/dot-reports/app/notify"
	"github.com/lysyi3m/dot-reports/app/refresh"
	"github.com/lysyi3m/dot-reports/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	setupLogging(appCfg.Debug)

	slog.Info("Starting DOT Reports server", "version", appCfg.Version, "timezone", time.Local.String())

	if err := os.MkdirAll(filepath.Dir(appCfg.DBPath), 0o755); err != nil {
		fatal("Failed to create database directory", err)
	}

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		fatal("Failed to connect to database", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		fatal("Failed to run migrations", err)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	settingsRepo := database.NewSettingsRepository(db)
	sourceRepo := database.NewSourceRepository(db)

	configCache := feed.NewConfigCache(appCfg.SourcesDir)
	if err := configCache.Run(); err != nil {
		fatal("Failed to load source configurations", err)
	}
	slog.Info("Source configurations loaded", "dir", appCfg.SourcesDir, "count", configCache.GetConfigCount())

	ctx := context.Background()

	reconciler := archive.NewReconciler(settingsRepo, appCfg.SettingsKey)
	if err := reconciler.Load(ctx); err != nil {
		slog.Warn("Archive state unavailable, starting with defaults", "error", err)
	}

	whatsNew, err := reconciler.MarkVersion(ctx, appCfg.Version)
	if err != nil {
		slog.Warn("Failed to record running version", "error", err)
	}
	if whatsNew {
		slog.Info("New version since last run", "version", appCfg.Version)
	}

	fetcher := feed.NewFetcher(&http.Client{}, appCfg.UserAgent)
	normalizer := feed.NewNormalizer(feed.WithLocation(time.Local))
	hub := notify.NewHub()

	coordinator := refresh.NewCoordinator(configCache, fetcher, normalizer, reconciler,
		refresh.WithSourceRecorder(sourceRepo),
		refresh.WithListener(hub.ReportsUpdated),
	)

	scheduler, err := tasks.NewScheduler(configCache, sourceRepo, coordinator, appCfg.WorkerCount, appCfg.RefreshSchedule)
	if err != nil {
		fatal("Failed to create scheduler", err)
	}

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount, "schedule", appCfg.RefreshSchedule)
	scheduler.Start()

	apiHandler := api.NewHandler(configCache, sourceRepo, coordinator, fetcher, feed.NewContentExtractor(),
		scheduler, api.Info{Version: appCfg.Version, WhatsNew: whatsNew})
	server := api.NewServer(apiHandler, hub.ServeWS, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port, "base_url", appCfg.BaseUrl)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	scheduler.Stop()
	slog.Info("Background scheduler stopped")

	if err := reconciler.Flush(shutdownCtx); err != nil {
		slog.Warn("Archive state not flushed", "error", err)
	}

	slog.Info("DOT Reports server shutdown complete")
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
