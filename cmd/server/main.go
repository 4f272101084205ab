package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/annonces/internal/config"
	"github.com/JonMunkholm/annonces/internal/core"
	"github.com/JonMunkholm/annonces/internal/logging"
	"github.com/JonMunkholm/annonces/internal/schema"
	"github.com/JonMunkholm/annonces/internal/store"
	"github.com/JonMunkholm/annonces/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	if err := loadSchemas(cfg.Schema); err != nil {
		slog.Error("failed to load schema", "error", err)
		os.Exit(1)
	}
	slog.Info("schemas registered", "keys", schema.Keys(), "default", cfg.Schema.DefaultKey)

	ctx := context.Background()

	var (
		runs   core.RunStore
		health web.Pinger
	)
	if cfg.Database.Enabled() {
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		pg := store.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			slog.Error("failed to create run tables", "error", err)
			os.Exit(1)
		}
		runs, health = pg, pg
		slog.Info("run history stored in database", "max_conns", cfg.Database.MaxConns)
	} else {
		mem := store.NewMemory(cfg.Schema.HistoryLimit)
		runs, health = mem, mem
		slog.Info("run history kept in memory", "limit", cfg.Schema.HistoryLimit)
	}

	service, err := core.NewService(runs, cfg)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(service, cfg, health)

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.UploadLimiterStatus(); status.Active > 0 {
			slog.Info("waiting for validations to complete", "active", status.Active)
			if err := service.WaitForUploads(shutdownCtx); err != nil {
				slog.Warn("validations did not complete in time", "error", err)
			} else {
				slog.Info("all validations completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-stopped
	slog.Info("server stopped")
}

// loadSchemas registers the optional rule table file and applies the
// optional header resource to the default schema.
func loadSchemas(cfg config.SchemaConfig) error {
	if cfg.File != "" {
		reg, err := schema.LoadFile(cfg.File)
		if err != nil {
			return err
		}
		schema.Replace(reg)
		slog.Info("rule table loaded", "file", cfg.File, "schema", reg.Key(), "fields", reg.Len())
	}

	if cfg.HeaderFile != "" {
		key := cfg.DefaultKey
		if key == "" {
			key = schema.DefaultKey
		}
		reg, ok := schema.Get(key)
		if !ok {
			return &schema.SchemaError{Schema: key, Reason: "default schema is not registered"}
		}
		named, err := schema.LoadHeaderFile(reg, cfg.HeaderFile)
		if err != nil {
			return err
		}
		schema.Replace(named)
		slog.Info("header resource applied", "file", cfg.HeaderFile, "schema", key)
	}
	return nil
}
