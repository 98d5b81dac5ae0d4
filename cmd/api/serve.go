package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/raquelitre/Encuesta/internal/artifacts"
	"github.com/raquelitre/Encuesta/internal/cache"
	"github.com/raquelitre/Encuesta/internal/handlers"
	"github.com/raquelitre/Encuesta/internal/services"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("database ready", "driver", cfg.Database.Driver)

	backend, err := artifacts.NewFromConfig(ctx, cfg.Artifacts)
	if err != nil {
		return fmt.Errorf("failed to initialize artifacts: %w", err)
	}

	summaries, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize stats cache: %w", err)
	}

	if cfg.Stats.Password == "changeme" {
		logger.Warn("stats views use the default password; set STATS_PASS")
	}

	gin.SetMode(gin.ReleaseMode)
	router := handlers.NewRouter(handlers.Deps{
		Config:    cfg.Server,
		Responses: services.NewResponseService(store, summaries, logger),
		Stats:     services.NewStatsService(store, summaries, logger),
		Images:    services.NewImageService(backend, cfg.Artifacts.BaseURL, logger),
		Gate:      services.NewGate(cfg.Stats),
		Store:     store,
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server forced to shutdown", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", srv.Addr, "artifacts", cfg.Artifacts.Backend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	logger.Info("server exited")
	return nil
}
