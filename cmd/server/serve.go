package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/research-output-api/internal/api"
	"github.com/research-output-api/internal/catalog"
	"github.com/research-output-api/internal/metrics"
	"github.com/research-output-api/internal/repository"
	"github.com/research-output-api/internal/service"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run migrations, seed the type catalog and serve HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info().Msg("Starting research output API server...")

	if err := db.RunMigrations(cfg.Database.MigrationsPath); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	repos := repository.New(db)
	if err := catalog.Seed(context.Background(), repos.Types, log); err != nil {
		return fmt.Errorf("failed to seed research item types: %w", err)
	}

	m := metrics.New()
	services := service.NewServices(repos, cfg, m, log)

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(services, m, db, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exited gracefully")
	return nil
}
