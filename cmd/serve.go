package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GroundMC/GroundMCProfileCache/internal/async"
	"github.com/GroundMC/GroundMCProfileCache/internal/cache"
	"github.com/GroundMC/GroundMCProfileCache/internal/db/bunx"
	"github.com/GroundMC/GroundMCProfileCache/internal/repository"
	"github.com/GroundMC/GroundMCProfileCache/internal/server"
	"github.com/GroundMC/GroundMCProfileCache/internal/services/engine"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the profile cache server",
	Long:  `Starts the HTTP server exposing profile lookup, record and session endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger(cfg.Debug)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		defer log.Sync()

		db, err := bunx.NewDB(cfg.DatabaseURL, cfg.MaxDBConnections)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		log.Info("connected to database", zap.String("type", string(bunx.DetectDatabaseType(cfg.DatabaseURL))))

		profileRepo := repository.NewBunProfileRepository(db, nil).WithTTL(cfg.ProfileTTL)
		settingsRepo := repository.NewBunSettingsRepository(db)

		pool := async.NewPool(cfg.WorkerCount, cfg.WorkerQueue, log)
		defer pool.Close()

		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		nameCache, err := cache.NewNameCache(profileRepo, pool, cache.Options{
			Capacity:     cfg.CacheCapacity,
			RefreshAfter: cfg.CacheRefreshAfter,
			ExpireAfter:  cfg.CacheExpireAfter,
			Logger:       log,
			Metrics:      cache.NewMetrics(registry),
		})
		if err != nil {
			return fmt.Errorf("failed to build cache: %w", err)
		}

		service := engine.NewService(profileRepo, settingsRepo, nameCache, pool, log)
		r := server.NewRouter(service, log, registry)

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			log.Info("starting server", zap.String("addr", cfg.ServerAddr))
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			log.Info("shutting down", zap.Stringer("signal", sig))

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			// Let queued writes land before the database closes
			if err := pool.Quiesce(ctx); err != nil {
				log.Warn("pending tasks did not drain", zap.Error(err))
			}

			log.Info("server stopped")
			return nil
		}
	},
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
