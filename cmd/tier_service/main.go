package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	dispatchpg "github.com/snoutdesk/dispatch/internal/dispatch_service/repository/postgres"
	"github.com/snoutdesk/dispatch/internal/platform/config"
	"github.com/snoutdesk/dispatch/internal/platform/database"
	"github.com/snoutdesk/dispatch/internal/platform/logger"
	"github.com/snoutdesk/dispatch/internal/platform/messagebroker"
	"github.com/snoutdesk/dispatch/internal/public_api_service/middleware"
	httptransport "github.com/snoutdesk/dispatch/internal/public_api_service/transport/http"
	tierapp "github.com/snoutdesk/dispatch/internal/tier_service/app"
	tierpg "github.com/snoutdesk/dispatch/internal/tier_service/repository/postgres"
)

const serviceName = "tier_service"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Tier service starting...", "port", cfg.TierServicePort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewDBPool(ctx, cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Tier service connected to PostgreSQL database")

	natsClient, err := messagebroker.NewNATSClient(cfg.NATSUrl, serviceName, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	appLogger.Info("Successfully connected to NATS")

	metricsRepo := tierpg.NewPgMetricsRepository(dbPool, appLogger)
	tierRepo := tierpg.NewPgTierRepository(dbPool, appLogger)
	changeRepo := tierpg.NewPgTierChangeRepository(dbPool, appLogger)
	sitterLister := tierpg.NewPgSitterLister(dbPool, appLogger)
	offerRepo := dispatchpg.NewPgOfferRepository(dbPool, appLogger)

	engine := tierapp.NewTierEngine(
		metricsRepo,
		tierRepo,
		changeRepo,
		offerRepo,
		cfg.MetricsWindowDays,
		cfg.MetricsStaleness(),
		appLogger,
	)
	recalcWorker := tierapp.NewRecalcWorker(engine, natsClient, sitterLister, cfg.TierRecomputeInterval, appLogger)

	tierHandler := httptransport.NewTierHandler(engine, appLogger)
	authMW := middleware.AuthMiddleware(cfg.JWTAccessSecret, appLogger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(httptransport.PrometheusMetricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "Tier service is healthy"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(protected chi.Router) {
		protected.Use(authMW)
		tierHandler.RegisterRoutes(protected)
	})

	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.TierServicePort), Handler: r}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		appLogger.Info(fmt.Sprintf("Tier API server listening on port %d", cfg.TierServicePort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return recalcWorker.Run(gCtx)
	})
	g.Go(func() error {
		<-gCtx.Done()
		appLogger.Info("Shutdown signal received, shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Tier service exited with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Tier service shut down.")
}
