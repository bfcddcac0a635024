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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	dispatchapp "github.com/snoutdesk/dispatch/internal/dispatch_service/app"
	dispatchpg "github.com/snoutdesk/dispatch/internal/dispatch_service/repository/postgres"
	"github.com/snoutdesk/dispatch/internal/messaging_service/adapters/sessionprovider"
	messagingapp "github.com/snoutdesk/dispatch/internal/messaging_service/app"
	messagingpg "github.com/snoutdesk/dispatch/internal/messaging_service/repository/postgres"
	"github.com/snoutdesk/dispatch/internal/platform/config"
	"github.com/snoutdesk/dispatch/internal/platform/database"
	"github.com/snoutdesk/dispatch/internal/platform/logger"
	"github.com/snoutdesk/dispatch/internal/platform/messagebroker"
	"github.com/snoutdesk/dispatch/internal/public_api_service/middleware"
	httptransport "github.com/snoutdesk/dispatch/internal/public_api_service/transport/http"
)

const serviceName = "dispatch_service"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Dispatch service starting...", "port", cfg.DispatchServicePort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewDBPool(ctx, cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Dispatch service connected to PostgreSQL database")

	natsClient, err := messagebroker.NewNATSClient(cfg.NATSUrl, serviceName, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	appLogger.Info("Successfully connected to NATS")

	// Dispatch wiring.
	bookingRepo := dispatchpg.NewPgBookingRepository(dbPool, appLogger)
	offerRepo := dispatchpg.NewPgOfferRepository(dbPool, appLogger)
	sitterRepo := dispatchpg.NewPgSitterRepository(dbPool, appLogger)

	selector := dispatchapp.NewSelector(sitterRepo, bookingRepo, offerRepo, cfg.SitterCooldown(), appLogger)
	dispatchMetrics := dispatchapp.NewMetrics(prometheus.DefaultRegisterer)
	dispatcher := dispatchapp.NewDispatcher(
		bookingRepo,
		offerRepo,
		selector,
		natsClient,
		dispatchMetrics,
		cfg.OfferExpiry(),
		cfg.MaxReassignmentAttempts,
		cfg.SweepBatchSize,
		appLogger,
	)
	sweepWorker := dispatchapp.NewSweepWorker(dispatcher, cfg.SweepInterval, appLogger)

	// Messaging wiring.
	threadRepo := messagingpg.NewPgThreadRepository(dbPool, appLogger)
	numberRepo := messagingpg.NewPgNumberRepository(dbPool, appLogger)
	windowRepo := messagingpg.NewPgWindowRepository(dbPool, appLogger)
	auditRepo := messagingpg.NewPgRoutingDecisionRepository(dbPool, appLogger)
	assignmentAuditRepo := messagingpg.NewPgThreadAssignmentAuditRepository(dbPool, appLogger)
	bookingReader := messagingpg.NewPgBookingReader(dbPool, appLogger)

	provider := sessionprovider.NewHTTPSessionProvider(
		appLogger,
		cfg.SessionProviderAPIURL,
		cfg.SessionProviderAPIKey,
		&http.Client{Timeout: cfg.ProviderTimeout},
	)
	numberRouter := messagingapp.NewNumberRouter(numberRepo, appLogger)
	windowManager := messagingapp.NewWindowManager(windowRepo, cfg.WindowBuffer(), cfg.OvernightWindowBuffer(), appLogger)
	assignmentService := messagingapp.NewAssignmentService(threadRepo, auditRepo, assignmentAuditRepo,
		numberRouter, windowManager, bookingReader, provider, appLogger)
	windowConsumer := messagingapp.NewBookingEventConsumer(natsClient, windowManager, bookingReader, appLogger)

	// HTTP surface.
	dispatchHandler := httptransport.NewDispatchHandler(dispatcher, appLogger)
	messagingHandler := httptransport.NewMessagingHandler(assignmentService, windowManager, appLogger)
	authMW := middleware.AuthMiddleware(cfg.JWTAccessSecret, appLogger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(httptransport.PrometheusMetricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "Dispatch service is healthy"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(protected chi.Router) {
		protected.Use(authMW)
		dispatchHandler.RegisterRoutes(protected)
		messagingHandler.RegisterRoutes(protected)
	})

	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.DispatchServicePort), Handler: r}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		appLogger.Info(fmt.Sprintf("Dispatch API server listening on port %d", cfg.DispatchServicePort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return sweepWorker.Run(gCtx)
	})
	g.Go(func() error {
		return windowConsumer.Start(gCtx)
	})
	g.Go(func() error {
		<-gCtx.Done()
		appLogger.Info("Shutdown signal received, shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Dispatch service exited with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Dispatch service shut down.")
}
