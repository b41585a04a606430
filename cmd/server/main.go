package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/noachFrank/CarServiceServer/internal/availability"
	"github.com/noachFrank/CarServiceServer/internal/config"
	"github.com/noachFrank/CarServiceServer/internal/coordinator"
	dispatchhttp "github.com/noachFrank/CarServiceServer/internal/http"
	"github.com/noachFrank/CarServiceServer/internal/ingest"
	"github.com/noachFrank/CarServiceServer/internal/logging"
	"github.com/noachFrank/CarServiceServer/internal/messaging"
	"github.com/noachFrank/CarServiceServer/internal/notify"
	"github.com/noachFrank/CarServiceServer/internal/presence"
	"github.com/noachFrank/CarServiceServer/internal/storage"
	"github.com/noachFrank/CarServiceServer/internal/tracking"
	"github.com/noachFrank/CarServiceServer/internal/traveltime"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		logging.NewLogger("info").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	var (
		rides    storage.RideStore
		drivers  storage.DriverStore
		msgStore storage.MessageStore
	)
	if cfg.PGDSN != "" {
		pg, err := storage.NewPostgresRideStore(cfg.PGDSN)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		if cfg.RunMigrations {
			if err := storage.Migrate(pg.DB()); err != nil {
				logger.Error("migration failed", "error", err)
				os.Exit(1)
			}
			logger.Info("schema migrated")
		}
		rides = pg
		drivers = storage.NewPostgresDriverStore(pg.DB())
		msgStore = storage.NewPostgresMessageStore(pg.DB())
	} else {
		logger.Warn("PG_DSN not set, using in-memory stores")
		rides = storage.NewMemoryRideStore()
		drivers = storage.NewMemoryDriverStore()
		msgStore = storage.NewMemoryMessageStore()
	}

	var travel traveltime.Provider
	if cfg.GoogleMapsAPIKey != "" {
		travel = traveltime.NewGoogleMapsClient(cfg.GoogleMapsAPIKey)
	} else {
		logger.Warn("GOOGLE_MAPS_API_KEY not set, availability will use the default travel time")
		travel = traveltime.ProviderFunc(func(from, to string) (int, error) {
			return 0, traveltime.ErrNoRoute
		})
	}
	if cfg.RedisAddr != "" {
		travel = traveltime.NewRedisCache(travel, cfg.RedisAddr, cfg.RedisPassword, cfg.TravelTimeTTL)
	} else {
		travel = traveltime.NewCache(travel, cfg.TravelTimeTTL)
	}

	engine := availability.NewEngine(rides, travel, availability.Config{
		DefaultTravelMinutes:     cfg.DefaultTravelTimeMinutes,
		BaseGraceMinutes:         cfg.BaseGraceMinutes,
		LongCallThresholdMinutes: cfg.LongCallThresholdMinutes,
		ScalingEnabled:           cfg.GraceScalingEnabled,
	}, logger)

	gateway := notify.NewWSGateway(logger)
	push := notify.NewExpoPushClient(cfg.PushEndpoint, logger)
	notifier := notify.NewNotifier(gateway, push)

	registry := presence.NewRegistry(cfg.HeartbeatTimeout, drivers, logger)
	sweeper := presence.NewSweeper(registry, cfg.SweepInterval, logger)
	if err := sweeper.Start(); err != nil {
		logger.Error("failed to start heartbeat sweep", "error", err)
		os.Exit(1)
	}
	defer sweeper.Stop()

	var publisher tracking.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewLocationPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer kp.Close()
		publisher = kp
	} else {
		logger.Warn("KAFKA_BROKERS not set, location stream disabled")
	}
	tracker := tracking.NewTracker(coordinator.DispatcherGroup, gateway, publisher, logger)

	coord := coordinator.New(rides, drivers, registry, engine, notifier, logger)
	messages := messaging.New(msgStore, drivers, registry, notifier, coordinator.DispatcherGroup, logger)

	api := dispatchhttp.NewServer(logger, registry, gateway, coord, tracker, messages, rides)
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dispatch server listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}
