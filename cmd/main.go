package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/config"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/handlers"
	"github.com/ukydev/fleet-maintenance/internal/schedule"
	"github.com/ukydev/fleet-maintenance/internal/telemetry"
)

const (
	shutdownTimeout = 10 * time.Second
	apiRateLimit    = 120 // requests per client per minute
)

func main() {
	cfg := config.Load()
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("Server stopped")
	}
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	authService, err := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)
	if err != nil {
		return err
	}

	client, err := db.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.WithError(err).Warn("Failed to disconnect from MongoDB")
		}
	}()
	logger.WithField("database", cfg.MongoDB).Info("Connected to MongoDB")

	store := db.NewMongoStore(client.Database(cfg.MongoDB))
	if err := store.EnsureIndexes(ctx); err != nil {
		return err
	}
	users := &db.MongoUserCollection{Collection: store.Users}

	engine := schedule.NewEngine(store,
		schedule.WithLogger(logger.WithField("component", "schedule")),
		schedule.WithWorkers(cfg.SweepWorkers),
	)

	go schedule.NewSweeper(engine, cfg.SweepInterval).Run(ctx)

	if cfg.MQTTBroker != "" {
		sub := telemetry.NewSubscriber(telemetry.Options{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Topic:    cfg.MQTTTopic,
		}, store, engine, logger.WithField("component", "telemetry"))
		if err := sub.Start(); err != nil {
			return err
		}
		defer sub.Stop()
	} else {
		logger.Info("MQTT_BROKER not set, odometer ingest disabled")
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Auth:      authService,
		Users:     users,
		Store:     store,
		Engine:    engine,
		Ping:      func(ctx context.Context) error { return client.Ping(ctx, nil) },
		Log:       logger,
		RateLimit: apiRateLimit,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.WithField("port", cfg.Port).Info("HTTP server listening")
	return serve(ctx, srv, logger)
}

// serve runs srv until ctx is cancelled and then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, logger logrus.FieldLogger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
