package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/config"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/schedule"
)

// scheduler is the part of the engine the commands drive.
type scheduler interface {
	GenerateScheduleForVehicle(ctx context.Context, vehicleID string) error
	UpdateVehicleStatuses(ctx context.Context, vehicleID string) error
	UpdateAllVehicleStatuses(ctx context.Context) error
}

// backend bundles what the commands read and write.
type backend struct {
	Catalog   db.CatalogCollection
	Vehicles  db.VehicleCollection
	Schedules db.ScheduleCollection
	Users     db.UserCollection
	Engine    scheduler
}

// openFunc connects a backend. The returned func releases it.
type openFunc func(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*backend, func(), error)

func mongoBackend(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*backend, func(), error) {
	client, err := db.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.WithError(err).Warn("Failed to disconnect from MongoDB")
		}
	}

	store := db.NewMongoStore(client.Database(cfg.MongoDB))
	if err := store.EnsureIndexes(ctx); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("ensure indexes: %w", err)
	}

	return &backend{
		Catalog:   store,
		Vehicles:  store,
		Schedules: store,
		Users:     &db.MongoUserCollection{Collection: store.Users},
		Engine: schedule.NewEngine(store,
			schedule.WithLogger(log),
			schedule.WithWorkers(cfg.SweepWorkers),
		),
	}, closeFn, nil
}
