package db

import (
	"context"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// VehicleCollection defines the interface for vehicle data operations.
type VehicleCollection interface {
	InsertVehicle(ctx context.Context, vehicle *models.Vehicle) error
	FindVehicle(ctx context.Context, id string) (*models.Vehicle, error)
	ListVehicles(ctx context.Context, ownerID string) ([]models.Vehicle, error)
	UpdateVehicleMileage(ctx context.Context, id string, mileage int) error
	DeleteVehicle(ctx context.Context, id string) error
}

// ScheduleCollection defines the read side of schedules and service history.
type ScheduleCollection interface {
	ListScheduleEntries(ctx context.Context, vehicleID string) ([]models.VehicleScheduleEntry, error)
	ListHistory(ctx context.Context, vehicleID string) ([]models.ServiceHistoryRecord, error)
	ListDueEntries(ctx context.Context, ownerID string) ([]models.DueEntry, error)
}

// CatalogCollection defines the write side of the service catalog.
type CatalogCollection interface {
	UpsertServiceDefinition(ctx context.Context, def *models.ServiceDefinition) error
	UpsertScheduleRule(ctx context.Context, rule *models.ScheduleRule) error
}

var (
	_ VehicleCollection  = (*MongoStore)(nil)
	_ ScheduleCollection = (*MongoStore)(nil)
	_ CatalogCollection  = (*MongoStore)(nil)
	_ UserCollection     = (*MongoUserCollection)(nil)
)
