package schedule

import (
	"context"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// Repository is everything the scheduler reads and writes. Implementations
// return models.ErrNotFound from FindVehicle for unknown ids and only active
// records from the two catalog listings.
type Repository interface {
	FindVehicle(ctx context.Context, vehicleID string) (*models.Vehicle, error)
	ListVehicleIDs(ctx context.Context) ([]string, error)
	FindReminderPreferences(ctx context.Context, ownerID string) (models.ReminderPreferences, error)

	ListActiveServiceDefinitions(ctx context.Context) ([]models.ServiceDefinition, error)
	ListScheduleRules(ctx context.Context) ([]models.ScheduleRule, error)

	ListScheduleEntries(ctx context.Context, vehicleID string) ([]models.VehicleScheduleEntry, error)
	// UpsertScheduleEntry creates or replaces the entry for the
	// (VehicleID, ServiceDefinitionID) pair and sets entry.ID.
	UpsertScheduleEntry(ctx context.Context, entry *models.VehicleScheduleEntry) error
	UpdateScheduleEntry(ctx context.Context, entry models.VehicleScheduleEntry) error

	HasHistoryAt(ctx context.Context, scheduleEntryID string, mileage int) (bool, error)
	InsertHistory(ctx context.Context, record *models.ServiceHistoryRecord) error
}
