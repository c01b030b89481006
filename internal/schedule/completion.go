package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// ErrInvalidCompletion is returned when a completion has a negative mileage
// or a date in the future. The API reports it as 400.
var ErrInvalidCompletion = errors.New("invalid service completion")

// Completion describes a service the owner actually had done.
type Completion struct {
	CompletedDate    time.Time
	MileageAtService int
	Cost             float64
	Notes            string
}

// CompleteService records a real service against a schedule entry, restarts
// the entry's intervals from the completion point and re-evaluates the
// vehicle. A zero MileageAtService means the vehicle's current mileage and a
// zero CompletedDate means now.
func (e *Engine) CompleteService(ctx context.Context, vehicleID, entryID string, c Completion) (*models.ServiceHistoryRecord, error) {
	if c.MileageAtService < 0 {
		return nil, fmt.Errorf("%w: negative mileage", ErrInvalidCompletion)
	}

	vehicle, err := e.repo.FindVehicle(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("find vehicle %s: %w", vehicleID, err)
	}

	entries, err := e.repo.ListScheduleEntries(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("list schedule entries for vehicle %s: %w", vehicleID, err)
	}
	var entry *models.VehicleScheduleEntry
	for i := range entries {
		if entries[i].ID.Hex() == entryID {
			entry = &entries[i]
			break
		}
	}
	if entry == nil {
		return nil, fmt.Errorf("schedule entry %s: %w", entryID, models.ErrNotFound)
	}

	now := e.now()
	completed := c.CompletedDate
	if completed.IsZero() {
		completed = now
	}
	if completed.After(now) {
		return nil, fmt.Errorf("%w: completion date is in the future", ErrInvalidCompletion)
	}
	mileage := c.MileageAtService
	if mileage == 0 {
		mileage = vehicle.CurrentMileage
	}

	record := &models.ServiceHistoryRecord{
		VehicleID:           vehicleID,
		ScheduleEntryID:     entryID,
		ServiceDefinitionID: entry.ServiceDefinitionID,
		CompletedDate:       completed,
		MileageAtService:    mileage,
		Cost:                c.Cost,
		Notes:               c.Notes,
		CreatedAt:           now,
	}
	if err := e.repo.InsertHistory(ctx, record); err != nil {
		return nil, fmt.Errorf("insert history for entry %s: %w", entryID, err)
	}

	reset := *entry
	if reset.HasMileageInterval() {
		next := mileage + *reset.MileageInterval
		reset.NextDueMileage = &next
	}
	if reset.HasMonthInterval() {
		due := completed.AddDate(0, *reset.MonthInterval, 0)
		reset.NextDueDate = &due
	}
	reset.UpdatedAt = now
	if err := e.repo.UpdateScheduleEntry(ctx, reset); err != nil {
		return nil, fmt.Errorf("reset schedule entry %s: %w", entryID, err)
	}

	e.log.WithFields(logrus.Fields{
		"vehicle_id": vehicleID,
		"entry_id":   entryID,
		"mileage":    mileage,
	}).Info("Recorded completed service")

	if err := e.UpdateVehicleStatuses(ctx, vehicleID); err != nil {
		return record, err
	}
	return record, nil
}
