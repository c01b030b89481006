package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

const assumedServiceNote = "Assumed completed on schedule (no service record on file)"

// DueMileage returns the most recent interval boundary at or below mileage
// and the due point one interval past it. A non-positive interval yields
// zeros; negative mileage counts as zero.
func DueMileage(mileage, interval int) (lastBoundary, next int) {
	if interval <= 0 {
		return 0, 0
	}
	if mileage < 0 {
		mileage = 0
	}
	lastBoundary = (mileage / interval) * interval
	return lastBoundary, lastBoundary + interval
}

// PlanEntry builds the initial schedule entry for a matched rule. It also
// returns the interval boundary below the vehicle's mileage, which is where
// an assumed service is recorded when it is positive.
func PlanEntry(vehicleID string, rule models.ScheduleRule, mileage int, now time.Time) (models.VehicleScheduleEntry, int) {
	entry := models.VehicleScheduleEntry{
		VehicleID:           vehicleID,
		ServiceDefinitionID: rule.ServiceDefinitionID,
		RuleID:              rule.ID.Hex(),
		MileageInterval:     copyInt(rule.MileageInterval),
		MonthInterval:       copyInt(rule.MonthInterval),
		IsCombined:          rule.IsCombined,
		Status:              models.StatusOK,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	var boundary int
	if entry.HasMileageInterval() {
		var next int
		boundary, next = DueMileage(mileage, *entry.MileageInterval)
		entry.NextDueMileage = &next
	}
	if entry.HasMonthInterval() {
		due := now.AddDate(0, *entry.MonthInterval, 0)
		entry.NextDueDate = &due
	}
	return entry, boundary
}

// GenerateScheduleForVehicle creates one schedule entry per applicable
// service for a newly registered vehicle, records assumed history up to the
// vehicle's current mileage, and computes initial statuses. Unknown vehicles
// are ignored.
func (e *Engine) GenerateScheduleForVehicle(ctx context.Context, vehicleID string) error {
	vehicle, err := e.repo.FindVehicle(ctx, vehicleID)
	if errors.Is(err, models.ErrNotFound) {
		e.log.WithField("vehicle_id", vehicleID).Debug("Vehicle not found, nothing to schedule")
		return nil
	}
	if err != nil {
		return fmt.Errorf("find vehicle %s: %w", vehicleID, err)
	}

	definitions, err := e.repo.ListActiveServiceDefinitions(ctx)
	if err != nil {
		return fmt.Errorf("list service definitions: %w", err)
	}
	rules, err := e.repo.ListScheduleRules(ctx)
	if err != nil {
		return fmt.Errorf("list schedule rules: %w", err)
	}

	matched := MatchRules(AttributesOf(*vehicle), definitions, rules)
	now := e.now()
	backfilled := 0
	for _, rule := range matched {
		entry, boundary := PlanEntry(vehicleID, rule, vehicle.CurrentMileage, now)
		if err := e.repo.UpsertScheduleEntry(ctx, &entry); err != nil {
			return fmt.Errorf("save schedule entry for service %s: %w", rule.ServiceDefinitionID, err)
		}
		if boundary <= 0 {
			continue
		}
		inserted, err := e.recordAssumedService(ctx, entry, boundary, now)
		if err != nil {
			return err
		}
		if inserted {
			backfilled++
		}
	}

	e.log.WithFields(logrus.Fields{
		"vehicle_id": vehicleID,
		"mileage":    vehicle.CurrentMileage,
		"entries":    len(matched),
		"backfilled": backfilled,
	}).Info("Generated maintenance schedule")

	return e.UpdateVehicleStatuses(ctx, vehicleID)
}

// recordAssumedService inserts an assumed history record at boundary unless
// the entry already has one there.
func (e *Engine) recordAssumedService(ctx context.Context, entry models.VehicleScheduleEntry, boundary int, now time.Time) (bool, error) {
	entryID := entry.ID.Hex()
	exists, err := e.repo.HasHistoryAt(ctx, entryID, boundary)
	if err != nil {
		return false, fmt.Errorf("check history for entry %s: %w", entryID, err)
	}
	if exists {
		return false, nil
	}
	record := models.ServiceHistoryRecord{
		VehicleID:           entry.VehicleID,
		ScheduleEntryID:     entryID,
		ServiceDefinitionID: entry.ServiceDefinitionID,
		CompletedDate:       now,
		MileageAtService:    boundary,
		IsAssumed:           true,
		Notes:               assumedServiceNote,
		CreatedAt:           now,
	}
	if err := e.repo.InsertHistory(ctx, &record); err != nil {
		return false, fmt.Errorf("insert assumed history for entry %s: %w", entryID, err)
	}
	return true, nil
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
