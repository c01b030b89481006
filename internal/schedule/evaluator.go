package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"golang.org/x/sync/errgroup"
)

// Advancement is the result of catching an entry up to the current mileage.
type Advancement struct {
	Entry    models.VehicleScheduleEntry
	Advanced bool
	// Boundary is the interval boundary the skipped service is assumed to
	// have happened at. Only meaningful when Advanced is set.
	Boundary int
}

// Advance moves a mileage-due entry whose due point has been reached to the
// next interval boundary past mileage. The time clock restarts at now when
// the entry also has a month interval. The input entry is not modified.
func Advance(entry models.VehicleScheduleEntry, mileage int, now time.Time) Advancement {
	out := Advancement{Entry: entry}
	if !entry.HasMileageInterval() || entry.NextDueMileage == nil {
		return out
	}
	if mileage < *entry.NextDueMileage {
		return out
	}

	boundary, next := DueMileage(mileage, *entry.MileageInterval)
	if next <= *entry.NextDueMileage {
		return out
	}

	entry.NextDueMileage = &next
	if entry.HasMonthInterval() {
		due := now.AddDate(0, *entry.MonthInterval, 0)
		entry.NextDueDate = &due
	}
	out.Entry = entry
	out.Advanced = true
	out.Boundary = boundary
	return out
}

// EvaluateStatus computes the urgency of an entry.
//
// Combined entries take the worse of the mileage and date statuses. Entries
// that are not combined and track both intervals are overdue only when both
// are overdue, and upcoming when either has entered its lead window. An
// entry tracking a single interval uses that interval's status; one tracking
// none is always ok.
func EvaluateStatus(entry models.VehicleScheduleEntry, mileage int, now time.Time, prefs models.ReminderPreferences) models.Status {
	byMileage, hasMileage := mileageStatus(entry, mileage, prefs.LeadMiles)
	byDate, hasDate := dateStatus(entry, now, prefs.LeadDays)

	switch {
	case hasMileage && hasDate:
		if entry.IsCombined {
			return worse(byMileage, byDate)
		}
		if byMileage == models.StatusOverdue && byDate == models.StatusOverdue {
			return models.StatusOverdue
		}
		if byMileage != models.StatusOK || byDate != models.StatusOK {
			return models.StatusUpcoming
		}
		return models.StatusOK
	case hasMileage:
		return byMileage
	case hasDate:
		return byDate
	default:
		return models.StatusOK
	}
}

func mileageStatus(entry models.VehicleScheduleEntry, mileage, leadMiles int) (models.Status, bool) {
	if !entry.HasMileageInterval() || entry.NextDueMileage == nil {
		return models.StatusOK, false
	}
	due := *entry.NextDueMileage
	switch {
	case mileage >= due:
		return models.StatusOverdue, true
	case mileage >= due-leadMiles:
		return models.StatusUpcoming, true
	default:
		return models.StatusOK, true
	}
}

func dateStatus(entry models.VehicleScheduleEntry, now time.Time, leadDays int) (models.Status, bool) {
	if !entry.HasMonthInterval() || entry.NextDueDate == nil {
		return models.StatusOK, false
	}
	due := *entry.NextDueDate
	leadDate := now.AddDate(0, 0, leadDays)
	switch {
	case !now.Before(due):
		return models.StatusOverdue, true
	case !leadDate.Before(due):
		return models.StatusUpcoming, true
	default:
		return models.StatusOK, true
	}
}

func worse(a, b models.Status) models.Status {
	if rank(a) >= rank(b) {
		return a
	}
	return b
}

func rank(s models.Status) int {
	switch s {
	case models.StatusOverdue:
		return 2
	case models.StatusUpcoming:
		return 1
	default:
		return 0
	}
}

// UpdateVehicleStatuses advances stale entries of one vehicle and stores
// any status that changed. Running it twice with the same mileage, time and
// lead window writes nothing the second time. Unknown vehicles are ignored.
func (e *Engine) UpdateVehicleStatuses(ctx context.Context, vehicleID string) error {
	vehicle, err := e.repo.FindVehicle(ctx, vehicleID)
	if errors.Is(err, models.ErrNotFound) {
		e.log.WithField("vehicle_id", vehicleID).Debug("Vehicle not found, skipping status update")
		return nil
	}
	if err != nil {
		return fmt.Errorf("find vehicle %s: %w", vehicleID, err)
	}

	prefs, err := e.repo.FindReminderPreferences(ctx, vehicle.OwnerID)
	if err != nil {
		return fmt.Errorf("find reminder preferences for owner %s: %w", vehicle.OwnerID, err)
	}

	entries, err := e.repo.ListScheduleEntries(ctx, vehicleID)
	if err != nil {
		return fmt.Errorf("list schedule entries for vehicle %s: %w", vehicleID, err)
	}

	now := e.now()
	var advanced, changed int
	for _, entry := range entries {
		adv := Advance(entry, vehicle.CurrentMileage, now)
		if adv.Advanced && adv.Boundary > 0 {
			if _, err := e.recordAssumedService(ctx, entry, adv.Boundary, now); err != nil {
				return err
			}
		}

		next := adv.Entry
		status := EvaluateStatus(next, vehicle.CurrentMileage, now, prefs)
		if !adv.Advanced && status == entry.Status {
			continue
		}
		next.Status = status
		next.UpdatedAt = now
		if err := e.repo.UpdateScheduleEntry(ctx, next); err != nil {
			return fmt.Errorf("update schedule entry %s: %w", entry.ID.Hex(), err)
		}
		if adv.Advanced {
			advanced++
		}
		if status != entry.Status {
			changed++
			e.log.WithFields(logrus.Fields{
				"vehicle_id": vehicleID,
				"entry_id":   entry.ID.Hex(),
				"from":       entry.Status,
				"to":         status,
			}).Debug("Schedule entry status changed")
		}
	}

	if advanced > 0 || changed > 0 {
		e.log.WithFields(logrus.Fields{
			"vehicle_id": vehicleID,
			"mileage":    vehicle.CurrentMileage,
			"advanced":   advanced,
			"changed":    changed,
		}).Info("Updated schedule statuses")
	}
	return nil
}

// UpdateAllVehicleStatuses evaluates every vehicle using a bounded pool of
// workers. A failing vehicle does not stop the others; all failures are
// returned joined.
func (e *Engine) UpdateAllVehicleStatuses(ctx context.Context) error {
	ids, err := e.repo.ListVehicleIDs(ctx)
	if err != nil {
		return fmt.Errorf("list vehicles: %w", err)
	}

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(e.workers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := e.UpdateVehicleStatuses(ctx, id); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}

	e.log.WithFields(logrus.Fields{
		"vehicles": len(ids),
		"failed":   len(errs),
	}).Info("Completed status sweep")
	return errors.Join(errs...)
}
