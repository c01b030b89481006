package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/schedule"
)

// GetSchedule returns a vehicle's schedule entries.
func (h *VehicleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	vehicle, ok := h.loadVehicle(w, r)
	if !ok {
		return
	}
	entries, err := h.schedules.ListScheduleEntries(r.Context(), vehicle.ID.Hex())
	if err != nil {
		writeError(w, h.log, err, "Failed to load schedule")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetHistory returns a vehicle's service history, most recent first.
func (h *VehicleHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	vehicle, ok := h.loadVehicle(w, r)
	if !ok {
		return
	}
	records, err := h.schedules.ListHistory(r.Context(), vehicle.ID.Hex())
	if err != nil {
		writeError(w, h.log, err, "Failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// CompleteService records a service the owner had done. A completion
// mileage above the odometer also advances the vehicle's mileage.
func (h *VehicleHandler) CompleteService(w http.ResponseWriter, r *http.Request) {
	vehicle, ok := h.loadVehicle(w, r)
	if !ok {
		return
	}

	var req models.CompleteServiceRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.MileageAtService < 0 {
		http.Error(w, "Mileage cannot be negative", http.StatusBadRequest)
		return
	}
	if req.Cost < 0 {
		http.Error(w, "Cost cannot be negative", http.StatusBadRequest)
		return
	}

	completion := schedule.Completion{
		MileageAtService: req.MileageAtService,
		Cost:             req.Cost,
		Notes:            req.Notes,
	}
	if req.CompletedDate != nil {
		completion.CompletedDate = *req.CompletedDate
	}

	id := vehicle.ID.Hex()
	record, err := h.engine.CompleteService(r.Context(), id, chi.URLParam(r, "entryID"), completion)
	if err != nil {
		writeError(w, h.log.WithField("vehicle_id", id), err, "Failed to record service")
		return
	}

	if record.MileageAtService > vehicle.CurrentMileage {
		if err := h.vehicles.UpdateVehicleMileage(r.Context(), id, record.MileageAtService); err != nil {
			writeError(w, h.log, err, "Failed to update mileage")
			return
		}
		if err := h.engine.UpdateVehicleStatuses(r.Context(), id); err != nil {
			writeError(w, h.log.WithField("vehicle_id", id), err, "Failed to update schedule")
			return
		}
	}

	writeJSON(w, http.StatusCreated, record)
}
