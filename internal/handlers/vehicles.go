package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

const minVehicleYear = 1900

// VehicleHandler serves vehicle registration, odometer updates and the
// per-vehicle schedule and history views.
type VehicleHandler struct {
	vehicles  db.VehicleCollection
	schedules db.ScheduleCollection
	engine    ScheduleService
	log       logrus.FieldLogger
}

// NewVehicleHandler creates a new vehicle handler
func NewVehicleHandler(vehicles db.VehicleCollection, schedules db.ScheduleCollection, engine ScheduleService, log logrus.FieldLogger) *VehicleHandler {
	return &VehicleHandler{vehicles: vehicles, schedules: schedules, engine: engine, log: log}
}

func validateVehicle(req models.CreateVehicleRequest) string {
	switch {
	case strings.TrimSpace(req.Make) == "":
		return "Make is required"
	case strings.TrimSpace(req.Model) == "":
		return "Model is required"
	case req.Year < minVehicleYear || req.Year > time.Now().Year()+2:
		return "Invalid year"
	case req.CurrentMileage < 0:
		return "Mileage cannot be negative"
	}
	return ""
}

// CreateVehicle registers a vehicle for the caller and generates its
// maintenance schedule.
func (h *VehicleHandler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	var req models.CreateVehicleRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if msg := validateVehicle(req); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	vehicle := &models.Vehicle{
		OwnerID:        claims.OwnerID,
		VIN:            strings.ToUpper(strings.TrimSpace(req.VIN)),
		Nickname:       strings.TrimSpace(req.Nickname),
		Make:           strings.TrimSpace(req.Make),
		Model:          strings.TrimSpace(req.Model),
		Year:           req.Year,
		Engine:         strings.TrimSpace(req.Engine),
		DriveType:      strings.TrimSpace(req.DriveType),
		CurrentMileage: req.CurrentMileage,
	}
	if err := h.vehicles.InsertVehicle(r.Context(), vehicle); err != nil {
		writeError(w, h.log, err, "Failed to create vehicle")
		return
	}
	if err := h.engine.GenerateScheduleForVehicle(r.Context(), vehicle.ID.Hex()); err != nil {
		writeError(w, h.log.WithField("vehicle_id", vehicle.ID.Hex()), err, "Failed to generate schedule")
		return
	}

	writeJSON(w, http.StatusCreated, vehicle)
}

// ListVehicles returns the caller's vehicles; staff see every vehicle.
func (h *VehicleHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}
	ownerID := claims.OwnerID
	if claims.CanSeeAllVehicles() {
		ownerID = ""
	}

	vehicles, err := h.vehicles.ListVehicles(r.Context(), ownerID)
	if err != nil {
		writeError(w, h.log, err, "Failed to list vehicles")
		return
	}
	writeJSON(w, http.StatusOK, vehicles)
}

// GetVehicle returns one vehicle.
func (h *VehicleHandler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	vehicle, ok := h.loadVehicle(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, vehicle)
}

// UpdateMileage stores an odometer reading and re-evaluates the schedule.
// Readings lower than the current mileage are accepted as corrections.
func (h *VehicleHandler) UpdateMileage(w http.ResponseWriter, r *http.Request) {
	vehicle, ok := h.loadVehicle(w, r)
	if !ok {
		return
	}

	var req models.UpdateMileageRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Mileage < 0 {
		http.Error(w, "Mileage cannot be negative", http.StatusBadRequest)
		return
	}

	id := vehicle.ID.Hex()
	if err := h.vehicles.UpdateVehicleMileage(r.Context(), id, req.Mileage); err != nil {
		writeError(w, h.log, err, "Failed to update mileage")
		return
	}
	if err := h.engine.UpdateVehicleStatuses(r.Context(), id); err != nil {
		writeError(w, h.log.WithField("vehicle_id", id), err, "Failed to update schedule")
		return
	}

	entries, err := h.schedules.ListScheduleEntries(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err, "Failed to load schedule")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// DeleteVehicle removes a vehicle with its schedule and history.
func (h *VehicleHandler) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	vehicle, ok := h.loadVehicle(w, r)
	if !ok {
		return
	}
	if err := h.vehicles.DeleteVehicle(r.Context(), vehicle.ID.Hex()); err != nil {
		writeError(w, h.log, err, "Failed to delete vehicle")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// loadVehicle resolves the {id} path parameter to a vehicle the caller may
// access. Vehicles of other owners are reported as not found.
func (h *VehicleHandler) loadVehicle(w http.ResponseWriter, r *http.Request) (*models.Vehicle, bool) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return nil, false
	}

	vehicle, err := h.vehicles.FindVehicle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err, "Failed to load vehicle")
		return nil, false
	}
	if vehicle.OwnerID != claims.OwnerID && !claims.CanSeeAllVehicles() {
		http.Error(w, "Not found", http.StatusNotFound)
		return nil, false
	}
	return vehicle, true
}
