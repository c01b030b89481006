package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/schedule"
)

// ScheduleService is the part of the schedule engine the API drives.
type ScheduleService interface {
	GenerateScheduleForVehicle(ctx context.Context, vehicleID string) error
	UpdateVehicleStatuses(ctx context.Context, vehicleID string) error
	UpdateAllVehicleStatuses(ctx context.Context) error
	CompleteService(ctx context.Context, vehicleID, entryID string, c schedule.Completion) (*models.ServiceHistoryRecord, error)
}

var _ ScheduleService = (*schedule.Engine)(nil)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeError maps store and engine errors to HTTP status codes. Unexpected
// errors are logged and reported as 500 with msg.
func writeError(w http.ResponseWriter, log logrus.FieldLogger, err error, msg string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, models.ErrConflict):
		http.Error(w, "Already exists", http.StatusConflict)
	case errors.Is(err, schedule.ErrInvalidCompletion):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.WithError(err).Error(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}
