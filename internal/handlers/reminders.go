package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
)

// ReminderHandler serves the due list and the manual status sweep.
type ReminderHandler struct {
	schedules db.ScheduleCollection
	engine    ScheduleService
	log       logrus.FieldLogger
}

// NewReminderHandler creates a new reminder handler
func NewReminderHandler(schedules db.ScheduleCollection, engine ScheduleService, log logrus.FieldLogger) *ReminderHandler {
	return &ReminderHandler{schedules: schedules, engine: engine, log: log}
}

// ListDue returns the caller's upcoming and overdue services; staff see the
// whole fleet.
func (h *ReminderHandler) ListDue(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}
	ownerID := claims.OwnerID
	if claims.CanSeeAllVehicles() {
		ownerID = ""
	}

	due, err := h.schedules.ListDueEntries(r.Context(), ownerID)
	if err != nil {
		writeError(w, h.log, err, "Failed to list reminders")
		return
	}
	writeJSON(w, http.StatusOK, due)
}

// Sweep re-evaluates every vehicle now instead of waiting for the next
// scheduled sweep.
func (h *ReminderHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.UpdateAllVehicleStatuses(r.Context()); err != nil {
		h.log.WithError(err).Error("Manual status sweep failed")
		http.Error(w, "Sweep completed with errors", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Sweep completed"})
}
