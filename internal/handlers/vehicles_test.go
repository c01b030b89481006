package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/schedule"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (f *apiFixture) ownVehicle(mileage int) *models.Vehicle {
	v := &models.Vehicle{
		ID:             primitive.NewObjectID(),
		OwnerID:        f.ownerID,
		Make:           "Toyota",
		Model:          "4Runner",
		Year:           2021,
		CurrentMileage: mileage,
	}
	f.store.On("FindVehicle", mock.Anything, v.ID.Hex()).Return(v, nil)
	return v
}

func TestVehicleHandler_CreateVehicle(t *testing.T) {
	t.Run("registers and generates schedule", func(t *testing.T) {
		f := newAPIFixture(t)
		newID := primitive.NewObjectID()
		f.store.On("InsertVehicle", mock.Anything, mock.MatchedBy(func(v *models.Vehicle) bool {
			return v.OwnerID == f.ownerID && v.Make == "Toyota" && v.VIN == "JTEBU5JR0L5000001" && v.CurrentMileage == 45000
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*models.Vehicle).ID = newID
		}).Return(nil)
		f.engine.On("GenerateScheduleForVehicle", mock.Anything, newID.Hex()).Return(nil)

		w := f.do(t, models.RoleOwner, http.MethodPost, "/api/vehicles", models.CreateVehicleRequest{
			VIN: " jtebu5jr0l5000001 ", Make: "Toyota", Model: "4Runner", Year: 2021, CurrentMileage: 45000,
		})

		require.Equal(t, http.StatusCreated, w.Code)
		var vehicle models.Vehicle
		decodeBody(t, w, &vehicle)
		assert.Equal(t, newID, vehicle.ID)
		f.assertExpectations(t)
	})

	tests := []struct {
		name string
		req  models.CreateVehicleRequest
	}{
		{"missing make", models.CreateVehicleRequest{Model: "Civic", Year: 2015}},
		{"missing model", models.CreateVehicleRequest{Make: "Honda", Year: 2015}},
		{"year too old", models.CreateVehicleRequest{Make: "Ford", Model: "T", Year: 1850}},
		{"year in the future", models.CreateVehicleRequest{Make: "Honda", Model: "Civic", Year: time.Now().Year() + 5}},
		{"negative mileage", models.CreateVehicleRequest{Make: "Honda", Model: "Civic", Year: 2015, CurrentMileage: -10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			w := f.do(t, models.RoleOwner, http.MethodPost, "/api/vehicles", tt.req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			f.store.AssertNotCalled(t, "InsertVehicle", mock.Anything, mock.Anything)
		})
	}

	t.Run("generation failure", func(t *testing.T) {
		f := newAPIFixture(t)
		f.store.On("InsertVehicle", mock.Anything, mock.Anything).Return(nil)
		f.engine.On("GenerateScheduleForVehicle", mock.Anything, mock.Anything).Return(assert.AnError)

		w := f.do(t, models.RoleOwner, http.MethodPost, "/api/vehicles", models.CreateVehicleRequest{Make: "Honda", Model: "Civic", Year: 2015})

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestVehicleHandler_ListVehicles(t *testing.T) {
	f := newAPIFixture(t)
	f.store.On("ListVehicles", mock.Anything, f.ownerID).Return([]models.Vehicle{{Make: "Toyota"}}, nil)
	f.store.On("ListVehicles", mock.Anything, "").Return([]models.Vehicle{{Make: "Toyota"}, {Make: "Honda"}}, nil)

	var owned, all []models.Vehicle
	w := f.do(t, models.RoleOwner, http.MethodGet, "/api/vehicles", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &owned)

	w = f.do(t, models.RoleManager, http.MethodGet, "/api/vehicles", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &all)

	assert.Len(t, owned, 1)
	assert.Len(t, all, 2)
}

func TestVehicleHandler_GetVehicle(t *testing.T) {
	f := newAPIFixture(t)
	mine := f.ownVehicle(45000)
	theirs := &models.Vehicle{ID: primitive.NewObjectID(), OwnerID: "someone-else"}
	f.store.On("FindVehicle", mock.Anything, theirs.ID.Hex()).Return(theirs, nil)
	missing := primitive.NewObjectID().Hex()
	f.store.On("FindVehicle", mock.Anything, missing).Return(nil, models.ErrNotFound)

	assert.Equal(t, http.StatusOK, f.do(t, models.RoleOwner, http.MethodGet, "/api/vehicles/"+mine.ID.Hex(), nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, models.RoleOwner, http.MethodGet, "/api/vehicles/"+theirs.ID.Hex(), nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, models.RoleAdmin, http.MethodGet, "/api/vehicles/"+theirs.ID.Hex(), nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, models.RoleOwner, http.MethodGet, "/api/vehicles/"+missing, nil).Code)
}

func TestVehicleHandler_UpdateMileage(t *testing.T) {
	t.Run("stores reading and re-evaluates", func(t *testing.T) {
		f := newAPIFixture(t)
		v := f.ownVehicle(45000)
		id := v.ID.Hex()
		f.store.On("UpdateVehicleMileage", mock.Anything, id, 50200).Return(nil)
		f.engine.On("UpdateVehicleStatuses", mock.Anything, id).Return(nil)
		next := 60000
		f.store.On("ListScheduleEntries", mock.Anything, id).
			Return([]models.VehicleScheduleEntry{{VehicleID: id, NextDueMileage: &next, Status: models.StatusOK}}, nil)

		w := f.do(t, models.RoleOwner, http.MethodPut, "/api/vehicles/"+id+"/mileage", models.UpdateMileageRequest{Mileage: 50200})

		require.Equal(t, http.StatusOK, w.Code)
		var entries []models.VehicleScheduleEntry
		decodeBody(t, w, &entries)
		require.Len(t, entries, 1)
		assert.Equal(t, 60000, *entries[0].NextDueMileage)
		f.assertExpectations(t)
	})

	t.Run("lower reading is accepted", func(t *testing.T) {
		f := newAPIFixture(t)
		v := f.ownVehicle(45000)
		id := v.ID.Hex()
		f.store.On("UpdateVehicleMileage", mock.Anything, id, 44000).Return(nil)
		f.engine.On("UpdateVehicleStatuses", mock.Anything, id).Return(nil)
		f.store.On("ListScheduleEntries", mock.Anything, id).Return([]models.VehicleScheduleEntry{}, nil)

		w := f.do(t, models.RoleOwner, http.MethodPut, "/api/vehicles/"+id+"/mileage", models.UpdateMileageRequest{Mileage: 44000})

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("negative mileage", func(t *testing.T) {
		f := newAPIFixture(t)
		v := f.ownVehicle(45000)

		w := f.do(t, models.RoleOwner, http.MethodPut, "/api/vehicles/"+v.ID.Hex()+"/mileage", models.UpdateMileageRequest{Mileage: -1})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		f.store.AssertNotCalled(t, "UpdateVehicleMileage", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestVehicleHandler_DeleteVehicle(t *testing.T) {
	f := newAPIFixture(t)
	v := f.ownVehicle(45000)
	f.store.On("DeleteVehicle", mock.Anything, v.ID.Hex()).Return(nil)

	w := f.do(t, models.RoleOwner, http.MethodDelete, "/api/vehicles/"+v.ID.Hex(), nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	f.assertExpectations(t)
}

func TestVehicleHandler_ScheduleAndHistory(t *testing.T) {
	f := newAPIFixture(t)
	v := f.ownVehicle(45000)
	id := v.ID.Hex()
	f.store.On("ListScheduleEntries", mock.Anything, id).Return([]models.VehicleScheduleEntry{{VehicleID: id, Status: models.StatusUpcoming}}, nil)
	f.store.On("ListHistory", mock.Anything, id).Return([]models.ServiceHistoryRecord{{VehicleID: id, MileageAtService: 40000, IsAssumed: true}}, nil)

	w := f.do(t, models.RoleOwner, http.MethodGet, "/api/vehicles/"+id+"/schedule", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []models.VehicleScheduleEntry
	decodeBody(t, w, &entries)
	assert.Equal(t, models.StatusUpcoming, entries[0].Status)

	w = f.do(t, models.RoleOwner, http.MethodGet, "/api/vehicles/"+id+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []models.ServiceHistoryRecord
	decodeBody(t, w, &history)
	assert.True(t, history[0].IsAssumed)
}

func TestVehicleHandler_CompleteService(t *testing.T) {
	entryID := primitive.NewObjectID().Hex()

	t.Run("records service", func(t *testing.T) {
		f := newAPIFixture(t)
		v := f.ownVehicle(49700)
		id := v.ID.Hex()
		done := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
		want := schedule.Completion{CompletedDate: done, MileageAtService: 49650, Cost: 89.99, Notes: "synthetic"}
		f.engine.On("CompleteService", mock.Anything, id, entryID, want).
			Return(&models.ServiceHistoryRecord{VehicleID: id, MileageAtService: 49650}, nil)

		w := f.do(t, models.RoleOwner, http.MethodPost, "/api/vehicles/"+id+"/schedule/"+entryID+"/complete",
			models.CompleteServiceRequest{CompletedDate: &done, MileageAtService: 49650, Cost: 89.99, Notes: "synthetic"})

		assert.Equal(t, http.StatusCreated, w.Code)
		f.store.AssertNotCalled(t, "UpdateVehicleMileage", mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("completion past odometer bumps mileage", func(t *testing.T) {
		f := newAPIFixture(t)
		v := f.ownVehicle(49700)
		id := v.ID.Hex()
		f.engine.On("CompleteService", mock.Anything, id, entryID, schedule.Completion{MileageAtService: 50100}).
			Return(&models.ServiceHistoryRecord{VehicleID: id, MileageAtService: 50100}, nil)
		f.store.On("UpdateVehicleMileage", mock.Anything, id, 50100).Return(nil)
		f.engine.On("UpdateVehicleStatuses", mock.Anything, id).Return(nil)

		w := f.do(t, models.RoleOwner, http.MethodPost, "/api/vehicles/"+id+"/schedule/"+entryID+"/complete",
			models.CompleteServiceRequest{MileageAtService: 50100})

		assert.Equal(t, http.StatusCreated, w.Code)
		f.assertExpectations(t)
	})

	t.Run("engine errors map to status codes", func(t *testing.T) {
		tests := []struct {
			err  error
			want int
		}{
			{schedule.ErrInvalidCompletion, http.StatusBadRequest},
			{models.ErrNotFound, http.StatusNotFound},
			{assert.AnError, http.StatusInternalServerError},
		}
		for _, tt := range tests {
			f := newAPIFixture(t)
			v := f.ownVehicle(49700)
			f.engine.On("CompleteService", mock.Anything, v.ID.Hex(), entryID, mock.Anything).Return(nil, tt.err)

			w := f.do(t, models.RoleOwner, http.MethodPost, "/api/vehicles/"+v.ID.Hex()+"/schedule/"+entryID+"/complete",
				models.CompleteServiceRequest{})

			assert.Equal(t, tt.want, w.Code, tt.err.Error())
		}
	})

	t.Run("negative cost", func(t *testing.T) {
		f := newAPIFixture(t)
		v := f.ownVehicle(49700)
		w := f.do(t, models.RoleOwner, http.MethodPost, "/api/vehicles/"+v.ID.Hex()+"/schedule/"+entryID+"/complete",
			models.CompleteServiceRequest{Cost: -5})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
