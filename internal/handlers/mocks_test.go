package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/schedule"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MockUserCollection is a mock implementation of UserCollection
type MockUserCollection struct {
	mock.Mock
}

func (m *MockUserCollection) InsertUser(ctx context.Context, user models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserCollection) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) UpdateUser(ctx context.Context, id string, user models.User) error {
	args := m.Called(ctx, id, user)
	return args.Error(0)
}

func (m *MockUserCollection) UpdateLastLogin(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserCollection) UpdatePreferences(ctx context.Context, id string, prefs models.ReminderPreferences) error {
	args := m.Called(ctx, id, prefs)
	return args.Error(0)
}

// MockStore is a mock implementation of Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) InsertVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	args := m.Called(ctx, vehicle)
	return args.Error(0)
}

func (m *MockStore) FindVehicle(ctx context.Context, id string) (*models.Vehicle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *MockStore) ListVehicles(ctx context.Context, ownerID string) ([]models.Vehicle, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Vehicle), args.Error(1)
}

func (m *MockStore) UpdateVehicleMileage(ctx context.Context, id string, mileage int) error {
	args := m.Called(ctx, id, mileage)
	return args.Error(0)
}

func (m *MockStore) DeleteVehicle(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) ListScheduleEntries(ctx context.Context, vehicleID string) ([]models.VehicleScheduleEntry, error) {
	args := m.Called(ctx, vehicleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.VehicleScheduleEntry), args.Error(1)
}

func (m *MockStore) ListHistory(ctx context.Context, vehicleID string) ([]models.ServiceHistoryRecord, error) {
	args := m.Called(ctx, vehicleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ServiceHistoryRecord), args.Error(1)
}

func (m *MockStore) ListDueEntries(ctx context.Context, ownerID string) ([]models.DueEntry, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DueEntry), args.Error(1)
}

// MockEngine is a mock implementation of ScheduleService
type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) GenerateScheduleForVehicle(ctx context.Context, vehicleID string) error {
	return m.Called(ctx, vehicleID).Error(0)
}

func (m *MockEngine) UpdateVehicleStatuses(ctx context.Context, vehicleID string) error {
	return m.Called(ctx, vehicleID).Error(0)
}

func (m *MockEngine) UpdateAllVehicleStatuses(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockEngine) CompleteService(ctx context.Context, vehicleID, entryID string, c schedule.Completion) (*models.ServiceHistoryRecord, error) {
	args := m.Called(ctx, vehicleID, entryID, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ServiceHistoryRecord), args.Error(1)
}

// apiFixture is a router backed by mocks plus a token per role.
type apiFixture struct {
	router http.Handler
	auth   *auth.Service
	users  *MockUserCollection
	store  *MockStore
	engine *MockEngine

	ownerID string
	tokens  map[models.Role]string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	authService, err := auth.NewService("test-secret", time.Hour)
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()

	f := &apiFixture{
		auth:    authService,
		users:   new(MockUserCollection),
		store:   new(MockStore),
		engine:  new(MockEngine),
		ownerID: primitive.NewObjectID().Hex(),
		tokens:  make(map[models.Role]string),
	}
	f.router = NewRouter(RouterConfig{
		Auth:   authService,
		Users:  f.users,
		Store:  f.store,
		Engine: f.engine,
		Log:    logger,
	})

	for _, role := range []models.Role{models.RoleOwner, models.RoleManager, models.RoleAdmin} {
		id := primitive.NewObjectID()
		if role == models.RoleOwner {
			id, _ = primitive.ObjectIDFromHex(f.ownerID)
		}
		token, _, err := authService.GenerateToken(&models.User{ID: id, Username: string(role), Role: role})
		require.NoError(t, err)
		f.tokens[role] = token
	}
	return f
}

func (f *apiFixture) do(t *testing.T, role models.Role, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token, ok := f.tokens[role]; ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) assertExpectations(t *testing.T) {
	f.users.AssertExpectations(t)
	f.store.AssertExpectations(t)
	f.engine.AssertExpectations(t)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}
