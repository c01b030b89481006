package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memoryRepo is an in-memory Repository for engine tests.
type memoryRepo struct {
	mu          sync.Mutex
	vehicles    map[string]models.Vehicle
	owners      map[string]*models.User
	definitions []models.ServiceDefinition
	rules       []models.ScheduleRule
	entries     []models.VehicleScheduleEntry
	history     []models.ServiceHistoryRecord
	entryWrites int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		vehicles: make(map[string]models.Vehicle),
		owners:   make(map[string]*models.User),
	}
}

func (m *memoryRepo) addVehicle(v models.Vehicle) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.ID.IsZero() {
		v.ID = primitive.NewObjectID()
	}
	m.vehicles[v.ID.Hex()] = v
	return v.ID.Hex()
}

// setLeads stores an owner's lead window as it would be held on the user
// document, without defaulting.
func (m *memoryRepo) setLeads(ownerID string, miles, days int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[ownerID] = &models.User{ReminderLeadMiles: miles, ReminderLeadDays: days}
}

func (m *memoryRepo) setMileage(id string, mileage int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.vehicles[id]
	v.CurrentMileage = mileage
	m.vehicles[id] = v
}

func (m *memoryRepo) addDefinition(name string) string {
	d := models.ServiceDefinition{ID: primitive.NewObjectID(), Name: name, Category: "engine", IsActive: true}
	m.definitions = append(m.definitions, d)
	return d.ID.Hex()
}

func (m *memoryRepo) FindVehicle(ctx context.Context, vehicleID string) (*models.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[vehicleID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &v, nil
}

func (m *memoryRepo) ListVehicleIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.vehicles))
	for id := range m.vehicles {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memoryRepo) FindReminderPreferences(ctx context.Context, ownerID string) (models.ReminderPreferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// nil owners resolve to the defaults too
	return m.owners[ownerID].Preferences(), nil
}

func (m *memoryRepo) ListActiveServiceDefinitions(ctx context.Context) ([]models.ServiceDefinition, error) {
	return append([]models.ServiceDefinition(nil), m.definitions...), nil
}

func (m *memoryRepo) ListScheduleRules(ctx context.Context) ([]models.ScheduleRule, error) {
	return append([]models.ScheduleRule(nil), m.rules...), nil
}

func (m *memoryRepo) ListScheduleEntries(ctx context.Context, vehicleID string) ([]models.VehicleScheduleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.VehicleScheduleEntry
	for _, e := range m.entries {
		if e.VehicleID == vehicleID {
			out = append(out, cloneEntry(e))
		}
	}
	return out, nil
}

func (m *memoryRepo) UpsertScheduleEntry(ctx context.Context, entry *models.VehicleScheduleEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entryWrites++
	for i, e := range m.entries {
		if e.VehicleID == entry.VehicleID && e.ServiceDefinitionID == entry.ServiceDefinitionID {
			entry.ID = e.ID
			m.entries[i] = cloneEntry(*entry)
			return nil
		}
	}
	entry.ID = primitive.NewObjectID()
	m.entries = append(m.entries, cloneEntry(*entry))
	return nil
}

func (m *memoryRepo) UpdateScheduleEntry(ctx context.Context, entry models.VehicleScheduleEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entryWrites++
	for i, e := range m.entries {
		if e.ID == entry.ID {
			m.entries[i] = cloneEntry(entry)
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *memoryRepo) HasHistoryAt(ctx context.Context, scheduleEntryID string, mileage int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.history {
		if h.ScheduleEntryID == scheduleEntryID && h.MileageAtService == mileage {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRepo) InsertHistory(ctx context.Context, record *models.ServiceHistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record.ID = primitive.NewObjectID()
	m.history = append(m.history, *record)
	return nil
}

func (m *memoryRepo) entriesFor(vehicleID string) []models.VehicleScheduleEntry {
	out, _ := m.ListScheduleEntries(context.Background(), vehicleID)
	return out
}

func (m *memoryRepo) historyFor(vehicleID string) []models.ServiceHistoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ServiceHistoryRecord
	for _, h := range m.history {
		if h.VehicleID == vehicleID {
			out = append(out, h)
		}
	}
	return out
}

func cloneEntry(e models.VehicleScheduleEntry) models.VehicleScheduleEntry {
	e.MileageInterval = copyInt(e.MileageInterval)
	e.MonthInterval = copyInt(e.MonthInterval)
	e.NextDueMileage = copyInt(e.NextDueMileage)
	if e.NextDueDate != nil {
		d := *e.NextDueDate
		e.NextDueDate = &d
	}
	return e
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) AddMonths(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.AddDate(0, n, 0)
}

var testEpoch = time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC)

func newTestEngine(repo Repository) (*Engine, *fakeClock, *test.Hook) {
	clock := &fakeClock{now: testEpoch}
	logger, hook := test.NewNullLogger()
	return NewEngine(repo, WithClock(clock.Now), WithLogger(logger), WithWorkers(2)), clock, hook
}

func intPtr(v int) *int { return &v }
