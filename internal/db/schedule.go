package db

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FindReminderPreferences returns the owner's lead window, or the defaults
// when the owner is unknown.
func (s *MongoStore) FindReminderPreferences(ctx context.Context, ownerID string) (models.ReminderPreferences, error) {
	oid, err := primitive.ObjectIDFromHex(ownerID)
	if err != nil {
		return models.DefaultReminderPreferences(), nil
	}
	var user models.User
	err = s.Users.FindOne(ctx, bson.M{"_id": oid},
		options.FindOne().SetProjection(bson.M{"reminder_lead_miles": 1, "reminder_lead_days": 1}),
	).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.DefaultReminderPreferences(), nil
	}
	if err != nil {
		return models.ReminderPreferences{}, err
	}
	return user.Preferences(), nil
}

// ListActiveServiceDefinitions returns every active service definition.
func (s *MongoStore) ListActiveServiceDefinitions(ctx context.Context) ([]models.ServiceDefinition, error) {
	cursor, err := s.ServiceDefinitions.Find(ctx, bson.M{"is_active": true})
	if err != nil {
		return nil, err
	}
	var definitions []models.ServiceDefinition
	if err := cursor.All(ctx, &definitions); err != nil {
		return nil, err
	}
	return definitions, nil
}

// ListScheduleRules returns every active schedule rule.
func (s *MongoStore) ListScheduleRules(ctx context.Context) ([]models.ScheduleRule, error) {
	cursor, err := s.ScheduleRules.Find(ctx, bson.M{"is_active": true})
	if err != nil {
		return nil, err
	}
	var rules []models.ScheduleRule
	if err := cursor.All(ctx, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// ListScheduleEntries returns the schedule of one vehicle in creation order.
func (s *MongoStore) ListScheduleEntries(ctx context.Context, vehicleID string) ([]models.VehicleScheduleEntry, error) {
	cursor, err := s.ScheduleEntries.Find(ctx, bson.M{"vehicle_id": vehicleID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	entries := []models.VehicleScheduleEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// UpsertScheduleEntry replaces the entry for the entry's (vehicle, service)
// pair, creating it when missing, and sets entry.ID.
func (s *MongoStore) UpsertScheduleEntry(ctx context.Context, entry *models.VehicleScheduleEntry) error {
	replacement := *entry
	replacement.ID = primitive.NilObjectID
	filter := bson.M{
		"vehicle_id":            entry.VehicleID,
		"service_definition_id": entry.ServiceDefinitionID,
	}
	opts := options.FindOneAndReplace().SetUpsert(true).SetReturnDocument(options.After)

	var saved models.VehicleScheduleEntry
	if err := s.ScheduleEntries.FindOneAndReplace(ctx, filter, replacement, opts).Decode(&saved); err != nil {
		return fmt.Errorf("upsert schedule entry: %w", err)
	}
	entry.ID = saved.ID
	return nil
}

// UpdateScheduleEntry stores an existing entry.
func (s *MongoStore) UpdateScheduleEntry(ctx context.Context, entry models.VehicleScheduleEntry) error {
	result, err := s.ScheduleEntries.ReplaceOne(ctx, bson.M{"_id": entry.ID}, entry)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("schedule entry %s: %w", entry.ID.Hex(), models.ErrNotFound)
	}
	return nil
}

// HasHistoryAt reports whether any service, assumed or real, is recorded for
// the entry at exactly mileage.
func (s *MongoStore) HasHistoryAt(ctx context.Context, scheduleEntryID string, mileage int) (bool, error) {
	n, err := s.ServiceHistory.CountDocuments(ctx,
		bson.M{"schedule_entry_id": scheduleEntryID, "mileage_at_service": mileage},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertHistory stores a service record and sets its ID. Inserting an
// assumed record that already exists at the same boundary is a no-op.
func (s *MongoStore) InsertHistory(ctx context.Context, record *models.ServiceHistoryRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	record.ID = primitive.NewObjectID()
	_, err := s.ServiceHistory.InsertOne(ctx, record)
	if err != nil {
		if record.IsAssumed && mongo.IsDuplicateKeyError(err) {
			record.ID = primitive.NilObjectID
			return nil
		}
		return fmt.Errorf("insert service history: %w", err)
	}
	return nil
}

// ListHistory returns a vehicle's service history, most recent first.
func (s *MongoStore) ListHistory(ctx context.Context, vehicleID string) ([]models.ServiceHistoryRecord, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "mileage_at_service", Value: -1},
		{Key: "completed_date", Value: -1},
	})
	cursor, err := s.ServiceHistory.Find(ctx, bson.M{"vehicle_id": vehicleID}, opts)
	if err != nil {
		return nil, err
	}
	records := []models.ServiceHistoryRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ListDueEntries returns the upcoming and overdue entries of the owner's
// vehicles, or of every vehicle when ownerID is empty. Overdue entries come
// first.
func (s *MongoStore) ListDueEntries(ctx context.Context, ownerID string) ([]models.DueEntry, error) {
	vehicles, err := s.ListVehicles(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	due := []models.DueEntry{}
	if len(vehicles) == 0 {
		return due, nil
	}

	byID := make(map[string]models.Vehicle, len(vehicles))
	ids := make([]string, 0, len(vehicles))
	for _, v := range vehicles {
		byID[v.ID.Hex()] = v
		ids = append(ids, v.ID.Hex())
	}

	cursor, err := s.ScheduleEntries.Find(ctx, bson.M{
		"vehicle_id": bson.M{"$in": ids},
		"status":     bson.M{"$in": []models.Status{models.StatusUpcoming, models.StatusOverdue}},
	})
	if err != nil {
		return nil, err
	}
	var entries []models.VehicleScheduleEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}

	names, err := s.serviceNames(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		due = append(due, models.DueEntry{
			Entry:       e,
			VehicleID:   e.VehicleID,
			VehicleName: byID[e.VehicleID].DisplayName(),
			ServiceName: names[e.ServiceDefinitionID],
		})
	}
	sort.SliceStable(due, func(i, j int) bool {
		oi := due[i].Entry.Status == models.StatusOverdue
		oj := due[j].Entry.Status == models.StatusOverdue
		if oi != oj {
			return oi
		}
		if due[i].VehicleName != due[j].VehicleName {
			return due[i].VehicleName < due[j].VehicleName
		}
		return due[i].ServiceName < due[j].ServiceName
	})
	return due, nil
}

func (s *MongoStore) serviceNames(ctx context.Context) (map[string]string, error) {
	cursor, err := s.ServiceDefinitions.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"name": 1}))
	if err != nil {
		return nil, err
	}
	var definitions []models.ServiceDefinition
	if err := cursor.All(ctx, &definitions); err != nil {
		return nil, err
	}
	names := make(map[string]string, len(definitions))
	for _, d := range definitions {
		names[d.ID.Hex()] = d.Name
	}
	return names, nil
}
