package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	VehiclesCollection           = "vehicles"
	UsersCollection              = "users"
	ServiceDefinitionsCollection = "service_definitions"
	ScheduleRulesCollection      = "schedule_rules"
	ScheduleEntriesCollection    = "schedule_entries"
	ServiceHistoryCollection     = "service_history"
)

// ConnectMongo connects to MongoDB and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

// MongoStore persists vehicles, the service catalog, schedules and service
// history. It implements schedule.Repository.
type MongoStore struct {
	Vehicles           *mongo.Collection
	Users              *mongo.Collection
	ServiceDefinitions *mongo.Collection
	ScheduleRules      *mongo.Collection
	ScheduleEntries    *mongo.Collection
	ServiceHistory     *mongo.Collection

	now func() time.Time
}

// NewMongoStore binds a store to the collections of database.
func NewMongoStore(database *mongo.Database) *MongoStore {
	return &MongoStore{
		Vehicles:           database.Collection(VehiclesCollection),
		Users:              database.Collection(UsersCollection),
		ServiceDefinitions: database.Collection(ServiceDefinitionsCollection),
		ScheduleRules:      database.Collection(ScheduleRulesCollection),
		ScheduleEntries:    database.Collection(ScheduleEntriesCollection),
		ServiceHistory:     database.Collection(ServiceHistoryCollection),
		now:                time.Now,
	}
}

// EnsureIndexes creates the indexes the store relies on. It is safe to call
// on every start.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{s.Vehicles, mongo.IndexModel{Keys: bson.D{{Key: "owner_id", Value: 1}}}},
		{s.Users, mongo.IndexModel{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{s.ServiceDefinitions, mongo.IndexModel{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{s.ScheduleRules, mongo.IndexModel{
			Keys:    bson.D{{Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{s.ScheduleEntries, mongo.IndexModel{
			Keys:    bson.D{{Key: "vehicle_id", Value: 1}, {Key: "service_definition_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{s.ServiceHistory, mongo.IndexModel{Keys: bson.D{{Key: "vehicle_id", Value: 1}, {Key: "completed_date", Value: -1}}}},
		{s.ServiceHistory, mongo.IndexModel{
			Keys: bson.D{{Key: "schedule_entry_id", Value: 1}, {Key: "mileage_at_service", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"is_assumed": true}),
		}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("create index on %s: %w", idx.coll.Name(), err)
		}
	}
	return nil
}

// objectID parses a hex id. Malformed ids cannot name a stored document, so
// they are reported as models.ErrNotFound.
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("id %q: %w", id, models.ErrNotFound)
	}
	return oid, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	return err
}

// InsertVehicle stores a new vehicle and sets its ID and timestamps.
func (s *MongoStore) InsertVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	now := s.now()
	vehicle.ID = primitive.NewObjectID()
	vehicle.CreatedAt = now
	vehicle.UpdatedAt = now
	if _, err := s.Vehicles.InsertOne(ctx, vehicle); err != nil {
		return fmt.Errorf("insert vehicle: %w", err)
	}
	return nil
}

// FindVehicle finds a vehicle by its ID.
func (s *MongoStore) FindVehicle(ctx context.Context, id string) (*models.Vehicle, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var vehicle models.Vehicle
	if err := s.Vehicles.FindOne(ctx, bson.M{"_id": oid}).Decode(&vehicle); err != nil {
		return nil, notFound(err, "vehicle "+id)
	}
	return &vehicle, nil
}

// ListVehicles returns the vehicles of ownerID, or every vehicle when
// ownerID is empty.
func (s *MongoStore) ListVehicles(ctx context.Context, ownerID string) ([]models.Vehicle, error) {
	filter := bson.M{}
	if ownerID != "" {
		filter["owner_id"] = ownerID
	}
	cursor, err := s.Vehicles.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	vehicles := []models.Vehicle{}
	if err := cursor.All(ctx, &vehicles); err != nil {
		return nil, err
	}
	return vehicles, nil
}

// ListVehicleIDs returns the id of every vehicle.
func (s *MongoStore) ListVehicleIDs(ctx context.Context) ([]string, error) {
	cursor, err := s.Vehicles.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID.Hex())
	}
	return ids, nil
}

// UpdateVehicleMileage stores a new odometer reading.
func (s *MongoStore) UpdateVehicleMileage(ctx context.Context, id string, mileage int) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	result, err := s.Vehicles.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"current_mileage": mileage, "updated_at": s.now()}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("vehicle %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// DeleteVehicle removes a vehicle together with its schedule entries and
// service history.
func (s *MongoStore) DeleteVehicle(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	result, err := s.Vehicles.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("vehicle %s: %w", id, models.ErrNotFound)
	}
	if _, err := s.ScheduleEntries.DeleteMany(ctx, bson.M{"vehicle_id": id}); err != nil {
		return fmt.Errorf("delete schedule entries of vehicle %s: %w", id, err)
	}
	if _, err := s.ServiceHistory.DeleteMany(ctx, bson.M{"vehicle_id": id}); err != nil {
		return fmt.Errorf("delete service history of vehicle %s: %w", id, err)
	}
	return nil
}
