package db

import (
	"context"
	"fmt"

	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UpsertServiceDefinition creates or replaces the definition with the same
// name and sets def.ID.
func (s *MongoStore) UpsertServiceDefinition(ctx context.Context, def *models.ServiceDefinition) error {
	replacement := *def
	replacement.ID = primitive.NilObjectID
	opts := options.FindOneAndReplace().SetUpsert(true).SetReturnDocument(options.After)

	var saved models.ServiceDefinition
	if err := s.ServiceDefinitions.FindOneAndReplace(ctx, bson.M{"name": def.Name}, replacement, opts).Decode(&saved); err != nil {
		return fmt.Errorf("upsert service definition %q: %w", def.Name, err)
	}
	def.ID = saved.ID
	return nil
}

// UpsertScheduleRule creates or replaces the rule with the same key and sets
// rule.ID.
func (s *MongoStore) UpsertScheduleRule(ctx context.Context, rule *models.ScheduleRule) error {
	if rule.Key == "" {
		return fmt.Errorf("schedule rule without key")
	}
	replacement := *rule
	replacement.ID = primitive.NilObjectID
	opts := options.FindOneAndReplace().SetUpsert(true).SetReturnDocument(options.After)

	var saved models.ScheduleRule
	if err := s.ScheduleRules.FindOneAndReplace(ctx, bson.M{"key": rule.Key}, replacement, opts).Decode(&saved); err != nil {
		return fmt.Errorf("upsert schedule rule %q: %w", rule.Key, err)
	}
	rule.ID = saved.ID
	return nil
}
