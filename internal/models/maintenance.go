package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Status is the urgency of a schedule entry.
type Status string

const (
	StatusOK       Status = "ok"
	StatusUpcoming Status = "upcoming"
	StatusOverdue  Status = "overdue"
)

// ServiceDefinition is a maintenance task type such as "Engine Oil & Filter".
type ServiceDefinition struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name        string             `json:"name" bson:"name"`
	Category    string             `json:"category" bson:"category"` // "engine", "brakes", "tires", "fluids", "inspection"
	Description string             `json:"description,omitempty" bson:"description,omitempty"`
	IsActive    bool               `json:"is_active" bson:"is_active"`
}

// ScheduleRule scopes an interval template to a set of vehicles. Empty
// string and nil fields match any vehicle.
type ScheduleRule struct {
	ID                  primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Key                 string             `json:"key" bson:"key"`
	ServiceDefinitionID string             `json:"service_definition_id" bson:"service_definition_id"`
	Make                string             `json:"make,omitempty" bson:"make,omitempty"`
	Model               string             `json:"model,omitempty" bson:"model,omitempty"`
	YearMin             *int               `json:"year_min,omitempty" bson:"year_min,omitempty"`
	YearMax             *int               `json:"year_max,omitempty" bson:"year_max,omitempty"`
	Engine              string             `json:"engine,omitempty" bson:"engine,omitempty"`
	DriveType           string             `json:"drive_type,omitempty" bson:"drive_type,omitempty"`
	MileageInterval     *int               `json:"mileage_interval,omitempty" bson:"mileage_interval,omitempty"`
	MonthInterval       *int               `json:"month_interval,omitempty" bson:"month_interval,omitempty"`
	IsCombined          bool               `json:"is_combined" bson:"is_combined"`
	Priority            int                `json:"priority" bson:"priority"`
	Source              string             `json:"source,omitempty" bson:"source,omitempty"`
	Notes               string             `json:"notes,omitempty" bson:"notes,omitempty"`
	IsActive            bool               `json:"is_active" bson:"is_active"`
}

// VehicleScheduleEntry is a rule materialized for one vehicle. There is at
// most one entry per (vehicle, service definition) pair.
type VehicleScheduleEntry struct {
	ID                  primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	VehicleID           string             `json:"vehicle_id" bson:"vehicle_id"`
	ServiceDefinitionID string             `json:"service_definition_id" bson:"service_definition_id"`
	RuleID              string             `json:"rule_id,omitempty" bson:"rule_id,omitempty"`
	MileageInterval     *int               `json:"mileage_interval,omitempty" bson:"mileage_interval,omitempty"`
	MonthInterval       *int               `json:"month_interval,omitempty" bson:"month_interval,omitempty"`
	IsCombined          bool               `json:"is_combined" bson:"is_combined"`
	NextDueMileage      *int               `json:"next_due_mileage,omitempty" bson:"next_due_mileage,omitempty"`
	NextDueDate         *time.Time         `json:"next_due_date,omitempty" bson:"next_due_date,omitempty"`
	Status              Status             `json:"status" bson:"status"`
	CreatedAt           time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at" bson:"updated_at"`
}

// HasMileageInterval reports whether the entry tracks a positive mileage interval.
func (e VehicleScheduleEntry) HasMileageInterval() bool {
	return e.MileageInterval != nil && *e.MileageInterval > 0
}

// HasMonthInterval reports whether the entry tracks a positive month interval.
func (e VehicleScheduleEntry) HasMonthInterval() bool {
	return e.MonthInterval != nil && *e.MonthInterval > 0
}

// ServiceHistoryRecord is a completed service. Records with IsAssumed set
// were inserted by the scheduler to stand in for unrecorded on-schedule work.
type ServiceHistoryRecord struct {
	ID                  primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	VehicleID           string             `json:"vehicle_id" bson:"vehicle_id"`
	ScheduleEntryID     string             `json:"schedule_entry_id,omitempty" bson:"schedule_entry_id,omitempty"`
	ServiceDefinitionID string             `json:"service_definition_id" bson:"service_definition_id"`
	CompletedDate       time.Time          `json:"completed_date" bson:"completed_date"`
	MileageAtService    int                `json:"mileage_at_service" bson:"mileage_at_service"`
	IsAssumed           bool               `json:"is_assumed" bson:"is_assumed"`
	Cost                float64            `json:"cost,omitempty" bson:"cost,omitempty"` // in USD
	Notes               string             `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt           time.Time          `json:"created_at" bson:"created_at"`
}

// CompleteServiceRequest is the payload for recording a completed service.
type CompleteServiceRequest struct {
	CompletedDate    *time.Time `json:"completed_date,omitempty"`
	MileageAtService int        `json:"mileage_at_service"`
	Cost             float64    `json:"cost"`
	Notes            string     `json:"notes"`
}

// DueEntry pairs a schedule entry that needs attention with its vehicle and
// service names, as consumed by reminder delivery.
type DueEntry struct {
	Entry       VehicleScheduleEntry `json:"entry"`
	VehicleID   string               `json:"vehicle_id"`
	VehicleName string               `json:"vehicle_name"`
	ServiceName string               `json:"service_name"`
}
