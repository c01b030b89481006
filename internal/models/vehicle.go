package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Vehicle represents an owner's vehicle and its odometer reading.
type Vehicle struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID        string             `bson:"owner_id" json:"owner_id"`
	VIN            string             `bson:"vin,omitempty" json:"vin,omitempty"`
	Nickname       string             `bson:"nickname,omitempty" json:"nickname,omitempty"`
	Make           string             `bson:"make" json:"make"`
	Model          string             `bson:"model" json:"model"`
	Year           int                `bson:"year" json:"year"`
	Engine         string             `bson:"engine,omitempty" json:"engine,omitempty"`
	DriveType      string             `bson:"drive_type,omitempty" json:"drive_type,omitempty"` // "FWD", "RWD", "AWD", "4WD"
	CurrentMileage int                `bson:"current_mileage" json:"current_mileage"`           // in miles
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

// CreateVehicleRequest is the payload for registering a vehicle.
type CreateVehicleRequest struct {
	VIN            string `json:"vin"`
	Nickname       string `json:"nickname"`
	Make           string `json:"make"`
	Model          string `json:"model"`
	Year           int    `json:"year"`
	Engine         string `json:"engine"`
	DriveType      string `json:"drive_type"`
	CurrentMileage int    `json:"current_mileage"`
}

// UpdateMileageRequest is the payload for an odometer update.
type UpdateMileageRequest struct {
	Mileage int `json:"mileage"`
}

// DisplayName is the nickname when set, otherwise "year make model".
func (v Vehicle) DisplayName() string {
	if v.Nickname != "" {
		return v.Nickname
	}
	return fmt.Sprintf("%d %s %s", v.Year, v.Make, v.Model)
}
