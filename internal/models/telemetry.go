package models

import "time"

// OdometerReading is a mileage sample published by a vehicle or its gateway.
type OdometerReading struct {
	VehicleID string    `json:"vehicle_id"`
	Odometer  int       `json:"odometer"` // in miles
	Timestamp time.Time `json:"timestamp"`
}
