package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/telemetry"
)

// catalogVehicles are the make/model pairs the simulator registers.
var catalogVehicles = []struct {
	Make, Model, Engine, DriveType string
}{
	{"Toyota", "4Runner", "4.0L V6", "4WD"},
	{"Toyota", "Camry", "2.5L I4", "FWD"},
	{"Honda", "Civic", "2.0L I4", "FWD"},
	{"Ford", "F-150", "3.5L V6", "4WD"},
	{"Subaru", "Outback", "2.5L H4", "AWD"},
	{"Chevrolet", "Silverado", "5.3L V8", "RWD"},
}

var authToken string

func authorizedRequest(method, url string, body *bytes.Buffer) (*http.Response, error) {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func randomVehicle(i int) models.CreateVehicleRequest {
	c := catalogVehicles[rand.Intn(len(catalogVehicles))]
	return models.CreateVehicleRequest{
		Nickname:       fmt.Sprintf("sim-%d", i+1),
		Make:           c.Make,
		Model:          c.Model,
		Year:           2015 + rand.Intn(10),
		Engine:         c.Engine,
		DriveType:      c.DriveType,
		CurrentMileage: 5000 + rand.Intn(80000),
	}
}

func createVehicle(apiURL string, vehicle models.CreateVehicleRequest) (string, error) {
	data, err := json.Marshal(vehicle)
	if err != nil {
		return "", fmt.Errorf("failed to marshal vehicle: %w", err)
	}

	resp, err := authorizedRequest(http.MethodPost, apiURL+"/vehicles", bytes.NewBuffer(data))
	if err != nil {
		return "", fmt.Errorf("failed to create vehicle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("vehicle creation failed with status: %d", resp.StatusCode)
	}

	var created models.Vehicle
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if created.ID.IsZero() {
		return "", fmt.Errorf("invalid vehicle ID in response")
	}

	log.WithFields(log.Fields{
		"vehicle_id": created.ID.Hex(),
		"make":       vehicle.Make,
		"model":      vehicle.Model,
		"mileage":    vehicle.CurrentMileage,
	}).Info("Created vehicle")

	return created.ID.Hex(), nil
}

// VehicleState tracks one simulated vehicle between ticks.
type VehicleState struct {
	VehicleID string
	Odometer  float64 // in miles
	SpeedMph  float64
}

// drive advances the odometer by the distance covered in hours of driving.
func drive(s *VehicleState, hours float64) {
	s.SpeedMph += (rand.Float64()*2 - 1) * 3
	if s.SpeedMph < 15 {
		s.SpeedMph = 15
	}
	if s.SpeedMph > 75 {
		s.SpeedMph = 75
	}
	s.Odometer += s.SpeedMph * hours
}

func readingFromState(s *VehicleState) models.OdometerReading {
	return models.OdometerReading{
		VehicleID: s.VehicleID,
		Odometer:  int(s.Odometer),
		Timestamp: time.Now(),
	}
}

// Sink delivers odometer readings to the service.
type Sink interface {
	Send(reading models.OdometerReading) error
}

// mqttSink publishes readings to the broker the service subscribes to.
type mqttSink struct {
	client mqtt.Client
}

func (m mqttSink) Send(reading models.OdometerReading) error {
	data, err := json.Marshal(reading)
	if err != nil {
		return err
	}
	token := m.client.Publish(telemetry.ReadingTopic(reading.VehicleID), 1, false, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timed out")
	}
	return token.Error()
}

// httpSink posts readings to the mileage endpoint when no broker is configured.
type httpSink struct {
	apiURL string
}

func (h httpSink) Send(reading models.OdometerReading) error {
	data, err := json.Marshal(models.UpdateMileageRequest{Mileage: reading.Odometer})
	if err != nil {
		return err
	}
	resp, err := authorizedRequest(http.MethodPut, h.apiURL+"/vehicles/"+reading.VehicleID+"/mileage", bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mileage update failed with status: %d", resp.StatusCode)
	}
	return nil
}

func sendReading(sink Sink, reading models.OdometerReading) {
	if err := sink.Send(reading); err != nil {
		log.WithError(err).WithField("vehicle_id", reading.VehicleID).Error("Failed to send odometer reading")
		return
	}
	log.WithFields(log.Fields{"vehicle_id": reading.VehicleID, "odometer": reading.Odometer}).Debug("Sent odometer reading")
}

func simulateVehicle(sink Sink, s *VehicleState, interval time.Duration, hoursPerTick float64) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for range tick.C {
		drive(s, hoursPerTick)
		sendReading(sink, readingFromState(s))
	}
}

func newSink(apiURL string) (Sink, error) {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		log.Info("MQTT_BROKER not set, sending readings over HTTP")
		return httpSink{apiURL: apiURL}, nil
	}
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(fmt.Sprintf("fleet-simulator-%d", os.Getpid())).
		SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	log.WithField("broker", broker).Info("Publishing readings over MQTT")
	return mqttSink{client: client}, nil
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			return n
		}
	}
	return fallback
}

func main() {
	authToken = os.Getenv("SIM_AUTH_TOKEN")

	fleetSize := envInt("FLEET_SIZE", 10)
	interval := time.Duration(envInt("SIM_TICK_SECONDS", 2)) * time.Second
	// Simulated driving hours per tick.
	hoursPerTick := float64(envInt("SIM_HOURS_PER_TICK", 1))

	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}

	log.WithFields(log.Fields{
		"fleet_size": fleetSize,
		"api_url":    apiURL,
		"interval":   interval,
	}).Info("Starting fleet simulation")

	sink, err := newSink(apiURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MQTT broker")
	}

	states := make([]*VehicleState, 0, fleetSize)
	for i := 0; i < fleetSize; i++ {
		vehicle := randomVehicle(i)
		vehicleID, err := createVehicle(apiURL, vehicle)
		if err != nil {
			log.WithError(err).Error("Failed to create vehicle")
			continue
		}
		states = append(states, &VehicleState{
			VehicleID: vehicleID,
			Odometer:  float64(vehicle.CurrentMileage),
			SpeedMph:  25 + rand.Float64()*30,
		})
	}

	log.WithField("created_vehicles", len(states)).Info("Vehicle creation completed")
	if len(states) == 0 {
		log.Error("No vehicles created. Ensure SIM_AUTH_TOKEN is valid and API is reachable. Exiting.")
		return
	}

	for _, s := range states {
		go simulateVehicle(sink, s, interval, hoursPerTick)
	}

	log.Info("Odometer simulation started")
	select {}
}
