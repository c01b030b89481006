// Package telemetry ingests odometer readings published over MQTT.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

const (
	connectTimeout = 10 * time.Second
	handleTimeout  = 15 * time.Second
	subscribeQoS   = 1
)

// ErrInvalidReading is returned for readings that cannot be applied.
var ErrInvalidReading = errors.New("invalid odometer reading")

// MileageStore is the vehicle persistence the subscriber writes to.
type MileageStore interface {
	FindVehicle(ctx context.Context, id string) (*models.Vehicle, error)
	UpdateVehicleMileage(ctx context.Context, id string, mileage int) error
}

// StatusUpdater re-evaluates a vehicle's schedule after its mileage moves.
type StatusUpdater interface {
	UpdateVehicleStatuses(ctx context.Context, vehicleID string) error
}

// Options configures the broker connection.
type Options struct {
	Broker   string
	ClientID string
	Topic    string
}

// Subscriber applies odometer readings from MQTT to the vehicle store.
type Subscriber struct {
	opts   Options
	store  MileageStore
	engine StatusUpdater
	log    logrus.FieldLogger

	client mqtt.Client
}

// NewSubscriber creates a subscriber. Call Start to connect.
func NewSubscriber(opts Options, store MileageStore, engine StatusUpdater, log logrus.FieldLogger) *Subscriber {
	return &Subscriber{opts: opts, store: store, engine: engine, log: log}
}

// Start connects to the broker and subscribes to the reading topic. The
// subscription is renewed on every reconnect.
func (s *Subscriber) Start() error {
	clientOpts := mqtt.NewClientOptions().
		AddBroker(s.opts.Broker).
		SetClientID(s.opts.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(func(c mqtt.Client) {
			token := c.Subscribe(s.opts.Topic, subscribeQoS, s.HandleMessage)
			if token.WaitTimeout(connectTimeout) && token.Error() != nil {
				s.log.WithError(token.Error()).WithField("topic", s.opts.Topic).Error("Failed to subscribe")
				return
			}
			s.log.WithField("topic", s.opts.Topic).Info("Subscribed to odometer readings")
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			s.log.WithError(err).Warn("MQTT connection lost")
		})

	s.client = mqtt.NewClient(clientOpts)
	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("connect to %s: timed out", s.opts.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to %s: %w", s.opts.Broker, err)
	}
	return nil
}

// Stop unsubscribes and disconnects.
func (s *Subscriber) Stop() {
	if s.client == nil || !s.client.IsConnected() {
		return
	}
	s.client.Unsubscribe(s.opts.Topic).WaitTimeout(time.Second)
	s.client.Disconnect(250)
}

// HandleMessage is the MQTT callback for one reading.
func (s *Subscriber) HandleMessage(_ mqtt.Client, msg mqtt.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	reading, err := ParseReading(msg.Topic(), msg.Payload())
	if err != nil {
		s.log.WithError(err).WithField("topic", msg.Topic()).Warn("Dropping odometer reading")
		return
	}
	if err := s.Apply(ctx, reading); err != nil {
		s.log.WithError(err).WithField("vehicle_id", reading.VehicleID).Error("Failed to apply odometer reading")
	}
}

// Apply stores a reading and re-evaluates the vehicle's schedule. Readings
// at or below the stored mileage are ignored; broker redeliveries and
// out-of-order messages must not roll the odometer back.
func (s *Subscriber) Apply(ctx context.Context, reading models.OdometerReading) error {
	vehicle, err := s.store.FindVehicle(ctx, reading.VehicleID)
	if err != nil {
		return fmt.Errorf("find vehicle: %w", err)
	}
	logger := s.log.WithFields(logrus.Fields{
		"vehicle_id": reading.VehicleID,
		"odometer":   reading.Odometer,
	})
	if reading.Odometer <= vehicle.CurrentMileage {
		logger.WithField("current_mileage", vehicle.CurrentMileage).Debug("Ignoring stale odometer reading")
		return nil
	}

	if err := s.store.UpdateVehicleMileage(ctx, reading.VehicleID, reading.Odometer); err != nil {
		return fmt.Errorf("update mileage: %w", err)
	}
	if err := s.engine.UpdateVehicleStatuses(ctx, reading.VehicleID); err != nil {
		return fmt.Errorf("update statuses: %w", err)
	}
	logger.Info("Applied odometer reading")
	return nil
}

// ParseReading decodes a JSON reading. When the payload omits the vehicle
// id it is taken from a topic of the form vehicles/{id}/odometer.
func ParseReading(topic string, payload []byte) (models.OdometerReading, error) {
	var reading models.OdometerReading
	if err := json.Unmarshal(payload, &reading); err != nil {
		return reading, fmt.Errorf("%w: %v", ErrInvalidReading, err)
	}
	if reading.VehicleID == "" {
		reading.VehicleID = vehicleIDFromTopic(topic)
	}
	switch {
	case reading.VehicleID == "":
		return reading, fmt.Errorf("%w: missing vehicle id", ErrInvalidReading)
	case reading.Odometer < 0:
		return reading, fmt.Errorf("%w: negative odometer %d", ErrInvalidReading, reading.Odometer)
	}
	return reading, nil
}

func vehicleIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) == 3 && parts[0] == "vehicles" && parts[2] == "odometer" {
		return parts[1]
	}
	return ""
}

// ReadingTopic is the topic a vehicle's readings are published on.
func ReadingTopic(vehicleID string) string {
	return "vehicles/" + vehicleID + "/odometer"
}
