// Package catalog loads the service catalog (service definitions and the
// interval rules that apply them) from YAML and seeds it into the store.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"gopkg.in/yaml.v3"
)

// ErrInvalidCatalog is returned when a catalog fails validation.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Catalog is the on-disk form of the service catalog.
type Catalog struct {
	Services []Service `yaml:"services"`
	Rules    []Rule    `yaml:"rules"`
}

// Service describes a maintenance task type.
type Service struct {
	Name        string `yaml:"name"`
	Category    string `yaml:"category"`
	Description string `yaml:"description,omitempty"`
	Active      *bool  `yaml:"active,omitempty"`
}

// Rule scopes an interval to vehicles. Service refers to a Service by name.
type Rule struct {
	Key             string `yaml:"key"`
	Service         string `yaml:"service"`
	Make            string `yaml:"make,omitempty"`
	Model           string `yaml:"model,omitempty"`
	YearMin         *int   `yaml:"year_min,omitempty"`
	YearMax         *int   `yaml:"year_max,omitempty"`
	Engine          string `yaml:"engine,omitempty"`
	DriveType       string `yaml:"drive_type,omitempty"`
	MileageInterval *int   `yaml:"mileage_interval,omitempty"`
	MonthInterval   *int   `yaml:"month_interval,omitempty"`
	Combined        *bool  `yaml:"combined,omitempty"`
	Priority        int    `yaml:"priority"`
	Source          string `yaml:"source,omitempty"`
	Notes           string `yaml:"notes,omitempty"`
	Active          *bool  `yaml:"active,omitempty"`
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes and validates a catalog. Unknown fields are rejected.
func Parse(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks names and keys are unique, every rule names a known
// service, and intervals are sane.
func (c *Catalog) Validate() error {
	services := make(map[string]bool, len(c.Services))
	for _, s := range c.Services {
		if s.Name == "" {
			return fmt.Errorf("%w: service without name", ErrInvalidCatalog)
		}
		if services[s.Name] {
			return fmt.Errorf("%w: duplicate service %q", ErrInvalidCatalog, s.Name)
		}
		services[s.Name] = true
	}

	keys := make(map[string]bool, len(c.Rules))
	for _, r := range c.Rules {
		switch {
		case r.Key == "":
			return fmt.Errorf("%w: rule for %q without key", ErrInvalidCatalog, r.Service)
		case keys[r.Key]:
			return fmt.Errorf("%w: duplicate rule key %q", ErrInvalidCatalog, r.Key)
		case !services[r.Service]:
			return fmt.Errorf("%w: rule %q references unknown service %q", ErrInvalidCatalog, r.Key, r.Service)
		case !positive(r.MileageInterval) && !positive(r.MonthInterval):
			return fmt.Errorf("%w: rule %q has no interval", ErrInvalidCatalog, r.Key)
		case r.MileageInterval != nil && *r.MileageInterval < 0, r.MonthInterval != nil && *r.MonthInterval < 0:
			return fmt.Errorf("%w: rule %q has a negative interval", ErrInvalidCatalog, r.Key)
		case r.YearMin != nil && r.YearMax != nil && *r.YearMin > *r.YearMax:
			return fmt.Errorf("%w: rule %q has year_min after year_max", ErrInvalidCatalog, r.Key)
		}
		keys[r.Key] = true
	}
	return nil
}

// SeedResult counts what Seed wrote.
type SeedResult struct {
	Services int
	Rules    int
}

// Seed upserts every service and rule. Services are keyed by name and rules
// by key, so seeding the same catalog twice leaves the store unchanged.
func Seed(ctx context.Context, store db.CatalogCollection, c *Catalog, log logrus.FieldLogger) (SeedResult, error) {
	var res SeedResult
	ids := make(map[string]string, len(c.Services))

	for _, s := range c.Services {
		def := &models.ServiceDefinition{
			Name:        s.Name,
			Category:    s.Category,
			Description: s.Description,
			IsActive:    boolOr(s.Active, true),
		}
		if err := store.UpsertServiceDefinition(ctx, def); err != nil {
			return res, err
		}
		ids[s.Name] = def.ID.Hex()
		res.Services++
	}

	for _, r := range c.Rules {
		rule := r.toModel(ids[r.Service])
		if err := store.UpsertScheduleRule(ctx, &rule); err != nil {
			return res, err
		}
		res.Rules++
	}

	log.WithFields(logrus.Fields{
		"services": res.Services,
		"rules":    res.Rules,
	}).Info("Seeded service catalog")
	return res, nil
}

func (r Rule) toModel(serviceID string) models.ScheduleRule {
	return models.ScheduleRule{
		Key:                 r.Key,
		ServiceDefinitionID: serviceID,
		Make:                r.Make,
		Model:               r.Model,
		YearMin:             r.YearMin,
		YearMax:             r.YearMax,
		Engine:              r.Engine,
		DriveType:           r.DriveType,
		MileageInterval:     r.MileageInterval,
		MonthInterval:       r.MonthInterval,
		IsCombined:          boolOr(r.Combined, true),
		Priority:            r.Priority,
		Source:              r.Source,
		Notes:               r.Notes,
		IsActive:            boolOr(r.Active, true),
	}
}

func positive(v *int) bool {
	return v != nil && *v > 0
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
