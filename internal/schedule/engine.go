// Package schedule materializes per-vehicle maintenance schedules from
// interval rules and keeps their due points and status current as mileage
// and time advance.
package schedule

import (
	"time"

	"github.com/sirupsen/logrus"
)

const defaultSweepWorkers = 4

// Engine runs schedule generation and status evaluation against a Repository.
// Evaluation for one vehicle only touches that vehicle's entries, so an
// Engine is safe for concurrent use across vehicles.
type Engine struct {
	repo    Repository
	now     func() time.Time
	log     logrus.FieldLogger
	workers int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger used for engine events.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithWorkers bounds how many vehicles UpdateAllVehicleStatuses evaluates at once.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// NewEngine creates an engine backed by repo.
func NewEngine(repo Repository, opts ...Option) *Engine {
	e := &Engine{
		repo:    repo,
		now:     time.Now,
		log:     logrus.StandardLogger(),
		workers: defaultSweepWorkers,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
