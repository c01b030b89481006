package schedule

import (
	"context"
	"time"
)

// Sweeper re-evaluates every vehicle on a fixed interval so date-based
// intervals progress without mileage updates.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
}

// NewSweeper creates a sweeper. Non-positive intervals default to a day.
func NewSweeper(engine *Engine, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Sweeper{engine: engine, interval: interval}
}

// Run sweeps once immediately and then on every tick until ctx is done.
// Sweep failures are logged and do not stop the loop.
func (s *Sweeper) Run(ctx context.Context) {
	tick := time.NewTicker(s.interval)
	defer tick.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if err := s.engine.UpdateAllVehicleStatuses(ctx); err != nil && ctx.Err() == nil {
		s.engine.log.WithError(err).Error("Status sweep failed")
	}
}
